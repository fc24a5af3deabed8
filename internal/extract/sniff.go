package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidContent = errors.New("file content does not match its extension")

// checkContent reads the head of path and verifies the magic number for its
// extension, so a renamed file fails with a clear error instead of a decoder one.
func checkContent(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, 512) // http.DetectContentType looks at <=512 bytes
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}
	head = head[:n]

	ext := strings.ToLower(filepath.Ext(path))
	if !isValidMagic(ext, http.DetectContentType(head), head) {
		return fmt.Errorf("%s: %w", filepath.Base(path), ErrInvalidContent)
	}
	return nil
}

// verify magic numbers for jpg/jpeg, png and pdf
func isValidMagic(ext, mimeType string, head []byte) bool {
	switch ext {
	case ".jpg", ".jpeg":
		return strings.HasPrefix(mimeType, "image/jpeg") &&
			len(head) > 2 && head[0] == 0xFF && head[1] == 0xD8
	case ".png":
		return strings.HasPrefix(mimeType, "image/png") &&
			bytes.HasPrefix(head, []byte{0x89, 0x50, 0x4E, 0x47})
	case ".pdf":
		return strings.HasPrefix(mimeType, "application/pdf") &&
			bytes.HasPrefix(head, []byte("%PDF-"))
	default:
		return false
	}
}
