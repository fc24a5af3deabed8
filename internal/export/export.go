// Package export writes a finished batch to disk: a plain-text file with one
// block per source file, and a Word document built from that text file.
package export

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/emandor/textconv/internal/extract"

	"github.com/nguyenthenguyen/docx"
)

const (
	TextName = "extracted_textconv.txt"
	DocxName = "extracted_textconv.docx"

	bodyPlaceholder = "<w:p><w:r><w:t>TEXTCONV_BODY</w:t></w:r></w:p>"
)

//go:embed template.docx
var template []byte

type Result struct {
	Text string `json:"text"`
	Docx string `json:"docx"`
}

// WriteAll writes both outputs next to the processed files in dir.
func WriteAll(dir string, recs []extract.Record) (Result, error) {
	res := Result{
		Text: filepath.Join(dir, TextName),
		Docx: filepath.Join(dir, DocxName),
	}
	if err := WriteText(res.Text, recs); err != nil {
		return Result{}, err
	}
	if err := WriteDocx(res.Text, res.Docx); err != nil {
		return Result{}, err
	}
	return res, nil
}

// WriteText writes "--- Text from <name> ---" followed by the record text for
// each record, in order. Failed records keep their header with an empty body
// so the file still has one block per source.
func WriteText(path string, recs []extract.Record) error {
	var b bytes.Buffer
	for _, r := range recs {
		fmt.Fprintf(&b, "--- Text from %s ---\n%s\n\n", r.Name, r.Text)
	}
	if err := os.WriteFile(path, b.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write text: %w", err)
	}
	return nil
}

// WriteDocx turns every line of the text file at txtPath into one trimmed
// paragraph of a new document at docxPath.
func WriteDocx(txtPath, docxPath string) error {
	f, err := os.Open(txtPath)
	if err != nil {
		return fmt.Errorf("read text: %w", err)
	}
	defer f.Close()

	var body strings.Builder
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024) // one OCR line can be a whole page
	for sc.Scan() {
		writeParagraph(&body, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read text: %w", err)
	}

	tpl, err := docx.ReadDocxFromMemory(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return fmt.Errorf("docx template: %w", err)
	}
	defer tpl.Close()

	doc := tpl.Editable()
	doc.ReplaceRaw(bodyPlaceholder, body.String(), 1)
	if err := doc.WriteToFile(docxPath); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

func writeParagraph(b *strings.Builder, line string) {
	if line == "" {
		b.WriteString("<w:p/>")
		return
	}
	b.WriteString(`<w:p><w:r><w:t xml:space="preserve">`)
	_ = xml.EscapeText(b, []byte(line))
	b.WriteString("</w:t></w:r></w:p>")
}
