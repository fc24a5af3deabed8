// Package pdf rasterizes PDF pages for OCR by delegating to poppler's
// pdftoppm. The page count is read up front so an unreadable document fails
// before any process is spawned.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/emandor/textconv/internal/img"
	"github.com/emandor/textconv/internal/telemetry"
)

var ErrNoPages = errors.New("pdf has no pages")

// RasterizeError carries pdftoppm's stderr alongside the exit error.
type RasterizeError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *RasterizeError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("rasterize %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("rasterize %s: %v (stderr: %s)", e.Path, e.Err, e.Stderr)
}

func (e *RasterizeError) Unwrap() error { return e.Err }

// Poppler shells out to pdftoppm.
type Poppler struct {
	BinPath string
}

func NewPoppler(bin string) *Poppler {
	if bin == "" {
		bin = "pdftoppm"
	}
	return &Poppler{BinPath: bin}
}

// PageCount opens the document and reads its page tree.
func PageCount(path string) (n int, err error) {
	defer func() {
		// the parser panics on some truncated files
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("parse %s: %v", path, r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	defer f.Close()
	return r.NumPage(), nil
}

// Rasterize renders every page at dpi and returns them in page order.
func (p *Poppler) Rasterize(ctx context.Context, path string, dpi int) ([]image.Image, error) {
	want, err := PageCount(path)
	if err != nil {
		return nil, err
	}
	if want == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoPages)
	}

	dir, err := os.MkdirTemp("", "textconv-pages-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, p.BinPath, "-r", strconv.Itoa(dpi), "-png", path, prefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &RasterizeError{Path: path, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}

	files, err := pageFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoPages)
	}
	if len(files) != want {
		log := telemetry.L()
		log.Warn().Str("file", path).Int("pages", want).Int("rendered", len(files)).Msg("pdf_page_mismatch")
	}

	pages := make([]image.Image, 0, len(files))
	for _, f := range files {
		im, err := img.Open(f)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(f), err)
		}
		pages = append(pages, im)
	}
	return pages, nil
}

// pageFiles lists page-N.png outputs sorted by N. pdftoppm zero-pads N to
// the width of the page count, so lexical order is not trusted.
func pageFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}
	type page struct {
		n    int
		path string
	}
	pages := make([]page, 0, len(matches))
	for _, m := range matches {
		n, ok := pageNumber(filepath.Base(m))
		if !ok {
			continue
		}
		pages = append(pages, page{n, m})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out, nil
}

func pageNumber(name string) (int, bool) {
	s := strings.TrimSuffix(strings.TrimPrefix(name, "page-"), ".png")
	n, err := strconv.Atoi(s)
	return n, err == nil
}
