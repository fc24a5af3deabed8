package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// minimalPDF builds a document with n empty pages and a correct xref table.
func minimalPDF(n int) []byte {
	var objs []string
	kids := make([]string, n)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), n),
	)
	for i := 0; i < n; i++ {
		objs = append(objs, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objs)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return []byte(b.String())
}

func TestPageCount(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "three.pdf")
	require.NoError(t, os.WriteFile(good, minimalPDF(3), 0o644))

	n, err := PageCount(good)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	bad := filepath.Join(dir, "bad.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("This is not a PDF file"), 0o644))
	_, err = PageCount(bad)
	assert.Error(t, err)

	_, err = PageCount(filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)
}

func TestRasterizeMissingBinary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.pdf")
	require.NoError(t, os.WriteFile(path, minimalPDF(1), 0o644))

	p := NewPoppler(filepath.Join(t.TempDir(), "no-such-pdftoppm"))
	_, err := p.Rasterize(context.Background(), path, 300)

	var rerr *RasterizeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, path, rerr.Path)
}

func TestPageFilesOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page-10.png", "page-2.png", "page-1.png", "notes.txt", "page-x.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	files, err := pageFiles(dir)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	assert.Equal(t, []string{"page-1.png", "page-2.png", "page-10.png"}, names)
}
