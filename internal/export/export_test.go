package export

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/emandor/textconv/internal/extract"

	"github.com/nguyenthenguyen/docx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteTextBlocks(t *testing.T) {
	recs := []extract.Record{
		{Name: "a.png", Text: "Bonjour\nle monde"},
		{Name: "b.pdf", Text: "\n--- Page 1 ---\nمرحبا"},
		{Name: "c.jpg", Err: errors.New("decode")},
	}
	path := filepath.Join(t.TempDir(), TextName)
	require.NoError(t, WriteText(path, recs))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"--- Text from a.png ---\nBonjour\nle monde\n\n"+
			"--- Text from b.pdf ---\n\n--- Page 1 ---\nمرحبا\n\n"+
			"--- Text from c.jpg ---\n\n\n",
		string(raw))

	// minus the headers, the blocks are the record texts
	var texts []string
	for _, blk := range strings.Split(string(raw), "--- Text from ")[1:] {
		_, body, ok := strings.Cut(blk, " ---\n")
		require.True(t, ok)
		texts = append(texts, strings.TrimSuffix(body, "\n\n"))
	}
	require.Len(t, texts, len(recs))
	for i, r := range recs {
		assert.Equal(t, r.Text, texts[i])
	}
}

func TestWriteAllProducesDocx(t *testing.T) {
	dir := t.TempDir()
	recs := []extract.Record{{Name: "scan.png", Text: "  Ligne 1 & <b>  \n\nمرحبا بالعالم"}}

	res, err := WriteAll(dir, recs)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, TextName), res.Text)
	assert.Equal(t, filepath.Join(dir, DocxName), res.Docx)

	r, err := docx.ReadDocxFile(res.Docx)
	require.NoError(t, err)
	defer r.Close()
	content := r.Editable().GetContent()

	assert.NotContains(t, content, "TEXTCONV_BODY")
	assert.Contains(t, content, `<w:t xml:space="preserve">--- Text from scan.png ---</w:t>`)
	assert.Contains(t, content, `<w:t xml:space="preserve">Ligne 1 &amp; &lt;b&gt;</w:t>`)
	assert.Contains(t, content, `<w:t xml:space="preserve">مرحبا بالعالم</w:t>`)
	// blank line inside the text and the block separator
	assert.Equal(t, 2, strings.Count(content, "<w:p/>"))
}

func TestWriteDocxMissingText(t *testing.T) {
	dir := t.TempDir()
	err := WriteDocx(filepath.Join(dir, "nope.txt"), filepath.Join(dir, DocxName))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
