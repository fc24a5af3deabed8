package extract

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrNoSources = errors.New("no images or PDFs found in folder")

// DefaultExtensions are the inputs the pipeline knows how to read.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".pdf"}

type Kind int

const (
	KindImage Kind = iota
	KindPDF
)

func (k Kind) String() string {
	if k == KindPDF {
		return "pdf"
	}
	return "image"
}

type Source struct {
	Name string
	Path string
	Kind Kind
}

// ListSources returns the regular files in dir whose extension is in exts
// (case-insensitive), sorted case-insensitively by name. Subdirectories are
// not visited.
func ListSources(dir string, exts []string) ([]Source, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	allowed := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []Source
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if _, ok := allowed[ext]; !ok {
			continue
		}
		kind := KindImage
		if ext == ".pdf" {
			kind = KindPDF
		}
		out = append(out, Source{Name: e.Name(), Path: filepath.Join(dir, e.Name()), Kind: kind})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
