package extract

import "image"

// Record is the result for one source file. Text holds the recognized text
// (for PDFs, one "--- Page N ---" block per page). Err is set when the file
// could not be processed; Text is then empty.
type Record struct {
	Name    string
	Path    string
	Kind    Kind
	Pages   int
	Preview image.Image
	Text    string
	Err     error
}

// Failed counts the records that carry an error.
func Failed(recs []Record) int {
	n := 0
	for _, r := range recs {
		if r.Err != nil {
			n++
		}
	}
	return n
}
