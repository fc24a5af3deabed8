package ocr

import "strings"

// MissingLanguages returns the entries of want that a
// `tesseract --list-langs` listing does not mention, in want's order.
func MissingLanguages(listing string, want []string) []string {
	have := map[string]bool{}
	for _, line := range strings.Split(listing, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of") {
			continue
		}
		have[line] = true
	}
	var missing []string
	for _, l := range want {
		if !have[l] {
			missing = append(missing, l)
		}
	}
	return missing
}
