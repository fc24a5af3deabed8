package ws

import "fmt"

// progressLabel mirrors the status line of the desktop tool.
func progressLabel(current, total int) string {
	return fmt.Sprintf("Processing file %d of %d", current, total)
}
