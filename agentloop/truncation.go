package agentloop

import (
	"fmt"
	"unicode/utf8"
)

// Preview limits used by observers.
const (
	QueryPreviewLimit  = 200
	ResultPreviewLimit = 300
	PreviewMarker      = "…"
)

// Preview returns at most limit runes of s. When s is cut, marker is appended.
func Preview(s string, limit int, marker string) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i] + marker
		}
		n++
	}
	return s
}

// TruncationMode specifies how output is truncated.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// TruncateOutput applies rune-based truncation to tool output.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	runes := []rune(output)
	if maxChars <= 0 || len(runes) <= maxChars {
		return output
	}
	removed := len(runes) - maxChars

	switch mode {
	case TruncateTail:
		return fmt.Sprintf("[WARNING: Tool output was truncated. First %d characters were removed.]\n\n", removed) +
			string(runes[len(runes)-maxChars:])
	default:
		half := maxChars / 2
		return string(runes[:half]) +
			fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle.]\n\n", removed) +
			string(runes[len(runes)-(maxChars-half):])
	}
}
