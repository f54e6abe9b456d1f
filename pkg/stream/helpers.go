package stream

import (
	"fmt"
	"strings"
)

// TruncateMarker is appended to any content cut at a bound. Truncation is
// applied exactly once at the boundary where content enters the pipeline;
// re-truncating an already-truncated string is a no-op, so downstream code
// never produces double markers.
const TruncateMarker = "... (truncated)"

// Content bounds, in runes. These are hard invariants of the wire format:
// anything longer is cut before it leaves the producer.
const (
	MaxPromptLen   = 500  // user prompts and chat excerpts
	MaxSummaryLen  = 300  // derived summaries (model responses, narration)
	MaxArgLen      = 200  // tool-argument previews
	MaxTerminalLen = 1500 // command output tails
	MaxCodeLen     = 5000 // streamed file contents
)

// Truncate stringifies value and caps it at maxLen runes, appending
// TruncateMarker when it cuts. Idempotent: a string that already carries the
// marker and fits within the bound passes through unchanged.
func Truncate(value any, maxLen int) string {
	var str string
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		str = v
	default:
		str = fmt.Sprintf("%v", v)
	}

	runes := []rune(str)
	if len(runes) <= maxLen {
		return str
	}
	if strings.HasSuffix(str, TruncateMarker) && len(runes)-len([]rune(TruncateMarker)) <= maxLen {
		return str
	}
	return string(runes[:maxLen]) + TruncateMarker
}

// ShortPath returns the final component of a slash-separated path.
func ShortPath(filepath string) string {
	idx := strings.LastIndex(filepath, "/")
	if idx < 0 {
		return filepath
	}
	return filepath[idx+1:]
}
