package markets

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultEventURL is the public page prefix for a market slug.
	DefaultEventURL = "https://polymarket.com/event/"

	// SignalCharLimit is the largest message the relay accepts in one send.
	SignalCharLimit = 2000

	NoRelevantMessage = "No relevant markets found."
	SummaryHeader     = "🔍 All related markets on Polymarket:\n\n"
)

func EventURL(base, slug string) string {
	if base == "" {
		base = DefaultEventURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + slug
}

// FormatAlert renders the notification for a newly found market.
func FormatAlert(title, url string) string {
	return fmt.Sprintf("🚨 New Market!\n\n%s\n\n%s", title, url)
}

// SummaryEntry is one numbered line of the summary message.
type SummaryEntry struct {
	Title string
	URL   string
}

// SummaryLines returns the header followed by one block per entry, numbered from 1.
// Each element ends with its own line breaks so the blocks can be chunked as units.
func SummaryLines(entries []SummaryEntry) []string {
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, SummaryHeader)
	for i, e := range entries {
		lines = append(lines, fmt.Sprintf("%d. %s\n%s\n\n", i+1, e.Title, e.URL))
	}
	return lines
}

// ChunkMessage packs lines into chunks of at most limit characters without splitting a line.
// A line longer than limit becomes a chunk of its own. Joining the chunks yields the input.
func ChunkMessage(lines []string, limit int) []string {
	var (
		out   []string
		chunk strings.Builder
		size  int
	)
	for _, line := range lines {
		n := utf8.RuneCountInString(line)
		if size > 0 && size+n > limit {
			out = append(out, chunk.String())
			chunk.Reset()
			size = 0
		}
		chunk.WriteString(line)
		size += n
	}
	if size > 0 {
		out = append(out, chunk.String())
	}
	return out
}
