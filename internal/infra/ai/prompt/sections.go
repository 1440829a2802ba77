package prompt

import (
	"regexp"
	"strings"
)

// Sections are the headers every analysis must contain, in this order.
// Rendering and export code downstream splits the text on them.
var Sections = []string{
	"### Summary",
	"### Sentiment:",
	"### Topics:",
	"### Categories:",
	"### Key Terms:",
	"### Trending Sentiment:",
	"### Example Alignment:",
	"### Confidence Rating:",
	"### Explanation",
}

var (
	sentimentRe  = regexp.MustCompile(`(?m)^###\s*Sentiment:\s*\**\s*([A-Za-z]+)`)
	confidenceRe = regexp.MustCompile(`(?m)^###\s*Confidence Rating:\s*\**\s*([A-Za-z]+)`)
)

// CheckSections returns the headers that are missing from text or appear
// out of order. An empty result means the analysis honours the format.
func CheckSections(text string) []string {
	var missing []string
	pos := 0
	for _, h := range Sections {
		i := indexHeader(text[pos:], h)
		if i < 0 {
			missing = append(missing, h)
			continue
		}
		pos += i + len(h)
	}
	return missing
}

// indexHeader finds h at the start of a line.
func indexHeader(text, h string) int {
	off := 0
	for {
		i := strings.Index(text[off:], h)
		if i < 0 {
			return -1
		}
		at := off + i
		if at == 0 || text[at-1] == '\n' {
			return at
		}
		off = at + len(h)
	}
}

// Headline pulls the sentiment and confidence labels out of an analysis.
// Either value is "" when the header is missing or carries no word.
func Headline(text string) (sentiment, confidence string) {
	if m := sentimentRe.FindStringSubmatch(text); m != nil {
		sentiment = normalizeLabel(m[1])
	}
	if m := confidenceRe.FindStringSubmatch(text); m != nil {
		confidence = normalizeLabel(m[1])
	}
	return sentiment, confidence
}

func normalizeLabel(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}
