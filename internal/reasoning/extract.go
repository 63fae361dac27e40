package reasoning

import (
	"regexp"
	"strings"
)

var (
	thinkBlock  = regexp.MustCompile(`(?s)<think>.*?</think>`)
	fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

// ExtractJSON strips model chatter around a JSON object: <think> blocks,
// markdown fences, and any prose outside the outermost braces. It returns
// an empty string when no object is present.
func ExtractJSON(reply string) string {
	s := thinkBlock.ReplaceAllString(reply, "")

	if m := fencedBlock.FindStringSubmatch(s); m != nil {
		s = m[1]
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end < start {
		return ""
	}
	return strings.TrimSpace(s[start : end+1])
}
