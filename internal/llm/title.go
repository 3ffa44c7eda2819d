package llm

import (
	"strings"
	"unicode/utf8"

	"github.com/tbourn/smartlang-chat/internal/domain"
)

const (
	// MaxTitleLen caps a generated title, in runes.
	MaxTitleLen = 100
	// fallbackLen is how much of the seed becomes a local title.
	fallbackLen = 80
)

const titlePrompt = "Create a concise conversation title (3-6 words, no punctuation) based on the user's message.\n\n" +
	"Example:\nUser: Explain blockchain simply\nTitle: Blockchain explained\n\n" +
	"Example:\nUser: Help me write a resume for software engineer\nTitle: Software engineer resume tips\n\n" +
	"User: %s\nTitle:"

// TitlePrompt is the few-shot prompt asking for a short title of message.
func TitlePrompt(message string) string {
	return strings.Replace(titlePrompt, "%s", message, 1)
}

// CleanTitle keeps the first non-empty line of raw, strips a "Title:" prefix
// and surrounding quotes, and caps the result at MaxTitleLen runes.
func CleanTitle(raw string) string {
	var line string
	for _, l := range strings.Split(strings.TrimSpace(raw), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	if len(line) >= 6 && strings.EqualFold(line[:6], "title:") {
		line = strings.TrimSpace(line[6:])
	}
	line = strings.Trim(line, "\"'`*")
	return truncateRunes(strings.TrimSpace(line), MaxTitleLen)
}

// FallbackTitle derives a title locally when the provider fails: the first
// line of seed, capped at 80 runes, or the default topic for a blank seed.
func FallbackTitle(seed string) string {
	seed = strings.TrimSpace(seed)
	if i := strings.IndexByte(seed, '\n'); i >= 0 {
		seed = strings.TrimSpace(seed[:i])
	}
	if seed == "" {
		return domain.DefaultTopic
	}
	return truncateRunes(seed, fallbackLen)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n]))
}
