package channel

import "unicode/utf8"

// Ellipsis marks truncated text.
const Ellipsis = "…"

// Limits are the display caps of one channel. Lengths count runes.
type Limits struct {
	MaxButtons      int
	MaxElements     int
	ButtonTitle     int
	ElementTitle    int
	ElementSubtitle int
	Text            int
}

var (
	MessengerLimits = Limits{MaxButtons: 3, MaxElements: 10, ButtonTitle: 20, ElementTitle: 80, ElementSubtitle: 80, Text: 640}
	WhatsAppLimits  = Limits{MaxButtons: 3, MaxElements: 10, ButtonTitle: 20, ElementTitle: 24, ElementSubtitle: 72, Text: 1024}
	TelegramLimits  = Limits{MaxButtons: 3, MaxElements: 10, ButtonTitle: 64, ElementTitle: 128, ElementSubtitle: 256, Text: 4096}
)

// Truncate shortens s to at most max runes, ending it with Ellipsis when cut.
// A non-positive max leaves s unchanged.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	if max == 1 {
		return Ellipsis
	}
	runes := []rune(s)
	return string(runes[:max-1]) + Ellipsis
}

// SplitText cuts s into pieces of at most max runes, preferring line breaks.
func SplitText(s string, max int) []string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return []string{s}
	}
	var parts []string
	runes := []rune(s)
	for len(runes) > max {
		cut := max
		for i := max; i > max/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
