package governor

import "strings"

// DefaultBlockMarkers are the literal markers that indicate the target is
// refusing automated access rather than merely failing.
var DefaultBlockMarkers = []string{
	"blocked",
	"captcha",
	"rate limit",
	"too many requests",
	"access denied",
	"forbidden",
	"bot detection",
}

// BlockMatcher detects block signals by case-insensitive containment of
// literal markers in response text.
type BlockMatcher struct {
	markers []string
}

// NewBlockMatcher builds a matcher over the given markers, falling back to
// DefaultBlockMarkers when none are given.
func NewBlockMatcher(markers []string) *BlockMatcher {
	if len(markers) == 0 {
		markers = DefaultBlockMarkers
	}
	lowered := make([]string, len(markers))
	for i, m := range markers {
		lowered[i] = strings.ToLower(m)
	}
	return &BlockMatcher{markers: lowered}
}

// Match returns the first marker contained in any of the given texts, and
// whether one matched. Matching is case-insensitive.
func (m *BlockMatcher) Match(texts ...string) (string, bool) {
	for _, text := range texts {
		if text == "" {
			continue
		}
		lowered := strings.ToLower(text)
		for _, marker := range m.markers {
			if strings.Contains(lowered, marker) {
				return marker, true
			}
		}
	}
	return "", false
}
