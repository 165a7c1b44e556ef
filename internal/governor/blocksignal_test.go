package governor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestBlockMatcherDefaults verifies the stock markers match
// case-insensitively anywhere in the text.
func TestBlockMatcherDefaults(t *testing.T) {
	t.Parallel()

	m := NewBlockMatcher(nil)

	tests := []struct {
		name   string
		text   string
		marker string
		hit    bool
	}{
		{"captcha page", "<html>Please solve this CAPTCHA to continue</html>", "captcha", true},
		{"rate limited", "Error 429: Too Many Requests", "too many requests", true},
		{"access denied", "ACCESS DENIED by origin server", "access denied", true},
		{"forbidden", "403 Forbidden", "forbidden", true},
		{"bot wall", "Bot Detection triggered", "bot detection", true},
		{"clean body", "<html>Latest consumer price data</html>", "", false},
		{"empty", "", "", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			marker, hit := m.Match(tc.text)
			require.Equal(t, tc.hit, hit)
			require.Equal(t, tc.marker, marker)
		})
	}
}

// TestBlockMatcherMultipleTexts verifies markers are found in any of the
// supplied texts, body or URL alike.
func TestBlockMatcherMultipleTexts(t *testing.T) {
	t.Parallel()

	m := NewBlockMatcher(nil)
	marker, hit := m.Match("<html>ok</html>", "https://example.com/blocked?next=/prices")
	require.True(t, hit)
	require.Equal(t, "blocked", marker)
}

// TestBlockMatcherCustomMarkers verifies configured markers replace the
// defaults entirely.
func TestBlockMatcherCustomMarkers(t *testing.T) {
	t.Parallel()

	m := NewBlockMatcher([]string{"Zugriff verweigert"})

	marker, hit := m.Match("ZUGRIFF VERWEIGERT")
	require.True(t, hit)
	require.Equal(t, "zugriff verweigert", marker)

	_, hit = m.Match("captcha")
	require.False(t, hit, "defaults must not apply once custom markers are set")
}
