package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildRedirectURL(t *testing.T) {
	tests := []struct {
		name     string
		link     string
		tracking string
		want     string
	}{
		{"plain link", "https://x.com/page", "utm=1", "https://x.com/page?utm=1"},
		{"link with query", "https://x.com/page?a=1", "utm=1", "https://x.com/page?a=1&utm=1"},
		{"empty link", "", "", DefaultPlaceholderURL},
		{"empty link with tracking", "", "utm=1", DefaultPlaceholderURL + "?utm=1"},
		{"no tracking", "https://x.com/page", "", "https://x.com/page"},
		{"whitespace tracking", "https://x.com/page", "   ", "https://x.com/page"},
		{"tracking is trimmed", "https://x.com/page", "  utm=1 \n", "https://x.com/page?utm=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildRedirectURL(tt.link, tt.tracking, DefaultPlaceholderURL))
		})
	}
}
