package player

import "strings"

// DefaultPlaceholderURL is used when a funnel has no redirect link.
const DefaultPlaceholderURL = "https://example.com/default-final-redirect-link"

// BuildRedirectURL appends the trimmed tracking string to link, joining with
// "&" when link already carries a query and "?" otherwise. An empty link is
// replaced by placeholder.
func BuildRedirectURL(link, tracking, placeholder string) string {
	if link == "" {
		link = placeholder
	}
	tracking = strings.TrimSpace(tracking)
	if tracking == "" {
		return link
	}
	if strings.Contains(link, "?") {
		return link + "&" + tracking
	}
	return link + "?" + tracking
}
