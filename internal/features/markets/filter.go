package markets

import "strings"

// NormalizeKeywords lowercases and trims keywords, dropping empty entries and duplicates.
func NormalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// IsRelevant reports whether any keyword occurs in title, ignoring case.
// Keywords are expected to be lowercase already (see NormalizeKeywords).
func IsRelevant(title string, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	title = strings.ToLower(title)
	for _, k := range keywords {
		if strings.Contains(title, k) {
			return true
		}
	}
	return false
}
