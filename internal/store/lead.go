package store

import (
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Lead is a qualified, deduplicated prospect persisted for the dashboard.
type Lead struct {
	Identity          string    `json:"identity"`
	Platform          string    `json:"platform"`
	AuthorName        string    `json:"author_name"`
	AuthorHandle      string    `json:"author_handle"`
	AuthorTitle       string    `json:"author_title"`
	Company           string    `json:"company"`
	Content           string    `json:"content"`
	PostURL           string    `json:"post_url"`
	BudgetMention     string    `json:"budget_mention"`
	MatchedKeywords   []string  `json:"matched_keywords"`
	MatchedRoles      []string  `json:"matched_roles"`
	MatchedIndustries []string  `json:"matched_industries"`
	Rationale         string    `json:"rationale"`
	DiscoveredAt      time.Time `json:"discovered_at"`
	Dismissed         bool      `json:"dismissed"`
}

var activityIDPattern = regexp.MustCompile(`(\d{19})`)

// IdentityKey derives the stable dedup key for a post. The platform activity
// id wins when one is present in either the provider id or the URL, otherwise
// the canonicalized URL is used.
func IdentityKey(providerID, rawURL string) string {
	if id := activityIDPattern.FindString(providerID); id != "" {
		return id
	}
	if id := activityIDPattern.FindString(rawURL); id != "" {
		return id
	}
	return canonicalURL(rawURL)
}

func canonicalURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return strings.TrimRight(rawURL, "/")
	}

	parsed.Host = strings.ToLower(parsed.Host)
	parsed.RawQuery = ""
	parsed.Fragment = ""
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	return parsed.String()
}
