package apify

import (
	"regexp"
	"strings"
)

type Posts struct {
	Items []*Post
}

// Post is a single dataset item returned by the search actor.
type Post struct {
	ActivityID string `json:"activity_id,omitempty"`
	PostURL    string `json:"post_url,omitempty"`
	URL        string `json:"url,omitempty"`
	Text       string `json:"text,omitempty"`
	PostedAt   string `json:"posted_at,omitempty"`
	Author     Author `json:"author,omitempty"`
}

type Author struct {
	Name       string `json:"name,omitempty"`
	Headline   string `json:"headline,omitempty"`
	Username   string `json:"username,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`
}

// Link returns the post URL, falling back to the alternate url field some
// actor versions populate instead.
func (p *Post) Link() string {
	if p.PostURL != "" {
		return p.PostURL
	}
	return p.URL
}

// Key returns the provider-side identity of the post: the activity id when
// present, otherwise the post URL.
func (p *Post) Key() string {
	if p.ActivityID != "" {
		return p.ActivityID
	}
	return p.Link()
}

var companyAtPattern = regexp.MustCompile(`(?i)\bat\b(.+)`)

// Company extracts the company name from the author headline, parsing
// patterns like "CMO at Acme Corp", "Marketing Director @ Beauty Co" and
// "VP Marketing | Food Inc".
func (p *Post) Company() string {
	headline := strings.TrimSpace(p.Author.Headline)
	if headline == "" {
		return ""
	}

	if m := companyAtPattern.FindStringSubmatch(headline); m != nil {
		return strings.TrimSpace(m[1])
	}

	for _, sep := range []string{"@", "|"} {
		if _, after, found := strings.Cut(headline, sep); found {
			return strings.TrimSpace(after)
		}
	}

	return ""
}

func (ps *Posts) Len() int {
	return len(ps.Items)
}

// Dedupe removes posts sharing the same key, keeping the first occurrence.
// The same post can match a keyword more than once across result pages.
// Returns the keys of the removed posts.
func (ps *Posts) Dedupe() []string {
	seen := make(map[string]struct{}, len(ps.Items))
	kept := make([]*Post, 0, len(ps.Items))
	removed := make([]string, 0)

	for _, post := range ps.Items {
		key := post.Key()
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			removed = append(removed, key)
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, post)
	}

	ps.Items = kept
	return removed
}
