package filtering

import "strings"

// Terms holds the configured matching vocabulary for a run.
type Terms struct {
	Keywords   []string
	JobTitles  []string
	Industries []string
}

// Matches records which configured terms a candidate post hit. The matched
// sets are stored on the lead for later filtering in the dashboard.
type Matches struct {
	Keywords   []string
	Roles      []string
	Industries []string
}

// TitleMatches reports whether the author title contains any of the
// configured job titles, case-insensitively. An empty title never matches.
func TitleMatches(authorTitle string, jobTitles []string) bool {
	title := strings.ToLower(strings.TrimSpace(authorTitle))
	if title == "" {
		return false
	}

	for _, want := range jobTitles {
		want = strings.ToLower(strings.TrimSpace(stripQuotes(want)))
		if want == "" {
			continue
		}
		if strings.Contains(title, want) {
			return true
		}
	}

	return false
}

// Detect returns the keywords, roles and industries matched by the candidate.
// Keywords are matched against the post content, roles against the author
// title and content, industries against the content, title and company.
// Industry matches are informational only and never gate inclusion.
func Detect(content, authorTitle, company string, terms Terms) Matches {
	contentLower := strings.ToLower(content)
	titleLower := strings.ToLower(authorTitle)
	companyLower := strings.ToLower(company)

	var m Matches

	for _, keyword := range terms.Keywords {
		clean := strings.ToLower(stripQuotes(keyword))
		if clean != "" && strings.Contains(contentLower, clean) {
			m.Keywords = append(m.Keywords, keyword)
		}
	}

	for _, role := range terms.JobTitles {
		clean := strings.ToLower(stripQuotes(role))
		if clean == "" {
			continue
		}
		if strings.Contains(titleLower, clean) || strings.Contains(contentLower, clean) {
			m.Roles = append(m.Roles, role)
		}
	}

	for _, industry := range terms.Industries {
		clean := strings.ToLower(stripQuotes(industry))
		if clean == "" {
			continue
		}
		if strings.Contains(contentLower, clean) || strings.Contains(titleLower, clean) || strings.Contains(companyLower, clean) {
			m.Industries = append(m.Industries, industry)
		}
	}

	return m
}

// stripQuotes removes the surrounding quotes used for exact-phrase search
// keywords so they match against plain post text.
func stripQuotes(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}
