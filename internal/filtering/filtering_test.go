package filtering

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleMatches(t *testing.T) {
	jobTitles := []string{"Founder", "CEO", "Marketing"}

	cases := []struct {
		name  string
		title string
		want  bool
	}{
		{name: "exact match", title: "Founder", want: true},
		{name: "substring match", title: "Senior Marketing Manager", want: true},
		{name: "case insensitive", title: "co-founder & ceo", want: true},
		{name: "no match", title: "Software Engineer", want: false},
		{name: "empty title", title: "", want: false},
		{name: "whitespace title", title: "   ", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TitleMatches(tc.title, jobTitles))
		})
	}
}

func TestTitleMatchesEmptyVocabulary(t *testing.T) {
	assert.False(t, TitleMatches("Founder", nil))
	assert.False(t, TitleMatches("Founder", []string{"", "  "}))
}

func TestDetect(t *testing.T) {
	terms := Terms{
		Keywords:   []string{`"looking for a PR agency"`, "recommendations for PR"},
		JobTitles:  []string{"Founder", "CMO"},
		Industries: []string{"fintech", "healthcare"},
	}

	m := Detect(
		"We are a fintech startup looking for a PR agency ahead of our launch.",
		"Founder & CMO",
		"Acme Payments",
		terms,
	)

	assert.Equal(t, []string{`"looking for a PR agency"`}, m.Keywords)
	assert.Equal(t, []string{"Founder", "CMO"}, m.Roles)
	assert.Equal(t, []string{"fintech"}, m.Industries)
}

func TestDetectIndustryFromCompany(t *testing.T) {
	terms := Terms{Industries: []string{"healthcare"}}

	m := Detect("Need comms support for a product launch.", "CEO", "Bright Healthcare Inc", terms)

	assert.Empty(t, m.Keywords)
	assert.Empty(t, m.Roles)
	assert.Equal(t, []string{"healthcare"}, m.Industries)
}

func TestDetectNoMatches(t *testing.T) {
	terms := Terms{
		Keywords:   []string{"PR agency"},
		JobTitles:  []string{"Founder"},
		Industries: []string{"fintech"},
	}

	m := Detect("Enjoying the conference today!", "Student", "", terms)

	assert.Empty(t, m.Keywords)
	assert.Empty(t, m.Roles)
	assert.Empty(t, m.Industries)
}
