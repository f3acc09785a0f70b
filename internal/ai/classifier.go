package ai

import "context"

// Verdict is the relevance decision for a single candidate post.
type Verdict struct {
	Relevant  bool
	Rationale string
	Raw       string
}

// Request carries the candidate post and the context the model may use to
// judge it.
type Request struct {
	Content       string
	AuthorName    string
	AuthorTitle   string
	AuthorCompany string
	// Keywords are the configured search phrases, passed along for prompt
	// context only.
	Keywords []string
}

type Classifier interface {
	Classify(ctx context.Context, req *Request) (*Verdict, error)
}
