package gemini

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeCallResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeCaller struct {
	mu        sync.Mutex
	responses []fakeCallResponse
	calls     int
	prompts   []string
}

func (f *fakeCaller) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, content := range contents {
		for _, part := range content.Parts {
			f.prompts = append(f.prompts, part.Text)
		}
	}

	res := f.responses[f.calls]
	f.calls++
	return res.resp, res.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func disableWait(t *testing.T) {
	t.Helper()
	original := wait
	wait = func(context.Context, time.Duration) error { return nil }
	t.Cleanup(func() { wait = original })
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	disableWait(t)

	caller := &fakeCaller{responses: []fakeCallResponse{
		{err: genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}},
		{resp: textResponse("retry ok")},
	}}

	g := &Generator{
		caller:     caller,
		model:      "gemini-2.5-flash",
		maxRetries: 2,
		logger:     zap.NewNop(),
	}

	output, err := g.GenerateContent(context.Background(), "classify this")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}

	if caller.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", caller.calls)
	}

	if len(caller.prompts) == 0 || caller.prompts[0] != "classify this" {
		t.Fatalf("unexpected prompts: %v", caller.prompts)
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	disableWait(t)

	tempErr := genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}
	caller := &fakeCaller{responses: []fakeCallResponse{{err: tempErr}, {err: tempErr}}}

	g := &Generator{
		caller:     caller,
		model:      "gemini-2.5-flash",
		maxRetries: 2,
		logger:     zap.NewNop(),
	}

	if _, err := g.GenerateContent(context.Background(), "msg"); err == nil {
		t.Fatal("expected error after retries exhausted")
	}

	if caller.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", caller.calls)
	}
}

func TestGeneratorDoesNotRetryPermanentError(t *testing.T) {
	caller := &fakeCaller{responses: []fakeCallResponse{
		{err: genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}},
	}}

	g := &Generator{
		caller:     caller,
		model:      "gemini-2.5-flash",
		maxRetries: 3,
		logger:     zap.NewNop(),
	}

	if _, err := g.GenerateContent(context.Background(), "msg"); err == nil {
		t.Fatal("expected permanent error to surface immediately")
	}

	if caller.calls != 1 {
		t.Fatalf("expected single call, got %d", caller.calls)
	}
}

func TestGeneratorRejectsEmptyPrompt(t *testing.T) {
	g := &Generator{caller: &fakeCaller{}, model: "gemini-2.5-flash", maxRetries: 1, logger: zap.NewNop()}

	if _, err := g.GenerateContent(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}
