package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"leadwatch/internal/ai"
	"leadwatch/internal/util"

	"go.uber.org/zap"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Classifier judges candidate posts with a Gemini model.
type Classifier struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

func NewClassifier(generator contentGenerator, maxLogLength int, logger *zap.Logger) *Classifier {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Classifier{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

func (c *Classifier) Classify(ctx context.Context, req *ai.Request) (*ai.Verdict, error) {
	if req == nil {
		return nil, fmt.Errorf("classification request is required")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("post content is required")
	}

	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("gemini classification request",
		zap.String("author", req.AuthorName),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", util.TruncateForLog(prompt, c.maxLogLen)),
	)

	raw, err := c.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("gemini classification response",
		zap.String("author", req.AuthorName),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", util.TruncateForLog(raw, c.maxLogLen)),
	)

	verdict, err := parseVerdict(raw)
	if err != nil {
		return nil, err
	}

	verdict.Raw = raw
	return verdict, nil
}

func buildPrompt(req *ai.Request) (string, error) {
	payload := map[string]any{
		"content":        req.Content,
		"author_name":    req.AuthorName,
		"author_title":   req.AuthorTitle,
		"author_company": req.AuthorCompany,
	}

	postJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidate payload: %w", err)
	}

	keywords := "none"
	if len(req.Keywords) > 0 {
		keywords = "- " + strings.Join(req.Keywords, "\n- ")
	}

	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Candidate:\n{{POST_JSON}}\n\nSearch phrases:\n{{KEYWORDS}}\n\nJSON Response:"
	}

	prompt := strings.ReplaceAll(template, "{{POST_JSON}}", string(postJSON))
	prompt = strings.ReplaceAll(prompt, "{{KEYWORDS}}", keywords)
	return prompt, nil
}

func parseVerdict(raw string) (*ai.Verdict, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	return &ai.Verdict{
		Relevant:  coerceBool(data["relevant"]),
		Rationale: coerceString(data["rationale"]),
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
