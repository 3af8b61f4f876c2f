package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"pdfslides/converter/domain"
)

// DefaultModel is the Gemini model used when none is configured
const DefaultModel = "gemini-2.5-flash"

// Part is one ordered element of a generation request.
// A part carries either Text or inline Data with its MIME type.
type Part struct {
	Text     string
	MIMEType string
	Data     []byte
}

// TextPart creates a text part
func TextPart(s string) Part {
	return Part{Text: s}
}

// BlobPart creates an inline data part
func BlobPart(mimeType string, data []byte) Part {
	return Part{MIMEType: mimeType, Data: data}
}

// IsBlob reports whether the part carries inline data
func (p Part) IsBlob() bool {
	return len(p.Data) > 0
}

// Generator sends ordered parts to a generative model and returns its text reply
type Generator interface {
	Generate(ctx context.Context, parts []Part) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface
type GeneratorFunc func(ctx context.Context, parts []Part) (string, error)

// Generate calls f(ctx, parts)
func (f GeneratorFunc) Generate(ctx context.Context, parts []Part) (string, error) {
	return f(ctx, parts)
}

// GeminiGenerator calls the Gemini API with a JSON response type
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini-backed generator.
// An empty API key yields domain.ErrMissingCredential.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, domain.ConfigError("Gemini API key is not configured. Set GEMINI_API_KEY.", domain.ErrMissingCredential)
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

// Model returns the configured model name
func (g *GeminiGenerator) Model() string {
	return g.model
}

// Generate sends the parts in order and concatenates the text of the first candidate
func (g *GeminiGenerator) Generate(ctx context.Context, parts []Part) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.ResponseMIMEType = "application/json"

	req := make([]genai.Part, 0, len(parts))
	for _, p := range parts {
		if p.IsBlob() {
			req = append(req, genai.Blob{MIMEType: p.MIMEType, Data: p.Data})
			continue
		}
		req = append(req, genai.Text(p.Text))
	}

	resp, err := model.GenerateContent(ctx, req...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: empty response")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}

// Close releases the underlying client
func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

// WithTimeout bounds each call to gen. An attempt that runs out of time while
// the caller is still waiting is reported as a plain, retryable error.
func WithTimeout(gen Generator, d time.Duration) Generator {
	if d <= 0 {
		return gen
	}
	return GeneratorFunc(func(ctx context.Context, parts []Part) (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		text, err := gen.Generate(attemptCtx, parts)
		if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("generation timed out after %s", d)
		}
		return text, err
	})
}
