package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"pdfslides/converter/domain"
)

// SlideSynthesizer turns one page into one slide result
type SlideSynthesizer interface {
	Synthesize(ctx context.Context, page domain.PageRecord) domain.SlideResult
}

// Options configures a Synthesizer
type Options struct {
	Retry  RetryConfig
	Logger zerolog.Logger
}

// DefaultOptions returns retry defaults and a no-op logger
func DefaultOptions() Options {
	return Options{
		Retry:  DefaultRetryConfig(),
		Logger: zerolog.Nop(),
	}
}

// Synthesizer asks a generator for slide content and never fails.
// Every failure is folded into a degraded slide result.
type Synthesizer struct {
	generator Generator
	logger    zerolog.Logger
}

// New creates a synthesizer around gen
func New(gen Generator, opts Options) *Synthesizer {
	return &Synthesizer{
		generator: WithRetry(gen, opts.Retry, opts.Logger),
		logger:    opts.Logger,
	}
}

// Synthesize produces the slide for one page
func (s *Synthesizer) Synthesize(ctx context.Context, page domain.PageRecord) domain.SlideResult {
	log := s.logger.With().Int("page", page.PageNumber).Logger()

	if !page.HasImage() && strings.TrimSpace(page.Text) == "" {
		log.Warn().Msg("page has no content for slide generation")
		return EmptyPage(page)
	}

	reply, err := s.generator.Generate(ctx, BuildParts(page))
	if err != nil {
		log.Error().Err(err).Msg("slide generation failed")
		return GenerationFailed(page, err)
	}

	result := ParseReply(page, reply)
	if result.IsDegraded() {
		log.Warn().Str("reason", string(result.Reason)).Str("reply", truncateRunes(reply, 200)).Msg("model reply rejected")
	}
	return result
}

var fencePattern = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?\\s*```$")

// StripFence removes a surrounding markdown code fence
func StripFence(s string) string {
	s = strings.TrimSpace(s)
	if m := fencePattern.FindStringSubmatch(s); m != nil && m[1] != "" {
		return strings.TrimSpace(m[1])
	}
	return s
}

// reply is the JSON shape requested from the model. Fields are decoded one
// at a time so a badly typed field falls back alone.
type reply struct {
	Title        json.RawMessage `json:"title"`
	Points       json.RawMessage `json:"points"`
	Notes        json.RawMessage `json:"notes"`
	ImageAltText json.RawMessage `json:"imageAltText"`
}

// ParseReply interprets a model reply for page
func ParseReply(page domain.PageRecord, raw string) domain.SlideResult {
	body := StripFence(raw)
	if !strings.HasPrefix(body, "{") || !strings.HasSuffix(body, "}") {
		return InvalidReply(page, body)
	}

	var parsed reply
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return GenerationFailed(page, fmt.Errorf("decode model reply: %w", err))
	}

	// only a missing, empty or non-string title gets the default
	title := stringField(parsed.Title)
	if title == "" {
		title = defaultTitle(page)
	}

	slide := domain.SlideRecord{
		PageNumber: page.PageNumber,
		Title:      title,
		Points:     parsePoints(parsed.Points),
		Notes:      stringField(parsed.Notes),
		Image:      page.Image,
	}
	if page.HasImage() {
		slide.ImageAltText = stringField(parsed.ImageAltText)
	}
	return domain.Content(slide)
}

// stringField returns a JSON string value, or "" for anything else
func stringField(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// parsePoints keeps string members of a JSON array and drops anything else
func parsePoints(raw json.RawMessage) []string {
	points := []string{}
	var items []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return points
	}
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			points = append(points, s)
		}
	}
	return points
}

func defaultTitle(page domain.PageRecord) string {
	if page.HasImage() {
		return fmt.Sprintf("Image from Page %d", page.PageNumber)
	}
	return fmt.Sprintf("Content from Page %d", page.PageNumber)
}

// EmptyPage is the stand-in for a page without text or image
func EmptyPage(page domain.PageRecord) domain.SlideResult {
	return domain.Degraded(domain.ReasonEmpty, domain.SlideRecord{
		PageNumber: page.PageNumber,
		Title:      domain.TitleEmptyPage,
		Points:     []string{"This page had no discernible content for a slide."},
		Notes:      fmt.Sprintf("Original page %d was empty or content too sparse.", page.PageNumber),
	})
}

// InvalidReply is the stand-in for a reply that is not a JSON object
func InvalidReply(page domain.PageRecord, body string) domain.SlideResult {
	return domain.Degraded(domain.ReasonFormat, domain.SlideRecord{
		PageNumber: page.PageNumber,
		Title:      domain.TitleInvalidResponse,
		Points: []string{
			"Could not parse AI's response structure.",
			fmt.Sprintf("Raw response (preview): %s...", truncateRunes(body, 100)),
		},
		Notes: fmt.Sprintf("Original text (preview): %s... Page %d.", truncateRunes(page.Text, 100), page.PageNumber),
		Image: page.Image,
	})
}

// GenerationFailed is the stand-in for a failed generator call
func GenerationFailed(page domain.PageRecord, err error) domain.SlideResult {
	msg := err.Error()
	return domain.Degraded(domain.ReasonError, domain.SlideRecord{
		PageNumber: page.PageNumber,
		Title:      domain.TitleProcessingError,
		Points:     []string{fmt.Sprintf("AI Error on page %d: %s", page.PageNumber, truncateRunes(msg, 150))},
		Notes: fmt.Sprintf("Error on page %d. Full Error: %s. Original text (first 100 chars): %s...",
			page.PageNumber, msg, truncateRunes(page.Text, 100)),
		Image: page.Image,
	})
}
