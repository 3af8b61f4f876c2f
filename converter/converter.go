package converter

import (
	"context"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pdfslides/converter/deck"
	"pdfslides/converter/domain"
	"pdfslides/converter/synth"
	"pdfslides/converter/themes"
)

const (
	// MinTextLength is the shortest trimmed page text worth a slide when the page has no image
	MinTextLength = 30

	// PDFContentType is the only accepted upload type
	PDFContentType = "application/pdf"
)

// Extractor turns PDF bytes into one record per page
type Extractor interface {
	Extract(ctx context.Context, data []byte) ([]domain.PageRecord, error)
}

// Input is an uploaded document
type Input struct {
	Name        string
	Data        []byte
	ContentType string // declared type; sniffed from Data when empty
}

// Options holds the configuration for a conversion
type Options struct {
	Workers       int // 1 keeps synthesis strictly sequential
	MinTextLength int
	Theme         themes.Theme
	Format        deck.Format
	Logger        zerolog.Logger
	OnProgress    func(domain.Progress)
	Now           func() time.Time
}

// State is a snapshot of the pipeline. Err is set only in the error stage and
// Slides only once content has been generated.
type State struct {
	RunID    string
	Stage    domain.Stage
	Message  string
	Percent  int
	Err      error
	Slides   []domain.SlideRecord
	FileName string
	Manifest *deck.Manifest
}

// Progress converts the state into the UI progress form
func (s State) Progress() domain.Progress {
	p := domain.Progress{Stage: s.Stage, Message: s.Message, Percent: s.Percent}
	if s.Err != nil {
		p.Error = domain.UserMessage(s.Err)
	}
	return p
}

// Converter drives one document at a time through
// idle -> parsing -> generating -> awaiting-preview -> creating-output -> done.
type Converter struct {
	extractor Extractor
	synth     synth.SlideSynthesizer
	opts      Options
	logger    zerolog.Logger

	mu     sync.Mutex
	state  State
	emitMu sync.Mutex
}

// New creates a converter. A nil synthesizer is allowed; Generate then fails
// with a missing credential error.
func New(extractor Extractor, synthesizer synth.SlideSynthesizer, opts Options) *Converter {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MinTextLength <= 0 {
		opts.MinTextLength = MinTextLength
	}
	if opts.Theme.ID == "" {
		opts.Theme = themes.Default()
	}
	if opts.Format == "" {
		opts.Format = deck.FormatPPTX
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Converter{
		extractor: extractor,
		synth:     synthesizer,
		opts:      opts,
		logger:    opts.Logger,
		state:     State{Stage: domain.StageIdle, Message: domain.StageIdle.HelpText()},
	}
}

// State returns a snapshot of the current state
func (c *Converter) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	if s.Slides != nil {
		s.Slides = append([]domain.SlideRecord(nil), s.Slides...)
	}
	return s
}

// Theme returns the theme used for the deck
func (c *Converter) Theme() themes.Theme {
	return c.opts.Theme
}

// Format returns the deck output format
func (c *Converter) Format() deck.Format {
	return c.opts.Format
}

// Generate extracts the document and synthesizes one slide per usable page.
// On success the converter waits in the awaiting-preview stage for Confirm or Cancel.
func (c *Converter) Generate(ctx context.Context, in Input) ([]domain.SlideRecord, error) {
	runID := uuid.NewString()
	if err := c.begin(runID, domain.StageIdle, domain.StageDone, domain.StageError); err != nil {
		return nil, err
	}
	logger := c.logger.With().Str("run_id", runID).Str("file", in.Name).Logger()

	if err := c.checkInput(in); err != nil {
		return nil, c.fail(logger, err)
	}

	// Step 1: Extract pages
	c.update(domain.StageParsing, "Parsing PDF (text and images)...", 0)
	pages, err := c.extractor.Extract(ctx, in.Data)
	if err != nil {
		return nil, c.fail(logger, err)
	}
	if len(pages) == 0 {
		return nil, c.fail(logger, domain.ExtractionError(
			"Could not extract any content (text or images) from the PDF.", domain.ErrNoPages))
	}
	logger.Info().Int("pages", len(pages)).Msg("pdf parsed")

	// Step 2: Synthesize slides
	c.update(domain.StageGenerating, domain.StageGenerating.HelpText(), 0)
	var results []*domain.SlideResult
	if c.opts.Workers > 1 {
		results, err = c.synthesizeParallel(ctx, logger, pages)
	} else {
		results, err = c.synthesizeSequential(ctx, logger, pages)
	}
	if err != nil {
		return nil, c.fail(logger, domain.SynthesisError("Presentation generation was interrupted.", err))
	}

	// Step 3: Keep the slides worth showing
	slides := make([]domain.SlideRecord, 0, len(results))
	degraded := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.IsDegraded() {
			degraded++
		}
		if r.Accepted() {
			slides = append(slides, r.Slide)
		}
	}
	if len(slides) == 0 {
		return nil, c.fail(logger, domain.EmptyResultError(
			"No suitable slides could be generated from the PDF content.", domain.ErrNoSlides))
	}
	logger.Info().Int("slides", len(slides)).Int("degraded", degraded).Msg("slide content generated")

	c.mu.Lock()
	c.state.Slides = slides
	c.state.FileName = deck.FileName(in.Name, c.opts.Format)
	c.mu.Unlock()
	c.update(domain.StageAwaitingReview, "Slide content generated. Ready for your review.", 100)

	return append([]domain.SlideRecord(nil), slides...), nil
}

// Confirm serializes the previewed slides into w
func (c *Converter) Confirm(ctx context.Context, w io.Writer) (*deck.Manifest, error) {
	message := "Creating PowerPoint presentation..."
	if c.opts.Format == deck.FormatPDF {
		message = "Creating PDF presentation..."
	}

	// the stage check and the move to creating-output share one critical
	// section so only one confirm or cancel leaves awaiting-review
	c.mu.Lock()
	if c.state.Stage != domain.StageAwaitingReview {
		stage := c.state.Stage
		c.mu.Unlock()
		return nil, transitionError("confirm", stage)
	}
	slides := c.state.Slides
	fileName := c.state.FileName
	logger := c.logger.With().Str("run_id", c.state.RunID).Logger()
	c.state.Stage = domain.StageCreatingOutput
	c.state.Message = message
	c.state.Percent = 0
	p := c.state.Progress()
	c.mu.Unlock()
	c.emit(p)

	if err := ctx.Err(); err != nil {
		return nil, c.fail(logger, domain.SerializationError("Failed to generate and save the presentation file.", err))
	}

	manifest, err := deck.Write(w, slides, deck.Options{
		Title:  deck.TitleFromFileName(fileName),
		Theme:  c.opts.Theme,
		Format: c.opts.Format,
		Date:   c.opts.Now(),
	})
	if err != nil {
		return nil, c.fail(logger, err)
	}

	c.mu.Lock()
	c.state.Manifest = manifest
	c.mu.Unlock()
	c.update(domain.StageDone, fmt.Sprintf("Presentation \"%s\" generated successfully!", fileName), 100)
	logger.Info().Str("output", fileName).Int("deck_slides", len(manifest.Slides)).Msg("presentation written")
	return manifest, nil
}

// Cancel discards the previewed slides and returns to idle
func (c *Converter) Cancel() error {
	c.mu.Lock()
	if c.state.Stage != domain.StageAwaitingReview {
		stage := c.state.Stage
		c.mu.Unlock()
		return transitionError("cancel", stage)
	}
	c.state = State{
		RunID:   c.state.RunID,
		Stage:   domain.StageIdle,
		Message: "Presentation generation cancelled.",
	}
	p := c.state.Progress()
	c.mu.Unlock()
	c.emit(p)
	return nil
}

// Reset returns a finished or failed converter to idle
func (c *Converter) Reset() error {
	c.mu.Lock()
	switch c.state.Stage {
	case domain.StageIdle, domain.StageDone, domain.StageError:
	default:
		stage := c.state.Stage
		c.mu.Unlock()
		return transitionError("reset", stage)
	}
	c.state = State{}
	c.mu.Unlock()

	c.update(domain.StageIdle, domain.StageIdle.HelpText(), 0)
	return nil
}

func (c *Converter) checkInput(in Input) error {
	if c.synth == nil {
		return domain.PreconditionError("Gemini API key is not configured. Set GEMINI_API_KEY.", domain.ErrMissingCredential)
	}
	if in.ContentType != "" && !isPDF(in.ContentType) {
		return domain.PreconditionError("Invalid file type. Please upload a PDF.",
			fmt.Errorf("%w: %s", domain.ErrInvalidFileType, in.ContentType))
	}
	if len(in.Data) == 0 {
		return domain.PreconditionError("The uploaded file is empty.", domain.ErrEmptyInput)
	}
	if in.ContentType == "" {
		if sniffed := http.DetectContentType(in.Data); !isPDF(sniffed) {
			return domain.PreconditionError("Invalid file type. Please upload a PDF.",
				fmt.Errorf("%w: %s", domain.ErrInvalidFileType, sniffed))
		}
	}
	return nil
}

func isPDF(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == PDFContentType
}

// skip reports whether a page is too sparse to be worth a generator call
func (c *Converter) skip(page domain.PageRecord) bool {
	if page.HasImage() {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(page.Text)) < c.opts.MinTextLength
}

func (c *Converter) synthesizeSequential(ctx context.Context, logger zerolog.Logger, pages []domain.PageRecord) ([]*domain.SlideResult, error) {
	results := make([]*domain.SlideResult, len(pages))
	total := len(pages)

	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.update(domain.StageGenerating, analyzingMessage(page, total), percent(i+1, total))

		if c.skip(page) {
			logger.Debug().Int("page", page.PageNumber).Msg("skipping sparse page")
			continue
		}
		results[i] = c.synthesize(ctx, logger, page)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// synthesizeParallel runs a bounded pool; results are slotted by page index
// so the deck keeps extraction order while progress counts completions.
func (c *Converter) synthesizeParallel(ctx context.Context, logger zerolog.Logger, pages []domain.PageRecord) ([]*domain.SlideResult, error) {
	results := make([]*domain.SlideResult, len(pages))
	total := len(pages)

	var doneMu sync.Mutex
	done := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)

	for i, page := range pages {
		i, page := i, page
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if c.skip(page) {
				logger.Debug().Int("page", page.PageNumber).Msg("skipping sparse page")
			} else {
				results[i] = c.synthesize(gctx, logger, page)
			}

			doneMu.Lock()
			done++
			c.update(domain.StageGenerating, analyzingMessage(page, total), percent(done, total))
			doneMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// synthesize isolates a page: a panic drops the page instead of the run
func (c *Converter) synthesize(ctx context.Context, logger zerolog.Logger, page domain.PageRecord) (result *domain.SlideResult) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Errorf("slide synthesis panicked: %v", r)
			logger.Error().Stack().Err(err).Int("page", page.PageNumber).Msg("page dropped")
			result = nil
		}
	}()

	res := c.synth.Synthesize(ctx, page)
	if res.IsDegraded() {
		logger.Warn().Int("page", page.PageNumber).Str("reason", string(res.Reason)).Msg("degraded slide")
	}
	return &res
}

func analyzingMessage(page domain.PageRecord, total int) string {
	return fmt.Sprintf("AI: Analyzing page %d/%d...", page.PageNumber, total)
}

func percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(done) / float64(total) * 100))
}

func transitionError(op string, stage domain.Stage) error {
	return domain.PreconditionError(
		fmt.Sprintf("Cannot %s while %s.", op, stage),
		fmt.Errorf("%w: %s from %s", domain.ErrInvalidTransition, op, stage))
}

// begin claims the converter for a new run
func (c *Converter) begin(runID string, allowed ...domain.Stage) error {
	c.mu.Lock()
	stage := c.state.Stage
	ok := false
	for _, s := range allowed {
		if s == stage {
			ok = true
			break
		}
	}
	if !ok {
		c.mu.Unlock()
		return transitionError("generate", stage)
	}
	c.state = State{RunID: runID, Stage: domain.StageParsing, Message: domain.StageParsing.HelpText()}
	c.mu.Unlock()
	return nil
}

// update moves to a stage and notifies the progress callback
func (c *Converter) update(stage domain.Stage, message string, pct int) {
	c.mu.Lock()
	c.state.Stage = stage
	c.state.Message = message
	c.state.Percent = pct
	c.state.Err = nil
	p := c.state.Progress()
	c.mu.Unlock()
	c.emit(p)
}

// fail moves to the error stage, discarding any slides
func (c *Converter) fail(logger zerolog.Logger, err error) error {
	logger.Error().Err(err).Str("error_type", string(domain.TypeOf(err))).Msg("conversion failed")

	c.mu.Lock()
	c.state.Stage = domain.StageError
	c.state.Message = domain.UserMessage(err)
	c.state.Percent = 0
	c.state.Err = err
	c.state.Slides = nil
	c.state.Manifest = nil
	p := c.state.Progress()
	c.mu.Unlock()
	c.emit(p)
	return err
}

func (c *Converter) emit(p domain.Progress) {
	if c.opts.OnProgress == nil {
		return
	}
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.opts.OnProgress(p)
}
