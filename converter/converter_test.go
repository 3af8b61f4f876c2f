package converter

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfslides/converter/deck"
	"pdfslides/converter/domain"
	"pdfslides/converter/synth"
	"pdfslides/observability"
)

var pdfData = []byte("%PDF-1.7\n% test document\n")

var pngImage = &domain.EncodedImage{Data: []byte{0x89, 'P', 'N', 'G'}, MIMEType: domain.MIMEPNG}

type fakeExtractor struct {
	pages []domain.PageRecord
	err   error
}

func (f *fakeExtractor) Extract(ctx context.Context, _ []byte) ([]domain.PageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.pages, f.err
}

// fakeSynth answers from a per-page table and records calls
type fakeSynth struct {
	mu      sync.Mutex
	results map[int]domain.SlideResult
	panics  map[int]bool
	calls   []int
	onCall  func(page int)
}

func (f *fakeSynth) Synthesize(_ context.Context, page domain.PageRecord) domain.SlideResult {
	f.mu.Lock()
	f.calls = append(f.calls, page.PageNumber)
	onCall := f.onCall
	f.mu.Unlock()
	if onCall != nil {
		onCall(page.PageNumber)
	}
	if f.panics[page.PageNumber] {
		panic("synthesizer exploded")
	}
	if r, ok := f.results[page.PageNumber]; ok {
		return r
	}
	return domain.Content(domain.SlideRecord{
		PageNumber: page.PageNumber,
		Title:      fmt.Sprintf("Slide for page %d", page.PageNumber),
		Points:     []string{"point"},
		Image:      page.Image,
	})
}

func (f *fakeSynth) called() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

func longText(n int) string {
	return strings.Repeat("word ", n)
}

func TestGenerateAndConfirm(t *testing.T) {
	extractor := &fakeExtractor{pages: []domain.PageRecord{
		{PageNumber: 1, Text: longText(20)},
		{PageNumber: 2, Text: "", Image: pngImage},
	}}
	fs := &fakeSynth{}

	var progress []domain.Progress
	conv := New(extractor, fs, Options{
		OnProgress: func(p domain.Progress) { progress = append(progress, p) },
		Now:        func() time.Time { return time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC) },
	})

	slides, err := conv.Generate(context.Background(), Input{Name: "quarterly.pdf", Data: pdfData, ContentType: "application/pdf"})
	require.NoError(t, err)
	require.Len(t, slides, 2)
	assert.Equal(t, 1, slides[0].PageNumber)
	assert.Equal(t, 2, slides[1].PageNumber)

	state := conv.State()
	assert.Equal(t, domain.StageAwaitingReview, state.Stage)
	assert.Equal(t, "Slide content generated. Ready for your review.", state.Message)
	assert.Equal(t, "quarterly_presentation.pptx", state.FileName)
	assert.NotEmpty(t, state.RunID)

	var stages []domain.Stage
	var percents []int
	for _, p := range progress {
		stages = append(stages, p.Stage)
		if p.Stage == domain.StageGenerating && strings.HasPrefix(p.Message, "AI:") {
			percents = append(percents, p.Percent)
		}
	}
	assert.Equal(t, []int{50, 100}, percents)
	assert.Contains(t, stages, domain.StageParsing)
	assert.Equal(t, "AI: Analyzing page 2/2...", progress[len(progress)-2].Message)

	var buf bytes.Buffer
	manifest, err := conv.Confirm(context.Background(), &buf)
	require.NoError(t, err)
	assert.Len(t, manifest.Slides, 4)
	assert.Equal(t, "quarterly_presentation", manifest.Title)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.NotEmpty(t, zr.File)

	state = conv.State()
	assert.Equal(t, domain.StageDone, state.Stage)
	assert.Equal(t, `Presentation "quarterly_presentation.pptx" generated successfully!`, state.Message)
	assert.Same(t, manifest, state.Manifest)
}

func TestGenerateSkipsSparsePages(t *testing.T) {
	extractor := &fakeExtractor{pages: []domain.PageRecord{
		{PageNumber: 1, Text: "  short  "},
		{PageNumber: 2, Text: longText(10)},
		{PageNumber: 3, Text: "tiny", Image: pngImage},
	}}
	fs := &fakeSynth{}
	conv := New(extractor, fs, Options{})

	slides, err := conv.Generate(context.Background(), Input{Name: "a.pdf", Data: pdfData})
	require.NoError(t, err)

	assert.Equal(t, []int{2, 3}, fs.called())
	assert.Len(t, slides, 2)
}

func TestGenerateAcceptance(t *testing.T) {
	extractor := &fakeExtractor{pages: []domain.PageRecord{
		{PageNumber: 1, Text: longText(10)},
		{PageNumber: 2, Text: longText(10), Image: pngImage},
		{PageNumber: 3, Text: longText(10)},
		{PageNumber: 4, Text: longText(10)},
	}}
	fs := &fakeSynth{results: map[int]domain.SlideResult{
		1: synth.GenerationFailed(domain.PageRecord{PageNumber: 1, Text: longText(10)}, errors.New("quota")),
		2: synth.InvalidReply(domain.PageRecord{PageNumber: 2, Image: pngImage}, "nope"),
		3: domain.Content(domain.SlideRecord{PageNumber: 3, Title: domain.TitleEmptyPage}),
		4: domain.Content(domain.SlideRecord{PageNumber: 4}),
	}}
	conv := New(extractor, fs, Options{})

	slides, err := conv.Generate(context.Background(), Input{Name: "a.pdf", Data: pdfData})
	require.NoError(t, err)

	// degraded page 1 has no image, page 4 is blank content
	require.Len(t, slides, 2)
	assert.Equal(t, domain.TitleInvalidResponse, slides[0].Title)
	assert.Equal(t, domain.TitleEmptyPage, slides[1].Title)
}

func TestGenerateNoSlides(t *testing.T) {
	extractor := &fakeExtractor{pages: []domain.PageRecord{{PageNumber: 1, Text: "x"}}}
	conv := New(extractor, &fakeSynth{}, Options{})

	_, err := conv.Generate(context.Background(), Input{Name: "a.pdf", Data: pdfData})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoSlides)

	state := conv.State()
	assert.Equal(t, domain.StageError, state.Stage)
	assert.Equal(t, "No suitable slides could be generated from the PDF content.", state.Message)
	assert.Nil(t, state.Slides)
	assert.Equal(t, state.Message, state.Progress().Error)
}

func TestGenerateNoPages(t *testing.T) {
	conv := New(&fakeExtractor{}, &fakeSynth{}, Options{})

	_, err := conv.Generate(context.Background(), Input{Name: "a.pdf", Data: pdfData})
	assert.ErrorIs(t, err, domain.ErrNoPages)
	assert.Equal(t, "Could not extract any content (text or images) from the PDF.", conv.State().Message)
}

func TestGenerateExtractionError(t *testing.T) {
	extractErr := domain.ExtractionError("The PDF is password protected and cannot be processed.", domain.ErrPasswordProtected)
	conv := New(&fakeExtractor{err: extractErr}, &fakeSynth{}, Options{})

	_, err := conv.Generate(context.Background(), Input{Name: "a.pdf", Data: pdfData})
	assert.ErrorIs(t, err, domain.ErrPasswordProtected)
	assert.Equal(t, domain.StageError, conv.State().Stage)
}

func TestGeneratePreconditions(t *testing.T) {
	tests := []struct {
		name   string
		synth  synth.SlideSynthesizer
		input  Input
		target error
	}{
		{"missing credential", nil, Input{Data: pdfData}, domain.ErrMissingCredential},
		{"declared non-pdf", &fakeSynth{}, Input{Data: pdfData, ContentType: "image/png"}, domain.ErrInvalidFileType},
		{"sniffed non-pdf", &fakeSynth{}, Input{Data: []byte("hello world")}, domain.ErrInvalidFileType},
		{"empty", &fakeSynth{}, Input{ContentType: "application/pdf"}, domain.ErrEmptyInput},
		{"empty undeclared", &fakeSynth{}, Input{}, domain.ErrEmptyInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := &fakeExtractor{pages: []domain.PageRecord{{PageNumber: 1, Text: longText(10)}}}
			conv := New(extractor, tt.synth, Options{})

			_, err := conv.Generate(context.Background(), tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, domain.ErrorTypePrecondition, domain.TypeOf(err))
			assert.Equal(t, domain.StageError, conv.State().Stage)
		})
	}
}

func TestContentTypeWithParameters(t *testing.T) {
	extractor := &fakeExtractor{pages: []domain.PageRecord{{PageNumber: 1, Text: longText(10)}}}
	conv := New(extractor, &fakeSynth{}, Options{})

	_, err := conv.Generate(context.Background(), Input{Data: pdfData, ContentType: "application/pdf; charset=binary"})
	assert.NoError(t, err)
}

func TestGeneratePanicDropsPage(t *testing.T) {
	extractor := &fakeExtractor{pages: []domain.PageRecord{
		{PageNumber: 1, Text: longText(10)},
		{PageNumber: 2, Text: longText(10)},
	}}
	var logs bytes.Buffer
	logger := observability.NewLogger(observability.LogConfig{Level: "error", Format: "json", Output: &logs})
	conv := New(extractor, &fakeSynth{panics: map[int]bool{1: true}}, Options{Logger: logger})

	slides, err := conv.Generate(context.Background(), Input{Data: pdfData})
	require.NoError(t, err)
	require.Len(t, slides, 1)
	assert.Equal(t, 2, slides[0].PageNumber)

	assert.Contains(t, logs.String(), "slide synthesis panicked: synthesizer exploded")
	assert.Contains(t, logs.String(), `"stack":`)
}

func TestGenerateCancelledBetweenPages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	extractor := &fakeExtractor{pages: []domain.PageRecord{
		{PageNumber: 1, Text: longText(10)},
		{PageNumber: 2, Text: longText(10)},
		{PageNumber: 3, Text: longText(10)},
	}}
	fs := &fakeSynth{onCall: func(page int) {
		if page == 1 {
			cancel()
		}
	}}
	conv := New(extractor, fs, Options{})

	_, err := conv.Generate(ctx, Input{Data: pdfData})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{1}, fs.called())
	assert.Equal(t, domain.StageError, conv.State().Stage)
}

func TestGenerateParallelKeepsOrder(t *testing.T) {
	var pages []domain.PageRecord
	for i := 1; i <= 12; i++ {
		pages = append(pages, domain.PageRecord{PageNumber: i, Text: longText(10)})
	}
	pages[4].Text = "sparse"

	var mu sync.Mutex
	var percents []int
	conv := New(&fakeExtractor{pages: pages}, &fakeSynth{}, Options{
		Workers: 4,
		OnProgress: func(p domain.Progress) {
			if p.Stage == domain.StageGenerating && strings.HasPrefix(p.Message, "AI:") {
				mu.Lock()
				percents = append(percents, p.Percent)
				mu.Unlock()
			}
		},
	})

	slides, err := conv.Generate(context.Background(), Input{Data: pdfData})
	require.NoError(t, err)
	require.Len(t, slides, 11)
	for i := 1; i < len(slides); i++ {
		assert.Less(t, slides[i-1].PageNumber, slides[i].PageNumber)
	}
	assert.Len(t, percents, 12)
	assert.IsNonDecreasing(t, percents)
	assert.Equal(t, 100, percents[len(percents)-1])
}

func TestCancelAndTransitions(t *testing.T) {
	extractor := &fakeExtractor{pages: []domain.PageRecord{{PageNumber: 1, Text: longText(10)}}}
	conv := New(extractor, &fakeSynth{}, Options{})

	assert.ErrorIs(t, conv.Cancel(), domain.ErrInvalidTransition)
	_, err := conv.Confirm(context.Background(), &bytes.Buffer{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = conv.Generate(context.Background(), Input{Data: pdfData})
	require.NoError(t, err)

	_, err = conv.Generate(context.Background(), Input{Data: pdfData})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	require.NoError(t, conv.Cancel())
	state := conv.State()
	assert.Equal(t, domain.StageIdle, state.Stage)
	assert.Equal(t, "Presentation generation cancelled.", state.Message)
	assert.Nil(t, state.Slides)

	// a new run may start from idle again
	_, err = conv.Generate(context.Background(), Input{Data: pdfData})
	require.NoError(t, err)
	assert.ErrorIs(t, conv.Reset(), domain.ErrInvalidTransition)
}

// gateWriter blocks the first write until released
type gateWriter struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
	buf     bytes.Buffer
}

func (g *gateWriter) Write(p []byte) (int, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.buf.Write(p)
}

func TestConfirmClaimsReviewStage(t *testing.T) {
	extractor := &fakeExtractor{pages: []domain.PageRecord{{PageNumber: 1, Text: longText(10)}}}
	conv := New(extractor, &fakeSynth{}, Options{})
	_, err := conv.Generate(context.Background(), Input{Data: pdfData})
	require.NoError(t, err)

	w := &gateWriter{started: make(chan struct{}), release: make(chan struct{})}
	done := make(chan error, 1)
	go func() {
		_, err := conv.Confirm(context.Background(), w)
		done <- err
	}()
	<-w.started

	assert.Equal(t, domain.StageCreatingOutput, conv.State().Stage)
	assert.ErrorIs(t, conv.Cancel(), domain.ErrInvalidTransition)
	_, err = conv.Confirm(context.Background(), &bytes.Buffer{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	close(w.release)
	require.NoError(t, <-done)
	assert.Equal(t, domain.StageDone, conv.State().Stage)
}

func TestConcurrentConfirmAndCancelOneWins(t *testing.T) {
	extractor := &fakeExtractor{pages: []domain.PageRecord{{PageNumber: 1, Text: longText(10)}}}

	for i := 0; i < 50; i++ {
		conv := New(extractor, &fakeSynth{}, Options{})
		_, err := conv.Generate(context.Background(), Input{Data: pdfData})
		require.NoError(t, err)

		var wg sync.WaitGroup
		var mu sync.Mutex
		confirmed, cancelled := 0, 0
		start := make(chan struct{})

		for j := 0; j < 4; j++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				<-start
				if _, err := conv.Confirm(context.Background(), &bytes.Buffer{}); err == nil {
					mu.Lock()
					confirmed++
					mu.Unlock()
				} else {
					assert.ErrorIs(t, err, domain.ErrInvalidTransition)
				}
			}()
			go func() {
				defer wg.Done()
				<-start
				if err := conv.Cancel(); err == nil {
					mu.Lock()
					cancelled++
					mu.Unlock()
				} else {
					assert.ErrorIs(t, err, domain.ErrInvalidTransition)
				}
			}()
		}
		close(start)
		wg.Wait()

		require.Equal(t, 1, confirmed+cancelled, "iteration %d", i)
		if confirmed == 1 {
			assert.Equal(t, domain.StageDone, conv.State().Stage)
		} else {
			assert.Equal(t, domain.StageIdle, conv.State().Stage)
		}
	}
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("no space left") }

func TestConfirmFailureDiscardsSlides(t *testing.T) {
	extractor := &fakeExtractor{pages: []domain.PageRecord{{PageNumber: 1, Text: longText(10)}}}
	conv := New(extractor, &fakeSynth{}, Options{})

	_, err := conv.Generate(context.Background(), Input{Data: pdfData})
	require.NoError(t, err)

	_, err = conv.Confirm(context.Background(), brokenWriter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSerialization)

	state := conv.State()
	assert.Equal(t, domain.StageError, state.Stage)
	assert.Equal(t, "Failed to generate and save the presentation file.", state.Message)
	assert.Nil(t, state.Slides)

	require.NoError(t, conv.Reset())
	assert.Equal(t, domain.StageIdle, conv.State().Stage)
}

func TestConfirmPDFFormat(t *testing.T) {
	extractor := &fakeExtractor{pages: []domain.PageRecord{{PageNumber: 1, Text: longText(10)}}}
	conv := New(extractor, &fakeSynth{}, Options{Format: deck.FormatPDF})

	_, err := conv.Generate(context.Background(), Input{Name: "notes.pdf", Data: pdfData})
	require.NoError(t, err)
	assert.Equal(t, "notes_presentation.pdf", conv.State().FileName)

	var buf bytes.Buffer
	_, err = conv.Confirm(context.Background(), &buf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 33, percent(1, 3))
	assert.Equal(t, 67, percent(2, 3))
	assert.Equal(t, 100, percent(3, 3))
	assert.Equal(t, 0, percent(1, 0))
}
