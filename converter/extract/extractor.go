package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"pdfslides/converter/domain"
	"pdfslides/converter/raster"
)

// Extractor produces one PageRecord per page of a PDF
type Extractor struct {
	logger     zerolog.Logger
	parser     *Parser
	normalizer *raster.Normalizer
}

// New creates a new page extractor
func New(logger zerolog.Logger) *Extractor {
	return &Extractor{
		logger:     logger,
		parser:     NewParser(),
		normalizer: raster.NewNormalizer(logger),
	}
}

// Extract reads every page's text and first painted image
func (e *Extractor) Extract(ctx context.Context, data []byte) ([]domain.PageRecord, error) {
	if len(data) == 0 {
		return nil, domain.PreconditionError("The uploaded file is empty.", domain.ErrEmptyInput)
	}

	pdfCtx, err := readContext(data)
	if err != nil {
		return nil, classifyReadError(err)
	}

	text, err := openTextLayer(data)
	if err != nil {
		return nil, domain.ExtractionError("Failed to initialize the PDF text engine.",
			fmt.Errorf("%w: %v", domain.ErrRuntimeSetup, err))
	}

	e.logger.Debug().
		Str("version", pdfCtx.HeaderVersion.String()).
		Int("pages", pdfCtx.PageCount).
		Msg("pdf opened")

	pages := make([]domain.PageRecord, 0, pdfCtx.PageCount)
	for pageNum := 1; pageNum <= pdfCtx.PageCount; pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages = append(pages, e.extractPage(pdfCtx, text, pageNum))
	}

	return pages, nil
}

// extractPage builds a single PageRecord; failures degrade to missing fields
func (e *Extractor) extractPage(pdfCtx *model.Context, text *textLayer, pageNum int) domain.PageRecord {
	record := domain.PageRecord{PageNumber: pageNum}

	pageText, err := text.PageText(pageNum)
	if err != nil {
		e.logger.Warn().Int("page", pageNum).Err(err).Msg("page text unavailable")
	}
	record.Text = pageText

	record.Image = e.firstImage(pdfCtx, pageNum)
	return record
}

// firstImage returns the page's encoded image, or nil on any failure
func (e *Extractor) firstImage(pdfCtx *model.Context, pageNum int) (img *domain.EncodedImage) {
	defer func() {
		if r := recover(); r != nil {
			err := pkgerrors.Errorf("image extraction panicked: %v", r)
			e.logger.Warn().Stack().Err(err).Int("page", pageNum).Msg("page image dropped")
			img = nil
		}
	}()

	raws, err := e.pageImages(pdfCtx, pageNum)
	if err != nil {
		e.logger.Warn().Int("page", pageNum).Err(err).Msg("image extraction failed")
		return nil
	}
	for _, raw := range raws {
		if encoded := e.normalizer.Normalize(raw); encoded != nil {
			return encoded
		}
	}
	return nil
}

// pageContent concatenates a page's decoded content streams
func (e *Extractor) pageContent(ctx *model.Context, pageDict types.Dict) ([]byte, error) {
	contentsEntry, found := pageDict.Find("Contents")
	if !found {
		return nil, nil // Page has no content
	}

	var buf bytes.Buffer

	switch contents := contentsEntry.(type) {
	case types.IndirectRef:
		// Single content stream, which may itself resolve to an array
		obj, err := ctx.Dereference(contents)
		if err != nil {
			return nil, err
		}
		if arr, ok := obj.(types.Array); ok {
			e.appendStreams(ctx, arr, &buf)
			break
		}
		content, err := e.decodeContentStream(ctx, contents)
		if err != nil {
			return nil, err
		}
		buf.Write(content)

	case types.Array:
		e.appendStreams(ctx, contents, &buf)
	}

	return buf.Bytes(), nil
}

func (e *Extractor) appendStreams(ctx *model.Context, arr types.Array, buf *bytes.Buffer) {
	for _, item := range arr {
		ref, ok := item.(types.IndirectRef)
		if !ok {
			continue
		}
		content, err := e.decodeContentStream(ctx, ref)
		if err != nil {
			continue
		}
		buf.Write(content)
		buf.WriteByte('\n')
	}
}

// decodeContentStream decodes a single content stream
func (e *Extractor) decodeContentStream(ctx *model.Context, ref types.IndirectRef) ([]byte, error) {
	obj, err := ctx.Dereference(ref)
	if err != nil {
		return nil, err
	}

	sd, ok := obj.(types.StreamDict)
	if !ok {
		return nil, nil
	}

	if err := sd.Decode(); err != nil {
		return nil, nil // Skip streams we can't decode
	}

	return sd.Content, nil
}

// readContext parses the document model, recovering from parser panics
func readContext(data []byte) (ctx *model.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			ctx, err = nil, fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err = api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, err
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("failed to determine page count: %w", err)
	}
	return ctx, nil
}

// classifyReadError maps parser failures onto the extraction sentinels
func classifyReadError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, pdfcpu.ErrWrongPassword),
		strings.Contains(msg, "password"),
		strings.Contains(msg, "encrypt"):
		return domain.ExtractionError("The PDF is password protected and cannot be processed.",
			fmt.Errorf("%w: %v", domain.ErrPasswordProtected, err))
	case strings.Contains(msg, "header"),
		strings.Contains(msg, "xref"),
		strings.Contains(msg, "trailer"),
		strings.Contains(msg, "page tree"),
		strings.Contains(msg, "eof"),
		strings.Contains(msg, "panic"),
		strings.Contains(msg, "corrupt"),
		strings.Contains(msg, "page count"):
		return domain.ExtractionError("Invalid or corrupted PDF file.",
			fmt.Errorf("%w: %v", domain.ErrCorrupted, err))
	}
	return domain.ExtractionError("Failed to parse PDF: "+err.Error(),
		fmt.Errorf("%w: %v", domain.ErrExtraction, err))
}
