package deck

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"
	"time"

	"pdfslides/converter/domain"
	"pdfslides/converter/themes"
)

// Format selects the output file type
type Format string

const (
	FormatPPTX Format = "pptx"
	FormatPDF  Format = "pdf"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatPPTX, "":
		return FormatPPTX, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unknown output format: %s", s)
}

// MediaType returns the MIME type of the format
func (f Format) MediaType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "application/vnd.openxmlformats-officedocument.presentationml.presentation"
}

// Layout names the arrangement used for a deck slide
type Layout string

const (
	LayoutTitle   Layout = "title"
	LayoutText    Layout = "text"
	LayoutImage   Layout = "image"
	LayoutClosing Layout = "closing"
)

// Fixed deck wording
const (
	GeneratedOnPrefix = "Generated on: "
	NoPointsText      = "No specific points generated for this slide."
	ClosingText       = "Thank You!"
)

// Options configures a deck
type Options struct {
	Title  string
	Theme  themes.Theme
	Format Format
	Date   time.Time
}

// ManifestSlide describes one slide of a written deck
type ManifestSlide struct {
	Number     int    `json:"number"`
	Layout     Layout `json:"layout"`
	Title      string `json:"title"`
	PageNumber int    `json:"pageNumber,omitempty"`
	HasNotes   bool   `json:"hasNotes"`
}

// Manifest lists the slides that were written, in order
type Manifest struct {
	Title  string          `json:"title"`
	Format Format          `json:"format"`
	Theme  string          `json:"theme"`
	Slides []ManifestSlide `json:"slides"`
}

// FileName derives the output file name from the uploaded document name
func FileName(inputName string, format Format) string {
	base := filepath.Base(strings.TrimSpace(inputName))
	if base == "." || base == "/" || base == "" {
		base = "document"
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if format == "" {
		format = FormatPPTX
	}
	return base + "_presentation." + string(format)
}

// TitleFromFileName strips the extension from a deck file name
func TitleFromFileName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Write renders the slides as a complete deck: a title slide, one slide per
// record and a closing slide.
func Write(w io.Writer, slides []domain.SlideRecord, opts Options) (*Manifest, error) {
	if opts.Theme.ID == "" {
		opts.Theme = themes.Default()
	}
	if opts.Format == "" {
		opts.Format = FormatPPTX
	}
	if opts.Date.IsZero() {
		opts.Date = time.Now()
	}

	planned := plan(slides, opts)

	var err error
	switch opts.Format {
	case FormatPPTX:
		err = writePPTX(w, planned, opts)
	case FormatPDF:
		err = writePDF(w, planned, opts)
	default:
		err = fmt.Errorf("unknown output format: %s", opts.Format)
	}
	if err != nil {
		return nil, domain.SerializationError("Failed to generate and save the presentation file.",
			fmt.Errorf("%w: %v", domain.ErrSerialization, err))
	}

	manifest := &Manifest{
		Title:  opts.Title,
		Format: opts.Format,
		Theme:  opts.Theme.ID,
		Slides: make([]ManifestSlide, len(planned)),
	}
	for i, p := range planned {
		manifest.Slides[i] = ManifestSlide{
			Number:     p.number,
			Layout:     p.layout,
			Title:      p.title,
			PageNumber: p.record.PageNumber,
			HasNotes:   opts.Format == FormatPPTX && p.record.Notes != "",
		}
	}
	return manifest, nil
}

// plannedSlide is a renderer independent description of one deck slide
type plannedSlide struct {
	number int
	layout Layout
	title  string
	record domain.SlideRecord
	image  *imageFit
}

// imageFit is the image box after aspect-ratio fitting, in inches
type imageFit struct {
	x, y, w, h float64
	ext        string
}

// Slide geometry in inches, 16:9
const (
	slideWidth   = 10.0
	slideHeight  = 5.625
	bannerHeight = 0.65
	imageBoxW    = 7.5
	imageBoxH    = 4.35 // image alone
	imageBoxHPts = 3.15 // image above bullet points
	imageBoxY    = 0.8
	pointsTop    = 4.0
	pointsHeight = 1.2
)

func plan(slides []domain.SlideRecord, opts Options) []plannedSlide {
	out := make([]plannedSlide, 0, len(slides)+2)
	out = append(out, plannedSlide{number: 1, layout: LayoutTitle, title: opts.Title})

	for i, s := range slides {
		p := plannedSlide{
			number: i + 2,
			layout: LayoutText,
			title:  s.Title,
			record: s,
		}
		if p.title == "" {
			p.title = fmt.Sprintf("Slide %d", i+1)
		}
		if s.HasImage() {
			p.layout = LayoutImage
			p.image = fitImage(s.Image, len(s.Points) > 0)
		}
		out = append(out, p)
	}

	out = append(out, plannedSlide{number: len(slides) + 2, layout: LayoutClosing, title: ClosingText})
	return out
}

// fitImage centers the image in the image box keeping its aspect ratio
func fitImage(img *domain.EncodedImage, withPoints bool) *imageFit {
	boxH := imageBoxH
	if withPoints {
		boxH = imageBoxHPts
	}
	fit := &imageFit{
		x:   (slideWidth - imageBoxW) / 2,
		y:   imageBoxY,
		w:   imageBoxW,
		h:   boxH,
		ext: "png",
	}
	if img.MIMEType == domain.MIMEJPEG {
		fit.ext = "jpeg"
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return fit
	}

	ratio := float64(cfg.Width) / float64(cfg.Height)
	if ratio > imageBoxW/boxH {
		fit.h = imageBoxW / ratio
	} else {
		fit.w = boxH * ratio
	}
	fit.x = (slideWidth - fit.w) / 2
	fit.y = imageBoxY + (boxH-fit.h)/2
	return fit
}

// formatDate renders the generation date the way the title slide shows it
func formatDate(t time.Time) string {
	return t.Format("1/2/2006")
}
