package domain

import "encoding/base64"

// Supported MIME types for encoded page images
const (
	MIMEPNG  = "image/png"
	MIMEJPEG = "image/jpeg"
)

// EncodedImage is a self-contained encoded raster image.
// Data and MIMEType always travel together, so a page or slide either has
// both or neither.
type EncodedImage struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mimeType"`
}

// DataURI returns the image as a base64 data URI
func (img *EncodedImage) DataURI() string {
	if img == nil {
		return ""
	}
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// PageRecord is the extraction output for one PDF page
type PageRecord struct {
	PageNumber int
	Text       string
	Image      *EncodedImage
}

// HasImage reports whether an image was extracted for the page
func (p PageRecord) HasImage() bool {
	return p.Image != nil && len(p.Image.Data) > 0
}

// SlideRecord is the synthesized content for one output slide
type SlideRecord struct {
	PageNumber   int           `json:"pageNumber"`
	Title        string        `json:"title"`
	Points       []string      `json:"points"`
	Notes        string        `json:"notes,omitempty"`
	Image        *EncodedImage `json:"image,omitempty"`
	ImageAltText string        `json:"imageAltText,omitempty"`
}

// HasImage reports whether the slide carries an image
func (s SlideRecord) HasImage() bool {
	return s.Image != nil && len(s.Image.Data) > 0
}

// HasContent reports whether the slide has anything worth rendering
func (s SlideRecord) HasContent() bool {
	return s.Title != "" || len(s.Points) > 0 || s.HasImage()
}

// SlideStatus tags a synthesis result as real content or a stand-in
type SlideStatus string

const (
	StatusContent  SlideStatus = "content"
	StatusDegraded SlideStatus = "degraded"
)

// DegradedReason explains why a slide is a stand-in
type DegradedReason string

const (
	ReasonNone   DegradedReason = ""
	ReasonEmpty  DegradedReason = "empty_page"
	ReasonFormat DegradedReason = "invalid_response"
	ReasonError  DegradedReason = "generation_error"
)

// Titles used for degraded slides
const (
	TitleEmptyPage       = "Empty Page"
	TitleInvalidResponse = "Error: Invalid AI Response"
	TitleProcessingError = "Error Processing Content"
)

// SlideResult is the tagged outcome of synthesizing one page
type SlideResult struct {
	Status SlideStatus    `json:"status"`
	Reason DegradedReason `json:"reason,omitempty"`
	Slide  SlideRecord    `json:"slide"`
}

// Content wraps a slide produced from a valid model reply
func Content(slide SlideRecord) SlideResult {
	return SlideResult{Status: StatusContent, Slide: slide}
}

// Degraded wraps a stand-in slide with the reason it was produced
func Degraded(reason DegradedReason, slide SlideRecord) SlideResult {
	return SlideResult{Status: StatusDegraded, Reason: reason, Slide: slide}
}

// IsDegraded reports whether the result is a stand-in
func (r SlideResult) IsDegraded() bool {
	return r.Status == StatusDegraded
}

// Accepted is the default acceptance rule for the final deck.
// Content slides need a title, points or an image. Degraded slides only
// contribute when they still carry the page image.
func (r SlideResult) Accepted() bool {
	if r.IsDegraded() {
		return r.Slide.HasImage()
	}
	return r.Slide.HasContent()
}
