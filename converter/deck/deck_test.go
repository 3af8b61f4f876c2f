package deck

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfslides/converter/domain"
	"pdfslides/converter/themes"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.Set(0, 0, color.RGBA{R: 1, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func sampleSlides(t *testing.T) []domain.SlideRecord {
	return []domain.SlideRecord{
		{
			PageNumber:   1,
			Title:        "R&D <plans>",
			Points:       []string{"First point", "Second point"},
			Notes:        "Speak about the chart.\nThen pause.",
			Image:        &domain.EncodedImage{Data: pngBytes(t, 40, 10), MIMEType: domain.MIMEPNG},
			ImageAltText: "A wide bar chart",
		},
		{
			PageNumber: 2,
			Title:      "Summary",
		},
	}
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	files := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		files[f.Name] = string(content)
	}
	return files
}

func wellFormed(t *testing.T, name, content string) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(content))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return
		}
		require.NoError(t, err, name)
	}
}

func TestWritePPTX(t *testing.T) {
	date := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)
	var buf bytes.Buffer

	manifest, err := Write(&buf, sampleSlides(t), Options{
		Title:  "report_presentation",
		Theme:  themes.MintyFresh,
		Format: FormatPPTX,
		Date:   date,
	})
	require.NoError(t, err)

	require.Len(t, manifest.Slides, 4)
	layouts := []Layout{}
	for _, s := range manifest.Slides {
		layouts = append(layouts, s.Layout)
	}
	assert.Equal(t, []Layout{LayoutTitle, LayoutImage, LayoutText, LayoutClosing}, layouts)
	assert.True(t, manifest.Slides[1].HasNotes)
	assert.False(t, manifest.Slides[2].HasNotes)
	assert.Equal(t, 2, manifest.Slides[2].PageNumber)
	assert.Equal(t, "minty-fresh", manifest.Theme)

	files := readZip(t, buf.Bytes())

	slideCount := 0
	for name, content := range files {
		if strings.HasPrefix(name, "ppt/slides/slide") && strings.HasSuffix(name, ".xml") {
			slideCount++
		}
		if strings.HasSuffix(name, ".xml") || strings.HasSuffix(name, ".rels") {
			wellFormed(t, name, content)
		}
	}
	assert.Equal(t, 4, slideCount)

	title := files["ppt/slides/slide1.xml"]
	assert.Contains(t, title, "report_presentation")
	assert.Contains(t, title, "Generated on: 3/5/2024")
	assert.Contains(t, title, "Page 1")

	imageSlide := files["ppt/slides/slide2.xml"]
	assert.Contains(t, imageSlide, "R&amp;D &lt;plans&gt;")
	assert.Contains(t, imageSlide, `descr="A wide bar chart"`)
	assert.Contains(t, imageSlide, "Second point")
	assert.Contains(t, files["ppt/slides/_rels/slide2.xml.rels"], "slideLayout2.xml")
	assert.Contains(t, files["ppt/slides/_rels/slide2.xml.rels"], "../media/image2.png")
	assert.Contains(t, files["ppt/notesSlides/notesSlide2.xml"], "Speak about the chart.")
	assert.Contains(t, files["ppt/notesSlides/notesSlide2.xml"], "Then pause.")
	assert.NotEmpty(t, files["ppt/media/image2.png"])

	textSlide := files["ppt/slides/slide3.xml"]
	assert.Contains(t, textSlide, NoPointsText)
	assert.Contains(t, files["ppt/slides/_rels/slide3.xml.rels"], "slideLayout1.xml")
	_, hasNotes := files["ppt/notesSlides/notesSlide3.xml"]
	assert.False(t, hasNotes)

	assert.Contains(t, files["ppt/slides/slide4.xml"], "Thank You!")
	assert.Contains(t, files["ppt/slides/slide4.xml"], "Page 4")
	assert.Contains(t, files["ppt/slideMasters/slideMaster1.xml"], themes.MintyFresh.Background.OOXML())
	assert.Contains(t, files["[Content_Types].xml"], "/ppt/slides/slide4.xml")
	assert.Contains(t, files["ppt/presentation.xml"], `r:id="rId7"`)
}

func TestWritePPTXEmptyTitleFallback(t *testing.T) {
	var buf bytes.Buffer
	manifest, err := Write(&buf, []domain.SlideRecord{{Points: []string{"only"}}}, Options{Title: "deck"})
	require.NoError(t, err)
	assert.Equal(t, "Slide 1", manifest.Slides[1].Title)
	assert.Equal(t, FormatPPTX, manifest.Format)
	assert.Equal(t, themes.DefaultID, manifest.Theme)
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	manifest, err := Write(&buf, sampleSlides(t), Options{Title: "handout", Format: FormatPDF})
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	assert.Len(t, manifest.Slides, 4)
	for _, s := range manifest.Slides {
		assert.False(t, s.HasNotes)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriteFailure(t *testing.T) {
	_, err := Write(failingWriter{}, sampleSlides(t), Options{Title: "x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSerialization)
	assert.Equal(t, "Failed to generate and save the presentation file.", domain.UserMessage(err))
}

func TestFitImage(t *testing.T) {
	wide := fitImage(&domain.EncodedImage{Data: pngBytes(t, 400, 100), MIMEType: domain.MIMEPNG}, false)
	assert.InDelta(t, imageBoxW, wide.w, 1e-9)
	assert.InDelta(t, imageBoxW/4, wide.h, 1e-9)
	assert.InDelta(t, (slideWidth-imageBoxW)/2, wide.x, 1e-9)

	tall := fitImage(&domain.EncodedImage{Data: pngBytes(t, 100, 200), MIMEType: domain.MIMEPNG}, true)
	assert.InDelta(t, imageBoxHPts, tall.h, 1e-9)
	assert.InDelta(t, imageBoxHPts/2, tall.w, 1e-9)

	jpeg := fitImage(&domain.EncodedImage{Data: []byte("not decodable"), MIMEType: domain.MIMEJPEG}, false)
	assert.Equal(t, "jpeg", jpeg.ext)
	assert.InDelta(t, imageBoxH, jpeg.h, 1e-9)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "report_presentation.pptx", FileName("report.pdf", FormatPPTX))
	assert.Equal(t, "report_presentation.pdf", FileName("/tmp/report.PDF", FormatPDF))
	assert.Equal(t, "document_presentation.pptx", FileName("", ""))
	assert.Equal(t, "report_presentation", TitleFromFileName("report_presentation.pptx"))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("PDF")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatPPTX, f)

	_, err = ParseFormat("key")
	assert.Error(t, err)
}
