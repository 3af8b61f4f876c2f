package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfslides/converter/domain"
)

func buildPDF(t *testing.T, build func(pdf *gofpdf.Fpdf)) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "mm", "A4", "")
	build(pdf)
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func testImage(t *testing.T, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: 120, B: uint8(y * 30), A: 255})
		}
	}
	var buf bytes.Buffer
	if format == "JPG" {
		require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	} else {
		require.NoError(t, png.Encode(&buf, img))
	}
	return buf.Bytes()
}

func addImagePage(t *testing.T, pdf *gofpdf.Fpdf, name, format string) {
	pdf.AddPage()
	pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: format}, bytes.NewReader(testImage(t, format)))
	pdf.ImageOptions(name, 20, 20, 80, 40, false, gofpdf.ImageOptions{ImageType: format}, 0, "")
}

func TestExtractTextAndImages(t *testing.T) {
	data := buildPDF(t, func(pdf *gofpdf.Fpdf) {
		pdf.SetFont("Helvetica", "", 14)

		pdf.AddPage()
		pdf.Text(20, 20, "Quarterly revenue grew strongly")
		pdf.Text(20, 30, "across every region")

		addImagePage(t, pdf, "chart", "PNG")
		addImagePage(t, pdf, "photo", "JPG")

		pdf.AddPage()
	})

	pages, err := New(zerolog.Nop()).Extract(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, pages, 4)

	for i, p := range pages {
		assert.Equal(t, i+1, p.PageNumber)
	}

	assert.Contains(t, pages[0].Text, "Quarterly revenue grew strongly")
	assert.Contains(t, pages[0].Text, "across every region")
	assert.False(t, pages[0].HasImage())

	require.True(t, pages[1].HasImage())
	assert.Equal(t, domain.MIMEPNG, pages[1].Image.MIMEType)
	decoded, err := png.Decode(bytes.NewReader(pages[1].Image.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 8), decoded.Bounds())

	require.True(t, pages[2].HasImage())
	assert.Equal(t, domain.MIMEJPEG, pages[2].Image.MIMEType)
	_, err = jpeg.Decode(bytes.NewReader(pages[2].Image.Data))
	assert.NoError(t, err)

	assert.Empty(t, pages[3].Text)
	assert.False(t, pages[3].HasImage())
}

func TestExtractKeepsInteriorWhitespace(t *testing.T) {
	data := buildPDF(t, func(pdf *gofpdf.Fpdf) {
		pdf.SetFont("Courier", "", 14)
		pdf.AddPage()
		pdf.Text(20, 20, "alpha      beta")
	})

	pages, err := New(zerolog.Nop()).Extract(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "alpha      beta", pages[0].Text)
}

func TestJoinRuns(t *testing.T) {
	assert.Equal(t, "first  row second\trow", joinRuns([]string{"  first  row", "second\trow  "}))
	assert.Empty(t, joinRuns([]string{" ", ""}))
	assert.Empty(t, joinRuns(nil))
}

// twoImagePDF builds a one page document painting an undecodable JPX image
// and a 1x1 RGB image in the given order.
func twoImagePDF(order ...string) []byte {
	var content bytes.Buffer
	for i, name := range order {
		fmt.Fprintf(&content, "q 50 0 0 50 %d 10 cm /%s Do Q\n", 10+i*60, name)
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 200 200] /Resources << /XObject << /Broken 4 0 R /Pixel 5 0 R >> >> /Contents 6 0 R >>",
		"<< /Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /JPXDecode /Length 3 >>\nstream\nabc\nendstream",
		"<< /Type /XObject /Subtype /Image /Width 1 /Height 1 /ColorSpace /DeviceRGB /BitsPerComponent 8 /Length 3 >>\nstream\n\xff\x00\x00\nendstream",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtractFirstPaintedImageOnly(t *testing.T) {
	pages, err := New(zerolog.Nop()).Extract(context.Background(), twoImagePDF("Pixel", "Broken"))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	require.True(t, pages[0].HasImage())
	assert.Equal(t, domain.MIMEPNG, pages[0].Image.MIMEType)

	// an undecodable first image is not replaced by a later one
	pages, err = New(zerolog.Nop()).Extract(context.Background(), twoImagePDF("Broken", "Pixel"))
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.False(t, pages[0].HasImage())
}

func TestExtractEmptyInput(t *testing.T) {
	_, err := New(zerolog.Nop()).Extract(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
	assert.Equal(t, domain.ErrorTypePrecondition, domain.TypeOf(err))
}

func TestExtractCorrupted(t *testing.T) {
	_, err := New(zerolog.Nop()).Extract(context.Background(), []byte("this is definitely not a pdf document"))
	require.Error(t, err)
	assert.Equal(t, domain.ErrorTypeExtraction, domain.TypeOf(err))
	assert.True(t, errors.Is(err, domain.ErrCorrupted) || errors.Is(err, domain.ErrExtraction))
}

func TestExtractPasswordProtected(t *testing.T) {
	data := buildPDF(t, func(pdf *gofpdf.Fpdf) {
		pdf.SetProtection(gofpdf.CnProtectPrint, "secret", "owner")
		pdf.SetFont("Helvetica", "", 14)
		pdf.AddPage()
		pdf.Text(20, 20, "classified")
	})

	_, err := New(zerolog.Nop()).Extract(context.Background(), data)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPasswordProtected)
}

func TestExtractCancelled(t *testing.T) {
	data := buildPDF(t, func(pdf *gofpdf.Fpdf) {
		pdf.SetFont("Helvetica", "", 14)
		pdf.AddPage()
		pdf.Text(20, 20, "first")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(zerolog.Nop()).Extract(ctx, data)
	assert.ErrorIs(t, err, context.Canceled)
}
