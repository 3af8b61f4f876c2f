package raster

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"pdfslides/converter/domain"
)

// Kind describes the pixel layout of a raw image
type Kind int

const (
	KindUnknown Kind = iota
	KindJPEG         // compressed JPEG stream, passed through
	KindGray8        // one byte per pixel
	KindRGB24        // three bytes per pixel
	KindRGBA32       // four bytes per pixel
	KindBitmap       // already decoded display element
)

func (k Kind) String() string {
	switch k {
	case KindJPEG:
		return "jpeg"
	case KindGray8:
		return "gray8"
	case KindRGB24:
		return "rgb24"
	case KindRGBA32:
		return "rgba32"
	case KindBitmap:
		return "bitmap"
	}
	return "unknown"
}

// Storage describes the backing buffer of an RGBA32 image
type Storage int

const (
	StoragePlain Storage = iota
	StorageClamped
)

// JPEGQuality is used when re-encoding bitmaps that came from JPEG sources
const JPEGQuality = 90

// RawImage is an image as found in the page, before encoding
type RawImage struct {
	Width      int
	Height     int
	Kind       Kind
	Storage    Storage
	Data       []byte
	Bitmap     image.Image
	SourceMIME string
}

// Normalizer turns raw page images into self-contained encoded images
type Normalizer struct {
	logger zerolog.Logger
}

// NewNormalizer creates a new normalizer
func NewNormalizer(logger zerolog.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

var nop = NewNormalizer(zerolog.Nop())

// Normalize encodes img without logging
func Normalize(img *RawImage) *domain.EncodedImage {
	return nop.Normalize(img)
}

// Normalize converts a raw image into PNG or JPEG bytes.
// It returns nil when the image cannot be represented.
func (n *Normalizer) Normalize(img *RawImage) (out *domain.EncodedImage) {
	if img == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			n.logger.Debug().Interface("panic", r).Str("kind", img.Kind.String()).Msg("image normalization panicked")
			out = nil
		}
	}()

	if img.Kind == KindJPEG {
		if len(img.Data) == 0 {
			n.reject(img, "empty jpeg stream")
			return nil
		}
		return &domain.EncodedImage{Data: img.Data, MIMEType: domain.MIMEJPEG}
	}

	if img.Kind == KindBitmap {
		return n.fromBitmap(img)
	}

	if img.Width <= 0 || img.Height <= 0 {
		n.reject(img, "missing dimensions")
		return nil
	}

	pixels := img.Width * img.Height
	rgba := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))

	switch img.Kind {
	case KindGray8:
		if len(img.Data) != pixels {
			n.reject(img, "gray buffer size mismatch")
			return nil
		}
		for i := 0; i < pixels; i++ {
			s := img.Data[i]
			rgba.Pix[i*4] = s
			rgba.Pix[i*4+1] = s
			rgba.Pix[i*4+2] = s
			rgba.Pix[i*4+3] = 255
		}
	case KindRGB24:
		if len(img.Data) != pixels*3 {
			n.reject(img, "rgb buffer size mismatch")
			return nil
		}
		for i := 0; i < pixels; i++ {
			rgba.Pix[i*4] = img.Data[i*3]
			rgba.Pix[i*4+1] = img.Data[i*3+1]
			rgba.Pix[i*4+2] = img.Data[i*3+2]
			rgba.Pix[i*4+3] = 255
		}
	case KindRGBA32:
		if len(img.Data) != pixels*4 {
			if img.Storage == StorageClamped {
				n.reject(img, "clamped rgba buffer size mismatch")
			} else {
				n.reject(img, "rgba buffer size mismatch")
			}
			return nil
		}
		copy(rgba.Pix, img.Data)
	default:
		n.reject(img, "unsupported kind")
		return nil
	}

	data, err := encodePNG(rgba)
	if err != nil {
		n.reject(img, "png encode failed: "+err.Error())
		return nil
	}
	return &domain.EncodedImage{Data: data, MIMEType: domain.MIMEPNG}
}

// fromBitmap draws a decoded image onto an RGBA surface of its natural size
func (n *Normalizer) fromBitmap(img *RawImage) *domain.EncodedImage {
	if img.Bitmap == nil {
		n.reject(img, "missing bitmap")
		return nil
	}
	b := img.Bitmap.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		n.reject(img, "empty bitmap")
		return nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img.Bitmap, b.Min, draw.Src)

	if strings.Contains(strings.ToLower(img.SourceMIME), "jpeg") {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			n.reject(img, "jpeg encode failed: "+err.Error())
			return nil
		}
		return &domain.EncodedImage{Data: buf.Bytes(), MIMEType: domain.MIMEJPEG}
	}

	data, err := encodePNG(dst)
	if err != nil {
		n.reject(img, "png encode failed: "+err.Error())
		return nil
	}
	return &domain.EncodedImage{Data: data, MIMEType: domain.MIMEPNG}
}

func (n *Normalizer) reject(img *RawImage, reason string) {
	n.logger.Debug().
		Str("kind", img.Kind.String()).
		Int("width", img.Width).
		Int("height", img.Height).
		Int("bytes", len(img.Data)).
		Str("reason", reason).
		Msg("image skipped")
}

// encodePNG encodes an image as PNG bytes
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
