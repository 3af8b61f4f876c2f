package extract

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"pdfslides/converter/raster"
)

// MaxImagesPerPage is how many images are taken from a single page
const MaxImagesPerPage = 1

// maxFormDepth bounds recursion into form XObjects
const maxFormDepth = 2

var errUnsupportedImage = errors.New("unsupported image encoding")

// pageImages finds up to MaxImagesPerPage images painted on a page
func (e *Extractor) pageImages(ctx *model.Context, pageNum int) ([]*raster.RawImage, error) {
	pageDict, _, inh, err := ctx.PageDict(pageNum, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get page dict: %w", err)
	}
	if pageDict == nil {
		return nil, nil
	}

	content, err := e.pageContent(ctx, pageDict)
	if err != nil {
		return nil, err
	}
	if len(content) == 0 {
		return nil, nil
	}

	resources := e.dict(ctx, pageDict, "Resources")
	if resources == nil && inh != nil {
		resources = inh.Resources
	}
	if resources == nil {
		return nil, nil
	}

	scan := &imageScan{}
	e.collectImages(ctx, string(content), resources, 0, scan)
	return scan.images, nil
}

// imageScan tracks painted image candidates in paint order. A candidate
// that cannot be decoded still uses up its slot.
type imageScan struct {
	candidates int
	images     []*raster.RawImage
}

// collectImages walks paint operators in order, descending into form XObjects
func (e *Extractor) collectImages(ctx *model.Context, content string, resources types.Dict, depth int, scan *imageScan) {
	xobjects := e.dict(ctx, resources, "XObject")
	if xobjects == nil {
		return
	}

	for _, name := range e.parser.UniqueNames(content) {
		if scan.candidates >= MaxImagesPerPage {
			return
		}
		entry, ok := xobjects.Find(name)
		if !ok {
			continue
		}
		obj, err := ctx.Dereference(entry)
		if err != nil {
			continue
		}
		sd, ok := obj.(types.StreamDict)
		if !ok {
			continue
		}

		switch nameValue(ctx, sd.Dict, "Subtype") {
		case "Image":
			scan.candidates++
			img, err := e.rawImage(ctx, sd)
			if err != nil {
				e.logger.Debug().Str("xobject", name).Err(err).Msg("first image could not be decoded")
				continue
			}
			scan.images = append(scan.images, img)
		case "Form":
			if depth >= maxFormDepth {
				continue
			}
			if err := sd.Decode(); err != nil || len(sd.Content) == 0 {
				continue
			}
			formRes := e.dict(ctx, sd.Dict, "Resources")
			if formRes == nil {
				formRes = resources
			}
			e.collectImages(ctx, string(sd.Content), formRes, depth+1, scan)
		}
	}
}

// rawImage maps an image XObject onto the normalizer's raw layouts
func (e *Extractor) rawImage(ctx *model.Context, sd types.StreamDict) (*raster.RawImage, error) {
	width := intValue(ctx, sd.Dict, "Width")
	height := intValue(ctx, sd.Dict, "Height")
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions %dx%d", width, height)
	}

	filters := filterNames(ctx, sd.Dict)
	space, components := colorSpace(ctx, sd.Dict)

	if len(filters) == 1 && filters[0] == "DCTDecode" {
		if len(sd.Raw) == 0 {
			return nil, errUnsupportedImage
		}
		// CMYK JPEGs do not display reliably, so they are re-encoded from a decoded bitmap
		if components == 4 {
			bitmap, err := jpeg.Decode(bytes.NewReader(sd.Raw))
			if err != nil {
				return nil, fmt.Errorf("decode cmyk jpeg: %w", err)
			}
			return &raster.RawImage{Kind: raster.KindBitmap, Bitmap: bitmap, SourceMIME: "image/jpeg"}, nil
		}
		return &raster.RawImage{Width: width, Height: height, Kind: raster.KindJPEG, Data: sd.Raw}, nil
	}
	for _, f := range filters {
		if f == "DCTDecode" || f == "JPXDecode" || f == "JBIG2Decode" || f == "CCITTFaxDecode" {
			return nil, fmt.Errorf("%w: %s", errUnsupportedImage, f)
		}
	}

	if err := sd.Decode(); err != nil {
		return nil, fmt.Errorf("decode image stream: %w", err)
	}
	data := sd.Content
	bpc := intValue(ctx, sd.Dict, "BitsPerComponent")

	switch {
	case components == 1 && bpc == 8:
		return &raster.RawImage{Width: width, Height: height, Kind: raster.KindGray8, Data: data}, nil

	case components == 1 && bpc == 1:
		return &raster.RawImage{Width: width, Height: height, Kind: raster.KindGray8, Data: unpackBits(data, width, height, imageMaskInverted(ctx, sd.Dict))}, nil

	case components == 3 && bpc == 8:
		if alpha := e.softMask(ctx, sd.Dict, width, height); alpha != nil && len(data) == width*height*3 {
			return &raster.RawImage{
				Width:   width,
				Height:  height,
				Kind:    raster.KindRGBA32,
				Storage: raster.StoragePlain,
				Data:    mergeAlpha(data, alpha, width*height),
			}, nil
		}
		return &raster.RawImage{Width: width, Height: height, Kind: raster.KindRGB24, Data: data}, nil
	}

	return nil, fmt.Errorf("%w: %s with %d bits per component", errUnsupportedImage, space, bpc)
}

// softMask returns the decoded 8-bit gray SMask when it matches the image size
func (e *Extractor) softMask(ctx *model.Context, d types.Dict, width, height int) []byte {
	entry, ok := d.Find("SMask")
	if !ok {
		return nil
	}
	obj, err := ctx.Dereference(entry)
	if err != nil {
		return nil
	}
	mask, ok := obj.(types.StreamDict)
	if !ok {
		return nil
	}
	if intValue(ctx, mask.Dict, "Width") != width || intValue(ctx, mask.Dict, "Height") != height {
		return nil
	}
	if intValue(ctx, mask.Dict, "BitsPerComponent") != 8 {
		return nil
	}
	if err := mask.Decode(); err != nil {
		return nil
	}
	if len(mask.Content) < width*height {
		return nil
	}
	return mask.Content
}

// mergeAlpha interleaves RGB samples with an alpha channel
func mergeAlpha(rgb, alpha []byte, pixels int) []byte {
	out := make([]byte, pixels*4)
	for i := 0; i < pixels; i++ {
		out[i*4] = rgb[i*3]
		out[i*4+1] = rgb[i*3+1]
		out[i*4+2] = rgb[i*3+2]
		out[i*4+3] = alpha[i]
	}
	return out
}

// unpackBits expands 1-bit rows (padded to a byte boundary) to 8-bit gray
func unpackBits(data []byte, width, height int, inverted bool) []byte {
	stride := (width + 7) / 8
	out := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := y*stride + x/8
			if idx >= len(data) {
				return out[:y*width]
			}
			bit := data[idx]>>(7-uint(x%8))&1 == 1
			if bit != inverted {
				out[y*width+x] = 255
			}
		}
	}
	return out
}

// imageMaskInverted reports whether a /Decode [1 0] array flips the samples
func imageMaskInverted(ctx *model.Context, d types.Dict) bool {
	entry, ok := d.Find("Decode")
	if !ok {
		return false
	}
	obj, err := ctx.Dereference(entry)
	if err != nil {
		return false
	}
	arr, ok := obj.(types.Array)
	if !ok || len(arr) < 2 {
		return false
	}
	first, ok := numberValue(arr[0])
	return ok && first == 1
}

// colorSpace returns the color space name and its component count
func colorSpace(ctx *model.Context, d types.Dict) (string, int) {
	entry, ok := d.Find("ColorSpace")
	if !ok {
		return "", 0
	}
	obj, err := ctx.Dereference(entry)
	if err != nil {
		return "", 0
	}

	switch cs := obj.(type) {
	case types.Name:
		return string(cs), componentsFor(string(cs))
	case types.Array:
		if len(cs) == 0 {
			return "", 0
		}
		family, ok := cs[0].(types.Name)
		if !ok {
			return "", 0
		}
		if string(family) == "ICCBased" && len(cs) > 1 {
			ref, err := ctx.Dereference(cs[1])
			if err != nil {
				return "ICCBased", 0
			}
			if profile, ok := ref.(types.StreamDict); ok {
				return "ICCBased", intValue(ctx, profile.Dict, "N")
			}
		}
		return string(family), componentsFor(string(family))
	}
	return "", 0
}

func componentsFor(space string) int {
	switch space {
	case "DeviceGray", "CalGray", "G":
		return 1
	case "DeviceRGB", "CalRGB", "RGB":
		return 3
	case "DeviceCMYK", "CMYK":
		return 4
	}
	return 0
}

// filterNames returns the stream's filter chain
func filterNames(ctx *model.Context, d types.Dict) []string {
	entry, ok := d.Find("Filter")
	if !ok {
		return nil
	}
	obj, err := ctx.Dereference(entry)
	if err != nil {
		return nil
	}

	switch f := obj.(type) {
	case types.Name:
		return []string{string(f)}
	case types.Array:
		names := make([]string, 0, len(f))
		for _, item := range f {
			if n, ok := item.(types.Name); ok {
				names = append(names, string(n))
			}
		}
		return names
	}
	return nil
}

// dict resolves a dictionary valued entry
func (e *Extractor) dict(ctx *model.Context, d types.Dict, key string) types.Dict {
	entry, ok := d.Find(key)
	if !ok {
		return nil
	}
	obj, err := ctx.Dereference(entry)
	if err != nil {
		return nil
	}
	if out, ok := obj.(types.Dict); ok {
		return out
	}
	return nil
}

func nameValue(ctx *model.Context, d types.Dict, key string) string {
	entry, ok := d.Find(key)
	if !ok {
		return ""
	}
	obj, err := ctx.Dereference(entry)
	if err != nil {
		return ""
	}
	if n, ok := obj.(types.Name); ok {
		return string(n)
	}
	return ""
}

func intValue(ctx *model.Context, d types.Dict, key string) int {
	entry, ok := d.Find(key)
	if !ok {
		return 0
	}
	obj, err := ctx.Dereference(entry)
	if err != nil {
		return 0
	}
	v, _ := numberValue(obj)
	return int(v)
}

func numberValue(obj types.Object) (float64, bool) {
	switch v := obj.(type) {
	case types.Integer:
		return float64(v), true
	case types.Float:
		return float64(v), true
	}
	return 0, false
}
