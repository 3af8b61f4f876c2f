package deck

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"pdfslides/converter/themes"
)

const (
	emuPerInch = 914400

	nsA = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"`
	nsR = `xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"`
	nsP = `xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

	xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`

	relBase = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/"

	layoutTextTarget  = "../slideLayouts/slideLayout1.xml"
	layoutImageTarget = "../slideLayouts/slideLayout2.xml"
)

func emu(inches float64) int64 {
	return int64(inches * emuPerInch)
}

// writePPTX streams an OOXML presentation package to w
func writePPTX(w io.Writer, slides []plannedSlide, opts Options) error {
	writer := zip.NewWriter(w)

	notes := 0
	for _, s := range slides {
		if s.record.Notes != "" {
			notes++
		}
	}

	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", contentTypesXML(slides)},
		{"_rels/.rels", rootRelsXML()},
		{"docProps/core.xml", corePropsXML(opts.Title, opts.Date)},
		{"docProps/app.xml", appPropsXML(len(slides), notes)},
		{"ppt/presentation.xml", presentationXML(len(slides))},
		{"ppt/_rels/presentation.xml.rels", presentationRelsXML(len(slides))},
		{"ppt/theme/theme1.xml", themeXML(opts.Theme)},
		{"ppt/theme/theme2.xml", themeXML(opts.Theme)},
		{"ppt/slideMasters/slideMaster1.xml", slideMasterXML(opts.Theme)},
		{"ppt/slideMasters/_rels/slideMaster1.xml.rels", slideMasterRelsXML()},
		{"ppt/slideLayouts/slideLayout1.xml", slideLayoutXML("Text")},
		{"ppt/slideLayouts/_rels/slideLayout1.xml.rels", slideLayoutRelsXML()},
		{"ppt/slideLayouts/slideLayout2.xml", slideLayoutXML("Image")},
		{"ppt/slideLayouts/_rels/slideLayout2.xml.rels", slideLayoutRelsXML()},
		{"ppt/notesMasters/notesMaster1.xml", notesMasterXML()},
		{"ppt/notesMasters/_rels/notesMaster1.xml.rels", notesMasterRelsXML()},
	}
	for _, part := range parts {
		if err := writeZipTextFile(writer, part.name, part.content); err != nil {
			_ = writer.Close()
			return err
		}
	}

	for _, s := range slides {
		mediaName := ""
		if s.image != nil {
			mediaName = fmt.Sprintf("ppt/media/image%d.%s", s.number, s.image.ext)
			if err := writeZipBytes(writer, mediaName, s.record.Image.Data); err != nil {
				_ = writer.Close()
				return err
			}
		}

		hasNotes := s.record.Notes != ""
		slideName := fmt.Sprintf("ppt/slides/slide%d.xml", s.number)
		slideRelsName := fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", s.number)

		if err := writeZipTextFile(writer, slideName, slideXML(s, opts)); err != nil {
			_ = writer.Close()
			return err
		}
		if err := writeZipTextFile(writer, slideRelsName, slideRelsXML(s, mediaName, hasNotes)); err != nil {
			_ = writer.Close()
			return err
		}

		if hasNotes {
			notesName := fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", s.number)
			notesRelsName := fmt.Sprintf("ppt/notesSlides/_rels/notesSlide%d.xml.rels", s.number)
			if err := writeZipTextFile(writer, notesName, notesSlideXML(s.record.Notes)); err != nil {
				_ = writer.Close()
				return err
			}
			if err := writeZipTextFile(writer, notesRelsName, notesSlideRelsXML(s.number)); err != nil {
				_ = writer.Close()
				return err
			}
		}
	}

	return writer.Close()
}

func writeZipTextFile(writer *zip.Writer, name string, content string) error {
	w, err := writer.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, strings.NewReader(content)); err != nil {
		return fmt.Errorf("write zip entry %s: %w", name, err)
	}
	return nil
}

func writeZipBytes(writer *zip.Writer, name string, payload []byte) error {
	w, err := writer.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", name, err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write zip entry %s: %w", name, err)
	}
	return nil
}

// esc escapes text for XML character data and attributes
func esc(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func contentTypesXML(slides []plannedSlide) string {
	var builder strings.Builder
	builder.WriteString(xmlHeader)
	builder.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	builder.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	builder.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	builder.WriteString(`<Default Extension="png" ContentType="image/png"/>`)
	builder.WriteString(`<Default Extension="jpeg" ContentType="image/jpeg"/>`)

	builder.WriteString(`<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>`)
	builder.WriteString(`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>`)
	builder.WriteString(`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`)
	builder.WriteString(`<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"/>`)
	for _, layout := range []int{1, 2} {
		fmt.Fprintf(&builder, `<Override PartName="/ppt/slideLayouts/slideLayout%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>`, layout)
	}
	builder.WriteString(`<Override PartName="/ppt/notesMasters/notesMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.notesMaster+xml"/>`)
	builder.WriteString(`<Override PartName="/ppt/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>`)
	builder.WriteString(`<Override PartName="/ppt/theme/theme2.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>`)

	for _, s := range slides {
		fmt.Fprintf(&builder, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, s.number)
		if s.record.Notes != "" {
			fmt.Fprintf(&builder, `<Override PartName="/ppt/notesSlides/notesSlide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.notesSlide+xml"/>`, s.number)
		}
	}

	builder.WriteString(`</Types>`)
	return builder.String()
}

func rootRelsXML() string {
	return xmlHeader +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="` + relBase + `officeDocument" Target="ppt/presentation.xml"/>` +
		`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
		`<Relationship Id="rId3" Type="` + relBase + `extended-properties" Target="docProps/app.xml"/>` +
		`</Relationships>`
}

func corePropsXML(title string, date time.Time) string {
	stamp := date.UTC().Format(time.RFC3339)
	return xmlHeader +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:dcmitype="http://purl.org/dc/dcmitype/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:title>` + esc(title) + `</dc:title>` +
		`<dc:subject>Presentation generated from PDF</dc:subject>` +
		`<dc:creator>pdfslides</dc:creator>` +
		`<cp:lastModifiedBy>pdfslides</cp:lastModifiedBy>` +
		`<dcterms:created xsi:type="dcterms:W3CDTF">` + stamp + `</dcterms:created>` +
		`<dcterms:modified xsi:type="dcterms:W3CDTF">` + stamp + `</dcterms:modified>` +
		`</cp:coreProperties>`
}

func appPropsXML(slideCount, notesCount int) string {
	var builder strings.Builder
	builder.WriteString(xmlHeader)
	builder.WriteString(`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties" xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes">`)
	builder.WriteString(`<Application>pdfslides</Application>`)
	builder.WriteString(`<PresentationFormat>On-screen Show (16:9)</PresentationFormat>`)
	fmt.Fprintf(&builder, `<Slides>%d</Slides><Notes>%d</Notes>`, slideCount, notesCount)
	builder.WriteString(`<HiddenSlides>0</HiddenSlides><MMClips>0</MMClips><ScaleCrop>false</ScaleCrop>`)
	builder.WriteString(`</Properties>`)
	return builder.String()
}

// Relationship ids in presentation.xml.rels: master, theme, notes master, then slides
const firstSlideRelID = 4

func presentationXML(slideCount int) string {
	var slidesBuilder strings.Builder
	slidesBuilder.WriteString(`<p:sldIdLst>`)
	for i := 0; i < slideCount; i++ {
		fmt.Fprintf(&slidesBuilder, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, firstSlideRelID+i)
	}
	slidesBuilder.WriteString(`</p:sldIdLst>`)

	return xmlHeader +
		`<p:presentation ` + nsA + ` ` + nsR + ` ` + nsP + ` saveSubsetFonts="1">` +
		`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>` +
		`<p:notesMasterIdLst><p:notesMasterId r:id="rId3"/></p:notesMasterIdLst>` +
		slidesBuilder.String() +
		fmt.Sprintf(`<p:sldSz cx="%d" cy="%d" type="screen16x9"/>`, emu(slideWidth), emu(slideHeight)) +
		`<p:notesSz cx="6858000" cy="9144000"/>` +
		`<p:defaultTextStyle/>` +
		`</p:presentation>`
}

func presentationRelsXML(slideCount int) string {
	var builder strings.Builder
	builder.WriteString(xmlHeader)
	builder.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	builder.WriteString(`<Relationship Id="rId1" Type="` + relBase + `slideMaster" Target="slideMasters/slideMaster1.xml"/>`)
	builder.WriteString(`<Relationship Id="rId2" Type="` + relBase + `theme" Target="theme/theme1.xml"/>`)
	builder.WriteString(`<Relationship Id="rId3" Type="` + relBase + `notesMaster" Target="notesMasters/notesMaster1.xml"/>`)
	for i := 0; i < slideCount; i++ {
		fmt.Fprintf(&builder, `<Relationship Id="rId%d" Type="`+relBase+`slide" Target="slides/slide%d.xml"/>`, firstSlideRelID+i, i+1)
	}
	builder.WriteString(`</Relationships>`)
	return builder.String()
}

func themeXML(t themes.Theme) string {
	clr := func(name string, c themes.Color) string {
		return `<a:` + name + `><a:srgbClr val="` + c.OOXML() + `"/></a:` + name + `>`
	}
	solid := `<a:solidFill><a:schemeClr val="phClr"/></a:solidFill>`
	line := `<a:ln w="9525"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln>`
	effect := `<a:effectStyle><a:effectLst/></a:effectStyle>`

	return xmlHeader +
		`<a:theme ` + nsA + ` name="` + esc(t.Name) + `">` +
		`<a:themeElements>` +
		`<a:clrScheme name="` + esc(t.Name) + `">` +
		clr("dk1", t.Text) + clr("lt1", t.Background) +
		clr("dk2", t.SubtleText) + clr("lt2", t.TextOnPrimary) +
		clr("accent1", t.Primary) + clr("accent2", t.Accent) +
		clr("accent3", t.SubtleText) + clr("accent4", t.Primary) +
		clr("accent5", t.Accent) + clr("accent6", t.SubtleText) +
		clr("hlink", t.Accent) + clr("folHlink", t.SubtleText) +
		`</a:clrScheme>` +
		`<a:fontScheme name="pdfslides">` +
		`<a:majorFont><a:latin typeface="Calibri Light"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont>` +
		`<a:minorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/></a:minorFont>` +
		`</a:fontScheme>` +
		`<a:fmtScheme name="pdfslides">` +
		`<a:fillStyleLst>` + solid + solid + solid + `</a:fillStyleLst>` +
		`<a:lnStyleLst>` + line + line + line + `</a:lnStyleLst>` +
		`<a:effectStyleLst>` + effect + effect + effect + `</a:effectStyleLst>` +
		`<a:bgFillStyleLst>` + solid + solid + solid + `</a:bgFillStyleLst>` +
		`</a:fmtScheme>` +
		`</a:themeElements>` +
		`</a:theme>`
}

const groupProps = `<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>`

const clrMap = `<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>`

func slideMasterXML(t themes.Theme) string {
	return xmlHeader +
		`<p:sldMaster ` + nsA + ` ` + nsR + ` ` + nsP + `>` +
		`<p:cSld>` + backgroundXML(t.Background) + `<p:spTree>` + groupProps + `</p:spTree></p:cSld>` +
		clrMap +
		`<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/><p:sldLayoutId id="2147483650" r:id="rId2"/></p:sldLayoutIdLst>` +
		`<p:txStyles><p:titleStyle/><p:bodyStyle/><p:otherStyle/></p:txStyles>` +
		`</p:sldMaster>`
}

func slideMasterRelsXML() string {
	return xmlHeader +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="` + relBase + `slideLayout" Target="../slideLayouts/slideLayout1.xml"/>` +
		`<Relationship Id="rId2" Type="` + relBase + `slideLayout" Target="../slideLayouts/slideLayout2.xml"/>` +
		`<Relationship Id="rId3" Type="` + relBase + `theme" Target="../theme/theme1.xml"/>` +
		`</Relationships>`
}

func slideLayoutXML(name string) string {
	return xmlHeader +
		`<p:sldLayout ` + nsA + ` ` + nsR + ` ` + nsP + ` preserve="1">` +
		`<p:cSld name="` + name + `"><p:spTree>` + groupProps + `</p:spTree></p:cSld>` +
		`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>` +
		`</p:sldLayout>`
}

func slideLayoutRelsXML() string {
	return xmlHeader +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="` + relBase + `slideMaster" Target="../slideMasters/slideMaster1.xml"/>` +
		`</Relationships>`
}

func notesMasterXML() string {
	return xmlHeader +
		`<p:notesMaster ` + nsA + ` ` + nsR + ` ` + nsP + `>` +
		`<p:cSld><p:spTree>` + groupProps + `</p:spTree></p:cSld>` +
		clrMap +
		`</p:notesMaster>`
}

func notesMasterRelsXML() string {
	return xmlHeader +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="` + relBase + `theme" Target="../theme/theme2.xml"/>` +
		`</Relationships>`
}

func backgroundXML(c themes.Color) string {
	return `<p:bg><p:bgPr><a:solidFill><a:srgbClr val="` + c.OOXML() + `"/></a:solidFill><a:effectLst/></p:bgPr></p:bg>`
}

// shapeIDs hands out unique shape ids within one slide
type shapeIDs int

func (s *shapeIDs) next() int {
	*s++
	return int(*s) + 1
}

// textStyle describes a run of text in a text box
type textStyle struct {
	size   int // points
	bold   bool
	italic bool
	color  themes.Color
	align  string // l, ctr, r
	anchor string // t, ctr, b
	bullet string // bullet character, empty for none
}

func rectShape(id int, name string, x, y, w, h float64, fill themes.Color) string {
	return `<p:sp><p:nvSpPr>` +
		fmt.Sprintf(`<p:cNvPr id="%d" name="%s"/>`, id, esc(name)) +
		`<p:cNvSpPr/><p:nvPr/></p:nvSpPr>` +
		`<p:spPr>` + xfrm(x, y, w, h) + `<a:prstGeom prst="rect"><a:avLst/></a:prstGeom>` +
		`<a:solidFill><a:srgbClr val="` + fill.OOXML() + `"/></a:solidFill><a:ln><a:noFill/></a:ln></p:spPr>` +
		`</p:sp>`
}

func textShape(id int, name string, x, y, w, h float64, paragraphs []string, st textStyle) string {
	var b strings.Builder
	b.WriteString(`<p:sp><p:nvSpPr>`)
	fmt.Fprintf(&b, `<p:cNvPr id="%d" name="%s"/>`, id, esc(name))
	b.WriteString(`<p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr>`)
	b.WriteString(`<p:spPr>` + xfrm(x, y, w, h) + `<a:prstGeom prst="rect"><a:avLst/></a:prstGeom><a:noFill/></p:spPr>`)
	anchor := st.anchor
	if anchor == "" {
		anchor = "t"
	}
	fmt.Fprintf(&b, `<p:txBody><a:bodyPr wrap="square" rtlCol="0" anchor="%s"><a:normAutofit/></a:bodyPr><a:lstStyle/>`, anchor)

	align := st.align
	if align == "" {
		align = "l"
	}
	for _, text := range paragraphs {
		if st.bullet != "" {
			fmt.Fprintf(&b, `<a:p><a:pPr marL="342900" indent="-342900" algn="%s"><a:buFont typeface="Arial"/><a:buChar char="%s"/></a:pPr>`, align, esc(st.bullet))
		} else {
			fmt.Fprintf(&b, `<a:p><a:pPr algn="%s"><a:buNone/></a:pPr>`, align)
		}
		fmt.Fprintf(&b, `<a:r><a:rPr lang="en-US" sz="%d" b="%d" i="%d" dirty="0">`, st.size*100, boolInt(st.bold), boolInt(st.italic))
		b.WriteString(`<a:solidFill><a:srgbClr val="` + st.color.OOXML() + `"/></a:solidFill></a:rPr>`)
		b.WriteString(`<a:t>` + esc(text) + `</a:t></a:r></a:p>`)
	}
	b.WriteString(`</p:txBody></p:sp>`)
	return b.String()
}

func pictureShape(id int, name, descr string, x, y, w, h float64) string {
	return `<p:pic><p:nvPicPr>` +
		fmt.Sprintf(`<p:cNvPr id="%d" name="%s" descr="%s"/>`, id, esc(name), esc(descr)) +
		`<p:cNvPicPr><a:picLocks noChangeAspect="1"/></p:cNvPicPr><p:nvPr/></p:nvPicPr>` +
		`<p:blipFill><a:blip r:embed="rId2"/><a:stretch><a:fillRect/></a:stretch></p:blipFill>` +
		`<p:spPr>` + xfrm(x, y, w, h) + `<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr>` +
		`</p:pic>`
}

func xfrm(x, y, w, h float64) string {
	return fmt.Sprintf(`<a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm>`, emu(x), emu(y), emu(w), emu(h))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// slideXML renders one deck slide: banner, footer and the layout body
func slideXML(s plannedSlide, opts Options) string {
	t := opts.Theme
	var ids shapeIDs
	var body strings.Builder

	footerY := slideHeight*0.95 - 0.1
	body.WriteString(rectShape(ids.next(), "Banner", 0, 0, slideWidth, bannerHeight, t.Primary))
	body.WriteString(textShape(ids.next(), "Footer Title", 0.5, footerY, 9, 0.3, []string{opts.Title},
		textStyle{size: 9, color: t.SubtleText, align: "l"}))
	body.WriteString(textShape(ids.next(), "Footer Page", 0.5, footerY, 9, 0.3, []string{fmt.Sprintf("Page %d", s.number)},
		textStyle{size: 9, color: t.SubtleText, align: "r"}))

	switch s.layout {
	case LayoutTitle:
		body.WriteString(textShape(ids.next(), "Deck Title", 0.5, 2.0, 9, 1, []string{opts.Title},
			textStyle{size: 40, bold: true, color: t.Accent, align: "ctr", anchor: "ctr"}))
		body.WriteString(textShape(ids.next(), "Generated On", 0.5, 3.1, 9, 0.5, []string{GeneratedOnPrefix + formatDate(opts.Date)},
			textStyle{size: 16, color: t.Text, align: "ctr"}))

	case LayoutClosing:
		body.WriteString(textShape(ids.next(), "Closing", 0.5, 2.0, 9, 1.5, []string{ClosingText},
			textStyle{size: 48, bold: true, color: t.Accent, align: "ctr", anchor: "ctr"}))

	case LayoutImage:
		body.WriteString(textShape(ids.next(), "Title", 0.4, 0.1, 9.2, 0.45, []string{s.title},
			textStyle{size: 26, bold: true, color: t.TextOnPrimary, align: "ctr", anchor: "ctr"}))
		fit := s.image
		body.WriteString(pictureShape(ids.next(), fmt.Sprintf("Image %d", s.number), s.record.ImageAltText, fit.x, fit.y, fit.w, fit.h))
		if len(s.record.Points) > 0 {
			body.WriteString(textShape(ids.next(), "Points", 0.5, pointsTop, 9, pointsHeight, s.record.Points,
				textStyle{size: 14, color: t.Text, align: "ctr", bullet: "●"}))
		}

	default:
		body.WriteString(textShape(ids.next(), "Title", 0.4, 0.1, 9.2, 0.45, []string{s.title},
			textStyle{size: 26, bold: true, color: t.TextOnPrimary, align: "ctr", anchor: "ctr"}))
		if len(s.record.Points) > 0 {
			body.WriteString(textShape(ids.next(), "Points", 0.6, 1.0, 8.8, slideHeight*0.75, s.record.Points,
				textStyle{size: 18, color: t.Text, bullet: "•"}))
		} else {
			body.WriteString(textShape(ids.next(), "Placeholder", 0.6, 1.0, 8.8, 1, []string{NoPointsText},
				textStyle{size: 18, italic: true, color: t.SubtleText}))
		}
	}

	return xmlHeader +
		`<p:sld ` + nsA + ` ` + nsR + ` ` + nsP + `>` +
		`<p:cSld><p:spTree>` + groupProps + body.String() + `</p:spTree></p:cSld>` +
		`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>` +
		`</p:sld>`
}

func slideRelsXML(s plannedSlide, mediaName string, hasNotes bool) string {
	layout := layoutTextTarget
	if s.layout == LayoutImage {
		layout = layoutImageTarget
	}

	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	b.WriteString(`<Relationship Id="rId1" Type="` + relBase + `slideLayout" Target="` + layout + `"/>`)
	if mediaName != "" {
		b.WriteString(`<Relationship Id="rId2" Type="` + relBase + `image" Target="../` + strings.TrimPrefix(mediaName, "ppt/") + `"/>`)
	}
	if hasNotes {
		fmt.Fprintf(&b, `<Relationship Id="rId3" Type="`+relBase+`notesSlide" Target="../notesSlides/notesSlide%d.xml"/>`, s.number)
	}
	b.WriteString(`</Relationships>`)
	return b.String()
}

func notesSlideXML(notes string) string {
	var paragraphs strings.Builder
	for _, line := range strings.Split(notes, "\n") {
		paragraphs.WriteString(`<a:p><a:r><a:rPr lang="en-US" dirty="0"/><a:t>` + esc(line) + `</a:t></a:r></a:p>`)
	}
	return xmlHeader +
		`<p:notes ` + nsA + ` ` + nsR + ` ` + nsP + `>` +
		`<p:cSld><p:spTree>` + groupProps +
		`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Notes Placeholder 1"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr><p:nvPr><p:ph type="body" idx="1"/></p:nvPr></p:nvSpPr>` +
		`<p:spPr/><p:txBody><a:bodyPr/><a:lstStyle/>` + paragraphs.String() + `</p:txBody></p:sp>` +
		`</p:spTree></p:cSld>` +
		`<p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr>` +
		`</p:notes>`
}

func notesSlideRelsXML(slideNumber int) string {
	return xmlHeader +
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="` + relBase + `notesMaster" Target="../notesMasters/notesMaster1.xml"/>` +
		fmt.Sprintf(`<Relationship Id="rId2" Type="`+relBase+`slide" Target="../slides/slide%d.xml"/>`, slideNumber) +
		`</Relationships>`
}
