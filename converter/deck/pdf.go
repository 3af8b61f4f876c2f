package deck

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"pdfslides/converter/themes"
)

// writePDF renders the deck as a PDF handout. Speaker notes are not included.
func writePDF(w io.Writer, slides []plannedSlide, opts Options) error {
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "in",
		Size:           gofpdf.SizeType{Wd: slideWidth, Ht: slideHeight},
	})
	pdf.SetTitle(opts.Title, true)
	pdf.SetCreator("pdfslides", true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	t := opts.Theme

	for _, s := range slides {
		pdf.AddPage()

		fill(pdf, t.Background)
		pdf.Rect(0, 0, slideWidth, slideHeight, "F")
		fill(pdf, t.Primary)
		pdf.Rect(0, 0, slideWidth, bannerHeight, "F")

		footerY := slideHeight*0.95 - 0.1
		pdf.SetFont("Helvetica", "", 9)
		textColor(pdf, t.SubtleText)
		pdf.SetXY(0.5, footerY)
		pdf.CellFormat(9, 0.3, tr(opts.Title), "", 0, "L", false, 0, "")
		pdf.SetXY(0.5, footerY)
		pdf.CellFormat(9, 0.3, fmt.Sprintf("Page %d", s.number), "", 0, "R", false, 0, "")

		switch s.layout {
		case LayoutTitle:
			pdf.SetFont("Helvetica", "B", 40)
			textColor(pdf, t.Accent)
			pdf.SetXY(0.5, 2.0)
			pdf.CellFormat(9, 1, tr(opts.Title), "", 0, "C", false, 0, "")
			pdf.SetFont("Helvetica", "", 16)
			textColor(pdf, t.Text)
			pdf.SetXY(0.5, 3.1)
			pdf.CellFormat(9, 0.5, tr(GeneratedOnPrefix+formatDate(opts.Date)), "", 0, "C", false, 0, "")

		case LayoutClosing:
			pdf.SetFont("Helvetica", "B", 48)
			textColor(pdf, t.Accent)
			pdf.SetXY(0.5, 2.0)
			pdf.CellFormat(9, 1.5, tr(ClosingText), "", 0, "C", false, 0, "")

		case LayoutImage:
			pdfTitle(pdf, tr(s.title), t)
			name := fmt.Sprintf("slide-%d", s.number)
			imageType := "PNG"
			if s.image.ext == "jpeg" {
				imageType = "JPG"
			}
			if info := pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: imageType}, bytes.NewReader(s.record.Image.Data)); info == nil {
				return fmt.Errorf("register image for slide %d: %v", s.number, pdf.Error())
			}
			pdf.ImageOptions(name, s.image.x, s.image.y, s.image.w, s.image.h, false, gofpdf.ImageOptions{ImageType: imageType}, 0, "")
			if len(s.record.Points) > 0 {
				pdf.SetFont("Helvetica", "", 14)
				textColor(pdf, t.Text)
				pdf.SetXY(0.5, pointsTop)
				for _, p := range s.record.Points {
					pdf.SetX(0.5)
					pdf.MultiCell(9, 0.24, tr("- "+p), "", "C", false)
				}
			}

		default:
			pdfTitle(pdf, tr(s.title), t)
			pdf.SetXY(0.6, 1.0)
			if len(s.record.Points) == 0 {
				pdf.SetFont("Helvetica", "I", 18)
				textColor(pdf, t.SubtleText)
				pdf.MultiCell(8.8, 0.3, tr(NoPointsText), "", "L", false)
				break
			}
			pdf.SetFont("Helvetica", "", 18)
			textColor(pdf, t.Text)
			for _, p := range s.record.Points {
				pdf.SetX(0.6)
				pdf.MultiCell(8.8, 0.32, tr("- "+p), "", "L", false)
				pdf.Ln(0.08)
			}
		}

		if err := pdf.Error(); err != nil {
			return err
		}
	}

	return pdf.Output(w)
}

func pdfTitle(pdf *gofpdf.Fpdf, title string, t themes.Theme) {
	pdf.SetFont("Helvetica", "B", 26)
	textColor(pdf, t.TextOnPrimary)
	pdf.SetXY(0.4, 0.1)
	pdf.CellFormat(9.2, 0.45, title, "", 0, "C", false, 0, "")
}

func fill(pdf *gofpdf.Fpdf, c themes.Color) {
	pdf.SetFillColor(int(c.R8), int(c.G8), int(c.B8))
}

func textColor(pdf *gofpdf.Fpdf, c themes.Color) {
	pdf.SetTextColor(int(c.R8), int(c.G8), int(c.B8))
}
