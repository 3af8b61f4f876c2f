package synth

import (
	"strings"

	"pdfslides/converter/domain"
)

// Text caps for the page excerpt sent to the model, in runes
const (
	MaxTextWithImage    = 5000
	MaxTextWithoutImage = 15000
	textPreviewLength   = 150
)

const (
	excerptBegin = "---BEGIN PDF PAGE TEXT---"
	excerptEnd   = "---END PDF PAGE TEXT---"
)

const instructions = `You are an expert presentation designer. Build the content of ONE presentation slide from material extracted from a single PDF page. Any image supplied is the centerpiece of the slide and should be used to explain the page.

Produce:
1. TITLE: short and engaging.
   - With an image, the title must describe the image or the idea it illustrates.
   - With text only, the title must capture the main theme of the text.
2. POINTS: between 0 and 4 bullet points.
   - With an image, the points explain what the image shows and why it matters, drawing on the text where useful.
   - With text only, the points summarize the key ideas of the text.
   - Keep every point brief and distinct.
3. NOTES: speaker notes the presenter reads aloud. They go deeper than the points, give background from the page text that did not fit on the slide, and explain the image. A few sentences or a short paragraph.
4. IMAGE ALT TEXT: only when an image is supplied, a concise accessible description of what it shows.

Output format:
Reply ONLY with a JSON object with these keys:
- "title": string
- "points": array of strings
- "notes": string
- "imageAltText": string, include ONLY when an image is supplied

About the supplied input:
`

// BuildParts assembles the ordered request parts for a page
func BuildParts(page domain.PageRecord) []Part {
	hasText := strings.TrimSpace(page.Text) != ""

	var prompt strings.Builder
	prompt.WriteString(instructions)
	if page.HasImage() {
		prompt.WriteString("- An IMAGE is supplied. Title, points and alt text must center on it.\n")
	}
	if hasText {
		prompt.WriteString(`- Page TEXT is supplied (preview: "`)
		prompt.WriteString(textPreview(page.Text))
		prompt.WriteString(`..."). Use it for context or summary. When an image is present the text should support the image explanation.` + "\n")
	}
	prompt.WriteString("\nThe image (if any) and the text (if any) follow as separate parts. Generate the JSON reply now.")

	parts := []Part{TextPart(prompt.String())}

	if page.HasImage() {
		parts = append(parts, BlobPart(page.Image.MIMEType, page.Image.Data))
	}

	if hasText {
		limit := MaxTextWithoutImage
		if page.HasImage() {
			limit = MaxTextWithImage
		}
		parts = append(parts, TextPart("\n\n"+excerptBegin+"\n"+truncateRunes(page.Text, limit)+"\n"+excerptEnd))
	}

	return parts
}

// textPreview returns the first characters of s with whitespace collapsed
func textPreview(s string) string {
	return strings.Join(strings.Fields(truncateRunes(s, textPreviewLength)), " ")
}

// truncateRunes cuts s to at most n runes
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
