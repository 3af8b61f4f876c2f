package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// textLayer reads per-page text runs
type textLayer struct {
	reader *pdf.Reader
}

// openTextLayer initialises the text engine for the document buffer
func openTextLayer(data []byte) (layer *textLayer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("text engine panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	return &textLayer{reader: reader}, nil
}

// PageText returns the page's text runs joined with single spaces
func (t *textLayer) PageText(pageNum int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("text decode panic on page %d: %v", pageNum, r)
		}
	}()

	if pageNum < 1 || pageNum > t.reader.NumPage() {
		return "", nil
	}
	page := t.reader.Page(pageNum)
	if page.V.IsNull() {
		return "", nil
	}

	rows, err := page.GetTextByRow()
	if err == nil {
		var runs []string
		for _, row := range rows {
			var line strings.Builder
			for _, run := range row.Content {
				line.WriteString(run.S)
			}
			runs = append(runs, line.String())
		}
		return joinRuns(runs), nil
	}

	plain, plainErr := page.GetPlainText(nil)
	if plainErr != nil {
		return "", fmt.Errorf("read text rows: %w", err)
	}
	return strings.TrimSpace(plain), nil
}

// joinRuns joins rows with single spaces; only the ends are trimmed
func joinRuns(runs []string) string {
	return strings.TrimSpace(strings.Join(runs, " "))
}
