package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"pdfslides/converter/domain"
)

const previewWidth = 72

// progressUI renders pipeline progress: a spinner while parsing and a bar
// while slides are generated.
type progressUI struct {
	out     io.Writer
	spinner *spinner.Spinner
	bar     *progressbar.ProgressBar
}

func newProgressUI(out io.Writer) *progressUI {
	return &progressUI{out: out}
}

// Update is the converter progress callback
func (u *progressUI) Update(p domain.Progress) {
	switch p.Stage {
	case domain.StageParsing, domain.StageCreatingOutput:
		u.stopBar()
		u.startSpinner(p.Message)
	case domain.StageGenerating:
		u.stopSpinner()
		if u.bar == nil {
			u.bar = progressbar.NewOptions(100,
				progressbar.OptionSetWriter(u.out),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription(p.Message),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "█",
					SaucerHead:    "█",
					SaucerPadding: "░",
					BarStart:      "│",
					BarEnd:        "│",
				}),
				progressbar.OptionShowCount(),
				progressbar.OptionSetRenderBlankState(true),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprint(u.out, "\n")
				}),
			)
		}
		u.bar.Describe(p.Message)
		_ = u.bar.Set(p.Percent)
	default:
		u.Stop()
	}
}

// Stop clears any running indicator
func (u *progressUI) Stop() {
	u.stopSpinner()
	u.stopBar()
}

func (u *progressUI) startSpinner(message string) {
	if u.spinner == nil {
		u.spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(u.out))
		u.spinner.Start()
	}
	u.spinner.Suffix = " " + message
}

func (u *progressUI) stopSpinner() {
	if u.spinner != nil {
		u.spinner.Stop()
		u.spinner = nil
	}
}

func (u *progressUI) stopBar() {
	if u.bar != nil {
		_ = u.bar.Finish()
		u.bar = nil
	}
}

// renderPreview prints each slide as a box
func renderPreview(w io.Writer, slides []domain.SlideRecord) {
	bold := color.New(color.Bold, color.FgCyan).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()
	border := "+" + strings.Repeat("-", previewWidth-2) + "+"

	for i, s := range slides {
		fmt.Fprintln(w, border)
		boxLine(w, fmt.Sprintf("Slide %d (page %d)", i+1, s.PageNumber), faint)
		boxLine(w, s.Title, bold)
		if s.HasImage() {
			alt := s.ImageAltText
			if alt == "" {
				alt = "image"
			}
			boxLine(w, "[image: "+alt+"]", faint)
		}
		for _, p := range s.Points {
			for j, line := range wrap(p, previewWidth-8) {
				prefix := "  • "
				if j > 0 {
					prefix = "    "
				}
				boxLine(w, prefix+line, fmt.Sprint)
			}
		}
		if s.Notes != "" {
			for _, line := range wrap("Notes: "+s.Notes, previewWidth-4) {
				boxLine(w, line, faint)
			}
		}
		fmt.Fprintln(w, border)
	}
}

// boxLine pads one line to the box width before styling it
func boxLine(w io.Writer, text string, style func(a ...interface{}) string) {
	inner := previewWidth - 4
	runes := []rune(text)
	if len(runes) > inner {
		runes = append(runes[:inner-3], []rune("...")...)
	}
	pad := inner - len(runes)
	fmt.Fprintf(w, "| %s%s |\n", style(string(runes)), strings.Repeat(" ", pad))
}

// wrap breaks text into lines of at most width runes
func wrap(text string, width int) []string {
	var lines []string
	var line []rune
	for _, word := range strings.Fields(text) {
		wr := []rune(word)
		if len(line) > 0 && len(line)+1+len(wr) > width {
			lines = append(lines, string(line))
			line = nil
		}
		if len(line) > 0 {
			line = append(line, ' ')
		}
		line = append(line, wr...)
	}
	if len(line) > 0 {
		lines = append(lines, string(line))
	}
	return lines
}

// confirm asks a y/N question
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	reader := bufio.NewReader(in)
	input, _ := reader.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}
	return false
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
