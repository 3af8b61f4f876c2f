package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"pdfslides/config"
	"pdfslides/converter"
	"pdfslides/converter/domain"
	"pdfslides/converter/extract"
	"pdfslides/converter/synth"
	"pdfslides/converter/themes"
)

var (
	outputFile string
	themeID    string
	format     string
	workers    int
	model      string
	noCache    bool
	assumeYes  bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <input.pdf>",
	Short: "Convert a PDF into a slide deck",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile := args[0]

		// Validate input file exists
		if _, err := os.Stat(inputFile); os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", inputFile)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// If theme not specified, ask user interactively
		if themeID == "" && !assumeYes && isTerminal(os.Stdin) {
			themeID = selectThemeInteractively(os.Stdin, cmd.OutOrStdout(), cfg.Conversion.Theme)
		}
		if err := applyConvertFlags(cfg); err != nil {
			return err
		}

		theme, err := cfg.Theme()
		if err != nil {
			return err
		}

		data, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := newLogger(cfg)
		synthesizer, closeSynth, err := buildSynthesizer(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("%s", domain.UserMessage(err))
		}
		defer closeSynth()

		out := cmd.OutOrStdout()
		ui := newProgressUI(cmd.ErrOrStderr())
		defer ui.Stop()

		conv := converter.New(extract.New(logger), synthesizer, converter.Options{
			Workers:       cfg.Conversion.Workers,
			MinTextLength: cfg.Conversion.MinTextLength,
			Theme:         theme,
			Format:        cfg.Format(),
			Logger:        logger,
			OnProgress:    ui.Update,
		})

		fmt.Fprintf(out, "Converting %s using the %s theme...\n", inputFile, theme.Name)
		slides, err := conv.Generate(ctx, converter.Input{Name: inputFile, Data: data})
		ui.Stop()
		if err != nil {
			return fmt.Errorf("conversion failed: %s", domain.UserMessage(err))
		}

		fmt.Fprintln(out)
		renderPreview(out, slides)
		color.New(color.FgGreen).Fprintf(out, "%d slides ready for review.\n", len(slides))

		if !assumeYes && !confirm(os.Stdin, out, "Create the presentation?") {
			if err := conv.Cancel(); err != nil {
				return err
			}
			color.New(color.FgYellow).Fprintln(out, conv.State().Message)
			return nil
		}

		// Set default output file if not specified
		if outputFile == "" {
			outputFile = filepath.Join(filepath.Dir(inputFile), conv.State().FileName)
		}

		if err := writeDeck(ctx, conv, outputFile); err != nil {
			return err
		}

		color.New(color.FgGreen, color.Bold).Fprintln(out, conv.State().Message)
		fmt.Fprintf(out, "Successfully created: %s\n", outputFile)
		return nil
	},
}

// applyConvertFlags lets command line flags override the loaded config
func applyConvertFlags(cfg *config.Config) error {
	if themeID != "" {
		cfg.Conversion.Theme = themeID
	}
	if format != "" {
		cfg.Conversion.Format = format
	}
	if workers > 0 {
		cfg.Conversion.Workers = workers
	}
	if model != "" {
		cfg.Gemini.Model = model
	}
	if noCache {
		cfg.Cache.Driver = config.CacheNone
	}
	return cfg.Validate()
}

// writeDeck saves the confirmed deck, removing a partial file on failure
func writeDeck(ctx context.Context, conv *converter.Converter, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	w := bufio.NewWriter(f)
	_, err = conv.Confirm(ctx, w)
	if err == nil {
		err = w.Flush()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("%s", domain.UserMessage(err))
	}
	return nil
}

func selectThemeInteractively(in io.Reader, out io.Writer, fallback string) string {
	list := themes.List()

	fmt.Fprintln(out, "\nSelect a theme:")
	for i, t := range list {
		marker := " "
		if t.ID == fallback {
			marker = "*"
		}
		fmt.Fprintf(out, "  [%d]%s %-14s %s\n", i+1, marker, t.ID, swatch(t))
	}
	fmt.Fprintf(out, "\nEnter choice (1-%d, empty for %s): ", len(list), fallback)

	reader := bufio.NewReader(in)
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return fallback
	}
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(list) {
		return list[n-1].ID
	}
	if _, err := themes.Get(input); err == nil {
		return strings.ToLower(input)
	}
	fmt.Fprintf(out, "Invalid choice, defaulting to '%s'\n", fallback)
	return fallback
}

func init() {
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: <input>_presentation.<format>)")
	convertCmd.Flags().StringVarP(&themeID, "theme", "t", "", "Theme id (see 'pdfslides themes')")
	convertCmd.Flags().StringVarP(&format, "format", "f", "", "Output format: 'pptx' or 'pdf' (default: from config)")
	convertCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Pages synthesized in parallel (default: from config)")
	convertCmd.Flags().StringVar(&model, "model", "", "Gemini model (default: "+synth.DefaultModel+")")
	convertCmd.Flags().BoolVar(&noCache, "no-cache", false, "Disable the slide cache")
	convertCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the preview confirmation")
	rootCmd.AddCommand(convertCmd)
}
