package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pdfslides/config"
	"pdfslides/observability"
)

var (
	configFile string
	logLevel   string
	logFormat  string
	noColor    bool

	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "pdfslides",
	Short: "Turn PDFs into themed slide decks",
	Long: `A CLI tool that turns PDF documents into presentation decks.

Each page's text and first image are sent to Gemini, which drafts a slide
title, bullet points and speaker notes. After previewing the slides you can
save them as:
  - pptx: an editable PowerPoint deck with speaker notes
  - pdf:  a printable slide handout`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

// SetVersionInfo records build metadata injected through ldflags
func SetVersionInfo(v, built, commit string) {
	version = v
	buildTime = built
	gitCommit = commit
	rootCmd.Version = v
}

// loadConfig reads the config file and applies the global logging flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Observability.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.Observability.LogFormat = logFormat
	}
	if err := cfg.RegisterThemes(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return observability.NewLogger(observability.LogConfig{
		Level:  cfg.Observability.LogLevel,
		Format: cfg.Observability.LogFormat,
		Output: os.Stderr,
	})
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: from config)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json (default: from config)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error:"), err)
		os.Exit(1)
	}
}
