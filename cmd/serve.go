package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pdfslides/converter"
	"pdfslides/converter/deck"
	"pdfslides/converter/domain"
	"pdfslides/converter/extract"
	"pdfslides/converter/synth"
	"pdfslides/converter/themes"
	"pdfslides/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP conversion API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		logger := newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// without a key the API still serves themes and reports the missing credential per job
		var synthesizer synth.SlideSynthesizer
		s, closeSynth, err := buildSynthesizer(ctx, cfg, logger)
		switch {
		case errors.Is(err, domain.ErrMissingCredential):
			logger.Warn().Msg("GEMINI_API_KEY is not set, conversions will fail")
		case err != nil:
			return err
		default:
			synthesizer = s
			defer closeSynth()
		}

		extractor := extract.New(logger)
		factory := func(theme themes.Theme, format deck.Format) *converter.Converter {
			return converter.New(extractor, synthesizer, converter.Options{
				Workers:       cfg.Conversion.Workers,
				MinTextLength: cfg.Conversion.MinTextLength,
				Theme:         theme,
				Format:        format,
				Logger:        logger,
			})
		}

		api := server.New(logger, factory, server.Config{
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
			JobTTL:         cfg.Server.JobTTL,
			DefaultTheme:   cfg.Conversion.Theme,
			DefaultFormat:  cfg.Format(),
		})

		httpServer := &http.Server{
			Addr:         cfg.Addr(),
			Handler:      api.Router(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", httpServer.Addr).Msg("server listening")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Listen port (default: from config)")
	rootCmd.AddCommand(serveCmd)
}
