package cmd

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"pdfslides/config"
	"pdfslides/converter/synth"
)

// buildSynthesizer wires the Gemini generator, retries and the slide cache.
// The returned close function releases the client and the cache store.
func buildSynthesizer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (synth.SlideSynthesizer, func() error, error) {
	gen, err := synth.NewGeminiGenerator(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		return nil, nil, err
	}
	closers := []func() error{gen.Close}

	var s synth.SlideSynthesizer = synth.New(synth.WithTimeout(gen, cfg.Gemini.Timeout), synth.Options{
		Retry:  cfg.RetryConfig(),
		Logger: logger,
	})

	if store := buildStore(ctx, cfg, logger); store != nil {
		s = synth.NewCachedSynthesizer(s, store, gen.Model(), cfg.Cache.TTL, logger)
		closers = append(closers, store.Close)
	}

	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return s, closeAll, nil
}

// buildStore returns the configured cache store, or nil when caching is off.
// An unreachable Redis falls back to the in-memory store.
func buildStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) synth.Store {
	switch cfg.Cache.Driver {
	case config.CacheNone:
		return nil
	case config.CacheRedis:
		store, err := synth.NewRedisStore(ctx, synth.RedisConfig{
			URL:    cfg.Cache.Redis.URL,
			Prefix: cfg.Cache.Redis.Prefix,
		})
		if err == nil {
			logger.Debug().Msg("using redis slide cache")
			return store
		}
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory slide cache")
	}
	return synth.NewMemoryStore(cfg.Cache.MaxEntries)
}
