package synth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pdfslides/converter/domain"
)

const (
	maxRetries     = 2
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     maxRetries,
		InitialBackoff: initialBackoff,
		MaxBackoff:     maxBackoff,
	}
}

// shouldRetry determines if a generator error is worth another attempt
func shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, domain.ErrMissingCredential) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, permanent := range []string{"invalid argument", "invalidargument", "permission denied", "api key not valid", "unauthenticated", "400"} {
		if strings.Contains(msg, permanent) {
			return false
		}
	}
	return true
}

// calculateBackoff calculates exponential backoff duration
func calculateBackoff(attempt int, config RetryConfig) time.Duration {
	// Exponential backoff: initialBackoff * 2^attempt
	backoff := float64(config.InitialBackoff) * math.Pow(2, float64(attempt))

	// Cap at maxBackoff
	if backoff > float64(config.MaxBackoff) {
		backoff = float64(config.MaxBackoff)
	}

	return time.Duration(backoff)
}

// retryingGenerator wraps a Generator with retry logic
type retryingGenerator struct {
	next   Generator
	config RetryConfig
	logger zerolog.Logger
}

// WithRetry wraps gen so transient failures are retried with backoff
func WithRetry(gen Generator, config RetryConfig, logger zerolog.Logger) Generator {
	if config.MaxRetries <= 0 {
		return gen
	}
	return &retryingGenerator{next: gen, config: config, logger: logger}
}

func (r *retryingGenerator) Generate(ctx context.Context, parts []Part) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		// Check context cancellation
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		text, err := r.next.Generate(ctx, parts)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return "", err
		}

		// Don't wait after last attempt
		if attempt == r.config.MaxRetries {
			break
		}

		backoff := calculateBackoff(attempt, r.config)
		r.logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_retries", r.config.MaxRetries).
			Dur("backoff", backoff).
			Msg("generation failed, retrying")

		// Wait with context cancellation support
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	return "", fmt.Errorf("generation failed after %d retries: %w", r.config.MaxRetries, lastErr)
}
