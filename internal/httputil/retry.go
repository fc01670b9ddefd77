// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the source adapters.
package httputil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pdiddy/paper-search/internal/apperr"
)

// RetryBaseDelay is the fixed wait between attempts. Tests override this
// to avoid real sleeps.
var RetryBaseDelay = 1 * time.Second

// DefaultAttempts is the number of tries made before a failure surfaces.
const DefaultAttempts = 3

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 32 << 20

// Retry calls fn until it succeeds or attempts tries have been made, waiting
// RetryBaseDelay between tries. The whole unit of work is retried, so fn
// should issue the request and parse the response. Validation errors are
// not retried. If ctx is cancelled during a wait, Retry returns ctx.Err().
func Retry(ctx context.Context, logger *slog.Logger, op string, attempts int, fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	if logger == nil {
		logger = slog.Default()
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if apperr.Is(err, apperr.Validation) || ctx.Err() != nil {
			return err
		}
		if attempt == attempts {
			break
		}

		logger.Warn("request failed, retrying",
			"op", op, "attempt", attempt, "max_attempts", attempts, "error", err)
		if perr := Pause(ctx, RetryBaseDelay); perr != nil {
			return perr
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", op, attempts, err)
}

// Get issues a GET request and returns the body. Transport failures and
// non-2xx statuses come back as apperr.Transport errors.
func Get(ctx context.Context, client *http.Client, url, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.New(apperr.Validation, "http.get", fmt.Errorf("creating request: %w", err))
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, apperr.New(apperr.Transport, "http.get", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, apperr.Errorf(apperr.Transport, "http.get", "HTTP %d from %s", resp.StatusCode, req.URL.Host)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, apperr.New(apperr.Transport, "http.get", fmt.Errorf("reading body: %w", err))
	}
	return body, nil
}

// Pause sleeps for d unless ctx is cancelled first. A non-positive d
// returns immediately.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
