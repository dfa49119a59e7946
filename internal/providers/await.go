package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"adforge/internal/domain"
	"adforge/internal/infra"
)

// Await polls h until it reaches a terminal state or the attempt budget runs
// out. Transport errors count against the budget and are retried; a failed
// status is returned immediately as ErrProviderFailure carrying the provider
// text; exhaustion is ErrProviderTimeout.
func Await(ctx context.Context, p Poller, h Handle, policy PollPolicy, logger *infra.Logger) (PollResult, error) {
	logger = infra.LoggerOrDiscard(logger)
	if h.Settled != nil && h.Settled.Status.IsTerminal() {
		return settle(h.Provider, *h.Settled)
	}
	if policy.MaxAttempts <= 0 {
		return PollResult{}, fmt.Errorf("%w: poll attempt budget must be positive", domain.ErrConfiguration)
	}

	ticker := time.NewTicker(policy.Interval)
	defer ticker.Stop()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return PollResult{}, ctx.Err()
		case <-ticker.C:
		}

		res, err := p.Poll(ctx, h)
		if err != nil {
			if !errors.Is(err, domain.ErrProviderTransport) {
				return PollResult{}, err
			}
			lastErr = err
			logger.Warn().Err(err).
				Str("provider", h.Provider).
				Str("handle", h.ID).
				Int("attempt", attempt).
				Msg("providers: poll transport error, retrying")
			continue
		}
		if res.Status.IsTerminal() {
			logger.Debug().
				Str("provider", h.Provider).
				Str("handle", h.ID).
				Int("attempt", attempt).
				Str("status", string(res.Status)).
				Msg("providers: reached terminal state")
			return settle(h.Provider, res)
		}
	}

	msg := fmt.Sprintf("%s did not finish within %d attempts (%s)", h.Provider, policy.MaxAttempts, policy.Interval*time.Duration(policy.MaxAttempts))
	if lastErr != nil {
		return PollResult{}, fmt.Errorf("%w: %s; last error: %v", domain.ErrProviderTimeout, msg, lastErr)
	}
	return PollResult{}, fmt.Errorf("%w: %s", domain.ErrProviderTimeout, msg)
}

func settle(provider string, res PollResult) (PollResult, error) {
	if res.Status == StatusFailed {
		text := strings.TrimSpace(res.Error)
		if text == "" {
			text = "provider reported failure without detail"
		}
		return res, &domain.ProviderError{Provider: provider, Text: text}
	}
	if _, err := Result(res); err != nil {
		return res, err
	}
	return res, nil
}

// Submit calls submit until it succeeds, returns a non-transport error, or
// the attempt budget runs out. Attempts are spaced by the policy interval.
func Submit(ctx context.Context, provider string, policy PollPolicy, logger *infra.Logger, submit func(context.Context) (Handle, error)) (Handle, error) {
	logger = infra.LoggerOrDiscard(logger)
	if policy.MaxAttempts <= 0 {
		return Handle{}, fmt.Errorf("%w: submit attempt budget must be positive", domain.ErrConfiguration)
	}
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(policy.Interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return Handle{}, ctx.Err()
			case <-timer.C:
			}
		}
		h, err := submit(ctx)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, domain.ErrProviderTransport) {
			return Handle{}, err
		}
		lastErr = err
		logger.Warn().Err(err).
			Str("provider", provider).
			Int("attempt", attempt).
			Msg("providers: submit transport error, retrying")
	}
	return Handle{}, fmt.Errorf("%w: %s submit failed after %d attempts: %v", domain.ErrProviderTimeout, provider, policy.MaxAttempts, lastErr)
}
