package domain

import (
	"errors"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConfiguration     = errors.New("configuration error")
	ErrProviderTransport = errors.New("provider transport error")
	ErrProviderTimeout   = errors.New("provider timeout")
	ErrProviderFailure   = errors.New("provider failure")
	ErrInvalidResponse   = errors.New("invalid provider response")
)

// ProviderError is a terminal failure reported by the provider itself. Text
// is the provider's own message.
type ProviderError struct {
	Provider string
	Text     string
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Text
}

func (e *ProviderError) Unwrap() error {
	return ErrProviderFailure
}

// FailureMessage renders err as the human-readable text stored on a failed
// job. Provider failures keep the provider text verbatim. It never returns an
// empty string.
func FailureMessage(err error) string {
	if err == nil {
		return "unknown failure"
	}
	var pe *ProviderError
	if errors.As(err, &pe) && strings.TrimSpace(pe.Text) != "" {
		return pe.Text
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		return "unknown failure"
	}
	return msg
}
