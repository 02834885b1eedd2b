package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrAssistantDisabled = errors.New("assistant is disabled")
	ErrEmptyReply        = errors.New("provider returned an empty reply")
	ErrEmptyHistory      = errors.New("conversation has no visitor message")
)

// ConfigError means the assistant is disabled or misconfigured. Retrying
// without an operator changing the configuration will not help.
type ConfigError struct {
	Provider string
	Err      error
}

func (e *ConfigError) Error() string {
	if e.Provider == "" {
		return "assistant config: " + e.Err.Error()
	}
	return fmt.Sprintf("assistant config (%s): %v", e.Provider, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ProviderError means the upstream generation backend failed: unreachable,
// rate limited, timed out, or returned something unusable.
type ProviderError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s provider error: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// StatusError classifies a non-2xx upstream response. Credential and
// unknown-model failures are configuration problems; everything else is
// treated as the provider being unavailable.
func StatusError(provider string, status int, body string) error {
	body = strings.TrimSpace(body)
	if len(body) > 512 {
		body = body[:512]
	}
	err := fmt.Errorf("%s returned status %d: %s", provider, status, body)

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return &ConfigError{Provider: provider, Err: err}
	default:
		return &ProviderError{Provider: provider, StatusCode: status, Err: err}
	}
}

// IsConfigError reports whether err is a ConfigError
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsProviderError reports whether err is a ProviderError
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
