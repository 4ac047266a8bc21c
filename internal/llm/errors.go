package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/abbasKakoolvand/OKR-analyze/pkg/circuitbreaker"
)

var ErrEmptyCompletion = errors.New("completion returned no choices")

// ProviderError describes a failed completion call. Transient errors
// (timeouts, throttling, 5xx, network) are worth retrying.
type ProviderError struct {
	StatusCode int
	Timeout    bool
	Transient  bool
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("completion provider timed out: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("completion provider returned status %d: %v", e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("completion provider failed: %v", e.Err)
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a ProviderError that may succeed on retry.
func IsTransient(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.Transient
}

func classifyError(err error) *ProviderError {
	if err == nil {
		return nil
	}

	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr
	}

	if errors.Is(err, circuitbreaker.ErrHalfOpenBusy) {
		return &ProviderError{Transient: true, Err: err}
	}
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return &ProviderError{Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ProviderError{Timeout: true, Transient: true, Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &ProviderError{Err: err}
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status != 0 {
		return &ProviderError{
			StatusCode: status,
			Timeout:    status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout,
			Transient:  transientStatus(status),
			Err:        err,
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ProviderError{Timeout: netErr.Timeout(), Transient: true, Err: err}
	}

	return &ProviderError{Transient: true, Err: err}
}

func transientStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= http.StatusInternalServerError
}
