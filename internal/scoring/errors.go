package scoring

import (
	"errors"
	"fmt"

	"github.com/abbasKakoolvand/OKR-analyze/internal/llm"
	"github.com/abbasKakoolvand/OKR-analyze/internal/storage/database"
)

var (
	ErrNoTasks    = errors.New("no tasks to score")
	ErrClaimHeld  = errors.New("scoring cell is claimed by another worker")
	ErrRunExists  = database.ErrRunExists
	errEmptyReply = errors.New("empty completion")
	errNoJSON     = errors.New("no JSON object found")
)

type (
	ProviderError    = llm.ProviderError
	PersistenceError = database.PersistenceError
)

// MalformedResponseError carries the raw completion text that could not be parsed.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	raw := e.Raw
	if len(raw) > 200 {
		raw = raw[:200] + "..."
	}
	return fmt.Sprintf("malformed completion response: %v (raw: %q)", e.Err, raw)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

// AnalysisFailedError reports a round that exhausted its retries.
type AnalysisFailedError struct {
	KRCode string
	Person string
	Round  int
	Err    error
}

func (e *AnalysisFailedError) Error() string {
	return fmt.Sprintf("analysis failed for kr=%s person=%s round=%d: %v", e.KRCode, e.Person, e.Round, e.Err)
}

func (e *AnalysisFailedError) Unwrap() error {
	return e.Err
}

// retryableRoundErr decides whether a failed round is worth another attempt.
func retryableRoundErr(err error) bool {
	var (
		malformed  *MalformedResponseError
		validation *ValidationError
		provider   *ProviderError
	)
	switch {
	case errors.As(err, &malformed), errors.As(err, &validation):
		return true
	case errors.As(err, &provider):
		return provider.Transient
	default:
		return false
	}
}
