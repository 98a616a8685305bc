// Package llm is the completion gateway: a Completer backend wrapped with
// bounded retries, per-attempt logging, call recording, and latency stats.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/edugest/internal/textnorm"
)

// Call points label every completion for routing and metering.
const (
	CallClassify  = "classify"
	CallSegment   = "segment"
	CallExtract   = "extract"
	CallStructure = "structure"
)

// ErrExhausted is returned once every attempt has failed with a transient error.
var ErrExhausted = errors.New("completion retries exhausted")

// Params are per-call model hints. Zero values fall back to the backend defaults.
type Params struct {
	Model       string   `yaml:"model" json:"model,omitempty"`
	MaxTokens   int      `yaml:"max_tokens" json:"max_tokens,omitempty"`
	Temperature *float64 `yaml:"temperature" json:"temperature,omitempty"`
}

// Request is a single completion request.
type Request struct {
	System string
	User   string
	Params
}

// Completer is a text-in/text-out completion backend.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Invoker is what pipeline components depend on. *Gateway implements it.
type Invoker interface {
	Invoke(ctx context.Context, system, user, callPoint string, p Params) (string, error)
}

// CallRecord describes one completion attempt.
type CallRecord struct {
	CallPoint      string
	Model          string
	Attempt        int
	LatencyMs      int64
	Success        bool
	Error          string
	PromptTokens   int
	ResponseTokens int
	CreatedAt      time.Time
}

// CallRecorder persists call records. Recording failures never fail a call.
type CallRecorder interface {
	RecordCall(ctx context.Context, rec CallRecord) error
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("retryable error: %s", textnorm.Truncate(e.Message, 200))
	}
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, textnorm.Truncate(e.Message, 200))
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}
