// Package llm defines the model-invocation capability the analysis core
// consumes: send a message list, get back a raw provider-shaped response.
// The core is agnostic to the concrete provider; the envelope package
// downstream recognizes a fixed set of response shapes plus a bare-string
// fallback, so clients return their provider's response as-is.
package llm

import (
	"context"
	"errors"
)

// ErrInvalidJSON marks a response the provider itself flagged as unusable.
var ErrInvalidJSON = errors.New("llm: invalid response from model")

// Message is one turn of the request conversation.
type Message struct {
	Role    string `json:"role"` // "system" or "user"
	Content string `json:"content"`
}

// Options bounds a single generation. Structured-output calls run with low
// temperature and a hard token cap.
type Options struct {
	Temperature float32
	MaxTokens   int
}

// Client invokes the external language model. Invoke returns the raw,
// shape-unknown response; callers must treat it as opaque and adapt it.
type Client interface {
	Name() string
	Invoke(ctx context.Context, msgs []Message, opts Options) (any, error)
	Close() error
}

// PermanentError indicates a failure that will not resolve with retries,
// such as a context-length rejection.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// NewPermanentError wraps err so retry middleware stops immediately.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// SystemUser is a convenience constructor for the common two-message call.
func SystemUser(system, user string) []Message {
	return []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}
