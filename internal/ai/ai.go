// Package ai defines the completion service used for scoring, form analysis
// and free-text posting extraction, plus schema-validated structured calls.
package ai

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultTimeout       = 60 * time.Second
	DefaultSchemaRetries = 2
)

// Options tune a single completion call.
type Options struct {
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	// JSON asks the provider for a JSON-only response.
	JSON bool
	// SchemaRetries is how many times CompleteJSON re-prompts after an
	// invalid answer. Zero means DefaultSchemaRetries, negative disables.
	SchemaRetries int
}

// Completer produces a text completion for a system and a user prompt.
type Completer interface {
	Complete(ctx context.Context, system, user string, opts Options) (string, error)
}

// Describer is implemented by completers that can report provider details for logs.
type Describer interface {
	Provider() string
	Model() string
}

// ExternalServiceError reports that the completion service failed to produce a
// usable answer.
type ExternalServiceError struct {
	Service  string
	Attempts int
	Err      error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Service, e.Attempts, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultTimeout
	}
	return o.Timeout
}

func (o Options) schemaRetries() int {
	switch {
	case o.SchemaRetries < 0:
		return 0
	case o.SchemaRetries == 0:
		return DefaultSchemaRetries
	default:
		return o.SchemaRetries
	}
}

func serviceName(c Completer) string {
	if d, ok := c.(Describer); ok && d.Provider() != "" {
		return d.Provider()
	}
	return "completion service"
}
