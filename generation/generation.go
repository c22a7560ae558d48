// Package generation is the text generation gateway: given a resolved
// provider + model configuration, a trimmed context and a system prompt, it
// produces a string response. Each supported vendor is a pluggable Adapter
// implementing one uniform shape, so the single call site never branches per
// provider; the branching is isolated to adapter construction and registry
// lookup.
//
// The gateway itself performs no retries so callers can apply their own
// policy. Provider-specific retry/backoff is the responsibility of the
// adapter.
package generation

import (
	"context"
	"errors"
	"time"

	"github.com/animus-ai/animus/provider"
)

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (minimal subset expected).
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// StepType tags the kind of a streamed generation step.
type StepType string

const (
	// StepText carries a text fragment (a delta when streaming, the full
	// completion otherwise).
	StepText StepType = "text"
	// StepToolCall carries a tool invocation request from the model.
	StepToolCall StepType = "tool_call"
	// StepFinish terminates the stream with the finish reason.
	StepFinish StepType = "finish"
)

// ToolCall is a unified function call request surfaced by a model provider.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // serialized JSON argument payload
}

// Step is one event of a generation stream. The orchestrator consumes steps
// in a blocking-receive loop, making step ordering and cancellation explicit.
// Providers without tool support only ever emit StepText and StepFinish.
type Step struct {
	Type         StepType
	Text         string
	ToolCall     *ToolCall
	FinishReason string
}

// Request captures the normalized generation input.
type Request struct {
	System string
	Prompt string
	Tools  []ToolDefinition
	Stream bool
	Config provider.ModelConfig
}

// Adapter is the per-vendor strategy. Implementations convert the normalized
// Request into the vendor's wire format, stream Step events and close both
// channels on completion. Network retry/backoff lives here, not in the
// gateway.
type Adapter interface {
	Name() string
	Generate(ctx context.Context, req Request) (<-chan Step, <-chan error)
}

// retryLinear runs op with linear backoff: attempt n sleeps n*delay before
// retrying. Context cancellation is honored between attempts; a
// permanentError stops the loop immediately.
func retryLinear(ctx context.Context, attempts int, delay time.Duration, op func() error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = op(); lastErr == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay * time.Duration(attempt)):
		}
	}
	return lastErr
}
