package core

import "context"

// State is the transient per-message composition state handed to context
// providers and actions. Keys are provider-defined; values are short strings
// already rendered for prompt inclusion.
type State map[string]string

// ValidationStatus reports whether an action is applicable to a message.
type ValidationStatus string

const (
	// ValidationReady means the action can handle the message.
	ValidationReady ValidationStatus = "READY"
	// ValidationSkip means the action does not apply.
	ValidationSkip ValidationStatus = "SKIP"
)

// Validation is the outcome of Action.Validate: an applicability status plus
// a probability used to rank competing READY actions.
type Validation struct {
	Status      ValidationStatus
	Probability float64
}

// Action is a capability the agent can take in response to a message instead
// of (or before) plain text generation. Implementations without examples
// return an empty slice rather than omitting the method.
type Action interface {
	Name() string
	Description() string
	Validate(ctx context.Context, msg Memory) (Validation, error)
	Handle(ctx context.Context, msg Memory, state State) (Content, error)
	Examples() []string
}

// Evaluator inspects a completed exchange for side effects, e.g. relationship
// scoring or fact extraction. AlwaysRun evaluators execute on every exchange;
// others run only when Validate approves.
type Evaluator interface {
	Name() string
	Validate(ctx context.Context, msg Memory) (bool, error)
	Handle(ctx context.Context, msg, reply Memory) error
	AlwaysRun() bool
}

// ContextProvider contributes a string section to the composed prompt
// context. Empty output is skipped; errors are isolated by the registry so
// one misbehaving provider cannot break response generation.
type ContextProvider interface {
	Name() string
	Get(ctx context.Context, msg Memory, state State) (string, error)
}

// Service is a long-lived capability initialized before knowledge ingestion
// and stopped best-effort at shutdown. Type is the registry key; registering
// a duplicate type is a warned no-op, never an overwrite.
type Service interface {
	Type() string
	Initialize(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Client is an attached front-end (chat transport, poller) whose lifetime is
// bound to the runtime. Stop errors are logged, not propagated, so one client
// cannot fail the whole shutdown.
type Client interface {
	Name() string
	Stop(ctx context.Context) error
}

// Plugin is the static manifest a plugin supplies at construction time. The
// runtime never calls back into plugin-internal state beyond these slices.
type Plugin struct {
	Name        string
	Description string
	Actions     []Action
	Evaluators  []Evaluator
	Providers   []ContextProvider
	Services    []Service
}
