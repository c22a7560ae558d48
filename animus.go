// Package animus provides a high-level façade over the agent runtime,
// generation gateway and storage abstractions enabling rapid construction of
// character-driven agents. Most applications interact with this package by:
//  1. Creating an Agent via New() from a character definition (optionally
//     overriding the default in-memory services)
//  2. Calling Initialize() to start services and ingest knowledge
//  3. Exchanging messages via ProcessMessage()
//
// The façade delegates orchestration to runtime.AgentRuntime while keeping
// setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply a durable
// datastore, a remote embedder and a structured logger.
package animus

import (
	"context"

	"github.com/google/uuid"

	"github.com/animus-ai/animus/core"
	"github.com/animus-ai/animus/embedder"
	"github.com/animus-ai/animus/generation"
	"github.com/animus-ai/animus/logging"
	"github.com/animus-ai/animus/provider"
	"github.com/animus-ai/animus/runtime"
)

// Options configures the Agent façade.
type Options struct {
	// Datastore defaults to the in-memory adapter. Supply the sqlite adapter
	// (or any core.DatastoreAdapter) for durable memory.
	Datastore core.DatastoreAdapter

	// Embedder defaults to the remote embedder when the character resolves an
	// embedding model with credentials, falling back to the deterministic
	// local embedder otherwise.
	Embedder embedder.Embedder

	// Gateway defaults to one with every built-in provider adapter registered.
	Gateway *generation.Gateway

	// Plugins contribute actions, evaluators, context providers and services.
	Plugins []core.Plugin

	// MaxConcurrentMessages bounds parallel message handling. Zero keeps the
	// runtime default.
	MaxConcurrentMessages int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Agent is the high-level façade aggregating the runtime and its services.
type Agent struct {
	opts    Options
	runtime *runtime.AgentRuntime
}

// New creates an Agent for a character with optional overrides. Any unset
// service is initialized with a local default.
func New(character *core.Character, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Gateway == nil {
		opts.Gateway = defaultGateway(opts.Logger)
	}
	if opts.Embedder == nil {
		opts.Embedder = defaultEmbedder(character)
	}

	rt := runtime.New(character, func(o *runtime.Options) {
		o.Datastore = opts.Datastore
		o.Embedder = opts.Embedder
		o.Gateway = opts.Gateway
		o.Plugins = opts.Plugins
		o.Logger = opts.Logger
		if opts.MaxConcurrentMessages > 0 {
			o.MaxConcurrentMessages = opts.MaxConcurrentMessages
		}
	})
	return &Agent{opts: opts, runtime: rt}
}

// defaultGateway registers every built-in provider adapter: the native OpenAI
// and Anthropic SDK adapters plus OpenAI-compatible adapters for the rest.
func defaultGateway(logger logging.Logger) *generation.Gateway {
	gw := generation.NewGateway(func(o *generation.GatewayOptions) { o.Logger = logger })
	gw.Register(generation.NewOpenAIAdapter())
	gw.Register(generation.NewAnthropicAdapter())
	gw.Register(generation.NewCompatAdapter(provider.OpenRouter))
	gw.Register(generation.NewCompatAdapter(provider.DeepSeek))
	gw.Register(generation.NewCompatAdapter(provider.Groq))
	gw.Register(generation.NewCompatAdapter(provider.Ollama))
	return gw
}

// defaultEmbedder resolves the character's embedding model. With credentials
// a remote embedder is used; otherwise the deterministic local embedder keeps
// retrieval working offline.
func defaultEmbedder(character *core.Character) embedder.Embedder {
	resolver := provider.NewResolver(character)
	cfg, err := resolver.Resolve(character.ModelProvider, provider.ModelClassEmbedding)
	if err != nil || cfg.APIKey == "" {
		return embedder.NewStatic(384)
	}
	return embedder.NewRemote(func(o *embedder.RemoteOptions) {
		o.Model = cfg.Model
		o.Endpoint = cfg.Endpoint
		o.APIKey = cfg.APIKey
	})
}

// Runtime exposes the underlying AgentRuntime for advanced wiring
// (registering actions, memory managers, services) beyond the façade surface.
func (a *Agent) Runtime() *runtime.AgentRuntime { return a.runtime }

// Initialize starts services and ingests the character's knowledge. It must
// be called before ProcessMessage.
func (a *Agent) Initialize(ctx context.Context) error {
	return a.runtime.Initialize(ctx)
}

// ProcessMessage runs one exchange: text from userID in roomID, the agent's
// reply memory back.
func (a *Agent) ProcessMessage(ctx context.Context, roomID, userID uuid.UUID, text string) (core.Memory, error) {
	return a.runtime.HandleMessage(ctx, core.Memory{
		UserID:  userID,
		RoomID:  roomID,
		Content: core.TextContent(text),
	})
}

// HandleMessage forwards a fully formed memory to the runtime, for callers
// that need attachments or custom content fields.
func (a *Agent) HandleMessage(ctx context.Context, msg core.Memory) (core.Memory, error) {
	return a.runtime.HandleMessage(ctx, msg)
}

// Stop shuts down clients and services best-effort.
func (a *Agent) Stop(ctx context.Context) {
	a.runtime.Stop(ctx)
}
