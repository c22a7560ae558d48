package runtime

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/animus-ai/animus/core"
	"github.com/animus-ai/animus/datastore"
	"github.com/animus-ai/animus/embedder"
	"github.com/animus-ai/animus/generation"
	"github.com/animus-ai/animus/knowledge"
	"github.com/animus-ai/animus/logging"
	"github.com/animus-ai/animus/memory"
	"github.com/animus-ai/animus/provider"
	"github.com/animus-ai/animus/relationship"
	"github.com/animus-ai/animus/tokenizer"
)

// Phase is the lifecycle state of an AgentRuntime.
type Phase string

const (
	// PhaseConstructed is the state after New, before Initialize.
	PhaseConstructed Phase = "CONSTRUCTED"
	// PhaseInitializing covers service startup and knowledge ingestion.
	PhaseInitializing Phase = "INITIALIZING"
	// PhaseReady accepts messages.
	PhaseReady Phase = "READY"
	// PhaseStopping covers best-effort shutdown of clients and services.
	PhaseStopping Phase = "STOPPING"
	// PhaseStopped is terminal.
	PhaseStopped Phase = "STOPPED"
)

// messagesTable is the default table conversational memories live in.
const messagesTable = "messages"

// AgentRuntime orchestrates one agent: its character, capabilities, memory
// and model access.
type AgentRuntime struct {
	agentID   uuid.UUID
	character *core.Character

	datastore core.DatastoreAdapter
	embedder  embedder.Embedder
	gateway   *generation.Gateway
	resolver  *provider.Resolver
	knowledge *knowledge.Manager
	relations *relationship.Manager

	mu             sync.RWMutex
	phase          Phase
	actions        []core.Action
	evaluators     []core.Evaluator
	providers      []core.ContextProvider
	services       map[string]core.Service
	serviceOrder   []string
	clients        []core.Client
	memoryManagers map[string]*memory.Manager

	sem                chan struct{}
	modelClass         provider.ModelClass
	actionThreshold    float64
	knowledgeThreshold float64
	knowledgeCount     int
	logger             logging.Logger
}

// Options configures an AgentRuntime.
type Options struct {
	// AgentID pins the agent identity; a random id is generated when unset.
	AgentID uuid.UUID
	// Datastore defaults to the in-memory adapter.
	Datastore core.DatastoreAdapter
	// Embedder defaults to the deterministic local embedder.
	Embedder embedder.Embedder
	// Gateway defaults to an empty gateway; adapters must be registered before
	// messages can be handled.
	Gateway *generation.Gateway
	// Resolver defaults to one backed by the character's settings.
	Resolver *provider.Resolver
	// Plugins contribute actions, evaluators, providers and services.
	Plugins []core.Plugin
	// MaxConcurrentMessages bounds parallel HandleMessage calls. Default 8.
	MaxConcurrentMessages int
	// ActionThreshold is the minimum validation probability for an action to
	// be selected. Default 0.5.
	ActionThreshold float64
	// KnowledgeMatchThreshold is the minimum similarity for a retrieved
	// knowledge fragment to enter the prompt. Default 0.7.
	KnowledgeMatchThreshold float64
	// KnowledgeMatchCount caps how many knowledge fragments enter the prompt.
	// Default 3.
	KnowledgeMatchCount int
	// ModelClass selects the generation tier. Default large.
	ModelClass provider.ModelClass
	// ChunkConfig overrides knowledge chunking defaults.
	ChunkConfig *knowledge.ChunkConfig
	// PDFExtractor enables PDF knowledge ingestion.
	PDFExtractor knowledge.PDFExtractor
	Logger       logging.Logger
}

// New constructs an AgentRuntime for a character. The runtime is not usable
// until Initialize has completed.
func New(character *core.Character, optFns ...func(o *Options)) *AgentRuntime {
	opts := Options{
		MaxConcurrentMessages:   8,
		ActionThreshold:         0.5,
		KnowledgeMatchThreshold: defaultKnowledgeMatchThreshold,
		KnowledgeMatchCount:     defaultKnowledgeMatchCount,
		ModelClass:              provider.ModelClassLarge,
		Logger:                  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.AgentID == uuid.Nil {
		opts.AgentID = uuid.New()
	}
	if opts.Datastore == nil {
		opts.Datastore = datastore.NewInMemory()
	}
	if opts.Embedder == nil {
		opts.Embedder = embedder.NewStatic(embeddingDimensions)
	}
	if opts.Gateway == nil {
		opts.Gateway = generation.NewGateway()
	}
	if opts.Resolver == nil {
		opts.Resolver = provider.NewResolver(character)
	}

	knowledgeOpts := func(o *knowledge.Options) {
		o.Logger = opts.Logger
		o.PDFExtractor = opts.PDFExtractor
		if opts.ChunkConfig != nil {
			o.ChunkConfig = *opts.ChunkConfig
		}
	}

	r := &AgentRuntime{
		agentID:            opts.AgentID,
		character:          character,
		datastore:          opts.Datastore,
		embedder:           opts.Embedder,
		gateway:            opts.Gateway,
		resolver:           opts.Resolver,
		knowledge:          knowledge.New(opts.AgentID, opts.Datastore, opts.Embedder, knowledgeOpts),
		relations:          relationship.New(opts.Datastore),
		phase:              PhaseConstructed,
		services:           make(map[string]core.Service),
		memoryManagers:     make(map[string]*memory.Manager),
		sem:                make(chan struct{}, opts.MaxConcurrentMessages),
		modelClass:         opts.ModelClass,
		actionThreshold:    opts.ActionThreshold,
		knowledgeThreshold: opts.KnowledgeMatchThreshold,
		knowledgeCount:     opts.KnowledgeMatchCount,
		logger:             opts.Logger,
	}

	// Built-in context providers come first so plugin providers can build on
	// their output. Registration order is prompt order.
	r.providers = []core.ContextProvider{
		&knowledgeProvider{runtime: r},
		&recentMessagesProvider{runtime: r},
		&actorsProvider{runtime: r},
		&goalsProvider{runtime: r},
	}

	for _, p := range opts.Plugins {
		r.RegisterPlugin(p)
	}
	return r
}

// embeddingDimensions is the default local embedder width.
const embeddingDimensions = 384

// AgentID returns the runtime's agent identity.
func (r *AgentRuntime) AgentID() uuid.UUID { return r.agentID }

// Character returns the character definition the runtime was built from.
func (r *AgentRuntime) Character() *core.Character { return r.character }

// Knowledge returns the knowledge manager.
func (r *AgentRuntime) Knowledge() *knowledge.Manager { return r.knowledge }

// Relationships returns the relationship manager.
func (r *AgentRuntime) Relationships() *relationship.Manager { return r.relations }

// Phase returns the current lifecycle phase.
func (r *AgentRuntime) Phase() Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.phase
}

func (r *AgentRuntime) setPhase(p Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = p
}

// RegisterPlugin merges a plugin's capability slices into the registries.
func (r *AgentRuntime) RegisterPlugin(p core.Plugin) {
	r.logger.Debug("Registering plugin", "plugin", p.Name)
	for _, a := range p.Actions {
		r.RegisterAction(a)
	}
	for _, e := range p.Evaluators {
		r.RegisterEvaluator(e)
	}
	for _, cp := range p.Providers {
		r.RegisterContextProvider(cp)
	}
	for _, s := range p.Services {
		r.RegisterService(s)
	}
}

// RegisterAction appends an action. Registration order breaks selection ties.
func (r *AgentRuntime) RegisterAction(a core.Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a)
}

// RegisterEvaluator appends an evaluator.
func (r *AgentRuntime) RegisterEvaluator(e core.Evaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluators = append(r.evaluators, e)
}

// RegisterContextProvider appends a context provider. Registration order is
// prompt order.
func (r *AgentRuntime) RegisterContextProvider(p core.ContextProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
}

// RegisterService adds a service keyed by type. A duplicate type is a warned
// no-op, never an overwrite: the first registration wins.
func (r *AgentRuntime) RegisterService(s core.Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.services[s.Type()]; exists {
		r.logger.Warn("Service type already registered, ignoring", "type", s.Type())
		return
	}
	r.services[s.Type()] = s
	r.serviceOrder = append(r.serviceOrder, s.Type())
}

// Service returns the registered service of a type.
func (r *AgentRuntime) Service(typ string) (core.Service, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[typ]
	return s, ok
}

// RegisterClient attaches a front-end client for lifecycle management.
func (r *AgentRuntime) RegisterClient(c core.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = append(r.clients, c)
}

// MemoryManager returns the manager for a table, creating it on first use.
func (r *AgentRuntime) MemoryManager(table string) *memory.Manager {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.memoryManagers[table]; ok {
		return m
	}
	m := memory.New(table, r.datastore, r.embedder, func(o *memory.Options) { o.Logger = r.logger })
	r.memoryManagers[table] = m
	return m
}

// Messages returns the conversational memory manager.
func (r *AgentRuntime) Messages() *memory.Manager { return r.MemoryManager(messagesTable) }

// Initialize starts registered services and ingests the character's knowledge
// sources. Service failures abort initialization; knowledge failures are
// logged per source and never abort it.
func (r *AgentRuntime) Initialize(ctx context.Context) error {
	if p := r.Phase(); p != PhaseConstructed {
		return fmt.Errorf("initialize called in phase %s", p)
	}
	r.setPhase(PhaseInitializing)
	r.logger.Info("Initializing runtime", "agent", r.character.Name, "agentId", r.agentID)

	r.mu.RLock()
	order := append([]string(nil), r.serviceOrder...)
	r.mu.RUnlock()
	for _, typ := range order {
		s, _ := r.Service(typ)
		if err := s.Initialize(ctx); err != nil {
			r.setPhase(PhaseConstructed)
			return fmt.Errorf("service %s: %w", typ, err)
		}
	}

	r.ingestKnowledge(ctx)

	r.setPhase(PhaseReady)
	return nil
}

// ingestKnowledge processes the character's knowledge sources. In RAG mode
// the full pipeline runs (files, directories, cleanup of vanished files); in
// compatibility mode only direct string knowledge is ingested and file-backed
// sources are skipped with a warning.
func (r *AgentRuntime) ingestKnowledge(ctx context.Context) {
	for _, src := range r.character.Knowledge {
		if !r.character.RAGKnowledge && src.Text == "" {
			r.logger.Warn("Skipping file-backed knowledge source, RAG disabled",
				"path", src.Path, "directory", src.Directory)
			continue
		}
		for _, err := range r.knowledge.Ingest(ctx, src) {
			r.logger.Warn("Knowledge ingestion failure", "error", err)
		}
	}
	if r.character.RAGKnowledge {
		if _, err := r.knowledge.CleanupMissing(ctx); err != nil {
			r.logger.Warn("Knowledge cleanup failed", "error", err)
		}
	}
}

// Stop shuts the runtime down: clients first, then services, all best-effort.
// Individual stop errors are logged, never returned.
func (r *AgentRuntime) Stop(ctx context.Context) {
	if p := r.Phase(); p == PhaseStopping || p == PhaseStopped {
		return
	}
	r.setPhase(PhaseStopping)
	r.logger.Info("Stopping runtime", "agent", r.character.Name)

	r.mu.RLock()
	clients := append([]core.Client(nil), r.clients...)
	order := append([]string(nil), r.serviceOrder...)
	r.mu.RUnlock()

	for _, c := range clients {
		if err := c.Stop(ctx); err != nil {
			r.logger.Warn("Client stop failed", "client", c.Name(), "error", err)
		}
	}
	for i := len(order) - 1; i >= 0; i-- {
		s, _ := r.Service(order[i])
		if err := s.Stop(ctx); err != nil {
			r.logger.Warn("Service stop failed", "type", order[i], "error", err)
		}
	}
	r.setPhase(PhaseStopped)
}

// trimToModelBudget caps the composed prompt to the model's input window.
func trimToModelBudget(prompt string, cfg provider.ModelConfig) string {
	if cfg.MaxInputTokens <= 0 {
		return prompt
	}
	trimmed, err := tokenizer.Trim(prompt, cfg.MaxInputTokens, cfg.Model)
	if err != nil {
		return prompt
	}
	return trimmed
}
