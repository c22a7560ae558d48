package runtime

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animus-ai/animus/core"
	"github.com/animus-ai/animus/generation"
	"github.com/animus-ai/animus/internal/testutil"
	"github.com/animus-ai/animus/provider"
)

// wordEmbedder embeds over a tiny fixed vocabulary so tests can control
// similarity precisely.
type wordEmbedder struct{ vocab []string }

func newWordEmbedder() *wordEmbedder {
	return &wordEmbedder{vocab: []string{"sky", "blue", "grass", "green", "color"}}
}

func (w *wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(w.vocab))
	for _, field := range strings.Fields(strings.ToLower(text)) {
		word := strings.Trim(field, ".,!?")
		for i, v := range w.vocab {
			if word == v {
				vec[i]++
			}
		}
	}
	return vec, nil
}

func (w *wordEmbedder) Dimensions() int { return len(w.vocab) }

func echoCharacter() *core.Character {
	return &core.Character{
		Name:          "Echo",
		System:        "You are Echo, a test agent.",
		ModelProvider: provider.OpenAI,
		Knowledge:     []core.KnowledgeSource{{Text: "The sky is blue."}},
		RAGKnowledge:  true,
	}
}

func newEchoRuntime(t *testing.T, adapter *testutil.StubAdapter) *AgentRuntime {
	t.Helper()
	gw := generation.NewGateway()
	gw.Register(adapter)
	r := New(echoCharacter(), func(o *Options) {
		o.Gateway = gw
		o.Embedder = newWordEmbedder()
		// Single-word overlaps under the bag-of-words embedder score around
		// cosine 0.5, below the production default.
		o.KnowledgeMatchThreshold = 0.4
	})
	require.NoError(t, r.Initialize(context.Background()))
	t.Cleanup(func() { r.Stop(context.Background()) })
	return r
}

func TestAgentRuntime_Lifecycle(t *testing.T) {
	r := New(echoCharacter())
	assert.Equal(t, PhaseConstructed, r.Phase())

	require.NoError(t, r.Initialize(context.Background()))
	assert.Equal(t, PhaseReady, r.Phase())

	// Double initialization is rejected.
	assert.Error(t, r.Initialize(context.Background()))

	r.Stop(context.Background())
	assert.Equal(t, PhaseStopped, r.Phase())
}

func TestAgentRuntime_HandleMessageBeforeInitialize(t *testing.T) {
	r := New(echoCharacter())
	_, err := r.HandleMessage(context.Background(), core.Memory{Content: core.TextContent("hi")})
	assert.ErrorIs(t, err, core.ErrNotInitialized)
}

func TestAgentRuntime_EndToEndEcho(t *testing.T) {
	ctx := context.Background()
	adapter := &testutil.StubAdapter{ProviderName: provider.OpenAI}
	r := newEchoRuntime(t, adapter)
	roomID, userID := uuid.New(), uuid.New()

	msg := core.Memory{
		UserID:  userID,
		RoomID:  roomID,
		Content: core.TextContent("What color is the sky?"),
	}
	reply, err := r.HandleMessage(ctx, msg)
	require.NoError(t, err)

	// The echoed prompt carries the retrieved knowledge.
	assert.Contains(t, reply.Content.Text, "The sky is blue.")
	assert.Contains(t, reply.Content.Text, "What color is the sky?")
	assert.NotEmpty(t, reply.Content.InReplyTo)

	// User message and reply are both persisted.
	count, err := r.Messages().Count(ctx, roomID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// The exchange touched the relationship.
	score, err := r.Relationships().Score(ctx, r.AgentID(), userID)
	require.NoError(t, err)
	assert.Greater(t, score, 0.0)
}

func TestAgentRuntime_KnowledgeMatchThresholdOption(t *testing.T) {
	ctx := context.Background()
	gw := generation.NewGateway()
	gw.Register(&testutil.StubAdapter{ProviderName: provider.OpenAI})

	newRuntime := func(optFns ...func(o *Options)) *AgentRuntime {
		opts := append([]func(o *Options){func(o *Options) {
			o.Gateway = gw
			o.Embedder = newWordEmbedder()
		}}, optFns...)
		r := New(echoCharacter(), opts...)
		require.NoError(t, r.Initialize(ctx))
		t.Cleanup(func() { r.Stop(ctx) })
		return r
	}
	msg := core.Memory{RoomID: uuid.New(), Content: core.TextContent("What color is the sky?")}

	// Question and stored fact share one of two vocabulary words each, cosine
	// 0.5: below the default cutoff, above a lowered one.
	composed := newRuntime().ComposeContext(ctx, msg, core.State{})
	assert.NotContains(t, composed, "The sky is blue.")

	composed = newRuntime(func(o *Options) { o.KnowledgeMatchThreshold = 0.4 }).
		ComposeContext(ctx, msg, core.State{})
	assert.Contains(t, composed, "The sky is blue.")
}

func TestAgentRuntime_SystemPromptTemplate(t *testing.T) {
	ctx := context.Background()
	adapter := &testutil.StubAdapter{ProviderName: provider.OpenAI, Reply: "ok"}
	gw := generation.NewGateway()
	gw.Register(adapter)
	char := echoCharacter()
	char.System = "You are {{.Name}}. Stay factual."
	r := New(char, func(o *Options) { o.Gateway = gw })
	require.NoError(t, r.Initialize(ctx))
	t.Cleanup(func() { r.Stop(ctx) })

	_, err := r.HandleMessage(ctx, core.Memory{RoomID: uuid.New(), Content: core.TextContent("hi")})
	require.NoError(t, err)
	assert.Equal(t, "You are Echo. Stay factual.", adapter.LastSystem())
}

func TestAgentRuntime_GenerationFallbackAfterRetry(t *testing.T) {
	ctx := context.Background()
	adapter := &testutil.StubAdapter{ProviderName: provider.OpenAI, FailTimes: 10}
	r := newEchoRuntime(t, adapter)

	reply, err := r.HandleMessage(ctx, core.Memory{RoomID: uuid.New(), Content: core.TextContent("hi")})
	require.NoError(t, err)
	assert.Equal(t, fallbackReply, reply.Content.Text)
	assert.Equal(t, 2, adapter.Calls())
}

func TestAgentRuntime_GenerationRetrySucceeds(t *testing.T) {
	ctx := context.Background()
	adapter := &testutil.StubAdapter{ProviderName: provider.OpenAI, Reply: "recovered", FailTimes: 1}
	r := newEchoRuntime(t, adapter)

	reply, err := r.HandleMessage(ctx, core.Memory{RoomID: uuid.New(), Content: core.TextContent("hi")})
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply.Content.Text)
	assert.Equal(t, 2, adapter.Calls())
}

func TestAgentRuntime_EmptyCompletionNotRetried(t *testing.T) {
	ctx := context.Background()
	// Whitespace-only reply: the stream completes but trims to nothing.
	adapter := &testutil.StubAdapter{ProviderName: provider.OpenAI, Reply: "   "}
	r := newEchoRuntime(t, adapter)

	reply, err := r.HandleMessage(ctx, core.Memory{RoomID: uuid.New(), Content: core.TextContent("hi")})
	require.NoError(t, err)
	assert.Equal(t, fallbackReply, reply.Content.Text)
	assert.Equal(t, 1, adapter.Calls())
}

func TestAgentRuntime_EmptyMessageRejected(t *testing.T) {
	adapter := &testutil.StubAdapter{ProviderName: provider.OpenAI}
	r := newEchoRuntime(t, adapter)

	_, err := r.HandleMessage(context.Background(), core.Memory{RoomID: uuid.New()})
	var argErr *core.InvalidArgumentError
	assert.ErrorAs(t, err, &argErr)
}

type testService struct {
	typ         string
	initialized bool
	stopped     bool
}

func (s *testService) Type() string                     { return s.typ }
func (s *testService) Initialize(context.Context) error { s.initialized = true; return nil }
func (s *testService) Stop(context.Context) error       { s.stopped = true; return nil }

func TestAgentRuntime_ServiceDoubleRegistrationNoOp(t *testing.T) {
	r := New(echoCharacter())
	first := &testService{typ: "cache"}
	second := &testService{typ: "cache"}
	r.RegisterService(first)
	r.RegisterService(second)

	require.NoError(t, r.Initialize(context.Background()))
	assert.True(t, first.initialized)
	assert.False(t, second.initialized)

	got, ok := r.Service("cache")
	require.True(t, ok)
	assert.Same(t, first, got)

	r.Stop(context.Background())
	assert.True(t, first.stopped)
}

type panickyProvider struct{}

func (panickyProvider) Name() string { return "panicky" }
func (panickyProvider) Get(context.Context, core.Memory, core.State) (string, error) {
	panic("boom")
}

type staticProvider struct {
	name string
	out  string
}

func (p *staticProvider) Name() string { return p.name }
func (p *staticProvider) Get(context.Context, core.Memory, core.State) (string, error) {
	return p.out, nil
}

func TestAgentRuntime_ComposeContextIsolatesPanics(t *testing.T) {
	r := New(echoCharacter())
	r.RegisterContextProvider(panickyProvider{})
	r.RegisterContextProvider(&staticProvider{name: "after", out: "still here"})
	require.NoError(t, r.Initialize(context.Background()))

	state := core.State{}
	composed := r.ComposeContext(context.Background(), core.Memory{RoomID: uuid.New(), Content: core.TextContent("x")}, state)
	assert.Contains(t, composed, "still here")
	assert.Equal(t, "still here", state["after"])
}

func TestAgentRuntime_ComposeContextRegistrationOrder(t *testing.T) {
	r := New(echoCharacter())
	r.RegisterContextProvider(&staticProvider{name: "first", out: "AAA"})
	r.RegisterContextProvider(&staticProvider{name: "second", out: "BBB"})
	require.NoError(t, r.Initialize(context.Background()))

	composed := r.ComposeContext(context.Background(), core.Memory{RoomID: uuid.New(), Content: core.TextContent("x")}, core.State{})
	assert.Less(t, strings.Index(composed, "AAA"), strings.Index(composed, "BBB"))
}

type cannedAction struct {
	name string
	prob float64
	out  core.Content
}

func (a *cannedAction) Name() string        { return a.name }
func (a *cannedAction) Description() string { return a.name }
func (a *cannedAction) Examples() []string  { return nil }
func (a *cannedAction) Validate(context.Context, core.Memory) (core.Validation, error) {
	return core.Validation{Status: core.ValidationReady, Probability: a.prob}, nil
}
func (a *cannedAction) Handle(context.Context, core.Memory, core.State) (core.Content, error) {
	return a.out, nil
}

func TestAgentRuntime_ActionSelection(t *testing.T) {
	ctx := context.Background()
	adapter := &testutil.StubAdapter{ProviderName: provider.OpenAI}
	r := newEchoRuntime(t, adapter)
	r.RegisterAction(&cannedAction{name: "low", prob: 0.6, out: core.TextContent("low wins")})
	r.RegisterAction(&cannedAction{name: "high", prob: 0.9, out: core.TextContent("high wins")})
	// Same probability as "high": registration order keeps "high".
	r.RegisterAction(&cannedAction{name: "tied", prob: 0.9, out: core.TextContent("tied wins")})

	reply, err := r.HandleMessage(ctx, core.Memory{RoomID: uuid.New(), Content: core.TextContent("do it")})
	require.NoError(t, err)
	assert.Equal(t, "high wins", reply.Content.Text)
	assert.Equal(t, "high", reply.Content.Action)
	// No generation happened.
	assert.Equal(t, 0, adapter.Calls())
}

func TestAgentRuntime_ActionBelowThresholdFallsThrough(t *testing.T) {
	ctx := context.Background()
	adapter := &testutil.StubAdapter{ProviderName: provider.OpenAI, Reply: "generated"}
	r := newEchoRuntime(t, adapter)
	r.RegisterAction(&cannedAction{name: "weak", prob: 0.2, out: core.TextContent("weak")})

	reply, err := r.HandleMessage(ctx, core.Memory{RoomID: uuid.New(), Content: core.TextContent("hm")})
	require.NoError(t, err)
	assert.Equal(t, "generated", reply.Content.Text)
}

type countingEvaluator struct {
	name      string
	alwaysRun bool
	calls     int
	panics    bool
}

func (e *countingEvaluator) Name() string    { return e.name }
func (e *countingEvaluator) AlwaysRun() bool { return e.alwaysRun }
func (e *countingEvaluator) Validate(context.Context, core.Memory) (bool, error) {
	return false, nil
}
func (e *countingEvaluator) Handle(context.Context, core.Memory, core.Memory) error {
	e.calls++
	if e.panics {
		panic("evaluator boom")
	}
	return nil
}

func TestAgentRuntime_EvaluatorsIsolated(t *testing.T) {
	ctx := context.Background()
	adapter := &testutil.StubAdapter{ProviderName: provider.OpenAI}
	r := newEchoRuntime(t, adapter)
	bad := &countingEvaluator{name: "bad", alwaysRun: true, panics: true}
	good := &countingEvaluator{name: "good", alwaysRun: true}
	skipped := &countingEvaluator{name: "skipped"}
	r.RegisterEvaluator(bad)
	r.RegisterEvaluator(good)
	r.RegisterEvaluator(skipped)

	_, err := r.HandleMessage(ctx, core.Memory{RoomID: uuid.New(), Content: core.TextContent("hi")})
	require.NoError(t, err)
	assert.Equal(t, 1, bad.calls)
	assert.Equal(t, 1, good.calls)
	assert.Equal(t, 0, skipped.calls)
}

func TestAgentRuntime_NonRAGSkipsFileSources(t *testing.T) {
	ctx := context.Background()
	char := echoCharacter()
	char.RAGKnowledge = false
	char.Knowledge = []core.KnowledgeSource{
		{Text: "Direct fact."},
		{Path: "/nonexistent/file.txt"},
	}
	r := New(char)
	// The missing file would fail ingestion; non-RAG mode never touches it.
	require.NoError(t, r.Initialize(ctx))
	assert.Equal(t, PhaseReady, r.Phase())

	// The deterministic embedder maps identical text to identical vectors, so
	// the ingested direct fact is an exact match.
	items, err := r.Knowledge().Search(ctx, "Direct fact.", 0.99, 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Direct fact.", items[0].Content.Text)
}

func TestAgentRuntime_MemoryManagerPerTable(t *testing.T) {
	r := New(echoCharacter())
	a := r.MemoryManager("facts")
	b := r.MemoryManager("facts")
	assert.Same(t, a, b)
	assert.NotSame(t, a, r.MemoryManager("messages"))
}
