package runtime

import (
	"context"
	"strings"

	"github.com/animus-ai/animus/core"
)

// defaultKnowledgeMatchThreshold filters retrieved fragments by similarity.
const defaultKnowledgeMatchThreshold = 0.7

// defaultKnowledgeMatchCount caps how many fragments enter the prompt.
const defaultKnowledgeMatchCount = 3

// recentMessageCount caps the conversation window in the prompt.
const recentMessageCount = 10

// ComposeContext renders the prompt context for a message: every registered
// context provider runs in registration order and non-empty outputs are
// newline-joined. A provider error or panic drops that provider's section and
// never fails composition.
func (r *AgentRuntime) ComposeContext(ctx context.Context, msg core.Memory, state core.State) string {
	r.mu.RLock()
	providers := append([]core.ContextProvider(nil), r.providers...)
	r.mu.RUnlock()

	var sections []string
	for _, p := range providers {
		out, err := r.runProvider(ctx, p, msg, state)
		if err != nil {
			r.logger.Warn("Context provider failed", "provider", p.Name(), "error", err)
			continue
		}
		if out == "" {
			continue
		}
		state[p.Name()] = out
		sections = append(sections, out)
	}
	return strings.Join(sections, "\n\n")
}

// runProvider isolates a single provider call, converting panics to errors.
func (r *AgentRuntime) runProvider(ctx context.Context, p core.ContextProvider, msg core.Memory, state core.State) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &providerPanicError{provider: p.Name(), value: rec}
		}
	}()
	out, err = p.Get(ctx, msg, state)
	return strings.TrimSpace(out), err
}

type providerPanicError struct {
	provider string
	value    any
}

func (e *providerPanicError) Error() string {
	return "context provider " + e.provider + " panicked"
}

// knowledgeProvider surfaces retrieved knowledge fragments relevant to the
// incoming message.
type knowledgeProvider struct{ runtime *AgentRuntime }

func (p *knowledgeProvider) Name() string { return "knowledge" }

func (p *knowledgeProvider) Get(ctx context.Context, msg core.Memory, _ core.State) (string, error) {
	if msg.Content.Text == "" {
		return "", nil
	}
	items, err := p.runtime.knowledge.Search(ctx, msg.Content.Text, p.runtime.knowledgeThreshold, p.runtime.knowledgeCount)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", nil
	}
	var b strings.Builder
	b.WriteString("Relevant knowledge:")
	for _, item := range items {
		b.WriteString("\n- " + item.Content.Text)
	}
	return b.String(), nil
}

// recentMessagesProvider renders the conversation window, oldest first. Agent
// replies carry InReplyTo; everything else is attributed to the user.
type recentMessagesProvider struct{ runtime *AgentRuntime }

func (p *recentMessagesProvider) Name() string { return "recentMessages" }

func (p *recentMessagesProvider) Get(ctx context.Context, msg core.Memory, _ core.State) (string, error) {
	memories, err := p.runtime.Messages().ByRoom(ctx, msg.RoomID, recentMessageCount)
	if err != nil {
		return "", err
	}
	var lines []string
	for i := len(memories) - 1; i >= 0; i-- {
		m := memories[i]
		if m.ID == msg.ID {
			continue
		}
		speaker := "User"
		if m.Content.InReplyTo != "" {
			speaker = p.runtime.character.Name
		}
		lines = append(lines, speaker+": "+m.Content.Text)
	}
	if len(lines) == 0 {
		return "", nil
	}
	return "Recent conversation:\n" + strings.Join(lines, "\n"), nil
}

// actorsProvider lists the participants of the room.
type actorsProvider struct{ runtime *AgentRuntime }

func (p *actorsProvider) Name() string { return "actors" }

func (p *actorsProvider) Get(ctx context.Context, msg core.Memory, _ core.State) (string, error) {
	actors, err := p.runtime.datastore.GetActors(ctx, msg.RoomID)
	if err != nil {
		return "", err
	}
	if len(actors) == 0 {
		return "", nil
	}
	var lines []string
	for _, a := range actors {
		line := "- " + a.Name
		if a.Details != "" {
			line += ": " + a.Details
		}
		lines = append(lines, line)
	}
	return "Participants:\n" + strings.Join(lines, "\n"), nil
}

// goalsProvider lists the in-progress goals of the room.
type goalsProvider struct{ runtime *AgentRuntime }

func (p *goalsProvider) Name() string { return "goals" }

func (p *goalsProvider) Get(ctx context.Context, msg core.Memory, _ core.State) (string, error) {
	goals, err := p.runtime.datastore.GetGoals(ctx, msg.RoomID, true)
	if err != nil {
		return "", err
	}
	if len(goals) == 0 {
		return "", nil
	}
	var lines []string
	for _, g := range goals {
		line := "- " + g.Name
		if len(g.Objectives) > 0 {
			line += " (" + strings.Join(g.Objectives, "; ") + ")"
		}
		lines = append(lines, line)
	}
	return "Current goals:\n" + strings.Join(lines, "\n"), nil
}
