package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/animus-ai/animus/core"
	"github.com/animus-ai/animus/generation"
	"github.com/animus-ai/animus/internal/promptutil"
)

// fallbackReply is returned when generation fails after retrying. The failure
// is logged; the user still gets a response.
const fallbackReply = "I'm having trouble responding right now. Please try again in a moment."

// interactionScore is the per-exchange relationship signal folded into the
// affinity average.
const interactionScore = 1.0

// HandleMessage runs the full exchange for one incoming message: persist it,
// compose context, select an action or generate a reply, persist the reply,
// run evaluators, touch the relationship. The reply memory is returned.
//
// Concurrency is bounded by the runtime's semaphore; callers block until a
// slot frees or ctx is cancelled.
func (r *AgentRuntime) HandleMessage(ctx context.Context, msg core.Memory) (core.Memory, error) {
	if r.Phase() != PhaseReady {
		return core.Memory{}, core.ErrNotInitialized
	}
	if msg.Content.Empty() {
		return core.Memory{}, &core.InvalidArgumentError{Field: "content", Reason: "message has no content"}
	}
	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		return core.Memory{}, ctx.Err()
	}

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.RoomID == uuid.Nil {
		msg.RoomID = uuid.New()
	}
	msg.AgentID = r.agentID

	messages := r.Messages()
	if err := messages.AddEmbedding(ctx, &msg); err != nil {
		return core.Memory{}, err
	}
	if err := messages.Create(ctx, msg, false); err != nil {
		return core.Memory{}, err
	}

	state := core.State{}
	composed := r.ComposeContext(ctx, msg, state)

	content, err := r.respond(ctx, msg, state, composed)
	if err != nil {
		return core.Memory{}, err
	}

	reply := core.Memory{
		ID:      uuid.New(),
		AgentID: r.agentID,
		UserID:  msg.UserID,
		RoomID:  msg.RoomID,
		Content: content,
	}
	reply.Content.InReplyTo = msg.ID.String()
	if err := messages.AddEmbedding(ctx, &reply); err != nil {
		return core.Memory{}, err
	}
	// The reply is only persisted once the full response exists; a failed or
	// partial generation never leaves a memory behind.
	if err := messages.Create(ctx, reply, false); err != nil {
		return core.Memory{}, err
	}

	r.runEvaluators(ctx, msg, reply)

	if msg.UserID != uuid.Nil {
		if _, err := r.relations.Record(ctx, r.agentID, msg.UserID, interactionScore); err != nil {
			r.logger.Warn("Relationship update failed", "error", err)
		}
	}
	return reply, nil
}

// respond produces the reply content, either through a selected action or
// through model generation.
func (r *AgentRuntime) respond(ctx context.Context, msg core.Memory, state core.State, composed string) (core.Content, error) {
	if action := r.selectAction(ctx, msg); action != nil {
		content, err := action.Handle(ctx, msg, state)
		if err != nil {
			r.logger.Warn("Action failed, falling back to generation", "action", action.Name(), "error", err)
		} else if !content.Empty() {
			if content.Action == "" {
				content.Action = action.Name()
			}
			return content, nil
		}
	}
	text, err := r.generateReply(ctx, msg, state, composed)
	if err != nil {
		return core.Content{}, err
	}
	return core.TextContent(text), nil
}

// systemPrompt renders the character's system prompt template against the
// composed state. A render failure falls back to the raw prompt.
func (r *AgentRuntime) systemPrompt(state core.State) string {
	raw := r.character.SystemPrompt()
	rendered, err := promptutil.Render(raw, map[string]any{
		"Name":  r.character.Name,
		"Bio":   r.character.Bio,
		"State": state,
	})
	if err != nil {
		r.logger.Warn("System prompt template failed", "error", err)
		return raw
	}
	return rendered
}

// selectAction validates every registered action against the message and
// returns the READY action with the highest probability at or above the
// threshold. Ties keep the earliest registered action. Validation errors are
// logged and treated as SKIP.
func (r *AgentRuntime) selectAction(ctx context.Context, msg core.Memory) core.Action {
	r.mu.RLock()
	actions := append([]core.Action(nil), r.actions...)
	r.mu.RUnlock()

	var best core.Action
	bestProb := r.actionThreshold
	for _, a := range actions {
		v, err := a.Validate(ctx, msg)
		if err != nil {
			r.logger.Warn("Action validation failed", "action", a.Name(), "error", err)
			continue
		}
		if v.Status != core.ValidationReady {
			continue
		}
		if v.Probability > bestProb || (best == nil && v.Probability == bestProb) {
			best = a
			bestProb = v.Probability
		}
	}
	return best
}

// generateReply resolves the model and runs generation, retrying once on a
// transient provider failure. Empty completions are never retried; either
// failure degrades to the fallback reply.
func (r *AgentRuntime) generateReply(ctx context.Context, msg core.Memory, state core.State, composed string) (string, error) {
	cfg, err := r.resolver.Resolve(r.character.ModelProvider, r.modelClass)
	if err != nil {
		return "", err
	}

	prompt := msg.Content.Text
	if composed != "" {
		prompt = composed + "\n\n" + msg.Content.Text
	}
	prompt = trimToModelBudget(prompt, cfg)

	req := generation.Request{
		System: r.systemPrompt(state),
		Prompt: prompt,
		Config: cfg,
	}

	start := time.Now()
	text, err := r.gateway.Generate(ctx, req)
	var provErr *core.ProviderError
	var emptyErr *core.EmptyResponseError
	if err != nil && errors.As(err, &provErr) && ctx.Err() == nil {
		r.logger.Warn("Generation failed, retrying once", "provider", cfg.Provider, "error", err)
		text, err = r.gateway.Generate(ctx, req)
	}
	if err != nil {
		if !errors.As(err, &provErr) && !errors.As(err, &emptyErr) {
			return "", err
		}
		r.logger.Error("Generation failed, sending fallback",
			"provider", cfg.Provider, "model", cfg.Model, "duration", time.Since(start), "error", err)
		return fallbackReply, nil
	}
	return text, nil
}

// runEvaluators executes every applicable evaluator on the completed
// exchange. Each evaluator is isolated: errors and panics are logged and
// never affect the reply or other evaluators.
func (r *AgentRuntime) runEvaluators(ctx context.Context, msg, reply core.Memory) {
	r.mu.RLock()
	evaluators := append([]core.Evaluator(nil), r.evaluators...)
	r.mu.RUnlock()

	for _, e := range evaluators {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Error("Evaluator panicked", "evaluator", e.Name(), "value", rec)
				}
			}()
			if !e.AlwaysRun() {
				ok, err := e.Validate(ctx, msg)
				if err != nil {
					r.logger.Warn("Evaluator validation failed", "evaluator", e.Name(), "error", err)
					return
				}
				if !ok {
					return
				}
			}
			if err := e.Handle(ctx, msg, reply); err != nil {
				r.logger.Warn("Evaluator failed", "evaluator", e.Name(), "error", err)
			}
		}()
	}
}
