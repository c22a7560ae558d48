package testutil

import (
	"context"
	"sync/atomic"

	"github.com/animus-ai/animus/generation"
)

// StubAdapter is a generation.Adapter for tests. By default it echoes the
// request prompt; set Reply for a canned response or Err to fail every call.
type StubAdapter struct {
	// ProviderName is the name the adapter registers under.
	ProviderName string
	// Reply, when set, is returned instead of echoing the prompt.
	Reply string
	// Err, when set, fails every generation.
	Err error
	// FailTimes fails this many calls before succeeding.
	FailTimes int32

	calls   atomic.Int32
	prompts []string
	systems []string
}

var _ generation.Adapter = (*StubAdapter)(nil)

// Name implements generation.Adapter.
func (s *StubAdapter) Name() string { return s.ProviderName }

// Calls returns how many generations were attempted.
func (s *StubAdapter) Calls() int { return int(s.calls.Load()) }

// LastPrompt returns the prompt of the most recent generation, or "".
func (s *StubAdapter) LastPrompt() string {
	if len(s.prompts) == 0 {
		return ""
	}
	return s.prompts[len(s.prompts)-1]
}

// LastSystem returns the system prompt of the most recent generation, or "".
func (s *StubAdapter) LastSystem() string {
	if len(s.systems) == 0 {
		return ""
	}
	return s.systems[len(s.systems)-1]
}

// Generate implements generation.Adapter.
func (s *StubAdapter) Generate(_ context.Context, req generation.Request) (<-chan generation.Step, <-chan error) {
	steps := make(chan generation.Step, 2)
	errs := make(chan error, 1)
	n := s.calls.Add(1)
	s.prompts = append(s.prompts, req.Prompt)
	s.systems = append(s.systems, req.System)
	go func() {
		defer close(steps)
		defer close(errs)
		if s.Err != nil || n <= s.FailTimes {
			err := s.Err
			if err == nil {
				err = context.DeadlineExceeded
			}
			errs <- err
			return
		}
		text := s.Reply
		if text == "" {
			text = req.Prompt
		}
		steps <- generation.Step{Type: generation.StepText, Text: text}
		steps <- generation.Step{Type: generation.StepFinish, FinishReason: "stop"}
	}()
	return steps, errs
}
