package generation

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/animus-ai/animus/core"
	"github.com/animus-ai/animus/logging"
)

// Gateway fans generation requests out to registered vendor adapters, keyed
// by provider name. It is safe for concurrent use; registration is expected
// during startup but may happen at any time.
type Gateway struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	logger   logging.Logger
}

// GatewayOptions configures a Gateway.
type GatewayOptions struct {
	Logger logging.Logger
}

// NewGateway creates an empty Gateway. Adapters are added via Register.
func NewGateway(optFns ...func(o *GatewayOptions)) *Gateway {
	opts := GatewayOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Gateway{adapters: make(map[string]Adapter), logger: opts.Logger}
}

// Register adds an adapter under its provider name, replacing any previous
// adapter for that name.
func (g *Gateway) Register(a Adapter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.adapters[a.Name()] = a
}

// Adapter returns the registered adapter for a provider name.
func (g *Gateway) Adapter(name string) (Adapter, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.adapters[name]
	return a, ok
}

// GenerateSteps starts a generation returning the raw step stream. The
// returned channels are closed when the adapter completes or ctx is
// cancelled.
func (g *Gateway) GenerateSteps(ctx context.Context, req Request) (<-chan Step, <-chan error, error) {
	adapter, ok := g.Adapter(req.Config.Provider)
	if !ok {
		return nil, nil, &core.UnsupportedProviderError{Provider: req.Config.Provider}
	}
	steps, errs := adapter.Generate(ctx, req)
	return steps, errs, nil
}

// Generate runs a generation to completion and returns the concatenated text.
// Failures surface as ProviderError; a completed stream with no text is
// EmptyResponseError.
func (g *Gateway) Generate(ctx context.Context, req Request) (string, error) {
	start := time.Now()
	steps, errs, err := g.GenerateSteps(ctx, req)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for steps != nil || errs != nil {
		select {
		case <-ctx.Done():
			return "", &core.ProviderError{Provider: req.Config.Provider, Model: req.Config.Model, Err: ctx.Err()}
		case step, ok := <-steps:
			if !ok {
				steps = nil
				continue
			}
			if step.Type == StepText {
				sb.WriteString(step.Text)
			}
		case genErr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if genErr != nil {
				g.logger.Error("generation failed", "provider", req.Config.Provider, "model", req.Config.Model, "error", genErr)
				return "", &core.ProviderError{Provider: req.Config.Provider, Model: req.Config.Model, Err: genErr}
			}
		}
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", &core.EmptyResponseError{Provider: req.Config.Provider, Model: req.Config.Model}
	}
	g.logger.Debug("generation completed", "provider", req.Config.Provider, "model", req.Config.Model, "duration", time.Since(start))
	return text, nil
}
