package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

// CompatAdapter serves any vendor exposing an OpenAI-compatible chat
// completion API (OpenRouter, DeepSeek, Groq, Ollama, ...). One instance is
// registered per provider name; the base URL and key come from the resolved
// config, so a single implementation covers the whole family.
//
// Unlike the official-SDK adapters, transient failures are retried here with
// linear backoff, since these aggregator endpoints rate-limit aggressively.
type CompatAdapter struct {
	name       string
	maxRetries int
	retryDelay time.Duration
	headers    map[string]string
}

// CompatOptions configure a CompatAdapter.
type CompatOptions struct {
	// MaxRetries bounds attempts for transient failures (default 3).
	MaxRetries int
	// RetryDelay is the base delay between retries (default 1s).
	RetryDelay time.Duration
	// Headers are sent with every request (e.g. OpenRouter app attribution).
	Headers map[string]string
}

// NewCompatAdapter creates an adapter registered under the given provider
// name.
func NewCompatAdapter(name string, optFns ...func(o *CompatOptions)) *CompatAdapter {
	opts := CompatOptions{MaxRetries: 3, RetryDelay: time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	return &CompatAdapter{name: name, maxRetries: opts.MaxRetries, retryDelay: opts.RetryDelay, headers: opts.Headers}
}

// Name implements Adapter.
func (a *CompatAdapter) Name() string { return a.name }

// Generate implements Adapter.
func (a *CompatAdapter) Generate(ctx context.Context, req Request) (<-chan Step, <-chan error) {
	out := make(chan Step, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		cfg := goopenai.DefaultConfig(req.Config.APIKey)
		if req.Config.Endpoint != "" {
			cfg.BaseURL = req.Config.Endpoint
		}
		if len(a.headers) > 0 {
			cfg.HTTPClient = &http.Client{Transport: &headerTransport{headers: a.headers, base: http.DefaultTransport}}
		}
		client := goopenai.NewClientWithConfig(cfg)

		chatReq := a.buildRequest(req)

		var resp goopenai.ChatCompletionResponse
		err := retryLinear(ctx, a.maxRetries, a.retryDelay, func() error {
			var callErr error
			resp, callErr = client.CreateChatCompletion(ctx, chatReq)
			if callErr != nil && !isRetryable(callErr) {
				// Wrap so the retry loop surfaces it without further attempts.
				return &permanentError{err: callErr}
			}
			return callErr
		})
		var perm *permanentError
		if errors.As(err, &perm) {
			err = perm.err
		}
		if err != nil {
			errCh <- fmt.Errorf("%s api error: %w", a.name, err)
			return
		}
		if len(resp.Choices) == 0 {
			errCh <- fmt.Errorf("%s returned no choices", a.name)
			return
		}

		choice := resp.Choices[0]
		if choice.Message.Content != "" {
			out <- Step{Type: StepText, Text: choice.Message.Content}
		}
		for _, tc := range choice.Message.ToolCalls {
			out <- Step{Type: StepToolCall, ToolCall: &ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments}}
		}
		out <- Step{Type: StepFinish, FinishReason: string(choice.FinishReason)}
	}()

	return out, errCh
}

func (a *CompatAdapter) buildRequest(req Request) goopenai.ChatCompletionRequest {
	messages := []goopenai.ChatCompletionMessage{}
	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := goopenai.ChatCompletionRequest{
		Model:            req.Config.Model,
		Messages:         messages,
		Temperature:      float32(req.Config.Temperature),
		MaxTokens:        req.Config.MaxOutputTokens,
		FrequencyPenalty: float32(req.Config.FrequencyPenalty),
		PresencePenalty:  float32(req.Config.PresencePenalty),
		Stop:             req.Config.StopSequences,
	}
	for i, tdef := range req.Tools {
		if i == 0 {
			chatReq.Tools = make([]goopenai.Tool, 0, len(req.Tools))
		}
		chatReq.Tools = append(chatReq.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        tdef.Name,
				Description: tdef.Description,
				Parameters:  tdef.Parameters,
			},
		})
	}
	return chatReq
}

// headerTransport injects static headers into every request, e.g. the app
// attribution headers OpenRouter expects.
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// permanentError marks an error that must not be retried.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// isRetryable treats rate limits and server-side failures as transient.
func isRetryable(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}
	// Plain transport errors (connection reset, timeout) are worth one more try.
	return true
}
