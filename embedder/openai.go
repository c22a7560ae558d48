package embedder

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/animus-ai/animus/core"
)

// RemoteOptions configure a Remote embedder.
type RemoteOptions struct {
	Model      string
	Endpoint   string
	APIKey     string
	Dimensions int
}

// Remote calls an OpenAI-compatible embeddings endpoint. Endpoint and model
// come from provider resolution, so OpenAI-compatible vendors (Ollama,
// gateways) work unchanged.
type Remote struct {
	client *openai.Client
	opts   RemoteOptions
}

// NewRemote creates a Remote embedder.
func NewRemote(optFns ...func(o *RemoteOptions)) *Remote {
	opts := RemoteOptions{
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(opts.Endpoint))
	}
	client := openai.NewClient(clientOpts...)
	return &Remote{client: &client, opts: opts}
}

// Embed implements Embedder.
func (r *Remote) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := r.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: openai.EmbeddingModel(r.opts.Model),
	})
	if err != nil {
		return nil, &core.EmbeddingError{Err: err}
	}
	if len(resp.Data) == 0 {
		return nil, &core.EmbeddingError{Err: fmt.Errorf("no embedding returned")}
	}
	src := resp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, f := range src {
		vec[i] = float32(f)
	}
	return vec, nil
}

// Dimensions implements Embedder.
func (r *Remote) Dimensions() int { return r.opts.Dimensions }
