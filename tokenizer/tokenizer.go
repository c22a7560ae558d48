// Package tokenizer bounds prompt context to a token budget. It wraps
// tiktoken BPE encodings with a model lookup and degrades to a characters
// per token heuristic when an encoding is unavailable, since failing to
// bound context is worse than an imprecise bound.
package tokenizer

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/animus-ai/animus/core"
)

// defaultEncoding is used when the model has no registered encoding.
const defaultEncoding = "cl100k_base"

// heuristicCharsPerToken approximates English text at ~4 chars per token.
const heuristicCharsPerToken = 4

// Trim bounds text to at most maxTokens tokens for the given model. The cut
// is tail-biased: the most recent maxTokens tokens are kept and decoded back
// to text, because recent conversational turns matter more than the opening
// of a long context.
//
// A non-positive budget is an input validation error. Tokenization failures
// never propagate; the trim falls back to the default encoding and, failing
// that, to a rune-based tail cut using the chars-per-token heuristic.
func Trim(text string, maxTokens int, model string) (string, error) {
	if maxTokens <= 0 {
		return "", &core.InvalidArgumentError{Field: "maxTokens", Reason: "must be positive"}
	}
	if text == "" {
		return "", nil
	}

	enc, err := encodingFor(model)
	if err != nil {
		return trimHeuristic(text, maxTokens), nil
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text, nil
	}
	return enc.Decode(tokens[len(tokens)-maxTokens:]), nil
}

// CountTokens returns the token count of text for the given model, falling
// back to the chars-per-token heuristic when no encoding is available.
func CountTokens(text string, model string) int {
	if text == "" {
		return 0
	}
	enc, err := encodingFor(model)
	if err != nil {
		return (len(text) + heuristicCharsPerToken - 1) / heuristicCharsPerToken
	}
	return len(enc.Encode(text, nil, nil))
}

func encodingFor(model string) (*tiktoken.Tiktoken, error) {
	if model != "" {
		if enc, err := tiktoken.EncodingForModel(model); err == nil {
			return enc, nil
		}
	}
	return tiktoken.GetEncoding(defaultEncoding)
}

// trimHeuristic keeps the trailing maxTokens*heuristicCharsPerToken runes.
func trimHeuristic(text string, maxTokens int) string {
	budget := maxTokens * heuristicCharsPerToken
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	return string(runes[len(runes)-budget:])
}
