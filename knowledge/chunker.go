package knowledge

import (
	"strings"

	"github.com/animus-ai/animus/tokenizer"
)

// ChunkConfig controls how documents are split into embeddable fragments.
type ChunkConfig struct {
	// MaxTokens is the token budget per chunk.
	MaxTokens int
	// OverlapTokens carries trailing sentences of one chunk into the next so
	// retrieval does not lose context at chunk boundaries.
	OverlapTokens int
	// Model selects the tokenizer encoding used for counting.
	Model string
}

// DefaultChunkConfig returns the chunking defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{MaxTokens: 512, OverlapTokens: 64}
}

// ChunkText splits text into sentence-aligned chunks, each within the token
// budget. A sentence that alone exceeds the budget becomes its own chunk
// rather than being split mid-sentence.
func ChunkText(text string, cfg ChunkConfig) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultChunkConfig().MaxTokens
	}
	sentences := splitSentences(text)
	var chunks []string
	var current []string
	currentTokens := 0
	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, " "))
		if cfg.OverlapTokens > 0 {
			current, currentTokens = overlapTail(current, cfg.OverlapTokens, cfg.Model)
		} else {
			current, currentTokens = nil, 0
		}
	}
	for _, s := range sentences {
		n := tokenizer.CountTokens(s, cfg.Model)
		if currentTokens+n > cfg.MaxTokens && len(current) > 0 {
			flush()
		}
		current = append(current, s)
		currentTokens += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// overlapTail returns the trailing sentences of a finished chunk that fit the
// overlap budget, to seed the next chunk.
func overlapTail(sentences []string, budget int, model string) ([]string, int) {
	var tail []string
	total := 0
	for i := len(sentences) - 1; i >= 0; i-- {
		n := tokenizer.CountTokens(sentences[i], model)
		if total+n > budget {
			break
		}
		tail = append([]string{sentences[i]}, tail...)
		total += n
	}
	return tail, total
}

// splitSentences breaks text on sentence-final punctuation and blank lines.
// Good enough for prose knowledge files; structured formats still chunk, just
// on coarser boundaries.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		b.WriteRune(r)
		boundary := false
		switch r {
		case '.', '!', '?':
			boundary = i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t'
		case '\n':
			boundary = i+1 < len(runes) && runes[i+1] == '\n'
		}
		if boundary {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
