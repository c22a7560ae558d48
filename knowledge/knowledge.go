// Package knowledge ingests reference material for retrieval-augmented
// generation. Sources (inline strings, files, directories) are normalized
// into documents plus embedded fragments in the datastore's knowledge
// namespace. Ingestion is idempotent: ids are deterministic hashes of the
// scoped source, unchanged content is skipped, changed content replaces the
// document and all of its fragments.
package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/animus-ai/animus/core"
	"github.com/animus-ai/animus/embedder"
	"github.com/animus-ai/animus/logging"
)

// knowledgeNamespace seeds the deterministic SHA1 ids for knowledge items.
var knowledgeNamespace = uuid.MustParse("7b1d3a52-9c4e-4f28-b1a0-6de85c2f4711")

// directoryBatchSize bounds how many files are ingested concurrently.
const directoryBatchSize = 5

// PDFExtractor extracts plain text from a PDF file. Injected so the core
// module does not take a PDF dependency; front-ends wire one in when needed.
type PDFExtractor interface {
	Extract(path string) (string, error)
}

// ScopedID returns the deterministic id of a knowledge source. Shared
// knowledge hashes globally; private knowledge includes the agent id so two
// agents ingesting the same file keep separate records.
func ScopedID(source string, shared bool, agentID uuid.UUID) string {
	normalized := strings.ToLower(strings.TrimSpace(source))
	scope := "private:" + agentID.String()
	if shared {
		scope = "shared"
	}
	return uuid.NewSHA1(knowledgeNamespace, []byte(scope+":"+normalized)).String()
}

// Manager ingests and retrieves knowledge for one agent.
type Manager struct {
	agentID   uuid.UUID
	datastore core.DatastoreAdapter
	embedder  embedder.Embedder
	chunkCfg  ChunkConfig
	pdf       PDFExtractor
	logger    logging.Logger
}

// Options configures a Manager.
type Options struct {
	ChunkConfig  ChunkConfig
	PDFExtractor PDFExtractor
	Logger       logging.Logger
}

// New creates a knowledge Manager for agentID.
func New(agentID uuid.UUID, ds core.DatastoreAdapter, emb embedder.Embedder, optFns ...func(o *Options)) *Manager {
	opts := Options{
		ChunkConfig: DefaultChunkConfig(),
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{
		agentID:   agentID,
		datastore: ds,
		embedder:  emb,
		chunkCfg:  opts.ChunkConfig,
		pdf:       opts.PDFExtractor,
		logger:    opts.Logger,
	}
}

// SetString ingests inline knowledge text under the given source label.
func (m *Manager) SetString(ctx context.Context, text, source string, shared bool) error {
	return m.ingest(ctx, text, source, core.KnowledgeDirect, shared)
}

// SetFile ingests a file from disk. Plain text and markdown are read
// directly, PDFs go through the injected extractor, anything else is treated
// as plain text.
func (m *Manager) SetFile(ctx context.Context, path string, shared bool) error {
	text, err := m.extractFile(path)
	if err != nil {
		return &core.IngestionError{Source: path, Err: err}
	}
	return m.ingest(ctx, text, path, core.KnowledgeFile, shared)
}

func (m *Manager) extractFile(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		if m.pdf == nil {
			return "", fmt.Errorf("no PDF extractor configured")
		}
		return m.pdf.Extract(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ingest is the state machine shared by all sources: unchanged content is a
// no-op, changed content replaces the document and its fragments, new content
// is chunked, embedded and inserted.
func (m *Manager) ingest(ctx context.Context, text, source string, typ core.KnowledgeType, shared bool) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return &core.IngestionError{Source: source, Err: fmt.Errorf("empty content")}
	}
	id := ScopedID(source, shared, m.agentID)

	existing, err := m.datastore.GetKnowledge(ctx, core.KnowledgeFilter{ID: id, AgentID: m.agentID})
	if err != nil {
		return &core.IngestionError{Source: source, Err: err}
	}
	if len(existing) > 0 {
		if existing[0].Content.Text == text {
			m.logger.Debug("Knowledge unchanged, skipping", "source", source)
			return nil
		}
		m.logger.Info("Knowledge changed, re-ingesting", "source", source)
		if err := m.datastore.RemoveKnowledgeByPrefix(ctx, id); err != nil {
			return &core.IngestionError{Source: source, Err: err}
		}
	}

	now := time.Now()
	parent := core.KnowledgeItem{
		ID:      id,
		AgentID: m.agentID,
		Content: core.TextContent(text),
		Metadata: core.KnowledgeMetadata{
			Type:     typ,
			IsShared: shared,
			Source:   source,
		},
		CreatedAt: now,
	}
	if err := m.datastore.CreateKnowledge(ctx, parent); err != nil {
		return &core.IngestionError{Source: source, Err: err}
	}

	for i, chunk := range ChunkText(text, m.chunkCfg) {
		vec, err := m.embedder.Embed(ctx, chunk)
		if err != nil {
			m.logger.Warn("Fragment embedding failed, storing zero vector", "source", source, "chunk", i, "error", err)
			vec = embedder.ZeroVector(m.embedder.Dimensions())
		}
		fragment := core.KnowledgeItem{
			ID:        fmt.Sprintf("%s-chunk-%d", id, i),
			AgentID:   m.agentID,
			Content:   core.TextContent(chunk),
			Embedding: vec,
			Metadata: core.KnowledgeMetadata{
				Type:     core.KnowledgeFragment,
				IsShared: shared,
				Source:   source,
				ParentID: id,
			},
			CreatedAt: now,
		}
		if err := m.datastore.CreateKnowledge(ctx, fragment); err != nil {
			return &core.IngestionError{Source: source, Err: err}
		}
	}
	return nil
}

// ProcessDirectory ingests every file under dir matching pattern (all files
// when empty), in fixed-size concurrent batches. Individual failures are
// collected and returned together; they never abort the rest of the batch.
func (m *Manager) ProcessDirectory(ctx context.Context, dir, pattern string, shared bool) []error {
	var paths []string
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if pattern != "" {
			ok, err := filepath.Match(pattern, d.Name())
			if err != nil || !ok {
				return err
			}
		}
		paths = append(paths, path)
		return nil
	})
	if walkErr != nil {
		return []error{&core.IngestionError{Source: dir, Err: walkErr}}
	}

	var mu sync.Mutex
	var failures []error
	for start := 0; start < len(paths); start += directoryBatchSize {
		end := start + directoryBatchSize
		if end > len(paths) {
			end = len(paths)
		}
		var wg sync.WaitGroup
		for _, path := range paths[start:end] {
			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				if err := m.SetFile(ctx, path, shared); err != nil {
					mu.Lock()
					failures = append(failures, err)
					mu.Unlock()
				}
			}(path)
		}
		wg.Wait()
	}
	if len(failures) > 0 {
		m.logger.Warn("Directory ingestion completed with failures", "dir", dir, "failed", len(failures), "total", len(paths))
	}
	return failures
}

// CleanupMissing removes file-backed knowledge whose source no longer exists
// on disk, including all fragments. Returns the removed document ids.
func (m *Manager) CleanupMissing(ctx context.Context) ([]string, error) {
	items, err := m.datastore.GetKnowledge(ctx, core.KnowledgeFilter{AgentID: m.agentID})
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, item := range items {
		if item.Metadata.Type != core.KnowledgeFile {
			continue
		}
		if _, err := os.Stat(item.Metadata.Source); err == nil || !os.IsNotExist(err) {
			continue
		}
		if err := m.datastore.RemoveKnowledgeByPrefix(ctx, item.ID); err != nil {
			return removed, err
		}
		m.logger.Info("Removed knowledge for missing file", "source", item.Metadata.Source)
		removed = append(removed, item.ID)
	}
	return removed, nil
}

// Ingest processes a character knowledge source of any shape.
func (m *Manager) Ingest(ctx context.Context, src core.KnowledgeSource) []error {
	switch {
	case src.Directory != "":
		return m.ProcessDirectory(ctx, src.Directory, src.Pattern, src.Shared)
	case src.Path != "":
		if err := m.SetFile(ctx, src.Path, src.Shared); err != nil {
			return []error{err}
		}
	case src.Text != "":
		if err := m.SetString(ctx, src.Text, src.Text, src.Shared); err != nil {
			return []error{err}
		}
	}
	return nil
}

// Search embeds the query and returns the best matching fragments, deduped
// per parent document so one document cannot flood the results. Fragments
// whose parent disappeared are dropped.
func (m *Manager) Search(ctx context.Context, query string, threshold float64, count int) ([]core.KnowledgeItem, error) {
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &core.EmbeddingError{Err: err}
	}
	matches, err := m.datastore.SearchKnowledge(ctx, core.KnowledgeQuery{
		AgentID:   m.agentID,
		Embedding: vec,
		Threshold: threshold,
		Count:     count * 2,
	})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []core.KnowledgeItem
	for _, item := range matches {
		parentID := item.Metadata.ParentID
		if parentID == "" {
			parentID = item.ID
		}
		if seen[parentID] {
			continue
		}
		if item.Metadata.ParentID != "" {
			parents, err := m.datastore.GetKnowledge(ctx, core.KnowledgeFilter{ID: item.Metadata.ParentID, AgentID: m.agentID})
			if err != nil {
				return nil, err
			}
			if len(parents) == 0 {
				continue
			}
			item.Metadata.Source = parents[0].Metadata.Source
		}
		seen[parentID] = true
		out = append(out, item)
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out, nil
}
