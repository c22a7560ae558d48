package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animus-ai/animus/core"
	"github.com/animus-ai/animus/datastore"
	"github.com/animus-ai/animus/embedder"
)

func newTestManager(t *testing.T) (*Manager, *datastore.InMemory) {
	t.Helper()
	ds := datastore.NewInMemory()
	return New(uuid.New(), ds, embedder.NewStatic(16)), ds
}

func TestScopedID(t *testing.T) {
	agentA, agentB := uuid.New(), uuid.New()

	// Deterministic, normalization-insensitive.
	assert.Equal(t, ScopedID("Docs/Readme.md", true, agentA), ScopedID("  docs/readme.md ", true, agentB))
	// Shared and private scopes never collide.
	assert.NotEqual(t, ScopedID("a.txt", true, agentA), ScopedID("a.txt", false, agentA))
	// Private knowledge is per agent.
	assert.NotEqual(t, ScopedID("a.txt", false, agentA), ScopedID("a.txt", false, agentB))
}

func TestManager_SetStringIdempotent(t *testing.T) {
	ctx := context.Background()
	m, ds := newTestManager(t)

	require.NoError(t, m.SetString(ctx, "The sky is blue.", "facts", false))
	require.NoError(t, m.SetString(ctx, "The sky is blue.", "facts", false))

	items, err := ds.GetKnowledge(ctx, core.KnowledgeFilter{})
	require.NoError(t, err)
	// One parent document plus one fragment, not duplicated.
	assert.Len(t, items, 2)
}

func TestManager_SetStringEmptyFails(t *testing.T) {
	m, _ := newTestManager(t)
	err := m.SetString(context.Background(), "  ", "facts", false)
	var ingErr *core.IngestionError
	require.ErrorAs(t, err, &ingErr)
	assert.Equal(t, "facts", ingErr.Source)
}

func TestManager_ChangeDetection(t *testing.T) {
	ctx := context.Background()
	m, ds := newTestManager(t)

	require.NoError(t, m.SetString(ctx, "Version one of the document.", "doc", false))
	before, err := ds.GetKnowledge(ctx, core.KnowledgeFilter{})
	require.NoError(t, err)

	require.NoError(t, m.SetString(ctx, "Version two of the document.", "doc", false))
	after, err := ds.GetKnowledge(ctx, core.KnowledgeFilter{})
	require.NoError(t, err)

	// Same item count: old document and fragments were replaced, not appended.
	require.Len(t, after, len(before))
	var parent core.KnowledgeItem
	for _, item := range after {
		if item.Metadata.Type != core.KnowledgeFragment {
			parent = item
		}
	}
	assert.Equal(t, "Version two of the document.", parent.Content.Text)
}

func TestManager_SetFile(t *testing.T) {
	ctx := context.Background()
	m, ds := newTestManager(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "lore.md")
	require.NoError(t, os.WriteFile(path, []byte("The capital is Midgard."), 0o644))

	require.NoError(t, m.SetFile(ctx, path, false))

	items, err := ds.GetKnowledge(ctx, core.KnowledgeFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, items)
	var parent core.KnowledgeItem
	for _, item := range items {
		if item.Metadata.Type == core.KnowledgeFile {
			parent = item
		}
	}
	assert.Equal(t, path, parent.Metadata.Source)
}

func TestManager_SetFilePDFWithoutExtractor(t *testing.T) {
	m, _ := newTestManager(t)
	err := m.SetFile(context.Background(), "manual.pdf", false)
	var ingErr *core.IngestionError
	require.ErrorAs(t, err, &ingErr)
}

type stubPDF struct{ text string }

func (s *stubPDF) Extract(string) (string, error) { return s.text, nil }

func TestManager_SetFilePDFExtractor(t *testing.T) {
	ctx := context.Background()
	ds := datastore.NewInMemory()
	m := New(uuid.New(), ds, embedder.NewStatic(16), func(o *Options) {
		o.PDFExtractor = &stubPDF{text: "Extracted PDF body."}
	})

	require.NoError(t, m.SetFile(ctx, "manual.pdf", false))

	items, err := ds.GetKnowledge(ctx, core.KnowledgeFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, items)
	assert.Equal(t, "Extracted PDF body.", items[0].Content.Text)
}

func TestManager_ProcessDirectoryCollectsFailures(t *testing.T) {
	ctx := context.Background()
	m, ds := newTestManager(t)
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.txt", "d.txt", "e.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("Content of "+name+"."), 0o644))
	}
	// A PDF with no extractor configured fails, the rest must still ingest.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.pdf"), []byte("%PDF-1.4"), 0o644))

	failures := m.ProcessDirectory(ctx, dir, "", false)
	require.Len(t, failures, 1)
	var ingErr *core.IngestionError
	require.ErrorAs(t, failures[0], &ingErr)
	assert.True(t, strings.HasSuffix(ingErr.Source, "f.pdf"))

	items, err := ds.GetKnowledge(ctx, core.KnowledgeFilter{})
	require.NoError(t, err)
	parents := 0
	for _, item := range items {
		if item.Metadata.Type == core.KnowledgeFile {
			parents++
		}
	}
	assert.Equal(t, 5, parents)
}

func TestManager_ProcessDirectoryPattern(t *testing.T) {
	ctx := context.Background()
	m, ds := newTestManager(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "keep.md"), []byte("Kept."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.log"), []byte("Skipped."), 0o644))

	failures := m.ProcessDirectory(ctx, dir, "*.md", false)
	assert.Empty(t, failures)

	items, err := ds.GetKnowledge(ctx, core.KnowledgeFilter{})
	require.NoError(t, err)
	for _, item := range items {
		assert.True(t, strings.HasSuffix(item.Metadata.Source, "keep.md"))
	}
}

func TestManager_CleanupMissing(t *testing.T) {
	ctx := context.Background()
	m, ds := newTestManager(t)
	dir := t.TempDir()
	gone := filepath.Join(dir, "gone.txt")
	kept := filepath.Join(dir, "kept.txt")
	require.NoError(t, os.WriteFile(gone, []byte("Will be deleted."), 0o644))
	require.NoError(t, os.WriteFile(kept, []byte("Stays on disk."), 0o644))
	require.NoError(t, m.SetFile(ctx, gone, false))
	require.NoError(t, m.SetFile(ctx, kept, false))

	require.NoError(t, os.Remove(gone))

	removed, err := m.CleanupMissing(ctx)
	require.NoError(t, err)
	require.Len(t, removed, 1)

	items, err := ds.GetKnowledge(ctx, core.KnowledgeFilter{})
	require.NoError(t, err)
	for _, item := range items {
		assert.Equal(t, kept, item.Metadata.Source)
	}
}

func TestManager_Search(t *testing.T) {
	ctx := context.Background()
	agentID := uuid.New()
	ds := datastore.NewInMemory()
	emb := embedder.NewStatic(16)
	m := New(agentID, ds, emb)

	require.NoError(t, m.SetString(ctx, "The sky is blue.", "sky", false))
	require.NoError(t, m.SetString(ctx, "Grass is green.", "grass", false))

	// Static embeddings are deterministic per text, so the exact fragment text
	// is a guaranteed top hit.
	res, err := m.Search(ctx, "The sky is blue.", 0.99, 5)
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, "The sky is blue.", res[0].Content.Text)
	assert.Equal(t, "sky", res[0].Metadata.Source)
}

func TestManager_SearchDropsOrphanFragments(t *testing.T) {
	ctx := context.Background()
	agentID := uuid.New()
	ds := datastore.NewInMemory()
	emb := embedder.NewStatic(16)
	m := New(agentID, ds, emb)

	require.NoError(t, m.SetString(ctx, "Orphaned fact.", "orphan", false))
	// Remove only the parent, leaving the fragment behind.
	require.NoError(t, ds.RemoveKnowledge(ctx, ScopedID("orphan", false, agentID)))

	res, err := m.Search(ctx, "Orphaned fact.", 0.99, 5)
	require.NoError(t, err)
	assert.Empty(t, res)
}
