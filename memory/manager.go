package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/animus-ai/animus/core"
	"github.com/animus-ai/animus/embedder"
	"github.com/animus-ai/animus/logging"
)

// Manager provides table-scoped memory operations over the shared datastore.
type Manager struct {
	table     string
	datastore core.DatastoreAdapter
	embedder  embedder.Embedder
	logger    logging.Logger
}

// Options configures a Manager.
type Options struct {
	Logger logging.Logger
}

// New creates a Manager for one table.
func New(table string, ds core.DatastoreAdapter, emb embedder.Embedder, optFns ...func(o *Options)) *Manager {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{table: table, datastore: ds, embedder: emb, logger: opts.Logger}
}

// Table returns the table this manager is bound to.
func (m *Manager) Table() string { return m.table }

// AddEmbedding fills in mem.Embedding from its content text. An embedding
// failure degrades to the zero vector so the memory still persists; zero
// vectors never match in similarity search.
func (m *Manager) AddEmbedding(ctx context.Context, mem *core.Memory) error {
	if len(mem.Embedding) > 0 {
		return nil
	}
	vec, err := m.embedder.Embed(ctx, mem.Content.Text)
	if err != nil {
		m.logger.Warn("Embedding failed, storing zero vector", "table", m.table, "error", err)
		mem.Embedding = embedder.ZeroVector(m.embedder.Dimensions())
		return nil
	}
	mem.Embedding = vec
	return nil
}

// Create persists mem into this manager's table. Duplicate ids are silent
// no-ops; with unique, near-duplicates by embedding are skipped too.
func (m *Manager) Create(ctx context.Context, mem core.Memory, unique bool) error {
	if mem.ID == uuid.Nil {
		mem.ID = uuid.New()
	}
	return m.datastore.CreateMemory(ctx, mem, m.table, unique)
}

// ByRoom returns the most recent memories of a room, newest first.
func (m *Manager) ByRoom(ctx context.Context, roomID uuid.UUID, count int) ([]core.Memory, error) {
	return m.datastore.GetMemories(ctx, core.MemoryFilter{
		Table:  m.table,
		RoomID: roomID,
		Count:  count,
	})
}

// Get returns memories matching the filter within this manager's table. The
// filter's table field is overwritten; use it for unique-only or time-ranged
// reads that ByRoom does not cover.
func (m *Manager) Get(ctx context.Context, f core.MemoryFilter) ([]core.Memory, error) {
	f.Table = m.table
	return m.datastore.GetMemories(ctx, f)
}

// ByID returns a single memory or core.ErrNotFound.
func (m *Manager) ByID(ctx context.Context, id uuid.UUID) (*core.Memory, error) {
	return m.datastore.GetMemoryByID(ctx, m.table, id)
}

// SearchByEmbedding returns memories similar to vec, best match first.
func (m *Manager) SearchByEmbedding(ctx context.Context, vec []float32, roomID uuid.UUID, threshold float64, count int) ([]core.Memory, error) {
	return m.datastore.SearchMemories(ctx, core.EmbeddingQuery{
		Table:     m.table,
		RoomID:    roomID,
		Embedding: vec,
		Threshold: threshold,
		Count:     count,
	})
}

// Remove deletes one memory by id.
func (m *Manager) Remove(ctx context.Context, id uuid.UUID) error {
	return m.datastore.RemoveMemory(ctx, m.table, id)
}

// RemoveAllForRoom deletes every memory of a room in this table.
func (m *Manager) RemoveAllForRoom(ctx context.Context, roomID uuid.UUID) error {
	return m.datastore.RemoveAllMemories(ctx, m.table, roomID)
}

// Count returns the number of memories in a room.
func (m *Manager) Count(ctx context.Context, roomID uuid.UUID, unique bool) (int, error) {
	return m.datastore.CountMemories(ctx, m.table, roomID, unique)
}
