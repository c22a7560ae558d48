package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animus-ai/animus/core"
	"github.com/animus-ai/animus/datastore"
	"github.com/animus-ai/animus/embedder"
	"github.com/animus-ai/animus/internal/testutil"
)

// failingEmbedder always errors; used to exercise the zero-vector fallback.
type failingEmbedder struct{ dim int }

func (f *failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, &core.EmbeddingError{Err: errors.New("service down")}
}

func (f *failingEmbedder) Dimensions() int { return f.dim }

func TestManager_AddEmbedding(t *testing.T) {
	ctx := context.Background()
	mgr := New("messages", datastore.NewInMemory(), embedder.NewStatic(8))

	mem := core.Memory{Content: core.TextContent("remember this")}
	require.NoError(t, mgr.AddEmbedding(ctx, &mem))
	require.Len(t, mem.Embedding, 8)
	assert.False(t, embedder.IsZeroVector(mem.Embedding))

	// An already embedded memory is left alone.
	before := append([]float32(nil), mem.Embedding...)
	require.NoError(t, mgr.AddEmbedding(ctx, &mem))
	assert.Equal(t, before, mem.Embedding)
}

func TestManager_AddEmbeddingZeroVectorFallback(t *testing.T) {
	ctx := context.Background()
	mgr := New("messages", datastore.NewInMemory(), &failingEmbedder{dim: 4})

	mem := core.Memory{Content: core.TextContent("still persisted")}
	require.NoError(t, mgr.AddEmbedding(ctx, &mem))
	require.Len(t, mem.Embedding, 4)
	assert.True(t, embedder.IsZeroVector(mem.Embedding))
}

func TestManager_CreateIdempotentByID(t *testing.T) {
	ctx := context.Background()
	ds := datastore.NewInMemory()
	mgr := New("messages", ds, embedder.NewStatic(8))
	roomID := uuid.New()

	mem := core.Memory{ID: uuid.New(), RoomID: roomID, Content: core.TextContent("once")}
	require.NoError(t, mgr.Create(ctx, mem, false))
	require.NoError(t, mgr.Create(ctx, mem, false))

	count, err := mgr.Count(ctx, roomID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestManager_CreateAssignsID(t *testing.T) {
	ctx := context.Background()
	mgr := New("messages", datastore.NewInMemory(), embedder.NewStatic(8))
	roomID := uuid.New()

	require.NoError(t, mgr.Create(ctx, core.Memory{RoomID: roomID, Content: core.TextContent("a")}, false))
	require.NoError(t, mgr.Create(ctx, core.Memory{RoomID: roomID, Content: core.TextContent("b")}, false))

	count, err := mgr.Count(ctx, roomID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestManager_GetFilterScopedToTable(t *testing.T) {
	ctx := context.Background()
	ds := datastore.NewInMemory()
	facts := New("facts", ds, embedder.NewStatic(4))
	messages := New("messages", ds, embedder.NewStatic(4))
	roomID := uuid.New()

	require.NoError(t, facts.Create(ctx, core.Memory{RoomID: roomID, Content: core.TextContent("fact")}, false))
	require.NoError(t, messages.Create(ctx, core.Memory{RoomID: roomID, Content: core.TextContent("msg")}, false))

	// The filter's table is forced to the manager's own, even when preset.
	got, err := facts.Get(ctx, core.MemoryFilter{Table: "messages", RoomID: roomID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fact", got[0].Content.Text)
}

func TestManager_SearchByEmbedding(t *testing.T) {
	ctx := context.Background()
	mgr := New("facts", datastore.NewInMemory(), embedder.NewStatic(4))
	roomID := uuid.New()

	target := testutil.NewMemoryBuilder().Room(roomID).Text("target").Embedding([]float32{1, 0, 0, 0}).Build()
	other := testutil.NewMemoryBuilder().Room(roomID).Text("other").Embedding([]float32{0, 1, 0, 0}).Build()
	require.NoError(t, mgr.Create(ctx, target, false))
	require.NoError(t, mgr.Create(ctx, other, false))

	res, err := mgr.SearchByEmbedding(ctx, []float32{1, 0, 0, 0}, roomID, 0.5, 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "target", res[0].Content.Text)
}

func TestManager_RemoveAllForRoom(t *testing.T) {
	ctx := context.Background()
	mgr := New("messages", datastore.NewInMemory(), embedder.NewStatic(4))
	roomA, roomB := uuid.New(), uuid.New()

	require.NoError(t, mgr.Create(ctx, core.Memory{RoomID: roomA, Content: core.TextContent("a")}, false))
	require.NoError(t, mgr.Create(ctx, core.Memory{RoomID: roomB, Content: core.TextContent("b")}, false))
	require.NoError(t, mgr.RemoveAllForRoom(ctx, roomA))

	countA, _ := mgr.Count(ctx, roomA, false)
	countB, _ := mgr.Count(ctx, roomB, false)
	assert.Equal(t, 0, countA)
	assert.Equal(t, 1, countB)
}
