package sqlite

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/animus-ai/animus/core"
	"github.com/animus-ai/animus/internal/testutil"
)

// Interface compliance (compile-time assertion)
var _ core.DatastoreAdapter = (*Store)(nil)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_MemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	m := core.Memory{
		ID:        uuid.New(),
		AgentID:   uuid.New(),
		UserID:    uuid.New(),
		RoomID:    uuid.New(),
		Content:   core.TextContent("hello"),
		Embedding: []float32{0.1, 0.2, 0.3},
	}

	require.NoError(t, s.CreateMemory(ctx, m, "messages", false))

	got, err := s.GetMemoryByID(ctx, "messages", m.ID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.RoomID, got.RoomID)
	assert.Equal(t, "hello", got.Content.Text)
	assert.InDeltaSlice(t, m.Embedding, got.Embedding, 1e-6)

	_, err = s.GetMemoryByID(ctx, "messages", uuid.New())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_CreateMemoryIdempotentByID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	m := core.Memory{ID: uuid.New(), RoomID: uuid.New(), Content: core.TextContent("once")}

	require.NoError(t, s.CreateMemory(ctx, m, "messages", false))
	require.NoError(t, s.CreateMemory(ctx, m, "messages", false))

	count, err := s.CountMemories(ctx, "messages", m.RoomID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_CreateMemoryUniqueSkipsNearDuplicate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	roomID := uuid.New()
	vec := []float32{0.5, 0.5, 0.1}

	first := core.Memory{ID: uuid.New(), RoomID: roomID, Content: core.TextContent("a"), Embedding: vec}
	require.NoError(t, s.CreateMemory(ctx, first, "messages", true))

	dup := core.Memory{ID: uuid.New(), RoomID: roomID, Content: core.TextContent("a again"), Embedding: vec}
	require.NoError(t, s.CreateMemory(ctx, dup, "messages", true))

	count, err := s.CountMemories(ctx, "messages", roomID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStore_SearchMemoriesOrdering(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	roomID := uuid.New()

	near := testutil.NewMemoryBuilder().Room(roomID).Text("near").Embedding([]float32{1, 0}).Build()
	far := testutil.NewMemoryBuilder().Room(roomID).Text("far").Embedding([]float32{0.2, 0.98}).Build()
	require.NoError(t, s.CreateMemory(ctx, near, "messages", false))
	require.NoError(t, s.CreateMemory(ctx, far, "messages", false))

	res, err := s.SearchMemories(ctx, core.EmbeddingQuery{
		Table:     "messages",
		RoomID:    roomID,
		Embedding: []float32{1, 0},
		Threshold: 0.1,
		Count:     10,
	})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "near", res[0].Content.Text)
	assert.Greater(t, res[0].Similarity, res[1].Similarity)
}

func TestStore_KnowledgeScopingAndPrefixRemoval(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	agentA, agentB := uuid.New(), uuid.New()

	require.NoError(t, s.CreateKnowledge(ctx, core.KnowledgeItem{
		ID: "doc-1", AgentID: agentA, Content: core.TextContent("shared doc"),
		Metadata: core.KnowledgeMetadata{Type: core.KnowledgeFile, IsShared: true},
	}))
	require.NoError(t, s.CreateKnowledge(ctx, core.KnowledgeItem{
		ID: "doc-1-chunk-0", AgentID: agentA, Content: core.TextContent("chunk"),
		Metadata: core.KnowledgeMetadata{Type: core.KnowledgeFragment, IsShared: true, ParentID: "doc-1"},
	}))
	require.NoError(t, s.CreateKnowledge(ctx, core.KnowledgeItem{
		ID: "doc-2", AgentID: agentA, Content: core.TextContent("private doc"),
		Metadata: core.KnowledgeMetadata{Type: core.KnowledgeFile},
	}))

	// Agent B sees only the shared document and its chunk.
	items, err := s.GetKnowledge(ctx, core.KnowledgeFilter{AgentID: agentB})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	require.NoError(t, s.RemoveKnowledgeByPrefix(ctx, "doc-1"))

	items, err = s.GetKnowledge(ctx, core.KnowledgeFilter{AgentID: agentA})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "doc-2", items[0].ID)
}

func TestStore_RelationshipUpsert(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	agentID, userID := uuid.New(), uuid.New()

	r, err := s.GetRelationship(ctx, agentID, userID)
	require.NoError(t, err)
	assert.Nil(t, r)

	require.NoError(t, s.UpsertRelationship(ctx, core.Relationship{AgentID: agentID, UserID: userID, Score: 0.4}))
	require.NoError(t, s.UpsertRelationship(ctx, core.Relationship{AgentID: agentID, UserID: userID, Score: 0.7}))

	r, err = s.GetRelationship(ctx, agentID, userID)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.InDelta(t, 0.7, r.Score, 1e-9)
}

func TestStore_ActorsAndGoals(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	roomID := uuid.New()

	require.NoError(t, s.SetActors(ctx, roomID, []core.Actor{
		{Name: "Ada", Details: "engineer"},
		{Name: "Linus", Username: "linus"},
	}))
	actors, err := s.GetActors(ctx, roomID)
	require.NoError(t, err)
	assert.Len(t, actors, 2)

	require.NoError(t, s.SetGoals(ctx, roomID, []core.Goal{
		{Name: "ship v1", Status: core.GoalInProgress, Objectives: []string{"write", "test"}},
		{Name: "kickoff", Status: core.GoalDone},
	}))
	inProgress, err := s.GetGoals(ctx, roomID, true)
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, "ship v1", inProgress[0].Name)
	assert.Equal(t, []string{"write", "test"}, inProgress[0].Objectives)

	all, err := s.GetGoals(ctx, roomID, false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// Seeding again replaces, never appends.
	require.NoError(t, s.SetActors(ctx, roomID, []core.Actor{{Name: "Grace"}}))
	actors, err = s.GetActors(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, actors, 1)
	assert.Equal(t, "Grace", actors[0].Name)
}

func TestEncodeDecodeEmbedding(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.125}
	assert.InDeltaSlice(t, vec, decodeEmbedding(encodeEmbedding(vec)), 1e-6)
	assert.Nil(t, encodeEmbedding(nil))
	assert.Nil(t, decodeEmbedding(nil))
}
