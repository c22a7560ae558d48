package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MemoryFilter selects memories from one table.
type MemoryFilter struct {
	Table   string
	RoomID  uuid.UUID
	AgentID uuid.UUID
	Count   int
	Unique  bool
	Start   time.Time
	End     time.Time
}

// EmbeddingQuery describes a similarity search over one table.
type EmbeddingQuery struct {
	Table     string
	RoomID    uuid.UUID
	AgentID   uuid.UUID
	Embedding []float32
	Threshold float64
	Count     int
	Unique    bool
}

// KnowledgeFilter selects knowledge items by id and scope.
type KnowledgeFilter struct {
	// ID selects a single item when set.
	ID string
	// AgentID scopes results to private items of this agent plus shared ones.
	AgentID uuid.UUID
	Count   int
}

// KnowledgeQuery describes a similarity search over knowledge fragments.
type KnowledgeQuery struct {
	AgentID   uuid.UUID
	Embedding []float32
	Threshold float64
	Count     int
}

// DatastoreAdapter is the single shared persistence collaborator. Every
// method is potentially failing and network-latent; all take a context for
// cancellation. Implementations must treat the store as append-mostly:
// create and remove, no in-place field mutation.
type DatastoreAdapter interface {
	// CreateMemory inserts a memory into table. An existing identical id is a
	// silent no-op. With unique, near-duplicates by embedding similarity are
	// also treated as already present.
	CreateMemory(ctx context.Context, m Memory, table string, unique bool) error
	GetMemories(ctx context.Context, f MemoryFilter) ([]Memory, error)
	GetMemoryByID(ctx context.Context, table string, id uuid.UUID) (*Memory, error)
	// SearchMemories returns memories ordered by descending similarity.
	SearchMemories(ctx context.Context, q EmbeddingQuery) ([]Memory, error)
	RemoveMemory(ctx context.Context, table string, id uuid.UUID) error
	RemoveAllMemories(ctx context.Context, table string, roomID uuid.UUID) error
	CountMemories(ctx context.Context, table string, roomID uuid.UUID, unique bool) (int, error)

	CreateKnowledge(ctx context.Context, item KnowledgeItem) error
	GetKnowledge(ctx context.Context, f KnowledgeFilter) ([]KnowledgeItem, error)
	SearchKnowledge(ctx context.Context, q KnowledgeQuery) ([]KnowledgeItem, error)
	RemoveKnowledge(ctx context.Context, id string) error
	// RemoveKnowledgeByPrefix removes an item and all ids sharing the prefix,
	// i.e. a document plus its chunk children.
	RemoveKnowledgeByPrefix(ctx context.Context, prefix string) error
	ClearKnowledge(ctx context.Context, agentID uuid.UUID, includeShared bool) error

	GetRelationship(ctx context.Context, agentID, userID uuid.UUID) (*Relationship, error)
	UpsertRelationship(ctx context.Context, r Relationship) error

	GetActors(ctx context.Context, roomID uuid.UUID) ([]Actor, error)
	GetGoals(ctx context.Context, roomID uuid.UUID, onlyInProgress bool) ([]Goal, error)

	Close() error
}
