package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/animus-ai/animus/core"
)

// MemoryBuilder provides a fluent helper for constructing memories in tests.
// Example:
//
//	m := NewMemoryBuilder().Room(roomID).Text("hello").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type MemoryBuilder struct {
	id        uuid.UUID
	agentID   uuid.UUID
	userID    uuid.UUID
	roomID    uuid.UUID
	content   core.Content
	embedding []float32
	createdAt time.Time
}

// NewMemoryBuilder creates a builder with a random id.
func NewMemoryBuilder() *MemoryBuilder {
	return &MemoryBuilder{id: uuid.New()}
}

// ID overrides the auto-generated memory id (chainable).
func (b *MemoryBuilder) ID(id uuid.UUID) *MemoryBuilder { b.id = id; return b }

// Agent sets the agent id (chainable).
func (b *MemoryBuilder) Agent(id uuid.UUID) *MemoryBuilder { b.agentID = id; return b }

// User sets the user id (chainable).
func (b *MemoryBuilder) User(id uuid.UUID) *MemoryBuilder { b.userID = id; return b }

// Room sets the room id (chainable).
func (b *MemoryBuilder) Room(id uuid.UUID) *MemoryBuilder { b.roomID = id; return b }

// Text sets plain text content (chainable).
func (b *MemoryBuilder) Text(t string) *MemoryBuilder { b.content = core.TextContent(t); return b }

// Content sets the full content payload (chainable).
func (b *MemoryBuilder) Content(c core.Content) *MemoryBuilder { b.content = c; return b }

// Embedding sets the embedding vector (chainable).
func (b *MemoryBuilder) Embedding(v []float32) *MemoryBuilder { b.embedding = v; return b }

// CreatedAt pins the creation time, for ordering-sensitive tests (chainable).
func (b *MemoryBuilder) CreatedAt(t time.Time) *MemoryBuilder { b.createdAt = t; return b }

// Build assembles the memory.
func (b *MemoryBuilder) Build() core.Memory {
	return core.Memory{
		ID:        b.id,
		AgentID:   b.agentID,
		UserID:    b.userID,
		RoomID:    b.roomID,
		Content:   b.content,
		Embedding: b.embedding,
		CreatedAt: b.createdAt,
	}
}
