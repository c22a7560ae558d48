package core

import (
	"time"

	"github.com/google/uuid"
)

// Memory is a persisted, optionally embedded record of an event (message,
// description, fact) scoped to a room, agent and user. Memories are never
// mutated in place: updates are new records, deletion is individual or in
// bulk per room.
//
// Identity is ID. Uniqueness-checked inserts skip when an identical ID is
// already present; with Unique semantics the datastore additionally treats
// near-duplicates (by embedding similarity) as already present.
type Memory struct {
	ID        uuid.UUID `json:"id"`
	AgentID   uuid.UUID `json:"agentId"`
	UserID    uuid.UUID `json:"userId"`
	RoomID    uuid.UUID `json:"roomId"`
	Content   Content   `json:"content"`
	Embedding []float32 `json:"embedding,omitempty"`
	Unique    bool      `json:"unique,omitempty"`
	// Similarity is populated on search results only; it is not persisted.
	Similarity float64   `json:"similarity,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// KnowledgeType distinguishes how a knowledge item entered the store.
type KnowledgeType string

const (
	// KnowledgeDirect is verbatim string knowledge from the character definition.
	KnowledgeDirect KnowledgeType = "direct"
	// KnowledgeFile is knowledge ingested from a file on disk.
	KnowledgeFile KnowledgeType = "file"
	// KnowledgeFragment is a chunk derived from a parent document.
	KnowledgeFragment KnowledgeType = "fragment"
)

// KnowledgeMetadata qualifies a knowledge item with its origin and scope.
type KnowledgeMetadata struct {
	Type KnowledgeType `json:"type"`
	// IsShared knowledge is visible to every agent querying the same store;
	// private knowledge is filtered by agent id.
	IsShared bool `json:"isShared"`
	// Source is the originating file path for file-backed items.
	Source string `json:"source,omitempty"`
	// ParentID links a fragment back to its parent document.
	ParentID string `json:"parentId,omitempty"`
}

// KnowledgeItem is reference material ingested for retrieval-augmented
// generation. Unlike conversational memories its id is a deterministic scoped
// hash of the normalized source (path + shared flag), so re-ingesting
// unchanged content is a no-op. Fragment ids append an ordinal suffix to the
// parent id so all chunks of a stale document can be removed by prefix.
type KnowledgeItem struct {
	ID        string            `json:"id"`
	AgentID   uuid.UUID         `json:"agentId"`
	Content   Content           `json:"content"`
	Embedding []float32         `json:"embedding,omitempty"`
	Metadata  KnowledgeMetadata `json:"metadata"`
	// Similarity is populated on search results only.
	Similarity float64   `json:"similarity,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Relationship is an exponentially weighted affinity score between an agent
// and a user, recomputed on each interaction.
type Relationship struct {
	ID        uuid.UUID `json:"id"`
	AgentID   uuid.UUID `json:"agentId"`
	UserID    uuid.UUID `json:"userId"`
	Score     float64   `json:"score"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Actor identifies a participant in a room.
type Actor struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Username string    `json:"username,omitempty"`
	Details  string    `json:"details,omitempty"`
}

// GoalStatus tracks progress of a goal.
type GoalStatus string

const (
	// GoalInProgress marks a goal still being pursued.
	GoalInProgress GoalStatus = "IN_PROGRESS"
	// GoalDone marks a completed goal.
	GoalDone GoalStatus = "DONE"
	// GoalFailed marks an abandoned goal.
	GoalFailed GoalStatus = "FAILED"
)

// Goal is an objective an agent is pursuing within a room, surfaced to
// context composition so the model stays on task.
type Goal struct {
	ID         uuid.UUID  `json:"id"`
	RoomID     uuid.UUID  `json:"roomId"`
	UserID     uuid.UUID  `json:"userId"`
	Name       string     `json:"name"`
	Status     GoalStatus `json:"status"`
	Objectives []string   `json:"objectives,omitempty"`
}
