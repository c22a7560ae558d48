package datastore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/animus-ai/animus/core"
)

// nearDuplicateThreshold is the similarity above which a unique insert treats
// an existing memory as already present.
const nearDuplicateThreshold = 0.95

// InMemory is a process-local core.DatastoreAdapter. Memories are bucketed
// per table, knowledge items live in one namespace keyed by scoped id.
//
// Concurrency: protected by RWMutex; no lock is held across anything
// network-latent because nothing here is.
type InMemory struct {
	mu            sync.RWMutex
	tables        map[string]map[uuid.UUID]core.Memory
	knowledge     map[string]core.KnowledgeItem
	relationships map[string]core.Relationship
	actors        map[uuid.UUID][]core.Actor
	goals         map[uuid.UUID][]core.Goal
}

// NewInMemory creates an empty in-memory adapter.
func NewInMemory() *InMemory {
	return &InMemory{
		tables:        make(map[string]map[uuid.UUID]core.Memory),
		knowledge:     make(map[string]core.KnowledgeItem),
		relationships: make(map[string]core.Relationship),
		actors:        make(map[uuid.UUID][]core.Actor),
		goals:         make(map[uuid.UUID][]core.Goal),
	}
}

func (s *InMemory) table(name string) map[uuid.UUID]core.Memory {
	t, ok := s.tables[name]
	if !ok {
		t = make(map[uuid.UUID]core.Memory)
		s.tables[name] = t
	}
	return t
}

// CreateMemory implements core.DatastoreAdapter. An existing identical id is
// a silent no-op; with unique, a near-duplicate by embedding similarity is
// also treated as already present.
func (s *InMemory) CreateMemory(_ context.Context, m core.Memory, table string, unique bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(table)
	if _, exists := t[m.ID]; exists {
		return nil
	}
	if unique && len(m.Embedding) > 0 {
		for _, existing := range t {
			if existing.RoomID != m.RoomID {
				continue
			}
			if CosineSimilarity(existing.Embedding, m.Embedding) >= nearDuplicateThreshold {
				return nil
			}
		}
		m.Unique = true
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	t[m.ID] = m
	return nil
}

// GetMemories implements core.DatastoreAdapter. Results are ordered by
// descending creation time.
func (s *InMemory) GetMemories(_ context.Context, f core.MemoryFilter) ([]core.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Memory
	for _, m := range s.table(f.Table) {
		if f.RoomID != uuid.Nil && m.RoomID != f.RoomID {
			continue
		}
		if f.AgentID != uuid.Nil && m.AgentID != f.AgentID {
			continue
		}
		if f.Unique && !m.Unique {
			continue
		}
		if !f.Start.IsZero() && m.CreatedAt.Before(f.Start) {
			continue
		}
		if !f.End.IsZero() && m.CreatedAt.After(f.End) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Count > 0 && len(out) > f.Count {
		out = out[:f.Count]
	}
	return out, nil
}

// GetMemoryByID implements core.DatastoreAdapter.
func (s *InMemory) GetMemoryByID(_ context.Context, table string, id uuid.UUID) (*core.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.table(table)[id]; ok {
		return &m, nil
	}
	return nil, core.ErrNotFound
}

// SearchMemories implements core.DatastoreAdapter. Results are ordered by
// descending cosine similarity.
func (s *InMemory) SearchMemories(_ context.Context, q core.EmbeddingQuery) ([]core.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Memory
	for _, m := range s.table(q.Table) {
		if q.RoomID != uuid.Nil && m.RoomID != q.RoomID {
			continue
		}
		if q.AgentID != uuid.Nil && m.AgentID != q.AgentID {
			continue
		}
		if q.Unique && !m.Unique {
			continue
		}
		sim := CosineSimilarity(m.Embedding, q.Embedding)
		if sim < q.Threshold {
			continue
		}
		m.Similarity = sim
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if q.Count > 0 && len(out) > q.Count {
		out = out[:q.Count]
	}
	return out, nil
}

// RemoveMemory implements core.DatastoreAdapter.
func (s *InMemory) RemoveMemory(_ context.Context, table string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.table(table), id)
	return nil
}

// RemoveAllMemories implements core.DatastoreAdapter.
func (s *InMemory) RemoveAllMemories(_ context.Context, table string, roomID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.table(table)
	for id, m := range t {
		if m.RoomID == roomID {
			delete(t, id)
		}
	}
	return nil
}

// CountMemories implements core.DatastoreAdapter.
func (s *InMemory) CountMemories(_ context.Context, table string, roomID uuid.UUID, unique bool) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, m := range s.table(table) {
		if roomID != uuid.Nil && m.RoomID != roomID {
			continue
		}
		if unique && !m.Unique {
			continue
		}
		count++
	}
	return count, nil
}

// CreateKnowledge implements core.DatastoreAdapter. Inserts are idempotent by
// id.
func (s *InMemory) CreateKnowledge(_ context.Context, item core.KnowledgeItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.knowledge[item.ID]; exists {
		return nil
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	s.knowledge[item.ID] = item
	return nil
}

func visibleTo(item core.KnowledgeItem, agentID uuid.UUID) bool {
	return item.Metadata.IsShared || agentID == uuid.Nil || item.AgentID == agentID
}

// GetKnowledge implements core.DatastoreAdapter.
func (s *InMemory) GetKnowledge(_ context.Context, f core.KnowledgeFilter) ([]core.KnowledgeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.KnowledgeItem
	if f.ID != "" {
		if item, ok := s.knowledge[f.ID]; ok && visibleTo(item, f.AgentID) {
			out = append(out, item)
		}
		return out, nil
	}
	for _, item := range s.knowledge {
		if visibleTo(item, f.AgentID) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if f.Count > 0 && len(out) > f.Count {
		out = out[:f.Count]
	}
	return out, nil
}

// SearchKnowledge implements core.DatastoreAdapter. Only fragments carry
// embeddings worth matching, but the scan tolerates embedded documents too.
func (s *InMemory) SearchKnowledge(_ context.Context, q core.KnowledgeQuery) ([]core.KnowledgeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.KnowledgeItem
	for _, item := range s.knowledge {
		if !visibleTo(item, q.AgentID) {
			continue
		}
		sim := CosineSimilarity(item.Embedding, q.Embedding)
		if sim < q.Threshold {
			continue
		}
		item.Similarity = sim
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if q.Count > 0 && len(out) > q.Count {
		out = out[:q.Count]
	}
	return out, nil
}

// RemoveKnowledge implements core.DatastoreAdapter.
func (s *InMemory) RemoveKnowledge(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.knowledge, id)
	return nil
}

// RemoveKnowledgeByPrefix implements core.DatastoreAdapter.
func (s *InMemory) RemoveKnowledgeByPrefix(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.knowledge {
		if strings.HasPrefix(id, prefix) {
			delete(s.knowledge, id)
		}
	}
	return nil
}

// ClearKnowledge implements core.DatastoreAdapter.
func (s *InMemory) ClearKnowledge(_ context.Context, agentID uuid.UUID, includeShared bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, item := range s.knowledge {
		if item.AgentID == agentID || (includeShared && item.Metadata.IsShared) {
			delete(s.knowledge, id)
		}
	}
	return nil
}

func relationshipKey(agentID, userID uuid.UUID) string {
	return agentID.String() + "|" + userID.String()
}

// GetRelationship implements core.DatastoreAdapter. A missing relationship is
// (nil, nil) so callers can seed a fresh score.
func (s *InMemory) GetRelationship(_ context.Context, agentID, userID uuid.UUID) (*core.Relationship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.relationships[relationshipKey(agentID, userID)]; ok {
		return &r, nil
	}
	return nil, nil
}

// UpsertRelationship implements core.DatastoreAdapter.
func (s *InMemory) UpsertRelationship(_ context.Context, r core.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	s.relationships[relationshipKey(r.AgentID, r.UserID)] = r
	return nil
}

// GetActors implements core.DatastoreAdapter.
func (s *InMemory) GetActors(_ context.Context, roomID uuid.UUID) ([]core.Actor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Actor(nil), s.actors[roomID]...), nil
}

// SetActors seeds the participants of a room; used by front-ends and tests.
func (s *InMemory) SetActors(roomID uuid.UUID, actors []core.Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[roomID] = append([]core.Actor(nil), actors...)
}

// GetGoals implements core.DatastoreAdapter.
func (s *InMemory) GetGoals(_ context.Context, roomID uuid.UUID, onlyInProgress bool) ([]core.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Goal
	for _, g := range s.goals[roomID] {
		if onlyInProgress && g.Status != core.GoalInProgress {
			continue
		}
		out = append(out, g)
	}
	return out, nil
}

// SetGoals seeds the goals of a room; used by front-ends and tests.
func (s *InMemory) SetGoals(roomID uuid.UUID, goals []core.Goal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals[roomID] = append([]core.Goal(nil), goals...)
}

// Close implements core.DatastoreAdapter.
func (s *InMemory) Close() error { return nil }
