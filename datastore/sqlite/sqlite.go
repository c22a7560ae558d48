// Package sqlite implements core.DatastoreAdapter on SQLite. Embeddings are
// stored as little-endian float32 BLOBs and similarity is computed in Go over
// candidate rows, which is adequate for the single-agent datastores this
// adapter targets; swap in a vector-capable backend for large corpora.
package sqlite

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/animus-ai/animus/core"
	"github.com/animus-ai/animus/datastore"
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id         TEXT NOT NULL,
	table_name TEXT NOT NULL,
	agent_id   TEXT,
	user_id    TEXT,
	room_id    TEXT,
	content    TEXT NOT NULL,
	embedding  BLOB,
	is_unique  INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (id, table_name)
);
CREATE INDEX IF NOT EXISTS idx_memories_room ON memories(table_name, room_id);

CREATE TABLE IF NOT EXISTS knowledge (
	id         TEXT PRIMARY KEY,
	agent_id   TEXT,
	content    TEXT NOT NULL,
	embedding  BLOB,
	type       TEXT NOT NULL,
	is_shared  INTEGER NOT NULL DEFAULT 0,
	source     TEXT,
	parent_id  TEXT,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS relationships (
	id         TEXT PRIMARY KEY,
	agent_id   TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	score      REAL NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	UNIQUE (agent_id, user_id)
);

CREATE TABLE IF NOT EXISTS actors (
	id       TEXT PRIMARY KEY,
	room_id  TEXT NOT NULL,
	name     TEXT NOT NULL,
	username TEXT,
	details  TEXT
);

CREATE TABLE IF NOT EXISTS goals (
	id         TEXT PRIMARY KEY,
	room_id    TEXT NOT NULL,
	user_id    TEXT,
	name       TEXT NOT NULL,
	status     TEXT NOT NULL,
	objectives TEXT
);
`

// nearDuplicateThreshold mirrors the in-memory adapter's unique-insert cutoff.
const nearDuplicateThreshold = 0.95

// Store is a SQLite-backed core.DatastoreAdapter.
type Store struct {
	db *sql.DB
}

// Open opens (and initializes) a store at path. Use ":memory:" for an
// ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, core.NewDatastoreError("open", err)
	}
	// One writer at a time keeps mattn/go-sqlite3 happy under concurrency.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, core.NewDatastoreError("migrate", err)
	}
	return &Store{db: db}, nil
}

// Close implements core.DatastoreAdapter.
func (s *Store) Close() error { return s.db.Close() }

func encodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := new(bytes.Buffer)
	for _, f := range vec {
		_ = binary.Write(buf, binary.LittleEndian, math.Float32bits(f))
	}
	return buf.Bytes()
}

func decodeEmbedding(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec
}

// CreateMemory implements core.DatastoreAdapter.
func (s *Store) CreateMemory(ctx context.Context, m core.Memory, table string, unique bool) error {
	if unique && len(m.Embedding) > 0 {
		dup, err := s.hasNearDuplicate(ctx, table, m.RoomID, m.Embedding)
		if err != nil {
			return err
		}
		if dup {
			return nil
		}
		m.Unique = true
	}
	content, err := json.Marshal(m.Content)
	if err != nil {
		return core.NewDatastoreError("createMemory", err)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO memories (id, table_name, agent_id, user_id, room_id, content, embedding, is_unique, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), table, m.AgentID.String(), m.UserID.String(), m.RoomID.String(),
		string(content), encodeEmbedding(m.Embedding), boolToInt(m.Unique), m.CreatedAt)
	return core.NewDatastoreError("createMemory", err)
}

func (s *Store) hasNearDuplicate(ctx context.Context, table string, roomID uuid.UUID, vec []float32) (bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT embedding FROM memories WHERE table_name = ? AND room_id = ? AND embedding IS NOT NULL`,
		table, roomID.String())
	if err != nil {
		return false, core.NewDatastoreError("createMemory", err)
	}
	defer rows.Close()
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return false, core.NewDatastoreError("createMemory", err)
		}
		if datastore.CosineSimilarity(decodeEmbedding(blob), vec) >= nearDuplicateThreshold {
			return true, nil
		}
	}
	return false, core.NewDatastoreError("createMemory", rows.Err())
}

func scanMemory(rows *sql.Rows) (core.Memory, error) {
	var m core.Memory
	var id, agentID, userID, roomID, content string
	var embedding []byte
	var isUnique int
	if err := rows.Scan(&id, &agentID, &userID, &roomID, &content, &embedding, &isUnique, &m.CreatedAt); err != nil {
		return m, err
	}
	m.ID, _ = uuid.Parse(id)
	m.AgentID, _ = uuid.Parse(agentID)
	m.UserID, _ = uuid.Parse(userID)
	m.RoomID, _ = uuid.Parse(roomID)
	m.Unique = isUnique != 0
	m.Embedding = decodeEmbedding(embedding)
	if err := json.Unmarshal([]byte(content), &m.Content); err != nil {
		return m, err
	}
	return m, nil
}

const memoryColumns = `id, agent_id, user_id, room_id, content, embedding, is_unique, created_at`

// GetMemories implements core.DatastoreAdapter.
func (s *Store) GetMemories(ctx context.Context, f core.MemoryFilter) ([]core.Memory, error) {
	query := `SELECT ` + memoryColumns + ` FROM memories WHERE table_name = ?`
	args := []any{f.Table}
	if f.RoomID != uuid.Nil {
		query += ` AND room_id = ?`
		args = append(args, f.RoomID.String())
	}
	if f.AgentID != uuid.Nil {
		query += ` AND agent_id = ?`
		args = append(args, f.AgentID.String())
	}
	if f.Unique {
		query += ` AND is_unique = 1`
	}
	if !f.Start.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, f.Start)
	}
	if !f.End.IsZero() {
		query += ` AND created_at <= ?`
		args = append(args, f.End)
	}
	query += ` ORDER BY created_at DESC`
	if f.Count > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Count)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewDatastoreError("getMemories", err)
	}
	defer rows.Close()
	var out []core.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, core.NewDatastoreError("getMemories", err)
		}
		out = append(out, m)
	}
	return out, core.NewDatastoreError("getMemories", rows.Err())
}

// GetMemoryByID implements core.DatastoreAdapter.
func (s *Store) GetMemoryByID(ctx context.Context, table string, id uuid.UUID) (*core.Memory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+memoryColumns+` FROM memories WHERE table_name = ? AND id = ?`, table, id.String())
	if err != nil {
		return nil, core.NewDatastoreError("getMemoryById", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, core.ErrNotFound
	}
	m, err := scanMemory(rows)
	if err != nil {
		return nil, core.NewDatastoreError("getMemoryById", err)
	}
	return &m, nil
}

// SearchMemories implements core.DatastoreAdapter. Candidates are filtered in
// SQL, scored in Go and ordered by descending similarity.
func (s *Store) SearchMemories(ctx context.Context, q core.EmbeddingQuery) ([]core.Memory, error) {
	f := core.MemoryFilter{Table: q.Table, RoomID: q.RoomID, AgentID: q.AgentID, Unique: q.Unique}
	candidates, err := s.GetMemories(ctx, f)
	if err != nil {
		return nil, err
	}
	var out []core.Memory
	for _, m := range candidates {
		sim := datastore.CosineSimilarity(m.Embedding, q.Embedding)
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
func (s *Store) RemoveMemory(ctx context.Context, table string, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE table_name = ? AND id = ?`, table, id.String())
	return core.NewDatastoreError("removeMemory", err)
}

// RemoveAllMemories implements core.DatastoreAdapter.
func (s *Store) RemoveAllMemories(ctx context.Context, table string, roomID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE table_name = ? AND room_id = ?`, table, roomID.String())
	return core.NewDatastoreError("removeAllMemories", err)
}

// CountMemories implements core.DatastoreAdapter.
func (s *Store) CountMemories(ctx context.Context, table string, roomID uuid.UUID, unique bool) (int, error) {
	query := `SELECT COUNT(*) FROM memories WHERE table_name = ?`
	args := []any{table}
	if roomID != uuid.Nil {
		query += ` AND room_id = ?`
		args = append(args, roomID.String())
	}
	if unique {
		query += ` AND is_unique = 1`
	}
	var count int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, core.NewDatastoreError("countMemories", err)
}

// CreateKnowledge implements core.DatastoreAdapter.
func (s *Store) CreateKnowledge(ctx context.Context, item core.KnowledgeItem) error {
	content, err := json.Marshal(item.Content)
	if err != nil {
		return core.NewDatastoreError("createKnowledge", err)
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO knowledge (id, agent_id, content, embedding, type, is_shared, source, parent_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.AgentID.String(), string(content), encodeEmbedding(item.Embedding),
		string(item.Metadata.Type), boolToInt(item.Metadata.IsShared), item.Metadata.Source,
		item.Metadata.ParentID, item.CreatedAt)
	return core.NewDatastoreError("createKnowledge", err)
}

func scanKnowledge(rows *sql.Rows) (core.KnowledgeItem, error) {
	var item core.KnowledgeItem
	var agentID, content, typ string
	var embedding []byte
	var isShared int
	if err := rows.Scan(&item.ID, &agentID, &content, &embedding, &typ, &isShared, &item.Metadata.Source, &item.Metadata.ParentID, &item.CreatedAt); err != nil {
		return item, err
	}
	item.AgentID, _ = uuid.Parse(agentID)
	item.Metadata.Type = core.KnowledgeType(typ)
	item.Metadata.IsShared = isShared != 0
	item.Embedding = decodeEmbedding(embedding)
	if err := json.Unmarshal([]byte(content), &item.Content); err != nil {
		return item, err
	}
	return item, nil
}

const knowledgeColumns = `id, agent_id, content, embedding, type, is_shared, source, parent_id, created_at`

func (s *Store) queryKnowledge(ctx context.Context, query string, args ...any) ([]core.KnowledgeItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewDatastoreError("getKnowledge", err)
	}
	defer rows.Close()
	var out []core.KnowledgeItem
	for rows.Next() {
		item, err := scanKnowledge(rows)
		if err != nil {
			return nil, core.NewDatastoreError("getKnowledge", err)
		}
		out = append(out, item)
	}
	return out, core.NewDatastoreError("getKnowledge", rows.Err())
}

// GetKnowledge implements core.DatastoreAdapter.
func (s *Store) GetKnowledge(ctx context.Context, f core.KnowledgeFilter) ([]core.KnowledgeItem, error) {
	query := `SELECT ` + knowledgeColumns + ` FROM knowledge WHERE 1=1`
	args := []any{}
	if f.ID != "" {
		query += ` AND id = ?`
		args = append(args, f.ID)
	}
	if f.AgentID != uuid.Nil {
		query += ` AND (is_shared = 1 OR agent_id = ?)`
		args = append(args, f.AgentID.String())
	}
	query += ` ORDER BY created_at ASC`
	if f.Count > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Count)
	}
	return s.queryKnowledge(ctx, query, args...)
}

// SearchKnowledge implements core.DatastoreAdapter.
func (s *Store) SearchKnowledge(ctx context.Context, q core.KnowledgeQuery) ([]core.KnowledgeItem, error) {
	candidates, err := s.GetKnowledge(ctx, core.KnowledgeFilter{AgentID: q.AgentID})
	if err != nil {
		return nil, err
	}
	var out []core.KnowledgeItem
	for _, item := range candidates {
		sim := datastore.CosineSimilarity(item.Embedding, q.Embedding)
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
func (s *Store) RemoveKnowledge(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM knowledge WHERE id = ?`, id)
	return core.NewDatastoreError("removeKnowledge", err)
}

// RemoveKnowledgeByPrefix implements core.DatastoreAdapter.
func (s *Store) RemoveKnowledgeByPrefix(ctx context.Context, prefix string) error {
	// Escape LIKE wildcards so a literal prefix match is guaranteed.
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	_, err := s.db.ExecContext(ctx, `DELETE FROM knowledge WHERE id LIKE ? ESCAPE '\'`, escaped+"%")
	return core.NewDatastoreError("removeKnowledge", err)
}

// ClearKnowledge implements core.DatastoreAdapter.
func (s *Store) ClearKnowledge(ctx context.Context, agentID uuid.UUID, includeShared bool) error {
	query := `DELETE FROM knowledge WHERE agent_id = ?`
	if includeShared {
		query += ` OR is_shared = 1`
	}
	_, err := s.db.ExecContext(ctx, query, agentID.String())
	return core.NewDatastoreError("clearKnowledge", err)
}

// GetRelationship implements core.DatastoreAdapter. A missing relationship is
// (nil, nil) so callers can seed a fresh score.
func (s *Store) GetRelationship(ctx context.Context, agentID, userID uuid.UUID) (*core.Relationship, error) {
	var r core.Relationship
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, score, updated_at FROM relationships WHERE agent_id = ? AND user_id = ?`,
		agentID.String(), userID.String()).Scan(&id, &r.Score, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, core.NewDatastoreError("getRelationship", err)
	}
	r.ID, _ = uuid.Parse(id)
	r.AgentID = agentID
	r.UserID = userID
	return &r, nil
}

// UpsertRelationship implements core.DatastoreAdapter.
func (s *Store) UpsertRelationship(ctx context.Context, r core.Relationship) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relationships (id, agent_id, user_id, score, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (agent_id, user_id) DO UPDATE SET score = excluded.score, updated_at = excluded.updated_at`,
		r.ID.String(), r.AgentID.String(), r.UserID.String(), r.Score, r.UpdatedAt)
	return core.NewDatastoreError("upsertRelationship", err)
}

// GetActors implements core.DatastoreAdapter.
func (s *Store) GetActors(ctx context.Context, roomID uuid.UUID) ([]core.Actor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, username, details FROM actors WHERE room_id = ?`, roomID.String())
	if err != nil {
		return nil, core.NewDatastoreError("getActors", err)
	}
	defer rows.Close()
	var out []core.Actor
	for rows.Next() {
		var a core.Actor
		var id string
		if err := rows.Scan(&id, &a.Name, &a.Username, &a.Details); err != nil {
			return nil, core.NewDatastoreError("getActors", err)
		}
		a.ID, _ = uuid.Parse(id)
		out = append(out, a)
	}
	return out, core.NewDatastoreError("getActors", rows.Err())
}

// SetActors replaces the participants of a room; used by front-ends and
// tests, mirroring the in-memory adapter's seeding helper.
func (s *Store) SetActors(ctx context.Context, roomID uuid.UUID, actors []core.Actor) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewDatastoreError("setActors", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM actors WHERE room_id = ?`, roomID.String()); err != nil {
		return core.NewDatastoreError("setActors", err)
	}
	for _, a := range actors {
		if a.ID == uuid.Nil {
			a.ID = uuid.New()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO actors (id, room_id, name, username, details) VALUES (?, ?, ?, ?, ?)`,
			a.ID.String(), roomID.String(), a.Name, a.Username, a.Details); err != nil {
			return core.NewDatastoreError("setActors", err)
		}
	}
	return core.NewDatastoreError("setActors", tx.Commit())
}

// GetGoals implements core.DatastoreAdapter.
func (s *Store) GetGoals(ctx context.Context, roomID uuid.UUID, onlyInProgress bool) ([]core.Goal, error) {
	query := `SELECT id, user_id, name, status, objectives FROM goals WHERE room_id = ?`
	args := []any{roomID.String()}
	if onlyInProgress {
		query += ` AND status = ?`
		args = append(args, string(core.GoalInProgress))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, core.NewDatastoreError("getGoals", err)
	}
	defer rows.Close()
	var out []core.Goal
	for rows.Next() {
		var g core.Goal
		var id, userID, status, objectives string
		if err := rows.Scan(&id, &userID, &g.Name, &status, &objectives); err != nil {
			return nil, core.NewDatastoreError("getGoals", err)
		}
		g.ID, _ = uuid.Parse(id)
		g.UserID, _ = uuid.Parse(userID)
		g.RoomID = roomID
		g.Status = core.GoalStatus(status)
		if objectives != "" {
			_ = json.Unmarshal([]byte(objectives), &g.Objectives)
		}
		out = append(out, g)
	}
	return out, core.NewDatastoreError("getGoals", rows.Err())
}

// SetGoals replaces the goals of a room; used by front-ends and tests.
func (s *Store) SetGoals(ctx context.Context, roomID uuid.UUID, goals []core.Goal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewDatastoreError("setGoals", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM goals WHERE room_id = ?`, roomID.String()); err != nil {
		return core.NewDatastoreError("setGoals", err)
	}
	for _, g := range goals {
		if g.ID == uuid.Nil {
			g.ID = uuid.New()
		}
		objectives, err := json.Marshal(g.Objectives)
		if err != nil {
			return core.NewDatastoreError("setGoals", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO goals (id, room_id, user_id, name, status, objectives) VALUES (?, ?, ?, ?, ?, ?)`,
			g.ID.String(), roomID.String(), g.UserID.String(), g.Name, string(g.Status), string(objectives)); err != nil {
			return core.NewDatastoreError("setGoals", err)
		}
	}
	return core.NewDatastoreError("setGoals", tx.Commit())
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
