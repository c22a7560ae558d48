// Package relationship maintains the per-user affinity score an agent keeps
// across interactions. Scores are an exponentially weighted moving average so
// recent interactions dominate without erasing history.
package relationship

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/animus-ai/animus/core"
	"github.com/animus-ai/animus/logging"
)

// historyWeight is the fraction of the previous score retained on update. The
// complementary weight favors the newest interaction, so scores converge on a
// stable signal within a handful of exchanges.
const historyWeight = 0.3

// UpdateScore folds a new interaction score into the existing one. Scores are
// intentionally not clamped; callers that need a bounded range normalize at
// read time.
func UpdateScore(old, interaction float64) float64 {
	return historyWeight*old + (1-historyWeight)*interaction
}

// Manager reads and updates relationship records in the shared datastore.
type Manager struct {
	datastore core.DatastoreAdapter
	logger    logging.Logger
}

// Options configures a Manager.
type Options struct {
	Logger logging.Logger
}

// New creates a relationship Manager.
func New(ds core.DatastoreAdapter, optFns ...func(o *Options)) *Manager {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{datastore: ds, logger: opts.Logger}
}

// Score returns the current affinity between agent and user, or 0 when no
// relationship exists yet.
func (m *Manager) Score(ctx context.Context, agentID, userID uuid.UUID) (float64, error) {
	r, err := m.datastore.GetRelationship(ctx, agentID, userID)
	if err != nil {
		return 0, err
	}
	if r == nil {
		return 0, nil
	}
	return r.Score, nil
}

// Record folds an interaction score into the stored relationship, creating
// the record on first contact. The updated score is returned.
func (m *Manager) Record(ctx context.Context, agentID, userID uuid.UUID, interaction float64) (float64, error) {
	existing, err := m.datastore.GetRelationship(ctx, agentID, userID)
	if err != nil {
		return 0, err
	}
	r := core.Relationship{AgentID: agentID, UserID: userID}
	old := 0.0
	if existing != nil {
		r.ID = existing.ID
		old = existing.Score
	}
	r.Score = UpdateScore(old, interaction)
	r.UpdatedAt = time.Now()
	if err := m.datastore.UpsertRelationship(ctx, r); err != nil {
		return 0, err
	}
	m.logger.Debug("Relationship updated", "agentId", agentID, "userId", userID, "score", r.Score)
	return r.Score, nil
}
