package pgstore

import (
	"context"

	"github.com/engramhq/engram/pkg/engramerr"
	"github.com/engramhq/engram/pkg/model"
)

// Tombstone records a governance hard-delete. It does not itself remove the
// entity row, and pkg/ingest.Writer.Tombstone calls only this method, so it
// deletes nothing either.
func (s *Store) Tombstone(ctx context.Context, tomb model.Tombstone) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tombstones (entity_kind, entity_id, tenant_id, user_id, agent_id, session_id, run_id, deleted_at, reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		string(tomb.EntityKind), tomb.EntityID, tomb.Scope.TenantID, tomb.Scope.UserID,
		tomb.Scope.AgentID, tomb.Scope.SessionID, tomb.Scope.RunID, tomb.DeletedAt, tomb.Reason,
	)
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrQuery, "tombstones", err)
	}
	return nil
}
