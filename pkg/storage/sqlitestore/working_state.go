package sqlitestore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/engramhq/engram/pkg/engramerr"
	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/storage/sqlcommon"
)

// GetWorkingState returns the scope's working state, or engramerr.ErrNotFound
// if none has ever been written.
func (s *Store) GetWorkingState(ctx context.Context, scope model.Scope) (*model.WorkingState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT goal, plan, slots, constraints, tool_evidence, decisions, risks, state_version
		FROM working_states
		WHERE tenant_id=? AND user_id=? AND agent_id=? AND session_id=? AND run_id=?`,
		scope.TenantID, scope.UserID, scope.AgentID, scope.SessionID, scope.RunID,
	)

	var ws model.WorkingState
	var plan, slots, constraints, toolEvidence, decisions, risks []byte
	err := row.Scan(&ws.Goal, &plan, &slots, &constraints, &toolEvidence, &decisions, &risks, &ws.StateVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engramerr.NewStorageError(engramerr.ErrNotFound, "working_state", err)
	}
	if err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "working_state", err)
	}

	_ = sqlcommon.UnmarshalJSON(plan, &ws.Plan)
	_ = sqlcommon.UnmarshalJSON(slots, &ws.Slots)
	_ = sqlcommon.UnmarshalJSON(constraints, &ws.Constraints)
	_ = sqlcommon.UnmarshalJSON(toolEvidence, &ws.ToolEvidence)
	_ = sqlcommon.UnmarshalJSON(decisions, &ws.Decisions)
	_ = sqlcommon.UnmarshalJSON(risks, &ws.Risks)
	return &ws, nil
}

// PatchWorkingState applies patch under optimistic concurrency on
// state_version, identically to pgstore. Sqlite's single-writer-connection
// pool (Open caps MaxOpenConns at 1) makes the explicit row lock pgstore
// takes with "FOR UPDATE" unnecessary here: the transaction already has
// exclusive access to the one connection.
func (s *Store) PatchWorkingState(ctx context.Context, scope model.Scope, patch model.WorkingStatePatch, expectedVersion int64) (*model.WorkingState, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrConnection, "working_state", err)
	}
	defer tx.Rollback()

	var current model.WorkingState
	var plan, slots, constraints, toolEvidence, decisions, risks []byte
	row := tx.QueryRowContext(ctx, `
		SELECT goal, plan, slots, constraints, tool_evidence, decisions, risks, state_version
		FROM working_states
		WHERE tenant_id=? AND user_id=? AND agent_id=? AND session_id=? AND run_id=?`,
		scope.TenantID, scope.UserID, scope.AgentID, scope.SessionID, scope.RunID,
	)
	err = row.Scan(&current.Goal, &plan, &slots, &constraints, &toolEvidence, &decisions, &risks, &current.StateVersion)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		current = model.WorkingState{}
	case err != nil:
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "working_state", err)
	default:
		_ = sqlcommon.UnmarshalJSON(plan, &current.Plan)
		_ = sqlcommon.UnmarshalJSON(slots, &current.Slots)
		_ = sqlcommon.UnmarshalJSON(constraints, &current.Constraints)
		_ = sqlcommon.UnmarshalJSON(toolEvidence, &current.ToolEvidence)
		_ = sqlcommon.UnmarshalJSON(decisions, &current.Decisions)
		_ = sqlcommon.UnmarshalJSON(risks, &current.Risks)
	}

	if current.StateVersion != expectedVersion {
		return nil, engramerr.NewStorageError(engramerr.ErrVersionConflict, "working_state", nil)
	}

	sqlcommon.ApplyWorkingStatePatch(&current, patch)
	current.StateVersion++

	planJSON, _ := sqlcommon.MarshalJSON(current.Plan)
	slotsJSON, _ := sqlcommon.MarshalJSON(current.Slots)
	constraintsJSON, _ := sqlcommon.MarshalJSON(current.Constraints)
	toolEvidenceJSON, _ := sqlcommon.MarshalJSON(current.ToolEvidence)
	decisionsJSON, _ := sqlcommon.MarshalJSON(current.Decisions)
	risksJSON, _ := sqlcommon.MarshalJSON(current.Risks)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO working_states (tenant_id, user_id, agent_id, session_id, run_id, goal, plan, slots, constraints, tool_evidence, decisions, risks, state_version)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (tenant_id, user_id, agent_id, session_id, run_id) DO UPDATE SET
			goal=excluded.goal, plan=excluded.plan, slots=excluded.slots, constraints=excluded.constraints,
			tool_evidence=excluded.tool_evidence, decisions=excluded.decisions, risks=excluded.risks,
			state_version=excluded.state_version`,
		scope.TenantID, scope.UserID, scope.AgentID, scope.SessionID, scope.RunID,
		current.Goal, planJSON, slotsJSON, constraintsJSON, toolEvidenceJSON, decisionsJSON, risksJSON, current.StateVersion,
	)
	if err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "working_state", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrConnection, "working_state", err)
	}
	return &current, nil
}
