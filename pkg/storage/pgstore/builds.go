package pgstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/engramhq/engram/pkg/engramerr"
	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/storage/sqlcommon"
)

// RecordBuild persists a packet's explain + budget report for replay.
func (s *Store) RecordBuild(ctx context.Context, record model.BuildRecord) error {
	budgetReport, err := sqlcommon.MarshalJSON(record.BudgetReport)
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrQuery, "context_builds", err)
	}
	explain, err := sqlcommon.MarshalJSON(record.Explain)
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrQuery, "context_builds", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO context_builds (build_id, tenant_id, user_id, agent_id, session_id, run_id, generated_at, budget_report, explain)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		record.BuildID, record.Scope.TenantID, record.Scope.UserID, record.Scope.AgentID,
		record.Scope.SessionID, record.Scope.RunID, record.GeneratedAt, budgetReport, explain,
	)
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrQuery, "context_builds", err)
	}
	return nil
}

// GetBuildRecord retrieves a previously recorded build by ID.
func (s *Store) GetBuildRecord(ctx context.Context, scope model.Scope, buildID string) (*model.BuildRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT build_id, tenant_id, user_id, agent_id, session_id, run_id, generated_at, budget_report, explain
		FROM context_builds
		WHERE tenant_id=$1 AND user_id=$2 AND agent_id=$3 AND session_id=$4 AND run_id=$5 AND build_id=$6`,
		scope.TenantID, scope.UserID, scope.AgentID, scope.SessionID, scope.RunID, buildID,
	)

	var rec model.BuildRecord
	var budgetReport, explain []byte
	err := row.Scan(&rec.BuildID, &rec.Scope.TenantID, &rec.Scope.UserID, &rec.Scope.AgentID,
		&rec.Scope.SessionID, &rec.Scope.RunID, &rec.GeneratedAt, &budgetReport, &explain)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engramerr.NewStorageError(engramerr.ErrNotFound, "context_builds", err)
	}
	if err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "context_builds", err)
	}
	_ = sqlcommon.UnmarshalJSON(budgetReport, &rec.BudgetReport)
	_ = sqlcommon.UnmarshalJSON(explain, &rec.Explain)
	return &rec, nil
}
