package sqlitestore

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
		VALUES (?,?,?,?,?,?,?,?,?)`,
		record.BuildID, record.Scope.TenantID, record.Scope.UserID, record.Scope.AgentID,
		record.Scope.SessionID, record.Scope.RunID, record.GeneratedAt.Format(rfc3339), budgetReport, explain,
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
		WHERE tenant_id=? AND user_id=? AND agent_id=? AND session_id=? AND run_id=? AND build_id=?`,
		scope.TenantID, scope.UserID, scope.AgentID, scope.SessionID, scope.RunID, buildID,
	)

	var rec model.BuildRecord
	var generatedAt string
	var budgetReport, explain []byte
	err := row.Scan(&rec.BuildID, &rec.Scope.TenantID, &rec.Scope.UserID, &rec.Scope.AgentID,
		&rec.Scope.SessionID, &rec.Scope.RunID, &generatedAt, &budgetReport, &explain)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engramerr.NewStorageError(engramerr.ErrNotFound, "context_builds", err)
	}
	if err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "context_builds", err)
	}
	rec.GeneratedAt = mustParseTime(generatedAt)
	_ = sqlcommon.UnmarshalJSON(budgetReport, &rec.BudgetReport)
	_ = sqlcommon.UnmarshalJSON(explain, &rec.Explain)
	return &rec, nil
}
