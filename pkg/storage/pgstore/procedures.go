package pgstore

import (
	"context"

	"github.com/engramhq/engram/pkg/engramerr"
	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/storage/sqlcommon"
)

// PutProcedure inserts or replaces a stored procedure.
func (s *Store) PutProcedure(ctx context.Context, procedure model.Procedure) error {
	content, err := sqlcommon.MarshalJSON(procedure.Content)
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrQuery, "procedures", err)
	}
	sources, _ := sqlcommon.MarshalJSON(procedure.Sources)
	applicability, _ := sqlcommon.MarshalJSON(procedure.Applicability)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO procedures (procedure_id, tenant_id, user_id, agent_id, session_id, run_id, task_type, content, priority, usage_count, sources, applicability)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (procedure_id) DO UPDATE SET
			content=EXCLUDED.content, priority=EXCLUDED.priority, usage_count=EXCLUDED.usage_count,
			sources=EXCLUDED.sources, applicability=EXCLUDED.applicability`,
		procedure.ProcedureID, procedure.Scope.TenantID, procedure.Scope.UserID, procedure.Scope.AgentID,
		procedure.Scope.SessionID, procedure.Scope.RunID, procedure.TaskType, content,
		procedure.Priority, procedure.UsageCount, sources, applicability,
	)
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrQuery, "procedures", err)
	}
	return nil
}

// ListProcedures returns procedures for scope ordered by descending
// priority then descending usage_count, subject to filter.
func (s *Store) ListProcedures(ctx context.Context, scope model.Scope, filter model.ProcedureFilter) ([]model.Procedure, error) {
	query := `SELECT procedure_id, tenant_id, user_id, agent_id, session_id, run_id, task_type, content, priority, usage_count, sources, applicability
		FROM procedures WHERE tenant_id=$1 AND user_id=$2 AND agent_id=$3 AND session_id=$4 AND run_id=$5`
	args := []any{scope.TenantID, scope.UserID, scope.AgentID, scope.SessionID, scope.RunID}

	if filter.TaskType != "" {
		args = append(args, filter.TaskType)
		query += " AND task_type = $" + itoa(len(args))
	}
	query += " ORDER BY priority DESC, usage_count DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "procedures", err)
	}
	defer rows.Close()

	var out []model.Procedure
	for rows.Next() {
		var p model.Procedure
		var content, sources, applicability []byte
		if err := rows.Scan(&p.ProcedureID, &p.Scope.TenantID, &p.Scope.UserID, &p.Scope.AgentID, &p.Scope.SessionID, &p.Scope.RunID,
			&p.TaskType, &content, &p.Priority, &p.UsageCount, &sources, &applicability); err != nil {
			return nil, engramerr.NewStorageError(engramerr.ErrQuery, "procedures", err)
		}
		_ = sqlcommon.UnmarshalJSON(content, &p.Content)
		_ = sqlcommon.UnmarshalJSON(sources, &p.Sources)
		_ = sqlcommon.UnmarshalJSON(applicability, &p.Applicability)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "procedures", err)
	}
	return out, nil
}
