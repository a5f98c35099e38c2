package pgstore

import (
	"context"
	"time"

	"github.com/engramhq/engram/pkg/engramerr"
	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/storage/sqlcommon"
)

// PutInsight inserts an ephemeral insight row.
func (s *Store) PutInsight(ctx context.Context, insight model.Insight) error {
	sources, _ := sqlcommon.MarshalJSON(insight.Sources)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insights (id, tenant_id, user_id, agent_id, session_id, run_id, type, statement, trigger, confidence, validation_state, expires_at, sources)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
			statement=EXCLUDED.statement, confidence=EXCLUDED.confidence,
			validation_state=EXCLUDED.validation_state, expires_at=EXCLUDED.expires_at, sources=EXCLUDED.sources`,
		insight.ID, insight.Scope.TenantID, insight.Scope.UserID, insight.Scope.AgentID,
		insight.Scope.SessionID, insight.Scope.RunID, string(insight.Type), insight.Statement,
		string(insight.Trigger), insight.Confidence, string(insight.ValidationState), insight.ExpiresAt, sources,
	)
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrQuery, "insights", err)
	}
	return nil
}

// ListInsights returns unexpired insights for scope ordered by descending
// confidence, subject to filter. Expiry is evaluated in Go via
// model.Insight.Expired so the run_end sentinel is handled identically to
// sqlitestore regardless of what SQL dialect's date functions can express.
func (s *Store) ListInsights(ctx context.Context, scope model.Scope, filter model.InsightFilter) ([]model.Insight, error) {
	query := `SELECT id, tenant_id, user_id, agent_id, session_id, run_id, type, statement, trigger, confidence, validation_state, expires_at, sources
		FROM insights WHERE tenant_id=$1 AND user_id=$2 AND agent_id=$3 AND session_id=$4 AND run_id=$5`
	args := []any{scope.TenantID, scope.UserID, scope.AgentID, scope.SessionID, scope.RunID}

	if len(filter.ValidationStateIn) > 0 {
		states := make([]string, len(filter.ValidationStateIn))
		for i, st := range filter.ValidationStateIn {
			states[i] = string(st)
		}
		args = append(args, states)
		query += " AND validation_state = ANY($" + itoa(len(args)) + ")"
	}
	query += " ORDER BY confidence DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "insights", err)
	}
	defer rows.Close()

	now := filter.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var out []model.Insight
	for rows.Next() {
		var in model.Insight
		var typ, trig, state string
		var sources []byte
		if err := rows.Scan(&in.ID, &in.Scope.TenantID, &in.Scope.UserID, &in.Scope.AgentID, &in.Scope.SessionID, &in.Scope.RunID,
			&typ, &in.Statement, &trig, &in.Confidence, &state, &in.ExpiresAt, &sources); err != nil {
			return nil, engramerr.NewStorageError(engramerr.ErrQuery, "insights", err)
		}
		in.Type = model.InsightType(typ)
		in.Trigger = model.InsightTrigger(trig)
		in.ValidationState = model.ValidationState(state)
		_ = sqlcommon.UnmarshalJSON(sources, &in.Sources)
		if in.Expired(now) {
			continue
		}
		out = append(out, in)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "insights", err)
	}
	return out, nil
}

// ReapExpiredInsights deletes every insight in scope whose ExpiresAt fires
// at or before now, returning the count removed. The run_end sentinel is
// never reaped by this path; callers pass the resolved deadline instead when
// a run ends.
func (s *Store) ReapExpiredInsights(ctx context.Context, scope model.Scope, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM insights
		WHERE tenant_id=$1 AND user_id=$2 AND agent_id=$3 AND session_id=$4 AND run_id=$5
		  AND expires_at <> 'run_end' AND expires_at <= $6`,
		scope.TenantID, scope.UserID, scope.AgentID, scope.SessionID, scope.RunID,
		now.Format(time.RFC3339),
	)
	if err != nil {
		return 0, engramerr.NewStorageError(engramerr.ErrQuery, "insights", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, engramerr.NewStorageError(engramerr.ErrQuery, "insights", err)
	}
	return int(n), nil
}
