package sqlitestore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/engramhq/engram/pkg/engramerr"
	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/storage/sqlcommon"
)

// GetSTMSummary returns the scope's rolling short-term summary, or the zero
// value if none has been recorded yet.
func (s *Store) GetSTMSummary(ctx context.Context, scope model.Scope) (*model.STMSummary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT rolling_summary, key_quotes, open_loops, last_tool_evidence
		FROM stm_summaries
		WHERE tenant_id=? AND user_id=? AND agent_id=? AND session_id=? AND run_id=?`,
		scope.TenantID, scope.UserID, scope.AgentID, scope.SessionID, scope.RunID,
	)

	var sum model.STMSummary
	var keyQuotes, openLoops, lastEvidence []byte
	err := row.Scan(&sum.RollingSummary, &keyQuotes, &openLoops, &lastEvidence)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.STMSummary{}, nil
	}
	if err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "short_term", err)
	}
	_ = sqlcommon.UnmarshalJSON(keyQuotes, &sum.KeyQuotes)
	_ = sqlcommon.UnmarshalJSON(openLoops, &sum.OpenLoops)
	_ = sqlcommon.UnmarshalJSON(lastEvidence, &sum.LastToolEvidence)
	return &sum, nil
}

// UpdateSTMSummary replaces the scope's rolling summary wholesale.
func (s *Store) UpdateSTMSummary(ctx context.Context, scope model.Scope, summary model.STMSummary) error {
	keyQuotes, _ := sqlcommon.MarshalJSON(summary.KeyQuotes)
	openLoops, _ := sqlcommon.MarshalJSON(summary.OpenLoops)
	lastEvidence, _ := sqlcommon.MarshalJSON(summary.LastToolEvidence)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stm_summaries (tenant_id, user_id, agent_id, session_id, run_id, rolling_summary, key_quotes, open_loops, last_tool_evidence)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT (tenant_id, user_id, agent_id, session_id, run_id) DO UPDATE SET
			rolling_summary=excluded.rolling_summary, key_quotes=excluded.key_quotes,
			open_loops=excluded.open_loops, last_tool_evidence=excluded.last_tool_evidence`,
		scope.TenantID, scope.UserID, scope.AgentID, scope.SessionID, scope.RunID,
		summary.RollingSummary, keyQuotes, openLoops, lastEvidence,
	)
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrQuery, "short_term", err)
	}
	return nil
}
