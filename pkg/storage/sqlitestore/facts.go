package sqlitestore

import (
	"context"
	"strings"
	"time"

	"github.com/engramhq/engram/pkg/engramerr"
	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/storage/sqlcommon"
)

// UpsertFact inserts fact and, when it is active, demotes any previously
// active row sharing its (scope_level, fact_key) to deprecated in the same
// transaction, identically to pgstore.
func (s *Store) UpsertFact(ctx context.Context, fact model.Fact) (*model.Fact, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrConnection, "facts", err)
	}
	defer tx.Rollback()

	if fact.Status == model.FactStatusActive {
		_, err = tx.ExecContext(ctx, `
			UPDATE facts SET status=?
			WHERE tenant_id=? AND user_id=? AND agent_id=? AND scope_level=? AND fact_key=?
			  AND status='active' AND fact_id <> ?`,
			string(model.FactStatusDeprecated),
			fact.Scope.TenantID, fact.Scope.UserID, fact.Scope.AgentID,
			string(fact.ScopeLevel), fact.FactKey, fact.FactID,
		)
		if err != nil {
			return nil, engramerr.NewStorageError(engramerr.ErrQuery, "facts", err)
		}
	}

	sources, _ := sqlcommon.MarshalJSON(fact.Sources)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO facts (fact_id, tenant_id, user_id, agent_id, session_id, run_id, fact_key, value, status, valid_from, valid_to, confidence, sources, scope_level)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (fact_id) DO UPDATE SET
			value=excluded.value, status=excluded.status, valid_from=excluded.valid_from,
			valid_to=excluded.valid_to, confidence=excluded.confidence, sources=excluded.sources`,
		fact.FactID, fact.Scope.TenantID, fact.Scope.UserID, fact.Scope.AgentID, fact.Scope.SessionID, fact.Scope.RunID,
		fact.FactKey, fact.Value, string(fact.Status), fact.Validity.ValidFrom.Format(rfc3339),
		formatTimePtr(fact.Validity.ValidTo), fact.Confidence, sources, string(fact.ScopeLevel),
	)
	if err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "facts", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrConnection, "facts", err)
	}
	out := fact
	return &out, nil
}

// ListFacts returns facts for scope ordered (confidence desc, fact_id asc),
// subject to filter, identically to pgstore.
func (s *Store) ListFacts(ctx context.Context, scope model.Scope, filter model.FactFilter) ([]model.Fact, error) {
	query := `SELECT fact_id, tenant_id, user_id, agent_id, session_id, run_id, fact_key, value, status, valid_from, valid_to, confidence, sources, scope_level
		FROM facts WHERE tenant_id=? AND user_id=? AND agent_id=? AND session_id=? AND run_id=?`
	args := []any{scope.TenantID, scope.UserID, scope.AgentID, scope.SessionID, scope.RunID}

	if len(filter.StatusIn) > 0 {
		placeholders := make([]string, len(filter.StatusIn))
		for i, st := range filter.StatusIn {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += " AND status IN (" + strings.Join(placeholders, ",") + ")"
	}
	if filter.KeyPrefix != "" {
		args = append(args, filter.KeyPrefix+"%")
		query += " AND fact_key LIKE ?"
	}
	now := filter.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	nowStr := now.Format(rfc3339)
	args = append(args, nowStr)
	query += " AND valid_from <= ?"
	args = append(args, nowStr)
	query += " AND (valid_to IS NULL OR valid_to >= ?)"

	query += " ORDER BY confidence DESC, fact_id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT ?"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "facts", err)
	}
	defer rows.Close()

	var out []model.Fact
	for rows.Next() {
		var f model.Fact
		var status, scopeLevel, validFrom string
		var validTo *string
		var sources []byte
		if err := rows.Scan(&f.FactID, &f.Scope.TenantID, &f.Scope.UserID, &f.Scope.AgentID, &f.Scope.SessionID, &f.Scope.RunID,
			&f.FactKey, &f.Value, &status, &validFrom, &validTo, &f.Confidence, &sources, &scopeLevel); err != nil {
			return nil, engramerr.NewStorageError(engramerr.ErrQuery, "facts", err)
		}
		f.Status = model.FactStatus(status)
		f.ScopeLevel = model.ScopeLevel(scopeLevel)
		f.Validity.ValidFrom = mustParseTime(validFrom)
		if validTo != nil {
			t := mustParseTime(*validTo)
			f.Validity.ValidTo = &t
		}
		_ = sqlcommon.UnmarshalJSON(sources, &f.Sources)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "facts", err)
	}
	return out, nil
}
