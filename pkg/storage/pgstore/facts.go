package pgstore

import (
	"context"
	"time"

	"github.com/engramhq/engram/pkg/engramerr"
	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/storage/sqlcommon"
)

// UpsertFact inserts fact and, when it is active, atomically demotes any
// previously active row sharing its (scope_level, fact_key) to deprecated in
// the same transaction, enforcing the at-most-one-active invariant (spec.md
// §3, §9 Testable Property 6).
func (s *Store) UpsertFact(ctx context.Context, fact model.Fact) (*model.Fact, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrConnection, "facts", err)
	}
	defer tx.Rollback()

	if fact.Status == model.FactStatusActive {
		_, err = tx.ExecContext(ctx, `
			UPDATE facts SET status=$1
			WHERE tenant_id=$2 AND user_id=$3 AND agent_id=$4 AND scope_level=$5 AND fact_key=$6
			  AND status='active' AND fact_id <> $7`,
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
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (fact_id) DO UPDATE SET
			value=EXCLUDED.value, status=EXCLUDED.status, valid_from=EXCLUDED.valid_from,
			valid_to=EXCLUDED.valid_to, confidence=EXCLUDED.confidence, sources=EXCLUDED.sources`,
		fact.FactID, fact.Scope.TenantID, fact.Scope.UserID, fact.Scope.AgentID, fact.Scope.SessionID, fact.Scope.RunID,
		fact.FactKey, fact.Value, string(fact.Status), fact.Validity.ValidFrom, fact.Validity.ValidTo,
		fact.Confidence, sources, string(fact.ScopeLevel),
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
// subject to filter.
func (s *Store) ListFacts(ctx context.Context, scope model.Scope, filter model.FactFilter) ([]model.Fact, error) {
	query := `SELECT fact_id, tenant_id, user_id, agent_id, session_id, run_id, fact_key, value, status, valid_from, valid_to, confidence, sources, scope_level
		FROM facts WHERE tenant_id=$1 AND user_id=$2 AND agent_id=$3 AND session_id=$4 AND run_id=$5`
	args := []any{scope.TenantID, scope.UserID, scope.AgentID, scope.SessionID, scope.RunID}

	if len(filter.StatusIn) > 0 {
		statuses := make([]string, len(filter.StatusIn))
		for i, st := range filter.StatusIn {
			statuses[i] = string(st)
		}
		args = append(args, statuses)
		query += " AND status = ANY($" + itoa(len(args)) + ")"
	}
	if filter.KeyPrefix != "" {
		args = append(args, filter.KeyPrefix+"%")
		query += " AND fact_key LIKE $" + itoa(len(args))
	}
	now := filter.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	args = append(args, now)
	query += " AND valid_from <= $" + itoa(len(args))
	args = append(args, now)
	query += " AND (valid_to IS NULL OR valid_to >= $" + itoa(len(args)) + ")"

	query += " ORDER BY confidence DESC, fact_id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "facts", err)
	}
	defer rows.Close()

	var out []model.Fact
	for rows.Next() {
		var f model.Fact
		var status, scopeLevel string
		var sources []byte
		if err := rows.Scan(&f.FactID, &f.Scope.TenantID, &f.Scope.UserID, &f.Scope.AgentID, &f.Scope.SessionID, &f.Scope.RunID,
			&f.FactKey, &f.Value, &status, &f.Validity.ValidFrom, &f.Validity.ValidTo, &f.Confidence, &sources, &scopeLevel); err != nil {
			return nil, engramerr.NewStorageError(engramerr.ErrQuery, "facts", err)
		}
		f.Status = model.FactStatus(status)
		f.ScopeLevel = model.ScopeLevel(scopeLevel)
		_ = sqlcommon.UnmarshalJSON(sources, &f.Sources)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "facts", err)
	}
	return out, nil
}
