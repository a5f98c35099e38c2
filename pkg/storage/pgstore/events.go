package pgstore

import (
	"context"

	"github.com/engramhq/engram/pkg/engramerr"
	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/storage/sqlcommon"
)

// AppendEvent inserts an immutable event row.
func (s *Store) AppendEvent(ctx context.Context, event model.Event) error {
	tags, err := sqlcommon.MarshalJSON(event.Tags)
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrQuery, "events", err)
	}
	entities, err := sqlcommon.MarshalJSON(event.Entities)
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrQuery, "events", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (event_id, tenant_id, user_id, agent_id, session_id, run_id, ts, kind, payload, tags, entities)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		event.EventID, event.Scope.TenantID, event.Scope.UserID, event.Scope.AgentID,
		event.Scope.SessionID, event.Scope.RunID, event.Timestamp, string(event.Kind),
		event.Payload, tags, entities,
	)
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrQuery, "events", err)
	}
	return nil
}

// ListEvents returns events for scope ordered (timestamp desc, event_id
// asc), the same ordering sqlitestore enforces, subject to filter.Limit.
func (s *Store) ListEvents(ctx context.Context, scope model.Scope, filter model.EventFilter) ([]model.Event, error) {
	query := `SELECT event_id, tenant_id, user_id, agent_id, session_id, run_id, ts, kind, payload, tags, entities
		FROM events WHERE tenant_id=$1 AND user_id=$2 AND agent_id=$3 AND session_id=$4 AND run_id=$5`
	args := []any{scope.TenantID, scope.UserID, scope.AgentID, scope.SessionID, scope.RunID}

	if filter.Since != nil {
		args = append(args, *filter.Since)
		query += " AND ts >= $" + itoa(len(args))
	}
	if filter.Until != nil {
		args = append(args, *filter.Until)
		query += " AND ts <= $" + itoa(len(args))
	}
	if len(filter.KindIn) > 0 {
		kinds := make([]string, len(filter.KindIn))
		for i, k := range filter.KindIn {
			kinds[i] = string(k)
		}
		args = append(args, kinds)
		query += " AND kind = ANY($" + itoa(len(args)) + ")"
	}
	query += " ORDER BY ts DESC, event_id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "events", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		var kind string
		var tags, entities []byte
		if err := rows.Scan(&e.EventID, &e.Scope.TenantID, &e.Scope.UserID, &e.Scope.AgentID,
			&e.Scope.SessionID, &e.Scope.RunID, &e.Timestamp, &kind, &e.Payload, &tags, &entities); err != nil {
			return nil, engramerr.NewStorageError(engramerr.ErrQuery, "events", err)
		}
		e.Kind = model.EventKind(kind)
		_ = sqlcommon.UnmarshalJSON(tags, &e.Tags)
		_ = sqlcommon.UnmarshalJSON(entities, &e.Entities)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "events", err)
	}
	return out, nil
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := [20]byte{}
	pos := len(digits)
	for n > 0 {
		pos--
		digits[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(digits[pos:])
}
