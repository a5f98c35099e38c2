package sqlitestore

import (
	"context"
	"strings"

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
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		event.EventID, event.Scope.TenantID, event.Scope.UserID, event.Scope.AgentID,
		event.Scope.SessionID, event.Scope.RunID, event.Timestamp.Format(rfc3339), string(event.Kind),
		event.Payload, tags, entities,
	)
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrQuery, "events", err)
	}
	return nil
}

// ListEvents returns events for scope ordered (timestamp desc, event_id
// asc), subject to filter, identically to pgstore.
func (s *Store) ListEvents(ctx context.Context, scope model.Scope, filter model.EventFilter) ([]model.Event, error) {
	query := `SELECT event_id, tenant_id, user_id, agent_id, session_id, run_id, ts, kind, payload, tags, entities
		FROM events WHERE tenant_id=? AND user_id=? AND agent_id=? AND session_id=? AND run_id=?`
	args := []any{scope.TenantID, scope.UserID, scope.AgentID, scope.SessionID, scope.RunID}

	if filter.Since != nil {
		args = append(args, filter.Since.Format(rfc3339))
		query += " AND ts >= ?"
	}
	if filter.Until != nil {
		args = append(args, filter.Until.Format(rfc3339))
		query += " AND ts <= ?"
	}
	if len(filter.KindIn) > 0 {
		placeholders := make([]string, len(filter.KindIn))
		for i, k := range filter.KindIn {
			placeholders[i] = "?"
			args = append(args, string(k))
		}
		query += " AND kind IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " ORDER BY ts DESC, event_id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT ?"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "events", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		var kind, ts string
		var tags, entities []byte
		if err := rows.Scan(&e.EventID, &e.Scope.TenantID, &e.Scope.UserID, &e.Scope.AgentID,
			&e.Scope.SessionID, &e.Scope.RunID, &ts, &kind, &e.Payload, &tags, &entities); err != nil {
			return nil, engramerr.NewStorageError(engramerr.ErrQuery, "events", err)
		}
		e.Kind = model.EventKind(kind)
		e.Timestamp = mustParseTime(ts)
		_ = sqlcommon.UnmarshalJSON(tags, &e.Tags)
		_ = sqlcommon.UnmarshalJSON(entities, &e.Entities)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "events", err)
	}
	return out, nil
}
