package sqlitestore

import (
	"context"
	"strings"

	"github.com/engramhq/engram/pkg/engramerr"
	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/storage/sqlcommon"
)

// PutEpisode inserts or replaces an episode row.
func (s *Store) PutEpisode(ctx context.Context, episode model.Episode) error {
	highlights, _ := sqlcommon.MarshalJSON(episode.Highlights)
	tags, _ := sqlcommon.MarshalJSON(episode.Tags)
	entities, _ := sqlcommon.MarshalJSON(episode.Entities)
	sources, _ := sqlcommon.MarshalJSON(episode.Sources)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO episodes (episode_id, tenant_id, user_id, agent_id, session_id, run_id, time_start, time_end, summary, highlights, tags, entities, sources, compression_level)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (episode_id) DO UPDATE SET
			time_end=excluded.time_end, summary=excluded.summary, highlights=excluded.highlights,
			tags=excluded.tags, entities=excluded.entities, sources=excluded.sources,
			compression_level=excluded.compression_level`,
		episode.EpisodeID, episode.Scope.TenantID, episode.Scope.UserID, episode.Scope.AgentID,
		episode.Scope.SessionID, episode.Scope.RunID, episode.TimeRange.Start.Format(rfc3339),
		formatTimePtr(episode.TimeRange.End), episode.Summary, highlights, tags, entities, sources,
		string(episode.CompressionLevel),
	)
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrQuery, "episodes", err)
	}
	return nil
}

// ListEpisodes returns episodes for scope, most-recent-time_start-first,
// subject to filter, identically to pgstore.
func (s *Store) ListEpisodes(ctx context.Context, scope model.Scope, filter model.EpisodeFilter) ([]model.Episode, error) {
	query := `SELECT episode_id, tenant_id, user_id, agent_id, session_id, run_id, time_start, time_end, summary, highlights, tags, entities, sources, compression_level
		FROM episodes WHERE tenant_id=? AND user_id=? AND agent_id=? AND session_id=? AND run_id=?`
	args := []any{scope.TenantID, scope.UserID, scope.AgentID, scope.SessionID, scope.RunID}

	if filter.Since != nil {
		args = append(args, filter.Since.Format(rfc3339))
		query += " AND time_start >= ?"
	}
	if filter.Until != nil {
		args = append(args, filter.Until.Format(rfc3339))
		query += " AND time_start <= ?"
	}
	if len(filter.CompressionIn) > 0 {
		placeholders := make([]string, len(filter.CompressionIn))
		for i, l := range filter.CompressionIn {
			placeholders[i] = "?"
			args = append(args, string(l))
		}
		query += " AND compression_level IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " ORDER BY time_start DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "episodes", err)
	}
	defer rows.Close()

	var out []model.Episode
	for rows.Next() {
		var e model.Episode
		var level, timeStart string
		var timeEnd *string
		var highlights, tags, entities, sources []byte
		if err := rows.Scan(&e.EpisodeID, &e.Scope.TenantID, &e.Scope.UserID, &e.Scope.AgentID, &e.Scope.SessionID, &e.Scope.RunID,
			&timeStart, &timeEnd, &e.Summary, &highlights, &tags, &entities, &sources, &level); err != nil {
			return nil, engramerr.NewStorageError(engramerr.ErrQuery, "episodes", err)
		}
		e.CompressionLevel = model.CompressionLevel(level)
		e.TimeRange.Start = mustParseTime(timeStart)
		if timeEnd != nil {
			t := mustParseTime(*timeEnd)
			e.TimeRange.End = &t
		}
		_ = sqlcommon.UnmarshalJSON(highlights, &e.Highlights)
		_ = sqlcommon.UnmarshalJSON(tags, &e.Tags)
		_ = sqlcommon.UnmarshalJSON(entities, &e.Entities)
		_ = sqlcommon.UnmarshalJSON(sources, &e.Sources)

		if !sqlcommon.StringsOverlap(filter.TagsAny, e.Tags) || !sqlcommon.StringsOverlap(filter.EntitiesAny, e.Entities) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, engramerr.NewStorageError(engramerr.ErrQuery, "episodes", err)
	}
	return out, nil
}
