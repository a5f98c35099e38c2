package pgstore

import (
	"context"

	"github.com/engramhq/engram/pkg/engramerr"
	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/storage/sqlcommon"
)

// PutEpisode inserts an episode row. Replace-or-supersede compaction
// semantics live one layer up, in pkg/ingest.
func (s *Store) PutEpisode(ctx context.Context, episode model.Episode) error {
	highlights, _ := sqlcommon.MarshalJSON(episode.Highlights)
	tags, _ := sqlcommon.MarshalJSON(episode.Tags)
	entities, _ := sqlcommon.MarshalJSON(episode.Entities)
	sources, _ := sqlcommon.MarshalJSON(episode.Sources)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO episodes (episode_id, tenant_id, user_id, agent_id, session_id, run_id, time_start, time_end, summary, highlights, tags, entities, sources, compression_level)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (episode_id) DO UPDATE SET
			time_end=EXCLUDED.time_end, summary=EXCLUDED.summary, highlights=EXCLUDED.highlights,
			tags=EXCLUDED.tags, entities=EXCLUDED.entities, sources=EXCLUDED.sources,
			compression_level=EXCLUDED.compression_level`,
		episode.EpisodeID, episode.Scope.TenantID, episode.Scope.UserID, episode.Scope.AgentID,
		episode.Scope.SessionID, episode.Scope.RunID, episode.TimeRange.Start, episode.TimeRange.End,
		episode.Summary, highlights, tags, entities, sources, string(episode.CompressionLevel),
	)
	if err != nil {
		return engramerr.NewStorageError(engramerr.ErrQuery, "episodes", err)
	}
	return nil
}

// ListEpisodes returns episodes for scope, most-recent-time_start-first,
// subject to filter. RecencyScore is left zero; the episodes loader computes
// it at read time from TimeRange.
func (s *Store) ListEpisodes(ctx context.Context, scope model.Scope, filter model.EpisodeFilter) ([]model.Episode, error) {
	query := `SELECT episode_id, tenant_id, user_id, agent_id, session_id, run_id, time_start, time_end, summary, highlights, tags, entities, sources, compression_level
		FROM episodes WHERE tenant_id=$1 AND user_id=$2 AND agent_id=$3 AND session_id=$4 AND run_id=$5`
	args := []any{scope.TenantID, scope.UserID, scope.AgentID, scope.SessionID, scope.RunID}

	if filter.Since != nil {
		args = append(args, *filter.Since)
		query += " AND time_start >= $" + itoa(len(args))
	}
	if filter.Until != nil {
		args = append(args, *filter.Until)
		query += " AND time_start <= $" + itoa(len(args))
	}
	if len(filter.CompressionIn) > 0 {
		levels := make([]string, len(filter.CompressionIn))
		for i, l := range filter.CompressionIn {
			levels[i] = string(l)
		}
		args = append(args, levels)
		query += " AND compression_level = ANY($" + itoa(len(args)) + ")"
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
		var level string
		var highlights, tags, entities, sources []byte
		if err := rows.Scan(&e.EpisodeID, &e.Scope.TenantID, &e.Scope.UserID, &e.Scope.AgentID, &e.Scope.SessionID, &e.Scope.RunID,
			&e.TimeRange.Start, &e.TimeRange.End, &e.Summary, &highlights, &tags, &entities, &sources, &level); err != nil {
			return nil, engramerr.NewStorageError(engramerr.ErrQuery, "episodes", err)
		}
		e.CompressionLevel = model.CompressionLevel(level)
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
