package loader

import (
	"context"
	"math"
	"time"

	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/policy"
	"github.com/engramhq/engram/pkg/storage"
)

// episodeAgeTiers mirrors spec.md §4.2's age-tiered compression filter: the
// older an episode, the coarser a CompressionLevel it must already be
// compacted to in order to stay eligible. maxAgeDays is the tier's cutoff;
// levels are the tier's minimum CompressionLevel and every coarser one (an
// episode compacted earlier than strictly required still qualifies).
var episodeAgeTiers = []struct {
	maxAgeDays int
	levels     []model.CompressionLevel
}{
	{maxAgeDays: 7, levels: []model.CompressionLevel{model.CompressionRaw, model.CompressionPhaseSummary, model.CompressionMilestone, model.CompressionTheme}},
	{maxAgeDays: 30, levels: []model.CompressionLevel{model.CompressionPhaseSummary, model.CompressionMilestone, model.CompressionTheme}},
	{maxAgeDays: 90, levels: []model.CompressionLevel{model.CompressionMilestone, model.CompressionTheme}},
}

// loadEpisodes reads episodes within policy's time window (or the request's
// explicit cue window, which narrows it further), gated per spec.md §4.2's
// age-tiered compression filter, then computes each episode's RecencyScore
// via exponential decay with the policy's tau, matching the scorer/
// trimmer's ranking input (spec.md §4.3).
func loadEpisodes(ctx context.Context, backend storage.Backend, req model.BuildRequest, pol *policy.Policy, now time.Time) ([]model.Episode, error) {
	floor := now.AddDate(0, 0, -pol.EpisodeTimeWindowDays)
	var until *time.Time
	var tagsAny, entitiesAny []string
	if req.Cues != nil {
		if req.Cues.TimeRange != nil {
			if req.Cues.TimeRange.Start.After(floor) {
				floor = req.Cues.TimeRange.Start
			}
			until = req.Cues.TimeRange.End
		}
		tagsAny = req.Cues.Tags
		entitiesAny = req.Cues.Entities
	}

	limit := pol.MaxEpisodes
	if limit <= 0 || limit > pol.MaxTotalCandidates {
		limit = pol.MaxTotalCandidates
	}

	byID := map[string]model.Episode{}
	for _, tier := range episodeAgeTiers {
		since := now.AddDate(0, 0, -tier.maxAgeDays)
		if since.Before(floor) {
			since = floor
		}
		if until != nil && since.After(*until) {
			continue
		}
		rows, err := backend.ListEpisodes(ctx, req.Scope, model.EpisodeFilter{
			Since: &since, Until: until,
			CompressionIn: tier.levels, Limit: limit,
		})
		if err != nil {
			return nil, err
		}
		for _, e := range rows {
			byID[e.EpisodeID] = e
		}
	}

	// Past 90 days an episode is excluded outright unless it matches a
	// request cue (spec.md §4.2); with no tag or entity to gate on there is
	// nothing to match, so this tier is only queried when cues are present.
	if len(tagsAny) > 0 || len(entitiesAny) > 0 {
		ninetyDaysAgo := now.AddDate(0, 0, -90)
		if floor.Before(ninetyDaysAgo) {
			rows, err := backend.ListEpisodes(ctx, req.Scope, model.EpisodeFilter{
				Since: &floor, Until: minTime(until, &ninetyDaysAgo),
				TagsAny: tagsAny, EntitiesAny: entitiesAny, Limit: limit,
			})
			if err != nil {
				return nil, err
			}
			for _, e := range rows {
				byID[e.EpisodeID] = e
			}
		}
	}

	episodes := make([]model.Episode, 0, len(byID))
	for _, e := range byID {
		episodes = append(episodes, e)
	}

	tau := pol.RecencyTauDays
	if tau <= 0 {
		tau = 1
	}
	for i := range episodes {
		ageDays := now.Sub(episodes[i].TimeRange.Start).Hours() / 24
		if ageDays < 0 {
			ageDays = 0
		}
		episodes[i].RecencyScore = math.Exp(-ageDays / tau)
	}
	return episodes, nil
}

// minTime returns whichever of a, b is earlier, treating nil as unbounded.
func minTime(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.Before(*b) {
		return a
	}
	return b
}
