// Package scorer implements the composer's per-section truncation and the
// five-step Overflow Ladder described in spec.md §4.3: when a memory type's
// candidates would exceed its per-section token cap, the ladder is walked
// in order until the section fits, each step recorded as a Degradation (or,
// on the final step, an Omission of the whole section).
package scorer

import (
	"sort"

	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/policy"
	"github.com/engramhq/engram/pkg/tokenest"
)

// Result is one memory-type section's scorer output.
type Result struct {
	Degradations []model.Degradation
	Omissions    []model.Omission
}

// SortFacts ranks facts by confidence descending, then by ValidFrom
// descending. Backends' ListFacts break confidence ties by fact_id instead,
// so this sort can reorder facts of equal confidence.
func SortFacts(facts []model.Fact) {
	sort.SliceStable(facts, func(i, j int) bool {
		if facts[i].Confidence != facts[j].Confidence {
			return facts[i].Confidence > facts[j].Confidence
		}
		return facts[i].Validity.ValidFrom.After(facts[j].Validity.ValidFrom)
	})
}

// SortEpisodes ranks episodes by RecencyScore descending.
func SortEpisodes(episodes []model.Episode) {
	sort.SliceStable(episodes, func(i, j int) bool {
		return episodes[i].RecencyScore > episodes[j].RecencyScore
	})
}

// SortInsights ranks insights by confidence descending.
func SortInsights(insights []model.Insight) {
	sort.SliceStable(insights, func(i, j int) bool {
		return insights[i].Confidence > insights[j].Confidence
	})
}

// TrimFacts applies Top-K and the confidence-floor ladder step to facts,
// already sorted by SortFacts, until the section's estimated token cost fits
// cap. Facts have no time window or compression tier to tighten, so the
// ladder for this section is: reduce Top-K, then drop below the confidence
// floor, then (if still over) omit the section outright.
func TrimFacts(facts []model.Fact, pol *policy.Policy, cap uint32) ([]model.Fact, Result) {
	var res Result
	kept := facts
	if pol.MaxFacts > 0 && len(kept) > pol.MaxFacts {
		res.Degradations = append(res.Degradations, model.Degradation{
			Section: "facts", Action: "reduce_top_k", Reason: "exceeded max_facts",
		})
		kept = kept[:pol.MaxFacts]
	}

	for tokenest.EstimateJSON(kept) > cap && len(kept) > 0 {
		if kept[len(kept)-1].Confidence < pol.ConfidenceFloor || len(kept) > 1 {
			res.Degradations = append(res.Degradations, model.Degradation{
				Section: "facts", Action: "drop_below_confidence_floor", Reason: "section exceeded token cap",
			})
			res.Omissions = append(res.Omissions, model.Omission{
				Item: kept[len(kept)-1].FactID, Reason: "dropped to satisfy facts section token cap",
			})
			kept = kept[:len(kept)-1]
			continue
		}
		break
	}

	if tokenest.EstimateJSON(kept) > cap {
		res.Degradations = append(res.Degradations, model.Degradation{
			Section: "facts", Action: "omit_section", Reason: "single remaining fact still exceeds token cap",
		})
		for _, f := range kept {
			res.Omissions = append(res.Omissions, model.Omission{Item: f.FactID, Reason: "facts section omitted entirely"})
		}
		kept = nil
	}
	return kept, res
}

// TrimEpisodes applies the ladder: reduce Top-K, tighten the time window
// (drop the oldest), drop below confidence floor (using RecencyScore as the
// proxy), then omit the section. It has no compression step: every episode
// is kept at the CompressionLevel it was loaded with.
func TrimEpisodes(episodes []model.Episode, pol *policy.Policy, cap uint32) ([]model.Episode, Result) {
	var res Result
	kept := episodes
	if pol.MaxEpisodes > 0 && len(kept) > pol.MaxEpisodes {
		res.Degradations = append(res.Degradations, model.Degradation{
			Section: "episodes", Action: "reduce_top_k", Reason: "exceeded max_episodes",
		})
		kept = kept[:pol.MaxEpisodes]
	}

	if tokenest.EstimateJSON(kept) > cap && len(kept) > 0 {
		res.Degradations = append(res.Degradations, model.Degradation{
			Section: "episodes", Action: "tighten_time_window", Reason: "section exceeded token cap",
		})
		half := len(kept) / 2
		if half == 0 {
			half = 1
		}
		for _, e := range kept[half:] {
			res.Omissions = append(res.Omissions, model.Omission{Item: e.EpisodeID, Reason: "dropped by time window tightening"})
		}
		kept = kept[:half]
	}

	for tokenest.EstimateJSON(kept) > cap && len(kept) > 0 {
		last := kept[len(kept)-1]
		if last.RecencyScore < pol.ConfidenceFloor || len(kept) > 1 {
			res.Degradations = append(res.Degradations, model.Degradation{
				Section: "episodes", Action: "drop_below_confidence_floor", Reason: "section exceeded token cap",
			})
			res.Omissions = append(res.Omissions, model.Omission{Item: last.EpisodeID, Reason: "dropped to satisfy episodes section token cap"})
			kept = kept[:len(kept)-1]
			continue
		}
		break
	}

	if tokenest.EstimateJSON(kept) > cap {
		res.Degradations = append(res.Degradations, model.Degradation{
			Section: "episodes", Action: "omit_section", Reason: "single remaining episode still exceeds token cap",
		})
		for _, e := range kept {
			res.Omissions = append(res.Omissions, model.Omission{Item: e.EpisodeID, Reason: "episodes section omitted entirely"})
		}
		kept = nil
	}
	return kept, res
}

// TrimInsights applies Top-K and confidence-floor, then omits the section.
func TrimInsights(insights []model.Insight, pol *policy.Policy, cap uint32) ([]model.Insight, Result) {
	var res Result
	kept := insights
	if pol.MaxInsights > 0 && len(kept) > pol.MaxInsights {
		res.Degradations = append(res.Degradations, model.Degradation{
			Section: "insights", Action: "reduce_top_k", Reason: "exceeded max_insights",
		})
		kept = kept[:pol.MaxInsights]
	}

	for tokenest.EstimateJSON(kept) > cap && len(kept) > 0 {
		last := kept[len(kept)-1]
		if last.Confidence < pol.ConfidenceFloor || len(kept) > 1 {
			res.Degradations = append(res.Degradations, model.Degradation{
				Section: "insights", Action: "drop_below_confidence_floor", Reason: "section exceeded token cap",
			})
			res.Omissions = append(res.Omissions, model.Omission{Item: last.ID, Reason: "dropped to satisfy insights section token cap"})
			kept = kept[:len(kept)-1]
			continue
		}
		break
	}

	if tokenest.EstimateJSON(kept) > cap {
		res.Degradations = append(res.Degradations, model.Degradation{
			Section: "insights", Action: "omit_section", Reason: "single remaining insight still exceeds token cap",
		})
		for _, in := range kept {
			res.Omissions = append(res.Omissions, model.Omission{Item: in.ID, Reason: "insights section omitted entirely"})
		}
		kept = nil
	}
	return kept, res
}

// TrimProcedures applies Top-K only; procedures have no confidence or time
// dimension to tighten, so an overflowing section is truncated to the
// highest-priority entries that fit.
func TrimProcedures(procedures []model.Procedure, pol *policy.Policy, cap uint32) ([]model.Procedure, Result) {
	var res Result
	kept := procedures
	if pol.MaxProceduresPerTaskType > 0 && len(kept) > pol.MaxProceduresPerTaskType {
		res.Degradations = append(res.Degradations, model.Degradation{
			Section: "procedures", Action: "reduce_top_k", Reason: "exceeded max_procedures_per_task_type",
		})
		kept = kept[:pol.MaxProceduresPerTaskType]
	}
	for tokenest.EstimateJSON(kept) > cap && len(kept) > 1 {
		dropped := kept[len(kept)-1]
		res.Omissions = append(res.Omissions, model.Omission{Item: dropped.ProcedureID, Reason: "dropped to satisfy procedures section token cap"})
		kept = kept[:len(kept)-1]
	}
	if tokenest.EstimateJSON(kept) > cap {
		res.Degradations = append(res.Degradations, model.Degradation{
			Section: "procedures", Action: "omit_section", Reason: "single remaining procedure still exceeds token cap",
		})
		for _, p := range kept {
			res.Omissions = append(res.Omissions, model.Omission{Item: p.ProcedureID, Reason: "procedures section omitted entirely"})
		}
		kept = nil
	}
	return kept, res
}
