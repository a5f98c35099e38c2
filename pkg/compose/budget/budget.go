// Package budget implements the composer's global budget controller
// (spec.md §4.4): after the scorer has satisfied every per-section token
// cap, the controller re-checks the packet's total estimated cost against
// policy.MaxTokens and, if still over, walks a fixed cross-section drop
// order — lowest-confidence insight, then oldest episode, then (facts are
// never dropped here; see Non-goals) trim the rolling_summary tail — before
// recording a terminal overflow_unresolvable degradation. The whole pass is O(N):
// one full serialization up front, then incremental token subtraction per
// drop rather than a full re-serialize.
package budget

import (
	"sort"

	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/policy"
	"github.com/engramhq/engram/pkg/tokenest"
)

// Sections is the mutable view of a packet-in-progress the controller
// trims in place.
type Sections struct {
	RollingSummary string
	Episodes       []model.Episode
	Insights       []model.Insight
	Procedures     []model.Procedure
	Facts          []model.Fact
	WorkingState   model.WorkingState
}

// Report is the controller's accounting output, folded into the packet's
// BudgetReport and Explain.
type Report struct {
	UsedTokensEst uint32
	SectionUsage  map[string]uint32
	Degradations  []model.Degradation
	Omissions     []model.Omission
}

// Apply estimates Sections' total token cost and, if it exceeds
// pol.MaxTokens, walks the global drop order until it fits or every option
// is exhausted. In that case it appends a terminal overflow_unresolvable
// degradation and returns the report with UsedTokensEst still above
// pol.MaxTokens; the returned error is always nil.
func Apply(sections *Sections, pol *policy.Policy) (Report, error) {
	report := Report{SectionUsage: map[string]uint32{}}

	usage := func() uint32 {
		total := tokenest.EstimateJSON(sections.WorkingState) +
			tokenest.EstimateText(sections.RollingSummary) +
			tokenest.EstimateJSON(sections.Facts) +
			tokenest.EstimateJSON(sections.Episodes) +
			tokenest.EstimateJSON(sections.Procedures) +
			tokenest.EstimateJSON(sections.Insights)
		report.SectionUsage["working_state"] = tokenest.EstimateJSON(sections.WorkingState)
		report.SectionUsage["short_term"] = tokenest.EstimateText(sections.RollingSummary)
		report.SectionUsage["facts"] = tokenest.EstimateJSON(sections.Facts)
		report.SectionUsage["episodes"] = tokenest.EstimateJSON(sections.Episodes)
		report.SectionUsage["procedures"] = tokenest.EstimateJSON(sections.Procedures)
		report.SectionUsage["insights"] = tokenest.EstimateJSON(sections.Insights)
		return total
	}

	total := usage()

	sort.SliceStable(sections.Insights, func(i, j int) bool {
		return sections.Insights[i].Confidence < sections.Insights[j].Confidence
	})
	sort.SliceStable(sections.Episodes, func(i, j int) bool {
		return sections.Episodes[i].TimeRange.Start.Before(sections.Episodes[j].TimeRange.Start)
	})

	for total > uint32(pol.MaxTokens) {
		switch {
		case len(sections.Insights) > 0:
			dropped := sections.Insights[0]
			cost := tokenest.EstimateJSON(dropped)
			sections.Insights = sections.Insights[1:]
			total -= min(cost, total)
			report.Degradations = append(report.Degradations, model.Degradation{
				Section: "insights", Action: "global_drop_lowest_confidence", Reason: "total build exceeded max_tokens",
			})
			report.Omissions = append(report.Omissions, model.Omission{Item: dropped.ID, Reason: "dropped by global budget controller"})

		case len(sections.Episodes) > 0:
			dropped := sections.Episodes[0]
			cost := tokenest.EstimateJSON(dropped)
			sections.Episodes = sections.Episodes[1:]
			total -= min(cost, total)
			report.Degradations = append(report.Degradations, model.Degradation{
				Section: "episodes", Action: "global_drop_oldest", Reason: "total build exceeded max_tokens",
			})
			report.Omissions = append(report.Omissions, model.Omission{Item: dropped.EpisodeID, Reason: "dropped by global budget controller"})

		case len(sections.RollingSummary) > 0:
			before := tokenest.EstimateText(sections.RollingSummary)
			sections.RollingSummary = trimTail(sections.RollingSummary)
			after := tokenest.EstimateText(sections.RollingSummary)
			total -= min(before-after, total)
			report.Degradations = append(report.Degradations, model.Degradation{
				Section: "short_term", Action: "trim_rolling_summary_tail", Reason: "total build exceeded max_tokens",
			})
			if before == after {
				// Trimming made no further progress; nothing left to cut.
				return unresolved(report, total), nil
			}

		default:
			return unresolved(report, total), nil
		}
	}

	report.UsedTokensEst = total
	return report, nil
}

// trimTail halves the rolling summary by byte length, always leaving at
// least one word, so repeated calls converge to empty rather than looping.
func trimTail(s string) string {
	if len(s) <= 1 {
		return ""
	}
	half := len(s) / 2
	for half > 0 && s[half] != ' ' {
		half--
	}
	if half == 0 {
		half = len(s) / 2
	}
	return s[:half]
}

// unresolved appends the terminal overflow_unresolvable degradation to a
// report whose total still exceeds max_tokens with nothing left to drop.
func unresolved(report Report, total uint32) Report {
	report.Degradations = append(report.Degradations, model.Degradation{
		Section: "budget", Action: "overflow_unresolvable", Reason: "total build still exceeds max_tokens after every global drop",
	})
	report.UsedTokensEst = total
	return report
}

func min(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
