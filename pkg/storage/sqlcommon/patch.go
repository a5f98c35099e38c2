package sqlcommon

import "github.com/engramhq/engram/pkg/model"

// ApplyWorkingStatePatch overlays the non-nil fields of patch onto ws in
// place. Both backends call this exact function so a patch behaves
// identically regardless of which one is configured.
func ApplyWorkingStatePatch(ws *model.WorkingState, patch model.WorkingStatePatch) {
	if patch.Goal != nil {
		ws.Goal = *patch.Goal
	}
	if patch.Plan != nil {
		ws.Plan = patch.Plan
	}
	if patch.Slots != nil {
		ws.Slots = patch.Slots
	}
	if patch.Constraints != nil {
		ws.Constraints = patch.Constraints
	}
	if patch.ToolEvidence != nil {
		ws.ToolEvidence = patch.ToolEvidence
	}
	if patch.Decisions != nil {
		ws.Decisions = patch.Decisions
	}
	if patch.Risks != nil {
		ws.Risks = patch.Risks
	}
}
