package loader

import (
	"context"
	"time"

	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/policy"
	"github.com/engramhq/engram/pkg/storage"
)

// loadInsights reads unexpired insights, restricted to validated ones when
// the build is for purpose=responder and the policy does not opt in to
// surfacing unvalidated insights there (spec.md §4.1/§4.2, "an insight with
// validation_state != validated is ineligible for purpose=responder").
func loadInsights(ctx context.Context, backend storage.Backend, req model.BuildRequest, pol *policy.Policy, now time.Time) ([]model.Insight, error) {
	filter := model.InsightFilter{Now: now}

	if req.Purpose == model.PurposeResponder && !pol.AllowInsightInResponder {
		filter.ValidationStateIn = []model.ValidationState{model.ValidationValidated}
	}

	limit := pol.MaxInsights
	if limit <= 0 || limit > pol.MaxTotalCandidates {
		limit = pol.MaxTotalCandidates
	}
	filter.Limit = limit

	return backend.ListInsights(ctx, req.Scope, filter)
}
