package loader

import (
	"context"

	"github.com/engramhq/engram/pkg/model"
	"github.com/engramhq/engram/pkg/policy"
	"github.com/engramhq/engram/pkg/storage"
)

// loadProcedures reads procedures applicable to req.TaskType, capped at
// policy.MaxProceduresPerTaskType.
func loadProcedures(ctx context.Context, backend storage.Backend, req model.BuildRequest, pol *policy.Policy) ([]model.Procedure, error) {
	if req.TaskType == "" {
		return nil, nil
	}
	limit := pol.MaxProceduresPerTaskType
	if limit <= 0 || limit > pol.MaxTotalCandidates {
		limit = pol.MaxTotalCandidates
	}
	return backend.ListProcedures(ctx, req.Scope, model.ProcedureFilter{
		TaskType: req.TaskType,
		Limit:    limit,
	})
}
