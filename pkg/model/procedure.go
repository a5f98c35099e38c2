package model

// Procedure is a stored how-to: structured content applicable to a task
// type, ranked by operator-assigned priority and usage history.
type Procedure struct {
	ProcedureID  string            `json:"procedure_id"`
	Scope        Scope             `json:"scope"`
	TaskType     string            `json:"task_type"`
	Content      map[string]any    `json:"content"`
	Priority     int               `json:"priority"`
	UsageCount   int               `json:"usage_count"`
	Sources      []string          `json:"sources,omitempty"`
	Applicability map[string]string `json:"applicability,omitempty"`
}

// ProcedureFilter narrows list_procedures. Limit is a hard cap enforced by the backend.
type ProcedureFilter struct {
	TaskType string
	Limit    int
}
