package entity

import "time"

// ReconciliationRun is the audit row written for each persisted pipeline run
type ReconciliationRun struct {
	ID                   string     `json:"id"`
	Kind                 string     `json:"kind"`
	SourceOrgID          string     `json:"source_org_id"`
	TargetOrgID          string     `json:"target_org_id"`
	PeriodFrom           *time.Time `json:"period_from,omitempty"`
	PeriodTo             *time.Time `json:"period_to,omitempty"`
	AutoApproveThreshold int        `json:"auto_approve_threshold"`
	MatchThreshold       int        `json:"match_threshold"`
	Considered           int        `json:"considered"`
	AutoApproved         int        `json:"auto_approved"`
	ManualApproved       int        `json:"manual_approved"`
	Rejected             int        `json:"rejected"`
	Deferred             int        `json:"deferred"`
	Errors               int        `json:"errors"`
	Status               string     `json:"status"`
	ErrorMessage         string     `json:"error_message,omitempty"`
	StartedAt            time.Time  `json:"started_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

// IsFinished returns true once the run has been completed or failed
func (r *ReconciliationRun) IsFinished() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}
