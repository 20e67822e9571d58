package audit

import (
	"time"

	auditDatamodel "github.com/frahmantamala/tracker-bot/internal/core/datamodel/audit"
)

const (
	StatusGenerated = "generated"
	StatusFailed    = "failed"
)

// ReportRequest is the audit record of one report request. Report contents
// are never stored.
type ReportRequest struct {
	RequestID         string    `json:"request_id"`
	Status            string    `json:"status"`
	RequesterID       string    `json:"requester_id"`
	RequesterUsername string    `json:"requester_username,omitempty"`
	ProjectKey        string    `json:"project_key"`
	SprintID          int       `json:"sprint_id"`
	SprintName        string    `json:"sprint_name,omitempty"`
	IssueCount        int       `json:"issue_count"`
	UserCount         int       `json:"user_count"`
	DurationMS        int64     `json:"duration_ms"`
	FailureCode       string    `json:"failure_code,omitempty"`
	FailureReason     string    `json:"failure_reason,omitempty"`
	RequestedAt       time.Time `json:"requested_at"`
}

type RepositoryAPI interface {
	Create(record *auditDatamodel.ReportRequest) error
	ListRecent(limit int) ([]*auditDatamodel.ReportRequest, error)
	ListByRequester(requesterID string, limit int) ([]*auditDatamodel.ReportRequest, error)
}

func FromDatamodel(m *auditDatamodel.ReportRequest) ReportRequest {
	r := ReportRequest{
		RequestID:         m.RequestID,
		Status:            m.Status,
		RequesterID:       m.RequesterID,
		RequesterUsername: m.RequesterUsername,
		ProjectKey:        m.ProjectKey,
		SprintID:          m.SprintID,
		SprintName:        m.SprintName,
		IssueCount:        m.IssueCount,
		UserCount:         m.UserCount,
		DurationMS:        m.DurationMS,
		RequestedAt:       m.RequestedAt,
	}
	if m.FailureCode != nil {
		r.FailureCode = *m.FailureCode
	}
	if m.FailureReason != nil {
		r.FailureReason = *m.FailureReason
	}
	return r
}
