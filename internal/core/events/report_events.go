package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeReportGenerated = "report.generated"
	EventTypeReportFailed    = "report.failed"
)

// ReportRequest describes one sprint report request, successful or not.
type ReportRequest struct {
	RequestID         string        `json:"request_id"`
	RequesterID       string        `json:"requester_id"`
	RequesterUsername string        `json:"requester_username"`
	ProjectKey        string        `json:"project_key"`
	SprintID          int           `json:"sprint_id"`
	SprintName        string        `json:"sprint_name"`
	IssueCount        int           `json:"issue_count"`
	UserCount         int           `json:"user_count"`
	Duration          time.Duration `json:"duration"`
	FailureCode       string        `json:"failure_code,omitempty"`
	FailureReason     string        `json:"failure_reason,omitempty"`
}

type ReportGeneratedEvent struct {
	BaseEvent
	ReportRequest
}

type ReportFailedEvent struct {
	BaseEvent
	ReportRequest
}

func newBase(eventType string, r ReportRequest) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"request_id":  r.RequestID,
			"project_key": r.ProjectKey,
			"sprint_id":   r.SprintID,
			"requester":   r.RequesterID,
		},
	}
}

func NewReportGeneratedEvent(r ReportRequest) *ReportGeneratedEvent {
	return &ReportGeneratedEvent{BaseEvent: newBase(EventTypeReportGenerated, r), ReportRequest: r}
}

func NewReportFailedEvent(r ReportRequest) *ReportFailedEvent {
	return &ReportFailedEvent{BaseEvent: newBase(EventTypeReportFailed, r), ReportRequest: r}
}
