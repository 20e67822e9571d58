package audit

import "time"

type ReportRequest struct {
	ID                int64     `gorm:"primaryKey"`
	RequestID         string    `gorm:"column:request_id;not null;uniqueIndex"`
	EventID           string    `gorm:"column:event_id;not null"`
	Status            string    `gorm:"column:status;not null"`
	RequesterID       string    `gorm:"column:requester_id;not null;index"`
	RequesterUsername string    `gorm:"column:requester_username"`
	ProjectKey        string    `gorm:"column:project_key;not null"`
	SprintID          int       `gorm:"column:sprint_id;not null"`
	SprintName        string    `gorm:"column:sprint_name"`
	IssueCount        int       `gorm:"column:issue_count"`
	UserCount         int       `gorm:"column:user_count"`
	DurationMS        int64     `gorm:"column:duration_ms"`
	FailureCode       *string   `gorm:"column:failure_code"`
	FailureReason     *string   `gorm:"column:failure_reason"`
	RequestedAt       time.Time `gorm:"column:requested_at;not null"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ReportRequest) TableName() string {
	return "report_requests"
}
