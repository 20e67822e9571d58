package audit

import (
	"context"
	"fmt"
	"log/slog"

	auditDatamodel "github.com/frahmantamala/tracker-bot/internal/core/datamodel/audit"
	"github.com/frahmantamala/tracker-bot/internal/core/events"
)

const maxReasonLength = 1000

type Subscriber interface {
	Subscribe(eventType string, handler events.Handler)
}

// Recorder persists report events.
type Recorder struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewRecorder(repo RepositoryAPI, logger *slog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

func (r *Recorder) Register(bus Subscriber) {
	bus.Subscribe(events.EventTypeReportGenerated, r.HandleReportEvent)
	bus.Subscribe(events.EventTypeReportFailed, r.HandleReportEvent)
}

func (r *Recorder) HandleReportEvent(ctx context.Context, event events.Event) error {
	var (
		req    events.ReportRequest
		status string
	)
	switch e := event.(type) {
	case *events.ReportGeneratedEvent:
		req, status = e.ReportRequest, StatusGenerated
	case *events.ReportFailedEvent:
		req, status = e.ReportRequest, StatusFailed
	default:
		return fmt.Errorf("unexpected event %T", event)
	}

	record := &auditDatamodel.ReportRequest{
		RequestID:         req.RequestID,
		EventID:           event.EventID(),
		Status:            status,
		RequesterID:       req.RequesterID,
		RequesterUsername: req.RequesterUsername,
		ProjectKey:        req.ProjectKey,
		SprintID:          req.SprintID,
		SprintName:        req.SprintName,
		IssueCount:        req.IssueCount,
		UserCount:         req.UserCount,
		DurationMS:        req.Duration.Milliseconds(),
		FailureCode:       optional(req.FailureCode),
		FailureReason:     optional(truncate(req.FailureReason, maxReasonLength)),
		RequestedAt:       event.OccurredAt(),
	}

	if err := r.repo.Create(record); err != nil {
		r.logger.Error("failed to record report request", "request_id", req.RequestID, "error", err)
		return fmt.Errorf("record report request: %w", err)
	}
	r.logger.Debug("report request recorded", "request_id", req.RequestID, "status", status)
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
