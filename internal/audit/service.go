package audit

import (
	"log/slog"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/access"
	auditDatamodel "github.com/frahmantamala/tracker-bot/internal/core/datamodel/audit"
)

type ServiceAPI interface {
	ListReportRequests(ac *access.Context, limit int) ([]ReportRequest, error)
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// ListReportRequests returns every request to super admins and the
// requester's own requests to everyone else.
func (s *Service) ListReportRequests(ac *access.Context, limit int) ([]ReportRequest, error) {
	var (
		records []*auditDatamodel.ReportRequest
		err     error
	)
	if ac.IsSuperAdmin() {
		records, err = s.repo.ListRecent(limit)
	} else {
		records, err = s.repo.ListByRequester(ac.Identity().ID, limit)
	}
	if err != nil {
		s.logger.Error("failed to list report requests", "requester", ac.Identity().String(), "error", err)
		return nil, internal.NewInternalError("failed to list report requests", err)
	}

	out := make([]ReportRequest, 0, len(records))
	for _, r := range records {
		out = append(out, FromDatamodel(r))
	}
	return out, nil
}
