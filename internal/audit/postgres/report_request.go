package postgres

import (
	"github.com/frahmantamala/tracker-bot/internal/audit"
	auditDatamodel "github.com/frahmantamala/tracker-bot/internal/core/datamodel/audit"
	"gorm.io/gorm"
)

const maxListLimit = 500

// ReportRequestRepository implements audit.RepositoryAPI using GORM
type ReportRequestRepository struct {
	db *gorm.DB
}

func NewReportRequestRepository(db *gorm.DB) audit.RepositoryAPI {
	return &ReportRequestRepository{db: db}
}

func (r *ReportRequestRepository) Create(record *auditDatamodel.ReportRequest) error {
	return r.db.Create(record).Error
}

// ListRecent returns the newest records first.
func (r *ReportRequestRepository) ListRecent(limit int) ([]*auditDatamodel.ReportRequest, error) {
	var records []*auditDatamodel.ReportRequest
	err := r.db.Order("requested_at DESC").
		Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&records).Error
	return records, err
}

func (r *ReportRequestRepository) ListByRequester(requesterID string, limit int) ([]*auditDatamodel.ReportRequest, error) {
	var records []*auditDatamodel.ReportRequest
	err := r.db.Where("requester_id = ?", requesterID).
		Order("requested_at DESC").
		Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&records).Error
	return records, err
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
