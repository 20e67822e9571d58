package audit

import (
	"net/http"
	"strconv"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/core/common/validation"
	"github.com/frahmantamala/tracker-bot/internal/transport"
)

const defaultListLimit = 50

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(nil),
		Service:     service,
	}
}

type ListResponse struct {
	Requests []ReportRequest `json:"requests"`
}

func (h *Handler) ListReportRequests(w http.ResponseWriter, r *http.Request) {
	ac, ok := access.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, appErr := parseLimit(r.URL.Query().Get("limit"))
	if appErr != nil {
		h.HandleError(w, appErr)
		return
	}

	requests, err := h.Service.ListReportRequests(ac, limit)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ListResponse{Requests: requests})
}

func parseLimit(raw string) (int, *internal.AppError) {
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, internal.NewValidationFieldError("limit", "limit must be a positive integer", internal.ErrCodeValidationFailed)
	}
	v := validation.NewValidator()
	v.Field("limit", n).MinInt(1, internal.ErrCodeValidationFailed)
	if err := v.Validate(); err != nil {
		return 0, err
	}
	return int(n), nil
}
