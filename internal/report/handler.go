package report

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/tracker"
	"github.com/frahmantamala/tracker-bot/internal/transport"
	"github.com/frahmantamala/tracker-bot/pkg/logger"
	"github.com/go-chi/chi"
)

const csvContentType = "text/csv; charset=utf-8"

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

type ProjectsResponse struct {
	Projects []tracker.Project `json:"projects"`
}

type SprintsResponse struct {
	ProjectKey string           `json:"project_key"`
	Sprints    []tracker.Sprint `json:"sprints"`
}

func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	ac, ok := access.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	projects, err := h.Service.ListProjects(r.Context(), ac)
	if err != nil {
		h.Logger.Error("ListProjects: service error", "error", err, "requester", ac.Identity().String())
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ProjectsResponse{Projects: projects})
}

func (h *Handler) ListSprints(w http.ResponseWriter, r *http.Request) {
	ac, ok := access.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	projectKey := chi.URLParam(r, "projectKey")
	sprints, err := h.Service.ListSprints(r.Context(), ac, projectKey)
	if err != nil {
		h.Logger.Error("ListSprints: service error", "error", err, "project_key", projectKey)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, SprintsResponse{ProjectKey: projectKey, Sprints: sprints})
}

// DownloadReport builds the sprint report and returns one of its tables
// as CSV.
func (h *Handler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	ac, ok := access.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	projectKey := chi.URLParam(r, "projectKey")
	sprintIDStr := chi.URLParam(r, "sprintID")
	sprintID, err := strconv.Atoi(sprintIDStr)
	if err != nil || sprintID <= 0 {
		h.HandleError(w, internal.NewValidationFieldError("sprintID", "sprint id must be a positive integer", internal.ErrCodeValidationFailed))
		return
	}

	kind := chi.URLParam(r, "kind")
	if kind != KindIssues && kind != KindUsers {
		h.HandleError(w, internal.ErrInvalidReportKind.Withf("unknown report kind %q", kind))
		return
	}

	rep, err := h.Service.SprintReport(r.Context(), ac, projectKey, sprintID)
	if err != nil {
		h.Logger.Warn("DownloadReport: service error", "error", err,
			"trace_id", internal.RequestIDFromContext(r.Context()),
			"project_key", projectKey,
			"sprint_id", sprintID)
		h.HandleServiceError(w, err)
		return
	}

	f, err := rep.File(kind)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.Header().Set("X-Report-ID", rep.RequestID)
	h.WriteFile(w, f.Name, csvContentType, f.Data)
}
