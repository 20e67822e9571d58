package rest

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/transport"
)

type PolicyResponse struct {
	Policy access.Snapshot     `json:"policy"`
	Issues []access.ParseIssue `json:"issues"`
}

// PolicyHandler exposes the parsed access policy together with the entries
// that were skipped while parsing it.
type PolicyHandler struct {
	*transport.BaseHandler
	policy *access.Policy
	issues []access.ParseIssue
}

func NewPolicyHandler(policy *access.Policy, issues []access.ParseIssue, logger *slog.Logger) *PolicyHandler {
	if issues == nil {
		issues = []access.ParseIssue{}
	}
	return &PolicyHandler{
		BaseHandler: transport.NewBaseHandler(logger),
		policy:      policy,
		issues:      issues,
	}
}

func (h *PolicyHandler) Show(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, PolicyResponse{Policy: h.policy.Snapshot(), Issues: h.issues})
}
