package github

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/transport"
	"golang.org/x/crypto/bcrypt"
)

const APIKeyHeader = "x-api-key"

type Handler struct {
	*transport.BaseHandler
	Service    ServiceAPI
	apiKeyHash []byte
}

// NewHandler checks callers against a bcrypt hash of the shared api key.
func NewHandler(service ServiceAPI, apiKeyHash string, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger),
		Service:     service,
		apiKeyHash:  []byte(apiKeyHash),
	}
}

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(APIKeyHeader)
	if key == "" || len(h.apiKeyHash) == 0 || bcrypt.CompareHashAndPassword(h.apiKeyHash, []byte(key)) != nil {
		h.Logger.Warn("github webhook: invalid api key", "remote_addr", r.RemoteAddr)
		h.HandleError(w, internal.ErrInvalidAPIKey)
		return
	}

	var payload WebhookPayload
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&payload); err != nil {
		h.HandleError(w, internal.NewValidationError("invalid request body", internal.ErrCodeValidationFailed))
		return
	}

	resp, err := h.Service.LinkPullRequest(r.Context(), payload)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, resp)
}
