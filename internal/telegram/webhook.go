package telegram

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/transport"
)

const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Sink accepts updates for asynchronous handling.
type Sink interface {
	Enqueue(u Update) error
}

// WebhookHandler receives updates pushed by Telegram and hands them to the
// sink. It answers before the update is processed.
type WebhookHandler struct {
	*transport.BaseHandler
	secret string
	sink   Sink
}

func NewWebhookHandler(secret string, sink Sink, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler: transport.NewBaseHandler(logger),
		secret:      secret,
		sink:        sink,
	}
}

func (h *WebhookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(SecretHeader)
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		h.Logger.Warn("telegram webhook: bad secret token", "remote_addr", r.RemoteAddr)
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var u Update
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&u); err != nil {
		h.Logger.Warn("telegram webhook: invalid update", "error", err)
		h.HandleError(w, internal.ErrInvalidUpdate.Wrap(err))
		return
	}

	if err := h.sink.Enqueue(u); err != nil {
		h.Logger.Error("telegram webhook: update dropped", "update_id", u.UpdateID, "error", err)
		h.WriteError(w, http.StatusServiceUnavailable, "busy")
		return
	}

	w.WriteHeader(http.StatusOK)
}
