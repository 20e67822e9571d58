package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/transport"
	"github.com/frahmantamala/tracker-bot/pkg/logger"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

// Me returns what the caller may see.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := access.FromContext(r.Context())
	if !ok {
		h.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	h.WriteJSON(w, http.StatusOK, ac.Summary())
}

// AuthMiddleware resolves the bearer token into an access context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.HandleError(w, internal.ErrInvalidToken.Withf("missing authorization token"))
			return
		}

		ac, err := h.Service.Authenticate(token)
		if err != nil {
			h.Logger.Warn("auth middleware: token rejected", "error", err)
			h.HandleServiceError(w, err)
			return
		}

		identity := ac.Identity()
		ctx := access.WithContext(r.Context(), ac)
		ctx = logger.With(ctx, "requester_id", identity.ID, "requester_username", identity.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
