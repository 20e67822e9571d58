package middleware

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/tracker-bot/internal"
	"github.com/frahmantamala/tracker-bot/internal/access"
	"github.com/frahmantamala/tracker-bot/internal/transport"
)

// RequireSuperAdmin lets through only requesters the policy marks as super
// admins. It must run after the auth middleware.
func RequireSuperAdmin(logger *slog.Logger) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(logger)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac, ok := access.FromContext(r.Context())
			if !ok {
				base.HandleError(w, internal.ErrInvalidToken.Withf("missing authorization token"))
				return
			}

			if !ac.IsSuperAdmin() {
				logger.Warn("Access denied: requester is not a super admin",
					"requester", ac.Identity().String(),
					"path", r.URL.Path)
				base.HandleError(w, internal.ErrSuperAdminOnly)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
