package auth

import (
	"net/http"
	"strings"

	"github.com/haasonsaas/mnemos/internal/observability"
)

// Middleware enforces bearer auth on an HTTP handler. Requests without a
// resolvable credential are rejected with 403 before reaching the handler;
// resolved users ride the request context.
func Middleware(service *Service, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if service == nil || !service.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			credential := extractBearer(r)
			user, err := service.Resolve(r.Context(), credential)
			if err != nil || user == nil {
				if logger != nil {
					logger.Warn(r.Context(), "rejected request credential", "path", r.URL.Path, "error", err)
				}
				http.Error(w, "invalid credentials", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return strings.TrimSpace(r.Header.Get("X-Api-Key"))
}
