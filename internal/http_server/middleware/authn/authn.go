package authn

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	resp "tripchat/internal/lib/api/response"
	"tripchat/internal/lib/jwt"
	sl "tripchat/internal/lib/logger"

	"github.com/go-chi/render"
)

type contextKey string

const claimsKey contextKey = "authn.claims"

// New builds the access-control middleware for protected routes.
// A missing or malformed Authorization header is rejected with 401; a present
// but invalid or expired token with 403; otherwise the decoded claims are
// attached to the request context.
func New(log *slog.Logger, tokens *jwt.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.authn.New"

			token, ok := bearerToken(r)
			if !ok {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("authorization required"))

				return
			}

			claims, err := tokens.Verify(token)
			if err != nil {
				log.With(slog.String("op", op)).Warn("token rejected", sl.Err(err))

				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Error("invalid or expired token"))

				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		}

		return http.HandlerFunc(fn)
	}
}

// Claims returns the authenticated identity attached by the middleware.
func Claims(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*jwt.Claims)
	return claims, ok
}

// bearerToken extracts the token from the Authorization header. An absent
// header or a non-Bearer scheme counts as no token at all.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}

	return parts[1], true
}
