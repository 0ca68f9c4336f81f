package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hongminglow/lms-be/internal/apperr"
	"github.com/hongminglow/lms-be/internal/auth"
	"github.com/hongminglow/lms-be/internal/http/respond"
	"github.com/hongminglow/lms-be/internal/models"
)

type ctxKey struct{}

// WithUser stores the authenticated principal in ctx.
func WithUser(ctx context.Context, u models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// CurrentUser returns the principal stored by Authenticate.
func CurrentUser(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(models.User)
	return u, ok
}

// Authenticate resolves the bearer token into a user and stores it in the
// request context.
func Authenticate(gate *auth.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := gate.Resolve(r.Context(), bearerToken(r))
			if err != nil {
				respond.Err(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// Require runs guard against the principal set by Authenticate.
func Require(guard auth.Guard) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok {
				respond.Err(w, r, apperr.Unauthorized(auth.MsgCouldNotValidate))
				return
			}
			refined, err := guard(user)
			if err != nil {
				respond.Err(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), refined)))
		})
	}
}

// RequireActive rejects deactivated accounts.
func RequireActive(next http.Handler) http.Handler {
	return Require(auth.RequireActive)(next)
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
