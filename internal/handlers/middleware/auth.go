package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/nkiryanov/todo/internal/handlers/render"
	"github.com/nkiryanov/todo/internal/handlers/userctx"
	"github.com/nkiryanov/todo/internal/models"
)

const bearerScheme = "Bearer "

type authService interface {
	Authenticate(ctx context.Context, accessToken string) (models.User, error)
}

// AuthMiddleware lets through requests with valid access token only
// Authenticated user is put to request context
// Authenticate errors are rendered by kind, so storage failures stay 500
func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, err := as.Authenticate(r.Context(), token)
			if err != nil {
				render.AppError(w, err)
				return
			}

			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if len(header) < len(bearerScheme) || !strings.EqualFold(header[:len(bearerScheme)], bearerScheme) {
		return "", false
	}

	token := strings.TrimSpace(header[len(bearerScheme):])
	return token, token != ""
}
