package handlers

import (
	"context"
	"net/http"

	"github.com/nkiryanov/todo/internal/handlers/middleware"
	"github.com/nkiryanov/todo/internal/logger"
	"github.com/nkiryanov/todo/internal/models"
	"github.com/nkiryanov/todo/internal/service/auth"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	userService userService,
	logger logger.Logger,
) http.Handler {
	withAuth := middleware.AuthMiddleware(authService)

	apiauth := http.NewServeMux()
	apiauth.Handle("POST /login", handleLogin(authService, logger))
	apiauth.Handle("POST /register", handleRegister(authService, logger))
	apiauth.Handle("POST /refresh-token", handleRefreshToken(authService, logger))
	apiauth.Handle("POST /google", handleGoogleLogin(authService, logger))
	apiauth.Handle("POST /forgot-password", handleForgotPassword(authService, logger))
	apiauth.Handle("POST /reset-password", handleResetPassword(authService, logger))

	apiusers := http.NewServeMux()
	apiusers.Handle("GET /me", withAuth(handleUserMe()))
	apiusers.Handle("GET /{identity}", withAuth(handleGetUser(userService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", apiauth))
	root.Handle("/api/users/", http.StripPrefix("/api/users", apiusers))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Login with username or email
	// Returns apperrors.KindUnauthenticated error if credentials are wrong
	Login(ctx context.Context, identity string, password string) (models.AuthResult, error)

	// Register user and login
	// Returns apperrors.KindInvalidInput error if username or email is taken or password is weak
	Register(ctx context.Context, params auth.RegisterParams) (models.AuthResult, error)

	// Exchange refresh token for new pair, the used one stops working
	Refresh(ctx context.Context, refreshToken string) (models.AuthResult, error)

	// Login with Google access token
	LoginWithGoogle(ctx context.Context, googleToken string) (models.AuthResult, error)

	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token string, newPassword string) error

	// Resolve user by access token
	Authenticate(ctx context.Context, accessToken string) (models.User, error)
}

type userService interface {
	FindByIdentity(ctx context.Context, identity string) (models.User, error)
}
