package handlers

import (
	"net/http"

	"github.com/nkiryanov/todo/internal/handlers/render"
	"github.com/nkiryanov/todo/internal/logger"
	"github.com/nkiryanov/todo/internal/service/auth"
)

type messageResponse struct {
	Message string `json:"message"`
}

func handleLogin(authService authService, logger logger.Logger) http.Handler {
	type request struct {
		Identity string `json:"identity" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		res, err := authService.Login(r.Context(), data.Identity, data.Password)
		if err != nil {
			renderError(w, r, err, logger)
			return
		}

		render.JSON(w, res)
	})
}

func handleRegister(authService authService, logger logger.Logger) http.Handler {
	// Password strength is checked by the service after uniqueness checks
	type request struct {
		Username string `json:"username" validate:"required,min=2,max=50"`
		Email    string `json:"email" validate:"required,email,max=255"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		res, err := authService.Register(r.Context(), auth.RegisterParams{
			Username: data.Username,
			Email:    data.Email,
			Password: data.Password,
		})
		if err != nil {
			renderError(w, r, err, logger)
			return
		}

		render.JSONWithStatus(w, res, http.StatusCreated)
	})
}

func handleRefreshToken(authService authService, logger logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refresh_token" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		res, err := authService.Refresh(r.Context(), data.RefreshToken)
		if err != nil {
			renderError(w, r, err, logger)
			return
		}

		render.JSON(w, res)
	})
}

func handleGoogleLogin(authService authService, logger logger.Logger) http.Handler {
	type request struct {
		AccessToken string `json:"access_token" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		res, err := authService.LoginWithGoogle(r.Context(), data.AccessToken)
		if err != nil {
			renderError(w, r, err, logger)
			return
		}

		render.JSON(w, res)
	})
}

func handleForgotPassword(authService authService, logger logger.Logger) http.Handler {
	type request struct {
		Email string `json:"email" validate:"required,email"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = authService.ForgotPassword(r.Context(), data.Email)
		if err != nil {
			renderError(w, r, err, logger)
			return
		}

		render.JSON(w, messageResponse{Message: "Reset password link sent to your email"})
	})
}

func handleResetPassword(authService authService, logger logger.Logger) http.Handler {
	// Token is checked before the password, so it is not validated here
	type request struct {
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = authService.ResetPassword(r.Context(), token, data.Password)
		if err != nil {
			renderError(w, r, err, logger)
			return
		}

		render.JSON(w, messageResponse{Message: "Password reset successfully"})
	})
}
