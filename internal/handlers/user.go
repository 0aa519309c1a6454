package handlers

import (
	"net/http"

	"github.com/nkiryanov/todo/internal/handlers/render"
	"github.com/nkiryanov/todo/internal/handlers/userctx"
	"github.com/nkiryanov/todo/internal/logger"
)

func handleUserMe() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := userctx.FromContext(r.Context())
		render.JSON(w, user.Profile())
	})
}

func handleGetUser(userService userService, logger logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := userService.FindByIdentity(r.Context(), r.PathValue("identity"))
		if err != nil {
			renderError(w, r, err, logger)
			return
		}

		render.JSON(w, user.Profile())
	})
}
