package handlers

import (
	"net/http"

	"github.com/nkiryanov/todo/internal/handlers/render"
	"github.com/nkiryanov/todo/internal/logger"
)

// Render service error, unexpected ones are logged
func renderError(w http.ResponseWriter, r *http.Request, err error, l logger.Logger) {
	status := render.StatusOf(err)
	if status >= http.StatusInternalServerError {
		l.Error("Request failed", "path", r.URL.Path, "error", err)
	} else {
		l.Debug("Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	render.AppError(w, err)
}
