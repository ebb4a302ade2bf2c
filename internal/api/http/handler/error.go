package handler

import (
	"errors"
	"net/http"

	"github.com/dtroode/flavourmarket/internal/api/http/middleware"
	"github.com/dtroode/flavourmarket/internal/client"
	"github.com/dtroode/flavourmarket/internal/model"
	"github.com/dtroode/flavourmarket/internal/service"
	"github.com/dtroode/flavourmarket/internal/validation"
)

const (
	msgRemoteFailure      = "Something went wrong talking to the marketplace. Please try again."
	msgNotFound           = "We couldn't find what you were looking for."
	msgInFlight           = "This form is already being submitted. Please wait."
	msgInvalidCredentials = "Invalid email or password."
	msgCheckFields        = "Please fix the highlighted fields."
	msgUploadsDisabled    = "Image uploads are not available. Please provide an image URL."
)

type errorView struct {
	Status  int
	Message string
}

func isSessionError(err error) bool {
	return errors.Is(err, model.ErrSessionExpired) || errors.Is(err, model.ErrUnauthenticated)
}

// handleError renders the full-page state for a failure loading primary page data.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isSessionError(err):
		http.Redirect(w, r, middleware.LoginURL(r), http.StatusSeeOther)
	case errors.Is(err, model.ErrNotFound):
		h.renderError(w, r, http.StatusNotFound, msgNotFound)
	case errors.Is(err, client.ErrInFlight):
		h.renderError(w, r, http.StatusConflict, msgInFlight)
	default:
		h.logger.Error("Handler: failed to load page",
			"path", r.URL.Path,
			"error", err.Error())
		h.renderError(w, r, http.StatusBadGateway, msgRemoteFailure)
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.render(w, r, status, "error", http.StatusText(status), errorView{Status: status, Message: message})
}

// formStatus maps a failed form submission to the status and inline message shown next to the form.
func formStatus(err error) (int, string) {
	var fields validation.FieldErrors
	switch {
	case errors.As(err, &fields):
		return http.StatusUnprocessableEntity, msgCheckFields
	case errors.Is(err, service.ErrUploadsDisabled):
		return http.StatusUnprocessableEntity, msgUploadsDisabled
	case errors.Is(err, client.ErrInFlight):
		return http.StatusConflict, msgInFlight
	case errors.Is(err, model.ErrInvalidCredentials):
		return http.StatusUnauthorized, msgInvalidCredentials
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, msgNotFound
	default:
		return http.StatusBadGateway, msgRemoteFailure
	}
}

// formFailed handles a failed form post. A lost session redirects to the login page;
// anything else re-renders the form through rerender.
func (h *Handler) formFailed(w http.ResponseWriter, r *http.Request, err error, rerender func(status int, message string)) {
	if isSessionError(err) {
		http.Redirect(w, r, middleware.LoginURL(r), http.StatusSeeOther)
		return
	}
	status, message := formStatus(err)
	if status == http.StatusBadGateway {
		h.logger.Warn("Handler: form submission failed",
			"path", r.URL.Path,
			"error", err.Error())
	}
	rerender(status, message)
}

// NotFound renders the not-found page for unknown routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderError(w, r, http.StatusNotFound, msgNotFound)
}

// Panic renders the error page after a recovered panic.
func (h *Handler) Panic(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusInternalServerError, "error", Page{
		Title: http.StatusText(http.StatusInternalServerError),
		Data:  errorView{Status: http.StatusInternalServerError, Message: msgRemoteFailure},
	})
}
