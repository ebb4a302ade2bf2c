package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dtroode/flavourmarket/internal/validation"
)

const afterLogin = "/profile"

type loginView struct {
	formView[validation.LoginForm]
	Next string
}

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"), afterLogin)
	if h.identity(r) != nil {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "login", "Log in", loginView{Next: next})
}

// Login signs the client context in and sends the user to the page they came from.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	form := validation.LoginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	next := safeNext(r.PostFormValue("next"), afterLogin)

	rerender := func(err error) {
		h.formFailed(w, r, err, func(status int, message string) {
			view := loginView{Next: next}
			view.Form = validation.LoginForm{Email: form.Email}
			view.Error = message
			view.Errors = fieldErrors(err)
			h.render(w, r, status, "login", "Log in", view)
		})
	}

	if err := h.validator.Validate(form); err != nil {
		rerender(err)
		return
	}

	end, err := h.client(r).Forms.Begin("login")
	if err != nil {
		rerender(err)
		return
	}
	defer end()

	if _, err := h.svc.Auth.SignIn(r.Context(), h.client(r), form.Email, form.Password); err != nil {
		rerender(err)
		return
	}
	redirect(w, r, next, "")
}

func (h *Handler) SignupPage(w http.ResponseWriter, r *http.Request) {
	if h.identity(r) != nil {
		http.Redirect(w, r, afterLogin, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "signup", "Sign up", formView[validation.SignupForm]{})
}

// Signup registers a user. Without email confirmation the user is signed in right away.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	form := validation.SignupForm{
		FirstName:       strings.TrimSpace(r.PostFormValue("first_name")),
		LastName:        strings.TrimSpace(r.PostFormValue("last_name")),
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}
	// passwords are never echoed back
	echo := validation.SignupForm{FirstName: form.FirstName, LastName: form.LastName, Email: form.Email}

	rerender := func(err error) {
		h.formFailed(w, r, err, func(status int, message string) {
			h.render(w, r, status, "signup", "Sign up", formView[validation.SignupForm]{
				Form:   echo,
				Errors: fieldErrors(err),
				Error:  message,
			})
		})
	}

	if err := h.validator.Validate(form); err != nil {
		rerender(err)
		return
	}

	end, err := h.client(r).Forms.Begin("signup")
	if err != nil {
		rerender(err)
		return
	}
	defer end()

	signedIn, err := h.svc.Auth.SignUp(r.Context(), h.client(r), form.Params())
	if err != nil {
		rerender(err)
		return
	}
	if !signedIn {
		h.render(w, r, http.StatusOK, "signup", "Sign up", formView[validation.SignupForm]{
			Notice: "Account created. Check your email to confirm it, then log in.",
		})
		return
	}
	redirect(w, r, afterLogin, "Welcome to Flavour Market, "+form.FirstName+"!")
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Auth.SignOut(r.Context(), h.client(r)); err != nil {
		h.logger.Warn("Handler: sign out failed", "error", err.Error())
	}
	redirect(w, r, "/", "You have been logged out.")
}

func fieldErrors(err error) validation.FieldErrors {
	var fields validation.FieldErrors
	if errors.As(err, &fields) {
		return fields
	}
	return nil
}
