package handlers

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/a-h/templ"

	"supermart-dashboard/internal/auth"
	"supermart-dashboard/internal/observability"
	"supermart-dashboard/internal/ui/templates"
)

type AuthHandlers struct {
	service  *auth.Service
	sessions *auth.Sessions
	logger   *slog.Logger
}

func NewAuthHandlers(service *auth.Service, sessions *auth.Sessions, logger *slog.Logger) *AuthHandlers {
	return &AuthHandlers{
		service:  service,
		sessions: sessions,
		logger:   logger,
	}
}

// HandleHome lists the dashboards; it sits behind the session gate.
func (h *AuthHandlers) HandleHome(w http.ResponseWriter, r *http.Request) {
	view := templates.HomeView{Frame: frame(r, "Home"), Pages: Pages}
	if view.Viewer == nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, templates.Home(view))
}

func (h *AuthHandlers) HandleLoginForm(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"))
	if _, err := h.sessions.FromRequest(r); err == nil {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, templates.Login(loginView(next)))
}

func (h *AuthHandlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		view := loginView("/")
		view.Message = "Could not read the form"
		h.render(w, r, http.StatusBadRequest, templates.Login(view))
		return
	}

	next := safeNext(r.PostForm.Get("next"))
	form := auth.LoginForm{
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
	}

	u, err := h.service.Login(r.Context(), form)
	if err != nil {
		view := loginView(next)
		view.Values = map[string]string{"email": form.Email}
		status := h.formError(r, &view, err, "login")
		h.render(w, r, status, templates.Login(view))
		return
	}

	if err := h.startSession(w, u); err != nil {
		h.logger.Error("issue session", "error", err, "request_id", observability.GetRequestID(r.Context()))
		view := loginView(next)
		view.Message = "Login is unavailable, try again later"
		h.render(w, r, http.StatusInternalServerError, templates.Login(view))
		return
	}

	h.logger.Info("user logged in", "email", u.Email, "role", u.Role)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *AuthHandlers) HandleSignupForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, templates.Signup(signupView()))
}

func (h *AuthHandlers) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		view := signupView()
		view.Message = "Could not read the form"
		h.render(w, r, http.StatusBadRequest, templates.Signup(view))
		return
	}

	form := auth.SignupForm{
		Name:     r.PostForm.Get("name"),
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
		Role:     r.PostForm.Get("role"),
	}

	u, err := h.service.Signup(r.Context(), form)
	if err != nil {
		view := signupView()
		view.Values = map[string]string{"name": form.Name, "email": form.Email, "role": form.Role}
		status := h.formError(r, &view, err, "signup")
		h.render(w, r, status, templates.Signup(view))
		return
	}

	if err := h.startSession(w, u); err != nil {
		h.logger.Error("issue session", "error", err, "request_id", observability.GetRequestID(r.Context()))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	h.logger.Info("user signed up", "email", u.Email, "role", u.Role)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandlers) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandlers) startSession(w http.ResponseWriter, u *auth.User) error {
	token, err := h.sessions.Issue(u)
	if err != nil {
		return err
	}
	h.sessions.SetCookie(w, token)
	return nil
}

// formError fills the view from a service error and returns the status to
// answer with.
func (h *AuthHandlers) formError(r *http.Request, view *templates.FormView, err error, action string) int {
	var verr *auth.ValidationError
	switch {
	case stderrors.As(err, &verr):
		view.Errors = verr.Fields
		return http.StatusUnprocessableEntity
	case stderrors.Is(err, auth.ErrInvalidCredentials):
		view.Message = "Invalid email or password"
		return http.StatusUnauthorized
	case stderrors.Is(err, auth.ErrUserExists):
		view.Message = "An account with this email already exists"
		return http.StatusConflict
	default:
		h.logger.Error(action+" failed", "error", err, "request_id", observability.GetRequestID(r.Context()))
		view.Message = "Service is unavailable, try again later"
		return http.StatusInternalServerError
	}
}

func (h *AuthHandlers) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := c.Render(ctx, w); err != nil {
		h.logger.Error("render page", "error", err, "request_id", observability.GetRequestID(r.Context()))
	}
}

func loginView(next string) templates.FormView {
	return templates.FormView{
		Frame:  templates.Frame{Title: "Login"},
		Action: "/login",
		Next:   next,
	}
}

func signupView() templates.FormView {
	return templates.FormView{
		Frame:  templates.Frame{Title: "Sign up"},
		Action: "/signup",
		Roles:  auth.Roles,
	}
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
