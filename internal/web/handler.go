// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authscope Contributors

// Package web exposes the scoped authentication flows as a JSON HTTP API.
package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/oops"

	"github.com/authscope/authscope/internal/auth"
	"github.com/authscope/authscope/internal/logging"
	"github.com/authscope/authscope/internal/mail"
	"github.com/authscope/authscope/internal/scope"
	"github.com/authscope/authscope/internal/session"
	"github.com/authscope/authscope/pkg/errutil"
)

// Response messages.
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgResetRequested     = "If your email address exists in our database, you will receive a password recovery link at your email address in a few minutes."
	MsgPasswordUpdated    = "Your password has been changed successfully. You can now sign in."
	MsgNoToken            = "no_token"
	MsgInvalidToken       = "invalid_token"
	MsgAlreadySignedIn    = "already_signed_in"
	MsgUnauthenticated    = "unauthenticated"
	MsgUnknownScope       = "unknown_scope"
	MsgBadRequest         = "bad_request"
	MsgInternal           = "internal_error"
)

const (
	scopeVar     = "scope"
	maxBodyBytes = 64 << 10
)

// Metrics receives HTTP outcomes.
type Metrics interface {
	Request(route string, status int)
	FailedSignIn(name scope.Name)
}

type noopMetrics struct{}

func (noopMetrics) Request(string, int)     {}
func (noopMetrics) FailedSignIn(scope.Name) {}

// Handler serves the authentication routes.
type Handler struct {
	registry *scope.Registry
	caps     session.Capabilities
	manager  *session.Manager
	sessions *RedisSessions
	cookies  *CookieCipher
	mailer   mail.Mailer
	baseURL  string
	metrics  Metrics
	logger   *slog.Logger
}

// Config holds the collaborators of a Handler.
type Config struct {
	Registry *scope.Registry
	Caps     session.Capabilities
	Manager  *session.Manager
	Sessions *RedisSessions
	Cookies  *CookieCipher
	Mailer   mail.Mailer
	// BaseURL prefixes links in outgoing mail.
	BaseURL string
	Metrics Metrics
	Logger  *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(cfg Config) (*Handler, error) {
	switch {
	case cfg.Registry == nil:
		return nil, oops.Code("WEB_REGISTRY_REQUIRED").Errorf("scope registry is required")
	case cfg.Caps == nil:
		return nil, oops.Code("WEB_CAPABILITIES_REQUIRED").Errorf("capabilities are required")
	case cfg.Manager == nil:
		return nil, oops.Code("WEB_MANAGER_REQUIRED").Errorf("session manager is required")
	case cfg.Sessions == nil:
		return nil, oops.Code("WEB_SESSIONS_REQUIRED").Errorf("session store is required")
	case cfg.Cookies == nil:
		return nil, oops.Code("WEB_COOKIES_REQUIRED").Errorf("cookie cipher is required")
	case cfg.Mailer == nil:
		return nil, oops.Code("WEB_MAILER_REQUIRED").Errorf("mailer is required")
	}
	h := &Handler{
		registry: cfg.Registry,
		caps:     cfg.Caps,
		manager:  cfg.Manager,
		sessions: cfg.Sessions,
		cookies:  cfg.Cookies,
		mailer:   cfg.Mailer,
		baseURL:  cfg.BaseURL,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
	if h.metrics == nil {
		h.metrics = noopMetrics{}
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h, nil
}

// Router returns the route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		h.writeJSON(w, req, http.StatusNotFound, errorBody("not_found"))
	})

	s := r.PathPrefix("/auth/{" + scopeVar + "}").Subrouter()
	s.Use(h.requireScope)
	s.HandleFunc("/login", h.guest(h.login)).Methods(http.MethodPost).Name("login")
	s.HandleFunc("/logout", h.action(h.logout)).Methods(http.MethodDelete).Name("logout")
	s.HandleFunc("/signup", h.guest(h.signup)).Methods(http.MethodPost).Name("signup")
	s.HandleFunc("/password", h.guest(h.requestReset)).Methods(http.MethodPost).Name("request_reset")
	s.HandleFunc("/password", h.guest(h.resetPassword)).Methods(http.MethodPatch).Name("reset_password")
	s.HandleFunc("/password/edit", h.guest(h.editPassword)).Methods(http.MethodGet).Name("edit_password")
	s.HandleFunc("/me", h.action(h.me)).Methods(http.MethodGet).Name("me")
	return r
}

func (h *Handler) requireScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := h.registry.Lookup(scopeName(r)); !ok {
			h.writeJSON(w, r, http.StatusNotFound, errorBody(MsgUnknownScope))
			return
		}
		next.ServeHTTP(w, r.WithContext(logging.WithScope(r.Context(), scopeName(r).String())))
	})
}

func scopeName(r *http.Request) scope.Name {
	return scope.Name(mux.Vars(r)[scopeVar])
}

// call is the state of one request passed to an action.
type call struct {
	r    *http.Request
	req  *session.Request
	name scope.Name
	cfg  *scope.Config
	auth *auth.Authenticable
}

// result is what an action answers.
type result struct {
	status int
	body   any
}

type actionFunc func(ctx context.Context, c *call) (result, error)

// action loads the session, runs fn, saves the session and writes the reply.
func (h *Handler) action(fn actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		name := scopeName(r)

		sess, err := h.sessions.Load(ctx, r)
		if err != nil {
			h.fail(w, r, "load session", err)
			return
		}
		a, err := h.caps.For(name)
		if err != nil {
			h.fail(w, r, "resolve scope", err)
			return
		}
		cfg, err := h.registry.Get(name)
		if err != nil {
			h.fail(w, r, "resolve scope", err)
			return
		}

		c := &call{
			r:    r,
			req:  session.NewRequest(sess, h.cookies.Jar(w, r), remoteIP(r)),
			name: name,
			cfg:  cfg,
			auth: a,
		}
		res, err := fn(ctx, c)
		if err != nil {
			h.fail(w, r, "handle request", err)
			return
		}
		if err := h.sessions.Save(ctx, w, sess); err != nil {
			h.fail(w, r, "save session", err)
			return
		}
		h.writeJSON(w, r, res.status, res.body)
	}
}

// guest rejects principals already signed in to the scope.
func (h *Handler) guest(fn actionFunc) http.HandlerFunc {
	return h.action(func(ctx context.Context, c *call) (result, error) {
		signedIn, err := h.manager.SignedIn(ctx, c.req, c.name)
		if err != nil {
			return result{}, err
		}
		if signedIn {
			return result{http.StatusConflict, map[string]string{
				"error":    MsgAlreadySignedIn,
				"redirect": c.cfg.AfterSignInPath,
			}}, nil
		}
		return fn(ctx, c)
	})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	errutil.LogError(r.Context(), h.logger, msg, err)
	h.writeJSON(w, r, http.StatusInternalServerError, errorBody(MsgInternal))
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	route := "unmatched"
	if cur := mux.CurrentRoute(r); cur != nil && cur.GetName() != "" {
		route = cur.GetName()
	}
	h.metrics.Request(route, status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WarnContext(r.Context(), "write response failed", "route", route, "error", err)
	}
}

func decode(r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst) == nil
}

// principalView is the JSON form of a principal.
type principalView struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	SignInCount     int        `json:"sign_in_count"`
	CurrentSignInAt *time.Time `json:"current_sign_in_at,omitempty"`
	LastSignInAt    *time.Time `json:"last_sign_in_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func viewOf(p *auth.Principal) principalView {
	return principalView{
		ID:              p.ID.String(),
		Email:           p.Email,
		SignInCount:     p.SignInCount,
		CurrentSignInAt: p.CurrentSignInAt,
		LastSignInAt:    p.LastSignInAt,
		CreatedAt:       p.CreatedAt,
	}
}

type signedInBody struct {
	Principal principalView `json:"principal"`
	Redirect  string        `json:"redirect"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

func (h *Handler) login(ctx context.Context, c *call) (result, error) {
	var in loginRequest
	if !decode(c.r, &in) {
		return result{http.StatusBadRequest, errorBody(MsgBadRequest)}, nil
	}
	p, ok, err := c.auth.Authenticate(ctx, in.Email, in.Password)
	if err != nil {
		return result{}, err
	}
	if !ok {
		h.metrics.FailedSignIn(c.name)
		return result{http.StatusUnprocessableEntity, errorBody(MsgInvalidCredentials)}, nil
	}
	if err := h.manager.SignIn(ctx, c.req, c.name, p, session.SignInOptions{Remember: in.RememberMe}); err != nil {
		return result{}, err
	}
	return result{http.StatusOK, signedInBody{Principal: viewOf(p), Redirect: c.cfg.AfterSignInPath}}, nil
}

func (h *Handler) logout(ctx context.Context, c *call) (result, error) {
	if err := h.manager.SignOut(ctx, c.req, c.name); err != nil {
		return result{}, err
	}
	return result{http.StatusOK, map[string]string{"redirect": c.cfg.AfterSignInPath}}, nil
}

type signupRequest struct {
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type validationBody struct {
	Errors auth.ValidationErrors `json:"errors"`
}

func (h *Handler) signup(ctx context.Context, c *call) (result, error) {
	var in signupRequest
	if !decode(c.r, &in) {
		return result{http.StatusBadRequest, errorBody(MsgBadRequest)}, nil
	}
	p, verrs, err := c.auth.Register(ctx, in.Email, in.Password, in.PasswordConfirmation)
	if err != nil {
		return result{}, err
	}
	if !verrs.OK() {
		return result{http.StatusUnprocessableEntity, validationBody{Errors: verrs}}, nil
	}
	if err := h.manager.SignIn(ctx, c.req, c.name, p, session.SignInOptions{}); err != nil {
		return result{}, err
	}
	return result{http.StatusCreated, signedInBody{Principal: viewOf(p), Redirect: c.cfg.AfterSignInPath}}, nil
}

type resetRequest struct {
	Email string `json:"email"`
}

// requestReset answers identically whether or not the email is known.
func (h *Handler) requestReset(ctx context.Context, c *call) (result, error) {
	accepted := result{http.StatusAccepted, map[string]string{"message": MsgResetRequested}}

	var in resetRequest
	if !decode(c.r, &in) {
		return result{http.StatusBadRequest, errorBody(MsgBadRequest)}, nil
	}
	if strings.TrimSpace(in.Email) == "" {
		verrs := auth.ValidationErrors{}
		verrs.Add(auth.FieldEmail, auth.MsgBlank)
		return result{http.StatusUnprocessableEntity, validationBody{Errors: verrs}}, nil
	}
	p, value, err := c.auth.RequestPasswordReset(ctx, in.Email)
	if err != nil {
		return result{}, err
	}
	if p == nil {
		return accepted, nil
	}
	msg := mail.Message{
		To:       p.Email,
		Scope:    c.name,
		Token:    value,
		ResetURL: mail.ResetURL(h.baseURL, c.name, value),
	}
	if err := h.mailer.SendPasswordReset(ctx, msg); err != nil {
		errutil.LogError(ctx, h.logger, "send password reset mail", err)
	}
	return accepted, nil
}

type passwordRequest struct {
	ResetPasswordToken   string `json:"reset_password_token"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// principalForToken resolves the principal a reset token was issued to. A
// non-nil result is the reply for a blank or invalid token.
func (h *Handler) principalForToken(ctx context.Context, c *call, value string) (*auth.Principal, *result, error) {
	if strings.TrimSpace(value) == "" {
		return nil, &result{http.StatusBadRequest, errorBody(MsgNoToken)}, nil
	}
	p, ok, err := c.auth.PrincipalForResetToken(ctx, value)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, &result{http.StatusBadRequest, errorBody(MsgInvalidToken)}, nil
	}
	return p, nil, nil
}

// editPassword checks the token from a mailed reset link.
func (h *Handler) editPassword(ctx context.Context, c *call) (result, error) {
	value := c.r.URL.Query().Get("reset_password_token")
	_, reply, err := h.principalForToken(ctx, c, value)
	if err != nil {
		return result{}, err
	}
	if reply != nil {
		return *reply, nil
	}
	return result{http.StatusOK, map[string]string{"reset_password_token": value}}, nil
}

// resetPassword sets the new password. The principal signs in separately.
func (h *Handler) resetPassword(ctx context.Context, c *call) (result, error) {
	var in passwordRequest
	if !decode(c.r, &in) {
		return result{http.StatusBadRequest, errorBody(MsgBadRequest)}, nil
	}
	p, reply, err := h.principalForToken(ctx, c, in.ResetPasswordToken)
	if err != nil {
		return result{}, err
	}
	if reply != nil {
		return *reply, nil
	}
	verrs, err := c.auth.ResetPassword(ctx, p, in.Password, in.PasswordConfirmation)
	if err != nil {
		return result{}, err
	}
	if !verrs.OK() {
		return result{http.StatusUnprocessableEntity, validationBody{Errors: verrs}}, nil
	}
	return result{http.StatusOK, map[string]string{
		"message":  MsgPasswordUpdated,
		"redirect": c.cfg.SignInPath,
	}}, nil
}

func (h *Handler) me(ctx context.Context, c *call) (result, error) {
	redirect, err := h.manager.RequireSignedIn(ctx, c.req, c.name)
	if err != nil {
		return result{}, err
	}
	if redirect != nil {
		return result{http.StatusUnauthorized, map[string]string{
			"error":    MsgUnauthenticated,
			"redirect": redirect.Location,
		}}, nil
	}
	p, err := h.manager.Current(ctx, c.req, c.name)
	if err != nil {
		return result{}, err
	}
	return result{http.StatusOK, map[string]principalView{"principal": viewOf(p)}}, nil
}
