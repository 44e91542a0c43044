package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/MrEthical07/authcore/internal/retry"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 64 << 10

// Engine is the part of authcore.Engine the transport calls.
type Engine interface {
	Login(ctx context.Context, identifier, secret string) (authcore.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (authcore.TokenPair, error)
	Validate(ctx context.Context, accessToken string) (*authcore.Claims, error)
	Register(ctx context.Context, req authcore.RegisterRequest) (authcore.PrincipalView, error)
	Principal(ctx context.Context, id string) (authcore.PrincipalView, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

// Handlers serves the auth API.
type Handlers struct {
	engine    Engine
	log       *logger.Logger
	retry     retry.Config
	adminRole string
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type validateRequest struct {
	Token string `json:"token"`
}

type registerRequest struct {
	Identifier string            `json:"identifier"`
	Secret     string            `json:"secret"`
	Roles      []string          `json:"roles,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	AccessExpiresAt  int64  `json:"access_expires_at"`
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
}

type claimsResponse struct {
	Active    bool     `json:"active"`
	Subject   string   `json:"sub"`
	Issuer    string   `json:"iss"`
	Audience  string   `json:"aud"`
	IssuedAt  int64    `json:"iat"`
	ExpiresAt int64    `json:"exp"`
	TokenID   string   `json:"jti"`
	Scope     []string `json:"scope"`
}

type principalResponse struct {
	ID         string            `json:"id"`
	Identifier string            `json:"identifier"`
	Status     string            `json:"status"`
	Roles      []string          `json:"roles"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	LastAuthAt *time.Time        `json:"last_auth_at,omitempty"`
}

// RegisterRoutes mounts the auth routes on r. Routes that act on the caller's
// identity go through guard; unknown paths never reach it.
func (h *Handlers) RegisterRoutes(r *mux.Router, guard mux.MiddlewareFunc) {
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.HandleFunc("/v1/auth/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/refresh", h.refresh).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/validate", h.validate).Methods(http.MethodPost)
	r.HandleFunc("/v1/auth/logout", h.logout).Methods(http.MethodPost)
	r.HandleFunc("/v1/principals", h.register).Methods(http.MethodPost)

	protected := r.NewRoute().Subrouter()
	protected.Use(guard)
	protected.HandleFunc("/v1/principals/{id}", h.principal).Methods(http.MethodGet)
	protected.HandleFunc("/v1/me", h.me).Methods(http.MethodGet)
}

func (h *Handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// login handles POST /v1/auth/login
func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	pair, err := h.engine.Login(r.Context(), req.Identifier, req.Secret)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenBody(pair))
}

// refresh handles POST /v1/auth/refresh
func (h *Handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	pair, err := h.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenBody(pair))
}

// validate handles POST /v1/auth/validate. Token errors are a 200 with
// active=false; backend errors keep their status.
func (h *Handlers) validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	claims, err := retry.Do(r.Context(), h.retry, func(ctx context.Context) (*authcore.Claims, error) {
		return h.engine.Validate(ctx, req.Token)
	})
	if err != nil {
		if status, _ := Classify(err); status == http.StatusUnauthorized {
			writeJSON(w, http.StatusOK, claimsResponse{Active: false})
			return
		}
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, claimsBody(claims))
}

// logout handles POST /v1/auth/logout. The access token comes from the
// Authorization header; the body may carry the refresh token.
func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	access, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		WriteError(w, r, middleware.ErrMissingToken)
		return
	}
	var req refreshRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	if err := h.engine.Logout(r.Context(), access, req.RefreshToken); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// register handles POST /v1/principals. Granting the admin role requires an
// admin bearer token.
func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if h.adminRole != "" && slices.Contains(req.Roles, h.adminRole) {
		if err := h.requireAdmin(r); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	p, err := h.engine.Register(r.Context(), authcore.RegisterRequest{
		Identifier: req.Identifier,
		Secret:     req.Secret,
		Roles:      req.Roles,
		Metadata:   req.Metadata,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/principals/"+p.ID)
	writeJSON(w, http.StatusCreated, principalBody(p))
}

// principal handles GET /v1/principals/{id}. Callers may read themselves;
// anyone else needs the admin role.
func (h *Handlers) principal(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		WriteError(w, r, middleware.ErrMissingToken)
		return
	}
	if claims.Subject != id && (h.adminRole == "" || !claims.HasScope(h.adminRole)) {
		WriteError(w, r, middleware.ErrInsufficientScope)
		return
	}
	h.writePrincipal(w, r, id)
}

// me handles GET /v1/me
func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		WriteError(w, r, middleware.ErrMissingToken)
		return
	}
	h.writePrincipal(w, r, claims.Subject)
}

// requireAdmin validates the bearer token on a public route and checks
// for the admin role.
func (h *Handlers) requireAdmin(r *http.Request) error {
	token, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		return middleware.ErrInsufficientScope
	}
	claims, err := h.engine.Validate(r.Context(), token)
	if err != nil {
		return err
	}
	if !claims.HasScope(h.adminRole) {
		return middleware.ErrInsufficientScope
	}
	return nil
}

func (h *Handlers) writePrincipal(w http.ResponseWriter, r *http.Request, id string) {
	p, err := retry.Do(r.Context(), h.retry, func(ctx context.Context) (authcore.PrincipalView, error) {
		return h.engine.Principal(ctx, id)
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, principalBody(p))
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := Classify(err); status == http.StatusInternalServerError {
		h.log.WithError(err).Error("request failed", map[string]interface{}{
			"path":                r.URL.Path,
			logger.FieldRequestID: authcore.RequestIDFromContext(r.Context()),
		})
	}
	WriteError(w, r, err)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func tokenBody(p authcore.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        p.TokenType,
		ExpiresIn:        int64(p.AccessExpiresAt.Sub(p.IssuedAt).Seconds()),
		AccessExpiresAt:  p.AccessExpiresAt.Unix(),
		RefreshExpiresAt: p.RefreshExpiresAt.Unix(),
	}
}

func claimsBody(c *authcore.Claims) claimsResponse {
	return claimsResponse{
		Active:    true,
		Subject:   c.Subject,
		Issuer:    c.Issuer,
		Audience:  c.Audience,
		IssuedAt:  c.IssuedAt.Unix(),
		ExpiresAt: c.ExpiresAt.Unix(),
		TokenID:   c.ID,
		Scope:     c.Scope,
	}
}

func principalBody(p authcore.PrincipalView) principalResponse {
	out := principalResponse{
		ID:         p.ID,
		Identifier: p.Identifier,
		Status:     string(p.Status),
		Roles:      p.Roles,
		Metadata:   p.Metadata,
		CreatedAt:  p.CreatedAt,
	}
	if !p.LastAuthAt.IsZero() {
		t := p.LastAuthAt
		out.LastAuthAt = &t
	}
	return out
}
