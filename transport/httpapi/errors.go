package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
)

// ErrorBody is the JSON body of every non-2xx response.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

var errBadRequest = errors.New("malformed request body")

type errorMapping struct {
	err       error
	status    int
	code      string
	retryable bool
}

var errorMappings = []errorMapping{
	{errBadRequest, http.StatusBadRequest, "bad_request", false},
	{authcore.ErrInvalidRegistration, http.StatusBadRequest, "invalid_registration", false},
	{authcore.ErrInvalidRole, http.StatusBadRequest, "invalid_role", false},
	{authcore.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials", false},
	{middleware.ErrMissingToken, http.StatusUnauthorized, "missing_token", false},
	{authcore.ErrTokenInvalid, http.StatusUnauthorized, "invalid_token", false},
	{authcore.ErrTokenExpired, http.StatusUnauthorized, "token_expired", false},
	{authcore.ErrTokenRevoked, http.StatusUnauthorized, "token_revoked", false},
	{authcore.ErrRefreshAlreadyUsed, http.StatusUnauthorized, "refresh_reused", false},
	{middleware.ErrInsufficientScope, http.StatusForbidden, "forbidden", false},
	{authcore.ErrPrincipalNotFound, http.StatusNotFound, "not_found", false},
	{authcore.ErrDuplicateIdentifier, http.StatusConflict, "duplicate_identifier", false},
	{authcore.ErrAccountLocked, http.StatusLocked, "account_locked", false},
	{authcore.ErrLoginRateLimited, http.StatusTooManyRequests, "rate_limited", true},
	{authcore.ErrRefreshRateLimited, http.StatusTooManyRequests, "rate_limited", true},
	{authcore.ErrUnavailable, http.StatusServiceUnavailable, "unavailable", true},
	{authcore.ErrSigningKeyUnavailable, http.StatusServiceUnavailable, "signing_key_unavailable", false},
	{authcore.ErrEngineNotReady, http.StatusServiceUnavailable, "not_ready", true},
}

// Classify returns the status and body for err. Unknown errors are a 500
// whose message never echoes err.
func Classify(err error) (int, ErrorBody) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, ErrorBody{Code: m.code, Message: m.err.Error(), Retryable: m.retryable}
		}
	}
	return http.StatusInternalServerError, ErrorBody{Code: "internal", Message: "internal error"}
}

// WriteError renders err. It matches middleware.ErrorWriter.
func WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	status, body := Classify(err)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="authcore"`)
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
