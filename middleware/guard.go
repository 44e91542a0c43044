package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/authcore"
)

// Validator is the part of authcore.Engine the guard depends on.
type Validator interface {
	Validate(ctx context.Context, accessToken string) (*authcore.Claims, error)
}

// ErrorWriter renders a rejected request. err is the engine error, or
// [ErrMissingToken] when no bearer token was presented.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by [Guard].
func ClaimsFromContext(ctx context.Context) (*authcore.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*authcore.Claims)
	return c, ok && c != nil
}

// WithClaims stores claims in ctx. Exposed for handler tests.
func WithClaims(ctx context.Context, c *authcore.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, c)
}

type guardOptions struct {
	public  map[string]struct{}
	onError ErrorWriter
}

// GuardOption configures [Guard].
type GuardOption func(*guardOptions)

// WithPublicPaths lets requests for the exact paths through without a token.
func WithPublicPaths(paths ...string) GuardOption {
	return func(o *guardOptions) {
		for _, p := range paths {
			o.public[p] = struct{}{}
		}
	}
}

// WithErrorWriter replaces the default plain-text 401 response.
func WithErrorWriter(fn ErrorWriter) GuardOption {
	return func(o *guardOptions) {
		if fn != nil {
			o.onError = fn
		}
	}
}

// Guard requires a valid bearer access token on every non-public path.
func Guard(v Validator, opts ...GuardOption) func(http.Handler) http.Handler {
	o := guardOptions{
		public:  make(map[string]struct{}),
		onError: defaultGuardError,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := o.public[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if v == nil {
				o.onError(w, r, authcore.ErrEngineNotReady)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				o.onError(w, r, ErrMissingToken)
				return
			}

			claims, err := v.Validate(r.Context(), token)
			if err != nil {
				o.onError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func defaultGuardError(w http.ResponseWriter, _ *http.Request, _ error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="authcore"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
