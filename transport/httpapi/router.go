package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/MrEthical07/authcore/internal/retry"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/gorilla/mux"
)

// Options configures [NewRouter].
type Options struct {
	Log *logger.Logger
	// TrustProxy honours X-Forwarded-For for the client IP.
	TrustProxy bool
	// AdminRole may read any principal. Empty disables cross-principal reads.
	AdminRole string
	// Metrics, when set, is mounted at /metrics without authentication.
	Metrics http.Handler
	// Retry bounds retries of read-only engine calls. RetryIf is always
	// replaced with a check for authcore.ErrUnavailable.
	Retry retry.Config
}

// NewHandlers returns the route handlers without the middleware pipeline.
func NewHandlers(engine Engine, opts Options) *Handlers {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("http")

	rc := opts.Retry
	rc.RetryIf = func(err error) bool { return errors.Is(err, authcore.ErrUnavailable) }
	rc.OnRetry = func(err error, delay time.Duration) {
		log.WithError(err).Debug("retrying read", map[string]interface{}{"delay_ms": delay.Milliseconds()})
	}

	return &Handlers{
		engine:    engine,
		log:       log,
		retry:     rc,
		adminRole: opts.AdminRole,
	}
}

// NewRouter builds the full HTTP handler: request context, access logging
// and panic recovery around a mux router whose identity routes sit behind
// the bearer guard.
func NewRouter(engine Engine, opts Options) http.Handler {
	h := NewHandlers(engine, opts)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorBody{Code: "not_found", Message: "route not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorBody{Code: "method_not_allowed", Message: "method not allowed"})
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}
	h.RegisterRoutes(r, middleware.Guard(engine, middleware.WithErrorWriter(WriteError)))

	return middleware.Chain(r,
		middleware.RequestContext(opts.TrustProxy),
		middleware.AccessLog(h.log),
		middleware.Recover(h.log),
	)
}
