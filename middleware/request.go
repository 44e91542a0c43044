package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/google/uuid"
)

const (
	HeaderRequestID    = "X-Request-ID"
	headerForwardedFor = "X-Forwarded-For"
)

// RequestContext attaches the client IP and a request id to the request
// context and echoes the id in the response. X-Forwarded-For is honoured
// only when trustProxy is set.
func RequestContext(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := r.Header.Get(HeaderRequestID)
			if rid == "" || len(rid) > 128 {
				rid = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, rid)

			ctx := authcore.WithRequestID(r.Context(), rid)
			ctx = authcore.WithClientIP(ctx, clientIP(r, trustProxy))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get(headerForwardedFor); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Recover converts a handler panic into a 500 and logs it.
func Recover(log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("handler panic", map[string]interface{}{
						"panic":               rec,
						"path":                r.URL.Path,
						logger.FieldRequestID: w.Header().Get(HeaderRequestID),
					})
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// AccessLog writes one debug line per request with method, path, status
// and duration.
func AccessLog(log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.Debug("request", map[string]interface{}{
				"method":              r.Method,
				"path":                r.URL.Path,
				"status":              rec.status,
				"duration_ms":         time.Since(start).Milliseconds(),
				logger.FieldRequestID: w.Header().Get(HeaderRequestID),
			})
		})
	}
}
