package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/logger"
)

func TestRequestContextAttachesIPAndID(t *testing.T) {
	var ip, rid string
	h := RequestContext(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = authcore.ClientIPFromContext(r.Context())
		rid = authcore.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/login", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if ip != "203.0.113.7" || rid != "req-42" {
		t.Fatalf("unexpected context values ip=%q rid=%q", ip, rid)
	}
	if rec.Header().Get(HeaderRequestID) != "req-42" {
		t.Fatal("request id must be echoed")
	}
}

func TestRequestContextIgnoresProxyHeaderWhenUntrusted(t *testing.T) {
	var ip, rid string
	h := RequestContext(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = authcore.ClientIPFromContext(r.Context())
		rid = authcore.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/login", nil)
	req.RemoteAddr = "192.0.2.10:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if ip != "192.0.2.10" {
		t.Fatalf("expected remote addr host, got %q", ip)
	}
	if len(rid) != 36 {
		t.Fatalf("expected generated uuid request id, got %q", rid)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	stage := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), stage("a"), nil, stage("b"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if strings.Join(order, ",") != "a,b,handler" {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestRecoverAndAccessLog(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(logger.Config{Level: "debug", Format: "json"}, "authcore-test", &buf)

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), AccessLog(log), Recover(log))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/explode", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	out := buf.String()
	if !strings.Contains(out, "handler panic") || !strings.Contains(out, `"status":500`) {
		t.Fatalf("expected panic and access log lines, got %s", out)
	}
}
