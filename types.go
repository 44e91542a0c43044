package authcore

import (
	"io"
	"time"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	internalmetrics "github.com/MrEthical07/authcore/internal/metrics"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/store"
	"github.com/rs/zerolog"
)

// Claims are the verified claims of an access or refresh token.
type Claims = jwt.Claims

// TokenPair is an access token and a refresh token issued together. Both
// carry the same subject and issued-at.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	IssuedAt         time.Time
}

func pairFromJWT(p jwt.Pair) TokenPair {
	return TokenPair{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        "Bearer",
		AccessExpiresAt:  p.AccessClaims.ExpiresAt,
		RefreshExpiresAt: p.RefreshClaims.ExpiresAt,
		IssuedAt:         p.AccessClaims.IssuedAt,
	}
}

// RegisterRequest is the input for [Engine.Register]. Roles defaults to
// [RolesConfig.Default] when empty.
type RegisterRequest struct {
	Identifier string
	Secret     string
	Roles      []string
	Metadata   map[string]string
}

// PrincipalView is the caller-safe projection of a stored principal. It
// never carries the secret hash.
type PrincipalView struct {
	ID         string
	Identifier string
	Status     store.Status
	Roles      []string
	Metadata   map[string]string
	CreatedAt  time.Time
	LastAuthAt time.Time
}

func viewOf(p store.Principal) PrincipalView {
	p = p.Clone()
	return PrincipalView{
		ID:         p.ID,
		Identifier: p.Identifier,
		Status:     p.Status,
		Roles:      p.Roles,
		Metadata:   p.Metadata,
		CreatedAt:  p.CreatedAt,
		LastAuthAt: p.LastAuthAt,
	}
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// LogSink is an [AuditSink] that writes events through zerolog.
type LogSink = internalaudit.LogSink

// MultiSink fans events out to several sinks.
type MultiSink = internalaudit.MultiSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLogSink creates a [LogSink] on l.
func NewLogSink(l zerolog.Logger) *LogSink {
	return internalaudit.NewLogSink(l)
}

// MetricID identifies a counter or latency histogram.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess         = MetricID(internalmetrics.MetricLoginSuccess)
	MetricLoginFailure         = MetricID(internalmetrics.MetricLoginFailure)
	MetricLoginRateLimited     = MetricID(internalmetrics.MetricLoginRateLimited)
	MetricLoginLocked          = MetricID(internalmetrics.MetricLoginLocked)
	MetricRefreshSuccess       = MetricID(internalmetrics.MetricRefreshSuccess)
	MetricRefreshFailure       = MetricID(internalmetrics.MetricRefreshFailure)
	MetricRefreshReuseDetected = MetricID(internalmetrics.MetricRefreshReuseDetected)
	MetricRefreshRateLimited   = MetricID(internalmetrics.MetricRefreshRateLimited)
	MetricValidateSuccess      = MetricID(internalmetrics.MetricValidateSuccess)
	MetricValidateInvalid      = MetricID(internalmetrics.MetricValidateInvalid)
	MetricValidateExpired      = MetricID(internalmetrics.MetricValidateExpired)
	MetricValidateRevoked      = MetricID(internalmetrics.MetricValidateRevoked)
	MetricRegisterSuccess      = MetricID(internalmetrics.MetricRegisterSuccess)
	MetricRegisterDuplicate    = MetricID(internalmetrics.MetricRegisterDuplicate)
	MetricRegisterFailure      = MetricID(internalmetrics.MetricRegisterFailure)
	MetricLogout               = MetricID(internalmetrics.MetricLogout)
	MetricKeyRotation          = MetricID(internalmetrics.MetricKeyRotation)
	MetricStoreUnavailable     = MetricID(internalmetrics.MetricStoreUnavailable)
	MetricValidateLatency      = MetricID(internalmetrics.MetricValidateLatency)
	MetricLoginLatency         = MetricID(internalmetrics.MetricLoginLatency)
	MetricRefreshLatency       = MetricID(internalmetrics.MetricRefreshLatency)

	// MetricIDCount is one past the last valid MetricID.
	MetricIDCount = MetricID(internalmetrics.MetricIDCount)
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance. When Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Enabled,
		EnableLatencyHistograms: cfg.EnableLatencyHistograms,
	})
}
