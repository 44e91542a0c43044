package authcore

import "time"

// SecurityReport summarizes the effective security posture of an engine.
// cmd/authd logs it at startup.
type SecurityReport struct {
	SigningAlgorithm      string
	SigningKeyID          string
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	ClockSkew             time.Duration
	Argon2                PasswordConfigReport
	UpgradeOnLogin        bool
	LoginThrottleActive   bool
	IPThrottleActive      bool
	RefreshThrottleActive bool
	RevocationCacheActive bool
	AuditEnabled          bool
}

// PasswordConfigReport mirrors the argon2id cost parameters in use.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	loginThrottle := e.limiter != nil && e.config.Security.MaxLoginAttempts > 0
	report := SecurityReport{
		AccessTTL:  e.config.JWT.AccessTTL,
		RefreshTTL: e.config.JWT.RefreshTTL,
		ClockSkew:  e.config.JWT.ClockSkew,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		UpgradeOnLogin:        e.config.Password.UpgradeOnLogin,
		LoginThrottleActive:   loginThrottle,
		IPThrottleActive:      loginThrottle && e.config.Security.EnableIPThrottle,
		RefreshThrottleActive: e.limiter != nil && e.config.Security.EnableRefreshThrottle,
		RevocationCacheActive: e.config.Store.RevocationCacheSize > 0,
		AuditEnabled:          e.audit != nil,
	}

	if set := e.keys.Load(); set != nil {
		report.SigningAlgorithm = string(set.Method())
		if k, err := set.CurrentKey(); err == nil {
			report.SigningKeyID = k.ID
		}
	}
	return report
}
