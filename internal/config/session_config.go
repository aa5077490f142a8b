package config

import "time"

type SessionConfig interface {
	GetLivenessInterval() time.Duration
	GetExpiryRedirectDelay() time.Duration
}

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetLivenessInterval() time.Duration {
	return GetDuration("LIVENESS_INTERVAL", 5*time.Minute)
}

// GetExpiryRedirectDelay is the countdown shown before an expired session is sent to login
func (Session) GetExpiryRedirectDelay() time.Duration {
	return GetDuration("EXPIRY_REDIRECT_DELAY", 5*time.Second)
}
