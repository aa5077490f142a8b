package config

import "time"

type GatewayConfig interface {
	GetAPIBaseURL() string
	GetRequestTimeout() time.Duration
}

type Gateway struct{}

var _ GatewayConfig = Gateway{}

// GetAPIBaseURL returns the backend REST root every request path is appended to
func (Gateway) GetAPIBaseURL() string {
	return GetEnv("API_BASE_URL", "http://localhost:5000/api")
}

func (Gateway) GetRequestTimeout() time.Duration {
	return GetDuration("REQUEST_TIMEOUT", 15*time.Second)
}
