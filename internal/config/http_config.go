package config

import "time"

type HTTPConfig interface {
	GetHTTPTimeout() time.Duration
	GetUserAgent() string
}

type HTTP struct{}

var _ HTTPConfig = HTTP{}

// GetHTTPTimeout bounds every network call made by the client. Logins are
// short-lived sequential round-trips; a hung call is cut off here rather
// than cancelled mid-flight.
func (HTTP) GetHTTPTimeout() time.Duration {
	return 30 * time.Second
}

func (HTTP) GetUserAgent() string {
	return GetEnv("HTTP_USER_AGENT", "com.garmin.android.apps.connectmobile")
}
