package config

import "os"

const (
	appNameVar     = "APP_NAME"
	ssoBaseURLVar  = "SSO_BASE_URL"
	apiBaseURLVar  = "API_BASE_URL"
	consumerURLVar = "OAUTH_CONSUMER_URL"
	folderEnvVar   = "FOLDER"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Go Auth Client")
}

// GetSSOBaseURL returns the base URL of the vendor's single-sign-on host
// (e.g. "https://sso.garmin.com/sso"). The signin, embed and verifyMFA
// pages all hang off this URL.
func (EnvVars) GetSSOBaseURL() string {
	return GetEnv(ssoBaseURLVar, "https://sso.garmin.com/sso")
}

// GetAPIBaseURL returns the base URL of the authenticated API host, which
// serves the token exchange endpoints and the profile endpoint.
func (EnvVars) GetAPIBaseURL() string {
	return GetEnv(apiBaseURLVar, "https://connectapi.garmin.com")
}

// GetConsumerURL returns the bootstrap endpoint that publishes the shared
// OAuth consumer key/secret pair.
func (EnvVars) GetConsumerURL() string {
	return GetEnv(consumerURLVar, "https://thegarth.s3.amazonaws.com/oauth_consumer.json")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
