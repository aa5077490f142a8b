package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	appNameVar        = "APP_NAME"
	envVar            = "ENV"
	logLevelVar       = "LOG_LEVEL"
	folderEnvVar      = "FOLDER"
	credentialsKeyVar = "CREDENTIALS_KEY"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Storefront")
}

func (EnvVars) GetEnv() string {
	return GetEnv(envVar, "DEV")
}

func (EnvVars) GetLogLevel() string {
	return GetEnv(logLevelVar, "info")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

// GetCredentialsDBPath returns the bbolt file holding both realms' tokens
func (e EnvVars) GetCredentialsDBPath() string {
	return filepath.Join(e.GetDataFolder(), "credentials.db")
}

// GetCredentialsKey returns the passphrase used to seal stored tokens.
// Empty disables sealing.
func (EnvVars) GetCredentialsKey() string {
	return GetEnv(credentialsKeyVar, "")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetDuration parses envVar with time.ParseDuration, returning defaultValue when
// the variable is unset or malformed.
func GetDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
