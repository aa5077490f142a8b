package config

import (
	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	GatewayConfig
	SessionConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetDataFolder() string
	GetCredentialsDBPath() string
	GetCredentialsKey() string
}

type mainConfig struct {
	EnvVars
	Gateway
	Session
}

func New() Config {
	return mainConfig{}
}

// Load reads the given .env files (".env" when none are given) into the process
// environment and returns the env-backed config. Missing files are not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if fileExists(f) {
			existing = append(existing, f)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return nil, err
		}
	}
	return New(), nil
}
