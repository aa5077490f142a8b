package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jrsteele09/go-storefront-gateway/internal/config"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("LIVENESS_INTERVAL", "")
	t.Setenv("FOLDER", "")

	c := config.New()
	require.Equal(t, "http://localhost:5000/api", c.GetAPIBaseURL())
	require.Equal(t, 5*time.Minute, c.GetLivenessInterval())
	require.Equal(t, filepath.Join("./data", "credentials.db"), c.GetCredentialsDBPath())
	require.Equal(t, "", c.GetCredentialsKey())
}

func TestConfig_EnvOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.sa")
	t.Setenv("LIVENESS_INTERVAL", "30s")
	t.Setenv("REQUEST_TIMEOUT", "not-a-duration")

	c := config.New()
	require.Equal(t, "https://api.example.sa", c.GetAPIBaseURL())
	require.Equal(t, 30*time.Second, c.GetLivenessInterval())
	require.Equal(t, 15*time.Second, c.GetRequestTimeout())
}

func TestLoad(t *testing.T) {
	t.Run("missing file is ignored", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "absent.env"))
		require.NoError(t, err)
	})

	t.Run("env file populates unset vars", func(t *testing.T) {
		t.Setenv("APP_NAME", "")
		os.Unsetenv("APP_NAME")

		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("APP_NAME=Matjar\n"), 0o600))

		c, err := config.Load(path)
		require.NoError(t, err)
		require.Equal(t, "Matjar", c.GetAppName())
	})
}
