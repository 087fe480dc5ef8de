package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	config, err := NewConfig()
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8080", config.GrpcListenAddress)
	require.Equal(t, "0.0.0.0:8000", config.HttpListenAddress)
	require.Equal(t, "db", config.SQLiteDirPath)
	require.Equal(t, 7*24*time.Hour, config.AccessTokenTTL())
	require.Nil(t, config.CA())
}

func TestOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://club.example.com,,")
	config, err := NewConfig()
	require.NoError(t, err)
	require.Equal(t, Origins{"http://localhost:3000", "https://club.example.com"}, config.AllowedOrigins)
}

func TestInvalidCertificate(t *testing.T) {
	var c Certificate
	require.Error(t, c.UnmarshalEnvironmentValue("not base64!"))
	require.Error(t, c.UnmarshalEnvironmentValue("aGVsbG8="))
}
