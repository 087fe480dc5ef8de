package config

import (
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Certificate struct {
	Raw *x509.Certificate
}

func (c *Certificate) UnmarshalEnvironmentValue(data string) error {
	decodedData, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("could not decode base64-encoded certificate: %w", err)
	}

	CACertBlock, _ := pem.Decode(decodedData)
	if CACertBlock == nil {
		return fmt.Errorf("CA certificate is invalid")
	}

	CACert, err := x509.ParseCertificate(CACertBlock.Bytes)
	if err != nil {
		return fmt.Errorf("could not parse CA cert: %w", err)
	}

	c.Raw = CACert

	return nil
}

// Origins is a comma separated list of CORS origins.
type Origins []string

func (o *Origins) UnmarshalEnvironmentValue(data string) error {
	var origins Origins
	for _, origin := range strings.Split(data, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	*o = origins
	return nil
}

type Config struct {
	GrpcListenAddress        string       `env:"GRPC_LISTEN_ADDRESS,default=0.0.0.0:8080"`
	HttpListenAddress        string       `env:"HTTP_LISTEN_ADDRESS,default=0.0.0.0:8000"`
	SQLiteDirPath            string       `env:"SQLITE_DIR_PATH,default=db"`
	PgDatabaseUrl            string       `env:"DATABASE_URL"`
	CACert                   *Certificate `env:"CA_CERT"`
	TokenSigningKey          string       `env:"TOKEN_SIGNING_KEY"`
	AccessTokenExpireMinutes int          `env:"ACCESS_TOKEN_EXPIRE_MINUTES,default=10080"`
	AllowedOrigins           Origins      `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	LogFile                  string       `env:"LOG_FILE"`
}

func NewConfig() (*Config, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// CA returns the configured API key root certificate, or nil when API keys
// are not checked.
func (c *Config) CA() *x509.Certificate {
	if c.CACert == nil {
		return nil
	}
	return c.CACert.Raw
}
