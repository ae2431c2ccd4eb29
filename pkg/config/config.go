// pkg/config/config.go
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env      string
	HTTPAddr string // probe-service

	// Identity provider and gateway endpoints under test
	TokenURL   string
	GatewayURL string

	// JMESPath expressions for token endpoint responses
	TokenField string
	ErrorField string

	// Zero keeps the transport default.
	HTTPTimeout time.Duration

	// Optional YAML file with the probe settings (org, client, target, roles)
	SettingsFile string
}

func Load() Config {
	_ = godotenv.Load()
	return Config{
		Env:          env("PROBE_ENV", "dev"),
		HTTPAddr:     env("PROBE_HTTP_ADDR", ":8090"),
		TokenURL:     env("PROBE_TOKEN_URL", "http://localhost:3000/api/auth/token"),
		GatewayURL:   env("PROBE_GATEWAY_URL", "http://localhost:3000/api/gateway/chat"),
		TokenField:   env("PROBE_TOKEN_FIELD", "access_token"),
		ErrorField:   env("PROBE_ERROR_FIELD", "error"),
		HTTPTimeout:  envDur("PROBE_HTTP_TIMEOUT_SEC", 0) * time.Second,
		SettingsFile: env("PROBE_SETTINGS_FILE", ""),
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
