package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "STOREFRONT_"

// loadDotEnv copies variables from path into the environment without
// overriding ones already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// parseEnv overlays STOREFRONT_* variables onto config.
func parseEnv(config *Config) error {
	str := func(dst *string, name string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	str(&config.EndpointAddrHTTP, "HTTP_ADDR")
	str(&config.EndpointAddrGRPC, "GRPC_ADDR")
	str(&config.StoreBackend, "STORE")
	str(&config.DatabaseDSN, "DATABASE_DSN")
	str(&config.MongoURI, "MONGO_URI")
	str(&config.MongoDatabase, "MONGO_DB")
	str(&config.SecretKey, "SECRET_KEY")
	str(&config.FrontendURL, "FRONTEND_URL")
	str(&config.GoogleClientID, "GOOGLE_CLIENT_ID")
	str(&config.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	str(&config.OAuthCallbackURL, "OAUTH_CALLBACK_URL")
	str(&config.RedisAddr, "REDIS_ADDR")
	str(&config.RedisPassword, "REDIS_PASSWORD")
	str(&config.OutboxBucket, "OUTBOX_BUCKET")
	str(&config.S3Region, "S3_REGION")
	str(&config.S3BaseEndpoint, "S3_BASE_ENDPOINT")
	str(&config.S3RootUser, "S3_ROOT_USER")
	str(&config.S3RootPassword, "S3_ROOT_PASSWORD")
	str(&config.Environment, "ENV")
	str(&config.LogLevel, "LOG_LEVEL")

	if v, ok := os.LookupEnv(envPrefix + "ALLOWED_ORIGINS"); ok {
		config.AllowedOrigins = splitList(v)
	}

	durations := []struct {
		dst  *time.Duration
		name string
	}{
		{&config.AccessTokenValidityDuration, "ACCESS_TOKEN_TTL"},
		{&config.ResetTokenValidityDuration, "RESET_TOKEN_TTL"},
	}
	for _, d := range durations {
		v, ok := os.LookupEnv(envPrefix + d.name)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, d.name, err)
		}
		*d.dst = parsed
	}

	if v, ok := os.LookupEnv(envPrefix + "TRUST_PROXY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sTRUST_PROXY: %w", envPrefix, err)
		}
		config.TrustProxyHeaders = b
	}

	if v, ok := os.LookupEnv(envPrefix + "AUTH_RATE_LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sAUTH_RATE_LIMIT: %w", envPrefix, err)
		}
		config.AuthRateLimit = n
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
