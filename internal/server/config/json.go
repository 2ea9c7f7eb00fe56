package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/storefront/internal/flagx"
	"github.com/dmitrijs2005/storefront/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations accept
// strings such as "15m" or integer nanoseconds.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC            string         `json:"endpoint_addr_grpc"`
	StoreBackend                string         `json:"store_backend"`
	DatabaseDSN                 string         `json:"database_dsn"`
	MongoURI                    string         `json:"mongo_uri"`
	MongoDatabase               string         `json:"mongo_database"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	ResetTokenValidityDuration  timex.Duration `json:"reset_token_validity_duration"`
	FrontendURL                 string         `json:"frontend_url"`
	AllowedOrigins              []string       `json:"allowed_origins"`
	TrustProxyHeaders           bool           `json:"trust_proxy_headers"`
	GoogleClientID              string         `json:"google_client_id"`
	GoogleClientSecret          string         `json:"google_client_secret"`
	OAuthCallbackURL            string         `json:"oauth_callback_url"`
	RedisAddr                   string         `json:"redis_addr"`
	AuthRateLimit               int            `json:"auth_rate_limit"`
	OutboxBucket                string         `json:"outbox_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
	Environment                 string         `json:"environment"`
	LogLevel                    string         `json:"log_level"`
}

// parseJson overlays the file named by -c/-config in args. Only fields
// present (non-zero) in the file are applied.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	set(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	set(&config.StoreBackend, c.StoreBackend)
	set(&config.DatabaseDSN, c.DatabaseDSN)
	set(&config.MongoURI, c.MongoURI)
	set(&config.MongoDatabase, c.MongoDatabase)
	set(&config.SecretKey, c.SecretKey)
	set(&config.FrontendURL, c.FrontendURL)
	set(&config.GoogleClientID, c.GoogleClientID)
	set(&config.GoogleClientSecret, c.GoogleClientSecret)
	set(&config.OAuthCallbackURL, c.OAuthCallbackURL)
	set(&config.RedisAddr, c.RedisAddr)
	set(&config.OutboxBucket, c.OutboxBucket)
	set(&config.S3Region, c.S3Region)
	set(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	set(&config.Environment, c.Environment)
	set(&config.LogLevel, c.LogLevel)

	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.ResetTokenValidityDuration.Duration != 0 {
		config.ResetTokenValidityDuration = c.ResetTokenValidityDuration.Duration
	}
	if len(c.AllowedOrigins) > 0 {
		config.AllowedOrigins = c.AllowedOrigins
	}
	if c.TrustProxyHeaders {
		config.TrustProxyHeaders = true
	}
	if c.AuthRateLimit != 0 {
		config.AuthRateLimit = c.AuthRateLimit
	}
	return nil
}
