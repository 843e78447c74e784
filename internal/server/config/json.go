package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/avdeev-dm/accountd/internal/flagx"
	"github.com/avdeev-dm/accountd/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "30s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	BaseURL                     string         `json:"base_url"`
	DatabaseDSN                 string         `json:"database_dsn"`
	RedisAddr                   string         `json:"redis_addr"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	OtpLifetime                 timex.Duration `json:"otp_lifetime"`
	OtpResendCooldown           timex.Duration `json:"otp_resend_cooldown"`
	BcryptCost                  int            `json:"bcrypt_cost"`
	GoogleClientID              string         `json:"google_client_id"`
	GoogleClientSecret          string         `json:"google_client_secret"`
	GoogleRedirectURI           string         `json:"google_redirect_uri"`
	S3RootUser                  string         `json:"s3_root_user"`
	S3RootPassword              string         `json:"s3_root_password"`
	S3Bucket                    string         `json:"s3_bucket"`
	S3Region                    string         `json:"s3_region"`
	S3BaseEndpoint              string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The JSON file path is taken from the -c or -config command-line flags.
// If neither is set, no JSON file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics.
//
// Empty string fields and zero durations in the file leave the corresponding
// Config values untouched, so a partial file only overrides what it names.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	overlayString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	overlayString(&config.BaseURL, c.BaseURL)
	overlayString(&config.DatabaseDSN, c.DatabaseDSN)
	overlayString(&config.RedisAddr, c.RedisAddr)
	overlayString(&config.SecretKey, c.SecretKey)
	overlayDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	overlayDuration(&config.OtpLifetime, c.OtpLifetime)
	overlayDuration(&config.OtpResendCooldown, c.OtpResendCooldown)
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	overlayString(&config.GoogleClientID, c.GoogleClientID)
	overlayString(&config.GoogleClientSecret, c.GoogleClientSecret)
	overlayString(&config.GoogleRedirectURI, c.GoogleRedirectURI)
	overlayString(&config.S3RootUser, c.S3RootUser)
	overlayString(&config.S3RootPassword, c.S3RootPassword)
	overlayString(&config.S3Bucket, c.S3Bucket)
	overlayString(&config.S3Region, c.S3Region)
	overlayString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func overlayString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func overlayDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
