package config

import (
	"os"
	"time"
)

// parseEnv overlays configuration from environment variables. Only variables
// that are actually set override the current value, so the env layer stacks
// cleanly between the JSON file and command-line flags.
func parseEnv(config *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	setString("ADDRESS", &config.EndpointAddrHTTP)
	setString("DATABASE_DSN", &config.DatabaseDSN)
	setString("SECRET_KEY", &config.SecretKey)
	setString("TOKEN_ISSUER", &config.TokenIssuer)
	setString("TOKEN_AUDIENCE", &config.TokenAudience)
	setDuration("ACCESS_TOKEN_VALIDITY", &config.AccessTokenValidityDuration)
	setDuration("REFRESH_TOKEN_VALIDITY", &config.RefreshTokenValidityDuration)
	setString("S3_ROOT_USER", &config.S3RootUser)
	setString("S3_ROOT_PASSWORD", &config.S3RootPassword)
	setString("S3_BUCKET", &config.S3Bucket)
	setString("S3_REGION", &config.S3Region)
	setString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	setString("ADMIN_EMAIL", &config.AdminEmail)
}
