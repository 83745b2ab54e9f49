package config

import "os"

// envPrefix is the shared prefix for all override variables.
const envPrefix = "SPDOC"

// Environment variable names for overrides. Secrets are usually supplied
// this way rather than written into the config file.
const (
	EnvConfig       = "SPDOC_CONFIG"
	EnvSiteURL      = "SPDOC_SITE_URL"
	EnvTenantID     = "SPDOC_TENANT_ID"
	EnvClientID     = "SPDOC_CLIENT_ID"
	EnvClientSecret = "SPDOC_CLIENT_SECRET"
	EnvLogLevel     = "SPDOC_LOG_LEVEL"
	EnvDBPath       = "SPDOC_DB_PATH"
)

// EnvOverrides holds values read from environment variables. Empty string
// means not set.
type EnvOverrides struct {
	ConfigPath   string
	SiteURL      string
	TenantID     string
	ClientID     string
	ClientSecret string
	LogLevel     string
	DBPath       string
}

// ReadEnvOverrides reads the override variables. It does not modify any
// Config; callers apply the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		SiteURL:      os.Getenv(EnvSiteURL),
		TenantID:     os.Getenv(EnvTenantID),
		ClientID:     os.Getenv(EnvClientID),
		ClientSecret: os.Getenv(EnvClientSecret),
		LogLevel:     os.Getenv(EnvLogLevel),
		DBPath:       os.Getenv(EnvDBPath),
	}
}
