package config

// EnvPrefix is applied by envconfig on top of the explicit variable names below.
const EnvPrefix = "PERKPILOT"

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

// Environment variable names referenced outside struct tags (tests, error text).
const (
	EnvAppEnv = "PERKPILOT_APP_ENV"
	EnvPort   = "PERKPILOT_APP_PORT"

	EnvDBDSN  = "PERKPILOT_DB_DSN"
	EnvDBHost = "PERKPILOT_DB_HOST"
	EnvDBUser = "PERKPILOT_DB_USER"
	EnvDBName = "PERKPILOT_DB_NAME"

	EnvRedisURL = "PERKPILOT_REDIS_URL"

	EnvJWTSecret            = "PERKPILOT_JWT_SECRET"
	EnvJWTIssuer            = "PERKPILOT_JWT_ISSUER"
	EnvJWTExpirationMinutes = "PERKPILOT_JWT_EXPIRATION_MINUTES"

	EnvLicenseSigningSecret = "PERKPILOT_LICENSE_SIGNING_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
