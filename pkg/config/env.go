package config

// EnvPrefix namespaces nested envconfig lookups. Every field also carries an
// explicit key that envconfig falls back to, so the prefix rarely matters.
const EnvPrefix = "TOKOREA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "TOKOREA_APP_ENV"
	EnvPort     = "TOKOREA_APP_PORT"
	EnvDBDSN    = "TOKOREA_DB_DSN"
	EnvDBHost   = "TOKOREA_DB_HOST"
	EnvDBUser   = "TOKOREA_DB_USER"
	EnvDBPass   = "TOKOREA_DB_PASSWORD"
	EnvDBName   = "TOKOREA_DB_NAME"
	EnvRedisURL = "TOKOREA_REDIS_URL"

	EnvJWTSecret              = "TOKOREA_JWT_SECRET"
	EnvJWTIssuer              = "TOKOREA_JWT_ISSUER"
	EnvJWTExpMins             = "TOKOREA_JWT_EXPIRATION_MINUTES"
	EnvRefreshTokenTTLMinutes = "TOKOREA_REFRESH_TOKEN_TTL_MINUTES"
	EnvRealtimeFeed           = "TOKOREA_REALTIME_FEED"
	EnvGoogleClientID         = "TOKOREA_GOOGLE_CLIENT_ID"
	EnvFacebookGraphURL       = "TOKOREA_FACEBOOK_GRAPH_URL"
)

// legacyDBEnvVars must all be set when no DSN is supplied.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
