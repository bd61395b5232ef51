package config

const (
	EnvPrefix = "TRADEVOUCH"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	defaultSQLiteDSN = "file:tradevouch.db?_foreign_keys=on"
)

const (
	EnvAppEnv   = "TRADEVOUCH_APP_ENV"
	EnvPort     = "TRADEVOUCH_APP_PORT"
	EnvLogLevel = "TRADEVOUCH_LOG_LEVEL"

	EnvDBDSN    = "TRADEVOUCH_DB_DSN"
	EnvDBDriver = "TRADEVOUCH_DB_DRIVER"
	EnvDBHost   = "TRADEVOUCH_DB_HOST"
	EnvDBUser   = "TRADEVOUCH_DB_USER"
	EnvDBName   = "TRADEVOUCH_DB_NAME"
	EnvDBPass   = "TRADEVOUCH_DB_PASSWORD"

	EnvRedisURL = "TRADEVOUCH_REDIS_URL"

	EnvJWTSecret  = "TRADEVOUCH_JWT_SECRET"
	EnvJWTIssuer  = "TRADEVOUCH_JWT_ISSUER"
	EnvJWTExpMins = "TRADEVOUCH_JWT_EXPIRATION_MINUTES"

	EnvUseSQLite = "TRADEVOUCH_USE_SQLITE"

	EnvTradeDefaultTTL = "TRADEVOUCH_TRADE_DEFAULT_TTL"

	EnvTierNewThreshold      = "TRADEVOUCH_TIER_NEW_THRESHOLD"
	EnvTierVerifiedThreshold = "TRADEVOUCH_TIER_VERIFIED_THRESHOLD"
	EnvTierTrustedThreshold  = "TRADEVOUCH_TIER_TRUSTED_THRESHOLD"

	EnvSweepInterval = "TRADEVOUCH_SWEEP_INTERVAL"

	EnvGCPProjectID     = "TRADEVOUCH_GCP_PROJECT_ID"
	EnvPubSubTradeTopic = "TRADEVOUCH_PUBSUB_TRADE_EVENTS_TOPIC"
	EnvDiscordBotToken  = "TRADEVOUCH_DISCORD_BOT_TOKEN"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
