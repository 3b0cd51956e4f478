package config

const EnvPrefix = "SWISSLUCA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const defaultSQLiteDSN = "file:swissluca.db?cache=shared&_foreign_keys=on"

const (
	EnvAppEnv                  = "SWISSLUCA_APP_ENV"
	EnvPort                    = "SWISSLUCA_APP_PORT"
	EnvDBDSN                   = "SWISSLUCA_DB_DSN"
	EnvDBHost                  = "SWISSLUCA_DB_HOST"
	EnvDBUser                  = "SWISSLUCA_DB_USER"
	EnvDBName                  = "SWISSLUCA_DB_NAME"
	EnvUseSQLite               = "SWISSLUCA_USE_SQLITE"
	EnvRedisURL                = "SWISSLUCA_REDIS_URL"
	EnvJWTSecret               = "SWISSLUCA_JWT_SECRET"
	EnvJWTIssuer               = "SWISSLUCA_JWT_ISSUER"
	EnvActivationUsageFactor   = "SWISSLUCA_ACTIVATION_USAGE_FACTOR"
	EnvActivationBlockDuration = "SWISSLUCA_ACTIVATION_BLOCK_DURATION"
	EnvStripeAPIKey            = "SWISSLUCA_STRIPE_API_KEY"
	EnvStripeWebhookSecret     = "SWISSLUCA_STRIPE_WEBHOOK_SECRET"
	EnvTrialDays               = "SWISSLUCA_SUBSCRIPTION_TRIAL_DAYS"
)

var dbEnvVars = []string{
	EnvDBHost,
	EnvDBUser,
	EnvDBName,
}
