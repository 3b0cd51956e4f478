package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Activation   ActivationConfig
	Subscription SubscriptionConfig
	GoogleMaps   GoogleMapsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Activation.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SWISSLUCA_APP_ENV" required:"true"`
	Port         string `envconfig:"SWISSLUCA_APP_PORT" default:"3001"`
	LogLevel     string `envconfig:"SWISSLUCA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SWISSLUCA_LOG_WARN_STACK" default:"false"`
	Timezone     string `envconfig:"SWISSLUCA_TIMEZONE" default:"Europe/Zurich"`
	// CORSOrigins overrides the built-in web client origins (comma separated).
	CORSOrigins []string `envconfig:"SWISSLUCA_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// Location resolves the configured timezone, falling back to UTC.
func (a AppConfig) Location() *time.Location {
	name := strings.TrimSpace(a.Timezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

type ServiceConfig struct {
	Kind string `envconfig:"SWISSLUCA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SWISSLUCA_DB_DSN"`
	Driver string `envconfig:"SWISSLUCA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SWISSLUCA_DB_HOST"`
	Port     int    `envconfig:"SWISSLUCA_DB_PORT" default:"5432"`
	User     string `envconfig:"SWISSLUCA_DB_USER"`
	Password string `envconfig:"SWISSLUCA_DB_PASSWORD"`
	Name     string `envconfig:"SWISSLUCA_DB_NAME"`
	SSLMode  string `envconfig:"SWISSLUCA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SWISSLUCA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SWISSLUCA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SWISSLUCA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SWISSLUCA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"SWISSLUCA_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SWISSLUCA_REDIS_URL"`
	Address      string        `envconfig:"SWISSLUCA_REDIS_ADDR"`
	Password     string        `envconfig:"SWISSLUCA_REDIS_PASSWORD"`
	DB           int           `envconfig:"SWISSLUCA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SWISSLUCA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SWISSLUCA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SWISSLUCA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SWISSLUCA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SWISSLUCA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"SWISSLUCA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SWISSLUCA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SWISSLUCA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type RateLimitConfig struct {
	PaymentWindow time.Duration `envconfig:"SWISSLUCA_RATE_LIMIT_PAYMENT_WINDOW" default:"1m"`
	PaymentLimit  int           `envconfig:"SWISSLUCA_RATE_LIMIT_PAYMENT_LIMIT" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SWISSLUCA_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SWISSLUCA_AUTO_MIGRATE" default:"false"`
}

// ActivationConfig tunes the offer redemption lifecycle.
type ActivationConfig struct {
	// UsageFactor is the share of the listed price charged at activation (1.0 = full price).
	UsageFactor      string        `envconfig:"SWISSLUCA_ACTIVATION_USAGE_FACTOR" default:"1.0"`
	ActivatingWindow time.Duration `envconfig:"SWISSLUCA_ACTIVATION_ACTIVATING_WINDOW" default:"60s"`
	BlockDuration    time.Duration `envconfig:"SWISSLUCA_ACTIVATION_BLOCK_DURATION" default:"15m"`
	PendingTTL       time.Duration `envconfig:"SWISSLUCA_ACTIVATION_PENDING_TTL" default:"30m"`
	PendingCapacity  int           `envconfig:"SWISSLUCA_ACTIVATION_PENDING_CAPACITY" default:"10000"`
	TickInterval     time.Duration `envconfig:"SWISSLUCA_ACTIVATION_TICK_INTERVAL" default:"1s"`
	Currency         string        `envconfig:"SWISSLUCA_ACTIVATION_CURRENCY" default:"chf"`
}

// Factor parses UsageFactor as a decimal.
func (a ActivationConfig) Factor() decimal.Decimal {
	factor, err := decimal.NewFromString(strings.TrimSpace(a.UsageFactor))
	if err != nil {
		return decimal.NewFromInt(1)
	}
	return factor
}

func (a ActivationConfig) validate() error {
	factor, err := decimal.NewFromString(strings.TrimSpace(a.UsageFactor))
	if err != nil {
		return fmt.Errorf("%s must be a decimal: %w", EnvActivationUsageFactor, err)
	}
	if factor.IsNegative() || factor.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be between 0 and 1", EnvActivationUsageFactor)
	}
	if a.BlockDuration <= 0 {
		return fmt.Errorf("%s must be positive", EnvActivationBlockDuration)
	}
	return nil
}

type SubscriptionConfig struct {
	TrialDays    int    `envconfig:"SWISSLUCA_SUBSCRIPTION_TRIAL_DAYS" default:"7"`
	MonthlyPrice string `envconfig:"SWISSLUCA_SUBSCRIPTION_MONTHLY_PRICE" default:"9.90"`
	YearlyPrice  string `envconfig:"SWISSLUCA_SUBSCRIPTION_YEARLY_PRICE" default:"99.00"`
}

// TrialPeriod returns the trial length granted at profile creation.
func (s SubscriptionConfig) TrialPeriod() time.Duration {
	if s.TrialDays <= 0 {
		return 0
	}
	return time.Duration(s.TrialDays) * 24 * time.Hour
}

type GoogleMapsConfig struct {
	APIKey string `envconfig:"SWISSLUCA_GOOGLE_MAPS_API_KEY"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SWISSLUCA_GCP_PROJECT_ID"`
	// CredentialsJSON wins over ApplicationCredentials; with neither set the
	// SDK falls back to ambient credentials.
	CredentialsJSON        string `envconfig:"SWISSLUCA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SWISSLUCA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"SWISSLUCA_PUBSUB_DOMAIN_TOPIC" default:"swissluca-domain-events"`
}

type StripeConfig struct {
	APIKey string `envconfig:"SWISSLUCA_STRIPE_API_KEY"`
	Secret string `envconfig:"SWISSLUCA_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"SWISSLUCA_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"SWISSLUCA_CRON_INTERVAL" default:"1h"`
	LockTTL           time.Duration `envconfig:"SWISSLUCA_CRON_LOCK_TTL" default:"55m"`
	ExpiryBatchSize   int           `envconfig:"SWISSLUCA_CRON_EXPIRY_BATCH_SIZE" default:"500"`
	ReconcileMinAge   time.Duration `envconfig:"SWISSLUCA_CRON_RECONCILE_MIN_AGE" default:"1h"`
	ReconcileLookback time.Duration `envconfig:"SWISSLUCA_CRON_RECONCILE_LOOKBACK" default:"168h"`
	ReconcileLimit    int           `envconfig:"SWISSLUCA_CRON_RECONCILE_LIMIT" default:"250"`
	JobTimeout        time.Duration `envconfig:"SWISSLUCA_CRON_JOB_TIMEOUT" default:"10m"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if db.DSN != "" {
		return nil
	}
	if sqlite {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
