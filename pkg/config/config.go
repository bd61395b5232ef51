package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Trades       TradesConfig
	Tiers        TiersConfig
	Sweeper      SweeperConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Discord      DiscordConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Tiers.validate(); err != nil {
		return nil, err
	}
	if cfg.Trades.DefaultTTL <= 0 {
		return nil, fmt.Errorf("%s must be positive", EnvTradeDefaultTTL)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TRADEVOUCH_APP_ENV" required:"true"`
	Port         string `envconfig:"TRADEVOUCH_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"TRADEVOUCH_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"TRADEVOUCH_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"TRADEVOUCH_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"TRADEVOUCH_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TRADEVOUCH_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TRADEVOUCH_DB_DSN"`
	Driver string `envconfig:"TRADEVOUCH_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TRADEVOUCH_DB_HOST"`
	LegacyPort     int    `envconfig:"TRADEVOUCH_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TRADEVOUCH_DB_USER"`
	LegacyPassword string `envconfig:"TRADEVOUCH_DB_PASSWORD"`
	LegacyName     string `envconfig:"TRADEVOUCH_DB_NAME"`
	LegacySSLMode  string `envconfig:"TRADEVOUCH_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRADEVOUCH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRADEVOUCH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRADEVOUCH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRADEVOUCH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TRADEVOUCH_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TRADEVOUCH_REDIS_ADDR"`
	Password     string        `envconfig:"TRADEVOUCH_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRADEVOUCH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRADEVOUCH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRADEVOUCH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRADEVOUCH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRADEVOUCH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRADEVOUCH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig describes the tokens the bot gateway mints for each acting member.
type JWTConfig struct {
	Secret            string `envconfig:"TRADEVOUCH_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TRADEVOUCH_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TRADEVOUCH_JWT_EXPIRATION_MINUTES" default:"15"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TRADEVOUCH_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TRADEVOUCH_AUTO_MIGRATE" default:"true"`
}

type TradesConfig struct {
	DefaultTTL     time.Duration `envconfig:"TRADEVOUCH_TRADE_DEFAULT_TTL" default:"3h"`
	IDAttempts     int           `envconfig:"TRADEVOUCH_TRADE_ID_ATTEMPTS" default:"5"`
	IDLength       int           `envconfig:"TRADEVOUCH_TRADE_ID_LENGTH" default:"8"`
	IdempotencyTTL time.Duration `envconfig:"TRADEVOUCH_IDEMPOTENCY_TTL" default:"24h"`
}

// TiersConfig holds the thresholds applied to communities that never configured their own.
type TiersConfig struct {
	NewThreshold      int `envconfig:"TRADEVOUCH_TIER_NEW_THRESHOLD" default:"1"`
	VerifiedThreshold int `envconfig:"TRADEVOUCH_TIER_VERIFIED_THRESHOLD" default:"5"`
	TrustedThreshold  int `envconfig:"TRADEVOUCH_TIER_TRUSTED_THRESHOLD" default:"15"`
}

func (t TiersConfig) validate() error {
	if t.NewThreshold < 0 || t.NewThreshold > t.VerifiedThreshold || t.VerifiedThreshold > t.TrustedThreshold {
		return fmt.Errorf("tier thresholds must satisfy 0 <= new <= verified <= trusted (got %d/%d/%d)",
			t.NewThreshold, t.VerifiedThreshold, t.TrustedThreshold)
	}
	return nil
}

type SweeperConfig struct {
	Interval   time.Duration `envconfig:"TRADEVOUCH_SWEEP_INTERVAL" default:"60s"`
	BatchLimit int           `envconfig:"TRADEVOUCH_SWEEP_BATCH_LIMIT" default:"500"`
	LockTTL    time.Duration `envconfig:"TRADEVOUCH_SWEEP_LOCK_TTL" default:"2m"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"TRADEVOUCH_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"TRADEVOUCH_GCP_CREDENTIALS_JSON"`
}

// Enabled reports whether a GCP project is configured for event publishing.
func (p GCPConfig) Enabled() bool {
	return strings.TrimSpace(p.ProjectID) != ""
}

type PubSubConfig struct {
	TradeEventsTopic string `envconfig:"TRADEVOUCH_PUBSUB_TRADE_EVENTS_TOPIC" default:"tv-trade-events"`
	VouchEventsTopic string `envconfig:"TRADEVOUCH_PUBSUB_VOUCH_EVENTS_TOPIC" default:"tv-vouch-events"`
}

type DiscordConfig struct {
	BotToken string `envconfig:"TRADEVOUCH_DISCORD_BOT_TOKEN"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = defaultSQLiteDSN
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
