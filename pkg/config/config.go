package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	EmailAction   EmailActionConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	CORS          CORSConfig
	Realtime      RealtimeConfig
	Payment       PaymentConfig
	Google        GoogleConfig
	Facebook      FacebookConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Realtime.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TOKOREA_APP_ENV" required:"true"`
	Port         string `envconfig:"TOKOREA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TOKOREA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TOKOREA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TOKOREA_DB_DSN"`
	Driver string `envconfig:"TOKOREA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TOKOREA_DB_HOST"`
	LegacyPort     int    `envconfig:"TOKOREA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TOKOREA_DB_USER"`
	LegacyPassword string `envconfig:"TOKOREA_DB_PASSWORD"`
	LegacyName     string `envconfig:"TOKOREA_DB_NAME"`
	LegacySSLMode  string `envconfig:"TOKOREA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TOKOREA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TOKOREA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TOKOREA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TOKOREA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"TOKOREA_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TOKOREA_REDIS_URL" required:"true"`
	Password     string        `envconfig:"TOKOREA_REDIS_PASSWORD"`
	DB           int           `envconfig:"TOKOREA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TOKOREA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TOKOREA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TOKOREA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TOKOREA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TOKOREA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"TOKOREA_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"TOKOREA_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"TOKOREA_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"TOKOREA_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
	SessionOnlyTTLMinutes  int    `envconfig:"TOKOREA_SESSION_ONLY_TTL_MINUTES" default:"720"`
}

// RefreshTokenTTL is the lifetime of a "remember me" sign-in.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

// SessionOnlyTTL bounds a sign-in the client asked not to remember.
func (j JWTConfig) SessionOnlyTTL() time.Duration {
	if j.SessionOnlyTTLMinutes <= 0 {
		return j.RefreshTokenTTL()
	}
	return time.Duration(j.SessionOnlyTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"TOKOREA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"TOKOREA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"TOKOREA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"TOKOREA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"TOKOREA_ARGON_KEY_LEN" default:"32"`
	MinLength        int `envconfig:"TOKOREA_PASSWORD_MIN_LENGTH" default:"8"`
}

// EmailActionConfig covers the single-use links mailed for email
// verification and password reset. ActionURL is the page that receives the
// mode and oobCode query parameters.
type EmailActionConfig struct {
	ActionURL string        `envconfig:"TOKOREA_EMAIL_ACTION_URL" default:"http://localhost:3000/auth/action"`
	VerifyTTL time.Duration `envconfig:"TOKOREA_EMAIL_VERIFY_TTL" default:"24h"`
	ResetTTL  time.Duration `envconfig:"TOKOREA_PASSWORD_RESET_TTL" default:"1h"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"TOKOREA_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"TOKOREA_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"TOKOREA_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"TOKOREA_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"TOKOREA_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"TOKOREA_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate              bool `envconfig:"TOKOREA_AUTO_MIGRATE" default:"false"`
	EnforceStatusTransitions bool `envconfig:"TOKOREA_ENFORCE_STATUS_TRANSITIONS" default:"false"`
	EmitOutboxEvents         bool `envconfig:"TOKOREA_EMIT_OUTBOX_EVENTS" default:"true"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"TOKOREA_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

const (
	RealtimeFeedLocal = "local"
	RealtimeFeedRedis = "redis"
)

type RealtimeConfig struct {
	Feed            string        `envconfig:"TOKOREA_REALTIME_FEED" default:"local"`
	Channel         string        `envconfig:"TOKOREA_REALTIME_CHANNEL" default:"tokorea:changes"`
	StreamKeepAlive time.Duration `envconfig:"TOKOREA_REALTIME_KEEPALIVE" default:"25s"`
}

func (r RealtimeConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(r.Feed)) {
	case RealtimeFeedLocal, RealtimeFeedRedis:
		return nil
	}
	return fmt.Errorf("%s must be %q or %q", EnvRealtimeFeed, RealtimeFeedLocal, RealtimeFeedRedis)
}

// UsesRedis reports whether change notifications cross process boundaries.
func (r RealtimeConfig) UsesRedis() bool {
	return strings.EqualFold(strings.TrimSpace(r.Feed), RealtimeFeedRedis)
}

type PaymentConfig struct {
	SimulatedDelay time.Duration `envconfig:"TOKOREA_PAYMENT_SIMULATED_DELAY" default:"2s"`
}

type GoogleConfig struct {
	ClientID string `envconfig:"TOKOREA_GOOGLE_CLIENT_ID"`
}

type FacebookConfig struct {
	GraphURL string        `envconfig:"TOKOREA_FACEBOOK_GRAPH_URL" default:"https://graph.facebook.com/v19.0"`
	Timeout  time.Duration `envconfig:"TOKOREA_FACEBOOK_TIMEOUT" default:"5s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"TOKOREA_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	ApplicationsTopic string `envconfig:"TOKOREA_PUBSUB_APPLICATIONS_TOPIC" default:"tokorea-application-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TOKOREA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TOKOREA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TOKOREA_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, key := range legacyDBEnvVars {
		if legacyValues[key] == "" {
			missing = append(missing, key)
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
