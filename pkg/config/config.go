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
	HTTP         HTTPConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Media        MediaConfig
	Breaker      BreakerConfig
	RateLimit    RateLimitConfig
	Cleanup      CleanupConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Media.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STUDYABROAD_APP_ENV" required:"true"`
	Port         string `envconfig:"STUDYABROAD_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STUDYABROAD_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STUDYABROAD_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"STUDYABROAD_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"STUDYABROAD_SERVICE_KIND" default:"api"`
}

type HTTPConfig struct {
	ReadTimeout     time.Duration `envconfig:"STUDYABROAD_HTTP_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"STUDYABROAD_HTTP_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"STUDYABROAD_HTTP_SHUTDOWN_TIMEOUT" default:"15s"`
	CORSOrigins     []string      `envconfig:"STUDYABROAD_CORS_ORIGINS" default:"http://localhost:3000"`
}

type DBConfig struct {
	DSN    string `envconfig:"STUDYABROAD_DB_DSN"`
	Driver string `envconfig:"STUDYABROAD_DB_DRIVER" default:"postgres"`

	SQLitePath string `envconfig:"STUDYABROAD_SQLITE_PATH" default:"studyabroad.db"`

	LegacyHost     string `envconfig:"STUDYABROAD_DB_HOST"`
	LegacyPort     int    `envconfig:"STUDYABROAD_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STUDYABROAD_DB_USER"`
	LegacyPassword string `envconfig:"STUDYABROAD_DB_PASSWORD"`
	LegacyName     string `envconfig:"STUDYABROAD_DB_NAME"`
	LegacySSLMode  string `envconfig:"STUDYABROAD_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STUDYABROAD_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STUDYABROAD_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STUDYABROAD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STUDYABROAD_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"STUDYABROAD_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STUDYABROAD_REDIS_URL"`
	Address      string        `envconfig:"STUDYABROAD_REDIS_ADDR"`
	Password     string        `envconfig:"STUDYABROAD_REDIS_PASSWORD"`
	DB           int           `envconfig:"STUDYABROAD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STUDYABROAD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STUDYABROAD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STUDYABROAD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STUDYABROAD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STUDYABROAD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite     bool   `envconfig:"STUDYABROAD_USE_SQLITE" default:"false"`
	AutoMigrate   bool   `envconfig:"STUDYABROAD_AUTO_MIGRATE" default:"false"`
	GCSAccessMode string `envconfig:"STUDYABROAD_GCS_ACCESS_MODE" default:"signed"`
}

// PublicGCS reports whether preview URLs should point at public objects instead of signed ones.
func (f FeatureFlagsConfig) PublicGCS() bool {
	return strings.EqualFold(strings.TrimSpace(f.GCSAccessMode), GCSAccessPublic)
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STUDYABROAD_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STUDYABROAD_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STUDYABROAD_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName     string `envconfig:"STUDYABROAD_GCS_BUCKET_NAME"`
	SkipStartPing  bool   `envconfig:"STUDYABROAD_GCS_SKIP_START_PING" default:"false"`
	PublicEndpoint string `envconfig:"STUDYABROAD_GCS_PUBLIC_ENDPOINT" default:"https://storage.googleapis.com"`
}

type MediaConfig struct {
	Driver                string        `envconfig:"STUDYABROAD_MEDIA_DRIVER" default:"local"`
	LocalDir              string        `envconfig:"STUDYABROAD_MEDIA_LOCAL_DIR" default:"./data/media"`
	PublicBaseURL         string        `envconfig:"STUDYABROAD_MEDIA_PUBLIC_BASE_URL" default:"http://localhost:8080"`
	SigningSecret         string        `envconfig:"STUDYABROAD_MEDIA_SIGNING_SECRET"`
	MaxUploadMB           int           `envconfig:"STUDYABROAD_MAX_UPLOAD_MB" default:"10"`
	PreviewTTL            time.Duration `envconfig:"STUDYABROAD_MEDIA_PREVIEW_TTL" default:"1h"`
	PreviewCacheTTL       time.Duration `envconfig:"STUDYABROAD_MEDIA_PREVIEW_CACHE_TTL" default:"30m"`
	PreviewCacheSize      int           `envconfig:"STUDYABROAD_MEDIA_PREVIEW_CACHE_SIZE" default:"2048"`
	ProjectionConcurrency int           `envconfig:"STUDYABROAD_MEDIA_PROJECTION_CONCURRENCY" default:"8"`
}

// MaxUploadBytes returns the upload cap in bytes.
func (m MediaConfig) MaxUploadBytes() int64 {
	if m.MaxUploadMB <= 0 {
		return 0
	}
	return int64(m.MaxUploadMB) * 1024 * 1024
}

func (m MediaConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(m.Driver)) {
	case MediaDriverLocal, MediaDriverGCS:
	default:
		return fmt.Errorf("unsupported media driver %q", m.Driver)
	}
	if m.PreviewCacheTTL >= m.PreviewTTL && m.PreviewTTL > 0 {
		return fmt.Errorf("%s must be shorter than %s", EnvMediaPreviewCacheTTL, EnvMediaPreviewTTL)
	}
	return nil
}

type BreakerConfig struct {
	Enabled          bool          `envconfig:"STUDYABROAD_BREAKER_ENABLED" default:"true"`
	MaxRequests      uint32        `envconfig:"STUDYABROAD_BREAKER_MAX_REQUESTS" default:"1"`
	Interval         time.Duration `envconfig:"STUDYABROAD_BREAKER_INTERVAL" default:"60s"`
	Timeout          time.Duration `envconfig:"STUDYABROAD_BREAKER_TIMEOUT" default:"30s"`
	FailureThreshold uint32        `envconfig:"STUDYABROAD_BREAKER_FAILURE_THRESHOLD" default:"5"`
}

type RateLimitConfig struct {
	SubmissionLimit  int           `envconfig:"STUDYABROAD_RATE_LIMIT_SUBMISSIONS" default:"5"`
	SubmissionWindow time.Duration `envconfig:"STUDYABROAD_RATE_LIMIT_SUBMISSIONS_WINDOW" default:"1m"`
}

type CleanupConfig struct {
	Interval    time.Duration `envconfig:"STUDYABROAD_CLEANUP_INTERVAL" default:"1h"`
	BatchSize   int           `envconfig:"STUDYABROAD_CLEANUP_BATCH_SIZE" default:"100"`
	MaxAttempts int           `envconfig:"STUDYABROAD_CLEANUP_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DBDriverSQLite
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
	if db.DSN != "" {
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
