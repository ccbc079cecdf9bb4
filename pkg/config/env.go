package config

// EnvPrefix is handed to envconfig; every field carries an explicit key so the prefix is informational.
const EnvPrefix = "STUDYABROAD"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	MediaDriverLocal = "local"
	MediaDriverGCS   = "gcs"

	GCSAccessPublic = "public"
	GCSAccessSigned = "signed"
)

const (
	EnvAppEnv   = "STUDYABROAD_APP_ENV"
	EnvPort     = "STUDYABROAD_APP_PORT"
	EnvLogLevel = "STUDYABROAD_LOG_LEVEL"

	EnvDBDSN  = "STUDYABROAD_DB_DSN"
	EnvDBHost = "STUDYABROAD_DB_HOST"
	EnvDBUser = "STUDYABROAD_DB_USER"
	EnvDBName = "STUDYABROAD_DB_NAME"

	EnvUseSQLite  = "STUDYABROAD_USE_SQLITE"
	EnvSQLitePath = "STUDYABROAD_SQLITE_PATH"

	EnvRedisURL = "STUDYABROAD_REDIS_URL"

	EnvGCSBucket = "STUDYABROAD_GCS_BUCKET_NAME"

	EnvMediaDriver          = "STUDYABROAD_MEDIA_DRIVER"
	EnvMediaLocalDir        = "STUDYABROAD_MEDIA_LOCAL_DIR"
	EnvMediaPreviewTTL      = "STUDYABROAD_MEDIA_PREVIEW_TTL"
	EnvMediaPreviewCacheTTL = "STUDYABROAD_MEDIA_PREVIEW_CACHE_TTL"
	EnvMaxUploadMB          = "STUDYABROAD_MAX_UPLOAD_MB"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
