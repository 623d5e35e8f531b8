package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port        string
	Env         string
	APIUrl      string
	FrontendURL string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBTimeZone string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// JWT
	JWTSecret                string
	JWTAccessTokenDuration   time.Duration
	JWTRefreshTokenDuration  time.Duration
	EmailVerifyTokenDuration time.Duration

	// Admin
	AdminEmail    string
	AdminPassword string
	AdminName     string

	// B2 object storage
	B2APIBase       string
	B2KeyID         string
	B2AppKey        string
	B2BucketID      string
	B2BucketName    string
	B2KeyPrefix     string
	B2AuthTTL       time.Duration
	CDNBaseURL      string
	StorageTimeout  time.Duration
	// StorageFallback accepts uploads during a storage outage instead of
	// failing them. The recorded URL points at this API but is not served
	// by any route; the image bytes exist nowhere until re-uploaded.
	StorageFallback bool

	// Backup S3 - separate account for daily DB dumps
	BackupS3Endpoint        string
	BackupS3Region          string
	BackupS3AccessKeyID     string
	BackupS3SecretAccessKey string
	BackupS3UsePathStyle    bool
	BackupBucket            string
	BackupEnabled           bool
	BackupInterval          time.Duration

	// Uploads
	UploadMaxImageSize int64
	UploadMaxPerDay    int

	// Plans (storage quota in bytes)
	FreeQuotaBytes     int64
	ProQuotaBytes      int64
	BusinessQuotaBytes int64

	// Stripe
	StripeSecretKey       string
	StripeWebhookSecret   string
	StripeSuccessURL      string
	StripeCancelURL       string
	StripeProPriceID      string
	StripeBusinessPriceID string

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Event log
	EventLogRetentionDays   int
	EventLogCleanupInterval time.Duration

	// Orphan reconciliation
	ReconcileEnabled     bool
	ReconcileInterval    time.Duration
	ReconcileGracePeriod time.Duration

	// Security
	BcryptCost        int
	RateLimitRequests int
	RateLimitDuration time.Duration

	// CORS
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

func New() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		APIUrl:      getEnv("API_URL", "http://localhost:8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "snapvault"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "snapvault_db"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),
		DBTimeZone: getEnv("DB_TIMEZONE", "UTC"),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// JWT
		JWTSecret:                getEnv("JWT_SECRET", "your-secret-key"),
		JWTAccessTokenDuration:   getEnvAsDuration("JWT_ACCESS_TOKEN_DURATION", "1h"),
		JWTRefreshTokenDuration:  getEnvAsDuration("JWT_REFRESH_TOKEN_DURATION", "168h"),
		EmailVerifyTokenDuration: getEnvAsDuration("EMAIL_VERIFY_TOKEN_DURATION", "48h"),

		// Admin
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@snapvault.io"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),

		// B2 object storage
		B2APIBase:       getEnv("B2_API_BASE", "https://api.backblazeb2.com"),
		B2KeyID:         getEnv("B2_KEY_ID", ""),
		B2AppKey:        getEnv("B2_APP_KEY", ""),
		B2BucketID:      getEnv("B2_BUCKET_ID", ""),
		B2BucketName:    getEnv("B2_BUCKET_NAME", "snapvault-images"),
		B2KeyPrefix:     getEnv("B2_KEY_PREFIX", "images/"),
		B2AuthTTL:       getEnvAsDuration("B2_AUTH_TTL", "23h"),
		CDNBaseURL:      getEnv("CDN_BASE_URL", ""),
		StorageTimeout:  getEnvAsDuration("STORAGE_TIMEOUT", "60s"),
		StorageFallback: getEnv("STORAGE_FALLBACK_ENABLED", "false") == "true",

		// Backup S3
		BackupS3Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
		BackupS3Region:          getEnv("BACKUP_S3_REGION", "us-east-1"),
		BackupS3AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
		BackupS3SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
		BackupS3UsePathStyle:    getEnv("BACKUP_S3_USE_PATH_STYLE", "true") == "true",
		BackupBucket:            getEnv("BACKUP_BUCKET", "snapvault-backups"),
		BackupEnabled:           getEnv("BACKUP_ENABLED", "false") == "true",
		BackupInterval:          getEnvAsDuration("BACKUP_INTERVAL", "24h"),

		// Uploads
		UploadMaxImageSize: getEnvAsInt64("UPLOAD_MAX_IMAGE_SIZE", 50*1024*1024),
		UploadMaxPerDay:    getEnvAsInt("UPLOAD_MAX_PER_DAY", 500),

		// Plans
		FreeQuotaBytes:     getEnvAsInt64("FREE_QUOTA_BYTES", 1*1024*1024*1024),
		ProQuotaBytes:      getEnvAsInt64("PRO_QUOTA_BYTES", 50*1024*1024*1024),
		BusinessQuotaBytes: getEnvAsInt64("BUSINESS_QUOTA_BYTES", 500*1024*1024*1024),

		// Stripe
		StripeSecretKey:       getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:   getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeSuccessURL:      getEnv("STRIPE_SUCCESS_URL", "https://snapvault.io/billing/success"),
		StripeCancelURL:       getEnv("STRIPE_CANCEL_URL", "https://snapvault.io/billing/cancel"),
		StripeProPriceID:      getEnv("STRIPE_PRO_PRICE_ID", ""),
		StripeBusinessPriceID: getEnv("STRIPE_BUSINESS_PRICE_ID", ""),

		// SMTP
		SMTPHost:     getEnv("SMTP_HOST", "smtp.snapvault.io"),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 465),
		SMTPUsername: getEnv("SMTP_USERNAME", "no-reply@snapvault.io"),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "no-reply@snapvault.io"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "SnapVault"),

		// Event log
		EventLogRetentionDays:   getEnvAsInt("EVENT_LOG_RETENTION_DAYS", 90),
		EventLogCleanupInterval: getEnvAsDuration("EVENT_LOG_CLEANUP_INTERVAL", "6h"),

		// Orphan reconciliation
		ReconcileEnabled:     getEnv("RECONCILE_ENABLED", "true") == "true",
		ReconcileInterval:    getEnvAsDuration("RECONCILE_INTERVAL", "1h"),
		ReconcileGracePeriod: getEnvAsDuration("RECONCILE_GRACE_PERIOD", "24h"),

		// Security
		BcryptCost:        getEnvAsInt("BCRYPT_COST", 12),
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitDuration: getEnvAsDuration("RATE_LIMIT_DURATION", "1m"),

		// CORS
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "https://snapvault.io"}),
		AllowedMethods: getEnvAsSlice("ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		AllowedHeaders: getEnvAsSlice("ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
	}
}

// QuotaForPlan returns the storage quota in bytes for a plan tier
func (c *Config) QuotaForPlan(plan string) int64 {
	switch plan {
	case "pro":
		return c.ProQuotaBytes
	case "business":
		return c.BusinessQuotaBytes
	default:
		return c.FreeQuotaBytes
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	if duration, err := time.ParseDuration(defaultValue); err == nil {
		return duration
	}
	return time.Hour
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
