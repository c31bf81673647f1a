package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchelldebbie563-a11y/guardbulldog23/internal/auth"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// StoreDriver selects the record store: mongo, postgres or sqlite.
	StoreDriver  string
	MongoURI     string
	DatabaseName string
	DatabaseURL  string
	SQLitePath   string

	JWTSecret string
	JWTExpire time.Duration

	InstitutionDomain string
	ReviewerRole      string
	AdminRole         string

	CorsOrigins     []string
	RateLimit       int
	RateLimitWindow time.Duration
	EnableMetrics   bool

	AttachmentStore string
	UploadPath      string
	MaxFileSize     int64
	MaxAttachments  int

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string

	AIAPIKey    string
	AIModelName string

	BootstrapAdminEmail    string
	BootstrapAdminPassword string
}

func Load() *Config {
	return &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),

		StoreDriver:  strings.ToLower(getEnvOrDefault("STORE_DRIVER", "mongo")),
		MongoURI:     getEnvOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
		DatabaseName: getEnvOrDefault("DATABASE_NAME", "guardbulldog"),
		DatabaseURL:  getEnvOrDefault("DATABASE_URL", ""),
		SQLitePath:   getEnvOrDefault("SQLITE_PATH", "guardbulldog.db"),

		JWTSecret: getEnvOrDefault("JWT_SECRET", ""), // Must be set outside development
		JWTExpire: getEnvDurationOrDefault("JWT_EXPIRE", 7*24*time.Hour),

		InstitutionDomain: strings.ToLower(getEnvOrDefault("INSTITUTION_DOMAIN", "bowie.edu")),
		ReviewerRole:      strings.ToLower(getEnvOrDefault("REVIEWER_ROLE", "staff")),
		AdminRole:         strings.ToLower(getEnvOrDefault("ADMIN_ROLE", "admin")),

		CorsOrigins:     getEnvListOrDefault("CORS_ORIGINS", []string{"http://localhost:3000"}),
		RateLimit:       getEnvIntOrDefault("RATE_LIMIT", 100),
		RateLimitWindow: time.Duration(getEnvIntOrDefault("RATE_LIMIT_WINDOW_MINUTES", 15)) * time.Minute,
		EnableMetrics:   getEnvBoolOrDefault("ENABLE_METRICS", true),

		AttachmentStore: strings.ToLower(getEnvOrDefault("ATTACHMENT_STORE", "disk")),
		UploadPath:      getEnvOrDefault("UPLOAD_PATH", "uploads"),
		MaxFileSize:     int64(getEnvIntOrDefault("MAX_FILE_SIZE", 10*1024*1024)),
		MaxAttachments:  getEnvIntOrDefault("MAX_ATTACHMENTS", 5),

		MinioEndpoint:  getEnvOrDefault("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnvOrDefault("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getEnvOrDefault("MINIO_SECRET_KEY", ""),
		MinioBucket:    getEnvOrDefault("MINIO_BUCKET", "report-attachments"),
		MinioUseSSL:    getEnvBoolOrDefault("MINIO_USE_SSL", false),

		S3Endpoint:  getEnvOrDefault("S3_ENDPOINT", ""),
		S3Region:    getEnvOrDefault("S3_REGION", "auto"),
		S3AccessKey: getEnvOrDefault("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnvOrDefault("S3_SECRET_KEY", ""),
		S3Bucket:    getEnvOrDefault("S3_BUCKET", "report-attachments"),

		AIAPIKey:    getEnvOrDefault("AI_API_KEY", ""),
		AIModelName: getEnvOrDefault("AI_MODEL_NAME", "gemini-2.5-flash"),

		BootstrapAdminEmail:    strings.ToLower(getEnvOrDefault("BOOTSTRAP_ADMIN_EMAIL", "")),
		BootstrapAdminPassword: getEnvOrDefault("BOOTSTRAP_ADMIN_PASSWORD", ""),
	}
}

// Validate rejects settings that would otherwise fail silently at request time.
func (c *Config) Validate() error {
	for key, role := range map[string]string{"REVIEWER_ROLE": c.ReviewerRole, "ADMIN_ROLE": c.AdminRole} {
		if !auth.IsKnownRole(role) {
			return fmt.Errorf("%s %q is not one of %s", key, role, strings.Join(auth.Roles(), ", "))
		}
	}
	if auth.Level(c.ReviewerRole) > auth.Level(c.AdminRole) {
		return fmt.Errorf("REVIEWER_ROLE %q ranks above ADMIN_ROLE %q", c.ReviewerRole, c.AdminRole)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

// getEnvDurationOrDefault accepts Go durations ("36h") and day counts ("7d").
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour
		}
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
