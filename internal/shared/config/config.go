package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"insurease-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	LogLevel        string
	DatabaseURL     string

	// Zero pool values keep the db package defaults.
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	DBPingTimeout     time.Duration

	JWTSecret         string
	JWTAlgorithm      string
	AccessTokenTTL    time.Duration
	CookieMaxAge      time.Duration
	BcryptCost        int
	MaxUploadBytes    int64
	PolicyStoreType   string
	BasePath          string
	AWSRegion         string
	S3Bucket          string
	S3Prefix          string
	S3KMSKeyID        string
	IndexDir          string
	IndexOnStartup    bool
	OpenAIAPIKey      string
	LLMModel          string
	EmbeddingModel    string
	OpenAITimeout     time.Duration
	CompareMaxChars   int
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	ChatbotRatePerMin int
	ChatbotRateBurst  int
	AdminEmail        string
	AdminPassword     string
}

const (
	defaultJWTSecret = "a_very_secret_key"
	defaultTokenTTL  = 7 * 24 * time.Hour
)

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience. A file that is
	// missing is skipped; values already in the environment win.
	for _, path := range []string{".env", "cmd/.env"} {
		_ = godotenv.Load(path)
	}

	env := normalizeEnv(getEnv("ENVIRONMENT", getEnv("ENV", "dev")))
	dbURL := os.Getenv("DATABASE_URL")
	secret := os.Getenv("JWT_SECRET_KEY")

	if env == "production" {
		if dbURL == "" {
			telemetry.Warn("config.missing", map[string]any{"key": "DATABASE_URL", "env": env})
		}
		if secret == "" {
			telemetry.Warn("config.missing", map[string]any{"key": "JWT_SECRET_KEY", "env": env})
		}
	}
	if secret == "" && env != "production" {
		secret = defaultJWTSecret
	}

	return Config{
		Port:              getEnv("PORT", "8080"),
		CORSAllowOrigin:   splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "https://localhost:3000,https://localhost:3001,https://localhost:3002")),
		Env:               env,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DatabaseURL:       dbURL,
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 0),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 0),
		DBConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 0),
		DBConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 0),
		DBPingTimeout:     getEnvDuration("DB_PING_TIMEOUT", 0),
		JWTSecret:         secret,
		JWTAlgorithm:      strings.ToUpper(getEnv("JWT_ALGORITHM", "HS256")),
		AccessTokenTTL:    getEnvMinutes("ACCESS_TOKEN_EXPIRE_MINUTES", defaultTokenTTL),
		CookieMaxAge:      time.Duration(getEnvInt("AUTH_COOKIE_MAX_AGE_SECONDS", 86400)) * time.Second,
		BcryptCost:        getEnvInt("AUTH_BCRYPT_COST", 10),
		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_BYTES", 25<<20)),
		PolicyStoreType:   normalizeStoreType(getEnv("POLICY_STORE", "local")),
		BasePath:          getEnv("BASE_PATH", "./insurance_policies"),
		AWSRegion:         getEnv("AWS_REGION", ""),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Prefix:          getEnv("S3_PREFIX", ""),
		S3KMSKeyID:        getEnv("S3_KMS_KEY_ID", ""),
		IndexDir:          getEnv("INDEX_DIR", "./index_cache"),
		IndexOnStartup:    getEnvBool("INDEX_ON_STARTUP", true),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		LLMModel:          getEnv("LLM_MODEL", "gpt-4o-mini"),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-ada-002"),
		OpenAITimeout:     time.Duration(getEnvInt("OPENAI_TIMEOUT_SECONDS", 120)) * time.Second,
		CompareMaxChars:   getEnvInt("COMPARE_MAX_CHARS", 50000),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		ChatbotRatePerMin: getEnvInt("CHATBOT_RATE_PER_MINUTE", 20),
		ChatbotRateBurst:  getEnvInt("CHATBOT_RATE_BURST", 5),
		AdminEmail:        strings.TrimSpace(os.Getenv("ADMIN_EMAIL")),
		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
	}
}

// IsDevLike reports whether missing infrastructure may fall back to in-memory substitutes.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "test":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("config.invalid", map[string]any{"key": key, "error": err})
		return def
	}
	return val
}

func getEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		telemetry.Warn("config.invalid", map[string]any{"key": key, "error": err})
		return def
	}
	return val
}

func getEnvMinutes(key string, def time.Duration) time.Duration {
	minutes := getEnvInt(key, 0)
	if minutes <= 0 {
		return def
	}
	return time.Duration(minutes) * time.Minute
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "test":
		return "test"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
