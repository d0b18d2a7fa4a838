package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string

	DBDriver string // sqlite|postgres|memory
	DBDSN    string

	BlobBasePath string

	EnableLocalAuth bool
	AuthHMACSecret  string
	TokenTTL        time.Duration

	AdminUser     string
	AdminPassHash string // bcrypt

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	// Language model gateway. Provider "none" selects the deterministic vetter.
	LLMProvider  string
	LLMBaseURL   string
	LLMAPIKey    string
	LLMModel     string
	GeminiAPIKey string
	GeminiModel  string
	LLMTimeout   time.Duration

	VetAutoPassThreshold    float64
	VetReviewCap            float64
	VetConcurrency          int
	VetSchedule             string
	VetBatchLimit           int
	VetPublishOnHighQuality bool
	VetMinQualityToPublish  float64

	RedisAddr        string
	InstanceCacheTTL time.Duration

	LogLevel string
	LogDev   bool
}

// FromEnv reads the process environment, after loading .env when present.
func FromEnv() Config {
	_ = godotenv.Load()

	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	return Config{
		Mode:               mode,
		HTTPAddr:           envOr("HTTP_ADDR", ":8080"),
		DBDriver:           envOr("DB_DRIVER", "sqlite"),
		DBDSN:              envOr("DB_DSN", ""),
		BlobBasePath:       envOr("BLOB_BASE_PATH", "./data"),
		EnableLocalAuth:    envBool("ENABLE_LOCAL_AUTH", true),
		AuthHMACSecret:     envOr("AUTH_HMAC_SECRET", "dev-secret-change-me"),
		TokenTTL:           envDuration("AUTH_TOKEN_TTL", 8*time.Hour),
		AdminUser:          envOr("ADMIN_USER", "admin"),
		AdminPassHash:      envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://examprep.mindengage.ai"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:5173"),

		LLMProvider:  strings.ToLower(envOr("LLM_PROVIDER", "none")),
		LLMBaseURL:   envOr("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:    os.Getenv("LLM_API_KEY"),
		LLMModel:     envOr("LLM_MODEL", "gpt-4o-mini"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  envOr("GEMINI_MODEL", "gemini-2.5-flash"),
		LLMTimeout:   envDuration("LLM_TIMEOUT", 20*time.Second),

		VetAutoPassThreshold:    envFloat("VET_AUTO_PASS_THRESHOLD", 0.85),
		VetReviewCap:            envFloat("VET_REVIEW_CAP", 0.6),
		VetConcurrency:          envInt("VET_CONCURRENCY", 4),
		VetSchedule:             envOr("VET_SCHEDULE", "*/15 * * * *"),
		VetBatchLimit:           envInt("VET_BATCH_LIMIT", 50),
		VetPublishOnHighQuality: envBool("VET_PUBLISH_ON_HIGH_QUALITY", false),
		VetMinQualityToPublish:  envFloat("VET_MIN_QUALITY_TO_PUBLISH", 0.85),

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		InstanceCacheTTL: envDuration("INSTANCE_CACHE_TTL", 24*time.Hour),

		LogLevel: envOr("LOG_LEVEL", "info"),
		LogDev:   envBool("LOG_DEV", mode == ModeOffline),
	}
}

// CORSOrigins returns the allow-list for the current mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envInt(k string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return def
	}
	return n
}
func envFloat(k string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(k)), 64)
	if err != nil {
		return def
	}
	return f
}
func envDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(k)))
	if err != nil {
		return def
	}
	return d
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
