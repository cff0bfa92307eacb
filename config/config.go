package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Listing source kinds accepted by LISTING_SOURCE.
const (
	SourceFixture  = "fixture"
	SourcePostgres = "postgres"
	SourceHTTP     = "http"
	SourceBrowser  = "browser"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	HTTPAddr           string
	RateLimitPerMinute int
	CORSOrigins        []string

	ListingSource string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LastSearchTTL time.Duration

	RemoteListingsURL string
	RemoteAPIKey      string
	RemoteShape       string

	BrowserStartURL        string
	BrowserMaxPages        int
	BrowserListingsPerPage int
	ChromeBin              string

	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int

	PageSize              int
	ReferenceLat          float64
	ReferenceLng          float64
	SynthesizeCoordinates bool

	FixtureSeed  uint64
	FixtureCount int

	LogLevel  string
	LogFormat string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		CORSOrigins:        getEnvList("CORS_ORIGINS", []string{"http://localhost:5173"}),

		ListingSource: strings.ToLower(getEnv("LISTING_SOURCE", SourceFixture)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "listings"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "listings123"),
		PostgresDB:       getEnv("POSTGRES_DB", "rental_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		LastSearchTTL: getEnvDuration("LAST_SEARCH_TTL", 30*24*time.Hour),

		RemoteListingsURL: getEnv("REMOTE_LISTINGS_URL", ""),
		RemoteAPIKey:      getEnv("REMOTE_API_KEY", ""),
		RemoteShape:       strings.ToLower(getEnv("REMOTE_SHAPE", "standard")),

		BrowserStartURL:        getEnv("BROWSER_START_URL", ""),
		BrowserMaxPages:        getEnvInt("BROWSER_MAX_PAGES", 2),
		BrowserListingsPerPage: getEnvInt("BROWSER_LISTINGS_PER_PAGE", 20),
		ChromeBin:              getEnv("CHROME_BIN", ""),

		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 2000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),

		PageSize:              getEnvInt("PAGE_SIZE", 6),
		ReferenceLat:          getEnvFloat("REFERENCE_LAT", 40.7128),
		ReferenceLng:          getEnvFloat("REFERENCE_LNG", -74.0060),
		SynthesizeCoordinates: getEnvBool("SYNTHESIZE_COORDINATES", false),

		FixtureSeed:  uint64(getEnvInt("FIXTURE_SEED", 42)),
		FixtureCount: getEnvInt("FIXTURE_COUNT", 60),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
