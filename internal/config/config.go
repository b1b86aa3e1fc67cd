// backend-go/internal/config/config.go
package config

import (
	"log"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Storage  StorageConfig
	DRP      DRPConfig
	Job      JobConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
	LogLevel       string
	LogJSON        bool // JSON lines instead of the console writer

	// RateLimit is the sustained requests/second accepted by the API; 0 disables it
	RateLimit float64
	RateBurst int
}

type DatabaseConfig struct {
	// URL, when set, is opened with the pgx driver and wins over the fields below
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AppConfig struct {
	DataDir string
}

type CacheConfig struct {
	Enabled        bool
	Backend        string // "redis" or "memory" (in-process, single instance only)
	RedisURL       string
	RedisHost      string
	RedisPort      string
	RedisPassword  string
	RedisDB        int
	PlanTTLSeconds int
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

// DRPConfig holds the replenishment policy defaults
type DRPConfig struct {
	LeadTimeDays     int
	SafetyDays       int
	WindowDays       int
	SourceBranch     string
	PriorityBranches []string
	BatchConcurrency int
}

type JobConfig struct {
	Workers   int
	OutputDir string
	// Branches limits the minimum-stock job; empty means every branch
	Branches []string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
		viper.SetDefault("DATABASE_URL", "")
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "autodrp")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("LOG_LEVEL", "info")
		viper.SetDefault("SERVER_RATE_LIMIT", 0)
		viper.SetDefault("SERVER_RATE_BURST", 30)
		viper.SetDefault("LOG_JSON", false)
		viper.SetDefault("APP_DATA_DIR", "./data")
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("CACHE_BACKEND", "redis")
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_PLAN_TTL_SECONDS", 300)
		viper.SetDefault("STORAGE_ENABLED", false)
		viper.SetDefault("STORAGE_ENDPOINT", "")
		viper.SetDefault("STORAGE_ACCESS_KEY", "")
		viper.SetDefault("STORAGE_SECRET_KEY", "")
		viper.SetDefault("STORAGE_BUCKET", "drp-reports")
		viper.SetDefault("STORAGE_USE_SSL", true)
		viper.SetDefault("STORAGE_PUBLIC_URL", "")
		viper.SetDefault("DRP_LEAD_TIME_DAYS", 7)
		viper.SetDefault("DRP_SAFETY_DAYS", 7)
		viper.SetDefault("DRP_WINDOW_DAYS", 90)
		viper.SetDefault("DRP_SOURCE_BRANCH", "")
		viper.SetDefault("DRP_PRIORITY_BRANCHES", "")
		viper.SetDefault("DRP_BATCH_CONCURRENCY", 4)
		viper.SetDefault("JOB_WORKERS", 4)
		viper.SetDefault("JOB_OUTPUT_DIR", "./data/reports")
		viper.SetDefault("JOB_BRANCHES", "")

		// Read from environment variables
		viper.AutomaticEnv()

		ensureDir(viper.GetString("APP_DATA_DIR"))

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
				LogLevel:       viper.GetString("LOG_LEVEL"),
				RateLimit:      viper.GetFloat64("SERVER_RATE_LIMIT"),
				RateBurst:      viper.GetInt("SERVER_RATE_BURST"),
				LogJSON:        viper.GetBool("LOG_JSON"),
			},
			Database: DatabaseConfig{
				URL:      viper.GetString("DATABASE_URL"),
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			App: AppConfig{
				DataDir: viper.GetString("APP_DATA_DIR"),
			},
			Cache: CacheConfig{
				Enabled:        viper.GetBool("CACHE_ENABLED"),
				Backend:        viper.GetString("CACHE_BACKEND"),
				RedisURL:       viper.GetString("REDIS_URL"),
				RedisHost:      viper.GetString("REDIS_HOST"),
				RedisPort:      viper.GetString("REDIS_PORT"),
				RedisPassword:  viper.GetString("REDIS_PASSWORD"),
				RedisDB:        viper.GetInt("REDIS_DB"),
				PlanTTLSeconds: viper.GetInt("CACHE_PLAN_TTL_SECONDS"),
			},
			Storage: StorageConfig{
				Enabled:   viper.GetBool("STORAGE_ENABLED"),
				Endpoint:  viper.GetString("STORAGE_ENDPOINT"),
				AccessKey: viper.GetString("STORAGE_ACCESS_KEY"),
				SecretKey: viper.GetString("STORAGE_SECRET_KEY"),
				Bucket:    viper.GetString("STORAGE_BUCKET"),
				UseSSL:    viper.GetBool("STORAGE_USE_SSL"),
				PublicURL: viper.GetString("STORAGE_PUBLIC_URL"),
			},
			DRP: DRPConfig{
				LeadTimeDays:     viper.GetInt("DRP_LEAD_TIME_DAYS"),
				SafetyDays:       viper.GetInt("DRP_SAFETY_DAYS"),
				WindowDays:       viper.GetInt("DRP_WINDOW_DAYS"),
				SourceBranch:     viper.GetString("DRP_SOURCE_BRANCH"),
				PriorityBranches: SplitList(viper.GetString("DRP_PRIORITY_BRANCHES")),
				BatchConcurrency: viper.GetInt("DRP_BATCH_CONCURRENCY"),
			},
			Job: JobConfig{
				Workers:   viper.GetInt("JOB_WORKERS"),
				OutputDir: viper.GetString("JOB_OUTPUT_DIR"),
				Branches:  SplitList(viper.GetString("JOB_BRANCHES")),
			},
		}
	})

	return instance
}

// SplitList parses a comma separated env value, dropping blanks
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
