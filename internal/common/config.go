package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Render   RenderConfig
	LLM      LLMConfig
	Pipeline PipelineConfig
	Store    StoreConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver          string // "sqlite" or "postgres"
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr        string
	APIToken        string // bearer token; empty disables auth
	ShutdownTimeout time.Duration
}

// RenderConfig holds cutout rendering configuration
type RenderConfig struct {
	Pdftoppm      string
	Scale         float64
	MaxCutoutEdge int
}

// LLMConfig holds extraction pass configuration
type LLMConfig struct {
	OpenAIModel       string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAITemperature float32
	OpenAITimeout     time.Duration
	GeminiModel       string
	GeminiAPIKey      string
	GeminiMaxRetries  int
	GeminiRetryDelay  time.Duration
}

// PipelineConfig holds run orchestration configuration
type PipelineConfig struct {
	CutoutWorkers   int
	IdentifierField string
	QueueCapacity   int
	QueueWorkers    int
}

// StoreConfig holds artifact storage configuration
type StoreConfig struct {
	OutputDir string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			DSN:             getEnv("DB_URL", "file:contracts.db?_pragma=foreign_keys(1)"),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
			APIToken:        getEnv("API_TOKEN", ""),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Render: RenderConfig{
			Pdftoppm:      getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Scale:         getEnvAsFloat64("CUTOUT_SCALE", 2.0),
			MaxCutoutEdge: getEnvAsInt("CUTOUT_MAX_EDGE", 0),
		},
		LLM: LLMConfig{
			OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
			OpenAITemperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			OpenAITimeout:     getEnvAsDuration("OPENAI_TIMEOUT", 120*time.Second),
			GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
			GeminiMaxRetries:  getEnvAsInt("GEMINI_MAX_RETRIES", 3),
			GeminiRetryDelay:  getEnvAsDuration("GEMINI_RETRY_DELAY", 30*time.Second),
		},
		Pipeline: PipelineConfig{
			CutoutWorkers:   getEnvAsInt("CUTOUT_WORKERS", 4),
			IdentifierField: getEnv("IDENTIFIER_FIELD", "unitCode"),
			QueueCapacity:   getEnvAsInt("QUEUE_CAPACITY", 64),
			QueueWorkers:    getEnvAsInt("QUEUE_WORKERS", 2),
		},
		Store: StoreConfig{
			OutputDir: getEnv("OUTPUT_DIR", "./output"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return NewAppError("CONFIG_ERROR", "DB_DRIVER must be sqlite or postgres", ErrInvalidInput)
	}
	if c.LLM.OpenAIAPIKey == "" && c.LLM.GeminiAPIKey == "" {
		return NewAppError("CONFIG_ERROR", "at least one of OPENAI_API_KEY or GEMINI_API_KEY is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Render.Scale <= 0 {
		return NewAppError("CONFIG_ERROR", "CUTOUT_SCALE must be positive", ErrInvalidInput)
	}
	return nil
}
