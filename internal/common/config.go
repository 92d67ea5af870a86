package common

import (
	"os"
	"strconv"
	"time"

	"github.com/joseph-ayodele/docfields/constants"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	OCR        OCRConfig
	Preprocess PreprocessConfig
	Queue      QueueConfig
	Metrics    MetricsConfig
	WorkDir    string
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// OCRConfig holds OCR and rasterization configuration
type OCRConfig struct {
	Engine      string // "tesseract" (CLI) | "gosseract"
	Tesseract   string
	Pdftoppm    string
	Lang        string
	DPI         int
	PSM         int
	OEM         int
	Whitelist   string
	TessdataDir string
	MaxPages    int
}

// PreprocessConfig holds image preprocessing configuration
type PreprocessConfig struct {
	Threshold int
	RefWidth  int
	RefHeight int
	Upscale   int
}

// QueueConfig holds async extraction queue configuration
type QueueConfig struct {
	Workers int
	Size    int
	Timeout time.Duration
}

// MetricsConfig holds the prometheus listener configuration
type MetricsConfig struct {
	Addr string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", "docfields.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		OCR: OCRConfig{
			Engine:      getEnv("OCR_ENGINE", "tesseract"),
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			Pdftoppm:    getEnv("PDFTOPPM_BIN", "pdftoppm"),
			Lang:        getEnv("OCR_LANG", constants.DefaultLang),
			DPI:         getEnvAsInt("OCR_DPI", constants.DefaultDPI),
			PSM:         getEnvAsInt("OCR_PSM", constants.DefaultPSM),
			OEM:         getEnvAsInt("OCR_OEM", 0),
			Whitelist:   getEnv("OCR_WHITELIST", ""),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			MaxPages:    getEnvAsInt("OCR_MAX_PAGES", 0),
		},
		Preprocess: PreprocessConfig{
			Threshold: getEnvAsInt("PREPROCESS_THRESHOLD", constants.DefaultThreshold),
			RefWidth:  getEnvAsInt("PREPROCESS_REF_WIDTH", constants.ReferenceWidth),
			RefHeight: getEnvAsInt("PREPROCESS_REF_HEIGHT", constants.ReferenceHeight),
			Upscale:   getEnvAsInt("PREPROCESS_UPSCALE", constants.DefaultUpscale),
		},
		Queue: QueueConfig{
			Workers: getEnvAsInt("QUEUE_WORKERS", 4),
			Size:    getEnvAsInt("QUEUE_SIZE", 256),
			Timeout: getEnvAsDuration("QUEUE_TIMEOUT", 3*time.Minute),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ""),
		},
		WorkDir: getEnv("WORK_DIR", ""),
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.OCR.Lang == "" {
		return NewAppError("CONFIG_ERROR", "OCR_LANG is required", ErrInvalidInput)
	}
	if c.OCR.DPI <= 0 {
		return NewAppError("CONFIG_ERROR", "OCR_DPI must be positive", ErrInvalidInput)
	}
	if c.OCR.Engine != "tesseract" && c.OCR.Engine != "gosseract" {
		return NewAppError("CONFIG_ERROR", "OCR_ENGINE must be tesseract or gosseract", ErrInvalidInput)
	}
	if c.Preprocess.Threshold < 0 || c.Preprocess.Threshold > 255 {
		return NewAppError("CONFIG_ERROR", "PREPROCESS_THRESHOLD must be within 0..255", ErrInvalidInput)
	}
	if c.Preprocess.RefWidth <= 0 || c.Preprocess.RefHeight <= 0 || c.Preprocess.Upscale <= 0 {
		return NewAppError("CONFIG_ERROR", "preprocess reference size and upscale must be positive", ErrInvalidInput)
	}
	if c.Queue.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "QUEUE_WORKERS must be positive", ErrInvalidInput)
	}
	return nil
}
