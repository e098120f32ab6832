package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type AppConfig struct {
	Port         string
	DatabasePath string
	LogLevel     string

	TaxRulesPath   string
	PriceTablePath string

	// Base URL of the historical price API. Empty disables network
	// lookups; unpriced records then land in the missing channel.
	PriceAPIBaseURL string

	LargeGainWarnThreshold decimal.Decimal

	IncludeSends    bool
	IncludeReceives bool

	MaxUploadSizeBytes int64
}

var Cfg *AppConfig

func LoadConfig() {
	errEnv := godotenv.Load()
	if errEnv != nil {
		log.Println("Info: No .env file found or error loading .env file. Relying on OS environment variables and defaults. Error (if any):", errEnv)
	} else {
		log.Println(".env file loaded successfully.")
	}

	log.Println("Loading application configuration...")

	warnThresholdStr := getEnv("LARGE_GAIN_WARN_THRESHOLD", "10000")
	warnThreshold, err := decimal.NewFromString(warnThresholdStr)
	if err != nil {
		log.Printf("WARNING: Invalid LARGE_GAIN_WARN_THRESHOLD '%s'. Using default 10000. Error: %v", warnThresholdStr, err)
		warnThreshold = decimal.NewFromInt(10000)
	}

	maxUploadSizeBytesStr := getEnv("MAX_UPLOAD_SIZE_BYTES", "10485760")
	maxUploadSizeBytes, err := strconv.ParseInt(maxUploadSizeBytesStr, 10, 64)
	if err != nil {
		log.Printf("WARNING: Invalid MAX_UPLOAD_SIZE_BYTES format '%s'. Using default 10MB. Error: %v", maxUploadSizeBytesStr, err)
		maxUploadSizeBytes = 10 * 1024 * 1024
	}

	Cfg = &AppConfig{
		Port:         getEnv("PORT", "8080"),
		DatabasePath: getEnv("DATABASE_PATH", "./coinfolio.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		TaxRulesPath:   getEnv("TAX_RULES_PATH", "data/taxrules.json"),
		PriceTablePath: getEnv("PRICE_TABLE_PATH", "data/prices.json"),

		PriceAPIBaseURL: getEnv("PRICE_API_BASE_URL", ""),

		LargeGainWarnThreshold: warnThreshold,

		IncludeSends:    getEnvAsBool("INCLUDE_SENDS", false),
		IncludeReceives: getEnvAsBool("INCLUDE_RECEIVES", false),

		MaxUploadSizeBytes: maxUploadSizeBytes,
	}

	log.Printf("Configuration loaded: Port=%s, LogLevel=%s, DBPath=%s, RulesPath=%s",
		Cfg.Port, Cfg.LogLevel, Cfg.DatabasePath, Cfg.TaxRulesPath)
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Environment variable %s not set, using default: %s", key, fallback)
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	log.Printf("Invalid boolean value for %s ('%s'), using default: %t", key, valueStr, fallback)
	return fallback
}
