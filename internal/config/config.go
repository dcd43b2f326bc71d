package config

import (
	"os"
	"strconv"
	"time"

	"statbench/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Pipeline PipelineConfig
	Log      LogConfig
}

// DatabaseConfig holds database connection settings. An empty URL selects the in-memory rule store.
type DatabaseConfig struct {
	URL string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// PipelineConfig holds the tunables of the transformation pipeline
type PipelineConfig struct {
	LagrangeMaxPoints     int
	KMeansMaxIterations   int
	Parallelism           int
	LargeDatasetThreshold int
	ProcessingDelay       time.Duration
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// DefaultPipelineConfig returns the pipeline defaults used when no environment is present
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		LagrangeMaxPoints:     20,
		KMeansMaxIterations:   100,
		Parallelism:           4,
		LargeDatasetThreshold: 50000,
		ProcessingDelay:       250 * time.Millisecond,
	}
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{URL: os.Getenv("DATABASE_URL")},
		Server:   ServerConfig{Port: getEnvOrDefault("PORT", "8080")},
		Pipeline: loadPipelineConfig(),
		Log:      LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "INFO")},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadPipelineConfig() PipelineConfig {
	defaults := DefaultPipelineConfig()
	return PipelineConfig{
		LagrangeMaxPoints:     getEnvIntOrDefault("LAGRANGE_MAX_POINTS", defaults.LagrangeMaxPoints),
		KMeansMaxIterations:   getEnvIntOrDefault("KMEANS_MAX_ITERATIONS", defaults.KMeansMaxIterations),
		Parallelism:           getEnvIntOrDefault("PIPELINE_PARALLELISM", defaults.Parallelism),
		LargeDatasetThreshold: getEnvIntOrDefault("LARGE_DATASET_THRESHOLD", defaults.LargeDatasetThreshold),
		ProcessingDelay:       getEnvDurationOrDefault("PROCESSING_DELAY", defaults.ProcessingDelay),
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	p := config.Pipeline
	if p.LagrangeMaxPoints < 2 {
		return errors.ConfigInvalid("LAGRANGE_MAX_POINTS must be at least 2")
	}
	if p.KMeansMaxIterations < 1 {
		return errors.ConfigInvalid("KMEANS_MAX_ITERATIONS must be positive")
	}
	if p.Parallelism < 1 {
		return errors.ConfigInvalid("PIPELINE_PARALLELISM must be positive")
	}
	if p.LargeDatasetThreshold < 0 || p.ProcessingDelay < 0 {
		return errors.ConfigInvalid("large dataset threshold and processing delay must not be negative")
	}
	return nil
}

// Helper functions for environment variable parsing
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

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
