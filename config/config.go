package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	RabbitMQURL   string
	RedisAddr     string
	Port          string
	HoldTTL       time.Duration
	SweepInterval time.Duration
	NumWorkers    int
	PrefetchCount int
}

var AppConfig Config

func LoadConfig() error {
	rabbitMQURL := os.Getenv("RABBITMQ_URL")
	if rabbitMQURL == "" {
		return fmt.Errorf("RABBITMQ_URL environment variable is required")
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		return fmt.Errorf("REDIS_ADDR environment variable is required")
	}

	holdTTLSeconds, err := getEnvInt("HOLD_TTL_SECONDS", 600)
	if err != nil {
		return err
	}
	sweepSeconds, err := getEnvInt("SWEEP_INTERVAL_SECONDS", 60)
	if err != nil {
		return err
	}
	numWorkers, err := getEnvInt("NUM_WORKERS", 5)
	if err != nil {
		return err
	}
	prefetchCount, err := getEnvInt("PREFETCH_COUNT", 10)
	if err != nil {
		return err
	}

	AppConfig = Config{
		RabbitMQURL:   rabbitMQURL,
		RedisAddr:     redisAddr,
		Port:          getEnvOrDefault("PORT", "8090"),
		HoldTTL:       time.Duration(holdTTLSeconds) * time.Second,
		SweepInterval: time.Duration(sweepSeconds) * time.Second,
		NumWorkers:    numWorkers,
		PrefetchCount: prefetchCount,
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, value)
	}
	return n, nil
}
