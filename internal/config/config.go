// Package config loads the service configuration from the environment.
// There is no package-level state; main loads once and injects.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	MongoURI          string
	MongoDB           string
	PaystackSecretKey string
	PaystackBaseURL   string
	CallbackURL       string
	JWTSecret         string
	AllowedOrigins    string
	Debug             bool
}

// Load reads the environment, honoring a .env file for local development.
// Missing mandatory values fail startup; in particular the webhook
// verifier can never run with an empty secret.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Port:              getEnvOrDefault("PORT", "8080"),
		MongoURI:          os.Getenv("MONGOURI"),
		MongoDB:           getEnvOrDefault("MONGO_DB", "shulegram"),
		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		PaystackBaseURL:   os.Getenv("PAYSTACK_BASE_URL"),
		CallbackURL:       os.Getenv("CALLBACK_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		AllowedOrigins:    getEnvOrDefault("ALLOWED_ORIGINS", "*"),
		Debug:             os.Getenv("DEBUG") == "true",
	}

	var missing []string
	if cfg.MongoURI == "" {
		missing = append(missing, "MONGOURI")
	}
	if cfg.PaystackSecretKey == "" {
		missing = append(missing, "PAYSTACK_SECRET_KEY")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing mandatory environment variables: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
