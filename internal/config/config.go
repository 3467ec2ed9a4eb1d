package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	DatabaseURL    string
	JWTSecret      string
	Port           string
	CORSOrigins    []string
	TokenTTL       time.Duration
	AutoMigrate    bool
	SeedDemo       bool
	MailFrom       string
	KMSKeyID       string
	ReportQueueURL string
}

func Load() Config {
	cfg := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		Port:           os.Getenv("PORT"),
		CORSOrigins:    splitList(os.Getenv("CORS_ORIGIN")),
		TokenTTL:       time.Duration(intEnv("TOKEN_TTL_HOURS", 24)) * time.Hour,
		AutoMigrate:    boolEnv("AUTO_MIGRATE", true),
		SeedDemo:       boolEnv("CREATE_DEMO_ACCOUNTS", false),
		MailFrom:       os.Getenv("MAIL_FROM"),
		KMSKeyID:       os.Getenv("KMS_KEY_ID"),
		ReportQueueURL: os.Getenv("REPORT_QUEUE_URL"),
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func intEnv(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("config: ignoring invalid %s=%q", key, raw)
		return def
	}
	return n
}

func boolEnv(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config: ignoring invalid %s=%q", key, raw)
		return def
	}
	return v
}
