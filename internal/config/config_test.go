package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/checkins")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "")
	t.Setenv("CORS_ORIGIN", " https://a.example , ,https://b.example")
	t.Setenv("TOKEN_TTL_HOURS", "")
	t.Setenv("AUTO_MIGRATE", "")
	t.Setenv("CREATE_DEMO_ACCOUNTS", "yes")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.AutoMigrate)
	assert.False(t, cfg.SeedDemo, "unparseable bool falls back to default")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/checkins")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PORT", "9000")
	t.Setenv("TOKEN_TTL_HOURS", "2")
	t.Setenv("AUTO_MIGRATE", "false")
	t.Setenv("CREATE_DEMO_ACCOUNTS", "true")
	t.Setenv("REPORT_QUEUE_URL", "https://sqs.example/queue")

	cfg := Load()

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.False(t, cfg.AutoMigrate)
	assert.True(t, cfg.SeedDemo)
	assert.Equal(t, "https://sqs.example/queue", cfg.ReportQueueURL)
}
