package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"MODE", "DB_DRIVER", "LLM_PROVIDER", "VET_CONCURRENCY", "LLM_TIMEOUT", "LOG_DEV"} {
		t.Setenv(k, "")
	}
	c := FromEnv()

	assert.Equal(t, ModeOffline, c.Mode)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "none", c.LLMProvider)
	assert.Equal(t, 4, c.VetConcurrency)
	assert.Equal(t, 20*time.Second, c.LLMTimeout)
	assert.InDelta(t, 0.85, c.VetAutoPassThreshold, 1e-9)
	assert.True(t, c.LogDev)
	assert.Equal(t, c.CORSOriginsOffline, c.CORSOrigins())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("LLM_PROVIDER", "Gemini")
	t.Setenv("VET_CONCURRENCY", "9")
	t.Setenv("VET_REVIEW_CAP", "0.5")
	t.Setenv("AUTH_TOKEN_TTL", "30m")
	t.Setenv("CORS_ORIGINS_ONLINE", " https://a.example , ,https://b.example")
	t.Setenv("ENABLE_LOCAL_AUTH", "no")

	c := FromEnv()
	assert.Equal(t, ModeOnline, c.Mode)
	assert.Equal(t, "memory", c.DBDriver)
	assert.Equal(t, "gemini", c.LLMProvider)
	assert.Equal(t, 9, c.VetConcurrency)
	assert.InDelta(t, 0.5, c.VetReviewCap, 1e-9)
	assert.Equal(t, 30*time.Minute, c.TokenTTL)
	assert.False(t, c.EnableLocalAuth)
	assert.False(t, c.LogDev)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSOrigins())
}

func TestEnvParsersFallBack(t *testing.T) {
	t.Setenv("X_INT", "many")
	t.Setenv("X_FLOAT", "")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_BOOL", "maybe")

	assert.Equal(t, 3, envInt("X_INT", 3))
	assert.InDelta(t, 0.25, envFloat("X_FLOAT", 0.25), 1e-9)
	assert.Equal(t, time.Second, envDuration("X_DUR", time.Second))
	assert.True(t, envBool("X_BOOL", true))
}
