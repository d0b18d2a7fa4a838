package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mind-engage/examprep/internal/config"
)

func baseConfig(t *testing.T) config.Config {
	return config.Config{
		DBDriver:             "memory",
		BlobBasePath:         t.TempDir(),
		LLMProvider:          "none",
		VetAutoPassThreshold: 0.85,
		VetReviewCap:         0.6,
		VetConcurrency:       2,
	}
}

func TestBuildMemory(t *testing.T) {
	app, err := Build(context.Background(), baseConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.DB)
	assert.Nil(t, app.Events)
	assert.Nil(t, app.Cache)
	assert.NotNil(t, app.Exams)
	assert.NotNil(t, app.Bank)
	assert.NoError(t, app.Store.Ping(context.Background()))
}

func TestBuildSQLiteWithRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := baseConfig(t)
	cfg.DBDriver = "sqlite"
	cfg.DBDSN = "file:" + t.TempDir() + "/bootstrap.db?_pragma=foreign_keys(1)"
	cfg.RedisAddr = mr.Addr()

	app, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.DB)
	assert.NotNil(t, app.Events)
	require.NotNil(t, app.Cache)
	assert.NoError(t, app.Cache.Ping(context.Background()))
}

func TestBuildRejectsUnknownProvider(t *testing.T) {
	cfg := baseConfig(t)
	cfg.LLMProvider = "mystery"
	_, err := Build(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "llm provider")
}
