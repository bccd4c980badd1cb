package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ychetra/demo-light/internal/infrastructure/config"
)

func TestConnect_EmptyURL(t *testing.T) {
	_, err := Connect(context.Background(), config.RedisConfig{})
	assert.ErrorIs(t, err, ErrEmptyConnectionURL)
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), config.RedisConfig{URL: "http://localhost:6379"})
	assert.ErrorIs(t, err, ErrFailedToParseRedisConnString)
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := Connect(ctx, config.RedisConfig{
		URL:           "redis://127.0.0.1:1/0?dial_timeout=200ms",
		RetryAttempts: 1,
	})
	assert.ErrorIs(t, err, ErrRedisNotReady)
}

func TestConnect_Live(t *testing.T) {
	url := os.Getenv("LIGHTBRIDGE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("LIGHTBRIDGE_TEST_REDIS_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := Connect(ctx, config.RedisConfig{URL: url, RetryAttempts: 1})
	require.NoError(t, err)
	defer client.Close() //nolint:errcheck // test cleanup

	assert.NoError(t, Healthcheck(client)(ctx))
}
