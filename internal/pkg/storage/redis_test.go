package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vodeneev/matchfeed/internal/pkg/config"
	"github.com/Vodeneev/matchfeed/internal/pkg/models"
)

func TestEncodePayload_Live(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	data, err := encodePayload(models.Live("Lions", "Tigers", "alternate", "s1", at))
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "live", got["status"])
	assert.Equal(t, "Live", got["display"])
	assert.Equal(t, "Lions vs Tigers", got["match"])
	assert.Equal(t, "2024-05-01T12:30:00Z", got["last_updated"])
	assert.Equal(t, "alternate", got["strategy"])
	assert.NotContains(t, got, "diagnostic")
}

func TestEncodePayload_BeforeFirstMatch(t *testing.T) {
	data, err := encodePayload(models.Initial().WithStatus(models.StatusCrashed, "launch failed"))
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "CRASHED - RESTARTING", got["display"])
	assert.Equal(t, "launch failed", got["diagnostic"])
	assert.NotContains(t, got, "match")
	assert.NotContains(t, got, "last_updated")
}

func TestRedisMirror_WriteFailsWithoutServer(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	m := newRedisMirror(client, config.RedisConfig{Key: config.DefaultRedisKey, Channel: config.DefaultRedisChannel, TTL: time.Minute})
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.Equal(t, "redis", m.Name())
	assert.Error(t, m.Write(ctx, models.Initial()))
}
