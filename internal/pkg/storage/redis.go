package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Vodeneev/matchfeed/internal/pkg/config"
	"github.com/Vodeneev/matchfeed/internal/pkg/models"
)

// RedisMirror copies each snapshot to a key and announces it on a channel.
type RedisMirror struct {
	client  *redis.Client
	key     string
	channel string
	ttl     time.Duration
}

// mirrorPayload is what other services read from the key and channel.
type mirrorPayload struct {
	Status      models.Status `json:"status"`
	Display     string        `json:"display"`
	HomeTeam    string        `json:"home_team,omitempty"`
	AwayTeam    string        `json:"away_team,omitempty"`
	Match       string        `json:"match,omitempty"`
	LastUpdated *time.Time    `json:"last_updated,omitempty"`
	Diagnostic  string        `json:"diagnostic,omitempty"`
	Strategy    string        `json:"strategy,omitempty"`
	SessionID   string        `json:"session_id,omitempty"`
}

func NewRedisMirror(ctx context.Context, cfg config.RedisConfig) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Check connection
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisMirror(client, cfg), nil
}

func newRedisMirror(client *redis.Client, cfg config.RedisConfig) *RedisMirror {
	return &RedisMirror{client: client, key: cfg.Key, channel: cfg.Channel, ttl: cfg.TTL}
}

func (r *RedisMirror) Name() string { return "redis" }

// Write stores snap under the key with the configured TTL and publishes it.
func (r *RedisMirror) Write(ctx context.Context, snap models.Snapshot) error {
	data, err := encodePayload(snap)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key, data, r.ttl)
		if r.channel != "" {
			pipe.Publish(ctx, r.channel, data)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to mirror snapshot: %w", err)
	}
	return nil
}

// Close closes connection to Redis
func (r *RedisMirror) Close() error {
	return r.client.Close()
}

func encodePayload(snap models.Snapshot) ([]byte, error) {
	p := mirrorPayload{
		Status:     snap.Status,
		Display:    snap.Status.Display(),
		HomeTeam:   snap.HomeTeam,
		AwayTeam:   snap.AwayTeam,
		Match:      snap.MatchLabel(),
		Diagnostic: snap.Diagnostic,
		Strategy:   snap.Strategy,
		SessionID:  snap.SessionID,
	}
	if !snap.LastUpdated.IsZero() {
		at := snap.LastUpdated.UTC()
		p.LastUpdated = &at
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}
