// Package redis mirrors room membership into per-room peer sets so operators
// can inspect live presence out-of-process. The mirror is write-through and
// best-effort: in-memory coordinator state stays authoritative and mirror
// failures are only logged.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mossy-p/roomrelay/config"
	"github.com/redis/go-redis/v9"
)

// peerSetTTL bounds how long an abandoned peer set lingers if the process
// dies without cleaning up.
const peerSetTTL = 24 * time.Hour

// Mirror maintains room:<name>:peers sets in Redis.
type Mirror struct {
	client *redis.Client
	ctx    context.Context
}

// Connect opens the client and verifies the connection.
func Connect(cfg config.RedisConfig) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Mirror{client: client, ctx: ctx}, nil
}

func (m *Mirror) Close() error {
	return m.client.Close()
}

func (m *Mirror) Join(room, connID string) {
	key := peerSetKey(room)
	if err := m.client.SAdd(m.ctx, key, connID).Err(); err != nil {
		log.Printf("Redis mirror: SAdd %s failed: %v", key, err)
		return
	}
	m.client.Expire(m.ctx, key, peerSetTTL)
}

func (m *Mirror) Leave(room, connID string) {
	key := peerSetKey(room)
	if err := m.client.SRem(m.ctx, key, connID).Err(); err != nil {
		log.Printf("Redis mirror: SRem %s failed: %v", key, err)
	}
}

// Peers lists the mirrored member ids for a room.
func (m *Mirror) Peers(room string) ([]string, error) {
	return m.client.SMembers(m.ctx, peerSetKey(room)).Result()
}

func peerSetKey(room string) string {
	return "room:" + room + ":peers"
}
