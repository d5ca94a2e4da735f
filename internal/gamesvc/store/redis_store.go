package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avvvet/bingo-room/internal/gamesvc/models"
)

const (
	roomKeyPrefix  = "bingo:room:"
	roomExpiration = 2 * time.Hour
)

// RedisStore caches the latest snapshot of each live room so other services
// can read room state without asking the owning process.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (rs *RedisStore) SaveRoom(ctx context.Context, game models.Game) error {
	data, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", game.ID, err)
	}
	return rs.client.Set(ctx, roomKeyPrefix+game.ID, data, roomExpiration).Err()
}

// LoadRoom returns nil, nil when the room is not cached.
func (rs *RedisStore) LoadRoom(ctx context.Context, id string) (*models.Game, error) {
	data, err := rs.client.Get(ctx, roomKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var game models.Game
	if err := json.Unmarshal(data, &game); err != nil {
		return nil, fmt.Errorf("unmarshal room %s: %w", id, err)
	}
	return &game, nil
}

func (rs *RedisStore) DeleteRoom(ctx context.Context, id string) error {
	return rs.client.Del(ctx, roomKeyPrefix+id).Err()
}
