// Package continuation hands cursors of paused runs to the next run
package continuation

import (
	"context"
	"encoding/json"
	"errors"

	perr "contribot/internal/platform/errors"
	"contribot/internal/services/pipeline/domain"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the redis list cursors are pushed to
const DefaultKey = "contribot:continuations"

// Redis is a FIFO list of JSON cursors
type Redis struct {
	client *redis.Client
	key    string
}

var _ domain.Continuations = (*Redis)(nil)

// NewRedis builds the list channel; an empty key uses DefaultKey
func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = DefaultKey
	}
	return &Redis{client: client, key: key}
}

// Send pushes c to the tail
func (r *Redis) Send(ctx context.Context, c domain.Cursor) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := r.client.RPush(ctx, r.key, b).Err(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "push continuation for run %s", c.RunID)
	}
	return nil
}

// Take pops from the head without blocking
func (r *Redis) Take(ctx context.Context) (domain.Cursor, bool, error) {
	raw, err := r.client.LPop(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Cursor{}, false, nil
	}
	if err != nil {
		return domain.Cursor{}, false, perr.Wrapf(err, perr.ErrorCodeUnavailable, "pop continuation")
	}
	var c domain.Cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.Cursor{}, false, perr.Wrapf(err, perr.ErrorCodeJSON, "decode continuation")
	}
	return c, true, nil
}
