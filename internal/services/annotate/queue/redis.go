package queue

import (
	"cmp"
	"context"
	"errors"
	"strconv"

	"contribot/internal/core/work"
	perr "contribot/internal/platform/errors"
	"contribot/internal/platform/logger"
	pstrings "contribot/internal/platform/strings"
	"contribot/internal/services/annotate/domain"

	"github.com/redis/go-redis/v9"
)

// StreamConfig names the stream, consumer group and dead letter stream
type StreamConfig struct {
	Stream      string
	Group       string
	Consumer    string
	DLQ         string
	MaxAttempts int
}

func (c StreamConfig) withDefaults() StreamConfig {
	c.Stream = cmp.Or(c.Stream, "contribot:annotate")
	c.Group = cmp.Or(c.Group, "annotators")
	c.Consumer = cmp.Or(c.Consumer, "worker-1")
	c.DLQ = cmp.Or(c.DLQ, c.Stream+":dlq")
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}

// Stream is the redis stream queue. Entries are FIFO; priority rides along as a field
type Stream struct {
	client *redis.Client
	cfg    StreamConfig
	log    logger.Logger
}

var _ domain.Backend = (*Stream)(nil)

// NewStream creates the consumer group if it is missing
func NewStream(ctx context.Context, client *redis.Client, cfg StreamConfig, log logger.Logger) (*Stream, error) {
	if client == nil {
		return nil, perr.InvalidArgf("redis stream queue needs a redis client")
	}
	s := &Stream{client: client, cfg: cfg.withDefaults(), log: log}
	// start at 0 so entries added before the group existed are still delivered
	err := client.XGroupCreateMkStream(ctx, s.cfg.Stream, s.cfg.Group, "0").Err()
	if err != nil && !redis.HasErrorPrefix(err, "BUSYGROUP") {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "create consumer group %s", s.cfg.Group)
	}
	return s, nil
}

// Send appends an entry
func (s *Stream) Send(ctx context.Context, it work.Item) error {
	if !it.Valid() {
		return perr.InvalidArgf("invalid work item %s", it)
	}
	return s.add(ctx, s.cfg.Stream, entryValues(it), it)
}

// SelectPending reads up to limit undelivered entries without blocking
func (s *Stream) SelectPending(ctx context.Context, limit int) ([]work.Item, error) {
	if limit <= 0 {
		limit = domain.DefaultBatchSize
	}
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.cfg.Group,
		Consumer: s.cfg.Consumer,
		Streams:  []string{s.cfg.Stream, ">"},
		Count:    int64(limit),
		Block:    -1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "read stream %s", s.cfg.Stream)
	}

	var out []work.Item
	for _, st := range streams {
		for _, msg := range st.Messages {
			it, err := parseEntry(msg)
			if err != nil {
				s.log.Error().Err(err).Str("entry", msg.ID).Msg("unparseable queue entry dropped")
				_ = s.drop(ctx, msg.ID)
				continue
			}
			out = append(out, it)
		}
	}
	return out, nil
}

// MarkProcessing is a no-op; delivery already put the entry in the consumer's pending list
func (s *Stream) MarkProcessing(context.Context, work.Item) error { return nil }

// MarkCompleted acks and deletes the entry
func (s *Stream) MarkCompleted(ctx context.Context, it work.Item) error {
	return s.drop(ctx, it.ID)
}

// MarkFailed re-adds the entry with one more attempt, or moves it to the DLQ
func (s *Stream) MarkFailed(ctx context.Context, it work.Item, reason string) error {
	if err := s.drop(ctx, it.ID); err != nil {
		return err
	}
	it.Attempts++
	vals := entryValues(it)
	vals["last_error"] = pstrings.Truncate(reason, 2000)
	if it.Attempts >= s.cfg.MaxAttempts {
		s.log.Warn().Str("item", it.String()).Int("attempts", it.Attempts).Msg("work item moved to dlq")
		return s.add(ctx, s.cfg.DLQ, vals, it)
	}
	return s.add(ctx, s.cfg.Stream, vals, it)
}

// CountPending is the stream length; delivered but unacked entries count too
func (s *Stream) CountPending(ctx context.Context) (int, error) {
	n, err := s.client.XLen(ctx, s.cfg.Stream).Result()
	if err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeUnavailable, "xlen %s", s.cfg.Stream)
	}
	return int(n), nil
}

func (s *Stream) add(ctx context.Context, stream string, vals map[string]any, it work.Item) error {
	if err := s.client.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: vals}).Err(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "xadd %s %s", stream, it)
	}
	return nil
}

func (s *Stream) drop(ctx context.Context, id string) error {
	if _, err := s.client.XAck(ctx, s.cfg.Stream, s.cfg.Group, id).Result(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "xack %s", id)
	}
	if _, err := s.client.XDel(ctx, s.cfg.Stream, id).Result(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "xdel %s", id)
	}
	return nil
}

func entryValues(it work.Item) map[string]any {
	return map[string]any{
		"kind":      string(it.Kind),
		"entity_id": it.EntityID,
		"priority":  it.Priority,
		"attempts":  it.Attempts,
	}
}

func parseEntry(msg redis.XMessage) (work.Item, error) {
	it := work.Item{ID: msg.ID}
	kind, _ := msg.Values["kind"].(string)
	it.Kind = work.Kind(kind)

	var err error
	if it.EntityID, err = int64Field(msg.Values, "entity_id"); err != nil {
		return it, err
	}
	p, err := int64Field(msg.Values, "priority")
	if err != nil {
		return it, err
	}
	a, err := int64Field(msg.Values, "attempts")
	if err != nil {
		return it, err
	}
	it.Priority, it.Attempts = int(p), int(a)
	if !it.Valid() {
		return it, perr.Validationf("entry %s is not a valid work item", msg.ID)
	}
	return it, nil
}

// int64Field reads a numeric field; redis hands everything back as strings
func int64Field(vals map[string]any, key string) (int64, error) {
	switch v := vals[key].(type) {
	case nil:
		return 0, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, perr.Validationf("field %s: %q is not an integer", key, v)
		}
		return n, nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	}
	return 0, perr.Validationf("field %s has unexpected type %T", key, vals[key])
}
