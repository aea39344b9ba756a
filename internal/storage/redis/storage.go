package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/geoseek/internal/model"
	"github.com/mcoot/geoseek/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Summary operations

func (s *Storage) SaveSummary(ctx context.Context, summary *model.SessionSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	// Use pipeline for atomic save + index update
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, summaryKey(summary.ID), data, s.cfg.SummaryTTL)
	pipe.ZAdd(ctx, summariesByEndIndexKey(), redis.Z{
		Score:  float64(summary.EndedAt.UnixMilli()),
		Member: string(summary.ID),
	})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetSummary(ctx context.Context, id model.SessionID) (*model.SessionSummary, error) {
	data, err := s.client.Get(ctx, summaryKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrSummaryNotFound
		}
		return nil, err
	}

	var summary model.SessionSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *Storage) ListSummaries(ctx context.Context, limit int) ([]*model.SessionSummary, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := s.client.ZRevRange(ctx, summariesByEndIndexKey(), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.SessionSummary{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = summaryKey(model.SessionID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	summaries := make([]*model.SessionSummary, 0, len(values))
	var expired []any
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			// Summary key expired; drop it from the index
			expired = append(expired, ids[i])
			continue
		}
		var summary model.SessionSummary
		if err := json.Unmarshal([]byte(str), &summary); err != nil {
			return nil, err
		}
		summaries = append(summaries, &summary)
	}

	if len(expired) > 0 {
		if err := s.client.ZRem(ctx, summariesByEndIndexKey(), expired...).Err(); err != nil {
			return nil, err
		}
	}
	return summaries, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
