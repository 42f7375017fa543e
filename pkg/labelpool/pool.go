// Package labelpool keeps pre-generated counter or random labels in Redis so
// they can be handed out as record batches arrive, before the whole dataset
// exists. Each pool has its own keys; pools never share labels.
package labelpool

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/pseudonym/pkg/common/models"
	"github.com/synaptica-ai/pseudonym/pkg/pseudonym"
)

var ErrPoolNotFound = errors.New("label pool not found")

const pushChunk = 1000

// takeScript pops n labels only if all n are available. Redis drops a list
// once it is empty, so pool existence is checked on the meta hash.
var takeScript = redis.NewScript(`
local n = tonumber(ARGV[1])
if redis.call("EXISTS", KEYS[2]) == 0 then
	return -1
end
if redis.call("LLEN", KEYS[1]) < n then
	return -2
end
return redis.call("LPOP", KEYS[1], n)
`)

type Info struct {
	ID        string
	Strategy  string
	Size      int
	Remaining int64
	ExpiresAt time.Time
}

type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

// Both keys of a pool share a hash tag so the take script stays in one slot.
func labelsKey(id string) string { return "labelpool:{" + id + "}:labels" }
func metaKey(id string) string   { return "labelpool:{" + id + "}:meta" }

// BuildLabels generates the whole pool up front, shuffled for the random
// strategy.
func BuildLabels(req models.CreatePoolRequest) ([]string, error) {
	pool := pseudonym.Pool{Prefix: req.Prefix, Size: req.Size, Width: req.Width}
	switch req.Strategy {
	case pseudonym.StrategyCounter, "":
		return pool.Sequence(req.Size)
	case pseudonym.StrategyRandom:
		plan := pseudonym.Plan{Strategy: pseudonym.StrategyRandom, Prefix: req.Prefix, PoolSize: req.Size, PadWidth: req.Width, Seed: req.Seed}
		s, err := plan.Build(nil)
		if err != nil {
			return nil, err
		}
		return s.(*pseudonym.RandomStrategy).Generate(req.Size)
	default:
		return nil, fmt.Errorf("%q cannot back a label pool: %w", req.Strategy, pseudonym.ErrUnknownStrategy)
	}
}

func (s *Store) Create(ctx context.Context, req models.CreatePoolRequest) (Info, error) {
	if req.Size <= 0 {
		req.Size = pseudonym.DefaultPoolSize
	}
	if req.Strategy == "" {
		req.Strategy = pseudonym.StrategyCounter
	}
	labels, err := BuildLabels(req)
	if err != nil {
		return Info{}, err
	}

	id := uuid.New().String()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for start := 0; start < len(labels); start += pushChunk {
			end := min(start+pushChunk, len(labels))
			values := make([]interface{}, 0, end-start)
			for _, l := range labels[start:end] {
				values = append(values, l)
			}
			pipe.RPush(ctx, labelsKey(id), values...)
		}
		pipe.HSet(ctx, metaKey(id), "strategy", req.Strategy, "size", req.Size, "prefix", req.Prefix)
		pipe.Expire(ctx, labelsKey(id), s.ttl)
		pipe.Expire(ctx, metaKey(id), s.ttl)
		return nil
	})
	if err != nil {
		return Info{}, fmt.Errorf("store label pool: %w", err)
	}

	return Info{
		ID:        id,
		Strategy:  req.Strategy,
		Size:      req.Size,
		Remaining: int64(len(labels)),
		ExpiresAt: time.Now().UTC().Add(s.ttl),
	}, nil
}

// Take pops the next n labels, or none if fewer than n remain.
func (s *Store) Take(ctx context.Context, id string, n int) ([]string, error) {
	if n == 0 {
		return []string{}, nil
	}
	res, err := takeScript.Run(ctx, s.client, []string{labelsKey(id), metaKey(id)}, n).Result()
	if err != nil {
		return nil, fmt.Errorf("take labels: %w", err)
	}
	switch v := res.(type) {
	case int64:
		if v == -1 {
			return nil, ErrPoolNotFound
		}
		remaining, err := s.client.LLen(ctx, labelsKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("%d labels requested: %w", n, pseudonym.ErrCapacityExceeded)
		}
		return nil, fmt.Errorf("%d labels requested, %d remaining: %w", n, remaining, pseudonym.ErrCapacityExceeded)
	case []interface{}:
		labels := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected label type %T", item)
			}
			labels = append(labels, str)
		}
		return labels, nil
	default:
		return nil, fmt.Errorf("unexpected reply %T", res)
	}
}

func (s *Store) Info(ctx context.Context, id string) (Info, error) {
	meta, err := s.client.HGetAll(ctx, metaKey(id)).Result()
	if err != nil {
		return Info{}, err
	}
	if len(meta) == 0 {
		return Info{}, ErrPoolNotFound
	}
	remaining, err := s.client.LLen(ctx, labelsKey(id)).Result()
	if err != nil {
		return Info{}, err
	}
	ttl, err := s.client.TTL(ctx, metaKey(id)).Result()
	if err != nil {
		return Info{}, err
	}
	size, _ := strconv.Atoi(meta["size"])
	return Info{
		ID:        id,
		Strategy:  meta["strategy"],
		Size:      size,
		Remaining: remaining,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	deleted, err := s.client.Del(ctx, labelsKey(id), metaKey(id)).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrPoolNotFound
	}
	return nil
}
