package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Vodeneev/ttmonitor/internal/pkg/models"
)

var _ Transport = (*RedisTransport)(nil)

const (
	redisRecordPrefix = "match:"
	redisUpdatedKey   = "matches:updated"
	redisStatusPrefix = "matches:status:"
)

var allStatuses = []models.MatchStatus{models.StatusLive, models.StatusUpcoming, models.StatusEnded}

// RedisTransport keeps each record as a JSON string under match:<id>, indexed
// by a sorted set of last-update times (unix millis) and one set per status.
type RedisTransport struct {
	client *redis.Client
}

func NewRedisTransport(addr, password string, db int) (*RedisTransport, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisTransport{client: client}, nil
}

func recordKey(id string) string {
	return redisRecordPrefix + id
}

func statusKey(s models.MatchStatus) string {
	return redisStatusPrefix + string(s)
}

func updatedScore(t time.Time) float64 {
	return float64(t.UnixMilli())
}

func (r *RedisTransport) Upsert(ctx context.Context, rec *models.MatchRecord) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordKey(rec.ID), data, 0)
		pipe.ZAdd(ctx, redisUpdatedKey, redis.Z{Score: updatedScore(rec.LastUpdated.Time), Member: rec.ID})
		for _, s := range allStatuses {
			if s != rec.Status {
				pipe.SRem(ctx, statusKey(s), rec.ID)
			}
		}
		pipe.SAdd(ctx, statusKey(rec.Status), rec.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

func (r *RedisTransport) Get(ctx context.Context, id string) (*models.MatchRecord, error) {
	data, err := r.client.Get(ctx, recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return decodeRecord(data)
}

func (r *RedisTransport) Query(ctx context.Context, f Filter) ([]*models.MatchRecord, error) {
	ids, err := r.candidates(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	var out []*models.MatchRecord
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue // deleted between index read and MGET
		}
		rec, err := decodeRecord([]byte(s))
		if err != nil {
			return nil, err
		}
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// candidates narrows the ID set with the cheapest index for f. The caller
// still applies the full filter to decoded records.
func (r *RedisTransport) candidates(ctx context.Context, f Filter) ([]string, error) {
	if f.Status != "" {
		ids, err := r.client.SMembers(ctx, statusKey(f.Status)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read status index: %w", err)
		}
		return ids, nil
	}

	rng := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if !f.UpdatedAfter.IsZero() {
		rng.Min = strconv.FormatInt(f.UpdatedAfter.UnixMilli(), 10)
	}
	if !f.UpdatedBefore.IsZero() {
		rng.Max = strconv.FormatInt(f.UpdatedBefore.UnixMilli(), 10)
	}
	ids, err := r.client.ZRangeByScore(ctx, redisUpdatedKey, rng).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read update index: %w", err)
	}
	return ids, nil
}

func (r *RedisTransport) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = recordKey(id)
		members[i] = id
	}

	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, redisUpdatedKey, members...)
		for _, s := range allStatuses {
			pipe.SRem(ctx, statusKey(s), members...)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}
	return int(del.Val()), nil
}

func (r *RedisTransport) Close() error {
	return r.client.Close()
}
