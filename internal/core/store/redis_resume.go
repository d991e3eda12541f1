package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/itemtally/itemtally/internal/core"
)

const (
	resumeKeySegment = "resume:"

	fieldLastPage  = "last_page"
	fieldPageSize  = "page_size"
	fieldUpdatedAt = "updated_at"
)

// RedisResume keeps resume pages in Redis hashes named
// <prefix>resume:<collection>.
type RedisResume struct {
	Client *redis.Client
	Prefix string
}

// NewRedisResume connects to the Redis server at redisURL.
func NewRedisResume(redisURL, prefix string) (*RedisResume, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &RedisResume{Client: redis.NewClient(opts), Prefix: prefix}, nil
}

// Close releases the Redis connection pool.
func (r *RedisResume) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}

// EnsureResumeSchema verifies the server is reachable. Hashes need no setup.
func (r *RedisResume) EnsureResumeSchema(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis resume store is not initialized")
	}
	if err := r.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// LoadResume returns the stored boundary for a collection.
func (r *RedisResume) LoadResume(ctx context.Context, collection string) (core.ResumeRecord, bool, error) {
	if r == nil || r.Client == nil {
		return core.ResumeRecord{}, false, errors.New("redis resume store is not initialized")
	}
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return core.ResumeRecord{}, false, errors.New("collection is required")
	}

	fields, err := r.Client.HGetAll(ctx, r.key(collection)).Result()
	if err != nil {
		return core.ResumeRecord{}, false, fmt.Errorf("fetch resume page: %w", err)
	}
	if len(fields) == 0 {
		return core.ResumeRecord{}, false, nil
	}

	record, err := decodeResumeHash(collection, fields)
	if err != nil {
		return core.ResumeRecord{}, false, err
	}
	return record, true, nil
}

// SaveResume overwrites the boundary for a collection.
func (r *RedisResume) SaveResume(ctx context.Context, record core.ResumeRecord) error {
	if r == nil || r.Client == nil {
		return errors.New("redis resume store is not initialized")
	}
	collection := strings.TrimSpace(record.Collection)
	if collection == "" {
		return errors.New("collection is required")
	}
	if record.LastPage < 1 {
		return fmt.Errorf("last page must be at least 1, got %d", record.LastPage)
	}

	updatedAt := record.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	err := r.Client.HSet(ctx, r.key(collection), map[string]any{
		fieldLastPage:  record.LastPage,
		fieldPageSize:  record.PageSize,
		fieldUpdatedAt: updatedAt.UTC().Unix(),
	}).Err()
	if err != nil {
		return fmt.Errorf("store resume page: %w", err)
	}
	return nil
}

// ListResume returns the records matching q ordered by collection.
func (r *RedisResume) ListResume(ctx context.Context, q ResumeQuery) ([]core.ResumeRecord, error) {
	keys, err := r.matchingKeys(ctx, q)
	if err != nil {
		return nil, err
	}

	records := []core.ResumeRecord{}
	for _, key := range keys {
		collection := strings.TrimPrefix(key, r.keyPrefix())
		record, ok, err := r.LoadResume(ctx, collection)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, record)
		}
	}
	return records, nil
}

// CountResume returns how many records match q.
func (r *RedisResume) CountResume(ctx context.Context, q ResumeQuery) (int, error) {
	keys, err := r.matchingKeys(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// ResetResume deletes the records matching q.
func (r *RedisResume) ResetResume(ctx context.Context, q ResumeQuery) (int64, error) {
	keys, err := r.matchingKeys(ctx, q)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	deleted, err := r.Client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("reset resume pages: %w", err)
	}
	return deleted, nil
}

func (r *RedisResume) matchingKeys(ctx context.Context, q ResumeQuery) ([]string, error) {
	if r == nil || r.Client == nil {
		return nil, errors.New("redis resume store is not initialized")
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	pattern := escapeGlob(r.keyPrefix()) + "*"
	if c := strings.TrimSpace(q.Collection); c != "" && !q.All {
		pattern = escapeGlob(r.key(c))
	}

	keys := []string{}
	iter := r.Client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if q.Matches(strings.TrimPrefix(key, r.keyPrefix())) {
			keys = append(keys, key)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan resume pages: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *RedisResume) keyPrefix() string {
	return r.Prefix + resumeKeySegment
}

func (r *RedisResume) key(collection string) string {
	return r.keyPrefix() + collection
}

func decodeResumeHash(collection string, fields map[string]string) (core.ResumeRecord, error) {
	record := core.ResumeRecord{Collection: collection}

	lastPage, err := strconv.Atoi(fields[fieldLastPage])
	if err != nil {
		return core.ResumeRecord{}, fmt.Errorf("decode %s for %s: %w", fieldLastPage, collection, err)
	}
	record.LastPage = lastPage

	if raw, ok := fields[fieldPageSize]; ok {
		pageSize, err := strconv.Atoi(raw)
		if err != nil {
			return core.ResumeRecord{}, fmt.Errorf("decode %s for %s: %w", fieldPageSize, collection, err)
		}
		record.PageSize = pageSize
	}
	if raw, ok := fields[fieldUpdatedAt]; ok {
		seconds, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return core.ResumeRecord{}, fmt.Errorf("decode %s for %s: %w", fieldUpdatedAt, collection, err)
		}
		record.UpdatedAt = time.Unix(seconds, 0).UTC()
	}
	return record, nil
}

func escapeGlob(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
	return replacer.Replace(value)
}
