package iocache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/shiftpoint/internal/contract"
	"github.com/huangsam/shiftpoint/schema"
	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces every memo hash in Redis.
const redisKeyPrefix = "shiftpoint:cache:"

// redisTimeout bounds each Redis round trip.
const redisTimeout = 5 * time.Second

// RedisCacheStore keeps memo entries as Redis hashes with value, version and timestamp fields.
type RedisCacheStore struct {
	rdb    *redis.Client
	prefix string
}

var _ contract.CacheStore = &RedisCacheStore{} // Compile-time check

// NewRedisCacheStore connects to Redis. connStr is either host:port or a redis:// URL.
func NewRedisCacheStore(connStr, namespace string) (*RedisCacheStore, error) {
	opts, err := redisOptions(connStr)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return &RedisCacheStore{rdb: rdb, prefix: redisKeyPrefix + namespace + ":"}, nil
}

func redisOptions(connStr string) (*redis.Options, error) {
	if strings.HasPrefix(connStr, "redis://") || strings.HasPrefix(connStr, "rediss://") {
		opts, err := redis.ParseURL(connStr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		return opts, nil
	}
	if connStr == "" {
		return nil, errors.New("redis backend requires an address")
	}
	return &redis.Options{Addr: connStr}, nil
}

// Get returns sql.ErrNoRows for a missing key, the same miss sentinel as the SQL stores.
func (rs *RedisCacheStore) Get(key string) ([]byte, int, int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	fields, err := rs.rdb.HGetAll(ctx, rs.prefix+key).Result()
	if err != nil {
		return nil, 0, 0, err
	}
	if len(fields) == 0 {
		return nil, 0, 0, sql.ErrNoRows
	}

	version, err := strconv.Atoi(fields["version"])
	if err != nil {
		return nil, 0, 0, fmt.Errorf("corrupt version for %s: %w", key, err)
	}
	ts, err := strconv.ParseInt(fields["timestamp"], 10, 64)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("corrupt timestamp for %s: %w", key, err)
	}
	return []byte(fields["value"]), version, ts, nil
}

// Set writes all three fields in one HSET.
func (rs *RedisCacheStore) Set(key string, value []byte, version int, timestamp int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	return rs.rdb.HSet(ctx, rs.prefix+key,
		"value", value,
		"version", version,
		"timestamp", timestamp,
	).Err()
}

// Clear deletes every key under the store prefix.
func (rs *RedisCacheStore) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	iter := rs.rdb.Scan(ctx, 0, rs.prefix+"*", 100).Iterator()
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := rs.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return rs.rdb.Del(ctx, batch...).Err()
	}
	return nil
}

// GetStatus scans the prefix to count entries and find their time range.
func (rs *RedisCacheStore) GetStatus() (schema.CacheStatus, error) {
	status := schema.CacheStatus{Backend: string(schema.RedisBackend), Connected: true}

	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	var lastTs, oldestTs int64
	iter := rs.rdb.Scan(ctx, 0, rs.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		vals, err := rs.rdb.HMGet(ctx, iter.Val(), "timestamp", "value").Result()
		if err != nil {
			return status, fmt.Errorf("failed to read %s: %w", iter.Val(), err)
		}
		status.TotalEntries++
		if s, ok := vals[1].(string); ok {
			status.TableSizeBytes += int64(len(s))
		}
		s, _ := vals[0].(string)
		ts, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		if lastTs == 0 || ts > lastTs {
			lastTs = ts
		}
		if oldestTs == 0 || ts < oldestTs {
			oldestTs = ts
		}
	}
	if err := iter.Err(); err != nil {
		return status, err
	}

	if status.TotalEntries > 0 {
		status.LastEntryTime = time.Unix(lastTs, 0)
		status.OldestEntryTime = time.Unix(oldestTs, 0)
	}
	return status, nil
}

// Close closes the Redis client.
func (rs *RedisCacheStore) Close() error {
	return rs.rdb.Close()
}
