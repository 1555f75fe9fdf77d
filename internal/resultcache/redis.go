package resultcache

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const redisKeyPrefix = "geoattr:loc:"

// RedisStore implements Store with one string key per location.
type RedisStore struct {
	rc *redis.Client
}

// NewRedis creates a store for the Redis server at addr.
func NewRedis(addr, password string, db int) *RedisStore {
	return NewRedisWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}))
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(rc *redis.Client) *RedisStore {
	return &RedisStore{rc: rc}
}

// redisKey renders exact coordinates; distinct floats never share a key.
func redisKey(key Key) string {
	return redisKeyPrefix + formatCoord(key.X) + ":" + formatCoord(key.Y) + ":" + key.Variable
}

func formatCoord(v float64) string {
	if v == 0 {
		v = 0 // -0 and 0 are equal keys
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Migrate checks the server is reachable; there is no schema.
func (s *RedisStore) Migrate(ctx context.Context) error {
	return eris.Wrap(s.rc.Ping(ctx).Err(), "redis: ping")
}

func (s *RedisStore) Get(ctx context.Context, key Key) (string, bool, error) {
	label, err := s.rc.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrap(err, "redis: get location")
	}
	return label, true, nil
}

func (s *RedisStore) Put(ctx context.Context, key Key, label string) (bool, error) {
	ok, err := s.rc.SetNX(ctx, redisKey(key), label, 0).Result()
	if err != nil {
		return false, eris.Wrap(err, "redis: put location")
	}
	return ok, nil
}

func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	var n int64
	iter := s.rc.Scan(ctx, 0, redisKeyPrefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, eris.Wrap(err, "redis: count locations")
	}
	return n, nil
}

func (s *RedisStore) Close() error {
	return s.rc.Close()
}
