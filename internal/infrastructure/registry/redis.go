package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hilthontt/relay/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type redisRegistry struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRegistry connects to Redis and verifies the connection.
func NewRedisRegistry(ctx context.Context, opts RedisOptions) (domain.Registry, func() error, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisRegistry{client: client, keyPrefix: opts.KeyPrefix}, client.Close, nil
}

func (r *redisRegistry) key(identity string) string {
	return r.keyPrefix + identity
}

func (r *redisRegistry) Put(ctx context.Context, identity string, descriptor domain.Descriptor) error {
	data, err := encode(descriptor)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(identity), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store descriptor: %w", err)
	}
	return nil
}

func (r *redisRegistry) Get(ctx context.Context, identity string) (domain.Descriptor, error) {
	data, err := r.client.Get(ctx, r.key(identity)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Descriptor{}, domain.ErrSessionNotFound
		}
		return domain.Descriptor{}, fmt.Errorf("failed to load descriptor: %w", err)
	}
	return decode(identity, data)
}

func (r *redisRegistry) Delete(ctx context.Context, identity string) error {
	if err := r.client.Del(ctx, r.key(identity)).Err(); err != nil {
		return fmt.Errorf("failed to delete descriptor: %w", err)
	}
	return nil
}

func (r *redisRegistry) Exists(ctx context.Context, identity string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(identity)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check descriptor: %w", err)
	}
	return n > 0, nil
}

func (r *redisRegistry) List(ctx context.Context) ([]string, error) {
	ids := []string{}
	iter := r.client.Scan(ctx, 0, r.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), r.keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list descriptors: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}
