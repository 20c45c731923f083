package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) TokenCache {
	return &redisCache{
		client: client,
	}
}

func tokenKey(payeeCode string) string {
	return fmt.Sprintf("payee-token:%s", payeeCode)
}

func (c *redisCache) Get(ctx context.Context, payeeCode string) (*CachedToken, bool, error) {
	raw, err := c.client.Get(ctx, tokenKey(payeeCode)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get token: %w", err)
	}

	var token CachedToken
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached token: %w", err)
	}

	return &token, true, nil
}

func (c *redisCache) Set(ctx context.Context, payeeCode string, token *CachedToken, ttl time.Duration) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("marshal cached token: %w", err)
	}

	if err := c.client.Set(ctx, tokenKey(payeeCode), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set token: %w", err)
	}
	return nil
}

func (c *redisCache) Delete(ctx context.Context, payeeCode string) error {
	if err := c.client.Del(ctx, tokenKey(payeeCode)).Err(); err != nil {
		return fmt.Errorf("redis delete token: %w", err)
	}
	return nil
}
