package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const userKeyPrefix = "supermart:user:"

// RedisStore stores each user as a JSON document under its email.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// OpenRedisStore connects using a redis:// URL and checks the server answers.
func OpenRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Create(ctx context.Context, u *User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	ok, err := s.client.SetNX(ctx, userKey(u.Email), data, 0).Result()
	if err != nil {
		return fmt.Errorf("store user: %w", err)
	}
	if !ok {
		return ErrUserExists
	}
	return nil
}

func (s *RedisStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	data, err := s.client.Get(ctx, userKey(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func userKey(email string) string {
	return userKeyPrefix + NormalizeEmail(email)
}
