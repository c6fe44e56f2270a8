package goauth

import (
	"context"
	"errors"
	"github.com/redis/go-redis/v9"
	"time"
)

var ErrCodeNotFound = errors.New("verification code not found")

// CodeStore keeps pending registrations until the e-mailed code comes back.
type CodeStore interface {
	Set(ctx context.Context, code, value string, ttl time.Duration) error
	// Take returns the value and deletes it, so a code works only once.
	Take(ctx context.Context, code string) (string, error)
}

type RedisCodes struct {
	RDB *redis.Client
}

func (r *RedisCodes) Set(ctx context.Context, code, value string, ttl time.Duration) error {
	return r.RDB.SetNX(ctx, "register:"+code, value, ttl).Err()
}

func (r *RedisCodes) Take(ctx context.Context, code string) (string, error) {
	val, err := r.RDB.GetDel(ctx, "register:"+code).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCodeNotFound
	}
	return val, err
}
