package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func MustConnect(addr string, db int) *redis.Client {
	r := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := r.Ping(context.Background()).Err(); err != nil {
		panic(err)
	}
	return r
}

// TextCache stores recognized text keyed by a fingerprint of the processed
// page, so re-running a folder skips pages tesseract has already read.
type TextCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, text string) error
}

type RedisText struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// Engine is the recognition setup a cached text depends on: the same pixels
// read with other traineddata or another segmentation mode give other text.
type Engine struct {
	Lang string
	OEM  int
	PSM  int
}

func (e Engine) prefix() string {
	return fmt.Sprintf("ocr:%s:oem%d:psm%d:", e.Lang, e.OEM, e.PSM)
}

func NewRedisText(rdb *redis.Client, ttl time.Duration, eng Engine) *RedisText {
	return &RedisText{rdb: rdb, ttl: ttl, prefix: eng.prefix()}
}

func (c *RedisText) Get(ctx context.Context, key string) (string, bool) {
	txt, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if err != nil {
		return "", false
	}
	return txt, true
}

func (c *RedisText) Set(ctx context.Context, key, text string) error {
	if c.ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, c.prefix+key, text, c.ttl).Err()
}
