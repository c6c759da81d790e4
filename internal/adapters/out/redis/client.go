// Package redis holds the Redis-backed adapters: the location ingest buffer with
// its live geo set, the shared offer-ack store and the job lock.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyNamespace = "dsp"

// Config selects the Redis server. URL wins over Addr when both are set.
type Config struct {
	URL          string
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// New connects and pings Redis.
func New(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func optionsFromConfig(cfg Config) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Addr == "" {
		return nil, errors.New("redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// buildKey joins the non-empty parts under the service namespace.
func buildKey(parts ...string) string {
	segments := make([]string, 0, len(parts)+1)
	segments = append(segments, keyNamespace)
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return strings.Join(segments, ":")
}
