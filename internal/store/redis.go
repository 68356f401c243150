// Tenantcore - Multi-tenant Realtime Notification and Response Cache Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tenantcore

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/tenantcore/internal/config"
	"github.com/tomtom215/tenantcore/internal/logging"
	"github.com/tomtom215/tenantcore/internal/metrics"
)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 500

// Ensure Redis implements Store
var _ Store = (*Redis)(nil)

// Redis implements Store on a go-redis client. Every command goes through a
// circuit breaker so a dead Redis costs one fast failure per call instead of
// a dial timeout.
type Redis struct {
	client  *redis.Client
	cb      *gobreaker.CircuitBreaker[interface{}]
	name    string
	healthy atomic.Bool

	closeOnce sync.Once
}

// NewRedis creates a client for cfg. name labels the breaker and metrics, so
// the publisher and subscriber connections of one process stay distinct.
// No connection is made until the first command; call Ping to verify.
func NewRedis(cfg config.RedisConfig, name string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	return newRedisWithClient(client, name, DefaultBreakerConfig())
}

func newRedisWithClient(client *redis.Client, name string, bc BreakerConfig) *Redis {
	return &Redis{
		client: client,
		cb:     newBreaker(name, bc),
		name:   name,
	}
}

// run executes fn through the breaker and keeps health and metrics current.
func run[T any](r *Redis, command string, fn func() (T, error)) (T, error) {
	var zero T
	if r == nil || r.client == nil {
		return zero, ErrNotConfigured
	}

	result, err := r.cb.Execute(func() (interface{}, error) {
		return fn()
	})

	switch {
	case err == nil, errors.Is(err, redis.Nil):
		r.healthy.Store(true)
		metrics.CircuitBreakerRequests.WithLabelValues(r.name, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.CircuitBreakerRequests.WithLabelValues(r.name, "rejected").Inc()
		return zero, fmt.Errorf("%s: %w", command, ErrUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return zero, fmt.Errorf("%s: %w", command, err)
	default:
		r.healthy.Store(false)
		metrics.CircuitBreakerRequests.WithLabelValues(r.name, "failure").Inc()
		metrics.StoreCommandErrors.WithLabelValues(command).Inc()
		return zero, fmt.Errorf("%s: %w", command, err)
	}

	if result == nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected result type %T", command, result)
	}
	return typed, err
}

// Get implements Store.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := run(r, "get", func() (string, error) {
		return r.client.Get(ctx, key).Result()
	})
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetWithTTL implements Store. A non-positive ttl stores without expiry.
func (r *Redis) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	_, err := run(r, "set", func() (string, error) {
		return r.client.Set(ctx, key, value, ttl).Result()
	})
	return err
}

// Delete implements Store.
func (r *Redis) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return run(r, "del", func() (int64, error) {
		return r.client.Del(ctx, keys...).Result()
	})
}

// Exists implements Store.
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := run(r, "exists", func() (int64, error) {
		return r.client.Exists(ctx, key).Result()
	})
	return n > 0, err
}

// Expire implements Store.
func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	_, err := run(r, "expire", func() (bool, error) {
		return r.client.Expire(ctx, key, ttl).Result()
	})
	return err
}

// Keys implements Store with an incremental SCAN.
func (r *Redis) Keys(ctx context.Context, pattern string) ([]string, error) {
	return run(r, "scan", func() ([]string, error) {
		var (
			keys   []string
			cursor uint64
		)
		seen := make(map[string]struct{})
		for {
			batch, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
			if err != nil {
				return nil, err
			}
			// SCAN may return a key more than once
			for _, k := range batch {
				if _, dup := seen[k]; !dup {
					seen[k] = struct{}{}
					keys = append(keys, k)
				}
			}
			if next == 0 {
				return keys, nil
			}
			cursor = next
		}
	})
}

// SetAdd implements Store.
func (r *Redis) SetAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	_, err := run(r, "sadd", func() (int64, error) {
		return r.client.SAdd(ctx, key, toArgs(members)...).Result()
	})
	return err
}

// SetRemove implements Store.
func (r *Redis) SetRemove(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	_, err := run(r, "srem", func() (int64, error) {
		return r.client.SRem(ctx, key, toArgs(members)...).Result()
	})
	return err
}

// SetMembers implements Store.
func (r *Redis) SetMembers(ctx context.Context, key string) ([]string, error) {
	return run(r, "smembers", func() ([]string, error) {
		return r.client.SMembers(ctx, key).Result()
	})
}

// HashSet implements Store.
func (r *Redis) HashSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	_, err := run(r, "hset", func() (int64, error) {
		return r.client.HSet(ctx, key, fields).Result()
	})
	return err
}

// HashGetAll implements Store.
func (r *Redis) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	return run(r, "hgetall", func() (map[string]string, error) {
		return r.client.HGetAll(ctx, key).Result()
	})
}

// Publish implements Store.
func (r *Redis) Publish(ctx context.Context, channel, payload string) error {
	_, err := run(r, "publish", func() (int64, error) {
		return r.client.Publish(ctx, channel, payload).Result()
	})
	return err
}

// Subscribe implements Store. It returns once the server confirmed the
// subscription.
func (r *Redis) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	return run(r, "subscribe", func() (Subscription, error) {
		ps := r.client.Subscribe(ctx, channel)
		if _, err := ps.Receive(ctx); err != nil {
			_ = ps.Close()
			return nil, err
		}
		return newRedisSubscription(ps), nil
	})
}

// Ping implements Store.
func (r *Redis) Ping(ctx context.Context) error {
	_, err := run(r, "ping", func() (string, error) {
		return r.client.Ping(ctx).Result()
	})
	return err
}

// Connected reports whether the last command succeeded and the breaker is
// not open.
func (r *Redis) Connected() bool {
	if r == nil || r.client == nil {
		return false
	}
	return r.healthy.Load() && r.cb.State() != gobreaker.StateOpen
}

// Close implements Store. Safe to call more than once.
func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	var err error
	r.closeOnce.Do(func() {
		r.healthy.Store(false)
		err = r.client.Close()
		logging.Debug().Str("store", r.name).Msg("Redis client closed")
	})
	return err
}

// Pipeline implements Store.
func (r *Redis) Pipeline() Pipeline {
	p := &redisPipeline{r: r}
	if r != nil && r.client != nil {
		p.pipe = r.client.TxPipeline()
	}
	return p
}

type redisPipeline struct {
	r    *Redis
	pipe redis.Pipeliner
	n    int
}

// Queued commands carry a background context; Exec's ctx governs the round trip.
var queueCtx = context.Background()

func (p *redisPipeline) SetWithTTL(key, value string, ttl time.Duration) {
	if p.pipe == nil {
		return
	}
	p.pipe.Set(queueCtx, key, value, ttl)
	p.n++
}

func (p *redisPipeline) SetAdd(key string, members ...string) {
	if p.pipe == nil || len(members) == 0 {
		return
	}
	p.pipe.SAdd(queueCtx, key, toArgs(members)...)
	p.n++
}

func (p *redisPipeline) SetRemove(key string, members ...string) {
	if p.pipe == nil || len(members) == 0 {
		return
	}
	p.pipe.SRem(queueCtx, key, toArgs(members)...)
	p.n++
}

func (p *redisPipeline) HashSet(key string, fields map[string]string) {
	if p.pipe == nil || len(fields) == 0 {
		return
	}
	p.pipe.HSet(queueCtx, key, fields)
	p.n++
}

func (p *redisPipeline) Expire(key string, ttl time.Duration) {
	if p.pipe == nil {
		return
	}
	p.pipe.Expire(queueCtx, key, ttl)
	p.n++
}

func (p *redisPipeline) Delete(keys ...string) {
	if p.pipe == nil || len(keys) == 0 {
		return
	}
	p.pipe.Del(queueCtx, keys...)
	p.n++
}

func (p *redisPipeline) Len() int {
	return p.n
}

func (p *redisPipeline) Exec(ctx context.Context) error {
	if p.pipe == nil {
		return ErrNotConfigured
	}
	if p.n == 0 {
		return nil
	}
	_, err := run(p.r, "exec", func() (int, error) {
		cmds, err := p.pipe.Exec(ctx)
		return len(cmds), err
	})
	return err
}

// redisSubscription adapts *redis.PubSub to Subscription.
type redisSubscription struct {
	ps   *redis.PubSub
	out  chan Message
	done chan struct{}
	once sync.Once
}

func newRedisSubscription(ps *redis.PubSub) *redisSubscription {
	s := &redisSubscription{ps: ps, out: make(chan Message, 64), done: make(chan struct{})}
	go s.forward()
	return s
}

func (s *redisSubscription) forward() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		select {
		case s.out <- Message{Channel: msg.Channel, Payload: msg.Payload}:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan Message {
	return s.out
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func toArgs(members []string) []interface{} {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return args
}
