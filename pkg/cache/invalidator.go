package cache

import (
	"context"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/pkg/redis"
)

// Invalidator drops ids from the local cache after a write and tells other processes to do the same.
type Invalidator interface {
	Invalidate(ctx context.Context, ids ...string)
}

// LocalInvalidator only touches this process's cache.
type LocalInvalidator struct {
	cache *HeaderCache
}

func NewLocalInvalidator(cache *HeaderCache) *LocalInvalidator {
	return &LocalInvalidator{cache: cache}
}

func (l *LocalInvalidator) Invalidate(_ context.Context, ids ...string) {
	l.cache.Invalidate(ids...)
}

// RedisInvalidator broadcasts invalidations on a pub/sub channel.
type RedisInvalidator struct {
	cache   *HeaderCache
	client  *redis.Client
	channel string
	logger  ectologger.Logger
}

func NewRedisInvalidator(cache *HeaderCache, client *redis.Client, channel string, logger ectologger.Logger) *RedisInvalidator {
	return &RedisInvalidator{
		cache:   cache,
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// Invalidate is best effort; a failed publish only leaves remote caches to expire by TTL.
func (r *RedisInvalidator) Invalidate(ctx context.Context, ids ...string) {
	r.cache.Invalidate(ids...)
	if len(ids) == 0 {
		return
	}
	if err := r.client.Publish(ctx, r.channel, strings.Join(ids, ",")); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("channel", r.channel).Warn("Failed to publish cache invalidation")
	}
}

// Listen applies remote invalidations until ctx is cancelled.
func (r *RedisInvalidator) Listen(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	r.logger.WithContext(ctx).Infof("Listening for cache invalidations on %s", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.cache.Invalidate(ParseIDs(msg.Payload)...)
		}
	}
}

// ParseIDs splits a comma separated invalidation payload.
func ParseIDs(payload string) []string {
	var ids []string
	for _, id := range strings.Split(payload, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
