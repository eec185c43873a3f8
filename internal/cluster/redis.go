package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/seantiz/clusterwork/internal/model"
)

// Redis layout: a set indexing live worker IDs, plus one expiring hash per
// worker.
const (
	redisWorkerIndexKey  = "workers:index"
	redisWorkerKeyPrefix = "worker:"
)

// DefaultRegistrationTTL is how long a registration survives without a
// heartbeat.
const DefaultRegistrationTTL = 30 * time.Second

// NewRedisClient connects to a Redis server at addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// RedisDiscoverer reads membership registered by workers in Redis.
type RedisDiscoverer struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewRedisDiscoverer returns a Discoverer backed by client.
func NewRedisDiscoverer(client redis.UniversalClient, logger *slog.Logger) *RedisDiscoverer {
	return &RedisDiscoverer{client: client, logger: logger}
}

// Members returns every indexed worker whose hash has not expired. Index
// entries pointing at expired hashes are pruned.
func (d *RedisDiscoverer) Members(ctx context.Context) ([]model.Member, error) {
	ids, err := d.client.SMembers(ctx, redisWorkerIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read worker index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := d.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, redisWorkerKeyPrefix+id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("read worker hashes: %w", err)
	}

	members := make([]model.Member, 0, len(ids))
	var stale []any
	for i, id := range ids {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			stale = append(stale, id)
			continue
		}
		m, err := memberFromHash(id, fields)
		if err != nil {
			d.logger.Warn("skipping malformed worker registration", "member", id, "error", err)
			continue
		}
		members = append(members, m)
	}

	if len(stale) > 0 {
		if err := d.client.SRem(ctx, redisWorkerIndexKey, stale...).Err(); err != nil {
			d.logger.Warn("failed to prune expired workers", "count", len(stale), "error", err)
		}
	}

	return members, nil
}

// memberFromHash decodes a worker hash written by RedisRegistrar.
func memberFromHash(id string, fields map[string]string) (model.Member, error) {
	addr := fields["addr"]
	if addr == "" {
		return model.Member{}, fmt.Errorf("missing addr")
	}

	m := model.Member{
		ID:    id,
		Addr:  addr,
		Roles: splitRoles(fields["roles"], ","),
	}

	if v := fields["last_seen"]; v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return model.Member{}, fmt.Errorf("parse last_seen %q: %w", v, err)
		}
		m.LastSeen = time.UnixMilli(ms).UTC()
	}

	return m, nil
}

// memberHash encodes m for storage as a Redis hash.
func memberHash(m model.Member, lastSeen time.Time) map[string]any {
	return map[string]any{
		"worker_id": m.ID,
		"addr":      m.Addr,
		"roles":     strings.Join(m.Roles, ","),
		"last_seen": lastSeen.UnixMilli(),
	}
}

// RedisRegistrar publishes a worker's membership to Redis.
type RedisRegistrar struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisRegistrar returns a registrar whose entries expire after ttl
// unless refreshed.
func NewRedisRegistrar(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *RedisRegistrar {
	if ttl <= 0 {
		ttl = DefaultRegistrationTTL
	}
	return &RedisRegistrar{client: client, ttl: ttl, logger: logger}
}

// Register writes the member hash, indexes it and sets its expiry.
func (r *RedisRegistrar) Register(ctx context.Context, m model.Member) error {
	key := redisWorkerKeyPrefix + m.ID
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, memberHash(m, time.Now()))
		pipe.SAdd(ctx, redisWorkerIndexKey, m.ID)
		pipe.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("register worker %s: %w", m.ID, err)
	}
	return nil
}

// Heartbeat re-registers m every interval until ctx is done. Failed
// refreshes are logged and retried on the next tick.
func (r *RedisRegistrar) Heartbeat(ctx context.Context, m model.Member, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Register(ctx, m); err != nil && ctx.Err() == nil {
				r.logger.Warn("worker heartbeat failed", "member", m.ID, "error", err)
			}
		}
	}
}

// Deregister removes the member from the index and deletes its hash.
func (r *RedisRegistrar) Deregister(ctx context.Context, id string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, redisWorkerIndexKey, id)
		pipe.Del(ctx, redisWorkerKeyPrefix+id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("deregister worker %s: %w", id, err)
	}
	return nil
}
