// Package checkpoint persists continuation tokens so operator-run jobs can resume.
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/briar/pkg/redis"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// Checkpoint is the saved position of one job.
type Checkpoint struct {
	Job               string    `json:"job"`
	EntityType        string    `json:"entity_type"`
	ContinuationToken string    `json:"continuation_token"`
	Pages             int       `json:"pages"`
	Processed         int       `json:"processed"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Store interface {
	Save(ctx context.Context, cp Checkpoint) error
	// Load returns found=false when no checkpoint exists.
	Load(ctx context.Context, job string) (Checkpoint, bool, error)
	Clear(ctx context.Context, job string) error
}

// JobName identifies a job by operation and entity type.
func JobName(operation, entityType string) string {
	return operation + ":" + entityType
}

// RedisStore keeps checkpoints as JSON strings under a key prefix.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger ectologger.Logger
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration, logger ectologger.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *RedisStore) key(job string) string {
	return s.prefix + job
}

func (s *RedisStore) Save(ctx context.Context, cp Checkpoint) error {
	ctx, span := tracing.StartSpan(ctx, "checkpoint.RedisStore.Save")
	defer span.End()

	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := s.client.Set(ctx, s.key(cp.Job), data, s.ttl); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("job", cp.Job).Error("Failed to save checkpoint")
		return err
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, job string) (Checkpoint, bool, error) {
	ctx, span := tracing.StartSpan(ctx, "checkpoint.RedisStore.Load")
	defer span.End()

	raw, found, err := s.client.Get(ctx, s.key(job))
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("job", job).Error("Failed to load checkpoint")
		return Checkpoint{}, false, err
	}
	if !found {
		return Checkpoint{}, false, nil
	}
	var cp Checkpoint
	if err := json.Unmarshal([]byte(raw), &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("failed to decode checkpoint %s: %w", job, err)
	}
	return cp, true, nil
}

func (s *RedisStore) Clear(ctx context.Context, job string) error {
	return s.client.Del(ctx, s.key(job))
}

// MemoryStore keeps checkpoints for the life of the process.
type MemoryStore struct {
	mu  sync.Mutex
	cps map[string]Checkpoint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cps: make(map[string]Checkpoint)}
}

func (s *MemoryStore) Save(_ context.Context, cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	s.cps[cp.Job] = cp
	return nil
}

func (s *MemoryStore) Load(_ context.Context, job string) (Checkpoint, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp, ok := s.cps[job]
	return cp, ok, nil
}

func (s *MemoryStore) Clear(_ context.Context, job string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cps, job)
	return nil
}
