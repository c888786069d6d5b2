package jobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements the Store interface using go-redis/v9. Jobs are
// hashes, queues are lists (LPUSH head, RPOP tail).
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new RedisStore from a Redis URL.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// NewUnconfiguredStore returns a store with no backing client. Read
// operations report empty results; write operations fail with
// ErrNotConfigured. Status pages keep rendering, enqueues never silently
// vanish.
func NewUnconfiguredStore() *RedisStore {
	return &RedisStore{}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if s.client == nil {
		return ErrNotConfigured
	}
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) CreateJob(ctx context.Context, job *Job) error {
	if s.client == nil {
		return ErrNotConfigured
	}
	if err := s.client.HSet(ctx, JobKey(job.ID), encodeFields(jobFields(job))).Err(); err != nil {
		return fmt.Errorf("create job %s: %w", job.ID, err)
	}
	if err := s.client.RPush(ctx, IndexKey(), job.ID).Err(); err != nil {
		return fmt.Errorf("index job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	if s.client == nil {
		return nil, nil
	}
	fields, err := s.client.HGetAll(ctx, JobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return jobFromFields(fields), nil
}

func (s *RedisStore) UpdateJob(ctx context.Context, jobID string, fields map[string]any) error {
	if s.client == nil {
		return ErrNotConfigured
	}
	if len(fields) == 0 {
		return nil
	}
	if err := s.client.HSet(ctx, JobKey(jobID), encodeFields(fields)).Err(); err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	return nil
}

func (s *RedisStore) Enqueue(ctx context.Context, queue, jobID string) error {
	if s.client == nil {
		return ErrNotConfigured
	}
	if err := s.client.LPush(ctx, QueueKey(queue), jobID).Err(); err != nil {
		return fmt.Errorf("enqueue job %s on %s: %w", jobID, queue, err)
	}
	return nil
}

func (s *RedisStore) Dequeue(ctx context.Context, queue string) (string, error) {
	if s.client == nil {
		return "", nil
	}
	jobID, err := s.client.RPop(ctx, QueueKey(queue)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("dequeue from %s: %w", queue, err)
	}
	return jobID, nil
}

func (s *RedisStore) RemoveFromQueue(ctx context.Context, queue, jobID string, count int64) (int64, error) {
	if s.client == nil {
		return 0, ErrNotConfigured
	}
	removed, err := s.client.LRem(ctx, QueueKey(queue), count, jobID).Result()
	if err != nil {
		return 0, fmt.Errorf("remove job %s from %s: %w", jobID, queue, err)
	}
	return removed, nil
}

func (s *RedisStore) QueueLength(ctx context.Context, queue string) (int64, error) {
	if s.client == nil {
		return 0, nil
	}
	n, err := s.client.LLen(ctx, QueueKey(queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("length of %s: %w", queue, err)
	}
	return n, nil
}

func (s *RedisStore) ListQueueRange(ctx context.Context, queue string, start, stop int64) ([]string, error) {
	if s.client == nil {
		return nil, nil
	}
	ids, err := s.client.LRange(ctx, QueueKey(queue), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("range of %s: %w", queue, err)
	}
	return ids, nil
}

func (s *RedisStore) ListJobs(ctx context.Context) ([]*Job, error) {
	if s.client == nil {
		return nil, nil
	}
	ids, err := s.client.LRange(ctx, IndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list job index: %w", err)
	}

	jobs := make([]*Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			return nil, err
		}
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (s *RedisStore) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	if s.client == nil {
		return 0, ErrNotConfigured
	}
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

var _ Store = (*RedisStore)(nil)
