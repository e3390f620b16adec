package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const jobKeyPrefix = "keepr:job:"

// RedisJobStore keeps jobs as JSON values. A TTL bounds how long stale jobs
// linger; zero keeps them forever.
type RedisJobStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisJobStore(client *redis.Client, ttl time.Duration) *RedisJobStore {
	return &RedisJobStore{client: client, ttl: ttl}
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*Job, error) {
	data, err := s.client.Get(ctx, jobKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

func (s *RedisJobStore) Put(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := s.client.Set(ctx, jobKeyPrefix+job.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func (s *RedisJobStore) List(ctx context.Context) ([]*Job, error) {
	var out []*Job
	iter := s.client.Scan(ctx, 0, jobKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get job: %w", err)
		}
		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			return nil, fmt.Errorf("unmarshal job: %w", err)
		}
		out = append(out, &job)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan jobs: %w", err)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

// RedisNotifier publishes each request as JSON on a channel the mail
// service subscribes to.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = "keepr:notifications"
	}
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	receivers, err := n.client.Publish(ctx, n.channel, data).Result()
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if receivers == 0 {
		return errors.New("no mail service subscribed")
	}
	return nil
}
