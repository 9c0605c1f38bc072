package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotJob asks the worker to drain a channel and store a snapshot.
type SnapshotJob struct {
	Slug        string    `json:"slug"`
	Per         int       `json:"per,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// DefaultQueue is the Redis list key for snapshot jobs.
const DefaultQueue = "folio:jobs:snapshots"

// Enqueue pushes a job onto the left side of the list.
func Enqueue(ctx context.Context, r *Redis, queue string, job SnapshotJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue marshal: %w", err)
	}
	return r.client.LPush(ctx, queue, data).Err()
}

// Dequeue blocks until a job is available on the right side of the list
// or the timeout expires. A timeout or a cancelled ctx yields (nil, nil)
// so the caller can loop and check for shutdown.
func Dequeue(ctx context.Context, r *Redis, queue string, timeout time.Duration) (*SnapshotJob, error) {
	result, err := r.client.BRPop(ctx, timeout, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue dequeue: %w", err)
	}
	// [key, value]
	if len(result) < 2 {
		return nil, nil
	}
	var job SnapshotJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("queue unmarshal: %w", err)
	}
	return &job, nil
}
