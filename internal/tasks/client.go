package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"flagforge/internal/utils/logger"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// TaskClient enqueues background work. The raw redis client backs the
// touch dedup window; asynq owns the queues themselves.
type TaskClient struct {
	client      *asynq.Client
	logger      *logger.Logger
	redisClient *redis.Client
}

func (c *TaskClient) GetClient() *asynq.Client {
	return c.client
}

// NewTaskClient creates a new TaskClient with the given Redis configuration
func NewTaskClient(redisAddr, username, password string, db int) *TaskClient {
	redisOpt := asynq.RedisClientOpt{
		Addr:     redisAddr,
		Username: username,
		Password: password,
		DB:       db,
	}

	redisClient := redis.NewClient(
		&redis.Options{
			Addr:     redisAddr,
			Username: username,
			Password: password,
			DB:       db,
		},
	)

	return &TaskClient{
		client:      asynq.NewClient(redisOpt),
		redisClient: redisClient,
		logger:      logger.New("TASKS"),
	}
}

// APIKeyTouchPayload carries the key whose last-used timestamp moves.
type APIKeyTouchPayload struct {
	KeyID string    `json:"keyId"`
	At    time.Time `json:"at"`
}

// EnqueueAPIKeyTouch records that a key was just used. At most one touch
// per key per dedup window reaches the queue; the rest are dropped here.
// Errors are logged and swallowed: a failed touch must never fail the
// request that triggered it. The redis round-trips happen on their own
// goroutine so the caller's authorization path never waits on them.
func (c *TaskClient) EnqueueAPIKeyTouch(keyID string) {
	go c.enqueueTouch(keyID)
}

func (c *TaskClient) enqueueTouch(keyID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dedupKey := fmt.Sprintf("apikeys:touch:dedup:%s", keyID)
	ok, err := c.redisClient.SetNX(ctx, dedupKey, 1, touchDedupWindow).Result()
	if err != nil {
		c.logger.Warn("touch dedup check failed for key %s: %v", keyID, err)
		return
	}
	if !ok {
		return
	}

	payload, err := json.Marshal(APIKeyTouchPayload{KeyID: keyID, At: time.Now()})
	if err != nil {
		c.logger.Warn("failed to encode touch payload: %v", err)
		return
	}

	task := asynq.NewTask(TaskTypeAPIKeyTouch, payload,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(RetryMin),
		asynq.Timeout(TimeoutShort),
	)
	if _, err := c.client.Enqueue(task); err != nil {
		c.logger.Warn("failed to enqueue touch for key %s: %v", keyID, err)
	}
}

// EnqueueAPIKeyPrune schedules a one-shot prune run at the next boundary
// of the given cron expression. Operators use this to trigger cleanup off
// the daily schedule.
func (c *TaskClient) EnqueueAPIKeyPrune(cronExpr string) error {
	runAt, err := nextCronRun(cronExpr, time.Now())
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeAPIKeyPrune, nil,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(RetryDefault),
		asynq.Timeout(TimeoutMedium),
	)
	info, err := c.client.Enqueue(task, asynq.ProcessAt(runAt))
	if err != nil {
		return fmt.Errorf("failed to enqueue prune: %w", err)
	}
	c.logger.Info("prune scheduled: id=%s queue=%s at=%s", info.ID, info.Queue, runAt.Format(time.RFC3339))
	return nil
}

// nextCronRun resolves the first boundary of a cron expression after now.
func nextCronRun(expr string, now time.Time) (time.Time, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule.Next(now), nil
}

// Close closes the underlying asynq client
func (c *TaskClient) Close() error {
	if err := c.redisClient.Close(); err != nil {
		c.logger.Warn("failed to close redis client: %v", err)
	}
	return c.client.Close()
}
