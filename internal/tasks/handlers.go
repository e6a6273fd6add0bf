package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"flagforge/internal/apikeys"
	"flagforge/internal/utils/logger"

	"github.com/hibiken/asynq"
)

// TaskHandler processes queued work against the API key store.
type TaskHandler struct {
	keys   apikeys.Repository
	logger *logger.Logger
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(keys apikeys.Repository) *TaskHandler {
	return &TaskHandler{
		keys:   keys,
		logger: logger.New("task_handler"),
	}
}

// HandleAPIKeyTouch persists a key's last-used timestamp. A key revoked
// between enqueue and processing is not an error; there is nothing left
// to touch.
func (h *TaskHandler) HandleAPIKeyTouch(ctx context.Context, t *asynq.Task) error {
	var payload APIKeyTouchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid touch payload: %w", err)
	}

	if err := h.keys.TouchLastUsed(ctx, payload.KeyID, payload.At); err != nil {
		h.logger.Warn("touch for key %s skipped: %v", payload.KeyID, err)
	}
	return nil
}

// HandleAPIKeyPrune deletes keys whose expiry passed more than the grace
// period ago.
func (h *TaskHandler) HandleAPIKeyPrune(ctx context.Context, t *asynq.Task) error {
	cutoff := time.Now().Add(-pruneGrace)
	deleted, err := h.keys.DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		return h.logger.Error("prune failed ❌", err)
	}
	if deleted > 0 {
		h.logger.Success("🧹 pruned %d expired API key(s)", deleted)
	}
	return nil
}
