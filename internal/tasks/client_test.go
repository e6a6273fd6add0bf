package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextCronRun(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	next, err := nextCronRun("@daily", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), next)

	next, err = nextCronRun("30 * * * *", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 15, 30, 0, 0, time.UTC), next)

	_, err = nextCronRun("not a cron spec", now)
	assert.Error(t, err)
}

// The touch side effect must never hold up the request that triggered it,
// even with redis unreachable.
func TestEnqueueAPIKeyTouchDoesNotBlockCaller(t *testing.T) {
	client := NewTaskClient("127.0.0.1:1", "", "", 0)
	defer client.Close()

	start := time.Now()
	client.EnqueueAPIKeyTouch("some-key")
	assert.Less(t, time.Since(start), time.Second)
}
