package flagstore

import (
	"context"
	"testing"

	"flagforge/internal/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceRefRepoPath(t *testing.T) {
	assert.Equal(t, "flags/checkout-v2.json", ResourceRef{Key: "checkout-v2"}.RepoPath())
	assert.Equal(t, "flags/web/checkout-v2.json", ResourceRef{Project: "web", Key: "checkout-v2"}.RepoPath())
}

func TestLocalStoreRoundTrip(t *testing.T) {
	store := NewLocalStore(t.TempDir())
	ctx := context.Background()
	ref := ResourceRef{Project: "web", Key: "checkout-v2"}

	_, err := store.GetCurrentConfig(ctx, ref)
	require.ErrorIs(t, err, apperrors.ErrNotFound, "missing document must be a not-found error")

	require.NoError(t, store.WriteConfig(ctx, ref, []byte(`{"disable":false}`)))

	data, err := store.GetCurrentConfig(ctx, ref)
	require.NoError(t, err)
	assert.JSONEq(t, `{"disable":false}`, string(data))

	// overwrite replaces the document
	require.NoError(t, store.WriteConfig(ctx, ref, []byte(`{"disable":true}`)))
	data, err = store.GetCurrentConfig(ctx, ref)
	require.NoError(t, err)
	assert.JSONEq(t, `{"disable":true}`, string(data))
}
