package apikeys

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"flagforge/internal/apperrors"
	"flagforge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) (*Service, *[]string) {
	t.Helper()

	service := NewService(NewMemoryRepository())
	touched := &[]string{}
	service.SetTouchFunc(func(id string) { *touched = append(*touched, id) })
	return service, touched
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	ctx := context.Background()
	service, touched := newTestService(t)

	record, plaintext, err := service.Issue(ctx, "relay-prod", []string{"flag:read"}, nil, "user-1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(plaintext, KeyPrefix))
	assert.Len(t, record.Prefix, LookupPrefixLength)
	assert.NotContains(t, record.Hash, plaintext, "hash must not embed the secret")

	validated, err := service.Validate(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, record.ID, validated.ID)
	assert.Equal(t, []string{record.ID}, *touched)
}

func TestValidateRejectsTamperedAndTruncatedKeys(t *testing.T) {
	ctx := context.Background()
	service, touched := newTestService(t)

	_, plaintext, err := service.Issue(ctx, "ci", nil, nil, "")
	require.NoError(t, err)

	// flip the last character
	tampered := plaintext[:len(plaintext)-1] + "?"
	_, err = service.Validate(ctx, tampered)
	assert.ErrorIs(t, err, apperrors.ErrAuth)

	_, err = service.Validate(ctx, plaintext[:len(KeyPrefix)+LookupPrefixLength-1])
	assert.ErrorIs(t, err, apperrors.ErrAuth)

	_, err = service.Validate(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrAuth)

	// a key without the ffk_ marker never reaches the hash comparison
	_, err = service.Validate(ctx, strings.TrimPrefix(plaintext, KeyPrefix))
	assert.ErrorIs(t, err, apperrors.ErrAuth)

	assert.Empty(t, *touched)
}

func TestValidateRejectsExpiredKeyWithCorrectSecret(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	service := NewService(repo)
	service.SetTouchFunc(func(string) {})

	plaintext := KeyPrefix + "expired1" + strings.Repeat("c", 32)
	key := storedKey(t, "short-lived", plaintext)
	past := time.Now().Add(-time.Minute)
	key.ExpiresAt = &past
	require.NoError(t, repo.Create(ctx, key))

	_, err := service.Validate(ctx, plaintext)
	assert.ErrorIs(t, err, apperrors.ErrAuth)
}

func TestIssueRejectsPastExpiryAndEmptyName(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	past := time.Now().Add(-time.Hour)
	_, _, err := service.Issue(ctx, "stale", nil, &past, "")
	var validationErr *apperrors.ValidationError
	assert.True(t, errors.As(err, &validationErr))

	_, _, err = service.Issue(ctx, "  ", nil, nil, "")
	assert.True(t, errors.As(err, &validationErr))
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	record, plaintext, err := service.Issue(ctx, "doomed", nil, nil, "")
	require.NoError(t, err)

	require.NoError(t, service.Revoke(ctx, record.ID))

	_, err = service.Validate(ctx, plaintext)
	assert.ErrorIs(t, err, apperrors.ErrAuth)

	err = service.Revoke(ctx, record.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestValidateSurvivesPrefixCollision(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	service := NewService(repo)
	service.SetTouchFunc(func(string) {})

	// two secrets sharing the same 8-char lookup prefix
	plainA := KeyPrefix + "collide1" + "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	plainB := KeyPrefix + "collide1" + "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"

	keyA := storedKey(t, "first", plainA)
	keyB := storedKey(t, "second", plainB)
	require.NoError(t, repo.Create(ctx, keyA))
	require.NoError(t, repo.Create(ctx, keyB))
	require.Equal(t, keyA.Prefix, keyB.Prefix)

	validated, err := service.Validate(ctx, plainB)
	require.NoError(t, err)
	assert.Equal(t, keyB.ID, validated.ID)

	validated, err = service.Validate(ctx, plainA)
	require.NoError(t, err)
	assert.Equal(t, keyA.ID, validated.ID)
}

func storedKey(t *testing.T, name, plaintext string) *models.APIKey {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.MinCost)
	require.NoError(t, err)
	secret := strings.TrimPrefix(plaintext, KeyPrefix)
	return &models.APIKey{
		Name:   name,
		Prefix: secret[:LookupPrefixLength],
		Hash:   string(hash),
	}
}

func TestPruneExpired(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService(t)

	longGone := time.Now().Add(time.Minute)
	_, _, err := service.Issue(ctx, "expiring", nil, &longGone, "")
	require.NoError(t, err)
	_, _, err = service.Issue(ctx, "forever", nil, nil, "")
	require.NoError(t, err)

	// nothing is past expiry + grace yet
	removed, err := service.PruneExpired(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)

	// with a negative grace the first key's future expiry falls behind the cutoff
	removed, err = service.PruneExpired(ctx, -2*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	keys, err := service.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "forever", keys[0].Name)
}
