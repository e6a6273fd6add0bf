package apikeys

import (
	"context"
	"fmt"
	"strings"
	"time"

	"flagforge/internal/apperrors"
	"flagforge/internal/events"
	"flagforge/internal/models"
	"flagforge/internal/utils"
	console "flagforge/internal/utils/logger"

	"golang.org/x/crypto/bcrypt"
)

var log = console.New("APIKEYS")

const (
	// KeyPrefix marks flagforge keys so leaked secrets are recognizable.
	KeyPrefix = "ffk_"
	// SecretLength is the random part of the plaintext. 40 chars over a
	// 62-symbol alphabet is just under 30 bytes of entropy.
	SecretLength = 40
	// LookupPrefixLength is the stored prefix used for fast lookup.
	LookupPrefixLength = 8
)

// Service issues, validates and revokes API keys. The plaintext secret
// exists only in the return value of Issue; storage keeps a bcrypt hash.
type Service struct {
	repo Repository

	// touch records last-used without blocking validation. Defaults to a
	// fire-and-forget repository update; production wiring replaces it
	// with a task-queue enqueue.
	touch func(id string)
}

// NewService creates an API key service over the given repository.
func NewService(repo Repository) *Service {
	s := &Service{repo: repo}
	s.touch = func(id string) {
		go func() {
			if err := s.repo.TouchLastUsed(context.Background(), id, time.Now()); err != nil {
				log.Warn("failed to record last-used for key %s: %v", id, err)
			}
		}()
	}
	return s
}

// SetTouchFunc overrides the last-used recorder. Errors inside the
// recorder must never surface to validation callers.
func (s *Service) SetTouchFunc(fn func(id string)) {
	if fn != nil {
		s.touch = fn
	}
}

// Issue generates a new key. The returned plaintext is shown to the caller
// exactly once and is not recoverable afterwards.
func (s *Service) Issue(ctx context.Context, name string, scopes []string, expiresAt *time.Time, createdBy string) (*models.APIKey, string, error) {
	if strings.TrimSpace(name) == "" {
		return nil, "", apperrors.Validation("name", "must not be empty")
	}
	if expiresAt != nil && expiresAt.Before(time.Now()) {
		return nil, "", apperrors.Validation("expiresAt", "must be in the future")
	}

	secret, err := utils.GenerateRandomString(SecretLength)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate secret: %w", err)
	}
	plaintext := KeyPrefix + secret

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash secret: %w", err)
	}

	key := &models.APIKey{
		Name:      name,
		Prefix:    secret[:LookupPrefixLength],
		Hash:      string(hash),
		Scopes:    models.ScopeList(scopes),
		ExpiresAt: expiresAt,
	}
	// keys issued outside a user session (helper CLI) have no creator
	if createdBy != "" {
		key.CreatedByID = &createdBy
	}

	if err := s.repo.Create(ctx, key); err != nil {
		return nil, "", err
	}

	events.Emit("apikey.created", key)
	return key, plaintext, nil
}

// Validate checks a candidate secret and returns the matching record.
// Failures are uniform: the caller learns nothing about whether the
// prefix, hash or expiry check failed.
func (s *Service) Validate(ctx context.Context, candidate string) (*models.APIKey, error) {
	trimmed := strings.TrimPrefix(candidate, KeyPrefix)
	if len(trimmed) < LookupPrefixLength || trimmed == candidate {
		return nil, apperrors.ErrAuth
	}

	matches, err := s.repo.GetByPrefix(ctx, trimmed[:LookupPrefixLength])
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range matches {
		key := matches[i]
		if key.Expired(now) {
			continue
		}
		// bcrypt comparison is constant-time over the derived digest
		if bcrypt.CompareHashAndPassword([]byte(key.Hash), []byte(candidate)) != nil {
			continue
		}
		s.touch(key.ID)
		return &key, nil
	}

	return nil, apperrors.ErrAuth
}

// Revoke deletes a key by id.
func (s *Service) Revoke(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// List returns all stored keys. Hashes never leave the model's json
// serialization anyway, but callers should still treat records as
// metadata only.
func (s *Service) List(ctx context.Context) ([]models.APIKey, error) {
	return s.repo.List(ctx)
}

// PruneExpired removes keys whose expiry is older than the grace period.
func (s *Service) PruneExpired(ctx context.Context, grace time.Duration) (int64, error) {
	return s.repo.DeleteExpiredBefore(ctx, time.Now().Add(-grace))
}
