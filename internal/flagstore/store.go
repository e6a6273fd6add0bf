// Package flagstore reads and writes the JSON configuration documents that
// change requests describe deltas against. The local backend mirrors the
// layout of the git repository the publisher commits to, so the path of a
// flag file is the same on disk, in S3 and in the repository.
package flagstore

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"

	"flagforge/internal/apperrors"
	"flagforge/internal/utils/logger"
)

// ResourceRef addresses one configuration document. Project may be empty
// for resources that live at the repository root.
type ResourceRef struct {
	Project string
	Key     string
}

// RepoPath returns the repository-relative path of the document,
// flags/[<project>/]<key>.json.
func (r ResourceRef) RepoPath() string {
	if r.Project != "" {
		return path.Join("flags", r.Project, r.Key+".json")
	}
	return path.Join("flags", r.Key+".json")
}

// Store is one configuration backend.
type Store interface {
	// GetCurrentConfig returns the stored document, or apperrors.ErrNotFound
	// when no document exists for the ref yet.
	GetCurrentConfig(ctx context.Context, ref ResourceRef) ([]byte, error)

	// WriteConfig stores the document, creating parent paths as needed.
	WriteConfig(ctx context.Context, ref ResourceRef, data []byte) error
}

// LocalStore keeps documents as plain files under a base directory.
type LocalStore struct {
	basePath string
	logger   *logger.Logger
}

func NewLocalStore(basePath string) *LocalStore {
	return &LocalStore{
		basePath: basePath,
		logger:   logger.New("flag_store"),
	}
}

func (s *LocalStore) filePath(ref ResourceRef) string {
	return filepath.Join(s.basePath, filepath.FromSlash(ref.RepoPath()))
}

func (s *LocalStore) GetCurrentConfig(ctx context.Context, ref ResourceRef) ([]byte, error) {
	data, err := os.ReadFile(s.filePath(ref))
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperrors.NotFound("config", ref.RepoPath())
	}
	if err != nil {
		return nil, s.logger.Error("Failed to read config ❌", err)
	}
	return data, nil
}

func (s *LocalStore) WriteConfig(ctx context.Context, ref ResourceRef, data []byte) error {
	target := s.filePath(ref)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return s.logger.Error("Failed to create config directory ❌", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return s.logger.Error("Failed to write config ❌", err)
	}
	s.logger.Info("💾 Wrote config %s", ref.RepoPath())
	return nil
}
