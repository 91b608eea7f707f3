package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/kilupskalvis/ure/internal/models"
	"gitlab.com/tozd/go/errors"
)

type cachedPreview struct {
	CreatedAt time.Time             `json:"created_at"`
	Result    *models.PreviewResult `json:"result"`
}

// previewKey ignores the replacement since match counts do not depend on it
func previewKey(actorID string, spec models.SearchSpec) (string, error) {
	spec.Replacement = ""
	data, err := json.Marshal(spec)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return "preview:" + actorID + ":" + hex.EncodeToString(sum[:8]), nil
}

// CachePreview remembers a preview for an actor and spec
func (s *Store) CachePreview(actorID string, spec models.SearchSpec, result *models.PreviewResult) error {
	key, err := previewKey(actorID, spec)
	if err != nil {
		return errors.Errorf("failed to build preview key: %w", err)
	}
	data, err := json.Marshal(cachedPreview{CreatedAt: time.Now().UTC(), Result: result})
	if err != nil {
		return errors.Errorf("failed to marshal preview: %w", err)
	}
	return s.SetValue(key, string(data))
}

// CachedPreview returns a preview stored within maxAge, or nil
func (s *Store) CachedPreview(actorID string, spec models.SearchSpec, maxAge time.Duration) (*models.PreviewResult, error) {
	key, err := previewKey(actorID, spec)
	if err != nil {
		return nil, errors.Errorf("failed to build preview key: %w", err)
	}
	value, err := s.GetValue(key)
	if err != nil || value == "" {
		return nil, err
	}

	var cached cachedPreview
	if err := json.Unmarshal([]byte(value), &cached); err != nil {
		_ = s.DeleteValue(key)
		return nil, nil
	}
	if time.Since(cached.CreatedAt) > maxAge {
		_ = s.DeleteValue(key)
		return nil, nil
	}
	return cached.Result, nil
}

// InvalidatePreview drops a cached preview, typically after an apply
func (s *Store) InvalidatePreview(actorID string, spec models.SearchSpec) error {
	key, err := previewKey(actorID, spec)
	if err != nil {
		return err
	}
	return s.DeleteValue(key)
}
