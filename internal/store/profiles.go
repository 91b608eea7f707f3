package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/kilupskalvis/ure/internal/models"
	"gitlab.com/tozd/go/errors"
)

// ErrProfileNotFound is returned for unknown profile names
var ErrProfileNotFound = errors.Base("profile not found")

// SaveProfile creates or updates a profile owned by p.ActorID
func (s *Store) SaveProfile(ctx context.Context, p *models.Profile) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	spec, err := json.Marshal(p.Spec)
	if err != nil {
		return errors.Errorf("failed to marshal profile spec: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profiles (actor_id, name, spec, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(actor_id, name) DO UPDATE SET spec = excluded.spec, updated_at = excluded.updated_at
	`, p.ActorID, p.Name, string(spec), formatTimestamp(p.CreatedAt), formatTimestamp(p.UpdatedAt))
	if err != nil {
		return errors.Errorf("failed to save profile %q: %w", p.Name, err)
	}
	return nil
}

// GetProfile returns one profile of an actor
func (s *Store) GetProfile(ctx context.Context, actorID, name string) (*models.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT actor_id, name, spec, created_at, updated_at FROM profiles
		WHERE actor_id = ? AND name = ?
	`, actorID, name)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, errors.WithDetails(ErrProfileNotFound, "name", name)
	}
	return p, err
}

// ListProfiles returns an actor's profiles ordered by name
func (s *Store) ListProfiles(ctx context.Context, actorID string) ([]*models.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT actor_id, name, spec, created_at, updated_at FROM profiles
		WHERE actor_id = ? ORDER BY name
	`, actorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProfile removes a profile
func (s *Store) DeleteProfile(ctx context.Context, actorID, name string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE actor_id = ? AND name = ?", actorID, name)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errors.WithDetails(ErrProfileNotFound, "name", name)
	}
	return nil
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var (
		p                models.Profile
		spec             string
		created, updated string
	)
	if err := row.Scan(&p.ActorID, &p.Name, &spec, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(spec), &p.Spec); err != nil {
		return nil, errors.Errorf("failed to decode profile %q: %w", p.Name, err)
	}
	p.CreatedAt = parseTimestamp(created)
	p.UpdatedAt = parseTimestamp(updated)
	return &p, nil
}
