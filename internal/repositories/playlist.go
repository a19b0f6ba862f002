package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/d2t/internal/models"
	"github.com/desertthunder/d2t/internal/shared"
)

const playlistColumns = `id, service, name, remote_id, style, last_run_id, created_at, updated_at, deleted_at`

// PlaylistRepository implements models.Repository[*models.PlaylistMapping] for remote playlist ids.
//
// Mappings are unique per service and exact name. It also implements tasks.PlaylistIndex.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new PlaylistRepository with the given database connection
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

// Remember inserts the mapping or, when the service and name are already mapped, updates its remote id,
// style and last run. A soft-deleted mapping is revived.
func (r *PlaylistRepository) Remember(ctx context.Context, m *models.PlaylistMapping) error {
	if m.ID() == "" {
		m.SetID(shared.GenerateID())
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	m.SetUpdatedAt(now)

	query := `
		INSERT INTO playlists (id, service, name, remote_id, style, last_run_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(service, name) DO UPDATE SET
			remote_id = excluded.remote_id,
			style = excluded.style,
			last_run_id = excluded.last_run_id,
			updated_at = excluded.updated_at,
			deleted_at = NULL
	`

	_, err := r.db.ExecContext(ctx, query, m.ID(), m.Service, m.Name, m.RemoteID, m.Style, nullString(m.LastRunID), m.CreatedAt(), now)
	if err != nil {
		return fmt.Errorf("failed to upsert playlist: %w", err)
	}
	return nil
}

// Create inserts a new mapping with a generated ID
func (r *PlaylistRepository) Create(m *models.PlaylistMapping) error {
	m.SetID(shared.GenerateID())

	if err := m.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO playlists (id, service, name, remote_id, style, last_run_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query, m.ID(), m.Service, m.Name, m.RemoteID, m.Style, nullString(m.LastRunID), m.CreatedAt(), m.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert playlist: %w", err)
	}

	return nil
}

// Get retrieves a mapping by ID, excluding soft-deleted mappings
func (r *PlaylistRepository) Get(id string) (*models.PlaylistMapping, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE id = ? AND deleted_at IS NULL`
	return scanPlaylist(r.db.QueryRow(query, id))
}

// GetByName retrieves the mapping for a service's playlist name
func (r *PlaylistRepository) GetByName(service, name string) (*models.PlaylistMapping, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE service = ? AND name = ? AND deleted_at IS NULL`
	return scanPlaylist(r.db.QueryRow(query, service, name))
}

// Update modifies an existing mapping in the database
func (r *PlaylistRepository) Update(m *models.PlaylistMapping) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	m.SetUpdatedAt(now)

	query := `
		UPDATE playlists
		SET name = ?, remote_id = ?, style = ?, last_run_id = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, m.Name, m.RemoteID, m.Style, nullString(m.LastRunID), now, m.ID())
	if err != nil {
		return fmt.Errorf("failed to update playlist: %w", err)
	}

	return expectOneRow(result, "playlist", m.ID())
}

// Delete soft-deletes a mapping by ID
func (r *PlaylistRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE playlists SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	return expectOneRow(result, "playlist", id)
}

// List retrieves mappings ordered by name.
//
// Criteria: "service" (string), "run_id" (string) for playlists touched by one run.
func (r *PlaylistRepository) List(criteria map[string]any) ([]*models.PlaylistMapping, error) {
	query := `SELECT ` + playlistColumns + ` FROM playlists WHERE deleted_at IS NULL`
	args := []any{}

	if service, ok := criteria["service"].(string); ok && service != "" {
		query += " AND service = ?"
		args = append(args, service)
	}

	if runID, ok := criteria["run_id"].(string); ok && runID != "" {
		query += " AND last_run_id = ?"
		args = append(args, runID)
	}

	query += " ORDER BY name ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	var mappings []*models.PlaylistMapping
	for rows.Next() {
		m, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return mappings, nil
}

func scanPlaylist(s scanner) (*models.PlaylistMapping, error) {
	var (
		id, service, name, remoteID, style string
		lastRunID                          sql.NullString
		createdAt, updatedAt               time.Time
		deletedAt                          sql.NullTime
	)

	err := s.Scan(&id, &service, &name, &remoteID, &style, &lastRunID, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("playlist %w", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}

	m := models.NewPlaylistMapping(service, name, remoteID, style)
	m.SetID(id)
	m.SetCreatedAt(createdAt)
	m.SetUpdatedAt(updatedAt)
	m.LastRunID = lastRunID.String
	if deletedAt.Valid {
		m.SetDeletedAt(&deletedAt.Time)
	}

	return m, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
