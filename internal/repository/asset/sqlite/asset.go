package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sharetube/review/internal/domain"
	"github.com/sharetube/review/internal/repository/asset"
)

func (s *Store) CreateAsset(ctx context.Context, a domain.Asset) error {
	funcName := "asset.sqlite.CreateAsset"
	slog.DebugContext(ctx, funcName, "asset_id", a.ID)
	if s == nil || s.db == nil {
		return asset.ErrMissingDB
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (id, project_id, name, source_url, mime_type, frame_rate, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id=excluded.project_id,
			name=excluded.name,
			source_url=excluded.source_url,
			mime_type=excluded.mime_type,
			frame_rate=excluded.frame_rate,
			duration=excluded.duration
	`, a.ID, a.ProjectID, a.Name, a.SourceURL, a.MimeType, a.FrameRate, a.Duration)
	if err != nil {
		return fmt.Errorf("failed to save asset: %w", err)
	}

	return nil
}

func (s *Store) GetAsset(ctx context.Context, id string) (domain.Asset, error) {
	if s == nil || s.db == nil {
		return domain.Asset{}, asset.ErrMissingDB
	}

	var a domain.Asset
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, source_url, mime_type, frame_rate, duration
		FROM assets
		WHERE id = ?
	`, id).Scan(&a.ID, &a.ProjectID, &a.Name, &a.SourceURL, &a.MimeType, &a.FrameRate, &a.Duration)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Asset{}, asset.ErrAssetNotFound
	}
	if err != nil {
		return domain.Asset{}, fmt.Errorf("failed to get asset: %w", err)
	}

	return a, nil
}

// ListAssets returns every asset of a project ordered by name.
func (s *Store) ListAssets(ctx context.Context, projectID string) ([]domain.Asset, error) {
	funcName := "asset.sqlite.ListAssets"
	slog.DebugContext(ctx, funcName, "project_id", projectID)
	if s == nil || s.db == nil {
		return nil, asset.ErrMissingDB
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, name, source_url, mime_type, frame_rate, duration
		FROM assets
		WHERE project_id = ?
		ORDER BY name, id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	assets := []domain.Asset{}
	for rows.Next() {
		var a domain.Asset
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.Name, &a.SourceURL, &a.MimeType, &a.FrameRate, &a.Duration); err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}

	return assets, rows.Err()
}
