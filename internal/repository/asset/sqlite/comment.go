package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sharetube/review/internal/domain"
	"github.com/sharetube/review/internal/repository/asset"
)

// CreateComment stores c unless a comment with the same id exists. It reports
// whether a row was written.
func (s *Store) CreateComment(ctx context.Context, c domain.Comment) (bool, error) {
	funcName := "asset.sqlite.CreateComment"
	slog.DebugContext(ctx, funcName, "comment_id", c.ID, "asset_id", c.AssetID)
	if s == nil || s.db == nil {
		return false, asset.ErrMissingDB
	}

	attachments, err := json.Marshal(nonNil(c.Attachments))
	if err != nil {
		return false, fmt.Errorf("failed to encode attachments: %w", err)
	}
	strokes, err := json.Marshal(nonNil(c.Strokes))
	if err != nil {
		return false, fmt.Errorf("failed to encode strokes: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, asset_id, parent_id, timestamp, text, author_id, author_name,
			created_at, is_internal, has_drawing, attachments, strokes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		c.ID, c.AssetID, parentValue(c.ParentID), c.Timestamp, c.Text, c.AuthorID, c.AuthorName,
		c.CreatedAt.UnixNano(), c.IsInternal, c.HasDrawing, string(attachments), string(strokes),
	)
	if err != nil {
		return false, fmt.Errorf("failed to save comment: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	slog.DebugContext(ctx, funcName, "created", n > 0)
	return n > 0, nil
}

// DeleteComment removes the comment and its replies and returns the removed ids.
func (s *Store) DeleteComment(ctx context.Context, assetID, commentID string) (ids []string, err error) {
	funcName := "asset.sqlite.DeleteComment"
	slog.DebugContext(ctx, funcName, "comment_id", commentID, "asset_id", assetID)
	if s == nil || s.db == nil {
		return nil, asset.ErrMissingDB
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM comments
		WHERE asset_id = ? AND (id = ? OR parent_id = ?)
		ORDER BY CASE WHEN id = ? THEN 0 ELSE 1 END, created_at, id
	`, assetID, commentID, commentID, commentID)
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 || ids[0] != commentID {
		err = asset.ErrCommentNotFound
		return nil, err
	}

	if _, err = tx.ExecContext(ctx, `
		DELETE FROM comments WHERE asset_id = ? AND (id = ? OR parent_id = ?)
	`, assetID, commentID, commentID); err != nil {
		return nil, fmt.Errorf("failed to delete comment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return ids, nil
}

const commentColumns = `id, asset_id, parent_id, timestamp, text, author_id, author_name,
	created_at, is_internal, has_drawing, attachments, strokes`

// GetComment returns one comment of an asset.
func (s *Store) GetComment(ctx context.Context, assetID, commentID string) (domain.Comment, error) {
	funcName := "asset.sqlite.GetComment"
	slog.DebugContext(ctx, funcName, "comment_id", commentID, "asset_id", assetID)
	if s == nil || s.db == nil {
		return domain.Comment{}, asset.ErrMissingDB
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE asset_id = ? AND id = ?`, assetID, commentID)
	c, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		slog.DebugContext(ctx, funcName, "error", asset.ErrCommentNotFound)
		return domain.Comment{}, asset.ErrCommentNotFound
	}
	if err != nil {
		return domain.Comment{}, fmt.Errorf("failed to get comment: %w", err)
	}

	return c, nil
}

// ListComments returns the comments of an asset in insertion order.
func (s *Store) ListComments(ctx context.Context, assetID string) ([]domain.Comment, error) {
	funcName := "asset.sqlite.ListComments"
	slog.DebugContext(ctx, funcName, "asset_id", assetID)
	if s == nil || s.db == nil {
		return nil, asset.ErrMissingDB
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+commentColumns+` FROM comments WHERE asset_id = ? ORDER BY rowid`, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []domain.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}

	return comments, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComment(row rowScanner) (domain.Comment, error) {
	var (
		c           domain.Comment
		parentID    sql.NullString
		createdAt   int64
		attachments string
		strokes     string
	)
	if err := row.Scan(&c.ID, &c.AssetID, &parentID, &c.Timestamp, &c.Text, &c.AuthorID, &c.AuthorName,
		&createdAt, &c.IsInternal, &c.HasDrawing, &attachments, &strokes); err != nil {
		return domain.Comment{}, err
	}

	if parentID.Valid {
		c.ParentID = &parentID.String
	}
	// created_at holds unix nanoseconds.
	c.CreatedAt = time.Unix(0, createdAt).UTC()
	if err := json.Unmarshal([]byte(attachments), &c.Attachments); err != nil {
		return domain.Comment{}, fmt.Errorf("failed to decode attachments of %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(strokes), &c.Strokes); err != nil {
		return domain.Comment{}, fmt.Errorf("failed to decode strokes of %s: %w", c.ID, err)
	}
	if len(c.Attachments) == 0 {
		c.Attachments = nil
	}
	if len(c.Strokes) == 0 {
		c.Strokes = nil
	}

	return c, nil
}

func parentValue(parentID *string) sql.NullString {
	if parentID == nil || *parentID == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *parentID, Valid: true}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
