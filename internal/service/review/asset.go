package review

import (
	"context"
	"fmt"
	"io"

	"github.com/sharetube/review/internal/correlation"
	"github.com/sharetube/review/internal/domain"
)

func (s service) ListAssets(ctx context.Context, projectID string) ([]domain.Asset, error) {
	return s.assetRepo.ListAssets(ctx, projectID)
}

// ListComments returns the comments of an asset in list-view order.
func (s service) ListComments(ctx context.Context, assetID string) ([]domain.Comment, error) {
	if _, err := s.getAsset(ctx, assetID); err != nil {
		return nil, err
	}

	comments, err := s.assetRepo.ListComments(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	return correlation.Sort(comments), nil
}

func (s service) ExportCSV(ctx context.Context, assetID string, w io.Writer) error {
	comments, err := s.ListComments(ctx, assetID)
	if err != nil {
		return err
	}

	return correlation.WriteCSV(w, comments)
}
