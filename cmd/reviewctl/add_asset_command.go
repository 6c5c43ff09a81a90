package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sharetube/review/internal/domain"
	"github.com/sharetube/review/internal/playback"
	"github.com/sharetube/review/internal/repository/asset/sqlite"
)

const inspectTimeout = 30 * time.Second

func newAddAssetCommand(ctx *commandContext) *cobra.Command {
	var (
		id        string
		mimeType  string
		ffprobe   string
		skipInspect bool
	)

	cmd := &cobra.Command{
		Use:   "add-asset <project-id> <name> <source-url>",
		Short: "Register a media asset, reading its duration and frame rate",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := domain.Asset{
				ID:        id,
				ProjectID: args[0],
				Name:      args[1],
				SourceURL: args[2],
				MimeType:  mimeType,
			}
			if a.ID == "" {
				a.ID = uuid.NewString()
			}

			if !skipInspect {
				meta, err := inspectSource(cmd.Context(), playback.FFProbeLoader{Binary: ffprobe}, a)
				if err != nil {
					return err
				}
				a.Duration = meta.Duration
				a.FrameRate = meta.FrameRate
			}

			return ctx.withStore(func(store *sqlite.Store) error {
				if err := store.CreateAsset(cmd.Context(), a); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added asset %s (%s)\n", a.ID, a.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Asset id (generated when empty)")
	cmd.Flags().StringVar(&mimeType, "mime-type", "", "Source mime type")
	cmd.Flags().StringVar(&ffprobe, "ffprobe", "ffprobe", "Path to the ffprobe binary")
	cmd.Flags().BoolVar(&skipInspect, "skip-inspect", false, "Do not inspect the source")

	return cmd
}

func inspectSource(ctx context.Context, loader playback.Loader, a domain.Asset) (playback.Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, inspectTimeout)
	defer cancel()

	meta, err := loader.Load(ctx, playback.Source{URL: a.SourceURL, MimeType: a.MimeType})
	if err != nil {
		return playback.Metadata{}, fmt.Errorf("failed to inspect %s: %w", a.SourceURL, err)
	}

	return meta, nil
}
