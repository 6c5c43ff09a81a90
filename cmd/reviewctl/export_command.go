package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sharetube/review/internal/correlation"
	"github.com/sharetube/review/internal/domain"
	"github.com/sharetube/review/internal/repository/asset/sqlite"
	"github.com/sharetube/review/pkg/timecode"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var outPath, from, to string

	cmd := &cobra.Command{
		Use:   "export <asset-id>",
		Short: "Export the comments of an asset as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			window, err := parseWindow(from, to)
			if err != nil {
				return err
			}

			return ctx.withStore(func(store *sqlite.Store) error {
				if _, err := store.GetAsset(cmd.Context(), args[0]); err != nil {
					return fmt.Errorf("asset %s: %w", args[0], err)
				}

				comments, err := store.ListComments(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				var w io.Writer = cmd.OutOrStdout()
				if outPath != "" {
					f, err := os.Create(outPath)
					if err != nil {
						return fmt.Errorf("create %s: %w", outPath, err)
					}
					defer f.Close()
					w = f
				}

				return correlation.WriteCSV(w, window.filter(comments))
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write to a file instead of stdout")
	cmd.Flags().StringVar(&from, "from", "", "Only export comments at or after this time (H:MM:SS, MM:SS or seconds)")
	cmd.Flags().StringVar(&to, "to", "", "Only export comments at or before this time")

	return cmd
}

// timeWindow bounds exported comments by video time. General comments are
// left out once either bound is set.
type timeWindow struct {
	from, to       float64
	hasFrom, hasTo bool
}

func parseWindow(from, to string) (timeWindow, error) {
	var w timeWindow
	if from != "" {
		v, err := timecode.Parse(from)
		if err != nil {
			return w, fmt.Errorf("invalid --from: %w", err)
		}
		w.from, w.hasFrom = v, true
	}
	if to != "" {
		v, err := timecode.Parse(to)
		if err != nil {
			return w, fmt.Errorf("invalid --to: %w", err)
		}
		w.to, w.hasTo = v, true
	}
	if w.hasFrom && w.hasTo && w.to < w.from {
		return w, fmt.Errorf("--to %s is before --from %s", to, from)
	}
	return w, nil
}

func (w timeWindow) filter(comments []domain.Comment) []domain.Comment {
	if !w.hasFrom && !w.hasTo {
		return comments
	}

	kept := make([]domain.Comment, 0, len(comments))
	for _, c := range comments {
		if c.IsGeneral() {
			continue
		}
		if w.hasFrom && c.Timestamp < w.from {
			continue
		}
		if w.hasTo && c.Timestamp > w.to {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}
