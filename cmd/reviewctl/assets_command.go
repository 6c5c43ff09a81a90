package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sharetube/review/internal/repository/asset/sqlite"
	"github.com/sharetube/review/pkg/timecode"
)

func newAssetsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "assets <project-id>",
		Short: "List the assets of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *sqlite.Store) error {
				assets, err := store.ListAssets(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(assets) == 0 {
					fmt.Fprintln(out, "No assets")
					return nil
				}

				rows := make([][]string, 0, len(assets))
				for _, a := range assets {
					rows = append(rows, []string{
						a.ID,
						a.Name,
						timecode.Format(a.Duration),
						strconv.FormatFloat(a.FrameRate, 'g', -1, 64),
						a.SourceURL,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Name", "Duration", "FPS", "Source"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}
