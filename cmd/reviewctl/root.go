package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "REVIEW"

func newRootCommand() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	ctx := newCommandContext(v)

	rootCmd := &cobra.Command{
		Use:           "reviewctl",
		Short:         "Manage review assets and comments",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("db-path", "review.db", "Path to the sqlite database")
	v.BindPFlag("db-path", rootCmd.PersistentFlags().Lookup("db-path"))
	v.BindEnv("db-path", envPrefix+"_DB_PATH")

	rootCmd.AddCommand(newAssetsCommand(ctx))
	rootCmd.AddCommand(newAddAssetCommand(ctx))
	rootCmd.AddCommand(newExportCommand(ctx))

	return rootCmd
}
