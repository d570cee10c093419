package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"titlecache/internal/datasets"
)

func newDatasetsCommand(ctx *commandContext) *cobra.Command {
	datasetsCmd := &cobra.Command{
		Use:   "datasets",
		Short: "Manage the bulk dataset files used for seeding",
	}
	datasetsCmd.AddCommand(newDatasetsFetchCommand(ctx))
	return datasetsCmd
}

func newDatasetsFetchCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "fetch [file]...",
		Short: "Download dataset files that are missing or older than max_age_hours",
		Long: `Download dataset files that are missing or older than max_age_hours.

Without arguments only the files needed for seeding are refreshed
(title.basics and title.ratings). Use --all for every published file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(false)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			files := args
			switch {
			case all:
				files = datasets.Files
			case len(files) == 0:
				files = []string{datasets.TitleBasics, datasets.TitleRatings}
			}

			dl := datasets.NewFromConfig(cfg, logger)
			downloaded, err := dl.Ensure(cmd.Context(), files...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for i, name := range files {
				if i < len(downloaded) && downloaded[i] {
					printStatus(out, true, "%s downloaded", name)
				} else {
					printStatus(out, true, "%s up to date", name)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Refresh every dataset file")
	return cmd
}
