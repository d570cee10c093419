package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"titlecache/internal/datasets"
	"titlecache/internal/seeder"
)

func newSeedCommand(ctx *commandContext) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Refresh every dataset candidate, repeating on the seeder interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSession(!once, func(s *session) error {
				sd, err := seeder.New(s.cfg, s.manager, datasets.NewFromConfig(s.cfg, s.logger), seeder.WithLogger(s.logger))
				if err != nil {
					return err
				}
				if !once {
					return sd.Run(cmd.Context())
				}

				result, err := sd.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Candidates", "Chunks", "Stored", "Fresh", "Failed", "Elapsed"},
					[][]string{{
						strconv.Itoa(result.Candidates),
						strconv.Itoa(result.Chunks),
						strconv.Itoa(result.Stored),
						strconv.Itoa(result.Fresh),
						strconv.Itoa(result.Failed),
						result.Elapsed.Round(time.Millisecond).String(),
					}},
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Run a single cycle and exit")
	return cmd
}
