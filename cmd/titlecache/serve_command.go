package main

import (
	"errors"
	"sync"

	"github.com/spf13/cobra"

	"titlecache/internal/api"
	"titlecache/internal/datasets"
	"titlecache/internal/logging"
	"titlecache/internal/seeder"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the control API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := cmd.Context()
			return ctx.withSession(true, func(s *session) error {
				if _, err := s.manager.Reload(runCtx); err != nil {
					return err
				}
				server, err := api.New(s.cfg, s.manager, s.logger)
				if err != nil {
					return err
				}
				if err := server.Start(runCtx); err != nil {
					return err
				}

				var wg sync.WaitGroup
				if seed {
					sd, err := seeder.New(s.cfg, s.manager, datasets.NewFromConfig(s.cfg, s.logger), seeder.WithLogger(s.logger))
					if err != nil {
						server.Stop()
						return err
					}
					wg.Go(func() {
						err := sd.Run(runCtx)
						switch {
						case errors.Is(err, seeder.ErrLocked):
							s.logger.Warn("seeder not started", logging.Error(err))
						case err != nil:
							logging.ErrorWithContext(s.logger, "seeder exited", "seeder_failed", logging.Error(err))
						}
					})
				}

				<-runCtx.Done()
				wg.Wait()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "Run the dataset seeder alongside the API")
	return cmd
}
