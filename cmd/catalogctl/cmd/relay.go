package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRelayCmd(opts *globalOptions) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the outbox relay",
		Long: `Run the outbox relay in the foreground until interrupted, or drain the
outbox once with --once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, logger, err := opts.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if once {
				st, err := a.Drain(ctx)
				if err != nil {
					return err
				}
				pending, err := a.Catalog.PendingCount(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "claimed %d: %d done, %d superseded, %d retried, %d parked; %d pending\n",
					st.Claimed, st.Done, st.Superseded, st.Retried, st.Parked, pending)
				return nil
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.Relay.Start(); err != nil {
				return err
			}
			logger.Info("Relay running; interrupt to stop")
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Drain the outbox once and exit")
	return cmd
}
