package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"artnetctl/internal/artnet"
	"github.com/spf13/cobra"
)

func pollCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Broadcast an ArtPoll and list the nodes that answer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			cfg.ArtNet.PollInterval.Duration = 0
			opts, err := controllerOptions(cfg)
			if err != nil {
				return err
			}

			a, err := artnet.NewController(log, cfg.ArtNet, cfg.Node, opts...)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := a.Start(ctx, nil); err != nil {
				return err
			}
			defer a.Stop()

			if err := a.SendPoll(); err != nil {
				return fmt.Errorf("failed to send poll: %w", err)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			printNodes(a.Nodes())
			return nil
		},
	}
	cmd.Flags().DurationVarP(&wait, "wait", "w", 3*time.Second, "How long to collect replies")
	return cmd
}

func printNodes(nodes []artnet.Node) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IP\tBIND\tNAME\tPRODUCT\tOUTPUTS\tINPUTS")
	for _, n := range nodes {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%v\t%v\n", n.IP, n.BindIndex, n.ShortName, n.Product, n.Outputs, n.Inputs)
	}
	_ = w.Flush()
}
