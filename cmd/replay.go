package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"artnetctl/internal/artnet"
	"artnetctl/internal/replay"
	"github.com/spf13/cobra"
)

func replayCmd() *cobra.Command {
	var (
		port     uint16
		realtime bool
	)

	cmd := &cobra.Command{
		Use:   "replay FILE.pcap",
		Short: "Decode the Art-Net traffic of a capture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			// Сеть не нужна: контроллер только разбирает кадры.
			if cfg.ArtNet.BindIP == "" {
				cfg.ArtNet.BindIP = "0.0.0.0"
			}

			a, err := artnet.NewController(log, cfg.ArtNet, cfg.Node)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			p := replay.New(log, a.Receive, replay.WithPort(port), replay.WithRealtime(realtime))
			stats, err := p.PlayFile(ctx, args[0])
			a.Stop()
			if err != nil {
				return err
			}

			fmt.Println(stats)
			printNodes(a.Nodes())
			if tc := a.LastTimeCode(); tc != nil {
				fmt.Printf("last timecode: %s\n", tc)
			}
			printInputs(a)
			return nil
		},
	}
	cmd.Flags().Uint16VarP(&port, "port", "p", 6454, "UDP port of the Art-Net traffic")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "Keep the capture timing")
	return cmd
}

func printInputs(a *artnet.ArtNet) {
	keys := a.InputKeys()
	if len(keys) == 0 {
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "UNIVERSE\tSLOTS\tFIRST")
	for _, k := range keys {
		data, _ := a.Input(k)
		first := data
		if len(first) > 16 {
			first = first[:16]
		}
		fmt.Fprintf(w, "%s\t%d\t%v\n", k, len(data), first)
	}
	_ = w.Flush()
}
