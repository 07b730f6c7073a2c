package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"artnetctl/internal/artnet"
	"artnetctl/internal/packet"
	"github.com/spf13/cobra"
)

var timecodeTypes = map[string]packet.TimeCodeType{
	"film":  packet.TimeCodeFilm,
	"ebu":   packet.TimeCodeEBU,
	"df":    packet.TimeCodeDF,
	"smpte": packet.TimeCodeSMPTE,
}

func timecodeCmd() *cobra.Command {
	var typ string

	cmd := &cobra.Command{
		Use:   "timecode HH:MM:SS:FF",
		Short: "Broadcast one ArtTimeCode frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := timecodeTypes[strings.ToLower(typ)]
			if !ok {
				return fmt.Errorf("unknown timecode type %q", typ)
			}
			var h, m, s, f int
			if _, err := fmt.Sscanf(args[0], "%d:%d:%d:%d", &h, &m, &s, &f); err != nil {
				return fmt.Errorf("bad timecode %q: %w", args[0], err)
			}

			cfg, log, err := setup()
			if err != nil {
				return err
			}
			cfg.ArtNet.PollInterval.Duration = 0

			a, err := artnet.NewController(log, cfg.ArtNet, cfg.Node)
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

			if err := a.SendTimeCode(t, h, m, s, f); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			return a.Flush(ctx)
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", "smpte", "film, ebu, df or smpte")
	return cmd
}
