package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"artnetctl/internal/artnet"
	"artnetctl/internal/clientmqtt"
	"artnetctl/internal/httpapi"
	"artnetctl/internal/logger"
	"artnetctl/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the controller until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
}

func run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	opts, err := controllerOptions(cfg)
	if err != nil {
		return err
	}
	opts = append(opts, artnet.WithMetrics(metrics.New(reg)))

	var client *clientmqtt.ClientMQTT
	if cfg.MQTT.Enabled {
		client = clientmqtt.NewClient(log, ConvertConfigClientMQTT(cfg.MQTT))
		log.With(logger.Fields{"module": "mqtt"}).Debug("NewClient created ok")
		opts = append(opts, artnet.WithPublisher(client))
	}

	a, err := artnet.NewController(log, cfg.ArtNet, cfg.Node, opts...)
	if err != nil {
		return fmt.Errorf("error while creating a new controller art-net: %w", err)
	}
	log.With(logger.Fields{"module": "art-net"}).Debug("NewController created ok")

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	// Канал для передачи.
	var dmxDataCh chan clientmqtt.DataCh
	if client != nil {
		dmxDataCh = make(chan clientmqtt.DataCh, 10)
	}

	// MQTT поднимается первым: контроллер публикует в него узлы.
	if client != nil {
		if err = client.Start(ctx, dmxDataCh); err != nil {
			return fmt.Errorf("failed to start MQTT service: %w", err)
		}
		defer func() {
			if err := client.Stop(); err != nil {
				log.Error("failed to stop MQTT service:", err.Error())
			}
		}()
	}

	if err = a.Start(ctx, dmxDataCh); err != nil {
		return fmt.Errorf("failed to start art-net service: %w", err)
	}
	defer a.Stop()

	if cfg.HTTP.Enabled {
		srv := httpapi.New(log, a, reg)
		if err = srv.Start(ctx, cfg.HTTP.Listen); err != nil {
			return fmt.Errorf("failed to start HTTP service: %w", err)
		}
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := srv.Stop(shutdownCtx); err != nil {
				log.Error("failed to stop HTTP service:", err.Error())
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutdown complete")
	return nil
}
