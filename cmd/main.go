package main

import (
	"fmt"
	"os"

	"artnetctl/internal/artnet"
	"artnetctl/internal/clientmqtt"
	"artnetctl/internal/config"
	"artnetctl/internal/logger"
	"artnetctl/internal/products"
	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "artnetctl",
		Short:         "Art-Net controller: DMX output, discovery, timecode",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "configs/conf.toml", "Path to configuration file")

	rootCmd.AddCommand(
		runCmd(),
		pollCmd(),
		timecodeCmd(),
		replayCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// setup читает конфигурацию и создает логгер.
func setup() (*config.Config, *logger.Log, error) {
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("configuration file read error: %w", err)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create a logger: %w", err)
	}
	log.With(logger.Fields{"module": "logger"}).Debug("newLogger created ok")
	return cfg, log, nil
}

// controllerOptions собирает опции контроллера из конфигурации.
func controllerOptions(cfg *config.Config) ([]artnet.Option, error) {
	if cfg.ArtNet.Products == "" {
		return nil, nil
	}
	table, err := products.Load(cfg.ArtNet.Products)
	if err != nil {
		return nil, fmt.Errorf("failed to load product table: %w", err)
	}
	return []artnet.Option{artnet.WithProducts(table)}, nil
}

// ConvertConfigClientMQTT преобразует структуры.
func ConvertConfigClientMQTT(cfg config.MQTTConf) clientmqtt.MQTTConf {
	return clientmqtt.MQTTConf{
		ClientID:    cfg.ClientID,
		Schema:      "tcp",
		Host:        cfg.Host,
		Port:        cfg.Port,
		User:        cfg.User,
		Password:    cfg.Password,
		Qos:         cfg.Qos,
		TopicPrefix: cfg.TopicPrefix,
	}
}
