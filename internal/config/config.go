package config

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/BurntSushi/toml"
)

// Config структура конфигурации.
type Config struct {
	Logger LogConf    `toml:"logger"` // Logger - конфигурация регистратора.
	ArtNet ArtNetConf `toml:"artnet"` // ArtNet - сеть и планировщик.
	Node   NodeConf   `toml:"node"`   // Node - идентичность в ArtPollReply.
	MQTT   MQTTConf   `toml:"mqtt"`   // MQTT - конфигурация MQTT клиента.
	HTTP   HTTPConf   `toml:"http"`   // HTTP - API и метрики.
}

// LogConf структура конфигурации.
type LogConf struct {
	Level  string `toml:"log-level"` // Level - уровень логирования.
	Format string `toml:"format"`    // Format - text или json.
}

// ArtNetConf describes the socket and the refresh scheduler.
type ArtNetConf struct {
	InterfaceCIDR   string   `toml:"interface-cidr"`   // used to find the local IP when BindIP is empty
	BindIP          string   `toml:"bind-ip"`          // local address announced in poll replies
	Broadcast       string   `toml:"broadcast"`        // broadcast destination
	Port            int      `toml:"port"`             // UDP port, 6454 unless testing
	StalenessWindow Duration `toml:"staleness-window"` // keep-alive resend interval
	TickInterval    Duration `toml:"tick-interval"`    // scheduler resolution
	PollInterval    Duration `toml:"poll-interval"`    // 0 disables discovery
	SendQueue       int      `toml:"send-queue"`       // bound of the outgoing queue
	Workers         int      `toml:"workers"`          // handler pool size
	Sequence        bool     `toml:"sequence"`         // number ArtDmx frames
	AutoUnicast     bool     `toml:"auto-unicast"`     // learn destinations from poll replies
	Products        string   `toml:"products"`         // YAML product table, bundled one when empty
}

// NodeConf is what the controller announces about itself.
type NodeConf struct {
	ShortName string `toml:"short-name"`
	LongName  string `toml:"long-name"`
	OEM       int    `toml:"oem"`
	ESTA      string `toml:"esta"`
	Firmware  int    `toml:"firmware"`
}

// MQTTConf структура конфигурации.
type MQTTConf struct {
	Enabled     bool   `toml:"enabled"`
	ClientID    string `toml:"clientID"`     // ClientID - имя клиента.
	Host        string `toml:"server"`       // Host - адрес MQTT сервера.
	Port        string `toml:"port"`         // Port - порт MQTT сервера.
	User        string `toml:"user"`         // User - логин для подключения к MQTT серверу.
	Password    string `toml:"password"`     // Password - пароль для подключения к MQTT серверу.
	Qos         byte   `toml:"qos"`          // Qos - качество обслуживания.
	TopicPrefix string `toml:"topic-prefix"` // TopicPrefix - корень всех топиков.
}

// HTTPConf структура конфигурации.
type HTTPConf struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

// Duration is a time.Duration read from strings like "4s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used for keys missing from the file.
func Default() Config {
	return Config{
		Logger: LogConf{Level: "info", Format: "text"},
		ArtNet: ArtNetConf{
			InterfaceCIDR:   "192.168.6.0/24",
			Broadcast:       "255.255.255.255",
			Port:            6454,
			StalenessWindow: Duration{4 * time.Second},
			TickInterval:    Duration{100 * time.Millisecond},
			PollInterval:    Duration{3 * time.Second},
			SendQueue:       256,
			Workers:         4,
		},
		Node: NodeConf{
			ShortName: "artnetctl",
			LongName:  "artnetctl Art-Net controller",
			OEM:       0xffff,
			ESTA:      "ZZ",
		},
		MQTT: MQTTConf{
			ClientID:    "artnetctl",
			Port:        "1883",
			TopicPrefix: "artnet",
		},
		HTTP: HTTPConf{Listen: ":8080"},
	}
}

// NewConfig конструктор.
func NewConfig(path string) (*Config, error) {
	// default values
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return &cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}

// Validate checks the values a decoded file may get wrong.
func (c *Config) Validate() error {
	var errs []error
	a := c.ArtNet
	if a.Port <= 0 || a.Port > 0xffff {
		errs = append(errs, fmt.Errorf("artnet.port: %d out of range", a.Port))
	}
	if a.StalenessWindow.Duration <= 0 {
		errs = append(errs, errors.New("artnet.staleness-window must be positive"))
	}
	if a.TickInterval.Duration <= 0 {
		errs = append(errs, errors.New("artnet.tick-interval must be positive"))
	}
	if a.PollInterval.Duration < 0 {
		errs = append(errs, errors.New("artnet.poll-interval must not be negative"))
	}
	if a.SendQueue <= 0 {
		errs = append(errs, errors.New("artnet.send-queue must be positive"))
	}
	if a.Workers <= 0 {
		errs = append(errs, errors.New("artnet.workers must be positive"))
	}
	if net.ParseIP(a.Broadcast).To4() == nil {
		errs = append(errs, fmt.Errorf("artnet.broadcast: %q is not an IPv4 address", a.Broadcast))
	}
	if a.BindIP != "" && net.ParseIP(a.BindIP).To4() == nil {
		errs = append(errs, fmt.Errorf("artnet.bind-ip: %q is not an IPv4 address", a.BindIP))
	}
	if a.BindIP == "" {
		if _, _, err := net.ParseCIDR(a.InterfaceCIDR); err != nil {
			errs = append(errs, fmt.Errorf("artnet.interface-cidr: %w", err))
		}
	}
	if c.Node.OEM < 0 || c.Node.OEM > 0xffff {
		errs = append(errs, fmt.Errorf("node.oem: %d out of range", c.Node.OEM))
	}
	if c.Node.Firmware < 0 || c.Node.Firmware > 0xffff {
		errs = append(errs, fmt.Errorf("node.firmware: %d out of range", c.Node.Firmware))
	}
	if c.MQTT.Qos > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos: %d out of range", c.MQTT.Qos))
	}
	return errors.Join(errs...)
}
