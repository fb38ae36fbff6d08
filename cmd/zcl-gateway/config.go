package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"zcl-gateway/internal/mqtt"
	"zcl-gateway/internal/store"
	"zcl-gateway/internal/web"
	"zcl-gateway/internal/zigbee"
)

type Config struct {
	MQTT struct {
		Broker         string        `yaml:"broker"`
		ClientID       string        `yaml:"client_id"`
		Username       string        `yaml:"username"`
		Password       string        `yaml:"password"`
		TopicPrefix    string        `yaml:"topic_prefix"`
		Format         string        `yaml:"format"` // "json" or "cbor"
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"mqtt"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	Web struct {
		Listen         string        `yaml:"listen"`
		APIKey         string        `yaml:"api_key"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"web"`
	Automation struct {
		ScriptsDir string `yaml:"scripts_dir"`
	} `yaml:"automation"`
	DevicesDir string `yaml:"devices_dir"`
	Local      struct {
		IEEE string `yaml:"ieee"`
	} `yaml:"local"`
	Nodes []NodeConfig `yaml:"nodes"`
	Log   struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// NodeConfig seeds one remote node of the directory.
type NodeConfig struct {
	IEEE           string           `yaml:"ieee"`
	NetworkAddress uint16           `yaml:"network_address"`
	Manufacturer   string           `yaml:"manufacturer"`
	Model          string           `yaml:"model"`
	Endpoints      []EndpointConfig `yaml:"endpoints"`
}

type EndpointConfig struct {
	ID          uint8    `yaml:"id"`
	ProfileID   uint16   `yaml:"profile_id"`
	DeviceID    uint16   `yaml:"device_id"`
	InClusters  []uint16 `yaml:"in_clusters"`
	OutClusters []uint16 `yaml:"out_clusters"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "zcl"
	}
	if cfg.MQTT.Format == "" {
		cfg.MQTT.Format = "json"
	}
	if cfg.MQTT.RequestTimeout == 0 {
		cfg.MQTT.RequestTimeout = 10 * time.Second
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "./data/zcl-gateway.db"
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = ":8080"
	}
	if cfg.Automation.ScriptsDir == "" {
		cfg.Automation.ScriptsDir = "./scripts"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	switch c.MQTT.Format {
	case "json", "cbor":
	default:
		return fmt.Errorf("mqtt.format must be json or cbor, got %q", c.MQTT.Format)
	}
	if c.MQTT.RequestTimeout < 0 || c.Web.RequestTimeout < 0 {
		return fmt.Errorf("request timeouts must not be negative")
	}
	if _, err := zigbee.ParseIEEE(c.Local.IEEE); err != nil {
		return fmt.Errorf("local.ieee: %w", err)
	}
	seen := map[uint16]bool{0x0000: true}
	for i, n := range c.Nodes {
		if _, err := zigbee.ParseIEEE(n.IEEE); err != nil {
			return fmt.Errorf("nodes[%d].ieee: %w", i, err)
		}
		if seen[n.NetworkAddress] {
			return fmt.Errorf("nodes[%d]: network address 0x%04X already in use", i, n.NetworkAddress)
		}
		seen[n.NetworkAddress] = true
		for _, ep := range n.Endpoints {
			if ep.ID == 0 || ep.ID > 240 {
				return fmt.Errorf("nodes[%d]: endpoint %d out of range 1-240", i, ep.ID)
			}
		}
	}
	return nil
}

func (c *Config) mqttConfig() mqtt.Config {
	return mqtt.Config{
		Broker:         c.MQTT.Broker,
		ClientID:       c.MQTT.ClientID,
		Username:       c.MQTT.Username,
		Password:       c.MQTT.Password,
		TopicPrefix:    c.MQTT.TopicPrefix,
		Format:         c.MQTT.Format,
		RequestTimeout: c.MQTT.RequestTimeout,
	}
}

func (c *Config) webOptions() []web.ServerOption {
	opts := []web.ServerOption{
		web.WithVersion(version),
		web.WithRequestTimeout(c.Web.RequestTimeout),
	}
	if c.Web.APIKey != "" {
		opts = append(opts, web.WithAPIKey(c.Web.APIKey))
	}
	if len(c.Web.AllowedOrigins) > 0 {
		opts = append(opts, web.WithAllowedOrigins(c.Web.AllowedOrigins))
	}
	return opts
}

// seedNodes turns the local address and node list into directory entries;
// the local node takes index 0 and the rest follow in order.
func (c *Config) seedNodes() []store.Node {
	local, _ := zigbee.ParseIEEE(c.Local.IEEE)
	nodes := []store.Node{{Index: 0, IEEEAddress: local, NetworkAddress: 0x0000, Model: "gateway"}}
	for i, n := range c.Nodes {
		ieee, _ := zigbee.ParseIEEE(n.IEEE)
		node := store.Node{
			Index:          i + 1,
			IEEEAddress:    ieee,
			NetworkAddress: n.NetworkAddress,
			Manufacturer:   n.Manufacturer,
			Model:          n.Model,
		}
		for _, ep := range n.Endpoints {
			node.Endpoints = append(node.Endpoints, store.Endpoint{
				ID:          ep.ID,
				ProfileID:   ep.ProfileID,
				DeviceID:    ep.DeviceID,
				InClusters:  ep.InClusters,
				OutClusters: ep.OutClusters,
			})
		}
		nodes = append(nodes, node)
	}
	return nodes
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
