package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"thermolab/flukelog/internal/acquire"
	"thermolab/flukelog/internal/decode"
	"thermolab/flukelog/internal/session"
	"thermolab/flukelog/internal/store"
)

// Config is the on-disk YAML shape. Zero values are filled by defaults
// before validation, so a minimal file only needs the serial port name.
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Decoder DecoderConfig `yaml:"decoder"`
	Store   StoreConfig   `yaml:"store"`
	Window  WindowConfig  `yaml:"window"`
	Metrics MetricsConfig `yaml:"metrics"`
	LogFile string        `yaml:"log_file"`
}

type SerialConfig struct {
	Port                 string   `yaml:"port"`
	BaudRate             int      `yaml:"baud_rate"`
	ReadTimeout          Duration `yaml:"read_timeout"`
	Backoff              Duration `yaml:"backoff"`
	PushTimeout          Duration `yaml:"push_timeout"`
	MaxReconnectAttempts int      `yaml:"max_reconnect_attempts"`
	SyncClockOnConnect   bool     `yaml:"sync_clock_on_connect"`
}

type DecoderConfig struct {
	// Variant picks the instrument protocol: "dual" (8 fields) or
	// "single" (4 fields).
	Variant string `yaml:"variant"`
}

type StoreConfig struct {
	Dir             string   `yaml:"dir"`
	RecordThreshold int      `yaml:"record_threshold"`
	TimeThreshold   Duration `yaml:"time_threshold"`
}

type WindowConfig struct {
	Capacity     int      `yaml:"capacity"`
	ChannelSize  int      `yaml:"channel_size"`
	TickInterval Duration `yaml:"tick_interval"`
	StopTimeout  Duration `yaml:"stop_timeout"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = 9600
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = Duration(time.Second)
	}
	if c.Serial.Backoff == 0 {
		c.Serial.Backoff = Duration(time.Second)
	}
	if c.Serial.PushTimeout == 0 {
		c.Serial.PushTimeout = Duration(5 * time.Second)
	}
	if c.Decoder.Variant == "" {
		c.Decoder.Variant = "dual"
	}
	if c.Store.Dir == "" {
		c.Store.Dir = "data"
	}
	if c.Store.RecordThreshold == 0 {
		c.Store.RecordThreshold = 60
	}
	if c.Store.TimeThreshold == 0 {
		c.Store.TimeThreshold = Duration(5 * time.Minute)
	}
	if c.Window.Capacity == 0 {
		c.Window.Capacity = 300
	}
	if c.Window.ChannelSize == 0 {
		c.Window.ChannelSize = 128
	}
	if c.Window.TickInterval == 0 {
		c.Window.TickInterval = Duration(time.Second)
	}
	if c.Window.StopTimeout == 0 {
		c.Window.StopTimeout = Duration(5 * time.Second)
	}
	if c.LogFile == "" {
		c.LogFile = "flukelog.logs"
	}
}

// Session maps the file shape onto the runtime session configuration.
func (c *Config) Session() (session.Config, error) {
	var dec decode.Config
	switch c.Decoder.Variant {
	case "dual":
		dec = decode.FlukeDual()
	case "single":
		dec = decode.FlukeSingle()
	default:
		return session.Config{}, fmt.Errorf("config: unknown decoder variant %q", c.Decoder.Variant)
	}

	return session.Config{
		Serial: acquire.Config{
			PortName:             c.Serial.Port,
			BaudRate:             c.Serial.BaudRate,
			ReadTimeout:          c.Serial.ReadTimeout.Std(),
			Backoff:              c.Serial.Backoff.Std(),
			PushTimeout:          c.Serial.PushTimeout.Std(),
			MaxReconnectAttempts: c.Serial.MaxReconnectAttempts,
			SyncClockOnConnect:   c.Serial.SyncClockOnConnect,
		},
		Decoder: dec,
		Store: store.Config{
			Dir:             c.Store.Dir,
			RecordThreshold: c.Store.RecordThreshold,
			TimeThreshold:   c.Store.TimeThreshold.Std(),
		},
		WindowCapacity:  c.Window.Capacity,
		ChannelCapacity: c.Window.ChannelSize,
		TickInterval:    c.Window.TickInterval.Std(),
		StopTimeout:     c.Window.StopTimeout.Std(),
	}, nil
}
