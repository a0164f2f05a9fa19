// Package config provides the common options of the cirbuf commands.
//
// Defaults come from the environment, command line flags override them
// and the YAML file named by -config describes the channels. Settings in
// the file apply only when neither the environment nor a flag changed
// the default.
package config

import (
	"flag"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/cirbuf/pkg/channel"
)

// Environment variables.
const (
	EnvMQTTURL  = "CIRBUF_MQTT_URL"
	EnvHTTPAddr = "CIRBUF_HTTP_ADDR"
	EnvConfig   = "CIRBUF_CONFIG"
)

// Config is the configuration of a cirbuf daemon.
type Config struct {
	// DeviceID identifies this device on MQTT, the machine ID by default.
	DeviceID string `yaml:"device_id,omitempty"`
	// MQTTBrokerURL specifies the MQTT broker to use, empty disables the
	// bridge. e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string `yaml:"mqtt,omitempty"`
	// HTTPAddr is the listen address of the web handlers, empty disables
	// the web server.
	HTTPAddr string `yaml:"http,omitempty"`
	// StatusInterval is how often channel status is published.
	StatusInterval time.Duration `yaml:"status_interval,omitempty"`
	// LoopInterval is the period of buffer tasks.
	LoopInterval time.Duration `yaml:"loop_interval,omitempty"`

	Channels []channel.Config `yaml:"channels"`

	// ConfigFile is the path of the YAML file.
	ConfigFile string `yaml:"-"`
}

var builtinConfig = Config{
	MQTTBrokerURL:  "",
	HTTPAddr:       ":8080",
	StatusInterval: 5 * time.Second,
	LoopInterval:   10 * time.Millisecond,
}

var defaultConfig = FromEnv(os.Getenv)

// FromEnv builds the defaults using lookup to read the environment.
func FromEnv(lookup func(string) string) Config {
	conf := builtinConfig
	if val := lookup(EnvMQTTURL); val != "" {
		conf.MQTTBrokerURL = val
	}
	if val := lookup(EnvHTTPAddr); val != "" {
		conf.HTTPAddr = val
	}
	if val := lookup(EnvConfig); val != "" {
		conf.ConfigFile = val
	}
	return conf
}

// SetupFlags sets command line flags.
func SetupFlags() {
	SetupFlagSet(flag.CommandLine, &defaultConfig)
}

// SetupFlagSet registers flags of conf in fs.
func SetupFlagSet(fs *flag.FlagSet, conf *Config) {
	fs.StringVar(&conf.DeviceID, "id", conf.DeviceID, "Device ID, machine ID by default")
	fs.StringVar(&conf.MQTTBrokerURL, "mqtt", conf.MQTTBrokerURL, "MQTT broker URL, empty disables the bridge")
	fs.StringVar(&conf.HTTPAddr, "http", conf.HTTPAddr, "HTTP listen address, empty disables web")
	fs.StringVar(&conf.ConfigFile, "config", conf.ConfigFile, "YAML config file")
	fs.DurationVar(&conf.StatusInterval, "status-interval", conf.StatusInterval, "Interval of status publishing")
	fs.DurationVar(&conf.LoopInterval, "loop-interval", conf.LoopInterval, "Interval of buffer tasks")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations and loads the
// config file.
func NewConfig() (*Config, error) {
	conf := defaultConfig
	if err := conf.Load(); err != nil {
		return nil, err
	}
	return &conf, nil
}

// MustNewConfig creates Config and fails on error.
func MustNewConfig() *Config {
	conf, err := NewConfig()
	if err != nil {
		glog.Exitf("config: %v", err)
	}
	return conf
}

// Load reads ConfigFile if specified and fills unset fields.
func (c *Config) Load() error {
	if c.ConfigFile == "" {
		return c.finish()
	}
	data, err := os.ReadFile(c.ConfigFile)
	if err != nil {
		return errors.Wrap(err, "read config")
	}
	if err := c.Merge(data); err != nil {
		return errors.Wrapf(err, "config %s", c.ConfigFile)
	}
	return c.finish()
}

// Merge applies YAML data: channels are replaced and scalar fields
// still at their built-in defaults are overridden.
func (c *Config) Merge(data []byte) error {
	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return errors.Wrap(err, "parse")
	}
	if c.DeviceID == "" {
		c.DeviceID = file.DeviceID
	}
	if c.MQTTBrokerURL == builtinConfig.MQTTBrokerURL && file.MQTTBrokerURL != "" {
		c.MQTTBrokerURL = file.MQTTBrokerURL
	}
	if c.HTTPAddr == builtinConfig.HTTPAddr && file.HTTPAddr != "" {
		c.HTTPAddr = file.HTTPAddr
	}
	if c.StatusInterval == builtinConfig.StatusInterval && file.StatusInterval > 0 {
		c.StatusInterval = file.StatusInterval
	}
	if c.LoopInterval == builtinConfig.LoopInterval && file.LoopInterval > 0 {
		c.LoopInterval = file.LoopInterval
	}
	if len(file.Channels) > 0 {
		c.Channels = file.Channels
	}
	return nil
}

func (c *Config) finish() error {
	if c.DeviceID == "" {
		c.DeviceID = channel.DeviceID()
	}
	names := make(map[string]bool)
	for _, ch := range c.Channels {
		if names[ch.Name] {
			return errors.Errorf("duplicated channel %q", ch.Name)
		}
		names[ch.Name] = true
	}
	return nil
}

// Marshal encodes the config in YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
