package comelithkbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brutella/hap/log"
	"gopkg.in/yaml.v3"

	"github.com/cloudkucooland/HomeKitBridges/ComelitHKBridge/comelit"
)

// ErrInvalidConfig is returned by LoadConfig when a value is out of range
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	// HomeKit setup pin (80899303)
	Pin string `json:"pin" yaml:"pin"`

	// serial bridge address, empty to discover over SSDP
	BridgeURL  string `json:"bridge_url" yaml:"bridge_url"`
	BridgePort int    `json:"bridge_port" yaml:"bridge_port"`

	// keepalive interval in seconds (5)
	RefreshRate int `json:"refresh_rate" yaml:"refresh_rate"`

	// full travel of a blind in seconds (35)
	BlindClosingTime int `json:"blind_closing_time" yaml:"blind_closing_time"`

	// Vedo alarm; the address defaults to BridgeURL
	DisableAlarm bool   `json:"disable_alarm" yaml:"disable_alarm"`
	AlarmCode    string `json:"alarm_code" yaml:"alarm_code"`
	AlarmAddress string `json:"alarm_address" yaml:"alarm_address"`
	AlarmPort    int    `json:"alarm_port" yaml:"alarm_port"`

	// status server, empty disables
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`

	// bridge calls per second (4)
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit"`

	MQTT MQTTConfig `json:"mqtt" yaml:"mqtt"`
}

// MQTTConfig is optional; an empty Broker disables telemetry
type MQTTConfig struct {
	Broker   string `json:"broker" yaml:"broker"`
	ClientID string `json:"client_id" yaml:"client_id"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Prefix   string `json:"prefix" yaml:"prefix"`
}

// DefaultConfig is what LoadConfig starts from
func DefaultConfig() Config {
	return Config{
		Pin:              "80899303",
		BridgePort:       80,
		RefreshRate:      5,
		BlindClosingTime: 35,
		RateLimit:        comelit.DefaultRate,
		MQTT: MQTTConfig{
			ClientID: "comelit-homekit",
			Prefix:   "comelit",
		},
	}
}

// LoadConfig reads filename as JSON, or YAML when it ends in .yaml/.yml.
// A missing file is not an error, the defaults are used.
func LoadConfig(filename string) (*Config, error) {
	conf := DefaultConfig()

	raw, err := os.ReadFile(filename)
	if err != nil {
		log.Info.Printf("unable to open config %s: using defaults", filename)
		return &conf, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &conf)
	default:
		err = json.Unmarshal(raw, &conf)
	}
	if err != nil {
		log.Info.Printf("unable to parse config %s: %s", filename, err.Error())
		return nil, err
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	log.Info.Printf("using config: %s", conf.String())

	return &conf, nil
}

func (c *Config) validate() error {
	if c.RefreshRate < 1 {
		return fmt.Errorf("%w: refresh_rate must be at least 1 second, got %d", ErrInvalidConfig, c.RefreshRate)
	}
	if c.BlindClosingTime <= 0 {
		return fmt.Errorf("%w: blind_closing_time must be positive, got %d", ErrInvalidConfig, c.BlindClosingTime)
	}
	if c.BridgePort < 0 || c.BridgePort > 65535 {
		return fmt.Errorf("%w: bridge_port %d out of range", ErrInvalidConfig, c.BridgePort)
	}
	if c.AlarmPort < 0 || c.AlarmPort > 65535 {
		return fmt.Errorf("%w: alarm_port %d out of range", ErrInvalidConfig, c.AlarmPort)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate_limit must not be negative", ErrInvalidConfig)
	}
	return nil
}

// AlarmEnabled is true when the Vedo alarm should be exposed
func (c *Config) AlarmEnabled() bool {
	return !c.DisableAlarm && c.AlarmCode != ""
}

func (c *Config) refreshInterval() time.Duration {
	return time.Duration(c.RefreshRate) * time.Second
}

func (c *Config) closingTime() time.Duration {
	return time.Duration(c.BlindClosingTime) * time.Second
}

// AlarmAddressPort is where the Vedo web interface listens
func (c *Config) AlarmAddressPort() (string, int) {
	if c.AlarmAddress != "" {
		return c.AlarmAddress, c.AlarmPort
	}
	return c.BridgeURL, c.AlarmPort
}

// String hides the secrets
func (c Config) String() string {
	if c.AlarmCode != "" {
		c.AlarmCode = "****"
	}
	if c.MQTT.Password != "" {
		c.MQTT.Password = "****"
	}
	type plain Config
	return fmt.Sprintf("%+v", plain(c))
}
