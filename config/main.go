package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	SIPEnabled         bool   `json:"sip_enabled"`
	SIPProtocol        string `json:"sip_protocol"`
	SIPPort            int    `json:"sip_port"`
	SIPListenAddress   string `json:"sip_listen_address"`
	SIPGateway         string `json:"sip_gateway"`
	GRPCListenAddress  string `json:"grpc_listen_address"`
	DefaultNumber      string `json:"default_number"`
	VibrationPatternMs []int  `json:"vibration_pattern_ms"`
	LogLevel           string `json:"log_level"`
	LogPhoneNumbers    bool   `json:"log_phone_numbers"`
}

func Default() *Config {
	return &Config{
		SIPProtocol:        "udp",
		SIPPort:            5060,
		SIPListenAddress:   "0.0.0.0",
		GRPCListenAddress:  ":50051",
		DefaultNumber:      "+1234567890",
		VibrationPatternMs: []int{500, 1000},
		LogLevel:           "info",
	}
}

// DefaultPath is configs/config.json next to the executable.
func DefaultPath() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(exePath), "configs", "config.json"), nil
}

// LoadConfig reads the config at DefaultPath. A missing file yields the defaults.
func LoadConfig() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, errors.Wrap(err, "error locating config")
	}
	return LoadConfigFile(path, true)
}

// LoadConfigFile reads path over the defaults, applies env overrides and
// validates the result.
func LoadConfigFile(path string, optional bool) (*Config, error) {
	config := Default()

	configData, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(configData, config); err != nil {
			return nil, errors.Wrapf(err, "error decoding config %s", path)
		}
	case optional && os.IsNotExist(err):
	default:
		return nil, errors.Wrapf(err, "error reading config %s", path)
	}

	applyEnv(config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(config *Config) {
	if v := os.Getenv("CALLSIGNAL_LOG_LEVEL"); v != "" {
		config.LogLevel = v
	}
	if v := os.Getenv("CALLSIGNAL_GRPC_ADDR"); v != "" {
		config.GRPCListenAddress = v
	}
	if v := os.Getenv("CALLSIGNAL_SIP_GATEWAY"); v != "" {
		config.SIPGateway = v
	}
}

func (c *Config) Validate() error {
	if c.GRPCListenAddress == "" {
		return errors.Wrap(ErrInvalidConfig, "grpc_listen_address is required")
	}
	if c.SIPEnabled {
		switch c.SIPProtocol {
		case "udp", "tcp", "ws", "tls", "wss":
		default:
			return errors.Wrapf(ErrInvalidConfig, "unsupported sip_protocol %q", c.SIPProtocol)
		}
		if c.SIPPort < 0 || c.SIPPort > 65535 {
			return errors.Wrapf(ErrInvalidConfig, "sip_port %d out of range", c.SIPPort)
		}
	}
	for _, ms := range c.VibrationPatternMs {
		if ms < 0 {
			return errors.Wrap(ErrInvalidConfig, "vibration_pattern_ms values must not be negative")
		}
	}
	return nil
}
