package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"pcnchain/crypto"
)

type Config struct {
	NetworkName string          `toml:"NetworkName" yaml:"network_name"`
	Environment string          `toml:"Environment" yaml:"environment"`
	GenesisFile string          `toml:"GenesisFile" yaml:"genesis_file"`
	Storage     StorageConfig   `toml:"storage" yaml:"storage"`
	Channels    ChannelsConfig  `toml:"channels" yaml:"channels"`
	HTLC        HTLCConfig      `toml:"htlc" yaml:"htlc"`
	Fees        FeesConfig      `toml:"fees" yaml:"fees"`
	RPC         RPCConfig       `toml:"rpc" yaml:"rpc"`
	Logging     LoggingConfig   `toml:"logging" yaml:"logging"`
	Telemetry   TelemetryConfig `toml:"telemetry" yaml:"telemetry"`
}

type StorageConfig struct {
	Backend string `toml:"Backend" yaml:"backend"`
	Path    string `toml:"Path" yaml:"path"`
}

type ChannelsConfig struct {
	// MinDeposit is a base-10 integer amount.
	MinDeposit     string `toml:"MinDeposit" yaml:"min_deposit"`
	DisputeTimeout uint64 `toml:"DisputeTimeout" yaml:"dispute_timeout"`
	ProtocolFeeBps uint32 `toml:"ProtocolFeeBps" yaml:"protocol_fee_bps"`
	Treasury       string `toml:"Treasury" yaml:"treasury"`
	// SkipSignatureVerification accepts any signature bytes. Fixtures only.
	SkipSignatureVerification bool `toml:"SkipSignatureVerification" yaml:"skip_signature_verification"`
}

type HTLCConfig struct {
	DefaultWindow uint64 `toml:"DefaultWindow" yaml:"default_window"`
	RelayMargin   uint64 `toml:"RelayMargin" yaml:"relay_margin"`
	HashAlgorithm string `toml:"HashAlgorithm" yaml:"hash_algorithm"`
}

type FeesConfig struct {
	DefaultFeeRateBps uint32 `toml:"DefaultFeeRateBps" yaml:"default_fee_rate_bps"`
	MaxFeeRateBps     uint32 `toml:"MaxFeeRateBps" yaml:"max_fee_rate_bps"`
}

type RPCConfig struct {
	ListenAddress      string  `toml:"ListenAddress" yaml:"listen_address"`
	RequestsPerMinute  float64 `toml:"RequestsPerMinute" yaml:"requests_per_minute"`
	Burst              int     `toml:"Burst" yaml:"burst"`
	ReadTimeoutSeconds int     `toml:"ReadTimeoutSeconds" yaml:"read_timeout_seconds"`
}

type LoggingConfig struct {
	Level      string `toml:"Level" yaml:"level"`
	File       string `toml:"File" yaml:"file"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"max_size_mb"`
	MaxBackups int    `toml:"MaxBackups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"max_age_days"`
}

type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	Traces   bool   `toml:"Traces" yaml:"traces"`
	Metrics  bool   `toml:"Metrics" yaml:"metrics"`
	Headers  string `toml:"Headers" yaml:"headers"`
}

// Default returns the configuration written when no file exists.
func Default() *Config {
	return &Config{
		NetworkName: "pcn-local",
		Storage: StorageConfig{
			Backend: "leveldb",
			Path:    "./pcn-data/state",
		},
		Channels: ChannelsConfig{
			MinDeposit:     "10",
			DisputeTimeout: 144,
		},
		HTLC: HTLCConfig{
			DefaultWindow: 144,
			RelayMargin:   12,
			HashAlgorithm: crypto.HashKeccak256,
		},
		Fees: FeesConfig{
			DefaultFeeRateBps: 10,
			MaxFeeRateBps:     1_000,
		},
		RPC: RPCConfig{
			ListenAddress:      ":8645",
			RequestsPerMinute:  600,
			Burst:              50,
			ReadTimeoutSeconds: 10,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

// Load loads the configuration from the given path, creating a default file
// when none exists. Files ending in .yaml or .yml are decoded as YAML, all
// others as TOML.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if isYAML(path) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	} else {
		meta, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0].String())
		}
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = def.NetworkName
	}
	if strings.TrimSpace(c.Storage.Backend) == "" {
		c.Storage.Backend = def.Storage.Backend
	}
	if strings.TrimSpace(c.Channels.MinDeposit) == "" {
		c.Channels.MinDeposit = def.Channels.MinDeposit
	}
	if c.Channels.DisputeTimeout == 0 {
		c.Channels.DisputeTimeout = def.Channels.DisputeTimeout
	}
	if c.HTLC.DefaultWindow == 0 {
		c.HTLC.DefaultWindow = def.HTLC.DefaultWindow
	}
	if c.HTLC.RelayMargin == 0 {
		c.HTLC.RelayMargin = def.HTLC.RelayMargin
	}
	if strings.TrimSpace(c.HTLC.HashAlgorithm) == "" {
		c.HTLC.HashAlgorithm = def.HTLC.HashAlgorithm
	}
	if c.Fees.MaxFeeRateBps == 0 {
		c.Fees.MaxFeeRateBps = def.Fees.MaxFeeRateBps
	}
	if strings.TrimSpace(c.RPC.ListenAddress) == "" {
		c.RPC.ListenAddress = def.RPC.ListenAddress
	}
	if c.RPC.ReadTimeoutSeconds == 0 {
		c.RPC.ReadTimeoutSeconds = def.RPC.ReadTimeoutSeconds
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = def.Logging.Level
	}
}

// MinDepositAmount parses the configured minimum deposit.
func (c *Config) MinDepositAmount() (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(c.Channels.MinDeposit), 10)
	if !ok {
		return nil, fmt.Errorf("channels.MinDeposit: invalid integer %q", c.Channels.MinDeposit)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("channels.MinDeposit: must be non-negative")
	}
	return amount, nil
}

// TreasuryAddress parses the protocol fee treasury. A blank value yields the
// zero address.
func (c *Config) TreasuryAddress() ([20]byte, error) {
	if strings.TrimSpace(c.Channels.Treasury) == "" {
		return [20]byte{}, nil
	}
	addr, err := crypto.ParseAddress(c.Channels.Treasury)
	if err != nil {
		return [20]byte{}, fmt.Errorf("channels.Treasury: %w", err)
	}
	return addr, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
