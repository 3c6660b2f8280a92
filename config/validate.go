package config

import (
	"fmt"

	"pcnchain/crypto"
	"pcnchain/storage"
)

// MaxBasisPoints bounds every basis-point setting.
const MaxBasisPoints = 10_000

func Validate(c *Config) error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	switch c.Storage.Backend {
	case storage.BackendMemory, storage.BackendLevelDB, storage.BackendBolt:
	default:
		return fmt.Errorf("storage: unsupported backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend != storage.BackendMemory && c.Storage.Path == "" {
		return fmt.Errorf("storage: path required for %s backend", c.Storage.Backend)
	}
	if _, err := c.MinDepositAmount(); err != nil {
		return err
	}
	if c.Channels.DisputeTimeout == 0 {
		return fmt.Errorf("channels: dispute_timeout must be positive")
	}
	if c.Channels.ProtocolFeeBps > MaxBasisPoints {
		return fmt.Errorf("channels: protocol_fee_bps > %d", MaxBasisPoints)
	}
	treasury, err := c.TreasuryAddress()
	if err != nil {
		return err
	}
	if c.Channels.ProtocolFeeBps > 0 && treasury == ([20]byte{}) {
		return fmt.Errorf("channels: treasury required when protocol_fee_bps > 0")
	}
	if c.HTLC.RelayMargin == 0 || c.HTLC.RelayMargin >= c.HTLC.DefaultWindow {
		return fmt.Errorf("htlc: relay_margin must be positive and below default_window")
	}
	if _, err := crypto.HasherByName(c.HTLC.HashAlgorithm); err != nil {
		return fmt.Errorf("htlc: %w", err)
	}
	if c.Fees.MaxFeeRateBps > MaxBasisPoints {
		return fmt.Errorf("fees: max_fee_rate_bps > %d", MaxBasisPoints)
	}
	if c.Fees.DefaultFeeRateBps > c.Fees.MaxFeeRateBps {
		return fmt.Errorf("fees: default_fee_rate_bps > max_fee_rate_bps")
	}
	if c.RPC.RequestsPerMinute < 0 || c.RPC.Burst < 0 {
		return fmt.Errorf("rpc: rate limits must be non-negative")
	}
	return nil
}
