package config

import (
	"fmt"
	"math/big"

	"dcaengine/crypto"
	"dcaengine/native/dca"
)

// Runtime materialises the engine-facing view of a validated configuration:
// decoded addresses, the interval registry, per-mask fee schedule, and
// per-token magnitudes.
func (c *Config) Runtime() (*dca.Params, error) {
	if err := ValidateConfig(c); err != nil {
		return nil, err
	}
	registry, err := dca.NewIntervalRegistry(c.Engine.IntervalSecs)
	if err != nil {
		return nil, err
	}
	params := dca.NewParams(registry)
	params.PlatformRatio = c.Engine.PlatformFeeRatioBps
	params.MaxSwaps = c.Engine.MaxNoOfSwaps
	params.Guard = c.Engine.ThresholdGuardSecs

	for _, tok := range c.Engine.AllowedTokens {
		addr, err := crypto.DecodeAddress(tok.Address)
		if err != nil {
			return nil, fmt.Errorf("token %q: %w", tok.Address, err)
		}
		params.Tokens[addr] = true
		params.Magnitudes[addr] = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(tok.Decimals)), nil)
	}
	for _, tier := range c.Engine.SwapFees {
		mask, ok := registry.IntervalToMask(tier.IntervalSecs)
		if !ok {
			return nil, fmt.Errorf("swap fee for unknown interval %d", tier.IntervalSecs)
		}
		params.SwapFees[mask] = tier.SwapFeeBps
	}
	if c.Engine.FeeVault != "" {
		vault, err := crypto.DecodeAddress(c.Engine.FeeVault)
		if err != nil {
			return nil, fmt.Errorf("fee vault %q: %w", c.Engine.FeeVault, err)
		}
		params.Vault = vault
	}
	for _, raw := range c.Engine.SwapExecutors {
		addr, err := crypto.DecodeAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("swap executor %q: %w", raw, err)
		}
		params.SwapExecutors[addr] = true
	}
	return params, nil
}

// IsAdmin reports whether addr appears in the configured admin set.
func (c *Config) IsAdmin(addr crypto.Address) bool {
	if c == nil {
		return false
	}
	for _, raw := range c.Engine.Admins {
		decoded, err := crypto.DecodeAddress(raw)
		if err != nil {
			continue
		}
		if decoded == addr {
			return true
		}
	}
	return false
}
