package config

import (
	"fmt"

	"dcaengine/crypto"
)

// MinMaxNoOfSwaps is the smallest accepted max-no-of-swaps knob.
const MinMaxNoOfSwaps = 2

// MaxIntervals caps the allowed-interval set at the width of the interval
// bitmask.
const MaxIntervals = 8

// ValidateConfig rejects configurations the engine cannot run under.
func ValidateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	eng := c.Engine
	if eng.PlatformFeeRatioBps > 10_000 {
		return fmt.Errorf("engine: PlatformFeeRatioBps %d > 10000", eng.PlatformFeeRatioBps)
	}
	if eng.MaxNoOfSwaps < MinMaxNoOfSwaps {
		return fmt.Errorf("engine: MaxNoOfSwaps %d < %d", eng.MaxNoOfSwaps, MinMaxNoOfSwaps)
	}
	if eng.ThresholdGuardSecs == 0 {
		return fmt.Errorf("engine: ThresholdGuardSecs must be positive")
	}
	if len(eng.IntervalSecs) > MaxIntervals {
		return fmt.Errorf("engine: at most %d intervals allowed", MaxIntervals)
	}
	var prev uint64
	for i, secs := range eng.IntervalSecs {
		if secs == 0 {
			return fmt.Errorf("engine: interval %d is zero", i)
		}
		if i > 0 && secs <= prev {
			return fmt.Errorf("engine: intervals must be strictly increasing, got %d after %d", secs, prev)
		}
		prev = secs
	}
	seen := make(map[string]bool, len(eng.AllowedTokens))
	for _, tok := range eng.AllowedTokens {
		if _, err := crypto.DecodeAddress(tok.Address); err != nil {
			return fmt.Errorf("engine: token %q: %w", tok.Address, err)
		}
		if seen[tok.Address] {
			return fmt.Errorf("engine: duplicate token %q", tok.Address)
		}
		seen[tok.Address] = true
	}
	for _, tier := range eng.SwapFees {
		if tier.SwapFeeBps > 10_000 {
			return fmt.Errorf("engine: swap fee %d bps > 10000", tier.SwapFeeBps)
		}
		known := false
		for _, secs := range eng.IntervalSecs {
			if secs == tier.IntervalSecs {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("engine: swap fee for unknown interval %d", tier.IntervalSecs)
		}
	}
	if eng.FeeVault != "" {
		if _, err := crypto.DecodeAddress(eng.FeeVault); err != nil {
			return fmt.Errorf("engine: FeeVault %q: %w", eng.FeeVault, err)
		}
	}
	for _, addr := range append(append([]string{}, eng.Admins...), eng.SwapExecutors...) {
		if _, err := crypto.DecodeAddress(addr); err != nil {
			return fmt.Errorf("engine: address %q: %w", addr, err)
		}
	}
	return nil
}
