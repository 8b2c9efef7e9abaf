package dca

import (
	"math/big"

	"dcaengine/crypto"
)

// DefaultThresholdGuard is the safety margin, in seconds, subtracted from a
// window's end time when classifying a freshly created position.
const DefaultThresholdGuard = 10 * 60

// MinMaxNoOfSwaps is the smallest value the max-no-of-swap knob accepts.
const MinMaxNoOfSwaps = 2

// ConfigReader exposes the external configuration state the engine consumes
// on every call: allowed tokens and intervals, the fee schedule, the fee
// split, the fee vault, and the per-token price magnitude. The engine never
// mutates configuration; the host supplies it (here the config package
// builds a Params from a TOML file).
type ConfigReader interface {
	// TokenAllowed reports whether token may appear as either side of a
	// position.
	TokenAllowed(token crypto.Address) bool
	// Registry returns the interval registry holding the allowed-interval
	// bitmask and the mask/seconds bijection.
	Registry() *IntervalRegistry
	// SwapFeeBps returns the per-interval swap fee in basis points.
	SwapFeeBps(mask uint8) uint64
	// PlatformFeeRatioBps returns the share of each swap fee routed to the
	// platform vault, in basis points of the fee itself; the remainder is
	// the operator reward.
	PlatformFeeRatioBps() uint64
	// FeeVault is the recipient of the platform's share of swap fees.
	FeeVault() crypto.Address
	// MaxNoOfSwaps bounds the number of installments a position may request.
	MaxNoOfSwaps() uint64
	// ThresholdGuard is the window-classifier safety margin in seconds.
	ThresholdGuard() uint64
	// Magnitude returns 10^decimals(token), the price scaling factor.
	Magnitude(token crypto.Address) *big.Int
	// IsSwapExecutor reports whether caller may run swap/blank-swap.
	IsSwapExecutor(caller crypto.Address) bool
}

// Params is a plain in-memory ConfigReader used by tests and by the CLI
// driver; the config package builds one from a TOML file.
type Params struct {
	Tokens        map[crypto.Address]bool
	Intervals     *IntervalRegistry
	SwapFees      map[uint8]uint64
	PlatformRatio uint64
	Vault         crypto.Address
	MaxSwaps      uint64
	Guard         uint64
	Magnitudes    map[crypto.Address]*big.Int
	SwapExecutors map[crypto.Address]bool
}

// NewParams returns a Params with empty allow-lists, the given registry,
// and defaults for the scalar knobs.
func NewParams(registry *IntervalRegistry) *Params {
	return &Params{
		Tokens:        make(map[crypto.Address]bool),
		Intervals:     registry,
		SwapFees:      make(map[uint8]uint64),
		MaxSwaps:      255,
		Guard:         DefaultThresholdGuard,
		Magnitudes:    make(map[crypto.Address]*big.Int),
		SwapExecutors: make(map[crypto.Address]bool),
	}
}

func (p *Params) TokenAllowed(token crypto.Address) bool {
	if p == nil {
		return false
	}
	return p.Tokens[token]
}

func (p *Params) Registry() *IntervalRegistry {
	if p == nil {
		return nil
	}
	return p.Intervals
}

func (p *Params) SwapFeeBps(mask uint8) uint64 {
	if p == nil {
		return 0
	}
	return p.SwapFees[mask]
}

func (p *Params) PlatformFeeRatioBps() uint64 {
	if p == nil {
		return 0
	}
	return p.PlatformRatio
}

func (p *Params) FeeVault() crypto.Address {
	if p == nil {
		return crypto.Address{}
	}
	return p.Vault
}

func (p *Params) MaxNoOfSwaps() uint64 {
	if p == nil || p.MaxSwaps < MinMaxNoOfSwaps {
		return MinMaxNoOfSwaps
	}
	return p.MaxSwaps
}

func (p *Params) ThresholdGuard() uint64 {
	if p == nil {
		return DefaultThresholdGuard
	}
	return p.Guard
}

// Magnitude defaults to 10^18 for tokens with no configured decimals, the
// common case for the assets the engine trades.
func (p *Params) Magnitude(token crypto.Address) *big.Int {
	if p != nil {
		if m, ok := p.Magnitudes[token]; ok && m != nil && m.Sign() > 0 {
			return new(big.Int).Set(m)
		}
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
}

func (p *Params) IsSwapExecutor(caller crypto.Address) bool {
	if p == nil {
		return false
	}
	return p.SwapExecutors[caller]
}
