package config

// Token declares one asset users may hold positions in.
type Token struct {
	Address  string `toml:"Address"`
	Decimals uint8  `toml:"Decimals"`
}

// FeeTier binds a swap fee, in basis points of the aggregate input, to one
// allowed interval.
type FeeTier struct {
	IntervalSecs uint64 `toml:"IntervalSecs"`
	SwapFeeBps   uint64 `toml:"SwapFeeBps"`
}

// Engine groups the runtime-tunable knobs the accounting engine reads on
// every call.
type Engine struct {
	AllowedTokens       []Token   `toml:"AllowedTokens"`
	IntervalSecs        []uint64  `toml:"IntervalSecs"`
	SwapFees            []FeeTier `toml:"SwapFees"`
	PlatformFeeRatioBps uint64    `toml:"PlatformFeeRatioBps"`
	FeeVault            string    `toml:"FeeVault"`
	MaxNoOfSwaps        uint64    `toml:"MaxNoOfSwaps"`
	ThresholdGuardSecs  uint64    `toml:"ThresholdGuardSecs"`
	Admins              []string  `toml:"Admins"`
	SwapExecutors       []string  `toml:"SwapExecutors"`
}

// Pauses carries the per-module pause switches. Pausing dca disables
// position creation, modification, ownership transfer, and swapping;
// withdrawal and termination stay available.
type Pauses struct {
	DCA bool `toml:"DCA"`
}

// IsPaused satisfies the native/common.PauseView interface.
func (p Pauses) IsPaused(module string) bool {
	return module == "dca" && p.DCA
}

// Quota defines per-address rate limits applied by the service layer in
// front of the engine.
type Quota struct {
	MaxRequestsPerMin uint32 `toml:"MaxRequestsPerMin"`
	EpochSeconds      uint32 `toml:"EpochSeconds"`
}

// EnsureDefaults fills zero-valued knobs with their defaults so a partially
// written file still yields a usable configuration.
func (c *Config) EnsureDefaults() {
	if c == nil {
		return
	}
	if c.ServiceName == "" {
		c.ServiceName = "dca-engine"
	}
	if c.Environment == "" {
		c.Environment = "local"
	}
	if c.Engine.MaxNoOfSwaps == 0 {
		c.Engine.MaxNoOfSwaps = 255
	}
	if c.Engine.ThresholdGuardSecs == 0 {
		c.Engine.ThresholdGuardSecs = 600
	}
	if c.Quota.EpochSeconds == 0 {
		c.Quota.EpochSeconds = 60
	}
}
