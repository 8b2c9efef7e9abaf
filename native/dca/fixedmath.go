package dca

import (
	"math/big"

	"github.com/holiman/uint256"
)

var bps10000 = big.NewInt(10_000)

// split divides x into a net remainder and a fee taken at bps/10000,
// floor division throughout.
func split(x *big.Int, bps uint64) (net, fee *big.Int) {
	if x == nil || x.Sign() <= 0 || bps == 0 {
		return cloneAmount(x), big.NewInt(0)
	}
	fee = new(big.Int).Mul(x, new(big.Int).SetUint64(bps))
	fee.Quo(fee, bps10000)
	net = new(big.Int).Sub(x, fee)
	return net, fee
}

// balanceToBig converts a uint256 balance read across the trade-executor
// boundary into the engine's big.Int ledger representation.
func balanceToBig(v *uint256.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v.ToBig()
}

// bigToBalance converts a big.Int amount into the uint256 representation
// a trade executor reports balances in, the inverse of balanceToBig. It clamps
// rather than errors on overflow: amounts are 256-bit in practice, so
// overflow here indicates a misconfigured token, not a value the core needs
// to reject gracefully.
func bigToBalance(v *big.Int) *uint256.Int {
	u, overflow := uint256.FromBig(v)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return u
}
