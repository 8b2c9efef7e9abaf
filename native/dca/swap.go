package dca

import (
	"context"
	"math/big"

	"github.com/google/uuid"

	"dcaengine/crypto"
	nativecommon "dcaengine/native/common"
)

// SwapRequest names one (from, to) pair to execute in a batch, together
// with the operator-supplied trade route for that pair.
type SwapRequest struct {
	From  crypto.Address
	To    crypto.Address
	Route TradeRoute
}

// swapPlan is the aggregate a pair-level swap will trade: the fee-net total
// input, the set of interval masks participating, and the fee split.
type swapPlan struct {
	TotalInput      *big.Int
	IntervalsInSwap uint8
	OperatorReward  *big.Int
	PlatformFee     *big.Int
	netByMask       map[uint8]*big.Int
}

// aggregate walks the pair's active masks low-to-high and bundles every
// interval whose window has opened. The scan breaks at the first interval
// whose window has not opened: aligned larger intervals are conservatively
// skipped so that intervals progress in phase and co-executing windows are
// always bundled into one trade.
func (e *Engine) aggregate(pair PairKey, now uint64) (*swapPlan, error) {
	plan := &swapPlan{
		TotalInput:     big.NewInt(0),
		OperatorReward: big.NewInt(0),
		PlatformFee:    big.NewInt(0),
		netByMask:      make(map[uint8]*big.Int),
	}
	activeMask, err := e.state.GetActiveMask(pair)
	if err != nil {
		return nil, err
	}
	registry := e.params.Registry()
	platformRatio := e.params.PlatformFeeRatioBps()
	for _, m := range registry.Bits() {
		if activeMask&m == 0 {
			continue
		}
		interval, ok := registry.MaskToInterval(m)
		if !ok {
			continue
		}
		state, err := e.state.GetTriple(TripleKey{From: pair.From, To: pair.To, Mask: m})
		if err != nil {
			return nil, err
		}
		if (state.LastSwappedAt/interval+1)*interval > now {
			break
		}
		if state.NextAmount.Sign() == 0 {
			continue
		}
		net, feeGross := split(state.NextAmount, e.params.SwapFeeBps(m))
		reward, platform := split(feeGross, platformRatio)
		plan.IntervalsInSwap |= m
		plan.TotalInput.Add(plan.TotalInput, net)
		plan.OperatorReward.Add(plan.OperatorReward, reward)
		plan.PlatformFee.Add(plan.PlatformFee, platform)
		plan.netByMask[m] = net
	}
	if plan.TotalInput.Sign() == 0 {
		plan.IntervalsInSwap = 0
	}
	return plan, nil
}

// Swap executes one batched trade per (from, to) pair in the batch and
// distributes the delivered output across every participating interval's
// accumulated-ratio series. Swap-executor gated; the whole batch aborts on
// the first failing pair.
func (e *Engine) Swap(ctx context.Context, caller crypto.Address, batch []SwapRequest, rewardRecipient crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.executor == nil {
		return errNilExecutor
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !e.params.IsSwapExecutor(caller) {
		return ErrUnauthorizedCaller
	}
	if len(batch) == 0 {
		return ErrNoAvailableSwap
	}
	if crypto.ZeroAddress(rewardRecipient) {
		rewardRecipient = caller
	}
	batchID := uuid.New().String()
	now := e.now()
	for _, req := range batch {
		pair := PairKey{From: req.From, To: req.To}
		plan, err := e.aggregate(pair, now)
		if err != nil {
			return err
		}
		if plan.TotalInput.Sign() == 0 || plan.IntervalsInSwap == 0 {
			return ErrNoAvailableSwap
		}
		if req.Route.DeclaredAmount == nil || req.Route.DeclaredAmount.Cmp(plan.TotalInput) != 0 {
			return ErrInvalidSwapAmount
		}
		delivered, err := e.executeTrade(ctx, pair, plan.TotalInput, req.Route)
		if err != nil {
			return err
		}
		if err := e.register(pair, plan, delivered, now); err != nil {
			return err
		}
		if plan.PlatformFee.Sign() > 0 {
			if err := e.custodian.Pay(ctx, pair.From, e.params.FeeVault(), plan.PlatformFee); err != nil {
				return err
			}
		}
		if plan.OperatorReward.Sign() > 0 {
			if err := e.custodian.Pay(ctx, pair.From, rewardRecipient, plan.OperatorReward); err != nil {
				return err
			}
		}
		e.emit(newSwappedEvent(batchID, pair, plan.IntervalsInSwap, plan.TotalInput, delivered))
	}
	return nil
}

// executeTrade grants the one-shot allowance to the route's proxy, invokes
// the external executor, and measures the delivered destination balance.
// The allowance is not revoked afterwards; operators must size
// DeclaredAmount so the route consumes it fully.
func (e *Engine) executeTrade(ctx context.Context, pair PairKey, totalInput *big.Int, route TradeRoute) (*big.Int, error) {
	if err := e.executor.Approve(ctx, pair.From, route.Proxy, totalInput); err != nil {
		return nil, ErrSwapCallFailed
	}
	before, err := e.executor.BalanceOf(ctx, pair.To, e.self)
	if err != nil {
		return nil, ErrSwapCallFailed
	}
	if err := e.executor.Execute(ctx, route); err != nil {
		return nil, ErrSwapCallFailed
	}
	after, err := e.executor.BalanceOf(ctx, pair.To, e.self)
	if err != nil {
		return nil, ErrSwapCallFailed
	}
	delivered := new(big.Int).Sub(balanceToBig(after), balanceToBig(before))
	if delivered.Sign() < 0 {
		delivered.SetInt64(0)
	}
	minOut := route.MinOut
	if minOut == nil {
		minOut = big.NewInt(0)
	}
	if delivered.Cmp(minOut) < 0 {
		return nil, ErrInvalidReturnAmount
	}
	return delivered, nil
}

// register distributes a delivered output across every interval that
// participated in the trade (case A) and advances intervals whose whole
// pending amount was deferred (case B) without touching the trade at all.
func (e *Engine) register(pair PairKey, plan *swapPlan, delivered *big.Int, now uint64) error {
	activeMask, err := e.state.GetActiveMask(pair)
	if err != nil {
		return err
	}
	magnitude := e.params.Magnitude(pair.From)
	registry := e.params.Registry()
	newActive := activeMask
	for _, m := range registry.Bits() {
		if activeMask&m == 0 {
			continue
		}
		key := TripleKey{From: pair.From, To: pair.To, Mask: m}
		state, err := e.state.GetTriple(key)
		if err != nil {
			return err
		}
		switch {
		case plan.IntervalsInSwap&m != 0 && state.NextAmount.Sign() > 0:
			net := plan.netByMask[m]
			deliveredShare := new(big.Int).Mul(delivered, net)
			deliveredShare.Mul(deliveredShare, magnitude)
			deliveredShare.Quo(deliveredShare, plan.TotalInput)
			price := deliveredShare.Quo(deliveredShare, state.NextAmount)
			state.Accum[state.PerformedSwaps+1] = new(big.Int).Add(state.AccumAt(state.PerformedSwaps), price)
			state.PerformedSwaps++
			next := new(big.Int).Add(state.NextAmount, state.NextToNextAmount)
			next.Sub(next, state.DeltaAt(state.PerformedSwaps+1))
			if next.Sign() < 0 {
				next.SetInt64(0)
			}
			delete(state.Delta, state.PerformedSwaps+1)
			state.NextAmount = next
			state.NextToNextAmount = big.NewInt(0)
			state.LastSwappedAt = now
			if state.NextAmount.Sign() == 0 {
				newActive &^= m
			}
		case state.NextAmount.Sign() == 0 && state.NextToNextAmount.Sign() > 0:
			// Bookkeeping advance: promote the deferred pool without a
			// trade and without moving last_swapped_at.
			state.Accum[state.PerformedSwaps+1] = state.AccumAt(state.PerformedSwaps)
			state.PerformedSwaps++
			state.NextAmount = state.NextToNextAmount
			state.NextToNextAmount = big.NewInt(0)
		default:
			continue
		}
		if err := e.state.PutTriple(key, state); err != nil {
			return err
		}
	}
	if newActive != activeMask {
		if err := e.state.PutActiveMask(pair, newActive); err != nil {
			return err
		}
	}
	return nil
}

// BlankSwap advances a single triple whose entire pending amount sits in
// the deferred pool, promoting it into next_amount so the following real
// swap can include it. No trade happens and last_swapped_at is left as-is,
// so downstream window math keeps reporting relative to the last real swap.
func (e *Engine) BlankSwap(caller crypto.Address, from, to crypto.Address, mask uint8) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if !e.params.IsSwapExecutor(caller) {
		return ErrUnauthorizedCaller
	}
	key := TripleKey{From: from, To: to, Mask: mask}
	state, err := e.state.GetTriple(key)
	if err != nil {
		return err
	}
	if state.NextAmount.Sign() != 0 || state.NextToNextAmount.Sign() == 0 {
		return ErrInvalidBlankSwap
	}
	state.Accum[state.PerformedSwaps+1] = state.AccumAt(state.PerformedSwaps)
	state.PerformedSwaps++
	state.NextAmount = state.NextToNextAmount
	state.NextToNextAmount = big.NewInt(0)
	if err := e.state.PutTriple(key, state); err != nil {
		return err
	}
	e.emit(newBlankSwappedEvent(uuid.New().String(), key))
	return nil
}
