package dca

import (
	"context"
	"math/big"
	"time"

	"dcaengine/core/events"
	coretypes "dcaengine/core/types"
	"dcaengine/crypto"
	nativecommon "dcaengine/native/common"
)

const moduleName = "dca"

// Engine orchestrates the aggregation and distribution accounting for all
// dollar-cost-averaging positions. Every state-changing entry point runs to
// completion against the stores before returning; callers provide the
// serialization boundary.
type Engine struct {
	state     EngineState
	params    ConfigReader
	custodian Custodian
	executor  TradeExecutor
	emitter   events.Emitter
	pauses    nativecommon.PauseView
	self      crypto.Address
	nowFn     func() uint64
}

// NewEngine constructs an engine holding custody at self. State, params,
// custodian and trade executor are wired afterwards via the Set helpers.
func NewEngine(self crypto.Address) *Engine {
	return &Engine{
		self:    self,
		emitter: events.NoopEmitter{},
		nowFn:   func() uint64 { return uint64(time.Now().Unix()) },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state EngineState) { e.state = state }

// SetParams wires the external configuration reader.
func (e *Engine) SetParams(params ConfigReader) { e.params = params }

// SetCustodian wires the token-custody collaborator.
func (e *Engine) SetCustodian(c Custodian) { e.custodian = c }

// SetTradeExecutor wires the external market collaborator.
func (e *Engine) SetTradeExecutor(t TradeExecutor) { e.executor = t }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the module pause view consulted by user-facing mutations.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetClock overrides the wall-clock source, in seconds. Tests inject a
// deterministic clock here.
func (e *Engine) SetClock(now func() uint64) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

// Self returns the engine's own custody address.
func (e *Engine) Self() crypto.Address { return e.self }

func (e *Engine) now() uint64 { return e.nowFn() }

func (e *Engine) emit(evt *coretypes.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(dcaEvent{evt: evt})
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.params == nil:
		return errNilConfig
	case e.custodian == nil:
		return errNilCustody
	}
	return nil
}

// CreateRequest carries the user inputs for one position.
type CreateRequest struct {
	From      crypto.Address
	To        crypto.Address
	Interval  uint64 // seconds
	Amount    *big.Int
	NoOfSwaps uint64
}

// Create opens a new position for caller: Amount of From is pulled into
// custody and traded into To in NoOfSwaps equal installments, one per
// Interval. Returns the stored position.
func (e *Engine) Create(ctx context.Context, caller crypto.Address, req CreateRequest) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	mask, rate, err := e.validateCreate(caller, req)
	if err != nil {
		return nil, err
	}
	if err := e.custodian.Pull(ctx, req.From, caller, req.Amount); err != nil {
		return nil, err
	}
	pos, err := e.insertPosition(caller, req, mask, rate)
	if err != nil {
		return nil, err
	}
	e.emit(newCreatedEvent(pos, req.Amount))
	return pos, nil
}

// CreateBatch opens several positions atomically with respect to
// validation: every request is validated before the first is inserted, so a
// malformed entry rejects the whole batch up front. Custody and store
// failures mid-batch are surfaced to the host, whose transaction boundary
// covers the rollback.
func (e *Engine) CreateBatch(ctx context.Context, caller crypto.Address, reqs []CreateRequest) ([]*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, ErrInvalidAmount
	}
	masks := make([]uint8, len(reqs))
	rates := make([]*big.Int, len(reqs))
	for i, req := range reqs {
		mask, rate, err := e.validateCreate(caller, req)
		if err != nil {
			return nil, err
		}
		masks[i], rates[i] = mask, rate
	}
	out := make([]*Position, 0, len(reqs))
	for i, req := range reqs {
		if err := e.custodian.Pull(ctx, req.From, caller, req.Amount); err != nil {
			return nil, err
		}
		pos, err := e.insertPosition(caller, req, masks[i], rates[i])
		if err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	e.emit(newCreatedBatchEvent(out))
	return out, nil
}

func (e *Engine) validateCreate(caller crypto.Address, req CreateRequest) (uint8, *big.Int, error) {
	if crypto.ZeroAddress(caller) || crypto.ZeroAddress(req.From) || crypto.ZeroAddress(req.To) {
		return 0, nil, ErrZeroAddress
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return 0, nil, ErrInvalidAmount
	}
	if req.NoOfSwaps == 0 || req.NoOfSwaps > e.params.MaxNoOfSwaps() {
		return 0, nil, ErrInvalidNoOfSwaps
	}
	if req.From == req.To {
		return 0, nil, ErrInvalidToken
	}
	if !e.params.TokenAllowed(req.From) || !e.params.TokenAllowed(req.To) {
		return 0, nil, ErrUnauthorizedTokens
	}
	registry := e.params.Registry()
	mask, ok := registry.IntervalToMask(req.Interval)
	if !ok {
		return 0, nil, ErrInvalidInterval
	}
	rate := new(big.Int).Quo(req.Amount, new(big.Int).SetUint64(req.NoOfSwaps))
	if rate.Sign() == 0 {
		return 0, nil, ErrInvalidRate
	}
	return mask, rate, nil
}

func (e *Engine) insertPosition(caller crypto.Address, req CreateRequest, mask uint8, rate *big.Int) (*Position, error) {
	key := TripleKey{From: req.From, To: req.To, Mask: mask}
	state, err := e.state.GetTriple(key)
	if err != nil {
		return nil, err
	}
	activeMask, err := e.state.GetActiveMask(key.Pair())
	if err != nil {
		return nil, err
	}
	start := state.PerformedSwaps
	end := state.PerformedSwaps + req.NoOfSwaps
	start, end, err = e.addToDelta(key, state, activeMask, rate, start, end)
	if err != nil {
		return nil, err
	}
	id, err := e.state.NextPositionID()
	if err != nil {
		return nil, err
	}
	committed := new(big.Int).Mul(rate, new(big.Int).SetUint64(req.NoOfSwaps))
	pos := &Position{
		ID:              id,
		Owner:           caller,
		From:            req.From,
		To:              req.To,
		Mask:            mask,
		Rate:            rate,
		StartingSwap:    start,
		FinalSwap:       end,
		LastUpdatedSwap: state.PerformedSwaps,
		Residual:        new(big.Int).Sub(req.Amount, committed),
	}
	if err := e.state.PutTriple(key, state); err != nil {
		return nil, err
	}
	if err := e.state.PutActiveMask(key.Pair(), activeMask|mask); err != nil {
		return nil, err
	}
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	return pos, nil
}

// Modify reinterprets an existing position as if recreated with its
// residual unswapped balance adjusted by ±amount across noOfSwaps remaining
// installments. Already-earned proceeds are frozen into the carry sidecar
// so later withdrawals still see them.
func (e *Engine) Modify(ctx context.Context, caller crypto.Address, id uint64, amount *big.Int, noOfSwaps uint64, increase bool) (*Position, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	pos, err := e.ownedPosition(caller, id)
	if err != nil {
		return nil, err
	}
	if amount == nil {
		amount = big.NewInt(0)
	}
	if amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	key := pos.Triple()
	state, err := e.state.GetTriple(key)
	if err != nil {
		return nil, err
	}
	remaining := remainingSwaps(pos, state.PerformedSwaps)
	unswappedOld := unswappedBalance(pos, state.PerformedSwaps)
	unswappedNew := new(big.Int).Set(unswappedOld)
	if increase {
		unswappedNew.Add(unswappedNew, amount)
	} else {
		if amount.Cmp(unswappedOld) > 0 {
			return nil, ErrInvalidAmount
		}
		unswappedNew.Sub(unswappedNew, amount)
	}
	if unswappedNew.Cmp(unswappedOld) == 0 && noOfSwaps == remaining {
		return nil, ErrNoChanges
	}
	if unswappedNew.Sign() > 0 {
		if noOfSwaps == 0 || noOfSwaps > e.params.MaxNoOfSwaps() {
			return nil, ErrInvalidNoOfSwaps
		}
	} else if noOfSwaps != 0 {
		return nil, ErrInvalidNoOfSwaps
	}
	newRate := big.NewInt(0)
	if noOfSwaps > 0 {
		newRate.Quo(unswappedNew, new(big.Int).SetUint64(noOfSwaps))
		if newRate.Sign() == 0 {
			return nil, ErrInvalidRate
		}
	}

	oldCarry, err := e.state.GetCarry(id)
	if err != nil {
		return nil, err
	}
	carry := swappedBalance(pos, state, oldCarry, e.params.Magnitude(pos.From))

	if amount.Sign() > 0 {
		if increase {
			if err := e.custodian.Pull(ctx, pos.From, caller, amount); err != nil {
				return nil, err
			}
		} else {
			if err := e.custodian.Pay(ctx, pos.From, caller, amount); err != nil {
				return nil, err
			}
		}
	}

	removeFromDelta(state, pos)
	activeMask, err := e.state.GetActiveMask(key.Pair())
	if err != nil {
		return nil, err
	}
	start := state.PerformedSwaps
	end := state.PerformedSwaps
	if newRate.Sign() > 0 {
		end = state.PerformedSwaps + noOfSwaps
		start, end, err = e.addToDelta(key, state, activeMask, newRate, start, end)
		if err != nil {
			return nil, err
		}
		activeMask |= pos.Mask
	} else if state.NextAmount.Sign() == 0 && state.NextToNextAmount.Sign() == 0 {
		activeMask &^= pos.Mask
	}

	if pos.Residual == nil {
		pos.Residual = big.NewInt(0)
	}
	if noOfSwaps > 0 {
		committed := new(big.Int).Mul(newRate, new(big.Int).SetUint64(noOfSwaps))
		pos.Residual = new(big.Int).Add(pos.Residual, new(big.Int).Sub(unswappedNew, committed))
	}
	pos.Rate = newRate
	pos.StartingSwap = start
	pos.FinalSwap = end
	pos.LastUpdatedSwap = state.PerformedSwaps

	if err := e.state.PutTriple(key, state); err != nil {
		return nil, err
	}
	if err := e.state.PutActiveMask(key.Pair(), activeMask); err != nil {
		return nil, err
	}
	if err := e.state.PutCarry(id, carry); err != nil {
		return nil, err
	}
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	e.emit(newModifiedEvent(pos, amount, increase))
	return pos, nil
}

// Terminate closes a position: both the unswapped principal and the swapped
// proceeds are paid to recipient, and the position and its carry are
// deleted. Available while paused.
func (e *Engine) Terminate(ctx context.Context, caller crypto.Address, id uint64, recipient crypto.Address) (unswapped, swapped *big.Int, err error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	pos, err := e.ownedPosition(caller, id)
	if err != nil {
		return nil, nil, err
	}
	if crypto.ZeroAddress(recipient) {
		return nil, nil, ErrZeroAddress
	}
	key := pos.Triple()
	state, err := e.state.GetTriple(key)
	if err != nil {
		return nil, nil, err
	}
	carry, err := e.state.GetCarry(id)
	if err != nil {
		return nil, nil, err
	}
	unswapped = unswappedBalance(pos, state.PerformedSwaps)
	if pos.Residual != nil {
		unswapped.Add(unswapped, pos.Residual)
	}
	swapped = swappedBalance(pos, state, carry, e.params.Magnitude(pos.From))

	removeFromDelta(state, pos)
	activeMask, err := e.state.GetActiveMask(key.Pair())
	if err != nil {
		return nil, nil, err
	}
	if state.NextAmount.Sign() == 0 && state.NextToNextAmount.Sign() == 0 {
		activeMask &^= pos.Mask
	}
	if err := e.state.PutTriple(key, state); err != nil {
		return nil, nil, err
	}
	if err := e.state.PutActiveMask(key.Pair(), activeMask); err != nil {
		return nil, nil, err
	}
	if err := e.state.DeletePosition(id); err != nil {
		return nil, nil, err
	}
	if err := e.state.DeleteCarry(id); err != nil {
		return nil, nil, err
	}
	if unswapped.Sign() > 0 {
		if err := e.custodian.Pay(ctx, pos.From, recipient, unswapped); err != nil {
			return nil, nil, err
		}
	}
	if swapped.Sign() > 0 {
		if err := e.custodian.Pay(ctx, pos.To, recipient, swapped); err != nil {
			return nil, nil, err
		}
	}
	e.emit(newTerminatedEvent(pos, recipient, unswapped, swapped))
	return unswapped, swapped, nil
}

// Withdraw pays the position's swapped proceeds to recipient and re-anchors
// the position at the current swap number. The position stays active.
// Available while paused.
func (e *Engine) Withdraw(ctx context.Context, caller crypto.Address, id uint64, recipient crypto.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	pos, err := e.ownedPosition(caller, id)
	if err != nil {
		return nil, err
	}
	if crypto.ZeroAddress(recipient) {
		return nil, ErrZeroAddress
	}
	key := pos.Triple()
	state, err := e.state.GetTriple(key)
	if err != nil {
		return nil, err
	}
	carry, err := e.state.GetCarry(id)
	if err != nil {
		return nil, err
	}
	swapped := swappedBalance(pos, state, carry, e.params.Magnitude(pos.From))
	if swapped.Sign() == 0 {
		return nil, ErrZeroSwappedTokens
	}
	pos.LastUpdatedSwap = state.PerformedSwaps
	if err := e.state.PutPosition(pos); err != nil {
		return nil, err
	}
	if err := e.state.DeleteCarry(id); err != nil {
		return nil, err
	}
	if err := e.custodian.Pay(ctx, pos.To, recipient, swapped); err != nil {
		return nil, err
	}
	e.emit(newWithdrawnEvent(pos, recipient, swapped))
	return swapped, nil
}

// TransferOwnership reassigns a position to newOwner. No other state
// changes.
func (e *Engine) TransferOwnership(caller crypto.Address, id uint64, newOwner crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	pos, err := e.ownedPosition(caller, id)
	if err != nil {
		return err
	}
	if crypto.ZeroAddress(newOwner) {
		return ErrZeroAddress
	}
	pos.Owner = newOwner
	if err := e.state.PutPosition(pos); err != nil {
		return err
	}
	e.emit(newOwnerUpdatedEvent(pos, caller))
	return nil
}

func (e *Engine) ownedPosition(caller crypto.Address, id uint64) (*Position, error) {
	pos, ok, err := e.state.GetPosition(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidPosition
	}
	if pos.Owner != caller {
		return nil, ErrUnauthorizedCaller
	}
	return pos, nil
}
