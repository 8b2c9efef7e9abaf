package dca

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"dcaengine/crypto"
	nativecommon "dcaengine/native/common"
)

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	valid := CreateRequest{
		From: env.tokenA, To: env.tokenB, Interval: daySecs,
		Amount: big.NewInt(1000), NoOfSwaps: 5,
	}

	cases := []struct {
		name    string
		caller  crypto.Address
		mutate  func(*CreateRequest)
		wantErr error
	}{
		{"zero caller", crypto.Address{}, func(r *CreateRequest) {}, ErrZeroAddress},
		{"zero from", env.alice, func(r *CreateRequest) { r.From = crypto.Address{} }, ErrZeroAddress},
		{"zero amount", env.alice, func(r *CreateRequest) { r.Amount = big.NewInt(0) }, ErrInvalidAmount},
		{"nil amount", env.alice, func(r *CreateRequest) { r.Amount = nil }, ErrInvalidAmount},
		{"zero swaps", env.alice, func(r *CreateRequest) { r.NoOfSwaps = 0 }, ErrInvalidNoOfSwaps},
		{"too many swaps", env.alice, func(r *CreateRequest) { r.NoOfSwaps = env.params.MaxNoOfSwaps() + 1 }, ErrInvalidNoOfSwaps},
		{"same token", env.alice, func(r *CreateRequest) { r.To = r.From }, ErrInvalidToken},
		{"token not allowed", env.alice, func(r *CreateRequest) { r.To = testAddr(0x77) }, ErrUnauthorizedTokens},
		{"bad interval", env.alice, func(r *CreateRequest) { r.Interval = 1234 }, ErrInvalidInterval},
		{"rate rounds to zero", env.alice, func(r *CreateRequest) { r.Amount = big.NewInt(4); r.NoOfSwaps = 5 }, ErrInvalidRate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			_, err := env.engine.Create(ctx, tc.caller, req)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestCreateStateEffects(t *testing.T) {
	env := newTestEnv(t)
	mask := env.maskFor(daySecs)

	pos := env.create(env.alice, 1000, 5, daySecs)
	require.Equal(t, uint64(1), pos.ID)
	require.Equal(t, big.NewInt(200), pos.Rate)
	require.Equal(t, uint64(0), pos.StartingSwap)
	require.Equal(t, uint64(5), pos.FinalSwap)
	require.Equal(t, uint64(0), pos.LastUpdatedSwap)
	require.Zero(t, pos.Residual.Sign())

	state := env.triple(mask)
	require.Equal(t, big.NewInt(200), state.NextAmount)
	require.Zero(t, state.NextToNextAmount.Sign())
	require.Equal(t, big.NewInt(200), state.DeltaAt(6))
	require.Equal(t, mask, env.activeMask())

	// Custody pulled the full amount.
	have := env.custody.BalanceOf(env.alice, env.tokenA)
	want := new(big.Int).Sub(new(big.Int).Mul(big.NewInt(1_000_000), oneE18), big.NewInt(1000))
	require.Equal(t, want, have)
}

func TestCreateTruncationResidual(t *testing.T) {
	env := newTestEnv(t)

	// 1000 across 3 swaps floors to rate 333, leaving 1 uncommitted.
	pos := env.create(env.alice, 1000, 3, daySecs)
	require.Equal(t, big.NewInt(333), pos.Rate)
	require.Equal(t, big.NewInt(1), pos.Residual)

	for i := 0; i < 3; i++ {
		env.swapPair()
		env.advance(daySecs)
	}

	ctx := context.Background()
	unswapped, swapped, err := env.engine.Terminate(ctx, env.alice, pos.ID, env.alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1), unswapped)
	// Three swaps at 2 B per A on rate 333.
	require.Equal(t, big.NewInt(1998), swapped)
}

func TestWithdrawIdempotent(t *testing.T) {
	env := newTestEnv(t)
	pos := env.create(env.alice, 1000, 5, daySecs)

	env.swapPair()
	ctx := context.Background()

	got, err := env.engine.Withdraw(ctx, env.alice, pos.ID, env.alice)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(400), got)
	require.Equal(t, big.NewInt(400), env.custody.BalanceOf(env.alice, env.tokenB))

	_, err = env.engine.Withdraw(ctx, env.alice, pos.ID, env.alice)
	require.ErrorIs(t, err, ErrZeroSwappedTokens)
}

func TestTerminateUnknownPosition(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.engine.Terminate(context.Background(), env.alice, 42, env.alice)
	require.ErrorIs(t, err, ErrInvalidPosition)
}

func TestTerminateClearsTriple(t *testing.T) {
	env := newTestEnv(t)
	mask := env.maskFor(daySecs)
	pos := env.create(env.alice, 1000, 5, daySecs)

	ctx := context.Background()
	unswapped, swapped, err := env.engine.Terminate(ctx, env.alice, pos.ID, env.bob)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1000), unswapped)
	require.Zero(t, swapped.Sign())
	bobStart := new(big.Int).Mul(big.NewInt(1_000_000), oneE18)
	gained := new(big.Int).Sub(env.custody.BalanceOf(env.bob, env.tokenA), bobStart)
	require.Equal(t, big.NewInt(1000), gained)

	state := env.triple(mask)
	require.Zero(t, state.NextAmount.Sign())
	require.Empty(t, state.Delta)
	require.Equal(t, uint8(0), env.activeMask())

	_, ok, err := env.store.GetPosition(pos.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOwnerOnlyMutations(t *testing.T) {
	env := newTestEnv(t)
	pos := env.create(env.alice, 1000, 5, daySecs)
	ctx := context.Background()

	_, err := env.engine.Modify(ctx, env.bob, pos.ID, big.NewInt(100), 5, true)
	require.ErrorIs(t, err, ErrUnauthorizedCaller)
	_, _, err = env.engine.Terminate(ctx, env.bob, pos.ID, env.bob)
	require.ErrorIs(t, err, ErrUnauthorizedCaller)
	_, err = env.engine.Withdraw(ctx, env.bob, pos.ID, env.bob)
	require.ErrorIs(t, err, ErrUnauthorizedCaller)
	err = env.engine.TransferOwnership(env.bob, pos.ID, env.bob)
	require.ErrorIs(t, err, ErrUnauthorizedCaller)

	// State is untouched: the rightful owner still controls the position.
	details, err := env.engine.GetPositionDetails(pos.ID)
	require.NoError(t, err)
	require.Equal(t, env.alice.String(), details.Owner)
}

func TestTransferOwnership(t *testing.T) {
	env := newTestEnv(t)
	pos := env.create(env.alice, 1000, 5, daySecs)

	require.ErrorIs(t, env.engine.TransferOwnership(env.alice, pos.ID, crypto.Address{}), ErrZeroAddress)
	require.NoError(t, env.engine.TransferOwnership(env.alice, pos.ID, env.bob))

	ctx := context.Background()
	_, _, err := env.engine.Terminate(ctx, env.alice, pos.ID, env.alice)
	require.ErrorIs(t, err, ErrUnauthorizedCaller)
	_, _, err = env.engine.Terminate(ctx, env.bob, pos.ID, env.bob)
	require.NoError(t, err)
}

func TestPauseBehavior(t *testing.T) {
	env := newTestEnv(t)
	pos := env.create(env.alice, 1000, 5, daySecs)
	env.swapPair()

	env.pauses.paused = true
	ctx := context.Background()

	_, err := env.engine.Create(ctx, env.alice, CreateRequest{
		From: env.tokenA, To: env.tokenB, Interval: daySecs,
		Amount: big.NewInt(1000), NoOfSwaps: 5,
	})
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)

	_, err = env.engine.Modify(ctx, env.alice, pos.ID, big.NewInt(100), 4, true)
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)

	require.ErrorIs(t, env.engine.TransferOwnership(env.alice, pos.ID, env.bob), nativecommon.ErrModulePaused)

	err = env.engine.Swap(ctx, env.operator, []SwapRequest{{From: env.tokenA, To: env.tokenB}}, env.operator)
	require.ErrorIs(t, err, nativecommon.ErrModulePaused)

	require.ErrorIs(t, env.engine.BlankSwap(env.operator, env.tokenA, env.tokenB, env.maskFor(daySecs)), nativecommon.ErrModulePaused)

	// Withdrawal and termination stay open while paused.
	_, err = env.engine.Withdraw(ctx, env.alice, pos.ID, env.alice)
	require.NoError(t, err)
	_, _, err = env.engine.Terminate(ctx, env.alice, pos.ID, env.alice)
	require.NoError(t, err)
}

func TestCreateBatchValidatesUpFront(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.CreateBatch(ctx, env.alice, []CreateRequest{
		{From: env.tokenA, To: env.tokenB, Interval: daySecs, Amount: big.NewInt(1000), NoOfSwaps: 5},
		{From: env.tokenA, To: env.tokenB, Interval: 1234, Amount: big.NewInt(1000), NoOfSwaps: 5},
	})
	require.ErrorIs(t, err, ErrInvalidInterval)

	// Nothing was inserted for the valid first entry.
	_, ok, err := env.store.GetPosition(1)
	require.NoError(t, err)
	require.False(t, ok)

	positions, err := env.engine.CreateBatch(ctx, env.alice, []CreateRequest{
		{From: env.tokenA, To: env.tokenB, Interval: daySecs, Amount: big.NewInt(1000), NoOfSwaps: 5},
		{From: env.tokenA, To: env.tokenB, Interval: hourSecs, Amount: big.NewInt(600), NoOfSwaps: 3},
	})
	require.NoError(t, err)
	require.Len(t, positions, 2)
	require.Equal(t, env.maskFor(daySecs)|env.maskFor(hourSecs), env.activeMask())
}
