package dca

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"dcaengine/crypto"
)

const (
	hourSecs = uint64(3600)
	daySecs  = uint64(86400)
)

var oneE18 = big.NewInt(1_000_000_000_000_000_000)

func testAddr(tag byte) crypto.Address {
	b := make([]byte, crypto.AddressLength)
	b[0] = tag
	b[crypto.AddressLength-1] = tag
	return crypto.NewAddress(crypto.DCAPrefix, b)
}

// pauseStub satisfies native/common.PauseView for pause-behavior tests.
type pauseStub struct {
	paused bool
}

func (p *pauseStub) IsPaused(module string) bool { return p.paused && module == "dca" }

type testEnv struct {
	t       *testing.T
	engine  *Engine
	store   *MemoryStore
	custody *InMemoryCustodian
	market  *MockTradeExecutor
	params  *Params
	pauses  *pauseStub
	now     uint64

	self     crypto.Address
	operator crypto.Address
	vault    crypto.Address
	tokenA   crypto.Address
	tokenB   crypto.Address
	alice    crypto.Address
	bob      crypto.Address
}

// newTestEnv wires a complete engine against the in-memory reference
// collaborators: tokens A and B, 1h and 1d intervals, zero fees, and a
// market that pays 2 B per A. The clock starts at day ten, aligned to both
// intervals.
func newTestEnv(t *testing.T) *testEnv {
	registry, err := NewIntervalRegistry([]uint64{hourSecs, daySecs})
	require.NoError(t, err)

	env := &testEnv{
		t:        t,
		self:     testAddr(0x01),
		operator: testAddr(0x02),
		vault:    testAddr(0x03),
		tokenA:   testAddr(0x0a),
		tokenB:   testAddr(0x0b),
		alice:    testAddr(0x11),
		bob:      testAddr(0x12),
		now:      10 * daySecs,
		pauses:   &pauseStub{},
	}

	env.params = NewParams(registry)
	env.params.Tokens[env.tokenA] = true
	env.params.Tokens[env.tokenB] = true
	env.params.SwapExecutors[env.operator] = true
	env.params.Vault = env.vault

	env.store = NewMemoryStore()
	env.custody = NewInMemoryCustodian()
	env.market = NewMockTradeExecutor(env.self)

	funds := new(big.Int).Mul(big.NewInt(1_000_000), oneE18)
	env.custody.Credit(env.alice, env.tokenA, funds)
	env.custody.Credit(env.bob, env.tokenA, funds)
	env.market.SetRate(PairKey{From: env.tokenA, To: env.tokenB}, new(big.Int).Mul(big.NewInt(2), oneE18))
	env.market.Fund(env.tokenB, new(big.Int).Mul(funds, big.NewInt(10)))

	env.engine = NewEngine(env.self)
	env.engine.SetState(env.store)
	env.engine.SetParams(env.params)
	env.engine.SetCustodian(env.custody)
	env.engine.SetTradeExecutor(env.market)
	env.engine.SetPauses(env.pauses)
	env.engine.SetClock(func() uint64 { return env.now })
	return env
}

func (env *testEnv) advance(secs uint64) { env.now += secs }

func (env *testEnv) pair() PairKey { return PairKey{From: env.tokenA, To: env.tokenB} }

func (env *testEnv) create(owner crypto.Address, amount int64, swaps, interval uint64) *Position {
	env.t.Helper()
	pos, err := env.engine.Create(context.Background(), owner, CreateRequest{
		From:      env.tokenA,
		To:        env.tokenB,
		Interval:  interval,
		Amount:    big.NewInt(amount),
		NoOfSwaps: swaps,
	})
	require.NoError(env.t, err)
	return pos
}

// swapPair previews the pair's aggregate and executes one batched swap
// through the mock market at its configured rate.
func (env *testEnv) swapPair() {
	env.t.Helper()
	preview, err := env.engine.NextSwapInfo(env.pair())
	require.NoError(env.t, err)
	require.Positive(env.t, preview.TotalInput.Sign())

	route := TradeRoute{
		Proxy:          env.self,
		CallData:       EncodeTradeCallData(env.tokenA, env.tokenB, preview.TotalInput),
		DeclaredAmount: preview.TotalInput,
		MinOut:         big.NewInt(0),
	}
	err = env.engine.Swap(context.Background(), env.operator, []SwapRequest{{
		From: env.tokenA, To: env.tokenB, Route: route,
	}}, env.operator)
	require.NoError(env.t, err)
}

func (env *testEnv) triple(mask uint8) *TripleState {
	env.t.Helper()
	state, err := env.store.GetTriple(TripleKey{From: env.tokenA, To: env.tokenB, Mask: mask})
	require.NoError(env.t, err)
	return state
}

func (env *testEnv) activeMask() uint8 {
	env.t.Helper()
	mask, err := env.store.GetActiveMask(env.pair())
	require.NoError(env.t, err)
	return mask
}

func (env *testEnv) maskFor(interval uint64) uint8 {
	env.t.Helper()
	mask, ok := env.params.Registry().IntervalToMask(interval)
	require.True(env.t, ok)
	return mask
}
