package dca

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"golang.org/x/time/rate"

	"github.com/holiman/uint256"

	"dcaengine/crypto"
)

// Custodian is the external collaborator that owns token custody: pulling
// user funds into the engine's control and paying balances back out. The
// core never moves tokens itself. It calls Pull/Pay and trusts the host for
// correctness, including native-asset wrap/unwrap and signed-approval
// flows.
type Custodian interface {
	Pull(ctx context.Context, token, from crypto.Address, amount *big.Int) error
	Pay(ctx context.Context, token, to crypto.Address, amount *big.Int) error
}

// TradeRoute is the operator-supplied (executor, proxy, call data) tuple
// for one batched trade, plus the caller's declared total input and minimum
// acceptable output.
type TradeRoute struct {
	Executor       crypto.Address
	Proxy          crypto.Address
	CallData       []byte
	DeclaredAmount *big.Int
	MinOut         *big.Int
}

// TradeExecutor is the external collaborator that performs the actual trade
// against a market. The core grants a one-shot approval to Proxy for the
// aggregate input, invokes Executor with CallData, and measures the
// delivered balance with BalanceOf before/after. The approval to Proxy is
// never explicitly revoked after Execute returns; callers must not assume a
// stale allowance is safe to reuse.
type TradeExecutor interface {
	Approve(ctx context.Context, token, spender crypto.Address, amount *big.Int) error
	Execute(ctx context.Context, route TradeRoute) error
	BalanceOf(ctx context.Context, token, owner crypto.Address) (*uint256.Int, error)
}

var errInsufficientCustody = errors.New("dca: custodian balance insufficient")

// InMemoryCustodian is a reference Custodian backed by a plain balance
// table, used by the CLI driver and by tests. A production deployment would
// replace it with real on-chain custody; the interface above is the whole
// contract the engine depends on.
type InMemoryCustodian struct {
	mu       sync.Mutex
	balances map[crypto.Address]map[crypto.Address]*big.Int // owner -> token -> amount
}

func NewInMemoryCustodian() *InMemoryCustodian {
	return &InMemoryCustodian{balances: make(map[crypto.Address]map[crypto.Address]*big.Int)}
}

// Credit seeds an owner's balance of token, used by tests and the CLI driver
// to fund users.
func (c *InMemoryCustodian) Credit(owner, token crypto.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensure(owner)
	c.balances[owner][token] = new(big.Int).Add(c.balanceLocked(owner, token), amount)
}

func (c *InMemoryCustodian) BalanceOf(owner, token crypto.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balanceLocked(owner, token))
}

func (c *InMemoryCustodian) ensure(owner crypto.Address) {
	if _, ok := c.balances[owner]; !ok {
		c.balances[owner] = make(map[crypto.Address]*big.Int)
	}
}

func (c *InMemoryCustodian) balanceLocked(owner, token crypto.Address) *big.Int {
	if byToken, ok := c.balances[owner]; ok {
		if v, ok := byToken[token]; ok {
			return v
		}
	}
	return big.NewInt(0)
}

func (c *InMemoryCustodian) Pull(_ context.Context, token, from crypto.Address, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensure(from)
	have := c.balanceLocked(from, token)
	if have.Cmp(amount) < 0 {
		return errInsufficientCustody
	}
	c.balances[from][token] = new(big.Int).Sub(have, amount)
	return nil
}

func (c *InMemoryCustodian) Pay(_ context.Context, token, to crypto.Address, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensure(to)
	c.balances[to][token] = new(big.Int).Add(c.balanceLocked(to, token), amount)
	return nil
}

// MockTradeExecutor simulates an external market at a fixed rate per token
// pair, expressed as out-per-in scaled by 1e18. It is rate limited the way
// a real router RPC client would be.
type MockTradeExecutor struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	self     crypto.Address
	rates    map[PairKey]*big.Int // scaled 1e18
	holdings map[crypto.Address]map[crypto.Address]*big.Int
	approved map[crypto.Address]map[crypto.Address]*big.Int // token -> spender -> amount
}

// NewMockTradeExecutor constructs a simulated market. self is the engine's
// own holding address, credited with swap proceeds and debited for swap
// inputs when Execute runs.
func NewMockTradeExecutor(self crypto.Address) *MockTradeExecutor {
	return &MockTradeExecutor{
		limiter:  rate.NewLimiter(rate.Limit(50), 50),
		self:     self,
		rates:    make(map[PairKey]*big.Int),
		holdings: make(map[crypto.Address]map[crypto.Address]*big.Int),
		approved: make(map[crypto.Address]map[crypto.Address]*big.Int),
	}
}

// Self returns the holding address credited with swap proceeds.
func (m *MockTradeExecutor) Self() crypto.Address { return m.self }

// SetRate fixes the simulated out-per-in exchange rate for a pair, scaled
// by 1e18 (e.g. 2e18 means 2 `to` tokens per `from` token).
func (m *MockTradeExecutor) SetRate(pair PairKey, scaledRate *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates[pair] = new(big.Int).Set(scaledRate)
}

// Fund seeds the simulated market with inventory of a destination token so
// Execute has something to deliver.
func (m *MockTradeExecutor) Fund(token crypto.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credit(m.marketAddress(), token, amount)
}

func (m *MockTradeExecutor) marketAddress() crypto.Address {
	return crypto.NewAddress(crypto.DCAPrefix, append([]byte{0xff}, make([]byte, 19)...))
}

func (m *MockTradeExecutor) credit(owner, token crypto.Address, amount *big.Int) {
	if _, ok := m.holdings[owner]; !ok {
		m.holdings[owner] = make(map[crypto.Address]*big.Int)
	}
	m.holdings[owner][token] = new(big.Int).Add(m.balance(owner, token), amount)
}

func (m *MockTradeExecutor) balance(owner, token crypto.Address) *big.Int {
	if byToken, ok := m.holdings[owner]; ok {
		if v, ok := byToken[token]; ok {
			return v
		}
	}
	return big.NewInt(0)
}

func (m *MockTradeExecutor) Approve(ctx context.Context, token, spender crypto.Address, amount *big.Int) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.approved[token]; !ok {
		m.approved[token] = make(map[crypto.Address]*big.Int)
	}
	m.approved[token][spender] = new(big.Int).Set(amount)
	return nil
}

// tradeRequest encodes a simulated swap's (from, to, amountIn) inside
// CallData; a real deployment's CallData is opaque to the core and
// interpreted only by the external executor.
type tradeRequest struct {
	From     crypto.Address
	To       crypto.Address
	AmountIn *big.Int
}

// EncodeTradeCallData packs a trade request into the opaque CallData blob
// the mock executor understands: two raw 20-byte addresses followed by the
// big-endian input amount.
func EncodeTradeCallData(from, to crypto.Address, amountIn *big.Int) []byte {
	out := make([]byte, 0, 2*crypto.AddressLength+32)
	out = append(out, from.Bytes()...)
	out = append(out, to.Bytes()...)
	if amountIn != nil {
		out = append(out, amountIn.Bytes()...)
	}
	return out
}

func decodeTradeCallData(b []byte) (tradeRequest, bool) {
	if len(b) < 2*crypto.AddressLength {
		return tradeRequest{}, false
	}
	req := tradeRequest{
		From:     crypto.NewAddress(crypto.DCAPrefix, b[:crypto.AddressLength]),
		To:       crypto.NewAddress(crypto.DCAPrefix, b[crypto.AddressLength:2*crypto.AddressLength]),
		AmountIn: new(big.Int).SetBytes(b[2*crypto.AddressLength:]),
	}
	return req, true
}

func (m *MockTradeExecutor) Execute(ctx context.Context, route TradeRoute) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return err
	}
	req, ok := decodeTradeCallData(route.CallData)
	if !ok {
		return ErrSwapCallFailed
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	allowance := m.approved[req.From][route.Proxy]
	if allowance == nil || allowance.Cmp(req.AmountIn) < 0 {
		return ErrSwapCallFailed
	}
	r, ok := m.rates[PairKey{From: req.From, To: req.To}]
	if !ok {
		return ErrSwapCallFailed
	}
	out := new(big.Int).Mul(req.AmountIn, r)
	out.Quo(out, big.NewInt(1_000_000_000_000_000_000))

	market := m.marketAddress()
	if m.balance(market, req.To).Cmp(out) < 0 {
		return ErrSwapCallFailed
	}
	m.credit(market, req.To, new(big.Int).Neg(out))
	m.credit(m.self, req.To, out)
	m.credit(m.self, req.From, new(big.Int).Neg(req.AmountIn))
	return nil
}

func (m *MockTradeExecutor) BalanceOf(_ context.Context, token, owner crypto.Address) (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return bigToBalance(m.balance(owner, token)), nil
}
