package dca

import "errors"

// Errors returned by position-manager and swap entry points.
var (
	ErrZeroAddress         = errors.New("dca: zero address")
	ErrInvalidAmount       = errors.New("dca: invalid amount")
	ErrInvalidNoOfSwaps    = errors.New("dca: invalid number of swaps")
	ErrInvalidToken        = errors.New("dca: from and to token must differ")
	ErrUnauthorizedTokens  = errors.New("dca: token not allowed")
	ErrInvalidInterval     = errors.New("dca: interval not allowed")
	ErrInvalidRate         = errors.New("dca: rate rounds to zero")
	ErrNoChanges           = errors.New("dca: modification has no effect")
	ErrInvalidPosition     = errors.New("dca: unknown position")
	ErrUnauthorizedCaller  = errors.New("dca: caller not authorized")
	ErrNoAvailableSwap     = errors.New("dca: no swap available for this pair")
	ErrInvalidSwapAmount   = errors.New("dca: declared amount does not match aggregate input")
	ErrInvalidReturnAmount = errors.New("dca: delivered output below minimum")
	ErrSwapCallFailed      = errors.New("dca: trade executor call failed")
	ErrInvalidBlankSwap    = errors.New("dca: blank swap preconditions not met")
	ErrZeroSwappedTokens   = errors.New("dca: nothing to withdraw")
)

// Wiring errors guarding against a partially assembled engine.
var (
	errNilState    = errors.New("dca: engine state not configured")
	errNilConfig   = errors.New("dca: engine config reader not configured")
	errNilCustody  = errors.New("dca: engine custodian not configured")
	errNilExecutor = errors.New("dca: trade executor not configured")
)
