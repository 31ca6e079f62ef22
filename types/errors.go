package types

import "errors"

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrCooldownNotElapsed  = errors.New("cooldown not elapsed")
	ErrTimeoutNotElapsed   = errors.New("timeout not elapsed")
	ErrTallyNotOpen        = errors.New("tally not open")
	ErrAlreadyFinalized    = errors.New("already finalized")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrStakeLimitExceeded  = errors.New("stake limit exceeded")
	ErrNotConfigured       = errors.New("not configured")
	ErrInvalidState        = errors.New("invalid state")
	ErrAlreadyConfigured   = errors.New("already configured")
)

const (
	CodeOK uint32 = iota
	CodeUnknown
	CodeUnauthorized
	CodeNotFound
	CodeInvalidArgument
	CodeCooldownNotElapsed
	CodeTimeoutNotElapsed
	CodeTallyNotOpen
	CodeAlreadyFinalized
	CodeInsufficientBalance
	CodeStakeLimitExceeded
	CodeNotConfigured
	CodeInvalidState
	CodeAlreadyConfigured
)

var errCodes = []struct {
	err  error
	code uint32
}{
	{ErrUnauthorized, CodeUnauthorized},
	{ErrNotFound, CodeNotFound},
	{ErrInvalidArgument, CodeInvalidArgument},
	{ErrCooldownNotElapsed, CodeCooldownNotElapsed},
	{ErrTimeoutNotElapsed, CodeTimeoutNotElapsed},
	{ErrTallyNotOpen, CodeTallyNotOpen},
	{ErrAlreadyFinalized, CodeAlreadyFinalized},
	{ErrInsufficientBalance, CodeInsufficientBalance},
	{ErrStakeLimitExceeded, CodeStakeLimitExceeded},
	{ErrNotConfigured, CodeNotConfigured},
	{ErrInvalidState, CodeInvalidState},
	{ErrAlreadyConfigured, CodeAlreadyConfigured},
}

// Code maps an error to the ABCI result code clients see for it.
func Code(err error) uint32 {
	if err == nil {
		return CodeOK
	}
	for _, c := range errCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeUnknown
}
