package registry

import (
	errorsmod "cosmossdk.io/errors"
)

// Codespace groups registry error codes
const Codespace = "claimvault"

// Error codes for the claim registry
const (
	BaseErrorCode uint32 = 1
)

var (
	// ErrUnauthorized: the caller did not prove authority for the originator
	ErrUnauthorized = errorsmod.Register(Codespace, BaseErrorCode+1, "unauthorized")
	// ErrEnvironment: the store or host refused a read or write
	ErrEnvironment = errorsmod.Register(Codespace, BaseErrorCode+2, "environment failure")
	// ErrInvalidAmount: an amount does not fit a signed 128-bit integer
	ErrInvalidAmount = errorsmod.Register(Codespace, BaseErrorCode+3, "invalid amount")
	// ErrExpiryOverflow: sequence plus claim period exceeds 32 bits
	ErrExpiryOverflow = errorsmod.Register(Codespace, BaseErrorCode+4, "expiry sequence overflow")
	// ErrInvalidPage: a negative page offset or limit
	ErrInvalidPage = errorsmod.Register(Codespace, BaseErrorCode+5, "invalid page")
)
