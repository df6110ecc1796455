package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRateLimited        = errors.New("rate limited")
	ErrNoLiquidity        = errors.New("pool has no liquidity")
	ErrProtocolResponse   = errors.New("malformed protocol response")
	ErrSigningFailed      = errors.New("signing failed")
	ErrInvalidTrade       = errors.New("invalid trade parameters")
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrAuthInFlight       = errors.New("authentication already in progress")
	ErrAuthCooldown       = errors.New("authentication attempted too recently")
	ErrContextDone        = errors.New("context cancelled")
)
