package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidInput      = errors.New("invalid input")
	ErrMarketClosed      = errors.New("market is not open for betting")
	ErrMarketExpired     = errors.New("market resolution date has passed")
	ErrInvalidOption     = errors.New("option does not belong to market")
	ErrInsufficientFunds = errors.New("insufficient points")
	ErrBetLimit          = errors.New("bet amount outside market limits")
	ErrAlreadyResolved   = errors.New("market already resolved")
	ErrInvalidResolution = errors.New("resolution data does not match market type")
	ErrTransfersDisabled = errors.New("transfers disabled for arena")
	ErrTransferLimit     = errors.New("transfer amount exceeds arena limit")
	ErrSelfTransfer      = errors.New("cannot transfer points to yourself")
	ErrReceiverNotFound  = errors.New("receiver not found")
	ErrReceiverNotMember = errors.New("receiver is not a member of arena")
	ErrRateLimited       = errors.New("rate limited")
	ErrLockHeld          = errors.New("lock already held")
)
