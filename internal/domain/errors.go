package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrTradingPaused      = errors.New("trading paused")
	ErrStoreUnavailable   = errors.New("position store unavailable")
	ErrLockHeld           = errors.New("lock already held")
	ErrWSDisconnect       = errors.New("websocket disconnected")
	ErrNoHealthyProvider  = errors.New("no healthy rpc provider")
	ErrSubmissionTimeout  = errors.New("bundle submission timed out")
	ErrSubmissionRejected = errors.New("bundle rejected by block engine")
	ErrBundleExpired      = errors.New("bundle validity window elapsed")
)
