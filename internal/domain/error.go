package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// Broadcast engine
	ErrNoRecipients        = errors.New("no recipients to broadcast to")
	ErrNothingToRecall     = errors.New("nothing to recall")
	ErrBroadcastInProgress = errors.New("a broadcast or recall is already running")

	// Import / export
	ErrUnsupportedFormat = errors.New("unsupported import format")
	ErrSnapshotDisabled  = errors.New("database snapshot not supported by this store")
)
