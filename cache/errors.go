package cache

import (
	"errors"
)

var (
	// ErrNotReady is returned by accessors while the cache is empty or after a failed fill.
	ErrNotReady = errors.New("cache not ready")

	ErrDuplicateKey      = errors.New("duplicate key")
	ErrMissingKey        = errors.New("missing primary key")
	ErrUnsupported       = errors.New("operation not supported")
	ErrNotFound          = errors.New("not found")
	ErrUnknownIndex      = errors.New("unknown index")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrScopeUnresolved   = errors.New("scope could not be resolved")
	ErrInvalidSchema     = errors.New("invalid schema")

	// ErrStore wraps every failure coming from the persistent store.
	ErrStore = errors.New("store failure")
)

// Error carries the operation, collection and key involved in a failure. Match the
// cause with errors.Is against the sentinels above.
type Error struct {
	Op         string
	Collection string
	Key        string
	Err        error
}

func (e *Error) Error() string {
	msg := "cache: " + e.Op
	if e.Collection != "" {
		msg += " " + e.Collection
		if e.Key != "" {
			msg += "/" + e.Key
		}
	}
	return msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}
