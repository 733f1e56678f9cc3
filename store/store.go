// Package store holds the persistent side of a league: an asynchronous key/value store
// holding one ordered set of records per collection. The cache reaches it only at fill and
// flush time.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-json-experiment/json"
)

// Key identifies a record within a collection. Integer keys order numerically and sort
// before string keys, which order lexically.
type Key struct {
	Int int64
	Str string
	// IsStr tells string keys apart from integer keys, StringKey("") included.
	IsStr bool
}

func IntKey(n int64) Key {
	return Key{Int: n}
}

func StringKey(s string) Key {
	return Key{Str: s, IsStr: true}
}

func (k Key) String() string {
	if k.IsStr {
		return k.Str
	}
	return strconv.FormatInt(k.Int, 10)
}

// Compare returns -1, 0 or +1.
func (k Key) Compare(other Key) int {
	if k.IsStr != other.IsStr {
		if k.IsStr {
			return 1
		}
		return -1
	}
	if k.IsStr {
		switch {
		case k.Str < other.Str:
			return -1
		case k.Str > other.Str:
			return 1
		}
		return 0
	}
	switch {
	case k.Int < other.Int:
		return -1
	case k.Int > other.Int:
		return 1
	}
	return 0
}

func (k Key) Less(other Key) bool {
	return k.Compare(other) < 0
}

// MarshalJSON encodes integer keys as JSON numbers and string keys as JSON strings.
func (k Key) MarshalJSON() ([]byte, error) {
	if k.IsStr {
		return json.Marshal(k.Str)
	}
	return strconv.AppendInt(nil, k.Int, 10), nil
}

func (k *Key) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = StringKey(s)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("decode key %s: %w", data, err)
	}
	*k = IntKey(n)
	return nil
}

// Record is one stored row, already encoded.
type Record struct {
	Key     Key
	Payload []byte
}

// Changes is the pending work for one collection.
type Changes struct {
	Puts    []Record
	Deletes []Key
}

func (c *Changes) Empty() bool {
	return c == nil || (len(c.Puts) == 0 && len(c.Deletes) == 0)
}

// Batch groups the changes of several collections into one atomic write.
type Batch map[string]*Changes

func (b Batch) Empty() bool {
	for _, changes := range b {
		if !changes.Empty() {
			return false
		}
	}
	return true
}

// Reader is the read side used while filling the cache.
type Reader interface {
	// Get returns the payload stored under key.
	Get(ctx context.Context, collection string, key Key) ([]byte, bool, error)

	// Scan calls f for every record of collection in ascending key order. Returning an
	// error from f stops the scan and is returned as is.
	Scan(ctx context.Context, collection string, f func(key Key, payload []byte) error) error

	// MaxKey returns the highest integer key currently stored in collection, found by
	// scanning it in reverse key order.
	MaxKey(ctx context.Context, collection string) (int64, bool, error)
}

type Store interface {
	Reader

	// Write applies batch atomically: either every collection's changes are persisted or
	// none. Deletes are applied before puts.
	Write(ctx context.Context, batch Batch) error

	Close() error
}

var ErrClosed = errors.New("store closed")
