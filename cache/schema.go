package cache

import (
	"context"
	"fmt"
	"reflect"
	"strconv"

	"github.com/go-json-experiment/json"

	"github.com/zengm-games/zengm-sub016/index"
	"github.com/zengm-games/zengm-sub016/store"
)

// Key is the type of a primary key.
type Key interface {
	~int64 | ~string
}

// Scope narrows what a fill materializes.
type Scope struct {
	Session string `json:"session"`
	Season  int    `json:"season"`
}

// Source gives a Loader typed access to the stored rows of its collection.
type Source[R any] struct {
	reader     store.Reader
	collection string
}

func NewSource[R any](reader store.Reader, collection string) *Source[R] {
	return &Source[R]{
		reader:     reader,
		collection: collection,
	}
}

// Each decodes every stored row in primary key order.
func (s *Source[R]) Each(ctx context.Context, f func(row R) error) error {
	return s.reader.Scan(ctx, s.collection, func(key store.Key, payload []byte) error {
		row, err := decodeRow[R](payload)
		if err != nil {
			return fmt.Errorf("decode %s/%s: %w", s.collection, key, err)
		}
		return f(row)
	})
}

func (s *Source[R]) Get(ctx context.Context, key store.Key) (R, bool, error) {
	var row R
	payload, found, err := s.reader.Get(ctx, s.collection, key)
	if err != nil || !found {
		return row, found, err
	}
	row, err = decodeRow[R](payload)
	if err != nil {
		return row, false, fmt.Errorf("decode %s/%s: %w", s.collection, key, err)
	}
	return row, true, nil
}

// Loader returns the rows of a collection to keep in memory for scope.
type Loader[R any] func(ctx context.Context, src *Source[R], scope Scope) ([]R, error)

// LoadAll materializes every stored row.
func LoadAll[R any](ctx context.Context, src *Source[R], scope Scope) ([]R, error) {
	rows := []R{}
	err := src.Each(ctx, func(row R) error {
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

// LoadWhere materializes the stored rows accepted by keep.
func LoadWhere[R any](keep func(row R, scope Scope) bool) Loader[R] {
	return func(ctx context.Context, src *Source[R], scope Scope) ([]R, error) {
		rows := []R{}
		err := src.Each(ctx, func(row R) error {
			if keep(row, scope) {
				rows = append(rows, row)
			}
			return nil
		})
		return rows, err
	}
}

type IndexDefinition[R any] struct {
	// Name is unique across the engine.
	Name string

	Key func(row R) index.Key

	// Unique indexes keep only the most recently written row for each key.
	Unique bool

	// Filter, when set, decides which rows take part in the index.
	Filter func(row R) bool
}

// Schema describes a collection. R is normally a pointer to a struct.
type Schema[K Key, R any] struct {
	Name string

	// PrimaryKey reports the key of row and whether it has one.
	PrimaryKey func(row R) (K, bool)

	// SetPrimaryKey stores a generated key into row. Required with AutoIncrement.
	SetPrimaryKey func(row R, key K)

	// AutoIncrement assigns max id + 1 to rows added without a key.
	AutoIncrement bool

	// TrackMaxID keeps the max id counter without generating keys.
	TrackMaxID bool

	// MaxIDPeer names a collection whose max id is reconciled with this one on fill.
	MaxIDPeer string

	// Loader is nil for collections that start every session empty.
	Loader Loader[R]

	Indexes []IndexDefinition[R]

	Deletable bool
	Clearable bool
}

func (s *Schema[K, R]) tracksMaxID() bool {
	return s.AutoIncrement || s.TrackMaxID
}

func (s *Schema[K, R]) validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: collection name is required", ErrInvalidSchema)
	}
	if s.PrimaryKey == nil {
		return fmt.Errorf("%w: %s: primary key is required", ErrInvalidSchema, s.Name)
	}
	if s.tracksMaxID() && !intKind[K]() {
		return fmt.Errorf("%w: %s: max id needs an integer key", ErrInvalidSchema, s.Name)
	}
	if s.AutoIncrement && s.SetPrimaryKey == nil {
		return fmt.Errorf("%w: %s: auto increment needs SetPrimaryKey", ErrInvalidSchema, s.Name)
	}
	if s.MaxIDPeer != "" && !s.tracksMaxID() {
		return fmt.Errorf("%w: %s: max id peer without max id", ErrInvalidSchema, s.Name)
	}
	if s.MaxIDPeer == s.Name && s.Name != "" {
		return fmt.Errorf("%w: %s: collection is its own max id peer", ErrInvalidSchema, s.Name)
	}
	if s.Clearable && !s.Deletable {
		return fmt.Errorf("%w: %s: clearable collections must be deletable", ErrInvalidSchema, s.Name)
	}
	seen := map[string]bool{}
	for _, def := range s.Indexes {
		if def.Name == "" || def.Key == nil {
			return fmt.Errorf("%w: %s: index needs a name and a key", ErrInvalidSchema, s.Name)
		}
		if seen[def.Name] {
			return fmt.Errorf("%w: %s: index %s defined twice", ErrInvalidSchema, s.Name, def.Name)
		}
		seen[def.Name] = true
	}
	return nil
}

func decodeRow[R any](payload []byte) (R, error) {
	var row R
	err := json.Unmarshal(payload, &row)
	return row, err
}

// nilRow reports whether row holds no value, e.g. a nil pointer.
func nilRow[R any](row R) bool {
	v := reflect.ValueOf(any(row))
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func encodeRow[R any](row R) ([]byte, error) {
	return json.Marshal(row, json.Deterministic(true))
}

func intKind[K Key]() bool {
	var k K
	return reflect.ValueOf(k).Kind() != reflect.String
}

func toStoreKey[K Key](k K) store.Key {
	v := reflect.ValueOf(k)
	if v.Kind() == reflect.String {
		return store.StringKey(v.String())
	}
	return store.IntKey(v.Int())
}

func intToKey[K Key](n int64) K {
	var k K
	reflect.ValueOf(&k).Elem().SetInt(n)
	return k
}

func keyToInt[K Key](k K) int64 {
	return reflect.ValueOf(k).Int()
}

func formatKey[K Key](k K) string {
	return toStoreKey(k).String()
}

func parseKey[K Key](s string) (K, error) {
	var k K
	v := reflect.ValueOf(&k).Elem()
	if v.Kind() == reflect.String {
		v.SetString(s)
		return k, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return k, fmt.Errorf("%w: %q is not an integer key", ErrNotFound, s)
	}
	v.SetInt(n)
	return k, nil
}
