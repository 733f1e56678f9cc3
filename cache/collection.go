package cache

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/zengm-games/zengm-sub016/index"
	"github.com/zengm-games/zengm-sub016/store"
)

type record[R any] struct {
	row R
	seq uint64
}

// tableState is everything a fill installs for one collection.
type tableState[K Key, R any] struct {
	records map[K]*record[R]

	// dirty and deleted map a key to the sequence of the write that put it there.
	dirty   map[K]uint64
	deleted map[K]uint64

	maxID       int64
	storedMaxID int64
	stale       bool
	indexes     map[string]*index.Index[R]
}

func newTableState[K Key, R any](defs []IndexDefinition[R]) *tableState[K, R] {
	st := &tableState[K, R]{
		records: map[K]*record[R]{},
		dirty:   map[K]uint64{},
		deleted: map[K]uint64{},
		indexes: map[string]*index.Index[R]{},
	}
	for _, def := range defs {
		st.indexes[def.Name] = index.New[R](def.Name, def.Unique)
	}
	return st
}

// Collection is the accessor of one collection. Rows handed out are live: changing one
// has no effect on the store until it is written back with Put.
type Collection[K Key, R any] struct {
	engine *Engine
	schema Schema[K, R]
	defs   map[string]IndexDefinition[R]

	live   *tableState[K, R]
	staged *tableState[K, R]
}

func newCollection[K Key, R any](e *Engine, schema Schema[K, R]) *Collection[K, R] {
	c := &Collection[K, R]{
		engine: e,
		schema: schema,
		defs:   map[string]IndexDefinition[R]{},
	}
	for _, def := range schema.Indexes {
		c.defs[def.Name] = def
	}
	c.live = newTableState[K, R](schema.Indexes)
	return c
}

func (c *Collection[K, R]) Name() string {
	return c.schema.Name
}

func (c *Collection[K, R]) fail(op string, key string, err error) error {
	return &Error{Op: op, Collection: c.schema.Name, Key: key, Err: err}
}

// Get returns the row stored under key.
func (c *Collection[K, R]) Get(ctx context.Context, key K) (R, bool, error) {
	var zero R

	unlock, err := c.engine.acquire(ctx, false)
	if err != nil {
		return zero, false, c.fail("get", formatKey(key), err)
	}
	defer unlock()

	rec, ok := c.live.records[key]
	if !ok {
		return zero, false, nil
	}
	return rec.row, true, nil
}

// GetAll returns every row ordered by primary key.
func (c *Collection[K, R]) GetAll(ctx context.Context) ([]R, error) {
	unlock, err := c.engine.acquire(ctx, false)
	if err != nil {
		return nil, c.fail("getAll", "", err)
	}
	defer unlock()

	keys := make([]K, 0, len(c.live.records))
	for key := range c.live.records {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	rows := make([]R, len(keys))
	for i, key := range keys {
		rows[i] = c.live.records[key].row
	}
	return rows, nil
}

func (c *Collection[K, R]) Count(ctx context.Context) (int, error) {
	unlock, err := c.engine.acquire(ctx, false)
	if err != nil {
		return 0, c.fail("count", "", err)
	}
	defer unlock()

	return len(c.live.records), nil
}

// Query selects index keys. Build it with Only or Between.
type Query struct {
	Min index.Key
	Max index.Key
}

// Only selects the rows under exactly key.
func Only(key index.Key) Query {
	return Query{Min: key, Max: key}
}

// Between selects the rows whose key lies in the closed interval [min, max].
func Between(min, max index.Key) Query {
	return Query{Min: min, Max: max}
}

// freshIndex returns the named index, rebuilding the collection indexes when stale. The
// engine must be locked for writing.
func (c *Collection[K, R]) freshIndex(name string) (*index.Index[R], error) {
	idx, ok := c.live.indexes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIndex, name)
	}
	if c.live.stale {
		c.rebuild(c.live)
	}
	return idx, nil
}

// rebuild replays rows in write order so unique indexes end up holding the most recently
// written row for each key.
func (c *Collection[K, R]) rebuild(st *tableState[K, R]) {
	records := make([]*record[R], 0, len(st.records))
	for _, rec := range st.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].seq < records[j].seq
	})

	for _, def := range c.schema.Indexes {
		idx := st.indexes[def.Name]
		idx.Reset()
		for _, rec := range records {
			if def.Filter != nil && !def.Filter(rec.row) {
				continue
			}
			idx.Insert(def.Key(rec.row), rec.row)
		}
	}
	st.stale = false
}

// IndexGet returns the first row under key in the named index.
func (c *Collection[K, R]) IndexGet(ctx context.Context, name string, key index.Key) (R, bool, error) {
	var zero R

	if err := index.Validate(key); err != nil {
		return zero, false, c.fail("indexGet", name, err)
	}

	unlock, err := c.engine.acquire(ctx, true)
	if err != nil {
		return zero, false, c.fail("indexGet", name, err)
	}
	defer unlock()

	idx, err := c.freshIndex(name)
	if err != nil {
		return zero, false, c.fail("indexGet", name, err)
	}
	row, found := idx.Get(key)
	return row, found, nil
}

// IndexGetAll returns the rows of the named index selected by q, in key order. It never
// returns nil rows without an error.
func (c *Collection[K, R]) IndexGetAll(ctx context.Context, name string, q Query) ([]R, error) {
	for _, bound := range []index.Key{q.Min, q.Max} {
		if err := index.Validate(bound); err != nil {
			return nil, c.fail("indexGetAll", name, err)
		}
	}

	unlock, err := c.engine.acquire(ctx, true)
	if err != nil {
		return nil, c.fail("indexGetAll", name, err)
	}
	defer unlock()

	idx, err := c.freshIndex(name)
	if err != nil {
		return nil, c.fail("indexGetAll", name, err)
	}
	return idx.Range(q.Min, q.Max), nil
}

// Add inserts row, generating its key on auto increment collections. It fails with
// ErrDuplicateKey when the key is taken.
func (c *Collection[K, R]) Add(ctx context.Context, row R) (K, error) {
	return c.write(ctx, "add", row, false)
}

// Put inserts or replaces row.
func (c *Collection[K, R]) Put(ctx context.Context, row R) (K, error) {
	return c.write(ctx, "put", row, true)
}

func (c *Collection[K, R]) write(ctx context.Context, op string, row R, overwrite bool) (K, error) {
	var zero K

	if nilRow(row) {
		return zero, c.fail(op, "", ErrMissingKey)
	}

	unlock, err := c.engine.acquire(ctx, true)
	if err != nil {
		return zero, c.fail(op, "", err)
	}
	defer unlock()

	st := c.live
	key, ok := c.schema.PrimaryKey(row)
	if ok {
		if _, exists := st.records[key]; exists && !overwrite {
			return zero, c.fail(op, formatKey(key), ErrDuplicateKey)
		}
		if c.schema.tracksMaxID() {
			st.maxID = max(st.maxID, keyToInt(key))
		}
	} else {
		if !c.schema.AutoIncrement {
			return zero, c.fail(op, "", ErrMissingKey)
		}
		st.maxID++
		key = intToKey[K](st.maxID)
		c.schema.SetPrimaryKey(row, key)
	}

	seq := c.engine.nextSeq()
	st.records[key] = &record[R]{row: row, seq: seq}
	st.dirty[key] = seq
	delete(st.deleted, key)
	st.stale = true

	return key, nil
}

// Delete removes the row under key.
func (c *Collection[K, R]) Delete(ctx context.Context, key K) error {
	if !c.schema.Deletable {
		return c.fail("delete", formatKey(key), ErrUnsupported)
	}

	unlock, err := c.engine.acquire(ctx, true)
	if err != nil {
		return c.fail("delete", formatKey(key), err)
	}
	defer unlock()

	st := c.live
	if _, exists := st.records[key]; !exists {
		return c.fail("delete", formatKey(key), ErrNotFound)
	}
	c.remove(st, key)
	return nil
}

// Clear removes every row.
func (c *Collection[K, R]) Clear(ctx context.Context) error {
	if !c.schema.Clearable {
		return c.fail("clear", "", ErrUnsupported)
	}

	unlock, err := c.engine.acquire(ctx, true)
	if err != nil {
		return c.fail("clear", "", err)
	}
	defer unlock()

	st := c.live
	for key := range st.records {
		c.remove(st, key)
	}
	return nil
}

func (c *Collection[K, R]) remove(st *tableState[K, R], key K) {
	delete(st.records, key)
	delete(st.dirty, key)
	st.deleted[key] = c.engine.nextSeq()
	st.stale = true
}

func (c *Collection[K, R]) tableName() string {
	return c.schema.Name
}

func (c *Collection[K, R]) maxIDPeer() string {
	return c.schema.MaxIDPeer
}

func (c *Collection[K, R]) tracksMaxID() bool {
	return c.schema.tracksMaxID()
}

func (c *Collection[K, R]) prepare() {
	c.staged = newTableState[K, R](c.schema.Indexes)
}

func (c *Collection[K, R]) load(ctx context.Context, reader store.Reader, scope Scope) error {
	st := c.staged
	if c.schema.Loader == nil {
		return nil
	}

	rows, err := c.schema.Loader(ctx, NewSource[R](reader, c.schema.Name), scope)
	if err != nil {
		return err
	}
	for _, row := range rows {
		key, ok := c.schema.PrimaryKey(row)
		if !ok {
			return fmt.Errorf("%w: stored row without key", ErrMissingKey)
		}
		if _, exists := st.records[key]; exists {
			return fmt.Errorf("%w: %s loaded twice", ErrDuplicateKey, formatKey(key))
		}
		st.records[key] = &record[R]{row: row, seq: c.engine.nextSeq()}
		if c.schema.tracksMaxID() {
			st.maxID = max(st.maxID, keyToInt(key))
		}
	}

	c.rebuild(st)
	return nil
}

func (c *Collection[K, R]) scanMaxID(ctx context.Context, reader store.Reader) error {
	n, found, err := reader.MaxKey(ctx, c.schema.Name)
	if err != nil {
		return err
	}
	if found {
		c.staged.storedMaxID = n
	}
	return nil
}

func (c *Collection[K, R]) stagedMaxID() int64 {
	return max(c.staged.maxID, c.staged.storedMaxID)
}

func (c *Collection[K, R]) raiseStagedMaxID(n int64) {
	c.staged.maxID = max(c.staged.maxID, n)
}

// commit installs the staged state. The engine must be locked for writing.
func (c *Collection[K, R]) commit() int {
	st := c.staged
	c.staged = nil
	st.maxID = max(st.maxID, st.storedMaxID)
	if len(st.records) == 0 {
		st.stale = false
	}
	c.live = st
	return len(st.records)
}

func (c *Collection[K, R]) wipe() {
	c.staged = nil
	c.live = newTableState[K, R](c.schema.Indexes)
}

func (c *Collection[K, R]) pending() (*store.Changes, flushMark, error) {
	st := c.live
	mark := flushMark{
		dirty:   make(map[any]uint64, len(st.dirty)),
		deleted: make(map[any]uint64, len(st.deleted)),
	}
	changes := &store.Changes{}

	deleted := make([]K, 0, len(st.deleted))
	for key, seq := range st.deleted {
		deleted = append(deleted, key)
		mark.deleted[key] = seq
	}
	slices.Sort(deleted)
	for _, key := range deleted {
		changes.Deletes = append(changes.Deletes, toStoreKey(key))
	}

	dirty := make([]K, 0, len(st.dirty))
	for key, seq := range st.dirty {
		dirty = append(dirty, key)
		mark.dirty[key] = seq
	}
	slices.Sort(dirty)
	for _, key := range dirty {
		rec, ok := st.records[key]
		if !ok {
			continue
		}
		payload, err := encodeRow(rec.row)
		if err != nil {
			return nil, flushMark{}, fmt.Errorf("encode %s: %w", formatKey(key), err)
		}
		changes.Puts = append(changes.Puts, store.Record{Key: toStoreKey(key), Payload: payload})
	}

	return changes, mark, nil
}

// flushed forgets the flushed entries that were not written again meanwhile.
func (c *Collection[K, R]) flushed(mark flushMark) {
	st := c.live
	for key, seq := range mark.dirty {
		k := key.(K)
		if st.dirty[k] == seq {
			delete(st.dirty, k)
		}
	}
	for key, seq := range mark.deleted {
		k := key.(K)
		if st.deleted[k] == seq {
			delete(st.deleted, k)
		}
	}
}

type CollectionInfo struct {
	Name          string   `json:"name"`
	Rows          int      `json:"rows"`
	Dirty         int      `json:"dirty"`
	Deleted       int      `json:"deleted"`
	MaxID         int64    `json:"max_id,omitempty"`
	AutoIncrement bool     `json:"auto_increment"`
	Deletable     bool     `json:"deletable"`
	Clearable     bool     `json:"clearable"`
	Loaded        bool     `json:"loaded"`
	Indexes       []string `json:"indexes"`
}

func (c *Collection[K, R]) info() CollectionInfo {
	indexes := make([]string, 0, len(c.schema.Indexes))
	for _, def := range c.schema.Indexes {
		indexes = append(indexes, def.Name)
	}
	return CollectionInfo{
		Name:          c.schema.Name,
		Rows:          len(c.live.records),
		Dirty:         len(c.live.dirty),
		Deleted:       len(c.live.deleted),
		MaxID:         c.live.maxID,
		AutoIncrement: c.schema.AutoIncrement,
		Deletable:     c.schema.Deletable,
		Clearable:     c.schema.Clearable,
		Loaded:        c.schema.Loader != nil,
		Indexes:       indexes,
	}
}

// Info describes the collection.
func (c *Collection[K, R]) Info(ctx context.Context) (CollectionInfo, error) {
	unlock, err := c.engine.acquire(ctx, false)
	if err != nil {
		return CollectionInfo{}, c.fail("info", "", err)
	}
	defer unlock()
	return c.info(), nil
}
