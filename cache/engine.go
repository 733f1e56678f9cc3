// Package cache is the in-memory write-back cache of a league. Every read and write of a
// session is served from memory; the persistent store is only touched by Fill and Flush.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zengm-games/zengm-sub016/store"
)

type Status string

const (
	StatusEmpty   Status = "empty"
	StatusFilling Status = "filling"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

type Options struct {
	Logger *log.Logger

	// ResolveScope reads the active season from the store when a fill does not name one.
	ResolveScope func(ctx context.Context, reader store.Reader) (int, error)
}

type FillOptions struct {
	// Store replaces the engine store once pending changes are flushed to the old one. The
	// replacement holds even when the load that follows fails.
	Store store.Store

	// Session is the session key, usually the league name.
	Session string

	// Season skips scope resolution when not zero.
	Season int

	// DiscardPending drops unflushed changes instead of writing them before the wipe.
	DiscardPending bool
}

// table is the untyped face of a Collection used by fill and flush.
type table interface {
	tableName() string
	maxIDPeer() string
	tracksMaxID() bool

	prepare()
	load(ctx context.Context, reader store.Reader, scope Scope) error
	scanMaxID(ctx context.Context, reader store.Reader) error
	stagedMaxID() int64
	raiseStagedMaxID(n int64)
	commit() int
	wipe()

	pending() (*store.Changes, flushMark, error)
	flushed(mark flushMark)

	info() CollectionInfo
	dynamic() Dynamic
}

// flushMark remembers the write sequence of every key included in a flush.
type flushMark struct {
	dirty   map[any]uint64
	deleted map[any]uint64
}

type Engine struct {
	logger       *log.Logger
	resolveScope func(ctx context.Context, reader store.Reader) (int, error)

	// ops serializes fill, flush and close.
	ops *sync.Mutex

	// mutex guards everything below plus the live state of every collection.
	mutex   *sync.RWMutex
	store   store.Store
	status  Status
	scope   Scope
	lastErr error
	filled  chan struct{}
	tables  []table
	byName  map[string]table
	indexes map[string]string

	seq atomic.Uint64
}

func New(st store.Store, options *Options) *Engine {
	if options == nil {
		options = &Options{}
	}
	logger := options.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		logger:       logger,
		resolveScope: options.ResolveScope,
		ops:          &sync.Mutex{},
		mutex:        &sync.RWMutex{},
		store:        st,
		status:       StatusEmpty,
		byName:       map[string]table{},
		indexes:      map[string]string{},
	}
}

// Register adds a collection. It is only allowed while the engine is empty.
func Register[K Key, R any](e *Engine, schema Schema[K, R]) (*Collection[K, R], error) {
	if err := schema.validate(); err != nil {
		return nil, err
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.status != StatusEmpty {
		return nil, &Error{Op: "register", Collection: schema.Name, Err: fmt.Errorf("%w: engine is %s", ErrInvalidSchema, e.status)}
	}
	if _, exists := e.byName[schema.Name]; exists {
		return nil, &Error{Op: "register", Collection: schema.Name, Err: fmt.Errorf("%w: collection already registered", ErrInvalidSchema)}
	}
	for _, def := range schema.Indexes {
		if owner, exists := e.indexes[def.Name]; exists {
			return nil, &Error{Op: "register", Collection: schema.Name, Err: fmt.Errorf("%w: index %s already defined by %s", ErrInvalidSchema, def.Name, owner)}
		}
	}

	c := newCollection(e, schema)
	e.tables = append(e.tables, c)
	e.byName[schema.Name] = c
	for _, def := range schema.Indexes {
		e.indexes[def.Name] = schema.Name
	}
	return c, nil
}

func (e *Engine) Status() Status {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.status
}

func (e *Engine) Scope() Scope {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.scope
}

// LastError is the cause of the last failed fill.
func (e *Engine) LastError() error {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.lastErr
}

func (e *Engine) Store() store.Store {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.store
}

// Collections lists collection names in registration order.
func (e *Engine) Collections() []string {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	names := make([]string, len(e.tables))
	for i, t := range e.tables {
		names[i] = t.tableName()
	}
	return names
}

// Dynamic returns the untyped accessor of a collection.
func (e *Engine) Dynamic(name string) (Dynamic, error) {
	e.mutex.RLock()
	t, ok := e.byName[name]
	e.mutex.RUnlock()
	if !ok {
		return nil, &Error{Op: "collection", Collection: name, Err: ErrUnknownCollection}
	}
	return t.dynamic(), nil
}

// acquire waits for an active fill and returns with the engine locked and ready.
func (e *Engine) acquire(ctx context.Context, exclusive bool) (func(), error) {
	for {
		var unlock func()
		if exclusive {
			e.mutex.Lock()
			unlock = e.mutex.Unlock
		} else {
			e.mutex.RLock()
			unlock = e.mutex.RUnlock
		}

		switch e.status {
		case StatusReady:
			return unlock, nil
		case StatusFilling:
			wait := e.filled
			unlock()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-wait:
			}
		default:
			unlock()
			return nil, ErrNotReady
		}
	}
}

func (e *Engine) nextSeq() uint64 {
	return e.seq.Add(1)
}

// Fill wipes the cache and loads the working set of every collection. Accessors called
// meanwhile wait for it. On failure nothing is installed and the engine is left in
// StatusError.
func (e *Engine) Fill(ctx context.Context, options FillOptions) error {
	e.ops.Lock()
	defer e.ops.Unlock()

	e.mutex.Lock()
	for _, t := range e.tables {
		if peer := t.maxIDPeer(); peer != "" {
			if p, ok := e.byName[peer]; !ok || !p.tracksMaxID() {
				e.mutex.Unlock()
				return &Error{Op: "fill", Collection: t.tableName(), Err: fmt.Errorf("%w: max id peer %s", ErrUnknownCollection, peer)}
			}
		}
	}
	previous := e.status
	e.status = StatusFilling
	e.filled = make(chan struct{})
	filled := e.filled
	e.mutex.Unlock()

	if previous == StatusReady && !options.DiscardPending {
		if err := e.flush(ctx, "fill"); err != nil {
			e.mutex.Lock()
			e.status = previous
			close(filled)
			e.mutex.Unlock()
			return err
		}
	}

	if options.Store != nil {
		e.mutex.Lock()
		e.store = options.Store
		e.mutex.Unlock()
	}

	err := e.fill(ctx, options)

	e.mutex.Lock()
	defer e.mutex.Unlock()
	defer close(filled)

	if err != nil {
		for _, t := range e.tables {
			t.wipe()
		}
		e.status = StatusError
		e.lastErr = err
		e.scope = Scope{}
		return err
	}
	return nil
}

func (e *Engine) fill(ctx context.Context, options FillOptions) error {
	t0 := time.Now()
	fillID := uuid.New().String()

	e.mutex.RLock()
	st := e.store
	byName := e.byName
	e.mutex.RUnlock()
	if st == nil {
		return &Error{Op: "fill", Err: fmt.Errorf("%w: no store configured", ErrStore)}
	}

	scope := Scope{Session: options.Session, Season: options.Season}
	if scope.Season == 0 {
		if e.resolveScope == nil {
			return &Error{Op: "fill", Err: ErrScopeUnresolved}
		}
		season, err := e.resolveScope(ctx, st)
		if err != nil {
			return &Error{Op: "fill", Err: fmt.Errorf("%w: %w", ErrScopeUnresolved, err)}
		}
		scope.Season = season
	}

	for _, t := range e.tables {
		t.prepare()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range e.tables {
		g.Go(func() error {
			if err := t.load(gctx, st, scope); err != nil {
				return &Error{Op: "fill", Collection: t.tableName(), Err: wrapStore(err)}
			}
			return nil
		})
		if t.tracksMaxID() {
			g.Go(func() error {
				if err := t.scanMaxID(gctx, st); err != nil {
					return &Error{Op: "fill", Collection: t.tableName(), Err: wrapStore(err)}
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		e.logger.Printf("ERROR: fill %s (%s): %s", options.Session, fillID, err)
		return err
	}

	for _, t := range e.tables {
		if peer := t.maxIDPeer(); peer != "" {
			t.raiseStagedMaxID(byName[peer].stagedMaxID())
		}
	}

	e.mutex.Lock()
	counts := make(map[string]int, len(e.tables))
	for _, t := range e.tables {
		counts[t.tableName()] = t.commit()
	}
	e.scope = scope
	e.status = StatusReady
	e.lastErr = nil
	e.mutex.Unlock()

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e.logger.Printf("Filled %s: %d rows", name, counts[name])
	}
	e.logger.Printf("Fill %s (%s) season %d done in %s", options.Session, fillID, scope.Season, time.Since(t0))
	return nil
}

func wrapStore(err error) error {
	var cacheErr *Error
	if errors.As(err, &cacheErr) || errors.Is(err, ErrMissingKey) || errors.Is(err, ErrDuplicateKey) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStore, err)
}

// Flush writes every pending change to the store in one batch. Nothing is written when
// nothing changed. A failed flush keeps the pending changes.
func (e *Engine) Flush(ctx context.Context) error {
	e.ops.Lock()
	defer e.ops.Unlock()

	if e.Status() != StatusReady {
		return &Error{Op: "flush", Err: ErrNotReady}
	}
	return e.flush(ctx, "flush")
}

func (e *Engine) flush(ctx context.Context, op string) error {
	t0 := time.Now()

	batch := store.Batch{}
	marks := make([]flushMark, len(e.tables))
	puts, deletes := 0, 0

	e.mutex.RLock()
	for i, t := range e.tables {
		changes, mark, err := t.pending()
		if err != nil {
			e.mutex.RUnlock()
			return &Error{Op: op, Collection: t.tableName(), Err: err}
		}
		marks[i] = mark
		if changes.Empty() {
			continue
		}
		batch[t.tableName()] = changes
		puts += len(changes.Puts)
		deletes += len(changes.Deletes)
	}
	st := e.store
	e.mutex.RUnlock()

	if batch.Empty() {
		return nil
	}

	if err := st.Write(ctx, batch); err != nil {
		e.logger.Printf("ERROR: %s: write %d puts, %d deletes: %s", op, puts, deletes, err)
		return &Error{Op: op, Err: fmt.Errorf("%w: %w", ErrStore, err)}
	}

	e.mutex.Lock()
	for i, t := range e.tables {
		t.flushed(marks[i])
	}
	e.mutex.Unlock()

	e.logger.Printf("Flushed %d puts, %d deletes in %d collections in %s", puts, deletes, len(batch), time.Since(t0))
	return nil
}

// Close flushes pending changes and empties the cache. The store is left open.
func (e *Engine) Close(ctx context.Context) error {
	e.ops.Lock()
	defer e.ops.Unlock()

	if e.Status() == StatusReady {
		if err := e.flush(ctx, "close"); err != nil {
			return err
		}
	}

	e.mutex.Lock()
	defer e.mutex.Unlock()
	for _, t := range e.tables {
		t.wipe()
	}
	e.status = StatusEmpty
	e.scope = Scope{}
	e.lastErr = nil
	return nil
}

// Info describes every collection, in registration order.
func (e *Engine) Info(ctx context.Context) ([]CollectionInfo, error) {
	unlock, err := e.acquire(ctx, false)
	if err != nil {
		return nil, &Error{Op: "info", Err: err}
	}
	defer unlock()

	result := make([]CollectionInfo, len(e.tables))
	for i, t := range e.tables {
		result[i] = t.info()
	}
	return result, nil
}
