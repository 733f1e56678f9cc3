package store

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"
)

type memoryRecord struct {
	key     Key
	payload []byte
}

func lessRecord(a, b *memoryRecord) bool {
	return a.key.Less(b.key)
}

// Memory keeps every collection in an ordered btree. It backs the JSONL store and serves
// as a volatile store on its own.
type Memory struct {
	mutex       *sync.RWMutex
	collections map[string]*btree.BTreeG[*memoryRecord]
	closed      bool
}

func NewMemory() *Memory {
	return &Memory{
		mutex:       &sync.RWMutex{},
		collections: map[string]*btree.BTreeG[*memoryRecord]{},
	}
}

func (m *Memory) tree(collection string, create bool) *btree.BTreeG[*memoryRecord] {
	tree, ok := m.collections[collection]
	if !ok && create {
		tree = btree.NewG(32, lessRecord)
		m.collections[collection] = tree
	}
	return tree
}

func (m *Memory) Get(ctx context.Context, collection string, key Key) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.closed {
		return nil, false, ErrClosed
	}

	tree := m.tree(collection, false)
	if tree == nil {
		return nil, false, nil
	}
	item, ok := tree.Get(&memoryRecord{key: key})
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(item.payload), true, nil
}

func (m *Memory) Scan(ctx context.Context, collection string, f func(key Key, payload []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Copy out first so f may call back into the store.
	m.mutex.RLock()
	if m.closed {
		m.mutex.RUnlock()
		return ErrClosed
	}
	var items []*memoryRecord
	if tree := m.tree(collection, false); tree != nil {
		items = make([]*memoryRecord, 0, tree.Len())
		tree.Ascend(func(item *memoryRecord) bool {
			items = append(items, item)
			return true
		})
	}
	m.mutex.RUnlock()

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := f(item.key, bytes.Clone(item.payload)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) MaxKey(ctx context.Context, collection string) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if m.closed {
		return 0, false, ErrClosed
	}

	tree := m.tree(collection, false)
	if tree == nil {
		return 0, false, nil
	}

	var (
		max   int64
		found bool
	)
	// Integer keys sort before string keys, so the first integer met walking backwards
	// is the highest one.
	tree.Descend(func(item *memoryRecord) bool {
		if item.key.IsStr {
			return true
		}
		max, found = item.key.Int, true
		return false
	})
	return max, found, nil
}

func (m *Memory) Write(ctx context.Context, batch Batch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return ErrClosed
	}

	m.apply(batch)
	return nil
}

// apply never fails, so a batch is always applied whole.
func (m *Memory) apply(batch Batch) {
	for collection, changes := range batch {
		if changes.Empty() {
			continue
		}
		tree := m.tree(collection, true)
		for _, key := range changes.Deletes {
			tree.Delete(&memoryRecord{key: key})
		}
		for _, record := range changes.Puts {
			tree.ReplaceOrInsert(&memoryRecord{
				key:     record.Key,
				payload: bytes.Clone(record.Payload),
			})
		}
	}
}

// Len returns the number of records stored in collection.
func (m *Memory) Len(collection string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	tree := m.tree(collection, false)
	if tree == nil {
		return 0
	}
	return tree.Len()
}

func (m *Memory) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closed = true
	return nil
}
