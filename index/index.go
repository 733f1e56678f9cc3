package index

import (
	"github.com/google/btree"
)

type entry[R any] struct {
	key Key
	seq uint64
	row R
}

// Index maps keys to rows in key order. A unique index holds one row per key and an
// insert on an existing key replaces it. A non unique index keeps every row, ordered by
// key and then by insertion.
type Index[R any] struct {
	Name   string
	Unique bool

	tree *btree.BTreeG[*entry[R]]
	seq  uint64
}

func New[R any](name string, unique bool) *Index[R] {
	less := func(a, b *entry[R]) bool {
		return Compare(a.key, b.key) < 0
	}
	if !unique {
		less = func(a, b *entry[R]) bool {
			if c := Compare(a.key, b.key); c != 0 {
				return c < 0
			}
			return a.seq < b.seq
		}
	}

	return &Index[R]{
		Name:   name,
		Unique: unique,
		tree:   btree.NewG(32, less),
	}
}

func (i *Index[R]) Insert(key Key, row R) {
	i.seq++
	i.tree.ReplaceOrInsert(&entry[R]{
		key: key,
		seq: i.seq,
		row: row,
	})
}

// Get returns the first row inserted under key.
func (i *Index[R]) Get(key Key) (R, bool) {
	var (
		row   R
		found bool
	)
	i.tree.AscendGreaterOrEqual(&entry[R]{key: key}, func(e *entry[R]) bool {
		if Compare(e.key, key) == 0 {
			row, found = e.row, true
		}
		return false
	})
	return row, found
}

// Find returns every row under key in insertion order.
func (i *Index[R]) Find(key Key) []R {
	return i.Range(key, key)
}

// Range returns the rows whose key lies in the closed interval [min, max], in key order.
func (i *Index[R]) Range(min, max Key) []R {
	rows := []R{}
	if Compare(min, max) > 0 {
		return rows
	}
	i.tree.AscendGreaterOrEqual(&entry[R]{key: min}, func(e *entry[R]) bool {
		if Compare(e.key, max) > 0 {
			return false
		}
		rows = append(rows, e.row)
		return true
	})
	return rows
}

func (i *Index[R]) Len() int {
	return i.tree.Len()
}

func (i *Index[R]) Reset() {
	i.tree.Clear(false)
	i.seq = 0
}
