package store

import (
	"os"
	"path/filepath"
	"testing"
)

func Environment(t *testing.T, f func(dir string)) {
	dir, err := os.MkdirTemp("", "store-test-")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	f(dir)
}

type factory struct {
	name string
	open func(dir string) (Store, error)
}

var factories = []factory{
	{
		name: "Memory",
		open: func(dir string) (Store, error) {
			return NewMemory(), nil
		},
	},
	{
		name: "JSONL",
		open: func(dir string) (Store, error) {
			return OpenJSONL(filepath.Join(dir, "league.jsonl"), nil)
		},
	},
	{
		name: "SQLite",
		open: func(dir string) (Store, error) {
			return OpenSQLite(filepath.Join(dir, "league.sqlite"))
		},
	},
}
