// Package database keeps the leagues of a data directory, one store per league.
package database

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/zengm-games/zengm-sub016/store"
	"github.com/zengm-games/zengm-sub016/utils"
)

const (
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

var (
	ErrLeagueExists   = errors.New("league already exists")
	ErrLeagueNotFound = errors.New("league not found")
	ErrInvalidName    = errors.New("invalid league name")
	ErrBackend        = errors.New("unknown backend")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

type Config struct {
	Dir     string
	Backend string
}

type Database struct {
	Config *Config
	logger *log.Logger

	mutex  *sync.Mutex
	memory map[string]*store.Memory
}

func NewDatabase(config *Config, logger *log.Logger) *Database {
	if logger == nil {
		logger = log.Default()
	}
	if config.Backend == "" {
		config.Backend = BackendJSONL
	}
	return &Database{
		Config: config,
		logger: logger,
		mutex:  &sync.Mutex{},
		memory: map[string]*store.Memory{},
	}
}

// ValidateName rejects names that cannot be used as a file name.
func ValidateName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: '%s'", ErrInvalidName, name)
	}
	return nil
}

func (db *Database) extension() (string, error) {
	switch db.Config.Backend {
	case BackendJSONL:
		return ".jsonl", nil
	case BackendSQLite:
		return ".sqlite", nil
	case BackendMemory:
		return "", nil
	}
	return "", fmt.Errorf("%w '%s'", ErrBackend, db.Config.Backend)
}

func (db *Database) filename(name string) (string, error) {
	ext, err := db.extension()
	if err != nil {
		return "", err
	}
	return filepath.Join(db.Config.Dir, name+ext), nil
}

// List returns the league names, sorted.
func (db *Database) List() ([]string, error) {
	ext, err := db.extension()
	if err != nil {
		return nil, err
	}

	if db.Config.Backend == BackendMemory {
		db.mutex.Lock()
		defer db.mutex.Unlock()
		return utils.GetKeys(db.memory), nil
	}

	entries, err := os.ReadDir(db.Config.Dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	names := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ext) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		if ValidateName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

func (db *Database) Exists(name string) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}

	if db.Config.Backend == BackendMemory {
		db.mutex.Lock()
		defer db.mutex.Unlock()
		_, exists := db.memory[name]
		return exists, nil
	}

	filename, err := db.filename(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(filename)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// Create makes an empty league and returns its store open.
func (db *Database) Create(name string) (store.Store, error) {
	exists, err := db.Exists(name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: '%s'", ErrLeagueExists, name)
	}

	if db.Config.Backend == BackendMemory {
		db.mutex.Lock()
		defer db.mutex.Unlock()
		m := store.NewMemory()
		db.memory[name] = m
		db.logger.Printf("Created league '%s' in memory", name)
		return memoryHandle{Memory: m}, nil
	}

	if err := os.MkdirAll(db.Config.Dir, 0755); err != nil {
		return nil, err
	}
	st, err := db.open(name)
	if err != nil {
		return nil, err
	}
	db.logger.Printf("Created league '%s' (%s)", name, db.Config.Backend)
	return st, nil
}

// Open returns the store of an existing league. The caller closes it.
func (db *Database) Open(name string) (store.Store, error) {
	exists, err := db.Exists(name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", ErrLeagueNotFound, name)
	}

	if db.Config.Backend == BackendMemory {
		db.mutex.Lock()
		defer db.mutex.Unlock()
		return memoryHandle{Memory: db.memory[name]}, nil
	}

	return db.open(name)
}

func (db *Database) open(name string) (store.Store, error) {
	filename, err := db.filename(name)
	if err != nil {
		return nil, err
	}
	switch db.Config.Backend {
	case BackendSQLite:
		return store.OpenSQLite(filename)
	default:
		return store.OpenJSONL(filename, db.logger)
	}
}

// Drop removes a league. Its store must be closed.
func (db *Database) Drop(name string) error {
	exists, err := db.Exists(name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: '%s'", ErrLeagueNotFound, name)
	}

	if db.Config.Backend == BackendMemory {
		db.mutex.Lock()
		defer db.mutex.Unlock()
		delete(db.memory, name)
		return nil
	}

	filename, err := db.filename(name)
	if err != nil {
		return err
	}
	if err := os.Remove(filename); err != nil {
		return err
	}
	if db.Config.Backend == BackendSQLite {
		for _, suffix := range []string{"-wal", "-shm"} {
			if err := os.Remove(filename + suffix); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
	}
	db.logger.Printf("Dropped league '%s'", name)
	return nil
}

// memoryHandle keeps a memory league alive across close and reopen.
type memoryHandle struct {
	*store.Memory
}

func (memoryHandle) Close() error {
	return nil
}
