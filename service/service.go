// Package service runs one league session at a time on top of a database of leagues.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/zengm-games/zengm-sub016/cache"
	"github.com/zengm-games/zengm-sub016/database"
	"github.com/zengm-games/zengm-sub016/league"
	"github.com/zengm-games/zengm-sub016/store"
)

type Service struct {
	db     *database.Database
	league *league.League
	logger *log.Logger

	// mutex serializes session changes and guards current and st.
	mutex   *sync.Mutex
	current string
	st      store.Store
}

func NewService(db *database.Database, logger *log.Logger) (*Service, error) {
	if logger == nil {
		logger = log.Default()
	}
	l, err := league.New(nil, logger)
	if err != nil {
		return nil, err
	}
	return &Service{
		db:     db,
		league: l,
		logger: logger,
		mutex:  &sync.Mutex{},
	}, nil
}

// League exposes the typed collections of the session.
func (s *Service) League() *league.League {
	return s.league
}

func (s *Service) Status() *Status {
	s.mutex.Lock()
	current := s.current
	s.mutex.Unlock()

	e := s.league.Engine
	status := &Status{
		League: current,
		Status: e.Status(),
		Season: e.Scope().Season,
	}
	if err := e.LastError(); err != nil && status.Status == cache.StatusError {
		status.Error = err.Error()
	}
	return status
}

func (s *Service) ListLeagues() ([]string, error) {
	return s.db.List()
}

// CreateLeague seeds a new league. It does not open it.
func (s *Service) CreateLeague(ctx context.Context, name string, season int) (*LeagueInfo, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	st, err := s.db.Create(name)
	if err != nil {
		return nil, err
	}

	err = league.Seed(ctx, st, league.SeedOptions{Season: season})
	closeErr := st.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		if dropErr := s.db.Drop(name); dropErr != nil {
			s.logger.Printf("ERROR: drop half created league '%s': %s", name, dropErr)
		}
		return nil, fmt.Errorf("seed league '%s': %w", name, err)
	}

	return &LeagueInfo{Name: name, Season: season}, nil
}

// OpenLeague fills the cache from a league. Pending changes of the previous league are
// flushed to it first; if that fails the previous league stays open.
func (s *Service) OpenLeague(ctx context.Context, name string) (*Status, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	e := s.league.Engine

	if name == s.current && s.st != nil {
		if err := e.Fill(ctx, cache.FillOptions{Session: name}); err != nil {
			return nil, err
		}
		return s.statusLocked(), nil
	}

	st, err := s.db.Open(name)
	if err != nil {
		return nil, err
	}

	err = e.Fill(ctx, cache.FillOptions{Store: st, Session: name})
	if e.Store() != st {
		closeStore(s.logger, name, st)
		return nil, err
	}

	if s.st != nil {
		closeStore(s.logger, s.current, s.st)
	}
	s.current = name
	s.st = st
	if err != nil {
		return nil, err
	}
	return s.statusLocked(), nil
}

func (s *Service) statusLocked() *Status {
	e := s.league.Engine
	return &Status{
		League: s.current,
		Status: e.Status(),
		Season: e.Scope().Season,
	}
}

// DropLeague removes a league that is not open.
func (s *Service) DropLeague(name string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if name == s.current {
		return fmt.Errorf("%w: '%s'", ErrLeagueOpen, name)
	}
	return s.db.Drop(name)
}

// Checkpoint flushes pending changes.
func (s *Service) Checkpoint(ctx context.Context) error {
	err := s.league.Engine.Flush(ctx)
	if errors.Is(err, cache.ErrNotReady) {
		return fmt.Errorf("%w: %w", ErrNoLeague, err)
	}
	return err
}

type compacter interface {
	Compact(ctx context.Context) error
}

// Compact flushes and then rewrites the store of the open league when its backend
// keeps a log.
func (s *Service) Compact(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.st == nil {
		return ErrNoLeague
	}
	if err := s.Checkpoint(ctx); err != nil {
		return err
	}
	c, ok := s.st.(compacter)
	if !ok {
		return nil
	}
	return c.Compact(ctx)
}

// CloseLeague flushes, empties the cache and releases the store.
func (s *Service) CloseLeague(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.st == nil {
		return ErrNoLeague
	}
	if err := s.league.Engine.Close(ctx); err != nil {
		return err
	}
	err := s.st.Close()
	s.logger.Printf("Closed league '%s'", s.current)
	s.current = ""
	s.st = nil
	return err
}

// Shutdown closes the open league, if any.
func (s *Service) Shutdown(ctx context.Context) error {
	err := s.CloseLeague(ctx)
	if errors.Is(err, ErrNoLeague) {
		return nil
	}
	return err
}

func (s *Service) Collections(ctx context.Context) ([]cache.CollectionInfo, error) {
	return s.league.Engine.Info(ctx)
}

func (s *Service) Collection(name string) (cache.Dynamic, error) {
	return s.league.Engine.Dynamic(name)
}

func closeStore(logger *log.Logger, name string, st store.Store) {
	if err := st.Close(); err != nil {
		logger.Printf("ERROR: close league '%s': %s", name, err)
	}
}
