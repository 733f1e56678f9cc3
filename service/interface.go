package service

import (
	"context"
	"errors"

	"github.com/zengm-games/zengm-sub016/cache"
)

var (
	ErrNoLeague   = errors.New("no league open")
	ErrLeagueOpen = errors.New("league is open")
)

// Servicer is what the HTTP API needs from a session.
type Servicer interface {
	Status() *Status
	ListLeagues() ([]string, error)
	CreateLeague(ctx context.Context, name string, season int) (*LeagueInfo, error)
	OpenLeague(ctx context.Context, name string) (*Status, error)
	DropLeague(name string) error
	Checkpoint(ctx context.Context) error
	Compact(ctx context.Context) error
	CloseLeague(ctx context.Context) error
	Collections(ctx context.Context) ([]cache.CollectionInfo, error)
	Collection(name string) (cache.Dynamic, error)
}

type Status struct {
	League string       `json:"league"`
	Status cache.Status `json:"status"`
	Season int          `json:"season,omitempty"`
	Error  string       `json:"error,omitempty"`
}

type LeagueInfo struct {
	Name   string `json:"name"`
	Season int    `json:"season"`
}
