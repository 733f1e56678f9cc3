// Package league registers the collections of a basketball league on a cache engine.
package league

import (
	"log"

	"github.com/zengm-games/zengm-sub016/cache"
	"github.com/zengm-games/zengm-sub016/index"
	"github.com/zengm-games/zengm-sub016/store"
)

// League holds the typed accessor of every collection.
type League struct {
	Engine *cache.Engine

	GameAttributes  *cache.Collection[string, *GameAttribute]
	Players         *cache.Collection[int64, *Player]
	ReleasedPlayers *cache.Collection[int64, *ReleasedPlayer]
	Teams           *cache.Collection[int64, *Team]
	TeamSeasons     *cache.Collection[int64, *TeamSeason]
	TeamStats       *cache.Collection[int64, *TeamStats]
	Games           *cache.Collection[int64, *Game]
	Schedule        *cache.Collection[int64, *ScheduleGame]
	Events          *cache.Collection[int64, *Event]
	PlayerFeats     *cache.Collection[int64, *PlayerFeat]
	DraftPicks      *cache.Collection[int64, *DraftPick]
	Negotiations    *cache.Collection[int64, *Negotiation]
	PlayoffSeries   *cache.Collection[int64, *PlayoffSeries]
}

// New builds an engine over st with every league collection registered. The season is
// read from gameAttributes when a fill does not name one.
func New(st store.Store, logger *log.Logger) (*League, error) {
	e := cache.New(st, &cache.Options{
		Logger:       logger,
		ResolveScope: ResolveSeason,
	})
	return Register(e)
}

func Register(e *cache.Engine) (*League, error) {
	l := &League{Engine: e}
	var err error

	l.GameAttributes, err = cache.Register(e, cache.Schema[string, *GameAttribute]{
		Name:       "gameAttributes",
		PrimaryKey: func(g *GameAttribute) (string, bool) { return g.Key, g.Key != "" },
		Loader:     cache.LoadAll[*GameAttribute],
	})
	if err != nil {
		return nil, err
	}

	l.Players, err = cache.Register(e, cache.Schema[int64, *Player]{
		Name:          "players",
		PrimaryKey:    func(p *Player) (int64, bool) { return p.Pid, p.Pid != 0 },
		SetPrimaryKey: func(p *Player, pid int64) { p.Pid = pid },
		AutoIncrement: true,
		Loader: cache.LoadWhere(func(p *Player, scope cache.Scope) bool {
			return p.Tid >= PlayerUndrafted
		}),
		Indexes: []cache.IndexDefinition[*Player]{
			{
				Name: "playersByTid",
				Key:  func(p *Player) index.Key { return index.K(p.Tid) },
			},
		},
		Deletable: true,
	})
	if err != nil {
		return nil, err
	}

	l.ReleasedPlayers, err = cache.Register(e, cache.Schema[int64, *ReleasedPlayer]{
		Name:          "releasedPlayers",
		PrimaryKey:    func(r *ReleasedPlayer) (int64, bool) { return r.Rid, r.Rid != 0 },
		SetPrimaryKey: func(r *ReleasedPlayer, rid int64) { r.Rid = rid },
		AutoIncrement: true,
		Loader:        cache.LoadAll[*ReleasedPlayer],
		Indexes: []cache.IndexDefinition[*ReleasedPlayer]{
			{
				Name: "releasedPlayersByTid",
				Key:  func(r *ReleasedPlayer) index.Key { return index.K(r.Tid) },
			},
		},
		Deletable: true,
	})
	if err != nil {
		return nil, err
	}

	l.Teams, err = cache.Register(e, cache.Schema[int64, *Team]{
		Name:       "teams",
		PrimaryKey: func(t *Team) (int64, bool) { return t.Tid, true },
		Loader:     cache.LoadAll[*Team],
		Indexes: []cache.IndexDefinition[*Team]{
			{
				Name:   "teamsByAbbrev",
				Key:    func(t *Team) index.Key { return index.K(t.Abbrev) },
				Unique: true,
				Filter: func(t *Team) bool { return !t.Disabled },
			},
		},
	})
	if err != nil {
		return nil, err
	}

	l.TeamSeasons, err = cache.Register(e, cache.Schema[int64, *TeamSeason]{
		Name:          "teamSeasons",
		PrimaryKey:    func(t *TeamSeason) (int64, bool) { return t.Rid, t.Rid != 0 },
		SetPrimaryKey: func(t *TeamSeason, rid int64) { t.Rid = rid },
		AutoIncrement: true,
		Loader: cache.LoadWhere(func(t *TeamSeason, scope cache.Scope) bool {
			return t.Season >= scope.Season-2
		}),
		Indexes: []cache.IndexDefinition[*TeamSeason]{
			{
				Name: "teamSeasonsBySeasonTid",
				Key:  func(t *TeamSeason) index.Key { return index.K(t.Season, t.Tid) },
			},
			{
				Name:   "teamSeasonsByTidSeason",
				Key:    func(t *TeamSeason) index.Key { return index.K(t.Tid, t.Season) },
				Unique: true,
			},
		},
		Deletable: true,
	})
	if err != nil {
		return nil, err
	}

	// Only the current season is loaded, so the unique index keeps the latest row of each
	// team when a new season starts mid session.
	l.TeamStats, err = cache.Register(e, cache.Schema[int64, *TeamStats]{
		Name:          "teamStats",
		PrimaryKey:    func(t *TeamStats) (int64, bool) { return t.Rid, t.Rid != 0 },
		SetPrimaryKey: func(t *TeamStats, rid int64) { t.Rid = rid },
		AutoIncrement: true,
		Loader: cache.LoadWhere(func(t *TeamStats, scope cache.Scope) bool {
			return t.Season == scope.Season
		}),
		Indexes: []cache.IndexDefinition[*TeamStats]{
			{
				Name:   "teamStatsByPlayoffsTid",
				Key:    func(t *TeamStats) index.Key { return index.K(t.Playoffs, t.Tid) },
				Unique: true,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	// Game ids come from the schedule, so both counters are reconciled on fill.
	l.Games, err = cache.Register(e, cache.Schema[int64, *Game]{
		Name:       "games",
		PrimaryKey: func(g *Game) (int64, bool) { return g.Gid, true },
		TrackMaxID: true,
		MaxIDPeer:  "schedule",
		Loader: cache.LoadWhere(func(g *Game, scope cache.Scope) bool {
			return g.Season == scope.Season
		}),
	})
	if err != nil {
		return nil, err
	}

	l.Schedule, err = cache.Register(e, cache.Schema[int64, *ScheduleGame]{
		Name:          "schedule",
		PrimaryKey:    func(s *ScheduleGame) (int64, bool) { return s.Gid, s.Gid != 0 },
		SetPrimaryKey: func(s *ScheduleGame, gid int64) { s.Gid = gid },
		AutoIncrement: true,
		MaxIDPeer:     "games",
		Loader:        cache.LoadAll[*ScheduleGame],
		Indexes: []cache.IndexDefinition[*ScheduleGame]{
			{
				Name: "scheduleByDay",
				Key:  func(s *ScheduleGame) index.Key { return index.K(s.Day) },
			},
		},
		Deletable: true,
		Clearable: true,
	})
	if err != nil {
		return nil, err
	}

	l.Events, err = cache.Register(e, cache.Schema[int64, *Event]{
		Name:          "events",
		PrimaryKey:    func(ev *Event) (int64, bool) { return ev.Eid, ev.Eid != 0 },
		SetPrimaryKey: func(ev *Event, eid int64) { ev.Eid = eid },
		AutoIncrement: true,
	})
	if err != nil {
		return nil, err
	}

	l.PlayerFeats, err = cache.Register(e, cache.Schema[int64, *PlayerFeat]{
		Name:          "playerFeats",
		PrimaryKey:    func(f *PlayerFeat) (int64, bool) { return f.Fid, f.Fid != 0 },
		SetPrimaryKey: func(f *PlayerFeat, fid int64) { f.Fid = fid },
		AutoIncrement: true,
	})
	if err != nil {
		return nil, err
	}

	l.DraftPicks, err = cache.Register(e, cache.Schema[int64, *DraftPick]{
		Name:          "draftPicks",
		PrimaryKey:    func(d *DraftPick) (int64, bool) { return d.Dpid, d.Dpid != 0 },
		SetPrimaryKey: func(d *DraftPick, dpid int64) { d.Dpid = dpid },
		AutoIncrement: true,
		Loader:        cache.LoadAll[*DraftPick],
		Indexes: []cache.IndexDefinition[*DraftPick]{
			{
				Name: "draftPicksByTid",
				Key:  func(d *DraftPick) index.Key { return index.K(d.Tid) },
			},
		},
		Deletable: true,
	})
	if err != nil {
		return nil, err
	}

	l.Negotiations, err = cache.Register(e, cache.Schema[int64, *Negotiation]{
		Name:       "negotiations",
		PrimaryKey: func(n *Negotiation) (int64, bool) { return n.Pid, true },
		Loader:     cache.LoadAll[*Negotiation],
		Deletable:  true,
		Clearable:  true,
	})
	if err != nil {
		return nil, err
	}

	l.PlayoffSeries, err = cache.Register(e, cache.Schema[int64, *PlayoffSeries]{
		Name:       "playoffSeries",
		PrimaryKey: func(p *PlayoffSeries) (int64, bool) { return p.Season, p.Season != 0 },
		Loader: cache.LoadWhere(func(p *PlayoffSeries, scope cache.Scope) bool {
			return p.Season == int64(scope.Season)
		}),
		Deletable: true,
	})
	if err != nil {
		return nil, err
	}

	return l, nil
}
