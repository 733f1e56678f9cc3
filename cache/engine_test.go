package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	. "github.com/fulldump/biff"

	"github.com/zengm-games/zengm-sub016/index"
	"github.com/zengm-games/zengm-sub016/store"
)

func TestEngine_ScenarioPlayers(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		pid, err := x.players.Add(ctx, &player{Name: "Cid"})
		AssertNil(err)
		AssertEqual(pid, int64(3))

		_, err = x.players.Put(ctx, &player{Pid: 2, Name: "Bobby", Tid: 1})
		AssertNil(err)

		AssertNil(x.players.Delete(ctx, 1))

		all, err := x.players.GetAll(ctx)
		AssertNil(err)
		AssertEqual(pids(all), []string{"2:Bobby", "3:Cid"})

		AssertNil(x.engine.Flush(ctx))

		AssertEqual(x.store.Calls(), 1)
		AssertEqual(x.store.Deletes("players"), []string{"1"})
		AssertEqual(x.store.Puts("players"), []string{"2", "3"})

		payload, found, err := x.store.Get(ctx, "players", store.IntKey(2))
		AssertNil(err)
		AssertTrue(found)
		AssertEqual(string(payload), `{"pid":2,"name":"Bobby","tid":1}`)
	})
}

func TestEngine_ReadAfterWrite(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		row := &player{Name: "Dee", Tid: 4}
		pid, err := x.players.Add(ctx, row)
		AssertNil(err)

		got, found, err := x.players.Get(ctx, pid)
		AssertNil(err)
		AssertTrue(found)
		AssertEqual(got, &player{Pid: pid, Name: "Dee", Tid: 4})

		_, err = x.settings.Put(ctx, &setting{Key: "season", Value: 2025})
		AssertNil(err)
		s, found, err := x.settings.Get(ctx, "season")
		AssertNil(err)
		AssertTrue(found)
		AssertEqual(s.Value, 2025)

		_, found, err = x.players.Get(ctx, 999)
		AssertNil(err)
		AssertFalse(found)
	})
}

func TestEngine_DirtySetMinimality(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		for i := 0; i < 5; i++ {
			x.players.Put(ctx, &player{Pid: 1, Name: fmt.Sprint("Ann", i)})
			x.players.Put(ctx, &player{Pid: 2, Name: fmt.Sprint("Bob", i)})
		}
		AssertNil(x.engine.Flush(ctx))

		AssertEqual(x.store.Puts("players"), []string{"1", "2"})
		AssertEqual(x.store.Puts("teams"), []string{})
		_, touched := x.store.writes[0]["teams"]
		AssertFalse(touched)
	})
}

func TestEngine_DeleteSupersedesDirty(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		pid, _ := x.players.Add(ctx, &player{Name: "Tmp"})
		AssertNil(x.players.Delete(ctx, pid))
		AssertNil(x.engine.Flush(ctx))

		AssertEqual(x.store.Puts("players"), []string{})
		AssertEqual(x.store.Deletes("players"), []string{"3"})
	})
}

func TestEngine_PutAfterDelete(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		AssertNil(x.players.Delete(ctx, 1))
		x.players.Put(ctx, &player{Pid: 1, Name: "Back"})
		AssertNil(x.engine.Flush(ctx))

		AssertEqual(x.store.Deletes("players"), []string{})
		AssertEqual(x.store.Puts("players"), []string{"1"})
	})
}

func TestEngine_AutoIncrementMonotonic(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		last := int64(0)
		for i := 0; i < 10; i++ {
			pid, err := x.players.Add(ctx, &player{Name: "P"})
			AssertNil(err)
			AssertTrue(pid > last)
			last = pid
			if i%3 == 0 {
				AssertNil(x.players.Delete(ctx, pid))
			}
		}
		AssertEqual(last, int64(12))

		Alternative("Explicit key raises the counter", func(a *A) {
			x.players.Put(ctx, &player{Pid: 100, Name: "Far"})
			pid, _ := x.players.Add(ctx, &player{Name: "Next"})
			AssertEqual(pid, int64(101))
		})
	})
}

func TestEngine_MaxIDFromStore(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		seed(x.store, "events", map[int64]string{41: `{"pid":41}`})
		x.fill()

		n, _ := x.events.Count(ctx)
		AssertEqual(n, 0)

		eid, err := x.events.Add(ctx, &player{Name: "event"})
		AssertNil(err)
		AssertEqual(eid, int64(42))
	})
}

func TestEngine_SchemaViolations(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		_, err := x.players.Add(ctx, &player{Pid: 2, Name: "Dup"})
		AssertTrue(errors.Is(err, ErrDuplicateKey))

		_, err = x.settings.Add(ctx, &setting{Value: 1})
		AssertTrue(errors.Is(err, ErrMissingKey))

		err = x.teams.Delete(ctx, 0)
		AssertTrue(errors.Is(err, ErrUnsupported))

		err = x.players.Clear(ctx)
		AssertTrue(errors.Is(err, ErrUnsupported))

		err = x.players.Delete(ctx, 77)
		AssertTrue(errors.Is(err, ErrNotFound))

		cacheErr := &Error{}
		AssertTrue(errors.As(err, &cacheErr))
		AssertEqual(cacheErr.Op, "delete")
		AssertEqual(cacheErr.Collection, "players")
		AssertEqual(cacheErr.Key, "77")
		AssertEqual(err.Error(), "cache: delete players/77: not found")
	})
}

func TestEngine_Clear(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		x.settings.Put(ctx, &setting{Key: "a", Value: 1})
		x.settings.Put(ctx, &setting{Key: "b", Value: 2})
		AssertNil(x.engine.Flush(ctx))
		x.store.reset()

		AssertNil(x.settings.Clear(ctx))
		n, _ := x.settings.Count(ctx)
		AssertEqual(n, 0)

		AssertNil(x.engine.Flush(ctx))
		AssertEqual(x.store.Deletes("settings"), []string{"a", "b"})
	})
}

func TestEngine_UniqueIndexLastWriterWins(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		atl, found, err := x.teams.IndexGet(ctx, "teamsByAbbrev", index.K("ATL"))
		AssertNil(err)
		AssertTrue(found)
		AssertEqual(atl.Tid, int64(0))

		// both teams now claim the same abbreviation
		x.teams.Put(ctx, &team{Tid: 1, Abbrev: "ATL", Season: 2025})
		atl, _, _ = x.teams.IndexGet(ctx, "teamsByAbbrev", index.K("ATL"))
		AssertEqual(atl.Tid, int64(1))

		x.teams.Put(ctx, &team{Tid: 0, Abbrev: "ATL", Season: 2025})
		atl, _, _ = x.teams.IndexGet(ctx, "teamsByAbbrev", index.K("ATL"))
		AssertEqual(atl.Tid, int64(0))

		_, found, _ = x.teams.IndexGet(ctx, "teamsByAbbrev", index.K("BOS"))
		AssertFalse(found)
	})
}

func TestEngine_IndexRange(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		// written out of order on purpose
		for _, season := range []int{2027, 2024, 2026} {
			for _, tid := range []int64{1, 0} {
				x.teams.Put(ctx, &team{Tid: int64(season)*10 + tid, Season: season, Abbrev: fmt.Sprint(season, tid)})
			}
		}

		rows, err := x.teams.IndexGetAll(ctx, "teamsBySeasonTid", Between(index.K(2025, index.Low), index.K(2026, index.High)))
		AssertNil(err)
		seasons := []string{}
		for _, r := range rows {
			seasons = append(seasons, fmt.Sprint(r.Season, "/", r.Tid))
		}
		AssertEqual(seasons, []string{"2025/0", "2025/1", "2026/20260", "2026/20261"})

		rows, err = x.teams.IndexGetAll(ctx, "teamsBySeasonTid", Between(index.K(3000), index.K(3001)))
		AssertNil(err)
		AssertNotNil(rows)
		AssertEqual(len(rows), 0)

		_, err = x.teams.IndexGetAll(ctx, "nope", Only(index.K(1)))
		AssertTrue(errors.Is(err, ErrUnknownIndex))
	})
}

func TestEngine_IndexFollowsWrites(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		rows, _ := x.players.IndexGetAll(ctx, "playersByTid", Only(index.K(1)))
		AssertEqual(pids(rows), []string{"2:Bob"})

		x.players.Put(ctx, &player{Pid: 1, Name: "Ann", Tid: 1})
		x.players.Add(ctx, &player{Name: "Cid", Tid: 1})
		AssertNil(x.players.Delete(ctx, 2))

		rows, _ = x.players.IndexGetAll(ctx, "playersByTid", Only(index.K(1)))
		AssertEqual(pids(rows), []string{"1:Ann", "3:Cid"})

		rows, _ = x.players.IndexGetAll(ctx, "playersByTid", Only(index.K(0)))
		AssertEqual(pids(rows), []string{})
	})
}

func TestEngine_StateGating(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()

		AssertEqual(x.engine.Status(), StatusEmpty)
		_, _, err := x.players.Get(ctx, 1)
		AssertTrue(errors.Is(err, ErrNotReady))
		_, err = x.players.Add(ctx, &player{})
		AssertTrue(errors.Is(err, ErrNotReady))
		AssertTrue(errors.Is(x.engine.Flush(ctx), ErrNotReady))

		x.store.setFailScan(errors.New("disk on fire"))
		err = x.engine.Fill(ctx, FillOptions{Season: 2025})
		AssertTrue(errors.Is(err, ErrStore))
		AssertEqual(x.engine.Status(), StatusError)
		AssertNotNil(x.engine.LastError())

		_, err = x.players.GetAll(ctx)
		AssertTrue(errors.Is(err, ErrNotReady))

		x.store.setFailScan(nil)
		AssertNil(x.engine.Fill(ctx, FillOptions{Season: 2025}))
		AssertEqual(x.engine.Status(), StatusReady)
		AssertNil(x.engine.LastError())

		n, err := x.players.Count(ctx)
		AssertNil(err)
		AssertEqual(n, 2)
	})
}

func TestEngine_FillIsAllOrNothing(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()
		x.players.Add(ctx, &player{Name: "Cid"})

		// the failing fill flushes first, then fails while loading
		x.store.setFailScan(errors.New("boom"))
		err := x.engine.Fill(ctx, FillOptions{Season: 2025})
		AssertNotNil(err)
		AssertEqual(x.store.Puts("players"), []string{"3"})

		x.store.setFailScan(nil)
		AssertNil(x.engine.Fill(ctx, FillOptions{Season: 2025}))
		all, _ := x.players.GetAll(ctx)
		AssertEqual(pids(all), []string{"1:Ann", "2:Bob", "3:Cid"})
	})
}

func TestEngine_FillDiscardPending(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()
		x.players.Add(ctx, &player{Name: "Lost"})

		AssertNil(x.engine.Fill(ctx, FillOptions{Season: 2025, DiscardPending: true}))
		AssertEqual(x.store.Calls(), 0)

		n, _ := x.players.Count(ctx)
		AssertEqual(n, 2)
	})
}

func TestEngine_FillResolvesScope(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()

		err := x.engine.Fill(ctx, FillOptions{})
		AssertTrue(errors.Is(err, ErrScopeUnresolved))
		AssertEqual(x.engine.Status(), StatusError)

		x.engine.resolveScope = func(ctx context.Context, reader store.Reader) (int, error) {
			return 2031, nil
		}
		AssertNil(x.engine.Fill(ctx, FillOptions{Session: "league-a"}))
		AssertEqual(x.engine.Scope(), Scope{Session: "league-a", Season: 2031})
	})
}

func TestEngine_FillSwitchesStore(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()
		x.players.Add(ctx, &player{Name: "Cid"})

		other := store.NewMemory()
		seed(other, "players", map[int64]string{7: `{"pid":7,"name":"Zed"}`})

		AssertNil(x.engine.Fill(ctx, FillOptions{Store: other, Season: 2025}))
		AssertEqual(x.store.Puts("players"), []string{"3"})

		all, _ := x.players.GetAll(ctx)
		AssertEqual(pids(all), []string{"7:Zed"})

		pid, _ := x.players.Add(ctx, &player{Name: "New"})
		AssertEqual(pid, int64(8))
		AssertEqual(x.engine.Store(), store.Store(other))
	})
}

func TestEngine_FillSwitchesStoreEvenWhenLoadFails(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		broken := newCountingStore(store.NewMemory())
		broken.setFailScan(errors.New("disk gone"))

		err := x.engine.Fill(ctx, FillOptions{Store: broken, Season: 2025})
		AssertTrue(errors.Is(err, ErrStore))
		AssertEqual(x.engine.Status(), StatusError)
		AssertEqual(x.engine.Store(), store.Store(broken))
	})
}

func TestEngine_FlushFailureKeepsPending(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		x.players.Put(ctx, &player{Pid: 1, Name: "Ann2"})
		AssertNil(x.players.Delete(ctx, 2))

		x.store.setFailWrite(errors.New("quota exceeded"))
		err := x.engine.Flush(ctx)
		AssertTrue(errors.Is(err, ErrStore))
		AssertEqual(x.engine.Status(), StatusReady)

		x.store.setFailWrite(nil)
		x.store.reset()
		AssertNil(x.engine.Flush(ctx))
		AssertEqual(x.store.Puts("players"), []string{"1"})
		AssertEqual(x.store.Deletes("players"), []string{"2"})
	})
}

func TestEngine_FlushIdempotent(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		AssertNil(x.engine.Flush(ctx))
		AssertEqual(x.store.Calls(), 0)

		x.players.Add(ctx, &player{Name: "Cid"})
		AssertNil(x.engine.Flush(ctx))
		AssertNil(x.engine.Flush(ctx))
		AssertEqual(x.store.Calls(), 1)
	})
}

func TestEngine_WriteDuringFlushSurvives(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		x.players.Put(ctx, &player{Pid: 1, Name: "v1"})

		// grab the snapshot the way a flush does, then write again before it clears
		x.engine.mutex.RLock()
		_, mark, err := x.players.pending()
		x.engine.mutex.RUnlock()
		AssertNil(err)

		x.players.Put(ctx, &player{Pid: 1, Name: "v2"})

		x.engine.mutex.Lock()
		x.players.flushed(mark)
		x.engine.mutex.Unlock()

		AssertNil(x.engine.Flush(ctx))
		AssertEqual(x.store.Puts("players"), []string{"1"})
		payload, _, _ := x.store.Get(ctx, "players", store.IntKey(1))
		AssertEqual(string(payload), `{"pid":1,"name":"v2","tid":0}`)
	})
}

func TestEngine_AccessorsWaitForFill(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		gate := make(chan struct{})
		x.store.setGate(gate)

		fillDone := make(chan error, 1)
		go func() {
			fillDone <- x.engine.Fill(ctx, FillOptions{Season: 2025})
		}()
		for x.engine.Status() != StatusFilling {
			time.Sleep(time.Millisecond)
		}

		got := make(chan int, 1)
		go func() {
			n, _ := x.players.Count(ctx)
			got <- n
		}()

		select {
		case <-got:
			t.Fatal("accessor returned while filling")
		case <-time.After(20 * time.Millisecond):
		}

		Alternative("Cancelled waiter", func(a *A) {
			short, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
			defer cancel()
			_, err := x.players.GetAll(short)
			AssertTrue(errors.Is(err, context.DeadlineExceeded))
		})

		x.store.setGate(nil)
		close(gate)
		AssertNil(<-fillDone)
		AssertEqual(<-got, 2)
	})
}

func TestEngine_ConcurrentFlushes(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		wg := &sync.WaitGroup{}
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				x.players.Add(ctx, &player{Name: "P"})
				x.engine.Flush(ctx)
			}()
		}
		wg.Wait()
		AssertNil(x.engine.Flush(ctx))

		AssertEqual(len(x.store.Puts("players")), 20)
		n, _ := x.players.Count(ctx)
		AssertEqual(n, 22)
	})
}

func TestEngine_Close(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()
		x.players.Add(ctx, &player{Name: "Cid"})

		AssertNil(x.engine.Close(ctx))
		AssertEqual(x.engine.Status(), StatusEmpty)
		AssertEqual(x.store.Puts("players"), []string{"3"})

		_, err := x.players.GetAll(ctx)
		AssertTrue(errors.Is(err, ErrNotReady))
	})
}

func TestEngine_PeerMaxID(t *testing.T) {
	ctx := context.Background()
	memory := store.NewMemory()
	seed(memory, "games", map[int64]string{50: `{"pid":50}`})
	seed(memory, "schedule", map[int64]string{10: `{"pid":10}`})

	e := New(memory, nil)
	_, err := Register(e, Schema[int64, *player]{
		Name:       "games",
		PrimaryKey: func(p *player) (int64, bool) { return p.Pid, true },
		TrackMaxID: true,
		MaxIDPeer:  "schedule",
	})
	AssertNil(err)
	schedule, err := Register(e, Schema[int64, *player]{
		Name:          "schedule",
		PrimaryKey:    func(p *player) (int64, bool) { return p.Pid, p.Pid != 0 },
		SetPrimaryKey: func(p *player, gid int64) { p.Pid = gid },
		AutoIncrement: true,
		MaxIDPeer:     "games",
		Loader:        LoadAll[*player],
	})
	AssertNil(err)

	AssertNil(e.Fill(ctx, FillOptions{Season: 1}))
	gid, err := schedule.Add(ctx, &player{})
	AssertNil(err)
	AssertEqual(gid, int64(51))
}

func TestRegister_Validation(t *testing.T) {
	e := New(store.NewMemory(), nil)

	_, err := Register(e, Schema[string, *setting]{
		Name:          "bad",
		PrimaryKey:    func(s *setting) (string, bool) { return s.Key, true },
		AutoIncrement: true,
	})
	AssertTrue(errors.Is(err, ErrInvalidSchema))

	_, err = Register(e, Schema[int64, *player]{
		Name:       "bad",
		PrimaryKey: func(p *player) (int64, bool) { return p.Pid, true },
		Clearable:  true,
	})
	AssertTrue(errors.Is(err, ErrInvalidSchema))

	def := IndexDefinition[*player]{Name: "shared", Key: func(p *player) index.Key { return index.K(p.Tid) }}
	_, err = Register(e, Schema[int64, *player]{
		Name:       "a",
		PrimaryKey: func(p *player) (int64, bool) { return p.Pid, true },
		Indexes:    []IndexDefinition[*player]{def},
	})
	AssertNil(err)
	_, err = Register(e, Schema[int64, *player]{
		Name:       "b",
		PrimaryKey: func(p *player) (int64, bool) { return p.Pid, true },
		Indexes:    []IndexDefinition[*player]{def},
	})
	AssertTrue(errors.Is(err, ErrInvalidSchema))

	AssertNil(e.Fill(context.Background(), FillOptions{Season: 1}))
	_, err = Register(e, Schema[int64, *player]{
		Name:       "late",
		PrimaryKey: func(p *player) (int64, bool) { return p.Pid, true },
	})
	AssertTrue(errors.Is(err, ErrInvalidSchema))
}

func TestDynamic(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		d, err := x.engine.Dynamic("players")
		AssertNil(err)

		key, err := d.Insert(ctx, []byte(`{"name":"Web","tid":9}`))
		AssertNil(err)
		AssertEqual(key, "3")

		payload, found, err := d.Get(ctx, "3")
		AssertNil(err)
		AssertTrue(found)
		AssertEqual(string(payload), `{"pid":3,"name":"Web","tid":9}`)

		q, err := DecodeKey([]byte(`9`))
		AssertNil(err)
		rows, err := d.IndexFind(ctx, "playersByTid", Only(q))
		AssertNil(err)
		AssertEqual(len(rows), 1)

		key, err = d.Key([]byte(`{"pid":7,"name":"Key"}`))
		AssertNil(err)
		AssertEqual(key, "7")
		_, err = d.Key([]byte(`{"name":"Nobody"}`))
		AssertTrue(errors.Is(err, ErrMissingKey))

		AssertNil(d.Remove(ctx, "3"))
		_, _, err = d.Get(ctx, "abc")
		AssertTrue(errors.Is(err, ErrNotFound))

		_, err = x.engine.Dynamic("nope")
		AssertTrue(errors.Is(err, ErrUnknownCollection))

		_, err = DecodeKey([]byte(`[1,{"a":1}]`))
		AssertNotNil(err)

		q, err = DecodeKey([]byte(" [2025, \"BOS\"]"))
		AssertNil(err)
		AssertEqual(q.String(), `[2025,"BOS"]`)
	})
}

func TestDynamic_NullRow(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		d, err := x.engine.Dynamic("players")
		AssertNil(err)

		_, err = d.Insert(ctx, []byte(`null`))
		AssertTrue(errors.Is(err, ErrMissingKey))
		_, err = d.Put(ctx, []byte(`null`))
		AssertTrue(errors.Is(err, ErrMissingKey))
		_, err = d.Key([]byte(`null`))
		AssertTrue(errors.Is(err, ErrMissingKey))

		_, err = x.players.Put(ctx, nil)
		AssertTrue(errors.Is(err, ErrMissingKey))
		_, err = x.players.Add(ctx, nil)
		AssertTrue(errors.Is(err, ErrMissingKey))

		n, err := x.players.Count(ctx)
		AssertNil(err)
		AssertEqual(n, 2)
	})
}

func TestEngine_InvalidIndexKey(t *testing.T) {
	Environment(t, func(x *fixture) {
		ctx := context.Background()
		x.fill()

		_, err := x.players.IndexGetAll(ctx, "playersByTid", Between(index.K(0, nil), index.K(9)))
		AssertTrue(errors.Is(err, index.ErrInvalidKey))

		_, _, err = x.players.IndexGet(ctx, "playersByTid", index.K(struct{}{}))
		AssertTrue(errors.Is(err, index.ErrInvalidKey))

		rows, err := x.players.IndexGetAll(ctx, "playersByTid", Between(index.K(0), index.K(1)))
		AssertNil(err)
		AssertEqual(len(rows), 2)
	})
}

func BenchmarkIndexRebuild(b *testing.B) {
	ctx := context.Background()
	e := New(store.NewMemory(), nil)
	players, _ := Register(e, Schema[int64, *player]{
		Name:          "players",
		PrimaryKey:    func(p *player) (int64, bool) { return p.Pid, p.Pid != 0 },
		SetPrimaryKey: func(p *player, pid int64) { p.Pid = pid },
		AutoIncrement: true,
		Indexes: []IndexDefinition[*player]{
			{Name: "playersByTid", Key: func(p *player) index.Key { return index.K(p.Tid) }},
		},
	})
	e.Fill(ctx, FillOptions{Season: 1})
	for i := 0; i < 5000; i++ {
		players.Add(ctx, &player{Tid: i % 30})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		players.Put(ctx, &player{Pid: 1, Tid: i % 30})
		players.IndexGetAll(ctx, "playersByTid", Only(index.K(3)))
	}
}
