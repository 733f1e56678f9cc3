package cache

import (
	"context"
	"io"
	"log"
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/zengm-games/zengm-sub016/index"
	"github.com/zengm-games/zengm-sub016/store"
)

type player struct {
	Pid  int64  `json:"pid"`
	Name string `json:"name"`
	Tid  int    `json:"tid"`
}

type team struct {
	Tid    int64  `json:"tid"`
	Abbrev string `json:"abbrev"`
	Season int    `json:"season"`
}

type setting struct {
	Key   string `json:"key"`
	Value int    `json:"value"`
}

// countingStore records every batch written and can be told to fail.
type countingStore struct {
	store.Store

	mutex     *sync.Mutex
	writes    []store.Batch
	failWrite error
	failScan  error
	gate      chan struct{}
}

func newCountingStore(s store.Store) *countingStore {
	return &countingStore{
		Store: s,
		mutex: &sync.Mutex{},
	}
}

func (s *countingStore) Write(ctx context.Context, batch store.Batch) error {
	s.mutex.Lock()
	s.writes = append(s.writes, batch)
	fail := s.failWrite
	s.mutex.Unlock()
	if fail != nil {
		return fail
	}
	return s.Store.Write(ctx, batch)
}

func (s *countingStore) Scan(ctx context.Context, collection string, f func(key store.Key, payload []byte) error) error {
	s.mutex.Lock()
	fail, gate := s.failScan, s.gate
	s.mutex.Unlock()
	if gate != nil {
		<-gate
	}
	if fail != nil {
		return fail
	}
	return s.Store.Scan(ctx, collection, f)
}

func (s *countingStore) setFailWrite(err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.failWrite = err
}

func (s *countingStore) setFailScan(err error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.failScan = err
}

func (s *countingStore) setGate(gate chan struct{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.gate = gate
}

func (s *countingStore) reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.writes = nil
}

// Calls returns how many batches reached the store.
func (s *countingStore) Calls() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.writes)
}

// Puts returns the keys put into collection across every batch, in write order.
func (s *countingStore) Puts(collection string) []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	keys := []string{}
	for _, batch := range s.writes {
		if changes, ok := batch[collection]; ok {
			for _, r := range changes.Puts {
				keys = append(keys, r.Key.String())
			}
		}
	}
	return keys
}

func (s *countingStore) Deletes(collection string) []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	keys := []string{}
	for _, batch := range s.writes {
		if changes, ok := batch[collection]; ok {
			for _, k := range changes.Deletes {
				keys = append(keys, k.String())
			}
		}
	}
	return keys
}

type fixture struct {
	store    *countingStore
	engine   *Engine
	players  *Collection[int64, *player]
	teams    *Collection[int64, *team]
	settings *Collection[string, *setting]
	events   *Collection[int64, *player]
}

func seed(s store.Store, collection string, rows map[int64]string) {
	changes := &store.Changes{}
	keys := make([]int64, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		changes.Puts = append(changes.Puts, store.Record{Key: store.IntKey(k), Payload: []byte(rows[k])})
	}
	if err := s.Write(context.Background(), store.Batch{collection: changes}); err != nil {
		panic(err)
	}
}

func Environment(t *testing.T, f func(x *fixture)) {
	memory := store.NewMemory()
	seed(memory, "players", map[int64]string{
		1: `{"pid":1,"name":"Ann","tid":0}`,
		2: `{"pid":2,"name":"Bob","tid":1}`,
	})
	seed(memory, "teams", map[int64]string{
		0: `{"tid":0,"abbrev":"ATL","season":2025}`,
		1: `{"tid":1,"abbrev":"BOS","season":2025}`,
	})

	x := &fixture{
		store: newCountingStore(memory),
	}
	x.engine = New(x.store, &Options{
		Logger: log.New(io.Discard, "", 0),
	})

	var err error
	x.players, err = Register(x.engine, Schema[int64, *player]{
		Name:          "players",
		PrimaryKey:    func(p *player) (int64, bool) { return p.Pid, p.Pid != 0 },
		SetPrimaryKey: func(p *player, pid int64) { p.Pid = pid },
		AutoIncrement: true,
		Loader:        LoadAll[*player],
		Deletable:     true,
		Indexes: []IndexDefinition[*player]{
			{
				Name: "playersByTid",
				Key:  func(p *player) index.Key { return index.K(p.Tid) },
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	x.teams, err = Register(x.engine, Schema[int64, *team]{
		Name:       "teams",
		PrimaryKey: func(t *team) (int64, bool) { return t.Tid, true },
		Loader:     LoadAll[*team],
		Indexes: []IndexDefinition[*team]{
			{
				Name:   "teamsByAbbrev",
				Key:    func(t *team) index.Key { return index.K(t.Abbrev) },
				Unique: true,
			},
			{
				Name: "teamsBySeasonTid",
				Key:  func(t *team) index.Key { return index.K(t.Season, t.Tid) },
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	x.settings, err = Register(x.engine, Schema[string, *setting]{
		Name:       "settings",
		PrimaryKey: func(s *setting) (string, bool) { return s.Key, s.Key != "" },
		Loader:     LoadAll[*setting],
		Deletable:  true,
		Clearable:  true,
	})
	if err != nil {
		t.Fatal(err)
	}

	x.events, err = Register(x.engine, Schema[int64, *player]{
		Name:          "events",
		PrimaryKey:    func(p *player) (int64, bool) { return p.Pid, p.Pid != 0 },
		SetPrimaryKey: func(p *player, eid int64) { p.Pid = eid },
		AutoIncrement: true,
	})
	if err != nil {
		t.Fatal(err)
	}

	f(x)
}

func (x *fixture) fill() {
	if err := x.engine.Fill(context.Background(), FillOptions{Session: "test", Season: 2025}); err != nil {
		panic(err)
	}
	x.store.reset()
}

func pids(players []*player) []string {
	result := []string{}
	for _, p := range players {
		result = append(result, strconv.FormatInt(p.Pid, 10)+":"+p.Name)
	}
	return result
}
