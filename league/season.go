package league

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-json-experiment/json"
	"github.com/tidwall/gjson"

	"github.com/zengm-games/zengm-sub016/store"
)

var ErrSeasonNotSet = errors.New("season not set in gameAttributes")

// ResolveSeason reads the current season stored in gameAttributes.
func ResolveSeason(ctx context.Context, reader store.Reader) (int, error) {
	payload, found, err := reader.Get(ctx, "gameAttributes", store.StringKey("season"))
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrSeasonNotSet
	}

	value := gjson.GetBytes(payload, "value")
	switch {
	case !value.Exists() || value.Type == gjson.Null:
		return 0, ErrSeasonNotSet
	case value.Type != gjson.Number:
		return 0, fmt.Errorf("decode season: %s is not a number", value.Raw)
	}
	season := int(value.Int())
	if season == 0 {
		return 0, ErrSeasonNotSet
	}
	return season, nil
}

// Season returns the season the cache was filled for.
func (l *League) Season() int {
	return l.Engine.Scope().Season
}

// SetAttribute stores value under key in gameAttributes.
func (l *League) SetAttribute(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode attribute %s: %w", key, err)
	}
	_, err = l.GameAttributes.Put(ctx, &GameAttribute{Key: key, Value: data})
	return err
}

// Attribute decodes the value stored under key into out.
func (l *League) Attribute(ctx context.Context, key string, out any) (bool, error) {
	attribute, found, err := l.GameAttributes.Get(ctx, key)
	if err != nil || !found {
		return found, err
	}
	if err := json.Unmarshal(attribute.Value, out); err != nil {
		return true, fmt.Errorf("decode attribute %s: %w", key, err)
	}
	return true, nil
}

type SeedOptions struct {
	Season int
	Teams  []Team
}

var DefaultTeams = []Team{
	{Tid: 0, Region: "Atlanta", Name: "Gold Club", Abbrev: "ATL"},
	{Tid: 1, Region: "Boston", Name: "Massacres", Abbrev: "BOS"},
	{Tid: 2, Region: "Chicago", Name: "Whirlwinds", Abbrev: "CHI", Cid: 0, Did: 1},
	{Tid: 3, Region: "Denver", Name: "High", Abbrev: "DEN", Cid: 1, Did: 2},
	{Tid: 4, Region: "Los Angeles", Name: "Earthquakes", Abbrev: "LA", Cid: 1, Did: 3},
	{Tid: 5, Region: "Seattle", Name: "Symphony", Abbrev: "SEA", Cid: 1, Did: 3},
}

// Seed writes the initial rows of a new league: its game attributes, its teams and one
// teamSeasons row per team.
func Seed(ctx context.Context, st store.Store, options SeedOptions) error {
	if options.Season == 0 {
		return ErrSeasonNotSet
	}
	teams := options.Teams
	if len(teams) == 0 {
		teams = DefaultTeams
	}

	attributes := &store.Changes{}
	for _, attribute := range []struct {
		key   string
		value any
	}{
		{"season", options.Season},
		{"startingSeason", options.Season},
		{"phase", 0},
		{"userTid", 0},
		{"numTeams", len(teams)},
	} {
		value, err := json.Marshal(attribute.value)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(&GameAttribute{Key: attribute.key, Value: value})
		if err != nil {
			return err
		}
		attributes.Puts = append(attributes.Puts, store.Record{Key: store.StringKey(attribute.key), Payload: payload})
	}

	teamRows := &store.Changes{}
	teamSeasons := &store.Changes{}
	for i, t := range teams {
		payload, err := json.Marshal(&t)
		if err != nil {
			return err
		}
		teamRows.Puts = append(teamRows.Puts, store.Record{Key: store.IntKey(t.Tid), Payload: payload})

		rid := int64(i + 1)
		payload, err = json.Marshal(&TeamSeason{Rid: rid, Tid: int(t.Tid), Season: options.Season})
		if err != nil {
			return err
		}
		teamSeasons.Puts = append(teamSeasons.Puts, store.Record{Key: store.IntKey(rid), Payload: payload})
	}

	return st.Write(ctx, store.Batch{
		"gameAttributes": attributes,
		"teams":          teamRows,
		"teamSeasons":    teamSeasons,
	})
}
