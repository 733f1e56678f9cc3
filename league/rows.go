package league

import (
	"github.com/go-json-experiment/json/jsontext"
)

// Special team ids of players that are not on a roster.
const (
	PlayerFreeAgent = -1
	PlayerUndrafted = -2
	PlayerRetired   = -3
)

type GameAttribute struct {
	Key   string         `json:"key"`
	Value jsontext.Value `json:"value"`
}

type Born struct {
	Year int    `json:"year"`
	Loc  string `json:"loc"`
}

type Contract struct {
	Amount int `json:"amount"`
	Exp    int `json:"exp"`
}

type Draft struct {
	Round int `json:"round"`
	Pick  int `json:"pick"`
	Tid   int `json:"tid"`
	Year  int `json:"year"`
}

type PlayerRatings struct {
	Season int    `json:"season"`
	Pos    string `json:"pos"`
	Ovr    int    `json:"ovr"`
	Pot    int    `json:"pot"`
}

type Player struct {
	Pid       int64           `json:"pid"`
	Tid       int             `json:"tid"`
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Born      Born            `json:"born"`
	Contract  Contract        `json:"contract"`
	Draft     Draft           `json:"draft"`
	Ratings   []PlayerRatings `json:"ratings,omitempty"`
	Injury    string          `json:"injury,omitempty"`
}

type ReleasedPlayer struct {
	Rid      int64    `json:"rid"`
	Pid      int64    `json:"pid"`
	Tid      int      `json:"tid"`
	Contract Contract `json:"contract"`
}

type Team struct {
	Tid      int64  `json:"tid"`
	Cid      int    `json:"cid"`
	Did      int    `json:"did"`
	Region   string `json:"region"`
	Name     string `json:"name"`
	Abbrev   string `json:"abbrev"`
	Disabled bool   `json:"disabled,omitempty"`
}

type TeamSeason struct {
	Rid              int64   `json:"rid"`
	Tid              int     `json:"tid"`
	Season           int     `json:"season"`
	Won              int     `json:"won"`
	Lost             int     `json:"lost"`
	PlayoffRoundsWon int     `json:"playoffRoundsWon"`
	Hype             float64 `json:"hype"`
	Pop              float64 `json:"pop"`
}

type TeamStats struct {
	Rid      int64 `json:"rid"`
	Tid      int   `json:"tid"`
	Season   int   `json:"season"`
	Playoffs bool  `json:"playoffs"`
	Gp       int   `json:"gp"`
	Pts      int   `json:"pts"`
	OppPts   int   `json:"oppPts"`
}

type GameTeam struct {
	Tid int `json:"tid"`
	Pts int `json:"pts"`
}

type Game struct {
	Gid      int64      `json:"gid"`
	Season   int        `json:"season"`
	Day      int        `json:"day"`
	Playoffs bool       `json:"playoffs"`
	Teams    []GameTeam `json:"teams"`
}

type ScheduleGame struct {
	Gid     int64 `json:"gid"`
	Day     int   `json:"day"`
	HomeTid int   `json:"homeTid"`
	AwayTid int   `json:"awayTid"`
}

type Event struct {
	Eid    int64   `json:"eid"`
	Season int     `json:"season"`
	Type   string  `json:"type"`
	Text   string  `json:"text"`
	Pids   []int64 `json:"pids,omitempty"`
	Tids   []int   `json:"tids,omitempty"`
}

type PlayerFeat struct {
	Fid      int64          `json:"fid"`
	Pid      int64          `json:"pid"`
	Tid      int            `json:"tid"`
	Season   int            `json:"season"`
	Playoffs bool           `json:"playoffs"`
	Stats    map[string]int `json:"stats,omitempty"`
}

type DraftPick struct {
	Dpid        int64 `json:"dpid"`
	Tid         int   `json:"tid"`
	OriginalTid int   `json:"originalTid"`
	Round       int   `json:"round"`
	Season      int   `json:"season"`
	Pick        int   `json:"pick"`
}

type Negotiation struct {
	Pid             int64 `json:"pid"`
	Tid             int   `json:"tid"`
	ResigningPlayer bool  `json:"resigning"`
}

type Matchup struct {
	Home GameTeam `json:"home"`
	Away GameTeam `json:"away"`
}

type PlayoffSeries struct {
	Season       int64       `json:"season"`
	CurrentRound int         `json:"currentRound"`
	Series       [][]Matchup `json:"series"`
}
