package dto

import (
	"time"

	"github.com/gonzalobrunoldis/fixtureapp-sub000/model"
)

// FixtureQuery describes a filter-based fixtures lookup. At least one of
// league, team or a date constraint must be set.
type FixtureQuery struct {
	LeagueID int       `json:"league_id" query:"league"`
	Season   int       `json:"season" query:"season"`
	TeamID   int       `json:"team_id" query:"team"`
	Date     string    `json:"date" query:"date"` // YYYY-MM-DD
	From     string    `json:"from" query:"from"`
	To       string    `json:"to" query:"to"`
	Status   string    `json:"status" query:"status"`
	Next     int       `json:"next" query:"next"`
	Last     int       `json:"last" query:"last"`
	Fetched  time.Time `json:"-"`
}

func (q FixtureQuery) IsEmpty() bool {
	return q.LeagueID == 0 && q.Season == 0 && q.TeamID == 0 &&
		q.Date == "" && q.From == "" && q.To == "" &&
		q.Next == 0 && q.Last == 0
}

type FixtureResponse struct {
	Fixture  *model.Fixture `json:"fixture"`
	CacheHit bool           `json:"cache_hit"`
}

type FixtureListResponse struct {
	Fixtures  []model.Fixture `json:"fixtures"`
	Count     int             `json:"count"`
	FromCache int             `json:"from_cache"`
}

type StandingsResponse struct {
	LeagueID      int         `json:"league_id"`
	Season        int         `json:"season"`
	Standings     interface{} `json:"standings"`
	LastUpdatedAt time.Time   `json:"last_updated_at"`
	CacheHit      bool        `json:"cache_hit"`
}

type SweepResponse struct {
	Removed int `json:"removed"`
}

type PurgeRequest struct {
	LeagueID int `json:"league_id" validate:"required,gt=0"`
	Season   int `json:"season" validate:"required,gt=0"`
}

func (r PurgeRequest) Validate() error {
	return validate.Struct(r)
}
