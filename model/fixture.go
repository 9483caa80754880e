package model

import (
	"time"

	"gorm.io/datatypes"
)

// Fixture status short codes as reported by API-Football.
const (
	StatusTBD = "TBD" // time to be defined
	StatusNS  = "NS"  // not started

	StatusFirstHalf  = "1H"
	StatusHalftime   = "HT"
	StatusSecondHalf = "2H"
	StatusExtraTime  = "ET"
	StatusBreakTime  = "BT" // break before extra time
	StatusPenalties  = "P"
	StatusLive       = "LIVE"

	StatusSuspended   = "SUSP"
	StatusInterrupted = "INT"
	StatusPostponed   = "PST"

	StatusFinished      = "FT"
	StatusFinishedAET   = "AET"
	StatusFinishedPens  = "PEN"
	StatusCancelled     = "CANC"
	StatusAbandoned     = "ABD"
	StatusTechnicalLoss = "AWD"
	StatusWalkover      = "WO"
)

const defaultTTL = time.Hour

// statusTTL is the single source of truth for how long a cached fixture
// stays fresh. A zero value marks a terminal status: the record never goes
// stale and never triggers an upstream refresh on its own.
var statusTTL = map[string]time.Duration{
	StatusNS:  time.Hour,
	StatusTBD: 2 * time.Hour,

	StatusFirstHalf:  15 * time.Second,
	StatusSecondHalf: 15 * time.Second,
	StatusExtraTime:  15 * time.Second,
	StatusPenalties:  15 * time.Second,
	StatusLive:       15 * time.Second,

	StatusHalftime:  5 * time.Minute,
	StatusBreakTime: 5 * time.Minute,

	// Suspended matches can stay down for hours; interruptions usually
	// resolve within minutes.
	StatusSuspended:   30 * time.Minute,
	StatusInterrupted: 5 * time.Minute,
	StatusPostponed:   30 * time.Minute,

	StatusFinished:      0,
	StatusFinishedAET:   0,
	StatusFinishedPens:  0,
	StatusCancelled:     0,
	StatusAbandoned:     0,
	StatusTechnicalLoss: 0,
	StatusWalkover:      0,
}

// StatusTTL returns the cache validity window for a fixture status.
// neverStale is true for terminal statuses; the returned duration is
// meaningless in that case. Unknown statuses fall back to one hour.
func StatusTTL(status string) (ttl time.Duration, neverStale bool) {
	d, ok := statusTTL[status]
	if !ok {
		return defaultTTL, false
	}
	if d == 0 {
		return 0, true
	}
	return d, false
}

// IsTerminalStatus reports whether the fixture can no longer change state.
func IsTerminalStatus(status string) bool {
	_, neverStale := StatusTTL(status)
	return neverStale
}

// Fixture is a cached snapshot of a single upstream fixture.
type Fixture struct {
	ID       int64  `json:"id" gorm:"primaryKey"`
	LeagueID int    `json:"league_id" gorm:"not null;index:idx_fixtures_league_season"`
	Season   int    `json:"season" gorm:"not null;index:idx_fixtures_league_season"`
	Status   string `json:"status" gorm:"size:8;not null;index"`
	Elapsed  *int   `json:"elapsed,omitempty"`

	Date time.Time `json:"date" gorm:"not null;index"`

	HomeTeamID   int    `json:"home_team_id"`
	HomeTeamName string `json:"home_team_name" gorm:"size:128"`
	HomeTeamLogo string `json:"home_team_logo" gorm:"size:512"`
	AwayTeamID   int    `json:"away_team_id"`
	AwayTeamName string `json:"away_team_name" gorm:"size:128"`
	AwayTeamLogo string `json:"away_team_logo" gorm:"size:512"`

	HomeGoals    *int `json:"home_goals,omitempty"`
	AwayGoals    *int `json:"away_goals,omitempty"`
	HalftimeHome *int `json:"halftime_home,omitempty"`
	HalftimeAway *int `json:"halftime_away,omitempty"`
	FulltimeHome *int `json:"fulltime_home,omitempty"`
	FulltimeAway *int `json:"fulltime_away,omitempty"`

	// Raw upstream response item, kept verbatim for detail views and
	// replaced wholesale on every refresh.
	Payload datatypes.JSON `json:"payload,omitempty" gorm:"type:jsonb"`

	// Wall-clock time of the last cache write, never the upstream's own
	// timestamp. Staleness checks run against this field.
	LastUpdatedAt time.Time `json:"last_updated_at" gorm:"not null;index"`
	CreatedAt     time.Time `json:"created_at" gorm:"not null"`
}

// IsStale evaluates the fixture against the status TTL table.
func (f *Fixture) IsStale(now time.Time) bool {
	ttl, neverStale := StatusTTL(f.Status)
	if neverStale {
		return false
	}
	return now.Sub(f.LastUpdatedAt) > ttl
}

// StandingSet caches one standings table per (league, season) pair.
type StandingSet struct {
	ID            string         `json:"id" gorm:"primaryKey;type:text"`
	LeagueID      int            `json:"league_id" gorm:"not null;index"`
	Season        int            `json:"season" gorm:"not null"`
	Payload       datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	LastUpdatedAt time.Time      `json:"last_updated_at" gorm:"not null"`
	CreatedAt     time.Time      `json:"created_at" gorm:"not null"`
}

// League is seeded reference data for the competitions the app surfaces.
type League struct {
	ID        int       `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	Country   string    `json:"country" gorm:"size:64"`
	LogoURL   string    `json:"logo_url" gorm:"size:512"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}
