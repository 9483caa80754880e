package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureItem = `{
	"fixture": {
		"id": 1035045,
		"date": "2026-03-14T20:00:00+00:00",
		"status": {"short": "1H", "elapsed": 27}
	},
	"league": {"id": 39, "season": 2025},
	"teams": {
		"home": {"id": 40, "name": "Liverpool", "logo": "https://media.api-sports.io/football/teams/40.png"},
		"away": {"id": 50, "name": "Manchester City", "logo": "https://media.api-sports.io/football/teams/50.png"}
	},
	"goals": {"home": 1, "away": 0},
	"score": {
		"halftime": {"home": null, "away": null},
		"fulltime": {"home": null, "away": null},
		"extratime": {"home": null, "away": null},
		"penalty": {"home": null, "away": null}
	}
}`

func envelopeWith(items string, results int) string {
	return fmt.Sprintf(`{
		"get": "fixtures",
		"parameters": {"id": "1035045"},
		"errors": [],
		"results": %d,
		"paging": {"current": 1, "total": 1},
		"response": [%s]
	}`, results, items)
}

func newTestFootballService(t *testing.T, handler http.HandlerFunc) *FootballService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewFootballService(server.URL, "test-key", server.Client())
}

func TestGetFixtureByID(t *testing.T) {
	var gotPath, gotKey string
	svc := newTestFootballService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotKey = r.Header.Get("x-rapidapi-key")
		_, _ = w.Write([]byte(envelopeWith(fixtureItem, 1)))
	})

	fixture, err := svc.GetFixtureByID(context.Background(), 1035045)
	require.NoError(t, err)
	require.NotNil(t, fixture)

	assert.Equal(t, "/fixtures?id=1035045", gotPath)
	assert.Equal(t, "test-key", gotKey)

	assert.Equal(t, int64(1035045), fixture.ID)
	assert.Equal(t, 39, fixture.LeagueID)
	assert.Equal(t, 2025, fixture.Season)
	assert.Equal(t, "1H", fixture.Status)
	require.NotNil(t, fixture.Elapsed)
	assert.Equal(t, 27, *fixture.Elapsed)
	assert.Equal(t, "Liverpool", fixture.HomeTeamName)
	require.NotNil(t, fixture.HomeGoals)
	assert.Equal(t, 1, *fixture.HomeGoals)
	assert.Nil(t, fixture.HalftimeHome)
	assert.NotEmpty(t, fixture.Payload, "raw payload must be retained")
}

func TestGetFixtureByID_NotFoundUpstream(t *testing.T) {
	svc := newTestFootballService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(envelopeWith("", 0)))
	})

	fixture, err := svc.GetFixtureByID(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, fixture)
}

func TestGetFixturesByIDs(t *testing.T) {
	var gotQuery string
	svc := newTestFootballService(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("ids")
		_, _ = w.Write([]byte(envelopeWith(fixtureItem, 1)))
	})

	fixtures, err := svc.GetFixturesByIDs(context.Background(), []int64{101, 102, 103})
	require.NoError(t, err)
	assert.Len(t, fixtures, 1)
	assert.Equal(t, "101-102-103", gotQuery, "ids are dash-separated on the wire")
}

func TestGetFixturesByIDs_TooMany(t *testing.T) {
	svc := newTestFootballService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	ids := make([]int64, 21)
	for i := range ids {
		ids[i] = int64(i + 1)
	}

	_, err := svc.GetFixturesByIDs(context.Background(), ids)
	require.Error(t, err)
}

func TestGet_UpstreamRateLimit(t *testing.T) {
	svc := newTestFootballService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-requests-Remaining", "0")
		w.Header().Set("X-RateLimit-Remaining", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := svc.GetFixtureByID(context.Background(), 1)

	var limitErr *UpstreamRateLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 0, limitErr.RemainingDay)
	assert.Equal(t, 3, limitErr.RemainingMinute)
}

func TestGet_UpstreamServerError(t *testing.T) {
	svc := newTestFootballService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := svc.GetFixtureByID(context.Background(), 1)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, http.StatusBadGateway, upErr.StatusCode)
}

func TestGet_ApiReportedErrors(t *testing.T) {
	svc := newTestFootballService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"get": "fixtures",
			"parameters": {"id": "x"},
			"errors": {"id": "The id field must be a number."},
			"results": 0,
			"paging": {"current": 1, "total": 1},
			"response": []
		}`))
	})

	_, err := svc.GetFixtureByID(context.Background(), 1)

	var invalidErr *InvalidResponseError
	require.ErrorAs(t, err, &invalidErr)
	assert.Contains(t, invalidErr.Reason, "id")
}

func TestGetStandings(t *testing.T) {
	svc := newTestFootballService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/standings", r.URL.Path)
		assert.Equal(t, "39", r.URL.Query().Get("league"))
		assert.Equal(t, "2025", r.URL.Query().Get("season"))
		_, _ = w.Write([]byte(`{
			"get": "standings",
			"parameters": {"league": "39", "season": "2025"},
			"errors": [],
			"results": 1,
			"paging": {"current": 1, "total": 1},
			"response": [{"league": {"id": 39, "standings": [[]]}}]
		}`))
	})

	payload, err := svc.GetStandings(context.Background(), 39, 2025)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"standings"`)
}
