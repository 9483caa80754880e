package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonzalobrunoldis/fixtureapp-sub000/dto"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/model"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/shared"
)

type stubFixtureService struct {
	fixture  *model.Fixture
	fixtures []model.Fixture
	cacheHit bool
	err      error

	gotID    int64
	gotIDs   []int64
	gotForce bool
	gotQuery dto.FixtureQuery
}

func (s *stubFixtureService) GetFixture(_ context.Context, id int64, force bool) (*model.Fixture, bool, error) {
	s.gotID = id
	s.gotForce = force
	return s.fixture, s.cacheHit, s.err
}

func (s *stubFixtureService) GetFixtures(_ context.Context, ids []int64, force bool) ([]model.Fixture, int, error) {
	s.gotIDs = ids
	s.gotForce = force
	return s.fixtures, 0, s.err
}

func (s *stubFixtureService) SearchFixtures(_ context.Context, query dto.FixtureQuery) ([]model.Fixture, error) {
	s.gotQuery = query
	return s.fixtures, s.err
}

func (s *stubFixtureService) GetStandings(_ context.Context, leagueID, season int, _ bool) (*dto.StandingsResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.StandingsResponse{LeagueID: leagueID, Season: season, CacheHit: s.cacheHit}, nil
}

func (s *stubFixtureService) GetLeagues() ([]model.League, error) {
	return []model.League{{ID: 39, Name: "Premier League"}}, s.err
}

func (s *stubFixtureService) SweepExpired() (int, error) {
	return 3, s.err
}

func (s *stubFixtureService) PurgeLeagueSeason(leagueID, season int) (int64, error) {
	return 12, s.err
}

func (s *stubFixtureService) InvalidateFixture(id int64) (bool, error) {
	s.gotID = id
	return true, s.err
}

func newTestApp(stub *stubFixtureService) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if appErr, ok := shared.GetAppError(err); ok {
				return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
			}
			return shared.ResponseInternalError(c, err)
		},
	})

	h := NewFixtureHandler(stub)
	app.Get("/api/v1/fixtures/search", h.SearchFixtures)
	app.Get("/api/v1/fixtures/:id", h.GetFixture)
	app.Get("/api/v1/fixtures", h.GetFixtures)
	app.Get("/api/v1/standings", h.GetStandings)
	return app
}

func decodeBody(t *testing.T, resp *http.Response) shared.Response {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out shared.Response
	require.NoError(t, sonic.Unmarshal(body, &out))
	return out
}

func TestGetFixtureEndpoint(t *testing.T) {
	stub := &stubFixtureService{
		fixture: &model.Fixture{
			ID:     1035045,
			Status: model.StatusFinished,
			Date:   time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC),
		},
		cacheHit: true,
	}
	app := newTestApp(stub)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/fixtures/1035045?force=true", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1035045), stub.gotID)
	assert.True(t, stub.gotForce)

	body := decodeBody(t, resp)
	assert.Equal(t, 200, body.Code)
}

func TestGetFixtureEndpoint_InvalidID(t *testing.T) {
	app := newTestApp(&stubFixtureService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/fixtures/abc", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetFixtureEndpoint_NotFound(t *testing.T) {
	app := newTestApp(&stubFixtureService{fixture: nil})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/fixtures/42", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetFixturesEndpoint_ParsesIDList(t *testing.T) {
	stub := &stubFixtureService{fixtures: []model.Fixture{{ID: 1}, {ID: 2}}}
	app := newTestApp(stub)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/fixtures?ids=2,1,%203", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int64{2, 1, 3}, stub.gotIDs)
}

func TestGetFixturesEndpoint_MissingIDs(t *testing.T) {
	app := newTestApp(&stubFixtureService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/fixtures", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchFixturesEndpoint(t *testing.T) {
	stub := &stubFixtureService{fixtures: []model.Fixture{{ID: 1}}}
	app := newTestApp(stub)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/fixtures/search?league=39&season=2025&status=NS", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 39, stub.gotQuery.LeagueID)
	assert.Equal(t, 2025, stub.gotQuery.Season)
	assert.Equal(t, "NS", stub.gotQuery.Status)
}

func TestSearchFixturesEndpoint_NoFilters(t *testing.T) {
	app := newTestApp(&stubFixtureService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/fixtures/search", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetStandingsEndpoint_RequiresLeagueAndSeason(t *testing.T) {
	app := newTestApp(&stubFixtureService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/standings?league=39", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
