package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gonzalobrunoldis/fixtureapp-sub000/dto"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/shared"
)

type FixtureHandler struct {
	fixtureSvc FixtureServiceInterface
}

func NewFixtureHandler(fixtureSvc FixtureServiceInterface) *FixtureHandler {
	return &FixtureHandler{
		fixtureSvc: fixtureSvc,
	}
}

// @Summary Get fixture by id
// @Description Return a single fixture, served from the cache when fresh. Use force=true to always refetch.
// @Tags fixtures
// @Accept json
// @Produce json
// @Param id path int true "Fixture ID"
// @Param force query bool false "Bypass the cache freshness check"
// @Success 200 {object} shared.Response{data=dto.FixtureResponse}
// @Router /api/v1/fixtures/{id} [get]
func (h *FixtureHandler) GetFixture(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return shared.NewBadRequestError(err, "Invalid fixture id")
	}

	fixture, cacheHit, err := h.fixtureSvc.GetFixture(c.Context(), id, forceRequested(c))
	if err != nil {
		return err
	}
	if fixture == nil {
		return shared.NewNotFoundError(nil, "Fixture not found")
	}

	return shared.ResponseOK(c, dto.FixtureResponse{
		Fixture:  fixture,
		CacheHit: cacheHit,
	})
}

// @Summary Refresh a fixture
// @Description Always refetch one fixture from the provider and overwrite the cache.
// @Tags fixtures
// @Accept json
// @Produce json
// @Param id path int true "Fixture ID"
// @Success 200 {object} shared.Response{data=dto.FixtureResponse}
// @Router /api/v1/fixtures/{id}/refresh [post]
func (h *FixtureHandler) RefreshFixture(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return shared.NewBadRequestError(err, "Invalid fixture id")
	}

	fixture, _, err := h.fixtureSvc.GetFixture(c.Context(), id, true)
	if err != nil {
		return err
	}
	if fixture == nil {
		return shared.NewNotFoundError(nil, "Fixture not found")
	}

	return shared.ResponseOK(c, dto.FixtureResponse{Fixture: fixture})
}

// @Summary Get fixtures by id list
// @Description Return multiple fixtures by comma-separated ids, sorted ascending by id.
// @Tags fixtures
// @Accept json
// @Produce json
// @Param ids query string true "Comma-separated fixture ids"
// @Param force query bool false "Bypass the cache freshness check"
// @Success 200 {object} shared.Response{data=dto.FixtureListResponse}
// @Router /api/v1/fixtures [get]
func (h *FixtureHandler) GetFixtures(c *fiber.Ctx) error {
	raw := c.Query("ids")
	if raw == "" {
		return shared.NewBadRequestError(nil, "ids query parameter is required")
	}

	ids, err := parseIDList(raw)
	if err != nil {
		return shared.NewBadRequestError(err, "Invalid ids parameter")
	}

	fixtures, fromCache, err := h.fixtureSvc.GetFixtures(c.Context(), ids, forceRequested(c))
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, dto.FixtureListResponse{
		Fixtures:  fixtures,
		Count:     len(fixtures),
		FromCache: fromCache,
	})
}

// @Summary Search fixtures
// @Description Filter fixtures by league, season, team, date or status. Results are written through to the cache.
// @Tags fixtures
// @Accept json
// @Produce json
// @Param league query int false "League id"
// @Param season query int false "Season year"
// @Param team query int false "Team id"
// @Param date query string false "Match date (YYYY-MM-DD)"
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Param status query string false "Status short code"
// @Success 200 {object} shared.Response{data=dto.FixtureListResponse}
// @Router /api/v1/fixtures/search [get]
func (h *FixtureHandler) SearchFixtures(c *fiber.Ctx) error {
	var query dto.FixtureQuery
	if err := c.QueryParser(&query); err != nil {
		return shared.NewBadRequestError(err, "Invalid query parameters")
	}
	if query.IsEmpty() {
		return shared.NewBadRequestError(nil, "At least one filter is required")
	}

	fixtures, err := h.fixtureSvc.SearchFixtures(c.Context(), query)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, dto.FixtureListResponse{
		Fixtures: fixtures,
		Count:    len(fixtures),
	})
}

// @Summary Get league standings
// @Description Return the standings table for a league season, cached for one hour.
// @Tags fixtures
// @Accept json
// @Produce json
// @Param league query int true "League id"
// @Param season query int true "Season year"
// @Param force query bool false "Bypass the cache freshness check"
// @Success 200 {object} shared.Response{data=dto.StandingsResponse}
// @Router /api/v1/standings [get]
func (h *FixtureHandler) GetStandings(c *fiber.Ctx) error {
	leagueID := c.QueryInt("league")
	season := c.QueryInt("season")
	if leagueID <= 0 || season <= 0 {
		return shared.NewBadRequestError(nil, "league and season query parameters are required")
	}

	resp, err := h.fixtureSvc.GetStandings(c.Context(), leagueID, season, forceRequested(c))
	if err != nil {
		return err
	}
	if resp == nil {
		return shared.NewNotFoundError(nil, "Standings not found")
	}

	return shared.ResponseOK(c, resp)
}

// @Summary List leagues
// @Description Return the competitions available in the app.
// @Tags fixtures
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response{data=[]model.League}
// @Router /api/v1/leagues [get]
func (h *FixtureHandler) GetLeagues(c *fiber.Ctx) error {
	leagues, err := h.fixtureSvc.GetLeagues()
	if err != nil {
		return err
	}
	return shared.ResponseOK(c, leagues)
}

// forceRequested accepts both ?force=true and ?refresh=1 spellings.
func forceRequested(c *fiber.Ctx) bool {
	return c.QueryBool("force") || c.QueryBool("refresh")
}

func parseIDList(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fiber.NewError(http.StatusBadRequest, "invalid id: "+part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
