package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/gonzalobrunoldis/fixtureapp-sub000/dto"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/model"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/shared"
)

type UserHandler struct {
	userSvc    UserServiceInterface
	fixtureSvc FixtureServiceInterface
}

func NewUserHandler(userSvc UserServiceInterface, fixtureSvc FixtureServiceInterface) *UserHandler {
	return &UserHandler{
		userSvc:    userSvc,
		fixtureSvc: fixtureSvc,
	}
}

// @Summary Get user profile
// @Tags user
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} shared.Response{data=dto.UserProfileResponse}
// @Router /api/v1/user/profile [get]
func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)

	resp, err := h.userSvc.GetUserProfile(userID)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, resp)
}

// @Summary Follow a team
// @Tags user
// @Accept json
// @Produce json
// @Security Bearer
// @Param followRequest body dto.FollowTeamRequest true "Team to follow"
// @Success 201 {object} shared.Response{data=nil}
// @Router /api/v1/user/follows [post]
func (h *UserHandler) FollowTeam(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)

	var req dto.FollowTeamRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request body")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	if err := h.userSvc.FollowTeam(userID, req); err != nil {
		return err
	}

	return shared.ResponseCreated(c, nil)
}

// @Summary Unfollow a team
// @Tags user
// @Accept json
// @Produce json
// @Security Bearer
// @Param teamId path int true "Team id"
// @Success 200 {object} shared.Response{data=nil}
// @Router /api/v1/user/follows/{teamId} [delete]
func (h *UserHandler) UnfollowTeam(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)

	teamID, err := strconv.Atoi(c.Params("teamId"))
	if err != nil || teamID <= 0 {
		return shared.NewBadRequestError(err, "Invalid team id")
	}

	if err := h.userSvc.UnfollowTeam(userID, teamID); err != nil {
		return err
	}

	return shared.ResponseOK(c, nil)
}

// @Summary List followed teams
// @Tags user
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} shared.Response{data=dto.FollowListResponse}
// @Router /api/v1/user/follows [get]
func (h *UserHandler) GetFollows(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)

	resp, err := h.userSvc.GetFollowedTeams(userID)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, resp)
}

// @Summary Get filter preferences
// @Tags user
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} shared.Response{data=dto.PreferencesResponse}
// @Router /api/v1/user/preferences [get]
func (h *UserHandler) GetPreferences(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)

	resp, err := h.userSvc.GetPreferences(userID)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, resp)
}

// @Summary Update filter preferences
// @Tags user
// @Accept json
// @Produce json
// @Security Bearer
// @Param preferencesRequest body dto.UpdatePreferencesRequest true "Filter preferences"
// @Success 200 {object} shared.Response{data=dto.PreferencesResponse}
// @Router /api/v1/user/preferences [put]
func (h *UserHandler) UpdatePreferences(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)

	var req dto.UpdatePreferencesRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request body")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	resp, err := h.userSvc.UpdatePreferences(userID, req)
	if err != nil {
		return err
	}

	return shared.ResponseOK(c, resp)
}

// @Summary Get personalized fixtures
// @Description Return fixtures matching the user's saved filter preferences, optionally restricted to followed teams.
// @Tags user
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} shared.Response{data=dto.FixtureListResponse}
// @Router /api/v1/user/fixtures [get]
func (h *UserHandler) GetMyFixtures(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)

	prefs, err := h.userSvc.GetPreferences(userID)
	if err != nil {
		return err
	}
	if prefs.LeagueID == 0 || prefs.Season == 0 {
		return shared.NewBadRequestError(nil, "Set league and season preferences first")
	}

	fixtures, err := h.fixtureSvc.SearchFixtures(c.Context(), dto.FixtureQuery{
		LeagueID: prefs.LeagueID,
		Season:   prefs.Season,
	})
	if err != nil {
		return err
	}

	if prefs.Statuses != "" {
		fixtures = filterByStatus(fixtures, prefs.Statuses)
	}
	if prefs.OnlyFollowed {
		teamIDs, err := h.userSvc.GetFollowedTeamIDs(userID)
		if err != nil {
			return err
		}
		fixtures = filterByTeams(fixtures, teamIDs)
	}

	return shared.ResponseOK(c, dto.FixtureListResponse{
		Fixtures: fixtures,
		Count:    len(fixtures),
	})
}

func filterByStatus(fixtures []model.Fixture, csv string) []model.Fixture {
	allowed := map[string]struct{}{}
	for _, s := range strings.Split(csv, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			allowed[strings.ToUpper(s)] = struct{}{}
		}
	}

	out := fixtures[:0]
	for _, f := range fixtures {
		if _, ok := allowed[f.Status]; ok {
			out = append(out, f)
		}
	}
	return out
}

func filterByTeams(fixtures []model.Fixture, teamIDs []int) []model.Fixture {
	followed := map[int]struct{}{}
	for _, id := range teamIDs {
		followed[id] = struct{}{}
	}

	out := fixtures[:0]
	for _, f := range fixtures {
		if _, home := followed[f.HomeTeamID]; home {
			out = append(out, f)
			continue
		}
		if _, away := followed[f.AwayTeamID]; away {
			out = append(out, f)
		}
	}
	return out
}
