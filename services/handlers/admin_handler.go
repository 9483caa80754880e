package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/gonzalobrunoldis/fixtureapp-sub000/dto"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/shared"
)

type AdminHandler struct {
	fixtureSvc FixtureServiceInterface
	limiterSvc RateLimitServiceInterface
}

func NewAdminHandler(fixtureSvc FixtureServiceInterface, limiterSvc RateLimitServiceInterface) *AdminHandler {
	return &AdminHandler{
		fixtureSvc: fixtureSvc,
		limiterSvc: limiterSvc,
	}
}

// @Summary Rate limiter status
// @Description Snapshot of both quota windows and the request queue.
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} shared.Response{data=dto.RateLimitStatus}
// @Router /api/v1/admin/ratelimit [get]
func (h *AdminHandler) GetRateLimitStatus(c *fiber.Ctx) error {
	return shared.ResponseOK(c, h.limiterSvc.Status())
}

// @Summary Clear the request queue
// @Description Reject every pending queued upstream request immediately.
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} shared.Response{data=map[string]int}
// @Router /api/v1/admin/ratelimit/clear-queue [post]
func (h *AdminHandler) ClearQueue(c *fiber.Ctx) error {
	dropped := h.limiterSvc.ClearQueue()
	return shared.ResponseOK(c, map[string]int{"dropped": dropped})
}

// @Summary Sweep expired cache entries
// @Description Remove every non-terminal fixture past its status TTL.
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Success 200 {object} shared.Response{data=dto.SweepResponse}
// @Router /api/v1/admin/cache/sweep [post]
func (h *AdminHandler) SweepCache(c *fiber.Ctx) error {
	removed, err := h.fixtureSvc.SweepExpired()
	if err != nil {
		return shared.NewInternalError(err, "Cache sweep failed")
	}

	return shared.ResponseOK(c, dto.SweepResponse{Removed: removed})
}

// @Summary Purge a league season from the cache
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param purgeRequest body dto.PurgeRequest true "League and season to purge"
// @Success 200 {object} shared.Response{data=map[string]int64}
// @Router /api/v1/admin/cache/purge [post]
func (h *AdminHandler) PurgeCache(c *fiber.Ctx) error {
	var req dto.PurgeRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request body")
	}

	if err := req.Validate(); err != nil {
		validationResp := dto.CreateValidationErrorResponse(err)
		return c.Status(fiber.StatusBadRequest).JSON(validationResp)
	}

	removed, err := h.fixtureSvc.PurgeLeagueSeason(req.LeagueID, req.Season)
	if err != nil {
		return shared.NewInternalError(err, "Cache purge failed")
	}

	return shared.ResponseOK(c, map[string]int64{"removed": removed})
}

// @Summary Invalidate one cached fixture
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "Fixture ID"
// @Success 200 {object} shared.Response{data=nil}
// @Router /api/v1/admin/cache/fixtures/{id} [delete]
func (h *AdminHandler) InvalidateFixture(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return shared.NewBadRequestError(err, "Invalid fixture id")
	}

	removed, err := h.fixtureSvc.InvalidateFixture(id)
	if err != nil {
		return shared.NewInternalError(err, "Failed to invalidate fixture")
	}
	if !removed {
		return shared.NewNotFoundError(nil, "Fixture not cached")
	}

	return shared.ResponseOK(c, nil)
}
