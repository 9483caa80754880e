package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"

	"github.com/gonzalobrunoldis/fixtureapp-sub000/services/handlers"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/shared"
)

type HttpService struct {
	context.DefaultService

	authSvc    *AuthService
	userSvc    *UserService
	fixtureSvc *FixtureService
	limiterSvc *RateLimitService
	monSvc     *MonitoringService

	port int
	app  *fiber.App
}

const HTTP_SVC = "http_svc"

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *context.Context) error {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		var err error
		if svc.port, err = strconv.Atoi(port); err != nil {
			return err
		}
	} else {
		svc.port = 8000
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	svc.authSvc = svc.Service(AUTH_SVC).(*AuthService)
	svc.userSvc = svc.Service(USER_SVC).(*UserService)
	svc.fixtureSvc = svc.Service(FIXTURE_SVC).(*FixtureService)
	svc.limiterSvc = svc.Service(RATE_LIMIT_SVC).(*RateLimitService)
	if mon, ok := svc.Service(MONITORING_SVC).(*MonitoringService); ok {
		svc.monSvc = mon
	}

	svc.app = fiber.New(fiber.Config{
		AppName:      "fixtureapp",
		JSONEncoder:  shared.JSONEncoder,
		JSONDecoder:  shared.JSONDecoder,
		ErrorHandler: svc.handleError,
	})

	svc.app.Use(recover.New())
	svc.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	if svc.monSvc != nil {
		svc.app.Use(MonitoringMiddleware(svc.monSvc))
	}

	svc.app.Get("/ping", svc.ping)

	authHandler := handlers.NewAuthHandler(svc.authSvc)
	userHandler := handlers.NewUserHandler(svc.userSvc, svc.fixtureSvc)
	fixtureHandler := handlers.NewFixtureHandler(svc.fixtureSvc)
	adminHandler := handlers.NewAdminHandler(svc.fixtureSvc, svc.limiterSvc)

	v1 := svc.app.Group("/api/v1")
	v1.Get("/ping", svc.ping)

	v1.Post("/register", authHandler.Register)
	v1.Post("/login", authHandler.Login)

	v1.Get("/leagues", fixtureHandler.GetLeagues)
	v1.Get("/standings", fixtureHandler.GetStandings)
	v1.Get("/fixtures/search", fixtureHandler.SearchFixtures)
	v1.Get("/fixtures/:id", fixtureHandler.GetFixture)
	v1.Post("/fixtures/:id/refresh", fixtureHandler.RefreshFixture)
	v1.Get("/fixtures", fixtureHandler.GetFixtures)

	user := v1.Group("/user", svc.authSvc.RequiredAuth())
	user.Get("/profile", userHandler.GetProfile)
	user.Get("/fixtures", userHandler.GetMyFixtures)
	user.Get("/follows", userHandler.GetFollows)
	user.Post("/follows", userHandler.FollowTeam)
	user.Delete("/follows/:teamId", userHandler.UnfollowTeam)
	user.Get("/preferences", userHandler.GetPreferences)
	user.Put("/preferences", userHandler.UpdatePreferences)

	admin := v1.Group("/admin", svc.authSvc.RequiredAuth(), svc.authSvc.RequireRole(shared.RoleAdmin))
	admin.Get("/ratelimit", adminHandler.GetRateLimitStatus)
	admin.Post("/ratelimit/clear-queue", adminHandler.ClearQueue)
	admin.Post("/cache/sweep", adminHandler.SweepCache)
	admin.Post("/cache/purge", adminHandler.PurgeCache)
	admin.Delete("/cache/fixtures/:id", adminHandler.InvalidateFixture)

	svc.app.Use(func(c *fiber.Ctx) error {
		return shared.ResponseNotFound(c)
	})

	log.WithField("port", svc.port).Info("HTTP server starting")
	return svc.app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) Shutdown() {
	if svc.app != nil {
		_ = svc.app.Shutdown()
	}
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Accept  json
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set("Cache-Control", "max-age=10")

	return shared.ResponseOK(c, "pong")
}

// handleError maps service errors onto response codes. Quota and upstream
// failures keep their kind so clients can tell "try again later" from "not
// available".
func (svc *HttpService) handleError(c *fiber.Ctx, err error) error {
	if appErr, ok := shared.GetAppError(err); ok {
		return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
	}

	var dailyErr *DailyQuotaExceededError
	if errors.As(err, &dailyErr) {
		c.Set("Retry-After", dailyErr.ResetAt.Format(http.TimeFormat))
		return shared.ResponseJSON(c, http.StatusTooManyRequests, "Daily request quota exceeded", fiber.Map{
			"reset_at": dailyErr.ResetAt,
		})
	}

	var minuteErr *MinuteQuotaExceededError
	if errors.As(err, &minuteErr) {
		c.Set("Retry-After", minuteErr.ResetAt.Format(http.TimeFormat))
		return shared.ResponseJSON(c, http.StatusTooManyRequests, "Request quota exceeded, retry shortly", fiber.Map{
			"reset_at": minuteErr.ResetAt,
		})
	}

	var queueErr *QueueFullError
	if errors.As(err, &queueErr) {
		return shared.ResponseJSON(c, http.StatusServiceUnavailable, "Too many pending requests", nil)
	}

	var upstreamLimitErr *UpstreamRateLimitError
	if errors.As(err, &upstreamLimitErr) {
		return shared.ResponseJSON(c, http.StatusTooManyRequests, "Upstream rate limit hit", nil)
	}

	var upstreamErr *UpstreamError
	var invalidErr *InvalidResponseError
	if errors.As(err, &upstreamErr) || errors.As(err, &invalidErr) {
		return shared.ResponseJSON(c, http.StatusBadGateway, "Upstream data provider error", nil)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return shared.ResponseJSON(c, fiberErr.Code, fiberErr.Message, nil)
	}

	log.WithError(err).Error("Unhandled request error")
	return shared.ResponseInternalError(c, err)
}
