package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/gonzalobrunoldis/fixtureapp-sub000/dto"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/model"
)

type AuthServiceInterface interface {
	Register(req dto.RegisterRequest) (*dto.RegisterResponse, error)
	Login(req dto.LoginRequest) (*dto.LoginResponse, error)
	RequiredAuth() fiber.Handler
	RequireRole(role string) fiber.Handler
}

type FixtureServiceInterface interface {
	GetFixture(ctx context.Context, id int64, force bool) (*model.Fixture, bool, error)
	GetFixtures(ctx context.Context, ids []int64, force bool) ([]model.Fixture, int, error)
	SearchFixtures(ctx context.Context, query dto.FixtureQuery) ([]model.Fixture, error)
	GetStandings(ctx context.Context, leagueID, season int, force bool) (*dto.StandingsResponse, error)
	GetLeagues() ([]model.League, error)
	SweepExpired() (int, error)
	PurgeLeagueSeason(leagueID, season int) (int64, error)
	InvalidateFixture(id int64) (bool, error)
}

type UserServiceInterface interface {
	GetUserProfile(userID string) (*dto.UserProfileResponse, error)
	FollowTeam(userID string, req dto.FollowTeamRequest) error
	UnfollowTeam(userID string, teamID int) error
	GetFollowedTeams(userID string) (*dto.FollowListResponse, error)
	GetFollowedTeamIDs(userID string) ([]int, error)
	GetPreferences(userID string) (*dto.PreferencesResponse, error)
	UpdatePreferences(userID string, req dto.UpdatePreferencesRequest) (*dto.PreferencesResponse, error)
}

type RateLimitServiceInterface interface {
	Status() dto.RateLimitStatus
	ClearQueue() int
}
