package services

import (
	"errors"

	"github.com/alphabatem/common/context"
	"gorm.io/gorm"

	"github.com/gonzalobrunoldis/fixtureapp-sub000/dto"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/model"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/services/repositories"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/shared"
)

type UserService struct {
	context.DefaultService

	users *repositories.UserRepository
}

const USER_SVC = "user_svc"

func (svc UserService) Id() string {
	return USER_SVC
}

func (svc *UserService) Configure(ctx *context.Context) error {
	return svc.DefaultService.Configure(ctx)
}

func (svc *UserService) Start() error {
	db := svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.users = repositories.NewUserRepository(db.Db())
	return nil
}

func (svc *UserService) GetUserProfile(userID string) (*dto.UserProfileResponse, error) {
	user, err := svc.users.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError(err, "User not found")
		}
		return nil, shared.NewInternalError(err, "Failed to load user")
	}

	return &dto.UserProfileResponse{
		UserID:    user.ID,
		Email:     user.Email,
		Username:  user.Username,
		Role:      user.Role,
		LastLogin: user.LastLogin,
		CreatedAt: user.CreatedAt,
	}, nil
}

func (svc *UserService) FollowTeam(userID string, req dto.FollowTeamRequest) error {
	follow := &model.TeamFollow{
		UserID:   userID,
		TeamID:   req.TeamID,
		TeamName: req.TeamName,
		TeamLogo: req.TeamLogo,
	}
	if err := svc.users.FollowTeam(follow); err != nil {
		return shared.NewInternalError(err, "Failed to follow team")
	}
	return nil
}

func (svc *UserService) UnfollowTeam(userID string, teamID int) error {
	removed, err := svc.users.UnfollowTeam(userID, teamID)
	if err != nil {
		return shared.NewInternalError(err, "Failed to unfollow team")
	}
	if !removed {
		return shared.NewNotFoundError(nil, "Team is not followed")
	}
	return nil
}

func (svc *UserService) GetFollowedTeams(userID string) (*dto.FollowListResponse, error) {
	follows, err := svc.users.GetFollows(userID)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to load followed teams")
	}

	teams := make([]dto.FollowedTeam, 0, len(follows))
	for _, f := range follows {
		teams = append(teams, dto.FollowedTeam{
			TeamID:     f.TeamID,
			TeamName:   f.TeamName,
			TeamLogo:   f.TeamLogo,
			FollowedAt: f.CreatedAt,
		})
	}

	return &dto.FollowListResponse{Teams: teams, Count: len(teams)}, nil
}

func (svc *UserService) GetFollowedTeamIDs(userID string) ([]int, error) {
	ids, err := svc.users.GetFollowedTeamIDs(userID)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to load followed teams")
	}
	return ids, nil
}

func (svc *UserService) GetPreferences(userID string) (*dto.PreferencesResponse, error) {
	prefs, err := svc.users.GetPreferences(userID)
	if err != nil {
		return nil, shared.NewInternalError(err, "Failed to load preferences")
	}
	if prefs == nil {
		return &dto.PreferencesResponse{}, nil
	}

	return &dto.PreferencesResponse{
		LeagueID:     prefs.LeagueID,
		Season:       prefs.Season,
		Statuses:     prefs.Statuses,
		OnlyFollowed: prefs.OnlyFollowed,
		UpdatedAt:    prefs.UpdatedAt,
	}, nil
}

func (svc *UserService) UpdatePreferences(userID string, req dto.UpdatePreferencesRequest) (*dto.PreferencesResponse, error) {
	prefs := &model.FilterPreference{
		UserID:       userID,
		LeagueID:     req.LeagueID,
		Season:       req.Season,
		Statuses:     req.Statuses,
		OnlyFollowed: req.OnlyFollowed,
	}
	if err := svc.users.SavePreferences(prefs); err != nil {
		return nil, shared.NewInternalError(err, "Failed to save preferences")
	}

	return svc.GetPreferences(userID)
}
