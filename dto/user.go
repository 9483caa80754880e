package dto

import "time"

type UserProfileResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	LastLogin time.Time `json:"last_login"`
	CreatedAt time.Time `json:"created_at"`
}

type FollowTeamRequest struct {
	TeamID   int    `json:"team_id" validate:"required,gt=0"`
	TeamName string `json:"team_name" validate:"required,max=128"`
	TeamLogo string `json:"team_logo" validate:"omitempty,url,max=512"`
}

func (r FollowTeamRequest) Validate() error {
	return validate.Struct(r)
}

type FollowedTeam struct {
	TeamID     int       `json:"team_id"`
	TeamName   string    `json:"team_name"`
	TeamLogo   string    `json:"team_logo"`
	FollowedAt time.Time `json:"followed_at"`
}

type FollowListResponse struct {
	Teams []FollowedTeam `json:"teams"`
	Count int            `json:"count"`
}

type UpdatePreferencesRequest struct {
	LeagueID     int    `json:"league_id" validate:"omitempty,gt=0"`
	Season       int    `json:"season" validate:"omitempty,gte=2008"`
	Statuses     string `json:"statuses" validate:"omitempty,max=128"`
	OnlyFollowed bool   `json:"only_followed"`
}

func (r UpdatePreferencesRequest) Validate() error {
	return validate.Struct(r)
}

type PreferencesResponse struct {
	LeagueID     int       `json:"league_id"`
	Season       int       `json:"season"`
	Statuses     string    `json:"statuses"`
	OnlyFollowed bool      `json:"only_followed"`
	UpdatedAt    time.Time `json:"updated_at"`
}
