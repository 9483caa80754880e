package model

import "time"

type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:text;not null"`
	Email     string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Username  string    `json:"username" gorm:"uniqueIndex;size:64;not null"`
	Password  string    `json:"-" gorm:"size:255;not null"`
	Role      string    `json:"role" gorm:"size:16;default:user;not null"`
	LastLogin time.Time `json:"last_login"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

// TeamFollow links a user to an upstream team they follow.
type TeamFollow struct {
	ID        string    `json:"id" gorm:"primaryKey;type:text;not null"`
	UserID    string    `json:"user_id" gorm:"not null;uniqueIndex:idx_follows_user_team"`
	TeamID    int       `json:"team_id" gorm:"not null;uniqueIndex:idx_follows_user_team"`
	TeamName  string    `json:"team_name" gorm:"size:128;not null"`
	TeamLogo  string    `json:"team_logo" gorm:"size:512"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}

// FilterPreference stores the fixture-list filters a user last applied.
type FilterPreference struct {
	ID           string    `json:"id" gorm:"primaryKey;type:text;not null"`
	UserID       string    `json:"user_id" gorm:"uniqueIndex;not null"`
	LeagueID     int       `json:"league_id"`
	Season       int       `json:"season"`
	Statuses     string    `json:"statuses" gorm:"size:128"` // comma-separated status codes
	OnlyFollowed bool      `json:"only_followed" gorm:"default:false;not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"not null"`
}
