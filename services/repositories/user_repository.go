package repositories

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gonzalobrunoldis/fixtureapp-sub000/model"
)

type UserRepository struct {
	BaseRepository
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func (ds *UserRepository) CreateUser(user *model.User) error {
	if user.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		user.ID = id.String()
	}
	return ds.db.Create(user).Error
}

func (ds *UserRepository) GetUserByID(id string) (*model.User, error) {
	var user model.User
	if err := ds.db.Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (ds *UserRepository) GetUserByEmail(email string) (*model.User, error) {
	var user model.User
	if err := ds.db.Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (ds *UserRepository) GetUserByUsername(username string) (*model.User, error) {
	var user model.User
	if err := ds.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (ds *UserRepository) EmailOrUsernameExists(email, username string) (bool, error) {
	var count int64
	err := ds.db.Model(&model.User{}).
		Where("email = ? OR username = ?", email, username).
		Count(&count).Error
	return count > 0, err
}

func (ds *UserRepository) UpdateLastLogin(userID string, at time.Time) error {
	return ds.db.Model(&model.User{}).Where("id = ?", userID).
		Update("last_login", at).Error
}

// ==================== TEAM FOLLOWS ====================

// FollowTeam is idempotent: following an already-followed team refreshes
// the stored name and logo instead of failing on the unique index.
func (ds *UserRepository) FollowTeam(follow *model.TeamFollow) error {
	if follow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		follow.ID = id.String()
	}

	return ds.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "team_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"team_name", "team_logo"}),
	}).Create(follow).Error
}

func (ds *UserRepository) UnfollowTeam(userID string, teamID int) (bool, error) {
	result := ds.db.Where("user_id = ? AND team_id = ?", userID, teamID).
		Delete(&model.TeamFollow{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (ds *UserRepository) GetFollows(userID string) ([]model.TeamFollow, error) {
	var follows []model.TeamFollow
	if err := ds.db.Where("user_id = ?", userID).
		Order("created_at ASC").Find(&follows).Error; err != nil {
		return nil, err
	}
	return follows, nil
}

func (ds *UserRepository) GetFollowedTeamIDs(userID string) ([]int, error) {
	var teamIDs []int
	if err := ds.db.Model(&model.TeamFollow{}).Where("user_id = ?", userID).
		Pluck("team_id", &teamIDs).Error; err != nil {
		return nil, err
	}
	return teamIDs, nil
}

// ==================== FILTER PREFERENCES ====================

func (ds *UserRepository) GetPreferences(userID string) (*model.FilterPreference, error) {
	var prefs model.FilterPreference
	if err := ds.db.Where("user_id = ?", userID).First(&prefs).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &prefs, nil
}

func (ds *UserRepository) SavePreferences(prefs *model.FilterPreference) error {
	if prefs.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		prefs.ID = id.String()
	}

	return ds.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"league_id", "season", "statuses", "only_followed", "updated_at"}),
	}).Create(prefs).Error
}
