package repositories

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gonzalobrunoldis/fixtureapp-sub000/model"
)

// FixtureRepository owns fixture and standings cache persistence. Callers
// decide what a read error means; this layer just reports it.
type FixtureRepository struct {
	BaseRepository
}

func NewFixtureRepository(db *gorm.DB) *FixtureRepository {
	return &FixtureRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

func (ds *FixtureRepository) Get(id int64) (*model.Fixture, error) {
	var fixture model.Fixture
	if err := ds.db.Where("id = ?", id).First(&fixture).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &fixture, nil
}

// GetMany returns whichever of the requested fixtures are present; absent
// ids are simply missing from the result.
func (ds *FixtureRepository) GetMany(ids []int64) (map[int64]model.Fixture, error) {
	if len(ids) == 0 {
		return map[int64]model.Fixture{}, nil
	}

	var fixtures []model.Fixture
	if err := ds.db.Where("id IN ?", ids).Find(&fixtures).Error; err != nil {
		return nil, err
	}

	result := make(map[int64]model.Fixture, len(fixtures))
	for _, f := range fixtures {
		result[f.ID] = f
	}
	return result, nil
}

func (ds *FixtureRepository) GetByDateRange(from, to time.Time) ([]model.Fixture, error) {
	var fixtures []model.Fixture
	if err := ds.db.Where("date >= ? AND date <= ?", from, to).
		Order("date ASC, id ASC").Find(&fixtures).Error; err != nil {
		return nil, err
	}
	return fixtures, nil
}

// Put upserts a fixture by id, stamping last_updated_at with the wall-clock
// write time and replacing the prior payload wholesale.
func (ds *FixtureRepository) Put(fixture *model.Fixture) error {
	now := time.Now().UTC()
	fixture.LastUpdatedAt = now
	if fixture.CreatedAt.IsZero() {
		fixture.CreatedAt = now
	}

	return ds.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(fixture).Error
}

func (ds *FixtureRepository) PutMany(fixtures []model.Fixture) error {
	if len(fixtures) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for i := range fixtures {
		fixtures[i].LastUpdatedAt = now
		if fixtures[i].CreatedAt.IsZero() {
			fixtures[i].CreatedAt = now
		}
	}

	return ds.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&fixtures).Error
}

func (ds *FixtureRepository) Delete(id int64) (bool, error) {
	result := ds.db.Where("id = ?", id).Delete(&model.Fixture{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (ds *FixtureRepository) DeleteMany(ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := ds.db.Where("id IN ?", ids).Delete(&model.Fixture{})
	return result.RowsAffected, result.Error
}

func (ds *FixtureRepository) DeleteByLeagueSeason(leagueID, season int) (int64, error) {
	result := ds.db.Where("league_id = ? AND season = ?", leagueID, season).
		Delete(&model.Fixture{})
	return result.RowsAffected, result.Error
}

// SweepCandidates loads the staleness-relevant columns of every cached
// fixture so the caller can evaluate each against the TTL policy without
// pulling payloads into memory.
func (ds *FixtureRepository) SweepCandidates() ([]model.Fixture, error) {
	var fixtures []model.Fixture
	if err := ds.db.Select("id", "status", "last_updated_at").
		Find(&fixtures).Error; err != nil {
		return nil, err
	}
	return fixtures, nil
}

// ==================== STANDINGS ====================

func standingSetID(leagueID, season int) string {
	return fmt.Sprintf("%d:%d", leagueID, season)
}

func (ds *FixtureRepository) GetStandings(leagueID, season int) (*model.StandingSet, error) {
	var set model.StandingSet
	if err := ds.db.Where("id = ?", standingSetID(leagueID, season)).
		First(&set).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &set, nil
}

func (ds *FixtureRepository) PutStandings(set *model.StandingSet) error {
	now := time.Now().UTC()
	set.ID = standingSetID(set.LeagueID, set.Season)
	set.LastUpdatedAt = now
	if set.CreatedAt.IsZero() {
		set.CreatedAt = now
	}

	return ds.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(set).Error
}

// ==================== LEAGUES ====================

func (ds *FixtureRepository) GetLeagues() ([]model.League, error) {
	var leagues []model.League
	if err := ds.db.Order("id ASC").Find(&leagues).Error; err != nil {
		return nil, err
	}
	return leagues, nil
}
