package seeders

import (
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gonzalobrunoldis/fixtureapp-sub000/model"
)

// LeagueSeeder loads the competitions the app surfaces. IDs match the
// upstream provider's league ids.
type LeagueSeeder struct {
	db *gorm.DB
}

func NewLeagueSeeder(db *gorm.DB) *LeagueSeeder {
	return &LeagueSeeder{db: db}
}

func (s *LeagueSeeder) SeedLeagues() error {
	leagues := []model.League{
		{ID: 2, Name: "UEFA Champions League", Country: "World", LogoURL: "https://media.api-sports.io/football/leagues/2.png"},
		{ID: 3, Name: "UEFA Europa League", Country: "World", LogoURL: "https://media.api-sports.io/football/leagues/3.png"},
		{ID: 39, Name: "Premier League", Country: "England", LogoURL: "https://media.api-sports.io/football/leagues/39.png"},
		{ID: 61, Name: "Ligue 1", Country: "France", LogoURL: "https://media.api-sports.io/football/leagues/61.png"},
		{ID: 78, Name: "Bundesliga", Country: "Germany", LogoURL: "https://media.api-sports.io/football/leagues/78.png"},
		{ID: 128, Name: "Liga Profesional Argentina", Country: "Argentina", LogoURL: "https://media.api-sports.io/football/leagues/128.png"},
		{ID: 135, Name: "Serie A", Country: "Italy", LogoURL: "https://media.api-sports.io/football/leagues/135.png"},
		{ID: 140, Name: "La Liga", Country: "Spain", LogoURL: "https://media.api-sports.io/football/leagues/140.png"},
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "country", "logo_url", "updated_at"}),
	}).Create(&leagues).Error
	if err != nil {
		return err
	}

	log.Printf("Seeded %d leagues", len(leagues))
	return nil
}
