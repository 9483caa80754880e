package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gonzalobrunoldis/fixtureapp-sub000/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.TeamFollow{},
		&model.FilterPreference{},
		&model.League{},
		&model.Fixture{},
		&model.StandingSet{},
	))

	return db
}

func testFixture(id int64, status string) *model.Fixture {
	return &model.Fixture{
		ID:           id,
		LeagueID:     39,
		Season:       2025,
		Status:       status,
		Date:         time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC),
		HomeTeamID:   40,
		HomeTeamName: "Liverpool",
		AwayTeamID:   50,
		AwayTeamName: "Manchester City",
		Payload:      []byte(`{"fixture":{"id":1}}`),
	}
}

func TestFixtureRepository_PutStampsLastUpdatedAt(t *testing.T) {
	repo := NewFixtureRepository(newTestDB(t))

	before := time.Now().UTC()
	require.NoError(t, repo.Put(testFixture(100, model.StatusNS)))

	got, err := repo.Get(100)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.LastUpdatedAt.Before(before), "write must stamp the wall clock")
}

func TestFixtureRepository_PutIsUpsert(t *testing.T) {
	repo := NewFixtureRepository(newTestDB(t))

	require.NoError(t, repo.Put(testFixture(100, model.StatusNS)))

	updated := testFixture(100, model.StatusFirstHalf)
	elapsed := 30
	updated.Elapsed = &elapsed
	require.NoError(t, repo.Put(updated))

	got, err := repo.Get(100)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusFirstHalf, got.Status)
	require.NotNil(t, got.Elapsed)
	assert.Equal(t, 30, *got.Elapsed)

	var count int64
	require.NoError(t, repo.DB().Model(&model.Fixture{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestFixtureRepository_GetMissing(t *testing.T) {
	repo := NewFixtureRepository(newTestDB(t))

	got, err := repo.Get(12345)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFixtureRepository_GetMany(t *testing.T) {
	repo := NewFixtureRepository(newTestDB(t))

	require.NoError(t, repo.PutMany([]model.Fixture{
		*testFixture(1, model.StatusNS),
		*testFixture(3, model.StatusFinished),
	}))

	got, err := repo.GetMany([]int64{1, 2, 3})
	require.NoError(t, err)

	assert.Len(t, got, 2)
	assert.Contains(t, got, int64(1))
	assert.Contains(t, got, int64(3))
	assert.NotContains(t, got, int64(2))
}

func TestFixtureRepository_GetByDateRange(t *testing.T) {
	repo := NewFixtureRepository(newTestDB(t))

	early := testFixture(1, model.StatusFinished)
	early.Date = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	mid := testFixture(2, model.StatusNS)
	mid.Date = time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	late := testFixture(3, model.StatusNS)
	late.Date = time.Date(2026, 3, 20, 18, 0, 0, 0, time.UTC)

	require.NoError(t, repo.PutMany([]model.Fixture{*early, *mid, *late}))

	got, err := repo.GetByDateRange(
		time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ID)
}

func TestFixtureRepository_Delete(t *testing.T) {
	repo := NewFixtureRepository(newTestDB(t))

	require.NoError(t, repo.Put(testFixture(100, model.StatusNS)))

	removed, err := repo.Delete(100)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(100)
	require.NoError(t, err)
	assert.False(t, removed, "second delete finds nothing")
}

func TestFixtureRepository_DeleteByLeagueSeason(t *testing.T) {
	repo := NewFixtureRepository(newTestDB(t))

	other := testFixture(3, model.StatusNS)
	other.LeagueID = 140

	require.NoError(t, repo.PutMany([]model.Fixture{
		*testFixture(1, model.StatusNS),
		*testFixture(2, model.StatusFinished),
		*other,
	}))

	count, err := repo.DeleteByLeagueSeason(39, 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	got, err := repo.Get(3)
	require.NoError(t, err)
	assert.NotNil(t, got, "other leagues stay cached")
}

func TestFixtureRepository_SweepCandidates(t *testing.T) {
	repo := NewFixtureRepository(newTestDB(t))

	require.NoError(t, repo.PutMany([]model.Fixture{
		*testFixture(1, model.StatusNS),
		*testFixture(2, model.StatusFinished),
	}))

	candidates, err := repo.SweepCandidates()
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	for _, c := range candidates {
		assert.NotZero(t, c.ID)
		assert.NotEmpty(t, c.Status)
		assert.False(t, c.LastUpdatedAt.IsZero())
	}
}

func TestFixtureRepository_Standings(t *testing.T) {
	repo := NewFixtureRepository(newTestDB(t))

	got, err := repo.GetStandings(39, 2025)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.PutStandings(&model.StandingSet{
		LeagueID: 39,
		Season:   2025,
		Payload:  []byte(`{"standings":[[]]}`),
	}))

	got, err = repo.GetStandings(39, 2025)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "39:2025", got.ID)

	// Second put replaces the payload in place.
	require.NoError(t, repo.PutStandings(&model.StandingSet{
		LeagueID: 39,
		Season:   2025,
		Payload:  []byte(`{"standings":[[{"rank":1}]]}`),
	}))

	got, err = repo.GetStandings(39, 2025)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Contains(t, string(got.Payload), `"rank"`)
}
