package services

import (
	"context"
	"os"
	"sort"
	"time"

	appContext "github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/gonzalobrunoldis/fixtureapp-sub000/dto"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/model"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/services/repositories"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/shared"
)

// fixtureStore is the slice of the fixture repository the fetcher needs.
type fixtureStore interface {
	Get(id int64) (*model.Fixture, error)
	GetLeagues() ([]model.League, error)
	GetMany(ids []int64) (map[int64]model.Fixture, error)
	Put(fixture *model.Fixture) error
	PutMany(fixtures []model.Fixture) error
	Delete(id int64) (bool, error)
	DeleteMany(ids []int64) (int64, error)
	DeleteByLeagueSeason(leagueID, season int) (int64, error)
	SweepCandidates() ([]model.Fixture, error)
	GetStandings(leagueID, season int) (*model.StandingSet, error)
	PutStandings(set *model.StandingSet) error
}

type fixtureProvider interface {
	GetFixtureByID(ctx context.Context, id int64) (*model.Fixture, error)
	GetFixturesByIDs(ctx context.Context, ids []int64) ([]model.Fixture, error)
	GetFixtures(ctx context.Context, query dto.FixtureQuery) ([]model.Fixture, error)
	GetStandings(ctx context.Context, leagueID, season int) ([]byte, error)
}

type quotaGate interface {
	Execute(ctx context.Context, fn func(context.Context) error) error
}

// fetchMetrics is implemented by the monitoring service; a nil receiver is
// tolerated everywhere so tests can run without it.
type fetchMetrics interface {
	CacheHit()
	CacheMiss()
	UpstreamCall(outcome string)
	SweepRemoved(count int)
}

const standingsTTL = time.Hour

// FixtureService orchestrates cache reads, staleness checks, quota-gated
// upstream fetches and write-through. Cache failures never surface: reads
// degrade to a miss, writes are logged and dropped.
type FixtureService struct {
	appContext.DefaultService

	store    fixtureStore
	upstream fixtureProvider
	limiter  quotaGate
	metrics  fetchMetrics

	sweepInterval time.Duration
	sweepStop     chan struct{}

	now func() time.Time
}

const FIXTURE_SVC = "fixture_svc"

func (svc FixtureService) Id() string {
	return FIXTURE_SVC
}

func (svc *FixtureService) Configure(ctx *appContext.Context) error {
	svc.sweepInterval = time.Duration(envInt("CACHE_SWEEP_INTERVAL_MINUTES", 10)) * time.Minute
	svc.now = time.Now

	return svc.DefaultService.Configure(ctx)
}

func (svc *FixtureService) Start() error {
	db := svc.Service(POSTGRES_SVC).(*PostgresService)
	svc.store = repositories.NewFixtureRepository(db.Db())
	svc.upstream = svc.Service(FOOTBALL_SVC).(*FootballService)
	svc.limiter = svc.Service(RATE_LIMIT_SVC).(*RateLimitService)

	if mon, ok := svc.Service(MONITORING_SVC).(*MonitoringService); ok {
		svc.metrics = mon
	}

	if os.Getenv("CACHE_SWEEP_ENABLED") != "false" {
		svc.sweepStop = make(chan struct{})
		go svc.sweepLoop()
	}
	return nil
}

func (svc *FixtureService) Shutdown() {
	if svc.sweepStop != nil {
		close(svc.sweepStop)
	}
}

// NewFixtureService wires a fetcher by hand, for tests.
func NewFixtureService(store fixtureStore, upstream fixtureProvider, limiter quotaGate) *FixtureService {
	return &FixtureService{
		store:    store,
		upstream: upstream,
		limiter:  limiter,
		now:      time.Now,
	}
}

// GetFixture returns one fixture, serving from cache when fresh. force
// bypasses the freshness check and always refetches. A fixture unknown
// upstream returns (nil, false, nil) and is not cached.
func (svc *FixtureService) GetFixture(ctx context.Context, id int64, force bool) (*model.Fixture, bool, error) {
	if !force {
		cached, err := svc.store.Get(id)
		if err != nil {
			log.WithError(err).WithField("fixture_id", id).Warn("Cache read failed, treating as miss")
		} else if cached != nil && !cached.IsStale(svc.now()) {
			svc.countHit()
			return cached, true, nil
		}
	}
	svc.countMiss()

	var fetched *model.Fixture
	err := svc.limiter.Execute(ctx, func(ctx context.Context) error {
		var ferr error
		fetched, ferr = svc.upstream.GetFixtureByID(ctx, id)
		svc.countUpstream(ferr)
		return ferr
	})
	if err != nil {
		return nil, false, err
	}
	if fetched == nil {
		return nil, false, nil
	}

	if err := svc.store.Put(fetched); err != nil {
		log.WithError(err).WithField("fixture_id", id).Warn("Cache write failed, serving uncached result")
	}
	return fetched, false, nil
}

// GetFixtures resolves a list of ids against the cache, fetching the
// missing or stale remainder from upstream in batches of at most 20 ids.
// The result is deduplicated and sorted ascending by id; ids unknown
// upstream are simply absent. fromCache counts how many came from cache.
func (svc *FixtureService) GetFixtures(ctx context.Context, ids []int64, force bool) ([]model.Fixture, int, error) {
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return []model.Fixture{}, 0, nil
	}

	fresh := map[int64]model.Fixture{}
	var toFetch []int64

	if force {
		toFetch = ids
	} else {
		cached, err := svc.store.GetMany(ids)
		if err != nil {
			log.WithError(err).Warn("Cache multi-read failed, treating all as miss")
			cached = map[int64]model.Fixture{}
		}

		now := svc.now()
		for _, id := range ids {
			f, ok := cached[id]
			if ok && !f.IsStale(now) {
				fresh[id] = f
				svc.countHit()
			} else {
				toFetch = append(toFetch, id)
				svc.countMiss()
			}
		}
	}

	for start := 0; start < len(toFetch); start += shared.MaxFixtureIDsPerRequest {
		end := start + shared.MaxFixtureIDsPerRequest
		if end > len(toFetch) {
			end = len(toFetch)
		}
		chunk := toFetch[start:end]

		var fetched []model.Fixture
		err := svc.limiter.Execute(ctx, func(ctx context.Context) error {
			var ferr error
			fetched, ferr = svc.upstream.GetFixturesByIDs(ctx, chunk)
			svc.countUpstream(ferr)
			return ferr
		})
		if err != nil {
			return nil, 0, err
		}

		if len(fetched) > 0 {
			if werr := svc.store.PutMany(fetched); werr != nil {
				log.WithError(werr).Warn("Cache batch write failed, serving uncached results")
			}
			for _, f := range fetched {
				fresh[f.ID] = f
			}
		}
	}

	result := make([]model.Fixture, 0, len(fresh))
	fromCache := 0
	for _, f := range fresh {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	if !force {
		for _, f := range result {
			if !containsID(toFetch, f.ID) {
				fromCache++
			}
		}
	}

	return result, fromCache, nil
}

// SearchFixtures runs a filter query straight against upstream (per-record
// cache lookup cannot answer an open-ended filter) and writes every result
// through to the cache.
func (svc *FixtureService) SearchFixtures(ctx context.Context, query dto.FixtureQuery) ([]model.Fixture, error) {
	var fetched []model.Fixture
	err := svc.limiter.Execute(ctx, func(ctx context.Context) error {
		var ferr error
		fetched, ferr = svc.upstream.GetFixtures(ctx, query)
		svc.countUpstream(ferr)
		return ferr
	})
	if err != nil {
		return nil, err
	}

	if len(fetched) > 0 {
		if werr := svc.store.PutMany(fetched); werr != nil {
			log.WithError(werr).Warn("Cache write-through failed for fixture search")
		}
	}

	sort.Slice(fetched, func(i, j int) bool { return fetched[i].ID < fetched[j].ID })
	return fetched, nil
}

// GetStandings serves a league table, cached for one hour.
func (svc *FixtureService) GetStandings(ctx context.Context, leagueID, season int, force bool) (*dto.StandingsResponse, error) {
	if !force {
		cached, err := svc.store.GetStandings(leagueID, season)
		if err != nil {
			log.WithError(err).Warn("Standings cache read failed, treating as miss")
		} else if cached != nil && svc.now().Sub(cached.LastUpdatedAt) <= standingsTTL {
			svc.countHit()
			return &dto.StandingsResponse{
				LeagueID:      leagueID,
				Season:        season,
				Standings:     cached.Payload,
				LastUpdatedAt: cached.LastUpdatedAt,
				CacheHit:      true,
			}, nil
		}
	}
	svc.countMiss()

	var payload []byte
	err := svc.limiter.Execute(ctx, func(ctx context.Context) error {
		var ferr error
		payload, ferr = svc.upstream.GetStandings(ctx, leagueID, season)
		svc.countUpstream(ferr)
		return ferr
	})
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}

	set := &model.StandingSet{
		LeagueID: leagueID,
		Season:   season,
		Payload:  payload,
	}
	if werr := svc.store.PutStandings(set); werr != nil {
		log.WithError(werr).Warn("Standings cache write failed")
	}

	return &dto.StandingsResponse{
		LeagueID:      leagueID,
		Season:        season,
		Standings:     set.Payload,
		LastUpdatedAt: svc.now(),
	}, nil
}

// SweepExpired deletes every non-terminal fixture past its status TTL and
// returns how many were removed. Terminal fixtures are never swept.
func (svc *FixtureService) SweepExpired() (int, error) {
	candidates, err := svc.store.SweepCandidates()
	if err != nil {
		return 0, err
	}

	now := svc.now()
	var expired []int64
	for _, f := range candidates {
		if f.IsStale(now) {
			expired = append(expired, f.ID)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}

	removed, err := svc.store.DeleteMany(expired)
	if err != nil {
		return 0, err
	}
	if svc.metrics != nil {
		svc.metrics.SweepRemoved(int(removed))
	}
	return int(removed), nil
}

// PurgeLeagueSeason drops every cached fixture for one league season.
func (svc *FixtureService) PurgeLeagueSeason(leagueID, season int) (int64, error) {
	return svc.store.DeleteByLeagueSeason(leagueID, season)
}

// InvalidateFixture removes one fixture from the cache regardless of status.
func (svc *FixtureService) InvalidateFixture(id int64) (bool, error) {
	return svc.store.Delete(id)
}

// GetLeagues lists the seeded competitions.
func (svc *FixtureService) GetLeagues() ([]model.League, error) {
	return svc.store.GetLeagues()
}

func (svc *FixtureService) sweepLoop() {
	ticker := time.NewTicker(svc.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := svc.SweepExpired()
			if err != nil {
				log.WithError(err).Warn("Cache sweep failed")
				continue
			}
			if removed > 0 {
				log.WithField("removed", removed).Info("Cache sweep removed expired fixtures")
			}
		case <-svc.sweepStop:
			return
		}
	}
}

func (svc *FixtureService) countHit() {
	if svc.metrics != nil {
		svc.metrics.CacheHit()
	}
}

func (svc *FixtureService) countMiss() {
	if svc.metrics != nil {
		svc.metrics.CacheMiss()
	}
}

func (svc *FixtureService) countUpstream(err error) {
	if svc.metrics == nil {
		return
	}
	if err != nil {
		svc.metrics.UpstreamCall("error")
	} else {
		svc.metrics.UpstreamCall("success")
	}
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
