package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	appContext "github.com/alphabatem/common/context"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/gonzalobrunoldis/fixtureapp-sub000/dto"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/model"
	"github.com/gonzalobrunoldis/fixtureapp-sub000/shared"
)

// UpstreamError is any non-2xx answer from the fixtures provider other than
// a 429.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// UpstreamRateLimitError is the provider's own 429, which is independent of
// our local quota accounting.
type UpstreamRateLimitError struct {
	RemainingDay    int
	RemainingMinute int
}

func (e *UpstreamRateLimitError) Error() string {
	return fmt.Sprintf("upstream rate limit hit (remaining day=%d minute=%d)", e.RemainingDay, e.RemainingMinute)
}

// InvalidResponseError means the provider answered 200 but the envelope was
// malformed or carried API-level errors.
type InvalidResponseError struct {
	Reason string
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("invalid upstream response: %s", e.Reason)
}

// apiEnvelope is the outer shape of every provider answer. The errors field
// is [] when clean and an object keyed by field name otherwise.
type apiEnvelope struct {
	Get        string            `json:"get"`
	Parameters interface{}       `json:"parameters"`
	Errors     interface{}       `json:"errors"`
	Results    int               `json:"results"`
	Paging     apiPaging         `json:"paging"`
	Response   []json.RawMessage `json:"response"`
}

type apiPaging struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

func (e *apiEnvelope) errorMessages() []string {
	switch v := e.Errors.(type) {
	case map[string]interface{}:
		msgs := make([]string, 0, len(v))
		for field, msg := range v {
			msgs = append(msgs, fmt.Sprintf("%s: %v", field, msg))
		}
		return msgs
	case []interface{}:
		msgs := make([]string, 0, len(v))
		for _, msg := range v {
			msgs = append(msgs, fmt.Sprintf("%v", msg))
		}
		return msgs
	default:
		return nil
	}
}

type apiFixtureItem struct {
	Fixture struct {
		ID     int64     `json:"id"`
		Date   time.Time `json:"date"`
		Status struct {
			Short   string `json:"short"`
			Elapsed *int   `json:"elapsed"`
		} `json:"status"`
	} `json:"fixture"`
	League struct {
		ID     int `json:"id"`
		Season int `json:"season"`
	} `json:"league"`
	Teams struct {
		Home apiTeam `json:"home"`
		Away apiTeam `json:"away"`
	} `json:"teams"`
	Goals struct {
		Home *int `json:"home"`
		Away *int `json:"away"`
	} `json:"goals"`
	Score struct {
		Halftime apiScorePair `json:"halftime"`
		Fulltime apiScorePair `json:"fulltime"`
	} `json:"score"`
}

type apiTeam struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo"`
}

type apiScorePair struct {
	Home *int `json:"home"`
	Away *int `json:"away"`
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// FootballService is the raw client for the fixtures provider. It performs
// no caching and no quota accounting; callers go through the rate limiter.
type FootballService struct {
	appContext.DefaultService

	baseURL string
	apiKey  string
	host    string

	client httpDoer
}

const FOOTBALL_SVC = "football_svc"

func (svc FootballService) Id() string {
	return FOOTBALL_SVC
}

func (svc *FootballService) Configure(ctx *appContext.Context) error {
	svc.apiKey = os.Getenv("API_FOOTBALL_KEY")
	if svc.apiKey == "" {
		return fmt.Errorf("API_FOOTBALL_KEY is required")
	}

	svc.host = os.Getenv("API_FOOTBALL_HOST")
	if svc.host == "" {
		svc.host = "v3.football.api-sports.io"
	}

	svc.baseURL = os.Getenv("API_FOOTBALL_BASE_URL")
	if svc.baseURL == "" {
		svc.baseURL = "https://" + svc.host
	}

	svc.client = &http.Client{Timeout: 15 * time.Second}

	return svc.DefaultService.Configure(ctx)
}

// NewFootballService builds a client outside the service container, mainly
// for tests that stub the transport.
func NewFootballService(baseURL, apiKey string, client httpDoer) *FootballService {
	return &FootballService{
		baseURL: baseURL,
		apiKey:  apiKey,
		host:    strings.TrimPrefix(strings.TrimPrefix(baseURL, "https://"), "http://"),
		client:  client,
	}
}

func (svc *FootballService) GetFixtureByID(ctx context.Context, id int64) (*model.Fixture, error) {
	params := url.Values{}
	params.Set("id", strconv.FormatInt(id, 10))

	fixtures, err := svc.fetchFixtures(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(fixtures) == 0 {
		return nil, nil
	}
	return &fixtures[0], nil
}

// GetFixturesByIDs fetches up to 20 fixtures in one provider call. The ids
// parameter is dash-separated on the wire.
func (svc *FootballService) GetFixturesByIDs(ctx context.Context, ids []int64) ([]model.Fixture, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > shared.MaxFixtureIDsPerRequest {
		return nil, fmt.Errorf("at most %d fixture ids per request, got %d", shared.MaxFixtureIDsPerRequest, len(ids))
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}

	params := url.Values{}
	params.Set("ids", strings.Join(parts, "-"))

	return svc.fetchFixtures(ctx, params)
}

func (svc *FootballService) GetFixtures(ctx context.Context, query dto.FixtureQuery) ([]model.Fixture, error) {
	params := url.Values{}
	if query.LeagueID != 0 {
		params.Set("league", strconv.Itoa(query.LeagueID))
	}
	if query.Season != 0 {
		params.Set("season", strconv.Itoa(query.Season))
	}
	if query.TeamID != 0 {
		params.Set("team", strconv.Itoa(query.TeamID))
	}
	if query.Date != "" {
		params.Set("date", query.Date)
	}
	if query.From != "" {
		params.Set("from", query.From)
	}
	if query.To != "" {
		params.Set("to", query.To)
	}
	if query.Status != "" {
		params.Set("status", query.Status)
	}
	if query.Next != 0 {
		params.Set("next", strconv.Itoa(query.Next))
	}
	if query.Last != 0 {
		params.Set("last", strconv.Itoa(query.Last))
	}

	return svc.fetchFixtures(ctx, params)
}

// GetStandings returns the raw standings payload for a league season, kept
// verbatim for the cache.
func (svc *FootballService) GetStandings(ctx context.Context, leagueID, season int) ([]byte, error) {
	params := url.Values{}
	params.Set("league", strconv.Itoa(leagueID))
	params.Set("season", strconv.Itoa(season))

	envelope, err := svc.get(ctx, "/standings", params)
	if err != nil {
		return nil, err
	}
	if len(envelope.Response) == 0 {
		return nil, nil
	}
	return []byte(envelope.Response[0]), nil
}

func (svc *FootballService) fetchFixtures(ctx context.Context, params url.Values) ([]model.Fixture, error) {
	envelope, err := svc.get(ctx, "/fixtures", params)
	if err != nil {
		return nil, err
	}

	fixtures := make([]model.Fixture, 0, len(envelope.Response))
	for _, raw := range envelope.Response {
		var item apiFixtureItem
		if err := sonic.Unmarshal(raw, &item); err != nil {
			return nil, &InvalidResponseError{Reason: fmt.Sprintf("malformed fixture item: %v", err)}
		}
		if item.Fixture.ID == 0 {
			return nil, &InvalidResponseError{Reason: "fixture item missing id"}
		}

		fixtures = append(fixtures, model.Fixture{
			ID:       item.Fixture.ID,
			LeagueID: item.League.ID,
			Season:   item.League.Season,
			Status:   item.Fixture.Status.Short,
			Elapsed:  item.Fixture.Status.Elapsed,
			Date:     item.Fixture.Date,

			HomeTeamID:   item.Teams.Home.ID,
			HomeTeamName: item.Teams.Home.Name,
			HomeTeamLogo: item.Teams.Home.Logo,
			AwayTeamID:   item.Teams.Away.ID,
			AwayTeamName: item.Teams.Away.Name,
			AwayTeamLogo: item.Teams.Away.Logo,

			HomeGoals:    item.Goals.Home,
			AwayGoals:    item.Goals.Away,
			HalftimeHome: item.Score.Halftime.Home,
			HalftimeAway: item.Score.Halftime.Away,
			FulltimeHome: item.Score.Fulltime.Home,
			FulltimeAway: item.Score.Fulltime.Away,

			Payload: []byte(raw),
		})
	}

	return fixtures, nil
}

func (svc *FootballService) get(ctx context.Context, path string, params url.Values) (*apiEnvelope, error) {
	endpoint := svc.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-rapidapi-key", svc.apiKey)
	req.Header.Set("x-rapidapi-host", svc.host)

	started := time.Now()
	resp, err := svc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading upstream response: %w", err)
	}

	log.WithFields(log.Fields{
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(started),
	}).Debug("Upstream call completed")

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &UpstreamRateLimitError{
			RemainingDay:    headerInt(resp.Header, "X-RateLimit-requests-Remaining"),
			RemainingMinute: headerInt(resp.Header, "X-RateLimit-Remaining"),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	var envelope apiEnvelope
	if err := sonic.Unmarshal(body, &envelope); err != nil {
		return nil, &InvalidResponseError{Reason: fmt.Sprintf("malformed envelope: %v", err)}
	}

	if msgs := envelope.errorMessages(); len(msgs) > 0 {
		return nil, &InvalidResponseError{Reason: strings.Join(msgs, "; ")}
	}

	return &envelope, nil
}

func headerInt(h http.Header, key string) int {
	n, _ := strconv.Atoi(h.Get(key))
	return n
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
