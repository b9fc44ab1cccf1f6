package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"lobby-scout/internal/config"
	"lobby-scout/internal/domain"

	"github.com/valyala/fasthttp"
)

// Queue tags used by the rank endpoint. The two summaries every record
// carries come from these.
const (
	QueueSolo = "RANKED_SOLO_5x5"
	QueueFlex = "RANKED_FLEX_SR"
)

// StatsClient talks to the upstream player-stats API: identity resolution,
// rank entries, and paged match history.
type StatsClient struct {
	apiKey      string
	baseURL     string
	client      *fasthttp.Client
	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
}

type RateLimitInfo struct {
	Bucket    string `json:"bucket"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`

	// seconds until reset
	Reset int `json:"reset"`

	UpdatedAt time.Time `json:"updated_at"`
}

func NewStatsClient(cfg *config.Config) *StatsClient {
	return &StatsClient{
		apiKey:  cfg.StatsAPIKey,
		baseURL: cfg.StatsBaseURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		rateLimit: RateLimitInfo{
			Limit:     100,
			Remaining: 100,
			Reset:     120,
			UpdatedAt: time.Now(),
		},
	}
}

func (c *StatsClient) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *StatsClient) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if bucket := string(resp.Header.Peek("X-Ratelimit-Bucket")); bucket != "" {
		c.rateLimit.Bucket = bucket
	}
	if limit := string(resp.Header.Peek("X-Ratelimit-Limit")); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			c.rateLimit.Limit = val
		}
	}
	if remaining := string(resp.Header.Peek("X-Ratelimit-Remaining")); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			c.rateLimit.Remaining = val
		}
	}
	if reset := string(resp.Header.Peek("X-Ratelimit-Reset")); reset != "" {
		if val, err := strconv.Atoi(reset); err == nil {
			c.rateLimit.Reset = val
		}
	}
	c.rateLimit.UpdatedAt = time.Now()
}

// ResolveProfile resolves a player id to display name, opaque id and
// profile visibility.
func (c *StatsClient) ResolveProfile(ctx context.Context, playerID int64) (*domain.Profile, error) {
	url := fmt.Sprintf("%s/lol/summoner/v4/summoners/%d", c.baseURL, playerID)
	resp, err := doRequest[summonerResponse](ctx, c, url)
	if err != nil {
		return nil, err
	}
	return &domain.Profile{
		DisplayName: resp.Name,
		OpaqueID:    resp.Puuid,
		Private:     resp.Privacy == "PRIVATE",
	}, nil
}

// RankSummaries fetches the player's entries for both ranked queues.
// Queues the player has not placed in are absent from the result.
func (c *StatsClient) RankSummaries(ctx context.Context, opaqueID string) (map[string]domain.RankSummary, error) {
	url := fmt.Sprintf("%s/lol/league/v4/entries/by-puuid/%s", c.baseURL, opaqueID)
	entries, err := doRequest[[]leagueEntry](ctx, c, url)
	if err != nil {
		return nil, err
	}

	summaries := make(map[string]domain.RankSummary)
	for _, e := range *entries {
		if e.QueueType != QueueSolo && e.QueueType != QueueFlex {
			continue
		}
		summaries[e.QueueType] = domain.RankSummary{
			Queue:        e.QueueType,
			Tier:         e.Tier,
			Division:     e.Rank,
			LeaguePoints: e.LeaguePoints,
			Wins:         e.Wins,
			Losses:       e.Losses,
		}
	}
	return summaries, nil
}

// FetchMatchPage returns one raw page of the player's recent matches. The
// body is returned undecoded so the caller can cache it as-is.
func (c *StatsClient) FetchMatchPage(ctx context.Context, opaqueID string, pageStart, pageSize int, filter string) ([]byte, error) {
	url := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s?start=%d&count=%d&filter=%s",
		c.baseURL, opaqueID, pageStart, pageSize, filter)
	return doRequestRaw(ctx, c, url)
}

func doRequest[T any](ctx context.Context, client *StatsClient, url string) (*T, error) {
	body, err := doRequestRaw(ctx, client, url)
	if err != nil {
		return nil, err
	}

	var result T
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func doRequestRaw(ctx context.Context, client *StatsClient, url string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Authorization", client.apiKey)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	client.updateRateLimit(resp)

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("API error: %d", resp.StatusCode())
	}

	// resp body is pooled with the response; copy before release
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

type summonerResponse struct {
	ID      int64  `json:"id"`
	Puuid   string `json:"puuid"`
	Name    string `json:"name"`
	Level   int    `json:"summonerLevel"`
	Privacy string `json:"privacy"`
}

type leagueEntry struct {
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}
