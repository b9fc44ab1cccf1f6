package api

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"lobby-scout/internal/config"
	"lobby-scout/internal/domain"

	"github.com/valyala/fasthttp"
)

// SessionClient polls the local game client for the live roster and the
// current gameflow phase. The local endpoint serves a self-signed
// certificate and expects basic auth.
type SessionClient struct {
	baseURL string
	auth    string
	client  *fasthttp.Client
}

func NewSessionClient(cfg *config.Config) *SessionClient {
	return &SessionClient{
		baseURL: cfg.SessionBaseURL,
		auth:    "Basic " + base64.StdEncoding.EncodeToString([]byte("riot:"+cfg.SessionToken)),
		client: &fasthttp.Client{
			MaxConnsPerHost: 4,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			TLSConfig:       &tls.Config{InsecureSkipVerify: true},
		},
	}
}

// RosterSnapshot captures the current champion-select roster. Entries with
// a withheld identity come back with a zero player id.
func (c *SessionClient) RosterSnapshot(ctx context.Context) ([]domain.SeatSnapshot, error) {
	body, err := c.get(ctx, "/lol-champ-select/v1/session")
	if err != nil {
		return nil, err
	}

	var session champSelectSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("malformed session payload: %w", err)
	}

	now := time.Now()
	var seats []domain.SeatSnapshot
	seats = append(seats, toSeats(session.MyTeam, 1, now)...)
	seats = append(seats, toSeats(session.TheirTeam, 2, now)...)
	return seats, nil
}

// Phase returns the gameflow phase string, e.g. "ChampSelect" or
// "InProgress".
func (c *SessionClient) Phase(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/lol-gameflow/v1/gameflow-phase")
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(string(body)), `"`), nil
}

func (c *SessionClient) get(ctx context.Context, path string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Authorization", c.auth)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := c.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("session API error: %d", resp.StatusCode())
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

type champSelectSession struct {
	MyTeam    []sessionMember `json:"myTeam"`
	TheirTeam []sessionMember `json:"theirTeam"`
}

type sessionMember struct {
	CellID             int    `json:"cellId"`
	SummonerID         int64  `json:"summonerId"`
	Puuid              string `json:"puuid"`
	GameName           string `json:"gameName"`
	NameVisibilityType string `json:"nameVisibilityType"`
	ChampionID         int    `json:"championId"`
}

func toSeats(members []sessionMember, team int, at time.Time) []domain.SeatSnapshot {
	sorted := make([]sessionMember, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CellID < sorted[j].CellID })

	seats := make([]domain.SeatSnapshot, 0, len(sorted))
	for i, m := range sorted {
		id := domain.Identity{
			PlayerID:    m.SummonerID,
			OpaqueID:    m.Puuid,
			DisplayName: m.GameName,
		}
		if m.NameVisibilityType == "HIDDEN" || m.SummonerID <= 0 {
			id = domain.Identity{}
		}
		seats = append(seats, domain.SeatSnapshot{
			Team:        team,
			SeatIndex:   i,
			Identity:    id,
			CharacterID: m.ChampionID,
			CapturedAt:  at,
		})
	}
	return seats
}
