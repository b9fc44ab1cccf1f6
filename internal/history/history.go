package history

import (
	"context"
	"encoding/json"
	"fmt"

	"lobby-scout/internal/domain"
	"lobby-scout/internal/pagecache"

	"github.com/rs/zerolog"
)

// Client fetches one raw page of match summaries from the upstream
// provider.
type Client interface {
	FetchMatchPage(ctx context.Context, opaqueID string, pageStart, pageSize int, filter string) ([]byte, error)
}

// Service is the page-cache-aware match-history provider. Staleness is
// controlled entirely by the caller through the force flag; cached pages
// have no TTL.
type Service struct {
	client Client
	cache  *pagecache.Cache
	logger zerolog.Logger
}

func NewService(client Client, cache *pagecache.Cache, logger zerolog.Logger) *Service {
	return &Service{client: client, cache: cache, logger: logger}
}

// MatchPage returns one decoded page of the player's recent matches,
// consulting the cache first unless force is set.
func (s *Service) MatchPage(ctx context.Context, opaqueID string, pageStart, pageSize int, filter string, force bool) ([]domain.MatchOutcome, error) {
	if !force {
		if payload, ok := s.cache.Get(opaqueID, filter, pageStart, pageSize); ok {
			s.logger.Debug().
				Str("opaque_id", opaqueID).
				Int("page_start", pageStart).
				Msg("match page cache hit")
			return decodePage(payload)
		}
	}

	payload, err := s.client.FetchMatchPage(ctx, opaqueID, pageStart, pageSize, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch match page: %w", err)
	}

	outcomes, err := decodePage(payload)
	if err != nil {
		return nil, err
	}

	s.cache.Put(opaqueID, filter, pageStart, pageSize, payload)
	return outcomes, nil
}

func decodePage(payload []byte) ([]domain.MatchOutcome, error) {
	var page []matchSummary
	if err := json.Unmarshal(payload, &page); err != nil {
		return nil, fmt.Errorf("malformed match page: %w", err)
	}

	outcomes := make([]domain.MatchOutcome, 0, len(page))
	for _, m := range page {
		outcomes = append(outcomes, domain.MatchOutcome{
			MatchID:     m.MatchID,
			Win:         m.Win,
			Kills:       m.Kills,
			Deaths:      m.Deaths,
			Assists:     m.Assists,
			CharacterID: m.ChampionID,
		})
	}
	return outcomes, nil
}

type matchSummary struct {
	MatchID    string `json:"matchId"`
	Win        bool   `json:"win"`
	Kills      int    `json:"kills"`
	Deaths     int    `json:"deaths"`
	Assists    int    `json:"assists"`
	ChampionID int    `json:"championId"`
}
