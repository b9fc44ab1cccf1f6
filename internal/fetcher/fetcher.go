package fetcher

import (
	"context"
	"time"

	"lobby-scout/internal/constants"
	"lobby-scout/internal/domain"
	"lobby-scout/internal/pagecache"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

type IdentityProvider interface {
	ResolveProfile(ctx context.Context, playerID int64) (*domain.Profile, error)
}

type RankProvider interface {
	RankSummaries(ctx context.Context, opaqueID string) (map[string]domain.RankSummary, error)
}

type HistoryProvider interface {
	MatchPage(ctx context.Context, opaqueID string, pageStart, pageSize int, filter string, force bool) ([]domain.MatchOutcome, error)
}

// Options tune one fetch. PreWarm requests run without retries and are
// only used to populate the page cache ahead of need. ForceRefresh makes
// the history stage bypass the cache.
type Options struct {
	PreWarm      bool
	ForceRefresh bool
}

// Fetcher turns a seat identity into an enriched record: display name,
// two rank summaries, a recent match page, and the match fingerprints the
// party detector joins on. A global semaphore bounds in-flight fetches so
// ten seats resolving at once cannot saturate the upstream rate limit.
type Fetcher struct {
	ids     IdentityProvider
	ranks   RankProvider
	history HistoryProvider
	sem     *semaphore.Weighted
	logger  zerolog.Logger
}

func New(ids IdentityProvider, ranks RankProvider, history HistoryProvider, logger zerolog.Logger) *Fetcher {
	return NewWithConcurrency(ids, ranks, history, constants.FetchConcurrency, logger)
}

func NewWithConcurrency(ids IdentityProvider, ranks RankProvider, history HistoryProvider, bound int64, logger zerolog.Logger) *Fetcher {
	if bound <= 0 {
		bound = constants.FetchConcurrency
	}
	return &Fetcher{
		ids:     ids,
		ranks:   ranks,
		history: history,
		sem:     semaphore.NewWeighted(bound),
		logger:  logger,
	}
}

// Fetch enriches one seat. It never returns an error: a withheld identity
// yields a hidden record without touching the network, and exhausted
// retries yield a failed record with placeholder text so the seat can
// still be rendered.
func (f *Fetcher) Fetch(ctx context.Context, id domain.Identity, characterID int, opts Options) *domain.EnrichedRecord {
	if id.Hidden() {
		return domain.NewHiddenRecord(characterID)
	}

	if err := f.sem.Acquire(ctx, 1); err != nil {
		f.logger.Debug().Err(err).Int64("player_id", id.PlayerID).Msg("fetch cancelled before dispatch")
		return domain.NewFailedRecord(id, characterID)
	}
	defer f.sem.Release(1)

	resolved, err := f.resolveIdentity(ctx, id, opts)
	if err != nil {
		f.logger.Warn().
			Err(err).
			Str("kind", string(classify(err))).
			Int64("player_id", id.PlayerID).
			Msg("identity resolution failed")
		return domain.NewFailedRecord(id, characterID)
	}
	if resolved == nil {
		// profile exists but is private
		return domain.NewHiddenRecord(characterID)
	}

	rec := domain.NewPendingRecord(*resolved, characterID)
	rec.DisplayName = resolved.DisplayName

	g, gCtx := errgroup.WithContext(ctx)
	var summaries map[string]domain.RankSummary
	var matches []domain.MatchOutcome

	g.Go(func() error {
		return f.runStage(gCtx, "ranks", opts.PreWarm, func(stageCtx context.Context) error {
			var err error
			summaries, err = f.ranks.RankSummaries(stageCtx, resolved.OpaqueID)
			return err
		})
	})

	g.Go(func() error {
		return f.runStage(gCtx, "history", opts.PreWarm, func(stageCtx context.Context) error {
			var err error
			matches, err = f.history.MatchPage(stageCtx, resolved.OpaqueID, 0, constants.MatchPageSize, pagecache.FilterAll, opts.ForceRefresh)
			return err
		})
	})

	if err := g.Wait(); err != nil {
		f.logger.Warn().
			Err(err).
			Str("kind", string(classify(err))).
			Str("opaque_id", resolved.OpaqueID).
			Msg("enrichment stage failed")
		return domain.NewFailedRecord(*resolved, characterID)
	}

	rec.SoloRank = summaries[queueSolo]
	rec.FlexRank = summaries[queueFlex]
	rec.RecentMatches = matches
	rec.Fingerprints = fingerprints(matches)
	rec.Status = domain.StatusReady
	rec.FetchedAt = time.Now()

	f.logger.Debug().
		Str("opaque_id", resolved.OpaqueID).
		Str("name", rec.DisplayName).
		Int("matches", len(matches)).
		Msg("seat enriched")
	return rec
}

// PreWarm populates the page cache for an identity ahead of need. Low
// priority: single attempt per stage, result discarded.
func (f *Fetcher) PreWarm(ctx context.Context, id domain.Identity) {
	if id.Hidden() {
		return
	}
	rec := f.Fetch(ctx, id, 0, Options{PreWarm: true})
	if rec.Status != domain.StatusReady {
		f.logger.Debug().Int64("player_id", id.PlayerID).Msg("pre-warm did not complete")
	}
}

const (
	queueSolo = "RANKED_SOLO_5x5"
	queueFlex = "RANKED_FLEX_SR"
)

// resolveIdentity fills in the display name and opaque id when the
// snapshot carried only a player id. Returns nil for a private profile.
func (f *Fetcher) resolveIdentity(ctx context.Context, id domain.Identity, opts Options) (*domain.Identity, error) {
	if id.OpaqueID != "" && id.DisplayName != "" {
		return &id, nil
	}

	var profile *domain.Profile
	err := f.runStage(ctx, "resolve", opts.PreWarm, func(stageCtx context.Context) error {
		var err error
		profile, err = f.ids.ResolveProfile(stageCtx, id.PlayerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if profile.Private {
		return nil, nil
	}
	if profile.OpaqueID == "" {
		return nil, errUnresolvable
	}

	return &domain.Identity{
		PlayerID:    id.PlayerID,
		OpaqueID:    profile.OpaqueID,
		DisplayName: profile.DisplayName,
	}, nil
}

// runStage executes one fetch stage under its own deadline, retrying up to
// FetchMaxRetries times with a linearly growing timeout (2s, then 4s, ...).
// Pre-warm requests get a single attempt.
func (f *Fetcher) runStage(ctx context.Context, name string, preWarm bool, fn func(context.Context) error) error {
	maxRetries := uint64(constants.FetchMaxRetries)
	if preWarm {
		maxRetries = 0
	}
	backoff := retry.WithMaxRetries(maxRetries, retry.NewConstant(constants.FetchRetryBackoff))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		stageCtx, cancel := context.WithTimeout(ctx, time.Duration(attempt)*constants.FetchBaseTimeout)
		defer cancel()

		if err := fn(stageCtx); err != nil {
			f.logger.Debug().
				Err(err).
				Str("stage", name).
				Int("attempt", attempt).
				Msg("fetch stage attempt failed")
			return retry.RetryableError(err)
		}
		return nil
	})
}

func fingerprints(matches []domain.MatchOutcome) map[string]struct{} {
	fp := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		if m.MatchID != "" {
			fp[m.MatchID] = struct{}{}
		}
	}
	return fp
}
