package poller

import (
	"context"
	"time"

	"lobby-scout/internal/constants"
	"lobby-scout/internal/domain"
	"lobby-scout/internal/reconcile"

	"github.com/rs/zerolog"
)

// Gameflow phases reported by the session provider that we care about.
const (
	PhaseChampSelect = "ChampSelect"
	PhaseInProgress  = "InProgress"
)

type SessionProvider interface {
	RosterSnapshot(ctx context.Context) ([]domain.SeatSnapshot, error)
	Phase(ctx context.Context) (string, error)
}

type PreWarmer interface {
	PreWarm(ctx context.Context, id domain.Identity)
}

// Poller drives the reconciler: it polls the session provider on a cadence
// derived from the gameflow phase and hands each roster snapshot to the
// reconciler. On entering champion select it pre-warms the page cache for
// every known identity.
type Poller struct {
	session SessionProvider
	rec     *reconcile.Reconciler
	warmer  PreWarmer
	logger  zerolog.Logger

	lastPhase string
}

func New(session SessionProvider, rec *reconcile.Reconciler, warmer PreWarmer, logger zerolog.Logger) *Poller {
	return &Poller{session: session, rec: rec, warmer: warmer, logger: logger}
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	for {
		interval := p.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// tick performs one poll cycle and returns the interval until the next.
func (p *Poller) tick(ctx context.Context) time.Duration {
	reqCtx, cancel := context.WithTimeout(ctx, constants.SessionRequestTimeout)
	defer cancel()

	phase, err := p.session.Phase(reqCtx)
	if err != nil {
		p.logger.Debug().Err(err).Msg("phase lookup failed, session provider likely offline")
		return constants.IdlePollInterval
	}

	interval := intervalFor(phase)
	if phase != PhaseChampSelect && phase != PhaseInProgress {
		p.lastPhase = phase
		return interval
	}

	snapshot, err := p.session.RosterSnapshot(reqCtx)
	if err != nil {
		p.logger.Warn().Err(err).Str("phase", phase).Msg("roster snapshot failed")
		p.lastPhase = phase
		return interval
	}

	if phase == PhaseChampSelect && p.lastPhase != PhaseChampSelect && p.warmer != nil {
		for _, s := range snapshot {
			if !s.Identity.Hidden() {
				go p.warmer.PreWarm(ctx, s.Identity)
			}
		}
	}
	p.lastPhase = phase

	p.rec.Reconcile(ctx, snapshot)
	return interval
}

func intervalFor(phase string) time.Duration {
	switch phase {
	case PhaseChampSelect:
		return constants.ChampSelectPollInterval
	case PhaseInProgress:
		return constants.InGamePollInterval
	default:
		return constants.IdlePollInterval
	}
}
