package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lobby-scout/internal/constants"
	"lobby-scout/internal/domain"
	"lobby-scout/internal/fetcher"
	"lobby-scout/internal/party"
	"lobby-scout/internal/reconcile"
	"lobby-scout/internal/render"

	"github.com/rs/zerolog"
)

type fakeSession struct {
	mu           sync.Mutex
	phase        string
	phaseErr     error
	roster       []domain.SeatSnapshot
	rosterCalls  int
	rosterErrors error
}

func (f *fakeSession) RosterSnapshot(ctx context.Context) ([]domain.SeatSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rosterCalls++
	return f.roster, f.rosterErrors
}

func (f *fakeSession) Phase(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase, f.phaseErr
}

type fakeFetch struct {
	mu       sync.Mutex
	prewarms []int64
}

func (f *fakeFetch) Fetch(ctx context.Context, id domain.Identity, characterID int, opts fetcher.Options) *domain.EnrichedRecord {
	rec := domain.NewPendingRecord(id, characterID)
	rec.Status = domain.StatusReady
	rec.Fingerprints = map[string]struct{}{}
	return rec
}

func (f *fakeFetch) PreWarm(ctx context.Context, id domain.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prewarms = append(f.prewarms, id.PlayerID)
}

type nopRenderer struct{}

func (nopRenderer) Render(team, seatIndex int, rec *domain.EnrichedRecord) error { return nil }
func (nopRenderer) Retire(team, seatIndex int) error                             { return nil }

func newTestPoller(session *fakeSession, fetch *fakeFetch) (*Poller, *reconcile.Reconciler) {
	q := render.NewQueue(nopRenderer{}, zerolog.Nop())
	q.Start()
	rec := reconcile.New(fetch, party.NewDetector(), q, nil, zerolog.Nop())
	return New(session, rec, fetch, zerolog.Nop()), rec
}

func knownSeat(idx int, playerID int64) domain.SeatSnapshot {
	return domain.SeatSnapshot{
		Team:        1,
		SeatIndex:   idx,
		Identity:    domain.Identity{PlayerID: playerID, OpaqueID: "p", DisplayName: "n"},
		CharacterID: 1,
		CapturedAt:  time.Now(),
	}
}

func TestTickReconcilesDuringChampSelect(t *testing.T) {
	session := &fakeSession{phase: PhaseChampSelect, roster: []domain.SeatSnapshot{knownSeat(0, 101)}}
	p, rec := newTestPoller(session, &fakeFetch{})

	interval := p.tick(context.Background())
	rec.Wait()

	if interval != constants.ChampSelectPollInterval {
		t.Fatalf("interval: got %v, want %v", interval, constants.ChampSelectPollInterval)
	}
	if session.rosterCalls != 1 {
		t.Fatalf("roster calls: got %d, want 1", session.rosterCalls)
	}
	if len(rec.Seats()) != 1 {
		t.Fatalf("seats: got %d, want 1", len(rec.Seats()))
	}
}

func TestIdlePhaseSkipsRoster(t *testing.T) {
	session := &fakeSession{phase: "Lobby"}
	p, _ := newTestPoller(session, &fakeFetch{})

	interval := p.tick(context.Background())

	if interval != constants.IdlePollInterval {
		t.Fatalf("interval: got %v, want %v", interval, constants.IdlePollInterval)
	}
	if session.rosterCalls != 0 {
		t.Fatalf("roster calls: got %d, want 0", session.rosterCalls)
	}
}

func TestPhaseErrorFallsBackToIdleInterval(t *testing.T) {
	session := &fakeSession{phaseErr: errors.New("client offline")}
	p, _ := newTestPoller(session, &fakeFetch{})

	if interval := p.tick(context.Background()); interval != constants.IdlePollInterval {
		t.Fatalf("interval: got %v, want %v", interval, constants.IdlePollInterval)
	}
}

func TestPreWarmOnlyOnChampSelectEntry(t *testing.T) {
	fetch := &fakeFetch{}
	session := &fakeSession{phase: PhaseChampSelect, roster: []domain.SeatSnapshot{
		knownSeat(0, 101),
		{Team: 1, SeatIndex: 1, CharacterID: 2}, // hidden, never pre-warmed
	}}
	p, rec := newTestPoller(session, fetch)

	p.tick(context.Background())
	p.tick(context.Background())
	rec.Wait()
	time.Sleep(20 * time.Millisecond) // pre-warm goroutines

	fetch.mu.Lock()
	defer fetch.mu.Unlock()
	if len(fetch.prewarms) != 1 {
		t.Fatalf("prewarms: got %v, want exactly one for the known identity", fetch.prewarms)
	}
	if fetch.prewarms[0] != 101 {
		t.Fatalf("prewarm target: got %d, want 101", fetch.prewarms[0])
	}
}

func TestInGameUsesSlowerCadence(t *testing.T) {
	session := &fakeSession{phase: PhaseInProgress, roster: []domain.SeatSnapshot{knownSeat(0, 101)}}
	p, rec := newTestPoller(session, &fakeFetch{})

	interval := p.tick(context.Background())
	rec.Wait()

	if interval != constants.InGamePollInterval {
		t.Fatalf("interval: got %v, want %v", interval, constants.InGamePollInterval)
	}
}
