package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"lobby-scout/internal/constants"
	"lobby-scout/internal/domain"
	"lobby-scout/internal/fetcher"
	"lobby-scout/internal/party"
	"lobby-scout/internal/render"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type EnrichmentFetcher interface {
	Fetch(ctx context.Context, id domain.Identity, characterID int, opts fetcher.Options) *domain.EnrichedRecord
}

// EncounterStore journals players observed in a scouting session. A nil
// store disables journaling.
type EncounterStore interface {
	Record(ctx context.Context, enc *domain.Encounter) error
	CountForPlayer(ctx context.Context, opaqueID, excludeSession string) (int, error)
}

type seatKey struct {
	Team  int
	Index int
}

// seatState tracks what one rendered seat currently shows, and the
// identity/character pair any in-flight fetch was dispatched for. A
// completed fetch is only applied while that pair still matches.
type seatState struct {
	record      *domain.EnrichedRecord
	identity    domain.Identity
	characterID int
	placeholder bool
	gen         uint64
}

type SeatView struct {
	Team      int                   `json:"team"`
	SeatIndex int                   `json:"seat_index"`
	Record    domain.EnrichedRecord `json:"record"`
}

// Reconciler diffs each incoming roster snapshot against the rendered
// seats and issues the minimal set of fetch and render operations. Seat
// position, not player identity, is the unit of state: the renderer
// addresses seats, and players move between them.
type Reconciler struct {
	fetch    EnrichmentFetcher
	detector *party.Detector
	queue    *render.Queue
	store    EncounterStore
	logger   zerolog.Logger

	sessionID  string
	retryDelay time.Duration

	mu             sync.Mutex
	seats          map[seatKey]*seatState
	gen            uint64
	placeholderSeq int64
	wg             sync.WaitGroup
}

func New(fetch EnrichmentFetcher, detector *party.Detector, queue *render.Queue, store EncounterStore, logger zerolog.Logger) *Reconciler {
	sessionID, err := gonanoid.New()
	if err != nil {
		sessionID = "session-fallback"
	}
	return &Reconciler{
		fetch:      fetch,
		detector:   detector,
		queue:      queue,
		store:      store,
		logger:     logger,
		sessionID:  sessionID,
		retryDelay: constants.ReconcileRetryDelay,
		seats:      make(map[seatKey]*seatState),
	}
}

type dispatch struct {
	key  seatKey
	snap domain.SeatSnapshot
}

// Reconcile processes one roster snapshot. Fetches are dispatched
// asynchronously; each completion re-validates the seat's character before
// applying, so a snapshot arriving mid-fetch silently invalidates stale
// results instead of cancelling them.
func (r *Reconciler) Reconcile(ctx context.Context, snapshot []domain.SeatSnapshot) {
	r.mu.Lock()
	r.gen++
	gen := r.gen

	expected := make(map[seatKey]domain.SeatSnapshot, len(snapshot))
	for _, snap := range snapshot {
		expected[seatKey{Team: snap.Team, Index: snap.SeatIndex}] = snap
	}

	var retired []seatKey
	for key := range r.seats {
		if _, ok := expected[key]; !ok {
			delete(r.seats, key)
			retired = append(retired, key)
		}
	}

	var dispatches []dispatch
	var renders []dispatchRender

	for key, snap := range expected {
		st := r.seats[key]

		if snap.Identity.Hidden() {
			if st != nil && !st.placeholder && st.record.Status == domain.StatusHidden && st.characterID == snap.CharacterID {
				continue // opaque seat, same character: already rendered
			}
		} else if st != nil && !st.placeholder && st.identity.Same(snap.Identity) {
			if st.characterID == snap.CharacterID {
				switch st.record.Status {
				case domain.StatusPending:
					continue // fetch already in flight
				case domain.StatusFailed:
					// failed seats are retried on every poll
				default:
					continue // identity and character agree
				}
			}
			// character changed (or a failed render): refetch below
		} else if r.renderedElsewhereLocked(key, snap.Identity) {
			// position swap: the identity is already enriched at another
			// seat, refetching would only duplicate work and flicker
			r.logger.Debug().
				Int("team", key.Team).
				Int("seat", key.Index).
				Int64("player_id", snap.Identity.PlayerID).
				Msg("seat swap detected, skipping refetch")
			continue
		}

		target := locateSnapshot(snapshot, key, snap)
		if target == nil {
			if st != nil && st.placeholder && st.characterID == snap.CharacterID {
				continue // placeholder already rendered for this seat
			}
			ph := r.newPlaceholderLocked(snap)
			r.seats[key] = &seatState{
				record:      ph,
				identity:    ph.Identity,
				characterID: snap.CharacterID,
				placeholder: true,
				gen:         gen,
			}
			renders = append(renders, dispatchRender{key: key, rec: *ph})
			continue
		}

		pending := domain.NewPendingRecord(target.Identity, target.CharacterID)
		r.seats[key] = &seatState{
			record:      pending,
			identity:    target.Identity,
			characterID: target.CharacterID,
			gen:         gen,
		}
		if st == nil {
			// new seat: render the pending card so the UI never shows a gap
			renders = append(renders, dispatchRender{key: key, rec: *pending})
		}
		dispatches = append(dispatches, dispatch{key: key, snap: *target})
	}
	r.mu.Unlock()

	for _, key := range retired {
		r.queue.Retire(key.Team, key.Index)
	}
	for _, rd := range renders {
		r.queue.Render(rd.key.Team, rd.key.Index, rd.rec)
	}
	for _, d := range dispatches {
		r.wg.Add(1)
		go r.fetchAndApply(ctx, d.key, d.snap, fetcher.Options{})
	}

	if len(dispatches) > 0 && r.retryDelay > 0 {
		time.AfterFunc(r.retryDelay, func() { r.retryPass(ctx, gen) })
	}
}

type dispatchRender struct {
	key seatKey
	rec domain.EnrichedRecord
}

// retryPass re-dispatches seats that failed during the pass that scheduled
// it. One retry only; later polls retry failed seats naturally.
func (r *Reconciler) retryPass(ctx context.Context, gen uint64) {
	r.mu.Lock()
	var dispatches []dispatch
	for key, st := range r.seats {
		if st.gen != gen || st.placeholder {
			continue
		}
		if st.record.Status == domain.StatusFailed {
			dispatches = append(dispatches, dispatch{key: key, snap: domain.SeatSnapshot{
				Team:        key.Team,
				SeatIndex:   key.Index,
				Identity:    st.identity,
				CharacterID: st.characterID,
			}})
		}
	}
	r.mu.Unlock()

	for _, d := range dispatches {
		r.wg.Add(1)
		go r.fetchAndApply(ctx, d.key, d.snap, fetcher.Options{})
	}
}

func (r *Reconciler) fetchAndApply(ctx context.Context, key seatKey, snap domain.SeatSnapshot, opts fetcher.Options) {
	defer r.wg.Done()

	rec := r.fetch.Fetch(ctx, snap.Identity, snap.CharacterID, opts)

	// annotate while the record is still goroutine-local; once applySeat
	// publishes it, Seats() may be reading it concurrently
	journaling := rec.Status == domain.StatusReady && r.store != nil && rec.Identity.OpaqueID != ""
	if journaling {
		r.countEncounters(ctx, rec)
	}

	applied, ok := r.applySeat(key, snap, rec)
	if !ok {
		r.logger.Debug().
			Int("team", key.Team).
			Int("seat", key.Index).
			Int("character_id", snap.CharacterID).
			Msg("discarding stale fetch result")
		return
	}

	if journaling {
		r.recordEncounter(ctx, key, applied)
	}

	r.queue.Render(key.Team, key.Index, applied)
	r.refreshParties(key.Team)
}

// applySeat installs a completed record, unless the seat was retired or
// its selection changed while the fetch was in flight. The returned copy
// is what callers hand to the renderer; the installed record belongs to
// the seat map from here on.
func (r *Reconciler) applySeat(key seatKey, snap domain.SeatSnapshot, rec *domain.EnrichedRecord) (domain.EnrichedRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.seats[key]
	if st == nil {
		return domain.EnrichedRecord{}, false
	}
	if st.characterID != snap.CharacterID || !identitiesMatch(st.identity, snap.Identity) {
		return domain.EnrichedRecord{}, false
	}

	st.record = rec
	st.placeholder = rec.Placeholder
	return *rec, true
}

func (r *Reconciler) countEncounters(ctx context.Context, rec *domain.EnrichedRecord) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	count, err := r.store.CountForPlayer(ctx, rec.Identity.OpaqueID, r.sessionID)
	if err != nil {
		r.logger.Warn().Err(err).Str("opaque_id", rec.Identity.OpaqueID).Msg("encounter count lookup failed")
		return
	}
	rec.EncounterCount = count
}

func (r *Reconciler) recordEncounter(ctx context.Context, key seatKey, rec domain.EnrichedRecord) {
	ctx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()

	enc := &domain.Encounter{
		SessionID:   r.sessionID,
		OpaqueID:    rec.Identity.OpaqueID,
		DisplayName: rec.DisplayName,
		CharacterID: rec.CharacterID,
		Team:        key.Team,
		SeenAt:      time.Now(),
	}
	if err := r.store.Record(ctx, enc); err != nil {
		r.logger.Warn().Err(err).Str("opaque_id", rec.Identity.OpaqueID).Msg("failed to journal encounter")
	}
}

// refreshParties reruns party detection for one team and re-renders seats
// whose markers changed.
func (r *Reconciler) refreshParties(team int) {
	type member struct {
		key      seatKey
		rec      *domain.EnrichedRecord
		oldKey   string
		oldColor string
	}

	r.mu.Lock()
	var members []member
	for key, st := range r.seats {
		if key.Team != team || st.record == nil || st.record.Status != domain.StatusReady {
			continue
		}
		members = append(members, member{key: key, rec: st.record, oldKey: st.record.PartyKey, oldColor: st.record.PartyColor})
	}
	recs := make([]*domain.EnrichedRecord, len(members))
	for i, m := range members {
		recs[i] = m.rec
	}
	r.detector.Detect(recs)

	// copy changed records while still holding the lock; the queue must
	// not observe later Detect passes rewriting the markers
	var changed []dispatchRender
	for _, m := range members {
		if m.rec.PartyKey != m.oldKey || m.rec.PartyColor != m.oldColor {
			changed = append(changed, dispatchRender{key: m.key, rec: *m.rec})
		}
	}
	r.mu.Unlock()

	for _, c := range changed {
		r.queue.Render(c.key.Team, c.key.Index, c.rec)
	}
}

func (r *Reconciler) renderedElsewhereLocked(key seatKey, id domain.Identity) bool {
	if id.Hidden() {
		return false
	}
	for other, st := range r.seats {
		if other == key || st.placeholder {
			continue
		}
		if st.identity.Same(id) {
			return true
		}
	}
	return false
}

// locateSnapshot finds the authoritative snapshot for a seat: by identity
// first, falling back to position. A seat we can neither identify nor
// disambiguate by character gets nothing, and the caller synthesizes a
// placeholder.
func locateSnapshot(snapshot []domain.SeatSnapshot, key seatKey, want domain.SeatSnapshot) *domain.SeatSnapshot {
	if !want.Identity.Hidden() {
		for i := range snapshot {
			if snapshot[i].Identity.Same(want.Identity) {
				return &snapshot[i]
			}
		}
	}
	for i := range snapshot {
		if snapshot[i].Team == key.Team && snapshot[i].SeatIndex == key.Index {
			if snapshot[i].Identity.Hidden() && snapshot[i].CharacterID == 0 {
				return nil
			}
			return &snapshot[i]
		}
	}
	return nil
}

func (r *Reconciler) newPlaceholderLocked(snap domain.SeatSnapshot) *domain.EnrichedRecord {
	r.placeholderSeq++
	return &domain.EnrichedRecord{
		Identity:    domain.Identity{PlayerID: -r.placeholderSeq},
		DisplayName: domain.NotFoundDisplayName,
		CharacterID: snap.CharacterID,
		Status:      domain.StatusFailed,
		Placeholder: true,
		FetchedAt:   time.Now(),
	}
}

func identitiesMatch(a, b domain.Identity) bool {
	if a.Hidden() && b.Hidden() {
		return true
	}
	return a.Same(b)
}

// Seats returns a copy of the rendered seats ordered by team and index.
func (r *Reconciler) Seats() []SeatView {
	r.mu.Lock()
	defer r.mu.Unlock()

	views := make([]SeatView, 0, len(r.seats))
	for key, st := range r.seats {
		if st.record == nil {
			continue
		}
		views = append(views, SeatView{Team: key.Team, SeatIndex: key.Index, Record: *st.record})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Team != views[j].Team {
			return views[i].Team < views[j].Team
		}
		return views[i].SeatIndex < views[j].SeatIndex
	})
	return views
}

// Wait blocks until all dispatched fetches have settled. Test hook.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}
