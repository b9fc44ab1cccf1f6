package render

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lobby-scout/internal/domain"

	"github.com/rs/zerolog"
)

type recordingRenderer struct {
	mu    sync.Mutex
	seen  []string
	fail  bool
	calls int
}

func (r *recordingRenderer) Render(team, seatIndex int, rec *domain.EnrichedRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.seen = append(r.seen, rec.DisplayName)
	if r.fail {
		return errors.New("render failed")
	}
	return nil
}

func (r *recordingRenderer) Retire(team, seatIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.seen = append(r.seen, "retire")
	return nil
}

func TestCommandsAppliedInOrder(t *testing.T) {
	renderer := &recordingRenderer{}
	q := NewQueue(renderer, zerolog.Nop())
	q.Start()

	for _, name := range []string{"a", "b", "c"} {
		q.Render(1, 0, domain.EnrichedRecord{DisplayName: name})
	}
	q.Retire(1, 0)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Stop(ctx)

	want := []string{"a", "b", "c", "retire"}
	renderer.mu.Lock()
	defer renderer.mu.Unlock()
	if len(renderer.seen) != len(want) {
		t.Fatalf("commands: got %v, want %v", renderer.seen, want)
	}
	for i := range want {
		if renderer.seen[i] != want[i] {
			t.Fatalf("command %d: got %q, want %q", i, renderer.seen[i], want[i])
		}
	}
}

func TestRenderFailureNotRetried(t *testing.T) {
	renderer := &recordingRenderer{fail: true}
	q := NewQueue(renderer, zerolog.Nop())
	q.Start()

	q.Render(1, 0, domain.EnrichedRecord{DisplayName: "x"})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Stop(ctx)

	renderer.mu.Lock()
	defer renderer.mu.Unlock()
	if renderer.calls != 1 {
		t.Fatalf("calls: got %d, want 1 (failures are logged, not retried)", renderer.calls)
	}
}

func TestEnqueueAfterStopIsDropped(t *testing.T) {
	renderer := &recordingRenderer{}
	q := NewQueue(renderer, zerolog.Nop())
	q.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Stop(ctx)

	// must not panic
	q.Render(1, 0, domain.EnrichedRecord{DisplayName: "late"})
}

func TestEnqueuedRecordDetachedFromCaller(t *testing.T) {
	renderer := &recordingRenderer{}
	q := NewQueue(renderer, zerolog.Nop())

	rec := domain.EnrichedRecord{DisplayName: "before", PartyKey: "party-aa"}
	q.Render(1, 0, rec)

	// the caller keeps mutating its copy after enqueueing, as the
	// reconciler does when party detection reruns
	rec.DisplayName = "after"
	rec.PartyKey = "party-bb"

	q.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Stop(ctx)

	renderer.mu.Lock()
	defer renderer.mu.Unlock()
	if len(renderer.seen) != 1 || renderer.seen[0] != "before" {
		t.Fatalf("rendered names: got %v, want [before]", renderer.seen)
	}
}
