package render

import (
	"context"
	"sync"

	"lobby-scout/internal/constants"
	"lobby-scout/internal/domain"

	"github.com/rs/zerolog"
)

// Renderer is the display collaborator. It owns its own execution context;
// commands reach it in order through the Queue. Render failures are
// logged, never retried.
type Renderer interface {
	Render(team, seatIndex int, rec *domain.EnrichedRecord) error
	Retire(team, seatIndex int) error
}

type op int

const (
	opRender op = iota
	opRetire
)

type command struct {
	op        op
	team      int
	seatIndex int
	record    domain.EnrichedRecord
}

// Queue decouples the reconciler from the renderer's threading model: the
// reconciler enqueues commands from any goroutine, a single drain
// goroutine applies them in order.
type Queue struct {
	renderer Renderer
	logger   zerolog.Logger
	cmds     chan command

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

func NewQueue(renderer Renderer, logger zerolog.Logger) *Queue {
	return &Queue{
		renderer: renderer,
		logger:   logger,
		cmds:     make(chan command, constants.RenderQueueDepth),
		done:     make(chan struct{}),
	}
}

func (q *Queue) Start() {
	q.startOnce.Do(func() {
		go q.drain()
	})
}

// Stop closes the queue after draining whatever is already enqueued.
func (q *Queue) Stop(ctx context.Context) {
	q.stopOnce.Do(func() {
		close(q.cmds)
	})
	select {
	case <-q.done:
	case <-ctx.Done():
		q.logger.Warn().Msg("render queue stop timed out")
	}
}

// Render enqueues a copy of the record. Seat state keeps mutating after a
// command is enqueued (party markers, encounter counts), so the queue must
// never share memory with the reconciler.
func (q *Queue) Render(team, seatIndex int, rec domain.EnrichedRecord) {
	q.enqueue(command{op: opRender, team: team, seatIndex: seatIndex, record: rec})
}

func (q *Queue) Retire(team, seatIndex int) {
	q.enqueue(command{op: opRetire, team: team, seatIndex: seatIndex})
}

func (q *Queue) enqueue(cmd command) {
	defer func() {
		// enqueue after Stop loses the command; a closed overlay is
		// shutting down anyway
		if recover() != nil {
			q.logger.Debug().Int("team", cmd.team).Int("seat", cmd.seatIndex).Msg("render command dropped after stop")
		}
	}()
	q.cmds <- cmd
}

func (q *Queue) drain() {
	defer close(q.done)
	for cmd := range q.cmds {
		var err error
		switch cmd.op {
		case opRender:
			err = q.renderer.Render(cmd.team, cmd.seatIndex, &cmd.record)
		case opRetire:
			err = q.renderer.Retire(cmd.team, cmd.seatIndex)
		}
		if err != nil {
			q.logger.Error().
				Err(err).
				Int("team", cmd.team).
				Int("seat", cmd.seatIndex).
				Msg("render command failed")
		}
	}
}

// LogRenderer writes seat updates to the log. Used when no overlay UI is
// attached.
type LogRenderer struct {
	logger zerolog.Logger
}

func NewLogRenderer(logger zerolog.Logger) *LogRenderer {
	return &LogRenderer{logger: logger}
}

func (r *LogRenderer) Render(team, seatIndex int, rec *domain.EnrichedRecord) error {
	r.logger.Info().
		Int("team", team).
		Int("seat", seatIndex).
		Str("name", rec.DisplayName).
		Str("status", string(rec.Status)).
		Int("character_id", rec.CharacterID).
		Str("party", rec.PartyKey).
		Msg("seat rendered")
	return nil
}

func (r *LogRenderer) Retire(team, seatIndex int) error {
	r.logger.Info().Int("team", team).Int("seat", seatIndex).Msg("seat retired")
	return nil
}
