package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/drennalls/slotline/internal/alloc"
	"github.com/drennalls/slotline/internal/model"
	"github.com/drennalls/slotline/internal/store"
)

// ErrRunInFlight is returned when a run is requested while another run over
// the same resource pool is still executing. Runs mutate shared ledgers and
// must be serialized.
var ErrRunInFlight = errors.New("a scheduling run is already in flight")

// Engine executes scheduling runs one at a time: it snapshots the
// allocator's inputs from the store, runs the allocator in a goroutine,
// persists the result, and streams events through the broker.
type Engine struct {
	store     store.Store
	allocator *alloc.Allocator
	logger    *slog.Logger
	broker    *Broker
	maxDays   int

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewEngine creates a scheduling engine. maxDays bounds multi-day horizon
// extension in full mode; zero selects the allocator default.
func NewEngine(s store.Store, est alloc.Estimator, maxDays int, logger *slog.Logger) *Engine {
	return &Engine{
		store:     s,
		allocator: alloc.New(est),
		logger:    logger,
		broker:    NewBroker(),
		maxDays:   maxDays,
	}
}

// Broker returns the engine's event broker for SSE subscription.
func (e *Engine) Broker() *Broker {
	return e.broker
}

// StartRun snapshots the allocator's inputs and launches an asynchronous
// scheduling run, returning its run ID. Only one run may be in flight at a
// time; concurrent requests get ErrRunInFlight. Input validation happens
// inside the run; subscribers see an "error" event if it fails.
func (e *Engine) StartRun(ctx context.Context, opts alloc.Options) (string, error) {
	// Snapshot inputs under the run lock so the ledgers derive from a
	// consistent view of the store.
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return "", ErrRunInFlight
	}
	e.running = true
	e.mu.Unlock()

	in, err := e.loadInput(ctx, opts)
	if err != nil {
		e.finish()
		return "", fmt.Errorf("load scheduling input: %w", err)
	}

	runID := model.NewID()
	e.broker.Open(runID)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.finish()
		e.execute(runID, in)
	}()

	return runID, nil
}

// Wait blocks until any in-flight run completes.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) finish() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// loadInput builds the allocator input: sessions still awaiting placement,
// the machine and hardware inventory, and the committed schedule that seeds
// occupancy.
func (e *Engine) loadInput(ctx context.Context, opts alloc.Options) (alloc.Input, error) {
	if opts.MaxDays <= 0 {
		opts.MaxDays = e.maxDays
	}

	sessions, err := e.store.ListSessionsByStatus(ctx, model.StatusPending, model.StatusQueued)
	if err != nil {
		return alloc.Input{}, err
	}
	machines, err := e.store.ListMachines(ctx)
	if err != nil {
		return alloc.Input{}, err
	}
	hardware, err := e.store.ListHardware(ctx)
	if err != nil {
		return alloc.Input{}, err
	}
	existing, err := e.store.GetSchedule(ctx)
	if err != nil {
		return alloc.Input{}, err
	}

	in := alloc.Input{Options: opts}
	retrying := make(map[string]bool, len(sessions))
	for _, s := range sessions {
		in.Sessions = append(in.Sessions, *s)
		retrying[s.ID] = true
	}
	// A session patched back to pending may still have a committed
	// assignment from an earlier run. That row must not seed occupancy
	// against the session's own re-placement, nor survive alongside a new
	// assignment when the union is persisted.
	for _, a := range existing {
		if !retrying[a.SessionID] {
			in.Existing = append(in.Existing, a)
		}
	}
	for _, m := range machines {
		in.Machines = append(in.Machines, *m)
	}
	for _, h := range hardware {
		in.Hardware = append(in.Hardware, *h)
	}
	return in, nil
}

// execute runs the allocator and publishes the run's lifecycle: progress per
// session, conflicts, then a terminal done (or error) event. The persisted
// schedule is the previously committed assignments plus this run's.
func (e *Engine) execute(runID string, in alloc.Input) {
	start := time.Now()
	e.logger.Info("scheduling run started",
		"run_id", runID,
		"mode", in.Options.Mode,
		"sessions", len(in.Sessions),
		"machines", len(in.Machines),
	)

	result, err := e.allocator.Run(context.Background(), in, func(p alloc.Progress) {
		e.broker.Publish(runID, Event{Type: EventProgress, Data: p})
	})
	runDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		runsTotal.WithLabelValues("invalid").Inc()
		e.logger.Error("scheduling run failed", "run_id", runID, "error", err)
		e.broker.Close(runID, &Event{Type: EventError, Data: err.Error()})
		return
	}

	for _, c := range result.Stats.Conflicts {
		conflictsDetected.Inc()
		e.broker.Publish(runID, Event{Type: EventConflict, Data: c})
	}

	combined := append(in.Existing, result.Schedule.Assignments...)
	if err := e.store.ReplaceSchedule(context.Background(), combined, result.Queue); err != nil {
		runsTotal.WithLabelValues("persist_error").Inc()
		e.logger.Error("persist schedule", "run_id", runID, "error", err)
		e.broker.Close(runID, &Event{Type: EventError, Data: "failed to persist schedule"})
		return
	}

	runsTotal.WithLabelValues(result.Outcome).Inc()
	sessionsPlaced.WithLabelValues("scheduled").Add(float64(result.Stats.ScheduledSessions))
	sessionsPlaced.WithLabelValues("queued").Add(float64(len(result.Queue)))

	e.logger.Info("scheduling run finished",
		"run_id", runID,
		"outcome", result.Outcome,
		"scheduled", result.Stats.ScheduledSessions,
		"queued", len(result.Queue),
		"days", result.Stats.TotalDays,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	e.broker.Close(runID, &Event{Type: EventDone, Data: result})
}
