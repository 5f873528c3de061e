package alloc

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/drennalls/slotline/internal/model"
)

// Scheduling modes.
const (
	ModeFull    = "full"
	ModeLimited = "limited"
)

// DefaultMaxDays bounds multi-day horizon extension in full mode.
const DefaultMaxDays = 14

// Options control a single allocator run.
type Options struct {
	Mode          string    `json:"mode"`
	Start         time.Time `json:"start_date_time"`
	ExpectedHours float64   `json:"expected_hours,omitempty"` // required in limited mode
	AllowMultiDay bool      `json:"allow_multi_day,omitempty"`
	MaxDays       int       `json:"max_days,omitempty"`
}

// Input is everything one run consumes. Sessions carry raw test-case counts;
// the allocator derives durations itself.
type Input struct {
	Sessions []model.Session
	Machines []model.Machine
	Hardware []model.HardwareCombination
	Existing []model.Assignment
	Options  Options
}

// Progress is emitted after each per-session placement decision.
type Progress struct {
	Processed int    `json:"processed_count"`
	Total     int    `json:"total_count"`
	SessionID string `json:"current_session_id"`
}

// ProgressFunc receives progress events during a run. It must not block;
// slow consumers are the caller's problem, not the placement loop's.
type ProgressFunc func(Progress)

// ValidationError marks malformed input. It aborts the run before any
// ledger mutation; no partial schedule is produced.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "invalid scheduling input: " + e.Msg
}

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Allocator places sessions into hourly slots in priority order. One run is
// a single synchronous computation over ledgers it exclusively owns; callers
// must serialize runs over the same logical resource pool.
type Allocator struct {
	est Estimator
}

// New creates an allocator using the given estimator.
func New(est Estimator) *Allocator {
	return &Allocator{est: est}
}

// Run executes one scheduling run. Individual unplaceable sessions are never
// errors — they queue with a reason code. Run fails only on malformed input
// or, partially, on context cancellation (remaining sessions queue as
// NOT_ATTEMPTED and the partial result is still returned).
func (a *Allocator) Run(ctx context.Context, in Input, progress ProgressFunc) (*Result, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	maxDays := in.Options.MaxDays
	if maxDays <= 0 {
		maxDays = DefaultMaxDays
	}

	// The placement horizon in slots. Full mode starts at one day and may
	// extend; limited mode is fixed to the expected hours, rounded up.
	var horizon, totalDays int
	multiDay := false
	switch in.Options.Mode {
	case ModeFull:
		horizon = model.HoursPerDay
		multiDay = in.Options.AllowMultiDay
	case ModeLimited:
		horizon = int(math.Ceil(in.Options.ExpectedHours))
		totalDays = (horizon + model.HoursPerDay - 1) / model.HoursPerDay
	}

	// Slot 0 of this run falls on the start's hour of day; hour masks and
	// reported slot positions are anchored there, not at midnight.
	pool := NewPool(in.Machines, in.Hardware, in.Existing, horizon, in.Options.Start.Hour())
	conflicts := DetectOverallocations(pool)
	queue := NewSessionQueue(in.Sessions, a.est)

	var assignments []model.Assignment
	items := queue.Items()
	cancelled := false

	for i, item := range items {
		if ctx.Err() != nil {
			cancelled = true
			for _, rest := range items[i:] {
				queue.Defer(rest.Session.ID, model.ReasonNotAttempted)
			}
			break
		}

		asn, placed := a.place(item, pool)
		for !placed && in.Options.Mode == ModeFull && multiDay && pool.Horizon() < maxDays*model.HoursPerDay {
			pool.ExtendHorizon(model.HoursPerDay)
			asn, placed = a.place(item, pool)
		}

		if placed {
			assignments = append(assignments, asn)
		} else {
			queue.Defer(item.Session.ID, Classify(item.Session, item.Slots, pool))
		}

		if progress != nil {
			progress(Progress{
				Processed: i + 1,
				Total:     len(items),
				SessionID: item.Session.ID,
			})
		}
	}

	if in.Options.Mode == ModeFull {
		totalDays = 1
		for _, asn := range assignments {
			if end := model.SlotAt(asn.End() - 1); end.Day+1 > totalDays {
				totalDays = end.Day + 1
			}
		}
	}

	deferred := queue.Deferred()
	result := &Result{
		Outcome: OutcomeSuccess,
		Schedule: Schedule{
			TimeSlots:   slotRange(pool, pool.Horizon()),
			Assignments: assignments,
		},
		Queue: deferred,
		Stats: Stats{
			ScheduledSessions: len(assignments),
			TotalSessions:     len(items),
			SchedulingRate:    schedulingRate(len(assignments), len(items)),
			TotalDays:         totalDays,
			Conflicts:         conflicts,
		},
	}
	if len(deferred) > 0 {
		result.Outcome = OutcomePartial
	}
	if cancelled {
		return result, ctx.Err()
	}
	return result, nil
}

// place attempts a first-fit placement for one session and commits it on
// success. Check-then-commit: availability is verified for the whole window
// before Reserve, so the common path needs no rollback.
func (a *Allocator) place(item Item, pool *Pool) (model.Assignment, bool) {
	key := ""
	var windowOK func(start int) bool
	if item.Session.Hardware != nil {
		key = model.HardwareKey(item.Session.Hardware.Platform, item.Session.Hardware.Debugger)
		k, slots := key, item.Slots
		windowOK = func(start int) bool {
			return pool.HardwareAvailable(k, start, slots)
		}
	}

	machineID, start, found := pool.FindFreeMachineWindow(item.Session.OSType, item.Slots, windowOK)
	if !found {
		return model.Assignment{}, false
	}

	pool.Reserve(machineID, key, start, item.Slots)
	asn := model.Assignment{
		SessionID: item.Session.ID,
		MachineID: machineID,
		Start:     pool.SlotAt(start),
		Slots:     item.Slots,
	}
	if key != "" {
		if combo, ok := pool.Combo(key); ok {
			asn.HardwareID = combo.ID
		}
	}
	return asn, true
}

func validate(in Input) error {
	switch in.Options.Mode {
	case ModeFull:
	case ModeLimited:
		if in.Options.ExpectedHours <= 0 {
			return validationf("limited mode requires expected_hours > 0")
		}
		if in.Options.Start.IsZero() {
			return validationf("limited mode requires a start date-time")
		}
	default:
		return validationf("unknown mode %q", in.Options.Mode)
	}

	for _, s := range in.Sessions {
		if s.Name == "" {
			return validationf("session %s has no name", s.ID)
		}
	}
	for _, c := range in.Hardware {
		if c.Quantity < 0 {
			return validationf("hardware combination %s has negative quantity %d", c.ID, c.Quantity)
		}
	}
	return nil
}

func schedulingRate(scheduled, total int) float64 {
	if total == 0 {
		return 1
	}
	return float64(scheduled) / float64(total)
}
