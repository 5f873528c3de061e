package alloc

import (
	"github.com/drennalls/slotline/internal/model"
)

// Run outcome constants. A run is "success" when every session was placed
// and "partial" when the deferred queue is non-empty.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
)

// Schedule is the time-slot assignment table for one run: every slot
// considered plus every assignment this run placed. Previously committed
// assignments only seed the ledgers; merging them into the persisted
// schedule is the caller's job.
type Schedule struct {
	TimeSlots   []model.TimeSlot   `json:"time_slots"`
	Assignments []model.Assignment `json:"assignments"`
}

// Stats summarises a completed run.
type Stats struct {
	ScheduledSessions int              `json:"scheduled_sessions"`
	TotalSessions     int              `json:"total_sessions"`
	SchedulingRate    float64          `json:"scheduling_rate"`
	TotalDays         int              `json:"total_days"`
	Conflicts         []model.Conflict `json:"conflicts"`
}

// Result is everything one allocator run produces. Every input session
// appears in exactly one of Schedule.Assignments or Queue.
type Result struct {
	Outcome  string             `json:"outcome"`
	Schedule Schedule           `json:"schedule"`
	Queue    []model.QueueEntry `json:"queue"`
	Stats    Stats              `json:"statistics"`
}

// slotRange builds the TimeSlot table for a horizon of n hourly slots,
// anchored at the pool's start hour.
func slotRange(p *Pool, n int) []model.TimeSlot {
	slots := make([]model.TimeSlot, n)
	for i := 0; i < n; i++ {
		slots[i] = p.SlotAt(i)
	}
	return slots
}
