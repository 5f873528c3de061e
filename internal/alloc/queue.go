package alloc

import (
	"sort"

	"github.com/drennalls/slotline/internal/model"
)

// Item pairs a session with its derived slot requirement and original input
// position, which serves as the final tie-break.
type Item struct {
	Session model.Session
	Slots   int
	Index   int
}

// SessionQueue imposes the run's total order over pending sessions and holds
// the entries that could not be placed. The order is computed once at
// construction and never changes mid-run; the deferred side is append-only.
type SessionQueue struct {
	items    []Item
	deferred []model.QueueEntry
}

// NewSessionQueue orders sessions by priority tier descending, then required
// slots descending (decreasing-size heuristic to reduce fragmentation), then
// original input order.
func NewSessionQueue(sessions []model.Session, est Estimator) *SessionQueue {
	items := make([]Item, len(sessions))
	for i, s := range sessions {
		items[i] = Item{
			Session: s,
			Slots:   HoursToSlots(est.Estimate(s.NormalCounts, s.ComboCounts)),
			Index:   i,
		}
	}
	sort.Slice(items, func(i, j int) bool {
		pi, pj := model.PriorityRank(items[i].Session.Priority), model.PriorityRank(items[j].Session.Priority)
		if pi != pj {
			return pi > pj
		}
		if items[i].Slots != items[j].Slots {
			return items[i].Slots > items[j].Slots
		}
		return items[i].Index < items[j].Index
	})
	return &SessionQueue{items: items}
}

// Len returns the number of sessions in the run order.
func (q *SessionQueue) Len() int {
	return len(q.items)
}

// Items returns the sessions in run order with their slot requirements.
func (q *SessionQueue) Items() []Item {
	return q.items
}

// Defer appends a session to the deferred queue with the given reason.
func (q *SessionQueue) Defer(sessionID, reason string) {
	q.deferred = append(q.deferred, model.QueueEntry{SessionID: sessionID, Reason: reason})
}

// Deferred returns the queue entries accumulated during the run.
func (q *SessionQueue) Deferred() []model.QueueEntry {
	return q.deferred
}
