package model

// Queue reason codes explaining why a session could not be placed.
const (
	ReasonNoMachine        = "NO_MACHINE"
	ReasonHardwareQuantity = "HARDWARE_QUANTITY_EXCEEDED"
	ReasonHardwareHours    = "HARDWARE_HOURS_EXCLUDED"
	ReasonNotAttempted     = "NOT_ATTEMPTED"
)

// TimeSlot identifies one hour of schedulable time within a run's horizon.
// Slots are totally ordered by (Day, Hour).
type TimeSlot struct {
	Day  int `json:"day"`
	Hour int `json:"hour"`
}

// Index returns the absolute slot index from the start of the horizon.
func (t TimeSlot) Index() int {
	return t.Day*HoursPerDay + t.Hour
}

// SlotAt converts an absolute slot index back into a (day, hour) TimeSlot.
func SlotAt(index int) TimeSlot {
	return TimeSlot{Day: index / HoursPerDay, Hour: index % HoursPerDay}
}

// Assignment is a committed binding of a session to a machine, an optional
// hardware combination, and a contiguous run of Slots hourly slots starting
// at Start.
type Assignment struct {
	SessionID  string   `json:"session_id"`
	MachineID  string   `json:"machine_id"`
	HardwareID string   `json:"hardware_id,omitempty"`
	Start      TimeSlot `json:"start"`
	Slots      int      `json:"slots"`
}

// End returns the absolute slot index one past the assignment's last slot.
func (a Assignment) End() int {
	return a.Start.Index() + a.Slots
}

// QueueEntry records a session that could not be placed within the run's
// horizon, annotated with the reason code.
type QueueEntry struct {
	SessionID string `json:"session_id"`
	Reason    string `json:"reason"`
}

// Conflict reports a single-slot hardware overallocation: demand sessions
// drawing on a combination whose capacity (or hour mask) does not cover them.
type Conflict struct {
	HardwareID string   `json:"hardware_id"`
	Slot       TimeSlot `json:"slot"`
	Demand     int      `json:"demand"`
	Capacity   int      `json:"capacity"`
}
