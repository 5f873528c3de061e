package model

import "time"

// Machine availability state constants.
const (
	MachineAvailable   = "available"
	MachineBusy        = "busy"
	MachineMaintenance = "maintenance"
	MachineOffline     = "offline"
)

// ValidMachineState reports whether the given string is a known machine state.
func ValidMachineState(state string) bool {
	switch state {
	case MachineAvailable, MachineBusy, MachineMaintenance, MachineOffline:
		return true
	}
	return false
}

// Machine represents a physical test machine. A session can only occupy a
// machine whose OS type matches the session's requirement, and only machines
// in the "available" state enter a scheduling run.
type Machine struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OSType    string    `json:"os_type"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}
