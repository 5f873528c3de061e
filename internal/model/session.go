package model

import "time"

// Session status constants.
const (
	StatusPending   = "pending"
	StatusQueued    = "queued"
	StatusScheduled = "scheduled"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Priority tier constants, ordered from most to least urgent.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityNormal = "normal"
	PriorityLow    = "low"
)

// priorityRank maps each tier to its ordering weight; higher schedules first.
var priorityRank = map[string]int{
	PriorityUrgent: 3,
	PriorityHigh:   2,
	PriorityNormal: 1,
	PriorityLow:    0,
}

// PriorityRank returns the ordering weight for a priority tier.
// Unknown tiers rank below "low".
func PriorityRank(priority string) int {
	rank, ok := priorityRank[priority]
	if !ok {
		return -1
	}
	return rank
}

// ValidPriority reports whether the given string is a known priority tier.
func ValidPriority(priority string) bool {
	_, ok := priorityRank[priority]
	return ok
}

// validTransitions maps each session status to the set of statuses it may
// transition to. The allocator drives pending/queued -> scheduled/queued;
// execution collaborators drive scheduled -> running -> completed/failed.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusScheduled: true,
		StatusQueued:    true,
	},
	StatusQueued: {
		StatusScheduled: true,
		StatusQueued:    true,
		StatusPending:   true,
	},
	StatusScheduled: {
		StatusRunning: true,
		StatusQueued:  true,
		StatusPending: true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// TestCounts holds the per-category test-case tallies for a session.
// Only Fail and NotRun contribute to the duration estimate.
type TestCounts struct {
	Pass   int `json:"pass"`
	Fail   int `json:"fail"`
	NotRun int `json:"not_run"`
}

// ToRun returns the number of test cases still outstanding.
// Negative tallies are treated as zero.
func (c TestCounts) ToRun() int {
	n := 0
	if c.Fail > 0 {
		n += c.Fail
	}
	if c.NotRun > 0 {
		n += c.NotRun
	}
	return n
}

// HardwareRef names the platform/debugger combination a session requires.
// A nil HardwareRef on a Session means no shared hardware is needed.
type HardwareRef struct {
	Platform string `json:"platform"`
	Debugger string `json:"debugger"`
}

// Session represents a unit of test work to be placed on a machine.
type Session struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Priority     string       `json:"priority"`
	OSType       string       `json:"os_type"`
	Hardware     *HardwareRef `json:"hardware,omitempty"`
	NormalCounts TestCounts   `json:"normal_counts"`
	ComboCounts  TestCounts   `json:"combo_counts"`
	Status       string       `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
}
