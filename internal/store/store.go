package store

import (
	"context"
	"errors"

	"github.com/drennalls/slotline/internal/model"
)

// ErrInvalidTransition is returned when a session status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// SessionStats holds aggregate counts over the session inventory.
type SessionStats struct {
	Total           int            `json:"total"`
	CountByStatus   map[string]int `json:"count_by_status"`
	CountByPriority map[string]int `json:"count_by_priority"`
}

// Store defines the persistence operations for sessions, machines, hardware
// combinations and the committed schedule.
type Store interface {
	CreateSession(ctx context.Context, s *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	ListSessions(ctx context.Context) ([]*model.Session, error)
	ListSessionsByStatus(ctx context.Context, statuses ...string) ([]*model.Session, error)
	UpdateSessionStatus(ctx context.Context, id, status string) error
	DeleteSession(ctx context.Context, id string) error

	CreateMachine(ctx context.Context, m *model.Machine) error
	GetMachine(ctx context.Context, id string) (*model.Machine, error)
	ListMachines(ctx context.Context) ([]*model.Machine, error)
	UpdateMachineState(ctx context.Context, id, state string) error
	DeleteMachine(ctx context.Context, id string) error

	CreateHardware(ctx context.Context, h *model.HardwareCombination) error
	GetHardware(ctx context.Context, id string) (*model.HardwareCombination, error)
	ListHardware(ctx context.Context) ([]*model.HardwareCombination, error)
	DeleteHardware(ctx context.Context, id string) error

	// ReplaceSchedule atomically swaps in a run's results: assignments and
	// queue entries replace the previous ones, and the affected sessions'
	// statuses move to scheduled/queued in the same transaction.
	ReplaceSchedule(ctx context.Context, assignments []model.Assignment, entries []model.QueueEntry) error
	GetSchedule(ctx context.Context) ([]model.Assignment, error)
	GetQueue(ctx context.Context) ([]model.QueueEntry, error)

	GetSessionStats(ctx context.Context) (*SessionStats, error)

	Ping(ctx context.Context) error
	Close() error
}
