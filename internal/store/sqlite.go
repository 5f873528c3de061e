package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/drennalls/slotline/internal/model"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id             TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    priority       TEXT NOT NULL,
    os_type        TEXT NOT NULL,
    hw_platform    TEXT,
    hw_debugger    TEXT,
    normal_pass    INTEGER NOT NULL DEFAULT 0,
    normal_fail    INTEGER NOT NULL DEFAULT 0,
    normal_not_run INTEGER NOT NULL DEFAULT 0,
    combo_pass     INTEGER NOT NULL DEFAULT 0,
    combo_fail     INTEGER NOT NULL DEFAULT 0,
    combo_not_run  INTEGER NOT NULL DEFAULT 0,
    status         TEXT NOT NULL,
    created_at     DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS machines (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    os_type    TEXT NOT NULL,
    state      TEXT NOT NULL,
    created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS hardware_combinations (
    id         TEXT PRIMARY KEY,
    platform   TEXT NOT NULL,
    debugger   TEXT NOT NULL,
    quantity   INTEGER NOT NULL,
    hours_mask TEXT NOT NULL,
    created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS assignments (
    session_id  TEXT PRIMARY KEY,
    machine_id  TEXT NOT NULL,
    hardware_id TEXT,
    start_day   INTEGER NOT NULL,
    start_hour  INTEGER NOT NULL,
    slots       INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS queue_entries (
    session_id TEXT PRIMARY KEY,
    reason     TEXT NOT NULL
)`

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range strings.Split(schema, ";\n") {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateSession inserts a new session record.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *model.Session) error {
	var platform, debugger sql.NullString
	if sess.Hardware != nil {
		platform = sql.NullString{String: sess.Hardware.Platform, Valid: true}
		debugger = sql.NullString{String: sess.Hardware.Debugger, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (
			id, name, priority, os_type, hw_platform, hw_debugger,
			normal_pass, normal_fail, normal_not_run,
			combo_pass, combo_fail, combo_not_run,
			status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.Priority, sess.OSType, platform, debugger,
		sess.NormalCounts.Pass, sess.NormalCounts.Fail, sess.NormalCounts.NotRun,
		sess.ComboCounts.Pass, sess.ComboCounts.Fail, sess.ComboCounts.NotRun,
		sess.Status, sess.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

const sessionColumns = `id, name, priority, os_type, hw_platform, hw_debugger,
	normal_pass, normal_fail, normal_not_run,
	combo_pass, combo_fail, combo_not_run, status, created_at`

func scanSession(row interface{ Scan(...any) error }) (*model.Session, error) {
	sess := &model.Session{}
	var platform, debugger sql.NullString
	err := row.Scan(
		&sess.ID, &sess.Name, &sess.Priority, &sess.OSType, &platform, &debugger,
		&sess.NormalCounts.Pass, &sess.NormalCounts.Fail, &sess.NormalCounts.NotRun,
		&sess.ComboCounts.Pass, &sess.ComboCounts.Fail, &sess.ComboCounts.NotRun,
		&sess.Status, &sess.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if platform.Valid && debugger.Valid {
		sess.Hardware = &model.HardwareRef{Platform: platform.String, Debugger: debugger.String}
	}
	return sess, nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ListSessions returns all sessions ordered by creation time.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]*model.Session, error) {
	return s.querySessions(ctx,
		"SELECT "+sessionColumns+" FROM sessions ORDER BY created_at, id")
}

// ListSessionsByStatus returns sessions in any of the given statuses,
// ordered by creation time.
func (s *SQLiteStore) ListSessionsByStatus(ctx context.Context, statuses ...string) ([]*model.Session, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = st
	}
	return s.querySessions(ctx,
		"SELECT "+sessionColumns+" FROM sessions WHERE status IN ("+placeholders+") ORDER BY created_at, id",
		args...)
}

func (s *SQLiteStore) querySessions(ctx context.Context, query string, args ...any) ([]*model.Session, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// UpdateSessionStatus transitions a session's status, enforcing the model's
// allowed transitions.
func (s *SQLiteStore) UpdateSessionStatus(ctx context.Context, id, status string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, "SELECT status FROM sessions WHERE id = ?", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read session status: %w", err)
	}
	if !model.ValidTransition(current, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE sessions SET status = ? WHERE id = ?", status, id); err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return tx.Commit()
}

// DeleteSession removes a session and any schedule state referencing it.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM assignments WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM queue_entries WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("delete queue entry: %w", err)
	}
	return tx.Commit()
}

// CreateMachine inserts a new machine record.
func (s *SQLiteStore) CreateMachine(ctx context.Context, m *model.Machine) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO machines (id, name, os_type, state, created_at) VALUES (?, ?, ?, ?, ?)",
		m.ID, m.Name, m.OSType, m.State, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert machine: %w", err)
	}
	return nil
}

// GetMachine retrieves a machine by ID.
func (s *SQLiteStore) GetMachine(ctx context.Context, id string) (*model.Machine, error) {
	m := &model.Machine{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, os_type, state, created_at FROM machines WHERE id = ?", id,
	).Scan(&m.ID, &m.Name, &m.OSType, &m.State, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get machine: %w", err)
	}
	return m, nil
}

// ListMachines returns all machines ordered by ID.
func (s *SQLiteStore) ListMachines(ctx context.Context) ([]*model.Machine, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, os_type, state, created_at FROM machines ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	defer rows.Close()

	var machines []*model.Machine
	for rows.Next() {
		m := &model.Machine{}
		if err := rows.Scan(&m.ID, &m.Name, &m.OSType, &m.State, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan machine: %w", err)
		}
		machines = append(machines, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate machines: %w", err)
	}
	return machines, nil
}

// UpdateMachineState sets a machine's availability state.
func (s *SQLiteStore) UpdateMachineState(ctx context.Context, id, state string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE machines SET state = ? WHERE id = ?", state, id)
	if err != nil {
		return fmt.Errorf("update machine state: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMachine removes a machine.
func (s *SQLiteStore) DeleteMachine(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM machines WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete machine: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateHardware inserts a new hardware combination.
func (s *SQLiteStore) CreateHardware(ctx context.Context, h *model.HardwareCombination) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO hardware_combinations (id, platform, debugger, quantity, hours_mask, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		h.ID, h.Platform, h.Debugger, h.Quantity, h.Mask.String(), h.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert hardware combination: %w", err)
	}
	return nil
}

func scanHardware(row interface{ Scan(...any) error }) (*model.HardwareCombination, error) {
	h := &model.HardwareCombination{}
	var mask string
	if err := row.Scan(&h.ID, &h.Platform, &h.Debugger, &h.Quantity, &mask, &h.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := model.ParseHourMask(mask)
	if err != nil {
		return nil, fmt.Errorf("parse stored hour mask: %w", err)
	}
	h.Mask = parsed
	return h, nil
}

// GetHardware retrieves a hardware combination by ID.
func (s *SQLiteStore) GetHardware(ctx context.Context, id string) (*model.HardwareCombination, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, platform, debugger, quantity, hours_mask, created_at FROM hardware_combinations WHERE id = ?", id)
	h, err := scanHardware(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get hardware combination: %w", err)
	}
	return h, nil
}

// ListHardware returns all hardware combinations ordered by ID.
func (s *SQLiteStore) ListHardware(ctx context.Context) ([]*model.HardwareCombination, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, platform, debugger, quantity, hours_mask, created_at FROM hardware_combinations ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list hardware combinations: %w", err)
	}
	defer rows.Close()

	var combos []*model.HardwareCombination
	for rows.Next() {
		h, err := scanHardware(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hardware combination: %w", err)
		}
		combos = append(combos, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hardware combinations: %w", err)
	}
	return combos, nil
}

// DeleteHardware removes a hardware combination.
func (s *SQLiteStore) DeleteHardware(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM hardware_combinations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete hardware combination: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceSchedule swaps the committed schedule for a run's results in one
// transaction: old assignments and queue entries are dropped, new ones
// inserted, and session statuses updated so reads immediately reflect the
// run. Sessions that execution collaborators have already moved past
// scheduled (running, completed, failed) keep their status; a re-persisted
// assignment must not rewind a session's lifecycle.
func (s *SQLiteStore) ReplaceSchedule(ctx context.Context, assignments []model.Assignment, entries []model.QueueEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM assignments"); err != nil {
		return fmt.Errorf("clear assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM queue_entries"); err != nil {
		return fmt.Errorf("clear queue entries: %w", err)
	}

	for _, a := range assignments {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO assignments (session_id, machine_id, hardware_id, start_day, start_hour, slots) VALUES (?, ?, ?, ?, ?, ?)",
			a.SessionID, a.MachineID, a.HardwareID, a.Start.Day, a.Start.Hour, a.Slots)
		if err != nil {
			return fmt.Errorf("insert assignment: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE sessions SET status = ? WHERE id = ? AND status IN (?, ?, ?)",
			model.StatusScheduled, a.SessionID,
			model.StatusPending, model.StatusQueued, model.StatusScheduled); err != nil {
			return fmt.Errorf("mark session scheduled: %w", err)
		}
	}
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO queue_entries (session_id, reason) VALUES (?, ?)",
			e.SessionID, e.Reason); err != nil {
			return fmt.Errorf("insert queue entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE sessions SET status = ? WHERE id = ? AND status IN (?, ?, ?)",
			model.StatusQueued, e.SessionID,
			model.StatusPending, model.StatusQueued, model.StatusScheduled); err != nil {
			return fmt.Errorf("mark session queued: %w", err)
		}
	}

	return tx.Commit()
}

// GetSchedule returns the committed assignments ordered by machine and start slot.
func (s *SQLiteStore) GetSchedule(ctx context.Context) ([]model.Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, machine_id, hardware_id, start_day, start_hour, slots
		FROM assignments ORDER BY machine_id, start_day, start_hour`)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []model.Assignment
	for rows.Next() {
		var a model.Assignment
		var hardwareID sql.NullString
		if err := rows.Scan(&a.SessionID, &a.MachineID, &hardwareID, &a.Start.Day, &a.Start.Hour, &a.Slots); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		a.HardwareID = hardwareID.String
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return assignments, nil
}

// GetQueue returns the deferred queue entries.
func (s *SQLiteStore) GetQueue(ctx context.Context) ([]model.QueueEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT session_id, reason FROM queue_entries ORDER BY session_id")
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}
	defer rows.Close()

	var entries []model.QueueEntry
	for rows.Next() {
		var e model.QueueEntry
		if err := rows.Scan(&e.SessionID, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue entries: %w", err)
	}
	return entries, nil
}

// GetSessionStats returns aggregate session counts.
func (s *SQLiteStore) GetSessionStats(ctx context.Context) (*SessionStats, error) {
	stats := &SessionStats{
		CountByStatus:   make(map[string]int),
		CountByPriority: make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT status, priority, COUNT(*) FROM sessions GROUP BY status, priority")
	if err != nil {
		return nil, fmt.Errorf("aggregate sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, priority string
		var n int
		if err := rows.Scan(&status, &priority, &n); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		stats.Total += n
		stats.CountByStatus[status] += n
		stats.CountByPriority[priority] += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregates: %w", err)
	}
	return stats, nil
}
