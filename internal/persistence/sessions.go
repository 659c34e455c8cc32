package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dweebuild/dweebuild/internal/agent"
	"github.com/dweebuild/dweebuild/internal/memory"
	"github.com/dweebuild/dweebuild/internal/orchestrator"
	"github.com/dweebuild/dweebuild/internal/scheduler"
)

// SaveSnapshot stores a session snapshot, replacing any earlier snapshot
// with the same session ID.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap orchestrator.Snapshot) error {
	if snap.SessionID == "" {
		return errors.New("snapshot has no session ID")
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// Begin transaction with serializable isolation (BEGIN IMMEDIATE)
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, mode, running, iteration, stalled_task, taken_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			mode = excluded.mode,
			running = excluded.running,
			iteration = excluded.iteration,
			stalled_task = excluded.stalled_task,
			taken_at = excluded.taken_at,
			updated_at = CURRENT_TIMESTAMP
	`, snap.SessionID, string(snap.Mode), snap.Running, snap.Iteration, snap.StalledTask, formatTime(snap.TakenAt))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	if err := clearChildren(ctx, tx, snap.SessionID); err != nil {
		return err
	}

	for i, task := range snap.Queue {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO session_queue (session_id, position, task) VALUES (?, ?, ?)",
			snap.SessionID, i, task); err != nil {
			return fmt.Errorf("failed to save queue entry %d: %w", i, err)
		}
	}

	for i, a := range snap.Agents {
		logJSON, err := json.Marshal(a.Log)
		if err != nil {
			return fmt.Errorf("failed to marshal log for agent %s: %w", a.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_agents (session_id, position, name, capability, role, status, thought, current_task, log)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, snap.SessionID, i, a.Name, string(a.Capability), a.Role, string(a.Status), a.Thought, a.CurrentTask, string(logJSON)); err != nil {
			return fmt.Errorf("failed to save agent %s: %w", a.Name, err)
		}
	}

	for _, e := range snap.Memory {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session_memory (session_id, seq, timestamp, source, level, message)
			VALUES (?, ?, ?, ?, ?, ?)
		`, snap.SessionID, int64(e.Seq), formatTime(e.Timestamp), e.Source, string(e.Level), e.Message); err != nil {
			return fmt.Errorf("failed to save memory entry %d: %w", e.Seq, err)
		}
	}

	for k, v := range snap.Context {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO session_context (session_id, key, value) VALUES (?, ?, ?)",
			snap.SessionID, k, v); err != nil {
			return fmt.Errorf("failed to save context key %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// clearChildren removes the rows owned by a session. Deleting explicitly
// keeps the store correct on connections where foreign keys are off.
func clearChildren(ctx context.Context, tx *sql.Tx, sessionID string) error {
	for _, table := range []string{"session_queue", "session_agents", "session_memory", "session_context"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// LoadSnapshot retrieves a stored session.
// Returns ErrSessionNotFound if no session has the given ID.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, sessionID string) (orchestrator.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	snap := orchestrator.Snapshot{SessionID: sessionID}
	var mode, takenAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT mode, running, iteration, stalled_task, taken_at
		FROM sessions
		WHERE id = ?
	`, sessionID).Scan(&mode, &snap.Running, &snap.Iteration, &snap.StalledTask, &takenAt)
	if errors.Is(err, sql.ErrNoRows) {
		return orchestrator.Snapshot{}, fmt.Errorf("loading %q: %w", sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return orchestrator.Snapshot{}, fmt.Errorf("failed to query session: %w", err)
	}
	snap.Mode = orchestrator.Mode(mode)
	if snap.TakenAt, err = parseTime(takenAt); err != nil {
		return orchestrator.Snapshot{}, err
	}

	if snap.Queue, err = s.loadQueue(ctx, sessionID); err != nil {
		return orchestrator.Snapshot{}, err
	}
	if snap.Agents, err = s.loadAgents(ctx, sessionID); err != nil {
		return orchestrator.Snapshot{}, err
	}
	if snap.Memory, err = s.loadMemory(ctx, sessionID); err != nil {
		return orchestrator.Snapshot{}, err
	}
	if snap.Context, err = s.loadContext(ctx, sessionID); err != nil {
		return orchestrator.Snapshot{}, err
	}
	return snap, nil
}

func (s *SQLiteStore) loadQueue(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT task FROM session_queue WHERE session_id = ? ORDER BY position", sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue: %w", err)
	}
	defer rows.Close()

	var queue []string
	for rows.Next() {
		var task string
		if err := rows.Scan(&task); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		queue = append(queue, task)
	}
	return queue, rows.Err()
}

func (s *SQLiteStore) loadAgents(ctx context.Context, sessionID string) ([]agent.State, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, capability, role, status, thought, current_task, log
		FROM session_agents
		WHERE session_id = ?
		ORDER BY position
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	var agents []agent.State
	for rows.Next() {
		var (
			st                 agent.State
			capability, status string
			logJSON            sql.NullString
		)
		if err := rows.Scan(&st.Name, &capability, &st.Role, &status, &st.Thought, &st.CurrentTask, &logJSON); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		st.Capability = scheduler.Capability(capability)
		st.Status = agent.Status(status)
		if logJSON.Valid && logJSON.String != "" {
			if err := json.Unmarshal([]byte(logJSON.String), &st.Log); err != nil {
				return nil, fmt.Errorf("failed to unmarshal log for agent %s: %w", st.Name, err)
			}
		}
		agents = append(agents, st)
	}
	return agents, rows.Err()
}

func (s *SQLiteStore) loadMemory(ctx context.Context, sessionID string) ([]memory.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, timestamp, source, level, message
		FROM session_memory
		WHERE session_id = ?
		ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory: %w", err)
	}
	defer rows.Close()

	var entries []memory.Entry
	for rows.Next() {
		var (
			e         memory.Entry
			seq       int64
			ts, level string
		)
		if err := rows.Scan(&seq, &ts, &e.Source, &level, &e.Message); err != nil {
			return nil, fmt.Errorf("failed to scan memory entry: %w", err)
		}
		e.Seq = uint64(seq)
		e.Level = memory.Level(level)
		if e.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) loadContext(ctx context.Context, sessionID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM session_context WHERE session_id = ?", sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query context: %w", err)
	}
	defer rows.Close()

	kv := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan context: %w", err)
		}
		kv[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(kv) == 0 {
		return nil, nil
	}
	return kv, nil
}

// ListSessions returns every stored session, most recent first.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.mode, s.running, s.iteration, s.taken_at,
			(SELECT COUNT(*) FROM session_queue q WHERE q.session_id = s.id),
			(SELECT COUNT(*) FROM session_memory m WHERE m.session_id = s.id)
		FROM sessions s
		ORDER BY s.taken_at DESC, s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionSummary
	for rows.Next() {
		var (
			sum           SessionSummary
			mode, takenAt string
		)
		if err := rows.Scan(&sum.ID, &mode, &sum.Running, &sum.Iteration, &takenAt, &sum.QueueLen, &sum.MemoryLen); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sum.Mode = orchestrator.Mode(mode)
		if sum.TakenAt, err = parseTime(takenAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession removes a session and everything it owns.
// Returns ErrSessionNotFound if no session has the given ID.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := clearChildren(ctx, tx, sessionID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("deleting %q: %w", sessionID, ErrSessionNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
