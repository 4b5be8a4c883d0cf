package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/openbci/internal/timeutil"
)

// ErrSessionNotFound is returned when a session id has no row.
var ErrSessionNotFound = errors.New("session not found")

// Session describes one recording.
type Session struct {
	ID      string     `json:"session_id"`
	Board   string     `json:"board"`
	Rate    int        `json:"rate"`
	Labels  []string   `json:"labels"`
	Started time.Time  `json:"started"`
	Ended   *time.Time `json:"ended,omitempty"`
	Samples int64      `json:"samples"`
}

// Sample is one recorded row: every channel value at one instant.
type Sample struct {
	Time   time.Time `json:"time"`
	Values []float64 `json:"values"`
}

// Command is a raw board command sent during a session.
type Command struct {
	ID       int64     `json:"command_id"`
	Session  string    `json:"session_id"`
	Command  string    `json:"command"`
	Response string    `json:"response,omitempty"`
	Error    string    `json:"error,omitempty"`
	Sent     time.Time `json:"sent"`
}

// CreateSession inserts a session row.
func (db *DB) CreateSession(s Session) error {
	labels, err := json.Marshal(s.Labels)
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`INSERT INTO sessions (session_id, board, rate, labels_json, started_unix) VALUES (?, ?, ?, ?, ?)`,
		s.ID, s.Board, s.Rate, string(labels), timeutil.UnixSeconds(s.Started),
	)
	if err != nil {
		return fmt.Errorf("failed to create session %s: %w", s.ID, err)
	}
	return nil
}

// EndSession stamps the end time of a session.
func (db *DB) EndSession(id string, at time.Time) error {
	res, err := db.Exec(`UPDATE sessions SET ended_unix = ? WHERE session_id = ?`, timeutil.UnixSeconds(at), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

const sessionColumns = `s.session_id, s.board, s.rate, s.labels_json, s.started_unix, s.ended_unix,
	(SELECT COUNT(*) FROM samples WHERE samples.session_id = s.session_id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		s       Session
		labels  string
		started float64
		ended   sql.NullFloat64
	)
	if err := row.Scan(&s.ID, &s.Board, &s.Rate, &labels, &started, &ended, &s.Samples); err != nil {
		return Session{}, err
	}
	if err := json.Unmarshal([]byte(labels), &s.Labels); err != nil {
		return Session{}, fmt.Errorf("session %s labels: %w", s.ID, err)
	}
	s.Started = timeutil.FromUnixSeconds(started)
	if ended.Valid {
		t := timeutil.FromUnixSeconds(ended.Float64)
		s.Ended = &t
	}
	return s, nil
}

// GetSession returns one session.
func (db *DB) GetSession(id string) (Session, error) {
	row := db.QueryRow(`SELECT `+sessionColumns+` FROM sessions s WHERE s.session_id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, err
}

// Sessions lists the most recent sessions first.
func (db *DB) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT `+sessionColumns+` FROM sessions s ORDER BY s.started_unix DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// InsertSamples appends samples to a session in one transaction.
func (db *DB) InsertSamples(sessionID string, samples []Sample) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO samples (session_id, ts_unix, values_json) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range samples {
		values, err := json.Marshal(s.Values)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(sessionID, timeutil.UnixSeconds(s.Time), string(values)); err != nil {
			return fmt.Errorf("failed to insert sample: %w", err)
		}
	}
	return tx.Commit()
}

// SampleQuery selects a time window of a session. Zero bounds are open.
type SampleQuery struct {
	SessionID string
	From      time.Time
	To        time.Time
	Limit     int
}

// Samples returns samples in time order.
func (db *DB) Samples(q SampleQuery) ([]Sample, error) {
	if q.Limit <= 0 {
		q.Limit = 1000
	}
	from, to := -1.0, 1e18
	if !q.From.IsZero() {
		from = timeutil.UnixSeconds(q.From)
	}
	if !q.To.IsZero() {
		to = timeutil.UnixSeconds(q.To)
	}

	rows, err := db.Query(
		`SELECT ts_unix, values_json FROM samples
		WHERE session_id = ? AND ts_unix >= ? AND ts_unix <= ?
		ORDER BY ts_unix, rowid LIMIT ?`,
		q.SessionID, from, to, q.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var (
			ts     float64
			values string
			s      Sample
		)
		if err := rows.Scan(&ts, &values); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(values), &s.Values); err != nil {
			return nil, err
		}
		s.Time = timeutil.FromUnixSeconds(ts)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// RecordCommand logs a raw board command and its outcome.
func (db *DB) RecordCommand(c Command) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO commands (session_id, command, response, error, sent_unix) VALUES (?, ?, ?, ?, ?)`,
		c.Session, c.Command, c.Response, c.Error, timeutil.UnixSeconds(c.Sent),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to record command: %w", err)
	}
	return res.LastInsertId()
}

// Commands lists a session's commands oldest first.
func (db *DB) Commands(sessionID string) ([]Command, error) {
	rows, err := db.Query(
		`SELECT command_id, session_id, command, response, error, sent_unix FROM commands
		WHERE session_id = ? ORDER BY command_id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commands []Command
	for rows.Next() {
		var (
			c    Command
			sent float64
		)
		if err := rows.Scan(&c.ID, &c.Session, &c.Command, &c.Response, &c.Error, &sent); err != nil {
			return nil, err
		}
		c.Sent = timeutil.FromUnixSeconds(sent)
		commands = append(commands, c)
	}
	return commands, rows.Err()
}
