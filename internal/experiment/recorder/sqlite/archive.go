// Package sqlite archives finished subject sessions into a single SQLite
// database so that all subjects of a study can be queried together.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/zeusync/spotlight/internal/experiment"
)

const schema = `CREATE TABLE IF NOT EXISTS trials (
	subject_id   INTEGER NOT NULL,
	handedness   TEXT    NOT NULL,
	trial_number INTEGER NOT NULL,
	device       TEXT    NOT NULL,
	task         TEXT    NOT NULL,
	elapsed_time REAL    NOT NULL,
	pos_x REAL NOT NULL, pos_y REAL NOT NULL, pos_z REAL NOT NULL,
	rot_x REAL NOT NULL, rot_y REAL NOT NULL, rot_z REAL NOT NULL,
	intensity    REAL    NOT NULL,
	PRIMARY KEY (subject_id, trial_number)
)`

const upsert = `INSERT OR REPLACE INTO trials (
	subject_id, handedness, trial_number, device, task, elapsed_time,
	pos_x, pos_y, pos_z, rot_x, rot_y, rot_z, intensity
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Archive is a recorder.Sink backed by SQLite. Storing a subject again
// replaces that subject's rows.
type Archive struct {
	db   *sql.DB
	path string
}

// Open creates the database file and schema if needed.
func Open(path string) (*Archive, error) {
	if path == "" {
		path = "spotlight.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create trials table: %w", err)
	}
	return &Archive{db: db, path: path}, nil
}

func (a *Archive) Path() string { return a.path }

func (a *Archive) Store(ctx context.Context, s experiment.SubjectSession) (err error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM trials WHERE subject_id = ?`, s.SubjectID); err != nil {
		return fmt.Errorf("clear subject %d: %w", s.SubjectID, err)
	}
	stmt, err := tx.PrepareContext(ctx, upsert)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, m := range s.Measurements {
		if _, err = stmt.ExecContext(ctx,
			s.SubjectID, s.Handedness.String(), m.TrialNumber,
			m.Device.String(), m.Task.String(), m.ElapsedTime,
			m.Position.X, m.Position.Y, m.Position.Z,
			m.Orientation.X, m.Orientation.Y, m.Orientation.Z,
			m.Intensity,
		); err != nil {
			return fmt.Errorf("insert trial %d: %w", m.TrialNumber, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Load returns the archived session of a subject, ordered by trial number.
func (a *Archive) Load(ctx context.Context, subjectID int) (experiment.SubjectSession, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT handedness, trial_number, device, task, elapsed_time,
		pos_x, pos_y, pos_z, rot_x, rot_y, rot_z, intensity
		FROM trials WHERE subject_id = ? ORDER BY trial_number`, subjectID)
	if err != nil {
		return experiment.SubjectSession{}, fmt.Errorf("select trials: %w", err)
	}
	defer func() { _ = rows.Close() }()

	s := experiment.SubjectSession{SubjectID: subjectID}
	for rows.Next() {
		var m experiment.TrialMeasurement
		var handedness, device, task string
		if err := rows.Scan(&handedness, &m.TrialNumber, &device, &task, &m.ElapsedTime,
			&m.Position.X, &m.Position.Y, &m.Position.Z,
			&m.Orientation.X, &m.Orientation.Y, &m.Orientation.Z,
			&m.Intensity); err != nil {
			return experiment.SubjectSession{}, fmt.Errorf("scan: %w", err)
		}
		if s.Handedness, err = experiment.ParseHandedness(handedness); err != nil {
			return experiment.SubjectSession{}, err
		}
		if m.Device, err = experiment.ParseDevice(device); err != nil {
			return experiment.SubjectSession{}, err
		}
		if m.Task, err = experiment.ParseTask(task); err != nil {
			return experiment.SubjectSession{}, err
		}
		s.Measurements = append(s.Measurements, m)
	}
	if err := rows.Err(); err != nil {
		return experiment.SubjectSession{}, fmt.Errorf("iterate trials: %w", err)
	}
	return s, nil
}

// Subjects lists archived subject ids in ascending order.
func (a *Archive) Subjects(ctx context.Context) ([]int, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT DISTINCT subject_id FROM trials ORDER BY subject_id`)
	if err != nil {
		return nil, fmt.Errorf("select subjects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (a *Archive) Close() error {
	return a.db.Close()
}
