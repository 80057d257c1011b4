// Package db stores completed scan sessions in sqlite: one row per
// session plus one row per captured sweep, with frequency grids and
// complex responses encoded as binary blobs.
package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/hrg-lab/chamber/internal/network"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrSessionNotFound is returned when a session ID has no stored rows.
var ErrSessionNotFound = errors.New("session not found")

type DB struct {
	*sql.DB
	path string
}

// NewDB opens (or creates) the sqlite database at path and applies any
// pending schema migrations.
func NewDB(path string) (*DB, error) {
	// The pragma rides in the DSN so the driver applies it to every
	// connection the pool opens; an Exec'd PRAGMA would only reach one.
	// Cascade deletes from sessions to sweeps depend on it.
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.migrateUp(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (db *DB) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	drv, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", drv)
	if err != nil {
		return err
	}
	// Note: we don't close m because it would close the underlying DB
	// connection.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Session is one stored scan.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Note      string    `json:"note,omitempty"`
	Sweeps    int       `json:"sweeps"`
}

// SaveSession stores the models of a completed scan under the given
// session ID, replacing any prior rows for that ID.
func (db *DB) SaveSession(id string, startedAt time.Time, note string, models map[string]*network.Model) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM sessions WHERE session_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`INSERT INTO sessions (session_id, started_at, note) VALUES (?, ?, ?)`,
		id, startedAt.UTC(), note,
	); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO sweeps
		(session_id, polarization, azimuth, elevation, freqs, response)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for pol, model := range models {
		for _, s := range model.Sweeps() {
			if _, err := stmt.Exec(
				id, pol, s.Azimuth, s.Elevation,
				encodeFloats(s.Freqs), encodeComplexes(s.Response),
			); err != nil {
				return fmt.Errorf("store sweep az=%g el=%g: %w", s.Azimuth, s.Elevation, err)
			}
		}
	}
	return tx.Commit()
}

// LoadSession rebuilds the per-polarization models of a stored session.
func (db *DB) LoadSession(id string) (map[string]*network.Model, error) {
	var exists int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE session_id = ?`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}

	rows, err := db.Query(`SELECT polarization, azimuth, elevation, freqs, response
		FROM sweeps WHERE session_id = ? ORDER BY sweep_id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	models := make(map[string]*network.Model)
	for rows.Next() {
		var pol string
		var az, el float64
		var freqBlob, respBlob []byte
		if err := rows.Scan(&pol, &az, &el, &freqBlob, &respBlob); err != nil {
			return nil, err
		}
		freqs, err := decodeFloats(freqBlob)
		if err != nil {
			return nil, fmt.Errorf("session %q sweep az=%g el=%g: %w", id, az, el, err)
		}
		resp, err := decodeComplexes(respBlob)
		if err != nil {
			return nil, fmt.Errorf("session %q sweep az=%g el=%g: %w", id, az, el, err)
		}

		model, ok := models[pol]
		if !ok {
			model = network.NewModel()
		}
		model, err = model.Append(network.Sweep{
			Freqs:     freqs,
			Response:  resp,
			Azimuth:   az,
			Elevation: el,
		})
		if err != nil {
			return nil, fmt.Errorf("session %q sweep az=%g el=%g: %w", id, az, el, err)
		}
		models[pol] = model
	}
	return models, rows.Err()
}

// Sessions lists stored sessions, newest first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query(`SELECT s.session_id, s.started_at, s.note, COUNT(w.sweep_id)
		FROM sessions s LEFT JOIN sweeps w ON w.session_id = s.session_id
		GROUP BY s.session_id ORDER BY s.started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.StartedAt, &s.Note, &s.Sweeps); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteSession removes a stored session and its sweeps.
func (db *DB) DeleteSession(id string) error {
	res, err := db.Exec(`DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}
	return nil
}
