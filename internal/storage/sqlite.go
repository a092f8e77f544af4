package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/san-kum/gravsim/internal/body"
)

const sqliteSnapshotFile = "snapshots.sqlite"

const schema = `
CREATE TABLE bodies (
	frame 	INTEGER,
	id 		INTEGER, -- body id
	x 		REAL,
	y 		REAL,
	z 		REAL,
	mass 	REAL);
CREATE TABLE frames (
	frame 	INTEGER PRIMARY KEY,
	time 	REAL);
`

// Indices are created once writing is done; inserts are faster without them.
const indices = `
CREATE INDEX idx_frame ON bodies (frame, id);
CREATE INDEX idx_id ON bodies (id);
`

const (
	insertBody  = `INSERT INTO bodies VALUES (?, ?, ?, ?, ?, ?);`
	insertFrame = `INSERT INTO frames VALUES (?, ?);`
	queryFrame  = `SELECT id, x, y, z, mass FROM bodies WHERE frame = ? ORDER BY id ASC;`
	queryTime   = `SELECT time FROM frames WHERE frame = ?;`
	queryLast   = `SELECT MAX(frame) FROM frames;`
)

type sqliteSink struct {
	db   *sql.DB
	stmt *sql.Stmt
}

func openDB(path string) (*sql.DB, error) {
	return sql.Open("sqlite3", "file:"+path+"?_journal_mode=OFF&_synchronous=OFF")
}

func newSQLiteSink(path string) (*sqliteSink, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	stmt, err := db.Prepare(insertBody)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &sqliteSink{db: db, stmt: stmt}, nil
}

// WriteFrame stores one frame in a single transaction.
func (s *sqliteSink) WriteFrame(step int, t float64, set *body.Set) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt := tx.Stmt(s.stmt)
	for _, p := range pointsOf(set) {
		if _, err := stmt.Exec(step, p.ID, p.X, p.Y, p.Z, p.Mass); err != nil {
			tx.Rollback()
			return err
		}
	}
	if _, err := tx.Exec(insertFrame, step, t); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *sqliteSink) Close() error {
	s.stmt.Close()
	if _, err := s.db.Exec(indices); err != nil {
		s.db.Close()
		return fmt.Errorf("create indices: %w", err)
	}
	return s.db.Close()
}

func loadSQLiteFrame(path string, step int) (*Frame, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if step < 0 {
		var last sql.NullInt64
		if err := db.QueryRow(queryLast).Scan(&last); err != nil {
			return nil, err
		}
		if !last.Valid {
			return nil, fmt.Errorf("%w %d", ErrNoFrame, step)
		}
		step = int(last.Int64)
	}

	frame := &Frame{Step: step}
	if err := db.QueryRow(queryTime, step).Scan(&frame.Time); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w %d", ErrNoFrame, step)
		}
		return nil, err
	}

	rows, err := db.Query(queryFrame, step)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p Point
		var x, y, z float64
		if err := rows.Scan(&p.ID, &x, &y, &z, &p.Mass); err != nil {
			return nil, err
		}
		p.X, p.Y, p.Z = float32(x), float32(y), float32(z)
		frame.Points = append(frame.Points, p)
	}
	return frame, rows.Err()
}
