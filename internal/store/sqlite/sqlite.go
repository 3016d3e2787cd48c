package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dungeonparty/room-server/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS room_journal (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	code         TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	closed_at    DATETIME,
	peak_members INTEGER NOT NULL DEFAULT 1,
	messages     INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_room_journal_code ON room_journal(code);
`

// SQLiteJournal implements store.Journal for SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

// New opens (or creates) the journal database and applies the schema.
func New(dbPath string) (*SQLiteJournal, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup opens the database and runs a setup function. Useful for
// tests to apply an alternate schema or seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}

// RoomCreated inserts an open journal row for the room.
func (s *SQLiteJournal) RoomCreated(ctx context.Context, code string) error {
	query := `
		INSERT INTO room_journal (code, created_at)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, code, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert journal row: %w", err)
	}
	return nil
}

// RoomClosed closes the newest open row for the code. Codes are reusable
// after destruction, so older rows for the same code may already exist.
func (s *SQLiteJournal) RoomClosed(ctx context.Context, code string, peakMembers int, messages int64) error {
	query := `
		UPDATE room_journal
		SET closed_at = ?, peak_members = ?, messages = ?
		WHERE id = (
			SELECT id FROM room_journal
			WHERE code = ? AND closed_at IS NULL
			ORDER BY id DESC LIMIT 1
		)
	`
	if _, err := s.db.ExecContext(ctx, query, time.Now().UTC(), peakMembers, messages, code); err != nil {
		return fmt.Errorf("close journal row: %w", err)
	}
	return nil
}

// Recent returns the newest journal rows, most recent first.
func (s *SQLiteJournal) Recent(ctx context.Context, limit int) ([]store.RoomRecord, error) {
	query := `
		SELECT id, code, created_at, closed_at, peak_members, messages
		FROM room_journal
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	records := make([]store.RoomRecord, 0, limit)
	for rows.Next() {
		var rec store.RoomRecord
		var closedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Code, &rec.CreatedAt, &closedAt, &rec.PeakMembers, &rec.Messages); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		if closedAt.Valid {
			t := closedAt.Time
			rec.ClosedAt = &t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal rows: %w", err)
	}
	return records, nil
}
