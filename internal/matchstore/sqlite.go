package matchstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/scoreboard/internal/scoreboard"
)

const matchColumns = `id, type, player1, player2, player3, player4, score1, score2,
	points_to_win, winner, is_active, created_at, updated_at`

const selectActive = `SELECT ` + matchColumns + ` FROM matches
	WHERE is_active = 1
	ORDER BY created_at DESC
	LIMIT 1`

// SQLite implements Store on a libSQL database migrated by the migrations
// package. Writers are serialized in-process; the partial unique index on
// is_active guards the invariant across processes.
type SQLite struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

var _ Store = (*SQLite)(nil)

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{db: db, now: now}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row scanner) (*scoreboard.Match, error) {
	var (
		m                scoreboard.Match
		kind             string
		slots            [4]string
		p3, p4           sql.NullString
		winner           sql.NullInt64
		created, updated string
	)
	err := row.Scan(&m.ID, &kind, &slots[0], &slots[1], &p3, &p4, &m.ScoreA, &m.ScoreB,
		&m.PointsToWin, &winner, &m.Active, &created, &updated)
	if err != nil {
		return nil, err
	}

	m.Kind = scoreboard.Kind(kind)
	slots[2], slots[3] = p3.String, p4.String
	m.SideA, m.SideB = scoreboard.Sides(m.Kind, slots)
	if winner.Valid {
		m.Winner = scoreboard.Team(winner.Int64)
	}
	if m.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if m.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &m, nil
}

// timeLayout is fixed-width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// parseTime accepts any fractional width. libSQL hands timestamp text back
// as time.Time and database/sql re-renders it as RFC 3339 with trailing
// zeros trimmed.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	return t.UTC(), err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sqliteWinner(t scoreboard.Team) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(t), Valid: t.Valid()}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLite) CreateActive(ctx context.Context, n scoreboard.NewMatch) (*scoreboard.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, scoreboard.Storage("beginning transaction", err)
	}
	defer tx.Rollback()

	var active int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches WHERE is_active = 1`).Scan(&active); err != nil {
		return nil, scoreboard.Storage("checking active match", err)
	}
	if active > 0 {
		return nil, scoreboard.ErrAlreadyActive
	}

	m := newRecord(uuid.NewString(), n, s.now())
	slots := m.Slots()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO matches (id, type, player1, player2, player3, player4, score1, score2,
			points_to_win, winner, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, NULL, 1, ?, ?)
	`, m.ID, string(m.Kind), slots[0], slots[1], nullable(slots[2]), nullable(slots[3]),
		m.PointsToWin, formatTime(m.CreatedAt), formatTime(m.UpdatedAt))
	if isUniqueViolation(err) {
		return nil, scoreboard.ErrAlreadyActive
	}
	if err != nil {
		return nil, scoreboard.Storage("inserting match", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, scoreboard.Storage("committing match", err)
	}
	return m, nil
}

func (s *SQLite) Active(ctx context.Context) (*scoreboard.Match, error) {
	m, err := scanSQLite(s.db.QueryRowContext(ctx, selectActive))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, scoreboard.Storage("reading active match", err)
	}
	return m, nil
}

func (s *SQLite) MutateActive(ctx context.Context, fn func(*scoreboard.Match) error) (*scoreboard.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, scoreboard.Storage("beginning transaction", err)
	}
	defer tx.Rollback()

	cur, err := scanSQLite(tx.QueryRowContext(ctx, selectActive))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, scoreboard.ErrNoActiveMatch
	}
	if err != nil {
		return nil, scoreboard.Storage("reading active match", err)
	}

	next, err := mutate(cur, fn, s.now())
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE matches
		SET score1 = ?, score2 = ?, winner = ?, is_active = ?, updated_at = ?
		WHERE id = ? AND is_active = 1
	`, next.ScoreA, next.ScoreB, sqliteWinner(next.Winner), boolInt(next.Active), formatTime(next.UpdatedAt), next.ID)
	if err != nil {
		return nil, scoreboard.Storage("updating match", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, scoreboard.Storage("committing match", err)
	}
	return next, nil
}

func (s *SQLite) Deactivate(ctx context.Context, r Reason) (*scoreboard.Match, error) {
	return s.MutateActive(ctx, r.Apply)
}

func (s *SQLite) Recent(ctx context.Context, limit int) ([]scoreboard.Match, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+matchColumns+` FROM matches
		ORDER BY created_at DESC
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, scoreboard.Storage("listing matches", err)
	}
	defer rows.Close()

	var matches []scoreboard.Match
	for rows.Next() {
		m, err := scanSQLite(rows)
		if err != nil {
			return nil, scoreboard.Storage("scanning match", err)
		}
		matches = append(matches, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, scoreboard.Storage("listing matches", err)
	}
	return matches, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
