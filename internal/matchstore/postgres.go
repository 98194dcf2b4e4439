package matchstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/playperu/scoreboard/internal/migrations"
	"github.com/playperu/scoreboard/internal/scoreboard"
)

const pgSelectActive = `SELECT ` + matchColumns + ` FROM matches
	WHERE is_active
	ORDER BY created_at DESC
	LIMIT 1`

// Postgres implements Store with pgx. Mutations lock the active row with
// SELECT ... FOR UPDATE, so concurrent writers in any process queue up.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ Store = (*Postgres)(nil)

func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Postgres{pool: pool, now: now}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

// Migrate applies pending goose migrations over the pool.
func (p *Postgres) Migrate(ctx context.Context) (int, error) {
	db := stdlib.OpenDBFromPool(p.pool)
	defer db.Close()
	return migrations.RunPostgres(ctx, db)
}

func scanPostgres(row pgx.Row) (*scoreboard.Match, error) {
	var (
		m      scoreboard.Match
		kind   string
		slots  [4]string
		p3, p4 *string
		winner *int32
	)
	err := row.Scan(&m.ID, &kind, &slots[0], &slots[1], &p3, &p4, &m.ScoreA, &m.ScoreB,
		&m.PointsToWin, &winner, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}

	m.Kind = scoreboard.Kind(kind)
	slots[2], slots[3] = deref(p3), deref(p4)
	m.SideA, m.SideB = scoreboard.Sides(m.Kind, slots)
	if winner != nil {
		m.Winner = scoreboard.Team(*winner)
	}
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}

func pgWinner(t scoreboard.Team) *int32 {
	if !t.Valid() {
		return nil
	}
	w := int32(t)
	return &w
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (p *Postgres) CreateActive(ctx context.Context, n scoreboard.NewMatch) (*scoreboard.Match, error) {
	m := newRecord(uuid.NewString(), n, p.now())
	slots := m.Slots()

	// The partial unique index rejects a second active row atomically, so a
	// racing create surfaces as a unique violation rather than a duplicate.
	_, err := p.pool.Exec(ctx, `
		INSERT INTO matches (id, type, player1, player2, player3, player4, score1, score2,
			points_to_win, winner, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, $7, NULL, true, $8, $9)
	`, m.ID, string(m.Kind), slots[0], slots[1], nullable(slots[2]), nullable(slots[3]),
		m.PointsToWin, m.CreatedAt, m.UpdatedAt)
	if isPgUniqueViolation(err) {
		return nil, scoreboard.ErrAlreadyActive
	}
	if err != nil {
		return nil, scoreboard.Storage("inserting match", err)
	}
	return m, nil
}

func (p *Postgres) Active(ctx context.Context) (*scoreboard.Match, error) {
	m, err := scanPostgres(p.pool.QueryRow(ctx, pgSelectActive))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, scoreboard.Storage("reading active match", err)
	}
	return m, nil
}

func (p *Postgres) MutateActive(ctx context.Context, fn func(*scoreboard.Match) error) (*scoreboard.Match, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, scoreboard.Storage("beginning transaction", err)
	}
	defer tx.Rollback(ctx)

	cur, err := scanPostgres(tx.QueryRow(ctx, pgSelectActive+` FOR UPDATE`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, scoreboard.ErrNoActiveMatch
	}
	if err != nil {
		return nil, scoreboard.Storage("locking active match", err)
	}

	next, err := mutate(cur, fn, p.now())
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE matches
		SET score1 = $1, score2 = $2, winner = $3, is_active = $4, updated_at = $5
		WHERE id = $6
	`, next.ScoreA, next.ScoreB, pgWinner(next.Winner), next.Active, next.UpdatedAt, next.ID)
	if err != nil {
		return nil, scoreboard.Storage("updating match", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, scoreboard.Storage("committing match", err)
	}
	return next, nil
}

func (p *Postgres) Deactivate(ctx context.Context, r Reason) (*scoreboard.Match, error) {
	return p.MutateActive(ctx, r.Apply)
}

func (p *Postgres) Recent(ctx context.Context, limit int) ([]scoreboard.Match, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+matchColumns+` FROM matches
		ORDER BY created_at DESC
		LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, scoreboard.Storage("listing matches", err)
	}
	defer rows.Close()

	var matches []scoreboard.Match
	for rows.Next() {
		m, err := scanPostgres(rows)
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

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}
