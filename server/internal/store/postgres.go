package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib" // registers the "pgx" driver
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Postgres is a Store backed by PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("store: migrations: %w", err)
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return fmt.Errorf("store: goose provider: %w", err)
	}
	results, err := p.Up(ctx)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	for _, r := range results {
		slog.Info("store: migration applied", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// Save implements Store.
func (p *Postgres) Save(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO session_logs (user_id, team_id, payload, created_at) VALUES ($1, $2, $3, $4)`,
		rec.UserID, rec.TeamID, string(rec.Payload), rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("store: insert session log: %w", err)
	}
	return nil
}

// History implements Store.
func (p *Postgres) History(ctx context.Context, userID string, limit int) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, user_id, team_id, payload, created_at FROM session_logs
		 WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query history: %w", err)
	}
	return scan(rows)
}

// TeamRecords implements Store.
func (p *Postgres) TeamRecords(ctx context.Context, teamID string) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, user_id, team_id, payload, created_at FROM session_logs
		 WHERE team_id = $1 ORDER BY created_at, id`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("store: query team records: %w", err)
	}
	return scan(rows)
}

func scan(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	out := make([]Record, 0)
	for rows.Next() {
		var (
			r       Record
			payload string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.TeamID, &payload, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan session log: %w", err)
		}
		r.Payload = []byte(payload)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate session logs: %w", err)
	}
	return out, nil
}

// Close implements Store.
func (p *Postgres) Close() error {
	return p.db.Close()
}
