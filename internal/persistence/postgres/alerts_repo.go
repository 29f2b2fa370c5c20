package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/perpgate/perpgate/internal/persistence"
)

// Schema:
//
//	CREATE TABLE IF NOT EXISTS alerts (
//	    id          BIGSERIAL PRIMARY KEY,
//	    ts          TIMESTAMPTZ NOT NULL,
//	    symbol      TEXT NOT NULL,
//	    inst        TEXT NOT NULL,
//	    mode        TEXT NOT NULL,
//	    bias        TEXT NOT NULL,
//	    exec_reason TEXT NOT NULL,
//	    grade       TEXT NOT NULL DEFAULT '',
//	    price       DOUBLE PRECISION NOT NULL,
//	    hi_1h       DOUBLE PRECISION NOT NULL,
//	    lo_1h       DOUBLE PRECISION NOT NULL,
//	    forced      BOOLEAN NOT NULL DEFAULT FALSE,
//	    message     TEXT NOT NULL DEFAULT '',
//	    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    UNIQUE (inst, mode, ts)
//	);

// alertsRepo implements persistence.AlertsRepo for PostgreSQL.
type alertsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewAlertsRepo creates a PostgreSQL alerts repository.
func NewAlertsRepo(db *sqlx.DB, timeout time.Duration) persistence.AlertsRepo {
	return &alertsRepo{db: db, timeout: timeout}
}

// Connect opens and pings a PostgreSQL connection from a DSN.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	return db, nil
}

// Insert archives one emitted alert. Duplicate (inst, mode, ts) rows are
// reported distinctly so callers can treat replays as benign.
func (r *alertsRepo) Insert(ctx context.Context, rec persistence.AlertRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		INSERT INTO alerts (ts, symbol, inst, mode, bias, exec_reason, grade, price, hi_1h, lo_1h, forced, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err := r.db.QueryRowxContext(ctx, query,
		rec.Timestamp, rec.Symbol, rec.InstID, rec.Mode, rec.Bias,
		rec.ExecReason, rec.Grade, rec.Price, rec.Hi1h, rec.Lo1h,
		rec.Forced, rec.Message).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return fmt.Errorf("duplicate alert: %w", err)
		}
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// Recent returns the newest archived alerts.
func (r *alertsRepo) Recent(ctx context.Context, limit int) ([]persistence.AlertRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	var out []persistence.AlertRecord
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, ts, symbol, inst, mode, bias, exec_reason, grade, price, hi_1h, lo_1h, forced, message, created_at
		FROM alerts ORDER BY ts DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	return out, nil
}
