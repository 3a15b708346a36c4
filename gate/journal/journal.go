// Package journal persists terminal verification decisions.
package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/gatekeeper/core/logger"
	"github.com/m3rciful/gatekeeper/gate/verify"
)

const component = "gate.journal"

// Count is the number of decisions with one outcome.
type Count struct {
	Outcome string `db:"outcome"`
	Total   int    `db:"total"`
}

// Journal records decisions and summarises them.
type Journal interface {
	verify.Recorder
	Summary(ctx context.Context, since time.Time) ([]Count, error)
	Enabled() bool
}

// Nop is used when no database is configured.
type Nop struct{}

var _ Journal = Nop{}

func (Nop) Record(context.Context, verify.Decision) error { return nil }

func (Nop) Summary(context.Context, time.Time) ([]Count, error) { return nil, nil }

func (Nop) Enabled() bool { return false }

type row struct {
	ChatID    int64     `db:"chat_id"`
	UserID    int64     `db:"user_id"`
	Mode      string    `db:"mode"`
	Outcome   string    `db:"outcome"`
	DecidedAt time.Time `db:"decided_at"`
}

const (
	insertDecision = `INSERT INTO verification_log (chat_id, user_id, mode, outcome, decided_at)
VALUES (:chat_id, :user_id, :mode, :outcome, :decided_at)`

	selectSummary = `SELECT outcome, COUNT(*) AS total
FROM verification_log
WHERE decided_at >= $1
GROUP BY outcome
ORDER BY outcome`
)

// Postgres stores decisions in the verification_log table.
type Postgres struct {
	db      *sqlx.DB
	timeout time.Duration
}

var _ Journal = (*Postgres)(nil)

// NewPostgres wraps an open database handle.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db, timeout: 3 * time.Second}
}

// Record appends d to the journal.
func (p *Postgres) Record(ctx context.Context, d verify.Decision) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	_, err := p.db.NamedExecContext(ctx, insertDecision, row{
		ChatID:    d.ChatID,
		UserID:    d.UserID,
		Mode:      d.Mode.String(),
		Outcome:   d.Outcome.String(),
		DecidedAt: d.DecidedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("journal: insert decision: %w", err)
	}
	logger.Debug(ctx, component, "decision.recorded",
		slog.Int64("user_id", d.UserID),
		slog.String("decision", d.Outcome.String()),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// Summary counts decisions per outcome since the given instant.
func (p *Postgres) Summary(ctx context.Context, since time.Time) ([]Count, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var counts []Count
	if err := p.db.SelectContext(ctx, &counts, selectSummary, since.UTC()); err != nil {
		return nil, fmt.Errorf("journal: summary: %w", err)
	}
	return counts, nil
}

// Enabled reports true; decisions are persisted.
func (p *Postgres) Enabled() bool { return true }
