// Package portfolio provides the position and rebalance-history store.
package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridianquant/riskdesk/internal/domain"
)

// Schema is the portfolio database schema.
const Schema = `
CREATE TABLE IF NOT EXISTS portfolios (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS positions (
	portfolio_id  TEXT NOT NULL,
	symbol        TEXT NOT NULL,
	quantity      REAL NOT NULL,
	current_price REAL NOT NULL,
	updated_at    INTEGER NOT NULL,
	PRIMARY KEY (portfolio_id, symbol)
);
CREATE TABLE IF NOT EXISTS rebalance_history (
	id           TEXT PRIMARY KEY,
	portfolio_id TEXT NOT NULL,
	executed_at  INTEGER NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	total_value  REAL NOT NULL DEFAULT 0,
	actions      INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_rebalance_history_portfolio
	ON rebalance_history(portfolio_id, executed_at);
CREATE TABLE IF NOT EXISTS trade_outcomes (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id   TEXT NOT NULL,
	symbol    TEXT NOT NULL,
	pnl       REAL NOT NULL,
	closed_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_outcomes_user ON trade_outcomes(user_id, closed_at);
`

// Repository provides access to portfolios, positions, rebalance history and
// closed trade outcomes.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new portfolio repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("component", "portfolio_repo").Logger(),
	}
}

// GetPositions returns the latest position snapshot for a portfolio.
// Returns domain.ErrNotFound when the portfolio does not exist.
func (r *Repository) GetPositions(portfolioID string) ([]domain.Position, error) {
	var exists int
	err := r.db.QueryRow(`SELECT COUNT(1) FROM portfolios WHERE id = ?`, portfolioID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check portfolio %s: %w", portfolioID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("portfolio %s: %w", portfolioID, domain.ErrNotFound)
	}

	rows, err := r.db.Query(`
		SELECT symbol, quantity, current_price
		FROM positions
		WHERE portfolio_id = ?
		ORDER BY symbol
	`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.Symbol, &p.Quantity, &p.CurrentPrice); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// UpsertPortfolio ensures a portfolio row exists.
func (r *Repository) UpsertPortfolio(portfolioID, userID string) error {
	_, err := r.db.Exec(`
		INSERT INTO portfolios (id, user_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, portfolioID, userID, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert portfolio %s: %w", portfolioID, err)
	}
	return nil
}

// UpsertPosition inserts or updates one position of a portfolio.
func (r *Repository) UpsertPosition(portfolioID string, p domain.Position) error {
	_, err := r.db.Exec(`
		INSERT INTO positions (portfolio_id, symbol, quantity, current_price, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id, symbol) DO UPDATE SET
			quantity = excluded.quantity,
			current_price = excluded.current_price,
			updated_at = excluded.updated_at
	`, portfolioID, p.Symbol, p.Quantity, p.CurrentPrice, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert position %s/%s: %w", portfolioID, p.Symbol, err)
	}
	return nil
}

// GetLastRebalanceDate returns the most recent rebalance timestamp for a
// portfolio. ok is false when no rebalance has been recorded.
func (r *Repository) GetLastRebalanceDate(portfolioID string) (time.Time, bool, error) {
	var ts sql.NullInt64
	err := r.db.QueryRow(`
		SELECT MAX(executed_at) FROM rebalance_history WHERE portfolio_id = ?
	`, portfolioID).Scan(&ts)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query rebalance history: %w", err)
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), true, nil
}

// RecordRebalance appends an executed rebalance to the history.
func (r *Repository) RecordRebalance(id, portfolioID, reason string, totalValue float64, actions int, executedAt time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO rebalance_history (id, portfolio_id, executed_at, reason, total_value, actions)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, portfolioID, executedAt.UTC().Unix(), reason, totalValue, actions)
	if err != nil {
		return fmt.Errorf("failed to record rebalance for %s: %w", portfolioID, err)
	}

	r.log.Info().
		Str("portfolio_id", portfolioID).
		Str("reason", reason).
		Int("actions", actions).
		Msg("Recorded rebalance")
	return nil
}

// GetTradeOutcomes returns closed trades for a user within the last N days,
// ordered by close time ascending.
func (r *Repository) GetTradeOutcomes(userID string, days int) ([]domain.TradeOutcome, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Unix()

	rows, err := r.db.Query(`
		SELECT symbol, pnl, closed_at
		FROM trade_outcomes
		WHERE user_id = ? AND closed_at >= ?
		ORDER BY closed_at ASC
	`, userID, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []domain.TradeOutcome
	for rows.Next() {
		var o domain.TradeOutcome
		var closedUnix int64
		if err := rows.Scan(&o.Symbol, &o.PnL, &closedUnix); err != nil {
			return nil, fmt.Errorf("failed to scan trade outcome: %w", err)
		}
		o.ClosedAt = time.Unix(closedUnix, 0).UTC()
		outcomes = append(outcomes, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade outcomes: %w", err)
	}

	return outcomes, nil
}

// RecordTradeOutcome appends a closed trade for a user.
func (r *Repository) RecordTradeOutcome(userID string, o domain.TradeOutcome) error {
	_, err := r.db.Exec(`
		INSERT INTO trade_outcomes (user_id, symbol, pnl, closed_at)
		VALUES (?, ?, ?, ?)
	`, userID, o.Symbol, o.PnL, o.ClosedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to record trade outcome: %w", err)
	}
	return nil
}
