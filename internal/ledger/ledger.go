// Package ledger guards account balances around generations. A reservation
// check runs before any provider is called; settlement decrements the
// balance only after a successful generation and is idempotent per request
// id, so a retried settlement can never double-charge.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrInsufficientFunds is returned when the account balance cannot
	// cover the quoted cost. Surfaced directly to the caller.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrAccountNotFound is returned for unknown account ids.
	ErrAccountNotFound = errors.New("ledger: account not found")
)

const settledCacheSize = 4096

// Gate is the pgx-backed ledger gate.
type Gate struct {
	pool   *pgxpool.Pool
	logger *slog.Logger

	// settled caches request ids that already settled so a retry skips the
	// round trip. The settlements table's unique index remains the source
	// of truth; the cache is only a fast path.
	settled *lru.Cache[string, struct{}]
}

// New creates a Gate on top of an existing connection pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) (*Gate, error) {
	cache, err := lru.New[string, struct{}](settledCacheSize)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to create settled cache: %w", err)
	}
	return &Gate{
		pool:    pool,
		logger:  logger,
		settled: cache,
	}, nil
}

// Balance returns the current balance for an account.
func (g *Gate) Balance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := g.pool.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE id = $1`, accountID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAccountNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("ledger: balance query failed: %w", err)
	}
	return balance, nil
}

// Reserve checks that the account can afford the quoted units. It does not
// hold funds: the single atomic decrement happens in Settle, and the balance
// check there repeats under a row lock. A denied reservation short-circuits
// the request before any provider network call.
func (g *Gate) Reserve(ctx context.Context, accountID string, units int64) error {
	balance, err := g.Balance(ctx, accountID)
	if err != nil {
		return err
	}
	if balance < units {
		g.logger.Info("Reservation denied",
			"account_id", accountID,
			"balance", balance,
			"units", units,
		)
		return ErrInsufficientFunds
	}
	return nil
}

// Settle deducts units from the account for the given request id.
// Idempotent: the settlements table carries a unique index on request_id,
// so a second settle for the same request is a no-op. The account row is
// locked for the duration of the transaction, serializing concurrent
// settlements for the same account.
func (g *Gate) Settle(ctx context.Context, accountID, requestID string, units int64) error {
	if _, ok := g.settled.Get(requestID); ok {
		g.logger.Debug("Settlement already applied (cache)", "request_id", requestID)
		return nil
	}

	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ledger: begin settle tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var balance int64
	err = tx.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("ledger: lock account row: %w", err)
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO ledger_settlements (request_id, account_id, units)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (request_id) DO NOTHING`,
		requestID, accountID, units,
	)
	if err != nil {
		return fmt.Errorf("ledger: record settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already settled by an earlier attempt; nothing to charge.
		g.settled.Add(requestID, struct{}{})
		g.logger.Debug("Settlement already applied (db)", "request_id", requestID)
		return nil
	}

	if balance < units {
		// The balance moved between reservation and settlement. Roll the
		// settlement record back with the transaction and report it.
		return fmt.Errorf("%w: balance %d, cost %d", ErrInsufficientFunds, balance, units)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = balance - $2 WHERE id = $1`,
		accountID, units,
	); err != nil {
		return fmt.Errorf("ledger: apply deduction: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ledger: commit settle tx: %w", err)
	}

	g.settled.Add(requestID, struct{}{})
	g.logger.Info("Settlement applied",
		"account_id", accountID,
		"request_id", requestID,
		"units", units,
	)
	return nil
}
