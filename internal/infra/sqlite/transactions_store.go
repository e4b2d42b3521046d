package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/boddenberg/moodledger-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Transactions store: list, get, create, update, delete, append
// ============================================================

const transactionColumns = `id, occurred_at, amount, currency, category, merchant, mood, note, tags, recurring_id`

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx          domain.Transaction
		occurredAt  int64
		amount      string
		mood        int
		tags        string
		recurringID sql.NullString
	)
	if err := row.Scan(&tx.ID, &occurredAt, &amount, &tx.Currency, &tx.Category, &tx.Merchant,
		&mood, &tx.Note, &tags, &recurringID); err != nil {
		return nil, err
	}

	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("decode amount of transaction %s: %w", tx.ID, err)
	}
	tx.Amount = amt
	tx.Timestamp = fromMillis(occurredAt)
	tx.Mood = domain.Mood(mood)
	tx.RecurringID = recurringID.String
	if tx.Tags, err = decodeTags(tags); err != nil {
		return nil, err
	}
	return &tx, nil
}

func transactionArgs(tx *domain.Transaction) ([]any, error) {
	tags, err := encodeTags(tx.Tags)
	if err != nil {
		return nil, err
	}
	var recurringID any
	if tx.RecurringID != "" {
		recurringID = tx.RecurringID
	}
	return []any{
		tx.ID, toMillis(tx.Timestamp), tx.Amount.String(), tx.Currency, tx.Category, tx.Merchant,
		int(tx.Mood), tx.Note, tags, recurringID,
	}, nil
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

// ListTransactions returns the full log in chronological order.
func (s *Store) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListTransactions")
	defer span.End()

	txs, err := s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions ORDER BY occurred_at ASC, id ASC`)
	span.SetAttributes(attribute.Int("transactions.count", len(txs)))
	return txs, err
}

// ListTransactionsBetween returns transactions with from <= timestamp <= to.
func (s *Store) ListTransactionsBetween(ctx context.Context, from, to time.Time) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "SQLite.ListTransactionsBetween")
	defer span.End()

	return s.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE occurred_at >= ? AND occurred_at <= ?
		 ORDER BY occurred_at ASC, id ASC`,
		toMillis(from), toMillis(to),
	)
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "SQLite.GetTransaction")
	defer span.End()

	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	ctx, span := tracer.Start(ctx, "SQLite.CreateTransaction")
	defer span.End()

	args, err := transactionArgs(tx)
	if err != nil {
		return err
	}
	err = s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
		return err
	})
	if isUniqueViolation(err) {
		return &domain.ErrConflict{Message: fmt.Sprintf("transaction %s already exists", tx.ID)}
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	s.logger.Debug("transaction created", zap.String("transaction_id", tx.ID))
	return nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	ctx, span := tracer.Start(ctx, "SQLite.UpdateTransaction")
	defer span.End()

	tags, err := encodeTags(tx.Tags)
	if err != nil {
		return err
	}

	var affected int64
	err = s.withRetry(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE transactions SET occurred_at = ?, amount = ?, category = ?, merchant = ?, mood = ?, note = ?, tags = ?
			 WHERE id = ?`,
			toMillis(tx.Timestamp), tx.Amount.String(), tx.Category, tx.Merchant, int(tx.Mood), tx.Note, tags, tx.ID,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if affected == 0 {
		return &domain.ErrNotFound{Resource: "transaction", ID: tx.ID}
	}
	s.logger.Debug("transaction updated", zap.String("transaction_id", tx.ID))
	return nil
}

// deleteChunkSize keeps each DELETE well under SQLite's bound-variable limit
// (999 on older builds).
const deleteChunkSize = 500

// DeleteTransactions removes the given IDs and returns how many existed.
// Large bulk deletes run as several statements inside one transaction.
func (s *Store) DeleteTransactions(ctx context.Context, ids ...string) (int, error) {
	ctx, span := tracer.Start(ctx, "SQLite.DeleteTransactions")
	defer span.End()
	span.SetAttributes(attribute.Int("transactions.count", len(ids)))

	if len(ids) == 0 {
		return 0, nil
	}

	var deleted int64
	err := s.inTx(ctx, func(sqlTx *sql.Tx) error {
		deleted = 0
		for chunk := range slices.Chunk(ids, deleteChunkSize) {
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")
			args := make([]any, len(chunk))
			for i, id := range chunk {
				args[i] = id
			}
			res, err := sqlTx.ExecContext(ctx, `DELETE FROM transactions WHERE id IN (`+placeholders+`)`, args...)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			deleted += n
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}

	s.logger.Debug("transactions deleted",
		zap.Int("requested", len(ids)),
		zap.Int64("deleted", deleted),
	)
	return int(deleted), nil
}

// AppendTransactions inserts txs, silently skipping IDs that already exist.
func (s *Store) AppendTransactions(ctx context.Context, txs []domain.Transaction) error {
	ctx, span := tracer.Start(ctx, "SQLite.AppendTransactions")
	defer span.End()
	span.SetAttributes(attribute.Int("transactions.count", len(txs)))

	if len(txs) == 0 {
		return nil
	}
	if err := s.inTx(ctx, func(sqlTx *sql.Tx) error {
		return appendTransactions(ctx, sqlTx, txs)
	}); err != nil {
		return err
	}
	s.logger.Debug("transactions appended", zap.Int("count", len(txs)))
	return nil
}

func appendTransactions(ctx context.Context, sqlTx *sql.Tx, txs []domain.Transaction) error {
	stmt, err := sqlTx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for i := range txs {
		args, err := transactionArgs(&txs[i])
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("append transaction %s: %w", txs[i].ID, err)
		}
	}
	return nil
}
