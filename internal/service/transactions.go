package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/moodledger-go/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Transactions: GET/POST /v1/transactions, PUT/DELETE /v1/transactions/{id}
// ============================================================

func (s *LedgerService) ListTransactions(ctx context.Context) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ListTransactions")
	defer span.End()

	txs, err := s.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return txs, nil
}

// ListTransactionsBetween returns transactions with from <= timestamp <= to.
func (s *LedgerService) ListTransactionsBetween(ctx context.Context, from, to time.Time) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.ListTransactionsBetween")
	defer span.End()

	if to.Before(from) {
		return nil, &domain.ErrValidation{Field: "to", Message: "must not be before from"}
	}
	txs, err := s.store.ListTransactionsBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list transactions between: %w", err)
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return txs, nil
}

func (s *LedgerService) AddTransaction(ctx context.Context, req *domain.TransactionRequest) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.AddTransaction")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	tx := &domain.Transaction{
		ID:        uuid.New().String(),
		Timestamp: req.Timestamp,
		Amount:    req.Amount,
		Currency:  s.currency,
		Category:  req.Category,
		Merchant:  req.Merchant,
		Mood:      req.Mood,
		Note:      req.Note,
		Tags:      req.Tags,
	}
	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}
	span.SetAttributes(attribute.String("transaction.id", tx.ID))

	s.logger.Info("transaction added",
		zap.String("transaction_id", tx.ID),
		zap.String("category", tx.Category),
		zap.Int("mood", int(tx.Mood)),
	)

	s.afterMutation(ctx)
	return tx, nil
}

func (s *LedgerService) EditTransaction(ctx context.Context, id string, req *domain.TransactionRequest) (*domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.EditTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	if err := req.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	tx.Timestamp = req.Timestamp
	tx.Amount = req.Amount
	tx.Category = req.Category
	tx.Merchant = req.Merchant
	tx.Mood = req.Mood
	tx.Note = req.Note
	tx.Tags = req.Tags

	if err := s.store.UpdateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	s.logger.Info("transaction edited", zap.String("transaction_id", id))
	s.afterMutation(ctx)
	return tx, nil
}

// DeleteTransactions removes one or many transactions in a single action.
func (s *LedgerService) DeleteTransactions(ctx context.Context, ids ...string) (int, error) {
	ctx, span := tracer.Start(ctx, "LedgerService.DeleteTransactions")
	defer span.End()
	span.SetAttributes(attribute.Int("transactions.count", len(ids)))

	if len(ids) == 0 {
		return 0, &domain.ErrValidation{Field: "ids", Message: "at least one id required"}
	}

	n, err := s.store.DeleteTransactions(ctx, ids...)
	if err != nil {
		return 0, fmt.Errorf("delete transactions: %w", err)
	}
	if n == 0 && len(ids) == 1 {
		return 0, &domain.ErrNotFound{Resource: "transaction", ID: ids[0]}
	}

	s.logger.Info("transactions deleted", zap.Int("requested", len(ids)), zap.Int("deleted", n))
	s.afterMutation(ctx)
	return n, nil
}
