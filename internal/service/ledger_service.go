package service

import (
	"context"

	"github.com/mansoorceksport/smmpanel/internal/domain"
	"go.uber.org/zap"
)

// LedgerService owns every change to a user's balance
type LedgerService struct {
	ledger domain.LedgerRepository
	logger *zap.Logger
}

func NewLedgerService(ledger domain.LedgerRepository, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		ledger: ledger,
		logger: logger.Named("ledger"),
	}
}

// Debit takes amount from the balance or fails with insufficient_funds.
// Two concurrent debits can never drive the balance below zero.
func (s *LedgerService) Debit(ctx context.Context, userID string, amount domain.Money) (*domain.Balance, error) {
	if amount <= 0 {
		return nil, domain.NewValidationError("amount", "amount must be positive")
	}
	balance, err := s.ledger.Debit(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	s.logger.Info("balance debited",
		zap.String("user_id", userID),
		zap.Stringer("amount", amount),
		zap.Stringer("balance", balance.Balance),
	)
	return balance, nil
}

// Credit adds a settled top-up to balance and total spent
func (s *LedgerService) Credit(ctx context.Context, userID string, amount domain.Money) (*domain.Balance, error) {
	if amount <= 0 {
		return nil, domain.NewValidationError("amount", "amount must be positive")
	}
	balance, err := s.ledger.Credit(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	s.logger.Info("balance credited",
		zap.String("user_id", userID),
		zap.Stringer("amount", amount),
		zap.Stringer("balance", balance.Balance),
	)
	return balance, nil
}

// Refund returns order money to the balance without touching total spent
func (s *LedgerService) Refund(ctx context.Context, userID string, amount domain.Money) (*domain.Balance, error) {
	if amount <= 0 {
		return nil, domain.NewValidationError("amount", "amount must be positive")
	}
	balance, err := s.ledger.Refund(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	s.logger.Info("balance refunded",
		zap.String("user_id", userID),
		zap.Stringer("amount", amount),
		zap.Stringer("balance", balance.Balance),
	)
	return balance, nil
}

func (s *LedgerService) Balance(ctx context.Context, userID string) (*domain.Balance, error) {
	balance, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	balance.Currency = domain.DefaultCurrency
	return balance, nil
}
