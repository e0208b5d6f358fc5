package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Ananth-NQI/gastos-backend/internal/models"
	"github.com/Ananth-NQI/gastos-backend/internal/storage"
)

// ErrInvalidExpense is returned when a record fails its invariants
var ErrInvalidExpense = errors.New("invalid expense")

// ExpenseRecorder persists a finalized expense and returns its key
type ExpenseRecorder interface {
	Record(ctx context.Context, expense *models.Expense) (string, error)
}

// ExpensePublisher announces persisted expenses
type ExpensePublisher interface {
	PublishExpenseRecorded(ctx context.Context, expense *models.Expense) error
}

// ExpenseService is the Store backed ExpenseRecorder
type ExpenseService struct {
	store     storage.Store
	publisher ExpensePublisher
	logger    *slog.Logger
}

// NewExpenseService creates an expense writer. publisher may be nil.
func NewExpenseService(store storage.Store, publisher ExpensePublisher) *ExpenseService {
	return &ExpenseService{
		store:     store,
		publisher: publisher,
		logger:    slog.With("component", "expenses"),
	}
}

// Record validates and inserts expense in a single write
func (s *ExpenseService) Record(ctx context.Context, expense *models.Expense) (string, error) {
	if err := Validate(expense); err != nil {
		return "", err
	}
	if err := s.store.CreateExpense(ctx, expense); err != nil {
		return "", err
	}

	s.logger.Info("expense recorded",
		"key", expense.Key,
		"user", expense.OriginUserID,
		"amount", expense.Amount.StringFixed(2),
		"currency", expense.Currency,
		"method", expense.Method)

	if s.publisher != nil {
		if err := s.publisher.PublishExpenseRecorded(ctx, expense); err != nil {
			s.logger.Warn("failed to publish expense event", "key", expense.Key, "error", err)
		}
	}
	return expense.Key, nil
}

// Validate checks the amount and payment method invariants
func Validate(expense *models.Expense) error {
	if expense == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidExpense)
	}
	if !expense.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidExpense, expense.Amount)
	}
	if !expense.Method.IsValid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidExpense, expense.Method)
	}
	if expense.OriginUserID == "" {
		return fmt.Errorf("%w: missing origin user", ErrInvalidExpense)
	}
	return nil
}
