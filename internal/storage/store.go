package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Ananth-NQI/gastos-backend/internal/models"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// Store defines the durable operations the bot depends on
type Store interface {
	// Ping checks that the backing store is reachable
	Ping(ctx context.Context) error

	// Deduplication operations
	MarkProcessed(ctx context.Context, messageID string, at time.Time) (firstTime bool, err error)
	PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Session operations
	GetSession(ctx context.Context, userID string) (*models.ConversationSession, error)
	PutSession(ctx context.Context, session *models.ConversationSession) error
	DeleteSession(ctx context.Context, userID string) error

	// Catalog operations
	ListCatalog(ctx context.Context, scope models.CatalogScope, owner string, limit int) ([]string, error)
	FindCatalogEntry(ctx context.Context, scope models.CatalogScope, owner, name string) (*models.CatalogEntry, error)
	CreateCatalogEntry(ctx context.Context, entry *models.CatalogEntry) error

	// Expense operations
	CreateExpense(ctx context.Context, expense *models.Expense) error
	QueryExpenses(ctx context.Context, filter models.ExpenseFilter) ([]*models.Expense, error)
}

// MaxQueryRows bounds every expense query
const MaxQueryRows = 200
