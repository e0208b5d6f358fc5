package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ananth-NQI/gastos-backend/internal/models"
)

// DatabaseStore implements Store on top of Postgres through gorm
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a Store backed by db. The schema is expected to
// be migrated already.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (s *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Deduplication operations

func (s *DatabaseStore) MarkProcessed(ctx context.Context, messageID string, at time.Time) (bool, error) {
	row := models.ProcessedMessage{MessageID: messageID, ProcessedAt: at.UTC()}
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return false, fmt.Errorf("mark message processed: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *DatabaseStore) PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("processed_at < ?", cutoff.UTC()).
		Delete(&models.ProcessedMessage{})
	if result.Error != nil {
		return 0, fmt.Errorf("purge processed messages: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Session operations

func (s *DatabaseStore) GetSession(ctx context.Context, userID string) (*models.ConversationSession, error) {
	var session models.ConversationSession
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

func (s *DatabaseStore) PutSession(ctx context.Context, session *models.ConversationSession) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"state", "data", "updated_at"}),
		}).
		Create(session).Error
	if err != nil {
		return fmt.Errorf("put session: %w", err)
	}
	return nil
}

func (s *DatabaseStore) DeleteSession(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.ConversationSession{}).Error
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Catalog operations

func (s *DatabaseStore) ListCatalog(ctx context.Context, scope models.CatalogScope, owner string, limit int) ([]string, error) {
	names := []string{}
	q := s.db.WithContext(ctx).
		Model(&models.CatalogEntry{}).
		Where("scope = ? AND owner = ?", scope, owner).
		Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("list catalog %s: %w", scope, err)
	}
	return names, nil
}

func (s *DatabaseStore) FindCatalogEntry(ctx context.Context, scope models.CatalogScope, owner, name string) (*models.CatalogEntry, error) {
	var entry models.CatalogEntry
	err := s.db.WithContext(ctx).
		Where("scope = ? AND owner = ? AND lower(name) = lower(?)", scope, owner, name).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find catalog %s: %w", scope, err)
	}
	return &entry, nil
}

// CreateCatalogEntry relies on the unique (scope, owner, lower(name)) index
// so a concurrent duplicate is silently skipped.
func (s *DatabaseStore) CreateCatalogEntry(ctx context.Context, entry *models.CatalogEntry) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entry).Error
	if err != nil {
		return fmt.Errorf("create catalog %s: %w", entry.Scope, err)
	}
	return nil
}

// Expense operations

func (s *DatabaseStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if err := s.db.WithContext(ctx).Create(expense).Error; err != nil {
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

func (s *DatabaseStore) QueryExpenses(ctx context.Context, filter models.ExpenseFilter) ([]*models.Expense, error) {
	var expenses []*models.Expense
	if err := expenseQuery(s.db.WithContext(ctx), filter).Find(&expenses).Error; err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	return expenses, nil
}

func expenseQuery(db *gorm.DB, filter models.ExpenseFilter) *gorm.DB {
	q := db.Where("origin_user_id = ?", filter.OwnerID)
	if filter.From != nil {
		q = q.Where("timestamp_utc >= ?", filter.From.UTC())
	}
	if filter.Until != nil {
		q = q.Where("timestamp_utc < ?", filter.Until.UTC())
	}
	if filter.Method != "" {
		q = q.Where("payment_method = ?", filter.Method)
	}
	if filter.BankContains != "" {
		q = q.Where(substringClause("bank"), filter.BankContains)
	}
	if filter.BrandContains != "" {
		q = q.Where(substringClause("card_brand"), filter.BrandContains)
	}

	limit := filter.Limit
	if limit <= 0 || limit > MaxQueryRows {
		limit = MaxQueryRows
	}
	return q.Order("timestamp_utc desc").Limit(limit)
}

// substringClause matches a case-insensitive substring without LIKE
// wildcards, so % and _ typed by the user are literal
func substringClause(column string) string {
	return "strpos(lower(" + column + "), lower(?)) > 0"
}
