package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Ananth-NQI/gastos-backend/internal/models"
)

// MemoryStore holds all data in memory for local development and tests
type MemoryStore struct {
	processed map[string]time.Time
	sessions  map[string]models.ConversationSession
	catalog   []models.CatalogEntry
	expenses  []models.Expense

	// Mutexes for thread safety
	processedMu sync.Mutex
	sessionMu   sync.RWMutex
	catalogMu   sync.RWMutex
	expenseMu   sync.RWMutex

	// Counters for ID generation
	catalogCounter uint
	expenseCounter uint
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		processed: make(map[string]time.Time),
		sessions:  make(map[string]models.ConversationSession),
	}
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// Deduplication operations
func (m *MemoryStore) MarkProcessed(_ context.Context, messageID string, at time.Time) (bool, error) {
	m.processedMu.Lock()
	defer m.processedMu.Unlock()

	if _, seen := m.processed[messageID]; seen {
		return false, nil
	}
	m.processed[messageID] = at
	return true, nil
}

func (m *MemoryStore) PurgeProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.processedMu.Lock()
	defer m.processedMu.Unlock()

	var purged int64
	for id, at := range m.processed {
		if at.Before(cutoff) {
			delete(m.processed, id)
			purged++
		}
	}
	return purged, nil
}

// Session operations
func (m *MemoryStore) GetSession(_ context.Context, userID string) (*models.ConversationSession, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	session, exists := m.sessions[userID]
	if !exists {
		return nil, ErrNotFound
	}
	return &session, nil
}

func (m *MemoryStore) PutSession(_ context.Context, session *models.ConversationSession) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	m.sessions[session.UserID] = *session
	return nil
}

func (m *MemoryStore) DeleteSession(_ context.Context, userID string) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	delete(m.sessions, userID)
	return nil
}

// Catalog operations
func (m *MemoryStore) ListCatalog(_ context.Context, scope models.CatalogScope, owner string, limit int) ([]string, error) {
	m.catalogMu.RLock()
	defer m.catalogMu.RUnlock()

	names := []string{}
	for i := len(m.catalog) - 1; i >= 0; i-- {
		entry := m.catalog[i]
		if entry.Scope != scope || entry.Owner != owner {
			continue
		}
		names = append(names, entry.Name)
		if limit > 0 && len(names) == limit {
			break
		}
	}
	return names, nil
}

func (m *MemoryStore) FindCatalogEntry(_ context.Context, scope models.CatalogScope, owner, name string) (*models.CatalogEntry, error) {
	m.catalogMu.RLock()
	defer m.catalogMu.RUnlock()

	if i := m.indexOf(scope, owner, name); i >= 0 {
		entry := m.catalog[i]
		return &entry, nil
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateCatalogEntry(_ context.Context, entry *models.CatalogEntry) error {
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()

	if m.indexOf(entry.Scope, entry.Owner, entry.Name) >= 0 {
		return nil
	}
	m.catalogCounter++
	entry.ID = m.catalogCounter
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.catalog = append(m.catalog, *entry)
	return nil
}

// indexOf expects catalogMu to be held
func (m *MemoryStore) indexOf(scope models.CatalogScope, owner, name string) int {
	for i, entry := range m.catalog {
		if entry.Scope == scope && entry.Owner == owner && strings.EqualFold(entry.Name, name) {
			return i
		}
	}
	return -1
}

// Expense operations
func (m *MemoryStore) CreateExpense(_ context.Context, expense *models.Expense) error {
	expense.Prepare()

	m.expenseMu.Lock()
	defer m.expenseMu.Unlock()

	m.expenseCounter++
	expense.ID = m.expenseCounter
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now()
	}
	m.expenses = append(m.expenses, *expense)
	return nil
}

func (m *MemoryStore) QueryExpenses(_ context.Context, filter models.ExpenseFilter) ([]*models.Expense, error) {
	m.expenseMu.RLock()
	defer m.expenseMu.RUnlock()

	var results []*models.Expense
	for _, e := range m.expenses {
		if !matches(e, filter) {
			continue
		}
		row := e
		results = append(results, &row)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].OccurredAt.After(results[j].OccurredAt)
	})

	limit := filter.Limit
	if limit <= 0 || limit > MaxQueryRows {
		limit = MaxQueryRows
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func matches(e models.Expense, f models.ExpenseFilter) bool {
	if e.OriginUserID != f.OwnerID {
		return false
	}
	if f.From != nil && e.OccurredAt.Before(*f.From) {
		return false
	}
	if f.Until != nil && !e.OccurredAt.Before(*f.Until) {
		return false
	}
	if f.Method != "" && e.Method != f.Method {
		return false
	}
	if f.BankContains != "" && !containsFold(e.Bank, f.BankContains) {
		return false
	}
	if f.BrandContains != "" && !containsFold(e.CardBrand, f.BrandContains) {
		return false
	}
	return true
}

func containsFold(value *string, needle string) bool {
	if value == nil {
		return false
	}
	return strings.Contains(strings.ToLower(*value), strings.ToLower(needle))
}
