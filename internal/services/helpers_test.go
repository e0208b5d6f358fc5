package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/gastos-backend/internal/models"
	"github.com/Ananth-NQI/gastos-backend/internal/storage"
)

var (
	errBoom  = errors.New("boom")
	testZone = time.FixedZone("ART", -3*60*60)
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.August, 20, 15, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyStore wraps MemoryStore with switchable failures and a PutSession counter
type flakyStore struct {
	*storage.MemoryStore

	mu          sync.Mutex
	failDedup   bool
	failCatalog bool
	failQuery   bool
	puts        int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: storage.NewMemoryStore()}
}

func (s *flakyStore) MarkProcessed(ctx context.Context, id string, at time.Time) (bool, error) {
	if s.failDedup {
		return false, errBoom
	}
	return s.MemoryStore.MarkProcessed(ctx, id, at)
}

func (s *flakyStore) ListCatalog(ctx context.Context, scope models.CatalogScope, owner string, limit int) ([]string, error) {
	if s.failCatalog {
		return nil, errBoom
	}
	return s.MemoryStore.ListCatalog(ctx, scope, owner, limit)
}

func (s *flakyStore) QueryExpenses(ctx context.Context, f models.ExpenseFilter) ([]*models.Expense, error) {
	if s.failQuery {
		return nil, errBoom
	}
	return s.MemoryStore.QueryExpenses(ctx, f)
}

func (s *flakyStore) PutSession(ctx context.Context, session *models.ConversationSession) error {
	s.mu.Lock()
	s.puts++
	s.mu.Unlock()
	return s.MemoryStore.PutSession(ctx, session)
}

func (s *flakyStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, *models.Expense) (string, error) {
	return "", errBoom
}

type harness struct {
	store  *flakyStore
	clock  *fakeClock
	engine *DialogEngine
	user   string
	seq    int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithRecorder(t, nil)
}

func newHarnessWithRecorder(t *testing.T, recorder ExpenseRecorder) *harness {
	t.Helper()
	store := newFlakyStore()
	clock := newFakeClock()
	if recorder == nil {
		recorder = NewExpenseService(store, nil)
	}
	engine := NewDialogEngine(
		store,
		NewSessionManager(store, clock, 2*time.Minute),
		NewCatalogService(store, 5),
		recorder,
		NewQueryService(store, testZone),
		DialogOptions{Location: testZone, HomeCurrency: "ARS", Clock: clock},
	)
	return &harness{store: store, clock: clock, engine: engine, user: "5491122334455"}
}

// send delivers text under a fresh message id
func (h *harness) send(t *testing.T, text string) []string {
	t.Helper()
	h.seq++
	replies, err := h.engine.Handle(context.Background(), InboundMessage{
		MessageID: fmt.Sprintf("wamid.%d", h.seq),
		UserID:    h.user,
		Text:      text,
	})
	require.NoError(t, err)
	return replies
}

// sendAll delivers each text in order and returns the last replies
func (h *harness) sendAll(t *testing.T, texts ...string) []string {
	t.Helper()
	var replies []string
	for _, text := range texts {
		replies = h.send(t, text)
	}
	return replies
}

func (h *harness) session(t *testing.T) *Session {
	t.Helper()
	s, err := h.engine.sessions.Get(context.Background(), h.user)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	require.NoError(t, err)
	return s
}

func (h *harness) state(t *testing.T) State {
	t.Helper()
	s := h.session(t)
	if s == nil {
		return ""
	}
	return s.State
}

func (h *harness) expenses(t *testing.T) []*models.Expense {
	t.Helper()
	rows, err := h.store.QueryExpenses(context.Background(), models.ExpenseFilter{OwnerID: h.user})
	require.NoError(t, err)
	return rows
}

func (h *harness) seedCatalog(t *testing.T, scope models.CatalogScope, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, h.store.CreateCatalogEntry(context.Background(), &models.CatalogEntry{Scope: scope, Owner: h.user, Name: name}))
	}
}
