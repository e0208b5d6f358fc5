package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ananth-NQI/gastos-backend/internal/models"
	"github.com/Ananth-NQI/gastos-backend/internal/normalize"
	"github.com/Ananth-NQI/gastos-backend/internal/storage"
)

// ErrSessionNotFound is returned by Get when the user has no session
var ErrSessionNotFound = errors.New("session not found")

// DefaultSessionTTL is the inactivity window of a conversation
const DefaultSessionTTL = 2 * time.Minute

// SessionData is everything a flow may collect before its terminal commit.
// Unset optional fields stay nil and are persisted as NULL.
type SessionData struct {
	// Registration
	Timestamp   *time.Time           `json:"timestamp,omitempty"`
	PartialDate *normalize.Date      `json:"partial_date,omitempty"`
	Amount      *decimal.Decimal     `json:"amount,omitempty"`
	Currency    string               `json:"currency,omitempty"`
	Description *string              `json:"description,omitempty"`
	Method      models.PaymentMethod `json:"method,omitempty"`
	Bank        *string              `json:"bank,omitempty"`
	Brand       *string              `json:"brand,omitempty"`
	Account     *string              `json:"account,omitempty"`
	Category    *string              `json:"category,omitempty"`
	Merchant    *string              `json:"merchant,omitempty"`

	// Guided query
	QueryFrom   *normalize.Date      `json:"query_from,omitempty"`
	QueryTo     *normalize.Date      `json:"query_to,omitempty"`
	QueryMethod models.PaymentMethod `json:"query_method,omitempty"`
	QueryBank   *string              `json:"query_bank,omitempty"`

	// Catalog menus
	Options []string `json:"options,omitempty"`
	Pending string   `json:"pending,omitempty"`
}

// Session is the decoded conversation state of one user
type Session struct {
	UserID    string
	State     State
	Data      SessionData
	UpdatedAt time.Time
}

// SessionManager keeps conversation sessions in a Store and serializes the
// turns of each user
type SessionManager struct {
	store      storage.Store
	clock      Clock
	sessionTTL time.Duration

	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewSessionManager creates a new session manager
func NewSessionManager(store storage.Store, clock Clock, ttl time.Duration) *SessionManager {
	if clock == nil {
		clock = SystemClock{}
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{
		store:      store,
		clock:      clock,
		sessionTTL: ttl,
		locks:      make(map[string]*userLock),
	}
}

// TTL returns the inactivity window
func (sm *SessionManager) TTL() time.Duration {
	return sm.sessionTTL
}

// Lock blocks until the caller owns userID's critical section and returns
// the function that releases it. Locks of different users never contend.
func (sm *SessionManager) Lock(userID string) func() {
	sm.mu.Lock()
	l, ok := sm.locks[userID]
	if !ok {
		l = &userLock{}
		sm.locks[userID] = l
	}
	l.refs++
	sm.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		sm.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(sm.locks, userID)
		}
		sm.mu.Unlock()
	}
}

// Get loads the session of userID
func (sm *SessionManager) Get(ctx context.Context, userID string) (*Session, error) {
	row, err := sm.store.GetSession(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	session := &Session{
		UserID:    row.UserID,
		State:     State(row.State),
		UpdatedAt: row.TouchedAt,
	}
	if row.Data != "" {
		if err := json.Unmarshal([]byte(row.Data), &session.Data); err != nil {
			return nil, fmt.Errorf("decode session data: %w", err)
		}
	}
	return session, nil
}

// Put overwrites the session of userID and refreshes its timestamp
func (sm *SessionManager) Put(ctx context.Context, userID string, state State, data SessionData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode session data: %w", err)
	}
	return sm.store.PutSession(ctx, &models.ConversationSession{
		UserID:    userID,
		State:     string(state),
		Data:      string(raw),
		TouchedAt: sm.clock.Now().UTC(),
	})
}

// Delete removes the session of userID
func (sm *SessionManager) Delete(ctx context.Context, userID string) error {
	return sm.store.DeleteSession(ctx, userID)
}

// IsExpired reports whether a session last touched at lastUpdated has been
// idle for longer than the inactivity window
func (sm *SessionManager) IsExpired(lastUpdated time.Time) bool {
	return sm.clock.Now().Sub(lastUpdated) > sm.sessionTTL
}
