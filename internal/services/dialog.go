package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Ananth-NQI/gastos-backend/internal/models"
	"github.com/Ananth-NQI/gastos-backend/internal/normalize"
)

// InboundMessage is one user message delivered by a channel
type InboundMessage struct {
	MessageID string
	UserID    string
	Text      string
}

// MessageDeduplicator is the check-and-set on inbound message ids
type MessageDeduplicator interface {
	MarkProcessed(ctx context.Context, messageID string, at time.Time) (bool, error)
}

// DialogOptions tunes a DialogEngine
type DialogOptions struct {
	Location     *time.Location
	HomeCurrency string
	Clock        Clock
}

// DialogEngine drives the per-user conversation state machine. Handle is
// safe for concurrent use; turns of the same user are serialized.
type DialogEngine struct {
	dedup    MessageDeduplicator
	sessions *SessionManager
	catalog  *CatalogService
	expenses ExpenseRecorder
	queries  *QueryService

	loc          *time.Location
	homeCurrency string
	clock        Clock
	logger       *slog.Logger

	handlers map[State]stateHandler
}

// NewDialogEngine wires the engine to its collaborators
func NewDialogEngine(
	dedup MessageDeduplicator,
	sessions *SessionManager,
	catalog *CatalogService,
	expenses ExpenseRecorder,
	queries *QueryService,
	opts DialogOptions,
) *DialogEngine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.HomeCurrency == "" {
		opts.HomeCurrency = models.DefaultCurrency
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}

	e := &DialogEngine{
		dedup:        dedup,
		sessions:     sessions,
		catalog:      catalog,
		expenses:     expenses,
		queries:      queries,
		loc:          opts.Location,
		homeCurrency: strings.ToUpper(opts.HomeCurrency),
		clock:        opts.Clock,
		logger:       slog.With("component", "dialog"),
	}
	e.handlers = e.stateHandlers()
	return e
}

// turn carries one inbound message through the engine
type turn struct {
	ctx     context.Context
	userID  string
	text    string
	lower   string
	state   State
	data    SessionData
	replies []string
}

func (t *turn) say(msgs ...string) {
	t.replies = append(t.replies, msgs...)
}

var (
	cancelWords   = []string{"cancelar", "salir", "stop"}
	greetingWords = []string{"hola", "menu", "menú", "hi", "inicio", "buenas"}
)

func isOneOf(text string, words []string) bool {
	for _, w := range words {
		if text == w {
			return true
		}
	}
	return false
}

// Handle processes one inbound message and returns the replies to send.
// Replayed message ids produce no replies. Only a failing deduplication
// check is returned as an error; every other failure becomes a reply.
func (e *DialogEngine) Handle(ctx context.Context, msg InboundMessage) ([]string, error) {
	if msg.MessageID == "" || msg.UserID == "" {
		return nil, nil
	}

	first, err := e.dedup.MarkProcessed(ctx, msg.MessageID, e.clock.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("deduplicate message %s: %w", msg.MessageID, err)
	}
	if !first {
		e.logger.Debug("duplicate message ignored", "message_id", msg.MessageID)
		return nil, nil
	}

	unlock := e.sessions.Lock(msg.UserID)
	defer unlock()

	text := strings.TrimSpace(msg.Text)
	t := &turn{
		ctx:    ctx,
		userID: msg.UserID,
		text:   text,
		lower:  strings.ToLower(text),
	}

	if err := e.run(t); err != nil {
		e.logger.Error("dialog turn failed",
			"user", msg.UserID,
			"state", t.state,
			"text", preview(text),
			"error", err)
		if delErr := e.sessions.Delete(ctx, msg.UserID); delErr != nil {
			e.logger.Error("failed to clear session", "user", msg.UserID, "error", delErr)
		}
		return []string{msgFailure}, nil
	}
	return t.replies, nil
}

// run applies the global overrides in order and then dispatches on state
func (e *DialogEngine) run(t *turn) error {
	session, err := e.sessions.Get(t.ctx, t.userID)
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}

	if session != nil && e.sessions.IsExpired(session.UpdatedAt) {
		e.logger.Info("session expired", "user", t.userID, "state", session.State)
		t.say(timeoutNotice(e.sessions.TTL()), msgMenu)
		return e.transition(t, StateMenu)
	}

	if isOneOf(t.lower, cancelWords) {
		t.say(msgCancelled)
		return e.sessions.Delete(t.ctx, t.userID)
	}

	if normalize.IsFreeQuery(t.text) {
		e.freeQuery(t)
		return nil
	}

	if session == nil || isOneOf(t.lower, greetingWords) {
		t.say(msgMenu)
		return e.transition(t, StateMenu)
	}

	t.state = session.State
	t.data = session.Data

	handler, ok := e.handlers[t.state]
	if !ok {
		e.logger.Warn("unknown session state, restarting", "user", t.userID, "state", t.state)
		t.data = SessionData{}
		t.say(msgMenu)
		return e.transition(t, StateMenu)
	}
	return handler(t)
}

// transition persists the turn's data under next. Each transition writes
// the session exactly once.
func (e *DialogEngine) transition(t *turn, next State) error {
	if next == StateMenu {
		t.data = SessionData{}
	}
	t.state = next
	return e.sessions.Put(t.ctx, t.userID, next, t.data)
}

// finish ends the flow and clears the session
func (e *DialogEngine) finish(t *turn) error {
	return e.sessions.Delete(t.ctx, t.userID)
}

// freeQuery answers a free-text summary request without touching the session
func (e *DialogEngine) freeQuery(t *turn) {
	q := normalize.ParseFreeQuery(t.text)
	criteria := QueryCriteria{
		OwnerID: t.userID,
		From:    q.From,
		To:      q.To,
		Method:  q.Method,
		Bank:    q.Bank,
		Brand:   q.Brand,
	}

	result, err := e.queries.Run(t.ctx, criteria)
	if err != nil {
		e.logger.Error("free query failed", "user", t.userID, "error", err)
		t.say(msgQueryFailed)
		return
	}
	t.say(e.queries.Format(result))
}

// commit assembles and writes the expense, then clears the session
func (e *DialogEngine) commit(t *turn) error {
	d := t.data
	occurredAt := e.clock.Now().UTC()
	if d.Timestamp != nil {
		occurredAt = *d.Timestamp
	}
	currency := d.Currency
	if currency == "" {
		currency = e.homeCurrency
	}

	expense := &models.Expense{
		OccurredAt:   occurredAt,
		Currency:     currency,
		Description:  d.Description,
		Category:     d.Category,
		Merchant:     d.Merchant,
		Method:       d.Method,
		Bank:         d.Bank,
		CardBrand:    d.Brand,
		AccountLabel: d.Account,
		RawText:      "registrado via dialogo",
		OriginUserID: t.userID,
	}
	if d.Amount != nil {
		expense.Amount = *d.Amount
	}

	key, err := e.expenses.Record(t.ctx, expense)
	if err != nil {
		e.logger.Error("failed to record expense", "user", t.userID, "error", err)
		t.say(msgRecordFailed)
	} else {
		t.say(fmt.Sprintf(msgRecorded, key))
	}

	if err := e.finish(t); err != nil {
		e.logger.Error("failed to clear session after commit", "user", t.userID, "error", err)
	}
	return nil
}

// optionalText maps empty input and "none" synonyms to nil
func optionalText(text string) *string {
	if text == "" || normalize.IsNone(text) {
		return nil
	}
	return &text
}
