package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/gastos-backend/internal/models"
)

// toBankMenu walks the registration flow up to the bank menu
func toBankMenu(t *testing.T, h *harness) []string {
	t.Helper()
	replies := h.sendAll(t, "hola", "1", "si", "ahora", "1500 ARS", "coffee", "efectivo")
	require.Equal(t, StateBankMenu, h.state(t))
	return replies
}

func TestEveryStateHasAHandler(t *testing.T) {
	h := newHarness(t)
	for _, s := range AllStates {
		_, ok := h.engine.handlers[s]
		assert.True(t, ok, "no handler for %s", s)
	}
	assert.Len(t, h.engine.handlers, len(AllStates))
}

func TestFirstContactShowsMenu(t *testing.T) {
	h := newHarness(t)

	replies := h.send(t, "1")
	assert.Equal(t, []string{msgMenu}, replies)
	assert.Equal(t, StateMenu, h.state(t))

	replies = h.send(t, "que tal")
	assert.Equal(t, []string{msgMenuRetry}, replies)
	assert.Equal(t, StateMenu, h.state(t))
}

func TestRegistrationRoundTrip(t *testing.T) {
	h := newHarness(t)

	steps := []struct {
		text  string
		state State
		reply string
	}{
		{"hola", StateMenu, msgMenu},
		{"1", StateConfirmRegister, msgConfirmRegister},
		{"sí", StatePickMoment, msgPickMoment},
		{"ahora", StateAskAmount, msgAskAmount},
		{"1500 ARS", StateAskDescription, msgAskDescription},
		{"coffee", StateAskMethod, msgAskMethod},
		{"efectivo", StateBankMenu, "Banco (número):\n0) Ninguno\n9) Otra (crear nueva)"},
		{"0", StateBrandMenu, "Marca (número):\n0) Ninguna\n9) Otra (crear nueva)"},
		{"0", StateAskAccount, msgAskAccount},
		{"ninguno", StateCategoryMenu, "Categoría (número):\n0) Ninguna\n9) Otra (crear nueva)"},
		{"0", StateAskMerchant, msgAskMerchant},
	}
	for _, step := range steps {
		replies := h.send(t, step.text)
		require.Equal(t, []string{step.reply}, replies, step.text)
		require.Equal(t, step.state, h.state(t), step.text)
	}

	replies := h.send(t, "ninguno")
	require.Len(t, replies, 1)
	assert.True(t, strings.HasPrefix(replies[0], "✅ Gasto registrado (clave "), replies[0])
	assert.Nil(t, h.session(t))

	rows := h.expenses(t)
	require.Len(t, rows, 1)
	e := rows[0]
	assert.True(t, e.Amount.Equal(decimal.NewFromInt(1500)))
	assert.Equal(t, "ARS", e.Currency)
	assert.Equal(t, models.PaymentCash, e.Method)
	assert.Nil(t, e.Bank)
	assert.Nil(t, e.CardBrand)
	assert.Nil(t, e.AccountLabel)
	assert.Nil(t, e.Category)
	assert.Nil(t, e.Merchant)
	require.NotNil(t, e.Description)
	assert.Equal(t, "coffee", *e.Description)
	assert.Equal(t, "registrado via dialogo", e.RawText)
	assert.Equal(t, h.user, e.OriginUserID)
	assert.True(t, e.OccurredAt.Equal(h.clock.Now()))
	assert.Contains(t, replies[0], e.Key)
}

func TestRegistrationWithAnotherMoment(t *testing.T) {
	h := newHarness(t)
	h.sendAll(t, "hola", "1", "si")

	assert.Equal(t, []string{msgPickMomentRetry}, h.send(t, "mañana"))
	assert.Equal(t, StatePickMoment, h.state(t))

	h.send(t, "otro momento")
	assert.Equal(t, StateAskDate, h.state(t))

	assert.Equal(t, []string{msgBadDate}, h.send(t, "2025-02-30"))
	assert.Equal(t, StateAskDate, h.state(t))

	h.send(t, "2025-08-10")
	assert.Equal(t, StateAskTime, h.state(t))

	assert.Equal(t, []string{msgBadTime}, h.send(t, "25:99"))
	h.send(t, "14:30")
	s := h.session(t)
	require.Equal(t, StateAskAmount, s.State)
	assert.Nil(t, s.Data.PartialDate)
	require.NotNil(t, s.Data.Timestamp)
	assert.Equal(t, time.Date(2025, 8, 10, 17, 30, 0, 0, time.UTC), s.Data.Timestamp.UTC())

	assert.Equal(t, []string{msgBadAmount}, h.send(t, "mucho"))
	assert.Equal(t, StateAskAmount, h.state(t))

	h.sendAll(t, "45,50 usd", "", "credito", "0", "0", "cuenta sueldo", "0", "Coto")
	rows := h.expenses(t)
	require.Len(t, rows, 1)
	e := rows[0]
	assert.Equal(t, "45.5", e.Amount.String())
	assert.Equal(t, "USD", e.Currency)
	assert.Nil(t, e.Description)
	require.NotNil(t, e.AccountLabel)
	assert.Equal(t, "cuenta sueldo", *e.AccountLabel)
	require.NotNil(t, e.Merchant)
	assert.Equal(t, "Coto", *e.Merchant)
	assert.Equal(t, time.Date(2025, 8, 10, 17, 30, 0, 0, time.UTC), e.OccurredAt)
}

func TestDeclineRegistration(t *testing.T) {
	h := newHarness(t)
	h.sendAll(t, "hola", "1")

	assert.Equal(t, []string{msgYesNo}, h.send(t, "quizas"))
	assert.Equal(t, []string{msgRegisterDeclined}, h.send(t, "no"))
	assert.Nil(t, h.session(t))
}

func TestCatalogCreationConfirmed(t *testing.T) {
	h := newHarness(t)
	toBankMenu(t, h)

	replies := h.send(t, "Banco Ciudad")
	assert.Equal(t, []string{"No existe “Banco Ciudad”. ¿Crear? (sí/no)"}, replies)
	assert.Equal(t, StateBankConfirmCreate, h.state(t))

	assert.Equal(t, []string{msgYesNoShort}, h.send(t, "capaz"))

	h.send(t, "si")
	s := h.session(t)
	require.Equal(t, StateBrandMenu, s.State)
	require.NotNil(t, s.Data.Bank)
	assert.Equal(t, "Banco Ciudad", *s.Data.Bank)
	assert.Empty(t, s.Data.Pending)

	names, err := h.store.ListCatalog(context.Background(), models.ScopeBank, h.user, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Banco Ciudad"}, names)
}

func TestCatalogCreationDeclined(t *testing.T) {
	h := newHarness(t)
	h.seedCatalog(t, models.ScopeBank, "Galicia")
	toBankMenu(t, h)

	h.send(t, "Banco Ciudad")
	replies := h.send(t, "no")
	assert.Equal(t, []string{"Banco (número):\n0) Ninguno\n1) Galicia\n9) Otra (crear nueva)"}, replies)

	s := h.session(t)
	require.Equal(t, StateBankMenu, s.State)
	assert.Nil(t, s.Data.Bank)
	assert.Empty(t, s.Data.Pending)

	names, err := h.store.ListCatalog(context.Background(), models.ScopeBank, h.user, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Galicia"}, names)
}

func TestCatalogMatchKeepsStoredSpelling(t *testing.T) {
	h := newHarness(t)
	h.seedCatalog(t, models.ScopeBank, "Galicia")
	toBankMenu(t, h)

	h.send(t, "GALICIA")
	s := h.session(t)
	require.Equal(t, StateBrandMenu, s.State)
	require.NotNil(t, s.Data.Bank)
	assert.Equal(t, "Galicia", *s.Data.Bank)
}

func TestCatalogNumericSelection(t *testing.T) {
	h := newHarness(t)
	h.seedCatalog(t, models.ScopeBank, "Galicia", "BBVA")

	replies := toBankMenu(t, h)
	assert.Equal(t, []string{"Banco (número):\n0) Ninguno\n1) BBVA\n2) Galicia\n9) Otra (crear nueva)"}, replies)

	assert.Equal(t, []string{msgBadIndex}, h.send(t, "7"))
	assert.Equal(t, StateBankMenu, h.state(t))

	h.send(t, "2")
	s := h.session(t)
	require.Equal(t, StateBrandMenu, s.State)
	require.NotNil(t, s.Data.Bank)
	assert.Equal(t, "Galicia", *s.Data.Bank)
}

func TestCatalogCreateNewWithNine(t *testing.T) {
	h := newHarness(t)
	toBankMenu(t, h)
	h.sendAll(t, "0")
	require.Equal(t, StateBrandMenu, h.state(t))

	assert.Equal(t, []string{"Escribí la marca (Visa, Mastercard, etc.):"}, h.send(t, "9"))
	assert.Equal(t, StateBrandNewValue, h.state(t))

	assert.Equal(t, []string{"¿Crear marca “Visa”? (sí/no)"}, h.send(t, "Visa"))
	assert.Equal(t, StateBrandConfirmCreate, h.state(t))

	h.send(t, "dale")
	s := h.session(t)
	require.Equal(t, StateAskAccount, s.State)
	require.NotNil(t, s.Data.Brand)
	assert.Equal(t, "Visa", *s.Data.Brand)
}

func TestNumbersBeyondPageMustBeTyped(t *testing.T) {
	h := newHarness(t)
	h.seedCatalog(t, models.ScopeBank, "A1", "A2", "A3", "A4", "A5", "A6")
	replies := toBankMenu(t, h)
	assert.NotContains(t, replies[0], "A1")
	assert.NotContains(t, replies[0], "6)")

	assert.Equal(t, []string{msgBadIndex}, h.send(t, "6"))
	h.send(t, "a1")
	s := h.session(t)
	require.NotNil(t, s.Data.Bank)
	assert.Equal(t, "A1", *s.Data.Bank)
}

func TestTimeoutRestartsAtMenu(t *testing.T) {
	h := newHarness(t)
	h.sendAll(t, "hola", "1", "si", "ahora")
	require.Equal(t, StateAskAmount, h.state(t))

	h.clock.Advance(2*time.Minute + time.Second)
	replies := h.send(t, "1500")
	require.Len(t, replies, 2)
	assert.Equal(t, "⏱️ Pasaron más de 2 minutos sin respuesta. Escribí *hola* para reiniciar.", replies[0])
	assert.Equal(t, msgMenu, replies[1])

	s := h.session(t)
	require.Equal(t, StateMenu, s.State)
	assert.Nil(t, s.Data.Timestamp)
	assert.Nil(t, s.Data.Amount)
	assert.Empty(t, h.expenses(t))

	assert.Equal(t, []string{msgConfirmRegister}, h.send(t, "1"))
}

func TestActivityInsideWindowKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.sendAll(t, "hola", "1", "si", "ahora")

	h.clock.Advance(90 * time.Second)
	h.send(t, "1500")
	h.clock.Advance(90 * time.Second)
	h.send(t, "kiosco")
	assert.Equal(t, StateAskMethod, h.state(t))
}

func TestReplayedMessageIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.send(t, "hola")

	msg := InboundMessage{MessageID: "wamid.dup", UserID: h.user, Text: "1"}
	replies, err := h.engine.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, []string{msgConfirmRegister}, replies)
	puts := h.store.putCount()

	replies, err = h.engine.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Empty(t, replies)
	assert.Equal(t, puts, h.store.putCount())
	assert.Equal(t, StateConfirmRegister, h.state(t))
}

func TestMissingIdentifiersAreIgnored(t *testing.T) {
	h := newHarness(t)

	replies, err := h.engine.Handle(context.Background(), InboundMessage{UserID: h.user, Text: "hola"})
	require.NoError(t, err)
	assert.Empty(t, replies)

	replies, err = h.engine.Handle(context.Background(), InboundMessage{MessageID: "wamid.x", Text: "hola"})
	require.NoError(t, err)
	assert.Empty(t, replies)

	assert.Nil(t, h.session(t))
	assert.Zero(t, h.store.putCount())
}

func TestCancelClearsSession(t *testing.T) {
	h := newHarness(t)
	h.sendAll(t, "hola", "1", "si", "ahora", "1500")

	assert.Equal(t, []string{msgCancelled}, h.send(t, "Cancelar"))
	assert.Nil(t, h.session(t))

	assert.Equal(t, []string{msgMenu}, h.send(t, "coffee"))
	assert.Empty(t, h.expenses(t))
}

func TestGreetingRestartsFlow(t *testing.T) {
	h := newHarness(t)
	h.sendAll(t, "hola", "1", "si", "ahora", "1500")

	assert.Equal(t, []string{msgMenu}, h.send(t, "menú"))
	s := h.session(t)
	require.Equal(t, StateMenu, s.State)
	assert.Nil(t, s.Data.Amount)
}

func TestOnePutPerTransition(t *testing.T) {
	h := newHarness(t)

	h.send(t, "hola")
	assert.Equal(t, 1, h.store.putCount())

	h.send(t, "no entiendo")
	assert.Equal(t, 1, h.store.putCount(), "re-prompt must not write")

	h.send(t, "1")
	assert.Equal(t, 2, h.store.putCount())

	h.sendAll(t, "si", "ahora", "1500", "kiosco", "efectivo")
	assert.Equal(t, 7, h.store.putCount())
}

func seedQueryExpenses(t *testing.T, h *harness) {
	t.Helper()
	records := []struct {
		at     time.Time
		amount int64
		method models.PaymentMethod
	}{
		{time.Date(2025, 8, 1, 10, 0, 0, 0, testZone), 100, models.PaymentCash},
		{time.Date(2025, 8, 15, 10, 0, 0, 0, testZone), 200, models.PaymentCredit},
		{time.Date(2025, 9, 1, 0, 30, 0, 0, testZone), 300, models.PaymentCash},
	}
	for _, r := range records {
		require.NoError(t, h.store.CreateExpense(context.Background(), &models.Expense{
			OccurredAt:   r.at,
			Amount:       decimal.NewFromInt(r.amount),
			Currency:     "ARS",
			Method:       r.method,
			OriginUserID: h.user,
		}))
	}
}

func TestGuidedQuery(t *testing.T) {
	h := newHarness(t)
	seedQueryExpenses(t, h)

	steps := []struct {
		text  string
		state State
	}{
		{"hola", StateMenu},
		{"2", StateQueryFrom},
		{"2025-08-01", StateQueryTo},
		{"2025-08-31", StateQueryMethod},
		{"1", StateQueryBankMenu},
	}
	for _, step := range steps {
		h.send(t, step.text)
		require.Equal(t, step.state, h.state(t), step.text)
	}

	replies := h.send(t, "0")
	assert.Equal(t, []string{"Voy a buscar desde 2025-08-01 hasta 2025-08-31\nMedio: efectivo\nBanco: todos\n\n¿Confirmo? (sí/no)"}, replies)
	assert.Equal(t, StateQueryConfirm, h.state(t))

	replies = h.send(t, "si")
	require.Len(t, replies, 1)
	assert.Equal(t, "Movimientos: 1 | Total: 100.00 ARS\n- 2025-08-01 10:00 • 100.00 ARS • efectivo •   • ", replies[0])
	assert.Nil(t, h.session(t))
}

func TestGuidedQueryValidation(t *testing.T) {
	h := newHarness(t)
	h.sendAll(t, "hola", "2")

	assert.Equal(t, []string{msgQueryFromBad}, h.send(t, "ayer"))
	h.send(t, "2025-08-01")
	assert.Equal(t, []string{msgQueryToBad}, h.send(t, "2025-08-32"))
	h.send(t, "2025-08-31")
	assert.Equal(t, []string{msgQueryMethodBad}, h.send(t, "5"))
	assert.Equal(t, []string{msgQueryMethodBad}, h.send(t, "efectivo"))
	h.send(t, "0")
	require.Equal(t, StateQueryBankMenu, h.state(t))

	h.send(t, "0")
	assert.Equal(t, []string{msgQueryCancelled}, h.send(t, "no"))
	assert.Nil(t, h.session(t))
}

func TestGuidedQueryNoResults(t *testing.T) {
	h := newHarness(t)
	replies := h.sendAll(t, "hola", "2", "2024-01-01", "2024-01-31", "0", "0", "si")
	assert.Equal(t, []string{msgNoResults}, replies)
}

func TestFreeQueryLeavesSessionUntouched(t *testing.T) {
	h := newHarness(t)
	seedQueryExpenses(t, h)
	h.sendAll(t, "hola", "1", "si", "ahora")
	before := h.session(t)
	puts := h.store.putCount()

	replies := h.send(t, "pasame efectivo desde 2025-08-01 hasta 2025-08-31")
	require.Len(t, replies, 1)
	assert.True(t, strings.HasPrefix(replies[0], "Movimientos: 1 | Total: 100.00 ARS"), replies[0])

	after := h.session(t)
	assert.Equal(t, before.State, after.State)
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
	assert.Equal(t, puts, h.store.putCount())

	replies = h.send(t, "pasame")
	require.Len(t, replies, 1)
	assert.True(t, strings.HasPrefix(replies[0], "Movimientos: 3 | Total: 600.00 ARS"), replies[0])
}

func TestWriterFailureClearsSession(t *testing.T) {
	h := newHarnessWithRecorder(t, failingRecorder{})
	replies := h.sendAll(t, "hola", "1", "si", "ahora", "1500", "kiosco", "efectivo", "0", "0", "ninguno", "0", "ninguno")

	assert.Equal(t, []string{msgRecordFailed}, replies)
	assert.Nil(t, h.session(t))
}

func TestCollaboratorFailureAbandonsFlow(t *testing.T) {
	h := newHarness(t)
	h.sendAll(t, "hola", "1", "si", "ahora", "1500", "kiosco")

	h.store.failCatalog = true
	assert.Equal(t, []string{msgFailure}, h.send(t, "efectivo"))
	assert.Nil(t, h.session(t))
}

func TestFreeQueryFailureKeepsSession(t *testing.T) {
	h := newHarness(t)
	h.sendAll(t, "hola", "2")

	h.store.failQuery = true
	assert.Equal(t, []string{msgQueryFailed}, h.send(t, "pasame"))
	assert.Equal(t, StateQueryFrom, h.state(t))
}

func TestDeduplicationFailureIsReturned(t *testing.T) {
	h := newHarness(t)
	h.store.failDedup = true

	_, err := h.engine.Handle(context.Background(), InboundMessage{MessageID: "wamid.1", UserID: h.user, Text: "hola"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
}

func TestConcurrentUsersAreIndependent(t *testing.T) {
	h := newHarness(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("54911000000%02d", i)
			for j, text := range []string{"hola", "1", "si"} {
				_, err := h.engine.Handle(context.Background(), InboundMessage{
					MessageID: fmt.Sprintf("%s-%d", user, j),
					UserID:    user,
					Text:      text,
				})
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 20; i++ {
		s, err := h.engine.sessions.Get(context.Background(), fmt.Sprintf("54911000000%02d", i))
		require.NoError(t, err)
		assert.Equal(t, StatePickMoment, s.State)
	}
}

func TestSameUserTurnsAreSerialized(t *testing.T) {
	h := newHarness(t)
	h.send(t, "hola")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.engine.Handle(context.Background(), InboundMessage{
				MessageID: fmt.Sprintf("burst-%d", i),
				UserID:    h.user,
				Text:      "no entiendo",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, StateMenu, h.state(t))
	assert.Empty(t, h.engine.sessions.locks)
}
