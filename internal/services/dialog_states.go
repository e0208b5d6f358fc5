package services

import (
	"fmt"
	"strconv"

	"github.com/Ananth-NQI/gastos-backend/internal/models"
	"github.com/Ananth-NQI/gastos-backend/internal/normalize"
)

// State names a node of the conversation state machine
type State string

const (
	StateMenu State = "menu"

	// Registration flow
	StateConfirmRegister       State = "confirm_register"
	StatePickMoment            State = "pick_moment"
	StateAskDate               State = "ask_date"
	StateAskTime               State = "ask_time"
	StateAskAmount             State = "ask_amount"
	StateAskDescription        State = "ask_description"
	StateAskMethod             State = "ask_method"
	StateBankMenu              State = "bank_menu"
	StateBankNewValue          State = "bank_new_value"
	StateBankConfirmCreate     State = "bank_confirm_create"
	StateBrandMenu             State = "brand_menu"
	StateBrandNewValue         State = "brand_new_value"
	StateBrandConfirmCreate    State = "brand_confirm_create"
	StateAskAccount            State = "ask_account"
	StateCategoryMenu          State = "category_menu"
	StateCategoryNewValue      State = "category_new_value"
	StateCategoryConfirmCreate State = "category_confirm_create"
	StateAskMerchant           State = "ask_merchant"

	// Guided query flow
	StateQueryFrom              State = "query_from"
	StateQueryTo                State = "query_to"
	StateQueryMethod            State = "query_method"
	StateQueryBankMenu          State = "query_bank_menu"
	StateQueryBankNewValue      State = "query_bank_new_value"
	StateQueryBankConfirmCreate State = "query_bank_confirm_create"
	StateQueryConfirm           State = "query_confirm"
)

// AllStates lists every state in flow order
var AllStates = []State{
	StateMenu,
	StateConfirmRegister, StatePickMoment, StateAskDate, StateAskTime,
	StateAskAmount, StateAskDescription, StateAskMethod,
	StateBankMenu, StateBankNewValue, StateBankConfirmCreate,
	StateBrandMenu, StateBrandNewValue, StateBrandConfirmCreate,
	StateAskAccount,
	StateCategoryMenu, StateCategoryNewValue, StateCategoryConfirmCreate,
	StateAskMerchant,
	StateQueryFrom, StateQueryTo, StateQueryMethod,
	StateQueryBankMenu, StateQueryBankNewValue, StateQueryBankConfirmCreate,
	StateQueryConfirm,
}

type stateHandler func(t *turn) error

// stateHandlers is the transition table
func (e *DialogEngine) stateHandlers() map[State]stateHandler {
	h := map[State]stateHandler{
		StateMenu:            e.onMenu,
		StateConfirmRegister: e.onConfirmRegister,
		StatePickMoment:      e.onPickMoment,
		StateAskDate:         e.onAskDate,
		StateAskTime:         e.onAskTime,
		StateAskAmount:       e.onAskAmount,
		StateAskDescription:  e.onAskDescription,
		StateAskMethod:       e.onAskMethod,
		StateAskAccount:      e.onAskAccount,
		StateAskMerchant:     e.onAskMerchant,
		StateQueryFrom:       e.onQueryFrom,
		StateQueryTo:         e.onQueryTo,
		StateQueryMethod:     e.onQueryMethod,
		StateQueryConfirm:    e.onQueryConfirm,
	}
	for _, f := range e.catalogFlows() {
		f.register(h)
	}
	return h
}

func (e *DialogEngine) onMenu(t *turn) error {
	switch t.lower {
	case "1", "registrar", "registrar gasto", "gasto":
		t.say(msgConfirmRegister)
		return e.transition(t, StateConfirmRegister)
	case "2", "consultar", "consultar historial", "historial":
		t.say(msgQueryFrom)
		return e.transition(t, StateQueryFrom)
	}
	t.say(msgMenuRetry)
	return nil
}

// Registration flow

func (e *DialogEngine) onConfirmRegister(t *turn) error {
	switch normalize.YesNo(t.text) {
	case normalize.AnswerYes:
		t.say(msgPickMoment)
		return e.transition(t, StatePickMoment)
	case normalize.AnswerNo:
		t.say(msgRegisterDeclined)
		return e.finish(t)
	}
	t.say(msgYesNo)
	return nil
}

func (e *DialogEngine) onPickMoment(t *turn) error {
	switch normalize.NowOrLater(t.text) {
	case normalize.MomentNow:
		now := e.clock.Now().UTC()
		t.data.Timestamp = &now
		t.say(msgAskAmount)
		return e.transition(t, StateAskAmount)
	case normalize.MomentLater:
		t.say(msgAskDate)
		return e.transition(t, StateAskDate)
	}
	t.say(msgPickMomentRetry)
	return nil
}

func (e *DialogEngine) onAskDate(t *turn) error {
	d, ok := normalize.ParseDate(t.text)
	if !ok {
		t.say(msgBadDate)
		return nil
	}
	t.data.PartialDate = &d
	t.say(msgAskTime)
	return e.transition(t, StateAskTime)
}

func (e *DialogEngine) onAskTime(t *turn) error {
	tod, ok := normalize.ParseTime(t.text)
	if !ok {
		t.say(msgBadTime)
		return nil
	}
	if t.data.PartialDate == nil {
		// The date was lost; ask for it again.
		t.say(msgAskDate)
		return e.transition(t, StateAskDate)
	}
	at := tod.On(*t.data.PartialDate, e.loc).UTC()
	t.data.Timestamp = &at
	t.data.PartialDate = nil
	t.say(msgAskAmount)
	return e.transition(t, StateAskAmount)
}

func (e *DialogEngine) onAskAmount(t *turn) error {
	amount, currency, ok := normalize.AmountCurrency(t.text, e.homeCurrency)
	if !ok {
		t.say(msgBadAmount)
		return nil
	}
	t.data.Amount = &amount
	t.data.Currency = currency
	t.say(msgAskDescription)
	return e.transition(t, StateAskDescription)
}

func (e *DialogEngine) onAskDescription(t *turn) error {
	if t.text != "" {
		description := t.text
		t.data.Description = &description
	}
	t.say(msgAskMethod)
	return e.transition(t, StateAskMethod)
}

func (e *DialogEngine) onAskMethod(t *turn) error {
	method, ok := normalize.ParsePaymentMethod(t.text)
	if !ok {
		t.say(msgBadMethod)
		return nil
	}
	t.data.Method = method
	return e.bankFlow().enter(t)
}

func (e *DialogEngine) onAskAccount(t *turn) error {
	t.data.Account = optionalText(t.text)
	return e.categoryFlow().enter(t)
}

func (e *DialogEngine) onAskMerchant(t *turn) error {
	t.data.Merchant = optionalText(t.text)
	return e.commit(t)
}

// Guided query flow

func (e *DialogEngine) onQueryFrom(t *turn) error {
	d, ok := normalize.ParseDate(t.text)
	if !ok {
		t.say(msgQueryFromBad)
		return nil
	}
	t.data.QueryFrom = &d
	t.say(msgQueryTo)
	return e.transition(t, StateQueryTo)
}

func (e *DialogEngine) onQueryTo(t *turn) error {
	d, ok := normalize.ParseDate(t.text)
	if !ok {
		t.say(msgQueryToBad)
		return nil
	}
	t.data.QueryTo = &d
	t.say(msgQueryMethod)
	return e.transition(t, StateQueryMethod)
}

func (e *DialogEngine) onQueryMethod(t *turn) error {
	n, err := strconv.Atoi(t.text)
	if err != nil || !isDigits(t.text) || n > len(models.PaymentMethods) {
		t.say(msgQueryMethodBad)
		return nil
	}
	t.data.QueryMethod = ""
	if n > 0 {
		t.data.QueryMethod = models.PaymentMethods[n-1]
	}
	return e.queryBankFlow().enter(t)
}

func (e *DialogEngine) askQueryConfirm(t *turn) error {
	method := msgAll
	if t.data.QueryMethod != "" {
		method = t.data.QueryMethod.String()
	}
	bank := msgAll
	if t.data.QueryBank != nil {
		bank = *t.data.QueryBank
	}
	t.say(fmt.Sprintf(msgQuerySummary, dateOrDash(t.data.QueryFrom), dateOrDash(t.data.QueryTo), method, bank))
	return e.transition(t, StateQueryConfirm)
}

func (e *DialogEngine) onQueryConfirm(t *turn) error {
	switch normalize.YesNo(t.text) {
	case normalize.AnswerYes:
		criteria := QueryCriteria{
			OwnerID: t.userID,
			From:    t.data.QueryFrom,
			To:      t.data.QueryTo,
			Method:  t.data.QueryMethod,
			Bank:    deref(t.data.QueryBank),
		}
		result, err := e.queries.Run(t.ctx, criteria)
		if err != nil {
			return fmt.Errorf("run guided query: %w", err)
		}
		t.say(e.queries.Format(result))
		return e.finish(t)
	case normalize.AnswerNo:
		t.say(msgQueryCancelled)
		return e.finish(t)
	}
	t.say(msgYesNo)
	return nil
}

func dateOrDash(d *normalize.Date) string {
	if d == nil {
		return "-"
	}
	return d.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
