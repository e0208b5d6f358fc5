package services

import (
	"fmt"
	"strconv"

	"github.com/Ananth-NQI/gastos-backend/internal/models"
	"github.com/Ananth-NQI/gastos-backend/internal/normalize"
)

// catalogFlow is the menu / new value / confirm-create trio that resolves
// one catalog backed field
type catalogFlow struct {
	scope   models.CatalogScope
	menu    State
	newVal  State
	confirm State

	title      string
	noneLabel  string
	askName    string
	createText string

	assign func(d *SessionData, value *string)
	next   func(t *turn) error

	engine *DialogEngine
}

func (e *DialogEngine) catalogFlows() []*catalogFlow {
	return []*catalogFlow{e.bankFlow(), e.brandFlow(), e.categoryFlow(), e.queryBankFlow()}
}

func (e *DialogEngine) bankFlow() *catalogFlow {
	return &catalogFlow{
		scope:      models.ScopeBank,
		menu:       StateBankMenu,
		newVal:     StateBankNewValue,
		confirm:    StateBankConfirmCreate,
		title:      "Banco (número):",
		noneLabel:  "Ninguno",
		askName:    "Escribí el nombre del banco:",
		createText: "¿Crear banco “%s”? (sí/no)",
		assign:     func(d *SessionData, v *string) { d.Bank = v },
		next:       func(t *turn) error { return e.brandFlow().enter(t) },
		engine:     e,
	}
}

func (e *DialogEngine) brandFlow() *catalogFlow {
	return &catalogFlow{
		scope:      models.ScopeBrand,
		menu:       StateBrandMenu,
		newVal:     StateBrandNewValue,
		confirm:    StateBrandConfirmCreate,
		title:      "Marca (número):",
		noneLabel:  "Ninguna",
		askName:    "Escribí la marca (Visa, Mastercard, etc.):",
		createText: "¿Crear marca “%s”? (sí/no)",
		assign:     func(d *SessionData, v *string) { d.Brand = v },
		next: func(t *turn) error {
			t.say(msgAskAccount)
			return e.transition(t, StateAskAccount)
		},
		engine: e,
	}
}

func (e *DialogEngine) categoryFlow() *catalogFlow {
	return &catalogFlow{
		scope:      models.ScopeCategory,
		menu:       StateCategoryMenu,
		newVal:     StateCategoryNewValue,
		confirm:    StateCategoryConfirmCreate,
		title:      "Categoría (número):",
		noneLabel:  "Ninguna",
		askName:    "Escribí la categoría (ej: supermercado):",
		createText: "¿Crear categoría “%s”? (sí/no)",
		assign:     func(d *SessionData, v *string) { d.Category = v },
		next: func(t *turn) error {
			t.say(msgAskMerchant)
			return e.transition(t, StateAskMerchant)
		},
		engine: e,
	}
}

func (e *DialogEngine) queryBankFlow() *catalogFlow {
	return &catalogFlow{
		scope:      models.ScopeBank,
		menu:       StateQueryBankMenu,
		newVal:     StateQueryBankNewValue,
		confirm:    StateQueryBankConfirmCreate,
		title:      "Banco (número):",
		noneLabel:  "Todos",
		askName:    "Escribí el nombre del banco:",
		createText: "¿Crear banco “%s”? (sí/no)",
		assign:     func(d *SessionData, v *string) { d.QueryBank = v },
		next:       e.askQueryConfirm,
		engine:     e,
	}
}

func (f *catalogFlow) register(h map[State]stateHandler) {
	h[f.menu] = f.onMenu
	h[f.newVal] = f.onNewValue
	h[f.confirm] = f.onConfirm
}

// enter lists the newest entries and shows the numbered menu
func (f *catalogFlow) enter(t *turn) error {
	options, err := f.engine.catalog.List(t.ctx, f.scope, t.userID)
	if err != nil {
		return fmt.Errorf("list %s catalog: %w", f.scope, err)
	}
	t.data.Options = options
	t.data.Pending = ""
	t.say(catalogMenu(f.title, f.noneLabel, options))
	return f.engine.transition(t, f.menu)
}

// resolve stores the chosen value and moves on to the next field
func (f *catalogFlow) resolve(t *turn, value *string) error {
	f.assign(&t.data, value)
	t.data.Options = nil
	t.data.Pending = ""
	return f.next(t)
}

// onMenu gives numeric input priority over catalog name matching
func (f *catalogFlow) onMenu(t *turn) error {
	if isDigits(t.text) {
		n, err := strconv.Atoi(t.text)
		switch {
		case err != nil:
		case n == 0:
			return f.resolve(t, nil)
		case n == 9:
			t.say(f.askName)
			return f.engine.transition(t, f.newVal)
		case n >= 1 && n <= len(t.data.Options):
			value := t.data.Options[n-1]
			return f.resolve(t, &value)
		}
		t.say(msgBadIndex)
		return nil
	}

	if t.text == "" {
		t.say(catalogMenu(f.title, f.noneLabel, t.data.Options))
		return nil
	}
	if normalize.IsNone(t.text) {
		return f.resolve(t, nil)
	}

	stored, found, err := f.engine.catalog.Lookup(t.ctx, f.scope, t.userID, t.text)
	if err != nil {
		return fmt.Errorf("lookup %s catalog: %w", f.scope, err)
	}
	if found {
		return f.resolve(t, &stored)
	}

	t.data.Pending = t.text
	t.say(fmt.Sprintf(msgUnknownEntry, t.text))
	return f.engine.transition(t, f.confirm)
}

func (f *catalogFlow) onNewValue(t *turn) error {
	if t.text == "" {
		t.say(f.askName)
		return nil
	}
	t.data.Pending = t.text
	t.say(fmt.Sprintf(f.createText, t.text))
	return f.engine.transition(t, f.confirm)
}

func (f *catalogFlow) onConfirm(t *turn) error {
	switch normalize.YesNo(t.text) {
	case normalize.AnswerYes:
		pending := t.data.Pending
		if pending == "" {
			return f.enter(t)
		}
		if err := f.engine.catalog.Create(t.ctx, f.scope, t.userID, pending); err != nil {
			return fmt.Errorf("create %s entry: %w", f.scope, err)
		}
		return f.resolve(t, &pending)
	case normalize.AnswerNo:
		return f.enter(t)
	}
	t.say(msgYesNoShort)
	return nil
}
