package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentMethod is how an expense was paid
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "efectivo"
	PaymentDebit    PaymentMethod = "debito"
	PaymentCredit   PaymentMethod = "credito"
	PaymentTransfer PaymentMethod = "transferencia"
)

// PaymentMethods lists the accepted methods in menu order (1..4)
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentDebit, PaymentCredit, PaymentTransfer}

// IsValid reports whether m is one of the four accepted methods
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentDebit, PaymentCredit, PaymentTransfer:
		return true
	}
	return false
}

func (m PaymentMethod) String() string {
	return string(m)
}

// DefaultCurrency is used when the user omits a currency code
const DefaultCurrency = "ARS"

// Expense is a finalized expense record
type Expense struct {
	ID           uint            `json:"-" gorm:"primaryKey"`
	Key          string          `json:"key" gorm:"uniqueIndex;not null"`
	OccurredAt   time.Time       `json:"timestamp_utc" gorm:"column:timestamp_utc;not null;index"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:numeric(14,2);not null"`
	Currency     string          `json:"currency" gorm:"size:3;not null"`
	Description  *string         `json:"description"`
	Category     *string         `json:"category"`
	Merchant     *string         `json:"merchant"`
	Method       PaymentMethod   `json:"payment_method" gorm:"column:payment_method;not null"`
	Bank         *string         `json:"bank"`
	CardBrand    *string         `json:"card_brand"`
	AccountLabel *string         `json:"account_label"`
	RawText      string          `json:"raw_text"`
	OriginUserID string          `json:"origin_user_id" gorm:"index;not null"`
	CreatedAt    time.Time       `json:"created_at"`
}

// BeforeCreate assigns the public key and normalizes the currency code
func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	e.Prepare()
	return nil
}

// Prepare fills defaults shared by every store implementation
func (e *Expense) Prepare() {
	if e.Key == "" {
		e.Key = uuid.NewString()
	}
	e.Currency = strings.ToUpper(strings.TrimSpace(e.Currency))
	if e.Currency == "" {
		e.Currency = DefaultCurrency
	}
	e.OccurredAt = e.OccurredAt.UTC()
}

// ExpenseFilter selects expenses for a summary
type ExpenseFilter struct {
	OwnerID       string
	From          *time.Time // inclusive, UTC
	Until         *time.Time // exclusive, UTC
	Method        PaymentMethod
	BankContains  string
	BrandContains string
	Limit         int
}
