package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ananth-NQI/gastos-backend/internal/models"
	"github.com/Ananth-NQI/gastos-backend/internal/normalize"
	"github.com/Ananth-NQI/gastos-backend/internal/storage"
)

// ShownRows is how many rows a summary lists
const ShownRows = 20

// QueryCriteria are the resolved filters of a summary request. Dates are
// local calendar days; To is inclusive.
type QueryCriteria struct {
	OwnerID string
	From    *normalize.Date
	To      *normalize.Date
	Method  models.PaymentMethod
	Bank    string
	Brand   string
}

// QueryResult is the outcome of a summary request
type QueryResult struct {
	Rows     []*models.Expense
	Count    int
	Total    decimal.Decimal
	Currency string
}

// QueryService runs historical summaries
type QueryService struct {
	store storage.Store
	loc   *time.Location
}

// NewQueryService creates a query executor that reads calendar days in loc
func NewQueryService(store storage.Store, loc *time.Location) *QueryService {
	if loc == nil {
		loc = time.UTC
	}
	return &QueryService{store: store, loc: loc}
}

// Filter converts criteria into UTC bounds: from local midnight of From up
// to, but excluding, local midnight of the day after To
func (q *QueryService) Filter(c QueryCriteria) models.ExpenseFilter {
	f := models.ExpenseFilter{
		OwnerID:       c.OwnerID,
		Method:        c.Method,
		BankContains:  c.Bank,
		BrandContains: c.Brand,
		Limit:         storage.MaxQueryRows,
	}
	if c.From != nil {
		from := c.From.In(q.loc).UTC()
		f.From = &from
	}
	if c.To != nil {
		until := c.To.In(q.loc).AddDate(0, 0, 1).UTC()
		f.Until = &until
	}
	return f
}

// Run executes the summary
func (q *QueryService) Run(ctx context.Context, c QueryCriteria) (*QueryResult, error) {
	rows, err := q.store.QueryExpenses(ctx, q.Filter(c))
	if err != nil {
		return nil, err
	}

	result := &QueryResult{Rows: rows, Count: len(rows), Total: decimal.Zero}
	for _, r := range rows {
		result.Total = result.Total.Add(r.Amount)
	}
	if len(rows) > 0 {
		result.Currency = rows[0].Currency
	}
	return result, nil
}

// Format renders the result for chat, newest first
func (q *QueryService) Format(r *QueryResult) string {
	if r == nil || r.Count == 0 {
		return msgNoResults
	}

	lines := []string{fmt.Sprintf("Movimientos: %d | Total: %s %s", r.Count, r.Total.StringFixed(2), r.Currency)}
	for i, e := range r.Rows {
		if i == ShownRows {
			break
		}
		lines = append(lines, fmt.Sprintf("- %s • %s %s • %s • %s %s • %s",
			e.OccurredAt.In(q.loc).Format("2006-01-02 15:04"),
			e.Amount.StringFixed(2), e.Currency,
			e.Method,
			deref(e.Bank), deref(e.CardBrand),
			deref(e.Description)))
	}
	if r.Count > ShownRows {
		lines = append(lines, fmt.Sprintf("… (mostrando %d de %d)", ShownRows, r.Count))
	}
	return strings.Join(lines, "\n")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
