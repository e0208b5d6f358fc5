package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/gastos-backend/internal/models"
	"github.com/Ananth-NQI/gastos-backend/internal/storage"
)

type recordingPublisher struct {
	published []*models.Expense
	err       error
}

func (p *recordingPublisher) PublishExpenseRecorded(_ context.Context, e *models.Expense) error {
	p.published = append(p.published, e)
	return p.err
}

func TestExpenseServiceRecord(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	pub := &recordingPublisher{}
	svc := NewExpenseService(store, pub)

	key, err := svc.Record(ctx, &models.Expense{
		OccurredAt:   time.Now(),
		Amount:       decimal.NewFromInt(1500),
		Method:       models.PaymentCash,
		OriginUserID: "u1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	require.Len(t, pub.published, 1)
	assert.Equal(t, key, pub.published[0].Key)

	rows, err := store.QueryExpenses(ctx, models.ExpenseFilter{OwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.DefaultCurrency, rows[0].Currency)
}

func TestExpenseServicePublishFailureKeepsWrite(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := NewExpenseService(store, &recordingPublisher{err: errors.New("broker down")})

	key, err := svc.Record(ctx, &models.Expense{Amount: decimal.NewFromInt(1), Method: models.PaymentDebit, OriginUserID: "u1"})
	require.NoError(t, err)
	assert.NotEmpty(t, key)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		expense *models.Expense
		wantErr bool
	}{
		{"valid", &models.Expense{Amount: decimal.NewFromInt(1), Method: models.PaymentTransfer, OriginUserID: "u1"}, false},
		{"nil", nil, true},
		{"zero amount", &models.Expense{Amount: decimal.Zero, Method: models.PaymentCash, OriginUserID: "u1"}, true},
		{"negative amount", &models.Expense{Amount: decimal.NewFromInt(-5), Method: models.PaymentCash, OriginUserID: "u1"}, true},
		{"unknown method", &models.Expense{Amount: decimal.NewFromInt(1), Method: "cheque", OriginUserID: "u1"}, true},
		{"missing user", &models.Expense{Amount: decimal.NewFromInt(1), Method: models.PaymentCash}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.expense)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidExpense)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
