package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
)

func TestCreditCardUseCase_CreateCreditCard(t *testing.T) {
	valid := usecase.CreateCreditCardInput{
		Name:             "Mastercard",
		LastFourDigits:   "1234",
		Limit:            300000,
		ClosingDay:       5,
		DueDay:           15,
		PaymentAccountID: checkingID,
	}

	tests := []struct {
		name    string
		mutate  func(in *usecase.CreateCreditCardInput)
		wantErr error
	}{
		{name: "valid", mutate: func(in *usecase.CreateCreditCardInput) {}},
		{name: "without payment account", mutate: func(in *usecase.CreateCreditCardInput) { in.PaymentAccountID = "" }},
		{name: "bad digits", mutate: func(in *usecase.CreateCreditCardInput) { in.LastFourDigits = "12a4" }, wantErr: domain.ErrInvalidCardDigits},
		{name: "negative limit", mutate: func(in *usecase.CreateCreditCardInput) { in.Limit = -1 }, wantErr: domain.ErrInvalidLimit},
		{name: "closing day", mutate: func(in *usecase.CreateCreditCardInput) { in.ClosingDay = 32 }, wantErr: domain.ErrInvalidDay},
		{name: "due day", mutate: func(in *usecase.CreateCreditCardInput) { in.DueDay = 0 }, wantErr: domain.ErrInvalidDay},
		{name: "unknown payment account", mutate: func(in *usecase.CreateCreditCardInput) { in.PaymentAccountID = "acc-missing" }, wantErr: domain.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t)
			input := valid
			tt.mutate(&input)

			card, err := l.cards.CreateCreditCard(context.Background(), family, input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			stored := l.store.Card(card.ID)
			require.NotNil(t, stored)
			assert.Equal(t, int64(0), stored.Used)
			assert.Equal(t, input.Limit, stored.Limit)
			assert.Equal(t, input.PaymentAccountID, domain.Deref(stored.PaymentAccountID))
			assert.Contains(t, l.store.AuditActions(), string(domain.AuditActionCreditCardCreate))
		})
	}
}

func TestCreditCardUseCase_GetAndList(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()

	card, err := l.cards.GetCreditCard(ctx, family, cardID)
	require.NoError(t, err)
	assert.Equal(t, 10, card.ClosingDay)

	_, err = l.cards.GetCreditCard(ctx, family, "card-missing")
	assert.ErrorIs(t, err, domain.ErrCreditCardNotFound)

	cards, err := l.cards.ListCreditCards(ctx, family, 0, 0)
	require.NoError(t, err)
	assert.Len(t, cards, 1)
}
