package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// CreateAccountRequest represents a request to create an account.
type CreateAccountRequest struct {
	Name           string          `json:"name"            validate:"required,max=100"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput() (usecase.CreateAccountInput, error) {
	balance, err := domain.ToMinorUnits(r.OpeningBalance)
	if err != nil {
		return usecase.CreateAccountInput{}, err
	}
	return usecase.CreateAccountInput{Name: r.Name, OpeningBalance: balance}, nil
}

// CreateCreditCardRequest represents a request to create a credit card.
type CreateCreditCardRequest struct {
	Name             string          `json:"name"               validate:"required,max=100"`
	LastFourDigits   string          `json:"last_four_digits"   validate:"required,len=4,numeric"`
	Limit            decimal.Decimal `json:"limit"`
	ClosingDay       int             `json:"closing_day"        validate:"min=1,max=31"`
	DueDay           int             `json:"due_day"            validate:"min=1,max=31"`
	PaymentAccountID string          `json:"payment_account_id"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateCreditCardRequest) ToUseCaseInput() (usecase.CreateCreditCardInput, error) {
	limit, err := domain.ToMinorUnits(r.Limit)
	if err != nil {
		return usecase.CreateCreditCardInput{}, err
	}
	return usecase.CreateCreditCardInput{
		Name:             r.Name,
		LastFourDigits:   r.LastFourDigits,
		Limit:            limit,
		ClosingDay:       r.ClosingDay,
		DueDay:           r.DueDay,
		PaymentAccountID: r.PaymentAccountID,
	}, nil
}

// TransactionRequest creates or replaces a transaction. Amount may carry
// either sign; the type decides the stored sign.
type TransactionRequest struct {
	Type                 string          `json:"type"                             validate:"required,oneof=EXPENSE INCOME TRANSFER"`
	Source               string          `json:"source"                           validate:"required,oneof=ACCOUNT CREDIT_CARD"`
	Status               string          `json:"status,omitempty"                 validate:"omitempty,oneof=PENDING CLEARED PAID"`
	Amount               decimal.Decimal `json:"amount"`
	InstallmentNumber    int             `json:"installment_number,omitempty"     validate:"omitempty,min=1,max=360"`
	AccountID            string          `json:"account_id,omitempty"`
	CreditCardID         string          `json:"credit_card_id,omitempty"`
	DestinationAccountID string          `json:"destination_account_id,omitempty"`
	CategoryID           string          `json:"category_id,omitempty"`
	Description          string          `json:"description,omitempty"            validate:"max=500"`
	Date                 string          `json:"date"                             validate:"required,datetime=2006-01-02"`
}

// ToUseCaseInput converts to use case input.
func (r *TransactionRequest) ToUseCaseInput() (usecase.TransactionInput, error) {
	amount, err := domain.ToMinorUnits(r.Amount)
	if err != nil {
		return usecase.TransactionInput{}, err
	}

	date, err := time.Parse(DateLayout, r.Date)
	if err != nil {
		return usecase.TransactionInput{}, err
	}

	return usecase.TransactionInput{
		Type:                 domain.TransactionType(r.Type),
		Source:               domain.TransactionSource(r.Source),
		Status:               domain.TransactionStatus(r.Status),
		Amount:               amount,
		InstallmentNumber:    r.InstallmentNumber,
		AccountID:            r.AccountID,
		CreditCardID:         r.CreditCardID,
		DestinationAccountID: r.DestinationAccountID,
		CategoryID:           r.CategoryID,
		Description:          r.Description,
		Date:                 date,
	}, nil
}

// UpdateInstallmentRequest edits one installment and, depending on Mode, its siblings.
type UpdateInstallmentRequest struct {
	Mode       string           `json:"mode"                  validate:"required,oneof=update_only_this update_future update_all"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	CategoryID *string          `json:"category_id,omitempty"`
	Status     *string          `json:"status,omitempty"      validate:"omitempty,oneof=PENDING POSTED PAID OVERDUE REFUNDED"`
}

// ToUseCaseInput converts to use case input.
func (r *UpdateInstallmentRequest) ToUseCaseInput(id string) (usecase.UpdateInstallmentInput, error) {
	input := usecase.UpdateInstallmentInput{
		InstallmentID: id,
		Mode:          domain.UpdateMode(r.Mode),
		CategoryID:    r.CategoryID,
	}

	if r.Amount != nil {
		amount, err := domain.ToMinorUnits(*r.Amount)
		if err != nil {
			return usecase.UpdateInstallmentInput{}, err
		}
		input.Amount = &amount
	}

	if r.Status != nil {
		status := domain.InstallmentStatus(*r.Status)
		input.Status = &status
	}

	return input, nil
}

// DeleteInstallmentsRequest lists installments to delete together.
type DeleteInstallmentsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

// SyncStatusRequest moves installments to a new status. With TransactionID
// every installment of the transaction is moved; otherwise InstallmentIDs.
type SyncStatusRequest struct {
	TransactionID  string   `json:"transaction_id,omitempty"  validate:"required_without=InstallmentIDs"`
	InstallmentIDs []string `json:"installment_ids,omitempty" validate:"required_without=TransactionID,dive,required"`
	Status         string   `json:"status"                    validate:"required,oneof=PENDING POSTED PAID OVERDUE REFUNDED"`
	IsCancellation bool     `json:"is_cancellation"`
}

// ConfirmPaymentRequest pays a closed invoice. A missing amount pays it in full;
// a smaller amount rolls the rest into the next invoice.
type ConfirmPaymentRequest struct {
	AccountID string           `json:"account_id"        validate:"required"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	PaidAt    *time.Time       `json:"paid_at,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *ConfirmPaymentRequest) ToUseCaseInput(invoiceID string) (usecase.ConfirmPaymentInput, error) {
	amount, err := optionalMinorUnits(r.Amount)
	if err != nil {
		return usecase.ConfirmPaymentInput{}, err
	}
	return usecase.ConfirmPaymentInput{
		InvoiceID: invoiceID,
		AccountID: r.AccountID,
		Amount:    amount,
		PaidAt:    r.PaidAt,
	}, nil
}

// PayInvoiceRequest pays part or all of an invoice without rolling over.
type PayInvoiceRequest struct {
	InvoiceID string          `json:"invoice_id"        validate:"required"`
	AccountID string          `json:"account_id"        validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    *time.Time      `json:"paid_at,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *PayInvoiceRequest) ToUseCaseInput() (usecase.PayInvoiceInput, error) {
	amount, err := domain.ToMinorUnits(r.Amount)
	if err != nil {
		return usecase.PayInvoiceInput{}, err
	}
	return usecase.PayInvoiceInput{
		InvoiceID: r.InvoiceID,
		AccountID: r.AccountID,
		Amount:    amount,
		PaidAt:    r.PaidAt,
	}, nil
}

// PayTransactionRequest pays an account transaction in full.
type PayTransactionRequest struct {
	TransactionID string           `json:"transaction_id"    validate:"required"`
	AccountID     string           `json:"account_id"        validate:"required"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	PaidAt        *time.Time       `json:"paid_at,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *PayTransactionRequest) ToUseCaseInput() (usecase.PayTransactionInput, error) {
	amount, err := optionalMinorUnits(r.Amount)
	if err != nil {
		return usecase.PayTransactionInput{}, err
	}
	return usecase.PayTransactionInput{
		TransactionID: r.TransactionID,
		AccountID:     r.AccountID,
		Amount:        amount,
		PaidAt:        r.PaidAt,
	}, nil
}

// CloseExpiredRequest sweeps the family's invoices as of At, defaulting to now.
type CloseExpiredRequest struct {
	At *time.Time `json:"at,omitempty"`
}

func optionalMinorUnits(d *decimal.Decimal) (*int64, error) {
	if d == nil {
		return nil, nil
	}
	v, err := domain.ToMinorUnits(*d)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
