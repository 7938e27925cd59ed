package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
	// Installments lists the paid installment numbers that blocked a deletion.
	Installments []int `json:"installments,omitempty"`
}

func money(v int64) decimal.Decimal {
	return domain.FromMinorUnits(v)
}

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Balance:   money(a.Balance),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse represents a page of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Total    int64              `json:"total"`
}

// CreditCardResponse represents a credit card in API responses.
type CreditCardResponse struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	LastFourDigits   string          `json:"last_four_digits"`
	Limit            decimal.Decimal `json:"limit"`
	Used             decimal.Decimal `json:"used"`
	Available        decimal.Decimal `json:"available"`
	ClosingDay       int             `json:"closing_day"`
	DueDay           int             `json:"due_day"`
	PaymentAccountID *string         `json:"payment_account_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// CreditCardFromDomain converts a domain card to response.
func CreditCardFromDomain(c *domain.CreditCard) *CreditCardResponse {
	return &CreditCardResponse{
		ID:               c.ID,
		Name:             c.Name,
		LastFourDigits:   c.LastFourDigits,
		Limit:            money(c.Limit),
		Used:             money(c.Used),
		Available:        money(c.Available()),
		ClosingDay:       c.ClosingDay,
		DueDay:           c.DueDay,
		PaymentAccountID: c.PaymentAccountID,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
}

// CreditCardsFromDomain converts domain cards to responses.
func CreditCardsFromDomain(cards []*domain.CreditCard) []*CreditCardResponse {
	result := make([]*CreditCardResponse, len(cards))
	for i, c := range cards {
		result[i] = CreditCardFromDomain(c)
	}
	return result
}

// InstallmentResponse represents an installment in API responses.
type InstallmentResponse struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transaction_id"`
	Number        int             `json:"number"`
	Amount        decimal.Decimal `json:"amount"`
	DueDate       string          `json:"due_date"`
	Status        string          `json:"status"`
	AccountID     *string         `json:"account_id,omitempty"`
	InvoiceID     *string         `json:"invoice_id,omitempty"`
	CategoryID    *string         `json:"category_id,omitempty"`
}

// InstallmentFromDomain converts a domain installment to response.
func InstallmentFromDomain(i *domain.Installment) *InstallmentResponse {
	return &InstallmentResponse{
		ID:            i.ID,
		TransactionID: i.TransactionID,
		Number:        i.Number,
		Amount:        money(i.Amount),
		DueDate:       i.DueDate.Format(DateLayout),
		Status:        string(i.Status),
		AccountID:     i.AccountID,
		InvoiceID:     i.InvoiceID,
		CategoryID:    i.CategoryID,
	}
}

// InstallmentsFromDomain converts domain installments to responses.
func InstallmentsFromDomain(installments []*domain.Installment) []*InstallmentResponse {
	result := make([]*InstallmentResponse, len(installments))
	for i, inst := range installments {
		result[i] = InstallmentFromDomain(inst)
	}
	return result
}

// TransactionResponse represents a transaction in API responses.
type TransactionResponse struct {
	ID                   string                 `json:"id"`
	Type                 string                 `json:"type"`
	Source               string                 `json:"source"`
	Status               string                 `json:"status"`
	Amount               decimal.Decimal        `json:"amount"`
	InstallmentNumber    int                    `json:"installment_number"`
	AccountID            *string                `json:"account_id,omitempty"`
	CreditCardID         *string                `json:"credit_card_id,omitempty"`
	DestinationAccountID *string                `json:"destination_account_id,omitempty"`
	CategoryID           *string                `json:"category_id,omitempty"`
	Description          string                 `json:"description,omitempty"`
	Date                 string                 `json:"date"`
	Installments         []*InstallmentResponse `json:"installments,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
	UpdatedAt            time.Time              `json:"updated_at"`
}

// TransactionFromDomain converts a domain transaction to response.
func TransactionFromDomain(t *domain.Transaction) *TransactionResponse {
	return &TransactionResponse{
		ID:                   t.ID,
		Type:                 string(t.Type),
		Source:               string(t.Source),
		Status:               string(t.Status),
		Amount:               money(t.Amount),
		InstallmentNumber:    t.InstallmentNumber,
		AccountID:            t.AccountID,
		CreditCardID:         t.CreditCardID,
		DestinationAccountID: t.DestinationAccountID,
		CategoryID:           t.CategoryID,
		Description:          t.Description,
		Date:                 t.Date.Format(DateLayout),
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
	}
}

// TransactionDetailsFromUseCase converts a transaction with its installments.
func TransactionDetailsFromUseCase(d *usecase.TransactionDetails) *TransactionResponse {
	resp := TransactionFromDomain(d.Transaction)
	resp.Installments = InstallmentsFromDomain(d.Installments)
	return resp
}

// TransactionsFromDomain converts domain transactions to responses.
func TransactionsFromDomain(txns []*domain.Transaction) []*TransactionResponse {
	result := make([]*TransactionResponse, len(txns))
	for i, t := range txns {
		result[i] = TransactionFromDomain(t)
	}
	return result
}

// InvoiceResponse represents an invoice in API responses.
type InvoiceResponse struct {
	ID                string          `json:"id"`
	CreditCardID      string          `json:"credit_card_id"`
	Period            string          `json:"period"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	CarriedOverAmount decimal.Decimal `json:"carried_over_amount"`
	RolledOverAmount  decimal.Decimal `json:"rolled_over_amount"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	Outstanding       decimal.Decimal `json:"outstanding"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// InvoiceFromDomain converts a domain invoice to response.
func InvoiceFromDomain(i *domain.Invoice) *InvoiceResponse {
	return &InvoiceResponse{
		ID:                i.ID,
		CreditCardID:      i.CreditCardID,
		Period:            i.PeriodDate.Format("2006-01"),
		TotalAmount:       money(i.TotalAmount),
		CarriedOverAmount: money(i.CarriedOverAmount),
		RolledOverAmount:  money(i.RolledOverAmount),
		PaidAmount:        money(i.PaidAmount),
		Outstanding:       money(i.Outstanding()),
		Status:            string(i.Status),
		CreatedAt:         i.CreatedAt,
		UpdatedAt:         i.UpdatedAt,
	}
}

// InvoicesFromDomain converts domain invoices to responses.
func InvoicesFromDomain(invoices []*domain.Invoice) []*InvoiceResponse {
	result := make([]*InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		result[i] = InvoiceFromDomain(inv)
	}
	return result
}

// PaymentResponse represents a payment in API responses.
type PaymentResponse struct {
	ID                string          `json:"id"`
	Amount            decimal.Decimal `json:"amount"`
	PaidAt            time.Time       `json:"paid_at"`
	InvoiceID         *string         `json:"invoice_id,omitempty"`
	TransactionID     *string         `json:"transaction_id,omitempty"`
	AccountID         string          `json:"account_id"`
	Status            string          `json:"status"`
	RolloverInvoiceID *string         `json:"rollover_invoice_id,omitempty"`
	RolledOverAmount  decimal.Decimal `json:"rolled_over_amount"`
	CreatedAt         time.Time       `json:"created_at"`
}

// PaymentFromDomain converts a domain payment to response.
func PaymentFromDomain(p *domain.Payment) *PaymentResponse {
	return &PaymentResponse{
		ID:                p.ID,
		Amount:            money(p.Amount),
		PaidAt:            p.PaidAt,
		InvoiceID:         p.InvoiceID,
		TransactionID:     p.TransactionID,
		AccountID:         p.AccountID,
		Status:            string(p.Status),
		RolloverInvoiceID: p.RolloverInvoiceID,
		RolledOverAmount:  money(p.RolledOverAmount),
		CreatedAt:         p.CreatedAt,
	}
}

// PaymentsFromDomain converts domain payments to responses.
func PaymentsFromDomain(payments []*domain.Payment) []*PaymentResponse {
	result := make([]*PaymentResponse, len(payments))
	for i, p := range payments {
		result[i] = PaymentFromDomain(p)
	}
	return result
}

// CountResponse reports how many records an operation touched.
type CountResponse struct {
	Count int `json:"count"`
}

// InvoiceMismatchResponse is an invoice whose total disagrees with its installments.
type InvoiceMismatchResponse struct {
	InvoiceID string          `json:"invoice_id"`
	Recorded  decimal.Decimal `json:"recorded"`
	Expected  decimal.Decimal `json:"expected"`
}

// TransactionMismatchResponse is a transaction whose installments do not add up.
type TransactionMismatchResponse struct {
	TransactionID string          `json:"transaction_id"`
	Recorded      decimal.Decimal `json:"recorded"`
	Installments  decimal.Decimal `json:"installments"`
}

// CardMismatchResponse is a card whose used limit disagrees with its invoices.
type CardMismatchResponse struct {
	CreditCardID string          `json:"credit_card_id"`
	Recorded     decimal.Decimal `json:"recorded"`
	Expected     decimal.Decimal `json:"expected"`
}

// ConsistencyResponse is the result of a ledger consistency check.
type ConsistencyResponse struct {
	Consistent   bool                           `json:"consistent"`
	Invoices     []*InvoiceMismatchResponse     `json:"invoices"`
	Transactions []*TransactionMismatchResponse `json:"transactions"`
	Cards        []*CardMismatchResponse        `json:"cards"`
}

// ConsistencyFromReport converts a consistency report to response.
func ConsistencyFromReport(r *usecase.ConsistencyReport) *ConsistencyResponse {
	resp := &ConsistencyResponse{
		Consistent:   r.Consistent(),
		Invoices:     make([]*InvoiceMismatchResponse, len(r.Invoices)),
		Transactions: make([]*TransactionMismatchResponse, len(r.Transactions)),
		Cards:        make([]*CardMismatchResponse, len(r.Cards)),
	}
	for i, m := range r.Invoices {
		resp.Invoices[i] = &InvoiceMismatchResponse{
			InvoiceID: m.InvoiceID,
			Recorded:  money(m.Recorded),
			Expected:  money(m.Expected),
		}
	}
	for i, m := range r.Transactions {
		resp.Transactions[i] = &TransactionMismatchResponse{
			TransactionID: m.TransactionID,
			Recorded:      money(m.Recorded),
			Installments:  money(m.Installments),
		}
	}
	for i, m := range r.Cards {
		resp.Cards[i] = &CardMismatchResponse{
			CreditCardID: m.CreditCardID,
			Recorded:     money(m.Recorded),
			Expected:     money(m.Expected),
		}
	}
	return resp
}
