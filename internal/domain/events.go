package domain

import "time"

// Event types
const (
	EventTypeTransactionCreated   = "transaction.created"
	EventTypeTransactionUpdated   = "transaction.updated"
	EventTypeTransactionDeleted   = "transaction.deleted"
	EventTypeTransactionSettled   = "transaction.settled"
	EventTypeInvoiceClosed        = "invoice.closed"
	EventTypeInvoicePaid          = "invoice.paid"
	EventTypeInvoicePartiallyPaid = "invoice.partially_paid"
	EventTypePaymentPosted        = "payment.posted"
	EventTypePaymentCancelled     = "payment.cancelled"
)

// Aggregate types
const (
	AggregateTypeTransaction = "transaction"
	AggregateTypeInvoice     = "invoice"
	AggregateTypePayment     = "payment"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	FamilyID      string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// TransactionEventPayload builds the payload of transaction events.
func TransactionEventPayload(t *Transaction) map[string]any {
	return map[string]any{
		"transaction_id":     t.ID,
		"family_id":          t.FamilyID,
		"type":               string(t.Type),
		"source":             string(t.Source),
		"status":             string(t.Status),
		"amount":             t.Amount,
		"installment_number": t.InstallmentNumber,
		"date":               t.Date.Format(time.DateOnly),
	}
}

// InvoiceEventPayload builds the payload of invoice events.
func InvoiceEventPayload(inv *Invoice) map[string]any {
	return map[string]any{
		"invoice_id":     inv.ID,
		"credit_card_id": inv.CreditCardID,
		"period":         inv.PeriodDate.Format("2006-01"),
		"total_amount":   inv.TotalAmount,
		"paid_amount":    inv.PaidAmount,
		"rolled_over":    inv.RolledOverAmount,
		"status":         string(inv.Status),
	}
}

// PaymentEventPayload builds the payload of payment events.
func PaymentEventPayload(p *Payment) map[string]any {
	return map[string]any{
		"payment_id":     p.ID,
		"account_id":     p.AccountID,
		"invoice_id":     Deref(p.InvoiceID),
		"transaction_id": Deref(p.TransactionID),
		"amount":         p.Amount,
		"status":         string(p.Status),
	}
}
