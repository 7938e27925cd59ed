package domain

import (
	"encoding/json"
	"time"
)

// AuditLog represents an audit trail entry for ledger mutations
type AuditLog struct {
	ID           string
	FamilyID     string
	UserID       string // Who performed the action
	Action       string // transaction.create, invoice.pay, ...
	ResourceType string
	ResourceID   string
	RequestID    string
	BeforeState  JSON
	AfterState   JSON
	Status       string
	ErrorMessage string
	CreatedAt    time.Time
}

// JSON is a type alias for JSON data
type JSON map[string]any

// AuditAction represents different types of auditable actions
type AuditAction string

const (
	AuditActionAccountCreate    AuditAction = "account.create"
	AuditActionCreditCardCreate AuditAction = "credit_card.create"

	AuditActionTransactionCreate AuditAction = "transaction.create"
	AuditActionTransactionUpdate AuditAction = "transaction.update"
	AuditActionTransactionDelete AuditAction = "transaction.delete"
	AuditActionTransactionSettle AuditAction = "transaction.settle"

	AuditActionInstallmentUpdate AuditAction = "installment.update"
	AuditActionInstallmentDelete AuditAction = "installment.delete"
	AuditActionInstallmentStatus AuditAction = "installment.status"

	AuditActionInvoiceClose  AuditAction = "invoice.close"
	AuditActionInvoicePay    AuditAction = "invoice.pay"
	AuditActionPaymentCreate AuditAction = "payment.create"
	AuditActionPaymentCancel AuditAction = "payment.cancel"
)

// AuditStatus represents the status of an audited action
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// MarshalState converts a domain object to JSON for audit logging
func MarshalState(v any) JSON {
	if v == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return JSON{"error": "failed to marshal state"}
	}

	var result JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return JSON{"error": "failed to unmarshal state"}
	}

	return result
}
