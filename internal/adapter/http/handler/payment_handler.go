package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/homeledger/internal/adapter/http/dto"
	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
)

// PaymentService defines the behavior needed by PaymentHandler.
type PaymentService interface {
	PayInvoice(ctx context.Context, tenant domain.Tenant, input usecase.PayInvoiceInput) (*domain.Payment, error)
	PayTransaction(ctx context.Context, tenant domain.Tenant, input usecase.PayTransactionInput) (*domain.Payment, error)
	CancelPayment(ctx context.Context, tenant domain.Tenant, paymentID string) (*domain.Payment, error)
	ListPayments(ctx context.Context, tenant domain.Tenant, filter usecase.PaymentFilter) ([]*domain.Payment, error)
}

// PaymentHandler handles payment requests.
type PaymentHandler struct {
	paymentUC PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentUC PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentUC: paymentUC}
}

// PayInvoice pays part or all of an invoice.
func (h *PaymentHandler) PayInvoice(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.PayInvoiceRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	payment, err := h.paymentUC.PayInvoice(r.Context(), t, input)
	if err != nil {
		writeDomainError(w, "failed to pay invoice", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PaymentFromDomain(payment))
}

// PayTransaction pays an account transaction in full.
func (h *PaymentHandler) PayTransaction(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.PayTransactionRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	payment, err := h.paymentUC.PayTransaction(r.Context(), t, input)
	if err != nil {
		writeDomainError(w, "failed to pay transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PaymentFromDomain(payment))
}

// Cancel reverses a payment.
func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	payment, err := h.paymentUC.CancelPayment(r.Context(), t, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to cancel payment", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PaymentFromDomain(payment))
}

// List lists payments of an invoice or a transaction. The invoice id may come
// from the route or the query string.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	invoiceID := chi.URLParam(r, "id")
	if invoiceID == "" {
		invoiceID = r.URL.Query().Get("invoice_id")
	}

	payments, err := h.paymentUC.ListPayments(r.Context(), t, usecase.PaymentFilter{
		InvoiceID:     invoiceID,
		TransactionID: r.URL.Query().Get("transaction_id"),
		Limit:         parseIntQuery(r, "limit", 20),
		Offset:        parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, "failed to list payments", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"payments": dto.PaymentsFromDomain(payments)})
}
