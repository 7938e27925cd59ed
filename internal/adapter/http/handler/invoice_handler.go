package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/homeledger/internal/adapter/http/dto"
	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
)

// InvoiceService defines the behavior needed by InvoiceHandler.
type InvoiceService interface {
	GetInvoice(ctx context.Context, tenant domain.Tenant, id string) (*domain.Invoice, error)
	ListInvoicesByCard(ctx context.Context, tenant domain.Tenant, cardID string, limit, offset int) ([]*domain.Invoice, error)
	CloseInvoice(ctx context.Context, tenant domain.Tenant, id string) (*domain.Invoice, error)
	CloseAllExpiredInvoices(ctx context.Context, tenant domain.Tenant, now time.Time) (int, error)
	ConfirmPayment(ctx context.Context, tenant domain.Tenant, input usecase.ConfirmPaymentInput) (*domain.Payment, error)
	CancelPayments(ctx context.Context, tenant domain.Tenant, invoiceID string) (int, error)
}

// InvoiceHandler handles invoice requests.
type InvoiceHandler struct {
	invoiceUC InvoiceService
	now       func() time.Time
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(invoiceUC InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceUC: invoiceUC, now: time.Now}
}

// Get retrieves an invoice.
func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	inv, err := h.invoiceUC.GetInvoice(r.Context(), t, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get invoice", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.InvoiceFromDomain(inv))
}

// ListByCard lists the invoices of a credit card, newest period first.
func (h *InvoiceHandler) ListByCard(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	invoices, err := h.invoiceUC.ListInvoicesByCard(r.Context(), t, chi.URLParam(r, "id"),
		parseIntQuery(r, "limit", 12), parseIntQuery(r, "offset", 0))
	if err != nil {
		writeDomainError(w, "failed to list invoices", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"invoices": dto.InvoicesFromDomain(invoices)})
}

// Close closes an open invoice.
func (h *InvoiceHandler) Close(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	inv, err := h.invoiceUC.CloseInvoice(r.Context(), t, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to close invoice", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.InvoiceFromDomain(inv))
}

// CloseExpired closes every open invoice of the family past its closing day.
func (h *InvoiceHandler) CloseExpired(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	// The body is optional.
	var req dto.CloseExpiredRequest
	if err := decodeRequest(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	at := h.now()
	if req.At != nil {
		at = *req.At
	}

	closed, err := h.invoiceUC.CloseAllExpiredInvoices(r.Context(), t, at)
	if err != nil {
		writeDomainError(w, "failed to close expired invoices", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CountResponse{Count: closed})
}

// ConfirmPayment pays an invoice, rolling any unpaid rest into the next one.
func (h *InvoiceHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.ConfirmPaymentRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	payment, err := h.invoiceUC.ConfirmPayment(r.Context(), t, input)
	if err != nil {
		writeDomainError(w, "failed to confirm payment", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PaymentFromDomain(payment))
}

// CancelPayments reverses every posted payment of an invoice.
func (h *InvoiceHandler) CancelPayments(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	cancelled, err := h.invoiceUC.CancelPayments(r.Context(), t, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to cancel payments", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CountResponse{Count: cancelled})
}
