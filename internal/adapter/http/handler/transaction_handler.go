package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/homeledger/internal/adapter/http/dto"
	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
)

// TransactionService defines the behavior needed by TransactionHandler.
type TransactionService interface {
	Create(ctx context.Context, tenant domain.Tenant, input usecase.TransactionInput) (*usecase.TransactionDetails, error)
	Update(ctx context.Context, tenant domain.Tenant, id string, input usecase.TransactionInput) (*usecase.TransactionDetails, error)
	Delete(ctx context.Context, tenant domain.Tenant, id string) error
	Settle(ctx context.Context, tenant domain.Tenant, id string) (*usecase.TransactionDetails, error)
	GetTransaction(ctx context.Context, tenant domain.Tenant, id string) (*usecase.TransactionDetails, error)
	ListTransactions(ctx context.Context, tenant domain.Tenant, filter usecase.TransactionFilter) ([]*domain.Transaction, error)
}

// TransactionHandler handles transaction requests.
type TransactionHandler struct {
	txnUC TransactionService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(txnUC TransactionService) *TransactionHandler {
	return &TransactionHandler{txnUC: txnUC}
}

// Create records a transaction and its installments.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	input, ok := decodeTransaction(w, r)
	if !ok {
		return
	}

	details, err := h.txnUC.Create(r.Context(), t, input)
	if err != nil {
		writeDomainError(w, "failed to create transaction", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.TransactionDetailsFromUseCase(details))
}

// Update replaces a transaction, reverting its old effects first.
func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	input, ok := decodeTransaction(w, r)
	if !ok {
		return
	}

	details, err := h.txnUC.Update(r.Context(), t, chi.URLParam(r, "id"), input)
	if err != nil {
		writeDomainError(w, "failed to update transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionDetailsFromUseCase(details))
}

// Delete removes a transaction and reverts its effects.
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	if err := h.txnUC.Delete(r.Context(), t, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "failed to delete transaction", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Settle marks a pending transaction as settled.
func (h *TransactionHandler) Settle(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	details, err := h.txnUC.Settle(r.Context(), t, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to settle transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionDetailsFromUseCase(details))
}

// Get retrieves a transaction with its installments.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	details, err := h.txnUC.GetTransaction(r.Context(), t, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get transaction", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionDetailsFromUseCase(details))
}

// List lists transactions, optionally of one account or card.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	txns, err := h.txnUC.ListTransactions(r.Context(), t, usecase.TransactionFilter{
		AccountID:    q.Get("account_id"),
		CreditCardID: q.Get("credit_card_id"),
		Limit:        parseIntQuery(r, "limit", 20),
		Offset:       parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, "failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"transactions": dto.TransactionsFromDomain(txns)})
}

func decodeTransaction(w http.ResponseWriter, r *http.Request) (usecase.TransactionInput, bool) {
	var req dto.TransactionRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return usecase.TransactionInput{}, false
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeDomainError(w, "invalid request", err)
		return usecase.TransactionInput{}, false
	}

	return input, true
}
