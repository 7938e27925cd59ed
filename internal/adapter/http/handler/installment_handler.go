package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/homeledger/internal/adapter/http/dto"
	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
)

// InstallmentService defines the behavior needed by InstallmentHandler.
type InstallmentService interface {
	UpdateInstallment(ctx context.Context, tenant domain.Tenant, input usecase.UpdateInstallmentInput) ([]*domain.Installment, error)
	DeleteInstallments(ctx context.Context, tenant domain.Tenant, ids []string) error
	SynchronizeStatus(ctx context.Context, tenant domain.Tenant, transactionID string, status domain.InstallmentStatus, isCancellation bool) error
	SynchronizePartialStatus(ctx context.Context, tenant domain.Tenant, installmentIDs []string, status domain.InstallmentStatus, isCancellation bool) error
}

// InstallmentHandler handles installment requests.
type InstallmentHandler struct {
	installmentUC InstallmentService
}

// NewInstallmentHandler creates a new InstallmentHandler.
func NewInstallmentHandler(installmentUC InstallmentService) *InstallmentHandler {
	return &InstallmentHandler{installmentUC: installmentUC}
}

// Update edits an installment and the siblings its mode selects.
func (h *InstallmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.UpdateInstallmentRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	input, err := req.ToUseCaseInput(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	updated, err := h.installmentUC.UpdateInstallment(r.Context(), t, input)
	if err != nil {
		writeDomainError(w, "failed to update installment", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"installments": dto.InstallmentsFromDomain(updated)})
}

// Delete removes a set of installments. Paid installments block the whole request.
func (h *InstallmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.DeleteInstallmentsRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	if err := h.installmentUC.DeleteInstallments(r.Context(), t, req.IDs); err != nil {
		writeDomainError(w, "failed to delete installments", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SyncStatus moves installments to a new status and applies the cash effect.
func (h *InstallmentHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.SyncStatusRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	status := domain.InstallmentStatus(req.Status)

	var err error
	if req.TransactionID != "" {
		err = h.installmentUC.SynchronizeStatus(r.Context(), t, req.TransactionID, status, req.IsCancellation)
	} else {
		err = h.installmentUC.SynchronizePartialStatus(r.Context(), t, req.InstallmentIDs, status, req.IsCancellation)
	}
	if err != nil {
		writeDomainError(w, "failed to synchronize installments", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
