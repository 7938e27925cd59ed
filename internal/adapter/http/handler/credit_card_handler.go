package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/homeledger/internal/adapter/http/dto"
	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
)

// CreditCardService defines the behavior needed by CreditCardHandler.
type CreditCardService interface {
	CreateCreditCard(ctx context.Context, tenant domain.Tenant, input usecase.CreateCreditCardInput) (*domain.CreditCard, error)
	GetCreditCard(ctx context.Context, tenant domain.Tenant, id string) (*domain.CreditCard, error)
	ListCreditCards(ctx context.Context, tenant domain.Tenant, limit, offset int) ([]*domain.CreditCard, error)
}

// CreditCardHandler handles credit card requests.
type CreditCardHandler struct {
	cardUC CreditCardService
}

// NewCreditCardHandler creates a new CreditCardHandler.
func NewCreditCardHandler(cardUC CreditCardService) *CreditCardHandler {
	return &CreditCardHandler{cardUC: cardUC}
}

// Create creates a credit card.
func (h *CreditCardHandler) Create(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	var req dto.CreateCreditCardRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeDomainError(w, "invalid request", err)
		return
	}

	card, err := h.cardUC.CreateCreditCard(r.Context(), t, input)
	if err != nil {
		writeDomainError(w, "failed to create credit card", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.CreditCardFromDomain(card))
}

// Get retrieves a credit card.
func (h *CreditCardHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	card, err := h.cardUC.GetCreditCard(r.Context(), t, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "failed to get credit card", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CreditCardFromDomain(card))
}

// List lists credit cards.
func (h *CreditCardHandler) List(w http.ResponseWriter, r *http.Request) {
	t, ok := tenant(w, r)
	if !ok {
		return
	}

	cards, err := h.cardUC.ListCreditCards(r.Context(), t, parseIntQuery(r, "limit", 20), parseIntQuery(r, "offset", 0))
	if err != nil {
		writeDomainError(w, "failed to list credit cards", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"credit_cards": dto.CreditCardsFromDomain(cards)})
}
