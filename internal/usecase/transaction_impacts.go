package usecase

import (
	"context"

	"github.com/iho/homeledger/internal/domain"
)

// impactHandler applies and reverts the financial effect of one
// type/source combination.
type impactHandler interface {
	apply(ctx context.Context, tx Transaction, tenant domain.Tenant, txn *domain.Transaction) ([]*domain.Installment, error)
	revert(ctx context.Context, tx Transaction, tenant domain.Tenant, txn *domain.Transaction, installments []*domain.Installment) error
}

// accountImpact moves an account balance. Multi-installment transactions
// go through installment generation.
type accountImpact struct {
	uc *TransactionUseCase
}

func (h *accountImpact) apply(ctx context.Context, tx Transaction, tenant domain.Tenant, txn *domain.Transaction) ([]*domain.Installment, error) {
	if txn.InstallmentNumber > 1 {
		return h.uc.installments.Generate(ctx, tx, tenant, txn, GenerateInput{
			Count:     txn.InstallmentNumber,
			StartDate: txn.Date,
		})
	}

	now := h.uc.now()
	inst := &domain.Installment{
		ID:            h.uc.IDGen.Generate(),
		TransactionID: txn.ID,
		Number:        1,
		Amount:        txn.Amount,
		DueDate:       txn.Date,
		Status:        domain.InstallmentStatusFor(txn.Status),
		AccountID:     txn.AccountID,
		CategoryID:    txn.CategoryID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.uc.installmentRepo.Create(ctx, tx, inst); err != nil {
		return nil, err
	}

	// A pending account transaction moves no money until settled.
	if inst.Status.IsSettled() {
		if err := h.uc.balance.ApplyAccountDelta(ctx, tx, tenant, domain.Deref(inst.AccountID), inst.Amount); err != nil {
			return nil, err
		}
	}

	return []*domain.Installment{inst}, nil
}

func (h *accountImpact) revert(ctx context.Context, tx Transaction, tenant domain.Tenant, _ *domain.Transaction, installments []*domain.Installment) error {
	return revertAccountLegs(ctx, tx, tenant, h.uc.balance, installments)
}

// creditCardImpact raises the card's used limit and bills each installment
// on the invoice of its month.
type creditCardImpact struct {
	uc *TransactionUseCase
}

func (h *creditCardImpact) apply(ctx context.Context, tx Transaction, tenant domain.Tenant, txn *domain.Transaction) ([]*domain.Installment, error) {
	cardID := domain.Deref(txn.CreditCardID)

	amounts, err := domain.SplitAmount(txn.Amount, txn.InstallmentNumber, txn.Type.Sign())
	if err != nil {
		return nil, err
	}

	// The whole amount consumes the limit up front, whatever its sign.
	if err := h.uc.balance.ApplyCreditCardUsedDelta(ctx, tx, tenant, cardID, txn.Magnitude()); err != nil {
		return nil, err
	}

	now := h.uc.now()
	installments := make([]*domain.Installment, 0, len(amounts))

	for i, amount := range amounts {
		due := domain.AddMonths(txn.Date, i)

		inv, err := h.uc.invoices.GetOrCreateInvoice(ctx, tx, tenant, cardID, due)
		if err != nil {
			return nil, err
		}

		inst := &domain.Installment{
			ID:            h.uc.IDGen.Generate(),
			TransactionID: txn.ID,
			Number:        i + 1,
			Amount:        amount,
			DueDate:       due,
			Status:        domain.InstallmentStatusPosted,
			InvoiceID:     &inv.ID,
			CategoryID:    txn.CategoryID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		if err := h.uc.installmentRepo.Create(ctx, tx, inst); err != nil {
			return nil, err
		}

		if _, err := h.uc.invoices.accrueInTx(ctx, tx, tenant, inv.ID, inst.Owed()); err != nil {
			return nil, err
		}

		installments = append(installments, inst)
	}

	if h.uc.Metrics != nil {
		h.uc.Metrics.InstallmentsCreated.Add(float64(len(installments)))
	}

	return installments, nil
}

func (h *creditCardImpact) revert(ctx context.Context, tx Transaction, tenant domain.Tenant, txn *domain.Transaction, installments []*domain.Installment) error {
	cardID := domain.Deref(txn.CreditCardID)

	for _, inst := range installments {
		if inst.Status == domain.InstallmentStatusPaid {
			return domain.ErrInstallmentLocked
		}
		if err := h.uc.installments.ensureEditable(ctx, tx, tenant, inst); err != nil {
			return err
		}
	}

	var freed int64
	for _, inst := range installments {
		if !inst.OnInvoice() {
			continue
		}

		if _, err := h.uc.invoices.accrueInTx(ctx, tx, tenant, *inst.InvoiceID, -inst.Owed()); err != nil {
			return err
		}
		freed += inst.Owed()
	}

	return h.uc.balance.ApplyCreditCardUsedDelta(ctx, tx, tenant, cardID, -freed)
}

// transferImpact moves money between two accounts of the family as two
// settled legs.
type transferImpact struct {
	uc *TransactionUseCase
}

func (h *transferImpact) apply(ctx context.Context, tx Transaction, tenant domain.Tenant, txn *domain.Transaction) ([]*domain.Installment, error) {
	now := h.uc.now()
	magnitude := txn.Magnitude()

	legs := []*domain.Installment{
		{Number: 1, Amount: -magnitude, AccountID: txn.AccountID},
		{Number: 2, Amount: magnitude, AccountID: txn.DestinationAccountID},
	}

	for _, leg := range legs {
		leg.ID = h.uc.IDGen.Generate()
		leg.TransactionID = txn.ID
		leg.DueDate = txn.Date
		leg.Status = domain.InstallmentStatusPaid
		leg.CategoryID = txn.CategoryID
		leg.CreatedAt = now
		leg.UpdatedAt = now

		if err := h.uc.installmentRepo.Create(ctx, tx, leg); err != nil {
			return nil, err
		}
		if err := h.uc.balance.ApplyAccountDelta(ctx, tx, tenant, domain.Deref(leg.AccountID), leg.Amount); err != nil {
			return nil, err
		}
	}

	return legs, nil
}

func (h *transferImpact) revert(ctx context.Context, tx Transaction, tenant domain.Tenant, _ *domain.Transaction, installments []*domain.Installment) error {
	return revertAccountLegs(ctx, tx, tenant, h.uc.balance, installments)
}

// revertAccountLegs takes back the balance effect of every settled
// account-linked installment.
func revertAccountLegs(ctx context.Context, tx Transaction, tenant domain.Tenant, balance *BalanceUseCase, installments []*domain.Installment) error {
	for _, inst := range installments {
		if inst.AccountID == nil || !inst.Status.IsSettled() {
			continue
		}
		if err := balance.ApplyAccountDelta(ctx, tx, tenant, *inst.AccountID, -inst.Amount); err != nil {
			return err
		}
	}
	return nil
}
