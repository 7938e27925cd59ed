package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/iho/homeledger/internal/domain"
)

// InvoiceUseCase owns the invoice lifecycle OPEN -> CLOSED -> PARTIAL | PAID.
type InvoiceUseCase struct {
	Infra

	invoiceRepo     InvoiceRepository
	cardRepo        CreditCardRepository
	accountRepo     AccountRepository
	installmentRepo InstallmentRepository
	txnRepo         TransactionRepository
	paymentRepo     PaymentRepository
	balance         *BalanceUseCase
}

// NewInvoiceUseCase creates a new InvoiceUseCase.
func NewInvoiceUseCase(
	infra Infra,
	invoiceRepo InvoiceRepository,
	cardRepo CreditCardRepository,
	accountRepo AccountRepository,
	installmentRepo InstallmentRepository,
	txnRepo TransactionRepository,
	paymentRepo PaymentRepository,
	balance *BalanceUseCase,
) *InvoiceUseCase {
	return &InvoiceUseCase{
		Infra:           infra,
		invoiceRepo:     invoiceRepo,
		cardRepo:        cardRepo,
		accountRepo:     accountRepo,
		installmentRepo: installmentRepo,
		txnRepo:         txnRepo,
		paymentRepo:     paymentRepo,
		balance:         balance,
	}
}

// ConfirmPaymentInput represents input for confirming an invoice payment.
// A nil Amount pays the full outstanding balance.
type ConfirmPaymentInput struct {
	InvoiceID string
	AccountID string
	Amount    *int64
	PaidAt    *time.Time
}

// GetOrCreateInvoice returns the invoice of cardID for the month containing
// date, creating it OPEN when missing. It is safe to call repeatedly.
func (uc *InvoiceUseCase) GetOrCreateInvoice(ctx context.Context, tx Transaction, tenant domain.Tenant, cardID string, date time.Time) (*domain.Invoice, error) {
	now := uc.now()

	inv, err := uc.invoiceRepo.GetOrCreate(ctx, tx, &domain.Invoice{
		ID:           uc.IDGen.Generate(),
		FamilyID:     tenant.FamilyID,
		CreditCardID: cardID,
		PeriodDate:   domain.PeriodOf(date),
		Status:       domain.InvoiceStatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve invoice for card %s: %w", cardID, err)
	}

	return inv, nil
}

// GetInvoice retrieves an invoice.
func (uc *InvoiceUseCase) GetInvoice(ctx context.Context, tenant domain.Tenant, id string) (*domain.Invoice, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	return uc.invoiceRepo.GetByID(ctx, tenant.FamilyID, id)
}

// ListInvoicesByCard lists a card's invoices, newest period first.
func (uc *InvoiceUseCase) ListInvoicesByCard(ctx context.Context, tenant domain.Tenant, cardID string, limit, offset int) ([]*domain.Invoice, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	limit, offset = domain.ValidatePagination(limit, offset)

	return uc.invoiceRepo.ListByCard(ctx, tenant.FamilyID, cardID, limit, offset)
}

// CloseInvoice moves an OPEN invoice to CLOSED and posts its pending
// installments. Any other status is left untouched.
func (uc *InvoiceUseCase) CloseInvoice(ctx context.Context, tenant domain.Tenant, id string) (_ *domain.Invoice, err error) {
	start := time.Now()
	defer func() { uc.observe("invoice.close", start, err, map[string]any{"invoice_id": id}) }()

	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	var result *domain.Invoice

	err = uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		inv, err := uc.invoiceRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, id)
		if err != nil {
			return err
		}

		if _, err := uc.closeInTx(ctx, tx, tenant, inv); err != nil {
			return err
		}

		result = inv

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// CloseAllExpiredInvoices closes every OPEN invoice of the family whose card
// closing date is on or before now, and returns how many were closed.
func (uc *InvoiceUseCase) CloseAllExpiredInvoices(ctx context.Context, tenant domain.Tenant, now time.Time) (_ int, err error) {
	start := time.Now()
	defer func() { uc.observe("invoice.close_expired", start, err, map[string]any{"family_id": tenant.FamilyID}) }()

	if err := tenant.Validate(); err != nil {
		return 0, err
	}

	var closed int

	err = uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		closed = 0

		invoices, err := uc.invoiceRepo.ListOpenForUpdate(ctx, tx, tenant.FamilyID)
		if err != nil {
			return err
		}

		cards := make(map[string]*domain.CreditCard)

		for _, inv := range invoices {
			card, ok := cards[inv.CreditCardID]
			if !ok {
				card, err = uc.cardRepo.GetByID(ctx, tenant.FamilyID, inv.CreditCardID)
				if err != nil {
					return err
				}
				cards[inv.CreditCardID] = card
			}

			if !inv.IsExpired(card.ClosingDay, now) {
				continue
			}

			ok, err = uc.closeInTx(ctx, tx, tenant, inv)
			if err != nil {
				return err
			}
			if ok {
				closed++
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	uc.Logger.Info().Str("family_id", tenant.FamilyID).Int("closed", closed).Msg("expired invoices closed")

	return closed, nil
}

// ConfirmPayment pays an invoice from an account. A payment below the
// outstanding balance leaves the invoice PARTIAL and rolls the shortfall into
// next month's invoice of the same card.
func (uc *InvoiceUseCase) ConfirmPayment(ctx context.Context, tenant domain.Tenant, input ConfirmPaymentInput) (_ *domain.Payment, err error) {
	start := time.Now()
	fields := map[string]any{"invoice_id": input.InvoiceID, "account_id": input.AccountID}
	defer func() { uc.observe("invoice.confirm_payment", start, err, fields) }()

	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	var payment *domain.Payment

	err = uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		inv, err := uc.invoiceRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, input.InvoiceID)
		if err != nil {
			return err
		}

		if inv.Status == domain.InvoiceStatusPaid {
			return domain.ErrInvoiceAlreadyPaid
		}

		// Paying an invoice issues it.
		if _, err := uc.closeInTx(ctx, tx, tenant, inv); err != nil {
			return err
		}

		amount := inv.Outstanding()
		if input.Amount != nil {
			amount = *input.Amount
		}
		fields["amount"] = amount

		if amount <= 0 {
			return domain.ErrInvalidAmount
		}
		if amount > inv.Outstanding() {
			return domain.ErrOverpayment
		}

		account, err := uc.accountRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, input.AccountID)
		if err != nil {
			return err
		}
		if err := account.ValidateDebit(amount); err != nil {
			return err
		}

		payment, err = uc.settleInTx(ctx, tx, tenant, inv, account.ID, amount, paidAt(input.PaidAt, uc.now()), true)

		return err
	})
	if err != nil {
		return nil, err
	}

	if uc.Metrics != nil {
		outcome := "full"
		if payment.RolledOverAmount > 0 {
			outcome = "partial"
			uc.Metrics.RolloverAmount.Observe(float64(payment.RolledOverAmount))
		}
		uc.Metrics.InvoicePayments.WithLabelValues(outcome).Inc()
		uc.Metrics.PaymentAmount.Observe(float64(payment.Amount))
	}

	return payment, nil
}

// CancelPayments reverses every posted payment of an invoice, each by its own
// amount and its own rollover. Payment rows are kept as CANCELLED.
func (uc *InvoiceUseCase) CancelPayments(ctx context.Context, tenant domain.Tenant, invoiceID string) (_ int, err error) {
	start := time.Now()
	defer func() { uc.observe("invoice.cancel_payments", start, err, map[string]any{"invoice_id": invoiceID}) }()

	if err := tenant.Validate(); err != nil {
		return 0, err
	}

	var cancelled int

	err = uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		inv, err := uc.invoiceRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, invoiceID)
		if err != nil {
			return err
		}

		payments, err := uc.paymentRepo.ListPostedByInvoiceForUpdate(ctx, tx, inv.ID)
		if err != nil {
			return err
		}

		cancelled = len(payments)
		if cancelled == 0 {
			return nil
		}

		wasPaid := inv.Status == domain.InvoiceStatusPaid

		for _, p := range payments {
			if err := uc.reversePaymentInTx(ctx, tx, tenant, inv, p); err != nil {
				return err
			}
		}

		return uc.finishReversalInTx(ctx, tx, tenant, inv, wasPaid)
	})
	if err != nil {
		return 0, err
	}

	if uc.Metrics != nil {
		uc.Metrics.PaymentsReversed.WithLabelValues("invoice").Add(float64(cancelled))
	}

	return cancelled, nil
}

// closeInTx closes inv when it is OPEN and reports whether it did.
func (uc *InvoiceUseCase) closeInTx(ctx context.Context, tx Transaction, tenant domain.Tenant, inv *domain.Invoice) (bool, error) {
	if inv.Status != domain.InvoiceStatusOpen {
		return false, nil
	}

	now := uc.now()
	inv.Status = domain.InvoiceStatusClosed
	inv.UpdatedAt = now

	installments, err := uc.installmentRepo.ListByInvoiceForUpdate(ctx, tx, inv.ID)
	if err != nil {
		return false, err
	}

	for _, inst := range installments {
		if inst.Status != domain.InstallmentStatusPending {
			continue
		}
		inst.Status = domain.InstallmentStatusPosted
		inst.UpdatedAt = now
		if err := uc.installmentRepo.Update(ctx, tx, inst); err != nil {
			return false, err
		}
	}

	if err := uc.invoiceRepo.Update(ctx, tx, inv); err != nil {
		return false, err
	}

	if err := uc.emit(ctx, tx, tenant, domain.AggregateTypeInvoice, inv.ID, domain.EventTypeInvoiceClosed, domain.InvoiceEventPayload(inv)); err != nil {
		return false, err
	}

	if err := uc.audit(ctx, tx, tenant, domain.AuditActionInvoiceClose, domain.AggregateTypeInvoice, inv.ID, nil, inv); err != nil {
		return false, err
	}

	if uc.Metrics != nil {
		uc.Metrics.InvoicesClosed.Inc()
	}

	return true, nil
}

// accrueInTx adds owed to the invoice total. A settled invoice that receives
// new charges returns to PARTIAL or CLOSED.
func (uc *InvoiceUseCase) accrueInTx(ctx context.Context, tx Transaction, tenant domain.Tenant, invoiceID string, owed int64) (*domain.Invoice, error) {
	inv, err := uc.invoiceRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, invoiceID)
	if err != nil {
		return nil, err
	}

	if owed == 0 {
		return inv, nil
	}

	inv.TotalAmount += owed
	inv.UpdatedAt = uc.now()
	if inv.Status != domain.InvoiceStatusOpen {
		inv.Status = inv.SettlementStatus()
	}

	if err := uc.invoiceRepo.Update(ctx, tx, inv); err != nil {
		return nil, err
	}

	return inv, nil
}

// recalculateInTx rebuilds the invoice total from its installments.
func (uc *InvoiceUseCase) recalculateInTx(ctx context.Context, tx Transaction, tenant domain.Tenant, invoiceID string) error {
	inv, err := uc.invoiceRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, invoiceID)
	if err != nil {
		return err
	}

	installments, err := uc.installmentRepo.ListByInvoiceForUpdate(ctx, tx, invoiceID)
	if err != nil {
		return err
	}

	expected := inv.ExpectedTotal(installments)
	if expected == inv.TotalAmount {
		return nil
	}

	uc.Logger.Debug().
		Str("invoice_id", inv.ID).
		Int64("recorded", inv.TotalAmount).
		Int64("expected", expected).
		Msg("invoice total recalculated")

	inv.TotalAmount = expected
	inv.UpdatedAt = uc.now()
	if inv.Status != domain.InvoiceStatusOpen {
		inv.Status = inv.SettlementStatus()
	}

	return uc.invoiceRepo.Update(ctx, tx, inv)
}

// carryOverInTx moves amount into (or, when negative, back out of) the
// opening balance of an invoice.
func (uc *InvoiceUseCase) carryOverInTx(ctx context.Context, tx Transaction, tenant domain.Tenant, invoiceID string, amount int64) error {
	inv, err := uc.invoiceRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, invoiceID)
	if err != nil {
		return err
	}

	if amount < 0 && inv.Outstanding() < -amount {
		return domain.ErrRolloverSettled
	}

	inv.TotalAmount += amount
	inv.CarriedOverAmount += amount
	inv.UpdatedAt = uc.now()
	if inv.Status != domain.InvoiceStatusOpen {
		inv.Status = inv.SettlementStatus()
	}

	return uc.invoiceRepo.Update(ctx, tx, inv)
}

// settleInTx records a validated payment against inv. With rollover the
// unpaid remainder moves to the next period; without it the invoice stays PARTIAL.
func (uc *InvoiceUseCase) settleInTx(
	ctx context.Context,
	tx Transaction,
	tenant domain.Tenant,
	inv *domain.Invoice,
	accountID string,
	amount int64,
	paidAt time.Time,
	rollover bool,
) (*domain.Payment, error) {
	now := uc.now()
	before := *inv

	payment := &domain.Payment{
		ID:        uc.IDGen.Generate(),
		FamilyID:  tenant.FamilyID,
		Amount:    amount,
		PaidAt:    paidAt,
		InvoiceID: &inv.ID,
		AccountID: accountID,
		Status:    domain.PaymentStatusPosted,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.balance.ApplyAccountDelta(ctx, tx, tenant, accountID, -amount); err != nil {
		return nil, err
	}
	if err := uc.balance.ApplyCreditCardUsedDelta(ctx, tx, tenant, inv.CreditCardID, -amount); err != nil {
		return nil, err
	}

	inv.PaidAmount += amount

	if shortfall := inv.Outstanding(); rollover && shortfall > 0 {
		next, err := uc.GetOrCreateInvoice(ctx, tx, tenant, inv.CreditCardID, domain.AddMonths(inv.PeriodDate, 1))
		if err != nil {
			return nil, err
		}
		if err := uc.carryOverInTx(ctx, tx, tenant, next.ID, shortfall); err != nil {
			return nil, err
		}

		inv.RolledOverAmount += shortfall
		payment.RolloverInvoiceID = &next.ID
		payment.RolledOverAmount = shortfall

		uc.Logger.Info().
			Str("invoice_id", inv.ID).
			Str("next_invoice_id", next.ID).
			Int64("shortfall", shortfall).
			Msg("unpaid balance rolled over")
	}

	inv.Status = inv.SettlementStatus()
	inv.UpdatedAt = now

	if err := uc.paymentRepo.Create(ctx, tx, payment); err != nil {
		return nil, err
	}

	if inv.Status == domain.InvoiceStatusPaid {
		if err := uc.markInstallmentsPaidInTx(ctx, tx, tenant, inv.ID); err != nil {
			return nil, err
		}
	}

	if err := uc.invoiceRepo.Update(ctx, tx, inv); err != nil {
		return nil, err
	}

	eventType := domain.EventTypeInvoicePartiallyPaid
	if inv.Status == domain.InvoiceStatusPaid {
		eventType = domain.EventTypeInvoicePaid
	}
	if err := uc.emit(ctx, tx, tenant, domain.AggregateTypeInvoice, inv.ID, eventType, domain.InvoiceEventPayload(inv)); err != nil {
		return nil, err
	}
	if err := uc.emit(ctx, tx, tenant, domain.AggregateTypePayment, payment.ID, domain.EventTypePaymentPosted, domain.PaymentEventPayload(payment)); err != nil {
		return nil, err
	}
	if err := uc.audit(ctx, tx, tenant, domain.AuditActionInvoicePay, domain.AggregateTypeInvoice, inv.ID, &before, inv); err != nil {
		return nil, err
	}

	return payment, nil
}

// markInstallmentsPaidInTx flips the invoice's installments to PAID and
// settles owning transactions whose installments are now all PAID.
func (uc *InvoiceUseCase) markInstallmentsPaidInTx(ctx context.Context, tx Transaction, tenant domain.Tenant, invoiceID string) error {
	installments, err := uc.installmentRepo.ListByInvoiceForUpdate(ctx, tx, invoiceID)
	if err != nil {
		return err
	}

	now := uc.now()
	owners := make([]string, 0)
	seen := make(map[string]bool)

	for _, inst := range installments {
		if !seen[inst.TransactionID] {
			seen[inst.TransactionID] = true
			owners = append(owners, inst.TransactionID)
		}
		if inst.Status == domain.InstallmentStatusPaid {
			continue
		}
		inst.Status = domain.InstallmentStatusPaid
		inst.UpdatedAt = now
		if err := uc.installmentRepo.Update(ctx, tx, inst); err != nil {
			return err
		}
	}

	for _, id := range owners {
		txn, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, id)
		if err != nil {
			return err
		}
		if txn.Status == domain.TransactionStatusPaid {
			continue
		}

		all, err := uc.installmentRepo.ListByTransactionForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if !allPaid(all) {
			continue
		}

		txn.Status = domain.TransactionStatusPaid
		txn.UpdatedAt = now
		if err := uc.txnRepo.Update(ctx, tx, txn); err != nil {
			return err
		}
		if err := uc.emit(ctx, tx, tenant, domain.AggregateTypeTransaction, txn.ID, domain.EventTypeTransactionSettled, domain.TransactionEventPayload(txn)); err != nil {
			return err
		}
	}

	return nil
}

// reopenInstallmentsInTx returns PAID installments of the invoice to POSTED
// and their owning transactions to PENDING.
func (uc *InvoiceUseCase) reopenInstallmentsInTx(ctx context.Context, tx Transaction, tenant domain.Tenant, invoiceID string) error {
	installments, err := uc.installmentRepo.ListByInvoiceForUpdate(ctx, tx, invoiceID)
	if err != nil {
		return err
	}

	now := uc.now()
	owners := make(map[string]bool)

	for _, inst := range installments {
		if inst.Status != domain.InstallmentStatusPaid {
			continue
		}
		owners[inst.TransactionID] = true
		inst.Status = domain.InstallmentStatusPosted
		inst.UpdatedAt = now
		if err := uc.installmentRepo.Update(ctx, tx, inst); err != nil {
			return err
		}
	}

	for id := range owners {
		txn, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, id)
		if err != nil {
			return err
		}
		if txn.Status != domain.TransactionStatusPaid {
			continue
		}
		txn.Status = domain.TransactionStatusPending
		txn.UpdatedAt = now
		if err := uc.txnRepo.Update(ctx, tx, txn); err != nil {
			return err
		}
	}

	return nil
}

// reversePaymentInTx undoes one posted invoice payment, including the
// rollover it performed.
func (uc *InvoiceUseCase) reversePaymentInTx(ctx context.Context, tx Transaction, tenant domain.Tenant, inv *domain.Invoice, p *domain.Payment) error {
	if !p.IsPosted() {
		return domain.ErrPaymentAlreadyCancelled
	}

	if p.RolloverInvoiceID != nil && p.RolledOverAmount > 0 {
		if err := uc.carryOverInTx(ctx, tx, tenant, *p.RolloverInvoiceID, -p.RolledOverAmount); err != nil {
			return err
		}
		inv.RolledOverAmount -= p.RolledOverAmount
	}

	if err := uc.balance.ApplyAccountDelta(ctx, tx, tenant, p.AccountID, p.Amount); err != nil {
		return err
	}
	if err := uc.balance.ApplyCreditCardUsedDelta(ctx, tx, tenant, inv.CreditCardID, p.Amount); err != nil {
		return err
	}

	inv.PaidAmount -= p.Amount

	now := uc.now()
	if err := uc.paymentRepo.UpdateStatus(ctx, tx, p.ID, domain.PaymentStatusCancelled, now); err != nil {
		return err
	}
	p.Status = domain.PaymentStatusCancelled
	p.UpdatedAt = now

	if err := uc.emit(ctx, tx, tenant, domain.AggregateTypePayment, p.ID, domain.EventTypePaymentCancelled, domain.PaymentEventPayload(p)); err != nil {
		return err
	}

	return uc.audit(ctx, tx, tenant, domain.AuditActionPaymentCancel, domain.AggregateTypePayment, p.ID, nil, p)
}

// finishReversalInTx derives the invoice status after payments were reversed.
func (uc *InvoiceUseCase) finishReversalInTx(ctx context.Context, tx Transaction, tenant domain.Tenant, inv *domain.Invoice, wasPaid bool) error {
	inv.Status = inv.SettlementStatus()
	inv.UpdatedAt = uc.now()

	if wasPaid && inv.Status != domain.InvoiceStatusPaid {
		if err := uc.reopenInstallmentsInTx(ctx, tx, tenant, inv.ID); err != nil {
			return err
		}
	}

	return uc.invoiceRepo.Update(ctx, tx, inv)
}

func allPaid(installments []*domain.Installment) bool {
	for _, inst := range installments {
		if inst.Status != domain.InstallmentStatusPaid {
			return false
		}
	}
	return len(installments) > 0
}

func paidAt(at *time.Time, fallback time.Time) time.Time {
	if at != nil {
		return at.UTC()
	}
	return fallback
}
