package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iho/homeledger/internal/domain"
)

// InstallmentUseCase splits transactions into installments and keeps
// installment edits, deletions and status changes consistent with balances
// and invoice totals.
type InstallmentUseCase struct {
	Infra

	txnRepo         TransactionRepository
	installmentRepo InstallmentRepository
	invoiceRepo     InvoiceRepository
	invoices        *InvoiceUseCase
	balance         *BalanceUseCase
}

// NewInstallmentUseCase creates a new InstallmentUseCase.
func NewInstallmentUseCase(
	infra Infra,
	txnRepo TransactionRepository,
	installmentRepo InstallmentRepository,
	invoiceRepo InvoiceRepository,
	invoices *InvoiceUseCase,
	balance *BalanceUseCase,
) *InstallmentUseCase {
	return &InstallmentUseCase{
		Infra:           infra,
		txnRepo:         txnRepo,
		installmentRepo: installmentRepo,
		invoiceRepo:     invoiceRepo,
		invoices:        invoices,
		balance:         balance,
	}
}

// GenerateInput controls installment generation. StartMonth is the
// installment number that falls on StartDate; it defaults to 1.
type GenerateInput struct {
	Count      int
	StartDate  time.Time
	StartMonth int
}

// UpdateInstallmentInput represents an installment edit. Nil fields are left unchanged.
type UpdateInstallmentInput struct {
	InstallmentID string
	Mode          domain.UpdateMode
	Amount        *int64
	CategoryID    *string
	Status        *domain.InstallmentStatus
}

// Generate splits txn into input.Count installments inside the caller's
// transaction and applies their balance effects.
func (uc *InstallmentUseCase) Generate(ctx context.Context, tx Transaction, tenant domain.Tenant, txn *domain.Transaction, input GenerateInput) ([]*domain.Installment, error) {
	impact, err := txn.Impact()
	if err != nil {
		return nil, err
	}
	if impact == domain.ImpactTransfer {
		return nil, domain.ErrInvalidSourceForType
	}

	if input.StartMonth == 0 {
		input.StartMonth = 1
	}
	if err := domain.ValidateInstallmentCount(input.Count); err != nil {
		return nil, err
	}
	if input.StartMonth < 1 || input.StartMonth > input.Count {
		return nil, domain.ErrInvalidStartMonth
	}
	if input.StartDate.IsZero() {
		input.StartDate = txn.Date
	}

	amounts, err := domain.SplitAmount(txn.Amount, input.Count, txn.Type.Sign())
	if err != nil {
		return nil, err
	}

	now := uc.now()
	installments := make([]*domain.Installment, 0, input.Count)

	for i := 1; i <= input.Count; i++ {
		inst := &domain.Installment{
			ID:            uc.IDGen.Generate(),
			TransactionID: txn.ID,
			Number:        i,
			Amount:        amounts[i-1],
			DueDate:       domain.AddMonths(input.StartDate, i-input.StartMonth),
			CategoryID:    txn.CategoryID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		switch impact {
		case domain.ImpactCreditCard:
			// Billing always starts on the first invoice; StartMonth only shifts due dates.
			err = uc.placeOnInvoice(ctx, tx, tenant, txn, inst, domain.AddMonths(input.StartDate, i-1))
		default:
			err = uc.placeOnAccount(ctx, tx, tenant, txn, inst)
		}
		if err != nil {
			return nil, fmt.Errorf("installment %d: %w", i, err)
		}

		installments = append(installments, inst)
	}

	if uc.Metrics != nil {
		uc.Metrics.InstallmentsCreated.Add(float64(len(installments)))
	}

	return installments, nil
}

func (uc *InstallmentUseCase) placeOnInvoice(
	ctx context.Context,
	tx Transaction,
	tenant domain.Tenant,
	txn *domain.Transaction,
	inst *domain.Installment,
	billedOn time.Time,
) error {
	cardID := domain.Deref(txn.CreditCardID)

	inv, err := uc.invoices.GetOrCreateInvoice(ctx, tx, tenant, cardID, billedOn)
	if err != nil {
		return err
	}

	inst.InvoiceID = &inv.ID
	inst.Status = domain.InstallmentStatusPosted
	if inv.Status == domain.InvoiceStatusOpen {
		inst.Status = domain.InstallmentStatusPending
	}

	if err := uc.installmentRepo.Create(ctx, tx, inst); err != nil {
		return err
	}

	if _, err := uc.invoices.accrueInTx(ctx, tx, tenant, inv.ID, inst.Owed()); err != nil {
		return err
	}

	return uc.balance.ApplyCreditCardUsedDelta(ctx, tx, tenant, cardID, inst.Owed())
}

func (uc *InstallmentUseCase) placeOnAccount(ctx context.Context, tx Transaction, tenant domain.Tenant, txn *domain.Transaction, inst *domain.Installment) error {
	inst.AccountID = txn.AccountID
	inst.Status = domain.InstallmentStatusFor(txn.Status)

	if err := uc.installmentRepo.Create(ctx, tx, inst); err != nil {
		return err
	}

	if !inst.Status.IsSettled() {
		return nil
	}

	return uc.balance.ApplyAccountDelta(ctx, tx, tenant, domain.Deref(inst.AccountID), inst.Amount)
}

// UpdateInstallment edits the installments selected by input.Mode, then
// recomputes the owning transaction amount and every touched invoice total.
func (uc *InstallmentUseCase) UpdateInstallment(ctx context.Context, tenant domain.Tenant, input UpdateInstallmentInput) (_ []*domain.Installment, err error) {
	start := time.Now()
	defer func() {
		uc.observe("installment.update", start, err, map[string]any{"installment_id": input.InstallmentID, "mode": string(input.Mode)})
	}()

	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	if !input.Mode.IsValid() {
		return nil, domain.ErrInvalidUpdateMode
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, domain.ErrInvalidInstallmentStatus
	}
	if input.Amount != nil && *input.Amount == 0 {
		return nil, domain.ErrZeroAmount
	}

	var updated []*domain.Installment

	err = uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		updated = nil

		current, err := uc.lockOne(ctx, tx, tenant, input.InstallmentID)
		if err != nil {
			return err
		}

		txn, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, current.TransactionID)
		if err != nil {
			return err
		}
		if txn.Type == domain.TransactionTypeTransfer {
			return domain.ErrTransferInstallment
		}

		series, err := uc.installmentRepo.ListByTransactionForUpdate(ctx, tx, txn.ID)
		if err != nil {
			return err
		}

		touched := newInvoiceSet()
		before := domain.MarshalState(map[string]any{"installments": series})

		for _, inst := range series {
			if !input.Mode.Selects(current, inst) {
				continue
			}

			changed, err := uc.edit(ctx, tx, tenant, txn, inst, input)
			if err != nil {
				return err
			}
			if !changed {
				continue
			}

			if inst.InvoiceID != nil {
				touched.add(*inst.InvoiceID)
			}
			updated = append(updated, inst)
		}

		if len(updated) == 0 {
			return nil
		}

		if err := uc.resyncTransaction(ctx, tx, txn, series); err != nil {
			return err
		}
		if input.Status != nil {
			if err := uc.deriveTransactionStatus(ctx, tx, tenant, txn); err != nil {
				return err
			}
		}

		for _, id := range touched.ids {
			if err := uc.invoices.recalculateInTx(ctx, tx, tenant, id); err != nil {
				return err
			}
		}

		return uc.audit(ctx, tx, tenant, domain.AuditActionInstallmentUpdate, domain.AggregateTypeTransaction, txn.ID,
			before, map[string]any{"installments": series})
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// edit applies one installment's changes and reports whether anything changed.
// Amount changes move the live balance effect by the difference; status
// changes go through the synchronizer.
func (uc *InstallmentUseCase) edit(
	ctx context.Context,
	tx Transaction,
	tenant domain.Tenant,
	txn *domain.Transaction,
	inst *domain.Installment,
	input UpdateInstallmentInput,
) (bool, error) {
	changed := false

	if input.Amount != nil {
		amount := domain.NormalizeAmount(*input.Amount, txn.Type)
		if amount != inst.Amount {
			if err := uc.ensureEditable(ctx, tx, tenant, inst); err != nil {
				return false, err
			}
			if err := uc.shiftEffect(ctx, tx, tenant, txn, inst, amount); err != nil {
				return false, err
			}
			inst.Amount = amount
			changed = true
		}
	}

	if input.CategoryID != nil && domain.Deref(inst.CategoryID) != *input.CategoryID {
		inst.CategoryID = domain.StringPtr(*input.CategoryID)
		changed = true
	}

	if changed {
		inst.UpdatedAt = uc.now()
		if err := uc.installmentRepo.Update(ctx, tx, inst); err != nil {
			return false, err
		}
	}

	if input.Status != nil && *input.Status != inst.Status {
		if err := uc.synchronizeOne(ctx, tx, tenant, txn, inst, *input.Status); err != nil {
			return false, err
		}
		changed = true
	}

	return changed, nil
}

// shiftEffect moves the live effect of inst from its current amount to
// amount. Card lines hold the used limit by magnitude; settled account lines
// hold the balance by their signed amount. Zero means the line goes away.
func (uc *InstallmentUseCase) shiftEffect(ctx context.Context, tx Transaction, tenant domain.Tenant, txn *domain.Transaction, inst *domain.Installment, amount int64) error {
	switch {
	case inst.OnInvoice() && inst.Status.IsSettled():
		return nil
	case inst.OnInvoice():
		return uc.balance.ApplyCreditCardUsedDelta(ctx, tx, tenant, domain.Deref(txn.CreditCardID), domain.Abs(amount)-inst.Owed())
	case inst.Status.IsSettled():
		return uc.balance.ApplyAccountDelta(ctx, tx, tenant, domain.Deref(inst.AccountID), amount-inst.Amount)
	default:
		return nil
	}
}

// ensureEditable rejects edits of installments billed on an invoice that
// already received a payment or a rollover.
func (uc *InstallmentUseCase) ensureEditable(ctx context.Context, tx Transaction, tenant domain.Tenant, inst *domain.Installment) error {
	if !inst.OnInvoice() {
		return nil
	}

	inv, err := uc.invoiceRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, *inst.InvoiceID)
	if err != nil {
		return err
	}
	if inv.HasSettlements() {
		return domain.ErrInstallmentLocked
	}

	return nil
}

// DeleteInstallments removes installments and reverses their live effects.
// Nothing is touched when any of them is PAID.
func (uc *InstallmentUseCase) DeleteInstallments(ctx context.Context, tenant domain.Tenant, ids []string) (err error) {
	start := time.Now()
	defer func() { uc.observe("installment.delete", start, err, map[string]any{"installment_ids": ids}) }()

	if err := tenant.Validate(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return domain.ErrNoInstallmentsSelected
	}

	err = uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		targets, err := uc.installmentRepo.GetByIDsForUpdate(ctx, tx, tenant.FamilyID, ids)
		if err != nil {
			return err
		}
		if len(targets) != len(uniqueStrings(ids)) {
			return domain.ErrInstallmentNotFound
		}

		if paid := paidNumbers(targets); len(paid) > 0 {
			return &domain.PaidInstallmentsError{Numbers: paid}
		}

		byTxn := make(map[string][]*domain.Installment)
		order := make([]string, 0)
		for _, inst := range targets {
			if _, ok := byTxn[inst.TransactionID]; !ok {
				order = append(order, inst.TransactionID)
			}
			byTxn[inst.TransactionID] = append(byTxn[inst.TransactionID], inst)
		}

		touched := newInvoiceSet()

		for _, txnID := range order {
			if err := uc.deleteFromTransaction(ctx, tx, tenant, txnID, byTxn[txnID], touched); err != nil {
				return err
			}
		}

		for _, id := range touched.ids {
			if err := uc.invoices.recalculateInTx(ctx, tx, tenant, id); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	if uc.Metrics != nil {
		uc.Metrics.InstallmentsDeleted.Add(float64(len(ids)))
	}

	return nil
}

func (uc *InstallmentUseCase) deleteFromTransaction(
	ctx context.Context,
	tx Transaction,
	tenant domain.Tenant,
	txnID string,
	targets []*domain.Installment,
	touched *invoiceSet,
) error {
	txn, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, txnID)
	if err != nil {
		return err
	}
	if txn.Type == domain.TransactionTypeTransfer {
		return domain.ErrTransferInstallment
	}

	ids := make([]string, 0, len(targets))
	for _, inst := range targets {
		if err := uc.ensureEditable(ctx, tx, tenant, inst); err != nil {
			return err
		}
		if err := uc.shiftEffect(ctx, tx, tenant, txn, inst, 0); err != nil {
			return err
		}
		if inst.InvoiceID != nil {
			touched.add(*inst.InvoiceID)
		}
		ids = append(ids, inst.ID)
	}

	if err := uc.installmentRepo.Delete(ctx, tx, ids); err != nil {
		return err
	}

	remaining, err := uc.installmentRepo.ListByTransactionForUpdate(ctx, tx, txn.ID)
	if err != nil {
		return err
	}

	now := uc.now()

	if len(remaining) == 0 {
		if err := uc.txnRepo.SoftDelete(ctx, tx, tenant.FamilyID, txn.ID, now); err != nil {
			return err
		}
		if err := uc.emit(ctx, tx, tenant, domain.AggregateTypeTransaction, txn.ID, domain.EventTypeTransactionDeleted, domain.TransactionEventPayload(txn)); err != nil {
			return err
		}
	} else {
		txn.InstallmentNumber = len(remaining)
		if err := uc.resyncTransaction(ctx, tx, txn, remaining); err != nil {
			return err
		}
	}

	return uc.audit(ctx, tx, tenant, domain.AuditActionInstallmentDelete, domain.AggregateTypeTransaction, txn.ID,
		map[string]any{"installments": targets}, nil)
}

// SynchronizeStatus moves every installment of a transaction to status and
// reconciles balances in the same database transaction.
func (uc *InstallmentUseCase) SynchronizeStatus(ctx context.Context, tenant domain.Tenant, transactionID string, status domain.InstallmentStatus, isCancellation bool) (err error) {
	start := time.Now()
	defer func() {
		uc.observe("installment.sync_status", start, err, map[string]any{"transaction_id": transactionID, "status": string(status)})
	}()

	if err := validateSyncTarget(tenant, status, isCancellation); err != nil {
		return err
	}

	return uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		txn, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, transactionID)
		if err != nil {
			return err
		}

		installments, err := uc.installmentRepo.ListByTransactionForUpdate(ctx, tx, txn.ID)
		if err != nil {
			return err
		}

		return uc.synchronizeInTx(ctx, tx, tenant, txn, installments, status)
	})
}

// SynchronizePartialStatus moves the given installments to status and
// reconciles balances in the same database transaction.
func (uc *InstallmentUseCase) SynchronizePartialStatus(ctx context.Context, tenant domain.Tenant, installmentIDs []string, status domain.InstallmentStatus, isCancellation bool) (err error) {
	start := time.Now()
	defer func() {
		uc.observe("installment.sync_partial_status", start, err, map[string]any{"installment_ids": installmentIDs, "status": string(status)})
	}()

	if err := validateSyncTarget(tenant, status, isCancellation); err != nil {
		return err
	}
	if len(installmentIDs) == 0 {
		return domain.ErrNoInstallmentsSelected
	}

	return uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		targets, err := uc.installmentRepo.GetByIDsForUpdate(ctx, tx, tenant.FamilyID, installmentIDs)
		if err != nil {
			return err
		}
		if len(targets) != len(uniqueStrings(installmentIDs)) {
			return domain.ErrInstallmentNotFound
		}

		byTxn := make(map[string][]*domain.Installment)
		order := make([]string, 0)
		for _, inst := range targets {
			if _, ok := byTxn[inst.TransactionID]; !ok {
				order = append(order, inst.TransactionID)
			}
			byTxn[inst.TransactionID] = append(byTxn[inst.TransactionID], inst)
		}

		for _, id := range order {
			txn, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, id)
			if err != nil {
				return err
			}
			if err := uc.synchronizeInTx(ctx, tx, tenant, txn, byTxn[id], status); err != nil {
				return err
			}
		}

		return nil
	})
}

func validateSyncTarget(tenant domain.Tenant, status domain.InstallmentStatus, isCancellation bool) error {
	if err := tenant.Validate(); err != nil {
		return err
	}
	if !status.IsValid() {
		return domain.ErrInvalidInstallmentStatus
	}
	// A cancellation can only land on an unsettled status.
	if isCancellation && status.IsSettled() {
		return domain.ErrInvalidInstallmentStatus
	}
	return nil
}

// synchronizeInTx applies status to installments of txn and derives the
// transaction status from the full series afterwards.
func (uc *InstallmentUseCase) synchronizeInTx(
	ctx context.Context,
	tx Transaction,
	tenant domain.Tenant,
	txn *domain.Transaction,
	installments []*domain.Installment,
	status domain.InstallmentStatus,
) error {
	if txn.Type == domain.TransactionTypeTransfer {
		return domain.ErrTransferInstallment
	}

	for _, inst := range installments {
		if inst.Status == status {
			continue
		}
		if err := uc.synchronizeOne(ctx, tx, tenant, txn, inst, status); err != nil {
			return err
		}
	}

	return uc.deriveTransactionStatus(ctx, tx, tenant, txn)
}

// deriveTransactionStatus sets txn PAID once every installment is PAID and
// PENDING while any is not. CLEARED is kept for fully settled series.
func (uc *InstallmentUseCase) deriveTransactionStatus(ctx context.Context, tx Transaction, tenant domain.Tenant, txn *domain.Transaction) error {
	series, err := uc.installmentRepo.ListByTransactionForUpdate(ctx, tx, txn.ID)
	if err != nil {
		return err
	}

	next := domain.TransactionStatusPending
	if allPaid(series) {
		next = domain.TransactionStatusPaid
		if txn.Status.IsSettled() {
			next = txn.Status
		}
	}

	if next == txn.Status {
		return nil
	}

	txn.Status = next
	txn.UpdatedAt = uc.now()
	if err := uc.txnRepo.Update(ctx, tx, txn); err != nil {
		return err
	}

	if next == domain.TransactionStatusPaid {
		return uc.emit(ctx, tx, tenant, domain.AggregateTypeTransaction, txn.ID, domain.EventTypeTransactionSettled, domain.TransactionEventPayload(txn))
	}

	return nil
}

// synchronizeOne moves one installment to status. For account lines,
// crossing into a settled status applies the forward effect and leaving it
// applies the inverse. Card lines settle only through invoice payments, so
// they may move between unsettled statuses but never across.
func (uc *InstallmentUseCase) synchronizeOne(
	ctx context.Context,
	tx Transaction,
	tenant domain.Tenant,
	txn *domain.Transaction,
	inst *domain.Installment,
	status domain.InstallmentStatus,
) error {
	wasSettled := inst.Status.IsSettled()
	crossing := wasSettled != status.IsSettled()

	if inst.OnInvoice() && crossing {
		return domain.ErrCardInstallmentSettle
	}
	if err := uc.ensureEditable(ctx, tx, tenant, inst); err != nil {
		return err
	}

	var effect int64
	switch {
	case crossing && !wasSettled:
		effect = inst.Amount
	case crossing:
		effect = -inst.Amount
	}

	if effect != 0 {
		if err := uc.balance.ApplyAccountDelta(ctx, tx, tenant, domain.Deref(inst.AccountID), effect); err != nil {
			return err
		}
	}

	before := inst.Status
	inst.Status = status
	inst.UpdatedAt = uc.now()

	if err := uc.installmentRepo.Update(ctx, tx, inst); err != nil {
		return err
	}

	return uc.audit(ctx, tx, tenant, domain.AuditActionInstallmentStatus, "installment", inst.ID,
		map[string]any{"status": before}, map[string]any{"status": status, "balance_effect": effect})
}

// resyncTransaction sets the transaction amount to the sum of its installments.
func (uc *InstallmentUseCase) resyncTransaction(ctx context.Context, tx Transaction, txn *domain.Transaction, series []*domain.Installment) error {
	txn.Amount = domain.SumAmounts(series)
	txn.UpdatedAt = uc.now()

	return uc.txnRepo.Update(ctx, tx, txn)
}

func (uc *InstallmentUseCase) lockOne(ctx context.Context, tx Transaction, tenant domain.Tenant, id string) (*domain.Installment, error) {
	found, err := uc.installmentRepo.GetByIDsForUpdate(ctx, tx, tenant.FamilyID, []string{id})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, domain.ErrInstallmentNotFound
	}
	return found[0], nil
}

func paidNumbers(installments []*domain.Installment) []int {
	var numbers []int
	for _, inst := range installments {
		if inst.Status == domain.InstallmentStatusPaid {
			numbers = append(numbers, inst.Number)
		}
	}
	sort.Ints(numbers)
	return numbers
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// invoiceSet collects invoice ids in first-seen order.
type invoiceSet struct {
	ids  []string
	seen map[string]bool
}

func newInvoiceSet() *invoiceSet {
	return &invoiceSet{seen: make(map[string]bool)}
}

func (s *invoiceSet) add(id string) {
	if s.seen[id] {
		return
	}
	s.seen[id] = true
	s.ids = append(s.ids, id)
}
