package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/iho/homeledger/internal/domain"
)

// TransactionUseCase is the entry point for user-entered money movements.
// It normalizes the amount sign, persists the transaction and dispatches to
// the impact handler selected by its type and source.
type TransactionUseCase struct {
	Infra

	txnRepo         TransactionRepository
	installmentRepo InstallmentRepository
	accountRepo     AccountRepository
	cardRepo        CreditCardRepository
	paymentRepo     PaymentRepository
	installments    *InstallmentUseCase
	invoices        *InvoiceUseCase
	balance         *BalanceUseCase
	handlers        map[domain.Impact]impactHandler
}

// NewTransactionUseCase creates a new TransactionUseCase.
func NewTransactionUseCase(
	infra Infra,
	txnRepo TransactionRepository,
	installmentRepo InstallmentRepository,
	accountRepo AccountRepository,
	cardRepo CreditCardRepository,
	paymentRepo PaymentRepository,
	installments *InstallmentUseCase,
	invoices *InvoiceUseCase,
	balance *BalanceUseCase,
) *TransactionUseCase {
	uc := &TransactionUseCase{
		Infra:           infra,
		txnRepo:         txnRepo,
		installmentRepo: installmentRepo,
		accountRepo:     accountRepo,
		cardRepo:        cardRepo,
		paymentRepo:     paymentRepo,
		installments:    installments,
		invoices:        invoices,
		balance:         balance,
	}

	uc.handlers = map[domain.Impact]impactHandler{
		domain.ImpactAccount:    &accountImpact{uc: uc},
		domain.ImpactCreditCard: &creditCardImpact{uc: uc},
		domain.ImpactTransfer:   &transferImpact{uc: uc},
	}

	return uc
}

// TransactionInput is the user-entered data of a transaction. Amount may be
// given with either sign; it is normalized by Type.
type TransactionInput struct {
	Type                 domain.TransactionType
	Source               domain.TransactionSource
	Status               domain.TransactionStatus
	Amount               int64
	InstallmentNumber    int
	AccountID            string
	CreditCardID         string
	DestinationAccountID string
	CategoryID           string
	Description          string
	Date                 time.Time
}

// TransactionDetails is a transaction with its installments.
type TransactionDetails struct {
	Transaction  *domain.Transaction
	Installments []*domain.Installment
}

// Create persists a new transaction and applies its financial impact.
func (uc *TransactionUseCase) Create(ctx context.Context, tenant domain.Tenant, input TransactionInput) (_ *TransactionDetails, err error) {
	start := time.Now()
	defer func() { uc.observe("transaction.create", start, err, inputFields(input)) }()

	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	var result *TransactionDetails

	err = uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		now := uc.now()
		txn := &domain.Transaction{
			ID:        uc.IDGen.Generate(),
			FamilyID:  tenant.FamilyID,
			CreatedAt: now,
		}
		if err := uc.populate(txn, input, now); err != nil {
			return err
		}

		handler, err := uc.handlerFor(txn)
		if err != nil {
			return err
		}

		if err := uc.ensureLinks(ctx, tx, tenant, txn); err != nil {
			return err
		}

		if err := uc.txnRepo.Create(ctx, tx, txn); err != nil {
			return err
		}

		installments, err := handler.apply(ctx, tx, tenant, txn)
		if err != nil {
			return err
		}

		if err := uc.emit(ctx, tx, tenant, domain.AggregateTypeTransaction, txn.ID, domain.EventTypeTransactionCreated, domain.TransactionEventPayload(txn)); err != nil {
			return err
		}
		if err := uc.audit(ctx, tx, tenant, domain.AuditActionTransactionCreate, domain.AggregateTypeTransaction, txn.ID, nil, txn); err != nil {
			return err
		}

		result = &TransactionDetails{Transaction: txn, Installments: installments}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if uc.Metrics != nil {
		impact, _ := result.Transaction.Impact()
		uc.Metrics.TransactionsCreated.WithLabelValues(impact.String()).Inc()
		uc.Metrics.TransactionAmount.Observe(float64(result.Transaction.Magnitude()))
	}

	return result, nil
}

// Update re-derives a transaction from new data: the old impact is reverted
// in full and its installments removed before the new impact is applied.
func (uc *TransactionUseCase) Update(ctx context.Context, tenant domain.Tenant, id string, input TransactionInput) (_ *TransactionDetails, err error) {
	start := time.Now()
	defer func() {
		fields := inputFields(input)
		fields["transaction_id"] = id
		uc.observe("transaction.update", start, err, fields)
	}()

	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	var result *TransactionDetails

	err = uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		txn, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, id)
		if err != nil {
			return err
		}
		before := *txn

		if err := uc.ensureNoPayments(ctx, tx, txn.ID); err != nil {
			return err
		}

		if err := uc.revertInTx(ctx, tx, tenant, txn); err != nil {
			return err
		}

		now := uc.now()
		if err := uc.populate(txn, input, now); err != nil {
			return err
		}

		handler, err := uc.handlerFor(txn)
		if err != nil {
			return err
		}

		if err := uc.ensureLinks(ctx, tx, tenant, txn); err != nil {
			return err
		}

		if err := uc.txnRepo.Update(ctx, tx, txn); err != nil {
			return err
		}

		installments, err := handler.apply(ctx, tx, tenant, txn)
		if err != nil {
			return err
		}

		if err := uc.emit(ctx, tx, tenant, domain.AggregateTypeTransaction, txn.ID, domain.EventTypeTransactionUpdated, domain.TransactionEventPayload(txn)); err != nil {
			return err
		}
		if err := uc.audit(ctx, tx, tenant, domain.AuditActionTransactionUpdate, domain.AggregateTypeTransaction, txn.ID, &before, txn); err != nil {
			return err
		}

		result = &TransactionDetails{Transaction: txn, Installments: installments}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if uc.Metrics != nil {
		uc.Metrics.TransactionsUpdated.Inc()
	}

	return result, nil
}

// Delete reverts a transaction's impact, removes its installments and
// soft-deletes it. PAID transactions other than transfers cannot be deleted.
func (uc *TransactionUseCase) Delete(ctx context.Context, tenant domain.Tenant, id string) (err error) {
	start := time.Now()
	defer func() { uc.observe("transaction.delete", start, err, map[string]any{"transaction_id": id}) }()

	if err := tenant.Validate(); err != nil {
		return err
	}

	err = uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		txn, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, id)
		if err != nil {
			return err
		}

		// Transfers are born PAID; deleting one reverses both legs.
		if txn.Status == domain.TransactionStatusPaid && txn.Type != domain.TransactionTypeTransfer {
			return domain.ErrTransactionPaid
		}

		if err := uc.ensureNoPayments(ctx, tx, txn.ID); err != nil {
			return err
		}

		if err := uc.revertInTx(ctx, tx, tenant, txn); err != nil {
			return err
		}

		now := uc.now()
		if err := uc.txnRepo.SoftDelete(ctx, tx, tenant.FamilyID, txn.ID, now); err != nil {
			return err
		}
		txn.DeletedAt = &now

		if err := uc.emit(ctx, tx, tenant, domain.AggregateTypeTransaction, txn.ID, domain.EventTypeTransactionDeleted, domain.TransactionEventPayload(txn)); err != nil {
			return err
		}

		return uc.audit(ctx, tx, tenant, domain.AuditActionTransactionDelete, domain.AggregateTypeTransaction, txn.ID, txn, nil)
	})
	if err != nil {
		return err
	}

	if uc.Metrics != nil {
		uc.Metrics.TransactionsDeleted.Inc()
	}

	return nil
}

// Settle marks a PENDING account transaction as PAID and applies the balance
// effect it deferred at creation.
func (uc *TransactionUseCase) Settle(ctx context.Context, tenant domain.Tenant, id string) (_ *TransactionDetails, err error) {
	start := time.Now()
	defer func() { uc.observe("transaction.settle", start, err, map[string]any{"transaction_id": id}) }()

	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	var result *TransactionDetails

	err = uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		txn, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, id)
		if err != nil {
			return err
		}

		impact, err := txn.Impact()
		if err != nil {
			return err
		}
		if impact != domain.ImpactAccount {
			return domain.ErrInvalidSourceForType
		}
		if txn.Status != domain.TransactionStatusPending {
			return domain.ErrTransactionNotPending
		}

		installments, err := uc.installmentRepo.ListByTransactionForUpdate(ctx, tx, txn.ID)
		if err != nil {
			return err
		}

		if err := uc.installments.synchronizeInTx(ctx, tx, tenant, txn, installments, domain.InstallmentStatusPaid); err != nil {
			return err
		}

		if err := uc.audit(ctx, tx, tenant, domain.AuditActionTransactionSettle, domain.AggregateTypeTransaction, txn.ID, nil, txn); err != nil {
			return err
		}

		settled, err := uc.installmentRepo.ListByTransactionForUpdate(ctx, tx, txn.ID)
		if err != nil {
			return err
		}

		result = &TransactionDetails{Transaction: txn, Installments: settled}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if uc.Metrics != nil {
		uc.Metrics.TransactionsSettled.Inc()
	}

	return result, nil
}

// GetTransaction retrieves a transaction with its installments.
func (uc *TransactionUseCase) GetTransaction(ctx context.Context, tenant domain.Tenant, id string) (*TransactionDetails, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	txn, err := uc.txnRepo.GetByID(ctx, tenant.FamilyID, id)
	if err != nil {
		return nil, err
	}

	installments, err := uc.installmentRepo.ListByTransaction(ctx, txn.ID)
	if err != nil {
		return nil, err
	}

	return &TransactionDetails{Transaction: txn, Installments: installments}, nil
}

// ListTransactions lists live transactions of the family.
func (uc *TransactionUseCase) ListTransactions(ctx context.Context, tenant domain.Tenant, filter TransactionFilter) ([]*domain.Transaction, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	filter.Limit, filter.Offset = domain.ValidatePagination(filter.Limit, filter.Offset)

	return uc.txnRepo.List(ctx, tenant.FamilyID, filter)
}

// populate copies input onto txn, normalizing sign, defaults and links.
func (uc *TransactionUseCase) populate(txn *domain.Transaction, input TransactionInput, now time.Time) error {
	txn.Type = input.Type
	txn.Source = input.Source
	txn.Status = input.Status
	txn.Amount = domain.NormalizeAmount(input.Amount, input.Type)
	txn.InstallmentNumber = input.InstallmentNumber
	txn.AccountID = domain.StringPtr(input.AccountID)
	txn.CreditCardID = domain.StringPtr(input.CreditCardID)
	txn.DestinationAccountID = domain.StringPtr(input.DestinationAccountID)
	txn.CategoryID = domain.StringPtr(input.CategoryID)
	txn.Description = input.Description
	txn.Date = input.Date
	txn.UpdatedAt = now

	if txn.Status == "" {
		txn.Status = domain.TransactionStatusPending
	}
	if txn.InstallmentNumber == 0 {
		txn.InstallmentNumber = 1
	}
	if txn.Date.IsZero() {
		txn.Date = now
	}

	impact, err := txn.Impact()
	if err != nil {
		return err
	}

	switch impact {
	case domain.ImpactTransfer:
		// Transfers settle immediately as one movement.
		txn.Status = domain.TransactionStatusPaid
		txn.InstallmentNumber = 1
		txn.CreditCardID = nil
	case domain.ImpactCreditCard:
		txn.AccountID = nil
		txn.DestinationAccountID = nil
	case domain.ImpactAccount:
		txn.CreditCardID = nil
		txn.DestinationAccountID = nil
	}

	return txn.Validate()
}

func (uc *TransactionUseCase) handlerFor(txn *domain.Transaction) (impactHandler, error) {
	impact, err := txn.Impact()
	if err != nil {
		return nil, err
	}

	handler, ok := uc.handlers[impact]
	if !ok {
		return nil, domain.ErrInvalidSourceForType
	}

	return handler, nil
}

// revertInTx undoes the current impact of txn and removes its installments.
func (uc *TransactionUseCase) revertInTx(ctx context.Context, tx Transaction, tenant domain.Tenant, txn *domain.Transaction) error {
	handler, err := uc.handlerFor(txn)
	if err != nil {
		return err
	}

	installments, err := uc.installmentRepo.ListByTransactionForUpdate(ctx, tx, txn.ID)
	if err != nil {
		return err
	}

	if err := handler.revert(ctx, tx, tenant, txn, installments); err != nil {
		return err
	}

	return uc.installmentRepo.DeleteByTransaction(ctx, tx, txn.ID)
}

// ensureLinks checks that every referenced account or card belongs to the
// family. Accounts are locked in id order.
func (uc *TransactionUseCase) ensureLinks(ctx context.Context, tx Transaction, tenant domain.Tenant, txn *domain.Transaction) error {
	if txn.CreditCardID != nil {
		if _, err := uc.cardRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, *txn.CreditCardID); err != nil {
			return err
		}
	}

	var accountIDs []string
	for _, id := range []*string{txn.AccountID, txn.DestinationAccountID} {
		if id != nil {
			accountIDs = append(accountIDs, *id)
		}
	}
	sort.Strings(accountIDs)

	for _, id := range accountIDs {
		if _, err := uc.accountRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, id); err != nil {
			return err
		}
	}

	return nil
}

func (uc *TransactionUseCase) ensureNoPayments(ctx context.Context, tx Transaction, txnID string) error {
	count, err := uc.paymentRepo.CountPostedByTransaction(ctx, tx, txnID)
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrTransactionHasPayments
	}
	return nil
}

func inputFields(input TransactionInput) map[string]any {
	return map[string]any{
		"type":               string(input.Type),
		"source":             string(input.Source),
		"amount":             input.Amount,
		"installment_number": input.InstallmentNumber,
		"account_id":         input.AccountID,
		"credit_card_id":     input.CreditCardID,
	}
}
