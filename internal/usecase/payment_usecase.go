package usecase

import (
	"context"
	"sort"
	"time"

	"github.com/iho/homeledger/internal/domain"
)

// PaymentUseCase records explicit cash-outs from an account towards an
// invoice or a single transaction, and reverses them.
type PaymentUseCase struct {
	Infra

	paymentRepo     PaymentRepository
	invoiceRepo     InvoiceRepository
	accountRepo     AccountRepository
	txnRepo         TransactionRepository
	installmentRepo InstallmentRepository
	invoices        *InvoiceUseCase
	balance         *BalanceUseCase
}

// NewPaymentUseCase creates a new PaymentUseCase.
func NewPaymentUseCase(
	infra Infra,
	paymentRepo PaymentRepository,
	invoiceRepo InvoiceRepository,
	accountRepo AccountRepository,
	txnRepo TransactionRepository,
	installmentRepo InstallmentRepository,
	invoices *InvoiceUseCase,
	balance *BalanceUseCase,
) *PaymentUseCase {
	return &PaymentUseCase{
		Infra:           infra,
		paymentRepo:     paymentRepo,
		invoiceRepo:     invoiceRepo,
		accountRepo:     accountRepo,
		txnRepo:         txnRepo,
		installmentRepo: installmentRepo,
		invoices:        invoices,
		balance:         balance,
	}
}

// PayInvoiceInput represents a direct invoice payment.
type PayInvoiceInput struct {
	InvoiceID string
	AccountID string
	Amount    int64
	PaidAt    *time.Time
}

// PayTransactionInput represents a payment of one account transaction.
// A nil Amount pays what is still due.
type PayTransactionInput struct {
	TransactionID string
	AccountID     string
	Amount        *int64
	PaidAt        *time.Time
}

// PayInvoice pays amount of an invoice from an account. Unlike
// InvoiceUseCase.ConfirmPayment a partial amount does not roll over: the
// invoice stays PARTIAL until the rest is paid.
func (uc *PaymentUseCase) PayInvoice(ctx context.Context, tenant domain.Tenant, input PayInvoiceInput) (_ *domain.Payment, err error) {
	start := time.Now()
	defer func() {
		uc.observe("payment.pay_invoice", start, err, map[string]any{
			"invoice_id": input.InvoiceID,
			"account_id": input.AccountID,
			"amount":     input.Amount,
		})
	}()

	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	var (
		payment  *domain.Payment
		settled  bool
		invoiced *domain.Invoice
	)

	err = uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		inv, err := uc.invoiceRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, input.InvoiceID)
		if err != nil {
			return err
		}

		account, err := uc.accountRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, input.AccountID)
		if err != nil {
			return err
		}

		if err := validateInvoicePayment(inv, account, input.Amount); err != nil {
			return err
		}

		if _, err := uc.invoices.closeInTx(ctx, tx, tenant, inv); err != nil {
			return err
		}

		payment, err = uc.invoices.settleInTx(ctx, tx, tenant, inv, account.ID, input.Amount, paidAt(input.PaidAt, uc.now()), false)
		if err != nil {
			return err
		}

		settled = inv.Status == domain.InvoiceStatusPaid
		invoiced = inv

		return uc.audit(ctx, tx, tenant, domain.AuditActionPaymentCreate, domain.AggregateTypePayment, payment.ID, nil, payment)
	})
	if err != nil {
		return nil, err
	}

	uc.Logger.Info().
		Str("payment_id", payment.ID).
		Str("invoice_id", invoiced.ID).
		Int64("amount", payment.Amount).
		Str("status", string(invoiced.Status)).
		Msg("invoice payment posted")

	if uc.Metrics != nil {
		outcome := "partial"
		if settled {
			outcome = "full"
		}
		uc.Metrics.InvoicePayments.WithLabelValues(outcome).Inc()
		uc.Metrics.PaymentAmount.Observe(float64(payment.Amount))
	}

	return payment, nil
}

// validateInvoicePayment checks an invoice payment before any mutation.
func validateInvoicePayment(inv *domain.Invoice, account *domain.Account, amount int64) error {
	if inv.Status == domain.InvoiceStatusPaid {
		return domain.ErrInvoiceAlreadyPaid
	}
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if err := account.ValidateDebit(amount); err != nil {
		return err
	}
	if amount > inv.Outstanding() {
		return domain.ErrOverpayment
	}
	return nil
}

// PayTransaction pays a pending account expense in full from an account. The
// unpaid installments are relinked to the paying account and settled; the
// transaction keeps its own account.
func (uc *PaymentUseCase) PayTransaction(ctx context.Context, tenant domain.Tenant, input PayTransactionInput) (_ *domain.Payment, err error) {
	start := time.Now()
	fields := map[string]any{"transaction_id": input.TransactionID, "account_id": input.AccountID}
	defer func() { uc.observe("payment.pay_transaction", start, err, fields) }()

	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	var payment *domain.Payment

	err = uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		txn, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, input.TransactionID)
		if err != nil {
			return err
		}

		installments, err := uc.installmentRepo.ListByTransactionForUpdate(ctx, tx, txn.ID)
		if err != nil {
			return err
		}

		account, err := uc.accountRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, input.AccountID)
		if err != nil {
			return err
		}

		due, err := validateTransactionPayment(txn, installments, account, input.Amount)
		if err != nil {
			return err
		}
		fields["amount"] = due

		before := *txn
		now := uc.now()

		for _, inst := range installments {
			if inst.Status == domain.InstallmentStatusPaid {
				continue
			}
			inst.AccountID = &account.ID
			inst.Status = domain.InstallmentStatusPaid
			inst.UpdatedAt = now
			if err := uc.installmentRepo.Update(ctx, tx, inst); err != nil {
				return err
			}
		}

		if err := uc.balance.ApplyAccountDelta(ctx, tx, tenant, account.ID, -due); err != nil {
			return err
		}

		txn.Status = domain.TransactionStatusPaid
		txn.UpdatedAt = now
		if err := uc.txnRepo.Update(ctx, tx, txn); err != nil {
			return err
		}

		payment = &domain.Payment{
			ID:            uc.IDGen.Generate(),
			FamilyID:      tenant.FamilyID,
			Amount:        due,
			PaidAt:        paidAt(input.PaidAt, now),
			TransactionID: &txn.ID,
			AccountID:     account.ID,
			Status:        domain.PaymentStatusPosted,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := uc.paymentRepo.Create(ctx, tx, payment); err != nil {
			return err
		}

		if err := uc.emit(ctx, tx, tenant, domain.AggregateTypePayment, payment.ID, domain.EventTypePaymentPosted, domain.PaymentEventPayload(payment)); err != nil {
			return err
		}
		if err := uc.emit(ctx, tx, tenant, domain.AggregateTypeTransaction, txn.ID, domain.EventTypeTransactionSettled, domain.TransactionEventPayload(txn)); err != nil {
			return err
		}
		if err := uc.audit(ctx, tx, tenant, domain.AuditActionTransactionSettle, domain.AggregateTypeTransaction, txn.ID, &before, txn); err != nil {
			return err
		}

		return uc.audit(ctx, tx, tenant, domain.AuditActionPaymentCreate, domain.AggregateTypePayment, payment.ID, nil, payment)
	})
	if err != nil {
		return nil, err
	}

	if uc.Metrics != nil {
		uc.Metrics.PaymentAmount.Observe(float64(payment.Amount))
		uc.Metrics.TransactionsSettled.Inc()
	}

	return payment, nil
}

// validateTransactionPayment checks a transaction payment and returns the
// amount still due.
func validateTransactionPayment(txn *domain.Transaction, installments []*domain.Installment, account *domain.Account, amount *int64) (int64, error) {
	impact, err := txn.Impact()
	if err != nil {
		return 0, err
	}
	if impact != domain.ImpactAccount || txn.Type != domain.TransactionTypeExpense {
		return 0, domain.ErrInvalidPaymentTarget
	}
	if txn.Status == domain.TransactionStatusPaid {
		return 0, domain.ErrTransactionAlreadyPaid
	}

	var due int64
	for _, inst := range installments {
		if inst.Status != domain.InstallmentStatusPaid {
			due += inst.Owed()
		}
	}
	if due <= 0 {
		return 0, domain.ErrTransactionAlreadyPaid
	}

	if amount != nil {
		if *amount <= 0 {
			return 0, domain.ErrInvalidAmount
		}
		if *amount != due {
			return 0, domain.ErrPartialPaymentNotSupported
		}
	}

	if err := account.ValidateDebit(due); err != nil {
		return 0, err
	}

	return due, nil
}

// CancelPayment reverses a single posted payment. Invoice payments give back
// the account debit, the freed card limit and any rollover they performed.
// Transaction payments return the settled installments to PENDING.
func (uc *PaymentUseCase) CancelPayment(ctx context.Context, tenant domain.Tenant, paymentID string) (_ *domain.Payment, err error) {
	start := time.Now()
	defer func() { uc.observe("payment.cancel", start, err, map[string]any{"payment_id": paymentID}) }()

	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	var (
		payment *domain.Payment
		target  string
	)

	err = uc.inTx(ctx, func(ctx context.Context, tx Transaction) error {
		p, err := uc.paymentRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, paymentID)
		if err != nil {
			return err
		}
		if !p.IsPosted() {
			return domain.ErrPaymentAlreadyCancelled
		}

		if p.InvoiceID != nil {
			target = "invoice"
			inv, err := uc.invoiceRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, *p.InvoiceID)
			if err != nil {
				return err
			}

			wasPaid := inv.Status == domain.InvoiceStatusPaid
			if err := uc.invoices.reversePaymentInTx(ctx, tx, tenant, inv, p); err != nil {
				return err
			}
			if err := uc.invoices.finishReversalInTx(ctx, tx, tenant, inv, wasPaid); err != nil {
				return err
			}
		} else {
			target = "transaction"
			if err := uc.reverseTransactionPaymentInTx(ctx, tx, tenant, p); err != nil {
				return err
			}
		}

		payment = p

		return nil
	})
	if err != nil {
		return nil, err
	}

	if uc.Metrics != nil {
		uc.Metrics.PaymentsReversed.WithLabelValues(target).Inc()
	}

	return payment, nil
}

// reverseTransactionPaymentInTx returns the installments a transaction
// payment settled, latest first, until the payment amount is restored. They
// go back to PENDING on the transaction's own account.
func (uc *PaymentUseCase) reverseTransactionPaymentInTx(ctx context.Context, tx Transaction, tenant domain.Tenant, p *domain.Payment) error {
	txnID := domain.Deref(p.TransactionID)

	txn, err := uc.txnRepo.GetByIDForUpdate(ctx, tx, tenant.FamilyID, txnID)
	if err != nil {
		return err
	}

	installments, err := uc.installmentRepo.ListByTransactionForUpdate(ctx, tx, txn.ID)
	if err != nil {
		return err
	}
	sort.Slice(installments, func(i, j int) bool { return installments[i].Number > installments[j].Number })

	now := uc.now()
	var restored int64

	for _, inst := range installments {
		if restored >= p.Amount {
			break
		}
		if inst.Status != domain.InstallmentStatusPaid || domain.Deref(inst.AccountID) != p.AccountID {
			continue
		}
		inst.AccountID = txn.AccountID
		inst.Status = domain.InstallmentStatusPending
		inst.UpdatedAt = now
		if err := uc.installmentRepo.Update(ctx, tx, inst); err != nil {
			return err
		}
		restored += inst.Owed()
	}

	if restored != p.Amount {
		uc.Logger.Warn().
			Str("payment_id", p.ID).
			Int64("amount", p.Amount).
			Int64("restored", restored).
			Msg("installments changed since the payment was posted")
	}

	if err := uc.balance.ApplyAccountDelta(ctx, tx, tenant, p.AccountID, p.Amount); err != nil {
		return err
	}

	before := *txn
	txn.Status = domain.TransactionStatusPending
	txn.UpdatedAt = now
	if err := uc.txnRepo.Update(ctx, tx, txn); err != nil {
		return err
	}

	if err := uc.paymentRepo.UpdateStatus(ctx, tx, p.ID, domain.PaymentStatusCancelled, now); err != nil {
		return err
	}
	p.Status = domain.PaymentStatusCancelled
	p.UpdatedAt = now

	if err := uc.emit(ctx, tx, tenant, domain.AggregateTypePayment, p.ID, domain.EventTypePaymentCancelled, domain.PaymentEventPayload(p)); err != nil {
		return err
	}
	if err := uc.audit(ctx, tx, tenant, domain.AuditActionTransactionUpdate, domain.AggregateTypeTransaction, txn.ID, &before, txn); err != nil {
		return err
	}

	return uc.audit(ctx, tx, tenant, domain.AuditActionPaymentCancel, domain.AggregateTypePayment, p.ID, nil, p)
}

// ListPayments lists payments of the family, optionally by invoice or transaction.
func (uc *PaymentUseCase) ListPayments(ctx context.Context, tenant domain.Tenant, filter PaymentFilter) ([]*domain.Payment, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}

	filter.Limit, filter.Offset = domain.ValidatePagination(filter.Limit, filter.Offset)

	return uc.paymentRepo.List(ctx, tenant.FamilyID, filter)
}
