package domain

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	// Validation errors
	ErrMissingTenant              = errors.New("family context is required")
	ErrInvalidAmount              = errors.New("amount must be positive")
	ErrZeroAmount                 = errors.New("amount must not be zero")
	ErrInvalidTransactionType     = errors.New("invalid transaction type")
	ErrInvalidTransactionSource   = errors.New("invalid transaction source")
	ErrInvalidTransactionStatus   = errors.New("invalid transaction status")
	ErrInvalidInstallmentStatus   = errors.New("invalid installment status")
	ErrInvalidSourceForType       = errors.New("transaction source is not valid for this type")
	ErrInvalidInstallmentCount    = errors.New("installment count must be at least 1")
	ErrInvalidStartMonth          = errors.New("start month must be between 1 and the installment count")
	ErrInvalidUpdateMode          = errors.New("invalid installment update mode")
	ErrAccountRequired            = errors.New("account is required for account transactions")
	ErrCreditCardRequired         = errors.New("credit card is required for credit card transactions")
	ErrTransferAccountsRequired   = errors.New("transfer requires origin and destination accounts")
	ErrSameAccount                = errors.New("cannot transfer to same account")
	ErrInvalidDay                 = errors.New("day must be between 1 and 31")
	ErrNoInstallmentsSelected     = errors.New("no installments selected")
	ErrInvalidPaymentTarget       = errors.New("payment target cannot be paid from an account")
	ErrPartialPaymentNotSupported = errors.New("transactions can only be paid in full")
	ErrSubMinorAmount             = errors.New("amount has more precision than the currency allows")

	// State errors
	ErrInvoiceAlreadyPaid      = errors.New("invoice is already paid")
	ErrTransactionAlreadyPaid  = errors.New("transaction is already paid")
	ErrTransactionPaid         = errors.New("cannot delete a paid transaction")
	ErrTransactionHasPayments  = errors.New("transaction has posted payments")
	ErrInstallmentLocked       = errors.New("installment belongs to a paid invoice")
	ErrOverpayment             = errors.New("payment exceeds the outstanding amount")
	ErrPaymentAlreadyCancelled = errors.New("payment is already cancelled")
	ErrRolloverSettled         = errors.New("rolled over balance was already settled on the next invoice")
	ErrTransactionNotPending   = errors.New("transaction is not pending")
	ErrTransferInstallment     = errors.New("transfer installments can only change through their transaction")
	ErrCardInstallmentSettle   = errors.New("card installments are settled by paying their invoice")

	// Integrity errors
	ErrInconsistentLedger = errors.New("ledger is inconsistent: stored totals disagree with installments")

	// Resource errors
	ErrInsufficientBalance = errors.New("insufficient account balance")

	// Not found errors
	ErrAccountNotFound     = errors.New("account not found")
	ErrCreditCardNotFound  = errors.New("credit card not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInstallmentNotFound = errors.New("installment not found")
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrPaymentNotFound     = errors.New("payment not found")
)

// ErrInstallmentPaid is matched by PaidInstallmentsError.
var ErrInstallmentPaid = errors.New("cannot delete paid installments")

// PaidInstallmentsError reports which installments blocked a deletion.
type PaidInstallmentsError struct {
	Numbers []int
}

func (e *PaidInstallmentsError) Error() string {
	nums := append([]int(nil), e.Numbers...)
	sort.Ints(nums)

	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}

	return fmt.Sprintf("%s: %s", ErrInstallmentPaid, strings.Join(parts, ", "))
}

func (e *PaidInstallmentsError) Unwrap() error {
	return ErrInstallmentPaid
}

// ErrorKind classifies ledger failures for callers.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindState
	KindResource
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindResource:
		return "resource"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

var errorKinds = map[error]ErrorKind{
	ErrMissingTenant:              KindValidation,
	ErrInvalidAmount:              KindValidation,
	ErrZeroAmount:                 KindValidation,
	ErrInvalidTransactionType:     KindValidation,
	ErrInvalidTransactionSource:   KindValidation,
	ErrInvalidTransactionStatus:   KindValidation,
	ErrInvalidInstallmentStatus:   KindValidation,
	ErrInvalidSourceForType:       KindValidation,
	ErrInvalidInstallmentCount:    KindValidation,
	ErrInvalidStartMonth:          KindValidation,
	ErrInvalidUpdateMode:          KindValidation,
	ErrAccountRequired:            KindValidation,
	ErrCreditCardRequired:         KindValidation,
	ErrTransferAccountsRequired:   KindValidation,
	ErrSameAccount:                KindValidation,
	ErrInvalidDay:                 KindValidation,
	ErrNoInstallmentsSelected:     KindValidation,
	ErrInvalidPaymentTarget:       KindValidation,
	ErrPartialPaymentNotSupported: KindValidation,
	ErrSubMinorAmount:             KindValidation,
	ErrInvalidAccountName:         KindValidation,
	ErrInvalidCardDigits:          KindValidation,
	ErrInvalidLimit:               KindValidation,

	ErrInvoiceAlreadyPaid:      KindState,
	ErrTransactionAlreadyPaid:  KindState,
	ErrTransactionPaid:         KindState,
	ErrTransactionHasPayments:  KindState,
	ErrInstallmentLocked:       KindState,
	ErrInstallmentPaid:         KindState,
	ErrOverpayment:             KindState,
	ErrPaymentAlreadyCancelled: KindState,
	ErrRolloverSettled:         KindState,
	ErrTransactionNotPending:   KindState,
	ErrTransferInstallment:     KindState,
	ErrCardInstallmentSettle:   KindState,

	ErrInsufficientBalance: KindResource,

	ErrAccountNotFound:     KindNotFound,
	ErrCreditCardNotFound:  KindNotFound,
	ErrTransactionNotFound: KindNotFound,
	ErrInstallmentNotFound: KindNotFound,
	ErrInvoiceNotFound:     KindNotFound,
	ErrPaymentNotFound:     KindNotFound,
}

// KindOf classifies err by the ledger sentinel it wraps.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindInternal
	}

	var paid *PaidInstallmentsError
	if errors.As(err, &paid) {
		return KindState
	}

	for sentinel, kind := range errorKinds {
		if errors.Is(err, sentinel) {
			return kind
		}
	}

	return KindInternal
}
