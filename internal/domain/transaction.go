package domain

import "time"

// TransactionType is the direction of a money movement.
type TransactionType string

const (
	TransactionTypeExpense  TransactionType = "EXPENSE"
	TransactionTypeIncome   TransactionType = "INCOME"
	TransactionTypeTransfer TransactionType = "TRANSFER"
)

// IsValid reports whether t is a known type.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeExpense, TransactionTypeIncome, TransactionTypeTransfer:
		return true
	}
	return false
}

// Sign is -1 for expenses and +1 otherwise.
func (t TransactionType) Sign() int64 {
	if t == TransactionTypeExpense {
		return -1
	}
	return 1
}

// TransactionSource is where the money comes from.
type TransactionSource string

const (
	TransactionSourceAccount    TransactionSource = "ACCOUNT"
	TransactionSourceCreditCard TransactionSource = "CREDIT_CARD"
)

// IsValid reports whether s is a known source.
func (s TransactionSource) IsValid() bool {
	switch s {
	case TransactionSourceAccount, TransactionSourceCreditCard:
		return true
	}
	return false
}

// TransactionStatus is the settlement state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "PENDING"
	TransactionStatusCleared TransactionStatus = "CLEARED"
	TransactionStatusPaid    TransactionStatus = "PAID"
)

// IsValid reports whether s is a known status.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionStatusPending, TransactionStatusCleared, TransactionStatusPaid:
		return true
	}
	return false
}

// IsSettled reports whether the money already left or reached the account.
func (s TransactionStatus) IsSettled() bool {
	return s == TransactionStatusPaid || s == TransactionStatusCleared
}

// Impact selects how a transaction moves balances.
type Impact int

const (
	ImpactAccount Impact = iota + 1
	ImpactCreditCard
	ImpactTransfer
)

func (i Impact) String() string {
	switch i {
	case ImpactAccount:
		return "account"
	case ImpactCreditCard:
		return "credit_card"
	case ImpactTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// ImpactOf maps a type/source pair to its impact.
func ImpactOf(t TransactionType, s TransactionSource) (Impact, error) {
	if !t.IsValid() {
		return 0, ErrInvalidTransactionType
	}
	if !s.IsValid() {
		return 0, ErrInvalidTransactionSource
	}

	switch {
	case t == TransactionTypeTransfer && s == TransactionSourceAccount:
		return ImpactTransfer, nil
	case t == TransactionTypeTransfer:
		return 0, ErrInvalidSourceForType
	case s == TransactionSourceCreditCard:
		return ImpactCreditCard, nil
	default:
		return ImpactAccount, nil
	}
}

// NormalizeAmount applies the sign convention: expenses negative, income and
// transfers positive magnitude.
func NormalizeAmount(amount int64, t TransactionType) int64 {
	return t.Sign() * Abs(amount)
}

// Transaction is a single user-entered money movement.
type Transaction struct {
	ID                   string
	FamilyID             string
	Type                 TransactionType
	Source               TransactionSource
	Status               TransactionStatus
	Amount               int64
	InstallmentNumber    int
	AccountID            *string
	CreditCardID         *string
	DestinationAccountID *string
	CategoryID           *string
	Description          string
	Date                 time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
	DeletedAt            *time.Time
}

// Impact returns the impact of the transaction.
func (t *Transaction) Impact() (Impact, error) {
	return ImpactOf(t.Type, t.Source)
}

// Validate checks the transaction's type/source combination and linkage.
func (t *Transaction) Validate() error {
	impact, err := t.Impact()
	if err != nil {
		return err
	}

	if t.Amount == 0 {
		return ErrZeroAmount
	}

	if err := ValidateInstallmentCount(t.InstallmentNumber); err != nil {
		return err
	}

	if !t.Status.IsValid() {
		return ErrInvalidTransactionStatus
	}

	switch impact {
	case ImpactTransfer:
		if isBlank(t.AccountID) || isBlank(t.DestinationAccountID) {
			return ErrTransferAccountsRequired
		}
		if *t.AccountID == *t.DestinationAccountID {
			return ErrSameAccount
		}
	case ImpactAccount:
		if isBlank(t.AccountID) {
			return ErrAccountRequired
		}
	case ImpactCreditCard:
		if isBlank(t.CreditCardID) {
			return ErrCreditCardRequired
		}
	}

	return nil
}

// Magnitude returns |amount|.
func (t *Transaction) Magnitude() int64 {
	return Abs(t.Amount)
}

func isBlank(s *string) bool {
	return s == nil || *s == ""
}

// StringPtr returns a pointer to s, or nil for the empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns *s or the empty string.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
