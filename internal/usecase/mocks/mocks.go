package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
)

// Store is an in-memory ledger database. Begin snapshots the whole state and
// Rollback restores it, so a failed use case leaves no trace. Repositories
// hand out copies; changes only land through their write methods.
type Store struct {
	mu       sync.Mutex
	state    *state
	snapshot *state

	BeginFunc func(ctx context.Context) (usecase.Transaction, error)

	Accounts     *AccountRepo
	Cards        *CreditCardRepo
	Transactions *TransactionRepo
	Installments *InstallmentRepo
	Invoices     *InvoiceRepo
	Payments     *PaymentRepo
	Outbox       *OutboxRepo
	Audit        *AuditRepo
	Ledger       *LedgerRepo
}

type state struct {
	accounts     map[string]domain.Account
	cards        map[string]domain.CreditCard
	transactions map[string]domain.Transaction
	installments map[string]domain.Installment
	invoices     map[string]domain.Invoice
	payments     map[string]domain.Payment
	outbox       []domain.OutboxEvent
	audit        []domain.AuditLog
}

func newState() *state {
	return &state{
		accounts:     make(map[string]domain.Account),
		cards:        make(map[string]domain.CreditCard),
		transactions: make(map[string]domain.Transaction),
		installments: make(map[string]domain.Installment),
		invoices:     make(map[string]domain.Invoice),
		payments:     make(map[string]domain.Payment),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.cards {
		c.cards[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.installments {
		c.installments[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	c.outbox = append([]domain.OutboxEvent(nil), s.outbox...)
	c.audit = append([]domain.AuditLog(nil), s.audit...)
	return c
}

// NewStore creates an empty Store.
func NewStore() *Store {
	s := &Store{state: newState()}
	s.Accounts = &AccountRepo{s: s}
	s.Cards = &CreditCardRepo{s: s}
	s.Transactions = &TransactionRepo{s: s}
	s.Installments = &InstallmentRepo{s: s}
	s.Invoices = &InvoiceRepo{s: s}
	s.Payments = &PaymentRepo{s: s}
	s.Outbox = &OutboxRepo{s: s}
	s.Audit = &AuditRepo{s: s}
	s.Ledger = &LedgerRepo{s: s}
	return s
}

// Begin implements usecase.TransactionManager.
func (s *Store) Begin(ctx context.Context) (usecase.Transaction, error) {
	if s.BeginFunc != nil {
		return s.BeginFunc(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = s.state.clone()
	return &memTx{s: s}, nil
}

type memTx struct {
	s    *Store
	done bool
}

func (t *memTx) Commit(ctx context.Context) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.snapshot = nil
	t.done = true
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.done {
		return nil
	}
	if t.s.snapshot != nil {
		t.s.state = t.s.snapshot
		t.s.snapshot = nil
	}
	t.done = true
	return nil
}

// AddAccount seeds an account.
func (s *Store) AddAccount(a *domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.accounts[a.ID] = *a
}

// AddCard seeds a credit card.
func (s *Store) AddCard(c *domain.CreditCard) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.cards[c.ID] = *c
}

// Account returns the stored account or nil.
func (s *Store) Account(id string) *domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.state.accounts[id]
	if !ok {
		return nil
	}
	return &a
}

// Card returns the stored card or nil.
func (s *Store) Card(id string) *domain.CreditCard {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.state.cards[id]
	if !ok {
		return nil
	}
	return &c
}

// Transaction returns the stored transaction, soft-deleted or not, or nil.
func (s *Store) Transaction(id string) *domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.state.transactions[id]
	if !ok {
		return nil
	}
	return &t
}

// InstallmentsOf returns a transaction's installments ordered by number.
func (s *Store) InstallmentsOf(txnID string) []*domain.Installment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.installmentsWhere(func(i domain.Installment) bool { return i.TransactionID == txnID })
}

// Invoice returns the stored invoice or nil.
func (s *Store) Invoice(id string) *domain.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.state.invoices[id]
	if !ok {
		return nil
	}
	return &inv
}

// InvoiceFor returns the invoice of cardID for the month containing date, or nil.
func (s *Store) InvoiceFor(cardID string, date time.Time) *domain.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	period := domain.PeriodOf(date)
	for _, inv := range s.state.invoices {
		if inv.CreditCardID == cardID && inv.PeriodDate.Equal(period) {
			return &inv
		}
	}
	return nil
}

// Payment returns the stored payment or nil.
func (s *Store) Payment(id string) *domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.payments[id]
	if !ok {
		return nil
	}
	return &p
}

// EventTypes returns the outbox event types in write order.
func (s *Store) EventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, 0, len(s.state.outbox))
	for _, e := range s.state.outbox {
		types = append(types, e.EventType)
	}
	return types
}

// AuditActions returns the audited actions in write order.
func (s *Store) AuditActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := make([]string, 0, len(s.state.audit))
	for _, l := range s.state.audit {
		actions = append(actions, l.Action)
	}
	return actions
}

func (s *Store) installmentsWhere(match func(domain.Installment) bool) []*domain.Installment {
	var out []*domain.Installment
	for _, inst := range s.state.installments {
		if match(inst) {
			c := inst
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TransactionID != out[j].TransactionID {
			return out[i].TransactionID < out[j].TransactionID
		}
		return out[i].Number < out[j].Number
	})
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// AccountRepo is an in-memory usecase.AccountRepository.
type AccountRepo struct {
	s *Store

	ApplyDeltaFunc func(ctx context.Context, tx usecase.Transaction, familyID, id string, delta int64, updatedAt time.Time) error
}

func (r *AccountRepo) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.state.accounts[account.ID] = *account
	return nil
}

func (r *AccountRepo) GetByID(ctx context.Context, familyID, id string) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.state.accounts[id]
	if !ok || a.FamilyID != familyID {
		return nil, domain.ErrAccountNotFound
	}
	return &a, nil
}

func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, familyID, id string) (*domain.Account, error) {
	return r.GetByID(ctx, familyID, id)
}

func (r *AccountRepo) ApplyDelta(ctx context.Context, tx usecase.Transaction, familyID, id string, delta int64, updatedAt time.Time) error {
	if r.ApplyDeltaFunc != nil {
		return r.ApplyDeltaFunc(ctx, tx, familyID, id, delta, updatedAt)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.state.accounts[id]
	if !ok || a.FamilyID != familyID {
		return domain.ErrAccountNotFound
	}
	a.Balance += delta
	a.UpdatedAt = updatedAt
	r.s.state.accounts[id] = a
	return nil
}

func (r *AccountRepo) List(ctx context.Context, familyID string, limit, offset int) ([]*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Account
	for _, a := range r.s.state.accounts {
		if a.FamilyID == familyID {
			c := a
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, offset), nil
}

// CreditCardRepo is an in-memory usecase.CreditCardRepository.
type CreditCardRepo struct {
	s *Store
}

func (r *CreditCardRepo) Create(ctx context.Context, tx usecase.Transaction, card *domain.CreditCard) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.state.cards[card.ID] = *card
	return nil
}

func (r *CreditCardRepo) GetByID(ctx context.Context, familyID, id string) (*domain.CreditCard, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.state.cards[id]
	if !ok || c.FamilyID != familyID {
		return nil, domain.ErrCreditCardNotFound
	}
	return &c, nil
}

func (r *CreditCardRepo) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, familyID, id string) (*domain.CreditCard, error) {
	return r.GetByID(ctx, familyID, id)
}

func (r *CreditCardRepo) ApplyUsedDelta(ctx context.Context, tx usecase.Transaction, familyID, id string, delta int64, updatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.state.cards[id]
	if !ok || c.FamilyID != familyID {
		return domain.ErrCreditCardNotFound
	}
	c.Used += delta
	c.UpdatedAt = updatedAt
	r.s.state.cards[id] = c
	return nil
}

func (r *CreditCardRepo) List(ctx context.Context, familyID string, limit, offset int) ([]*domain.CreditCard, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.CreditCard
	for _, c := range r.s.state.cards {
		if c.FamilyID == familyID {
			cc := c
			out = append(out, &cc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, offset), nil
}

// TransactionRepo is an in-memory usecase.TransactionRepository.
type TransactionRepo struct {
	s *Store

	CreateFunc func(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error
}

func (r *TransactionRepo) Create(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, txn)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.state.transactions[txn.ID] = *txn
	return nil
}

func (r *TransactionRepo) GetByID(ctx context.Context, familyID, id string) (*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.state.transactions[id]
	if !ok || t.FamilyID != familyID || t.DeletedAt != nil {
		return nil, domain.ErrTransactionNotFound
	}
	return &t, nil
}

func (r *TransactionRepo) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, familyID, id string) (*domain.Transaction, error) {
	return r.GetByID(ctx, familyID, id)
}

func (r *TransactionRepo) Update(ctx context.Context, tx usecase.Transaction, txn *domain.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.transactions[txn.ID]; !ok {
		return domain.ErrTransactionNotFound
	}
	r.s.state.transactions[txn.ID] = *txn
	return nil
}

func (r *TransactionRepo) SoftDelete(ctx context.Context, tx usecase.Transaction, familyID, id string, deletedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.state.transactions[id]
	if !ok || t.FamilyID != familyID || t.DeletedAt != nil {
		return domain.ErrTransactionNotFound
	}
	t.DeletedAt = &deletedAt
	t.UpdatedAt = deletedAt
	r.s.state.transactions[id] = t
	return nil
}

func (r *TransactionRepo) List(ctx context.Context, familyID string, filter usecase.TransactionFilter) ([]*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Transaction
	for _, t := range r.s.state.transactions {
		if t.FamilyID != familyID || t.DeletedAt != nil {
			continue
		}
		if filter.AccountID != "" && domain.Deref(t.AccountID) != filter.AccountID && domain.Deref(t.DestinationAccountID) != filter.AccountID {
			continue
		}
		if filter.CreditCardID != "" && domain.Deref(t.CreditCardID) != filter.CreditCardID {
			continue
		}
		c := t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, filter.Limit, filter.Offset), nil
}

// InstallmentRepo is an in-memory usecase.InstallmentRepository.
type InstallmentRepo struct {
	s *Store
}

func (r *InstallmentRepo) Create(ctx context.Context, tx usecase.Transaction, inst *domain.Installment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.state.installments {
		if other.TransactionID == inst.TransactionID && other.Number == inst.Number {
			return fmt.Errorf("installment %d of transaction %s already exists", inst.Number, inst.TransactionID)
		}
	}
	r.s.state.installments[inst.ID] = *inst
	return nil
}

func (r *InstallmentRepo) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, familyID string, ids []string) ([]*domain.Installment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Installment
	for _, id := range ids {
		inst, ok := r.s.state.installments[id]
		if !ok {
			continue
		}
		t, ok := r.s.state.transactions[inst.TransactionID]
		if !ok || t.FamilyID != familyID || t.DeletedAt != nil {
			continue
		}
		c := inst
		out = append(out, &c)
	}
	return out, nil
}

func (r *InstallmentRepo) ListByTransaction(ctx context.Context, transactionID string) ([]*domain.Installment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.installmentsWhere(func(i domain.Installment) bool { return i.TransactionID == transactionID }), nil
}

func (r *InstallmentRepo) ListByTransactionForUpdate(ctx context.Context, tx usecase.Transaction, transactionID string) ([]*domain.Installment, error) {
	return r.ListByTransaction(ctx, transactionID)
}

func (r *InstallmentRepo) ListByInvoiceForUpdate(ctx context.Context, tx usecase.Transaction, invoiceID string) ([]*domain.Installment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.installmentsWhere(func(i domain.Installment) bool { return domain.Deref(i.InvoiceID) == invoiceID }), nil
}

func (r *InstallmentRepo) Update(ctx context.Context, tx usecase.Transaction, inst *domain.Installment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.installments[inst.ID]; !ok {
		return domain.ErrInstallmentNotFound
	}
	r.s.state.installments[inst.ID] = *inst
	return nil
}

func (r *InstallmentRepo) Delete(ctx context.Context, tx usecase.Transaction, ids []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, id := range ids {
		delete(r.s.state.installments, id)
	}
	return nil
}

func (r *InstallmentRepo) DeleteByTransaction(ctx context.Context, tx usecase.Transaction, transactionID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, inst := range r.s.state.installments {
		if inst.TransactionID == transactionID {
			delete(r.s.state.installments, id)
		}
	}
	return nil
}

// InvoiceRepo is an in-memory usecase.InvoiceRepository.
type InvoiceRepo struct {
	s *Store
}

func (r *InvoiceRepo) GetOrCreate(ctx context.Context, tx usecase.Transaction, inv *domain.Invoice) (*domain.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.state.invoices {
		if existing.FamilyID == inv.FamilyID && existing.CreditCardID == inv.CreditCardID && existing.PeriodDate.Equal(inv.PeriodDate) {
			c := existing
			return &c, nil
		}
	}
	r.s.state.invoices[inv.ID] = *inv
	c := *inv
	return &c, nil
}

func (r *InvoiceRepo) GetByID(ctx context.Context, familyID, id string) (*domain.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.state.invoices[id]
	if !ok || inv.FamilyID != familyID {
		return nil, domain.ErrInvoiceNotFound
	}
	return &inv, nil
}

func (r *InvoiceRepo) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, familyID, id string) (*domain.Invoice, error) {
	return r.GetByID(ctx, familyID, id)
}

func (r *InvoiceRepo) ListByCard(ctx context.Context, familyID, cardID string, limit, offset int) ([]*domain.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Invoice
	for _, inv := range r.s.state.invoices {
		if inv.FamilyID == familyID && inv.CreditCardID == cardID {
			c := inv
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodDate.After(out[j].PeriodDate) })
	return page(out, limit, offset), nil
}

func (r *InvoiceRepo) ListOpenForUpdate(ctx context.Context, tx usecase.Transaction, familyID string) ([]*domain.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Invoice
	for _, inv := range r.s.state.invoices {
		if inv.FamilyID == familyID && inv.Status == domain.InvoiceStatusOpen {
			c := inv
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodDate.Before(out[j].PeriodDate) })
	return out, nil
}

func (r *InvoiceRepo) ListFamiliesWithOpenInvoices(ctx context.Context) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, inv := range r.s.state.invoices {
		if inv.Status == domain.InvoiceStatusOpen && !seen[inv.FamilyID] {
			seen[inv.FamilyID] = true
			out = append(out, inv.FamilyID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *InvoiceRepo) Update(ctx context.Context, tx usecase.Transaction, inv *domain.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.invoices[inv.ID]; !ok {
		return domain.ErrInvoiceNotFound
	}
	r.s.state.invoices[inv.ID] = *inv
	return nil
}

// PaymentRepo is an in-memory usecase.PaymentRepository.
type PaymentRepo struct {
	s *Store

	CreateFunc func(ctx context.Context, tx usecase.Transaction, payment *domain.Payment) error
}

func (r *PaymentRepo) Create(ctx context.Context, tx usecase.Transaction, payment *domain.Payment) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, payment)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.state.payments[payment.ID] = *payment
	return nil
}

func (r *PaymentRepo) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, familyID, id string) (*domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.state.payments[id]
	if !ok || p.FamilyID != familyID {
		return nil, domain.ErrPaymentNotFound
	}
	return &p, nil
}

func (r *PaymentRepo) ListPostedByInvoiceForUpdate(ctx context.Context, tx usecase.Transaction, invoiceID string) ([]*domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Payment
	for _, p := range r.s.state.payments {
		if domain.Deref(p.InvoiceID) == invoiceID && p.IsPosted() {
			c := p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *PaymentRepo) CountPostedByTransaction(ctx context.Context, tx usecase.Transaction, transactionID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int
	for _, p := range r.s.state.payments {
		if domain.Deref(p.TransactionID) == transactionID && p.IsPosted() {
			n++
		}
	}
	return n, nil
}

func (r *PaymentRepo) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, status domain.PaymentStatus, updatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.state.payments[id]
	if !ok {
		return domain.ErrPaymentNotFound
	}
	p.Status = status
	p.UpdatedAt = updatedAt
	r.s.state.payments[id] = p
	return nil
}

func (r *PaymentRepo) List(ctx context.Context, familyID string, filter usecase.PaymentFilter) ([]*domain.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.Payment
	for _, p := range r.s.state.payments {
		if p.FamilyID != familyID {
			continue
		}
		if filter.InvoiceID != "" && domain.Deref(p.InvoiceID) != filter.InvoiceID {
			continue
		}
		if filter.TransactionID != "" && domain.Deref(p.TransactionID) != filter.TransactionID {
			continue
		}
		c := p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, filter.Limit, filter.Offset), nil
}

// OutboxRepo is an in-memory usecase.OutboxRepository.
type OutboxRepo struct {
	s *Store
}

func (r *OutboxRepo) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.state.outbox = append(r.s.state.outbox, *event)
	return nil
}

func (r *OutboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.OutboxEvent
	for _, e := range r.s.state.outbox {
		if e.Published {
			continue
		}
		c := e
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepo) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.state.outbox {
		if r.s.state.outbox[i].ID == id {
			r.s.state.outbox[i].Published = true
			r.s.state.outbox[i].PublishedAt = &publishedAt
		}
	}
	return nil
}

func (r *OutboxRepo) DeletePublished(ctx context.Context, before time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.state.outbox[:0]
	for _, e := range r.s.state.outbox {
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	r.s.state.outbox = kept
	return nil
}

// AuditRepo is an in-memory usecase.AuditRepository.
type AuditRepo struct {
	s *Store
}

func (r *AuditRepo) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.state.audit = append(r.s.state.audit, *log)
	return nil
}

// LedgerRepo is an in-memory usecase.LedgerRepository.
type LedgerRepo struct {
	s *Store
}

func (r *LedgerRepo) InvoiceTotalMismatches(ctx context.Context, familyID string) ([]usecase.InvoiceMismatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []usecase.InvoiceMismatch
	for _, inv := range r.s.state.invoices {
		if inv.FamilyID != familyID {
			continue
		}
		linked := r.s.installmentsWhere(func(i domain.Installment) bool { return domain.Deref(i.InvoiceID) == inv.ID })
		if expected := inv.ExpectedTotal(linked); expected != inv.TotalAmount {
			out = append(out, usecase.InvoiceMismatch{InvoiceID: inv.ID, Recorded: inv.TotalAmount, Expected: expected})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvoiceID < out[j].InvoiceID })
	return out, nil
}

func (r *LedgerRepo) TransactionSumMismatches(ctx context.Context, familyID string) ([]usecase.TransactionMismatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []usecase.TransactionMismatch
	for _, t := range r.s.state.transactions {
		if t.FamilyID != familyID || t.DeletedAt != nil {
			continue
		}
		sum := domain.SumAmounts(r.s.installmentsWhere(func(i domain.Installment) bool { return i.TransactionID == t.ID }))
		expected := t.Amount
		if t.Type == domain.TransactionTypeTransfer {
			expected = 0
		}
		if sum != expected {
			out = append(out, usecase.TransactionMismatch{TransactionID: t.ID, Recorded: t.Amount, Installments: sum})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionID < out[j].TransactionID })
	return out, nil
}

func (r *LedgerRepo) CardUsedMismatches(ctx context.Context, familyID string) ([]usecase.CardMismatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []usecase.CardMismatch
	for _, c := range r.s.state.cards {
		if c.FamilyID != familyID {
			continue
		}
		var expected int64
		for _, inv := range r.s.state.invoices {
			if inv.CreditCardID == c.ID {
				expected += inv.Outstanding()
			}
		}
		if expected != c.Used {
			out = append(out, usecase.CardMismatch{CreditCardID: c.ID, Recorded: c.Used, Expected: expected})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreditCardID < out[j].CreditCardID })
	return out, nil
}

// SequentialIDGenerator returns ids that sort in creation order.
type SequentialIDGenerator struct {
	mu      sync.Mutex
	counter int
}

func NewSequentialIDGenerator() *SequentialIDGenerator {
	return &SequentialIDGenerator{}
}

func (g *SequentialIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counter++
	return fmt.Sprintf("id-%05d", g.counter)
}
