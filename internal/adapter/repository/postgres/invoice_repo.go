package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
)

const invoiceColumns = `id, family_id, credit_card_id, period_date, total_amount, carried_over_amount,
	rolled_over_amount, paid_amount, status, created_at, updated_at`

// InvoiceRepository implements usecase.InvoiceRepository.
type InvoiceRepository struct {
	db DBTX
}

// NewInvoiceRepository creates a new InvoiceRepository.
func NewInvoiceRepository(db DBTX) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// GetOrCreate inserts inv unless its card already has an invoice for the
// period, then returns the stored row locked FOR UPDATE.
func (r *InvoiceRepository) GetOrCreate(ctx context.Context, tx usecase.Transaction, inv *domain.Invoice) (*domain.Invoice, error) {
	conn := txConn(tx)

	_, err := conn.Exec(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (credit_card_id, period_date) DO NOTHING`,
		inv.ID, inv.FamilyID, inv.CreditCardID, dateOnly(inv.PeriodDate), inv.TotalAmount, inv.CarriedOverAmount,
		inv.RolledOverAmount, inv.PaidAmount, string(inv.Status), inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	row := conn.QueryRow(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE credit_card_id = $1 AND period_date = $2
		FOR UPDATE`,
		inv.CreditCardID, dateOnly(inv.PeriodDate),
	)
	stored, err := scanInvoice(row)
	if err != nil {
		return nil, notFound(err, domain.ErrInvoiceNotFound)
	}
	return stored, nil
}

// GetByID retrieves an invoice of the family.
func (r *InvoiceRepository) GetByID(ctx context.Context, familyID, id string) (*domain.Invoice, error) {
	row := r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE family_id = $1 AND id = $2`, familyID, id)
	inv, err := scanInvoice(row)
	if err != nil {
		return nil, notFound(err, domain.ErrInvoiceNotFound)
	}
	return inv, nil
}

// GetByIDForUpdate retrieves an invoice with a FOR UPDATE lock.
func (r *InvoiceRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, familyID, id string) (*domain.Invoice, error) {
	row := txConn(tx).QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE family_id = $1 AND id = $2 FOR UPDATE`, familyID, id)
	inv, err := scanInvoice(row)
	if err != nil {
		return nil, notFound(err, domain.ErrInvoiceNotFound)
	}
	return inv, nil
}

// ListByCard lists the invoices of a card, latest period first.
func (r *InvoiceRepository) ListByCard(ctx context.Context, familyID, cardID string, limit, offset int) ([]*domain.Invoice, error) {
	return queryInvoices(ctx, r.db, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE family_id = $1 AND credit_card_id = $2
		ORDER BY period_date DESC
		LIMIT $3 OFFSET $4`,
		familyID, cardID, limit, offset,
	)
}

// ListOpenForUpdate locks every OPEN invoice of the family, oldest period first.
func (r *InvoiceRepository) ListOpenForUpdate(ctx context.Context, tx usecase.Transaction, familyID string) ([]*domain.Invoice, error) {
	return queryInvoices(ctx, txConn(tx), `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE family_id = $1 AND status = 'OPEN'
		ORDER BY period_date, credit_card_id
		FOR UPDATE`,
		familyID,
	)
}

// ListFamiliesWithOpenInvoices returns the families the invoice closer has to visit.
func (r *InvoiceRepository) ListFamiliesWithOpenInvoices(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT family_id FROM invoices WHERE status = 'OPEN' ORDER BY family_id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Update overwrites the amounts and status of an invoice.
func (r *InvoiceRepository) Update(ctx context.Context, tx usecase.Transaction, inv *domain.Invoice) error {
	tag, err := txConn(tx).Exec(ctx, `
		UPDATE invoices SET
			total_amount = $2, carried_over_amount = $3, rolled_over_amount = $4,
			paid_amount = $5, status = $6, updated_at = $7
		WHERE id = $1`,
		inv.ID, inv.TotalAmount, inv.CarriedOverAmount, inv.RolledOverAmount,
		inv.PaidAmount, string(inv.Status), inv.UpdatedAt,
	)
	return expectOne(tag, err, domain.ErrInvoiceNotFound)
}

func queryInvoices(ctx context.Context, db DBTX, sql string, args ...any) ([]*domain.Invoice, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := make([]*domain.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}

	return invoices, rows.Err()
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var (
		inv    domain.Invoice
		status string
	)
	err := row.Scan(
		&inv.ID, &inv.FamilyID, &inv.CreditCardID, &inv.PeriodDate, &inv.TotalAmount, &inv.CarriedOverAmount,
		&inv.RolledOverAmount, &inv.PaidAmount, &status, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Status = domain.InvoiceStatus(status)
	return &inv, nil
}
