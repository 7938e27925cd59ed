package domain

import "testing"

func TestInvoice_Outstanding(t *testing.T) {
	inv := &Invoice{TotalAmount: 3000, PaidAmount: 1000, RolledOverAmount: 500}
	if got := inv.Outstanding(); got != 1500 {
		t.Fatalf("expected outstanding 1500, got %d", got)
	}
}

func TestInvoice_ExpectedTotal(t *testing.T) {
	inv := &Invoice{CarriedOverAmount: 700}
	installments := []*Installment{{Amount: -1000}, {Amount: -334}, {Amount: 200}}

	if got := inv.ExpectedTotal(installments); got != 700+1000+334+200 {
		t.Fatalf("unexpected expected total %d", got)
	}
}

func TestInvoice_HasSettlements(t *testing.T) {
	tests := []struct {
		name string
		inv  Invoice
		want bool
	}{
		{"untouched", Invoice{TotalAmount: 1000, Status: InvoiceStatusOpen}, false},
		{"closed", Invoice{TotalAmount: 1000, Status: InvoiceStatusClosed}, false},
		{"partially paid", Invoice{TotalAmount: 1000, PaidAmount: 400, Status: InvoiceStatusPartial}, true},
		{"rolled over", Invoice{TotalAmount: 1000, RolledOverAmount: 600}, true},
		{"paid", Invoice{Status: InvoiceStatusPaid}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inv.HasSettlements(); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestInvoice_SettlementStatus(t *testing.T) {
	tests := []struct {
		name string
		inv  Invoice
		want InvoiceStatus
	}{
		{"no payments", Invoice{TotalAmount: 1000}, InvoiceStatusClosed},
		{"fully paid", Invoice{TotalAmount: 1000, PaidAmount: 1000}, InvoiceStatusPaid},
		{"partially paid", Invoice{TotalAmount: 1000, PaidAmount: 400}, InvoiceStatusPartial},
		{"rolled over", Invoice{TotalAmount: 1000, PaidAmount: 400, RolledOverAmount: 600}, InvoiceStatusPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inv.SettlementStatus(); got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
