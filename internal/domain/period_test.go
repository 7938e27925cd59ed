package domain

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriodOf(t *testing.T) {
	got := PeriodOf(time.Date(2026, time.March, 17, 15, 4, 5, 0, time.UTC))
	if !got.Equal(date(2026, time.March, 1)) {
		t.Fatalf("expected 2026-03-01, got %s", got)
	}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		n    int
		want time.Time
	}{
		{"plain", date(2026, time.January, 10), 1, date(2026, time.February, 10)},
		{"clamps to month end", date(2026, time.January, 31), 1, date(2026, time.February, 28)},
		{"leap year", date(2028, time.January, 31), 1, date(2028, time.February, 29)},
		{"crosses year", date(2026, time.November, 30), 3, date(2027, time.February, 28)},
		{"negative", date(2026, time.March, 31), -1, date(2026, time.February, 28)},
		{"zero", date(2026, time.March, 31), 0, date(2026, time.March, 31)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AddMonths(tt.in, tt.n); !got.Equal(tt.want) {
				t.Fatalf("AddMonths(%s, %d) = %s, want %s", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestInvoice_IsExpired(t *testing.T) {
	inv := &Invoice{PeriodDate: date(2026, time.February, 1)}

	if inv.IsExpired(10, date(2026, time.February, 9)) {
		t.Fatal("invoice should still be open before the closing day")
	}
	if !inv.IsExpired(10, time.Date(2026, time.February, 10, 8, 0, 0, 0, time.UTC)) {
		t.Fatal("invoice should close on the closing day")
	}
	if !inv.IsExpired(31, date(2026, time.February, 28)) {
		t.Fatal("closing day 31 clamps to the last day of February")
	}
	if !inv.IsExpired(10, date(2026, time.April, 1)) {
		t.Fatal("past periods are always expired")
	}
}
