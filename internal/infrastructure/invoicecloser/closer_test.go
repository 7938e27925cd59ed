package invoicecloser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/usecase"
	"github.com/iho/homeledger/internal/usecase/mocks"
)

type stubFamilies struct {
	ids []string
	err error
}

func (s stubFamilies) ListFamiliesWithOpenInvoices(ctx context.Context) ([]string, error) {
	return s.ids, s.err
}

type stubCloser struct {
	closed map[string]int
	failed map[string]error
	seen   []domain.Tenant
	at     time.Time
}

func (s *stubCloser) CloseAllExpiredInvoices(ctx context.Context, tenant domain.Tenant, now time.Time) (int, error) {
	s.seen = append(s.seen, tenant)
	s.at = now
	if err := s.failed[tenant.FamilyID]; err != nil {
		return 0, err
	}
	return s.closed[tenant.FamilyID], nil
}

func TestSweepClosesEveryFamily(t *testing.T) {
	closer := &stubCloser{
		closed: map[string]int{"fam-1": 2, "fam-3": 1},
		failed: map[string]error{"fam-2": errors.New("deadlock")},
	}
	w := NewWorker(Config{
		Families: stubFamilies{ids: []string{"fam-1", "fam-2", "fam-3"}},
		Invoices: closer,
		Logger:   zerolog.Nop(),
	})
	now := time.Date(2026, time.March, 11, 3, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	closed, err := w.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, closed)
	assert.Len(t, closer.seen, 3)
	assert.Equal(t, now, closer.at)
}

func TestSweepFamilyListError(t *testing.T) {
	w := NewWorker(Config{
		Families: stubFamilies{err: errors.New("db down")},
		Invoices: &stubCloser{},
		Logger:   zerolog.Nop(),
	})

	_, err := w.Sweep(context.Background())
	assert.EqualError(t, err, "db down")
}

func TestSweepHonoursLock(t *testing.T) {
	tests := []struct {
		name       string
		setup      func(l *mocks.MockLocker)
		wantClosed int
		wantErr    bool
	}{
		{
			name: "acquired",
			setup: func(l *mocks.MockLocker) {
				l.EXPECT().TryLock(gomock.Any(), usecase.InvoiceSweepLockKey, time.Minute).Return(true, nil)
				l.EXPECT().Unlock(gomock.Any(), usecase.InvoiceSweepLockKey).Return(nil)
			},
			wantClosed: 1,
		},
		{
			name: "held elsewhere",
			setup: func(l *mocks.MockLocker) {
				l.EXPECT().TryLock(gomock.Any(), usecase.InvoiceSweepLockKey, time.Minute).Return(false, nil)
			},
		},
		{
			name: "lock error",
			setup: func(l *mocks.MockLocker) {
				l.EXPECT().TryLock(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locker := mocks.NewMockLocker(gomock.NewController(t))
			tt.setup(locker)

			w := NewWorker(Config{
				Families: stubFamilies{ids: []string{"fam-1"}},
				Invoices: &stubCloser{closed: map[string]int{"fam-1": 1}},
				Locker:   locker,
				Logger:   zerolog.Nop(),
				Interval: time.Minute,
			})

			closed, err := w.Sweep(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantClosed, closed)
		})
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	w := NewWorker(Config{
		Families: stubFamilies{},
		Invoices: &stubCloser{},
		Logger:   zerolog.Nop(),
		Interval: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
