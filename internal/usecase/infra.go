package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/homeledger/internal/domain"
	"github.com/iho/homeledger/internal/infrastructure/metrics"
)

// Infra bundles the collaborators shared by every ledger use case.
// Retrier, Outbox, Audit and Metrics are optional.
type Infra struct {
	TxManager TransactionManager
	Retrier   Retrier
	IDGen     IDGenerator
	Outbox    OutboxRepository
	Audit     AuditRepository
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
	Clock     func() time.Time
}

func (in Infra) now() time.Time {
	if in.Clock != nil {
		return in.Clock().UTC()
	}
	return time.Now().UTC()
}

// inTx runs fn inside one database transaction bounded by
// DefaultTransactionTimeout. The whole unit is re-run when the retrier
// classifies the failure as a transient conflict, so fn must rebuild any
// state it returns.
func (in Infra) inTx(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error {
	attempt := func() error {
		txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
		defer cancel()

		tx, err := in.TxManager.Begin(txCtx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(txCtx) }()

		if err := fn(txCtx, tx); err != nil {
			return err
		}

		return tx.Commit(txCtx)
	}

	if in.Retrier == nil {
		return attempt()
	}

	return in.Retrier.Retry(ctx, attempt)
}

// emit writes an outbox event in the caller's transaction.
func (in Infra) emit(ctx context.Context, tx Transaction, tenant domain.Tenant, aggregateType, aggregateID, eventType string, payload map[string]any) error {
	if in.Outbox == nil {
		return nil
	}

	return in.Outbox.Create(ctx, tx, &domain.OutboxEvent{
		ID:            in.IDGen.Generate(),
		FamilyID:      tenant.FamilyID,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     in.now(),
	})
}

// audit writes an audit row in the caller's transaction.
func (in Infra) audit(ctx context.Context, tx Transaction, tenant domain.Tenant, action domain.AuditAction, resourceType, resourceID string, before, after any) error {
	if in.Audit == nil {
		return nil
	}

	log := &domain.AuditLog{
		ID:           in.IDGen.Generate(),
		FamilyID:     tenant.FamilyID,
		UserID:       tenant.Actor(),
		Action:       string(action),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    in.now(),
	}
	if before != nil {
		log.BeforeState = domain.MarshalState(before)
	}
	if after != nil {
		log.AfterState = domain.MarshalState(after)
	}

	return in.Audit.CreateTx(ctx, tx, log)
}

// observe records duration and failures of one operation. fields carry the
// ids and amounts involved.
func (in Infra) observe(op string, start time.Time, err error, fields map[string]any) {
	if err != nil {
		in.Logger.Error().
			Err(err).
			Str("operation", op).
			Str("kind", domain.KindOf(err).String()).
			Fields(fields).
			Msg("ledger operation failed")
	}

	if in.Metrics == nil {
		return
	}

	in.Metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		in.Metrics.LedgerErrors.WithLabelValues(op, domain.KindOf(err).String()).Inc()
	}
}
