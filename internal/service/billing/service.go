package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/internal/repository"
)

// Service derives invoices from completed clinical work. It never updates or
// deletes an invoice: once issued, an invoice is immutable here.
type Service struct {
	invoices repository.InvoiceRepository
	outbox   repository.OutboxRepository

	now func() time.Time
}

func NewService(invoices repository.InvoiceRepository, outbox repository.OutboxRepository) *Service {
	return &Service{
		invoices: invoices,
		outbox:   outbox,
		now:      time.Now,
	}
}

// MaybeGenerateInvoiceTx issues an invoice for the appointment when cost is
// strictly positive and none exists yet. A nil, zero or negative cost is a
// no-op; an existing invoice is returned unchanged so repeated submissions
// stay idempotent. Runs inside the caller's transaction.
func (s *Service) MaybeGenerateInvoiceTx(ctx context.Context, tx *sqlx.Tx, appointmentID uuid.UUID, cost *float64) (*model.Invoice, error) {
	if cost == nil || *cost <= 0 {
		return nil, nil
	}

	invoice := &model.Invoice{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		Amount:        *cost,
		Status:        model.InvoiceStatusPaid,
		IssuedAt:      s.now().UTC(),
	}

	persisted, created, err := s.invoices.CreateTx(ctx, tx, invoice)
	if err != nil {
		return nil, fmt.Errorf("failed to generate invoice: %w", err)
	}

	if created {
		event, err := model.NewOutboxEvent(model.EventInvoiceIssued, persisted)
		if err != nil {
			return nil, fmt.Errorf("failed to build outbox event: %w", err)
		}
		if err := s.outbox.CreateTx(ctx, tx, event); err != nil {
			return nil, err
		}
	}
	return persisted, nil
}

func (s *Service) GetInvoiceByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Invoice, error) {
	return s.invoices.GetByAppointment(ctx, appointmentID)
}
