package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/pkg/errors"
)

func (r *invoiceRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Invoice, error) {
	query := `SELECT id, appointment_id, amount, status, issued_at FROM invoices WHERE appointment_id = $1`

	var invoice model.Invoice
	if err := r.db.GetContext(ctx, &invoice, query, appointmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("invoice", err)
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &invoice, nil
}

// CreateTx relies on the unique index on appointment_id: if a concurrent or
// earlier submission already issued an invoice, the insert is a no-op and
// the existing row is returned instead.
func (r *invoiceRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, invoice *model.Invoice) (*model.Invoice, bool, error) {
	query := `
		INSERT INTO invoices (id, appointment_id, amount, status, issued_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (appointment_id) DO NOTHING
		RETURNING id, appointment_id, amount, status, issued_at
	`
	var created model.Invoice
	err := tx.GetContext(ctx, &created, query,
		invoice.ID,
		invoice.AppointmentID,
		invoice.Amount,
		invoice.Status,
		invoice.IssuedAt,
	)
	if err == nil {
		return &created, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("failed to create invoice: %w", err)
	}

	// Conflict path: fetch the invoice that was already there.
	var existing model.Invoice
	err = tx.GetContext(ctx, &existing,
		`SELECT id, appointment_id, amount, status, issued_at FROM invoices WHERE appointment_id = $1`,
		invoice.AppointmentID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load existing invoice: %w", err)
	}
	return &existing, false, nil
}

func (r *invoiceRepository) DeleteByAppointmentTx(ctx context.Context, tx *sqlx.Tx, appointmentID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM invoices WHERE appointment_id = $1`, appointmentID)
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	return nil
}

func (r *invoiceRepository) ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM invoices WHERE appointment_id = $1)`, appointmentID)
	if err != nil {
		return false, fmt.Errorf("failed to check invoice existence: %w", err)
	}
	return exists, nil
}
