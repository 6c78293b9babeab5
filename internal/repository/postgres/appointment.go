package postgres

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/pkg/errors"
)

const appointmentColumns = `
	id, client_id, patient_id, practitioner_id, resource_id,
	start_time, end_time, status, type, reason, notes,
	created_at, updated_at
`

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	var apt model.Appointment
	if err := r.db.GetContext(ctx, &apt, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &apt, nil
}

func (r *appointmentRepository) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1 FOR UPDATE`

	var apt model.Appointment
	if err := tx.GetContext(ctx, &apt, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &apt, nil
}

func (r *appointmentRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, apt *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, client_id, patient_id, practitioner_id, resource_id,
			start_time, end_time, status, type, reason, notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := tx.ExecContext(ctx, query,
		apt.ID,
		apt.ClientID,
		apt.PatientID,
		apt.PractitionerID,
		apt.ResourceID,
		apt.StartTime,
		apt.EndTime,
		apt.Status,
		apt.Type,
		apt.Reason,
		apt.Notes,
		apt.CreatedAt,
		apt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, apt *model.Appointment) error {
	query := `
		UPDATE appointments
		SET client_id = $1, patient_id = $2, practitioner_id = $3, resource_id = $4,
			start_time = $5, end_time = $6, status = $7, type = $8,
			reason = $9, notes = $10, updated_at = $11
		WHERE id = $12
	`
	result, err := tx.ExecContext(ctx, query,
		apt.ClientID,
		apt.PatientID,
		apt.PractitionerID,
		apt.ResourceID,
		apt.StartTime,
		apt.EndTime,
		apt.Status,
		apt.Type,
		apt.Reason,
		apt.Notes,
		apt.UpdatedAt,
		apt.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("appointment", nil)
	}
	return nil
}

func (r *appointmentRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.AppointmentStatus) error {
	query := `UPDATE appointments SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := tx.ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("appointment", nil)
	}
	return nil
}

func (r *appointmentRepository) DeleteTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("appointment", nil)
	}
	return nil
}

func (r *appointmentRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE client_id = $1 ORDER BY start_time ASC`

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, clientID); err != nil {
		return nil, fmt.Errorf("failed to list appointments by client: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE patient_id = $1 ORDER BY start_time ASC`

	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list appointments by patient: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) NextForPractitioner(ctx context.Context, practitionerID uuid.UUID, after time.Time) (*model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE practitioner_id = $1
		AND start_time > $2
		AND status = $3
		ORDER BY start_time ASC
		LIMIT 1
	`
	var apt model.Appointment
	err := r.db.GetContext(ctx, &apt, query, practitionerID, after, model.AppointmentStatusScheduled)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get next appointment: %w", err)
	}
	return &apt, nil
}

// Search matches client name, client phone, patient name or appointment
// reason by case-insensitive substring.
func (r *appointmentRepository) Search(ctx context.Context, query string) ([]*model.Appointment, error) {
	stmt := `
		SELECT a.id, a.client_id, a.patient_id, a.practitioner_id, a.resource_id,
			   a.start_time, a.end_time, a.status, a.type, a.reason, a.notes,
			   a.created_at, a.updated_at
		FROM appointments a
		JOIN clients c ON c.id = a.client_id
		JOIN patients p ON p.id = a.patient_id
		WHERE c.first_name ILIKE $1
		   OR c.last_name ILIKE $1
		   OR c.phone ILIKE $1
		   OR p.name ILIKE $1
		   OR a.reason ILIKE $1
		ORDER BY a.start_time DESC
	`
	var appointments []*model.Appointment
	if err := r.db.SelectContext(ctx, &appointments, stmt, "%"+query+"%"); err != nil {
		return nil, fmt.Errorf("failed to search appointments: %w", err)
	}
	return appointments, nil
}

// LockPractitionerTx serializes conflict-check-and-insert per practitioner
// for the lifetime of the transaction. The lock key is derived from the
// first eight bytes of the practitioner UUID.
func (r *appointmentRepository) LockPractitionerTx(ctx context.Context, tx *sqlx.Tx, practitionerID uuid.UUID) error {
	key := int64(binary.BigEndian.Uint64(practitionerID[:8]))
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, key); err != nil {
		return fmt.Errorf("failed to acquire practitioner lock: %w", err)
	}
	return nil
}

func (r *appointmentRepository) HasConflictTx(ctx context.Context, tx *sqlx.Tx, practitionerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	// Half-open [start, end): back-to-back slots do not conflict.
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE practitioner_id = $1
			AND status <> $2
			AND start_time < $3
			AND end_time > $4
	`
	args := []interface{}{practitionerID, model.AppointmentStatusCancelled, end, start}

	if excludeID != nil {
		query += " AND id <> $5"
		args = append(args, *excludeID)
	}
	query += ")"

	var hasConflict bool
	if err := tx.GetContext(ctx, &hasConflict, query, args...); err != nil {
		return false, fmt.Errorf("failed to check conflicts: %w", err)
	}
	return hasConflict, nil
}
