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

const medicalRecordColumns = `
	id, appointment_id, patient_id,
	subjective, objective, assessment, plan,
	diagnosis, treatment, symptoms, notes,
	weight, temperature, heart_rate, respiratory_rate,
	mucous_membranes, capillary_refill,
	created_at, updated_at
`

func (r *medicalRecordRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.MedicalRecord, error) {
	return getRecordByAppointment(ctx, r.db, appointmentID)
}

func (r *medicalRecordRepository) GetByAppointmentTx(ctx context.Context, tx *sqlx.Tx, appointmentID uuid.UUID) (*model.MedicalRecord, error) {
	return getRecordByAppointment(ctx, tx, appointmentID)
}

func getRecordByAppointment(ctx context.Context, q sqlx.QueryerContext, appointmentID uuid.UUID) (*model.MedicalRecord, error) {
	query := `SELECT ` + medicalRecordColumns + ` FROM medical_records WHERE appointment_id = $1`

	var record model.MedicalRecord
	if err := sqlx.GetContext(ctx, q, &record, query, appointmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("medical record", err)
		}
		return nil, fmt.Errorf("failed to get medical record: %w", err)
	}
	return &record, nil
}

func (r *medicalRecordRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, record *model.MedicalRecord) error {
	query := `
		INSERT INTO medical_records (
			id, appointment_id, patient_id,
			subjective, objective, assessment, plan,
			diagnosis, treatment, symptoms, notes,
			weight, temperature, heart_rate, respiratory_rate,
			mucous_membranes, capillary_refill,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19
		)
	`
	_, err := tx.ExecContext(ctx, query,
		record.ID,
		record.AppointmentID,
		record.PatientID,
		record.Subjective,
		record.Objective,
		record.Assessment,
		record.Plan,
		record.Diagnosis,
		record.Treatment,
		record.Symptoms,
		record.Notes,
		record.Weight,
		record.Temperature,
		record.HeartRate,
		record.RespiratoryRate,
		record.MucousMembranes,
		record.CapillaryRefill,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create medical record: %w", err)
	}
	return nil
}

func (r *medicalRecordRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, record *model.MedicalRecord) error {
	query := `
		UPDATE medical_records
		SET subjective = $1, objective = $2, assessment = $3, plan = $4,
			diagnosis = $5, treatment = $6, symptoms = $7, notes = $8,
			weight = $9, temperature = $10, heart_rate = $11,
			respiratory_rate = $12, mucous_membranes = $13,
			capillary_refill = $14, updated_at = $15
		WHERE id = $16
	`
	result, err := tx.ExecContext(ctx, query,
		record.Subjective,
		record.Objective,
		record.Assessment,
		record.Plan,
		record.Diagnosis,
		record.Treatment,
		record.Symptoms,
		record.Notes,
		record.Weight,
		record.Temperature,
		record.HeartRate,
		record.RespiratoryRate,
		record.MucousMembranes,
		record.CapillaryRefill,
		record.UpdatedAt,
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update medical record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("medical record", nil)
	}
	return nil
}

func (r *medicalRecordRepository) DeleteByAppointmentTx(ctx context.Context, tx *sqlx.Tx, appointmentID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM medical_records WHERE appointment_id = $1`, appointmentID)
	if err != nil {
		return fmt.Errorf("failed to delete medical record: %w", err)
	}
	return nil
}

func (r *medicalRecordRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.MedicalRecord, error) {
	query := `SELECT ` + medicalRecordColumns + ` FROM medical_records WHERE patient_id = $1 ORDER BY created_at DESC`

	var records []*model.MedicalRecord
	if err := r.db.SelectContext(ctx, &records, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list medical records by patient: %w", err)
	}
	return records, nil
}

// ListByClient resolves history through patient ownership: every record of
// every patient the client owns, newest first.
func (r *medicalRecordRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*model.MedicalRecord, error) {
	query := `
		SELECT m.id, m.appointment_id, m.patient_id,
			   m.subjective, m.objective, m.assessment, m.plan,
			   m.diagnosis, m.treatment, m.symptoms, m.notes,
			   m.weight, m.temperature, m.heart_rate, m.respiratory_rate,
			   m.mucous_membranes, m.capillary_refill,
			   m.created_at, m.updated_at
		FROM medical_records m
		JOIN patients p ON p.id = m.patient_id
		WHERE p.owner_id = $1
		ORDER BY m.created_at DESC
	`
	var records []*model.MedicalRecord
	if err := r.db.SelectContext(ctx, &records, query, clientID); err != nil {
		return nil, fmt.Errorf("failed to list medical records by client: %w", err)
	}
	return records, nil
}

func (r *medicalRecordRepository) ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM medical_records WHERE appointment_id = $1)`, appointmentID)
	if err != nil {
		return false, fmt.Errorf("failed to check medical record existence: %w", err)
	}
	return exists, nil
}
