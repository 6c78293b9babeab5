package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iosifidis/msc-pims/internal/model"
)

// TxRunner executes a function within a database transaction. The read-then-
// write flows of the scheduling core (conflict check + insert, record upsert
// + status flip + invoice check-and-create) must run through it so concurrent
// requests for the same practitioner slot or appointment serialize properly.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// All repository interfaces in one file
type (
	AppointmentRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// GetForUpdateTx loads the row with FOR UPDATE so lifecycle decisions
		// are made against a stable snapshot.
		GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Appointment, error)
		CreateTx(ctx context.Context, tx *sqlx.Tx, apt *model.Appointment) error
		UpdateTx(ctx context.Context, tx *sqlx.Tx, apt *model.Appointment) error
		UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.AppointmentStatus) error
		DeleteTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error
		ListByClient(ctx context.Context, clientID uuid.UUID) ([]*model.Appointment, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error)
		// NextForPractitioner returns the practitioner's earliest appointment
		// starting strictly after the given instant, or NotFound.
		NextForPractitioner(ctx context.Context, practitionerID uuid.UUID, after time.Time) (*model.Appointment, error)
		Search(ctx context.Context, query string) ([]*model.Appointment, error)
		// LockPractitionerTx takes a transaction-scoped advisory lock keyed by
		// the practitioner so conflict check and insert serialize per vet.
		LockPractitionerTx(ctx context.Context, tx *sqlx.Tx, practitionerID uuid.UUID) error
		// HasConflictTx reports an overlapping non-cancelled booking for the
		// practitioner over the half-open window [start, end), optionally
		// excluding one appointment id.
		HasConflictTx(ctx context.Context, tx *sqlx.Tx, practitionerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)
	}

	MedicalRecordRepository interface {
		GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.MedicalRecord, error)
		GetByAppointmentTx(ctx context.Context, tx *sqlx.Tx, appointmentID uuid.UUID) (*model.MedicalRecord, error)
		CreateTx(ctx context.Context, tx *sqlx.Tx, record *model.MedicalRecord) error
		UpdateTx(ctx context.Context, tx *sqlx.Tx, record *model.MedicalRecord) error
		DeleteByAppointmentTx(ctx context.Context, tx *sqlx.Tx, appointmentID uuid.UUID) error
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.MedicalRecord, error)
		ListByClient(ctx context.Context, clientID uuid.UUID) ([]*model.MedicalRecord, error)
		ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error)
	}

	InvoiceRepository interface {
		GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Invoice, error)
		// CreateTx inserts the invoice unless one already exists for the
		// appointment, in which case the existing invoice is returned
		// untouched. The second return value reports whether a row was
		// actually inserted.
		CreateTx(ctx context.Context, tx *sqlx.Tx, invoice *model.Invoice) (*model.Invoice, bool, error)
		DeleteByAppointmentTx(ctx context.Context, tx *sqlx.Tx, appointmentID uuid.UUID) error
		ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error)
	}

	// DirectoryRepository is the read-only collaborator contract for master
	// data the core references but does not own.
	DirectoryRepository interface {
		GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error)
		GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetPractitioner(ctx context.Context, id uuid.UUID) (*model.Practitioner, error)
		GetResource(ctx context.Context, id uuid.UUID) (*model.Resource, error)
	}

	OutboxRepository interface {
		CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error
		GetPendingWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
