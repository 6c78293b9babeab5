package clinical

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/internal/repository"
	"github.com/iosifidis/msc-pims/internal/service/billing"
	"github.com/iosifidis/msc-pims/pkg/errors"
)

// Service owns clinical documentation and its side effects on the ledger.
// Submitting findings is an upsert keyed by appointment id; the first save
// and every later one force the appointment to COMPLETED and, given a
// positive cost, hand off to billing. The whole submission commits or rolls
// back as one unit.
type Service struct {
	appointments repository.AppointmentRepository
	records      repository.MedicalRecordRepository
	billing      *billing.Service
	outbox       repository.OutboxRepository
	tx           repository.TxRunner

	now func() time.Time
}

func NewService(
	appointments repository.AppointmentRepository,
	records repository.MedicalRecordRepository,
	billingSvc *billing.Service,
	outbox repository.OutboxRepository,
	tx repository.TxRunner,
) *Service {
	return &Service{
		appointments: appointments,
		records:      records,
		billing:      billingSvc,
		outbox:       outbox,
		tx:           tx,
		now:          time.Now,
	}
}

// SubmitRecord creates or partially updates the medical record for an
// appointment and forces the appointment to COMPLETED regardless of its
// prior status, cancelled appointments included.
func (s *Service) SubmitRecord(ctx context.Context, req *model.SubmitRecordRequest) (*model.MedicalRecord, error) {
	if req.AppointmentID == uuid.Nil {
		return nil, errors.Validation("appointment ID is required")
	}

	var record *model.MedicalRecord
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		apt, err := s.appointments.GetForUpdateTx(ctx, tx, req.AppointmentID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		existing, err := s.records.GetByAppointmentTx(ctx, tx, req.AppointmentID)
		switch {
		case err == nil:
			applyFindings(existing, req)
			existing.UpdatedAt = now
			if err := s.records.UpdateTx(ctx, tx, existing); err != nil {
				return err
			}
			record = existing
		case errors.IsNotFound(err):
			fresh := &model.MedicalRecord{
				ID:            uuid.New(),
				AppointmentID: apt.ID,
				PatientID:     apt.PatientID,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			applyFindings(fresh, req)
			if err := s.records.CreateTx(ctx, tx, fresh); err != nil {
				return err
			}
			record = fresh
		default:
			return err
		}

		if err := s.appointments.UpdateStatusTx(ctx, tx, apt.ID, model.AppointmentStatusCompleted); err != nil {
			return err
		}
		apt.Status = model.AppointmentStatusCompleted

		event, err := model.NewOutboxEvent(model.EventAppointmentCompleted, apt)
		if err != nil {
			return err
		}
		if err := s.outbox.CreateTx(ctx, tx, event); err != nil {
			return err
		}

		_, err = s.billing.MaybeGenerateInvoiceTx(ctx, tx, apt.ID, req.Cost)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// applyFindings copies only the supplied fields onto the record.
func applyFindings(record *model.MedicalRecord, req *model.SubmitRecordRequest) {
	if req.Subjective != nil {
		record.Subjective = *req.Subjective
	}
	if req.Objective != nil {
		record.Objective = *req.Objective
	}
	if req.Assessment != nil {
		record.Assessment = *req.Assessment
	}
	if req.Plan != nil {
		record.Plan = *req.Plan
	}
	if req.Diagnosis != nil {
		record.Diagnosis = *req.Diagnosis
	}
	if req.Treatment != nil {
		record.Treatment = *req.Treatment
	}
	if req.Symptoms != nil {
		record.Symptoms = *req.Symptoms
	}
	if req.Notes != nil {
		record.Notes = *req.Notes
	}
	if req.Weight != nil {
		record.Weight = req.Weight
	}
	if req.Temperature != nil {
		record.Temperature = req.Temperature
	}
	if req.HeartRate != nil {
		record.HeartRate = req.HeartRate
	}
	if req.RespiratoryRate != nil {
		record.RespiratoryRate = req.RespiratoryRate
	}
	if req.MucousMembranes != nil {
		record.MucousMembranes = *req.MucousMembranes
	}
	if req.CapillaryRefill != nil {
		record.CapillaryRefill = req.CapillaryRefill
	}
}

func (s *Service) GetRecordByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.MedicalRecord, error) {
	return s.records.GetByAppointment(ctx, appointmentID)
}

func (s *Service) ListRecordsByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.MedicalRecord, error) {
	return s.records.ListByPatient(ctx, patientID)
}

func (s *Service) ListRecordsByClient(ctx context.Context, clientID uuid.UUID) ([]*model.MedicalRecord, error) {
	return s.records.ListByClient(ctx, clientID)
}
