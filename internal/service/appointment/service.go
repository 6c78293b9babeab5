package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/internal/repository"
	"github.com/iosifidis/msc-pims/internal/schedule"
	"github.com/iosifidis/msc-pims/pkg/errors"
)

// Directory is the collaborator contract for master data lookups.
type Directory interface {
	GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	GetPractitioner(ctx context.Context, id uuid.UUID) (*model.Practitioner, error)
	GetResource(ctx context.Context, id uuid.UUID) (*model.Resource, error)
}

// validTransitions is the full lifecycle for the direct status endpoint.
// COMPLETED, CANCELLED and NO_SHOW are terminal here; only a clinical record
// submission may still force COMPLETED afterwards.
var validTransitions = map[model.AppointmentStatus][]model.AppointmentStatus{
	model.AppointmentStatusScheduled: {
		model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	},
}

func transitionAllowed(from, to model.AppointmentStatus) bool {
	for _, t := range validTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Service is the appointment ledger: conflict-checked creation, locked-aware
// updates and guarded status transitions.
type Service struct {
	repo      repository.AppointmentRepository
	records   repository.MedicalRecordRepository
	invoices  repository.InvoiceRepository
	outbox    repository.OutboxRepository
	directory Directory
	tx        repository.TxRunner

	now func() time.Time
}

func NewService(
	repo repository.AppointmentRepository,
	records repository.MedicalRecordRepository,
	invoices repository.InvoiceRepository,
	outbox repository.OutboxRepository,
	directory Directory,
	tx repository.TxRunner,
) *Service {
	return &Service{
		repo:      repo,
		records:   records,
		invoices:  invoices,
		outbox:    outbox,
		directory: directory,
		tx:        tx,
		now:       time.Now,
	}
}

func (s *Service) CreateAppointment(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	if req.ClientID == uuid.Nil {
		return nil, errors.Validation("client ID is required")
	}
	if req.PatientID == uuid.Nil {
		return nil, errors.Validation("patient ID is required")
	}
	if !req.Type.Valid() {
		return nil, errors.Validation(fmt.Sprintf("unknown appointment type %q", req.Type))
	}
	if _, ok := schedule.NewInterval(req.StartTime, req.EndTime); !ok {
		return nil, errors.Validation("end time must be after start time")
	}

	if _, err := s.directory.GetClient(ctx, req.ClientID); err != nil {
		return nil, err
	}
	if _, err := s.directory.GetPatient(ctx, req.PatientID); err != nil {
		return nil, err
	}
	if req.PractitionerID != nil {
		if _, err := s.directory.GetPractitioner(ctx, *req.PractitionerID); err != nil {
			return nil, err
		}
	}
	if req.ResourceID != nil {
		if _, err := s.directory.GetResource(ctx, *req.ResourceID); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	apt := &model.Appointment{
		Base: model.Base{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		ClientID:       req.ClientID,
		PatientID:      req.PatientID,
		PractitionerID: req.PractitionerID,
		ResourceID:     req.ResourceID,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		Status:         model.AppointmentStatusScheduled,
		Type:           req.Type,
		Reason:         req.Reason,
		Notes:          req.Notes,
	}

	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if apt.PractitionerID != nil {
			if err := s.repo.LockPractitionerTx(ctx, tx, *apt.PractitionerID); err != nil {
				return err
			}
			conflict, err := s.repo.HasConflictTx(ctx, tx, *apt.PractitionerID, apt.StartTime, apt.EndTime, nil)
			if err != nil {
				return err
			}
			if conflict {
				return errors.SchedulingConflict("practitioner already booked for this time slot")
			}
		}
		if err := s.repo.CreateTx(ctx, tx, apt); err != nil {
			return err
		}
		return s.enqueueEventTx(ctx, tx, model.EventAppointmentCreated, apt)
	})
	if err != nil {
		return nil, err
	}
	return apt, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.repo.Get(ctx, id)
}

// UpdateAppointment applies partial-update semantics. Past appointments are
// locked: the only accepted mutation is one that moves the start strictly
// into the future.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	var updated *model.Appointment

	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		apt, err := s.repo.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.now()
		if apt.Locked(now) {
			reschedulingToFuture := req.StartTime != nil && req.StartTime.After(now)
			if !reschedulingToFuture {
				return errors.AppointmentLocked("past appointments are locked; reschedule to a future date to edit")
			}
		}

		prevPractitioner := apt.PractitionerID
		prevStart, prevEnd := apt.StartTime, apt.EndTime

		if err := s.applyUpdate(ctx, apt, req); err != nil {
			return err
		}
		if _, ok := schedule.NewInterval(apt.StartTime, apt.EndTime); !ok {
			return errors.Validation("end time must be after start time")
		}

		windowChanged := !apt.StartTime.Equal(prevStart) || !apt.EndTime.Equal(prevEnd)
		practitionerChanged := !uuidPtrEqual(prevPractitioner, apt.PractitionerID)

		if (windowChanged || practitionerChanged) && apt.PractitionerID != nil {
			if err := s.repo.LockPractitionerTx(ctx, tx, *apt.PractitionerID); err != nil {
				return err
			}
			conflict, err := s.repo.HasConflictTx(ctx, tx, *apt.PractitionerID, apt.StartTime, apt.EndTime, &apt.ID)
			if err != nil {
				return err
			}
			if conflict {
				return errors.SchedulingConflict("practitioner already booked for this time slot")
			}
		}

		apt.UpdatedAt = now.UTC()
		if err := s.repo.UpdateTx(ctx, tx, apt); err != nil {
			return err
		}
		if err := s.enqueueEventTx(ctx, tx, model.EventAppointmentUpdated, apt); err != nil {
			return err
		}

		updated = apt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// applyUpdate merges the present request fields into apt, re-validating any
// changed directory reference.
func (s *Service) applyUpdate(ctx context.Context, apt *model.Appointment, req *model.UpdateAppointmentRequest) error {
	if req.ClientID != nil {
		if _, err := s.directory.GetClient(ctx, *req.ClientID); err != nil {
			return err
		}
		apt.ClientID = *req.ClientID
	}
	if req.PatientID != nil {
		if _, err := s.directory.GetPatient(ctx, *req.PatientID); err != nil {
			return err
		}
		apt.PatientID = *req.PatientID
	}
	if req.PractitionerID != nil {
		if _, err := s.directory.GetPractitioner(ctx, *req.PractitionerID); err != nil {
			return err
		}
		apt.PractitionerID = req.PractitionerID
	}
	if req.ResourceID != nil {
		if _, err := s.directory.GetResource(ctx, *req.ResourceID); err != nil {
			return err
		}
		apt.ResourceID = req.ResourceID
	}
	if req.StartTime != nil {
		apt.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		apt.EndTime = *req.EndTime
	}
	if req.Type != nil {
		if !req.Type.Valid() {
			return errors.Validation(fmt.Sprintf("unknown appointment type %q", *req.Type))
		}
		apt.Type = *req.Type
	}
	if req.Reason != nil {
		apt.Reason = *req.Reason
	}
	if req.Notes != nil {
		apt.Notes = *req.Notes
	}
	return nil
}

// UpdateStatus drives the explicit lifecycle table. Terminal states reject
// every direct transition.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus) (*model.Appointment, error) {
	if !status.Valid() {
		return nil, errors.Validation(fmt.Sprintf("unknown appointment status %q", status))
	}

	var updated *model.Appointment
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		apt, err := s.repo.GetForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}

		if !transitionAllowed(apt.Status, status) {
			return errors.InvalidTransition(string(apt.Status), string(status))
		}

		if err := s.repo.UpdateStatusTx(ctx, tx, id, status); err != nil {
			return err
		}
		apt.Status = status
		apt.UpdatedAt = s.now().UTC()

		eventType := model.EventAppointmentUpdated
		switch status {
		case model.AppointmentStatusCancelled:
			eventType = model.EventAppointmentCancelled
		case model.AppointmentStatusCompleted:
			eventType = model.EventAppointmentCompleted
		}
		if err := s.enqueueEventTx(ctx, tx, eventType, apt); err != nil {
			return err
		}

		updated = apt
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteAppointment refuses to drop history: an appointment with a medical
// record or invoice only goes away when the caller explicitly asks for a
// cascade, and then the dependents go in the same transaction.
func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID, cascade bool) error {
	return s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.repo.GetForUpdateTx(ctx, tx, id); err != nil {
			return err
		}

		hasRecord, err := s.records.ExistsForAppointment(ctx, id)
		if err != nil {
			return err
		}
		hasInvoice, err := s.invoices.ExistsForAppointment(ctx, id)
		if err != nil {
			return err
		}

		if (hasRecord || hasInvoice) && !cascade {
			return errors.DependentRecords("appointment has a medical record or invoice; delete with cascade to remove them")
		}
		if cascade {
			if hasRecord {
				if err := s.records.DeleteByAppointmentTx(ctx, tx, id); err != nil {
					return err
				}
			}
			if hasInvoice {
				if err := s.invoices.DeleteByAppointmentTx(ctx, tx, id); err != nil {
					return err
				}
			}
		}

		return s.repo.DeleteTx(ctx, tx, id)
	})
}

func (s *Service) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*model.Appointment, error) {
	return s.repo.ListByClient(ctx, clientID)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	return s.repo.ListByPatient(ctx, patientID)
}

// NextAppointment returns the practitioner's next upcoming scheduled slot.
func (s *Service) NextAppointment(ctx context.Context, practitionerID uuid.UUID) (*model.Appointment, error) {
	return s.repo.NextForPractitioner(ctx, practitionerID, s.now())
}

func (s *Service) SearchAppointments(ctx context.Context, query string) ([]*model.Appointment, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.Validation("search query is required")
	}
	return s.repo.Search(ctx, query)
}

func (s *Service) enqueueEventTx(ctx context.Context, tx *sqlx.Tx, eventType string, apt *model.Appointment) error {
	event, err := model.NewOutboxEvent(eventType, apt)
	if err != nil {
		return fmt.Errorf("failed to build outbox event: %w", err)
	}
	return s.outbox.CreateTx(ctx, tx, event)
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
