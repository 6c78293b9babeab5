package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/internal/repository/repositorytest"
	"github.com/iosifidis/msc-pims/pkg/errors"
)

var testNow = time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	repo      *repositorytest.AppointmentRepo
	records   *repositorytest.MedicalRecordRepo
	invoices  *repositorytest.InvoiceRepo
	outbox    *repositorytest.OutboxRepo
	directory *repositorytest.Directory

	client       *model.Client
	patient      *model.Patient
	practitioner *model.Practitioner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:      repositorytest.NewAppointmentRepo(),
		records:   repositorytest.NewMedicalRecordRepo(),
		invoices:  repositorytest.NewInvoiceRepo(),
		outbox:    repositorytest.NewOutboxRepo(),
		directory: repositorytest.NewDirectory(),
	}
	f.svc = NewService(f.repo, f.records, f.invoices, f.outbox, f.directory, repositorytest.TxRunner{})
	f.svc.now = func() time.Time { return testNow }

	f.client = &model.Client{Base: model.Base{ID: uuid.New()}, FirstName: "Maria", LastName: "Papadopoulou", Phone: "6941234567"}
	f.patient = &model.Patient{Base: model.Base{ID: uuid.New()}, OwnerID: f.client.ID, Name: "Hermes", Species: "dog"}
	f.practitioner = &model.Practitioner{Base: model.Base{ID: uuid.New()}, FirstName: "Eleni", LastName: "Iosifidou", Role: model.RoleVet}

	f.directory.AddClient(f.client)
	f.directory.AddPatient(f.patient)
	f.directory.AddPractitioner(f.practitioner)
	return f
}

func (f *fixture) createRequest(start, end time.Time) *model.CreateAppointmentRequest {
	return &model.CreateAppointmentRequest{
		ClientID:       f.client.ID,
		PatientID:      f.patient.ID,
		PractitionerID: &f.practitioner.ID,
		StartTime:      start,
		EndTime:        end,
		Type:           model.AppointmentTypeCheckup,
		Reason:         "annual checkup",
	}
}

func slot(hour, min int) time.Time {
	return time.Date(2025, 6, 2, hour, min, 0, 0, time.UTC)
}

func TestCreateAppointment(t *testing.T) {
	f := newFixture(t)

	apt, err := f.svc.CreateAppointment(context.Background(), f.createRequest(slot(9, 0), slot(9, 30)))
	require.NoError(t, err)

	assert.Equal(t, model.AppointmentStatusScheduled, apt.Status)
	assert.Equal(t, f.client.ID, apt.ClientID)
	assert.Equal(t, f.patient.ID, apt.PatientID)
	assert.Equal(t, []string{model.EventAppointmentCreated}, f.outbox.EventTypes())
}

func TestCreateAppointmentValidation(t *testing.T) {
	f := newFixture(t)

	req := f.createRequest(slot(9, 30), slot(9, 0))
	_, err := f.svc.CreateAppointment(context.Background(), req)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))

	req = f.createRequest(slot(9, 0), slot(9, 0))
	_, err = f.svc.CreateAppointment(context.Background(), req)
	assert.True(t, errors.IsCode(err, errors.ErrValidation), "zero-length interval rejected")

	req = f.createRequest(slot(9, 0), slot(9, 30))
	req.ClientID = uuid.Nil
	_, err = f.svc.CreateAppointment(context.Background(), req)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))

	req = f.createRequest(slot(9, 0), slot(9, 30))
	req.Type = "PEDICURE"
	_, err = f.svc.CreateAppointment(context.Background(), req)
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestCreateAppointmentUnknownReferences(t *testing.T) {
	f := newFixture(t)

	req := f.createRequest(slot(9, 0), slot(9, 30))
	req.ClientID = uuid.New()
	_, err := f.svc.CreateAppointment(context.Background(), req)
	assert.True(t, errors.IsNotFound(err))

	req = f.createRequest(slot(9, 0), slot(9, 30))
	unknown := uuid.New()
	req.PractitionerID = &unknown
	_, err = f.svc.CreateAppointment(context.Background(), req)
	assert.True(t, errors.IsNotFound(err))
}

func TestCreateAppointmentConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 09:00-09:30 books fine.
	_, err := f.svc.CreateAppointment(ctx, f.createRequest(slot(9, 0), slot(9, 30)))
	require.NoError(t, err)

	// 09:15-09:45 overlaps the same practitioner.
	_, err = f.svc.CreateAppointment(ctx, f.createRequest(slot(9, 15), slot(9, 45)))
	assert.True(t, errors.IsCode(err, errors.ErrSchedulingConflict))

	// Back-to-back 09:30-10:00 does not conflict.
	_, err = f.svc.CreateAppointment(ctx, f.createRequest(slot(9, 30), slot(10, 0)))
	assert.NoError(t, err)
}

func TestCreateAppointmentCancelledDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.svc.CreateAppointment(ctx, f.createRequest(slot(9, 0), slot(9, 30)))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, apt.ID, model.AppointmentStatusCancelled)
	require.NoError(t, err)

	_, err = f.svc.CreateAppointment(ctx, f.createRequest(slot(9, 0), slot(9, 30)))
	assert.NoError(t, err, "cancelled bookings free the slot")
}

func TestCreateAppointmentWithoutPractitionerSkipsConflictCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := f.createRequest(slot(9, 0), slot(9, 30))
	req.PractitionerID = nil
	_, err := f.svc.CreateAppointment(ctx, req)
	require.NoError(t, err)

	req = f.createRequest(slot(9, 0), slot(9, 30))
	req.PractitionerID = nil
	_, err = f.svc.CreateAppointment(ctx, req)
	assert.NoError(t, err, "walk-in slots without a practitioner never conflict")
}

func TestUpdateAppointmentLockRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Booked yesterday, now in the past.
	apt, err := f.svc.CreateAppointment(ctx, f.createRequest(
		testNow.Add(-24*time.Hour), testNow.Add(-23*time.Hour)))
	require.NoError(t, err)

	// Content-only edit on a past appointment is rejected.
	reason := "changed my mind"
	_, err = f.svc.UpdateAppointment(ctx, apt.ID, &model.UpdateAppointmentRequest{Reason: &reason})
	assert.True(t, errors.IsCode(err, errors.ErrAppointmentLocked))

	// Rescheduling into the past is still locked.
	pastStart := testNow.Add(-2 * time.Hour)
	pastEnd := testNow.Add(-1 * time.Hour)
	_, err = f.svc.UpdateAppointment(ctx, apt.ID, &model.UpdateAppointmentRequest{StartTime: &pastStart, EndTime: &pastEnd})
	assert.True(t, errors.IsCode(err, errors.ErrAppointmentLocked))

	// Rescheduling into the future unlocks, content edits ride along.
	futureStart := testNow.Add(24 * time.Hour)
	futureEnd := testNow.Add(25 * time.Hour)
	updated, err := f.svc.UpdateAppointment(ctx, apt.ID, &model.UpdateAppointmentRequest{
		StartTime: &futureStart,
		EndTime:   &futureEnd,
		Reason:    &reason,
	})
	require.NoError(t, err)
	assert.Equal(t, futureStart, updated.StartTime)
	assert.Equal(t, reason, updated.Reason)

	// Now in the future again, ordinary edits work.
	notes := "bring vaccination booklet"
	updated, err = f.svc.UpdateAppointment(ctx, apt.ID, &model.UpdateAppointmentRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)
}

func TestUpdateAppointmentPartialSemantics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.svc.CreateAppointment(ctx, f.createRequest(slot(9, 0), slot(9, 30)))
	require.NoError(t, err)

	notes := "nervous around other dogs"
	updated, err := f.svc.UpdateAppointment(ctx, apt.ID, &model.UpdateAppointmentRequest{Notes: &notes})
	require.NoError(t, err)

	assert.Equal(t, notes, updated.Notes)
	assert.Equal(t, apt.Reason, updated.Reason, "absent fields unchanged")
	assert.Equal(t, apt.StartTime, updated.StartTime)
	assert.Equal(t, apt.Type, updated.Type)
}

func TestUpdateAppointmentConflictExcludesSelf(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.svc.CreateAppointment(ctx, f.createRequest(slot(9, 0), slot(9, 30)))
	require.NoError(t, err)
	_, err = f.svc.CreateAppointment(ctx, f.createRequest(slot(10, 0), slot(10, 30)))
	require.NoError(t, err)

	// Shrinking the first slot overlaps only itself, so it passes.
	newEnd := slot(9, 15)
	_, err = f.svc.UpdateAppointment(ctx, apt.ID, &model.UpdateAppointmentRequest{EndTime: &newEnd})
	assert.NoError(t, err)

	// Moving onto the second booking conflicts.
	newStart := slot(10, 15)
	newEnd = slot(10, 45)
	_, err = f.svc.UpdateAppointment(ctx, apt.ID, &model.UpdateAppointmentRequest{StartTime: &newStart, EndTime: &newEnd})
	assert.True(t, errors.IsCode(err, errors.ErrSchedulingConflict))
}

func TestUpdateAppointmentInvalidInterval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.svc.CreateAppointment(ctx, f.createRequest(slot(9, 0), slot(9, 30)))
	require.NoError(t, err)

	badEnd := slot(8, 45)
	_, err = f.svc.UpdateAppointment(ctx, apt.ID, &model.UpdateAppointmentRequest{EndTime: &badEnd})
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestUpdateStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, target := range []model.AppointmentStatus{
		model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	} {
		apt, err := f.svc.CreateAppointment(ctx, f.createRequest(slot(9, 0), slot(9, 30)))
		require.NoError(t, err)

		updated, err := f.svc.UpdateStatus(ctx, apt.ID, target)
		require.NoError(t, err)
		assert.Equal(t, target, updated.Status)

		// Terminal: every further direct transition is rejected.
		_, err = f.svc.UpdateStatus(ctx, apt.ID, model.AppointmentStatusScheduled)
		assert.True(t, errors.IsCode(err, errors.ErrInvalidTransition))
		_, err = f.svc.UpdateStatus(ctx, apt.ID, model.AppointmentStatusCompleted)
		assert.True(t, errors.IsCode(err, errors.ErrInvalidTransition))

		// Free the slot for the next iteration.
		require.NoError(t, f.svc.DeleteAppointment(ctx, apt.ID, false))
	}
}

func TestUpdateStatusRejectsUnknownValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.svc.CreateAppointment(ctx, f.createRequest(slot(9, 0), slot(9, 30)))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, apt.ID, "ARCHIVED")
	assert.True(t, errors.IsCode(err, errors.ErrValidation))
}

func TestUpdateStatusEmitsLifecycleEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.svc.CreateAppointment(ctx, f.createRequest(slot(9, 0), slot(9, 30)))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, apt.ID, model.AppointmentStatusCancelled)
	require.NoError(t, err)

	assert.Equal(t, []string{model.EventAppointmentCreated, model.EventAppointmentCancelled}, f.outbox.EventTypes())
}

func TestDeleteAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.DeleteAppointment(ctx, uuid.New(), false)
	assert.True(t, errors.IsNotFound(err))

	apt, err := f.svc.CreateAppointment(ctx, f.createRequest(slot(9, 0), slot(9, 30)))
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteAppointment(ctx, apt.ID, false))

	_, err = f.svc.GetAppointment(ctx, apt.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestDeleteAppointmentWithDependents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt, err := f.svc.CreateAppointment(ctx, f.createRequest(slot(9, 0), slot(9, 30)))
	require.NoError(t, err)

	record := &model.MedicalRecord{ID: uuid.New(), AppointmentID: apt.ID, PatientID: apt.PatientID}
	require.NoError(t, f.records.CreateTx(ctx, nil, record))

	err = f.svc.DeleteAppointment(ctx, apt.ID, false)
	assert.True(t, errors.IsCode(err, errors.ErrDependentRecords))

	// Cascade removes the record along with the appointment.
	require.NoError(t, f.svc.DeleteAppointment(ctx, apt.ID, true))
	_, err = f.records.GetByAppointment(ctx, apt.ID)
	assert.True(t, errors.IsNotFound(err))
}

func TestNextAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.NextAppointment(ctx, f.practitioner.ID)
	assert.True(t, errors.IsNotFound(err))

	// One earlier today (already past), two upcoming.
	_, err = f.svc.CreateAppointment(ctx, f.createRequest(testNow.Add(-2*time.Hour), testNow.Add(-90*time.Minute)))
	require.NoError(t, err)
	soon, err := f.svc.CreateAppointment(ctx, f.createRequest(slot(9, 0), slot(9, 30)))
	require.NoError(t, err)
	_, err = f.svc.CreateAppointment(ctx, f.createRequest(slot(14, 0), slot(14, 30)))
	require.NoError(t, err)

	next, err := f.svc.NextAppointment(ctx, f.practitioner.ID)
	require.NoError(t, err)
	assert.Equal(t, soon.ID, next.ID)
}

func TestSearchAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SearchAppointments(ctx, "   ")
	assert.True(t, errors.IsCode(err, errors.ErrValidation))

	apt, err := f.svc.CreateAppointment(ctx, f.createRequest(slot(9, 0), slot(9, 30)))
	require.NoError(t, err)

	results, err := f.svc.SearchAppointments(ctx, "Annual")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, apt.ID, results[0].ID)
}
