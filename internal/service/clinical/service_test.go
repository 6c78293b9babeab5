package clinical

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/internal/repository/repositorytest"
	"github.com/iosifidis/msc-pims/internal/service/billing"
	"github.com/iosifidis/msc-pims/pkg/errors"
)

var testNow = time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC)

type fixture struct {
	svc          *Service
	appointments *repositorytest.AppointmentRepo
	records      *repositorytest.MedicalRecordRepo
	invoices     *repositorytest.InvoiceRepo
	outbox       *repositorytest.OutboxRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		appointments: repositorytest.NewAppointmentRepo(),
		records:      repositorytest.NewMedicalRecordRepo(),
		invoices:     repositorytest.NewInvoiceRepo(),
		outbox:       repositorytest.NewOutboxRepo(),
	}
	billingSvc := billing.NewService(f.invoices, f.outbox)
	f.svc = NewService(f.appointments, f.records, billingSvc, f.outbox, repositorytest.TxRunner{})
	f.svc.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) seedAppointment(t *testing.T, status model.AppointmentStatus) *model.Appointment {
	t.Helper()

	apt := &model.Appointment{
		Base:      model.Base{ID: uuid.New(), CreatedAt: testNow, UpdatedAt: testNow},
		ClientID:  uuid.New(),
		PatientID: uuid.New(),
		StartTime: testNow.Add(-time.Hour),
		EndTime:   testNow.Add(-30 * time.Minute),
		Status:    status,
		Type:      model.AppointmentTypeCheckup,
	}
	require.NoError(t, f.appointments.CreateTx(context.Background(), nil, apt))
	return apt
}

func strptr(s string) *string   { return &s }
func f64ptr(v float64) *float64 { return &v }
func intptr(v int) *int         { return &v }

func TestSubmitRecordCreates(t *testing.T) {
	f := newFixture(t)
	apt := f.seedAppointment(t, model.AppointmentStatusScheduled)

	record, err := f.svc.SubmitRecord(context.Background(), &model.SubmitRecordRequest{
		AppointmentID: apt.ID,
		Subjective:    strptr("owner reports lethargy"),
		Assessment:    strptr("mild dehydration"),
		Weight:        f64ptr(24.5),
		Temperature:   f64ptr(38.9),
		HeartRate:     intptr(96),
	})
	require.NoError(t, err)

	assert.Equal(t, apt.ID, record.AppointmentID)
	assert.Equal(t, apt.PatientID, record.PatientID, "patient copied from the appointment")
	assert.Equal(t, "owner reports lethargy", record.Subjective)
	require.NotNil(t, record.Weight)
	assert.Equal(t, 24.5, *record.Weight)

	// The submission completes the appointment.
	stored, err := f.appointments.Get(context.Background(), apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCompleted, stored.Status)
	assert.Equal(t, []string{model.EventAppointmentCompleted}, f.outbox.EventTypes())
}

func TestSubmitRecordRequiresAppointment(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SubmitRecord(context.Background(), &model.SubmitRecordRequest{})
	assert.True(t, errors.IsCode(err, errors.ErrValidation))

	_, err = f.svc.SubmitRecord(context.Background(), &model.SubmitRecordRequest{AppointmentID: uuid.New()})
	assert.True(t, errors.IsNotFound(err))
}

func TestSubmitRecordUpsertsSingleRecord(t *testing.T) {
	f := newFixture(t)
	apt := f.seedAppointment(t, model.AppointmentStatusScheduled)
	ctx := context.Background()

	first, err := f.svc.SubmitRecord(ctx, &model.SubmitRecordRequest{
		AppointmentID: apt.ID,
		Diagnosis:     strptr("otitis externa"),
		Treatment:     strptr("ear drops, 7 days"),
	})
	require.NoError(t, err)

	// Second submission revises one field; the rest must survive.
	second, err := f.svc.SubmitRecord(ctx, &model.SubmitRecordRequest{
		AppointmentID: apt.ID,
		Treatment:     strptr("ear drops, 14 days"),
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "still one record per appointment")
	assert.Equal(t, "otitis externa", second.Diagnosis)
	assert.Equal(t, "ear drops, 14 days", second.Treatment)
	assert.Len(t, f.records.Records, 1)
}

func TestSubmitRecordForcesCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Clinical findings trump the prior lifecycle state, even a terminal one.
	for _, status := range []model.AppointmentStatus{
		model.AppointmentStatusScheduled,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
		model.AppointmentStatusCompleted,
	} {
		apt := f.seedAppointment(t, status)
		_, err := f.svc.SubmitRecord(ctx, &model.SubmitRecordRequest{
			AppointmentID: apt.ID,
			Notes:         strptr("seen after all"),
		})
		require.NoError(t, err, "status %s", status)

		stored, err := f.appointments.Get(ctx, apt.ID)
		require.NoError(t, err)
		assert.Equal(t, model.AppointmentStatusCompleted, stored.Status)
	}
}

func TestSubmitRecordGeneratesInvoice(t *testing.T) {
	f := newFixture(t)
	apt := f.seedAppointment(t, model.AppointmentStatusScheduled)
	ctx := context.Background()

	_, err := f.svc.SubmitRecord(ctx, &model.SubmitRecordRequest{
		AppointmentID: apt.ID,
		Cost:          f64ptr(50),
	})
	require.NoError(t, err)

	inv, err := f.invoices.GetByAppointment(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, inv.Amount)
	assert.Equal(t, model.InvoiceStatusPaid, inv.Status)
	assert.False(t, inv.IssuedAt.IsZero())
	assert.Contains(t, f.outbox.EventTypes(), model.EventInvoiceIssued)
}

func TestSubmitRecordInvoiceIdempotent(t *testing.T) {
	f := newFixture(t)
	apt := f.seedAppointment(t, model.AppointmentStatusScheduled)
	ctx := context.Background()

	_, err := f.svc.SubmitRecord(ctx, &model.SubmitRecordRequest{AppointmentID: apt.ID, Cost: f64ptr(50)})
	require.NoError(t, err)

	// A corrected resubmission never re-prices the existing invoice.
	_, err = f.svc.SubmitRecord(ctx, &model.SubmitRecordRequest{AppointmentID: apt.ID, Cost: f64ptr(75)})
	require.NoError(t, err)

	inv, err := f.invoices.GetByAppointment(ctx, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, inv.Amount)
	assert.Len(t, f.invoices.Invoices, 1)

	issued := 0
	for _, et := range f.outbox.EventTypes() {
		if et == model.EventInvoiceIssued {
			issued++
		}
	}
	assert.Equal(t, 1, issued, "invoice.issued emitted once")
}

func TestSubmitRecordNoInvoiceWithoutCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for name, cost := range map[string]*float64{
		"absent":   nil,
		"zero":     f64ptr(0),
		"negative": f64ptr(-10),
	} {
		apt := f.seedAppointment(t, model.AppointmentStatusScheduled)
		_, err := f.svc.SubmitRecord(ctx, &model.SubmitRecordRequest{AppointmentID: apt.ID, Cost: cost})
		require.NoError(t, err, name)

		_, err = f.invoices.GetByAppointment(ctx, apt.ID)
		assert.True(t, errors.IsNotFound(err), "cost %s yields no invoice", name)
	}
}

func TestListRecordsByClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apt := f.seedAppointment(t, model.AppointmentStatusScheduled)
	other := f.seedAppointment(t, model.AppointmentStatusScheduled)
	f.records.SetOwner(apt.PatientID, apt.ClientID)
	f.records.SetOwner(other.PatientID, other.ClientID)

	_, err := f.svc.SubmitRecord(ctx, &model.SubmitRecordRequest{AppointmentID: apt.ID, Notes: strptr("a")})
	require.NoError(t, err)
	_, err = f.svc.SubmitRecord(ctx, &model.SubmitRecordRequest{AppointmentID: other.ID, Notes: strptr("b")})
	require.NoError(t, err)

	records, err := f.svc.ListRecordsByClient(ctx, apt.ClientID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, apt.ID, records[0].AppointmentID)

	records, err = f.svc.ListRecordsByPatient(ctx, other.PatientID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, other.ID, records[0].AppointmentID)
}
