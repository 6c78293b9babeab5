// Package repositorytest provides in-memory repository fakes for service
// tests. They reproduce the persistence contracts (conflict predicate,
// upsert uniqueness, invoice idempotence) without a database.
package repositorytest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/internal/schedule"
	"github.com/iosifidis/msc-pims/pkg/errors"
)

// TxRunner satisfies repository.TxRunner without a database; the callback
// simply runs with a nil transaction, which the fakes ignore.
type TxRunner struct{}

func (TxRunner) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return fn(nil)
}

type AppointmentRepo struct {
	mu           sync.Mutex
	Appointments map[uuid.UUID]*model.Appointment
}

func NewAppointmentRepo() *AppointmentRepo {
	return &AppointmentRepo{Appointments: make(map[uuid.UUID]*model.Appointment)}
}

func (r *AppointmentRepo) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	apt, ok := r.Appointments[id]
	if !ok {
		return nil, errors.NotFound("appointment", nil)
	}
	cp := *apt
	return &cp, nil
}

func (r *AppointmentRepo) GetForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*model.Appointment, error) {
	return r.Get(ctx, id)
}

func (r *AppointmentRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, apt *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *apt
	r.Appointments[apt.ID] = &cp
	return nil
}

func (r *AppointmentRepo) UpdateTx(ctx context.Context, tx *sqlx.Tx, apt *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Appointments[apt.ID]; !ok {
		return errors.NotFound("appointment", nil)
	}
	cp := *apt
	r.Appointments[apt.ID] = &cp
	return nil
}

func (r *AppointmentRepo) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status model.AppointmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	apt, ok := r.Appointments[id]
	if !ok {
		return errors.NotFound("appointment", nil)
	}
	apt.Status = status
	apt.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *AppointmentRepo) DeleteTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Appointments[id]; !ok {
		return errors.NotFound("appointment", nil)
	}
	delete(r.Appointments, id)
	return nil
}

func (r *AppointmentRepo) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*model.Appointment, error) {
	return r.list(func(a *model.Appointment) bool { return a.ClientID == clientID }), nil
}

func (r *AppointmentRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	return r.list(func(a *model.Appointment) bool { return a.PatientID == patientID }), nil
}

func (r *AppointmentRepo) list(match func(*model.Appointment) bool) []*model.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Appointment
	for _, apt := range r.Appointments {
		if match(apt) {
			cp := *apt
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (r *AppointmentRepo) NextForPractitioner(ctx context.Context, practitionerID uuid.UUID, after time.Time) (*model.Appointment, error) {
	candidates := r.list(func(a *model.Appointment) bool {
		return a.PractitionerID != nil && *a.PractitionerID == practitionerID &&
			a.StartTime.After(after) && a.Status == model.AppointmentStatusScheduled
	})
	if len(candidates) == 0 {
		return nil, errors.NotFound("appointment", nil)
	}
	return candidates[0], nil
}

func (r *AppointmentRepo) Search(ctx context.Context, query string) ([]*model.Appointment, error) {
	q := strings.ToLower(query)
	return r.list(func(a *model.Appointment) bool {
		return strings.Contains(strings.ToLower(a.Reason), q)
	}), nil
}

func (r *AppointmentRepo) LockPractitionerTx(ctx context.Context, tx *sqlx.Tx, practitionerID uuid.UUID) error {
	return nil
}

func (r *AppointmentRepo) HasConflictTx(ctx context.Context, tx *sqlx.Tx, practitionerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, apt := range r.Appointments {
		if apt.PractitionerID == nil || *apt.PractitionerID != practitionerID {
			continue
		}
		if apt.Status == model.AppointmentStatusCancelled {
			continue
		}
		if excludeID != nil && apt.ID == *excludeID {
			continue
		}
		if schedule.Overlaps(apt.StartTime, apt.EndTime, start, end) {
			return true, nil
		}
	}
	return false, nil
}

type MedicalRecordRepo struct {
	mu      sync.Mutex
	Records map[uuid.UUID]*model.MedicalRecord // keyed by appointment id
	Owners  map[uuid.UUID]uuid.UUID            // patient id → owning client id
}

func NewMedicalRecordRepo() *MedicalRecordRepo {
	return &MedicalRecordRepo{
		Records: make(map[uuid.UUID]*model.MedicalRecord),
		Owners:  make(map[uuid.UUID]uuid.UUID),
	}
}

// SetOwner registers patient ownership for client-history queries.
func (r *MedicalRecordRepo) SetOwner(patientID, clientID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Owners[patientID] = clientID
}

func (r *MedicalRecordRepo) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.MedicalRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.Records[appointmentID]
	if !ok {
		return nil, errors.NotFound("medical record", nil)
	}
	cp := *rec
	return &cp, nil
}

func (r *MedicalRecordRepo) GetByAppointmentTx(ctx context.Context, tx *sqlx.Tx, appointmentID uuid.UUID) (*model.MedicalRecord, error) {
	return r.GetByAppointment(ctx, appointmentID)
}

func (r *MedicalRecordRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, record *model.MedicalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *record
	r.Records[record.AppointmentID] = &cp
	return nil
}

func (r *MedicalRecordRepo) UpdateTx(ctx context.Context, tx *sqlx.Tx, record *model.MedicalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Records[record.AppointmentID]; !ok {
		return errors.NotFound("medical record", nil)
	}
	cp := *record
	r.Records[record.AppointmentID] = &cp
	return nil
}

func (r *MedicalRecordRepo) DeleteByAppointmentTx(ctx context.Context, tx *sqlx.Tx, appointmentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Records, appointmentID)
	return nil
}

func (r *MedicalRecordRepo) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.MedicalRecord, error) {
	return r.list(func(rec *model.MedicalRecord) bool { return rec.PatientID == patientID }), nil
}

// ListByClient resolves history through the Owners map, mirroring the SQL
// join on patient ownership.
func (r *MedicalRecordRepo) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*model.MedicalRecord, error) {
	return r.list(func(rec *model.MedicalRecord) bool {
		owner, ok := r.Owners[rec.PatientID]
		return ok && owner == clientID
	}), nil
}

func (r *MedicalRecordRepo) list(match func(*model.MedicalRecord) bool) []*model.MedicalRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.MedicalRecord
	for _, rec := range r.Records {
		if match(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *MedicalRecordRepo) ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.Records[appointmentID]
	return ok, nil
}

type InvoiceRepo struct {
	mu       sync.Mutex
	Invoices map[uuid.UUID]*model.Invoice // keyed by appointment id
}

func NewInvoiceRepo() *InvoiceRepo {
	return &InvoiceRepo{Invoices: make(map[uuid.UUID]*model.Invoice)}
}

func (r *InvoiceRepo) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.Invoices[appointmentID]
	if !ok {
		return nil, errors.NotFound("invoice", nil)
	}
	cp := *inv
	return &cp, nil
}

func (r *InvoiceRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, invoice *model.Invoice) (*model.Invoice, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.Invoices[invoice.AppointmentID]; ok {
		cp := *existing
		return &cp, false, nil
	}
	cp := *invoice
	r.Invoices[invoice.AppointmentID] = &cp
	out := cp
	return &out, true, nil
}

func (r *InvoiceRepo) DeleteByAppointmentTx(ctx context.Context, tx *sqlx.Tx, appointmentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Invoices, appointmentID)
	return nil
}

func (r *InvoiceRepo) ExistsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.Invoices[appointmentID]
	return ok, nil
}

type OutboxRepo struct {
	mu     sync.Mutex
	Events []*model.OutboxEvent
}

func NewOutboxRepo() *OutboxRepo {
	return &OutboxRepo{}
}

func (r *OutboxRepo) CreateTx(ctx context.Context, tx *sqlx.Tx, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *event
	r.Events = append(r.Events, &cp)
	return nil
}

func (r *OutboxRepo) GetPendingWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.OutboxEvent
	for _, e := range r.Events {
		if e.Status == model.OutboxStatusPending {
			cp := *e
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *OutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return r.setStatus(id, model.OutboxStatusProcessed, nil)
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.setStatus(id, model.OutboxStatusFailed, &errMsg)
}

func (r *OutboxRepo) setStatus(id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.Events {
		if e.ID == id {
			e.Status = status
			e.ErrorMessage = errMsg
			if status == model.OutboxStatusProcessed {
				now := time.Now().UTC()
				e.ProcessedAt = &now
			}
			return nil
		}
	}
	return errors.NotFound("outbox event", nil)
}

func (r *OutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*model.OutboxEvent
	var removed int64
	for _, e := range r.Events {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.Events = kept
	return removed, nil
}

// EventTypes returns the types of all captured events in insertion order.
func (r *OutboxRepo) EventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.EventType)
	}
	return out
}

// Directory is an in-memory master-data collaborator.
type Directory struct {
	mu            sync.Mutex
	Clients       map[uuid.UUID]*model.Client
	Patients      map[uuid.UUID]*model.Patient
	Practitioners map[uuid.UUID]*model.Practitioner
	Resources     map[uuid.UUID]*model.Resource
}

func NewDirectory() *Directory {
	return &Directory{
		Clients:       make(map[uuid.UUID]*model.Client),
		Patients:      make(map[uuid.UUID]*model.Patient),
		Practitioners: make(map[uuid.UUID]*model.Practitioner),
		Resources:     make(map[uuid.UUID]*model.Resource),
	}
}

func (d *Directory) AddClient(c *model.Client)             { d.Clients[c.ID] = c }
func (d *Directory) AddPatient(p *model.Patient)           { d.Patients[p.ID] = p }
func (d *Directory) AddPractitioner(p *model.Practitioner) { d.Practitioners[p.ID] = p }
func (d *Directory) AddResource(r *model.Resource)         { d.Resources[r.ID] = r }

func (d *Directory) GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.Clients[id]; ok {
		return c, nil
	}
	return nil, errors.NotFound("client", nil)
}

func (d *Directory) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.Patients[id]; ok {
		return p, nil
	}
	return nil, errors.NotFound("patient", nil)
}

func (d *Directory) GetPractitioner(ctx context.Context, id uuid.UUID) (*model.Practitioner, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.Practitioners[id]; ok {
		return p, nil
	}
	return nil, errors.NotFound("practitioner", nil)
}

func (d *Directory) GetResource(ctx context.Context, id uuid.UUID) (*model.Resource, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.Resources[id]; ok {
		return r, nil
	}
	return nil, errors.NotFound("resource", nil)
}
