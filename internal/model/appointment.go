package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "SCHEDULED"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled AppointmentStatus = "CANCELLED"
	AppointmentStatusNoShow    AppointmentStatus = "NO_SHOW"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusScheduled, AppointmentStatusCompleted,
		AppointmentStatusCancelled, AppointmentStatusNoShow:
		return true
	}
	return false
}

type AppointmentType string

const (
	AppointmentTypeCheckup     AppointmentType = "CHECKUP"
	AppointmentTypeVaccination AppointmentType = "VACCINATION"
	AppointmentTypeSurgery     AppointmentType = "SURGERY"
	AppointmentTypeDental      AppointmentType = "DENTAL"
	AppointmentTypeEmergency   AppointmentType = "EMERGENCY"
	AppointmentTypeOther       AppointmentType = "OTHER"
)

func (t AppointmentType) Valid() bool {
	switch t {
	case AppointmentTypeCheckup, AppointmentTypeVaccination, AppointmentTypeSurgery,
		AppointmentTypeDental, AppointmentTypeEmergency, AppointmentTypeOther:
		return true
	}
	return false
}

// Appointment is the aggregation root of the scheduling core. Client and
// patient are mandatory references; a practitioner and a resource (room or
// equipment) are optional. The ledger guarantees that two non-cancelled
// appointments for the same practitioner never overlap.
type Appointment struct {
	Base
	ClientID       uuid.UUID         `db:"client_id" json:"client_id"`
	PatientID      uuid.UUID         `db:"patient_id" json:"patient_id"`
	PractitionerID *uuid.UUID        `db:"practitioner_id" json:"practitioner_id,omitempty"`
	ResourceID     *uuid.UUID        `db:"resource_id" json:"resource_id,omitempty"`
	StartTime      time.Time         `db:"start_time" json:"start_time"`
	EndTime        time.Time         `db:"end_time" json:"end_time"`
	Status         AppointmentStatus `db:"status" json:"status"`
	Type           AppointmentType   `db:"type" json:"type"`
	Reason         string            `db:"reason" json:"reason,omitempty"`
	Notes          string            `db:"notes" json:"notes,omitempty"`
}

// Locked reports whether the appointment sits in the past at the given
// reference instant. Locked appointments reject content edits unless the
// update moves the start strictly into the future.
func (a *Appointment) Locked(now time.Time) bool {
	return a.StartTime.Before(now)
}

type CreateAppointmentRequest struct {
	ClientID       uuid.UUID       `json:"client_id" binding:"required"`
	PatientID      uuid.UUID       `json:"patient_id" binding:"required"`
	PractitionerID *uuid.UUID      `json:"practitioner_id"`
	ResourceID     *uuid.UUID      `json:"resource_id"`
	StartTime      time.Time       `json:"start_time" binding:"required"`
	EndTime        time.Time       `json:"end_time" binding:"required,gtfield=StartTime"`
	Type           AppointmentType `json:"type" binding:"required,appointment_type"`
	Reason         string          `json:"reason" binding:"max=255"`
	Notes          string          `json:"notes" binding:"max=2000"`
}

// UpdateAppointmentRequest carries partial-update semantics: nil fields are
// left unchanged.
type UpdateAppointmentRequest struct {
	ClientID       *uuid.UUID       `json:"client_id"`
	PatientID      *uuid.UUID       `json:"patient_id"`
	PractitionerID *uuid.UUID       `json:"practitioner_id"`
	ResourceID     *uuid.UUID       `json:"resource_id"`
	StartTime      *time.Time       `json:"start_time"`
	EndTime        *time.Time       `json:"end_time"`
	Type           *AppointmentType `json:"type"`
	Reason         *string          `json:"reason"`
	Notes          *string          `json:"notes"`
}

// Empty reports whether the request changes nothing at all.
func (r *UpdateAppointmentRequest) Empty() bool {
	return r.ClientID == nil && r.PatientID == nil && r.PractitionerID == nil &&
		r.ResourceID == nil && r.StartTime == nil && r.EndTime == nil &&
		r.Type == nil && r.Reason == nil && r.Notes == nil
}

type UpdateStatusRequest struct {
	Status AppointmentStatus `json:"status" binding:"required,appointment_status"`
}
