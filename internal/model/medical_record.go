package model

import (
	"time"

	"github.com/google/uuid"
)

// MedicalRecord documents a consultation, at most one per appointment.
// PatientID is denormalised from the owning appointment at creation time so
// per-patient history queries never need the appointments table.
type MedicalRecord struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentID uuid.UUID `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`

	// SOAP fields
	Subjective string `db:"subjective" json:"subjective,omitempty"`
	Objective  string `db:"objective" json:"objective,omitempty"`
	Assessment string `db:"assessment" json:"assessment,omitempty"`
	Plan       string `db:"plan" json:"plan,omitempty"`

	// Legacy free-text fields kept for older records
	Diagnosis string `db:"diagnosis" json:"diagnosis,omitempty"`
	Treatment string `db:"treatment" json:"treatment,omitempty"`
	Symptoms  string `db:"symptoms" json:"symptoms,omitempty"`
	Notes     string `db:"notes" json:"notes,omitempty"`

	// Vital signs
	Weight           *float64 `db:"weight" json:"weight,omitempty"`                       // kg
	Temperature      *float64 `db:"temperature" json:"temperature,omitempty"`             // °C
	HeartRate        *int     `db:"heart_rate" json:"heart_rate,omitempty"`               // bpm
	RespiratoryRate  *int     `db:"respiratory_rate" json:"respiratory_rate,omitempty"`   // bpm
	MucousMembranes  string   `db:"mucous_membranes" json:"mucous_membranes,omitempty"`
	CapillaryRefill  *float64 `db:"capillary_refill" json:"capillary_refill,omitempty"`   // seconds

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// SubmitRecordRequest is the clinical submission payload. All fields are
// optional except the appointment reference; absent fields leave an existing
// record untouched. A strictly positive Cost triggers invoice generation.
type SubmitRecordRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id" binding:"required"`

	Subjective *string `json:"subjective"`
	Objective  *string `json:"objective"`
	Assessment *string `json:"assessment"`
	Plan       *string `json:"plan"`

	Diagnosis *string `json:"diagnosis"`
	Treatment *string `json:"treatment"`
	Symptoms  *string `json:"symptoms"`
	Notes     *string `json:"notes"`

	Weight          *float64 `json:"weight"`
	Temperature     *float64 `json:"temperature"`
	HeartRate       *int     `json:"heart_rate"`
	RespiratoryRate *int     `json:"respiratory_rate"`
	MucousMembranes *string  `json:"mucous_membranes"`
	CapillaryRefill *float64 `json:"capillary_refill"`

	Cost *float64 `json:"cost"`
}
