package model

import (
	"time"

	"github.com/google/uuid"
)

type InvoiceStatus string

const (
	InvoiceStatusPaid   InvoiceStatus = "PAID"
	InvoiceStatusUnpaid InvoiceStatus = "UNPAID"
)

// Invoice is derived from a completed clinical record, at most one per
// appointment. Once issued it is immutable in this core.
type Invoice struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	AppointmentID uuid.UUID     `db:"appointment_id" json:"appointment_id"`
	Amount        float64       `db:"amount" json:"amount"`
	Status        InvoiceStatus `db:"status" json:"status"`
	IssuedAt      time.Time     `db:"issued_at" json:"issued_at"`
}
