package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/iosifidis/msc-pims/internal/repository"
)

type appointmentRepository struct {
	db *sqlx.DB
}

type medicalRecordRepository struct {
	db *sqlx.DB
}

type invoiceRepository struct {
	db *sqlx.DB
}

type directoryRepository struct {
	db *sqlx.DB
}

type outboxRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

func NewMedicalRecordRepository(db *sqlx.DB) repository.MedicalRecordRepository {
	return &medicalRecordRepository{db: db}
}

func NewInvoiceRepository(db *sqlx.DB) repository.InvoiceRepository {
	return &invoiceRepository{db: db}
}

func NewDirectoryRepository(db *sqlx.DB) repository.DirectoryRepository {
	return &directoryRepository{db: db}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{db: db}
}
