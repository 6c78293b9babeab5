package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/pkg/errors"
)

// The directory tables are owned by the registration side of the practice;
// the scheduling core only reads them by id.

func (r *directoryRepository) GetClient(ctx context.Context, id uuid.UUID) (*model.Client, error) {
	query := `
		SELECT id, first_name, last_name, email, phone, address, created_at, updated_at
		FROM clients WHERE id = $1
	`
	var client model.Client
	if err := r.db.GetContext(ctx, &client, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("client", err)
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &client, nil
}

func (r *directoryRepository) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `
		SELECT id, owner_id, name, species, breed, date_of_birth, created_at, updated_at
		FROM patients WHERE id = $1
	`
	var patient model.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("patient", err)
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *directoryRepository) GetPractitioner(ctx context.Context, id uuid.UUID) (*model.Practitioner, error) {
	query := `
		SELECT id, first_name, last_name, email, role, created_at, updated_at
		FROM practitioners WHERE id = $1
	`
	var practitioner model.Practitioner
	if err := r.db.GetContext(ctx, &practitioner, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("practitioner", err)
		}
		return nil, fmt.Errorf("failed to get practitioner: %w", err)
	}
	return &practitioner, nil
}

func (r *directoryRepository) GetResource(ctx context.Context, id uuid.UUID) (*model.Resource, error) {
	query := `SELECT id, name, kind, created_at, updated_at FROM resources WHERE id = $1`

	var resource model.Resource
	if err := r.db.GetContext(ctx, &resource, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("resource", err)
		}
		return nil, fmt.Errorf("failed to get resource: %w", err)
	}
	return &resource, nil
}
