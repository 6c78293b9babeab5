package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Directory entities are owned by the practice directory, an external
// collaborator from the scheduling core's point of view. The core only ever
// reads them by identifier.

// Client is a pet owner.
type Client struct {
	Base
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Email     string `db:"email" json:"email,omitempty"`
	Phone     string `db:"phone" json:"phone,omitempty"`
	Address   string `db:"address" json:"address,omitempty"`
}

// Patient is the animal an appointment is booked for. OwnerID references the
// owning client; navigation is by lookup, never by back-pointer.
type Patient struct {
	Base
	OwnerID     uuid.UUID  `db:"owner_id" json:"owner_id"`
	Name        string     `db:"name" json:"name"`
	Species     string     `db:"species" json:"species,omitempty"`
	Breed       string     `db:"breed" json:"breed,omitempty"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
}

// Role gates access to destructive and clinical endpoints.
type Role string

const (
	RoleVet          Role = "VET"
	RoleAdmin        Role = "ADMIN"
	RoleReceptionist Role = "RECEPTIONIST"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleVet, RoleAdmin, RoleReceptionist:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Practitioner is a staff member appointments are booked against.
type Practitioner struct {
	Base
	FirstName string `db:"first_name" json:"first_name"`
	LastName  string `db:"last_name" json:"last_name"`
	Email     string `db:"email" json:"email"`
	Role      Role   `db:"role" json:"role"`
}

// Resource is a bookable room or piece of equipment.
type Resource struct {
	Base
	Name string `db:"name" json:"name"`
	Kind string `db:"kind" json:"kind,omitempty"`
}
