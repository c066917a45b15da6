package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table.
type Patient struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	MRN                   string     `db:"mrn" json:"mrn"`
	Active                bool       `db:"active" json:"active"`
	FirstName             string     `db:"first_name" json:"first_name"`
	LastName              string     `db:"last_name" json:"last_name"`
	BirthDate             *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	Gender                *string    `db:"gender" json:"gender,omitempty"`
	PhoneMobile           *string    `db:"phone_mobile" json:"phone_mobile,omitempty"`
	Email                 *string    `db:"email" json:"email,omitempty"`
	AddressLine1          *string    `db:"address_line1" json:"address_line1,omitempty"`
	City                  *string    `db:"city" json:"city,omitempty"`
	PostalCode            *string    `db:"postal_code" json:"postal_code,omitempty"`
	EmergencyContactName  *string    `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string    `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	MonitoringEnabled     bool       `db:"monitoring_enabled" json:"monitoring_enabled"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}
