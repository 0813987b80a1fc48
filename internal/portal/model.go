package portal

import (
	"time"

	"github.com/medbridge/exchange/internal/shared/types"
)

// Role determines which of the five fixed response-shaping branches a
// portal user gets on each endpoint.
type Role string

const (
	RoleAdmin      Role = "admin"
	RolePhysician  Role = "physician"
	RoleNurse      Role = "nurse"
	RoleLabTech    Role = "labtech"
	RolePharmacist Role = "pharmacist"
)

// Valid reports whether the role is one of the five portal roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RolePhysician, RoleNurse, RoleLabTech, RolePharmacist:
		return true
	}
	return false
}

// User is a portal account. Credentials are checked as plaintext against
// the request headers; there is no token, session, or expiry.
type User struct {
	ID        types.ID  `json:"id"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Status defines the lifecycle status of a portal record
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Patient is a portal patient record
type Patient struct {
	ID        types.ID  `json:"id"`
	Name      string    `json:"name"`
	Gender    string    `json:"gender"`
	BirthDate string    `json:"birth_date,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Encounter is a clinical visit record
type Encounter struct {
	ID         types.ID  `json:"id"`
	PatientID  types.ID  `json:"patient_id"`
	Department string    `json:"department"`
	Reason     string    `json:"reason"`
	Notes      string    `json:"notes,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Lab is a laboratory result record
type Lab struct {
	ID          types.ID  `json:"id"`
	PatientID   types.ID  `json:"patient_id"`
	TestName    string    `json:"test_name"`
	Result      string    `json:"result"`
	Unit        string    `json:"unit,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// Diagnosis is a diagnosis record
type Diagnosis struct {
	ID          types.ID  `json:"id"`
	PatientID   types.ID  `json:"patient_id"`
	Code        string    `json:"code"`
	Description string    `json:"description"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Prescription is a prescription record. Dispensed is the only mutable
// field: the dispense endpoint flips it once and stays flipped.
type Prescription struct {
	ID          types.ID   `json:"id"`
	PatientID   types.ID   `json:"patient_id"`
	Drug        string     `json:"drug"`
	Dose        string     `json:"dose"`
	Frequency   string     `json:"frequency,omitempty"`
	Dispensed   bool       `json:"dispensed"`
	DispensedAt *time.Time `json:"dispensed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// --- Requests ---

// CreatePatientRequest is the request to create a portal patient
type CreatePatientRequest struct {
	Name      string `json:"name"`
	Gender    string `json:"gender"`
	BirthDate string `json:"birth_date,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// CreateEncounterRequest is the request to record an encounter
type CreateEncounterRequest struct {
	Department string    `json:"department"`
	Reason     string    `json:"reason"`
	Notes      string    `json:"notes,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// CreateLabRequest is the request to record a lab result
type CreateLabRequest struct {
	TestName    string    `json:"test_name"`
	Result      string    `json:"result"`
	Unit        string    `json:"unit,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
}

// CreateDiagnosisRequest is the request to record a diagnosis
type CreateDiagnosisRequest struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Notes       string `json:"notes,omitempty"`
}

// CreatePrescriptionRequest is the request to record a prescription
type CreatePrescriptionRequest struct {
	Drug      string `json:"drug"`
	Dose      string `json:"dose"`
	Frequency string `json:"frequency,omitempty"`
}

// CreateUserRequest is the request to create a portal account
type CreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}
