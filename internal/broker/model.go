package broker

import (
	"time"

	"github.com/medbridge/exchange/internal/gender"
	"github.com/medbridge/exchange/internal/shared/types"
)

// Status defines the lifecycle status of a patient record
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Patient is the canonical patient record exchanged through the HIE. It is
// also the wire format of peer notifications: nodes post it to the broker
// and the broker fans it out unchanged.
type Patient struct {
	ID        types.ID         `json:"id"`
	Name      string           `json:"name"`
	Gender    gender.Canonical `json:"gender"`
	BirthDate string           `json:"birth_date,omitempty"`
	Meta      Meta             `json:"meta"`
	Status    Status           `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	DeletedAt *time.Time       `json:"deleted_at,omitempty"`
}

// Meta carries free-form provenance for a canonical record
type Meta struct {
	SourceHospital string `json:"source_hospital,omitempty"`
	SourceLocalID  string `json:"source_local_id,omitempty"`
}

// CreatePatientRequest is the request to register a canonical patient
type CreatePatientRequest struct {
	Name      string `json:"name"`
	Gender    string `json:"gender"`
	BirthDate string `json:"birth_date,omitempty"`
	Meta      Meta   `json:"meta"`
}

// CreateResult reports whether a record was stored or rejected as a
// duplicate of an existing one.
type CreateResult struct {
	Stored      bool     `json:"stored"`
	DuplicateOf types.ID `json:"duplicateOf,omitempty"`
	Patient     *Patient `json:"patient,omitempty"`
}

// SearchFilter defines filters for listing patients
type SearchFilter struct {
	// Name matches case-insensitively as a substring.
	Name string
	// Gender and Status match exactly when set.
	Gender *gender.Canonical
	Status *Status
	// Since keeps records whose creation timestamp is >= the instant.
	Since *time.Time
}

// RegisterPeerRequest is the request to register a hospital node for fan-out
type RegisterPeerRequest struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	NotifyURL string `json:"notify_url"`
}

// RemoteOutcome describes what the notify receiver did with an incoming
// record.
type RemoteOutcome string

const (
	RemoteInserted  RemoteOutcome = "inserted"
	RemoteUpdated   RemoteOutcome = "updated"
	RemoteDuplicate RemoteOutcome = "duplicate"
	RemoteUnchanged RemoteOutcome = "unchanged"
)
