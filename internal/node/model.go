package node

import (
	"time"

	"github.com/medbridge/exchange/internal/gender"
	"github.com/medbridge/exchange/internal/shared/types"
)

// Status defines the lifecycle status of a local patient record
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// SourceLocal marks records registered at this hospital rather than
// received from the HIE.
const SourceLocal = "local"

// Patient is a hospital node's local patient record. LocalGender carries the
// node's legacy encoding; Gender is the canonical value derived from it at
// ingestion.
type Patient struct {
	ID          types.ID         `json:"id"`
	Name        string           `json:"name"`
	LocalGender string           `json:"local_gender"`
	Gender      gender.Canonical `json:"gender"`
	BirthDate   string           `json:"birth_date,omitempty"`
	Source      string           `json:"source"`
	Status      Status           `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// CreatePatientRequest is the request to register a local patient. Gender is
// the node's local code, not the canonical value.
type CreatePatientRequest struct {
	Name      string `json:"name"`
	Gender    string `json:"gender"`
	BirthDate string `json:"birth_date,omitempty"`
}

// CreateResult reports whether a record was stored or rejected as a
// duplicate of an existing one.
type CreateResult struct {
	Stored      bool     `json:"stored"`
	DuplicateOf types.ID `json:"duplicateOf,omitempty"`
	Patient     *Patient `json:"patient,omitempty"`
}

// SearchFilter defines filters for listing local patients
type SearchFilter struct {
	Name   string
	Gender *gender.Canonical
	Status *Status
	Since  *time.Time
}
