package types

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a UUID wrapper for type safety
type ID string

// NewID generates a new random ID
func NewID() ID {
	return ID(uuid.New().String())
}

// ParseID parses a string into an ID
func ParseID(s string) (ID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid ID: %w", err)
	}
	return ID(s), nil
}

// MustParseID parses a string into an ID, panics on error
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsZero checks if the ID is empty
func (id ID) IsZero() bool {
	return id == ""
}
