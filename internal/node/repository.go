package node

import (
	"context"
	"strings"
	"time"

	"github.com/medbridge/exchange/internal/match"
	"github.com/medbridge/exchange/internal/shared/errors"
	"github.com/medbridge/exchange/internal/shared/store"
	"github.com/medbridge/exchange/internal/shared/types"
)

// document is the node's entire persisted state
type document struct {
	Patients []Patient `json:"patients"`
}

// Repository provides file-backed operations over local patients. Every
// method is one whole-file read-modify-write cycle.
type Repository struct {
	store *store.Store
}

// NewRepository creates a node repository over the given store
func NewRepository(s *store.Store) *Repository {
	return &Repository{store: s}
}

func (r *Repository) load() (*document, error) {
	var doc document
	if err := r.store.Load(&doc); err != nil {
		return nil, errors.Wrap(err, "failed to load node store")
	}
	return &doc, nil
}

func (r *Repository) save(doc *document) error {
	if err := r.store.Save(doc); err != nil {
		return errors.Wrap(err, "failed to save node store")
	}
	return nil
}

// Insert adds a local patient unless the dedup check finds an existing
// record with the same case-insensitive name and birth date.
func (r *Repository) Insert(ctx context.Context, p *Patient) (*Patient, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	for i := range doc.Patients {
		existing := &doc.Patients[i]
		if match.SamePerson(p.Name, p.BirthDate, existing.Name, existing.BirthDate) {
			return existing, nil
		}
	}

	doc.Patients = append(doc.Patients, *p)
	if err := r.save(doc); err != nil {
		return nil, err
	}
	return nil, nil
}

// Get retrieves a patient by ID
func (r *Repository) Get(ctx context.Context, id types.ID) (*Patient, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	for i := range doc.Patients {
		if doc.Patients[i].ID == id {
			return &doc.Patients[i], nil
		}
	}
	return nil, errors.NotFound("patient", id.String())
}

// Search lists patients matching the filter
func (r *Repository) Search(ctx context.Context, filter SearchFilter) ([]Patient, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	results := []Patient{}
	for _, p := range doc.Patients {
		if filter.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Name)) {
			continue
		}
		if filter.Gender != nil && p.Gender != *filter.Gender {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.Since != nil && p.CreatedAt.Before(*filter.Since) {
			continue
		}
		results = append(results, p)
	}
	return results, nil
}

// SoftDelete flips a patient to inactive, preserving every other field. The
// second return reports whether anything changed.
func (r *Repository) SoftDelete(ctx context.Context, id types.ID) (*Patient, bool, error) {
	doc, err := r.load()
	if err != nil {
		return nil, false, err
	}

	for i := range doc.Patients {
		p := &doc.Patients[i]
		if p.ID != id {
			continue
		}
		if p.Status == StatusInactive {
			return p, false, nil
		}

		p.Status = StatusInactive
		p.UpdatedAt = time.Now().UTC()
		if err := r.save(doc); err != nil {
			return nil, false, err
		}
		return p, true, nil
	}
	return nil, false, errors.NotFound("patient", id.String())
}

// InsertRemote stores a record received from the HIE fan-out. The only guard
// is the id check: a record whose id is already present updates the stored
// status at most; there is no name-based dedup on this path, so a redelivered
// record under a fresh id would duplicate.
func (r *Repository) InsertRemote(ctx context.Context, p *Patient) (*Patient, bool, error) {
	doc, err := r.load()
	if err != nil {
		return nil, false, err
	}

	for i := range doc.Patients {
		existing := &doc.Patients[i]
		if existing.ID != p.ID {
			continue
		}
		if existing.Status != p.Status {
			existing.Status = p.Status
			existing.UpdatedAt = time.Now().UTC()
			if err := r.save(doc); err != nil {
				return nil, false, err
			}
		}
		return existing, false, nil
	}

	doc.Patients = append(doc.Patients, *p)
	if err := r.save(doc); err != nil {
		return nil, false, err
	}
	return p, true, nil
}
