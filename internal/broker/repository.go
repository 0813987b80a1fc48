package broker

import (
	"context"
	"strings"
	"time"

	"github.com/medbridge/exchange/internal/match"
	"github.com/medbridge/exchange/internal/notify"
	"github.com/medbridge/exchange/internal/shared/errors"
	"github.com/medbridge/exchange/internal/shared/store"
	"github.com/medbridge/exchange/internal/shared/types"
)

// document is the broker's entire persisted state
type document struct {
	Patients []Patient     `json:"patients"`
	Peers    []notify.Peer `json:"peers"`
}

// Repository provides file-backed operations over canonical patients and the
// peer registry. Every method is one whole-file read-modify-write cycle.
type Repository struct {
	store *store.Store
}

// NewRepository creates a broker repository over the given store
func NewRepository(s *store.Store) *Repository {
	return &Repository{store: s}
}

func (r *Repository) load() (*document, error) {
	var doc document
	if err := r.store.Load(&doc); err != nil {
		return nil, errors.Wrap(err, "failed to load broker store")
	}
	return &doc, nil
}

func (r *Repository) save(doc *document) error {
	if err := r.store.Save(doc); err != nil {
		return errors.Wrap(err, "failed to save broker store")
	}
	return nil
}

// Insert adds a canonical patient unless the dedup check finds an existing
// record with the same case-insensitive name and birth date; in that case
// the existing record is returned and nothing is written.
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
// second return reports whether anything changed; deleting an already
// inactive record is a no-op that still returns the record.
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

		now := time.Now().UTC()
		p.Status = StatusInactive
		p.UpdatedAt = now
		p.DeletedAt = &now
		if err := r.save(doc); err != nil {
			return nil, false, err
		}
		return p, true, nil
	}
	return nil, false, errors.NotFound("patient", id.String())
}

// InsertRemote applies a record arriving on the notify endpoint. A record
// whose id is already present updates the stored lifecycle status in place;
// otherwise the normal dedup check runs before insertion.
func (r *Repository) InsertRemote(ctx context.Context, p *Patient) (*Patient, RemoteOutcome, error) {
	doc, err := r.load()
	if err != nil {
		return nil, RemoteUnchanged, err
	}

	for i := range doc.Patients {
		existing := &doc.Patients[i]
		if existing.ID == p.ID {
			if existing.Status == p.Status {
				return existing, RemoteUnchanged, nil
			}
			existing.Status = p.Status
			existing.DeletedAt = p.DeletedAt
			existing.UpdatedAt = time.Now().UTC()
			if err := r.save(doc); err != nil {
				return nil, RemoteUnchanged, err
			}
			return existing, RemoteUpdated, nil
		}
	}

	for i := range doc.Patients {
		existing := &doc.Patients[i]
		if match.SamePerson(p.Name, p.BirthDate, existing.Name, existing.BirthDate) {
			return existing, RemoteDuplicate, nil
		}
	}

	doc.Patients = append(doc.Patients, *p)
	if err := r.save(doc); err != nil {
		return nil, RemoteUnchanged, err
	}
	return p, RemoteInserted, nil
}

// --- Peer registry ---

// AddPeer registers a hospital node as a fan-out target
func (r *Repository) AddPeer(ctx context.Context, peer *notify.Peer) error {
	doc, err := r.load()
	if err != nil {
		return err
	}

	for _, existing := range doc.Peers {
		if existing.Code == peer.Code {
			return errors.Conflict("peer with this code already registered")
		}
	}

	doc.Peers = append(doc.Peers, *peer)
	return r.save(doc)
}

// ListPeers lists all registered peers
func (r *Repository) ListPeers(ctx context.Context) ([]notify.Peer, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	if doc.Peers == nil {
		return []notify.Peer{}, nil
	}
	return doc.Peers, nil
}
