package portal

import (
	"context"
	"time"

	"github.com/medbridge/exchange/internal/shared/errors"
	"github.com/medbridge/exchange/internal/shared/store"
	"github.com/medbridge/exchange/internal/shared/types"
)

// document is the portal's entire persisted state
type document struct {
	Users         []User         `json:"users"`
	Patients      []Patient      `json:"patients"`
	Encounters    []Encounter    `json:"encounters"`
	Labs          []Lab          `json:"labs"`
	Diagnoses     []Diagnosis    `json:"diagnoses"`
	Prescriptions []Prescription `json:"prescriptions"`
}

// Repository provides file-backed CRUD over the portal records. Every
// method is one whole-file read-modify-write cycle.
type Repository struct {
	store *store.Store
}

// NewRepository creates a portal repository over the given store
func NewRepository(s *store.Store) *Repository {
	return &Repository{store: s}
}

func (r *Repository) load() (*document, error) {
	var doc document
	if err := r.store.Load(&doc); err != nil {
		return nil, errors.Wrap(err, "failed to load portal store")
	}
	return &doc, nil
}

func (r *Repository) save(doc *document) error {
	if err := r.store.Save(doc); err != nil {
		return errors.Wrap(err, "failed to save portal store")
	}
	return nil
}

// --- Users ---

// GetUserByUsername looks up a portal account by username
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	for i := range doc.Users {
		if doc.Users[i].Username == username {
			return &doc.Users[i], nil
		}
	}
	return nil, errors.NotFound("user", username)
}

// CreateUser adds a portal account
func (r *Repository) CreateUser(ctx context.Context, user *User) error {
	doc, err := r.load()
	if err != nil {
		return err
	}

	for _, existing := range doc.Users {
		if existing.Username == user.Username {
			return errors.Conflict("username already taken")
		}
	}

	doc.Users = append(doc.Users, *user)
	return r.save(doc)
}

// ListUsers lists all portal accounts
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	if doc.Users == nil {
		return []User{}, nil
	}
	return doc.Users, nil
}

// Seed inserts the default demo accounts if the user table is empty
func (r *Repository) Seed(ctx context.Context) error {
	doc, err := r.load()
	if err != nil {
		return err
	}
	if len(doc.Users) > 0 {
		return nil
	}

	now := time.Now().UTC()
	defaults := []struct {
		username string
		password string
		role     Role
	}{
		{"admin", "admin123", RoleAdmin},
		{"dr.osei", "physician123", RolePhysician},
		{"nurse.lam", "nurse123", RoleNurse},
		{"lab.ionescu", "lab123", RoleLabTech},
		{"rx.vargas", "pharm123", RolePharmacist},
	}

	for _, d := range defaults {
		doc.Users = append(doc.Users, User{
			ID:        types.NewID(),
			Username:  d.username,
			Password:  d.password,
			Role:      d.role,
			CreatedAt: now,
		})
	}
	return r.save(doc)
}

// --- Patients ---

// CreatePatient adds a portal patient
func (r *Repository) CreatePatient(ctx context.Context, p *Patient) error {
	doc, err := r.load()
	if err != nil {
		return err
	}

	doc.Patients = append(doc.Patients, *p)
	return r.save(doc)
}

// GetPatient retrieves a patient by ID
func (r *Repository) GetPatient(ctx context.Context, id types.ID) (*Patient, error) {
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

// ListPatients lists all portal patients
func (r *Repository) ListPatients(ctx context.Context) ([]Patient, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	if doc.Patients == nil {
		return []Patient{}, nil
	}
	return doc.Patients, nil
}

// SoftDeletePatient flips a patient to inactive; repeating is a no-op
func (r *Repository) SoftDeletePatient(ctx context.Context, id types.ID) (*Patient, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	for i := range doc.Patients {
		p := &doc.Patients[i]
		if p.ID != id {
			continue
		}
		if p.Status == StatusInactive {
			return p, nil
		}

		p.Status = StatusInactive
		p.UpdatedAt = time.Now().UTC()
		if err := r.save(doc); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, errors.NotFound("patient", id.String())
}

// --- Encounters ---

// CreateEncounter records an encounter for a patient
func (r *Repository) CreateEncounter(ctx context.Context, e *Encounter) error {
	doc, err := r.load()
	if err != nil {
		return err
	}
	if !r.patientExists(doc, e.PatientID) {
		return errors.NotFound("patient", e.PatientID.String())
	}

	doc.Encounters = append(doc.Encounters, *e)
	return r.save(doc)
}

// GetEncounter retrieves an encounter by ID
func (r *Repository) GetEncounter(ctx context.Context, id types.ID) (*Encounter, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	for i := range doc.Encounters {
		if doc.Encounters[i].ID == id {
			return &doc.Encounters[i], nil
		}
	}
	return nil, errors.NotFound("encounter", id.String())
}

// ListEncounters lists encounters for a patient
func (r *Repository) ListEncounters(ctx context.Context, patientID types.ID) ([]Encounter, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	results := []Encounter{}
	for _, e := range doc.Encounters {
		if e.PatientID == patientID {
			results = append(results, e)
		}
	}
	return results, nil
}

// --- Labs ---

// CreateLab records a lab result for a patient
func (r *Repository) CreateLab(ctx context.Context, l *Lab) error {
	doc, err := r.load()
	if err != nil {
		return err
	}
	if !r.patientExists(doc, l.PatientID) {
		return errors.NotFound("patient", l.PatientID.String())
	}

	doc.Labs = append(doc.Labs, *l)
	return r.save(doc)
}

// GetLab retrieves a lab result by ID
func (r *Repository) GetLab(ctx context.Context, id types.ID) (*Lab, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	for i := range doc.Labs {
		if doc.Labs[i].ID == id {
			return &doc.Labs[i], nil
		}
	}
	return nil, errors.NotFound("lab", id.String())
}

// ListLabs lists lab results for a patient
func (r *Repository) ListLabs(ctx context.Context, patientID types.ID) ([]Lab, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	results := []Lab{}
	for _, l := range doc.Labs {
		if l.PatientID == patientID {
			results = append(results, l)
		}
	}
	return results, nil
}

// --- Diagnoses ---

// CreateDiagnosis records a diagnosis for a patient
func (r *Repository) CreateDiagnosis(ctx context.Context, d *Diagnosis) error {
	doc, err := r.load()
	if err != nil {
		return err
	}
	if !r.patientExists(doc, d.PatientID) {
		return errors.NotFound("patient", d.PatientID.String())
	}

	doc.Diagnoses = append(doc.Diagnoses, *d)
	return r.save(doc)
}

// GetDiagnosis retrieves a diagnosis by ID
func (r *Repository) GetDiagnosis(ctx context.Context, id types.ID) (*Diagnosis, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	for i := range doc.Diagnoses {
		if doc.Diagnoses[i].ID == id {
			return &doc.Diagnoses[i], nil
		}
	}
	return nil, errors.NotFound("diagnosis", id.String())
}

// ListDiagnoses lists diagnoses for a patient
func (r *Repository) ListDiagnoses(ctx context.Context, patientID types.ID) ([]Diagnosis, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	results := []Diagnosis{}
	for _, d := range doc.Diagnoses {
		if d.PatientID == patientID {
			results = append(results, d)
		}
	}
	return results, nil
}

// --- Prescriptions ---

// CreatePrescription records a prescription for a patient
func (r *Repository) CreatePrescription(ctx context.Context, p *Prescription) error {
	doc, err := r.load()
	if err != nil {
		return err
	}
	if !r.patientExists(doc, p.PatientID) {
		return errors.NotFound("patient", p.PatientID.String())
	}

	doc.Prescriptions = append(doc.Prescriptions, *p)
	return r.save(doc)
}

// GetPrescription retrieves a prescription by ID
func (r *Repository) GetPrescription(ctx context.Context, id types.ID) (*Prescription, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	for i := range doc.Prescriptions {
		if doc.Prescriptions[i].ID == id {
			return &doc.Prescriptions[i], nil
		}
	}
	return nil, errors.NotFound("prescription", id.String())
}

// ListPrescriptions lists prescriptions for a patient
func (r *Repository) ListPrescriptions(ctx context.Context, patientID types.ID) ([]Prescription, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	results := []Prescription{}
	for _, p := range doc.Prescriptions {
		if p.PatientID == patientID {
			results = append(results, p)
		}
	}
	return results, nil
}

// Dispense flips the dispensed flag. Dispensing an already dispensed
// prescription is a no-op that returns the record unchanged.
func (r *Repository) Dispense(ctx context.Context, id types.ID) (*Prescription, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}

	for i := range doc.Prescriptions {
		p := &doc.Prescriptions[i]
		if p.ID != id {
			continue
		}
		if p.Dispensed {
			return p, nil
		}

		now := time.Now().UTC()
		p.Dispensed = true
		p.DispensedAt = &now
		if err := r.save(doc); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, errors.NotFound("prescription", id.String())
}

func (r *Repository) patientExists(doc *document, id types.ID) bool {
	for _, p := range doc.Patients {
		if p.ID == id {
			return true
		}
	}
	return false
}
