package node

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medbridge/exchange/internal/broker"
	"github.com/medbridge/exchange/internal/gender"
	"github.com/medbridge/exchange/internal/notify"
	"github.com/medbridge/exchange/internal/shared/errors"
	"github.com/medbridge/exchange/internal/shared/metrics"
	"github.com/medbridge/exchange/internal/shared/types"
	"github.com/rs/zerolog"
)

// Handler provides HTTP handlers for a hospital node
type Handler struct {
	repo      *Repository
	table     gender.CodeTable
	notifier  *notify.Notifier
	brokerURL string
	nodeCode  string
	log       zerolog.Logger
}

// NewHandler creates a new node handler
func NewHandler(repo *Repository, table gender.CodeTable, notifier *notify.Notifier, brokerURL, nodeCode string, log zerolog.Logger) *Handler {
	return &Handler{
		repo:      repo,
		table:     table,
		notifier:  notifier,
		brokerURL: brokerURL,
		nodeCode:  nodeCode,
		log:       log,
	}
}

// Routes registers the node routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/patients", func(r chi.Router) {
		r.Get("/", h.SearchPatients)
		r.Post("/", h.CreatePatient)

		r.Route("/{patientID}", func(r chi.Router) {
			r.Get("/", h.GetPatient)
			r.Delete("/", h.DeletePatient)
		})
	})

	r.Post("/notify", h.ReceiveNotification)

	return r
}

// CreatePatient registers a local patient. The gender field carries the
// node's local code and is mapped to the canonical value at ingestion;
// unknown codes fall back to canonical unknown.
func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var req CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Name == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"name": "name is required",
		}))
		return
	}

	now := time.Now().UTC()
	patient := &Patient{
		ID:          types.NewID(),
		Name:        req.Name,
		LocalGender: req.Gender,
		Gender:      h.table.Canonical(req.Gender),
		BirthDate:   req.BirthDate,
		Source:      SourceLocal,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	dup, err := h.repo.Insert(r.Context(), patient)
	if err != nil {
		writeError(w, err)
		return
	}
	if dup != nil {
		metrics.RecordDuplicateRejected(h.nodeCode)
		writeJSON(w, http.StatusOK, CreateResult{Stored: false, DuplicateOf: dup.ID})
		return
	}

	metrics.RecordPatientCreated(h.nodeCode, SourceLocal)
	h.notifier.NotifyBroker(h.brokerURL, h.canonical(patient))

	writeJSON(w, http.StatusCreated, CreateResult{Stored: true, Patient: patient})
}

// GetPatient gets a patient by ID
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	patient, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, patient)
}

// SearchPatients lists patients by substring name, exact gender, exact
// status and creation-time lower bound
func (h *Handler) SearchPatients(w http.ResponseWriter, r *http.Request) {
	filter := SearchFilter{
		Name: r.URL.Query().Get("name"),
	}

	if g := r.URL.Query().Get("gender"); g != "" {
		c := gender.Canonical(g)
		if !c.Valid() {
			writeError(w, errors.BadRequest("invalid gender"))
			return
		}
		filter.Gender = &c
	}

	if s := r.URL.Query().Get("status"); s != "" {
		status := Status(s)
		filter.Status = &status
	}

	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			writeError(w, errors.BadRequest("invalid since timestamp"))
			return
		}
		filter.Since = &t
	}

	patients, err := h.repo.Search(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  patients,
		"total": len(patients),
	})
}

// DeletePatient soft-deletes a patient and reports the flip to the broker
func (h *Handler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	patient, changed, err := h.repo.SoftDelete(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if changed {
		metrics.RecordPatientDeactivated(h.nodeCode)
		h.notifier.NotifyBroker(h.brokerURL, h.canonical(patient))
	}

	writeJSON(w, http.StatusOK, patient)
}

// ReceiveNotification accepts a canonical record fanned out by the broker.
// The canonical gender is mapped back to this node's local code; a record
// whose id is already present is left alone apart from a status flip.
func (h *Handler) ReceiveNotification(w http.ResponseWriter, r *http.Request) {
	var record broker.Patient
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if record.Name == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"name": "name is required",
		}))
		return
	}
	if record.ID.IsZero() {
		record.ID = types.NewID()
	}

	source := record.Meta.SourceHospital
	if source == "" || source == h.nodeCode {
		source = "hie"
	}

	now := time.Now().UTC()
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	patient := &Patient{
		ID:          record.ID,
		Name:        record.Name,
		LocalGender: h.table.Local(record.Gender),
		Gender:      record.Gender,
		BirthDate:   record.BirthDate,
		Source:      source,
		Status:      Status(record.Status),
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	}
	if patient.Status == "" {
		patient.Status = StatusActive
	}
	if !patient.Gender.Valid() {
		patient.Gender = gender.Unknown
		patient.LocalGender = h.table.Local(gender.Unknown)
	}

	stored, inserted, err := h.repo.InsertRemote(r.Context(), patient)
	if err != nil {
		writeError(w, err)
		return
	}

	h.log.Info().
		Str("patient_id", stored.ID.String()).
		Str("source", r.Header.Get("X-Source-Facility")).
		Bool("inserted", inserted).
		Msg("notification received")

	if inserted {
		metrics.RecordPatientCreated(h.nodeCode, stored.Source)
		writeJSON(w, http.StatusCreated, CreateResult{Stored: true, Patient: stored})
		return
	}
	writeJSON(w, http.StatusOK, CreateResult{Stored: false, Patient: stored})
}

// canonical converts a local record to the broker's interchange form
func (h *Handler) canonical(p *Patient) *broker.Patient {
	record := &broker.Patient{
		ID:        p.ID,
		Name:      p.Name,
		Gender:    p.Gender,
		BirthDate: p.BirthDate,
		Meta: broker.Meta{
			SourceHospital: h.nodeCode,
			SourceLocalID:  p.ID.String(),
		},
		Status:    broker.Status(p.Status),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.Status == StatusInactive {
		deletedAt := p.UpdatedAt
		record.DeletedAt = &deletedAt
	}
	return record
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
