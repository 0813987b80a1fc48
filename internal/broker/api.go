package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medbridge/exchange/internal/gender"
	"github.com/medbridge/exchange/internal/notify"
	"github.com/medbridge/exchange/internal/shared/errors"
	"github.com/medbridge/exchange/internal/shared/metrics"
	"github.com/medbridge/exchange/internal/shared/types"
	"github.com/rs/zerolog"
)

const serviceName = "broker"

// Handler provides HTTP handlers for the HIE broker
type Handler struct {
	repo     *Repository
	notifier *notify.Notifier
	log      zerolog.Logger
}

// NewHandler creates a new broker handler
func NewHandler(repo *Repository, notifier *notify.Notifier, log zerolog.Logger) *Handler {
	return &Handler{repo: repo, notifier: notifier, log: log}
}

// Routes registers the broker routes
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

	r.Route("/peers", func(r chi.Router) {
		r.Get("/", h.ListPeers)
		r.Post("/", h.RegisterPeer)
	})

	return r
}

// CreatePatient registers a canonical patient record
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

	g := gender.Canonical(req.Gender)
	if req.Gender == "" {
		g = gender.Unknown
	}
	if !g.Valid() {
		writeError(w, errors.BadRequest("invalid gender"))
		return
	}

	now := time.Now().UTC()
	patient := &Patient{
		ID:        types.NewID(),
		Name:      req.Name,
		Gender:    g,
		BirthDate: req.BirthDate,
		Meta:      req.Meta,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	dup, err := h.repo.Insert(r.Context(), patient)
	if err != nil {
		writeError(w, err)
		return
	}
	if dup != nil {
		metrics.RecordDuplicateRejected(serviceName)
		writeJSON(w, http.StatusOK, CreateResult{Stored: false, DuplicateOf: dup.ID})
		return
	}

	metrics.RecordPatientCreated(serviceName, sourceLabel(patient.Meta))
	h.fanOut(patient)

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

// DeletePatient soft-deletes a patient: status flips to inactive, everything
// else is preserved. Deleting an inactive patient is a no-op that returns
// the already-inactive record.
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
		metrics.RecordPatientDeactivated(serviceName)
		h.fanOut(patient)
	}

	writeJSON(w, http.StatusOK, patient)
}

// ReceiveNotification accepts a canonical record posted by a hospital node
func (h *Handler) ReceiveNotification(w http.ResponseWriter, r *http.Request) {
	var patient Patient
	if err := json.NewDecoder(r.Body).Decode(&patient); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if patient.Name == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"name": "name is required",
		}))
		return
	}
	if patient.ID.IsZero() {
		patient.ID = types.NewID()
	}
	if patient.Status == "" {
		patient.Status = StatusActive
	}
	if !patient.Gender.Valid() {
		patient.Gender = gender.Unknown
	}

	stored, outcome, err := h.repo.InsertRemote(r.Context(), &patient)
	if err != nil {
		writeError(w, err)
		return
	}

	h.log.Info().
		Str("patient_id", stored.ID.String()).
		Str("source", r.Header.Get("X-Source-Facility")).
		Str("outcome", string(outcome)).
		Msg("notification received")

	switch outcome {
	case RemoteInserted:
		metrics.RecordPatientCreated(serviceName, sourceLabel(stored.Meta))
		h.fanOut(stored)
		writeJSON(w, http.StatusCreated, CreateResult{Stored: true, Patient: stored})
	case RemoteUpdated:
		metrics.RecordPatientDeactivated(serviceName)
		h.fanOut(stored)
		writeJSON(w, http.StatusOK, CreateResult{Stored: false, Patient: stored})
	case RemoteDuplicate:
		metrics.RecordDuplicateRejected(serviceName)
		writeJSON(w, http.StatusOK, CreateResult{Stored: false, DuplicateOf: stored.ID})
	default:
		writeJSON(w, http.StatusOK, CreateResult{Stored: false, Patient: stored})
	}
}

// RegisterPeer registers a hospital node for fan-out
func (h *Handler) RegisterPeer(w http.ResponseWriter, r *http.Request) {
	var req RegisterPeerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Code == "" || req.NotifyURL == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"code":       "code is required",
			"notify_url": "notify_url is required",
		}))
		return
	}

	peer := &notify.Peer{
		ID:           types.NewID(),
		Code:         req.Code,
		Name:         req.Name,
		NotifyURL:    req.NotifyURL,
		RegisteredAt: time.Now().UTC(),
	}

	if err := h.repo.AddPeer(r.Context(), peer); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, peer)
}

// ListPeers lists registered peers
func (h *Handler) ListPeers(w http.ResponseWriter, r *http.Request) {
	peers, err := h.repo.ListPeers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  peers,
		"total": len(peers),
	})
}

// fanOut posts the current record to every registered peer, detached from
// the request. Delivery failures are logged and counted, never surfaced.
func (h *Handler) fanOut(patient *Patient) {
	peers, err := h.repo.ListPeers(context.Background())
	if err != nil {
		h.log.Error().Err(err).Msg("fan-out skipped: peer list unavailable")
		return
	}
	h.notifier.Broadcast(peers, patient)
}

func sourceLabel(meta Meta) string {
	if meta.SourceHospital != "" {
		return meta.SourceHospital
	}
	return "direct"
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
