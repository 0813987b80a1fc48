package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/medbridge/exchange/internal/shared/errors"
	"github.com/medbridge/exchange/internal/shared/metrics"
	"github.com/medbridge/exchange/internal/shared/types"
	"github.com/rs/zerolog"
)

// Request headers carrying the plaintext portal credentials.
const (
	HeaderUser     = "X-Portal-User"
	HeaderPassword = "X-Portal-Password"
)

type contextKey string

const userContextKey contextKey = "portal-user"

// Handler provides HTTP handlers for the clinical-workflow portal
type Handler struct {
	repo *Repository
	log  zerolog.Logger
}

// NewHandler creates a new portal handler
func NewHandler(repo *Repository, log zerolog.Logger) *Handler {
	return &Handler{repo: repo, log: log}
}

// Routes registers the portal routes. Every route sits behind the header
// credential check.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.Authenticate)

	r.Route("/patients", func(r chi.Router) {
		r.Get("/", h.ListPatients)
		r.Post("/", h.CreatePatient)

		r.Route("/{patientID}", func(r chi.Router) {
			r.Get("/", h.GetPatient)
			r.Delete("/", h.DeletePatient)

			r.Get("/encounters", h.ListEncounters)
			r.Post("/encounters", h.CreateEncounter)
			r.Get("/labs", h.ListLabs)
			r.Post("/labs", h.CreateLab)
			r.Get("/diagnoses", h.ListDiagnoses)
			r.Post("/diagnoses", h.CreateDiagnosis)
			r.Get("/prescriptions", h.ListPrescriptions)
			r.Post("/prescriptions", h.CreatePrescription)
		})
	})

	r.Get("/encounters/{encounterID}", h.GetEncounter)
	r.Get("/labs/{labID}", h.GetLab)
	r.Get("/diagnoses/{diagnosisID}", h.GetDiagnosis)
	r.Get("/prescriptions/{prescriptionID}", h.GetPrescription)
	r.Post("/prescriptions/{prescriptionID}/dispense", h.DispensePrescription)

	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.ListUsers)
		r.Post("/", h.CreateUser)
	})

	return r
}

// Authenticate checks the plaintext credential headers against the user
// table in the portal store. No token, no session, no expiry.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := r.Header.Get(HeaderUser)
		password := r.Header.Get(HeaderPassword)
		if username == "" || password == "" {
			metrics.RecordRoleDenial("none", "missing_credentials")
			writeError(w, errors.Unauthorized("missing credentials"))
			return
		}

		user, err := h.repo.GetUserByUsername(r.Context(), username)
		if err != nil || user.Password != password {
			metrics.RecordRoleDenial("none", "bad_credentials")
			writeError(w, errors.Unauthorized("invalid credentials"))
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(ctx context.Context) *User {
	user, ok := ctx.Value(userContextKey).(*User)
	if !ok {
		return nil
	}
	return user
}

// requireRole returns the caller when their role is in the allowed set and
// writes a 403 otherwise.
func (h *Handler) requireRole(w http.ResponseWriter, r *http.Request, allowed ...Role) *User {
	user := userFrom(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return nil
	}
	for _, role := range allowed {
		if user.Role == role {
			return user
		}
	}
	metrics.RecordRoleDenial(string(user.Role), "forbidden")
	writeError(w, errors.Forbidden("role not permitted for this operation"))
	return nil
}

// --- Patients ---

// CreatePatient creates a portal patient
func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	user := h.requireRole(w, r, RoleAdmin, RolePhysician, RoleNurse)
	if user == nil {
		return
	}

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
		ID:        types.NewID(),
		Name:      req.Name,
		Gender:    req.Gender,
		BirthDate: req.BirthDate,
		Phone:     req.Phone,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.repo.CreatePatient(r.Context(), patient); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, shapePatient(user.Role, *patient))
}

// GetPatient gets a patient, shaped for the caller's role
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	patient, err := h.repo.GetPatient(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, shapePatient(user.Role, *patient))
}

// ListPatients lists patients, shaped for the caller's role
func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	patients, err := h.repo.ListPatients(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	data := make([]map[string]any, 0, len(patients))
	for _, p := range patients {
		data = append(data, shapePatient(user.Role, p))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"total": len(data),
	})
}

// DeletePatient soft-deletes a patient
func (h *Handler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	user := h.requireRole(w, r, RoleAdmin, RolePhysician)
	if user == nil {
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	patient, err := h.repo.SoftDeletePatient(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, shapePatient(user.Role, *patient))
}

// --- Encounters ---

// CreateEncounter records an encounter
func (h *Handler) CreateEncounter(w http.ResponseWriter, r *http.Request) {
	user := h.requireRole(w, r, RoleAdmin, RolePhysician, RoleNurse)
	if user == nil {
		return
	}

	patientID, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	var req CreateEncounterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Reason == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"reason": "reason is required",
		}))
		return
	}

	occurredAt := req.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	encounter := &Encounter{
		ID:         types.NewID(),
		PatientID:  patientID,
		Department: req.Department,
		Reason:     req.Reason,
		Notes:      req.Notes,
		OccurredAt: occurredAt,
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.repo.CreateEncounter(r.Context(), encounter); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, shapeEncounter(user.Role, *encounter))
}

// GetEncounter gets an encounter, shaped for the caller's role
func (h *Handler) GetEncounter(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	id, err := types.ParseID(chi.URLParam(r, "encounterID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid encounter ID"))
		return
	}

	encounter, err := h.repo.GetEncounter(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, shapeEncounter(user.Role, *encounter))
}

// ListEncounters lists a patient's encounters
func (h *Handler) ListEncounters(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	patientID, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	encounters, err := h.repo.ListEncounters(r.Context(), patientID)
	if err != nil {
		writeError(w, err)
		return
	}

	data := make([]map[string]any, 0, len(encounters))
	for _, e := range encounters {
		data = append(data, shapeEncounter(user.Role, e))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"total": len(data),
	})
}

// --- Labs ---

// CreateLab records a lab result
func (h *Handler) CreateLab(w http.ResponseWriter, r *http.Request) {
	user := h.requireRole(w, r, RoleAdmin, RoleLabTech)
	if user == nil {
		return
	}

	patientID, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	var req CreateLabRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.TestName == "" || req.Result == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"test_name": "test_name is required",
			"result":    "result is required",
		}))
		return
	}

	collectedAt := req.CollectedAt
	if collectedAt.IsZero() {
		collectedAt = time.Now().UTC()
	}

	lab := &Lab{
		ID:          types.NewID(),
		PatientID:   patientID,
		TestName:    req.TestName,
		Result:      req.Result,
		Unit:        req.Unit,
		CollectedAt: collectedAt,
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.repo.CreateLab(r.Context(), lab); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, shapeLab(user.Role, *lab))
}

// GetLab gets a lab result, shaped for the caller's role
func (h *Handler) GetLab(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	id, err := types.ParseID(chi.URLParam(r, "labID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid lab ID"))
		return
	}

	lab, err := h.repo.GetLab(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, shapeLab(user.Role, *lab))
}

// ListLabs lists a patient's lab results
func (h *Handler) ListLabs(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	patientID, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	labs, err := h.repo.ListLabs(r.Context(), patientID)
	if err != nil {
		writeError(w, err)
		return
	}

	data := make([]map[string]any, 0, len(labs))
	for _, l := range labs {
		data = append(data, shapeLab(user.Role, l))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"total": len(data),
	})
}

// --- Diagnoses ---

// CreateDiagnosis records a diagnosis
func (h *Handler) CreateDiagnosis(w http.ResponseWriter, r *http.Request) {
	user := h.requireRole(w, r, RoleAdmin, RolePhysician)
	if user == nil {
		return
	}

	patientID, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	var req CreateDiagnosisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Code == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"code": "code is required",
		}))
		return
	}

	diagnosis := &Diagnosis{
		ID:          types.NewID(),
		PatientID:   patientID,
		Code:        req.Code,
		Description: req.Description,
		Notes:       req.Notes,
		CreatedAt:   time.Now().UTC(),
	}

	if err := h.repo.CreateDiagnosis(r.Context(), diagnosis); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, shapeDiagnosis(user.Role, *diagnosis))
}

// GetDiagnosis gets a diagnosis, shaped for the caller's role
func (h *Handler) GetDiagnosis(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	id, err := types.ParseID(chi.URLParam(r, "diagnosisID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid diagnosis ID"))
		return
	}

	diagnosis, err := h.repo.GetDiagnosis(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, shapeDiagnosis(user.Role, *diagnosis))
}

// ListDiagnoses lists a patient's diagnoses
func (h *Handler) ListDiagnoses(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	patientID, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	diagnoses, err := h.repo.ListDiagnoses(r.Context(), patientID)
	if err != nil {
		writeError(w, err)
		return
	}

	data := make([]map[string]any, 0, len(diagnoses))
	for _, d := range diagnoses {
		data = append(data, shapeDiagnosis(user.Role, d))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"total": len(data),
	})
}

// --- Prescriptions ---

// CreatePrescription records a prescription
func (h *Handler) CreatePrescription(w http.ResponseWriter, r *http.Request) {
	user := h.requireRole(w, r, RoleAdmin, RolePhysician)
	if user == nil {
		return
	}

	patientID, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	var req CreatePrescriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Drug == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"drug": "drug is required",
		}))
		return
	}

	prescription := &Prescription{
		ID:        types.NewID(),
		PatientID: patientID,
		Drug:      req.Drug,
		Dose:      req.Dose,
		Frequency: req.Frequency,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.repo.CreatePrescription(r.Context(), prescription); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, shapePrescription(user.Role, *prescription))
}

// GetPrescription gets a prescription, shaped for the caller's role
func (h *Handler) GetPrescription(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	id, err := types.ParseID(chi.URLParam(r, "prescriptionID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid prescription ID"))
		return
	}

	prescription, err := h.repo.GetPrescription(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, shapePrescription(user.Role, *prescription))
}

// ListPrescriptions lists a patient's prescriptions
func (h *Handler) ListPrescriptions(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	patientID, err := types.ParseID(chi.URLParam(r, "patientID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid patient ID"))
		return
	}

	prescriptions, err := h.repo.ListPrescriptions(r.Context(), patientID)
	if err != nil {
		writeError(w, err)
		return
	}

	data := make([]map[string]any, 0, len(prescriptions))
	for _, p := range prescriptions {
		data = append(data, shapePrescription(user.Role, p))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"total": len(data),
	})
}

// DispensePrescription flips the dispensed flag; pharmacists and admins
// only. Repeating the call is a no-op.
func (h *Handler) DispensePrescription(w http.ResponseWriter, r *http.Request) {
	user := h.requireRole(w, r, RoleAdmin, RolePharmacist)
	if user == nil {
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "prescriptionID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid prescription ID"))
		return
	}

	prescription, err := h.repo.Dispense(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, shapePrescription(user.Role, *prescription))
}

// --- Users ---

// CreateUser creates a portal account; admin only
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	if h.requireRole(w, r, RoleAdmin) == nil {
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"username": "username is required",
			"password": "password is required",
		}))
		return
	}
	if !req.Role.Valid() {
		writeError(w, errors.BadRequest("invalid role"))
		return
	}

	user := &User{
		ID:        types.NewID(),
		Username:  req.Username,
		Password:  req.Password,
		Role:      req.Role,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.repo.CreateUser(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, shapeUser(*user))
}

// ListUsers lists portal accounts; admin only
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if h.requireRole(w, r, RoleAdmin) == nil {
		return
	}

	users, err := h.repo.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	data := make([]map[string]any, 0, len(users))
	for _, u := range users {
		data = append(data, shapeUser(u))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  data,
		"total": len(data),
	})
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
