package node

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/medbridge/exchange/internal/broker"
	"github.com/medbridge/exchange/internal/gender"
	"github.com/medbridge/exchange/internal/notify"
	"github.com/medbridge/exchange/internal/shared/store"
	"github.com/medbridge/exchange/internal/shared/types"
	"github.com/rs/zerolog"
)

func newTestHandler(t *testing.T, nodeCode, brokerURL string) *Handler {
	t.Helper()
	s := store.Open(filepath.Join(t.TempDir(), "node.json"))
	repo := NewRepository(s)
	notifier := notify.NewNotifier(nodeCode, zerolog.Nop())
	return NewHandler(repo, gender.TableFor(nodeCode), notifier, brokerURL, nodeCode, zerolog.Nop())
}

func doJSON(t *testing.T, h *Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) CreateResult {
	t.Helper()
	var result CreateResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return result
}

func TestCreatePatientMapsLocalGenderCode(t *testing.T) {
	tests := []struct {
		nodeCode  string
		localCode string
		expected  gender.Canonical
	}{
		{"general", "F", gender.Female},
		{"general", "M", gender.Male},
		{"lakeside", "1", gender.Male},
		{"lakeside", "9", gender.Other},
		{"stmarys", "female", gender.Female},
		{"stmarys", "x", gender.Other},
	}

	for _, tt := range tests {
		t.Run(tt.nodeCode+"/"+tt.localCode, func(t *testing.T) {
			h := newTestHandler(t, tt.nodeCode, "http://localhost:9000")

			rec := doJSON(t, h, http.MethodPost, "/patients", CreatePatientRequest{
				Name:   "Ana Petrov",
				Gender: tt.localCode,
			})
			if rec.Code != http.StatusCreated {
				t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
			}

			result := decodeResult(t, rec)
			if result.Patient.LocalGender != tt.localCode {
				t.Errorf("Expected local gender '%s' preserved, got '%s'", tt.localCode, result.Patient.LocalGender)
			}
			if result.Patient.Gender != tt.expected {
				t.Errorf("Expected canonical gender '%s', got '%s'", tt.expected, result.Patient.Gender)
			}
			if result.Patient.Source != SourceLocal {
				t.Errorf("Expected source local, got '%s'", result.Patient.Source)
			}
		})
	}
}

func TestCreatePatientUnknownLocalCodeFallsBack(t *testing.T) {
	h := newTestHandler(t, "general", "http://localhost:9000")

	rec := doJSON(t, h, http.MethodPost, "/patients", CreatePatientRequest{
		Name:   "Ana Petrov",
		Gender: "Z",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rec.Code)
	}

	result := decodeResult(t, rec)
	if result.Patient.Gender != gender.Unknown {
		t.Errorf("Expected canonical unknown, got '%s'", result.Patient.Gender)
	}
}

func TestCreatePatientNotifiesBroker(t *testing.T) {
	received := make(chan broker.Patient, 1)
	brokerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/notify" {
			t.Errorf("Expected POST to /api/v1/notify, got '%s'", r.URL.Path)
		}
		var p broker.Patient
		json.NewDecoder(r.Body).Decode(&p)
		received <- p
		w.WriteHeader(http.StatusOK)
	}))
	defer brokerSrv.Close()

	h := newTestHandler(t, "lakeside", brokerSrv.URL)

	doJSON(t, h, http.MethodPost, "/patients", CreatePatientRequest{
		Name:      "Ana Petrov",
		Gender:    "2",
		BirthDate: "1985-03-12",
	})

	select {
	case got := <-received:
		if got.Gender != gender.Female {
			t.Errorf("Expected canonical gender female on the wire, got '%s'", got.Gender)
		}
		if got.Meta.SourceHospital != "lakeside" {
			t.Errorf("Expected source hospital 'lakeside', got '%s'", got.Meta.SourceHospital)
		}
		if got.Meta.SourceLocalID == "" {
			t.Error("Expected source local ID to be set")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Broker never received the notification")
	}
}

func TestCreateDuplicateDoesNotNotifyBroker(t *testing.T) {
	notified := make(chan struct{}, 2)
	brokerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		notified <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer brokerSrv.Close()

	h := newTestHandler(t, "general", brokerSrv.URL)

	req := CreatePatientRequest{Name: "Ana Petrov", Gender: "F", BirthDate: "1985-03-12"}
	doJSON(t, h, http.MethodPost, "/patients", req)

	rec := doJSON(t, h, http.MethodPost, "/patients", req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for duplicate, got %d", rec.Code)
	}
	result := decodeResult(t, rec)
	if result.Stored {
		t.Error("Expected stored to be false for duplicate")
	}

	// The first create notifies; the rejected duplicate must not.
	<-notified
	select {
	case <-notified:
		t.Error("Duplicate create should not notify the broker")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestSoftDeleteNotifiesBrokerWithInactiveStatus(t *testing.T) {
	received := make(chan broker.Patient, 2)
	brokerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p broker.Patient
		json.NewDecoder(r.Body).Decode(&p)
		received <- p
		w.WriteHeader(http.StatusOK)
	}))
	defer brokerSrv.Close()

	h := newTestHandler(t, "general", brokerSrv.URL)

	created := decodeResult(t, doJSON(t, h, http.MethodPost, "/patients", CreatePatientRequest{
		Name:   "Ana Petrov",
		Gender: "F",
	}))
	<-received

	rec := doJSON(t, h, http.MethodDelete, "/patients/"+created.Patient.ID.String(), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	select {
	case got := <-received:
		if got.Status != broker.StatusInactive {
			t.Errorf("Expected inactive status on the wire, got '%s'", got.Status)
		}
		if got.DeletedAt == nil {
			t.Error("Expected deleted_at on the wire for an inactive record")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Broker never received the delete notification")
	}
}

func TestReceiveNotificationStoresRemoteRecord(t *testing.T) {
	h := newTestHandler(t, "lakeside", "http://localhost:9000")

	record := broker.Patient{
		ID:        types.NewID(),
		Name:      "Marko Ilic",
		Gender:    gender.Male,
		BirthDate: "1970-11-02",
		Meta:      broker.Meta{SourceHospital: "stmarys", SourceLocalID: "7"},
		Status:    broker.StatusActive,
		CreatedAt: time.Now().UTC(),
	}

	rec := doJSON(t, h, http.MethodPost, "/notify", record)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	result := decodeResult(t, rec)
	if result.Patient.LocalGender != "1" {
		t.Errorf("Expected lakeside local code '1' for male, got '%s'", result.Patient.LocalGender)
	}
	if result.Patient.Source != "stmarys" {
		t.Errorf("Expected source 'stmarys', got '%s'", result.Patient.Source)
	}
}

func TestReceiveNotificationFromOwnCodeMarkedAsHIE(t *testing.T) {
	h := newTestHandler(t, "lakeside", "http://localhost:9000")

	record := broker.Patient{
		ID:     types.NewID(),
		Name:   "Marko Ilic",
		Gender: gender.Male,
		Meta:   broker.Meta{SourceHospital: "lakeside"},
		Status: broker.StatusActive,
	}

	rec := doJSON(t, h, http.MethodPost, "/notify", record)
	result := decodeResult(t, rec)
	if result.Patient.Source != "hie" {
		t.Errorf("Expected source 'hie', got '%s'", result.Patient.Source)
	}
}

func TestReceiveNotificationExistingIDIsNoOp(t *testing.T) {
	h := newTestHandler(t, "general", "http://localhost:9000")

	created := decodeResult(t, doJSON(t, h, http.MethodPost, "/patients", CreatePatientRequest{
		Name:      "Ana Petrov",
		Gender:    "F",
		BirthDate: "1985-03-12",
	}))

	record := broker.Patient{
		ID:        created.Patient.ID,
		Name:      "Ana Petrov",
		Gender:    gender.Female,
		BirthDate: "1985-03-12",
		Status:    broker.StatusActive,
	}
	rec := doJSON(t, h, http.MethodPost, "/notify", record)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for existing id, got %d", rec.Code)
	}
	result := decodeResult(t, rec)
	if result.Stored {
		t.Error("Expected stored to be false for existing id")
	}
	if result.Patient.Source != SourceLocal {
		t.Errorf("Expected local record untouched, got source '%s'", result.Patient.Source)
	}
}

func TestReceiveNotificationStatusFlipApplies(t *testing.T) {
	h := newTestHandler(t, "general", "http://localhost:9000")

	created := decodeResult(t, doJSON(t, h, http.MethodPost, "/patients", CreatePatientRequest{
		Name:   "Ana Petrov",
		Gender: "F",
	}))

	record := broker.Patient{
		ID:     created.Patient.ID,
		Name:   "Ana Petrov",
		Gender: gender.Female,
		Status: broker.StatusInactive,
	}
	rec := doJSON(t, h, http.MethodPost, "/notify", record)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	result := decodeResult(t, rec)
	if result.Patient.Status != StatusInactive {
		t.Errorf("Expected status flipped to inactive, got '%s'", result.Patient.Status)
	}
}

// A record arriving with a new id is stored even when a record with the same
// name and birth date already exists: the notify path checks ids only.
func TestReceiveNotificationDoesNotDedupByName(t *testing.T) {
	h := newTestHandler(t, "general", "http://localhost:9000")

	doJSON(t, h, http.MethodPost, "/patients", CreatePatientRequest{
		Name:      "Ana Petrov",
		Gender:    "F",
		BirthDate: "1985-03-12",
	})

	record := broker.Patient{
		ID:        types.NewID(),
		Name:      "Ana Petrov",
		Gender:    gender.Female,
		BirthDate: "1985-03-12",
		Status:    broker.StatusActive,
	}
	rec := doJSON(t, h, http.MethodPost, "/notify", record)

	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rec.Code)
	}

	list := doJSON(t, h, http.MethodGet, "/patients/", nil)
	var resp struct {
		Total int `json:"total"`
	}
	if err := json.NewDecoder(list.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("Expected 2 records after remote insert, got %d", resp.Total)
	}
}

func TestSearchPatients(t *testing.T) {
	h := newTestHandler(t, "general", "http://localhost:9000")

	doJSON(t, h, http.MethodPost, "/patients", CreatePatientRequest{Name: "Ana Petrov", Gender: "F", BirthDate: "1985-03-12"})
	doJSON(t, h, http.MethodPost, "/patients", CreatePatientRequest{Name: "Marko Ilic", Gender: "M", BirthDate: "1970-11-02"})

	rec := doJSON(t, h, http.MethodGet, "/patients/?gender=male", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var resp struct {
		Total int `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("Expected 1 male patient, got %d", resp.Total)
	}
}

func TestGetPatientNotFound(t *testing.T) {
	h := newTestHandler(t, "general", "http://localhost:9000")

	rec := doJSON(t, h, http.MethodGet, "/patients/"+types.NewID().String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", rec.Code)
	}
}
