package registry

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinova/hms/internal/platform/validate"
)

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = validate.New()
	return e
}

func TestHandlerCreatePatient(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(svc)
	e := newTestEcho()

	body := `{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com"}`
	req := httptest.NewRequest(http.MethodPost, "/patients", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.CreatePatient(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var got Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.FirstName != "Ada" || !got.Active {
		t.Errorf("unexpected body: %+v", got)
	}
}

func TestHandlerCreatePatientValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(svc)
	e := newTestEcho()

	tests := []struct {
		name string
		body string
	}{
		{"missing last name", `{"first_name":"Ada"}`},
		{"bad email", `{"first_name":"Ada","last_name":"L","email":"not-an-email"}`},
		{"bad gender", `{"first_name":"Ada","last_name":"L","gender":"robot"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/patients", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()

			err := h.CreatePatient(e.NewContext(req, rec))
			he, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected HTTPError, got %v", err)
			}
			if he.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", he.Code)
			}
		})
	}
}

func TestHandlerGetPatientByMRN(t *testing.T) {
	svc, patients, _, _ := newTestService()
	h := NewHandler(svc)
	e := newTestEcho()

	seeded := seedPatient(patients)

	req := httptest.NewRequest(http.MethodGet, "/patients/mrn/MRN-1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("mrn")
	c.SetParamValues("MRN-1")

	if err := h.GetPatientByMRN(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got Patient
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != seeded.ID {
		t.Errorf("ID = %v, want %v", got.ID, seeded.ID)
	}

	req = httptest.NewRequest(http.MethodGet, "/patients/mrn/MRN-404", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("mrn")
	c.SetParamValues("MRN-404")

	err := h.GetPatientByMRN(c)
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if he.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", he.Code)
	}
}

func TestHandlerCreateAppointmentAndStatus(t *testing.T) {
	svc, patients, practitioners, _ := newTestService()
	h := NewHandler(svc)
	e := newTestEcho()

	pat := seedPatient(patients)
	doc := seedPractitioner(practitioners)

	body, _ := json.Marshal(map[string]interface{}{
		"patient_id":      pat.ID,
		"practitioner_id": doc.ID,
		"scheduled_at":    time.Now().Add(time.Hour).Format(time.RFC3339),
	})
	req := httptest.NewRequest(http.MethodPost, "/appointments", strings.NewReader(string(body)))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.CreateAppointment(e.NewContext(req, rec)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var a Appointment
	if err := json.Unmarshal(rec.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"cancelled"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.UpdateAppointmentStatus(c); err != nil {
		t.Fatalf("status: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	// terminal, a second transition must conflict
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"status":"fulfilled"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	err := h.UpdateAppointmentStatus(c)
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if he.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", he.Code)
	}
}

func TestHandlerGetPatientNotFound(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(svc)
	e := newTestEcho()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	err := h.GetPatient(c)
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected HTTPError, got %v", err)
	}
	if he.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", he.Code)
	}
}
