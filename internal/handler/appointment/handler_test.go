package appointment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/internal/repository/repositorytest"
	appointmentservice "github.com/iosifidis/msc-pims/internal/service/appointment"
	"github.com/iosifidis/msc-pims/pkg/validator"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := validator.Register(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type testEnv struct {
	engine *gin.Engine

	client       *model.Client
	patient      *model.Patient
	practitioner *model.Practitioner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	directory := repositorytest.NewDirectory()
	svc := appointmentservice.NewService(
		repositorytest.NewAppointmentRepo(),
		repositorytest.NewMedicalRecordRepo(),
		repositorytest.NewInvoiceRepo(),
		repositorytest.NewOutboxRepo(),
		directory,
		repositorytest.TxRunner{},
	)
	h := NewHandler(svc)

	env := &testEnv{
		client:       &model.Client{Base: model.Base{ID: uuid.New()}, FirstName: "Maria", LastName: "Papadopoulou"},
		patient:      &model.Patient{Base: model.Base{ID: uuid.New()}, Name: "Hermes"},
		practitioner: &model.Practitioner{Base: model.Base{ID: uuid.New()}, Role: model.RoleVet},
	}
	env.patient.OwnerID = env.client.ID
	directory.AddClient(env.client)
	directory.AddPatient(env.patient)
	directory.AddPractitioner(env.practitioner)

	engine := gin.New()
	api := engine.Group("/api/v1")
	appointments := api.Group("/appointments")
	appointments.POST("", h.CreateAppointment)
	appointments.GET("/:id", h.GetAppointment)
	appointments.PUT("/:id", h.UpdateAppointment)
	appointments.PATCH("/:id/status", h.UpdateStatus)
	appointments.DELETE("/:id", h.DeleteAppointment)

	env.engine = engine
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createBody(start, end time.Time) map[string]interface{} {
	return map[string]interface{}{
		"client_id":       e.client.ID,
		"patient_id":      e.patient.ID,
		"practitioner_id": e.practitioner.ID,
		"start_time":      start,
		"end_time":        end,
		"type":            "CHECKUP",
		"reason":          "annual checkup",
	}
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success)
	return envelope.Data
}

func TestCreateAndGetAppointment(t *testing.T) {
	env := newTestEnv(t)
	start := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)

	w := env.do(t, http.MethodPost, "/api/v1/appointments", env.createBody(start, start.Add(30*time.Minute)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	data := decodeData(t, w)
	id := data["id"].(string)
	assert.Equal(t, "SCHEDULED", data["status"])

	w = env.do(t, http.MethodGet, "/api/v1/appointments/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decodeData(t, w)["id"])
}

func TestCreateAppointmentBadRequest(t *testing.T) {
	env := newTestEnv(t)
	start := time.Now().Add(24 * time.Hour)

	// End before start is caught by request binding.
	w := env.do(t, http.MethodPost, "/api/v1/appointments", env.createBody(start, start.Add(-time.Hour)))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/appointments", map[string]interface{}{"type": "CHECKUP"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConflictMapsTo409(t *testing.T) {
	env := newTestEnv(t)
	start := time.Now().Add(24 * time.Hour).UTC()

	w := env.do(t, http.MethodPost, "/api/v1/appointments", env.createBody(start, start.Add(30*time.Minute)))
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/appointments", env.createBody(start.Add(15*time.Minute), start.Add(45*time.Minute)))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUnknownAppointmentMapsTo404(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/appointments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/appointments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusTransitionErrorsMapTo409(t *testing.T) {
	env := newTestEnv(t)
	start := time.Now().Add(24 * time.Hour).UTC()

	w := env.do(t, http.MethodPost, "/api/v1/appointments", env.createBody(start, start.Add(30*time.Minute)))
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeData(t, w)["id"].(string)

	path := fmt.Sprintf("/api/v1/appointments/%s/status", id)
	w = env.do(t, http.MethodPatch, path, map[string]string{"status": "CANCELLED"})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPatch, path, map[string]string{"status": "COMPLETED"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpdateEmptyBodyRejected(t *testing.T) {
	env := newTestEnv(t)
	start := time.Now().Add(24 * time.Hour).UTC()

	w := env.do(t, http.MethodPost, "/api/v1/appointments", env.createBody(start, start.Add(30*time.Minute)))
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeData(t, w)["id"].(string)

	w = env.do(t, http.MethodPut, "/api/v1/appointments/"+id, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteAppointmentViaAPI(t *testing.T) {
	env := newTestEnv(t)
	start := time.Now().Add(24 * time.Hour).UTC()

	w := env.do(t, http.MethodPost, "/api/v1/appointments", env.createBody(start, start.Add(30*time.Minute)))
	require.Equal(t, http.StatusCreated, w.Code)
	id := decodeData(t, w)["id"].(string)

	w = env.do(t, http.MethodDelete, "/api/v1/appointments/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/appointments/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
