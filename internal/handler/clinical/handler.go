package clinical

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/internal/service/clinical"
	"github.com/iosifidis/msc-pims/pkg/errors"
	"github.com/iosifidis/msc-pims/pkg/httputil"
)

type Handler struct {
	service *clinical.Service
}

func NewHandler(service *clinical.Service) *Handler {
	return &Handler{service: service}
}

// SubmitRecord creates or updates the medical record for an appointment.
func (h *Handler) SubmitRecord(c *gin.Context) {
	var req model.SubmitRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error()))
		return
	}

	record, err := h.service.SubmitRecord(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, record)
}

func (h *Handler) GetRecordByAppointment(c *gin.Context) {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid appointment ID"))
		return
	}

	record, err := h.service.GetRecordByAppointment(c.Request.Context(), appointmentID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, record)
}

func (h *Handler) ListRecordsByPatient(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid patient ID"))
		return
	}

	records, err := h.service.ListRecordsByPatient(c.Request.Context(), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, records)
}

func (h *Handler) ListRecordsByClient(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid client ID"))
		return
	}

	records, err := h.service.ListRecordsByClient(c.Request.Context(), clientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, records)
}
