package appointment

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/iosifidis/msc-pims/internal/middleware"
	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/internal/service/appointment"
	"github.com/iosifidis/msc-pims/pkg/errors"
	"github.com/iosifidis/msc-pims/pkg/httputil"
)

type Handler struct {
	service *appointment.Service
}

func NewHandler(service *appointment.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error()))
		return
	}

	apt, err := h.service.CreateAppointment(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, apt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid appointment ID"))
		return
	}

	apt, err := h.service.GetAppointment(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid appointment ID"))
		return
	}

	var req model.UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error()))
		return
	}
	if req.Empty() {
		httputil.RespondWithError(c, errors.Validation("no fields to update"))
		return
	}

	apt, err := h.service.UpdateAppointment(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid appointment ID"))
		return
	}

	var req model.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.Validation(err.Error()))
		return
	}

	apt, err := h.service.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid appointment ID"))
		return
	}

	cascade, _ := strconv.ParseBool(c.Query("cascade"))
	if err := h.service.DeleteAppointment(c.Request.Context(), id, cascade); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithNoContent(c)
}

func (h *Handler) ListByClient(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid client ID"))
		return
	}

	appointments, err := h.service.ListByClient(c.Request.Context(), clientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) ListByPatient(c *gin.Context) {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid patient ID"))
		return
	}

	appointments, err := h.service.ListByPatient(c.Request.Context(), patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}

// NextAppointment returns the authenticated practitioner's next slot.
func (h *Handler) NextAppointment(c *gin.Context) {
	practitionerID, err := middleware.PractitionerID(c)
	if err != nil {
		httputil.RespondWithError(c, errors.Unauthorized(err))
		return
	}

	apt, err := h.service.NextAppointment(c.Request.Context(), practitionerID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, apt)
}

func (h *Handler) SearchAppointments(c *gin.Context) {
	appointments, err := h.service.SearchAppointments(c.Request.Context(), c.Query("q"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}
