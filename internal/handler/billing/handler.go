package billing

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/iosifidis/msc-pims/internal/service/billing"
	"github.com/iosifidis/msc-pims/pkg/errors"
	"github.com/iosifidis/msc-pims/pkg/httputil"
)

type Handler struct {
	service *billing.Service
}

func NewHandler(service *billing.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) GetInvoiceByAppointment(c *gin.Context) {
	appointmentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, errors.Validation("invalid appointment ID"))
		return
	}

	invoice, err := h.service.GetInvoiceByAppointment(c.Request.Context(), appointmentID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, invoice)
}
