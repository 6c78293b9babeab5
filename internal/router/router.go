package router

import (
	"github.com/gin-gonic/gin"

	"github.com/iosifidis/msc-pims/internal/config"
	"github.com/iosifidis/msc-pims/internal/handler"
	appointmenthandler "github.com/iosifidis/msc-pims/internal/handler/appointment"
	billinghandler "github.com/iosifidis/msc-pims/internal/handler/billing"
	clinicalhandler "github.com/iosifidis/msc-pims/internal/handler/clinical"
	"github.com/iosifidis/msc-pims/internal/middleware"
	"github.com/iosifidis/msc-pims/internal/model"
	"github.com/iosifidis/msc-pims/pkg/metrics"
)

type Router struct {
	engine       *gin.Engine
	auth         *middleware.AuthMiddleware
	appointmentH *appointmenthandler.Handler
	clinicalH    *clinicalhandler.Handler
	billingH     *billinghandler.Handler
	h            *handler.Handler
}

func NewRouter(
	cfg config.ServerConfig,
	auth *middleware.AuthMiddleware,
	appointmentH *appointmenthandler.Handler,
	clinicalH *clinicalhandler.Handler,
	billingH *billinghandler.Handler,
	h *handler.Handler,
	m *metrics.Metrics,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Metrics(m),
		middleware.ErrorHandler(),
		middleware.Timeout(cfg.RequestTimeout),
		middleware.CORS(middleware.DefaultCORSConfig()),
	)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	engine.Use(rateLimiter.RateLimit())

	return &Router{
		engine:       engine,
		auth:         auth,
		appointmentH: appointmentH,
		clinicalH:    clinicalH,
		billingH:     billingH,
		h:            h,
	}
}

func (r *Router) Setup() {
	r.engine.GET("/health", r.h.LivenessCheck)
	r.engine.GET("/ready", r.h.ReadinessCheck)
	r.engine.GET("/metrics", r.h.MetricsHandler)

	api := r.engine.Group("/api/v1")
	api.Use(r.auth.Authenticate())

	appointments := api.Group("/appointments")
	{
		appointments.POST("", r.appointmentH.CreateAppointment)
		appointments.GET("/next", r.appointmentH.NextAppointment)
		appointments.GET("/search", r.appointmentH.SearchAppointments)
		appointments.GET("/client/:id", r.appointmentH.ListByClient)
		appointments.GET("/patient/:id", r.appointmentH.ListByPatient)
		appointments.GET("/:id", r.appointmentH.GetAppointment)
		appointments.PUT("/:id", r.appointmentH.UpdateAppointment)
		appointments.PATCH("/:id/status", r.appointmentH.UpdateStatus)
		appointments.DELETE("/:id", r.auth.RequireRole(model.RoleAdmin), r.appointmentH.DeleteAppointment)
	}

	records := api.Group("/medical-records")
	records.Use(r.auth.RequireRole(model.RoleVet, model.RoleAdmin))
	{
		records.POST("", r.clinicalH.SubmitRecord)
		records.GET("/appointment/:id", r.clinicalH.GetRecordByAppointment)
		records.GET("/patient/:id", r.clinicalH.ListRecordsByPatient)
		records.GET("/client/:id", r.clinicalH.ListRecordsByClient)
	}

	invoices := api.Group("/invoices")
	{
		invoices.GET("/appointment/:id", r.billingH.GetInvoiceByAppointment)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
