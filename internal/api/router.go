package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dentalhub/clinic-booking/internal/negotiation"
	"github.com/dentalhub/clinic-booking/internal/notify"
)

type RouterConfig struct {
	Engine  *negotiation.Engine
	Devices notify.DeviceStore
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Negotiation endpoints
	r.Post("/appointments", requestAppointmentHandler(cfg.Engine))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Engine))
	r.Post("/appointments/{id}/clinic-response", clinicResponseHandler(cfg.Engine))
	r.Post("/appointments/{id}/patient-response", patientResponseHandler(cfg.Engine))
	r.Post("/appointments/{id}/cancel", cancelHandler(cfg.Engine))
	r.Post("/appointments/{id}/transition", transitionHandler(cfg.Engine))
	r.Get("/appointments/{id}/actions", actionsHandler(cfg.Engine))
	r.Post("/appointments/{id}/messages", addMessageHandler(cfg.Engine))
	r.Get("/patients/{id}/appointments", listByPatientHandler(cfg.Engine))
	r.Get("/clinics/{id}/appointments", listByClinicHandler(cfg.Engine))

	// Push token registration
	r.Post("/devices", registerDeviceHandler(cfg.Devices))

	return r
}
