package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/carelane/hospital-scheduling/internal/notify"
	"github.com/carelane/hospital-scheduling/internal/schedule"
)

type RouterConfig struct {
	Service   *schedule.Service
	Hub       *notify.Hub
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	JWTSecret string
	Env       string
	Version   string
	Logger    zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Everything else requires a valid bearer token.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Post("/appointments", createAppointmentHandler(cfg.Service, cfg.Logger))
		r.Get("/appointments", listAppointmentsHandler(cfg.Service, cfg.Logger))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Service, cfg.Logger))
		r.Patch("/appointments/{id}/status", updateStatusHandler(cfg.Service, cfg.Logger))
		r.Patch("/appointments/{id}/schedule", rescheduleHandler(cfg.Service, cfg.Logger))
		r.Delete("/appointments/{id}", deleteAppointmentHandler(cfg.Service, cfg.Logger))

		r.Get("/doctors/{id}/slots", availableSlotsHandler(cfg.Service, cfg.Logger))
	})

	// UI subscribers connect here for booking events.
	if cfg.Hub != nil {
		r.Get("/ws", cfg.Hub.ServeHTTP)
	}

	return r
}
