package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/ymakhno/confbak/internal/api/middleware"
)

// Dependencies holds all handler dependencies for the router.
type Dependencies struct {
	HealthHandler http.HandlerFunc

	TriggerBackup  http.HandlerFunc
	UpsertSchedule http.HandlerFunc
	RemoveSchedule http.HandlerFunc

	ListDevices http.HandlerFunc
	GetDevice   http.HandlerFunc

	ListVersions    http.HandlerFunc
	GetVersion      http.HandlerFunc
	CompareVersions http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.Get("/api/v1/health", deps.HealthHandler)

	r.Get("/api/v1/devices", deps.ListDevices)
	r.Get("/api/v1/devices/{deviceID}", deps.GetDevice)

	r.Post("/api/v1/devices/{deviceID}/backup", deps.TriggerBackup)
	r.Put("/api/v1/devices/{deviceID}/schedule", deps.UpsertSchedule)
	r.Delete("/api/v1/devices/{deviceID}/schedule", deps.RemoveSchedule)

	r.Get("/api/v1/devices/{deviceID}/versions", deps.ListVersions)
	r.Get("/api/v1/versions/{versionID}", deps.GetVersion)
	r.Get("/api/v1/versions/{leftID}/compare/{rightID}", deps.CompareVersions)

	return r
}
