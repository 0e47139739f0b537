package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"stealthcompany.com/symptomcheck/internal/metrics"
)

// SetupRoutes configures and returns the HTTP router
func SetupRoutes(h *Handlers, jwtSecret []byte) *mux.Router {
	r := mux.NewRouter()

	r.Use(metrics.MetricsMiddleware)
	r.Use(CORSMiddleware)
	r.Use(AuthMiddleware(jwtSecret))

	r.HandleFunc(HealthPath, HealthHandler).Methods(http.MethodGet)
	r.Handle(MetricsPath, metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/symptoms", h.ListSymptoms).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/diagnose", h.Diagnose).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/diagnosis/validate", h.ValidateDiagnosis).Methods(http.MethodPut, http.MethodOptions)

	return r
}
