package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"whatsdrip/internal/middleware"
)

// NewRouter wires every endpoint of the API
func NewRouter(campaigns *CampaignHandler, health *HealthHandler, log zerolog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger(log), middleware.Recovery)

	router.HandleFunc("/health", health.HandleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/followup/webhook", campaigns.Webhook).Methods(http.MethodPost)
	api.HandleFunc("/companies/{companyId}/templates/{templateId}/preview", campaigns.Preview).Methods(http.MethodGet)
	api.HandleFunc("/companies/{companyId}/contacts/{contactId}/campaign", campaigns.CancelCampaign).Methods(http.MethodDelete)

	return router
}
