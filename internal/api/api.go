package api

import (
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"closingdoors/internal/query"
)

// API is the read-side HTTP surface.
type API struct {
	queries *query.Service
	logger  *slog.Logger
}

func New(queries *query.Service, logger *slog.Logger) *API {
	return &API{queries: queries, logger: logger}
}

func (a *API) Routes() http.Handler {
	router := httprouter.New()
	router.HandlerFunc(http.MethodGet, "/api/trains", a.trainTimesHandler)
	router.HandlerFunc(http.MethodGet, "/api/stations/nearest", a.nearestStationsHandler)
	router.HandlerFunc(http.MethodGet, "/api/services", a.runningServicesHandler)
	return a.requestLogging(router)
}
