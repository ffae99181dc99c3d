package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"closingdoors/internal/model"
	"closingdoors/internal/query"
	"closingdoors/internal/store"
)

func (a *API) trainTimesHandler(w http.ResponseWriter, r *http.Request) {
	req := query.TrainTimesRequest{
		Services: listParam(r, "services"),
		Stations: listParam(r, "stations"),
	}
	for _, d := range listParam(r, "directions") {
		req.Directions = append(req.Directions, model.Direction(d))
	}

	resp, err := a.queries.TrainTimes(r.Context(), req)
	if err != nil {
		if query.IsValidationError(err) {
			a.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		a.serverErrorResponse(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *API) nearestStationsHandler(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := parseLatLon(r)
	if err != nil {
		a.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 0
	if v := r.URL.Query().Get("numStations"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			a.errorResponse(w, http.StatusBadRequest, "numStations must be an integer >= 1")
			return
		}
		limit = n
	}

	a.writeJSON(w, http.StatusOK, a.queries.NearestStations(lat, lon, limit))
}

func (a *API) runningServicesHandler(w http.ResponseWriter, r *http.Request) {
	services, err := a.queries.GetRunningServices(r.Context())
	if errors.Is(err, store.ErrNotFound) {
		a.errorResponse(w, http.StatusNotFound, "no running services recorded yet")
		return
	}
	if err != nil {
		a.serverErrorResponse(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, services)
}

func parseLatLon(r *http.Request) (float64, float64, error) {
	latStr := r.URL.Query().Get("lat")
	lonStr := r.URL.Query().Get("lon")
	if latStr == "" || lonStr == "" {
		return 0, 0, errors.New("missing lat or lon")
	}
	lat, err1 := strconv.ParseFloat(latStr, 64)
	lon, err2 := strconv.ParseFloat(lonStr, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, errors.New("invalid lat or lon")
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, errors.New("lat or lon out of range")
	}
	return lat, lon, nil
}

// listParam reads a comma-separated query parameter into a slice, dropping
// empty entries.
func listParam(r *http.Request, name string) []string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(raw, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
