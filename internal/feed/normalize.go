package feed

import (
	"sort"
	"time"

	"closingdoors/internal/model"
)

// flatArrival is one (route, station-direction, eta, trip, delayed) tuple
// flattened out of a trip's stop-time updates.
type flatArrival struct {
	routeID    string
	stationDir string
	tripID     string
	eta        int64
	delayed    bool
}

// Normalize converts one feed's decoded trips into the nested
// route -> station-direction -> ordered arrival structure. Arrivals whose
// instant is undefined or before generatedAt are dropped; the rest are
// stable-sorted ascending by ETA, so every bucket is non-decreasing and ties
// keep insertion order. A key exists only if it has at least one arrival.
func Normalize(trips []model.TripRecord, generatedAt time.Time) model.StopDict {
	var flat []flatArrival
	for _, trip := range trips {
		for _, st := range trip.StopTimes {
			when := st.EventTime()
			if when == nil || when.Before(generatedAt) {
				continue
			}
			flat = append(flat, flatArrival{
				routeID:    trip.RouteID,
				stationDir: st.StationDirection,
				tripID:     trip.TripID,
				eta:        when.Unix(),
				delayed:    trip.Delayed,
			})
		}
	}

	sort.SliceStable(flat, func(i, j int) bool { return flat[i].eta < flat[j].eta })

	grouped := model.StopDict{}
	for _, f := range flat {
		byStation := grouped[f.routeID]
		if byStation == nil {
			byStation = map[string][]model.Arrival{}
			grouped[f.routeID] = byStation
		}
		byStation[f.stationDir] = append(byStation[f.stationDir], model.Arrival{
			ID:      f.tripID,
			Arrival: f.eta,
			Delayed: f.delayed,
		})
	}
	return grouped
}

// ActiveRoutes returns the sorted set of route ids present in a stop dict.
func ActiveRoutes(data model.StopDict) []string {
	routes := make([]string, 0, len(data))
	for routeID := range data {
		routes = append(routes, routeID)
	}
	sort.Strings(routes)
	return routes
}
