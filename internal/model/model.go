package model

import (
	"strings"
	"time"
)

// Direction is the travel direction encoded in a station-direction id suffix.
type Direction string

const (
	North Direction = "NORTH"
	South Direction = "SOUTH"
)

// Arrival is one upcoming train at a station-direction, as stored in a snapshot.
type Arrival struct {
	ID      string `json:"id"`      // trip id
	Arrival int64  `json:"arrival"` // eta, epoch seconds
	Delayed bool   `json:"delayed,omitempty"`
}

// StopDict maps route id -> station-direction id -> arrivals ordered ascending by ETA.
type StopDict map[string]map[string][]Arrival

// FeedSnapshot is the complete materialized view of one feed's current
// arrivals. It is replaced wholesale every polling cycle; only the latest
// version per feed is kept.
type FeedSnapshot struct {
	ID            string   `json:"id"`
	Data          StopDict `json:"data"`
	ActiveRoutes  []string `json:"active_routes"`
	UpdatedAt     int64    `json:"updated_at"`      // when the snapshot was written
	FeedUpdatedAt int64    `json:"feed_updated_at"` // when upstream generated the feed
}

// MetadataKey is the fixed logical key of the single aggregate record.
const MetadataKey = "running_services"

// SystemMetadata summarizes the freshest cycle across all feeds.
type SystemMetadata struct {
	Data             []string `json:"data"` // union of active routes
	UpdatedAt        int64    `json:"updated_at"`
	MinFeedUpdatedAt int64    `json:"min_feed_updated_at"`
}

// StopTimeRecord is one stop-time update on a decoded trip. Arrival and
// Departure may each be nil when the feed omits them.
type StopTimeRecord struct {
	StationDirection string
	Arrival          *time.Time
	Departure        *time.Time
}

// EventTime returns the arrival instant if present, else the departure
// instant, else nil.
func (r StopTimeRecord) EventTime() *time.Time {
	if r.Arrival != nil {
		return r.Arrival
	}
	return r.Departure
}

// TripRecord is one decoded real-time trip. Produced by the feed decoder;
// read-only downstream.
type TripRecord struct {
	TripID    string
	RouteID   string
	Delayed   bool
	StopTimes []StopTimeRecord
}

// SplitStationDirection splits a station-direction id like "635N" into the
// station id and direction. A trailing "N" means NORTH, anything else SOUTH.
func SplitStationDirection(id string) (string, Direction) {
	if id == "" {
		return "", South
	}
	station := id[:len(id)-1]
	if strings.HasSuffix(id, "N") {
		return station, North
	}
	return station, South
}
