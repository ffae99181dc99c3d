package query

import (
	"context"
	"log/slog"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"closingdoors/internal/feed"
	"closingdoors/internal/model"
	"closingdoors/internal/stations"
	"closingdoors/internal/store"
)

// ValidationError is a caller error: bad or missing query input. It is
// surfaced immediately and never retried.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// IsValidationError reports whether err is a caller error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TrainTimesRequest selects upcoming arrivals by service, optionally
// filtered to stations and directions.
type TrainTimesRequest struct {
	Services   []string          `json:"services" validate:"required,min=1"`
	Stations   []string          `json:"stations,omitempty"`
	Directions []model.Direction `json:"directions,omitempty" validate:"omitempty,dive,oneof=NORTH SOUTH"`
}

type ServiceTrips struct {
	Service string          `json:"service"`
	Trips   []model.Arrival `json:"trips"`
}

type StationServiceTrips struct {
	StationID    string         `json:"stationId"`
	ServiceTrips []ServiceTrips `json:"serviceTrips"`
}

type TrainTimesResponse struct {
	StationServiceTrips []StationServiceTrips `json:"stationServiceTrips"`
	UpdatedAt           *int64                `json:"updatedAt"`
}

// RunningServices is the aggregate metadata record shaped for callers.
type RunningServices struct {
	Services         []string `json:"services"`
	UpdatedAt        int64    `json:"updatedAt"`
	MinFeedUpdatedAt int64    `json:"minFeedUpdatedAt"`
}

// Service answers read-side queries against previously committed snapshots.
// It is stateless and never blocks on the write path; it may observe any
// prior cycle's data (eventually consistent, no read-your-writes across
// feeds).
type Service struct {
	snapshots store.SnapshotStore
	metadata  store.MetadataStore
	stations  *stations.Index
	validate  *validator.Validate
	logger    *slog.Logger
}

func NewService(snapshots store.SnapshotStore, metadata store.MetadataStore, ix *stations.Index, logger *slog.Logger) *Service {
	return &Service{
		snapshots: snapshots,
		metadata:  metadata,
		stations:  ix,
		validate:  validator.New(),
		logger:    logger,
	}
}

// TrainTimes re-projects the per-feed snapshots into a station-centric
// answer. A feed whose snapshot is missing contributes nothing; a missing or
// empty service set fails the whole query.
func (s *Service) TrainTimes(ctx context.Context, req TrainTimesRequest) (*TrainTimesResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, &ValidationError{Msg: "at least one service must be provided"}
	}

	feeds := feed.ForServices(req.Services)
	if len(feeds) == 0 {
		return &TrainTimesResponse{StationServiceTrips: []StationServiceTrips{}}, nil
	}

	requested := stringSet(req.Services)
	var stationFilter map[string]bool
	if len(req.Stations) > 0 {
		stationFilter = stringSet(req.Stations)
	}
	var directionFilter map[model.Direction]bool
	if len(req.Directions) > 0 {
		directionFilter = map[model.Direction]bool{}
		for _, d := range req.Directions {
			directionFilter[d] = true
		}
	}

	// station-direction id -> service -> trips
	byStation := map[string]map[string][]model.Arrival{}
	var minUpdatedAt int64
	feedsRead := 0

	for _, id := range feeds {
		snap, err := s.snapshots.GetSnapshot(ctx, id.Key())
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("snapshot missing, feed skipped", "feed", string(id))
			continue
		}
		if err != nil {
			return nil, err
		}
		feedsRead++
		if minUpdatedAt == 0 || snap.UpdatedAt < minUpdatedAt {
			minUpdatedAt = snap.UpdatedAt
		}

		for routeID, byDir := range snap.Data {
			if !requested[routeID] {
				continue
			}
			for stationDir, trips := range byDir {
				stationID, direction := model.SplitStationDirection(stationDir)
				if stationFilter != nil && !stationFilter[stationID] {
					continue
				}
				if directionFilter != nil && !directionFilter[direction] {
					continue
				}
				bucket := byStation[stationDir]
				if bucket == nil {
					bucket = map[string][]model.Arrival{}
					byStation[stationDir] = bucket
				}
				// Each (station, route) pair is sourced from exactly one
				// feed, so overwrite semantics cannot conflict.
				bucket[routeID] = trips
			}
		}
	}

	resp := &TrainTimesResponse{
		StationServiceTrips: make([]StationServiceTrips, 0, len(byStation)),
	}
	stationIDs := make([]string, 0, len(byStation))
	for id := range byStation {
		stationIDs = append(stationIDs, id)
	}
	sort.Strings(stationIDs)
	for _, stationID := range stationIDs {
		bucket := byStation[stationID]
		services := make([]string, 0, len(bucket))
		for svc := range bucket {
			services = append(services, svc)
		}
		sort.Strings(services)
		entry := StationServiceTrips{StationID: stationID}
		for _, svc := range services {
			entry.ServiceTrips = append(entry.ServiceTrips, ServiceTrips{
				Service: svc,
				Trips:   bucket[svc],
			})
		}
		resp.StationServiceTrips = append(resp.StationServiceTrips, entry)
	}
	if feedsRead > 0 {
		resp.UpdatedAt = &minUpdatedAt
	}
	return resp, nil
}

// NearestStations returns the stations closest to a point, ascending by
// distance. A limit <= 0 returns all stations.
func (s *Service) NearestStations(lat, lon float64, limit int) []stations.WithDistance {
	return s.stations.Nearest(lat, lon, limit)
}

// GetRunningServices returns the aggregate metadata record.
func (s *Service) GetRunningServices(ctx context.Context) (*RunningServices, error) {
	meta, err := s.metadata.GetMetadata(ctx)
	if err != nil {
		return nil, err
	}
	return &RunningServices{
		Services:         meta.Data,
		UpdatedAt:        meta.UpdatedAt,
		MinFeedUpdatedAt: meta.MinFeedUpdatedAt,
	}, nil
}

func stringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
