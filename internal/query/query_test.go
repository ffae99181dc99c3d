package query

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"closingdoors/internal/model"
	"closingdoors/internal/stations"
	"closingdoors/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedSnapshot(t *testing.T, mem *store.Memory, snap *model.FeedSnapshot) {
	t.Helper()
	require.NoError(t, mem.PutSnapshot(context.Background(), snap.ID, snap))
}

func newTestService(mem *store.Memory) *Service {
	ix := stations.NewIndex([]stations.Station{
		{ID: "127", Name: "Times Sq-42 St", Lat: 40.75529, Lon: -73.987495},
		{ID: "631", Name: "Grand Central-42 St", Lat: 40.751776, Lon: -73.976848},
		{ID: "S31", Name: "St George", Lat: 40.643748, Lon: -74.073643},
	})
	return NewService(mem, mem, ix, discardLogger())
}

func TestTrainTimesBasic(t *testing.T) {
	mem := store.NewMemory()
	seedSnapshot(t, mem, &model.FeedSnapshot{
		ID: "gtfs-ace",
		Data: model.StopDict{
			"A": {
				"123N": {{ID: "t1", Arrival: 1000}},
			},
			"C": {
				"123N": {{ID: "t2", Arrival: 1100}},
			},
		},
		ActiveRoutes:  []string{"A", "C"},
		UpdatedAt:     990,
		FeedUpdatedAt: 980,
	})
	svc := newTestService(mem)

	resp, err := svc.TrainTimes(context.Background(), TrainTimesRequest{Services: []string{"A"}})
	require.NoError(t, err)

	require.Len(t, resp.StationServiceTrips, 1)
	entry := resp.StationServiceTrips[0]
	assert.Equal(t, "123N", entry.StationID)
	require.Len(t, entry.ServiceTrips, 1)
	assert.Equal(t, "A", entry.ServiceTrips[0].Service)
	require.Len(t, entry.ServiceTrips[0].Trips, 1)
	assert.Equal(t, "t1", entry.ServiceTrips[0].Trips[0].ID)
	assert.Equal(t, int64(1000), entry.ServiceTrips[0].Trips[0].Arrival)

	require.NotNil(t, resp.UpdatedAt)
	assert.Equal(t, int64(990), *resp.UpdatedAt)
}

func TestTrainTimesEmptyServicesRejected(t *testing.T) {
	svc := newTestService(store.NewMemory())

	_, err := svc.TrainTimes(context.Background(), TrainTimesRequest{})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = svc.TrainTimes(context.Background(), TrainTimesRequest{Services: []string{}})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestTrainTimesInvalidDirectionRejected(t *testing.T) {
	svc := newTestService(store.NewMemory())

	_, err := svc.TrainTimes(context.Background(), TrainTimesRequest{
		Services:   []string{"A"},
		Directions: []model.Direction{"SIDEWAYS"},
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestTrainTimesDirectionFilter(t *testing.T) {
	mem := store.NewMemory()
	seedSnapshot(t, mem, &model.FeedSnapshot{
		ID: "gtfs-l",
		Data: model.StopDict{
			"L": {
				"L03N": {{ID: "t1", Arrival: 1000}},
				"L03S": {{ID: "t2", Arrival: 1050}},
			},
		},
		UpdatedAt: 990,
	})
	svc := newTestService(mem)

	resp, err := svc.TrainTimes(context.Background(), TrainTimesRequest{
		Services:   []string{"L"},
		Directions: []model.Direction{model.North},
	})
	require.NoError(t, err)

	require.Len(t, resp.StationServiceTrips, 1)
	assert.Equal(t, "L03N", resp.StationServiceTrips[0].StationID)
}

func TestTrainTimesStationFilter(t *testing.T) {
	mem := store.NewMemory()
	seedSnapshot(t, mem, &model.FeedSnapshot{
		ID: "gtfs",
		Data: model.StopDict{
			"6": {
				"631N": {{ID: "t1", Arrival: 1000}},
				"635N": {{ID: "t2", Arrival: 1100}},
			},
		},
		UpdatedAt: 990,
	})
	svc := newTestService(mem)

	resp, err := svc.TrainTimes(context.Background(), TrainTimesRequest{
		Services: []string{"6"},
		Stations: []string{"635"},
	})
	require.NoError(t, err)

	require.Len(t, resp.StationServiceTrips, 1)
	assert.Equal(t, "635N", resp.StationServiceTrips[0].StationID)
}

func TestTrainTimesFiltersUnrequestedRoutes(t *testing.T) {
	mem := store.NewMemory()
	seedSnapshot(t, mem, &model.FeedSnapshot{
		ID: "gtfs-ace",
		Data: model.StopDict{
			"A": {"A32N": {{ID: "t1", Arrival: 1000}}},
			"C": {"A32N": {{ID: "t2", Arrival: 1100}}},
			"E": {"A27S": {{ID: "t3", Arrival: 1200}}},
		},
		UpdatedAt: 990,
	})
	svc := newTestService(mem)

	resp, err := svc.TrainTimes(context.Background(), TrainTimesRequest{Services: []string{"A", "E"}})
	require.NoError(t, err)

	require.Len(t, resp.StationServiceTrips, 2)
	assert.Equal(t, "A27S", resp.StationServiceTrips[0].StationID)
	assert.Equal(t, "E", resp.StationServiceTrips[0].ServiceTrips[0].Service)
	assert.Equal(t, "A32N", resp.StationServiceTrips[1].StationID)
	require.Len(t, resp.StationServiceTrips[1].ServiceTrips, 1)
	assert.Equal(t, "A", resp.StationServiceTrips[1].ServiceTrips[0].Service)
}

func TestTrainTimesMinUpdatedAtAcrossFeeds(t *testing.T) {
	mem := store.NewMemory()
	seedSnapshot(t, mem, &model.FeedSnapshot{
		ID:        "gtfs-ace",
		Data:      model.StopDict{"A": {"A32N": {{ID: "t1", Arrival: 1000}}}},
		UpdatedAt: 990,
	})
	seedSnapshot(t, mem, &model.FeedSnapshot{
		ID:        "gtfs-l",
		Data:      model.StopDict{"L": {"L03N": {{ID: "t2", Arrival: 1100}}}},
		UpdatedAt: 950,
	})
	svc := newTestService(mem)

	resp, err := svc.TrainTimes(context.Background(), TrainTimesRequest{Services: []string{"A", "L"}})
	require.NoError(t, err)
	require.NotNil(t, resp.UpdatedAt)
	assert.Equal(t, int64(950), *resp.UpdatedAt)
}

func TestTrainTimesMissingSnapshotDegrades(t *testing.T) {
	mem := store.NewMemory()
	seedSnapshot(t, mem, &model.FeedSnapshot{
		ID:        "gtfs-ace",
		Data:      model.StopDict{"A": {"A32N": {{ID: "t1", Arrival: 1000}}}},
		UpdatedAt: 990,
	})
	svc := newTestService(mem)

	// the "1" feed snapshot does not exist; only the A results come back
	resp, err := svc.TrainTimes(context.Background(), TrainTimesRequest{Services: []string{"A", "1"}})
	require.NoError(t, err)
	require.Len(t, resp.StationServiceTrips, 1)
	assert.Equal(t, "A32N", resp.StationServiceTrips[0].StationID)
	require.NotNil(t, resp.UpdatedAt)
	assert.Equal(t, int64(990), *resp.UpdatedAt)
}

func TestTrainTimesUnknownServicesResolveNoFeeds(t *testing.T) {
	svc := newTestService(store.NewMemory())

	resp, err := svc.TrainTimes(context.Background(), TrainTimesRequest{Services: []string{"ZZ"}})
	require.NoError(t, err)
	assert.Empty(t, resp.StationServiceTrips)
	assert.Nil(t, resp.UpdatedAt)
}

func TestTrainTimesExpressVariant(t *testing.T) {
	mem := store.NewMemory()
	seedSnapshot(t, mem, &model.FeedSnapshot{
		ID: "gtfs",
		Data: model.StopDict{
			"6":  {"631N": {{ID: "t1", Arrival: 1000}}},
			"6X": {"631N": {{ID: "t2", Arrival: 900}}},
		},
		UpdatedAt: 990,
	})
	svc := newTestService(mem)

	resp, err := svc.TrainTimes(context.Background(), TrainTimesRequest{Services: []string{"6X"}})
	require.NoError(t, err)
	require.Len(t, resp.StationServiceTrips, 1)
	require.Len(t, resp.StationServiceTrips[0].ServiceTrips, 1)
	assert.Equal(t, "6X", resp.StationServiceTrips[0].ServiceTrips[0].Service)
}

func TestNearestStations(t *testing.T) {
	svc := newTestService(store.NewMemory())

	// from Bryant Park: Times Sq first, Grand Central second
	got := svc.NearestStations(40.7536, -73.9832, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "127", got[0].ID)
	assert.Equal(t, "631", got[1].ID)
	assert.Less(t, got[0].DistanceKm, got[1].DistanceKm)
}

func TestGetRunningServices(t *testing.T) {
	mem := store.NewMemory()
	svc := newTestService(mem)

	_, err := svc.GetRunningServices(context.Background())
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, mem.PutMetadata(context.Background(), &model.SystemMetadata{
		Data:             []string{"A", "L"},
		UpdatedAt:        990,
		MinFeedUpdatedAt: 980,
	}))

	got, err := svc.GetRunningServices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "L"}, got.Services)
	assert.Equal(t, int64(990), got.UpdatedAt)
	assert.Equal(t, int64(980), got.MinFeedUpdatedAt)
}
