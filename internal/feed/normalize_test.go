package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"closingdoors/internal/model"
)

func ts(sec int64) *time.Time {
	t := time.Unix(sec, 0)
	return &t
}

func TestNormalizeGroupsAndSorts(t *testing.T) {
	gen := time.Unix(1000, 0)
	trips := []model.TripRecord{
		{
			TripID:  "t1",
			RouteID: "A",
			StopTimes: []model.StopTimeRecord{
				{StationDirection: "A32N", Arrival: ts(1300)},
				{StationDirection: "A36N", Arrival: ts(1100)},
			},
		},
		{
			TripID:  "t2",
			RouteID: "A",
			StopTimes: []model.StopTimeRecord{
				{StationDirection: "A32N", Arrival: ts(1200)},
			},
		},
		{
			TripID:  "t3",
			RouteID: "C",
			StopTimes: []model.StopTimeRecord{
				{StationDirection: "A32S", Arrival: ts(1500)},
			},
		},
	}

	got := Normalize(trips, gen)

	require.Len(t, got, 2)
	require.Contains(t, got, "A")
	require.Contains(t, got, "C")

	a32 := got["A"]["A32N"]
	require.Len(t, a32, 2)
	assert.Equal(t, "t2", a32[0].ID)
	assert.Equal(t, int64(1200), a32[0].Arrival)
	assert.Equal(t, "t1", a32[1].ID)
	assert.Equal(t, int64(1300), a32[1].Arrival)

	for route, byStation := range got {
		for station, arrivals := range byStation {
			for i := 1; i < len(arrivals); i++ {
				assert.LessOrEqual(t, arrivals[i-1].Arrival, arrivals[i].Arrival,
					"route %s station %s out of order", route, station)
			}
		}
	}
}

func TestNormalizeDropsPastAndUndefined(t *testing.T) {
	gen := time.Unix(1000, 0)
	trips := []model.TripRecord{
		{
			TripID:  "t1",
			RouteID: "L",
			StopTimes: []model.StopTimeRecord{
				{StationDirection: "L03N", Arrival: ts(999)},  // already passed
				{StationDirection: "L03S"},                    // no arrival, no departure
				{StationDirection: "L06N", Arrival: ts(1000)}, // boundary, kept
			},
		},
	}

	got := Normalize(trips, gen)

	require.Len(t, got["L"], 1)
	require.Len(t, got["L"]["L06N"], 1)
	assert.Equal(t, int64(1000), got["L"]["L06N"][0].Arrival)
}

func TestNormalizeNoEmptyBuckets(t *testing.T) {
	gen := time.Unix(1000, 0)
	trips := []model.TripRecord{
		{
			TripID:  "t1",
			RouteID: "G",
			StopTimes: []model.StopTimeRecord{
				{StationDirection: "G22N", Arrival: ts(500)},
			},
		},
	}

	got := Normalize(trips, gen)
	assert.Empty(t, got)
}

func TestNormalizeFallsBackToDeparture(t *testing.T) {
	gen := time.Unix(1000, 0)
	trips := []model.TripRecord{
		{
			TripID:  "t1",
			RouteID: "7",
			StopTimes: []model.StopTimeRecord{
				{StationDirection: "725N", Departure: ts(1400)},
			},
		},
	}

	got := Normalize(trips, gen)
	require.Len(t, got["7"]["725N"], 1)
	assert.Equal(t, int64(1400), got["7"]["725N"][0].Arrival)
}

func TestNormalizeCarriesDelayedFlag(t *testing.T) {
	gen := time.Unix(1000, 0)
	trips := []model.TripRecord{
		{
			TripID:  "t1",
			RouteID: "F",
			Delayed: true,
			StopTimes: []model.StopTimeRecord{
				{StationDirection: "D21S", Arrival: ts(1100)},
			},
		},
		{
			TripID:  "t2",
			RouteID: "F",
			StopTimes: []model.StopTimeRecord{
				{StationDirection: "D21S", Arrival: ts(1200)},
			},
		},
	}

	got := Normalize(trips, gen)
	arrivals := got["F"]["D21S"]
	require.Len(t, arrivals, 2)
	assert.True(t, arrivals[0].Delayed)
	assert.False(t, arrivals[1].Delayed)
}

func TestNormalizeTiesKeepInputOrder(t *testing.T) {
	gen := time.Unix(1000, 0)
	trips := []model.TripRecord{
		{TripID: "first", RouteID: "N", StopTimes: []model.StopTimeRecord{
			{StationDirection: "R16N", Arrival: ts(1100)},
		}},
		{TripID: "second", RouteID: "N", StopTimes: []model.StopTimeRecord{
			{StationDirection: "R16N", Arrival: ts(1100)},
		}},
	}

	got := Normalize(trips, gen)
	arrivals := got["N"]["R16N"]
	require.Len(t, arrivals, 2)
	assert.Equal(t, "first", arrivals[0].ID)
	assert.Equal(t, "second", arrivals[1].ID)
}

func TestNormalizeDeterministic(t *testing.T) {
	gen := time.Unix(1000, 0)
	trips := []model.TripRecord{
		{TripID: "t1", RouteID: "1", StopTimes: []model.StopTimeRecord{
			{StationDirection: "101N", Arrival: ts(1300)},
			{StationDirection: "127S", Arrival: ts(1100)},
		}},
		{TripID: "t2", RouteID: "2", StopTimes: []model.StopTimeRecord{
			{StationDirection: "127S", Arrival: ts(1200)},
		}},
	}

	assert.Equal(t, Normalize(trips, gen), Normalize(trips, gen))
}

func TestActiveRoutes(t *testing.T) {
	data := model.StopDict{
		"Q": {"R16N": {{ID: "t1", Arrival: 1}}},
		"A": {"A32N": {{ID: "t2", Arrival: 2}}},
		"L": {"L03S": {{ID: "t3", Arrival: 3}}},
	}
	assert.Equal(t, []string{"A", "L", "Q"}, ActiveRoutes(data))
	assert.Empty(t, ActiveRoutes(model.StopDict{}))
}
