package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jamespfennell/gtfs"

	"closingdoors/internal/model"
)

// FeedData is one decoded upstream feed: the instant upstream generated it
// plus its trip records.
type FeedData struct {
	GeneratedAt time.Time
	Trips       []model.TripRecord
}

// Decoder retrieves and decodes one upstream feed. Implementations must fail,
// not hang, when the context deadline passes.
type Decoder interface {
	Decode(ctx context.Context, id ID) (*FeedData, error)
}

// HTTPDecoder fetches GTFS-RT protobuf over HTTP and decodes it.
type HTTPDecoder struct {
	apiKey string
	client *http.Client
	urlFor func(ID) string
}

func NewHTTPDecoder(apiKey string, timeout time.Duration) *HTTPDecoder {
	return &HTTPDecoder{
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
		urlFor: ID.URL,
	}
}

func (d *HTTPDecoder) Decode(ctx context.Context, id ID) (*FeedData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.urlFor(id), nil)
	if err != nil {
		return nil, err
	}
	if d.apiKey != "" {
		req.Header.Set("x-api-key", d.apiKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed %s: HTTP %d", id, resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", id, err)
	}

	rt, err := gtfs.ParseRealtime(b, &gtfs.ParseRealtimeOptions{})
	if err != nil {
		return nil, fmt.Errorf("decode feed %s: %w", id, err)
	}

	return &FeedData{
		GeneratedAt: rt.CreatedAt,
		Trips:       convertTrips(rt.Trips),
	}, nil
}

func convertTrips(trips []gtfs.Trip) []model.TripRecord {
	records := make([]model.TripRecord, 0, len(trips))
	for _, t := range trips {
		rec := model.TripRecord{
			TripID:  t.ID.ID,
			RouteID: t.ID.RouteID,
			Delayed: tripDelayed(t),
		}
		for _, stu := range t.StopTimeUpdates {
			if stu.StopID == nil || *stu.StopID == "" {
				continue
			}
			st := model.StopTimeRecord{StationDirection: *stu.StopID}
			if stu.Arrival != nil {
				st.Arrival = stu.Arrival.Time
			}
			if stu.Departure != nil {
				st.Departure = stu.Departure.Time
			}
			rec.StopTimes = append(rec.StopTimes, st)
		}
		records = append(records, rec)
	}
	return records
}

// tripDelayed reports whether the feed carries a positive delay anywhere on
// the trip.
func tripDelayed(t gtfs.Trip) bool {
	for _, stu := range t.StopTimeUpdates {
		if stu.Arrival != nil && stu.Arrival.Delay != nil && *stu.Arrival.Delay > 0 {
			return true
		}
		if stu.Departure != nil && stu.Departure.Delay != nil && *stu.Departure.Delay > 0 {
			return true
		}
	}
	return false
}
