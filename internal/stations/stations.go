package stations

import (
	"math"
	"os"
	"sort"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
)

// Station is one row of the static station reference set. Loaded once,
// immutable for the process lifetime.
type Station struct {
	ID   string  `csv:"stop_id" json:"id"`
	Name string  `csv:"stop_name" json:"name"`
	Lat  float64 `csv:"stop_lat" json:"lat"`
	Lon  float64 `csv:"stop_lon" json:"lon"`
}

// WithDistance is a station annotated with its distance from a query point.
type WithDistance struct {
	Station
	DistanceKm float64 `json:"distance_km"`
}

// Index holds the loaded station set.
type Index struct {
	stations []Station
}

// NewIndex builds an index from an already-loaded station set.
func NewIndex(sts []Station) *Index {
	return &Index{stations: sts}
}

// Load reads the stations CSV (stop_id,stop_name,stop_lat,stop_lon).
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open stations csv")
	}
	defer f.Close()

	var out []Station
	if err := gocsv.UnmarshalFile(f, &out); err != nil {
		return nil, errors.Wrap(err, "parse stations csv")
	}
	return &Index{stations: out}, nil
}

func (ix *Index) Len() int { return len(ix.stations) }

// Nearest returns stations ordered ascending by great-circle distance from
// the query point. A limit <= 0 returns all stations.
func (ix *Index) Nearest(lat, lon float64, limit int) []WithDistance {
	out := make([]WithDistance, 0, len(ix.stations))
	for _, s := range ix.stations {
		out = append(out, WithDistance{
			Station:    s,
			DistanceKm: haversineKm(lat, lon, s.Lat, s.Lon),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
