package feed

import (
	"sort"
	"strings"
)

// ID identifies one upstream GTFS-RT feed. A feed typically carries several
// related routes (all express/local variants of a line group).
type ID string

const urlPrefix = "https://api-endpoint.mta.info/Dataservice/mtagtfsfeeds/nyct%2F"

// IDs is the full set of NYC subway feeds, known statically at startup.
var IDs = []ID{
	"gtfs",      // 1 2 3 4 5 6 7 S
	"gtfs-ace",  // A C E + Rockaway/Franklin shuttles
	"gtfs-bdfm", // B D F M
	"gtfs-g",    // G
	"gtfs-jz",   // J Z
	"gtfs-l",    // L
	"gtfs-nqrw", // N Q R W
	"gtfs-si",   // Staten Island Railway
}

var routeToFeed = map[string]ID{
	"1": "gtfs", "2": "gtfs", "3": "gtfs", "4": "gtfs", "5": "gtfs",
	"6": "gtfs", "7": "gtfs", "S": "gtfs", "GS": "gtfs",
	"A": "gtfs-ace", "C": "gtfs-ace", "E": "gtfs-ace",
	"H": "gtfs-ace", "FS": "gtfs-ace",
	"B": "gtfs-bdfm", "D": "gtfs-bdfm", "F": "gtfs-bdfm", "M": "gtfs-bdfm",
	"G": "gtfs-g",
	"J": "gtfs-jz", "Z": "gtfs-jz",
	"L": "gtfs-l",
	"N": "gtfs-nqrw", "Q": "gtfs-nqrw", "R": "gtfs-nqrw", "W": "gtfs-nqrw",
	"SI": "gtfs-si", "SIR": "gtfs-si",
}

// URL returns the upstream endpoint for the feed.
func (id ID) URL() string {
	return urlPrefix + string(id)
}

// Key returns the deterministic snapshot-store key for the feed.
func (id ID) Key() string {
	return string(id)
}

// ForService returns the feed serving a route. Express variants with a
// trailing "X" (e.g. "6X") ride the same feed as their base route.
func ForService(service string) (ID, bool) {
	base := strings.TrimSuffix(service, "X")
	id, ok := routeToFeed[base]
	return id, ok
}

// ForServices resolves the distinct feeds for a set of services, in a
// deterministic order. Unknown services resolve to nothing.
func ForServices(services []string) []ID {
	seen := map[ID]bool{}
	var ids []ID
	for _, svc := range services {
		id, ok := ForService(svc)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
