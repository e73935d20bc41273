// Package dggs builds request URLs for the OGC API - DGGS surface.
package dggs

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultBaseURL    = "https://maps.gnosis.earth/ogcapi"
	DefaultCollection = "SRTM_ViewFinderPanorama"
	DefaultSystem     = "rHEALPix"
	DefaultZoneLevel  = 2
)

// ZoneDataURL addresses the features of a single zone.
func ZoneDataURL(base, collection, system, zoneID string) string {
	return endpoint(base, "collections", collection, "dggs", system, "zones", zoneID, "data.geojson")
}

// ZonesListURL addresses the zone listing of a system at one refinement level.
func ZonesListURL(base, collection, system string, zoneLevel int) string {
	params := url.Values{}
	params.Set("zone-level", strconv.Itoa(zoneLevel))
	return endpoint(base, "collections", collection, "dggs", system, "zones.geojson") + "?" + params.Encode()
}

func endpoint(base string, segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

var families = []string{"rHEALPix", "H3", "S2", "ISEA3H", "IGEO"}

// AvailableSystems lists the system identifiers offered to users.
func AvailableSystems() []string {
	return []string{"rHEALPix-R12", "rHEALPix-R10", "rHEALPix-R8", "ISEA3H", "H3"}
}

// Family returns the grid family a system identifier belongs to, e.g. "rHEALPix" for "rHEALPix-R12".
func Family(system string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(system))
	for _, f := range families {
		if strings.HasPrefix(s, strings.ToLower(f)) {
			return f, true
		}
	}
	return "", false
}

func KnownSystem(system string) bool {
	_, ok := Family(system)
	return ok
}
