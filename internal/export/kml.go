package export

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/twpayne/go-kml"

	"vessel-tracker/internal/geo"
	"vessel-tracker/internal/itinerary"
	"vessel-tracker/internal/predict"
	"vessel-tracker/internal/vessel"
)

// WriteKML renders the planned route, the waypoints, the latest fix and the
// active prediction as one KML document. Any of them may be absent.
func WriteKML(w io.Writer, name string, it *itinerary.Itinerary, latest *vessel.Fix, pred *predict.Prediction) error {
	var children []kml.Element
	children = append(children, kml.Name(name))

	if it != nil && it.Route.Len() > 1 {
		children = append(children, kml.Placemark(
			kml.Name("Planned route"),
			kml.Description(fmt.Sprintf("%.1f km", it.Route.Length())),
			kml.LineString(
				kml.Tessellate(true),
				kml.Coordinates(coordinates(it.Route.Points())...),
			),
		))
	}
	if it != nil && len(it.Waypoints) > 0 {
		stops := []kml.Element{kml.Name("Waypoints")}
		for _, wp := range it.Waypoints {
			stops = append(stops, kml.Placemark(
				kml.Name(wp.Title),
				kml.Description(waypointDescription(wp)),
				kml.Point(kml.Coordinates(coordinate(wp.Position()))),
			))
		}
		children = append(children, kml.Folder(stops...))
	}
	if latest != nil {
		children = append(children, kml.Placemark(
			kml.Name("Last fix"),
			kml.Description(fixDescription(*latest)),
			kml.Point(kml.Coordinates(coordinate(latest.Position()))),
		))
	}
	if pred != nil {
		children = append(children, kml.Placemark(
			kml.Name("Predicted position"),
			kml.Description(fmt.Sprintf("%s, %.1f km from fix %s", pred.Mode, pred.DistanceKm, pred.Source.ID)),
			kml.Point(kml.Coordinates(coordinate(pred.Fix.Position()))),
		))
		if len(pred.Path) > 1 {
			children = append(children, kml.Placemark(
				kml.Name("Predicted path"),
				kml.LineString(
					kml.Tessellate(true),
					kml.Coordinates(coordinates(pred.Path)...),
				),
			))
		}
	}

	return kml.KML(kml.Document(children...)).WriteIndent(w, "", "  ")
}

func (s *Server) handleKML(w http.ResponseWriter, _ *http.Request) {
	var latest *vessel.Fix
	if fix, ok := s.src.Latest(); ok {
		latest = &fix
	}
	var buf bytes.Buffer
	if err := WriteKML(&buf, s.vesselName, s.src.Itinerary(), latest, s.src.Prediction()); err != nil {
		log.Printf("kml render error: %v", err)
		writeError(w, http.StatusInternalServerError, "kml unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.google-earth.kml+xml")
	_, _ = w.Write(buf.Bytes())
}

func coordinate(p geo.Point) kml.Coordinate {
	return kml.Coordinate{Lon: p.Lon, Lat: p.Lat}
}

func coordinates(path geo.Path) []kml.Coordinate {
	out := make([]kml.Coordinate, len(path))
	for i, p := range path {
		out[i] = coordinate(p)
	}
	return out
}

func waypointDescription(wp vessel.Waypoint) string {
	d := wp.Day
	if wp.Country != "" {
		if d != "" {
			d += ", "
		}
		d += wp.Country
	}
	if wp.Departure != nil {
		if d != "" {
			d += ", "
		}
		d += "departs " + wp.Departure.In(zone(wp.Timezone)).Format("2006-01-02 15:04 MST")
	}
	return d
}

// zones caches loaded waypoint time zones; unknown names fall back to UTC.
var zones = expirable.NewLRU[string, *time.Location](32, nil, 24*time.Hour)

func zone(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	if loc, ok := zones.Get(name); ok {
		return loc
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("unknown waypoint timezone %q: %v", name, err)
		loc = time.UTC
	}
	zones.Add(name, loc)
	return loc
}

func fixDescription(f vessel.Fix) string {
	return fmt.Sprintf("%s, %.1f kn, %.0f°, %s",
		f.Timestamp.UTC().Format(time.RFC3339), f.SpeedOverGround, f.CourseOverGround, f.NavigationStatus)
}
