package export

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"vessel-tracker/internal/geo"
	"vessel-tracker/internal/itinerary"
	"vessel-tracker/internal/predict"
	"vessel-tracker/internal/vessel"
)

// Source is the read side of the tracker.
type Source interface {
	MMSI() string
	Latest() (vessel.Fix, bool)
	Prediction() *predict.Prediction
	Positions(ctx context.Context, from, to time.Time) ([]vessel.Fix, error)
	Itinerary() *itinerary.Itinerary
}

// Server serves the position API and the route views.
type Server struct {
	src        Source
	vesselName string
	health     func(ctx context.Context) error
}

// NewServer builds the HTTP handlers. health may be nil.
func NewServer(src Source, vesselName string, health func(ctx context.Context) error) *Server {
	return &Server{src: src, vesselName: vesselName, health: health}
}

// Routes returns handlers keyed by mux pattern.
func (s *Server) Routes() map[string]http.Handler {
	return map[string]http.Handler{
		"GET /healthz":                http.HandlerFunc(s.handleHealth),
		"GET /api/position/latest":    http.HandlerFunc(s.handleLatest),
		"GET /api/position/range":     http.HandlerFunc(s.handleRange),
		"GET /api/position/predicted": http.HandlerFunc(s.handlePredicted),
		"GET /api/itinerary":          http.HandlerFunc(s.handleItinerary),
		"GET /api/settings":           http.HandlerFunc(s.handleSettings),
		"GET /route.kml":              http.HandlerFunc(s.handleKML),
	}
}

// Handler mounts Routes on a fresh mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	for pattern, h := range s.Routes() {
		mux.Handle(pattern, h)
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	fix, ok := s.src.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "position not found")
		return
	}
	writeJSON(w, http.StatusOK, fix)
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	from, err := parseTimeParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseTimeParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	fixes, err := s.src.Positions(r.Context(), from, to)
	if err != nil {
		log.Printf("positions query error: %v", err)
		writeError(w, http.StatusInternalServerError, "positions unavailable")
		return
	}
	if len(fixes) == 0 {
		writeError(w, http.StatusNotFound, "positions not found")
		return
	}
	writeJSON(w, http.StatusOK, fixes)
}

// PredictedView is the map view of the vessel: the prediction while one is
// active, the last actual fix otherwise.
type PredictedView struct {
	Predicting bool         `json:"predicting"`
	Mode       predict.Mode `json:"mode,omitempty"`
	Fix        vessel.Fix   `json:"fix"`
	Source     *vessel.Fix  `json:"source,omitempty"`
	Path       [][2]float64 `json:"path,omitempty"` // [lon, lat]
	DistanceKm float64      `json:"distanceKm,omitempty"`
}

func (s *Server) handlePredicted(w http.ResponseWriter, _ *http.Request) {
	if p := s.src.Prediction(); p != nil {
		src := p.Source
		writeJSON(w, http.StatusOK, PredictedView{
			Predicting: true,
			Mode:       p.Mode,
			Fix:        p.Fix,
			Source:     &src,
			Path:       lonLat(p.Path),
			DistanceKm: p.DistanceKm,
		})
		return
	}
	fix, ok := s.src.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "position not found")
		return
	}
	writeJSON(w, http.StatusOK, PredictedView{Fix: fix})
}

type itineraryView struct {
	Vessel    itinerary.VesselInfo `json:"vessel"`
	Route     routeView            `json:"route"`
	Waypoints []vessel.Waypoint    `json:"waypoints"`
}

type routeView struct {
	Polyline    string       `json:"polyline"`
	Coordinates [][2]float64 `json:"coordinates"` // [lon, lat]
	LengthKm    float64      `json:"lengthKm"`
}

func (s *Server) handleItinerary(w http.ResponseWriter, _ *http.Request) {
	it := s.src.Itinerary()
	if it == nil {
		writeError(w, http.StatusNotFound, "itinerary not loaded")
		return
	}
	view := itineraryView{
		Vessel:    it.Vessel,
		Waypoints: it.Waypoints,
		Route: routeView{
			Coordinates: lonLat(it.Route.Points()),
			LengthKm:    it.Route.Length(),
		},
	}
	if it.Route.Len() > 0 {
		view.Route.Polyline = it.Route.Polyline()
	}
	if view.Waypoints == nil {
		view.Waypoints = []vessel.Waypoint{}
	}
	writeJSON(w, http.StatusOK, view)
}

type settingsView struct {
	VesselMMSI      string     `json:"vessel_mmsi"`
	VesselName      string     `json:"vessel_name"`
	CruiseStartDate *time.Time `json:"cruise_start_date,omitempty"`
}

func (s *Server) handleSettings(w http.ResponseWriter, _ *http.Request) {
	view := settingsView{VesselMMSI: s.src.MMSI(), VesselName: s.vesselName}
	if it := s.src.Itinerary(); it != nil {
		if it.Vessel.Name != "" {
			view.VesselName = it.Vessel.Name
		}
		view.CruiseStartDate = it.Vessel.StartDate
	}
	writeJSON(w, http.StatusOK, view)
}

func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %q (want RFC 3339)", name, v)
	}
	return t, nil
}

func lonLat(path geo.Path) [][2]float64 {
	if len(path) == 0 {
		return nil
	}
	out := make([][2]float64, len(path))
	for i, p := range path {
		out[i] = [2]float64{p.Lon, p.Lat}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
