package bus

import (
	"time"

	"vessel-tracker/internal/predict"
	"vessel-tracker/internal/vessel"
)

// PredictionMessage is the JSON payload published for every prediction.
type PredictionMessage struct {
	MMSI            string       `json:"mmsi"`
	Mode            predict.Mode `json:"mode"`
	Timestamp       time.Time    `json:"timestamp"`
	Lat             float64      `json:"lat"`
	Lon             float64      `json:"lon"`
	Course          float64      `json:"course"`
	Speed           float64      `json:"speed"` // knots
	DistanceKm      float64      `json:"distanceKm"`
	SourceFixID     string       `json:"sourceFixId"`
	SourceTimestamp time.Time    `json:"sourceTimestamp"`

	// Path holds [lon, lat] pairs, GeoJSON order.
	Path              [][2]float64 `json:"path,omitempty"`
	CurrentWaypointID string       `json:"currentWaypointId,omitempty"`
	NextWaypointID    string       `json:"nextWaypointId,omitempty"`
}

// NewPredictionMessage flattens a prediction; current and next may be nil.
func NewPredictionMessage(p *predict.Prediction, current, next *vessel.Waypoint) PredictionMessage {
	msg := PredictionMessage{
		MMSI:            p.Fix.MMSI,
		Mode:            p.Mode,
		Timestamp:       p.Fix.Timestamp,
		Lat:             p.Fix.Lat,
		Lon:             p.Fix.Lon,
		Course:          p.Fix.CourseOverGround,
		Speed:           p.Fix.SpeedOverGround,
		DistanceKm:      p.DistanceKm,
		SourceFixID:     p.Source.ID,
		SourceTimestamp: p.Source.Timestamp,
	}
	if len(p.Path) > 0 {
		msg.Path = make([][2]float64, len(p.Path))
		for i, pt := range p.Path {
			msg.Path[i] = [2]float64{pt.Lon, pt.Lat}
		}
	}
	if current != nil {
		msg.CurrentWaypointID = current.ID
	}
	if next != nil {
		msg.NextWaypointID = next.ID
	}
	return msg
}
