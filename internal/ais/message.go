package ais

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"vessel-tracker/internal/vessel"
)

const MessageTypePositionReport = "PositionReport"

// metaTimeLayout matches the leading part of AISStream's time_utc, e.g.
// "2026-01-06 12:00:00.123456789 +0000 UTC".
const metaTimeLayout = "2006-01-02 15:04:05"

// AIS sentinels for motion the transponder could not measure.
const (
	SpeedNotAvailable  = 102.3 // knots
	CourseNotAvailable = 360.0 // degrees
)

var (
	ErrNotPositionReport = errors.New("not a position report")
	ErrMissingReport     = errors.New("position report body missing")
)

// Envelope is an AISStream websocket message.
type Envelope struct {
	MessageType string   `json:"MessageType"`
	Message     Body     `json:"Message"`
	MetaData    MetaData `json:"MetaData"`
}

type Body struct {
	PositionReport *PositionReport `json:"PositionReport,omitempty"`
}

// PositionReport is a Class A position report (messages 1, 2 and 3).
type PositionReport struct {
	Cog                       float64 `json:"Cog"`
	CommunicationState        int     `json:"CommunicationState"`
	Latitude                  float64 `json:"Latitude"`
	Longitude                 float64 `json:"Longitude"`
	MessageID                 int     `json:"MessageID"`
	NavigationalStatus        int     `json:"NavigationalStatus"`
	PositionAccuracy          bool    `json:"PositionAccuracy"`
	Raim                      bool    `json:"Raim"`
	RateOfTurn                int     `json:"RateOfTurn"`
	RepeatIndicator           int     `json:"RepeatIndicator"`
	Sog                       float64 `json:"Sog"`
	Spare                     int     `json:"Spare"`
	SpecialManoeuvreIndicator int     `json:"SpecialManoeuvreIndicator"`
	Timestamp                 int     `json:"Timestamp"`
	TrueHeading               int     `json:"TrueHeading"`
	UserID                    int     `json:"UserID"`
	Valid                     bool    `json:"Valid"`
}

type MetaData struct {
	MMSI      int     `json:"MMSI"`
	ShipName  string  `json:"ShipName"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	TimeUTC   string  `json:"time_utc"`
}

// Decode parses one AISStream message into a fix. Messages of any other type
// return ErrNotPositionReport so callers can skip them quietly.
func Decode(data []byte) (vessel.Fix, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return vessel.Fix{}, fmt.Errorf("decode ais message: %w", err)
	}
	return env.Fix()
}

// Fix converts the envelope into a validated fix. The ID is left empty; the
// store assigns it.
func (e Envelope) Fix() (vessel.Fix, error) {
	if e.MessageType != MessageTypePositionReport {
		return vessel.Fix{}, fmt.Errorf("%w: %q", ErrNotPositionReport, e.MessageType)
	}
	r := e.Message.PositionReport
	if r == nil {
		return vessel.Fix{}, ErrMissingReport
	}
	ts, err := ParseTimeUTC(e.MetaData.TimeUTC)
	if err != nil {
		return vessel.Fix{}, err
	}
	mmsi := e.MetaData.MMSI
	if mmsi == 0 {
		mmsi = r.UserID
	}
	fix := vessel.Fix{
		MMSI:             strconv.Itoa(mmsi),
		Lat:              r.Latitude,
		Lon:              r.Longitude,
		Timestamp:        ts,
		NavigationStatus: vessel.ParseNavigationStatus(r.NavigationalStatus),
		SpeedOverGround:  r.Sog,
		CourseOverGround: r.Cog,
		Heading:          float64(r.TrueHeading),
	}
	// Without a measured speed and course the vessel is treated as stationary,
	// so the position is kept but never extrapolated.
	if motionNotAvailable(r.Sog, r.Cog) {
		fix.SpeedOverGround = 0
		fix.CourseOverGround = 0
	}
	if err := fix.Validate(); err != nil {
		return vessel.Fix{}, err
	}
	return fix, nil
}

func motionNotAvailable(sog, cog float64) bool {
	return math.Abs(sog-SpeedNotAvailable) < 1e-6 || math.Abs(cog-CourseNotAvailable) < 1e-6
}

// ParseTimeUTC reads the first 19 characters of time_utc as a UTC instant;
// the sub-second part and the zone suffix are ignored.
func ParseTimeUTC(s string) (time.Time, error) {
	if len(s) < len(metaTimeLayout) {
		return time.Time{}, fmt.Errorf("invalid time_utc %q", s)
	}
	t, err := time.ParseInLocation(metaTimeLayout, s[:len(metaTimeLayout)], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time_utc %q: %w", s, err)
	}
	return t, nil
}
