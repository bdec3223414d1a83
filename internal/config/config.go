package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"vessel-tracker/internal/predict"
)

type Config struct {
	DatabaseURL           string
	NATSURL               string
	NATSFixSubject        string
	NATSPredictionSubject string
	VesselMMSI            string
	VesselName            string
	PredictInterval       time.Duration
	PredictionMode        predict.Mode
	ItineraryFile         string
	ItineraryRefresh      time.Duration
	RouteMaxSegmentKm     float64
	HistoryWindow         time.Duration
	LogNATSSubjects       bool
	HTTPAddr              string
	LogFile               string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars.
	// Without any of them fixes are not persisted.
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		if db := os.Getenv("PGDATABASE"); db != "" {
			host := getenvDefault("PGHOST", "127.0.0.1")
			port := getenvDefault("PGPORT", "5432")
			user := getenvDefault("PGUSER", "postgres")
			pass := os.Getenv("PGPASSWORD")
			sslmode := getenvDefault("PGSSLMODE", "disable")
			if pass != "" {
				cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
			} else {
				cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
			}
		}
	} else {
		cfg.DatabaseURL = dsn
	}

	cfg.NATSURL = getenvDefault("NATS_URL", "nats://127.0.0.1:4222")
	cfg.NATSFixSubject = getenvDefault("NATS_FIX_SUBJECT", "ais.positions")
	cfg.NATSPredictionSubject = getenvDefault("NATS_PREDICTION_SUBJECT", "vessel.predicted")

	cfg.VesselMMSI = strings.TrimSpace(os.Getenv("VESSEL_MMSI"))
	if !validMMSI(cfg.VesselMMSI) {
		return nil, fmt.Errorf("invalid VESSEL_MMSI: %q (want 9 digits)", cfg.VesselMMSI)
	}
	cfg.VesselName = getenvDefault("VESSEL_NAME", "MSC Magnifica")

	// Prediction interval (seconds)
	if v := os.Getenv("PREDICT_INTERVAL_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec <= 0 {
			return nil, fmt.Errorf("invalid PREDICT_INTERVAL_SEC: %q", v)
		}
		cfg.PredictInterval = time.Duration(sec) * time.Second
	} else {
		cfg.PredictInterval = 60 * time.Second
	}

	mode, err := predict.ParseMode(os.Getenv("PREDICTION_MODE"))
	if err != nil {
		return nil, fmt.Errorf("invalid PREDICTION_MODE: %w", err)
	}
	cfg.PredictionMode = mode

	cfg.ItineraryFile = getenvDefault("ITINERARY_FILE", "itinerary.yml")

	// Itinerary reload period (seconds); 0 disables reloading
	if v := os.Getenv("ITINERARY_REFRESH_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil || sec < 0 {
			return nil, fmt.Errorf("invalid ITINERARY_REFRESH_SEC: %q", v)
		}
		cfg.ItineraryRefresh = time.Duration(sec) * time.Second
	} else {
		cfg.ItineraryRefresh = 5 * time.Minute
	}

	// Route densification (km); 0 keeps the route as loaded
	if v := os.Getenv("ROUTE_MAX_SEGMENT_KM"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("invalid ROUTE_MAX_SEGMENT_KM: %q", v)
		}
		cfg.RouteMaxSegmentKm = f
	} else {
		cfg.RouteMaxSegmentKm = 25
	}

	// History window kept in memory and replayed at startup (hours)
	if v := os.Getenv("HISTORY_HOURS"); v != "" {
		h, err := strconv.Atoi(v)
		if err != nil || h <= 0 {
			return nil, fmt.Errorf("invalid HISTORY_HOURS: %q (want hours > 0)", v)
		}
		cfg.HistoryWindow = time.Duration(h) * time.Hour
	} else {
		cfg.HistoryWindow = 48 * time.Hour
	}

	// Debug logging for NATS publish subjects
	if v := os.Getenv("LOG_NATS_SUBJECTS"); v != "" {
		cfg.LogNATSSubjects = parseBool(v)
	}

	// HTTP listen address for /metrics and the position API. Empty disables it.
	cfg.HTTPAddr = getenvDefault("METRICS_ADDR", ":9102")
	if v, ok := os.LookupEnv("METRICS_ADDR"); ok && strings.TrimSpace(v) == "" {
		cfg.HTTPAddr = ""
	}

	cfg.LogFile = os.Getenv("LOG_FILE")

	return cfg, nil
}

func validMMSI(s string) bool {
	if len(s) != 9 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
