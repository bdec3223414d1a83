package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	FixesReceived  prometheus.Counter
	FixesRejected  *prometheus.CounterVec // reason label: decode|invalid|other_vessel|backlog|out_of_order|store
	FixesStored    prometheus.Counter
	LastFixAge     prometheus.Gauge // seconds
	HistoryEntries prometheus.Gauge

	Predictions       *prometheus.CounterVec // mode label
	PredictionsSkip   *prometheus.CounterVec // reason label: no_fix|fresh|at_waypoint|no_movement
	PredictionErrs    prometheus.Counter
	PredictedDistance prometheus.Gauge // km

	NATSReceived    prometheus.Counter
	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	TickDuration    prometheus.Histogram
	PublishDuration prometheus.Histogram

	RouteLengthKm   prometheus.Gauge
	RoutePoints     prometheus.Gauge
	Waypoints       prometheus.Gauge
	PredictInterval prometheus.Gauge // seconds
}

func NewCollector(predictInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		FixesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_fixes_received_total",
			Help: "Total AIS position reports decoded for the tracked vessel.",
		}),
		FixesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_fixes_rejected_total",
			Help: "AIS messages that did not update the latest fix.",
		}, []string{"reason"}),
		FixesStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_fixes_stored_total",
			Help: "Total fixes written to the positions table.",
		}),
		LastFixAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_last_fix_age_seconds",
			Help: "Age of the latest fix at the last evaluation.",
		}),
		HistoryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_history_entries",
			Help: "Fixes held in the in-memory history window.",
		}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_predictions_total",
			Help: "Predictions produced, by strategy.",
		}, []string{"mode"}),
		PredictionsSkip: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_predictions_skipped_total",
			Help: "Evaluations that produced no prediction, by reason.",
		}, []string{"reason"}),
		PredictionErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_prediction_errors_total",
			Help: "Predictions that failed.",
		}),
		PredictedDistance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_predicted_distance_km",
			Help: "Distance advanced by the latest prediction.",
		}),
		NATSReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_received_total",
			Help: "Total NATS messages received on the fix subject.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_tick_duration_seconds",
			Help:    "Duration of one prediction evaluation.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		RouteLengthKm: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_route_length_km",
			Help: "Length of the loaded route.",
		}),
		RoutePoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_route_points",
			Help: "Number of points in the loaded route after densification.",
		}),
		Waypoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_waypoints",
			Help: "Number of waypoints in the loaded itinerary.",
		}),
		PredictInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_predict_interval_seconds",
			Help: "Prediction interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.FixesReceived, c.FixesRejected, c.FixesStored, c.LastFixAge, c.HistoryEntries,
		c.Predictions, c.PredictionsSkip, c.PredictionErrs, c.PredictedDistance,
		c.NATSReceived, c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.TickDuration, c.PublishDuration,
		c.RouteLengthKm, c.RoutePoints, c.Waypoints, c.PredictInterval,
	)

	c.PredictInterval.Set(predictInterval.Seconds())

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics and any extra routes on the
// given address.
func (c *Collector) Serve(addr string, routes map[string]http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	for pattern, h := range routes {
		mux.Handle(pattern, h)
	}
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()
	log.Printf("http listening on %s", addr)
	return srv
}

// SetRoute records the static shape of the loaded itinerary.
func (c *Collector) SetRoute(lengthKm float64, points, waypoints int) {
	c.RouteLengthKm.Set(lengthKm)
	c.RoutePoints.Set(float64(points))
	c.Waypoints.Set(float64(waypoints))
}
