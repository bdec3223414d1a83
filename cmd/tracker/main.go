package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"vessel-tracker/internal/bus"
	"vessel-tracker/internal/config"
	"vessel-tracker/internal/db"
	"vessel-tracker/internal/export"
	"vessel-tracker/internal/itinerary"
	"vessel-tracker/internal/logging"
	"vessel-tracker/internal/metrics"
	"vessel-tracker/internal/predict"
	"vessel-tracker/internal/tracker"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logCloser := logging.Init(cfg.LogFile)
	defer logCloser.Close()

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	loadItinerary := func() (*itinerary.Itinerary, error) {
		it, err := itinerary.LoadFile(cfg.ItineraryFile)
		if err != nil {
			return nil, err
		}
		return it.Densified(cfg.RouteMaxSegmentKm)
	}
	it, err := loadItinerary()
	if err != nil {
		log.Fatalf("itinerary error: %v", err)
	}
	if it.Vessel.MMSI != "" && it.Vessel.MMSI != cfg.VesselMMSI {
		log.Printf("itinerary mmsi=%s differs from VESSEL_MMSI=%s; tracking %s", it.Vessel.MMSI, cfg.VesselMMSI, cfg.VesselMMSI)
	}
	log.Printf("itinerary loaded: waypoints=%d route_points=%d route_km=%.1f", len(it.Waypoints), it.Route.Len(), it.Route.Length())

	// Optional position store
	var store tracker.Store
	var pgStore *db.Store
	if cfg.DatabaseURL != "" {
		sqlDB, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db open error: %v", err)
		}
		defer sqlDB.Close()
		if err := db.Ping(ctx, sqlDB); err != nil {
			log.Fatalf("db ping error: %v", err)
		}
		pgStore = db.NewStore(sqlDB)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			log.Fatalf("db schema error: %v", err)
		}
		store = pgStore
	} else {
		log.Printf("no database configured; fixes are kept in memory only")
	}

	mcol := metrics.NewCollector(cfg.PredictInterval)

	// NATS client for AIS input and prediction output
	nc, err := bus.Connect(cfg.NATSURL, cfg.NATSPredictionSubject, cfg.LogNATSSubjects, wrapBusMetrics(mcol))
	if err != nil {
		log.Fatalf("nats error: %v", err)
	}
	defer nc.Close()

	strategy, err := predict.New(cfg.PredictionMode)
	if err != nil {
		log.Fatalf("prediction mode error: %v", err)
	}

	opts := tracker.Options{
		MMSI:          cfg.VesselMMSI,
		Interval:      cfg.PredictInterval,
		HistoryWindow: cfg.HistoryWindow,
	}
	if cfg.ItineraryRefresh > 0 {
		opts.Reload = loadItinerary
		opts.ReloadInterval = cfg.ItineraryRefresh
	}
	tr := tracker.New(it, strategy, store, nc, mcol, opts)

	if err := tr.Warmup(ctx); err != nil {
		log.Printf("history warmup error: %v", err)
	}

	sub, err := nc.SubscribeFixes(cfg.NATSFixSubject, tr.HandleMessage)
	if err != nil {
		log.Fatalf("nats subscribe error: %v", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	// Metrics and position API
	if cfg.HTTPAddr != "" {
		health := func(ctx context.Context) error {
			if !nc.Connected() {
				return errors.New("nats disconnected")
			}
			if pgStore != nil {
				return pgStore.Ping(ctx)
			}
			return nil
		}
		api := export.NewServer(tr, cfg.VesselName, health)
		srv := mcol.Serve(cfg.HTTPAddr, api.Routes())
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	log.Printf("tracking mmsi=%s mode=%s interval=%s subject=%s", cfg.VesselMMSI, cfg.PredictionMode, cfg.PredictInterval, cfg.NATSFixSubject)

	// Block until context cancelled
	if err := tr.Run(ctx); err != nil {
		log.Printf("tracker error: %v", err)
	}
	log.Println("shutdown complete")
}

// wrapBusMetrics adapts the Collector to the bus.Metrics interface.
func wrapBusMetrics(c *metrics.Collector) bus.Metrics {
	if c == nil {
		return nil
	}
	return &busMetrics{c: c}
}

type busMetrics struct{ c *metrics.Collector }

func (b *busMetrics) NATSPublishedInc()              { b.c.NATSPublished.Inc() }
func (b *busMetrics) NATSPublishErrInc()             { b.c.NATSPublishErrs.Inc() }
func (b *busMetrics) NATSReceivedInc()               { b.c.NATSReceived.Inc() }
func (b *busMetrics) PublishObserve(d time.Duration) { b.c.PublishDuration.Observe(d.Seconds()) }
func (b *busMetrics) NATSSetConnected(ok bool) {
	if ok {
		b.c.NATSConnected.Set(1)
	} else {
		b.c.NATSConnected.Set(0)
	}
}
