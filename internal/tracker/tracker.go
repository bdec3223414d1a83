package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vessel-tracker/internal/ais"
	"vessel-tracker/internal/bus"
	"vessel-tracker/internal/itinerary"
	mmetrics "vessel-tracker/internal/metrics"
	"vessel-tracker/internal/predict"
	"vessel-tracker/internal/vessel"
)

// DefaultHistoryWindow applies when Options.HistoryWindow is not positive.
const DefaultHistoryWindow = 48 * time.Hour

// fixBuffer bounds the fixes queued between the NATS callback and the fix loop.
const fixBuffer = 64

const (
	skipNoFix      = "no_fix"
	skipFresh      = "fresh"
	skipAtWaypoint = "at_waypoint"
	skipNoMovement = "no_movement"

	rejectDecode     = "decode"
	rejectInvalid    = "invalid"
	rejectOtherMMSI  = "other_vessel"
	rejectOutOfOrder = "out_of_order"
	rejectBacklog    = "backlog"
	rejectStore      = "store"
)

// Store is the persistence the tracker needs; *db.Store satisfies it.
type Store interface {
	InsertFix(ctx context.Context, fix vessel.Fix) (vessel.Fix, error)
	FixesSince(ctx context.Context, mmsi string, since time.Time) ([]vessel.Fix, error)
	FixesInRange(ctx context.Context, mmsi string, from, to time.Time) ([]vessel.Fix, error)
}

type Publisher interface {
	PublishPrediction(msg bus.PredictionMessage) error
}

type Options struct {
	MMSI          string
	Interval      time.Duration
	HistoryWindow time.Duration
	// Reload, when set, is called every ReloadInterval to refresh the itinerary.
	Reload         func() (*itinerary.Itinerary, error)
	ReloadInterval time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Tracker keeps the latest fix of one vessel and turns it into predictions,
// on a fixed interval and whenever a new fix arrives.
type Tracker struct {
	mmsi     string
	strategy predict.Strategy
	store    Store
	pub      Publisher
	metrics  *mmetrics.Collector
	interval time.Duration
	window   time.Duration
	reload   func() (*itinerary.Itinerary, error)
	reloadIv time.Duration
	now      func() time.Time

	fixes chan vessel.Fix

	// evalMu serializes evaluations from the two loops.
	evalMu sync.Mutex

	mu         sync.RWMutex
	itin       *itinerary.Itinerary
	latest     *vessel.Fix
	prediction *predict.Prediction
	history    []vessel.Fix // oldest first
}

// New builds a tracker. store, pub and metrics may be nil.
func New(it *itinerary.Itinerary, strategy predict.Strategy, store Store, pub Publisher, metrics *mmetrics.Collector, opts Options) *Tracker {
	if it == nil {
		it = &itinerary.Itinerary{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	t := &Tracker{
		mmsi:     opts.MMSI,
		strategy: strategy,
		store:    store,
		pub:      pub,
		metrics:  metrics,
		interval: opts.Interval,
		window:   opts.HistoryWindow,
		reload:   opts.Reload,
		reloadIv: opts.ReloadInterval,
		now:      opts.Clock,
		fixes:    make(chan vessel.Fix, fixBuffer),
	}
	t.SetItinerary(it)
	return t
}

// Run blocks until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return t.predictLoop(ctx) })
	g.Go(func() error { return t.fixLoop(ctx) })
	if t.reload != nil && t.reloadIv > 0 {
		g.Go(func() error { return t.reloadLoop(ctx) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (t *Tracker) predictLoop(ctx context.Context) error {
	tick := time.NewTicker(t.interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			if _, err := t.Evaluate(ctx); err != nil {
				log.Printf("prediction error mmsi=%s: %v", t.mmsi, err)
			}
		}
	}
}

func (t *Tracker) fixLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fix := <-t.fixes:
			if err := t.Ingest(ctx, fix); err != nil {
				log.Printf("fix error mmsi=%s: %v", t.mmsi, err)
			}
		}
	}
}

func (t *Tracker) reloadLoop(ctx context.Context) error {
	tick := time.NewTicker(t.reloadIv)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			it, err := t.reload()
			if err != nil {
				log.Printf("itinerary reload error: %v", err)
				continue
			}
			t.SetItinerary(it)
		}
	}
}

// HandleMessage is the subscription callback for raw AIS messages. It never
// blocks; when the queue is full the fix is dropped.
func (t *Tracker) HandleMessage(data []byte) {
	fix, err := ais.Decode(data)
	if err != nil {
		switch {
		case errors.Is(err, ais.ErrNotPositionReport):
			return
		case errors.Is(err, vessel.ErrInvalidFix):
			t.reject(rejectInvalid)
		default:
			t.reject(rejectDecode)
		}
		log.Printf("ais message dropped: %v", err)
		return
	}
	if fix.MMSI != t.mmsi {
		t.reject(rejectOtherMMSI)
		return
	}
	if t.metrics != nil {
		t.metrics.FixesReceived.Inc()
	}
	select {
	case t.fixes <- fix:
	default:
		t.reject(rejectBacklog)
		log.Printf("fix queue full, dropping fix mmsi=%s ts=%s", fix.MMSI, fix.Timestamp.Format(time.RFC3339))
	}
}

// Ingest persists fix, records it and re-evaluates when it became the latest.
func (t *Tracker) Ingest(ctx context.Context, fix vessel.Fix) error {
	if t.store != nil {
		stored, err := t.store.InsertFix(ctx, fix)
		if err != nil {
			t.reject(rejectStore)
			log.Printf("store fix error mmsi=%s: %v", fix.MMSI, err)
		} else {
			fix = stored
			if t.metrics != nil {
				t.metrics.FixesStored.Inc()
			}
		}
	}
	if fix.ID == "" {
		fix.ID = fmt.Sprintf("%s-%d", fix.MMSI, fix.Timestamp.UnixMilli())
	}
	if !t.record(fix) {
		t.reject(rejectOutOfOrder)
		return nil
	}
	_, err := t.Evaluate(ctx)
	return err
}

// record adds fix to the history and makes it the latest fix when it is newer.
func (t *Tracker) record(fix vessel.Fix) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := sort.Search(len(t.history), func(i int) bool {
		return t.history[i].Timestamp.After(fix.Timestamp)
	})
	t.history = append(t.history, vessel.Fix{})
	copy(t.history[i+1:], t.history[i:])
	t.history[i] = fix
	t.pruneLocked()

	if t.latest != nil && !fix.Timestamp.After(t.latest.Timestamp) {
		return false
	}
	t.latest = &fix
	return true
}

func (t *Tracker) pruneLocked() {
	cutoff := t.now().Add(-t.window)
	i := sort.Search(len(t.history), func(i int) bool {
		return !t.history[i].Timestamp.Before(cutoff)
	})
	t.history = append(t.history[:0], t.history[i:]...)
	if t.metrics != nil {
		t.metrics.HistoryEntries.Set(float64(len(t.history)))
	}
}

// Warmup loads the history window from the store so predictions can start
// before the first live fix.
func (t *Tracker) Warmup(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	fixes, err := t.store.FixesSince(ctx, t.mmsi, t.now().Add(-t.window))
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	t.mu.Lock()
	t.history = append(t.history[:0], fixes...)
	if n := len(t.history); n > 0 {
		last := t.history[n-1]
		t.latest = &last
	}
	t.pruneLocked()
	t.mu.Unlock()
	log.Printf("history loaded mmsi=%s fixes=%d", t.mmsi, len(fixes))
	return nil
}

// Evaluate decides whether the latest fix needs a prediction and, if so,
// computes and publishes it. A nil prediction with a nil error means the
// actual fix stands.
func (t *Tracker) Evaluate(ctx context.Context) (*predict.Prediction, error) {
	t.evalMu.Lock()
	defer t.evalMu.Unlock()

	start := time.Now()
	if t.metrics != nil {
		defer func() { t.metrics.TickDuration.Observe(time.Since(start).Seconds()) }()
	}

	t.mu.RLock()
	it := t.itin
	var fix vessel.Fix
	haveFix := t.latest != nil
	if haveFix {
		fix = *t.latest
	}
	t.mu.RUnlock()

	if !haveFix {
		t.skip(skipNoFix)
		return nil, nil
	}
	now := t.now()
	if t.metrics != nil {
		t.metrics.LastFixAge.Set(now.Sub(fix.Timestamp).Seconds())
	}

	if !itinerary.ShouldPredict(it.Waypoints, fix, now) {
		reason := skipFresh
		if itinerary.IsAtWaypoint(it.Waypoints, fix) {
			reason = skipAtWaypoint
		}
		t.setPrediction(nil)
		t.skip(reason)
		return nil, nil
	}

	pred, err := t.strategy.Predict(fix, now, it.Route)
	if err != nil {
		if t.metrics != nil {
			t.metrics.PredictionErrs.Inc()
		}
		return nil, fmt.Errorf("predict from fix %s: %w", fix.ID, err)
	}
	if pred == nil {
		t.setPrediction(nil)
		t.skip(skipNoMovement)
		return nil, nil
	}
	t.setPrediction(pred)
	if t.metrics != nil {
		t.metrics.Predictions.WithLabelValues(string(pred.Mode)).Inc()
		t.metrics.PredictedDistance.Set(pred.DistanceKm)
	}

	if t.pub != nil {
		msg := bus.NewPredictionMessage(pred,
			itinerary.CurrentWaypoint(it.Waypoints, pred.Fix),
			itinerary.NextWaypoint(it.Waypoints, pred.Fix))
		if err := t.pub.PublishPrediction(msg); err != nil {
			return pred, fmt.Errorf("publish prediction: %w", err)
		}
	}
	return pred, nil
}

func (t *Tracker) setPrediction(p *predict.Prediction) {
	t.mu.Lock()
	t.prediction = p
	t.mu.Unlock()
}

func (t *Tracker) skip(reason string) {
	if t.metrics != nil {
		t.metrics.PredictionsSkip.WithLabelValues(reason).Inc()
	}
}

func (t *Tracker) reject(reason string) {
	if t.metrics != nil {
		t.metrics.FixesRejected.WithLabelValues(reason).Inc()
	}
}

// SetItinerary swaps the route and waypoints used by later evaluations.
func (t *Tracker) SetItinerary(it *itinerary.Itinerary) {
	if it == nil {
		return
	}
	t.mu.Lock()
	t.itin = it
	t.mu.Unlock()
	if t.metrics != nil {
		t.metrics.SetRoute(it.Route.Length(), it.Route.Len(), len(it.Waypoints))
	}
}

func (t *Tracker) MMSI() string { return t.mmsi }

func (t *Tracker) Itinerary() *itinerary.Itinerary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.itin
}

// Latest returns the newest actual fix.
func (t *Tracker) Latest() (vessel.Fix, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.latest == nil {
		return vessel.Fix{}, false
	}
	return *t.latest, true
}

// Prediction returns the last prediction, or nil while the actual fix stands.
func (t *Tracker) Prediction() *predict.Prediction {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.prediction
}

// Positions returns actual fixes between from and to, newest first. Zero
// bounds are open. The in-memory history serves the request when it covers
// from; otherwise the store does.
func (t *Tracker) Positions(ctx context.Context, from, to time.Time) ([]vessel.Fix, error) {
	t.mu.RLock()
	covered := !from.IsZero() && len(t.history) > 0 && !t.history[0].Timestamp.After(from)
	var out []vessel.Fix
	if covered || t.store == nil {
		for i := len(t.history) - 1; i >= 0; i-- {
			ts := t.history[i].Timestamp
			if (!from.IsZero() && ts.Before(from)) || (!to.IsZero() && ts.After(to)) {
				continue
			}
			out = append(out, t.history[i])
		}
	}
	t.mu.RUnlock()
	if covered || t.store == nil {
		return out, nil
	}
	return t.store.FixesInRange(ctx, t.mmsi, from, to)
}
