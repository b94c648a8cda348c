// Package detector implements the spike-detection and causal
// classification engine: multi-baseline statistics, dynamic
// thresholds, major-category ranking, contribution analysis, and the
// cooldown gate in front of event emission.
package detector

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/streampulse/detector/internal/logger"
	"github.com/streampulse/detector/internal/models"
	"github.com/streampulse/detector/internal/snapshots"
)

const (
	trailingWindow    = 60 * time.Minute
	seasonalWeekAgo   = 168 * time.Hour
	seasonalDayAgo    = 24 * time.Hour
	seasonalTolerance = 2 * time.Hour

	// Missing short-term or seasonal history is filled with 80% of the
	// current value so the classifier always has a denominator.
	coldStartRatio = 0.8
)

// Config holds the detection thresholds. Values are heuristics tuned
// on live traffic; see DefaultConfig for the defaults.
type Config struct {
	MinAbsoluteDelta     int
	DeltaRatio           float64
	GrowthThreshold      float64
	SeasonalThreshold    float64
	Cooldown             time.Duration
	CandidateCooldown    time.Duration
	BaselineFloor        float64
	InterestGrowth       float64
	InterestDelta        int
	InterestTopN         int
	MajorTopN            int
	MajorGrowthThreshold float64
}

func DefaultConfig() Config {
	return Config{
		MinAbsoluteDelta:     1500,
		DeltaRatio:           0.3,
		GrowthThreshold:      1.7,
		SeasonalThreshold:    1.2,
		Cooldown:             30 * time.Minute,
		CandidateCooldown:    120 * time.Minute,
		BaselineFloor:        300,
		InterestGrowth:       1.2,
		InterestDelta:        500,
		InterestTopN:         10,
		MajorTopN:            12,
		MajorGrowthThreshold: 1.5,
	}
}

// SnapshotSource is the read side of the columnar snapshot history.
type SnapshotSource interface {
	LatestTimestamp() (time.Time, bool, error)
	Current(ts time.Time, minViewers int) ([]snapshots.CurrentRow, error)
	Trailing(ts time.Time, window time.Duration) (map[snapshots.Key]snapshots.TrailingStats, error)
	SeasonalAvg(ts time.Time, ago, tolerance time.Duration) (map[snapshots.Key]float64, error)
}

// EventStore is the write side of the relational signal-event store.
type EventStore interface {
	Insert(ev *models.SignalEvent) error
	HasRecent(platform, category string, since time.Time) (bool, error)
}

// Notifier pushes an immediate alert for a freshly persisted event.
// Delivery is fire-and-forget; failures are logged, never retried.
type Notifier interface {
	SendSpike(ev *models.SignalEvent) error
}

// Detector runs one full detection pass per tick: aggregate, rank,
// classify, gate, emit. Ticks are fully sequential; there is no
// intra-tick concurrency.
type Detector struct {
	snapshots SnapshotSource
	events    EventStore
	notifier  Notifier // nil disables immediate alerting
	cfg       Config

	now func() time.Time
}

// New creates a Detector. notifier may be nil.
func New(snaps SnapshotSource, events EventStore, notifier Notifier, cfg Config) *Detector {
	return &Detector{
		snapshots: snaps,
		events:    events,
		notifier:  notifier,
		cfg:       cfg,
		now:       time.Now,
	}
}

// RunTick evaluates the newest snapshot instant and persists a signal
// event for every accepted anomaly. Per-category failures are logged
// and skipped; only being unable to evaluate at all returns an error.
func (d *Detector) RunTick() error {
	ts, ok, err := d.snapshots.LatestTimestamp()
	if err != nil {
		return fmt.Errorf("failed to resolve latest snapshot: %w", err)
	}
	if !ok {
		logger.Info("No snapshot data yet, skipping tick")
		return nil
	}

	bundles, err := d.buildBundles(ts)
	if err != nil {
		return fmt.Errorf("failed to build baselines: %w", err)
	}
	logger.Debug("Built %d baseline bundles at %s", len(bundles), ts.Format(time.RFC3339))

	majors := d.majorSet(bundles)
	evals := d.classifyAll(bundles, majors)

	emitted := 0
	suppressed := 0
	for i := range evals {
		ev := &evals[i]
		if ev.level == "" {
			continue
		}
		if d.emit(ev) {
			emitted++
		} else {
			suppressed++
		}
	}
	logger.Info("Tick complete: %d bundles, %d emitted, %d suppressed", len(bundles), emitted, suppressed)
	return nil
}

// emit runs cause analysis, the cooldown gate, and persistence for one
// accepted evaluation. Returns true when an event was persisted.
func (d *Detector) emit(ev *evaluation) bool {
	b := &ev.bundle
	eventType, contribution, market := analyzeMarket(b)

	if dropped, reason := personGuard(ev.level, eventType, ev.stats); dropped {
		logger.Debug("Dropped %s/%s: %s", b.Platform, b.Category, reason)
		return false
	}

	cooldown := d.cfg.Cooldown
	if ev.level == models.LevelCandidate {
		cooldown = d.cfg.CandidateCooldown
	}
	now := d.now()
	blocked, err := d.events.HasRecent(b.Platform, b.Category, now.Add(-cooldown))
	if err != nil {
		// Fail open: a broken cooldown lookup should not silence a
		// real anomaly.
		logger.Warn("Cooldown lookup failed for %s/%s: %v", b.Platform, b.Category, err)
	}
	if blocked {
		logger.Debug("Cooldown active for %s/%s (%s), suppressing %s", b.Platform, b.Category, cooldown, ev.level)
		return false
	}

	clues := b.TopStreamersNow
	if len(clues) > 3 {
		clues = clues[:3]
	}

	status := models.AnalysisPending
	tier := ""
	if eventType == models.CategoryAdoption {
		status = models.AnalysisSkipped
		tier = models.TierNone
	}

	event := &models.SignalEvent{
		EventID:        uuid.New().String(),
		CreatedAt:      now,
		Platform:       b.Platform,
		CategoryName:   b.Category,
		EventType:      eventType,
		GrowthRate:     math.Round(ev.stats.SeasonRatio*100) / 100,
		SignalLevel:    ev.level,
		Stats:          ev.stats,
		Market:         market,
		Clues:          clues,
		AnalysisStatus: status,
		AnalysisTier:   tier,
	}

	if err := d.events.Insert(event); err != nil {
		logger.Error("Failed to persist event for %s/%s: %v", b.Platform, b.Category, err)
		return false
	}
	logger.Info("%s %s/%s: %d viewers (x%.2f season, delta %d, contribution %.2f -> %s)",
		ev.level, b.Platform, b.Category, b.Current,
		ev.stats.SeasonRatio, ev.stats.Delta, contribution, eventType)

	if d.notifier != nil && ev.level == models.LevelSpike && eventType != models.CategoryAdoption {
		if err := d.notifier.SendSpike(event); err != nil {
			logger.Error("Failed to send alert for %s/%s: %v", b.Platform, b.Category, err)
		}
	}
	return true
}
