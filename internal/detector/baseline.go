package detector

import (
	"time"

	"github.com/streampulse/detector/internal/models"
	"github.com/streampulse/detector/internal/snapshots"
)

// buildBundles assembles the per-(platform, category) baseline context
// for the tick at ts. Missing history is filled with deterministic
// fallbacks; categories whose resolved seasonal base sits below the
// floor are excluded entirely. Given identical history the output is
// identical, including order.
func (d *Detector) buildBundles(ts time.Time) ([]models.BaselineBundle, error) {
	current, err := d.snapshots.Current(ts, d.cfg.MinAbsoluteDelta)
	if err != nil {
		return nil, err
	}
	trailing, err := d.snapshots.Trailing(ts, trailingWindow)
	if err != nil {
		return nil, err
	}
	weekly, err := d.snapshots.SeasonalAvg(ts, seasonalWeekAgo, seasonalTolerance)
	if err != nil {
		return nil, err
	}
	daily, err := d.snapshots.SeasonalAvg(ts, seasonalDayAgo, seasonalTolerance)
	if err != nil {
		return nil, err
	}

	// Current() returns rows ordered by (platform, category); that
	// ordering carries through to the bundle slice.
	bundles := make([]models.BaselineBundle, 0, len(current))
	for _, row := range current {
		key := snapshots.Key{Platform: row.Platform, Category: row.CategoryName}
		coldStart := float64(row.Viewers) * coldStartRatio

		b := models.BaselineBundle{
			Platform:        row.Platform,
			Category:        row.CategoryName,
			Current:         row.Viewers,
			OpenLivesNow:    row.OpenLives,
			TopStreamersNow: row.TopStreamers,
		}

		if t, ok := trailing[key]; ok && t.MedianViewers > 0 {
			b.Median60m = t.MedianViewers
			b.Viewers1hAgo = float64(t.EarliestViewers)
			b.OpenLives1hAgo = t.EarliestOpenLives
			b.TopStreamers1hAgo = t.EarliestTopStreamers
		} else {
			b.Median60m = coldStart
			b.Viewers1hAgo = coldStart
			b.OpenLives1hAgo = row.OpenLives
		}

		// Baseline priority: 7-day window, then 24-hour window, then
		// the cold-start estimate.
		switch {
		case weekly[key] > 0:
			b.SeasonalBase = weekly[key]
			b.SeasonalSource = models.Seasonal7d
		case daily[key] > 0:
			b.SeasonalBase = daily[key]
			b.SeasonalSource = models.Seasonal24h
		default:
			b.SeasonalBase = coldStart
			b.SeasonalSource = models.ColdStart
		}

		if b.SeasonalBase < d.cfg.BaselineFloor {
			continue
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}
