package detector

import (
	"sort"

	"github.com/streampulse/detector/internal/logger"
	"github.com/streampulse/detector/internal/models"
	"github.com/streampulse/detector/internal/snapshots"
)

// evaluation is one bundle's classification outcome. An empty level
// means no signal.
type evaluation struct {
	bundle  models.BaselineBundle
	isMajor bool
	level   models.SignalLevel
	stats   models.Stats
}

// majorSet marks, per platform, the top MajorTopN categories by
// seasonal base. Ties break on category name so the set is stable
// across runs.
func (d *Detector) majorSet(bundles []models.BaselineBundle) map[snapshots.Key]bool {
	byPlatform := make(map[string][]*models.BaselineBundle)
	for i := range bundles {
		b := &bundles[i]
		byPlatform[b.Platform] = append(byPlatform[b.Platform], b)
	}

	majors := make(map[snapshots.Key]bool)
	for _, list := range byPlatform {
		sort.Slice(list, func(i, j int) bool {
			if list[i].SeasonalBase != list[j].SeasonalBase {
				return list[i].SeasonalBase > list[j].SeasonalBase
			}
			return list[i].Category < list[j].Category
		})
		n := d.cfg.MajorTopN
		if n > len(list) {
			n = len(list)
		}
		for _, b := range list[:n] {
			majors[snapshots.Key{Platform: b.Platform, Category: b.Category}] = true
		}
	}
	return majors
}

// classifyAll applies the tiered signal rules to every bundle. SPIKE
// and rule-based CANDIDATE are decided per bundle; rank-based
// CANDIDATE admission (top N per platform by delta and by growth
// ratio) runs as a second pass over the whole platform.
func (d *Detector) classifyAll(bundles []models.BaselineBundle, majors map[snapshots.Key]bool) []evaluation {
	evals := make([]evaluation, len(bundles))
	for i := range bundles {
		b := bundles[i]
		isMajor := majors[snapshots.Key{Platform: b.Platform, Category: b.Category}]
		evals[i] = d.classify(b, isMajor)
	}

	d.admitRanked(evals)

	for i := range evals {
		ev := &evals[i]
		if ev.level != "" {
			continue
		}
		effective := d.effectiveThreshold(ev.isMajor)
		if ev.stats.Delta > 0 && ev.stats.GrowthRatio >= d.cfg.InterestGrowth && ev.stats.GrowthRatio < effective {
			logger.Info("Near miss %s/%s: %d viewers (median %.0f, x%.2f) below threshold %.2f",
				ev.bundle.Platform, ev.bundle.Category, ev.bundle.Current,
				ev.bundle.Median60m, ev.stats.GrowthRatio, effective)
		}
	}
	return evals
}

func (d *Detector) effectiveThreshold(isMajor bool) float64 {
	if isMajor {
		return d.cfg.MajorGrowthThreshold
	}
	return d.cfg.GrowthThreshold
}

// classify evaluates one bundle against the spike and interest rules.
// Decision states are terminal on first match.
func (d *Detector) classify(b models.BaselineBundle, isMajor bool) evaluation {
	deltaReq := float64(d.cfg.MinAbsoluteDelta)
	if dyn := b.SeasonalBase * d.cfg.DeltaRatio; dyn > deltaReq {
		deltaReq = dyn
	}

	stats := models.Stats{
		Current:              b.Current,
		BaselineSeason:       int(b.SeasonalBase),
		Delta:                b.ActualDelta(),
		GrowthRatio:          b.GrowthRatio(),
		SeasonRatio:          b.SeasonRatio(),
		DeltaReq:             int(deltaReq),
		MajorCategory:        isMajor,
		MajorGrowthThreshold: d.cfg.MajorGrowthThreshold,
	}
	ev := evaluation{bundle: b, isMajor: isMajor, stats: stats}

	// Decreasing or flat traffic is never a candidate.
	if stats.Delta <= 0 {
		return ev
	}

	effective := d.effectiveThreshold(isMajor)
	spike := stats.GrowthRatio >= effective &&
		float64(b.Current) >= b.SeasonalBase*d.cfg.SeasonalThreshold &&
		stats.Delta >= stats.DeltaReq
	if spike {
		ev.level = models.LevelSpike
		return ev
	}

	if stats.GrowthRatio >= d.cfg.InterestGrowth && stats.Delta >= d.cfg.InterestDelta {
		ev.level = models.LevelCandidate
	}
	return ev
}

// admitRanked upgrades unclassified bundles to CANDIDATE when they
// rank in the top InterestTopN of their platform by absolute delta or
// by growth ratio. Ratio admission additionally requires an actual
// short-term rise.
func (d *Detector) admitRanked(evals []evaluation) {
	byPlatform := make(map[string][]*evaluation)
	for i := range evals {
		ev := &evals[i]
		byPlatform[ev.bundle.Platform] = append(byPlatform[ev.bundle.Platform], ev)
	}

	for _, list := range byPlatform {
		top := func(less func(a, b *evaluation) bool, eligible func(*evaluation) bool) {
			ranked := make([]*evaluation, 0, len(list))
			for _, ev := range list {
				if eligible(ev) {
					ranked = append(ranked, ev)
				}
			}
			sort.Slice(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })
			n := d.cfg.InterestTopN
			if n > len(ranked) {
				n = len(ranked)
			}
			for _, ev := range ranked[:n] {
				if ev.level == "" {
					ev.level = models.LevelCandidate
				}
			}
		}

		top(
			func(a, b *evaluation) bool { return a.stats.Delta > b.stats.Delta },
			func(ev *evaluation) bool { return ev.stats.Delta > 0 },
		)
		top(
			func(a, b *evaluation) bool { return a.stats.GrowthRatio > b.stats.GrowthRatio },
			func(ev *evaluation) bool { return ev.stats.GrowthRatio > 1.0 && ev.stats.Delta > 0 },
		)
	}
}
