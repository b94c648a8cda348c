package detector

import (
	"github.com/streampulse/detector/internal/models"
)

const (
	// Contribution of the top-5 streams to the total delta at or above
	// which growth is attributed to a single personality.
	personContribution = 0.5

	// A single stream holding this share of the category's viewers is
	// treated as defining the category, not moving the market.
	dominanceCutoff = 0.85

	// Market-proof thresholds: enough new broadcasters, or enough
	// lift across the mid-tier (ranks 2-5) streams.
	openLivesProofMin  = 3
	midTierProofRatio  = 1.2
	midTierProofDelta  = 500

	// Guard rail for person-driven spikes: a single large streamer's
	// ordinary session variance must not read as a platform spike.
	personGuardGrowth    = 2.0
	personGuardDeltaMin  = 1500
	personGuardBaseShare = 0.5
)

func sumViewers(samples []models.StreamerSample) int {
	total := 0
	for _, s := range samples {
		total += s.Viewers
	}
	return total
}

// midTierViewers sums ranks 2-5 of an ordered top-streamer list.
func midTierViewers(samples []models.StreamerSample) int {
	if len(samples) <= 1 {
		return 0
	}
	return sumViewers(samples[1:])
}

// analyzeMarket classifies the cause of a category's growth from the
// current and one-hour-ago top-streamer lists and view totals.
func analyzeMarket(b *models.BaselineBundle) (models.EventType, float64, models.MarketEvidence) {
	market := models.MarketEvidence{
		OpenLives:      b.OpenLivesNow,
		OpenLives1h:    b.OpenLives1hAgo,
		OpenLivesDelta: b.OpenLivesNow - b.OpenLives1hAgo,
		Top25Current:   midTierViewers(b.TopStreamersNow),
		Top25Baseline:  midTierViewers(b.TopStreamers1hAgo),
	}
	market.Top25Delta = market.Top25Current - market.Top25Baseline

	if len(b.TopStreamersNow) > 0 {
		market.Top1Viewers = b.TopStreamersNow[0].Viewers
	}
	if b.Current > 0 {
		market.DominanceIndex = float64(market.Top1Viewers) / float64(b.Current)
	}

	market.MarketProof = market.OpenLivesDelta >= openLivesProofMin ||
		(market.Top25Baseline > 0 &&
			float64(market.Top25Current) >= float64(market.Top25Baseline)*midTierProofRatio &&
			market.Top25Delta >= midTierProofDelta)

	// Incremental contribution: how much of the total growth the top
	// streams account for. A non-positive total delta means the top
	// list cannot explain anything, so the issue is structural.
	totalDelta := float64(b.Current) - b.Viewers1hAgo
	contribution := 0.0
	eventType := models.StructureIssue
	if totalDelta > 0 {
		topDelta := float64(sumViewers(b.TopStreamersNow) - sumViewers(b.TopStreamers1hAgo))
		contribution = topDelta / totalDelta
		if contribution >= personContribution {
			eventType = models.PersonIssue
		}
	}

	// One streamer owning the category without broad market movement
	// is a relabeling artifact, not an anomaly worth escalating.
	if market.DominanceIndex >= dominanceCutoff && !market.MarketProof {
		eventType = models.CategoryAdoption
		market.EarlyExit = true
	}

	return eventType, contribution, market
}

// personGuard downgrades person-driven SPIKEs that lack either strong
// short-term growth or a substantial absolute delta. Returns the drop
// decision and a log reason.
func personGuard(level models.SignalLevel, eventType models.EventType, stats models.Stats) (bool, string) {
	if level != models.LevelSpike || eventType != models.PersonIssue {
		return false, ""
	}
	if stats.GrowthRatio >= personGuardGrowth {
		return false, ""
	}
	required := float64(personGuardDeltaMin)
	if share := float64(stats.BaselineSeason) * personGuardBaseShare; share > required {
		required = share
	}
	if float64(stats.Delta) >= required {
		return false, ""
	}
	return true, "person-driven spike below guard rail (growth and delta both weak)"
}
