package detector

import (
	"testing"

	"github.com/streampulse/detector/internal/models"
)

func marketBundle(current int, viewers1h float64, now, before []models.StreamerSample) *models.BaselineBundle {
	return &models.BaselineBundle{
		Platform:          "chzzk",
		Category:          "talk",
		Current:           current,
		Viewers1hAgo:      viewers1h,
		TopStreamersNow:   now,
		TopStreamers1hAgo: before,
	}
}

func samples(viewers ...int) []models.StreamerSample {
	out := make([]models.StreamerSample, len(viewers))
	for i, v := range viewers {
		out[i] = models.StreamerSample{ID: string(rune('a' + i)), Name: "s", Viewers: v}
	}
	return out
}

func TestAnalyzeMarketPersonVsStructure(t *testing.T) {
	tests := []struct {
		name             string
		bundle           *models.BaselineBundle
		wantType         models.EventType
		wantContribution float64
	}{
		{
			// Top streams account for exactly half the growth: the 0.5
			// boundary is inclusive.
			name:             "contribution at boundary is person issue",
			bundle:           marketBundle(3000, 1000, samples(1500), samples(500)),
			wantType:         models.PersonIssue,
			wantContribution: 0.5,
		},
		{
			name:             "top-heavy growth is person issue",
			bundle:           marketBundle(5000, 1000, samples(3000, 500), samples(800)),
			wantType:         models.PersonIssue,
			wantContribution: 0.675,
		},
		{
			name:             "broad growth is structure issue",
			bundle:           marketBundle(5000, 1000, samples(1000, 600), samples(900, 500)),
			wantType:         models.StructureIssue,
			wantContribution: 0.05,
		},
		{
			name:             "flat total is structure issue with zero contribution",
			bundle:           marketBundle(1000, 1000, samples(500), samples(100)),
			wantType:         models.StructureIssue,
			wantContribution: 0,
		},
		{
			name:             "shrinking total is structure issue with zero contribution",
			bundle:           marketBundle(900, 1000, samples(400), samples(100)),
			wantType:         models.StructureIssue,
			wantContribution: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotContribution, _ := analyzeMarket(tt.bundle)
			if gotType != tt.wantType {
				t.Errorf("event type = %s, want %s", gotType, tt.wantType)
			}
			if gotContribution != tt.wantContribution {
				t.Errorf("contribution = %v, want %v", gotContribution, tt.wantContribution)
			}
		})
	}
}

func TestAnalyzeMarketDominanceWithoutProof(t *testing.T) {
	b := marketBundle(5000, 1000, samples(4500), samples(1000))
	b.OpenLivesNow = 5
	b.OpenLives1hAgo = 5

	gotType, _, market := analyzeMarket(b)
	if gotType != models.CategoryAdoption {
		t.Fatalf("event type = %s, want CATEGORY_ADOPTION", gotType)
	}
	if !market.EarlyExit {
		t.Error("EarlyExit should be set on adoption")
	}
	if market.DominanceIndex != 0.9 {
		t.Errorf("DominanceIndex = %v, want 0.9", market.DominanceIndex)
	}
	if market.MarketProof {
		t.Error("MarketProof should be false")
	}
}

func TestAnalyzeMarketOpenLivesProof(t *testing.T) {
	// Same dominance, but three new broadcasters came online: real
	// market movement, so the person classification stands.
	b := marketBundle(5000, 1000, samples(4500), samples(1000))
	b.OpenLivesNow = 8
	b.OpenLives1hAgo = 5

	gotType, _, market := analyzeMarket(b)
	if !market.MarketProof {
		t.Fatal("MarketProof should be true with +3 open lives")
	}
	if gotType != models.PersonIssue {
		t.Errorf("event type = %s, want PERSON_ISSUE", gotType)
	}
	if market.EarlyExit {
		t.Error("EarlyExit should not be set when proof exists")
	}
}

func TestAnalyzeMarketMidTierProof(t *testing.T) {
	// Ranks 2-5 grew from 1000 to 1600: over the 1.2x ratio and the
	// 500 absolute floor, so the mid-tier lift counts as proof.
	b := marketBundle(10000, 4000, samples(8600, 900, 700), samples(3000, 600, 400))
	b.OpenLivesNow = 5
	b.OpenLives1hAgo = 5

	_, _, market := analyzeMarket(b)
	if market.Top25Current != 1600 || market.Top25Baseline != 1000 {
		t.Fatalf("mid-tier totals = %d/%d, want 1600/1000", market.Top25Current, market.Top25Baseline)
	}
	if !market.MarketProof {
		t.Error("MarketProof should be true on mid-tier lift")
	}
}

func TestAnalyzeMarketEvidenceFields(t *testing.T) {
	b := marketBundle(5000, 1000, samples(3000, 500), samples(800, 300))
	b.OpenLivesNow = 22
	b.OpenLives1hAgo = 18

	_, _, market := analyzeMarket(b)
	if market.Top1Viewers != 3000 {
		t.Errorf("Top1Viewers = %d, want 3000", market.Top1Viewers)
	}
	if market.DominanceIndex != 0.6 {
		t.Errorf("DominanceIndex = %v, want 0.6", market.DominanceIndex)
	}
	if market.OpenLivesDelta != 4 {
		t.Errorf("OpenLivesDelta = %d, want 4", market.OpenLivesDelta)
	}
	if market.Top25Delta != 200 {
		t.Errorf("Top25Delta = %d, want 200", market.Top25Delta)
	}
}

func TestMidTierViewers(t *testing.T) {
	if got := midTierViewers(nil); got != 0 {
		t.Errorf("midTierViewers(nil) = %d, want 0", got)
	}
	if got := midTierViewers(samples(5000)); got != 0 {
		t.Errorf("single streamer mid-tier = %d, want 0", got)
	}
	if got := midTierViewers(samples(5000, 400, 300, 200, 100)); got != 1000 {
		t.Errorf("mid-tier sum = %d, want 1000", got)
	}
}

func TestPersonGuard(t *testing.T) {
	stats := func(growth float64, delta, baseline int) models.Stats {
		return models.Stats{GrowthRatio: growth, Delta: delta, BaselineSeason: baseline}
	}

	tests := []struct {
		name      string
		level     models.SignalLevel
		eventType models.EventType
		stats     models.Stats
		wantDrop  bool
	}{
		{
			name:      "strong growth passes",
			level:     models.LevelSpike,
			eventType: models.PersonIssue,
			stats:     stats(2.0, 1000, 10000),
			wantDrop:  false,
		},
		{
			name:      "large delta passes",
			level:     models.LevelSpike,
			eventType: models.PersonIssue,
			stats:     stats(1.8, 6000, 10000),
			wantDrop:  false,
		},
		{
			name:      "weak growth and delta drops",
			level:     models.LevelSpike,
			eventType: models.PersonIssue,
			stats:     stats(1.8, 4000, 10000),
			wantDrop:  true,
		},
		{
			// Small baseline: the 1500 floor applies instead of half
			// the base.
			name:      "small baseline uses absolute floor",
			level:     models.LevelSpike,
			eventType: models.PersonIssue,
			stats:     stats(1.8, 1500, 1000),
			wantDrop:  false,
		},
		{
			name:      "candidate level exempt",
			level:     models.LevelCandidate,
			eventType: models.PersonIssue,
			stats:     stats(1.3, 100, 10000),
			wantDrop:  false,
		},
		{
			name:      "structure issue exempt",
			level:     models.LevelSpike,
			eventType: models.StructureIssue,
			stats:     stats(1.8, 100, 10000),
			wantDrop:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotDrop, reason := personGuard(tt.level, tt.eventType, tt.stats)
			if gotDrop != tt.wantDrop {
				t.Errorf("personGuard() drop = %v, want %v", gotDrop, tt.wantDrop)
			}
			if gotDrop && reason == "" {
				t.Error("dropped events must carry a reason")
			}
		})
	}
}
