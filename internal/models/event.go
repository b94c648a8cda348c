package models

import (
	"errors"
	"time"
)

// EventType classifies the cause of a detected anomaly.
type EventType string

const (
	// PersonIssue: one dominant personality drives the growth.
	PersonIssue EventType = "PERSON_ISSUE"
	// StructureIssue: growth is broad across the category.
	StructureIssue EventType = "STRUCTURE_ISSUE"
	// CategoryAdoption: a single streamer effectively defines the
	// category's traffic; a labeling artifact, not a market event.
	CategoryAdoption EventType = "CATEGORY_ADOPTION"
)

// SignalLevel is the acceptance tier of a detected anomaly.
type SignalLevel string

const (
	LevelSpike     SignalLevel = "SPIKE"
	LevelCandidate SignalLevel = "CANDIDATE"
)

// AnalysisStatus is the downstream research lifecycle of an event.
// The detector only ever writes PENDING or SKIPPED; the research
// worker owns the rest.
type AnalysisStatus string

const (
	AnalysisPending    AnalysisStatus = "PENDING"
	AnalysisSkipped    AnalysisStatus = "SKIPPED"
	AnalysisInProgress AnalysisStatus = "IN_PROGRESS"
	AnalysisDone       AnalysisStatus = "DONE"
	AnalysisFailed     AnalysisStatus = "FAILED"
)

// TierNone marks events that warrant no research at all.
const TierNone = "NONE"

// Stats carries the threshold arithmetic behind a decision.
type Stats struct {
	Current              int     `json:"current"`
	BaselineSeason       int     `json:"baseline_season"`
	Delta                int     `json:"delta"`
	GrowthRatio          float64 `json:"growth_ratio"`
	SeasonRatio          float64 `json:"season_ratio"`
	DeltaReq             int     `json:"delta_req"`
	MajorCategory        bool    `json:"major_category"`
	MajorGrowthThreshold float64 `json:"major_growth_threshold"`
}

// MarketEvidence carries the contribution / market-proof analysis that
// justified the cause classification.
type MarketEvidence struct {
	DominanceIndex float64 `json:"dominance_index"`
	Top1Viewers    int     `json:"top1_viewers"`
	OpenLives      int     `json:"open_lives"`
	OpenLives1h    int     `json:"open_lives_1h"`
	OpenLivesDelta int     `json:"open_lives_delta"`
	Top25Current   int     `json:"top2_5_current"`
	Top25Baseline  int     `json:"top2_5_baseline"`
	Top25Delta     int     `json:"top2_5_delta"`
	MarketProof    bool    `json:"market_proof"`
	EarlyExit      bool    `json:"early_exit"`
}

// SignalEvent is the engine's persisted output and the sole contract
// with the downstream research pipeline. Created once per detected
// anomaly; after insertion only the analysis fields are mutated, and
// only by the research worker.
type SignalEvent struct {
	EventID      string      `json:"event_id"`
	CreatedAt    time.Time   `json:"created_at"`
	Platform     string      `json:"platform"`
	CategoryName string      `json:"category_name"`
	EventType    EventType   `json:"event_type"`
	GrowthRate   float64     `json:"growth_rate"`
	SignalLevel  SignalLevel `json:"signal_level"`

	Stats  Stats            `json:"stats"`
	Market MarketEvidence   `json:"market"`
	Clues  []StreamerSample `json:"clues"`

	AnalysisStatus AnalysisStatus `json:"analysis_status"`
	AnalysisTier   string         `json:"analysis_tier"`
}

// Validate checks signal event field constraints before persistence.
func (e *SignalEvent) Validate() error {
	if e.EventID == "" {
		return errors.New("event ID must not be empty")
	}
	if e.Platform == "" {
		return errors.New("platform must not be empty")
	}
	if e.CategoryName == "" {
		return errors.New("category name must not be empty")
	}
	switch e.EventType {
	case PersonIssue, StructureIssue, CategoryAdoption:
	default:
		return errors.New("unknown event type")
	}
	switch e.SignalLevel {
	case LevelSpike, LevelCandidate:
	default:
		return errors.New("unknown signal level")
	}
	switch e.AnalysisStatus {
	case AnalysisPending, AnalysisSkipped, AnalysisInProgress, AnalysisDone, AnalysisFailed:
	default:
		return errors.New("unknown analysis status")
	}
	if e.GrowthRate < 0 {
		return errors.New("growth rate must not be negative")
	}
	if len(e.Clues) > 3 {
		return errors.New("at most 3 clues may be attached")
	}
	if e.CreatedAt.IsZero() {
		return errors.New("created at must be set")
	}
	return nil
}
