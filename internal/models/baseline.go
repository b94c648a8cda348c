package models

// SeasonalSource tags which branch of the baseline fallback chain
// produced a bundle's seasonal base: the 7-day window, the 24-hour
// window, or the cold-start estimate (current * 0.8).
type SeasonalSource int

const (
	Seasonal7d SeasonalSource = iota
	Seasonal24h
	ColdStart
)

func (s SeasonalSource) String() string {
	switch s {
	case Seasonal7d:
		return "7d"
	case Seasonal24h:
		return "24h"
	case ColdStart:
		return "cold_start"
	default:
		return "unknown"
	}
}

// BaselineBundle is the per-(platform, category) statistical context
// recomputed every tick. It is ephemeral and never persisted.
type BaselineBundle struct {
	Platform string
	Category string

	Current   int
	Median60m float64

	Viewers1hAgo      float64
	OpenLives1hAgo    int
	TopStreamers1hAgo []StreamerSample

	SeasonalBase   float64
	SeasonalSource SeasonalSource

	OpenLivesNow    int
	TopStreamersNow []StreamerSample
}

// GrowthRatio is the short-term surge measure: current viewers over
// the trailing 60-minute median.
func (b *BaselineBundle) GrowthRatio() float64 {
	if b.Median60m <= 0 {
		return 0
	}
	return float64(b.Current) / b.Median60m
}

// SeasonRatio is the surge versus the habitual level for this time of
// week (or its fallback).
func (b *BaselineBundle) SeasonRatio() float64 {
	if b.SeasonalBase <= 0 {
		return 0
	}
	return float64(b.Current) / b.SeasonalBase
}

// ActualDelta is the viewer increase over the seasonal base, floored
// at zero: decreasing traffic never counts as growth.
func (b *BaselineBundle) ActualDelta() int {
	d := float64(b.Current) - b.SeasonalBase
	if d <= 0 {
		return 0
	}
	return int(d)
}
