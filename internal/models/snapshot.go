// Package models defines the core domain entities: snapshots, baseline
// bundles, and signal events.
package models

import (
	"encoding/json"
	"time"
)

// StreamerSample is one entry of the top-5 most-watched streams in a
// category at a snapshot instant. Field names follow the
// top_streamers_detail JSON payload written by the collectors.
type StreamerSample struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Title   string `json:"title"`
	Viewers int    `json:"viewers"`
}

// Snapshot is one periodic measurement of a category on a platform.
// Snapshots are append-only facts; the detector only reads them.
type Snapshot struct {
	TS           time.Time        `json:"ts_utc"`
	Platform     string           `json:"platform"`
	CategoryID   string           `json:"category_id"`
	CategoryName string           `json:"category_name"`
	Viewers      int              `json:"viewers"`
	OpenLives    int              `json:"open_lives"`
	TopStreamers []StreamerSample `json:"top_streamers_detail"`
}

// DecodeStreamerDetail parses a top_streamers_detail JSON blob.
// Malformed or empty payloads decode to nil so that downstream
// contribution math degrades to zero instead of failing a tick.
func DecodeStreamerDetail(raw string) []StreamerSample {
	if raw == "" {
		return nil
	}
	var samples []StreamerSample
	if err := json.Unmarshal([]byte(raw), &samples); err != nil {
		return nil
	}
	return samples
}

// EncodeStreamerDetail serializes samples for the snapshot store.
// A nil slice encodes as an empty JSON array.
func EncodeStreamerDetail(samples []StreamerSample) string {
	if samples == nil {
		samples = []StreamerSample{}
	}
	b, err := json.Marshal(samples)
	if err != nil {
		return "[]"
	}
	return string(b)
}
