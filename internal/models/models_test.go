package models

import (
	"testing"
	"time"
)

func validEvent() SignalEvent {
	return SignalEvent{
		EventID:      "11111111-2222-3333-4444-555555555555",
		CreatedAt:    time.Now(),
		Platform:     "chzzk",
		CategoryName: "talk",
		EventType:    PersonIssue,
		GrowthRate:   2.5,
		SignalLevel:  LevelSpike,
		Stats: Stats{
			Current:        5000,
			BaselineSeason: 1000,
			Delta:          4000,
			GrowthRatio:    5.0,
			SeasonRatio:    5.0,
			DeltaReq:       1500,
		},
		AnalysisStatus: AnalysisPending,
	}
}

func TestSignalEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SignalEvent)
		wantErr bool
	}{
		{name: "valid event", mutate: func(e *SignalEvent) {}, wantErr: false},
		{name: "empty event ID", mutate: func(e *SignalEvent) { e.EventID = "" }, wantErr: true},
		{name: "empty platform", mutate: func(e *SignalEvent) { e.Platform = "" }, wantErr: true},
		{name: "empty category", mutate: func(e *SignalEvent) { e.CategoryName = "" }, wantErr: true},
		{name: "unknown event type", mutate: func(e *SignalEvent) { e.EventType = "WEIRD" }, wantErr: true},
		{name: "unknown signal level", mutate: func(e *SignalEvent) { e.SignalLevel = "LOUD" }, wantErr: true},
		{name: "unknown analysis status", mutate: func(e *SignalEvent) { e.AnalysisStatus = "MAYBE" }, wantErr: true},
		{name: "negative growth rate", mutate: func(e *SignalEvent) { e.GrowthRate = -0.1 }, wantErr: true},
		{
			name: "too many clues",
			mutate: func(e *SignalEvent) {
				e.Clues = []StreamerSample{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
			},
			wantErr: true,
		},
		{name: "zero created at", mutate: func(e *SignalEvent) { e.CreatedAt = time.Time{} }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := validEvent()
			tt.mutate(&ev)
			err := ev.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeStreamerDetail(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{
			name: "well-formed",
			raw:  `[{"id":"s1","name":"alpha","title":"hi","viewers":900},{"id":"s2","name":"beta","viewers":100}]`,
			want: 2,
		},
		{name: "empty string", raw: "", want: 0},
		{name: "empty array", raw: "[]", want: 0},
		{name: "malformed json", raw: `{"not":"a list"`, want: 0},
		{name: "wrong shape", raw: `"just a string"`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeStreamerDetail(tt.raw)
			if len(got) != tt.want {
				t.Errorf("DecodeStreamerDetail() returned %d samples, want %d", len(got), tt.want)
			}
		})
	}
}

func TestEncodeDecodeStreamerDetail(t *testing.T) {
	samples := []StreamerSample{
		{ID: "s1", Name: "alpha", Title: "playing", Viewers: 1200},
		{ID: "s2", Name: "beta", Title: "chatting", Viewers: 400},
	}
	raw := EncodeStreamerDetail(samples)
	got := DecodeStreamerDetail(raw)
	if len(got) != 2 {
		t.Fatalf("round trip lost samples: got %d", len(got))
	}
	if got[0].Name != "alpha" || got[0].Viewers != 1200 {
		t.Errorf("first sample mismatch: %+v", got[0])
	}

	if EncodeStreamerDetail(nil) != "[]" {
		t.Errorf("nil slice should encode as empty array, got %q", EncodeStreamerDetail(nil))
	}
}

func TestBaselineBundleRatios(t *testing.T) {
	b := BaselineBundle{Current: 1800, Median60m: 1000, SeasonalBase: 1000}
	if got := b.GrowthRatio(); got != 1.8 {
		t.Errorf("GrowthRatio() = %v, want 1.8", got)
	}
	if got := b.SeasonRatio(); got != 1.8 {
		t.Errorf("SeasonRatio() = %v, want 1.8", got)
	}
	if got := b.ActualDelta(); got != 800 {
		t.Errorf("ActualDelta() = %v, want 800", got)
	}

	flat := BaselineBundle{Current: 500, Median60m: 0, SeasonalBase: 800}
	if got := flat.GrowthRatio(); got != 0 {
		t.Errorf("GrowthRatio() with zero median = %v, want 0", got)
	}
	if got := flat.ActualDelta(); got != 0 {
		t.Errorf("ActualDelta() with decreasing traffic = %v, want 0", got)
	}
}

func TestSeasonalSourceString(t *testing.T) {
	if Seasonal7d.String() != "7d" || Seasonal24h.String() != "24h" || ColdStart.String() != "cold_start" {
		t.Error("unexpected seasonal source names")
	}
}
