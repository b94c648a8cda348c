package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/streampulse/detector/internal/models"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "hello world", "hello world"},
		{"underscores", "just_chatting", "just\\_chatting"},
		{"dots and dashes", "v1.2-beta", "v1\\.2\\-beta"},
		{"brackets", "[talk] (live)", "\\[talk\\] \\(live\\)"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := escapeMarkdownV2(tt.input); got != tt.want {
				t.Errorf("escapeMarkdownV2(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		input int
		want  string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1500345, "1,500,345"},
		{-4200, "-4,200"},
	}

	for _, tt := range tests {
		if got := formatCount(tt.input); got != tt.want {
			t.Errorf("formatCount(%d) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFormatSpike(t *testing.T) {
	ev := &models.SignalEvent{
		EventID:      "test-id",
		CreatedAt:    time.Now(),
		Platform:     "chzzk",
		CategoryName: "just_chatting",
		EventType:    models.PersonIssue,
		GrowthRate:   2.35,
		SignalLevel:  models.LevelSpike,
		Stats: models.Stats{
			Current:        15200,
			BaselineSeason: 6400,
			Delta:          8800,
		},
		Clues: []models.StreamerSample{
			{ID: "s1", Name: "big_streamer", Viewers: 9000},
		},
	}

	msg := formatSpike(ev)

	for _, want := range []string{
		"chzzk",
		"just\\_chatting",
		"15,200",
		"\\+8,800",
		"6,400",
		"big\\_streamer",
		"PERSON\\_ISSUE",
		"2\\.35",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("formatSpike() missing %q in:\n%s", want, msg)
		}
	}
}

func TestFormatSpikeNoClues(t *testing.T) {
	ev := &models.SignalEvent{
		Platform:     "soop",
		CategoryName: "talk",
		EventType:    models.StructureIssue,
		SignalLevel:  models.LevelSpike,
	}

	msg := formatSpike(ev)
	if !strings.Contains(msg, "Unknown") {
		t.Errorf("formatSpike() without clues should fall back to Unknown:\n%s", msg)
	}
}
