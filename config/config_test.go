package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/vantage/scoring-engine/scoring"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Cycle.StartDay != 26 || cfg.Cycle.EndDay != 25 {
		t.Errorf("Cycle = %d-%d, want 26-25", cfg.Cycle.StartDay, cfg.Cycle.EndDay)
	}
	if cfg.Campaign.Start != "2024-12-29" {
		t.Errorf("Campaign.Start = %q, want 2024-12-29", cfg.Campaign.Start)
	}
	if cfg.Notifications.MorningStart != 10 || cfg.Notifications.AfternoonEnd != 19 {
		t.Errorf("Notifications = %+v, want default windows", cfg.Notifications)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") returned error: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9090

[cycle]
start_day = 21
end_day = 20

[campaign]
start = "2025-01-01"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.PeriodCycle().StartDay != 21 {
		t.Errorf("cycle start = %d, want 21", cfg.PeriodCycle().StartDay)
	}
	want := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	if !cfg.CampaignStart().Equal(want) {
		t.Errorf("CampaignStart = %v, want %v", cfg.CampaignStart(), want)
	}
	// Untouched sections keep their defaults.
	if cfg.Database.Path != "./data/scoring.db" {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	path := writeConfig(t, `
[server]
port = -1

[cycle]
start_day = 26
end_day = 26

[campaign]
start = "yesterday"

[notifications]
morning_start = 13
morning_end = 11
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("bad values must fall back, not error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Cycle.EndDay != 25 {
		t.Errorf("Cycle.EndDay = %d, want default 25", cfg.Cycle.EndDay)
	}
	if cfg.Campaign.Start != "2024-12-29" {
		t.Errorf("Campaign.Start = %q, want default", cfg.Campaign.Start)
	}
	if cfg.Notifications.MorningStart != 10 {
		t.Errorf("Notifications.MorningStart = %d, want default 10", cfg.Notifications.MorningStart)
	}
}

func TestScoringRules_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[rules.BRONZE]
points = 2

[rules.BONUS_2]
threshold = 120

[rules.PLATINUM]
points = 99
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	rules := cfg.ScoringRules()

	if rules[scoring.Bronze].Points != 2 {
		t.Errorf("BRONZE points = %d, want 2", rules[scoring.Bronze].Points)
	}
	// Threshold not overridden stays at the default.
	if !rules[scoring.Bronze].Threshold.Equal(scoring.DefaultRules()[scoring.Bronze].Threshold) {
		t.Errorf("BRONZE threshold = %s, want default", rules[scoring.Bronze].Threshold)
	}
	if rules[scoring.Bonus2].Threshold.IntPart() != 120 {
		t.Errorf("BONUS_2 threshold = %s, want 120", rules[scoring.Bonus2].Threshold)
	}
	// Unknown tiers never leak into the rule set.
	if _, ok := rules[scoring.TrophyKind("PLATINUM")]; ok {
		t.Error("unknown tier PLATINUM must be ignored")
	}
}

func TestLoad_MissingExplicitFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
