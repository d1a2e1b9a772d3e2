/*
Package config loads the engine configuration from a TOML file.

PURPOSE:
  A misconfigured engine must still run: every section has working
  defaults, and a bad value falls back with a logged warning instead
  of aborting the batch. Only an unreadable file with an explicit path
  is an error.

FILE LAYOUT (config.toml):
  [server]
  host = "0.0.0.0"
  port = 8080

  [database]
  path = "./data/scoring.db"

  [cycle]
  start_day = 26
  end_day = 25

  [campaign]
  start = "2024-12-29"

  [notifications]
  morning_start = 10
  morning_end = 12
  afternoon_start = 16
  afternoon_end = 19

  [rules.BRONZE]
  points = 1
  threshold = 100
*/
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"github.com/vantage/scoring-engine/notify"
	"github.com/vantage/scoring-engine/period"
	"github.com/vantage/scoring-engine/scoring"
)

// Config is the full engine configuration.
type Config struct {
	Server        Server              `toml:"server"`
	Database      Database            `toml:"database"`
	Cycle         Cycle               `toml:"cycle"`
	Campaign      Campaign            `toml:"campaign"`
	Notifications notify.Windows      `toml:"notifications"`
	Rules         map[string]TierRule `toml:"rules"`
}

// TierRule overrides the points or attainment threshold of one trophy
// tier. Keys under [rules] are the trophy kind names (BRONZE, SILVER,
// GOLD, BONUS_1, BONUS_2).
type TierRule struct {
	Points    int     `toml:"points"`
	Threshold float64 `toml:"threshold"`
}

type Server struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

type Database struct {
	Path string `toml:"path"`
}

type Cycle struct {
	StartDay int `toml:"start_day"`
	EndDay   int `toml:"end_day"`
}

type Campaign struct {
	// Start anchors the cumulative points board, "2006-01-02".
	Start string `toml:"start"`
}

// Default returns the configuration the engine runs with when no file
// is present.
func Default() Config {
	cycle := period.DefaultCycle()
	return Config{
		Server:        Server{Host: "0.0.0.0", Port: 8080},
		Database:      Database{Path: "./data/scoring.db"},
		Cycle:         Cycle{StartDay: cycle.StartDay, EndDay: cycle.EndDay},
		Campaign:      Campaign{Start: "2024-12-29"},
		Notifications: notify.DefaultWindows(),
	}
}

// Load reads the file at path on top of the defaults. An empty path
// returns the defaults. A missing file at an explicit path is an
// error; bad VALUES inside a readable file are not, they fall back.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("config file %s not found", path)
		}
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.sanitize()
	return cfg, nil
}

// sanitize replaces invalid values with their defaults.
func (c *Config) sanitize() {
	defaults := Default()

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		log.Printf("[Config] invalid server port %d, using %d", c.Server.Port, defaults.Server.Port)
		c.Server.Port = defaults.Server.Port
	}
	if c.Database.Path == "" {
		c.Database.Path = defaults.Database.Path
	}

	cycle := period.Cycle{StartDay: c.Cycle.StartDay, EndDay: c.Cycle.EndDay}
	if !cycle.Valid() {
		log.Printf("[Config] invalid commercial cycle %d-%d, using %d-%d",
			c.Cycle.StartDay, c.Cycle.EndDay, defaults.Cycle.StartDay, defaults.Cycle.EndDay)
		c.Cycle = defaults.Cycle
	}

	if _, err := time.Parse("2006-01-02", c.Campaign.Start); err != nil {
		log.Printf("[Config] invalid campaign start %q, using %s", c.Campaign.Start, defaults.Campaign.Start)
		c.Campaign.Start = defaults.Campaign.Start
	}

	w := c.Notifications
	if w.MorningStart >= w.MorningEnd || w.AfternoonStart >= w.AfternoonEnd ||
		w.MorningEnd > w.AfternoonStart ||
		w.MorningStart < 0 || w.AfternoonEnd > 24 {
		log.Printf("[Config] invalid notification windows %+v, using defaults", w)
		c.Notifications = defaults.Notifications
	}
}

// ScoringRules overlays the configured tier overrides on the default
// points and thresholds. Unknown tier names and non-positive values
// are ignored with a logged warning.
func (c Config) ScoringRules() scoring.Rules {
	rules := scoring.DefaultRules()
	for name, o := range c.Rules {
		kind := scoring.TrophyKind(name)
		r, ok := rules[kind]
		if !ok {
			log.Printf("[Config] unknown trophy tier %q in [rules], ignoring", name)
			continue
		}
		if o.Points > 0 {
			r.Points = o.Points
		}
		if o.Threshold > 0 {
			r.Threshold = decimal.NewFromFloat(o.Threshold)
		}
		rules[kind] = r
	}
	return rules
}

// PeriodCycle converts the configured cycle into its domain form.
func (c Config) PeriodCycle() period.Cycle {
	return period.Cycle{StartDay: c.Cycle.StartDay, EndDay: c.Cycle.EndDay}
}

// CampaignStart parses the configured campaign anchor. sanitize
// guarantees the value parses.
func (c Config) CampaignStart() time.Time {
	t, _ := time.Parse("2006-01-02", c.Campaign.Start)
	return t
}

// Addr is the host:port the HTTP server binds.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
