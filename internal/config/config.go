package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModuleConfig declares one learning module: which bucketed dimensions may
// participate in pattern generation and which of them form the family core.
type ModuleConfig struct {
	Name string `yaml:"name"`
	// Dimensions is the whitelist of bucketed dimension names this module
	// learns over (outcome_class and hold_time_class are always allowed).
	Dimensions []string `yaml:"dimensions"`
	// CoreDimensions is the projection used for family grouping.
	CoreDimensions []string `yaml:"core_dimensions"`
}

// Learning holds every tunable of the braiding engine. The defaults are
// reasonable starting points, not contracts; everything here is expected
// to be tuned per deployment.
type Learning struct {
	MaxSubsetSize int `yaml:"max_subset_size"`

	// Score bucketing thresholds: < Low is "low", <= High is "med",
	// above High is "high".
	ScoreLow  float64 `yaml:"score_low"`
	ScoreHigh float64 `yaml:"score_high"`

	// Floor applied to max drawdown when deriving reward/risk, so a
	// drawdown-free trade stays finite.
	MinDrawdown float64 `yaml:"min_drawdown"`

	// Lesson candidate filters.
	MinSample           int64   `yaml:"min_sample"`
	MinEdge             float64 `yaml:"min_edge"`
	MinIncremental      float64 `yaml:"min_incremental"`
	MaxLessonsPerFamily int     `yaml:"max_lessons_per_family"`

	// Multiplier derivation: 1 + clamp(edge/EdgeScale, -Cap, +Cap).
	EdgeScale     float64 `yaml:"edge_scale"`
	MultiplierCap float64 `yaml:"multiplier_cap"`

	// Lifecycle thresholds.
	PromoteSample   int64   `yaml:"promote_sample"`
	PromoteEdge     float64 `yaml:"promote_edge"`
	PromoteWindow   int     `yaml:"promote_window"`
	DeprecateWindow int     `yaml:"deprecate_window"`
	DeprecateEdge   float64 `yaml:"deprecate_edge"`
	RetentionDays   int     `yaml:"retention_days"`

	// Baseline segment minimum sample counts.
	BaselineExactMin int64 `yaml:"baseline_exact_min"`
	BaselineLooseMin int64 `yaml:"baseline_loose_min"`
}

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Ingest struct {
		SpoolDir string `yaml:"spool_dir"`
		Cron     string `yaml:"cron"`
	} `yaml:"ingest"`
	Schedule struct {
		SweepCron string `yaml:"sweep_cron"`
		PurgeCron string `yaml:"purge_cron"`
	} `yaml:"schedule"`
	Cache struct {
		SnapshotFile string `yaml:"snapshot_file"`
	} `yaml:"cache"`
	Learning Learning       `yaml:"learning"`
	Modules  []ModuleConfig `yaml:"modules"`
	Proxy    string         `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("SPOOL_DIR"); v != "" {
		cfg.Ingest.SpoolDir = v
	}
	if v := os.Getenv("CRON_SWEEP"); v != "" {
		cfg.Schedule.SweepCron = v
	}
	if v := os.Getenv("CRON_INGEST"); v != "" {
		cfg.Ingest.Cron = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/braid.db"
	}
	if c.Ingest.SpoolDir == "" {
		c.Ingest.SpoolDir = "data/closed_trades"
	}
	if c.Ingest.Cron == "" {
		c.Ingest.Cron = "0 * * * * *" // every minute
	}
	if c.Schedule.SweepCron == "" {
		c.Schedule.SweepCron = "0 5 * * * *" // hourly
	}
	if c.Schedule.PurgeCron == "" {
		c.Schedule.PurgeCron = "0 0 4 * * *" // daily
	}
	if c.Cache.SnapshotFile == "" {
		c.Cache.SnapshotFile = "data/lesson_cache.json"
	}

	l := &c.Learning
	if l.MaxSubsetSize == 0 {
		l.MaxSubsetSize = 3
	}
	if l.ScoreLow == 0 {
		l.ScoreLow = 0.3
	}
	if l.ScoreHigh == 0 {
		l.ScoreHigh = 0.7
	}
	if l.MinDrawdown == 0 {
		l.MinDrawdown = 0.01
	}
	if l.MinSample == 0 {
		l.MinSample = 8
	}
	if l.MinEdge == 0 {
		l.MinEdge = 0.3
	}
	if l.MinIncremental == 0 {
		l.MinIncremental = 0.05
	}
	if l.MaxLessonsPerFamily == 0 {
		l.MaxLessonsPerFamily = 2
	}
	if l.EdgeScale == 0 {
		l.EdgeScale = 20
	}
	if l.MultiplierCap == 0 {
		l.MultiplierCap = 0.10
	}
	if l.PromoteSample == 0 {
		l.PromoteSample = 20
	}
	if l.PromoteEdge == 0 {
		l.PromoteEdge = 0.5
	}
	if l.PromoteWindow == 0 {
		l.PromoteWindow = 3
	}
	if l.DeprecateWindow == 0 {
		l.DeprecateWindow = 5
	}
	if l.RetentionDays == 0 {
		l.RetentionDays = 90
	}
	if l.BaselineExactMin == 0 {
		l.BaselineExactMin = 10
	}
	if l.BaselineLooseMin == 0 {
		l.BaselineLooseMin = 5
	}
}

// Validate checks that the configuration is coherent.
func (c *Config) Validate() error {
	if len(c.Modules) == 0 {
		return fmt.Errorf("at least one module must be configured")
	}
	seen := make(map[string]bool)
	for _, m := range c.Modules {
		if m.Name == "" {
			return fmt.Errorf("module name is required")
		}
		if seen[m.Name] {
			return fmt.Errorf("duplicate module %q", m.Name)
		}
		seen[m.Name] = true
		if len(m.Dimensions) == 0 {
			return fmt.Errorf("module %q: dimensions whitelist is empty", m.Name)
		}
	}
	l := c.Learning
	if l.ScoreLow >= l.ScoreHigh {
		return fmt.Errorf("score_low must be below score_high")
	}
	if l.MaxSubsetSize < 1 {
		return fmt.Errorf("max_subset_size must be at least 1")
	}
	if l.MultiplierCap <= 0 || l.MultiplierCap >= 1 {
		return fmt.Errorf("multiplier_cap must be in (0, 1)")
	}
	if l.EdgeScale <= 0 {
		return fmt.Errorf("edge_scale must be positive")
	}
	if l.BaselineLooseMin > l.BaselineExactMin {
		return fmt.Errorf("baseline_loose_min must not exceed baseline_exact_min")
	}
	return nil
}

// Module returns the config for a named module, or nil if not declared.
func (c *Config) Module(name string) *ModuleConfig {
	for i := range c.Modules {
		if c.Modules[i].Name == name {
			return &c.Modules[i]
		}
	}
	return nil
}
