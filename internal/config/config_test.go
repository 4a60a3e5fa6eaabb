package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/evanschultz/pitchside/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/pitchside.db")
	if cfg.Database.Path != "/tmp/pitchside.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if len(cfg.Board.Stages) != 6 || cfg.Board.CollapseLimit != 5 {
		t.Fatalf("unexpected board defaults %#v", cfg.Board)
	}
	if cfg.Drag.ActivationThresholdPx != 5 || cfg.Drag.EdgeZonePx != 80 || cfg.Drag.ScrollStepPx != 20 {
		t.Fatalf("unexpected drag defaults %#v", cfg.Drag)
	}
	if cfg.Board.RequireNextActionOnDrag {
		t.Fatal("expected drag moves to skip the next-action prompt by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/pitchside.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/custom/pitchside.db"

[board]
stages = ["new", "contacted", "joined"]
collapse_limit = 3
require_next_action_on_drag = true

[board.sla_hours]
new = 12

[assignment]
rules = [{ source = "website", owner_id = "u1" }]

[[agents]]
id = "u1"
name = "Ana"

[analytics]
timezone = "UTC"

[keys]
analytics = "A"
copy = "c"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/custom/pitchside.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	settings := cfg.Settings()
	if len(settings.Stages) != 3 || settings.Stages[2] != domain.StageJoined {
		t.Fatalf("unexpected stages %#v", settings.Stages)
	}
	if settings.SLAHoursByStage[domain.StageNew] != 12 {
		t.Fatalf("unexpected sla %#v", settings.SLAHoursByStage)
	}
	if owner, ok := settings.OwnerForSource(domain.SourceWebsite); !ok || owner != "u1" {
		t.Fatalf("unexpected rule owner %q", owner)
	}
	if !cfg.Board.RequireNextActionOnDrag || cfg.Board.CollapseLimit != 3 {
		t.Fatalf("unexpected board config %#v", cfg.Board)
	}
	if agents := cfg.SeedAgents(); len(agents) != 1 || agents[0].Name != "Ana" {
		t.Fatalf("unexpected agents %#v", agents)
	}
	if cfg.Keys.Analytics != "A" || cfg.Keys.Copy != "c" || cfg.Keys.Expand != "" {
		t.Fatalf("unexpected keys %#v", cfg.Keys)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "UTC" {
		t.Fatalf("unexpected location %v err=%v", loc, err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"database path":  func(c *Config) { c.Database.Path = " " },
		"log level":      func(c *Config) { c.Logging.Level = "loud" },
		"no stages":      func(c *Config) { c.Board.Stages = nil },
		"dup stage":      func(c *Config) { c.Board.Stages = []string{"new", "NEW"} },
		"sla unknown":    func(c *Config) { c.Board.SLAHours = map[string]int{"lost": 3} },
		"drag threshold": func(c *Config) { c.Drag.ActivationThresholdPx = 0 },
		"cell size":      func(c *Config) { c.Drag.CellWidthPx = -1 },
		"rule source":    func(c *Config) { c.Assignment.Rules = []AssignmentRuleConfig{{Source: "fax", OwnerID: "u"}} },
		"dup agent":      func(c *Config) { c.Agents = []AgentConfig{{ID: "a", Name: "A"}, {ID: "a", Name: "B"}} },
		"timezone":       func(c *Config) { c.Analytics.Timezone = "Mars/Olympus" },
		"endpoint":       func(c *Config) { c.Server.APIEndpoint = "api" },
		"key collision":  func(c *Config) { c.Keys.Expand, c.Keys.Copy = "x", "x" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default("/tmp/pitchside.db")
			cfg.Board.SLAHours = map[string]int{}
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoadRejectsBadToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[board\nstages = 1"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	_, err := Load(path, Default("/tmp/default.db"))
	if err == nil || !strings.Contains(err.Error(), "decode toml") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(target); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Fatalf("expected dir to exist, stat error %v", err)
	}
}
