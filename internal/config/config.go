package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/evanschultz/pitchside/internal/domain"
)

type Config struct {
	Database   DatabaseConfig   `toml:"database"`
	Logging    LoggingConfig    `toml:"logging"`
	Board      BoardConfig      `toml:"board"`
	Drag       DragConfig       `toml:"drag"`
	Assignment AssignmentConfig `toml:"assignment"`
	Agents     []AgentConfig    `toml:"agents"`
	Analytics  AnalyticsConfig  `toml:"analytics"`
	Server     ServerConfig     `toml:"server"`
	Identity   IdentityConfig   `toml:"identity"`
	Keys       KeysConfig       `toml:"keys"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type BoardConfig struct {
	Stages        []string       `toml:"stages"`
	SLAHours      map[string]int `toml:"sla_hours"`
	CollapseLimit int            `toml:"collapse_limit"`
	// RequireNextActionOnDrag routes drag moves through the same next-action prompt as the detail panel.
	RequireNextActionOnDrag bool `toml:"require_next_action_on_drag"`
}

// DragConfig is expressed in logical pixels. Terminal cells are converted with the cell size.
type DragConfig struct {
	ActivationThresholdPx float64 `toml:"activation_threshold_px"`
	EdgeZonePx            float64 `toml:"edge_zone_px"`
	ScrollStepPx          float64 `toml:"scroll_step_px"`
	FrameIntervalMS       int     `toml:"frame_interval_ms"`
	CellWidthPx           float64 `toml:"cell_width_px"`
	CellHeightPx          float64 `toml:"cell_height_px"`
}

type AssignmentConfig struct {
	Rules []AssignmentRuleConfig `toml:"rules"`
}

type AssignmentRuleConfig struct {
	Source  string `toml:"source"`
	OwnerID string `toml:"owner_id"`
}

type AgentConfig struct {
	ID    string `toml:"id"`
	Name  string `toml:"name"`
	Email string `toml:"email"`
	Role  string `toml:"role"`
}

type AnalyticsConfig struct {
	// Timezone is an IANA name used for the "today" window. Empty means the host zone.
	Timezone string `toml:"timezone"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

type IdentityConfig struct {
	ActorID     string `toml:"actor_id"`
	DisplayName string `toml:"display_name"`
}

// KeysConfig remaps board shortcuts. Blank entries keep the built-in key.
type KeysConfig struct {
	Analytics      string `toml:"analytics"`
	Expand         string `toml:"expand"`
	MoveStageLeft  string `toml:"move_stage_left"`
	MoveStageRight string `toml:"move_stage_right"`
	NewLead        string `toml:"new_lead"`
	Copy           string `toml:"copy"`
}

func Default(dbPath string) Config {
	stages := make([]string, 0, 6)
	for _, stage := range domain.DefaultStages() {
		stages = append(stages, string(stage))
	}
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     "log",
			},
		},
		Board: BoardConfig{
			Stages:        stages,
			SLAHours:      map[string]int{},
			CollapseLimit: 5,
		},
		Drag: DragConfig{
			ActivationThresholdPx: 5,
			EdgeZonePx:            80,
			ScrollStepPx:          20,
			FrameIntervalMS:       16,
			CellWidthPx:           8,
			CellHeightPx:          16,
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:5437",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Identity: IdentityConfig{
			ActorID:     "desk",
			DisplayName: "Front desk",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Logging.DevFile.Enabled && strings.TrimSpace(c.Logging.DevFile.Dir) == "" {
		return errors.New("logging.dev_file.dir is required when dev file logging is enabled")
	}

	if len(c.Board.Stages) == 0 {
		return errors.New("board.stages must include at least one stage")
	}
	seen := make([]domain.StageID, 0, len(c.Board.Stages))
	for idx, raw := range c.Board.Stages {
		stage := domain.NormalizeStageID(raw)
		if stage == "" {
			return fmt.Errorf("board.stages[%d] is empty", idx)
		}
		if slices.Contains(seen, stage) {
			return fmt.Errorf("board.stages[%d] is duplicated: %s", idx, stage)
		}
		seen = append(seen, stage)
	}
	for raw, hours := range c.Board.SLAHours {
		stage := domain.NormalizeStageID(raw)
		if !slices.Contains(seen, stage) {
			return fmt.Errorf("board.sla_hours references unknown stage %q", raw)
		}
		if hours < 0 {
			return fmt.Errorf("board.sla_hours[%s] must be >= 0", raw)
		}
	}
	if c.Board.CollapseLimit < 0 {
		return errors.New("board.collapse_limit must be >= 0")
	}

	d := c.Drag
	if d.ActivationThresholdPx <= 0 || d.EdgeZonePx <= 0 || d.ScrollStepPx <= 0 {
		return errors.New("drag thresholds, edge zone, and scroll step must be > 0")
	}
	if d.FrameIntervalMS <= 0 {
		return errors.New("drag.frame_interval_ms must be > 0")
	}
	if d.CellWidthPx <= 0 || d.CellHeightPx <= 0 {
		return errors.New("drag cell sizes must be > 0")
	}

	for idx, rule := range c.Assignment.Rules {
		if _, err := domain.ParseSourceType(rule.Source); err != nil {
			return fmt.Errorf("assignment.rules[%d].source %q: %w", idx, rule.Source, err)
		}
		if strings.TrimSpace(rule.OwnerID) == "" {
			return fmt.Errorf("assignment.rules[%d].owner_id is required", idx)
		}
	}

	agentIDs := map[string]struct{}{}
	for idx, agent := range c.Agents {
		id := strings.TrimSpace(agent.ID)
		if id == "" {
			return fmt.Errorf("agents[%d].id is required", idx)
		}
		if strings.TrimSpace(agent.Name) == "" {
			return fmt.Errorf("agents[%d].name is required", idx)
		}
		if _, ok := agentIDs[id]; ok {
			return fmt.Errorf("agents[%d].id is duplicated: %s", idx, id)
		}
		agentIDs[id] = struct{}{}
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	boundKeys := map[string]string{}
	for name, raw := range map[string]string{
		"analytics":        c.Keys.Analytics,
		"expand":           c.Keys.Expand,
		"move_stage_left":  c.Keys.MoveStageLeft,
		"move_stage_right": c.Keys.MoveStageRight,
		"new_lead":         c.Keys.NewLead,
		"copy":             c.Keys.Copy,
	} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if other, ok := boundKeys[raw]; ok {
			first, second := min(name, other), max(name, other)
			return fmt.Errorf("keys.%s and keys.%s both use %q", first, second, raw)
		}
		boundKeys[raw] = name
	}

	if !strings.HasPrefix(strings.TrimSpace(c.Server.APIEndpoint), "/") || !strings.HasPrefix(strings.TrimSpace(c.Server.MCPEndpoint), "/") {
		return errors.New("server endpoints must start with /")
	}
	return nil
}

// Settings converts the board and assignment sections into pipeline settings.
func (c Config) Settings() domain.Settings {
	out := domain.Settings{SLAHoursByStage: map[domain.StageID]int{}}
	for _, raw := range c.Board.Stages {
		out.Stages = append(out.Stages, domain.StageID(raw))
	}
	for raw, hours := range c.Board.SLAHours {
		out.SLAHoursByStage[domain.StageID(raw)] = hours
	}
	for _, rule := range c.Assignment.Rules {
		out.AssignmentRules = append(out.AssignmentRules, domain.AssignmentRule{
			Source:  domain.SourceType(rule.Source),
			OwnerID: rule.OwnerID,
		})
	}
	return out.Normalize()
}

// SeedAgents converts the agents section into domain agents.
func (c Config) SeedAgents() []domain.Agent {
	out := make([]domain.Agent, 0, len(c.Agents))
	for _, agent := range c.Agents {
		out = append(out, domain.Agent{ID: agent.ID, Name: agent.Name, Email: agent.Email, Role: agent.Role})
	}
	return out
}

// Location resolves analytics.timezone.
func (c Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Analytics.Timezone)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid analytics.timezone %q: %w", name, err)
	}
	return loc, nil
}

// FrameInterval returns the auto-scroll tick period.
func (d DragConfig) FrameInterval() time.Duration {
	return time.Duration(d.FrameIntervalMS) * time.Millisecond
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
