package domain

import (
	"maps"
	"slices"
	"strings"
)

// AssignmentRule routes new leads from a source to an owner.
type AssignmentRule struct {
	Source  SourceType
	OwnerID string
}

// Settings is the pipeline configuration shared by the board and analytics.
type Settings struct {
	Stages          []StageID
	SLAHoursByStage map[StageID]int
	AssignmentRules []AssignmentRule
}

// DefaultSettings returns settings with the default stage order and no SLA or rules.
func DefaultSettings() Settings {
	return Settings{
		Stages:          DefaultStages(),
		SLAHoursByStage: map[StageID]int{},
	}
}

// Normalize canonicalizes stage ids and drops invalid entries. An empty stage list falls back to the default order.
func (s Settings) Normalize() Settings {
	out := Settings{
		Stages:          NormalizeStages(s.Stages),
		SLAHoursByStage: make(map[StageID]int, len(s.SLAHoursByStage)),
	}
	if len(out.Stages) == 0 {
		out.Stages = DefaultStages()
	}
	for raw, hours := range s.SLAHoursByStage {
		stage := NormalizeStageID(string(raw))
		if stage == "" || hours <= 0 {
			continue
		}
		out.SLAHoursByStage[stage] = hours
	}
	for _, rule := range s.AssignmentRules {
		source, err := ParseSourceType(string(rule.Source))
		owner := strings.TrimSpace(rule.OwnerID)
		if err != nil || owner == "" {
			continue
		}
		out.AssignmentRules = append(out.AssignmentRules, AssignmentRule{Source: source, OwnerID: owner})
	}
	return out
}

// Validate reports the first structural problem in the settings.
func (s Settings) Validate() error {
	if len(NormalizeStages(s.Stages)) == 0 {
		return ErrInvalidStage
	}
	for _, hours := range s.SLAHoursByStage {
		if hours < 0 {
			return ErrInvalidSLAHours
		}
	}
	return nil
}

// HasStage reports whether stage is configured.
func (s Settings) HasStage(stage StageID) bool {
	return slices.Contains(s.Stages, stage)
}

// OwnerForSource returns the first rule owner for source.
func (s Settings) OwnerForSource(source SourceType) (string, bool) {
	for _, rule := range s.AssignmentRules {
		if rule.Source == source {
			return rule.OwnerID, true
		}
	}
	return "", false
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	return Settings{
		Stages:          slices.Clone(s.Stages),
		SLAHoursByStage: maps.Clone(s.SLAHoursByStage),
		AssignmentRules: slices.Clone(s.AssignmentRules),
	}
}
