package domain

import (
	"slices"
	"strings"
)

// StageID identifies one pipeline stage. The board renders one column per configured stage.
type StageID string

// StageNew and related constants define the default pipeline order.
const (
	StageNew                    StageID = "NEW"
	StageContacted              StageID = "CONTACTED"
	StageFollowUp               StageID = "FOLLOW_UP"
	StageWillJoin               StageID = "WILL_JOIN"
	StageJoined                 StageID = "JOINED"
	StageUninterestedNoResponse StageID = "UNINTERESTED_NO_RESPONSE"
)

var defaultStages = []StageID{
	StageNew,
	StageContacted,
	StageFollowUp,
	StageWillJoin,
	StageJoined,
	StageUninterestedNoResponse,
}

// hotStages are the early stages where a high-priority lead counts as hot.
var hotStages = []StageID{StageNew, StageContacted, StageFollowUp}

// DefaultStages returns a copy of the default pipeline order.
func DefaultStages() []StageID {
	return slices.Clone(defaultStages)
}

// NormalizeStageID upper-cases and canonicalizes a stage identifier.
// Spaces and dashes collapse to underscores so "follow up" and "follow-up" both map to FOLLOW_UP.
func NormalizeStageID(raw string) StageID {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	raw = strings.NewReplacer(" ", "_", "-", "_").Replace(raw)
	for strings.Contains(raw, "__") {
		raw = strings.ReplaceAll(raw, "__", "_")
	}
	return StageID(strings.Trim(raw, "_"))
}

// Label returns a human-readable column title.
func (s StageID) Label() string {
	parts := strings.Split(strings.ToLower(string(s)), "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}

// NormalizeStages canonicalizes, de-duplicates, and drops empty stage ids while keeping order.
func NormalizeStages(stages []StageID) []StageID {
	out := make([]StageID, 0, len(stages))
	for _, raw := range stages {
		stage := NormalizeStageID(string(raw))
		if stage == "" || slices.Contains(out, stage) {
			continue
		}
		out = append(out, stage)
	}
	return out
}

// StageIndex returns the position of stage within stages, or -1.
func StageIndex(stages []StageID, stage StageID) int {
	return slices.Index(stages, stage)
}
