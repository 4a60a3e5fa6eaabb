package domain

import (
	"maps"
	"slices"
	"strings"
	"time"
)

// ActivityType is the closed set of timeline entry kinds.
type ActivityType string

// ActivityNote and related constants define the timeline entry kinds.
const (
	ActivityNote            ActivityType = "note"
	ActivityCall            ActivityType = "call"
	ActivityStageChanged    ActivityType = "stage_changed"
	ActivityOwnerChanged    ActivityType = "owner_changed"
	ActivityPriorityChanged ActivityType = "priority_changed"
	ActivityTagsChanged     ActivityType = "tags_changed"
	ActivityNextAction      ActivityType = "next_action"
	ActivityTaskCreated     ActivityType = "task_created"
	ActivityTaskUpdated     ActivityType = "task_updated"
)

var validActivityTypes = []ActivityType{
	ActivityNote,
	ActivityCall,
	ActivityStageChanged,
	ActivityOwnerChanged,
	ActivityPriorityChanged,
	ActivityTagsChanged,
	ActivityNextAction,
	ActivityTaskCreated,
	ActivityTaskUpdated,
}

// Metadata keys written on system-generated activities.
const (
	MetaFromStage      = "from_stage"
	MetaToStage        = "to_stage"
	MetaFromOwner      = "from_owner"
	MetaToOwner        = "to_owner"
	MetaFromPriority   = "from_priority"
	MetaToPriority     = "to_priority"
	MetaNextActionType = "next_action_type"
	MetaScheduledAt    = "scheduled_at"
	MetaTaskID         = "task_id"
	MetaTaskStatus     = "task_status"
)

// Activity is one timeline entry on a lead. Every activity counts as a touch.
type Activity struct {
	ID         string
	LeadID     string
	Type       ActivityType
	Title      string
	Body       string
	ActorID    string
	OccurredAt time.Time
	Metadata   map[string]string
}

type ActivityInput struct {
	ID       string
	LeadID   string
	Type     ActivityType
	Title    string
	Body     string
	ActorID  string
	Metadata map[string]string
}

func NewActivity(in ActivityInput, now time.Time) (Activity, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.LeadID = strings.TrimSpace(in.LeadID)
	if in.ID == "" || in.LeadID == "" {
		return Activity{}, ErrInvalidID
	}
	kind, err := ParseActivityType(string(in.Type))
	if err != nil {
		return Activity{}, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = string(kind)
	}
	var meta map[string]string
	if len(in.Metadata) > 0 {
		meta = maps.Clone(in.Metadata)
	}
	return Activity{
		ID:         in.ID,
		LeadID:     in.LeadID,
		Type:       kind,
		Title:      title,
		Body:       strings.TrimSpace(in.Body),
		ActorID:    strings.TrimSpace(in.ActorID),
		OccurredAt: now.UTC(),
		Metadata:   meta,
	}, nil
}

func ParseActivityType(raw string) (ActivityType, error) {
	kind := ActivityType(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(validActivityTypes, kind) {
		return "", ErrInvalidActivityType
	}
	return kind, nil
}

// IsUserAuthored reports whether a client may create this activity type directly.
func (t ActivityType) IsUserAuthored() bool {
	return t == ActivityNote || t == ActivityCall
}
