package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/pitchside/internal/domain"
)

type leadRow struct {
	ID             string         `db:"id"`
	SourceType     string         `db:"source_type"`
	PrimaryName    string         `db:"primary_name"`
	Phone          string         `db:"phone"`
	Email          string         `db:"email"`
	Stage          string         `db:"stage"`
	Status         string         `db:"status"`
	Priority       int            `db:"priority"`
	OwnerID        string         `db:"owner_id"`
	TagsJSON       string         `db:"tags_json"`
	CreatedAt      string         `db:"created_at"`
	UpdatedAt      string         `db:"updated_at"`
	StageChangedAt sql.NullString `db:"stage_changed_at"`
}

func leadRowFromDomain(l domain.Lead) (leadRow, error) {
	tags, err := marshalJSON(l.Tags, "[]")
	if err != nil {
		return leadRow{}, fmt.Errorf("encode lead tags: %w", err)
	}
	return leadRow{
		ID:             l.ID,
		SourceType:     string(l.SourceType),
		PrimaryName:    l.PrimaryName,
		Phone:          l.Phone,
		Email:          l.Email,
		Stage:          string(l.Stage),
		Status:         string(l.Status),
		Priority:       l.Priority,
		OwnerID:        l.OwnerID,
		TagsJSON:       tags,
		CreatedAt:      ts(l.CreatedAt),
		UpdatedAt:      ts(l.UpdatedAt),
		StageChangedAt: nullableTS(l.StageChangedAt),
	}, nil
}

func (r leadRow) toDomain() (domain.Lead, error) {
	var tags []string
	if err := json.Unmarshal([]byte(r.TagsJSON), &tags); err != nil {
		return domain.Lead{}, fmt.Errorf("decode lead %s tags: %w", r.ID, err)
	}
	return domain.Lead{
		ID:             r.ID,
		SourceType:     domain.SourceType(r.SourceType),
		PrimaryName:    r.PrimaryName,
		Phone:          r.Phone,
		Email:          r.Email,
		Stage:          domain.StageID(r.Stage),
		Status:         domain.LeadStatus(r.Status),
		Priority:       r.Priority,
		OwnerID:        r.OwnerID,
		Tags:           domain.NormalizeTags(tags),
		CreatedAt:      parseTS(r.CreatedAt),
		UpdatedAt:      parseTS(r.UpdatedAt),
		StageChangedAt: parseNullTS(r.StageChangedAt),
	}, nil
}

type taskRow struct {
	ID        string         `db:"id"`
	LeadID    string         `db:"lead_id"`
	Title     string         `db:"title"`
	DueAt     sql.NullString `db:"due_at"`
	Status    string         `db:"status"`
	CreatedAt string         `db:"created_at"`
	UpdatedAt string         `db:"updated_at"`
}

func taskRowFromDomain(t domain.Task) taskRow {
	return taskRow{
		ID:        t.ID,
		LeadID:    t.LeadID,
		Title:     t.Title,
		DueAt:     nullableTS(t.DueAt),
		Status:    string(t.Status),
		CreatedAt: ts(t.CreatedAt),
		UpdatedAt: ts(t.UpdatedAt),
	}
}

func (r taskRow) toDomain() domain.Task {
	return domain.Task{
		ID:        r.ID,
		LeadID:    r.LeadID,
		Title:     r.Title,
		DueAt:     parseNullTS(r.DueAt),
		Status:    domain.TaskStatus(r.Status),
		CreatedAt: parseTS(r.CreatedAt),
		UpdatedAt: parseTS(r.UpdatedAt),
	}
}

type activityRow struct {
	ID           string `db:"id"`
	LeadID       string `db:"lead_id"`
	Type         string `db:"type"`
	Title        string `db:"title"`
	Body         string `db:"body"`
	ActorID      string `db:"actor_id"`
	MetadataJSON string `db:"metadata_json"`
	OccurredAt   string `db:"occurred_at"`
}

func activityRowFromDomain(a domain.Activity) (activityRow, error) {
	meta, err := marshalJSON(a.Metadata, "{}")
	if err != nil {
		return activityRow{}, fmt.Errorf("encode activity metadata: %w", err)
	}
	return activityRow{
		ID:           a.ID,
		LeadID:       a.LeadID,
		Type:         string(a.Type),
		Title:        a.Title,
		Body:         a.Body,
		ActorID:      a.ActorID,
		MetadataJSON: meta,
		OccurredAt:   ts(a.OccurredAt),
	}, nil
}

func (r activityRow) toDomain() (domain.Activity, error) {
	var meta map[string]string
	if err := json.Unmarshal([]byte(r.MetadataJSON), &meta); err != nil {
		return domain.Activity{}, fmt.Errorf("decode activity %s metadata: %w", r.ID, err)
	}
	if len(meta) == 0 {
		meta = nil
	}
	return domain.Activity{
		ID:         r.ID,
		LeadID:     r.LeadID,
		Type:       domain.ActivityType(r.Type),
		Title:      r.Title,
		Body:       r.Body,
		ActorID:    r.ActorID,
		OccurredAt: parseTS(r.OccurredAt),
		Metadata:   meta,
	}, nil
}

type agentRow struct {
	ID    string `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
	Role  string `db:"role"`
}

type settingsRow struct {
	StagesJSON string `db:"stages_json"`
	SLAJSON    string `db:"sla_json"`
	RulesJSON  string `db:"rules_json"`
}

type storedRule struct {
	Source  string `json:"source"`
	OwnerID string `json:"owner_id"`
}

func settingsRowFromDomain(s domain.Settings) (settingsRow, error) {
	stages, err := marshalJSON(s.Stages, "[]")
	if err != nil {
		return settingsRow{}, err
	}
	sla, err := marshalJSON(s.SLAHoursByStage, "{}")
	if err != nil {
		return settingsRow{}, err
	}
	rules := make([]storedRule, 0, len(s.AssignmentRules))
	for _, rule := range s.AssignmentRules {
		rules = append(rules, storedRule{Source: string(rule.Source), OwnerID: rule.OwnerID})
	}
	rulesJSON, err := marshalJSON(rules, "[]")
	if err != nil {
		return settingsRow{}, err
	}
	return settingsRow{StagesJSON: stages, SLAJSON: sla, RulesJSON: rulesJSON}, nil
}

func (r settingsRow) toDomain() (domain.Settings, error) {
	var out domain.Settings
	if err := json.Unmarshal([]byte(r.StagesJSON), &out.Stages); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings stages: %w", err)
	}
	if err := json.Unmarshal([]byte(r.SLAJSON), &out.SLAHoursByStage); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings sla: %w", err)
	}
	var rules []storedRule
	if err := json.Unmarshal([]byte(r.RulesJSON), &rules); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings rules: %w", err)
	}
	for _, rule := range rules {
		out.AssignmentRules = append(out.AssignmentRules, domain.AssignmentRule{Source: domain.SourceType(rule.Source), OwnerID: rule.OwnerID})
	}
	return out, nil
}

// timestampLayout is fixed-width UTC so text ordering in ORDER BY matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ts formats t for storage.
func ts(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// nullableTS handles nullable ts.
func nullableTS(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: ts(*t), Valid: true}
}

// parseTS reads a stored timestamp. Rows written before the fixed-width layout are RFC3339Nano, which also parses here.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// parseNullTS parses input into a normalized form.
func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}
