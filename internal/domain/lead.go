package domain

import (
	"slices"
	"strings"
	"time"
)

// SourceType describes how a lead first reached the club.
type SourceType string

// SourceWalkIn and related constants define the accepted lead sources.
const (
	SourceWalkIn   SourceType = "WALK_IN"
	SourceReferral SourceType = "REFERRAL"
	SourceWebsite  SourceType = "WEBSITE"
	SourceSocial   SourceType = "SOCIAL"
	SourceEvent    SourceType = "EVENT"
	SourcePhone    SourceType = "PHONE"
	SourceOther    SourceType = "OTHER"
)

var validSourceTypes = []SourceType{
	SourceWalkIn,
	SourceReferral,
	SourceWebsite,
	SourceSocial,
	SourceEvent,
	SourcePhone,
	SourceOther,
}

// SourceTypes returns the accepted lead sources in display order.
func SourceTypes() []SourceType {
	return append([]SourceType(nil), validSourceTypes...)
}

// LeadStatus is independent of stage. Reaching a terminal stage does not close a lead.
type LeadStatus string

// LeadStatusOpen and related constants define lead lifecycle states.
const (
	LeadStatusOpen   LeadStatus = "OPEN"
	LeadStatusClosed LeadStatus = "CLOSED"
)

// Priority bounds. 0 is the most urgent.
const (
	PriorityHighest = 0
	PriorityHigh    = 1
	PriorityNormal  = 2
	PriorityLowest  = 3
)

// Lead is one prospective member tracked through the pipeline.
type Lead struct {
	ID             string
	SourceType     SourceType
	PrimaryName    string
	Phone          string
	Email          string
	Stage          StageID
	Status         LeadStatus
	Priority       int
	OwnerID        string
	Tags           []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	StageChangedAt *time.Time
}

// LeadInput holds values for NewLead. A nil Priority defaults to PriorityNormal.
type LeadInput struct {
	ID          string
	SourceType  SourceType
	PrimaryName string
	Phone       string
	Email       string
	Stage       StageID
	Priority    *int
	OwnerID     string
	Tags        []string
}

// NewLead validates and constructs a lead.
func NewLead(in LeadInput, now time.Time) (Lead, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.PrimaryName = strings.TrimSpace(in.PrimaryName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	in.OwnerID = strings.TrimSpace(in.OwnerID)

	if in.ID == "" {
		return Lead{}, ErrInvalidID
	}
	if in.PrimaryName == "" {
		return Lead{}, ErrInvalidName
	}
	if in.Phone == "" {
		return Lead{}, ErrInvalidPhone
	}

	source := SourceType(strings.ToUpper(strings.TrimSpace(string(in.SourceType))))
	if source == "" {
		source = SourceOther
	}
	if !slices.Contains(validSourceTypes, source) {
		return Lead{}, ErrInvalidSourceType
	}

	stage := NormalizeStageID(string(in.Stage))
	if stage == "" {
		stage = StageNew
	}

	priority := PriorityNormal
	if in.Priority != nil {
		priority = *in.Priority
	}
	if !ValidPriority(priority) {
		return Lead{}, ErrInvalidPriority
	}

	ts := now.UTC()
	return Lead{
		ID:          in.ID,
		SourceType:  source,
		PrimaryName: in.PrimaryName,
		Phone:       in.Phone,
		Email:       in.Email,
		Stage:       stage,
		Status:      LeadStatusOpen,
		Priority:    priority,
		OwnerID:     in.OwnerID,
		Tags:        NormalizeTags(in.Tags),
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}, nil
}

// ValidPriority reports whether p is within the accepted range.
func ValidPriority(p int) bool {
	return p >= PriorityHighest && p <= PriorityLowest
}

// ParseSourceType validates a raw source value.
func ParseSourceType(raw string) (SourceType, error) {
	source := SourceType(strings.ToUpper(strings.TrimSpace(raw)))
	if !slices.Contains(validSourceTypes, source) {
		return "", ErrInvalidSourceType
	}
	return source, nil
}

// ParseLeadStatus validates a raw status value.
func ParseLeadStatus(raw string) (LeadStatus, error) {
	switch status := LeadStatus(strings.ToUpper(strings.TrimSpace(raw))); status {
	case LeadStatusOpen, LeadStatusClosed:
		return status, nil
	default:
		return "", ErrInvalidLeadStatus
	}
}

// MoveTo changes the lead's stage and stamps the transition time.
func (l *Lead) MoveTo(stage StageID, now time.Time) error {
	stage = NormalizeStageID(string(stage))
	if stage == "" {
		return ErrInvalidStage
	}
	ts := now.UTC()
	l.Stage = stage
	l.StageChangedAt = &ts
	l.UpdatedAt = ts
	return nil
}

// SetPriority updates the lead priority.
func (l *Lead) SetPriority(priority int, now time.Time) error {
	if !ValidPriority(priority) {
		return ErrInvalidPriority
	}
	l.Priority = priority
	l.UpdatedAt = now.UTC()
	return nil
}

// AssignOwner sets the owning agent. An empty id unassigns the lead.
func (l *Lead) AssignOwner(ownerID string, now time.Time) {
	l.OwnerID = strings.TrimSpace(ownerID)
	l.UpdatedAt = now.UTC()
}

// SetTags replaces the tag set.
func (l *Lead) SetTags(tags []string, now time.Time) {
	l.Tags = NormalizeTags(tags)
	l.UpdatedAt = now.UTC()
}

// Close marks the lead CLOSED.
func (l *Lead) Close(now time.Time) {
	l.Status = LeadStatusClosed
	l.UpdatedAt = now.UTC()
}

// Reopen marks the lead OPEN.
func (l *Lead) Reopen(now time.Time) {
	l.Status = LeadStatusOpen
	l.UpdatedAt = now.UTC()
}

// ConversionTime is the instant a JOINED lead counts as converted.
func (l Lead) ConversionTime() time.Time {
	if l.StageChangedAt != nil {
		return *l.StageChangedAt
	}
	return l.UpdatedAt
}

// NormalizeTags lower-cases, trims, de-duplicates, and sorts tags.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	slices.Sort(out)
	return out
}
