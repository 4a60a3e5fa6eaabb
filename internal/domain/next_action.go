package domain

import (
	"slices"
	"strings"
	"time"
)

// NextActionType is the closed set of committed follow-up kinds.
type NextActionType string

// NextActionCall and related constants define next-action kinds.
const (
	NextActionCall     NextActionType = "call"
	NextActionWhatsApp NextActionType = "whatsapp"
	NextActionEmail    NextActionType = "email"
	NextActionMeeting  NextActionType = "meeting"
	NextActionFollowUp NextActionType = "follow_up"
)

var validNextActionTypes = []NextActionType{
	NextActionCall,
	NextActionWhatsApp,
	NextActionEmail,
	NextActionMeeting,
	NextActionFollowUp,
}

// NextActionTypes returns the accepted next-action kinds in display order.
func NextActionTypes() []NextActionType {
	return slices.Clone(validNextActionTypes)
}

// NextAction is the follow-up an agent commits to when changing a lead's stage.
type NextAction struct {
	Type        NextActionType
	ScheduledAt *time.Time
	Notes       string
}

// Normalize trims fields and truncates the schedule to whole seconds.
func (a NextAction) Normalize() NextAction {
	a.Type = NextActionType(strings.ToLower(strings.TrimSpace(string(a.Type))))
	a.Notes = strings.TrimSpace(a.Notes)
	a.ScheduledAt = normalizeDueAt(a.ScheduledAt)
	return a
}

// Validate requires a known type. Schedule and notes are optional.
func (a NextAction) Validate() error {
	a = a.Normalize()
	if a.Type == "" {
		return ErrNextActionTypeRequired
	}
	if !slices.Contains(validNextActionTypes, a.Type) {
		return ErrInvalidNextActionType
	}
	return nil
}

// Label returns a human-readable action name.
func (t NextActionType) Label() string {
	switch t {
	case NextActionWhatsApp:
		return "WhatsApp"
	case NextActionFollowUp:
		return "Follow up"
	case "":
		return ""
	default:
		s := string(t)
		return strings.ToUpper(s[:1]) + s[1:]
	}
}
