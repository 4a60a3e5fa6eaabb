package board

import (
	"time"

	"github.com/evanschultz/pitchside/internal/domain"
)

// PendingStageChange holds a stage change awaiting its next action. Nothing is sent until Commit succeeds.
type PendingStageChange struct {
	LeadID string
	From   domain.StageID
	To     domain.StageID
	Action domain.NextAction
}

// OpenStageChange starts a pending change. It reports false for a same-stage selection.
func OpenStageChange(lead domain.Lead, to domain.StageID) (PendingStageChange, bool) {
	to = domain.NormalizeStageID(string(to))
	if to == "" || to == lead.Stage {
		return PendingStageChange{}, false
	}
	return PendingStageChange{LeadID: lead.ID, From: lead.Stage, To: to}, true
}

// SetType selects the next-action kind.
func (p *PendingStageChange) SetType(kind domain.NextActionType) { p.Action.Type = kind }

// SetNotes sets free-form notes.
func (p *PendingStageChange) SetNotes(notes string) { p.Action.Notes = notes }

// SetScheduledAt sets or clears the schedule.
func (p *PendingStageChange) SetScheduledAt(at *time.Time) { p.Action.ScheduledAt = at }

// Commit validates the next action and returns it ready to send.
func (p PendingStageChange) Commit() (domain.NextAction, error) {
	action := p.Action.Normalize()
	if err := action.Validate(); err != nil {
		return domain.NextAction{}, err
	}
	return action, nil
}
