package domain

import (
	"slices"
	"time"
)

// HasOverdueFollowUp reports whether any OPEN task for leadID is due strictly before now.
func HasOverdueFollowUp(leadID string, tasks []Task, now time.Time) bool {
	for _, task := range tasks {
		if task.LeadID == leadID && task.IsOverdue(now) {
			return true
		}
	}
	return false
}

// IsHot reports whether a lead is high priority and still in an early stage.
func IsHot(lead Lead) bool {
	if lead.Priority != PriorityHighest && lead.Priority != PriorityHigh {
		return false
	}
	return slices.Contains(hotStages, lead.Stage)
}

// StageSLAExceeded reports whether the lead has sat in its stage longer than the stage SLA.
// Stages without an SLA never breach.
func StageSLAExceeded(lead Lead, slaHours map[StageID]int, now time.Time) bool {
	hours, ok := slaHours[lead.Stage]
	if !ok || hours <= 0 {
		return false
	}
	since := lead.CreatedAt
	if lead.StageChangedAt != nil {
		since = *lead.StageChangedAt
	}
	return now.Sub(since) > time.Duration(hours)*time.Hour
}
