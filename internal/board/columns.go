// Package board holds the pure pipeline-board core: column grouping, drag gesture state,
// scroll-aware drop resolution, and auto-scroll. It knows nothing about terminals or storage.
package board

import (
	"slices"

	"github.com/evanschultz/pitchside/internal/domain"
)

// DefaultCollapseLimit is how many cards a collapsed column shows.
const DefaultCollapseLimit = 5

// Column is one stage's sorted leads.
type Column struct {
	Stage domain.StageID
	Leads []domain.Lead
}

// GroupByStage buckets leads into one column per configured stage, in configured order.
// Leads whose stage is not configured are returned separately, sorted the same way.
func GroupByStage(leads []domain.Lead, stages []domain.StageID) ([]Column, []domain.Lead) {
	columns := make([]Column, len(stages))
	index := make(map[domain.StageID]int, len(stages))
	for i, stage := range stages {
		columns[i] = Column{Stage: stage}
		index[stage] = i
	}
	var orphans []domain.Lead
	for _, lead := range leads {
		i, ok := index[lead.Stage]
		if !ok {
			orphans = append(orphans, lead)
			continue
		}
		columns[i].Leads = append(columns[i].Leads, lead)
	}
	for i := range columns {
		SortLeads(columns[i].Leads)
	}
	SortLeads(orphans)
	return columns, orphans
}

// SortLeads orders leads by ascending priority, then most recently updated first. Equal keys keep input order.
func SortLeads(leads []domain.Lead) {
	slices.SortStableFunc(leads, compareLeads)
}

func compareLeads(a, b domain.Lead) int {
	if a.Priority != b.Priority {
		return a.Priority - b.Priority
	}
	return b.UpdatedAt.Compare(a.UpdatedAt)
}

// Visible returns the leads shown for the column. Collapsing only truncates.
func (c Column) Visible(expanded bool, limit int) []domain.Lead {
	if expanded || limit <= 0 || len(c.Leads) <= limit {
		return c.Leads
	}
	return c.Leads[:limit]
}

// Hidden returns how many leads the collapsed column hides.
func (c Column) Hidden(expanded bool, limit int) int {
	return len(c.Leads) - len(c.Visible(expanded, limit))
}

// IndexOf returns the position of leadID in the column, or -1.
func (c Column) IndexOf(leadID string) int {
	return slices.IndexFunc(c.Leads, func(l domain.Lead) bool { return l.ID == leadID })
}
