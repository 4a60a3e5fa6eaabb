package board

import (
	"testing"
	"time"

	"github.com/evanschultz/pitchside/internal/domain"
)

func lead(id string, stage domain.StageID, priority int, updated time.Time) domain.Lead {
	return domain.Lead{ID: id, Stage: stage, Priority: priority, Status: domain.LeadStatusOpen, UpdatedAt: updated}
}

func ids(leads []domain.Lead) []string {
	out := make([]string, 0, len(leads))
	for _, l := range leads {
		out = append(out, l.ID)
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestGroupByStageOrdersColumns(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	leads := []domain.Lead{
		lead("a", domain.StageNew, 2, base),
		lead("b", domain.StageNew, 0, base.Add(-time.Hour)),
		lead("c", domain.StageNew, 2, base.Add(time.Hour)),
		lead("d", domain.StageContacted, 1, base),
		lead("e", "ARCHIVED", 0, base),
		lead("f", domain.StageNew, 0, base),
	}
	cols, orphans := GroupByStage(leads, []domain.StageID{domain.StageNew, domain.StageContacted, domain.StageJoined})
	if len(cols) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(cols))
	}
	if got := ids(cols[0].Leads); !equalIDs(got, []string{"f", "b", "c", "a"}) {
		t.Fatalf("unexpected NEW order %v", got)
	}
	if got := ids(cols[1].Leads); !equalIDs(got, []string{"d"}) {
		t.Fatalf("unexpected CONTACTED leads %v", got)
	}
	if len(cols[2].Leads) != 0 || cols[2].Stage != domain.StageJoined {
		t.Fatalf("expected empty joined column, got %#v", cols[2])
	}
	if got := ids(orphans); !equalIDs(got, []string{"e"}) {
		t.Fatalf("unexpected orphans %v", got)
	}
}

func TestSortLeadsIsStableForEqualKeys(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	leads := []domain.Lead{
		lead("x", domain.StageNew, 1, ts),
		lead("y", domain.StageNew, 1, ts),
		lead("z", domain.StageNew, 1, ts),
	}
	SortLeads(leads)
	if got := ids(leads); !equalIDs(got, []string{"x", "y", "z"}) {
		t.Fatalf("expected input order preserved, got %v", got)
	}
}

func TestSortLeadsPropertyOverManyInputs(t *testing.T) {
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	leads := make([]domain.Lead, 0, 50)
	for i := range 50 {
		leads = append(leads, lead(string(rune('A'+i)), domain.StageNew, (i*7)%4, base.Add(time.Duration((i*13)%11)*time.Minute)))
	}
	SortLeads(leads)
	for i := 1; i < len(leads); i++ {
		prev, cur := leads[i-1], leads[i]
		if prev.Priority > cur.Priority {
			t.Fatalf("priority out of order at %d: %d > %d", i, prev.Priority, cur.Priority)
		}
		if prev.Priority == cur.Priority && prev.UpdatedAt.Before(cur.UpdatedAt) {
			t.Fatalf("updated_at out of order at %d", i)
		}
	}
}

func TestColumnVisibleCollapse(t *testing.T) {
	ts := time.Now()
	col := Column{Stage: domain.StageNew}
	for i := range 7 {
		col.Leads = append(col.Leads, lead(string(rune('a'+i)), domain.StageNew, 0, ts))
	}
	visible := col.Visible(false, DefaultCollapseLimit)
	if got := ids(visible); !equalIDs(got, []string{"a", "b", "c", "d", "e"}) {
		t.Fatalf("unexpected collapsed set %v", got)
	}
	if col.Hidden(false, DefaultCollapseLimit) != 2 {
		t.Fatalf("expected 2 hidden, got %d", col.Hidden(false, DefaultCollapseLimit))
	}
	if len(col.Visible(true, DefaultCollapseLimit)) != 7 || col.Hidden(true, DefaultCollapseLimit) != 0 {
		t.Fatal("expected expanded column to show every lead")
	}
	if col.IndexOf("c") != 2 || col.IndexOf("zz") != -1 {
		t.Fatal("unexpected IndexOf result")
	}
}
