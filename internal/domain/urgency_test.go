package domain

import (
	"testing"
	"time"
)

func TestHasOverdueFollowUp(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	exact := now

	tasks := []Task{
		{ID: "t1", LeadID: "l1", Status: TaskStatusOpen, DueAt: &past},
		{ID: "t2", LeadID: "l2", Status: TaskStatusOpen, DueAt: &future},
		{ID: "t3", LeadID: "l3", Status: TaskStatusOpen},
		{ID: "t4", LeadID: "l4", Status: TaskStatusOpen, DueAt: &exact},
		{ID: "t5", LeadID: "l5", Status: TaskStatusCancelled, DueAt: &past},
	}
	want := map[string]bool{"l1": true, "l2": false, "l3": false, "l4": false, "l5": false, "missing": false}
	for leadID, expected := range want {
		if got := HasOverdueFollowUp(leadID, tasks, now); got != expected {
			t.Fatalf("HasOverdueFollowUp(%q) = %t, want %t", leadID, got, expected)
		}
	}
}

func TestHasOverdueFollowUpClearsWhenTaskDone(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	task := Task{ID: "t1", LeadID: "l1", Status: TaskStatusOpen, DueAt: &past}
	if !HasOverdueFollowUp("l1", []Task{task}, now) {
		t.Fatal("expected overdue before completion")
	}
	if err := task.SetStatus(TaskStatusDone, now); err != nil {
		t.Fatalf("SetStatus() error = %v", err)
	}
	if HasOverdueFollowUp("l1", []Task{task}, now) {
		t.Fatal("expected overdue to clear after completion")
	}
}

func TestIsHot(t *testing.T) {
	cases := []struct {
		priority int
		stage    StageID
		want     bool
	}{
		{0, StageNew, true},
		{1, StageContacted, true},
		{1, StageFollowUp, true},
		{2, StageNew, false},
		{3, StageNew, false},
		{0, StageWillJoin, false},
		{0, StageJoined, false},
		{1, StageUninterestedNoResponse, false},
	}
	for _, tc := range cases {
		lead := Lead{Priority: tc.priority, Stage: tc.stage}
		if got := IsHot(lead); got != tc.want {
			t.Fatalf("IsHot(p=%d, %s) = %t, want %t", tc.priority, tc.stage, got, tc.want)
		}
	}
}

func TestIsHotFlipsWithPriority(t *testing.T) {
	lead := Lead{Priority: 1, Stage: StageContacted}
	if !IsHot(lead) {
		t.Fatal("expected hot lead")
	}
	if err := lead.SetPriority(2, time.Now()); err != nil {
		t.Fatalf("SetPriority() error = %v", err)
	}
	if IsHot(lead) {
		t.Fatal("expected lead to cool down at priority 2")
	}
}

func TestStageSLAExceeded(t *testing.T) {
	created := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	lead := Lead{Stage: StageNew, CreatedAt: created}
	sla := map[StageID]int{StageNew: 24}
	if StageSLAExceeded(lead, sla, created.Add(24*time.Hour)) {
		t.Fatal("expected no breach at exactly the sla boundary")
	}
	if !StageSLAExceeded(lead, sla, created.Add(25*time.Hour)) {
		t.Fatal("expected breach after sla")
	}
	moved := created.Add(20 * time.Hour)
	lead.StageChangedAt = &moved
	if StageSLAExceeded(lead, sla, created.Add(25*time.Hour)) {
		t.Fatal("expected stage change to reset the sla clock")
	}
	lead.Stage = StageJoined
	if StageSLAExceeded(lead, sla, created.Add(1000*time.Hour)) {
		t.Fatal("expected stages without sla to never breach")
	}
}
