package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/evanschultz/pitchside/internal/domain"
)

func TestSnapshotExportImportRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	src := newFakeRepo()
	srcSvc := newTestService(t, src, now)
	if err := srcSvc.EnsureAgents(context.Background(), []domain.Agent{{ID: "u1", Name: "Ana"}}); err != nil {
		t.Fatalf("EnsureAgents() error = %v", err)
	}
	lead := seedLead(t, srcSvc, CreateLeadInput{OwnerID: "u1", Tags: []string{"vip"}})
	due := now.Add(time.Hour)
	if _, err := srcSvc.CreateTask(context.Background(), lead.ID, CreateTaskInput{Title: "Call", DueAt: &due}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if _, err := srcSvc.MoveLead(context.Background(), lead.ID, domain.StageContacted, nil); err != nil {
		t.Fatalf("MoveLead() error = %v", err)
	}

	snap, err := srcSvc.ExportSnapshot(context.Background())
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	if snap.Version != SnapshotVersion || len(snap.Leads) != 1 || len(snap.Tasks) != 1 || len(snap.Agents) != 1 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	var decoded Snapshot
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}

	dst := newFakeRepo()
	dstSvc := newTestService(t, dst, now)
	if err := dstSvc.ImportSnapshot(context.Background(), decoded); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	got, err := dst.GetLead(context.Background(), lead.ID)
	if err != nil {
		t.Fatalf("GetLead() error = %v", err)
	}
	if got.Stage != domain.StageContacted || got.OwnerID != "u1" || got.StageChangedAt == nil {
		t.Fatalf("unexpected imported lead %#v", got)
	}
	if len(dst.activities) != len(src.activities) {
		t.Fatalf("expected %d activities, got %d", len(src.activities), len(dst.activities))
	}

	// Re-import is idempotent for activities.
	if err := dstSvc.ImportSnapshot(context.Background(), decoded); err != nil {
		t.Fatalf("ImportSnapshot() second pass error = %v", err)
	}
	if len(dst.activities) != len(src.activities) {
		t.Fatalf("expected activities deduplicated, got %d", len(dst.activities))
	}
}

func TestSnapshotValidate(t *testing.T) {
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	valid := SnapshotLead{ID: "l1", SourceType: "OTHER", PrimaryName: "A", Phone: "1", Stage: "NEW", Status: "OPEN", Priority: 2, CreatedAt: ts, UpdatedAt: ts}
	cases := []struct {
		name string
		snap Snapshot
	}{
		{name: "version", snap: Snapshot{Version: "other.v9"}},
		{name: "duplicate lead", snap: Snapshot{Leads: []SnapshotLead{valid, valid}}},
		{name: "bad priority", snap: Snapshot{Leads: []SnapshotLead{func() SnapshotLead { l := valid; l.Priority = 7; return l }()}}},
		{name: "orphan task", snap: Snapshot{Leads: []SnapshotLead{valid}, Tasks: []SnapshotTask{{ID: "t1", LeadID: "l2", Title: "x", Status: "OPEN"}}}},
		{name: "bad activity type", snap: Snapshot{Leads: []SnapshotLead{valid}, Activities: []SnapshotActivity{{ID: "a1", LeadID: "l1", Type: "fax"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.snap.Validate(); !errors.Is(err, ErrInvalidSnapshot) {
				t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
			}
		})
	}
	ok := Snapshot{Version: SnapshotVersion, Leads: []SnapshotLead{valid}}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}
