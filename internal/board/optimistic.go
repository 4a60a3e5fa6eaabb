package board

import (
	"slices"
	"time"

	"github.com/evanschultz/pitchside/internal/domain"
)

// MoveSnapshot retains a lead as it was before an optimistic move.
type MoveSnapshot struct {
	LeadID   string
	Previous domain.Lead
	// Seq is assigned by a MoveLedger; zero means the move was not tracked.
	Seq int
}

// ApplyMove returns a copy of leads with leadID relocated to stage. The input slice is not modified.
// It reports false when the lead is missing or already in stage.
func ApplyMove(leads []domain.Lead, leadID string, stage domain.StageID, now time.Time) ([]domain.Lead, MoveSnapshot, bool) {
	i := slices.IndexFunc(leads, func(l domain.Lead) bool { return l.ID == leadID })
	if i < 0 || leads[i].Stage == stage {
		return leads, MoveSnapshot{}, false
	}
	out := slices.Clone(leads)
	snap := MoveSnapshot{LeadID: leadID, Previous: out[i]}
	moved := out[i]
	if err := moved.MoveTo(stage, now); err != nil {
		return leads, MoveSnapshot{}, false
	}
	out[i] = moved
	return out, snap, true
}

// Restore puts the snapshotted stage back. Other fields keep their current values and a lead
// removed since the snapshot is not re-added.
func Restore(leads []domain.Lead, snap MoveSnapshot) []domain.Lead {
	i := slices.IndexFunc(leads, func(l domain.Lead) bool { return l.ID == snap.LeadID })
	if i < 0 {
		return leads
	}
	out := slices.Clone(leads)
	out[i].Stage = snap.Previous.Stage
	out[i].StageChangedAt = snap.Previous.StageChangedAt
	out[i].UpdatedAt = snap.Previous.UpdatedAt
	return out
}

// Replace swaps in the server copy of a lead after a successful write.
func Replace(leads []domain.Lead, lead domain.Lead) []domain.Lead {
	i := slices.IndexFunc(leads, func(l domain.Lead) bool { return l.ID == lead.ID })
	if i < 0 {
		return leads
	}
	out := slices.Clone(leads)
	out[i] = lead
	return out
}

// Settlement says how a finished move should touch the local lead set.
type Settlement int

// SettleApply and related constants are the possible move settlements.
const (
	// SettleApply swaps in the server copy.
	SettleApply Settlement = iota
	// SettleRollback restores the move's snapshot.
	SettleRollback
	// SettleWait leaves the card alone because another move of the lead is still in flight.
	SettleWait
	// SettleReload refetches the board: overlapping moves finished and no snapshot is trustworthy.
	SettleReload
)

// MoveLedger orders in-flight moves per lead. A moved card settles from its own snapshot only
// when no other move of that lead overlapped it.
type MoveLedger struct {
	seq        int
	inFlight   map[string]int
	overlapped map[string]bool
}

// NewMoveLedger returns an empty ledger.
func NewMoveLedger() *MoveLedger {
	return &MoveLedger{inFlight: map[string]int{}, overlapped: map[string]bool{}}
}

// Begin records a move of leadID and returns its sequence number.
func (l *MoveLedger) Begin(leadID string) int {
	l.seq++
	if l.inFlight[leadID] > 0 {
		l.overlapped[leadID] = true
	}
	l.inFlight[leadID]++
	return l.seq
}

// InFlight reports how many moves of leadID have not settled.
func (l *MoveLedger) InFlight(leadID string) int {
	return l.inFlight[leadID]
}

// Settle records that one move of leadID finished.
func (l *MoveLedger) Settle(leadID string, failed bool) Settlement {
	if l.inFlight[leadID] > 0 {
		l.inFlight[leadID]--
	}
	if l.inFlight[leadID] > 0 {
		return SettleWait
	}
	delete(l.inFlight, leadID)
	if l.overlapped[leadID] {
		delete(l.overlapped, leadID)
		return SettleReload
	}
	if failed {
		return SettleRollback
	}
	return SettleApply
}
