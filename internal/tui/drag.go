package tui

import (
	"context"
	"fmt"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/evanschultz/pitchside/internal/board"
	"github.com/evanschultz/pitchside/internal/domain"
)

// autoScrollTickMsg is one auto-scroll frame. Ticks from an ended drag carry a stale generation.
type autoScrollTickMsg struct {
	gen int
}

func (m Model) autoScrollTick(gen int) tea.Cmd {
	return tea.Tick(m.drag.FrameInterval, func(time.Time) tea.Msg {
		return autoScrollTickMsg{gen: gen}
	})
}

func (m Model) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone || m.help.ShowAll || msg.Button != tea.MouseLeft {
		return m, nil
	}
	if hit, ok := m.hitCard(msg.X, msg.Y); ok {
		if hit.column != m.selectedColumn {
			m.cardOffset = 0
		}
		m.selectedColumn = hit.column
		m.selectedLead = hit.index
		m.ensureLeadVisible()
		m.pointerX, m.pointerY = msg.X, msg.Y
		m.controller.Press(hit.lead.ID, hit.lead.Stage, m.pointerPx(msg.X, msg.Y), m.cellPx(hit.originX, hit.originY))
		return m, nil
	}
	if col, ok := m.hitColumn(msg.X, msg.Y); ok && col != m.selectedColumn {
		m.selectedColumn = col
		m.selectedLead = 0
		m.cardOffset = 0
	}
	return m, nil
}

func (m Model) handleMouseMotion(msg tea.MouseMotionMsg) (tea.Model, tea.Cmd) {
	if !m.controller.Armed() && !m.controller.Dragging() {
		return m, nil
	}
	if m.overlayOpen() {
		m.cancelDrag()
		return m, nil
	}
	m.pointerX, m.pointerY = msg.X, msg.Y
	if m.controller.Track(m.pointerPx(msg.X, msg.Y)) {
		m.dragGen++
		if lead, ok := m.leadByID(m.controller.LeadID()); ok {
			m.status = "dragging " + lead.PrimaryName + " · esc cancels"
		}
		return m, m.autoScrollTick(m.dragGen)
	}
	return m, nil
}

func (m Model) handleMouseRelease(msg tea.MouseReleaseMsg) (tea.Model, tea.Cmd) {
	if !m.controller.Armed() && !m.controller.Dragging() {
		return m, nil
	}
	// A press whose release lands under an overlay opened meanwhile resolves to nothing.
	if m.overlayOpen() {
		m.cancelDrag()
		return m, nil
	}
	m.pointerX, m.pointerY = msg.X, msg.Y
	out := m.controller.Release(m.pointerPx(msg.X, msg.Y), m.resolveDrop)
	m.dragGen++
	switch out.Kind {
	case board.OutcomeClick:
		return m.openDetail(out.LeadID)
	case board.OutcomeDiscard:
		m.status = "drop cancelled"
	case board.OutcomeMove:
		return m.requestMove(out.LeadID, out.To, true)
	}
	return m, nil
}

func (m Model) handleMouseWheel(msg tea.MouseWheelMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone || m.help.ShowAll {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseWheelLeft:
		m.scrollBy(-m.drag.ScrollStepPx)
	case tea.MouseWheelRight:
		m.scrollBy(m.drag.ScrollStepPx)
	case tea.MouseWheelUp:
		if m.selectedLead > 0 {
			m.selectedLead--
			m.ensureLeadVisible()
		}
	case tea.MouseWheelDown:
		if m.selectedLead < len(m.visibleLeads(m.selectedColumn))-1 {
			m.selectedLead++
			m.ensureLeadVisible()
		}
	}
	return m, nil
}

// handleAutoScrollTick advances the board while the dragged pointer sits in an edge zone.
// A tick for a stale generation never reschedules, so at most one loop runs.
func (m Model) handleAutoScrollTick(msg autoScrollTickMsg) (tea.Model, tea.Cmd) {
	if msg.gen != m.dragGen || !m.controller.Dragging() {
		return m, nil
	}
	if next, moved := m.scroller.Next(m.controller.Pointer(), m.viewport()); moved {
		m.scrollPx = next
	}
	return m, m.autoScrollTick(msg.gen)
}

func (m Model) overlayOpen() bool {
	return m.mode != modeNone || m.help.ShowAll
}

// cancelDrag abandons the gesture without a mutation.
func (m *Model) cancelDrag() bool {
	if !m.controller.Dragging() && !m.controller.Armed() {
		return false
	}
	wasDragging := m.controller.Cancel()
	m.dragGen++
	if wasDragging {
		m.status = "drag cancelled"
	}
	return true
}

// requestMove routes a board move. fromBoard covers drag drops and the keyboard fast path,
// which skip the next-action prompt unless the board is configured to require it.
func (m Model) requestMove(leadID string, to domain.StageID, fromBoard bool) (tea.Model, tea.Cmd) {
	lead, ok := m.leadByID(leadID)
	if !ok {
		m.status = "lead not found"
		return m, nil
	}
	if fromBoard && m.boardOpts.RequireNextActionOnDrag {
		change, ok := board.OpenStageChange(lead, to)
		if !ok {
			return m, nil
		}
		return m.startNextAction(change, modeNone)
	}
	return m.applyMove(leadID, to, nil)
}

// applyMove relocates the lead locally and sends the move. The snapshot rides along for rollback.
func (m Model) applyMove(leadID string, to domain.StageID, next *domain.NextAction) (tea.Model, tea.Cmd) {
	leads, snap, ok := board.ApplyMove(m.leads, leadID, to, m.now())
	if !ok {
		return m, nil
	}
	if m.moves == nil {
		m.moves = board.NewMoveLedger()
	}
	snap.Seq = m.moves.Begin(leadID)
	m.leads = leads
	m.focusLead(leadID)
	m.status = fmt.Sprintf("moving %s to %s", snap.Previous.PrimaryName, to.Label())
	svc := m.svc
	return m, func() tea.Msg {
		lead, err := svc.MoveLead(context.Background(), leadID, to, next)
		return moveResultMsg{snap: snap, to: to, lead: lead, withAction: next != nil, err: err}
	}
}

func (m Model) handleMoveResult(msg moveResultMsg) (tea.Model, tea.Cmd) {
	name := msg.snap.Previous.PrimaryName
	settle := board.SettleApply
	if m.moves != nil {
		settle = m.moves.Settle(msg.snap.LeadID, msg.err != nil)
	} else if msg.err != nil {
		settle = board.SettleRollback
	}
	if msg.err != nil {
		m.banner = fmt.Sprintf("move %s to %s failed: %v", name, msg.to.Label(), msg.err)
		m.logError("move lead failed", msg.err, "lead", msg.snap.LeadID, "to", msg.to, "seq", msg.snap.Seq)
	}

	switch settle {
	case board.SettleWait:
		// A later move of this lead owns the card until it settles.
		return m, nil
	case board.SettleReload:
		m.status = "moves overlapped, reloading " + name
		m.logInfo("overlapping moves settled", "lead", msg.snap.LeadID)
		return m, m.reload()
	case board.SettleRollback:
		m.leads = board.Restore(m.leads, msg.snap)
		m.focusLead(msg.snap.LeadID)
		m.status = "move rolled back"
		return m, nil
	}

	m.leads = board.Replace(m.leads, msg.lead)
	m.status = fmt.Sprintf("moved %s to %s", name, msg.to.Label())
	m.logInfo("lead moved", "lead", msg.lead.ID, "from", msg.snap.Previous.Stage, "to", msg.lead.Stage)
	var cmds []tea.Cmd
	if msg.withAction {
		cmds = append(cmds, m.reload())
	}
	if m.mode == modeDetail && m.detailLeadID == msg.lead.ID {
		cmds = append(cmds, m.activitiesCmd(msg.lead.ID))
	}
	return m, tea.Batch(cmds...)
}
