package tui

import (
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"

	"github.com/evanschultz/pitchside/internal/domain"
)

func (m Model) handleBoardKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if m.err != nil {
		switch {
		case key.Matches(msg, m.keys.reload):
			m.err = nil
			m.status = "loading..."
			return m, m.reload()
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		}
		return m, nil
	}
	if m.help.ShowAll && !key.Matches(msg, m.keys.toggleHelp, m.keys.quit) && msg.String() != "esc" {
		return m, nil
	}

	switch {
	case msg.String() == "esc":
		switch {
		case m.cancelDrag():
		case m.help.ShowAll:
			m.help.ShowAll = false
		case m.banner != "":
			m.banner = ""
		}
		return m, nil
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	// The keyboard never races an in-flight pointer gesture.
	if m.controller.Dragging() {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.reload()
	case key.Matches(msg, m.keys.moveLeft):
		m.selectColumn(m.selectedColumn - 1)
	case key.Matches(msg, m.keys.moveRight):
		m.selectColumn(m.selectedColumn + 1)
	case key.Matches(msg, m.keys.moveUp):
		if m.selectedLead > 0 {
			m.selectedLead--
			m.ensureLeadVisible()
		}
	case key.Matches(msg, m.keys.moveDown):
		if m.selectedLead < len(m.visibleLeads(m.selectedColumn))-1 {
			m.selectedLead++
			m.ensureLeadVisible()
		}
	case key.Matches(msg, m.keys.scrollLeft):
		m.scrollBy(-float64(columnWidth) * m.drag.CellWidthPx / 2)
	case key.Matches(msg, m.keys.scrollRight):
		m.scrollBy(float64(columnWidth) * m.drag.CellWidthPx / 2)
	case key.Matches(msg, m.keys.openLead):
		if id := m.selectedLeadID(); id != "" {
			return m.openDetail(id)
		}
	case key.Matches(msg, m.keys.moveStageLeft):
		return m.shiftSelectedStage(-1)
	case key.Matches(msg, m.keys.moveStageRight):
		return m.shiftSelectedStage(1)
	case key.Matches(msg, m.keys.expand):
		m.toggleExpanded()
	case key.Matches(msg, m.keys.analytics):
		return m.openAnalytics()
	case key.Matches(msg, m.keys.newLead):
		return m.startLeadForm()
	}
	return m, nil
}

func (m *Model) selectColumn(i int) {
	n := len(m.settings.Stages)
	if n == 0 {
		return
	}
	i = clamp(i, 0, n-1)
	if i == m.selectedColumn {
		return
	}
	m.selectedColumn = i
	m.cardOffset = 0
	m.selectedLead = clamp(m.selectedLead, 0, len(m.visibleLeads(i))-1)
	m.ensureLeadVisible()
	m.ensureColumnVisible()
}

// shiftSelectedStage moves the selected lead one stage left or right in board order.
func (m Model) shiftSelectedStage(delta int) (tea.Model, tea.Cmd) {
	lead, ok := m.selectedLeadValue()
	if !ok {
		return m, nil
	}
	idx := domain.StageIndex(m.settings.Stages, lead.Stage)
	next := idx + delta
	if idx < 0 || next < 0 || next >= len(m.settings.Stages) {
		return m, nil
	}
	model, cmd := m.requestMove(lead.ID, m.settings.Stages[next], true)
	if mm, ok := model.(Model); ok {
		mm.ensureColumnVisible()
		return mm, cmd
	}
	return model, cmd
}

func (m *Model) toggleExpanded() {
	cols, _ := m.columns()
	if m.selectedColumn < 0 || m.selectedColumn >= len(cols) {
		return
	}
	col := cols[m.selectedColumn]
	if len(col.Leads) <= m.boardOpts.CollapseLimit || m.boardOpts.CollapseLimit <= 0 {
		m.status = "nothing hidden in " + col.Stage.Label()
		return
	}
	m.expanded[col.Stage] = !m.expanded[col.Stage]
	if m.expanded[col.Stage] {
		m.status = "expanded " + col.Stage.Label()
	} else {
		m.status = "collapsed " + col.Stage.Label()
	}
	m.selectedLead = clamp(m.selectedLead, 0, len(m.visibleLeads(m.selectedColumn))-1)
	m.ensureLeadVisible()
}
