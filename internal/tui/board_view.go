package tui

import (
	"fmt"
	"image/color"
	"strings"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/evanschultz/pitchside/internal/board"
	"github.com/evanschultz/pitchside/internal/domain"
)

// Board geometry in terminal cells.
const (
	columnWidth = 30
	columnGap   = 1
	cardHeight  = 3
	// boardTop is the first board row: header plus banner line.
	boardTop = 2
	// columnChromeRows covers border, title, separator, footer hint, and bottom border.
	columnChromeRows = 5
	footerRows       = 2
)

var (
	colorAccent  = lipgloss.Color("62")
	colorTarget  = lipgloss.Color("39")
	colorMuted   = lipgloss.Color("241")
	colorDim     = lipgloss.Color("239")
	colorText    = lipgloss.Color("252")
	colorHot     = lipgloss.Color("203")
	colorOverdue = lipgloss.Color("214")
	colorStale   = lipgloss.Color("177")
	colorError   = lipgloss.Color("196")
)

// boardLayout is the resolved geometry for one frame.
type boardLayout struct {
	top          int
	height       int
	cardsFit     int
	scrollCols   int
	contentWidth int
}

func (m Model) layout() boardLayout {
	_, orphans := m.columns()
	footer := footerRows
	if len(orphans) > 0 {
		footer++
	}
	height := max(0, m.height-boardTop-footer)
	n := len(m.settings.Stages)
	content := 0
	if n > 0 {
		content = n*columnWidth + (n-1)*columnGap
	}
	return boardLayout{
		top:          boardTop,
		height:       height,
		cardsFit:     max(1, (height-columnChromeRows)/cardHeight),
		scrollCols:   int(m.scrollPx / m.drag.CellWidthPx),
		contentWidth: content,
	}
}

// columnLeft is the content-space x of column i.
func columnLeft(i int) int {
	return i * (columnWidth + columnGap)
}

// offsetFor is the first rendered card index of column i. Only the selected column scrolls vertically.
func (m Model) offsetFor(i int) int {
	if i == m.selectedColumn {
		return m.cardOffset
	}
	return 0
}

func (m *Model) ensureLeadVisible() {
	fit := m.layout().cardsFit
	if m.selectedLead < m.cardOffset {
		m.cardOffset = m.selectedLead
	}
	if m.selectedLead >= m.cardOffset+fit {
		m.cardOffset = m.selectedLead - fit + 1
	}
	m.cardOffset = max(0, m.cardOffset)
}

func (m *Model) clampScroll() {
	m.scrollPx = max(0, min(m.scrollPx, m.viewport().MaxScroll()))
}

// ensureColumnVisible scrolls the board so the selected column is fully on screen.
func (m *Model) ensureColumnVisible() {
	cw := m.drag.CellWidthPx
	left := float64(columnLeft(m.selectedColumn)) * cw
	right := left + columnWidth*cw
	client := float64(m.width) * cw
	if left < m.scrollPx {
		m.scrollPx = left
	}
	if right > m.scrollPx+client {
		m.scrollPx = right - client
	}
	m.clampScroll()
}

// scrollBy shifts the board horizontally by delta logical pixels.
func (m *Model) scrollBy(delta float64) {
	m.scrollPx += delta
	m.clampScroll()
}

// pointerPx converts a cell position to the logical pixel at the cell center.
func (m Model) pointerPx(x, y int) board.Point {
	return board.Point{
		X: (float64(x) + 0.5) * m.drag.CellWidthPx,
		Y: (float64(y) + 0.5) * m.drag.CellHeightPx,
	}
}

func (m Model) cellPx(x, y int) board.Point {
	return board.Point{X: float64(x) * m.drag.CellWidthPx, Y: float64(y) * m.drag.CellHeightPx}
}

func (m Model) boardRect() board.Rect {
	lay := m.layout()
	return board.Rect{
		Left:   0,
		Top:    float64(lay.top) * m.drag.CellHeightPx,
		Width:  float64(m.width) * m.drag.CellWidthPx,
		Height: float64(lay.height) * m.drag.CellHeightPx,
	}
}

func (m Model) viewport() board.Viewport {
	lay := m.layout()
	return board.Viewport{
		Rect:        m.boardRect(),
		ScrollLeft:  m.scrollPx,
		ScrollWidth: float64(lay.contentWidth) * m.drag.CellWidthPx,
		ClientWidth: float64(m.width) * m.drag.CellWidthPx,
	}
}

// droppables returns the on-screen column rects.
func (m Model) droppables() []board.Droppable {
	lay := m.layout()
	out := make([]board.Droppable, 0, len(m.settings.Stages))
	for i, stage := range m.settings.Stages {
		left := columnLeft(i) - lay.scrollCols
		if left+columnWidth <= 0 || left >= m.width {
			continue
		}
		out = append(out, board.Droppable{Stage: stage, Rect: board.Rect{
			Left:   float64(left) * m.drag.CellWidthPx,
			Top:    float64(lay.top) * m.drag.CellHeightPx,
			Width:  columnWidth * m.drag.CellWidthPx,
			Height: float64(lay.height) * m.drag.CellHeightPx,
		}})
	}
	return out
}

// resolveDrop picks the stage under a pointer position.
func (m Model) resolveDrop(p board.Point) (domain.StageID, bool) {
	vp := m.viewport()
	return board.ResolveDropTarget(board.CollisionInput{
		Pointer:     p,
		BoardRect:   vp.Rect,
		ScrollLeft:  vp.ScrollLeft,
		ScrollWidth: vp.ScrollWidth,
		Stages:      m.settings.Stages,
		Droppables:  m.droppables(),
	})
}

// hitColumn returns the column under screen x when y is inside the board.
func (m Model) hitColumn(x, y int) (int, bool) {
	lay := m.layout()
	if y < lay.top || y >= lay.top+lay.height || x < 0 || x >= m.width {
		return 0, false
	}
	contentX := x + lay.scrollCols
	i := contentX / (columnWidth + columnGap)
	if i >= len(m.settings.Stages) || contentX-columnLeft(i) >= columnWidth {
		return 0, false
	}
	return i, true
}

// cardHit locates the card under a screen cell.
type cardHit struct {
	lead    domain.Lead
	column  int
	index   int
	originX int
	originY int
}

func (m Model) hitCard(x, y int) (cardHit, bool) {
	col, ok := m.hitColumn(x, y)
	if !ok {
		return cardHit{}, false
	}
	lay := m.layout()
	row := y - lay.top - 3
	if row < 0 || row >= lay.cardsFit*cardHeight || row%cardHeight == cardHeight-1 {
		return cardHit{}, false
	}
	leads := m.visibleLeads(col)
	idx := m.offsetFor(col) + row/cardHeight
	if idx >= len(leads) {
		return cardHit{}, false
	}
	return cardHit{
		lead:    leads[idx],
		column:  col,
		index:   idx,
		originX: columnLeft(col) - lay.scrollCols + 1,
		originY: lay.top + 3 + (idx-m.offsetFor(col))*cardHeight,
	}, true
}

// renderScreen composes the full frame including overlays.
func (m Model) renderScreen() string {
	lay := m.layout()
	now := m.now()
	sections := []string{m.renderHeader(now), m.renderBanner()}
	sections = append(sections, m.renderBoard(lay, now))
	if line := m.renderOrphans(); line != "" {
		sections = append(sections, line)
	}
	sections = append(sections, m.renderFooter()...)
	content := fitLines(strings.Join(sections, "\n"), m.height)

	if m.controller.Dragging() {
		content = m.overlayGhost(content)
	}
	if overlay := m.renderModeOverlay(now); overlay != "" {
		content = overlayOnContent(content, overlay, m.width, m.height)
	}
	if m.help.ShowAll && m.mode == modeNone {
		helpModel := m.help
		helpModel.SetWidth(max(20, m.width-10))
		content = overlayOnContent(content, modalStyle().Render(helpModel.View(m.keys)), m.width, m.height)
	}
	return content
}

func (m Model) renderHeader(now time.Time) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(colorText).Render("pitchside")
	parts := []string{title}
	if m.identity != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(colorMuted).Render(m.identity))
	}
	hot, overdue := 0, 0
	for _, lead := range m.leads {
		if domain.IsHot(lead) {
			hot++
		}
		if domain.HasOverdueFollowUp(lead.ID, m.tasks, now) {
			overdue++
		}
	}
	summary := fmt.Sprintf("%d leads · %d hot · %d overdue", len(m.leads), hot, overdue)
	parts = append(parts, lipgloss.NewStyle().Foreground(colorDim).Render(summary))
	return ansi.Truncate(strings.Join(parts, "  "), max(0, m.width), "…")
}

func (m Model) renderBanner() string {
	if m.banner == "" {
		return ""
	}
	text := "✗ " + m.banner + "  (esc to dismiss)"
	return lipgloss.NewStyle().Foreground(colorError).Bold(true).Render(truncate(text, max(0, m.width)))
}

// renderBoard renders all columns side by side and cuts the visible horizontal window.
func (m Model) renderBoard(lay boardLayout, now time.Time) string {
	if lay.height <= 0 {
		return ""
	}
	if len(m.settings.Stages) == 0 {
		return fitLines(lipgloss.NewStyle().Foreground(colorMuted).Render("no stages configured"), lay.height)
	}
	target, hasTarget := domain.StageID(""), false
	if m.controller.Dragging() {
		target, hasTarget = m.resolveDrop(m.controller.Pointer())
	}
	cols, _ := m.columns()
	blocks := make([]string, 0, len(cols)*2)
	for i, col := range cols {
		if i > 0 {
			blocks = append(blocks, strings.Repeat(" ", columnGap))
		}
		blocks = append(blocks, m.renderColumn(i, col, lay, hasTarget && col.Stage == target, now))
	}
	full := lipgloss.JoinHorizontal(lipgloss.Top, blocks...)
	lines := strings.Split(full, "\n")
	for i, line := range lines {
		lines[i] = ansi.Cut(line, lay.scrollCols, lay.scrollCols+m.width)
	}
	return fitLines(strings.Join(lines, "\n"), lay.height)
}

func (m Model) renderColumn(i int, col board.Column, lay boardLayout, isTarget bool, now time.Time) string {
	inner := columnWidth - 4
	expanded := m.expanded[col.Stage]
	visible := col.Visible(expanded, m.boardOpts.CollapseLimit)
	hidden := col.Hidden(expanded, m.boardOpts.CollapseLimit)

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(colorText)
	lines := []string{
		titleStyle.Render(fmt.Sprintf("%s (%d)", col.Stage.Label(), len(col.Leads))),
		lipgloss.NewStyle().Foreground(colorDim).Render(strings.Repeat("─", inner)),
	}
	offset := m.offsetFor(i)
	end := min(len(visible), offset+lay.cardsFit)
	for j := offset; j < end; j++ {
		selected := i == m.selectedColumn && j == m.selectedLead && m.mode == modeNone
		lines = append(lines, m.renderCard(visible[j], selected, inner, now)...)
	}
	inside := max(1, lay.height-2)
	for len(lines) < inside-1 {
		lines = append(lines, "")
	}
	lines = lines[:min(len(lines), inside-1)]
	lines = append(lines, lipgloss.NewStyle().Foreground(colorMuted).Render(columnHint(hidden, expanded, offset, end, len(visible), m.boardOpts.CollapseLimit, len(col.Leads))))
	for k, line := range lines {
		lines[k] = padCell(line, inner)
	}

	border := colorDim
	switch {
	case isTarget:
		border = colorTarget
	case i == m.selectedColumn:
		border = colorAccent
	}
	return columnStyle(border).Render(strings.Join(lines, "\n"))
}

func columnStyle(border color.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
}

// columnHint is the bottom line of a column: collapsed count or scroll position.
func columnHint(hidden int, expanded bool, offset, end, visible, limit, total int) string {
	switch {
	case hidden > 0:
		return fmt.Sprintf("+%d more · e expand", hidden)
	case offset > 0 || end < visible:
		return fmt.Sprintf("%d-%d of %d", offset+1, end, visible)
	case expanded && total > limit:
		return "e collapse"
	default:
		return ""
	}
}

// renderCard returns the card's rows. The dragged card keeps its rows but renders blank.
func (m Model) renderCard(lead domain.Lead, selected bool, width int, now time.Time) []string {
	if m.controller.Dragging() && m.controller.LeadID() == lead.ID {
		return []string{"", "", ""}
	}
	nameStyle := lipgloss.NewStyle().Foreground(colorText)
	metaStyle := lipgloss.NewStyle().Foreground(colorMuted)
	if selected {
		nameStyle = nameStyle.Background(colorAccent).Bold(true)
		metaStyle = metaStyle.Background(colorAccent).Foreground(colorText)
	}
	badges := m.cardBadges(lead, now)
	name := truncate(lead.PrimaryName, max(4, width-ansi.StringWidth(badges)-1))
	line1 := nameStyle.Render(padCell(name, width-ansi.StringWidth(badges)))
	if badges != "" {
		line1 += badges
	}
	meta := fmt.Sprintf("P%d · %s · %s", lead.Priority, m.agentName(lead.OwnerID), lead.Phone)
	line2 := metaStyle.Render(padCell(truncate(meta, width), width))
	return []string{line1, line2, ""}
}

// cardBadges marks hot, overdue, and stage-stale leads. Evaluated every frame.
func (m Model) cardBadges(lead domain.Lead, now time.Time) string {
	var out []string
	if domain.IsHot(lead) {
		out = append(out, lipgloss.NewStyle().Foreground(colorHot).Bold(true).Render("●"))
	}
	if domain.HasOverdueFollowUp(lead.ID, m.tasks, now) {
		out = append(out, lipgloss.NewStyle().Foreground(colorOverdue).Bold(true).Render("!"))
	}
	if domain.StageSLAExceeded(lead, m.settings.SLAHoursByStage, now) {
		out = append(out, lipgloss.NewStyle().Foreground(colorStale).Render("⧖"))
	}
	return strings.Join(out, "")
}

func (m Model) renderOrphans() string {
	_, orphans := m.columns()
	if len(orphans) == 0 {
		return ""
	}
	names := make([]string, 0, len(orphans))
	for _, lead := range orphans {
		names = append(names, fmt.Sprintf("%s (%s)", lead.PrimaryName, lead.Stage))
	}
	text := fmt.Sprintf("unconfigured stage: %s", strings.Join(names, ", "))
	return lipgloss.NewStyle().Foreground(colorOverdue).Render(truncate(text, max(0, m.width)))
}

func (m Model) renderFooter() []string {
	status := lipgloss.NewStyle().Foreground(colorDim).Render(truncate(m.status, max(0, m.width)))
	helpModel := m.help
	helpModel.ShowAll = false
	helpModel.SetWidth(max(0, m.width))
	return []string{status, helpModel.View(m.keys)}
}

// overlayGhost floats a copy of the dragged card at the pointer, keeping the grab offset.
func (m Model) overlayGhost(content string) string {
	lead, ok := m.leadByID(m.controller.LeadID())
	if !ok || m.width <= 0 || m.height <= 0 {
		return content
	}
	target := "drop to cancel"
	if stage, ok := m.resolveDrop(m.controller.Pointer()); ok && stage != lead.Stage {
		target = "→ " + stage.Label()
	}
	inner := columnWidth - 4
	body := strings.Join([]string{
		lipgloss.NewStyle().Bold(true).Foreground(colorText).Render(padCell(truncate(lead.PrimaryName, inner), inner)),
		lipgloss.NewStyle().Foreground(colorTarget).Render(padCell(truncate(target, inner), inner)),
	}, "\n")
	ghost := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorTarget).
		Padding(0, 1).
		Render(body)
	grab := m.controller.GrabOffset()
	x := m.pointerX - int(grab.X/m.drag.CellWidthPx)
	y := m.pointerY - int(grab.Y/m.drag.CellHeightPx)
	x = clamp(x, 0, m.width-lipgloss.Width(ghost))
	y = clamp(y, 0, m.height-lipgloss.Height(ghost))
	return composeLayers(m.width, m.height, content, placedLayer{content: ghost, x: x, y: y, z: 20})
}

func modalStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(0, 1)
}

// padCell right-pads a possibly styled string to width cells, truncating when it is wider.
func padCell(s string, width int) string {
	if width <= 0 {
		return ""
	}
	w := ansi.StringWidth(s)
	if w > width {
		return ansi.Truncate(s, width, "…")
	}
	return s + strings.Repeat(" ", width-w)
}
