// Package tui renders the lead pipeline board in the terminal and drives drag, detail, and analytics interactions.
package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/evanschultz/pitchside/internal/app"
	"github.com/evanschultz/pitchside/internal/board"
	"github.com/evanschultz/pitchside/internal/domain"
)

// Service is the pipeline surface the board reads and writes through.
type Service interface {
	GetSettings(context.Context) (domain.Settings, error)
	ListUsers(context.Context) ([]domain.Agent, error)
	ListLeads(context.Context, app.LeadFilter) ([]domain.Lead, error)
	CreateLead(context.Context, app.CreateLeadInput) (domain.Lead, error)
	UpdateLead(context.Context, app.UpdateLeadInput) (domain.Lead, error)
	MoveLead(context.Context, string, domain.StageID, *domain.NextAction) (domain.Lead, error)
	ListTasks(context.Context, app.TaskFilter) ([]domain.Task, error)
	CreateTask(context.Context, string, app.CreateTaskInput) (domain.Task, error)
	UpdateTask(context.Context, string, domain.TaskStatus) (domain.Task, error)
	ListActivities(context.Context, string) ([]domain.Activity, error)
	CreateActivity(context.Context, string, app.CreateActivityInput) (domain.Activity, error)
	Analytics(context.Context) (app.PipelineAnalytics, error)
	AgentAnalytics(context.Context, string) (app.AgentAnalytics, error)
}

// inputMode is the active interaction layer above the board.
type inputMode int

const (
	modeNone inputMode = iota
	modeDetail
	modePicker
	modeNextAction
	modeTextInput
	modeTaskForm
	modeLeadForm
	modeAnalytics
)

// Model is the bubbletea model for the board.
type Model struct {
	svc Service

	ready  bool
	width  int
	height int
	err    error

	status string
	banner string

	help help.Model
	keys keyMap

	drag      DragOptions
	boardOpts BoardOptions
	logger    Logger
	now       func() time.Time
	loc       *time.Location
	copyText  func(string) error
	identity  string
	markdown  *markdownRenderer

	loadSeq  int
	settings domain.Settings
	leads    []domain.Lead
	tasks    []domain.Task
	agents   []domain.Agent

	selectedColumn int
	selectedLead   int
	cardOffset     int
	expanded       map[domain.StageID]bool
	scrollPx       float64

	controller board.Controller
	scroller   board.AutoScroller
	moves      *board.MoveLedger
	dragGen    int
	pointerX   int
	pointerY   int

	mode inputMode

	detailLeadID  string
	detailTask    int
	activities    []domain.Activity
	activitiesFor string

	picker pickerState

	pending     *board.PendingStageChange
	pendingBack inputMode
	actionType  int

	textPurpose textPurpose
	textBack    inputMode
	textInput   textinput.Model

	formInputs []textinput.Model
	formFocus  int
	formChoice int
	formErr    string

	analytics *analyticsData
}

// loadedMsg carries one board fetch. Only the latest sequence is applied.
type loadedMsg struct {
	seq      int
	settings domain.Settings
	leads    []domain.Lead
	tasks    []domain.Task
	agents   []domain.Agent
	err      error
}

// moveResultMsg reports the outcome of one optimistic stage move.
type moveResultMsg struct {
	snap       board.MoveSnapshot
	to         domain.StageID
	lead       domain.Lead
	withAction bool
	err        error
}

// actionMsg reports a detail-panel mutation.
type actionMsg struct {
	op         string
	status     string
	lead       *domain.Lead
	task       *domain.Task
	activities bool
	reload     bool
	err        error
}

// activitiesMsg carries the timeline for one lead.
type activitiesMsg struct {
	leadID     string
	activities []domain.Activity
	err        error
}

// NewModel constructs the board model.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:        svc,
		status:     "loading...",
		help:       h,
		keys:       newKeyMap(),
		drag:       DefaultDragOptions(),
		boardOpts:  DefaultBoardOptions(),
		now:        time.Now,
		loc:        time.Local,
		copyText:   clipboard.WriteAll,
		markdown:   newMarkdownRenderer("dark"),
		loadSeq:    1,
		expanded:   map[domain.StageID]bool{},
		controller: board.NewController(board.DefaultActivationThreshold),
		scroller:   board.NewAutoScroller(board.DefaultEdgeZone, board.DefaultScrollStep),
		moves:      board.NewMoveLedger(),
		textInput:  newTextInput("", 200),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return m.loadData(m.loadSeq)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		m.clampScroll()
		m.ensureLeadVisible()
		return m, nil

	case loadedMsg:
		if msg.seq != m.loadSeq {
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			m.logError("load board failed", msg.err)
			return m, nil
		}
		focus := m.selectedLeadID()
		m.err = nil
		m.settings = msg.settings
		m.leads = msg.leads
		m.tasks = msg.tasks
		m.agents = msg.agents
		if focus != "" {
			m.focusLead(focus)
		}
		m.clampSelections()
		m.clampScroll()
		if m.status == "" || m.status == "loading..." {
			m.status = "ready"
		}
		if m.mode == modeDetail && m.detailLeadID != "" {
			if _, ok := m.leadByID(m.detailLeadID); !ok {
				m.closeDetail()
				m.status = "lead no longer exists"
			}
		}
		return m, nil

	case moveResultMsg:
		return m.handleMoveResult(msg)

	case actionMsg:
		return m.handleActionResult(msg)

	case activitiesMsg:
		if msg.leadID != m.detailLeadID {
			return m, nil
		}
		if msg.err != nil {
			m.banner = "timeline unavailable: " + msg.err.Error()
			m.logError("list activities failed", msg.err, "lead", msg.leadID)
			return m, nil
		}
		m.activities = msg.activities
		m.activitiesFor = msg.leadID
		return m, nil

	case analyticsMsg:
		return m.handleAnalytics(msg)

	case autoScrollTickMsg:
		return m.handleAutoScrollTick(msg)

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleModeKey(msg)
		}
		return m.handleBoardKey(msg)

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)

	case tea.MouseMotionMsg:
		return m.handleMouseMotion(msg)

	case tea.MouseReleaseMsg:
		return m.handleMouseRelease(msg)

	case tea.MouseWheelMsg:
		return m.handleMouseWheel(msg)

	default:
		return m, nil
	}
}

func (m Model) View() tea.View {
	var content string
	switch {
	case m.err != nil:
		content = "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	case !m.ready:
		content = "loading..."
	default:
		content = m.renderScreen()
	}
	v := tea.NewView(content)
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

// loadData fetches settings, agents, leads, and tasks for one board refresh.
func (m Model) loadData(seq int) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx := context.Background()
		out := loadedMsg{seq: seq}
		if svc == nil {
			out.err = fmt.Errorf("board service is not configured")
			return out
		}
		if out.settings, out.err = svc.GetSettings(ctx); out.err != nil {
			return out
		}
		if out.agents, out.err = svc.ListUsers(ctx); out.err != nil {
			return out
		}
		if out.leads, out.err = svc.ListLeads(ctx, app.LeadFilter{}); out.err != nil {
			return out
		}
		out.tasks, out.err = svc.ListTasks(ctx, app.TaskFilter{})
		return out
	}
}

// reload issues a fresh fetch. Any fetch still in flight is superseded.
func (m *Model) reload() tea.Cmd {
	m.loadSeq++
	return m.loadData(m.loadSeq)
}

func (m Model) columns() ([]board.Column, []domain.Lead) {
	return board.GroupByStage(m.leads, m.settings.Stages)
}

// visibleLeads returns the rendered leads of the column at index.
func (m Model) visibleLeads(index int) []domain.Lead {
	cols, _ := m.columns()
	if index < 0 || index >= len(cols) {
		return nil
	}
	col := cols[index]
	return col.Visible(m.expanded[col.Stage], m.boardOpts.CollapseLimit)
}

func (m Model) selectedLeadValue() (domain.Lead, bool) {
	leads := m.visibleLeads(m.selectedColumn)
	if m.selectedLead < 0 || m.selectedLead >= len(leads) {
		return domain.Lead{}, false
	}
	return leads[m.selectedLead], true
}

func (m Model) selectedLeadID() string {
	lead, ok := m.selectedLeadValue()
	if !ok {
		return ""
	}
	return lead.ID
}

func (m Model) leadByID(id string) (domain.Lead, bool) {
	i := slices.IndexFunc(m.leads, func(l domain.Lead) bool { return l.ID == id })
	if i < 0 {
		return domain.Lead{}, false
	}
	return m.leads[i], true
}

func (m Model) agentName(id string) string {
	if id == "" {
		return "unassigned"
	}
	for _, agent := range m.agents {
		if agent.ID == id {
			return agent.Name
		}
	}
	return id
}

// focusLead moves the selection onto leadID, expanding its column when the lead is collapsed away.
func (m *Model) focusLead(leadID string) {
	cols, _ := m.columns()
	for ci, col := range cols {
		i := col.IndexOf(leadID)
		if i < 0 {
			continue
		}
		if i >= len(col.Visible(m.expanded[col.Stage], m.boardOpts.CollapseLimit)) {
			m.expanded[col.Stage] = true
		}
		if ci != m.selectedColumn {
			m.cardOffset = 0
		}
		m.selectedColumn = ci
		m.selectedLead = i
		m.ensureLeadVisible()
		return
	}
}

func (m *Model) clampSelections() {
	n := len(m.settings.Stages)
	if n == 0 {
		m.selectedColumn, m.selectedLead, m.cardOffset = 0, 0, 0
		return
	}
	m.selectedColumn = clamp(m.selectedColumn, 0, n-1)
	m.selectedLead = clamp(m.selectedLead, 0, len(m.visibleLeads(m.selectedColumn))-1)
	m.ensureLeadVisible()
}

// tasksForLead returns the lead's tasks with open ones first, soonest due first.
func (m Model) tasksForLead(leadID string) []domain.Task {
	var out []domain.Task
	for _, task := range m.tasks {
		if task.LeadID == leadID {
			out = append(out, task)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Task) int {
		ao, bo := a.Status == domain.TaskStatusOpen, b.Status == domain.TaskStatusOpen
		if ao != bo {
			if ao {
				return -1
			}
			return 1
		}
		switch {
		case a.DueAt == nil && b.DueAt == nil:
			return 0
		case a.DueAt == nil:
			return 1
		case b.DueAt == nil:
			return -1
		}
		return a.DueAt.Compare(*b.DueAt)
	})
	return out
}

// upsertTask replaces or appends a task in the local snapshot.
func (m *Model) upsertTask(task domain.Task) {
	i := slices.IndexFunc(m.tasks, func(t domain.Task) bool { return t.ID == task.ID })
	out := slices.Clone(m.tasks)
	if i < 0 {
		out = append(out, task)
	} else {
		out[i] = task
	}
	m.tasks = out
}

func (m Model) logError(msg string, err error, keyvals ...any) {
	if m.logger == nil {
		return
	}
	m.logger.Error(msg, append([]any{"err", err}, keyvals...)...)
}

func (m Model) logInfo(msg string, keyvals ...any) {
	if m.logger == nil {
		return
	}
	m.logger.Info(msg, keyvals...)
}

func newTextInput(placeholder string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = placeholder
	in.CharLimit = limit
	return in
}

func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	return max(minV, min(v, maxV))
}

// fitLines pads or truncates content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		lines = lines[:maxLines]
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent centers overlay above base on a layered canvas.
func overlayOnContent(base, overlay string, width, height int) string {
	if width <= 0 || height <= 0 {
		if strings.TrimSpace(overlay) == "" {
			return base
		}
		return overlay + "\n\n" + base
	}
	centered := lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)
	return composeLayers(width, height, base, placedLayer{content: centered, z: 10})
}

// placedLayer is one block drawn at a cell offset above the base content.
type placedLayer struct {
	content string
	x, y, z int
}

// composeLayers draws base at the origin and stacks the given layers over it.
func composeLayers(width, height int, base string, layers ...placedLayer) string {
	canvas := lipgloss.NewCanvas(width, height)
	canvas.Compose(lipgloss.NewLayer(fitLines(base, height)).X(0).Y(0).Z(0))
	for _, layer := range layers {
		canvas.Compose(lipgloss.NewLayer(layer.content).X(layer.x).Y(layer.y).Z(layer.z))
	}
	return canvas.Render()
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	if limit == 1 {
		return string(rs[:1])
	}
	return string(rs[:limit-1]) + "…"
}
