package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/evanschultz/pitchside/internal/app"
	"github.com/evanschultz/pitchside/internal/board"
	"github.com/evanschultz/pitchside/internal/domain"
)

// pickerKind identifies what a picker selection writes.
type pickerKind int

const (
	pickStage pickerKind = iota
	pickOwner
	pickPriority
)

type pickerItem struct {
	label string
	value string
}

type pickerState struct {
	kind  pickerKind
	title string
	items []pickerItem
	index int
}

// textPurpose identifies what a single-line input submits.
type textPurpose int

const (
	textTags textPurpose = iota
	textNote
	textCall
)

var priorityLabels = []string{"P0 urgent", "P1 high", "P2 normal", "P3 low"}

func (m Model) openDetail(leadID string) (tea.Model, tea.Cmd) {
	if _, ok := m.leadByID(leadID); !ok {
		return m, nil
	}
	m.mode = modeDetail
	m.detailLeadID = leadID
	m.detailTask = 0
	if m.activitiesFor != leadID {
		m.activities = nil
		m.activitiesFor = ""
	}
	return m, m.activitiesCmd(leadID)
}

func (m *Model) closeDetail() {
	m.mode = modeNone
	m.detailLeadID = ""
	m.detailTask = 0
}

func (m Model) activitiesCmd(leadID string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		activities, err := svc.ListActivities(context.Background(), leadID)
		return activitiesMsg{leadID: leadID, activities: activities, err: err}
	}
}

// handleModeKey routes keys while an overlay owns input.
func (m Model) handleModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	switch m.mode {
	case modeDetail:
		return m.handleDetailKey(msg)
	case modePicker:
		return m.handlePickerKey(msg)
	case modeNextAction:
		return m.handleNextActionKey(msg)
	case modeTextInput:
		return m.handleTextInputKey(msg)
	case modeTaskForm, modeLeadForm:
		return m.handleFormKey(msg)
	case modeAnalytics:
		return m.handleAnalyticsKey(msg)
	}
	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	lead, ok := m.leadByID(m.detailLeadID)
	if !ok {
		m.closeDetail()
		return m, nil
	}
	tasks := m.tasksForLead(lead.ID)
	switch {
	case key.Matches(msg, m.keys.back), msg.String() == "q":
		if m.banner != "" {
			m.banner = ""
			return m, nil
		}
		m.closeDetail()
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.detailTask = clamp(m.detailTask+1, 0, len(tasks)-1)
	case key.Matches(msg, m.keys.moveUp):
		m.detailTask = clamp(m.detailTask-1, 0, len(tasks)-1)
	case key.Matches(msg, m.keys.reload):
		return m, tea.Batch(m.reload(), m.activitiesCmd(lead.ID))
	case key.Matches(msg, m.keys.changeStage):
		items := make([]pickerItem, 0, len(m.settings.Stages))
		index := 0
		for i, stage := range m.settings.Stages {
			items = append(items, pickerItem{label: stage.Label(), value: string(stage)})
			if stage == lead.Stage {
				index = i
			}
		}
		m.openPicker(pickerState{kind: pickStage, title: "Move " + lead.PrimaryName + " to", items: items, index: index})
	case key.Matches(msg, m.keys.assignOwner):
		items := []pickerItem{{label: "unassigned", value: ""}}
		index := 0
		for _, agent := range m.agents {
			items = append(items, pickerItem{label: agent.Name, value: agent.ID})
			if agent.ID == lead.OwnerID {
				index = len(items) - 1
			}
		}
		m.openPicker(pickerState{kind: pickOwner, title: "Owner", items: items, index: index})
	case key.Matches(msg, m.keys.setPriority):
		items := make([]pickerItem, 0, len(priorityLabels))
		for i, label := range priorityLabels {
			items = append(items, pickerItem{label: label, value: strconv.Itoa(i)})
		}
		m.openPicker(pickerState{kind: pickPriority, title: "Priority", items: items, index: clamp(lead.Priority, 0, len(items)-1)})
	case key.Matches(msg, m.keys.editTags):
		return m.startTextInput(textTags, "tags, comma separated", strings.Join(lead.Tags, ", "))
	case key.Matches(msg, m.keys.addNote):
		return m.startTextInput(textNote, "markdown note", "")
	case key.Matches(msg, m.keys.logCall):
		return m.startTextInput(textCall, "call summary", "")
	case key.Matches(msg, m.keys.addFollowUp):
		return m.startTaskForm()
	case key.Matches(msg, m.keys.taskDone):
		if m.detailTask < 0 || m.detailTask >= len(tasks) {
			m.status = "no task selected"
			return m, nil
		}
		task := tasks[m.detailTask]
		if task.Status != domain.TaskStatusOpen {
			m.status = "task is already " + strings.ToLower(string(task.Status))
			return m, nil
		}
		return m, m.updateTaskCmd(task.ID, domain.TaskStatusDone)
	case key.Matches(msg, m.keys.copy):
		if err := m.copyText(lead.Phone); err != nil {
			m.banner = "copy failed: " + err.Error()
			m.logError("clipboard write failed", err)
			return m, nil
		}
		m.status = "copied " + lead.Phone
	}
	return m, nil
}

func (m *Model) openPicker(p pickerState) {
	m.picker = p
	m.mode = modePicker
}

func (m Model) handlePickerKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.mode = modeDetail
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.picker.index = clamp(m.picker.index+1, 0, len(m.picker.items)-1)
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.picker.index = clamp(m.picker.index-1, 0, len(m.picker.items)-1)
		return m, nil
	case msg.String() != "enter":
		return m, nil
	}
	if m.picker.index < 0 || m.picker.index >= len(m.picker.items) {
		return m, nil
	}
	lead, ok := m.leadByID(m.detailLeadID)
	if !ok {
		m.closeDetail()
		return m, nil
	}
	value := m.picker.items[m.picker.index].value
	m.mode = modeDetail
	switch m.picker.kind {
	case pickStage:
		change, ok := board.OpenStageChange(lead, domain.StageID(value))
		if !ok {
			m.status = "already in " + lead.Stage.Label()
			return m, nil
		}
		return m.startNextAction(change, modeDetail)
	case pickOwner:
		if value == lead.OwnerID {
			return m, nil
		}
		return m, m.updateLeadCmd("owner", app.UpdateLeadInput{LeadID: lead.ID, OwnerID: &value})
	case pickPriority:
		priority, err := strconv.Atoi(value)
		if err != nil || priority == lead.Priority {
			return m, nil
		}
		return m, m.updateLeadCmd("priority", app.UpdateLeadInput{LeadID: lead.ID, Priority: &priority})
	}
	return m, nil
}

// startNextAction opens the gate a stage change must pass. No move is sent until it commits.
func (m Model) startNextAction(change board.PendingStageChange, back inputMode) (tea.Model, tea.Cmd) {
	m.pending = &change
	m.pendingBack = back
	m.actionType = -1
	m.formErr = ""
	m.formInputs = []textinput.Model{newTextInput("YYYY-MM-DD HH:MM, +2h, +1d, tomorrow", 40), newTextInput("notes", 240)}
	m.formFocus = 0
	m.mode = modeNextAction
	return m, nil
}

func (m Model) handleNextActionKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	types := domain.NextActionTypes()
	switch msg.String() {
	case "esc":
		m.pending = nil
		m.mode = m.pendingBack
		m.formErr = ""
		m.status = "stage change cancelled"
		return m, nil
	case "tab", "down":
		return m, m.focusFormField((m.formFocus + 1) % (len(m.formInputs) + 1))
	case "shift+tab", "up":
		return m, m.focusFormField((m.formFocus + len(m.formInputs)) % (len(m.formInputs) + 1))
	case "enter":
		return m.commitNextAction()
	}
	if m.formFocus == 0 {
		switch msg.String() {
		case "left", "h":
			if m.actionType <= 0 {
				m.actionType = len(types) - 1
			} else {
				m.actionType--
			}
		case "right", "l", " ", "space":
			m.actionType = (m.actionType + 1) % len(types)
		}
		return m, nil
	}
	return m, m.updateFocusedInput(msg)
}

func (m Model) commitNextAction() (tea.Model, tea.Cmd) {
	if m.pending == nil {
		m.mode = m.pendingBack
		return m, nil
	}
	change := *m.pending
	if types := domain.NextActionTypes(); m.actionType >= 0 && m.actionType < len(types) {
		change.SetType(types[m.actionType])
	}
	when, err := parseWhen(m.formInputs[0].Value(), m.now(), m.loc)
	if err != nil {
		m.formErr = err.Error()
		return m, nil
	}
	change.SetScheduledAt(when)
	change.SetNotes(m.formInputs[1].Value())
	action, err := change.Commit()
	if err != nil {
		m.formErr = nextActionError(err)
		return m, nil
	}
	m.pending = nil
	m.formErr = ""
	m.mode = m.pendingBack
	return m.applyMove(change.LeadID, change.To, &action)
}

func nextActionError(err error) string {
	switch {
	case errors.Is(err, domain.ErrNextActionTypeRequired):
		return "choose a next action type with ←/→"
	case errors.Is(err, domain.ErrInvalidNextActionType):
		return "unknown next action type"
	default:
		return err.Error()
	}
}

func (m Model) startTextInput(purpose textPurpose, placeholder, value string) (tea.Model, tea.Cmd) {
	m.textPurpose = purpose
	m.textBack = m.mode
	m.formErr = ""
	m.textInput = newTextInput(placeholder, 500)
	m.textInput.SetValue(value)
	m.textInput.CursorEnd()
	m.mode = modeTextInput
	return m, m.textInput.Focus()
}

func (m Model) handleTextInputKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = m.textBack
		m.formErr = ""
		return m, nil
	case "enter":
		return m.submitTextInput()
	}
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m Model) submitTextInput() (tea.Model, tea.Cmd) {
	lead, ok := m.leadByID(m.detailLeadID)
	if !ok {
		m.closeDetail()
		return m, nil
	}
	value := strings.TrimSpace(m.textInput.Value())
	switch m.textPurpose {
	case textTags:
		tags := splitTags(value)
		m.mode = m.textBack
		return m, m.updateLeadCmd("tags", app.UpdateLeadInput{LeadID: lead.ID, Tags: &tags})
	case textNote, textCall:
		if value == "" {
			m.formErr = "text is required"
			return m, nil
		}
		in := app.CreateActivityInput{Type: domain.ActivityNote, Title: "Note", Body: value}
		if m.textPurpose == textCall {
			in = app.CreateActivityInput{Type: domain.ActivityCall, Title: "Call", Body: value}
		}
		m.mode = m.textBack
		return m, m.createActivityCmd(lead.ID, in)
	}
	return m, nil
}

func (m Model) startTaskForm() (tea.Model, tea.Cmd) {
	m.formInputs = []textinput.Model{newTextInput("follow-up title", 120), newTextInput("due: YYYY-MM-DD HH:MM, +2h, +1d, tomorrow", 40)}
	m.formErr = ""
	m.mode = modeTaskForm
	return m, m.focusFormField(0)
}

func (m Model) startLeadForm() (tea.Model, tea.Cmd) {
	m.formInputs = []textinput.Model{newTextInput("name", 120), newTextInput("phone", 40), newTextInput("email (optional)", 120)}
	m.formChoice = 0
	m.formErr = ""
	m.mode = modeLeadForm
	return m, m.focusFormField(0)
}

// handleFormKey drives the task and lead forms. The lead form has a source choice after its inputs.
func (m Model) handleFormKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	fields := len(m.formInputs)
	if m.mode == modeLeadForm {
		fields++
	}
	switch msg.String() {
	case "esc":
		if m.mode == modeTaskForm {
			m.mode = modeDetail
		} else {
			m.mode = modeNone
		}
		m.formErr = ""
		return m, nil
	case "tab", "down":
		return m, m.focusFormField((m.formFocus + 1) % fields)
	case "shift+tab", "up":
		return m, m.focusFormField((m.formFocus + fields - 1) % fields)
	case "enter":
		if m.mode == modeTaskForm {
			return m.submitTaskForm()
		}
		return m.submitLeadForm()
	}
	if m.mode == modeLeadForm && m.formFocus == len(m.formInputs) {
		sources := domain.SourceTypes()
		switch msg.String() {
		case "left", "h":
			m.formChoice = (m.formChoice + len(sources) - 1) % len(sources)
		case "right", "l", " ", "space":
			m.formChoice = (m.formChoice + 1) % len(sources)
		}
		return m, nil
	}
	return m, m.updateFocusedInput(msg)
}

func (m Model) submitTaskForm() (tea.Model, tea.Cmd) {
	title := strings.TrimSpace(m.formInputs[0].Value())
	if title == "" {
		m.formErr = "title is required"
		return m, nil
	}
	due, err := parseWhen(m.formInputs[1].Value(), m.now(), m.loc)
	if err != nil {
		m.formErr = err.Error()
		return m, nil
	}
	m.formErr = ""
	m.mode = modeDetail
	return m, m.createTaskCmd(m.detailLeadID, app.CreateTaskInput{Title: title, DueAt: due})
}

func (m Model) submitLeadForm() (tea.Model, tea.Cmd) {
	name := strings.TrimSpace(m.formInputs[0].Value())
	phone := strings.TrimSpace(m.formInputs[1].Value())
	switch {
	case name == "":
		m.formErr = "name is required"
		return m, nil
	case phone == "":
		m.formErr = "phone is required"
		return m, nil
	}
	sources := domain.SourceTypes()
	in := app.CreateLeadInput{
		SourceType:  sources[clamp(m.formChoice, 0, len(sources)-1)],
		PrimaryName: name,
		Phone:       phone,
		Email:       strings.TrimSpace(m.formInputs[2].Value()),
	}
	m.formErr = ""
	m.status = "saving lead..."
	svc := m.svc
	return m, func() tea.Msg {
		lead, err := svc.CreateLead(context.Background(), in)
		if err != nil {
			return actionMsg{op: "create lead", err: err}
		}
		return actionMsg{op: "create lead", status: "created " + lead.PrimaryName, lead: &lead, reload: true}
	}
}

// focusFormField focuses input idx; an index past the inputs focuses the choice field.
// Index 0 in the next-action form is the type choice, so inputs shift by one there.
func (m *Model) focusFormField(idx int) tea.Cmd {
	m.formFocus = idx
	inputIdx := idx
	if m.mode == modeNextAction {
		inputIdx = idx - 1
	}
	var cmd tea.Cmd
	for i := range m.formInputs {
		if i == inputIdx {
			cmd = m.formInputs[i].Focus()
			continue
		}
		m.formInputs[i].Blur()
	}
	return cmd
}

func (m *Model) updateFocusedInput(msg tea.Msg) tea.Cmd {
	idx := m.formFocus
	if m.mode == modeNextAction {
		idx--
	}
	if idx < 0 || idx >= len(m.formInputs) {
		return nil
	}
	var cmd tea.Cmd
	m.formInputs[idx], cmd = m.formInputs[idx].Update(msg)
	return cmd
}

func (m Model) updateLeadCmd(op string, in app.UpdateLeadInput) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		lead, err := svc.UpdateLead(context.Background(), in)
		if err != nil {
			return actionMsg{op: op, err: err}
		}
		return actionMsg{op: op, status: op + " updated", lead: &lead, activities: true}
	}
}

func (m Model) createTaskCmd(leadID string, in app.CreateTaskInput) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		task, err := svc.CreateTask(context.Background(), leadID, in)
		if err != nil {
			return actionMsg{op: "create follow-up", err: err}
		}
		return actionMsg{op: "create follow-up", status: "follow-up added", task: &task, activities: true}
	}
}

func (m Model) updateTaskCmd(taskID string, status domain.TaskStatus) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		task, err := svc.UpdateTask(context.Background(), taskID, status)
		if err != nil {
			return actionMsg{op: "update task", err: err}
		}
		return actionMsg{op: "update task", status: "task " + strings.ToLower(string(task.Status)), task: &task, activities: true}
	}
}

func (m Model) createActivityCmd(leadID string, in app.CreateActivityInput) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		if _, err := svc.CreateActivity(context.Background(), leadID, in); err != nil {
			return actionMsg{op: "record " + string(in.Type), err: err}
		}
		return actionMsg{op: "record " + string(in.Type), status: string(in.Type) + " recorded", activities: true}
	}
}

func (m Model) handleActionResult(msg actionMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if msg.op == "create lead" && m.mode == modeLeadForm {
			m.formErr = msg.err.Error()
		} else {
			m.banner = msg.op + " failed: " + msg.err.Error()
		}
		m.status = msg.op + " failed"
		m.logError(msg.op+" failed", msg.err)
		return m, nil
	}
	if msg.lead != nil {
		if _, ok := m.leadByID(msg.lead.ID); ok {
			m.leads = board.Replace(m.leads, *msg.lead)
		} else {
			m.leads = append(m.leads[:len(m.leads):len(m.leads)], *msg.lead)
		}
	}
	if msg.task != nil {
		m.upsertTask(*msg.task)
	}
	if msg.status != "" {
		m.status = msg.status
	}
	if msg.op == "create lead" && msg.lead != nil {
		m.mode = modeNone
		m.focusLead(msg.lead.ID)
		m.ensureColumnVisible()
	} else if msg.lead != nil && m.selectedLeadID() != msg.lead.ID {
		m.focusLead(msg.lead.ID)
	}
	var cmds []tea.Cmd
	if msg.activities && m.detailLeadID != "" {
		cmds = append(cmds, m.activitiesCmd(m.detailLeadID))
	}
	if msg.reload {
		cmds = append(cmds, m.reload())
	}
	return m, tea.Batch(cmds...)
}

// splitTags splits a comma- or space-separated tag list. Normalization happens in the domain.
func splitTags(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

var errInvalidWhen = errors.New("use YYYY-MM-DD [HH:MM], +2h, +3d, or tomorrow")

// parseWhen reads an optional schedule. Dates without a time default to 09:00 local.
func parseWhen(raw string, now time.Time, loc *time.Location) (*time.Time, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	at := func(t time.Time) (*time.Time, error) {
		t = t.UTC()
		return &t, nil
	}
	switch raw {
	case "today":
		return at(time.Date(local.Year(), local.Month(), local.Day(), 17, 0, 0, 0, loc))
	case "tomorrow":
		return at(time.Date(local.Year(), local.Month(), local.Day()+1, 9, 0, 0, 0, loc))
	}
	if strings.HasPrefix(raw, "+") && len(raw) > 2 {
		n, err := strconv.Atoi(raw[1 : len(raw)-1])
		if err != nil || n < 0 {
			return nil, errInvalidWhen
		}
		switch raw[len(raw)-1] {
		case 'm':
			return at(now.Add(time.Duration(n) * time.Minute))
		case 'h':
			return at(now.Add(time.Duration(n) * time.Hour))
		case 'd':
			return at(now.AddDate(0, 0, n))
		}
		return nil, errInvalidWhen
	}
	if t, err := time.Parse(time.RFC3339, strings.ToUpper(raw)); err == nil {
		return at(t)
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02t15:04"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return at(t)
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return at(t.Add(9 * time.Hour))
	}
	return nil, errInvalidWhen
}

// renderModeOverlay renders the active overlay, or "" on the plain board.
func (m Model) renderModeOverlay(now time.Time) string {
	width := clamp(m.width-8, 30, 86)
	switch m.mode {
	case modeDetail:
		return m.renderDetail(width, now)
	case modePicker:
		return m.renderPicker()
	case modeNextAction:
		return m.renderNextAction(width)
	case modeTextInput:
		return m.renderTextInput(width)
	case modeTaskForm:
		return m.renderForm("New follow-up", []string{"Title", "Due"}, "", width)
	case modeLeadForm:
		sources := domain.SourceTypes()
		return m.renderForm("New lead", []string{"Name", "Phone", "Email"}, string(sources[clamp(m.formChoice, 0, len(sources)-1)]), width)
	case modeAnalytics:
		return m.renderAnalytics(width)
	}
	return ""
}

func (m Model) renderDetail(width int, now time.Time) string {
	lead, ok := m.leadByID(m.detailLeadID)
	if !ok {
		return ""
	}
	inner := width - 4
	bold := lipgloss.NewStyle().Bold(true).Foreground(colorText)
	muted := lipgloss.NewStyle().Foreground(colorMuted)
	section := lipgloss.NewStyle().Bold(true).Foreground(colorAccent)

	lines := []string{bold.Render(lead.PrimaryName) + " " + m.cardBadges(lead, now)}
	lines = append(lines,
		muted.Render(fmt.Sprintf("%s · %s · P%d · owner %s", lead.Stage.Label(), strings.ToLower(string(lead.Status)), lead.Priority, m.agentName(lead.OwnerID))),
		muted.Render(fmt.Sprintf("%s · %s · %s", lead.Phone, orDash(lead.Email), strings.ToLower(string(lead.SourceType)))),
	)
	if len(lead.Tags) > 0 {
		lines = append(lines, muted.Render("#"+strings.Join(lead.Tags, " #")))
	}
	var flags []string
	if domain.IsHot(lead) {
		flags = append(flags, "hot lead")
	}
	if domain.HasOverdueFollowUp(lead.ID, m.tasks, now) {
		flags = append(flags, "follow-up overdue")
	}
	if domain.StageSLAExceeded(lead, m.settings.SLAHoursByStage, now) {
		flags = append(flags, fmt.Sprintf("over %dh in stage", m.settings.SLAHoursByStage[lead.Stage]))
	}
	if len(flags) > 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(colorOverdue).Render(strings.Join(flags, " · ")))
	}

	lines = append(lines, "", section.Render("Follow-ups"))
	tasks := m.tasksForLead(lead.ID)
	if len(tasks) == 0 {
		lines = append(lines, muted.Render("none · f to add"))
	}
	for i, task := range tasks {
		cursor := "  "
		if i == m.detailTask {
			cursor = "▸ "
		}
		box := "[ ]"
		if task.Status == domain.TaskStatusDone {
			box = "[x]"
		} else if task.Status == domain.TaskStatusCancelled {
			box = "[-]"
		}
		line := fmt.Sprintf("%s%s %s", cursor, box, task.Title)
		if task.DueAt != nil {
			line += " · due " + task.DueAt.In(m.loc).Format("Mon 02 Jan 15:04")
		}
		style := lipgloss.NewStyle()
		if task.IsOverdue(now) {
			style = style.Foreground(colorOverdue)
			line += " (overdue)"
		}
		lines = append(lines, style.Render(truncate(line, inner)))
	}

	lines = append(lines, "", section.Render("Timeline"))
	switch {
	case m.activitiesFor != lead.ID:
		lines = append(lines, muted.Render("loading..."))
	case len(m.activities) == 0:
		lines = append(lines, muted.Render("no activity yet"))
	}
	if m.activitiesFor == lead.ID {
		for _, activity := range m.activities {
			stamp := activity.OccurredAt.In(m.loc).Format("02 Jan 15:04")
			who := ""
			if activity.ActorID != "" {
				who = " · " + m.agentName(activity.ActorID)
			}
			lines = append(lines, truncate(fmt.Sprintf("%s · %s%s", stamp, activity.Title, who), inner))
			if body := strings.TrimSpace(activity.Body); body != "" && activity.Type.IsUserAuthored() {
				lines = append(lines, strings.Split(m.markdown.render(body, inner-2), "\n")...)
			} else if body != "" {
				lines = append(lines, muted.Render("  "+truncate(body, inner-2)))
			}
		}
	}

	helpModel := m.help
	helpModel.SetWidth(inner)
	maxBody := max(6, m.height-6)
	body := fitLines(strings.Join(lines, "\n"), min(len(lines), maxBody))
	return modalStyle().Width(width).Render(body + "\n\n" + helpModel.ShortHelpView(m.keys.detailHelp()))
}

func (m Model) renderPicker() string {
	lines := []string{lipgloss.NewStyle().Bold(true).Render(m.picker.title), ""}
	for i, item := range m.picker.items {
		if i == m.picker.index {
			lines = append(lines, lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Render("▸ "+item.label))
			continue
		}
		lines = append(lines, "  "+item.label)
	}
	lines = append(lines, "", lipgloss.NewStyle().Foreground(colorMuted).Render("j/k choose · enter select · esc back"))
	return modalStyle().Render(strings.Join(lines, "\n"))
}

func (m Model) renderNextAction(width int) string {
	if m.pending == nil {
		return ""
	}
	title := fmt.Sprintf("%s → %s", m.pending.From.Label(), m.pending.To.Label())
	if lead, ok := m.leadByID(m.pending.LeadID); ok {
		title = lead.PrimaryName + ": " + title
	}
	typeLabel := "(choose with ←/→)"
	if types := domain.NextActionTypes(); m.actionType >= 0 && m.actionType < len(types) {
		typeLabel = "‹ " + types[m.actionType].Label() + " ›"
	}
	label := func(idx int, text string) string {
		style := lipgloss.NewStyle().Foreground(colorMuted)
		if m.formFocus == idx {
			style = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
		}
		return style.Render(fmt.Sprintf("%-9s", text))
	}
	lines := []string{
		lipgloss.NewStyle().Bold(true).Render(truncate(title, width-4)),
		lipgloss.NewStyle().Foreground(colorMuted).Render("next action is required before the stage changes"),
		"",
		label(0, "Action") + " " + typeLabel,
		label(1, "When") + " " + m.formInputs[0].View(),
		label(2, "Notes") + " " + m.formInputs[1].View(),
	}
	lines = append(lines, m.formFooter("tab next field · enter commit · esc cancel")...)
	return modalStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) renderTextInput(width int) string {
	titles := map[textPurpose]string{textTags: "Tags", textNote: "Add note", textCall: "Log call"}
	lines := []string{lipgloss.NewStyle().Bold(true).Render(titles[m.textPurpose]), "", m.textInput.View()}
	lines = append(lines, m.formFooter("enter save · esc cancel")...)
	return modalStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) renderForm(title string, labels []string, choice string, width int) string {
	lines := []string{lipgloss.NewStyle().Bold(true).Render(title), ""}
	for i, in := range m.formInputs {
		style := lipgloss.NewStyle().Foreground(colorMuted)
		if m.formFocus == i {
			style = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
		}
		lines = append(lines, style.Render(fmt.Sprintf("%-7s", labels[i]))+" "+in.View())
	}
	if choice != "" {
		style := lipgloss.NewStyle().Foreground(colorMuted)
		if m.formFocus == len(m.formInputs) {
			style = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
		}
		lines = append(lines, style.Render(fmt.Sprintf("%-7s", "Source"))+" ‹ "+strings.ToLower(choice)+" ›")
	}
	lines = append(lines, m.formFooter("tab next field · enter save · esc cancel")...)
	return modalStyle().Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) formFooter(hint string) []string {
	out := []string{""}
	if m.formErr != "" {
		out = append(out, lipgloss.NewStyle().Foreground(colorError).Render(m.formErr))
	}
	return append(out, lipgloss.NewStyle().Foreground(colorMuted).Render(hint))
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
