package tui

import (
	"context"
	"strconv"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/evanschultz/pitchside/internal/app"
)

type agentAnalyticsRow struct {
	name  string
	stats app.AgentAnalytics
}

// analyticsData is one analytics snapshot: the whole pipeline plus one column per agent.
type analyticsData struct {
	global app.PipelineAnalytics
	agents []agentAnalyticsRow
}

type analyticsMsg struct {
	data analyticsData
	err  error
}

func (m Model) openAnalytics() (tea.Model, tea.Cmd) {
	m.mode = modeAnalytics
	m.status = "loading analytics..."
	return m, m.analyticsCmd()
}

func (m Model) analyticsCmd() tea.Cmd {
	svc := m.svc
	agents := append(m.agents[:0:0], m.agents...)
	return func() tea.Msg {
		ctx := context.Background()
		global, err := svc.Analytics(ctx)
		if err != nil {
			return analyticsMsg{err: err}
		}
		data := analyticsData{global: global}
		for _, agent := range agents {
			stats, err := svc.AgentAnalytics(ctx, agent.ID)
			if err != nil {
				return analyticsMsg{err: err}
			}
			data.agents = append(data.agents, agentAnalyticsRow{name: agent.Name, stats: stats})
		}
		return analyticsMsg{data: data}
	}
}

func (m Model) handleAnalytics(msg analyticsMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.banner = "analytics failed: " + msg.err.Error()
		m.status = "analytics failed"
		m.logError("load analytics failed", msg.err)
		if m.mode == modeAnalytics && m.analytics == nil {
			m.mode = modeNone
		}
		return m, nil
	}
	data := msg.data
	m.analytics = &data
	m.status = "analytics updated"
	return m, nil
}

func (m Model) handleAnalyticsKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q", "a":
		m.mode = modeNone
		return m, nil
	case "r":
		m.status = "loading analytics..."
		return m, m.analyticsCmd()
	}
	return m, nil
}

func (m Model) renderAnalytics(width int) string {
	title := lipgloss.NewStyle().Bold(true).Render("Pipeline analytics")
	muted := lipgloss.NewStyle().Foreground(colorMuted)
	if m.analytics == nil {
		return modalStyle().Render(title + "\n\n" + muted.Render("loading..."))
	}
	data := m.analytics
	headers := []string{"", "Pipeline"}
	for _, row := range data.agents {
		headers = append(headers, truncate(row.name, 12))
	}
	metric := func(label string, global int, pick func(app.PipelineAnalytics) int) []string {
		out := []string{label, strconv.Itoa(global)}
		for _, row := range data.agents {
			out = append(out, strconv.Itoa(pick(row.stats.PipelineAnalytics)))
		}
		return out
	}
	rows := [][]string{
		metric("Conversions today", data.global.ConversionsToday, func(a app.PipelineAnalytics) int { return a.ConversionsToday }),
		metric("Conversions week", data.global.ConversionsWeek, func(a app.PipelineAnalytics) int { return a.ConversionsWeek }),
		metric("Touches today", data.global.TouchesToday, func(a app.PipelineAnalytics) int { return a.TouchesToday }),
		metric("Touches week", data.global.TouchesWeek, func(a app.PipelineAnalytics) int { return a.TouchesWeek }),
		metric("Moves today", data.global.MovesToday, func(a app.PipelineAnalytics) int { return a.MovesToday }),
		metric("Moves week", data.global.MovesWeek, func(a app.PipelineAnalytics) int { return a.MovesWeek }),
		metric("Overdue follow-ups", data.global.FollowUpsOverdue, func(a app.PipelineAnalytics) int { return a.FollowUpsOverdue }),
		metric("Hot leads", data.global.HotLeadsCount, func(a app.PipelineAnalytics) int { return a.HotLeadsCount }),
	}
	openTotal := 0
	for _, stage := range data.global.Stages {
		openTotal += data.global.OpenByStage[stage]
	}
	openRow := []string{"Open leads", strconv.Itoa(openTotal)}
	for _, row := range data.agents {
		openRow = append(openRow, strconv.Itoa(row.stats.OpenLeads))
	}
	rows = append(rows, openRow)
	metricRows := len(rows)
	for _, stage := range data.global.Stages {
		rows = append(rows, metric("  "+stage.Label(), data.global.OpenByStage[stage], func(a app.PipelineAnalytics) int { return a.OpenByStage[stage] }))
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorAccent)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return style.Bold(true).Foreground(colorText)
			case col == 0 && row >= metricRows:
				return style.Foreground(colorMuted)
			case col > 0:
				return style.Align(lipgloss.Right)
			}
			return style
		})

	if width > 0 {
		t = t.Width(min(width, lipgloss.Width(t.Render())))
	}
	return modalStyle().Render(strings.Join([]string{title, t.Render(), muted.Render("r refresh · esc close")}, "\n"))
}
