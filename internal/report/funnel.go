// Package report renders the pipeline funnel and activity counters as a standalone HTML page.
package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/evanschultz/pitchside/internal/app"
	"github.com/evanschultz/pitchside/internal/domain"
)

const defaultChartHeight = "420px"

// Source is the analytics surface a report reads from.
type Source interface {
	Analytics(context.Context) (app.PipelineAnalytics, error)
	AgentAnalytics(context.Context, string) (app.AgentAnalytics, error)
	ListUsers(context.Context) ([]domain.Agent, error)
}

// AgentRow pairs per-agent analytics with a display name.
type AgentRow struct {
	Name  string
	Stats app.AgentAnalytics
}

// Report is the data behind one rendered page.
type Report struct {
	Title       string
	GeneratedAt time.Time
	Pipeline    app.PipelineAnalytics
	Agents      []AgentRow
}

// Options tune chart rendering.
type Options struct {
	Theme      string
	AssetsHost string
}

// Load reads pipeline analytics. A non-empty ownerID scopes the pipeline to that agent and skips the agent table.
func Load(ctx context.Context, src Source, ownerID string, now time.Time) (Report, error) {
	ownerID = strings.TrimSpace(ownerID)
	out := Report{Title: "Pipeline funnel", GeneratedAt: now}
	if ownerID != "" {
		stats, err := src.AgentAnalytics(ctx, ownerID)
		if err != nil {
			return Report{}, fmt.Errorf("load agent analytics: %w", err)
		}
		out.Title = "Pipeline funnel: " + ownerID
		out.Pipeline = stats.PipelineAnalytics
		return out, nil
	}

	stats, err := src.Analytics(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load analytics: %w", err)
	}
	out.Pipeline = stats
	agents, err := src.ListUsers(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list users: %w", err)
	}
	for _, agent := range agents {
		agentStats, err := src.AgentAnalytics(ctx, agent.ID)
		if err != nil {
			return Report{}, fmt.Errorf("load agent %s analytics: %w", agent.ID, err)
		}
		out.Agents = append(out.Agents, AgentRow{Name: agent.Name, Stats: agentStats})
	}
	return out, nil
}

// Build assembles the chart page for r.
func Build(r Report, o Options) *components.Page {
	page := components.NewPage()
	page.PageTitle = r.Title
	page.SetLayout(components.PageFlexLayout)
	if o.AssetsHost != "" {
		page.AssetsHost = o.AssetsHost
	}

	subtitle := ""
	if !r.GeneratedAt.IsZero() {
		subtitle = "generated " + r.GeneratedAt.Format(time.RFC3339)
	}
	page.AddCharts(
		funnelChart(r, subtitle, o),
		countersChart(r.Pipeline, o),
	)
	if len(r.Agents) > 0 {
		page.AddCharts(agentChart(r.Agents, o))
	}
	return page
}

// Render writes the HTML page for r.
func Render(w io.Writer, r Report, o Options) error {
	if err := Build(r, o).Render(w); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// WriteFile renders r into path, creating parent directories.
func WriteFile(path string, r Report, o Options) error {
	var buf bytes.Buffer
	if err := Render(&buf, r, o); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func funnelChart(r Report, subtitle string, o Options) *charts.Funnel {
	funnel := charts.NewFunnel()
	funnel.SetGlobalOptions(globalOptions(r.Title, subtitle, o)...)
	data := make([]opts.FunnelData, 0, len(r.Pipeline.Stages))
	for _, stage := range r.Pipeline.Stages {
		data = append(data, opts.FunnelData{Name: stage.Label(), Value: r.Pipeline.OpenByStage[stage]})
	}
	funnel.AddSeries("Open leads", data)
	return funnel
}

func countersChart(stats app.PipelineAnalytics, o Options) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOptions("Activity", fmt.Sprintf("%d overdue follow-ups, %d hot leads", stats.FollowUpsOverdue, stats.HotLeadsCount), o)...)
	bar.SetXAxis([]string{"Conversions", "Touches", "Moves"})
	bar.AddSeries("Today", []opts.BarData{
		{Value: stats.ConversionsToday},
		{Value: stats.TouchesToday},
		{Value: stats.MovesToday},
	})
	bar.AddSeries("Last 7 days", []opts.BarData{
		{Value: stats.ConversionsWeek},
		{Value: stats.TouchesWeek},
		{Value: stats.MovesWeek},
	})
	return bar
}

func agentChart(rows []AgentRow, o Options) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(globalOptions("Agents", "open leads and weekly conversions", o)...)
	names := make([]string, 0, len(rows))
	open := make([]opts.BarData, 0, len(rows))
	converted := make([]opts.BarData, 0, len(rows))
	for _, row := range rows {
		names = append(names, row.Name)
		open = append(open, opts.BarData{Value: row.Stats.OpenLeads})
		converted = append(converted, opts.BarData{Value: row.Stats.ConversionsWeek})
	}
	bar.SetXAxis(names)
	bar.AddSeries("Open leads", open)
	bar.AddSeries("Conversions (7d)", converted)
	return bar
}

func globalOptions(title, subtitle string, o Options) []charts.GlobalOpts {
	theme := o.Theme
	if theme == "" {
		theme = types.ThemeWesteros
	}
	initOpts := opts.Initialization{
		Theme:  theme,
		Width:  "100%",
		Height: defaultChartHeight,
	}
	if o.AssetsHost != "" {
		initOpts.AssetsHost = o.AssetsHost
	}
	return []charts.GlobalOpts{
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithInitializationOpts(initOpts),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	}
}
