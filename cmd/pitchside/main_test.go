package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/google/uuid"

	serveradapter "github.com/evanschultz/pitchside/internal/adapters/server"
	"github.com/evanschultz/pitchside/internal/adapters/storage/sqlite"
	"github.com/evanschultz/pitchside/internal/app"
	"github.com/evanschultz/pitchside/internal/config"
	"github.com/evanschultz/pitchside/internal/domain"
	"github.com/evanschultz/pitchside/internal/tui"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("PITCHSIDE_DEV_MODE", "false")
	_ = os.Unsetenv("PITCHSIDE_DB_PATH")
	// Keep a developer's real config out of CLI tests.
	dir, err := os.MkdirTemp("", "pitchside-cli")
	if err != nil {
		panic(err)
	}
	_ = os.Setenv("PITCHSIDE_CONFIG", filepath.Join(dir, "missing.toml"))
	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

type fakeProgram struct {
	runErr error
}

func (f fakeProgram) Run() (tea.Model, error) {
	return nil, f.runErr
}

// scriptedProgram hands the constructed model to a test hook instead of a terminal.
type scriptedProgram struct {
	model tea.Model
	runFn func(tea.Model) (tea.Model, error)
}

func (p scriptedProgram) Run() (tea.Model, error) {
	if p.runFn == nil {
		return p.model, nil
	}
	return p.runFn(p.model)
}

func stubProgram(t *testing.T, p func(tea.Model) program) {
	t.Helper()
	orig := programFactory
	t.Cleanup(func() { programFactory = orig })
	programFactory = p
}

// seedLead writes one lead straight through the service so CLI commands have data to read.
func seedLead(t *testing.T, dbPath, name string) domain.Lead {
	t.Helper()
	repo, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("sqlite.Open() error = %v", err)
	}
	defer func() { _ = repo.Close() }()
	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{Settings: config.Default(dbPath).Settings()})
	if _, err := svc.EnsureSettings(context.Background()); err != nil {
		t.Fatalf("EnsureSettings() error = %v", err)
	}
	lead, err := svc.CreateLead(context.Background(), app.CreateLeadInput{
		SourceType:  domain.SourceWebsite,
		PrimaryName: name,
		Phone:       "555-0100",
	})
	if err != nil {
		t.Fatalf("CreateLead() error = %v", err)
	}
	return lead
}

func TestRunVersion(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--version"}, &out, io.Discard); err != nil {
		t.Fatalf("run(version) error = %v", err)
	}
	if !strings.Contains(out.String(), "pitchside") {
		t.Fatalf("expected version output, got %q", out.String())
	}
}

func TestRunStartsProgram(t *testing.T) {
	var got tea.Model
	stubProgram(t, func(m tea.Model) program {
		got = m
		return fakeProgram{}
	})

	dbPath := filepath.Join(t.TempDir(), "pitchside.db")
	cfgPath := filepath.Join(t.TempDir(), "missing.toml")
	if err := run(context.Background(), []string{"--db", dbPath, "--config", cfgPath}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, ok := got.(tui.Model); !ok {
		t.Fatalf("expected tui.Model, got %T", got)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database file, stat error = %v", err)
	}
}

func TestRunProgramErrorIsWrapped(t *testing.T) {
	stubProgram(t, func(m tea.Model) program {
		return scriptedProgram{model: m, runFn: func(tea.Model) (tea.Model, error) {
			return nil, errors.New("terminal gone")
		}}
	})

	tmp := t.TempDir()
	args := []string{"--db", filepath.Join(tmp, "pitchside.db"), "--config", filepath.Join(tmp, "missing.toml")}
	err := run(context.Background(), args, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "terminal gone") {
		t.Fatalf("expected wrapped program error, got %v", err)
	}
	if !strings.Contains(err.Error(), "run tui command") {
		t.Fatalf("expected command context in error, got %v", err)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"bogus"}, io.Discard, io.Discard)
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestRunRejectsInvalidLogLevel(t *testing.T) {
	stubProgram(t, func(tea.Model) program { return fakeProgram{} })

	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.toml")
	if err := os.WriteFile(cfgPath, []byte("[logging]\nlevel = \"chatty\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	err := run(context.Background(), []string{"--db", filepath.Join(tmp, "p.db"), "--config", cfgPath}, io.Discard, io.Discard)
	if err == nil {
		t.Fatal("expected invalid log level error")
	}
}

func TestRunPathsCommand(t *testing.T) {
	var out strings.Builder
	if err := run(context.Background(), []string{"--app", "pitchside-test", "paths"}, &out, io.Discard); err != nil {
		t.Fatalf("run(paths) error = %v", err)
	}
	text := out.String()
	for _, want := range []string{"app: pitchside-test", "config: ", "data_dir: ", "db: ", "log_dir: "} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in paths output, got %q", want, text)
		}
	}
}

func TestRunExportImportRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	srcDB := filepath.Join(tmp, "src.db")
	seeded := seedLead(t, srcDB, "Ada Park")

	outPath := filepath.Join(tmp, "out", "snapshot.json")
	if err := run(context.Background(), []string{"--db", srcDB, "export", "--out", outPath}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(export) error = %v", err)
	}
	content, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if snap.Version != app.SnapshotVersion {
		t.Fatalf("unexpected snapshot version %q", snap.Version)
	}
	if len(snap.Leads) != 1 || snap.Leads[0].ID != seeded.ID {
		t.Fatalf("expected seeded lead in snapshot, got %#v", snap.Leads)
	}

	dstDB := filepath.Join(tmp, "dst.db")
	if err := run(context.Background(), []string{"--db", dstDB, "import", "--in", outPath}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(import) error = %v", err)
	}
	var stdout strings.Builder
	if err := run(context.Background(), []string{"--db", dstDB, "export"}, &stdout, io.Discard); err != nil {
		t.Fatalf("run(export stdout) error = %v", err)
	}
	if !strings.Contains(stdout.String(), "Ada Park") {
		t.Fatalf("expected imported lead in export, got %q", stdout.String())
	}
}

func TestRunImportRequiresInput(t *testing.T) {
	err := run(context.Background(), []string{"--db", filepath.Join(t.TempDir(), "p.db"), "import"}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "--in is required") {
		t.Fatalf("expected --in error, got %v", err)
	}
}

func TestRunImportRejectsBadJSON(t *testing.T) {
	tmp := t.TempDir()
	inPath := filepath.Join(tmp, "bad.json")
	if err := os.WriteFile(inPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	err := run(context.Background(), []string{"--db", filepath.Join(tmp, "p.db"), "import", "--in", inPath}, io.Discard, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "decode snapshot json") {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestRunReportWritesHTML(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "p.db")
	seedLead(t, dbPath, "Ada Park")

	outPath := filepath.Join(tmp, "funnel.html")
	if err := run(context.Background(), []string{"--db", dbPath, "report", "--out", outPath}, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(report) error = %v", err)
	}
	content, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "Pipeline funnel") {
		t.Fatalf("expected report title in html")
	}
}

func TestRunServeUsesConfigAndOverride(t *testing.T) {
	orig := serveCommandRunner
	t.Cleanup(func() { serveCommandRunner = orig })

	var (
		gotCfg  serveradapter.Config
		readyOK bool
	)
	serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
		gotCfg = cfg
		if deps.Pipeline == nil {
			t.Fatal("expected pipeline dependency")
		}
		readyOK = deps.Ready != nil && deps.Ready(ctx) == nil
		return nil
	}

	tmp := t.TempDir()
	cfgPath := filepath.Join(tmp, "config.toml")
	if err := os.WriteFile(cfgPath, []byte("[server]\napi_endpoint = \"/api/v2\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	args := []string{"--db", filepath.Join(tmp, "p.db"), "--config", cfgPath, "serve", "--http", "127.0.0.1:0"}
	if err := run(context.Background(), args, io.Discard, io.Discard); err != nil {
		t.Fatalf("run(serve) error = %v", err)
	}
	if gotCfg.HTTPBind != "127.0.0.1:0" {
		t.Fatalf("expected bind override, got %q", gotCfg.HTTPBind)
	}
	if gotCfg.APIEndpoint != "/api/v2" || gotCfg.MCPEndpoint != "/mcp" {
		t.Fatalf("unexpected endpoints %#v", gotCfg)
	}
	if gotCfg.ServerName != "pitchside" || gotCfg.ServerVersion != version {
		t.Fatalf("unexpected server identity %#v", gotCfg)
	}
	if !readyOK {
		t.Fatal("expected readiness check to pass")
	}
}

func TestRunDBPathEnvOverride(t *testing.T) {
	stubProgram(t, func(tea.Model) program { return fakeProgram{} })

	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "env.db")
	t.Setenv("PITCHSIDE_DB_PATH", dbPath)
	t.Setenv("PITCHSIDE_CONFIG", filepath.Join(tmp, "missing.toml"))
	if err := run(context.Background(), nil, io.Discard, io.Discard); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected env database file, stat error = %v", err)
	}
}

func TestRuntimeLoggerWritesDevFile(t *testing.T) {
	dataDir := t.TempDir()
	now := func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	cfg := config.LoggingConfig{Level: "debug", DevFile: config.DevFileConfig{Enabled: true, Dir: "log"}}

	var console strings.Builder
	logger, err := newRuntimeLogger(&console, "pitchside", true, cfg, dataDir, now)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	want := filepath.Join(dataDir, "log", "pitchside-20260310.log")
	if logger.DevLogPath() != want {
		t.Fatalf("DevLogPath() = %q, want %q", logger.DevLogPath(), want)
	}

	logger.SetConsoleEnabled(false)
	logger.Info("lead moved", "lead_id", "l-1")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if console.Len() != 0 {
		t.Fatalf("expected muted console, got %q", console.String())
	}
	content, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(content), "lead moved") || !strings.Contains(string(content), "lead_id=l-1") {
		t.Fatalf("expected logfmt entry, got %q", string(content))
	}
}

func TestRuntimeLoggerSkipsFileOutsideDevMode(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", DevFile: config.DevFileConfig{Enabled: true, Dir: "log"}}
	var console strings.Builder
	logger, err := newRuntimeLogger(&console, "pitchside", false, cfg, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	if logger.DevLogPath() != "" {
		t.Fatalf("expected no dev log path, got %q", logger.DevLogPath())
	}
	logger.Warn("slow ping")
	if !strings.Contains(console.String(), "slow ping") {
		t.Fatalf("expected console output, got %q", console.String())
	}
}

func TestDevLogFilePath(t *testing.T) {
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		dir     string
		dataDir string
		app     string
		want    string
	}{
		{name: "relative dir", dir: "log", dataDir: "/data", app: "pitchside", want: "/data/log/pitchside-20260102.log"},
		{name: "absolute dir", dir: "/var/log/desk", dataDir: "/data", app: "pitchside", want: "/var/log/desk/pitchside-20260102.log"},
		{name: "blank dir", dir: " ", dataDir: "/data", app: "pitchside", want: "/data/log/pitchside-20260102.log"},
		{name: "unsafe app", dir: "log", dataDir: "/data", app: " club/desk:1 ", want: "/data/log/club-desk-1-20260102.log"},
		{name: "empty app", dir: "log", dataDir: "/data", app: "", want: "/data/log/pitchside-20260102.log"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := devLogFilePath(tc.dir, tc.dataDir, tc.app, now); got != tc.want {
				t.Fatalf("devLogFilePath() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("PITCHSIDE_TEST_BOOL", "true")
	if v, ok := parseBoolEnv("PITCHSIDE_TEST_BOOL"); !ok || !v {
		t.Fatalf("parseBoolEnv(true) = %t, %t", v, ok)
	}
	t.Setenv("PITCHSIDE_TEST_BOOL", "maybe")
	if _, ok := parseBoolEnv("PITCHSIDE_TEST_BOOL"); ok {
		t.Fatal("expected invalid bool to be ignored")
	}
	t.Setenv("PITCHSIDE_TEST_BOOL", "")
	if _, ok := parseBoolEnv("PITCHSIDE_TEST_BOOL"); ok {
		t.Fatal("expected empty bool to be ignored")
	}
}
