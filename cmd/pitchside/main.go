package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	charmLog "github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	serveradapter "github.com/evanschultz/pitchside/internal/adapters/server"
	servercommon "github.com/evanschultz/pitchside/internal/adapters/server/common"
	"github.com/evanschultz/pitchside/internal/adapters/storage/sqlite"
	"github.com/evanschultz/pitchside/internal/app"
	"github.com/evanschultz/pitchside/internal/config"
	"github.com/evanschultz/pitchside/internal/platform"
	"github.com/evanschultz/pitchside/internal/report"
	"github.com/evanschultz/pitchside/internal/tui"
)

var version = "dev"

type program interface {
	Run() (tea.Model, error)
}

var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

// serveCommandRunner starts the HTTP and MCP listeners. Tests replace it.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := newRootCommand(os.Stdout, os.Stderr)
	if err := fang.Execute(ctx, root, fang.WithVersion(version)); err != nil {
		os.Exit(1)
	}
}

// run executes one command line without fang's styled output.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if args == nil {
		args = []string{}
	}
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	root.SilenceErrors = true
	return root.ExecuteContext(ctx)
}

// rootFlags are shared by every command.
type rootFlags struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	flags := &rootFlags{}
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("PITCHSIDE_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultApp := platform.AppName
	if envApp := strings.TrimSpace(os.Getenv("PITCHSIDE_APP_NAME")); envApp != "" {
		defaultApp = envApp
	}

	root := &cobra.Command{
		Use:           "pitchside",
		Short:         "Lead pipeline board for club front desks",
		Long:          "pitchside tracks prospective members through configurable pipeline stages on a drag-and-drop terminal board.",
		Version:       version,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), flags, "tui", stderr, runTUI)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "path to config TOML")
	pf.StringVar(&flags.dbPath, "db", "", "path to sqlite database")
	pf.StringVar(&flags.appName, "app", defaultApp, "application name for config/data path resolution")
	pf.BoolVar(&flags.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newPathsCommand(flags, stdout),
		newServeCommand(flags, stderr),
		newReportCommand(flags, stdout, stderr),
		newExportCommand(flags, stdout, stderr),
		newImportCommand(flags, stderr),
	)
	return root
}

func newPathsCommand(flags *rootFlags, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data, and database paths",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			paths, err := resolvePaths(flags)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "app: %s\n", flags.appName)
			_, _ = fmt.Fprintf(stdout, "dev_mode: %t\n", flags.devMode)
			_, _ = fmt.Fprintf(stdout, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(stdout, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(stdout, "log_dir: %s\n", paths.LogDir)
			return nil
		},
	}
}

func newServeCommand(flags *rootFlags, stderr io.Writer) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP tools over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), flags, "serve", stderr, func(ctx context.Context, rt *runtime) error {
				cfg := serveradapter.Config{
					HTTPBind:      rt.cfg.Server.HTTPBind,
					APIEndpoint:   rt.cfg.Server.APIEndpoint,
					MCPEndpoint:   rt.cfg.Server.MCPEndpoint,
					ServerName:    platform.AppName,
					ServerVersion: version,
				}
				if strings.TrimSpace(bind) != "" {
					cfg.HTTPBind = bind
				}
				return serveCommandRunner(ctx, cfg, serveradapter.Dependencies{
					Pipeline: servercommon.NewAppServiceAdapter(rt.svc),
					Ready:    rt.repo.Ping,
					Logger:   rt.logger,
					OnListen: func(addr string) {
						rt.logger.Info("serve listening", "addr", addr, "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)
					},
				})
			})
		},
	}
	cmd.Flags().StringVar(&bind, "http", "", "listen address, overriding server.http_bind")
	return cmd
}

func newReportCommand(flags *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	var (
		outPath string
		ownerID string
		theme   string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the pipeline funnel as a standalone HTML page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), flags, "report", stderr, func(ctx context.Context, rt *runtime) error {
				r, err := report.Load(ctx, rt.svc, ownerID, rt.svc.Now())
				if err != nil {
					return err
				}
				opts := report.Options{Theme: theme}
				if outPath == "-" {
					return report.Render(stdout, r, opts)
				}
				if err := report.WriteFile(outPath, r, opts); err != nil {
					return err
				}
				rt.logger.Info("report written", "path", outPath, "owner", ownerID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "funnel.html", "output HTML path ('-' for stdout)")
	cmd.Flags().StringVar(&ownerID, "owner", "", "restrict the funnel to one agent id")
	cmd.Flags().StringVar(&theme, "theme", "", "echarts theme name")
	return cmd
}

func newExportCommand(flags *rootFlags, stdout, stderr io.Writer) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export leads, tasks, activities, and settings as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd.Context(), flags, "export", stderr, func(ctx context.Context, rt *runtime) error {
				return runExport(ctx, rt.svc, outPath, stdout)
			})
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

func newImportCommand(flags *rootFlags, stderr io.Writer) *cobra.Command {
	var inPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a JSON snapshot, upserting by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(inPath) == "" {
				return errors.New("--in is required")
			}
			return withRuntime(cmd.Context(), flags, "import", stderr, func(ctx context.Context, rt *runtime) error {
				return runImport(ctx, rt.svc, inPath)
			})
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "input snapshot JSON file")
	return cmd
}

// runtime is the opened storage, service, and logger for one command.
type runtime struct {
	cfg    config.Config
	paths  platform.Paths
	logger *runtimeLogger
	repo   *sqlite.Repository
	svc    *app.Service
	loc    *time.Location
}

func resolvePaths(flags *rootFlags) (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{AppName: flags.appName, DevMode: flags.devMode})
}

// withRuntime resolves config, opens storage, seeds settings and agents, then runs fn.
func withRuntime(ctx context.Context, flags *rootFlags, command string, stderr io.Writer, fn func(context.Context, *runtime) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	paths, err := resolvePaths(flags)
	if err != nil {
		return err
	}

	configPath := strings.TrimSpace(flags.configPath)
	if configPath == "" {
		configPath = paths.ConfigPath
		if envPath := strings.TrimSpace(os.Getenv("PITCHSIDE_CONFIG")); envPath != "" {
			configPath = envPath
		}
	}
	dbPath := strings.TrimSpace(flags.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		dbPath = paths.DBPath
		if envPath := strings.TrimSpace(os.Getenv("PITCHSIDE_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	logger, err := newRuntimeLogger(stderr, flags.appName, flags.devMode, cfg.Logging, paths.DataDir, time.Now)
	if err != nil {
		return fmt.Errorf("configure runtime logger: %w", err)
	}
	if command == "tui" {
		// The board owns the terminal; runtime events go to the dev file only.
		logger.SetConsoleEnabled(false)
	}
	defer func() {
		if closeErr := logger.Close(); closeErr != nil && logger.shouldLogToSink(logger.consoleSink) {
			_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", closeErr)
		}
	}()

	logger.Info("startup configuration resolved", "app", flags.appName, "dev_mode", flags.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		return fmt.Errorf("open sqlite repository: %w", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Warn("sqlite close failed", "db_path", cfg.Database.Path, "err", closeErr)
		}
	}()
	logger.Info("sqlite repository ready", "db_path", cfg.Database.Path)

	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		Settings:     cfg.Settings(),
		DefaultActor: cfg.Identity.ActorID,
		Location:     loc,
	})
	if _, err := svc.EnsureSettings(ctx); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	if err := svc.EnsureAgents(ctx, cfg.SeedAgents()); err != nil {
		return fmt.Errorf("seed agents: %w", err)
	}

	rt := &runtime{cfg: cfg, paths: paths, logger: logger, repo: repo, svc: svc, loc: loc}
	logger.Info("command flow start", "command", command)
	if err := fn(ctx, rt); err != nil {
		logger.Error("command flow failed", "command", command, "err", err)
		return fmt.Errorf("run %s command: %w", command, err)
	}
	logger.Info("command flow complete", "command", command)
	return nil
}

func runTUI(_ context.Context, rt *runtime) error {
	cfg := rt.cfg
	m := tui.NewModel(
		rt.svc,
		tui.WithDragOptions(tui.DragOptions{
			ActivationThresholdPx: cfg.Drag.ActivationThresholdPx,
			EdgeZonePx:            cfg.Drag.EdgeZonePx,
			ScrollStepPx:          cfg.Drag.ScrollStepPx,
			FrameInterval:         cfg.Drag.FrameInterval(),
			CellWidthPx:           cfg.Drag.CellWidthPx,
			CellHeightPx:          cfg.Drag.CellHeightPx,
		}),
		tui.WithBoardOptions(tui.BoardOptions{
			CollapseLimit:           cfg.Board.CollapseLimit,
			RequireNextActionOnDrag: cfg.Board.RequireNextActionOnDrag,
		}),
		tui.WithKeyConfig(toTUIKeyConfig(cfg.Keys)),
		tui.WithClock(rt.svc.Now),
		tui.WithLocation(rt.loc),
		tui.WithIdentity(cfg.Identity.DisplayName),
		tui.WithLogger(rt.logger),
	)
	rt.logger.Info("starting tui program loop")
	if _, err := programFactory(m).Run(); err != nil {
		return fmt.Errorf("run tui program: %w", err)
	}
	return nil
}

func toTUIKeyConfig(keys config.KeysConfig) tui.KeyConfig {
	return tui.KeyConfig{
		Analytics:      keys.Analytics,
		Expand:         keys.Expand,
		MoveStageLeft:  keys.MoveStageLeft,
		MoveStageRight: keys.MoveStageRight,
		NewLead:        keys.NewLead,
		Copy:           keys.Copy,
	}
}

func runExport(ctx context.Context, svc *app.Service, outPath string, stdout io.Writer) error {
	snap, err := svc.ExportSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	encoded, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot json: %w", err)
	}
	encoded = append(encoded, '\n')

	if outPath == "-" || outPath == "" {
		if _, err := stdout.Write(encoded); err != nil {
			return fmt.Errorf("write snapshot to stdout: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create export output dir: %w", err)
	}
	if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

func runImport(ctx context.Context, svc *app.Service, inPath string) error {
	content, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return fmt.Errorf("decode snapshot json: %w", err)
	}
	if err := svc.ImportSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("import snapshot: %w", err)
	}
	return nil
}

func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// runtimeLogger fans events to a styled console sink and, in dev mode, a logfmt file sink.
type runtimeLogger struct {
	sinks          []*charmLog.Logger
	consoleSink    *charmLog.Logger
	consoleEnabled bool
	closeFile      func() error
	devLog         string
}

func newRuntimeLogger(stderr io.Writer, appName string, devMode bool, cfg config.LoggingConfig, dataDir string, now func() time.Time) (*runtimeLogger, error) {
	level, err := charmLog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse logging level %q: %w", cfg.Level, err)
	}
	if now == nil {
		now = time.Now
	}
	if stderr == nil {
		stderr = io.Discard
	}

	console := charmLog.NewWithOptions(stderr, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.TextFormatter,
	})
	logger := &runtimeLogger{
		sinks:          []*charmLog.Logger{console},
		consoleSink:    console,
		consoleEnabled: true,
	}
	if !devMode || !cfg.DevFile.Enabled {
		return logger, nil
	}

	path := devLogFilePath(cfg.DevFile.Dir, dataDir, appName, now().UTC())
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dev log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open dev log file: %w", err)
	}
	logger.sinks = append(logger.sinks, charmLog.NewWithOptions(file, charmLog.Options{
		Level:           level,
		Prefix:          appName,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Formatter:       charmLog.LogfmtFormatter,
	}))
	logger.closeFile = file.Close
	logger.devLog = path
	return logger, nil
}

func (l *runtimeLogger) DevLogPath() string {
	if l == nil {
		return ""
	}
	return l.devLog
}

func (l *runtimeLogger) Close() error {
	if l == nil || l.closeFile == nil {
		return nil
	}
	return l.closeFile()
}

// SetConsoleEnabled mutes or restores the console sink.
func (l *runtimeLogger) SetConsoleEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.consoleEnabled = enabled
}

func (l *runtimeLogger) shouldLogToSink(sink *charmLog.Logger) bool {
	if l == nil || sink == nil {
		return false
	}
	return sink != l.consoleSink || l.consoleEnabled
}

func (l *runtimeLogger) each(fn func(*charmLog.Logger)) {
	if l == nil {
		return
	}
	for _, sink := range l.sinks {
		if l.shouldLogToSink(sink) {
			fn(sink)
		}
	}
}

func (l *runtimeLogger) Debug(msg any, keyvals ...any) {
	l.each(func(s *charmLog.Logger) { s.Debug(msg, keyvals...) })
}

func (l *runtimeLogger) Info(msg any, keyvals ...any) {
	l.each(func(s *charmLog.Logger) { s.Info(msg, keyvals...) })
}

func (l *runtimeLogger) Warn(msg any, keyvals ...any) {
	l.each(func(s *charmLog.Logger) { s.Warn(msg, keyvals...) })
}

func (l *runtimeLogger) Error(msg any, keyvals ...any) {
	l.each(func(s *charmLog.Logger) { s.Error(msg, keyvals...) })
}

// devLogFilePath places one log file per day. Relative dirs resolve under the data dir.
func devLogFilePath(dir, dataDir, appName string, now time.Time) string {
	base := strings.TrimSpace(dir)
	if base == "" {
		base = "log"
	}
	if !filepath.IsAbs(base) {
		base = filepath.Join(dataDir, base)
	}
	return filepath.Join(filepath.Clean(base), fmt.Sprintf("%s-%s.log", sanitizeLogFileStem(appName), now.Format("20060102")))
}

func sanitizeLogFileStem(appName string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "-")
	stem := strings.Trim(replacer.Replace(strings.TrimSpace(appName)), "-")
	if stem == "" {
		return platform.AppName
	}
	return stem
}
