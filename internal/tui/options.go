package tui

import (
	"time"

	"github.com/evanschultz/pitchside/internal/board"
)

// DragOptions tunes the pointer gesture in logical pixels. Terminal cells are
// converted to pixels with the cell size.
type DragOptions struct {
	ActivationThresholdPx float64
	EdgeZonePx            float64
	ScrollStepPx          float64
	FrameInterval         time.Duration
	CellWidthPx           float64
	CellHeightPx          float64
}

// DefaultDragOptions returns the stock gesture tuning.
func DefaultDragOptions() DragOptions {
	return DragOptions{
		ActivationThresholdPx: board.DefaultActivationThreshold,
		EdgeZonePx:            board.DefaultEdgeZone,
		ScrollStepPx:          board.DefaultScrollStep,
		FrameInterval:         16 * time.Millisecond,
		CellWidthPx:           8,
		CellHeightPx:          16,
	}
}

// BoardOptions controls column collapsing and the drag next-action gate.
type BoardOptions struct {
	CollapseLimit           int
	RequireNextActionOnDrag bool
}

// DefaultBoardOptions returns the stock board behavior.
func DefaultBoardOptions() BoardOptions {
	return BoardOptions{CollapseLimit: board.DefaultCollapseLimit}
}

// Logger receives failures while the UI owns the terminal. *log.Logger from charmbracelet/log satisfies it.
type Logger interface {
	Info(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

type Option func(*Model)

func WithDragOptions(opts DragOptions) Option {
	return func(m *Model) {
		def := DefaultDragOptions()
		if opts.ActivationThresholdPx <= 0 {
			opts.ActivationThresholdPx = def.ActivationThresholdPx
		}
		if opts.EdgeZonePx <= 0 {
			opts.EdgeZonePx = def.EdgeZonePx
		}
		if opts.ScrollStepPx <= 0 {
			opts.ScrollStepPx = def.ScrollStepPx
		}
		if opts.FrameInterval <= 0 {
			opts.FrameInterval = def.FrameInterval
		}
		if opts.CellWidthPx <= 0 {
			opts.CellWidthPx = def.CellWidthPx
		}
		if opts.CellHeightPx <= 0 {
			opts.CellHeightPx = def.CellHeightPx
		}
		m.drag = opts
		m.controller = board.NewController(opts.ActivationThresholdPx)
		m.scroller = board.NewAutoScroller(opts.EdgeZonePx, opts.ScrollStepPx)
	}
}

func WithBoardOptions(opts BoardOptions) Option {
	return func(m *Model) {
		if opts.CollapseLimit <= 0 {
			opts.CollapseLimit = board.DefaultCollapseLimit
		}
		m.boardOpts = opts
	}
}

func WithKeyConfig(cfg KeyConfig) Option {
	return func(m *Model) {
		m.keys.applyConfig(cfg)
	}
}

func WithLogger(logger Logger) Option {
	return func(m *Model) {
		m.logger = logger
	}
}

// WithClock sets the clock urgency flags and optimistic moves are evaluated against.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLocation sets the zone used to parse and display schedule times.
func WithLocation(loc *time.Location) Option {
	return func(m *Model) {
		if loc != nil {
			m.loc = loc
		}
	}
}

func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}

func WithIdentity(displayName string) Option {
	return func(m *Model) {
		m.identity = displayName
	}
}
