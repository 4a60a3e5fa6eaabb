package board

import (
	"math"

	"github.com/evanschultz/pitchside/internal/domain"
)

// DefaultActivationThreshold is the pointer travel in logical pixels that turns a press into a drag.
const DefaultActivationThreshold = 5

// Phase is the drag lifecycle state.
type Phase int

// PhaseIdle and related constants define the drag lifecycle.
const (
	PhaseIdle Phase = iota
	PhaseDragging
	PhaseResolving
)

func (p Phase) String() string {
	switch p {
	case PhaseDragging:
		return "dragging"
	case PhaseResolving:
		return "resolving"
	default:
		return "idle"
	}
}

// OutcomeKind describes how a gesture ended.
type OutcomeKind int

// OutcomeNone and related constants classify gesture results.
const (
	OutcomeNone OutcomeKind = iota
	OutcomeClick
	OutcomeDiscard
	OutcomeMove
)

// Outcome is the result of releasing the pointer.
type Outcome struct {
	Kind   OutcomeKind
	LeadID string
	From   domain.StageID
	To     domain.StageID
}

// Resolver picks the drop target at release time.
type Resolver func(pointer Point) (domain.StageID, bool)

// Controller is the drag gesture state machine. The zero value is not ready; use NewController.
//
// A press arms the controller without leaving Idle. Pointer travel past the threshold enters
// Dragging. Release passes through Resolving and always returns to Idle.
type Controller struct {
	threshold float64
	phase     Phase

	armed     bool
	leadID    string
	fromStage domain.StageID
	origin    Point
	grab      Point
	pointer   Point
}

// NewController returns an idle controller. Non-positive thresholds use the default.
func NewController(threshold float64) Controller {
	if threshold <= 0 {
		threshold = DefaultActivationThreshold
	}
	return Controller{threshold: threshold}
}

// Phase returns the current lifecycle state.
func (c *Controller) Phase() Phase { return c.phase }

// Dragging reports whether a drag is active.
func (c *Controller) Dragging() bool { return c.phase == PhaseDragging }

// Armed reports whether a press is waiting to become a click or drag.
func (c *Controller) Armed() bool { return c.armed && c.phase == PhaseIdle }

// LeadID returns the pressed or dragged lead.
func (c *Controller) LeadID() string { return c.leadID }

// FromStage returns the stage the gesture started in.
func (c *Controller) FromStage() domain.StageID { return c.fromStage }

// Pointer returns the last raw pointer position.
func (c *Controller) Pointer() Point { return c.pointer }

// GrabOffset returns the pointer position relative to the card's top-left at press time.
func (c *Controller) GrabOffset() Point { return c.grab }

// Press arms a gesture on a card. cardOrigin is the card's top-left corner.
func (c *Controller) Press(leadID string, stage domain.StageID, p, cardOrigin Point) {
	if c.phase != PhaseIdle {
		return
	}
	c.armed = true
	c.leadID = leadID
	c.fromStage = stage
	c.origin = p
	c.pointer = p
	c.grab = p.Sub(cardOrigin)
}

// Track records the raw pointer position. It returns true when this movement started the drag.
func (c *Controller) Track(p Point) bool {
	c.pointer = p
	if !c.armed || c.phase != PhaseIdle {
		return false
	}
	d := p.Sub(c.origin)
	if math.Hypot(d.X, d.Y) <= c.threshold {
		return false
	}
	c.phase = PhaseDragging
	return true
}

// Release ends the gesture. An armed press that never crossed the threshold is a click.
// A drag consults resolve once and emits a move only for a different stage.
func (c *Controller) Release(p Point, resolve Resolver) Outcome {
	c.pointer = p
	defer c.reset()
	switch {
	case c.phase == PhaseDragging:
		c.phase = PhaseResolving
		out := Outcome{Kind: OutcomeDiscard, LeadID: c.leadID, From: c.fromStage}
		if resolve == nil {
			return out
		}
		target, ok := resolve(p)
		if !ok || target == c.fromStage {
			return out
		}
		out.Kind = OutcomeMove
		out.To = target
		return out
	case c.armed:
		return Outcome{Kind: OutcomeClick, LeadID: c.leadID, From: c.fromStage}
	default:
		return Outcome{}
	}
}

// Cancel abandons any gesture without a mutation. It returns true if a drag was active.
func (c *Controller) Cancel() bool {
	wasDragging := c.phase == PhaseDragging
	c.reset()
	return wasDragging
}

func (c *Controller) reset() {
	c.phase = PhaseIdle
	c.armed = false
	c.leadID = ""
	c.fromStage = ""
	c.origin = Point{}
	c.grab = Point{}
}
