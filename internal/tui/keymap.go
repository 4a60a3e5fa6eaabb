package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// KeyConfig overrides selected board bindings. Blank fields keep the defaults.
type KeyConfig struct {
	Analytics      string
	Expand         string
	MoveStageLeft  string
	MoveStageRight string
	NewLead        string
	Copy           string
}

// keyMap holds board and detail-panel bindings.
type keyMap struct {
	quit           key.Binding
	reload         key.Binding
	toggleHelp     key.Binding
	moveLeft       key.Binding
	moveRight      key.Binding
	moveUp         key.Binding
	moveDown       key.Binding
	openLead       key.Binding
	moveStageLeft  key.Binding
	moveStageRight key.Binding
	expand         key.Binding
	analytics      key.Binding
	newLead        key.Binding
	scrollLeft     key.Binding
	scrollRight    key.Binding

	changeStage key.Binding
	assignOwner key.Binding
	setPriority key.Binding
	editTags    key.Binding
	addNote     key.Binding
	logCall     key.Binding
	addFollowUp key.Binding
	taskDone    key.Binding
	copy        key.Binding
	back        key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit:           key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:         key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:       key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "stage left")),
		moveRight:      key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "stage right")),
		moveUp:         key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "lead up")),
		moveDown:       key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "lead down")),
		openLead:       key.NewBinding(key.WithKeys("enter", "i"), key.WithHelp("enter", "lead detail")),
		moveStageLeft:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "move lead left")),
		moveStageRight: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "move lead right")),
		expand:         key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "expand column")),
		analytics:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "analytics")),
		newLead:        key.NewBinding(key.WithKeys("N", "shift+n"), key.WithHelp("N", "new lead")),
		scrollLeft:     key.NewBinding(key.WithKeys("<", "shift+left"), key.WithHelp("<", "scroll left")),
		scrollRight:    key.NewBinding(key.WithKeys(">", "shift+right"), key.WithHelp(">", "scroll right")),

		changeStage: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "change stage")),
		assignOwner: key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "owner")),
		setPriority: key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "priority")),
		editTags:    key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "tags")),
		addNote:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "note")),
		logCall:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "log call")),
		addFollowUp: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "follow-up")),
		taskDone:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "task done")),
		copy:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy phone")),
		back:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	}
}

// applyConfig applies configured overrides on top of the defaults.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.analytics, cfg.Analytics, "a", "analytics")
	configureBinding(&k.expand, cfg.Expand, "e", "expand column")
	configureBinding(&k.moveStageLeft, cfg.MoveStageLeft, "[", "move lead left")
	configureBinding(&k.moveStageRight, cfg.MoveStageRight, "]", "move lead right")
	configureBinding(&k.newLead, cfg.NewLead, "N", "new lead")
	configureBinding(&k.copy, cfg.Copy, "y", "copy phone")
}

// configureBinding replaces the keys of one binding, keeping its help description.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	keys, help := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(help, desc)
}

// parseBindingKeys turns one configured key into matcher keys and its help label.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	if strings.EqualFold(raw, "space") || raw == " " {
		return []string{" ", "space"}, "space"
	}
	if utf8.RuneCountInString(raw) == 1 {
		r, _ := utf8.DecodeRuneInString(raw)
		if unicode.IsUpper(r) {
			return []string{raw, "shift+" + string(unicode.ToLower(r))}, raw
		}
		return []string{raw}, raw
	}
	return []string{strings.ToLower(raw)}, raw
}

// ShortHelp returns the footer bindings.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.openLead, k.moveStageLeft, k.moveStageRight, k.expand, k.analytics, k.toggleHelp, k.quit}
}

// FullHelp returns the grouped help overlay bindings.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown, k.scrollLeft, k.scrollRight},
		{k.openLead, k.moveStageLeft, k.moveStageRight, k.expand, k.newLead, k.analytics, k.reload, k.quit},
		{k.changeStage, k.assignOwner, k.setPriority, k.editTags, k.addNote, k.logCall, k.addFollowUp, k.taskDone, k.copy, k.back},
	}
}

// detailHelp lists the detail-panel bindings.
func (k keyMap) detailHelp() []key.Binding {
	return []key.Binding{k.changeStage, k.assignOwner, k.setPriority, k.editTags, k.addNote, k.logCall, k.addFollowUp, k.taskDone, k.copy, k.back}
}
