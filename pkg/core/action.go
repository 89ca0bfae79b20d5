package core

import (
	"sort"
	"time"
)

// ActionKind identifies a primitive browser interaction.
type ActionKind string

const (
	ActionClick    ActionKind = "click"
	ActionFill     ActionKind = "fill"
	ActionSelect   ActionKind = "select"
	ActionNavigate ActionKind = "navigate"
	ActionWait     ActionKind = "wait"
	ActionVerify   ActionKind = "verify"
)

// Valid reports whether the kind is one of the known primitives.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionClick, ActionFill, ActionSelect, ActionNavigate, ActionWait, ActionVerify:
		return true
	}
	return false
}

// LocatorKind classifies how a locator addresses an element.
type LocatorKind string

const (
	// LocatorStructural is a CSS or XPath expression.
	LocatorStructural LocatorKind = "structural"
	// LocatorText matches by visible label text.
	LocatorText LocatorKind = "text"
	// LocatorCoordinate is a raw "x,y" viewport position.
	LocatorCoordinate LocatorKind = "coordinate"
)

// Locator addresses one element on a page.
type Locator struct {
	Value string      `json:"value"`
	Kind  LocatorKind `json:"kind"`
}

// IsZero reports whether the locator is empty.
func (l Locator) IsZero() bool {
	return l.Value == ""
}

// TargetDescriptor names the element an action operates on: a human-readable
// description plus a primary locator and ordered fallbacks.
type TargetDescriptor struct {
	Description string    `json:"description,omitempty"`
	Primary     Locator   `json:"primary"`
	Fallbacks   []Locator `json:"fallbacks,omitempty"`
}

// Candidates returns the primary locator followed by the fallbacks,
// skipping empty entries.
func (t TargetDescriptor) Candidates() []Locator {
	out := make([]Locator, 0, 1+len(t.Fallbacks))
	if !t.Primary.IsZero() {
		out = append(out, t.Primary)
	}
	for _, l := range t.Fallbacks {
		if !l.IsZero() {
			out = append(out, l)
		}
	}
	return out
}

// Action is one resolved primitive handed to the ActionExecutor.
type Action struct {
	Kind    ActionKind
	Locator Locator
	Value   string
	Timeout time.Duration
}

// ActionStep is one primitive in a remembered or interpreted sequence.
type ActionStep struct {
	Kind        ActionKind        `json:"kind"`
	Target      TargetDescriptor  `json:"target"`
	Value       string            `json:"value,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
	Timeout     time.Duration     `json:"timeout,omitempty"`
	MaxRetries  int               `json:"maxRetries,omitempty"`
	SuccessRate float64           `json:"successRate"`
}

// Capability tags derived from the action kinds present in a sequence.
const (
	CapabilityMouse      = "mouse_interaction"
	CapabilityKeyboard   = "keyboard_input"
	CapabilitySelection  = "option_selection"
	CapabilityNavigation = "page_navigation"
)

func capabilityFor(kind ActionKind) string {
	switch kind {
	case ActionClick:
		return CapabilityMouse
	case ActionFill:
		return CapabilityKeyboard
	case ActionSelect:
		return CapabilitySelection
	case ActionNavigate:
		return CapabilityNavigation
	}
	// wait and verify need no interaction capability
	return ""
}

// CapabilitiesFor derives the sorted, de-duplicated capability tags
// required to execute the given steps.
func CapabilitiesFor(steps []ActionStep) []string {
	seen := make(map[string]struct{})
	for _, step := range steps {
		if cap := capabilityFor(step.Kind); cap != "" {
			seen[cap] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for cap := range seen {
		out = append(out, cap)
	}
	sort.Strings(out)
	return out
}
