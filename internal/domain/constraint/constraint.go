// Package constraint parses and evaluates binding constraints emitted by
// agents. Constraints are strings with machine-checkable semantics; the
// delay grammar is enforced numerically, everything else is carried verbatim
// as an advisory flag that must surface in the final justification.
package constraint

import (
	"fmt"
	"strings"
	"time"

	"github.com/skywise-ai/irops/internal/domain/assessment"
)

// Kind classifies a parsed constraint.
type Kind string

const (
	// KindMaxDelay bounds additional delay from above ("max_delay=3h").
	KindMaxDelay Kind = "max_delay"
	// KindMinDelay bounds delay from below ("min_delay=4h"); typically a
	// business-tier preference, never a safety restriction.
	KindMinDelay Kind = "min_delay"
	// KindNoDispatch forbids dispatching the original hull ("no_dispatch").
	KindNoDispatch Kind = "no_dispatch"
	// KindGroundStop forbids any departure; only cancellation satisfies it.
	KindGroundStop Kind = "ground_stop"
	// KindAdvisory is any constraint outside the machine-checked grammar.
	KindAdvisory Kind = "advisory"
)

// Constraint is one parsed binding constraint. Raw always preserves the
// original string so resolution can carry constraints forward verbatim.
type Constraint struct {
	Kind  Kind
	Bound time.Duration // delay bound for KindMaxDelay / KindMinDelay
	Note  string        // free-text qualifier, e.g. the reason after ':'
	Raw   string
}

// Parse interprets one constraint string. It never fails: unrecognized
// strings become advisories.
func Parse(raw string) Constraint {
	s := strings.TrimSpace(raw)
	body, note := splitNote(s)

	switch {
	case strings.HasPrefix(body, "max_delay="), strings.HasPrefix(body, "delay<="):
		if d, ok := parseBound(body); ok {
			return Constraint{Kind: KindMaxDelay, Bound: d, Note: note, Raw: raw}
		}
	case strings.HasPrefix(body, "min_delay="), strings.HasPrefix(body, "delay>="):
		if d, ok := parseBound(body); ok {
			return Constraint{Kind: KindMinDelay, Bound: d, Note: note, Raw: raw}
		}
	case body == "no_dispatch":
		return Constraint{Kind: KindNoDispatch, Note: note, Raw: raw}
	case body == "ground_stop":
		return Constraint{Kind: KindGroundStop, Note: note, Raw: raw}
	}
	return Constraint{Kind: KindAdvisory, Note: note, Raw: raw}
}

// ParseAll parses every constraint in order.
func ParseAll(raws []string) []Constraint {
	out := make([]Constraint, 0, len(raws))
	for _, r := range raws {
		out = append(out, Parse(r))
	}
	return out
}

func splitNote(s string) (body, note string) {
	if idx := strings.Index(s, ":"); idx >= 0 {
		return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+1:])
	}
	return s, ""
}

func parseBound(body string) (time.Duration, bool) {
	idx := strings.IndexAny(body, "=")
	if idx < 0 || idx+1 >= len(body) {
		return 0, false
	}
	d, err := time.ParseDuration(strings.TrimSpace(body[idx+1:]))
	if err != nil || d < 0 {
		return 0, false
	}
	return d, true
}

// Incompatible reports whether two constraints are logically mutually
// exclusive (no scenario can satisfy both).
func Incompatible(a, b Constraint) bool {
	switch {
	case a.Kind == KindMaxDelay && b.Kind == KindMinDelay:
		return b.Bound > a.Bound
	case a.Kind == KindMinDelay && b.Kind == KindMaxDelay:
		return a.Bound > b.Bound
	case a.Kind == KindGroundStop && b.Kind == KindMinDelay,
		a.Kind == KindMinDelay && b.Kind == KindGroundStop:
		// A ground stop admits only cancellation; a minimum-delay departure
		// demand cannot be met.
		return true
	}
	return false
}

// Stricter returns the more restrictive of two same-kind delay bounds.
// For other kinds it returns a unchanged.
func Stricter(a, b Constraint) Constraint {
	if a.Kind != b.Kind {
		return a
	}
	switch a.Kind {
	case KindMaxDelay:
		if b.Bound < a.Bound {
			return b
		}
	case KindMinDelay:
		if b.Bound > a.Bound {
			return b
		}
	}
	return a
}

// ViolatedBy reports whether the scenario violates the constraint, with a
// human-readable reason. Cancellation satisfies every delay and dispatch
// restriction (nothing departs).
func (c Constraint) ViolatedBy(s *assessment.RecoveryScenario) (bool, string) {
	if s.Cancels {
		return false, ""
	}
	switch c.Kind {
	case KindMaxDelay:
		if s.Delay > c.Bound {
			return true, fmt.Sprintf("scenario delay %s exceeds bound %s", s.Delay, c.Bound)
		}
	case KindNoDispatch:
		if s.UsesOriginalHull {
			return true, "scenario dispatches the restricted hull"
		}
	case KindGroundStop:
		return true, "ground stop in effect; only cancellation is permitted"
	}
	return false, ""
}

// Binding reports whether the constraint participates in hard filtering
// when emitted by a safety-tier agent. Min-delay demands and advisories
// never filter; they are carried for the justification text instead.
func (c Constraint) Binding() bool {
	switch c.Kind {
	case KindMaxDelay, KindNoDispatch, KindGroundStop:
		return true
	}
	return false
}
