package constraint_test

import (
	"testing"
	"time"

	"github.com/skywise-ai/irops/internal/domain/assessment"
	"github.com/skywise-ai/irops/internal/domain/constraint"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw   string
		kind  constraint.Kind
		bound time.Duration
		note  string
	}{
		{"max_delay=3h", constraint.KindMaxDelay, 3 * time.Hour, ""},
		{"delay<=90m", constraint.KindMaxDelay, 90 * time.Minute, ""},
		{"max_delay=2h: crew duty limit at 2230Z", constraint.KindMaxDelay, 2 * time.Hour, "crew duty limit at 2230Z"},
		{"min_delay=4h", constraint.KindMinDelay, 4 * time.Hour, ""},
		{"delay>=4h: part arrives on the evening truck", constraint.KindMinDelay, 4 * time.Hour, "part arrives on the evening truck"},
		{"no_dispatch", constraint.KindNoDispatch, 0, ""},
		{"ground_stop: ATC flow program", constraint.KindGroundStop, 0, "ATC flow program"},
		{"notify cargo desk before pushback", constraint.KindAdvisory, 0, ""},
		{"max_delay=banana", constraint.KindAdvisory, 0, ""},
		{"max_delay=-2h", constraint.KindAdvisory, 0, ""},
		{"  max_delay=1h  ", constraint.KindMaxDelay, time.Hour, ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			c := constraint.Parse(tt.raw)
			if c.Kind != tt.kind {
				t.Errorf("kind = %q, want %q", c.Kind, tt.kind)
			}
			if c.Bound != tt.bound {
				t.Errorf("bound = %s, want %s", c.Bound, tt.bound)
			}
			if c.Note != tt.note {
				t.Errorf("note = %q, want %q", c.Note, tt.note)
			}
			if c.Raw != tt.raw {
				t.Errorf("raw = %q, want original preserved", c.Raw)
			}
		})
	}
}

func TestIncompatible(t *testing.T) {
	maxThree := constraint.Parse("max_delay=3h")
	minFour := constraint.Parse("min_delay=4h")
	minTwo := constraint.Parse("min_delay=2h")
	groundStop := constraint.Parse("ground_stop")

	if !constraint.Incompatible(maxThree, minFour) {
		t.Error("max 3h vs min 4h should be incompatible")
	}
	if !constraint.Incompatible(minFour, maxThree) {
		t.Error("incompatibility should be symmetric")
	}
	if constraint.Incompatible(maxThree, minTwo) {
		t.Error("max 3h admits a 2h minimum")
	}
	if !constraint.Incompatible(groundStop, minFour) {
		t.Error("ground stop cannot meet a minimum-delay departure demand")
	}
	if constraint.Incompatible(maxThree, constraint.Parse("no_dispatch")) {
		t.Error("delay bound and hull restriction can both be satisfied")
	}
}

func TestStricter(t *testing.T) {
	twoHours := constraint.Parse("max_delay=2h: duty limit")
	threeHours := constraint.Parse("max_delay=3h")

	if got := constraint.Stricter(twoHours, threeHours); got.Raw != twoHours.Raw {
		t.Errorf("stricter max bound = %q, want the 2h constraint", got.Raw)
	}
	if got := constraint.Stricter(threeHours, twoHours); got.Raw != twoHours.Raw {
		t.Errorf("stricter should pick the tighter bound regardless of order, got %q", got.Raw)
	}

	minFour := constraint.Parse("min_delay=4h")
	minSix := constraint.Parse("min_delay=6h")
	if got := constraint.Stricter(minFour, minSix); got.Raw != minSix.Raw {
		t.Errorf("stricter min bound = %q, want the 6h constraint", got.Raw)
	}

	// Mixed kinds fall back to the first argument.
	if got := constraint.Stricter(twoHours, minFour); got.Raw != twoHours.Raw {
		t.Errorf("mixed kinds = %q, want first argument", got.Raw)
	}
}

func TestViolatedBy(t *testing.T) {
	delayed := &assessment.RecoveryScenario{Delay: 4 * time.Hour, UsesOriginalHull: true}
	swap := &assessment.RecoveryScenario{Delay: time.Hour}
	cancel := &assessment.RecoveryScenario{Cancels: true}

	maxThree := constraint.Parse("max_delay=3h")
	if violated, reason := maxThree.ViolatedBy(delayed); !violated || reason == "" {
		t.Error("4h delay should violate a 3h bound with a reason")
	}
	if violated, _ := maxThree.ViolatedBy(swap); violated {
		t.Error("1h delay satisfies a 3h bound")
	}

	noDispatch := constraint.Parse("no_dispatch")
	if violated, _ := noDispatch.ViolatedBy(delayed); !violated {
		t.Error("dispatching the original hull should violate no_dispatch")
	}
	if violated, _ := noDispatch.ViolatedBy(swap); violated {
		t.Error("a swap does not dispatch the restricted hull")
	}

	groundStop := constraint.Parse("ground_stop")
	if violated, _ := groundStop.ViolatedBy(swap); !violated {
		t.Error("any departure violates a ground stop")
	}

	// Cancellation satisfies everything.
	for _, c := range []constraint.Constraint{maxThree, noDispatch, groundStop} {
		if violated, _ := c.ViolatedBy(cancel); violated {
			t.Errorf("cancellation should satisfy %q", c.Raw)
		}
	}
}

func TestBinding(t *testing.T) {
	for raw, want := range map[string]bool{
		"max_delay=3h":             true,
		"no_dispatch":              true,
		"ground_stop":              true,
		"min_delay=4h":             false,
		"coordinate with dispatch": false,
	} {
		if got := constraint.Parse(raw).Binding(); got != want {
			t.Errorf("Binding(%q) = %v, want %v", raw, got, want)
		}
	}
}
