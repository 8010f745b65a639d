package assessment

// ConflictClass classifies which tiers are involved in a conflict.
type ConflictClass string

const (
	ConflictSafetyVsSafety     ConflictClass = "safety-vs-safety"
	ConflictSafetyVsBusiness   ConflictClass = "safety-vs-business"
	ConflictBusinessVsBusiness ConflictClass = "business-vs-business"
)

// Resolution is the policy applied to a detected conflict.
type Resolution string

const (
	// ResolutionStricterWins keeps the most restrictive safety constraint and
	// carries it forward verbatim into arbitration input.
	ResolutionStricterWins Resolution = "stricter_constraint_enforced"
	// ResolutionSafetyOverrides marks a business recommendation as overridden
	// by a safety-tier binding constraint.
	ResolutionSafetyOverrides Resolution = "safety_overrides_business"
	// ResolutionAdvisory records a business-vs-business disagreement without
	// blocking anything.
	ResolutionAdvisory Resolution = "advisory_recorded"
	// ResolutionEscalated marks mutually exclusive safety constraints that
	// cannot be auto-resolved and require human review.
	ResolutionEscalated Resolution = "escalated"
)

// ConflictRecord identifies agents whose binding constraints or
// recommendations are mutually exclusive, and how the conflict was handled.
type ConflictRecord struct {
	ID          string        `json:"id"`
	Class       ConflictClass `json:"class"`
	Agents      []AgentName   `json:"agents"`
	Description string        `json:"description"`
	ConstraintA string        `json:"constraint_a,omitempty"`
	ConstraintB string        `json:"constraint_b,omitempty"`
	Resolution  Resolution    `json:"resolution"`
	// Kept is the constraint carried forward after resolution, verbatim.
	Kept string `json:"kept,omitempty"`
}

// Blocking reports whether the conflict must stop automated arbitration.
// Only unresolvable safety-vs-safety contradictions block; everything else
// resolves deterministically.
func (c *ConflictRecord) Blocking() bool {
	return c.Class == ConflictSafetyVsSafety && c.Resolution == ResolutionEscalated
}
