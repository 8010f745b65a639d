package assessment

// Change classifies how one agent's position moved between phases.
type Change string

const (
	ChangeUnchanged    Change = "unchanged"
	ChangeConverged    Change = "converged"
	ChangeStrengthened Change = "strengthened"
	ChangeWeakened     Change = "weakened"
	ChangeReversed     Change = "reversed"
)

// EvolutionRecord captures one agent's phase-1 vs phase-2 movement.
type EvolutionRecord struct {
	Agent              AgentName `json:"agent"`
	InitialSummary     string    `json:"initial_summary"`
	RevisedSummary     string    `json:"revised_summary"`
	InitialConfidence  float64   `json:"initial_confidence"`
	RevisedConfidence  float64   `json:"revised_confidence"`
	Change             Change    `json:"change"`
	ConstraintsAdded   []string  `json:"constraints_added,omitempty"`
	ConstraintsRemoved []string  `json:"constraints_removed,omitempty"`
}

// EvolutionSummary aggregates per-agent records with overall flags.
// Converged is true only if no agent reversed and at least one agent moved
// toward the majority recommendation.
type EvolutionSummary struct {
	Records   []EvolutionRecord `json:"records"`
	Converged bool              `json:"converged"`
	Diverged  bool              `json:"diverged"`
}
