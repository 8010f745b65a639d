package assessment

import (
	"time"
)

// DimensionScores holds the four per-dimension scenario scores, each 0-100.
type DimensionScores struct {
	Safety    float64 `json:"safety"`
	Cost      float64 `json:"cost"`
	Passenger float64 `json:"passenger"`
	Network   float64 `json:"network"`
}

// Weights combines dimension scores into a composite. Weights are
// configuration; equal weighting is the default.
type Weights struct {
	Safety    float64 `json:"safety" yaml:"safety"`
	Cost      float64 `json:"cost" yaml:"cost"`
	Passenger float64 `json:"passenger" yaml:"passenger"`
	Network   float64 `json:"network" yaml:"network"`
}

// DefaultWeights returns equal weighting across the four dimensions.
func DefaultWeights() Weights {
	return Weights{Safety: 0.25, Cost: 0.25, Passenger: 0.25, Network: 0.25}
}

// Normalized returns the weights scaled so they sum to 1. Zero or negative
// totals fall back to the default equal weighting.
func (w Weights) Normalized() Weights {
	sum := w.Safety + w.Cost + w.Passenger + w.Network
	if sum <= 0 {
		return DefaultWeights()
	}
	return Weights{
		Safety:    w.Safety / sum,
		Cost:      w.Cost / sum,
		Passenger: w.Passenger / sum,
		Network:   w.Network / sum,
	}
}

// Composite computes the weighted sum of the dimension scores. Pure function
// of its inputs: identical scores and weights always produce the identical
// composite.
func (d DimensionScores) Composite(w Weights) float64 {
	n := w.Normalized()
	return d.Safety*n.Safety + d.Cost*n.Cost + d.Passenger*n.Passenger + d.Network*n.Network
}

// PlanStep is one ordered step in a recovery plan.
type PlanStep struct {
	Order       int    `json:"order"`
	Action      string `json:"action"`
	DependsOn   []int  `json:"depends_on,omitempty"`
	Contingency string `json:"contingency,omitempty"` // trigger for the fallback path
}

// RecoveryPlan is an optional stepwise plan attached to a scenario.
type RecoveryPlan struct {
	Steps        []PlanStep `json:"steps"`
	CriticalPath []int      `json:"critical_path,omitempty"`
}

// RecoveryScenario is one candidate course of action with scored dimensions.
type RecoveryScenario struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Recommendations []string        `json:"recommendations"`
	Scores          DimensionScores `json:"scores"`
	Composite       float64         `json:"composite"`
	Confidence      float64         `json:"confidence"`
	Pros            []string        `json:"pros,omitempty"`
	Cons            []string        `json:"cons,omitempty"`
	Risks           []string        `json:"risks,omitempty"`
	Plan            *RecoveryPlan   `json:"plan,omitempty"`

	// Operational attributes the safety filters are checked against.
	Delay            time.Duration `json:"delay"`
	UsesOriginalHull bool          `json:"uses_original_hull"`
	Cancels          bool          `json:"cancels"`
}

// DecisionStatus is the terminal outcome class of an assessment.
type DecisionStatus string

const (
	DecisionSuccess  DecisionStatus = "success"
	DecisionEscalate DecisionStatus = "escalate" // zero viable scenarios
	DecisionError    DecisionStatus = "error"    // infrastructure fault
)

// FinalDecision is the arbitration output.
type FinalDecision struct {
	RequestID     string             `json:"request_id"`
	SessionID     string             `json:"session_id,omitempty"`
	Status        DecisionStatus     `json:"status"`
	Scenarios     []RecoveryScenario `json:"scenarios"`
	RecommendedID string             `json:"recommended_id"`
	Justification string             `json:"justification"`
	Conflicts     []ConflictRecord   `json:"conflicts,omitempty"`
	Confidence    float64            `json:"confidence"`
	Backend       string             `json:"backend,omitempty"` // backend mix actually used
	PartialInput  bool               `json:"partial_input,omitempty"`
	DecidedAt     time.Time          `json:"decided_at"`
}

// Recommended returns the recommended scenario, if present in the list.
func (d *FinalDecision) Recommended() (RecoveryScenario, bool) {
	for i := range d.Scenarios {
		if d.Scenarios[i].ID == d.RecommendedID {
			return d.Scenarios[i], true
		}
	}
	return RecoveryScenario{}, false
}
