// Package assessment defines the entities produced by the multi-phase
// disruption assessment: agent responses, phase results, conflicts,
// evolution records, recovery scenarios and the final decision.
package assessment

// AgentName identifies one domain reasoning unit. The set is closed: adding
// an agent means adding a constant here and assigning it to a tier below.
type AgentName string

const (
	AgentCrewCompliance  AgentName = "crew_compliance"
	AgentMaintenance     AgentName = "maintenance"
	AgentRegulatory      AgentName = "regulatory"
	AgentNetwork         AgentName = "network"
	AgentGuestExperience AgentName = "guest_experience"
	AgentCargo           AgentName = "cargo"
	AgentFinance         AgentName = "finance"
)

// Tier is the priority group an agent belongs to. Safety-tier constraints
// are binding over business-tier recommendations.
type Tier string

const (
	TierSafety   Tier = "safety"
	TierBusiness Tier = "business"
)

var tierOf = map[AgentName]Tier{
	AgentCrewCompliance:  TierSafety,
	AgentMaintenance:     TierSafety,
	AgentRegulatory:      TierSafety,
	AgentNetwork:         TierBusiness,
	AgentGuestExperience: TierBusiness,
	AgentCargo:           TierBusiness,
	AgentFinance:         TierBusiness,
}

// SafetyAgents returns the safety-tier agents in fixed order.
func SafetyAgents() []AgentName {
	return []AgentName{AgentCrewCompliance, AgentMaintenance, AgentRegulatory}
}

// BusinessAgents returns the business-tier agents in fixed order.
func BusinessAgents() []AgentName {
	return []AgentName{AgentNetwork, AgentGuestExperience, AgentCargo, AgentFinance}
}

// AllAgents returns every agent, safety tier first.
func AllAgents() []AgentName {
	return append(SafetyAgents(), BusinessAgents()...)
}

// TierOf returns the tier for a known agent name, or TierBusiness for an
// unknown one (unknown names never reach scoring; they fail validation first).
func TierOf(name AgentName) Tier {
	if t, ok := tierOf[name]; ok {
		return t
	}
	return TierBusiness
}

// IsSafety reports whether the agent is in the safety tier.
func IsSafety(name AgentName) bool {
	return TierOf(name) == TierSafety
}

// Known reports whether name is part of the closed agent set.
func Known(name AgentName) bool {
	_, ok := tierOf[name]
	return ok
}
