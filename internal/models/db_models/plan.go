package db_models

type PlanType string

const (
	PlanMonthly   PlanType = "monthly"
	PlanQuarterly PlanType = "quarterly"
)

// RatePlan is one entry of the fixed plan table shown to the user.
// Prices come from configuration; the set of plans does not.
type RatePlan struct {
	Type   PlanType
	Label  string
	Amount float64
}

func (p PlanType) Valid() bool {
	return p == PlanMonthly || p == PlanQuarterly
}
