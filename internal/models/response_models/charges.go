package response_models

import "time"

type ChargeResponse struct {
	ChargeID    string     `json:"charge_id"`
	UserID      int64      `json:"user_id"`
	DisplayName string     `json:"display_name"`
	Status      string     `json:"status"`
	PlanType    string     `json:"plan_type"`
	Amount      float64    `json:"amount"`
	CreatedAt   time.Time  `json:"created_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
}

type ChargeStatsResponse struct {
	TotalApproved int64   `json:"total_approved"`
	TotalPending  int64   `json:"total_pending"`
	RevenueBRL    float64 `json:"revenue_brl"`
}
