package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gatebot/internal/models/response_models"
	"gatebot/internal/repositories"
	"gatebot/pkg/utils"
)

// ChargesController exposes a read-only operator view of the charge
// ledger. All mutation happens through the funnel.
type ChargesController struct {
	charges repositories.IChargeRepository
}

func NewChargesController(charges repositories.IChargeRepository) *ChargesController {
	return &ChargesController{charges: charges}
}

func (cc *ChargesController) ListByUser(c *gin.Context) {

	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, "user_id is required and must be numeric")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	charges, err := cc.charges.ListByUser(c.Request.Context(), userID, limit)
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	out := make([]response_models.ChargeResponse, 0, len(charges))
	for _, ch := range charges {
		out = append(out, response_models.ChargeResponse{
			ChargeID:    ch.ChargeID,
			UserID:      ch.UserID,
			DisplayName: ch.DisplayName,
			Status:      string(ch.Status),
			PlanType:    string(ch.PlanType),
			Amount:      ch.Amount,
			CreatedAt:   ch.CreatedAt,
			ApprovedAt:  ch.ApprovedAt,
		})
	}

	utils.RespondSuccess(c, out, "Charges retrieved successfully")
}

func (cc *ChargesController) Stats(c *gin.Context) {

	stats, err := cc.charges.Stats(c.Request.Context())
	if err != nil {
		utils.HandleServiceError(c, err)
		return
	}

	utils.RespondSuccess(c, response_models.ChargeStatsResponse{
		TotalApproved: stats.TotalApproved,
		TotalPending:  stats.TotalPending,
		RevenueBRL:    stats.RevenueBRL,
	}, "Stats retrieved successfully")
}
