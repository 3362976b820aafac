package handlers

import (
	"context"
	"fmt"
	"net/http"

	"splitapp-backend/database"
	"splitapp-backend/models"
	"splitapp-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// POST /api/groups/:id/settle
//
// Records that the current user paid paid_to. Besides the audit row, the
// payment is applied to the payer's oldest unpaid splits on expenses the
// payee paid for, so the pairwise balance between the two reflects it.
func CreateSettlement(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}

	if !isMember(groupID, userID) {
		utils.Unauthorized(c, "You are not a member of this group")
		return
	}

	var req models.CreateSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	paidTo, err := uuid.Parse(req.PaidTo)
	if err != nil {
		utils.BadRequest(c, "Invalid paid_to user ID")
		return
	}

	settlement := models.Settlement{
		GroupID: groupID,
		PaidBy:  userID,
		PaidTo:  paidTo,
		Amount:  req.Amount,
		Notes:   req.Notes,
	}

	if err := database.DB.Create(&settlement).Error; err != nil {
		utils.InternalError(c, "Failed to create settlement")
		return
	}

	applySettlementToSplits(groupID, userID, paidTo, req.Amount)

	var payer, payee models.User
	database.DB.First(&payer, userID)
	database.DB.First(&payee, paidTo)
	var group models.Group
	database.DB.First(&group, groupID)

	database.DB.Create(&models.Activity{
		GroupID:     groupID,
		UserID:      userID,
		Type:        "settlement",
		ReferenceID: settlement.ID,
		Description: fmt.Sprintf("%s paid %s %s %.2f", payer.Name, payee.Name, defaultCurrency(), req.Amount),
	})

	ctx := context.Background()
	invalidator.Publish(ctx, userID)
	invalidator.Publish(ctx, paidTo)

	go notifier.NotifySettlement(context.Background(), settlement, payer, payee, group)

	utils.SuccessResponse(c, http.StatusCreated, "Settlement recorded", settlement)
}

// applySettlementToSplits walks the payer's unpaid splits on expenses the
// payee paid for in this group, oldest first, and marks them paid until the
// settled amount is used up. A partial remainder stays on the last split as
// a partial payment.
func applySettlementToSplits(groupID, payer, payee uuid.UUID, amount float64) {
	var expenses []models.Expense
	database.DB.Where("group_id = ? AND paid_by = ?", groupID, payee).
		Order("created_at ASC").
		Find(&expenses)

	remaining := amount
	for _, exp := range expenses {
		if remaining <= 0.01 {
			break
		}

		var splits []models.ExpenseSplit
		database.DB.Where("expense_id = ? AND user_id = ?", exp.ID, payer).Find(&splits)

		for _, split := range splits {
			outstanding := utils.RoundToTwo(split.OwedAmount - split.PaidAmount)
			if outstanding <= 0.01 {
				continue
			}
			applied := outstanding
			if remaining < applied {
				applied = remaining
			}
			database.DB.Model(&split).
				Update("paid_amount", utils.RoundToTwo(split.PaidAmount+applied))
			remaining = utils.RoundToTwo(remaining - applied)
			if remaining <= 0.01 {
				break
			}
		}
	}
}

// GET /api/groups/:id/settlements
func GetGroupSettlements(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	groupID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid group ID")
		return
	}

	if !isMember(groupID, userID) {
		utils.Unauthorized(c, "You are not a member of this group")
		return
	}

	var settlements []models.Settlement
	database.DB.Where("group_id = ?", groupID).
		Preload("Payer").Preload("Payee").
		Order("created_at DESC").
		Find(&settlements)

	utils.SuccessResponse(c, http.StatusOK, "", settlements)
}
