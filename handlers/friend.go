package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"splitapp-backend/database"
	"splitapp-backend/models"
	"splitapp-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GET /api/friends
func GetFriends(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var friends []models.Friend
	database.DB.Where("user_id = ?", userID).
		Preload("FriendUser").
		Order("last_activity DESC").
		Find(&friends)

	responses := make([]models.FriendResponse, 0, len(friends))
	for _, f := range friends {
		responses = append(responses, f.ToResponse())
	}

	utils.SuccessResponse(c, http.StatusOK, "", responses)
}

// POST /api/friends
//
// Creates the pairwise relationship rows. The requester's row starts
// accepted, the counterparty's starts pending until they accept.
func AddFriend(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var req models.AddFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	var target models.User
	found := false
	if req.UserID != "" {
		if targetID, err := uuid.Parse(req.UserID); err == nil {
			found = database.DB.First(&target, targetID).Error == nil
		}
	}
	if !found && req.Email != "" {
		found = database.DB.Where("email = ?", req.Email).First(&target).Error == nil
	}
	if !found {
		utils.NotFound(c, "User not found")
		return
	}
	if target.ID == userID {
		utils.BadRequest(c, "Cannot add yourself as a friend")
		return
	}

	var existing models.Friend
	if err := database.DB.Where("user_id = ? AND friend_id = ?", userID, target.ID).First(&existing).Error; err == nil {
		utils.BadRequest(c, "Friend relationship already exists")
		return
	}

	now := time.Now()
	database.DB.Create(&models.Friend{UserID: userID, FriendID: target.ID, Status: "accepted", LastActivity: now})
	database.DB.Create(&models.Friend{UserID: target.ID, FriendID: userID, Status: "pending", LastActivity: now})

	var requester models.User
	database.DB.First(&requester, userID)
	go notifier.NotifyFriendRequest(context.Background(), requester, target)

	utils.SuccessResponse(c, http.StatusCreated, "Friend added", target.ToResponse())
}

// PUT /api/friends/:id/accept
func AcceptFriend(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	friendID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid friend ID")
		return
	}

	var friend models.Friend
	if err := database.DB.Where("user_id = ? AND friend_id = ?", userID, friendID).First(&friend).Error; err != nil {
		utils.NotFound(c, "Friend relationship not found")
		return
	}

	database.DB.Model(&friend).Updates(map[string]interface{}{
		"status":        "accepted",
		"last_activity": time.Now(),
	})

	invalidator.Publish(c.Request.Context(), userID)

	utils.SuccessResponse(c, http.StatusOK, "Friend request accepted", nil)
}

// POST /api/friends/:id/payments
//
// Records a direct payment on the friend ledger. A positive amount means the
// current user paid their friend, which moves the signed balance toward the
// friend owing them. Both mirrored rows are updated.
func RecordFriendPayment(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	friendID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid friend ID")
		return
	}

	var req models.RecordFriendPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	var friend models.Friend
	if err := database.DB.Where("user_id = ? AND friend_id = ? AND status = ?", userID, friendID, "accepted").
		First(&friend).Error; err != nil {
		utils.NotFound(c, "Accepted friend relationship not found")
		return
	}

	now := time.Now()
	newBalance := utils.RoundToTwo(friend.Balance + req.Amount)
	database.DB.Model(&friend).Updates(map[string]interface{}{
		"balance":       newBalance,
		"last_activity": now,
	})
	database.DB.Model(&models.Friend{}).
		Where("user_id = ? AND friend_id = ?", friendID, userID).
		Updates(map[string]interface{}{
			"balance":       -newBalance,
			"last_activity": now,
		})

	var payer, payee models.User
	database.DB.First(&payer, userID)
	database.DB.First(&payee, friendID)
	database.DB.Create(&models.Activity{
		UserID:      userID,
		Type:        "friend_payment",
		Description: fmt.Sprintf("%s recorded a payment of %.2f with %s", payer.Name, req.Amount, payee.Name),
	})

	// both sides of the ledger moved
	ctx := c.Request.Context()
	invalidator.Publish(ctx, userID)
	invalidator.Publish(ctx, friendID)

	utils.SuccessResponse(c, http.StatusOK, "Payment recorded", gin.H{"balance": newBalance})
}

// DELETE /api/friends/:id
func RemoveFriend(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	friendID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid friend ID")
		return
	}

	database.DB.Where("user_id = ? AND friend_id = ?", userID, friendID).Delete(&models.Friend{})
	database.DB.Where("user_id = ? AND friend_id = ?", friendID, userID).Delete(&models.Friend{})

	ctx := c.Request.Context()
	invalidator.Publish(ctx, userID)
	invalidator.Publish(ctx, friendID)

	utils.SuccessResponse(c, http.StatusOK, "Friend removed", nil)
}
