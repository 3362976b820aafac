package services

import (
	"context"
	"log/slog"

	"splitapp-backend/database"
	"splitapp-backend/models"

	"github.com/google/uuid"
)

// InviteToGroup creates an invitation and emails the invitee. If the address
// already belongs to a registered user they are added to the group directly.
func InviteToGroup(ctx context.Context, notifier *NotificationService, groupID, invitedBy uuid.UUID, email, phone string) {
	var existing models.Invitation
	query := database.DB.Where("group_id = ? AND status = ?", groupID, "pending")
	if email != "" {
		query = query.Where("email = ?", email)
	} else if phone != "" {
		query = query.Where("phone = ?", phone)
	}
	if err := query.First(&existing).Error; err == nil {
		slog.Debug("invitation already pending", "group_id", groupID, "email", email)
		return
	}

	if email != "" {
		var existingUser models.User
		if err := database.DB.Where("email = ?", email).First(&existingUser).Error; err == nil {
			var member models.GroupMember
			if err := database.DB.Where("group_id = ? AND user_id = ?", groupID, existingUser.ID).First(&member).Error; err != nil {
				database.DB.Create(&models.GroupMember{
					GroupID: groupID,
					UserID:  existingUser.ID,
					Role:    "member",
				})
				slog.Info("added existing user to group", "email", email, "group_id", groupID)
			}
			return
		}
	}

	invitation := models.Invitation{
		GroupID:   groupID,
		InvitedBy: invitedBy,
		Email:     email,
		Phone:     phone,
		Status:    "pending",
	}
	if err := database.DB.Create(&invitation).Error; err != nil {
		slog.Error("failed to create invitation", "error", err)
		return
	}

	var inviter models.User
	database.DB.First(&inviter, invitedBy)
	var group models.Group
	database.DB.First(&group, groupID)

	if email != "" && notifier != nil {
		notifier.NotifyInvitation(email, inviter.Name, group.Name)
	}

	slog.Info("invitation sent", "group_id", groupID, "email", email, "phone", phone)
}
