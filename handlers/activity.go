package handlers

import (
	"net/http"

	"splitapp-backend/database"
	"splitapp-backend/models"
	"splitapp-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// GET /api/activity — global activity feed for current user
func GetActivity(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var pagination utils.PaginationQuery
	c.ShouldBindQuery(&pagination)

	var memberships []models.GroupMember
	database.DB.Where("user_id = ?", userID).Find(&memberships)

	groupIDs := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		groupIDs = append(groupIDs, m.GroupID)
	}

	// Group activity for every group the user belongs to, plus ungrouped
	// entries (friend payments) the user authored.
	var activities []models.Activity
	query := database.DB.Where("user_id = ? AND group_id = ?", userID, uuid.Nil)
	if len(groupIDs) > 0 {
		query = query.Or("group_id IN ?", groupIDs)
	}
	database.DB.Where(query).
		Preload("User").
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit).
		Find(&activities)

	attachGroupNames(activities, groupIDs)

	utils.SuccessResponse(c, http.StatusOK, "", activities)
}

func attachGroupNames(activities []models.Activity, groupIDs []uuid.UUID) {
	if len(groupIDs) == 0 {
		return
	}
	groupNames := make(map[uuid.UUID]string)
	var groups []models.Group
	database.DB.Where("id IN ?", groupIDs).Find(&groups)
	for _, g := range groups {
		groupNames[g.ID] = g.Name
	}
	for i := range activities {
		activities[i].GroupName = groupNames[activities[i].GroupID]
	}
}

// GET /api/groups/:id/activity — activity feed for a specific group
func GetGroupActivity(c *gin.Context) {
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

	var pagination utils.PaginationQuery
	c.ShouldBindQuery(&pagination)

	var activities []models.Activity
	database.DB.Where("group_id = ?", groupID).
		Preload("User").
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit).
		Find(&activities)

	utils.SuccessResponse(c, http.StatusOK, "", activities)
}
