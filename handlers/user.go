package handlers

import (
	"errors"
	"net/http"
	"strings"

	"splitapp-backend/database"
	"splitapp-backend/models"
	"splitapp-backend/utils"

	"github.com/gin-gonic/gin"
)

var errInvalidCurrency = errors.New("currency must be a 3-letter code")

type UpdateProfileRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	AvatarURL string `json:"avatar_url"`
	Currency  string `json:"currency"`
}

type UpdateFCMTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// GET /api/users/me
func GetProfile(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		utils.NotFound(c, "User not found")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", user.ToResponse())
}

// PUT /api/users/me
//
// Partial update: only non-empty fields change. Currency is normalized to
// an uppercase 3-letter code and rejected otherwise.
func UpdateProfile(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	updates, err := profileUpdates(req)
	if err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	if len(updates) == 0 {
		utils.BadRequest(c, "Nothing to update")
		return
	}

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		utils.NotFound(c, "User not found")
		return
	}

	if err := database.DB.Model(&user).Updates(updates).Error; err != nil {
		utils.InternalError(c, "Failed to update profile")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Profile updated", user.ToResponse())
}

// profileUpdates turns the non-empty request fields into a column update map.
func profileUpdates(req UpdateProfileRequest) (map[string]interface{}, error) {
	updates := map[string]interface{}{}
	if name := strings.TrimSpace(req.Name); name != "" {
		updates["name"] = name
	}
	if req.Phone != "" {
		updates["phone"] = req.Phone
	}
	if req.AvatarURL != "" {
		updates["avatar_url"] = req.AvatarURL
	}
	if req.Currency != "" {
		code, err := normalizeCurrency(req.Currency)
		if err != nil {
			return nil, err
		}
		updates["currency"] = code
	}
	return updates, nil
}

// normalizeCurrency uppercases a currency code and rejects anything that is
// not three letters.
func normalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", errInvalidCurrency
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", errInvalidCurrency
		}
	}
	return code, nil
}

// PUT /api/users/me/fcm-token
func UpdateFCMToken(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var req UpdateFCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if err := database.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("fcm_token", req.Token).Error; err != nil {
		utils.InternalError(c, "Failed to update FCM token")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "FCM token updated", nil)
}

// POST /api/users/search
//
// Case-insensitive substring match on email, name and phone. Queries shorter
// than two characters are rejected to keep the scan bounded.
func SearchUsers(c *gin.Context) {
	var req struct {
		Query string `json:"query" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	query := strings.TrimSpace(req.Query)
	if len(query) < 2 {
		utils.BadRequest(c, "Search query must be at least 2 characters")
		return
	}

	pattern := searchPattern(query)
	var users []models.User
	database.DB.Where("email ILIKE ? OR name ILIKE ? OR phone ILIKE ?",
		pattern, pattern, pattern).
		Limit(20).
		Find(&users)

	responses := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		responses = append(responses, u.ToResponse())
	}

	utils.SuccessResponse(c, http.StatusOK, "", responses)
}

// searchPattern escapes LIKE metacharacters so user input matches literally.
func searchPattern(query string) string {
	escaped := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(query)
	return "%" + escaped + "%"
}
