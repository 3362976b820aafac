package handlers

import (
	"io"
	"net/http"

	"splitapp-backend/config"
	"splitapp-backend/database"
	"splitapp-backend/models"
	"splitapp-backend/services"
	"splitapp-backend/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func defaultCurrency() string {
	return config.AppConfig.DefaultCurrency
}

// GET /api/balances
//
// Returns the unified balance summary (friend ledgers + pairwise group
// balances) for the current user, served from cache when fresh.
// Query params: refresh=true forces a recompute; sort_by, sort_order,
// show_zero and group_separately shape the display view.
func GetBalances(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	var cfg models.DisplayConfig
	c.ShouldBindQuery(&cfg)
	forceRefresh := c.Query("refresh") == "true"

	summary := balances.GetBalances(c.Request.Context(), userID, forceRefresh)
	display := services.FormatBalancesForDisplay(summary, cfg)

	utils.SuccessResponse(c, http.StatusOK, "", gin.H{
		"summary": summary,
		"display": display,
	})
}

// POST /api/balances/refresh
func RefreshBalances(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	summary := balances.RefreshBalances(c.Request.Context(), userID)
	utils.SuccessResponse(c, http.StatusOK, "Balances refreshed", summary)
}

// DELETE /api/balances/cache
func ClearBalanceCache(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	balances.ClearCache(userID)
	utils.SuccessResponse(c, http.StatusOK, "Balance cache cleared", nil)
}

// GET /api/balances/stream
//
// Server-sent events: pushes the current summary immediately, then a new one
// every time a refresh for this user completes, until the client disconnects.
func StreamBalances(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	updates := make(chan *models.BalanceSummary, 4)
	unsubscribe := balances.AddListener(userID, func(s *models.BalanceSummary) {
		select {
		case updates <- s:
		default: // drop when the client is slow, a newer summary follows
		}
	})
	defer unsubscribe()

	initial := balances.GetBalances(c.Request.Context(), userID, false)

	c.Stream(func(w io.Writer) bool {
		if initial != nil {
			c.SSEvent("balances", initial)
			initial = nil
			return true
		}
		select {
		case <-c.Request.Context().Done():
			return false
		case summary := <-updates:
			c.SSEvent("balances", summary)
			return true
		}
	})
}

// GET /api/balances/display-text?balance=12.5&currency=USD
func GetBalanceText(c *gin.Context) {
	var query struct {
		Balance  float64 `form:"balance"`
		Currency string  `form:"currency"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}
	if query.Currency == "" {
		query.Currency = defaultCurrency()
	}
	utils.SuccessResponse(c, http.StatusOK, "", services.GetBalanceDisplayText(query.Balance, query.Currency))
}

// GET /api/groups/:id/balances
//
// Per-group view: net positions of every member plus the simplified
// who-pays-whom transfer list.
func GetGroupBalances(c *gin.Context) {
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

	var group models.Group
	database.DB.First(&group, groupID)

	netBalance := calculateNetBalances(groupID)
	simplified := simplifyDebts(netBalance)

	var totalSpent float64
	database.DB.Model(&models.Expense{}).Where("group_id = ?", groupID).
		Select("COALESCE(SUM(amount), 0)").Scan(&totalSpent)

	utils.SuccessResponse(c, http.StatusOK, "", models.GroupBalanceSummary{
		GroupID:    groupID,
		GroupName:  group.Name,
		Balances:   simplified,
		TotalSpent: totalSpent,
	})
}

// calculateNetBalances computes each member's net position within one group
// from its expenses and settlements. Positive = is owed money.
func calculateNetBalances(groupID uuid.UUID) map[uuid.UUID]float64 {
	netBalance := make(map[uuid.UUID]float64)

	var expenses []models.Expense
	database.DB.Where("group_id = ?", groupID).Preload("Splits").Find(&expenses)

	for _, exp := range expenses {
		for _, s := range exp.Splits {
			netBalance[s.UserID] -= s.OwedAmount
		}
		netBalance[exp.PaidBy] += exp.Amount
	}

	var settlements []models.Settlement
	database.DB.Where("group_id = ?", groupID).Find(&settlements)

	for _, s := range settlements {
		netBalance[s.PaidBy] += s.Amount
		netBalance[s.PaidTo] -= s.Amount
	}

	return netBalance
}

// simplifyDebts reduces net positions to a minimal transfer list by greedily
// matching debtors against creditors.
func simplifyDebts(netBalance map[uuid.UUID]float64) []models.Balance {
	type userBalance struct {
		UserID uuid.UUID
		Amount float64
	}

	var creditors []userBalance
	var debtors []userBalance

	for userID, amount := range netBalance {
		rounded := utils.RoundToTwo(amount)
		if rounded > 0.01 {
			creditors = append(creditors, userBalance{userID, rounded})
		} else if rounded < -0.01 {
			debtors = append(debtors, userBalance{userID, -rounded})
		}
	}

	var results []models.Balance
	i, j := 0, 0

	for i < len(debtors) && j < len(creditors) {
		amount := debtors[i].Amount
		if creditors[j].Amount < amount {
			amount = creditors[j].Amount
		}
		amount = utils.RoundToTwo(amount)

		var fromUser, toUser models.User
		database.DB.First(&fromUser, debtors[i].UserID)
		database.DB.First(&toUser, creditors[j].UserID)

		results = append(results, models.Balance{
			From:     debtors[i].UserID,
			FromName: fromUser.Name,
			To:       creditors[j].UserID,
			ToName:   toUser.Name,
			Amount:   amount,
			Currency: defaultCurrency(),
		})

		debtors[i].Amount = utils.RoundToTwo(debtors[i].Amount - amount)
		creditors[j].Amount = utils.RoundToTwo(creditors[j].Amount - amount)

		if debtors[i].Amount < 0.01 {
			i++
		}
		if creditors[j].Amount < 0.01 {
			j++
		}
	}

	return results
}
