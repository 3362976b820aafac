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

// notifyBalanceChangeForSplits publishes a balance-change event for every
// participant of an expense, so cached summaries everywhere refresh.
func notifyBalanceChangeForSplits(paidBy uuid.UUID, splits []models.ExpenseSplit) {
	ctx := context.Background()
	seen := map[uuid.UUID]bool{paidBy: true}
	invalidator.Publish(ctx, paidBy)
	for _, s := range splits {
		if !seen[s.UserID] {
			seen[s.UserID] = true
			invalidator.Publish(ctx, s.UserID)
		}
	}
}

// POST /api/groups/:id/expenses
func CreateExpense(c *gin.Context) {
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

	var req models.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	expenseDate := time.Now()
	if req.ExpenseDate != "" {
		if parsed, err := time.Parse("2006-01-02", req.ExpenseDate); err == nil {
			expenseDate = parsed
		}
	}

	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency()
	}

	expense := models.Expense{
		GroupID:     groupID,
		PaidBy:      userID,
		Description: req.Description,
		Amount:      req.Amount,
		Currency:    currency,
		Category:    req.Category,
		SplitType:   req.SplitType,
		Notes:       req.Notes,
		ExpenseDate: expenseDate,
	}

	if err := database.DB.Create(&expense).Error; err != nil {
		utils.InternalError(c, "Failed to create expense")
		return
	}

	splits, err := calculateSplits(expense, req.Splits, groupID)
	if err != nil {
		database.DB.Delete(&expense)
		utils.BadRequest(c, err.Error())
		return
	}

	for i := range splits {
		splits[i].ExpenseID = expense.ID
		database.DB.Create(&splits[i])
	}

	var payer models.User
	database.DB.First(&payer, userID)
	var group models.Group
	database.DB.First(&group, groupID)

	database.DB.Create(&models.Activity{
		GroupID:     groupID,
		UserID:      userID,
		Type:        "expense_added",
		ReferenceID: expense.ID,
		Description: fmt.Sprintf("%s added \"%s\" (%s %.2f)", payer.Name, expense.Description, expense.Currency, expense.Amount),
	})

	notifyBalanceChangeForSplits(expense.PaidBy, splits)

	participants := loadSplitParticipants(splits)
	go notifier.NotifyExpenseAdded(context.Background(), expense, splits, payer, group, participants)

	response := buildExpenseResponse(expense.ID)
	utils.SuccessResponse(c, http.StatusCreated, "Expense added", response)
}

// GET /api/groups/:id/expenses
func GetGroupExpenses(c *gin.Context) {
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

	var expenses []models.Expense
	database.DB.Where("group_id = ?", groupID).
		Order("expense_date DESC, created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.Limit).
		Find(&expenses)

	var responses []models.ExpenseResponse
	for _, e := range expenses {
		responses = append(responses, buildExpenseResponse(e.ID))
	}

	utils.SuccessResponse(c, http.StatusOK, "", responses)
}

// GET /api/expenses/:id
func GetExpense(c *gin.Context) {
	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid expense ID")
		return
	}

	response := buildExpenseResponse(expenseID)
	if response.ID == uuid.Nil {
		utils.NotFound(c, "Expense not found")
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "", response)
}

// PUT /api/expenses/:id
func UpdateExpense(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid expense ID")
		return
	}

	var expense models.Expense
	if err := database.DB.First(&expense, expenseID).Error; err != nil {
		utils.NotFound(c, "Expense not found")
		return
	}

	if !isMember(expense.GroupID, userID) {
		utils.Unauthorized(c, "You are not a member of this group")
		return
	}

	var req models.UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.Amount > 0 {
		updates["amount"] = req.Amount
	}
	if req.Category != "" {
		updates["category"] = req.Category
	}
	if req.Notes != "" {
		updates["notes"] = req.Notes
	}

	database.DB.Model(&expense).Updates(updates)

	var splits []models.ExpenseSplit
	if req.Amount > 0 || req.SplitType != "" || len(req.Splits) > 0 {
		database.DB.Where("expense_id = ?", expenseID).Delete(&models.ExpenseSplit{})
		database.DB.First(&expense, expenseID)

		splitType := req.SplitType
		if splitType == "" {
			splitType = expense.SplitType
		}
		expense.SplitType = splitType

		splits, err = calculateSplits(expense, req.Splits, expense.GroupID)
		if err != nil {
			utils.BadRequest(c, err.Error())
			return
		}

		for i := range splits {
			splits[i].ExpenseID = expense.ID
			database.DB.Create(&splits[i])
		}
	} else {
		database.DB.Where("expense_id = ?", expenseID).Find(&splits)
	}

	var editor models.User
	database.DB.First(&editor, userID)

	database.DB.Create(&models.Activity{
		GroupID:     expense.GroupID,
		UserID:      userID,
		Type:        "expense_updated",
		ReferenceID: expense.ID,
		Description: fmt.Sprintf("%s updated \"%s\"", editor.Name, expense.Description),
	})

	notifyBalanceChangeForSplits(expense.PaidBy, splits)

	response := buildExpenseResponse(expense.ID)
	utils.SuccessResponse(c, http.StatusOK, "Expense updated", response)
}

// DELETE /api/expenses/:id
func DeleteExpense(c *gin.Context) {
	userID := utils.GetCurrentUserID(c)
	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.BadRequest(c, "Invalid expense ID")
		return
	}

	var expense models.Expense
	if err := database.DB.First(&expense, expenseID).Error; err != nil {
		utils.NotFound(c, "Expense not found")
		return
	}

	if !isMember(expense.GroupID, userID) {
		utils.Unauthorized(c, "You are not a member of this group")
		return
	}

	var deleter models.User
	database.DB.First(&deleter, userID)

	database.DB.Create(&models.Activity{
		GroupID:     expense.GroupID,
		UserID:      userID,
		Type:        "expense_deleted",
		Description: fmt.Sprintf("%s deleted \"%s\" (%s %.2f)", deleter.Name, expense.Description, expense.Currency, expense.Amount),
	})

	var splits []models.ExpenseSplit
	database.DB.Where("expense_id = ?", expenseID).Find(&splits)

	database.DB.Where("expense_id = ?", expenseID).Delete(&models.ExpenseSplit{})
	database.DB.Delete(&expense)

	notifyBalanceChangeForSplits(expense.PaidBy, splits)

	utils.SuccessResponse(c, http.StatusOK, "Expense deleted", nil)
}

// loadSplitParticipants resolves the users behind a set of splits, keyed by
// id string, for the notification fan-out.
func loadSplitParticipants(splits []models.ExpenseSplit) map[string]models.User {
	participants := make(map[string]models.User, len(splits))
	for _, s := range splits {
		var user models.User
		if err := database.DB.First(&user, s.UserID).Error; err == nil {
			participants[s.UserID.String()] = user
		}
	}
	return participants
}

// calculateSplits expands a split request into per-user owed amounts.
func calculateSplits(expense models.Expense, splitInputs []models.SplitInput, groupID uuid.UUID) ([]models.ExpenseSplit, error) {
	var splits []models.ExpenseSplit

	switch expense.SplitType {
	case "equal":
		var members []models.GroupMember
		database.DB.Where("group_id = ?", groupID).Find(&members)

		if len(members) == 0 {
			return nil, fmt.Errorf("no members in group")
		}

		perPerson := utils.RoundToTwo(expense.Amount / float64(len(members)))
		remainder := utils.RoundToTwo(expense.Amount - perPerson*float64(len(members)))

		for i, m := range members {
			amount := perPerson
			if i == 0 {
				amount = utils.RoundToTwo(amount + remainder) // first person absorbs the rounding remainder
			}
			splits = append(splits, models.ExpenseSplit{
				UserID:     m.UserID,
				OwedAmount: amount,
				PaidAmount: paidAmountFor(m.UserID, expense),
			})
		}

	case "exact":
		if len(splitInputs) == 0 {
			return nil, fmt.Errorf("splits required for exact split type")
		}

		var total float64
		for _, s := range splitInputs {
			total += s.Value
		}
		if utils.RoundToTwo(total) != utils.RoundToTwo(expense.Amount) {
			return nil, fmt.Errorf("split amounts (%.2f) don't add up to total (%.2f)", total, expense.Amount)
		}

		for _, s := range splitInputs {
			uid, err := uuid.Parse(s.UserID)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID: %s", s.UserID)
			}
			splits = append(splits, models.ExpenseSplit{
				UserID:     uid,
				OwedAmount: utils.RoundToTwo(s.Value),
				PaidAmount: paidAmountFor(uid, expense),
			})
		}

	case "percentage":
		if len(splitInputs) == 0 {
			return nil, fmt.Errorf("splits required for percentage split type")
		}

		var totalPercent float64
		for _, s := range splitInputs {
			totalPercent += s.Value
		}
		if utils.RoundToTwo(totalPercent) != 100.0 {
			return nil, fmt.Errorf("percentages must add up to 100, got %.2f", totalPercent)
		}

		for _, s := range splitInputs {
			uid, err := uuid.Parse(s.UserID)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID: %s", s.UserID)
			}
			splits = append(splits, models.ExpenseSplit{
				UserID:     uid,
				OwedAmount: utils.RoundToTwo(expense.Amount * s.Value / 100.0),
				PaidAmount: paidAmountFor(uid, expense),
			})
		}

	case "shares":
		if len(splitInputs) == 0 {
			return nil, fmt.Errorf("splits required for shares split type")
		}

		var totalShares float64
		for _, s := range splitInputs {
			totalShares += s.Value
		}
		if totalShares <= 0 {
			return nil, fmt.Errorf("total shares must be greater than 0")
		}

		for _, s := range splitInputs {
			uid, err := uuid.Parse(s.UserID)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID: %s", s.UserID)
			}
			splits = append(splits, models.ExpenseSplit{
				UserID:     uid,
				OwedAmount: utils.RoundToTwo(expense.Amount * s.Value / totalShares),
				PaidAmount: paidAmountFor(uid, expense),
			})
		}

	default:
		return nil, fmt.Errorf("invalid split type: %s", expense.SplitType)
	}

	return splits, nil
}

// The payer's own split counts as paid in full up front.
func paidAmountFor(userID uuid.UUID, expense models.Expense) float64 {
	if userID == expense.PaidBy {
		return expense.Amount
	}
	return 0
}

// buildExpenseResponse assembles the expense with payer name and resolved
// split rows.
func buildExpenseResponse(expenseID uuid.UUID) models.ExpenseResponse {
	var expense models.Expense
	if err := database.DB.First(&expense, expenseID).Error; err != nil {
		return models.ExpenseResponse{}
	}

	var payer models.User
	database.DB.First(&payer, expense.PaidBy)

	var dbSplits []models.ExpenseSplit
	database.DB.Where("expense_id = ?", expenseID).Find(&dbSplits)

	var splitResponses []models.SplitResponse
	for _, s := range dbSplits {
		var user models.User
		database.DB.First(&user, s.UserID)
		splitResponses = append(splitResponses, models.SplitResponse{
			UserID:     s.UserID,
			UserName:   user.Name,
			OwedAmount: s.OwedAmount,
			PaidAmount: s.PaidAmount,
		})
	}

	return models.ExpenseResponse{
		ID:          expense.ID,
		GroupID:     expense.GroupID,
		PaidBy:      expense.PaidBy,
		PayerName:   payer.Name,
		Description: expense.Description,
		Amount:      expense.Amount,
		Currency:    expense.Currency,
		Category:    expense.Category,
		SplitType:   expense.SplitType,
		Notes:       expense.Notes,
		ExpenseDate: expense.ExpenseDate,
		Splits:      splitResponses,
		CreatedAt:   expense.CreatedAt,
	}
}
