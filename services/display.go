package services

import (
	"fmt"
	"sort"
	"strings"

	"splitapp-backend/models"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"INR": "₹",
	"JPY": "¥",
}

// FormatBalancesForDisplay filters, sorts and optionally partitions a
// summary's details for rendering. Pure: the input summary is not mutated
// and the same input always yields the same ordered output.
func FormatBalancesForDisplay(summary *models.BalanceSummary, config models.DisplayConfig) models.DisplayBalances {
	result := models.DisplayBalances{
		Friends:      []models.BalanceDetail{},
		GroupMembers: []models.BalanceDetail{},
		Combined:     []models.BalanceDetail{},
	}
	if summary == nil {
		return result
	}

	combined := make([]models.BalanceDetail, 0, len(summary.Details))
	for _, d := range summary.Details {
		if !config.ShowZeroBalances && !exceedsDeadZone(d.Balance) {
			continue
		}
		combined = append(combined, d)
	}

	sortDetails(combined, config)
	result.Combined = combined

	if config.GroupSeparately {
		for _, d := range combined {
			switch d.Source {
			case models.BalanceSourceFriend:
				result.Friends = append(result.Friends, d)
			case models.BalanceSourceGroup:
				result.GroupMembers = append(result.GroupMembers, d)
			}
		}
	}

	return result
}

// sortDetails orders details per the config. Defaults: amount = largest
// absolute value first, name = A→Z, date = most recent first. An explicit
// SortOrder of "asc"/"desc" overrides the default direction.
func sortDetails(details []models.BalanceDetail, config models.DisplayConfig) {
	var less func(a, b models.BalanceDetail) bool
	descByDefault := false

	switch config.SortBy {
	case models.SortByName:
		less = func(a, b models.BalanceDetail) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case models.SortByDate:
		less = func(a, b models.BalanceDetail) bool {
			return a.LastUpdated.Before(b.LastUpdated)
		}
		descByDefault = true
	default: // amount
		less = func(a, b models.BalanceDetail) bool {
			return absBalance(a) < absBalance(b)
		}
		descByDefault = true
	}

	desc := descByDefault
	switch config.SortOrder {
	case "asc":
		desc = false
	case "desc":
		desc = true
	}

	sort.SliceStable(details, func(i, j int) bool {
		if desc {
			return less(details[j], details[i])
		}
		return less(details[i], details[j])
	})
}

func absBalance(d models.BalanceDetail) float64 {
	if d.Balance < 0 {
		return -d.Balance
	}
	return d.Balance
}

// GetBalanceDisplayText renders the one-line description for a single
// balance: settled, owed to you, or owed by you.
func GetBalanceDisplayText(balance float64, currency string) models.BalanceDisplayText {
	if !exceedsDeadZone(balance) {
		return models.BalanceDisplayText{Text: "Settled up", Color: "neutral", Symbol: "✓"}
	}
	if balance > 0 {
		return models.BalanceDisplayText{
			Text:   "Owes you " + formatAmount(balance, currency),
			Color:  "positive",
			Symbol: "+",
		}
	}
	return models.BalanceDisplayText{
		Text:   "You owe " + formatAmount(-balance, currency),
		Color:  "negative",
		Symbol: "−",
	}
}

func formatAmount(amount float64, currency string) string {
	if symbol, ok := currencySymbols[currency]; ok {
		return fmt.Sprintf("%s%.2f", symbol, amount)
	}
	return fmt.Sprintf("%s %.2f", currency, amount)
}
