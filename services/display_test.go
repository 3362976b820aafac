package services

import (
	"reflect"
	"testing"
	"time"

	"splitapp-backend/models"

	"github.com/google/uuid"
)

func sampleSummary() *models.BalanceSummary {
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	return &models.BalanceSummary{
		TotalOwed:  27.50,
		TotalOwing: 4.00,
		NetBalance: 23.50,
		Details: []models.BalanceDetail{
			{CounterpartyID: uuid.New(), Name: "zoe", Balance: 12.50, Source: models.BalanceSourceFriend, LastUpdated: base},
			{CounterpartyID: uuid.New(), Name: "Adam", Balance: -4.00, Source: models.BalanceSourceGroup, GroupName: "Flat", LastUpdated: base.Add(48 * time.Hour)},
			{CounterpartyID: uuid.New(), Name: "mia", Balance: 15.00, Source: models.BalanceSourceGroup, GroupName: "Trip", LastUpdated: base.Add(24 * time.Hour)},
		},
		LastUpdated: base,
	}
}

func names(details []models.BalanceDetail) []string {
	out := make([]string, len(details))
	for i, d := range details {
		out[i] = d.Name
	}
	return out
}

func TestFormatBalancesSorting(t *testing.T) {
	tests := []struct {
		name   string
		config models.DisplayConfig
		want   []string
	}{
		{
			name:   "amount defaults to largest absolute first",
			config: models.DisplayConfig{SortBy: models.SortByAmount},
			want:   []string{"mia", "zoe", "Adam"},
		},
		{
			name:   "amount ascending when asked",
			config: models.DisplayConfig{SortBy: models.SortByAmount, SortOrder: "asc"},
			want:   []string{"Adam", "zoe", "mia"},
		},
		{
			name:   "name is case-insensitive lexicographic",
			config: models.DisplayConfig{SortBy: models.SortByName},
			want:   []string{"Adam", "mia", "zoe"},
		},
		{
			name:   "date defaults to most recent first",
			config: models.DisplayConfig{SortBy: models.SortByDate},
			want:   []string{"Adam", "mia", "zoe"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatBalancesForDisplay(sampleSummary(), tt.config)
			if !reflect.DeepEqual(names(got.Combined), tt.want) {
				t.Errorf("Combined order = %v, want %v", names(got.Combined), tt.want)
			}
		})
	}
}

func TestFormatBalancesIdempotent(t *testing.T) {
	summary := sampleSummary()
	config := models.DisplayConfig{SortBy: models.SortByAmount, GroupSeparately: true}

	first := FormatBalancesForDisplay(summary, config)
	second := FormatBalancesForDisplay(summary, config)
	if !reflect.DeepEqual(first, second) {
		t.Error("formatting the same summary twice gave different output")
	}
}

func TestFormatBalancesPartitioning(t *testing.T) {
	summary := sampleSummary()

	flat := FormatBalancesForDisplay(summary, models.DisplayConfig{})
	if len(flat.Friends) != 0 || len(flat.GroupMembers) != 0 {
		t.Error("partitions must stay empty without GroupSeparately")
	}
	if len(flat.Combined) != 3 {
		t.Errorf("len(Combined) = %d, want 3", len(flat.Combined))
	}

	split := FormatBalancesForDisplay(summary, models.DisplayConfig{GroupSeparately: true})
	if len(split.Friends) != 1 {
		t.Errorf("len(Friends) = %d, want 1", len(split.Friends))
	}
	if len(split.GroupMembers) != 2 {
		t.Errorf("len(GroupMembers) = %d, want 2", len(split.GroupMembers))
	}
}

func TestFormatBalancesZeroFilter(t *testing.T) {
	summary := sampleSummary()
	summary.Details = append(summary.Details, models.BalanceDetail{Name: "settled", Balance: 0.004})

	hidden := FormatBalancesForDisplay(summary, models.DisplayConfig{})
	if len(hidden.Combined) != 3 {
		t.Errorf("len(Combined) = %d, want 3 with zero-ish entry hidden", len(hidden.Combined))
	}

	shown := FormatBalancesForDisplay(summary, models.DisplayConfig{ShowZeroBalances: true})
	if len(shown.Combined) != 4 {
		t.Errorf("len(Combined) = %d, want 4 with ShowZeroBalances", len(shown.Combined))
	}
}

func TestGetBalanceDisplayText(t *testing.T) {
	tests := []struct {
		name     string
		balance  float64
		currency string
		want     models.BalanceDisplayText
	}{
		{
			name:     "settled",
			balance:  0.00,
			currency: "USD",
			want:     models.BalanceDisplayText{Text: "Settled up", Color: "neutral", Symbol: "✓"},
		},
		{
			name:     "owed to you",
			balance:  12.5,
			currency: "USD",
			want:     models.BalanceDisplayText{Text: "Owes you $12.50", Color: "positive", Symbol: "+"},
		},
		{
			name:     "you owe",
			balance:  -3.25,
			currency: "EUR",
			want:     models.BalanceDisplayText{Text: "You owe €3.25", Color: "negative", Symbol: "−"},
		},
		{
			name:     "unknown currency falls back to code",
			balance:  7.00,
			currency: "CHF",
			want:     models.BalanceDisplayText{Text: "Owes you CHF 7.00", Color: "positive", Symbol: "+"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetBalanceDisplayText(tt.balance, tt.currency); got != tt.want {
				t.Errorf("GetBalanceDisplayText(%v, %s) = %+v, want %+v", tt.balance, tt.currency, got, tt.want)
			}
		})
	}
}
