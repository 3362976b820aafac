package models

import (
	"time"

	"github.com/google/uuid"
)

// Provenance tags for a BalanceDetail.
const (
	BalanceSourceFriend = "friend"
	BalanceSourceGroup  = "group"
)

// BalanceDetail is one counterparty's net position relative to the current user.
// Positive balance = counterparty owes the current user, negative = the current
// user owes the counterparty. Display attributes are copied from the source
// record at aggregation time and are not kept live-synced.
type BalanceDetail struct {
	CounterpartyID uuid.UUID `json:"counterparty_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	Balance        float64   `json:"balance"`
	Source         string    `json:"source"` // friend | group
	GroupID        uuid.UUID `json:"group_id,omitempty"`
	GroupName      string    `json:"group_name,omitempty"` // comma-joined when merged across groups
	LastUpdated    time.Time `json:"last_updated"`
}

// BalanceSummary is the aggregate balance picture for one user.
type BalanceSummary struct {
	TotalOwed   float64         `json:"total_owed"`  // others owe you
	TotalOwing  float64         `json:"total_owing"` // you owe others
	NetBalance  float64         `json:"net_balance"`
	Details     []BalanceDetail `json:"details"`
	LastUpdated time.Time       `json:"last_updated"`
}

// Sort keys accepted by DisplayConfig.SortBy.
const (
	SortByAmount = "amount"
	SortByName   = "name"
	SortByDate   = "date"
)

// DisplayConfig controls FormatBalancesForDisplay.
type DisplayConfig struct {
	ShowZeroBalances bool   `form:"show_zero"`
	SortBy           string `form:"sort_by"`    // amount | name | date
	SortOrder        string `form:"sort_order"` // asc | desc
	GroupSeparately  bool   `form:"group_separately"`
}

// DisplayBalances is the partitioned, sorted view of a summary. Friends and
// GroupMembers are populated only when the config asks for separate partitions.
type DisplayBalances struct {
	Friends      []BalanceDetail `json:"friends"`
	GroupMembers []BalanceDetail `json:"group_members"`
	Combined     []BalanceDetail `json:"combined"`
}

// BalanceDisplayText is the rendered one-line description of a single balance.
type BalanceDisplayText struct {
	Text   string `json:"text"`
	Color  string `json:"color"` // positive | negative | neutral
	Symbol string `json:"symbol"`
}

// FriendRecord is the data-access view of one direct friend relationship,
// as consumed by the balance aggregation.
type FriendRecord struct {
	CounterpartyID uuid.UUID
	Status         string // accepted | invited | pending
	Balance        float64
	Name           string
	Email          string
	AvatarURL      string
	LastActivity   time.Time
	CreatedAt      time.Time
}

// GroupMemberRecord is one member row inside a GroupRecord.
type GroupMemberRecord struct {
	UserID    uuid.UUID
	Name      string
	Email     string
	AvatarURL string
}

// GroupRecord is the data-access view of one group the user belongs to.
type GroupRecord struct {
	ID        uuid.UUID
	Name      string
	UpdatedAt time.Time
	Members   []GroupMemberRecord
}

// ExpenseSplitRecord is one participant's share of an expense.
type ExpenseSplitRecord struct {
	UserID uuid.UUID
	Amount float64
	IsPaid bool
}

// ExpenseRecord is the data-access view of one expense, reduced to what the
// pairwise balance computation needs.
type ExpenseRecord struct {
	PaidBy uuid.UUID
	Splits []ExpenseSplitRecord
}

// Balance represents a simplified debt between two users within one group.
type Balance struct {
	From     uuid.UUID `json:"from"`
	FromName string    `json:"from_name"`
	To       uuid.UUID `json:"to"`
	ToName   string    `json:"to_name"`
	Amount   float64   `json:"amount"`
	Currency string    `json:"currency"`
}

// GroupBalanceSummary is returned for GET /api/groups/:id/balances
type GroupBalanceSummary struct {
	GroupID    uuid.UUID `json:"group_id"`
	GroupName  string    `json:"group_name"`
	Balances   []Balance `json:"balances"`
	TotalSpent float64   `json:"total_spent"`
}
