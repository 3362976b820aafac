package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Friend is a direct (non-group) relationship with its own running ledger.
// Balance is signed from the owner's perspective: positive = the friend owes
// the owner, negative = the owner owes the friend. Rows are stored pairwise,
// one per direction, with mirrored balances.
type Friend struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;index:idx_friend_pair,unique" json:"user_id"`
	FriendID     uuid.UUID `gorm:"type:uuid;index:idx_friend_pair,unique" json:"friend_id"`
	FriendUser   User      `gorm:"foreignKey:FriendID" json:"friend,omitempty"`
	Status       string    `gorm:"default:pending;size:20" json:"status"` // accepted, invited, pending
	Balance      float64   `gorm:"type:decimal(12,2);default:0" json:"balance"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (f *Friend) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// Request structs
type AddFriendRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type RecordFriendPaymentRequest struct {
	Amount float64 `json:"amount" binding:"required"`
	Notes  string  `json:"notes"`
}

// Response struct
type FriendResponse struct {
	ID           uuid.UUID `json:"id"`
	FriendID     uuid.UUID `json:"friend_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	Status       string    `json:"status"`
	Balance      float64   `json:"balance"`
	LastActivity time.Time `json:"last_activity"`
}

func (f *Friend) ToResponse() FriendResponse {
	return FriendResponse{
		ID:           f.ID,
		FriendID:     f.FriendID,
		Name:         f.FriendUser.Name,
		Email:        f.FriendUser.Email,
		AvatarURL:    f.FriendUser.AvatarURL,
		Status:       f.Status,
		Balance:      f.Balance,
		LastActivity: f.LastActivity,
	}
}
