package database

import (
	"context"
	"fmt"

	"splitapp-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store is the gorm-backed data-access layer the balance aggregation reads
// from. It satisfies services.BalanceStore.
type Store struct {
	db *gorm.DB
}

// NewStore wraps a gorm connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// GetFriends returns the direct friend relationships owned by userID.
func (s *Store) GetFriends(ctx context.Context, userID uuid.UUID) ([]models.FriendRecord, error) {
	var friends []models.Friend
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Preload("FriendUser").
		Find(&friends).Error; err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}

	records := make([]models.FriendRecord, 0, len(friends))
	for _, f := range friends {
		records = append(records, models.FriendRecord{
			CounterpartyID: f.FriendID,
			Status:         f.Status,
			Balance:        f.Balance,
			Name:           f.FriendUser.Name,
			Email:          f.FriendUser.Email,
			AvatarURL:      f.FriendUser.AvatarURL,
			LastActivity:   f.LastActivity,
			CreatedAt:      f.CreatedAt,
		})
	}
	return records, nil
}

// GetUserGroups returns every group userID belongs to, with the member
// roster attached.
func (s *Store) GetUserGroups(ctx context.Context, userID uuid.UUID) ([]models.GroupRecord, error) {
	var memberships []models.GroupMember
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Find(&memberships).Error; err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	if len(memberships) == 0 {
		return nil, nil
	}

	groupIDs := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		groupIDs = append(groupIDs, m.GroupID)
	}

	var groups []models.Group
	if err := s.db.WithContext(ctx).
		Where("id IN ?", groupIDs).
		Preload("Members.User").
		Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}

	records := make([]models.GroupRecord, 0, len(groups))
	for _, g := range groups {
		record := models.GroupRecord{
			ID:        g.ID,
			Name:      g.Name,
			UpdatedAt: g.UpdatedAt,
		}
		for _, m := range g.Members {
			record.Members = append(record.Members, models.GroupMemberRecord{
				UserID:    m.UserID,
				Name:      m.User.Name,
				Email:     m.User.Email,
				AvatarURL: m.User.AvatarURL,
			})
		}
		records = append(records, record)
	}
	return records, nil
}

// GetGroupExpenses returns the expenses of one group reduced to payer and
// split rows. A split counts as paid once its paid amount covers the owed
// amount.
func (s *Store) GetGroupExpenses(ctx context.Context, groupID uuid.UUID) ([]models.ExpenseRecord, error) {
	var expenses []models.Expense
	if err := s.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Preload("Splits").
		Find(&expenses).Error; err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}

	records := make([]models.ExpenseRecord, 0, len(expenses))
	for _, e := range expenses {
		record := models.ExpenseRecord{PaidBy: e.PaidBy}
		for _, split := range e.Splits {
			record.Splits = append(record.Splits, models.ExpenseSplitRecord{
				UserID: split.UserID,
				Amount: split.OwedAmount,
				IsPaid: split.PaidAmount >= split.OwedAmount-0.005,
			})
		}
		records = append(records, record)
	}
	return records, nil
}
