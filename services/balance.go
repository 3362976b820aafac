package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"splitapp-backend/models"
	"splitapp-backend/utils"

	"github.com/google/uuid"
)

// BalanceStore is the data-access collaborator the aggregation reads from.
type BalanceStore interface {
	GetFriends(ctx context.Context, userID uuid.UUID) ([]models.FriendRecord, error)
	GetUserGroups(ctx context.Context, userID uuid.UUID) ([]models.GroupRecord, error)
	GetGroupExpenses(ctx context.Context, groupID uuid.UUID) ([]models.ExpenseRecord, error)
}

const (
	// Cached summaries are served for this long before a recompute.
	balanceCacheTTL = 5 * time.Minute

	// One-cent dead zone absorbing floating point rounding noise.
	balanceEpsilon = 0.01

	// Delay applied by NotifyBalanceChange so bursts of writes collapse
	// into one refresh.
	changeDebounceDelay = 500 * time.Millisecond
)

type balanceListener struct {
	userID uuid.UUID
	fn     func(*models.BalanceSummary)
}

// BalanceService computes, merges and caches per-counterparty net balances
// across the two relationship sources: direct friend ledgers and pairwise
// group-expense computation. It is constructed once at startup and shared;
// all state sits behind one mutex.
//
// Refreshes never surface errors to callers: on failure the last cached
// summary (or an empty one) is returned so balance displays stay up even
// when the database is unreachable.
type BalanceService struct {
	store BalanceStore

	mu           sync.Mutex
	cache        map[uuid.UUID]*models.BalanceSummary
	listeners    map[int]balanceListener
	nextListener int
	refreshing   bool
	debounce     *time.Timer
	generation   map[uuid.UUID]uint64

	ttl time.Duration
	now func() time.Time
}

// NewBalanceService creates a BalanceService reading from store.
func NewBalanceService(store BalanceStore) *BalanceService {
	return &BalanceService{
		store:      store,
		cache:      make(map[uuid.UUID]*models.BalanceSummary),
		listeners:  make(map[int]balanceListener),
		generation: make(map[uuid.UUID]uint64),
		ttl:        balanceCacheTTL,
		now:        time.Now,
	}
}

// GetBalances returns the cached summary for userID when it is fresher than
// the TTL and forceRefresh is false, otherwise recomputes. Never returns nil.
func (s *BalanceService) GetBalances(ctx context.Context, userID uuid.UUID, forceRefresh bool) *models.BalanceSummary {
	if !forceRefresh {
		s.mu.Lock()
		cached, ok := s.cache[userID]
		fresh := ok && s.now().Sub(cached.LastUpdated) < s.ttl
		s.mu.Unlock()
		if fresh {
			return cached
		}
	}
	return s.RefreshBalances(ctx, userID)
}

// RefreshBalances performs the full aggregation for userID and replaces the
// cache entry. A single process-wide in-flight flag serializes refreshes:
// while one is running, calls for any user short-circuit to the cache.
// Each refresh is stamped with a per-user generation so a slow computation
// cannot overwrite the result of one started after it.
func (s *BalanceService) RefreshBalances(ctx context.Context, userID uuid.UUID) *models.BalanceSummary {
	s.mu.Lock()
	if s.refreshing {
		cached := s.cache[userID]
		s.mu.Unlock()
		if cached != nil {
			return cached
		}
		return s.emptySummary()
	}
	s.refreshing = true
	s.generation[userID]++
	gen := s.generation[userID]
	s.mu.Unlock()

	summary, err := s.computeSummary(ctx, userID)

	s.mu.Lock()
	s.refreshing = false
	if err != nil {
		cached := s.cache[userID]
		s.mu.Unlock()
		slog.Error("balance refresh failed, serving stale data", "user_id", userID, "error", err)
		if cached != nil {
			return cached
		}
		return s.emptySummary()
	}
	if gen == s.generation[userID] {
		s.cache[userID] = summary
	}
	s.mu.Unlock()

	s.notifyListeners(userID, summary)
	return summary
}

// ScheduleRefresh arms the debounce timer for userID, cancelling any pending
// one. The slot is process-wide: a newer request for a different user replaces
// the pending target.
func (s *BalanceService) ScheduleRefresh(userID uuid.UUID, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.debounce != nil {
		s.debounce.Stop()
	}
	s.debounce = time.AfterFunc(delay, func() {
		s.RefreshBalances(context.Background(), userID)
	})
}

// NotifyBalanceChange is called by write paths after any mutation that could
// move a balance. The refresh itself is debounced.
func (s *BalanceService) NotifyBalanceChange(userID uuid.UUID) {
	s.ScheduleRefresh(userID, changeDebounceDelay)
}

// AddListener registers fn to receive every newly computed summary for
// userID. The returned function unsubscribes.
func (s *BalanceService) AddListener(userID uuid.UUID, fn func(*models.BalanceSummary)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = balanceListener{userID: userID, fn: fn}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// ClearCache evicts the cached summary for userID so the next GetBalances
// call recomputes.
func (s *BalanceService) ClearCache(userID uuid.UUID) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}

// Stop cancels any pending debounced refresh.
func (s *BalanceService) Stop() {
	s.mu.Lock()
	if s.debounce != nil {
		s.debounce.Stop()
		s.debounce = nil
	}
	s.mu.Unlock()
}

func (s *BalanceService) emptySummary() *models.BalanceSummary {
	return &models.BalanceSummary{
		Details:     []models.BalanceDetail{},
		LastUpdated: s.now(),
	}
}

// computeSummary is the full aggregation: friend ledger lines first, then
// pairwise group lines for counterparties not already covered by a
// friendship, merged per counterparty across groups.
func (s *BalanceService) computeSummary(ctx context.Context, userID uuid.UUID) (summary *models.BalanceSummary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("balance computation panicked: %v", r)
		}
	}()

	var (
		friends    []models.FriendRecord
		groups     []models.GroupRecord
		friendsErr error
		groupsErr  error
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		friends, friendsErr = s.store.GetFriends(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		groups, groupsErr = s.store.GetUserGroups(ctx, userID)
	}()
	wg.Wait()
	if friendsErr != nil {
		return nil, fmt.Errorf("fetch friends: %w", friendsErr)
	}
	if groupsErr != nil {
		return nil, fmt.Errorf("fetch groups: %w", groupsErr)
	}

	var (
		details    []models.BalanceDetail
		totalOwed  float64
		totalOwing float64
	)
	coveredByFriendship := make(map[uuid.UUID]bool)

	for _, f := range friends {
		if f.Status != "accepted" {
			continue
		}
		balance := utils.RoundToTwo(f.Balance)
		if !exceedsDeadZone(balance) {
			continue
		}
		lastUpdated := f.LastActivity
		if lastUpdated.IsZero() {
			lastUpdated = f.CreatedAt
		}
		details = append(details, models.BalanceDetail{
			CounterpartyID: f.CounterpartyID,
			Name:           f.Name,
			Email:          f.Email,
			AvatarURL:      f.AvatarURL,
			Balance:        balance,
			Source:         models.BalanceSourceFriend,
			LastUpdated:    lastUpdated,
		})
		coveredByFriendship[f.CounterpartyID] = true
		if balance > 0 {
			totalOwed += balance
		} else {
			totalOwing += -balance
		}
	}

	// group-sourced entries merge per counterparty: one line, names joined
	groupDetailIdx := make(map[uuid.UUID]int)

	for _, g := range groups {
		expenses, expErr := s.store.GetGroupExpenses(ctx, g.ID)
		if expErr != nil {
			slog.Warn("skipping group in balance computation", "group_id", g.ID, "error", expErr)
			continue
		}
		for _, m := range g.Members {
			if m.UserID == userID || coveredByFriendship[m.UserID] {
				continue
			}
			pairBalance := pairwiseGroupBalance(expenses, userID, m.UserID)
			if !exceedsDeadZone(pairBalance) {
				continue
			}
			if idx, ok := groupDetailIdx[m.UserID]; ok {
				details[idx].Balance = utils.RoundToTwo(details[idx].Balance + pairBalance)
				details[idx].GroupName += ", " + g.Name
				if g.UpdatedAt.After(details[idx].LastUpdated) {
					details[idx].LastUpdated = g.UpdatedAt
				}
			} else {
				details = append(details, models.BalanceDetail{
					CounterpartyID: m.UserID,
					Name:           m.Name,
					Email:          m.Email,
					AvatarURL:      m.AvatarURL,
					Balance:        pairBalance,
					Source:         models.BalanceSourceGroup,
					GroupID:        g.ID,
					GroupName:      g.Name,
					LastUpdated:    g.UpdatedAt,
				})
				groupDetailIdx[m.UserID] = len(details) - 1
			}
			// totals accumulate per group contribution: two groups sharing a
			// counterparty are genuinely separate debts
			if pairBalance > 0 {
				totalOwed += pairBalance
			} else {
				totalOwing += -pairBalance
			}
		}
	}

	// merged lines can net out inside the dead zone; drop them
	kept := details[:0]
	for _, d := range details {
		if exceedsDeadZone(d.Balance) {
			kept = append(kept, d)
		}
	}
	details = kept
	if details == nil {
		details = []models.BalanceDetail{}
	}

	totalOwed = utils.RoundToTwo(totalOwed)
	totalOwing = utils.RoundToTwo(totalOwing)

	return &models.BalanceSummary{
		TotalOwed:   totalOwed,
		TotalOwing:  totalOwing,
		NetBalance:  utils.RoundToTwo(totalOwed - totalOwing),
		Details:     details,
		LastUpdated: s.now(),
	}, nil
}

// pairwiseGroupBalance nets the balance between userID and memberID across
// the expenses of one group. Paid/settled split rows count in neither
// direction.
func pairwiseGroupBalance(expenses []models.ExpenseRecord, userID, memberID uuid.UUID) float64 {
	var balance float64
	for _, exp := range expenses {
		switch exp.PaidBy {
		case userID:
			for _, split := range exp.Splits {
				if split.UserID == memberID && !split.IsPaid {
					balance += split.Amount
				}
			}
		case memberID:
			for _, split := range exp.Splits {
				if split.UserID == userID && !split.IsPaid {
					balance -= split.Amount
				}
			}
		}
	}
	return utils.RoundToTwo(balance)
}

func exceedsDeadZone(balance float64) bool {
	if balance < 0 {
		balance = -balance
	}
	return balance > balanceEpsilon
}

// notifyListeners fans a freshly computed summary out to the listeners
// registered for that user. A panicking listener is isolated so it cannot
// break delivery to the rest.
func (s *BalanceService) notifyListeners(userID uuid.UUID, summary *models.BalanceSummary) {
	s.mu.Lock()
	targets := make([]func(*models.BalanceSummary), 0, len(s.listeners))
	for _, l := range s.listeners {
		if l.userID == userID {
			targets = append(targets, l.fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range targets {
		s.deliver(fn, summary)
	}
}

func (s *BalanceService) deliver(fn func(*models.BalanceSummary), summary *models.BalanceSummary) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("balance listener panicked", "panic", r)
		}
	}()
	fn(summary)
}
