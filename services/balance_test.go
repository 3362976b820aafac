package services

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"splitapp-backend/models"

	"github.com/google/uuid"
)

// fakeStore is an in-memory BalanceStore for tests. It counts fetches so
// cache behavior can be asserted, and can block or fail on demand.
type fakeStore struct {
	mu           sync.Mutex
	friends      []models.FriendRecord
	groups       []models.GroupRecord
	expenses     map[uuid.UUID][]models.ExpenseRecord
	friendsErr   error
	groupsErr    error
	expenseErrs  map[uuid.UUID]error
	fetches      int
	fetchedUsers []uuid.UUID
	blockFriends chan struct{}
}

func (f *fakeStore) GetFriends(ctx context.Context, userID uuid.UUID) ([]models.FriendRecord, error) {
	f.mu.Lock()
	f.fetches++
	f.fetchedUsers = append(f.fetchedUsers, userID)
	block := f.blockFriends
	err := f.friendsErr
	recs := f.friends
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return recs, nil
}

func (f *fakeStore) GetUserGroups(ctx context.Context, userID uuid.UUID) ([]models.GroupRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.groupsErr != nil {
		return nil, f.groupsErr
	}
	return f.groups, nil
}

func (f *fakeStore) GetGroupExpenses(ctx context.Context, groupID uuid.UUID) ([]models.ExpenseRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.expenseErrs[groupID]; ok {
		return nil, err
	}
	return f.expenses[groupID], nil
}

func (f *fakeStore) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}

func acceptedFriend(id uuid.UUID, name string, balance float64) models.FriendRecord {
	return models.FriendRecord{
		CounterpartyID: id,
		Status:         "accepted",
		Balance:        balance,
		Name:           name,
		Email:          name + "@example.com",
		CreatedAt:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRefreshBalancesEndToEnd(t *testing.T) {
	userID := uuid.New()
	friendID := uuid.New()
	memberID := uuid.New()
	groupID := uuid.New()

	group := models.GroupRecord{
		ID:   groupID,
		Name: "Trip",
		Members: []models.GroupMemberRecord{
			{UserID: userID, Name: "You"},
			{UserID: memberID, Name: "Mallory"},
		},
	}

	tests := []struct {
		name        string
		memberPaid  bool
		wantOwed    float64
		wantDetails int
	}{
		{
			name:        "unpaid split counts toward the member's debt",
			memberPaid:  false,
			wantOwed:    40.00,
			wantDetails: 2,
		},
		{
			name:        "paid split is excluded, friend line only",
			memberPaid:  true,
			wantOwed:    25.00,
			wantDetails: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{
				friends: []models.FriendRecord{acceptedFriend(friendID, "Frank", 25.00)},
				groups:  []models.GroupRecord{group},
				expenses: map[uuid.UUID][]models.ExpenseRecord{
					groupID: {
						{
							PaidBy: userID,
							Splits: []models.ExpenseSplitRecord{
								{UserID: userID, Amount: 15.00, IsPaid: false},
								{UserID: memberID, Amount: 15.00, IsPaid: tt.memberPaid},
							},
						},
					},
				},
			}
			svc := NewBalanceService(store)

			summary := svc.GetBalances(context.Background(), userID, false)
			if summary == nil {
				t.Fatal("GetBalances returned nil")
			}
			if !almostEqual(summary.TotalOwed, tt.wantOwed) {
				t.Errorf("TotalOwed = %v, want %v", summary.TotalOwed, tt.wantOwed)
			}
			if !almostEqual(summary.TotalOwing, 0) {
				t.Errorf("TotalOwing = %v, want 0", summary.TotalOwing)
			}
			if !almostEqual(summary.NetBalance, tt.wantOwed) {
				t.Errorf("NetBalance = %v, want %v", summary.NetBalance, tt.wantOwed)
			}
			if len(summary.Details) != tt.wantDetails {
				t.Fatalf("len(Details) = %d, want %d", len(summary.Details), tt.wantDetails)
			}
		})
	}
}

func TestDeadZoneInvariant(t *testing.T) {
	userID := uuid.New()
	store := &fakeStore{
		friends: []models.FriendRecord{
			acceptedFriend(uuid.New(), "Nickel", 0.005),
			acceptedFriend(uuid.New(), "Dime", -0.01),
			acceptedFriend(uuid.New(), "Dollar", 1.00),
			{CounterpartyID: uuid.New(), Status: "pending", Balance: 99.00, Name: "Pending Pete"},
		},
	}
	svc := NewBalanceService(store)

	summary := svc.RefreshBalances(context.Background(), userID)
	if len(summary.Details) != 1 {
		t.Fatalf("len(Details) = %d, want 1", len(summary.Details))
	}
	if summary.Details[0].Name != "Dollar" {
		t.Errorf("surviving detail = %q, want Dollar", summary.Details[0].Name)
	}
	for _, d := range summary.Details {
		if math.Abs(d.Balance) <= 0.01 {
			t.Errorf("detail %s inside dead zone: %v", d.Name, d.Balance)
		}
	}
}

func TestGroupMergeAcrossGroups(t *testing.T) {
	userID := uuid.New()
	counterparty := uuid.New()
	g1 := uuid.New()
	g2 := uuid.New()

	memberRows := []models.GroupMemberRecord{
		{UserID: userID, Name: "You"},
		{UserID: counterparty, Name: "Casey", Email: "casey@example.com"},
	}
	store := &fakeStore{
		groups: []models.GroupRecord{
			{ID: g1, Name: "Flat", Members: memberRows},
			{ID: g2, Name: "Ski Trip", Members: memberRows},
		},
		expenses: map[uuid.UUID][]models.ExpenseRecord{
			// Casey owes the user 10 in Flat
			g1: {{
				PaidBy: userID,
				Splits: []models.ExpenseSplitRecord{{UserID: counterparty, Amount: 10.00}},
			}},
			// the user owes Casey 3 in Ski Trip
			g2: {{
				PaidBy: counterparty,
				Splits: []models.ExpenseSplitRecord{{UserID: userID, Amount: 3.00}},
			}},
		},
	}
	svc := NewBalanceService(store)

	summary := svc.RefreshBalances(context.Background(), userID)
	if len(summary.Details) != 1 {
		t.Fatalf("len(Details) = %d, want 1 merged group entry", len(summary.Details))
	}
	d := summary.Details[0]
	if d.Source != models.BalanceSourceGroup {
		t.Errorf("Source = %q, want group", d.Source)
	}
	if !almostEqual(d.Balance, 7.00) {
		t.Errorf("merged balance = %v, want 7.00", d.Balance)
	}
	if d.GroupName != "Flat, Ski Trip" {
		t.Errorf("GroupName = %q, want both groups mentioned", d.GroupName)
	}
	// each group contribution is a separate debt, so totals count both sides
	if !almostEqual(summary.TotalOwed, 10.00) {
		t.Errorf("TotalOwed = %v, want 10.00", summary.TotalOwed)
	}
	if !almostEqual(summary.TotalOwing, 3.00) {
		t.Errorf("TotalOwing = %v, want 3.00", summary.TotalOwing)
	}
	if !almostEqual(summary.NetBalance, 7.00) {
		t.Errorf("NetBalance = %v, want 7.00", summary.NetBalance)
	}
}

func TestMergedEntryNettingToZeroIsDropped(t *testing.T) {
	userID := uuid.New()
	counterparty := uuid.New()
	g1 := uuid.New()
	g2 := uuid.New()

	memberRows := []models.GroupMemberRecord{
		{UserID: userID},
		{UserID: counterparty, Name: "Casey"},
	}
	store := &fakeStore{
		groups: []models.GroupRecord{
			{ID: g1, Name: "A", Members: memberRows},
			{ID: g2, Name: "B", Members: memberRows},
		},
		expenses: map[uuid.UUID][]models.ExpenseRecord{
			g1: {{PaidBy: userID, Splits: []models.ExpenseSplitRecord{{UserID: counterparty, Amount: 10.00}}}},
			g2: {{PaidBy: counterparty, Splits: []models.ExpenseSplitRecord{{UserID: userID, Amount: 10.00}}}},
		},
	}
	svc := NewBalanceService(store)

	summary := svc.RefreshBalances(context.Background(), userID)
	if len(summary.Details) != 0 {
		t.Fatalf("len(Details) = %d, want 0 after the merged line netted out", len(summary.Details))
	}
	if !almostEqual(summary.TotalOwed, 10.00) || !almostEqual(summary.TotalOwing, 10.00) {
		t.Errorf("totals = (%v, %v), want (10.00, 10.00)", summary.TotalOwed, summary.TotalOwing)
	}
}

func TestFriendPrecedenceOverGroup(t *testing.T) {
	userID := uuid.New()
	counterparty := uuid.New()
	groupID := uuid.New()

	store := &fakeStore{
		friends: []models.FriendRecord{acceptedFriend(counterparty, "Casey", 5.00)},
		groups: []models.GroupRecord{{
			ID:   groupID,
			Name: "Flat",
			Members: []models.GroupMemberRecord{
				{UserID: userID},
				{UserID: counterparty, Name: "Casey"},
			},
		}},
		expenses: map[uuid.UUID][]models.ExpenseRecord{
			groupID: {{PaidBy: userID, Splits: []models.ExpenseSplitRecord{{UserID: counterparty, Amount: 50.00}}}},
		},
	}
	svc := NewBalanceService(store)

	summary := svc.RefreshBalances(context.Background(), userID)
	if len(summary.Details) != 1 {
		t.Fatalf("len(Details) = %d, want only the friend line", len(summary.Details))
	}
	if summary.Details[0].Source != models.BalanceSourceFriend {
		t.Errorf("Source = %q, want friend", summary.Details[0].Source)
	}
	if !almostEqual(summary.TotalOwed, 5.00) {
		t.Errorf("TotalOwed = %v, want 5.00 (group contribution skipped)", summary.TotalOwed)
	}
}

func TestSignTotalConsistency(t *testing.T) {
	userID := uuid.New()
	store := &fakeStore{
		friends: []models.FriendRecord{
			acceptedFriend(uuid.New(), "Ann", 12.34),
			acceptedFriend(uuid.New(), "Bob", -8.21),
			acceptedFriend(uuid.New(), "Cal", 0.50),
		},
	}
	svc := NewBalanceService(store)

	summary := svc.RefreshBalances(context.Background(), userID)
	var owed, owing float64
	for _, d := range summary.Details {
		if d.Balance > 0 {
			owed += d.Balance
		} else {
			owing += -d.Balance
		}
	}
	if !almostEqual(summary.TotalOwed, owed) {
		t.Errorf("TotalOwed = %v, sum of positive details = %v", summary.TotalOwed, owed)
	}
	if !almostEqual(summary.TotalOwing, owing) {
		t.Errorf("TotalOwing = %v, sum of |negative details| = %v", summary.TotalOwing, owing)
	}
	if !almostEqual(summary.NetBalance, summary.TotalOwed-summary.TotalOwing) {
		t.Errorf("NetBalance = %v, want %v", summary.NetBalance, summary.TotalOwed-summary.TotalOwing)
	}
}

func TestCacheFreshness(t *testing.T) {
	userID := uuid.New()
	store := &fakeStore{
		friends: []models.FriendRecord{acceptedFriend(uuid.New(), "Ann", 10.00)},
	}
	svc := NewBalanceService(store)

	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	ctx := context.Background()
	svc.GetBalances(ctx, userID, false)
	svc.GetBalances(ctx, userID, false)
	if got := store.fetchCount(); got != 1 {
		t.Fatalf("fetches after two calls within TTL = %d, want 1", got)
	}

	clock = clock.Add(6 * time.Minute)
	svc.GetBalances(ctx, userID, false)
	if got := store.fetchCount(); got != 2 {
		t.Fatalf("fetches after TTL expiry = %d, want 2", got)
	}

	svc.GetBalances(ctx, userID, true)
	if got := store.fetchCount(); got != 3 {
		t.Fatalf("fetches after forceRefresh = %d, want 3", got)
	}
}

func TestClearCacheForcesRecompute(t *testing.T) {
	userID := uuid.New()
	store := &fakeStore{}
	svc := NewBalanceService(store)

	ctx := context.Background()
	svc.GetBalances(ctx, userID, false)
	svc.ClearCache(userID)
	svc.GetBalances(ctx, userID, false)
	if got := store.fetchCount(); got != 2 {
		t.Fatalf("fetches = %d, want 2 after ClearCache", got)
	}
}

func TestFailureDegradesToCachedOrEmpty(t *testing.T) {
	userID := uuid.New()
	store := &fakeStore{
		friends: []models.FriendRecord{acceptedFriend(uuid.New(), "Ann", 10.00)},
	}
	svc := NewBalanceService(store)
	ctx := context.Background()

	good := svc.RefreshBalances(ctx, userID)
	if !almostEqual(good.TotalOwed, 10.00) {
		t.Fatalf("TotalOwed = %v, want 10.00", good.TotalOwed)
	}

	store.mu.Lock()
	store.friendsErr = context.DeadlineExceeded
	store.mu.Unlock()

	degraded := svc.RefreshBalances(ctx, userID)
	if degraded != good {
		t.Error("expected the previously cached summary on fetch failure")
	}

	svc.ClearCache(userID)
	empty := svc.RefreshBalances(ctx, userID)
	if empty == nil {
		t.Fatal("expected a zeroed summary, got nil")
	}
	if empty.TotalOwed != 0 || empty.TotalOwing != 0 || len(empty.Details) != 0 {
		t.Errorf("expected zeroed summary, got %+v", empty)
	}
}

func TestGroupFetchErrorIsolated(t *testing.T) {
	userID := uuid.New()
	okMember := uuid.New()
	badGroup := uuid.New()
	goodGroup := uuid.New()

	store := &fakeStore{
		groups: []models.GroupRecord{
			{ID: badGroup, Name: "Broken", Members: []models.GroupMemberRecord{{UserID: userID}, {UserID: uuid.New()}}},
			{ID: goodGroup, Name: "Fine", Members: []models.GroupMemberRecord{{UserID: userID}, {UserID: okMember, Name: "Okie"}}},
		},
		expenses: map[uuid.UUID][]models.ExpenseRecord{
			goodGroup: {{PaidBy: userID, Splits: []models.ExpenseSplitRecord{{UserID: okMember, Amount: 4.00}}}},
		},
		expenseErrs: map[uuid.UUID]error{badGroup: context.DeadlineExceeded},
	}
	svc := NewBalanceService(store)

	summary := svc.RefreshBalances(context.Background(), userID)
	if len(summary.Details) != 1 {
		t.Fatalf("len(Details) = %d, want 1 from the healthy group", len(summary.Details))
	}
	if !almostEqual(summary.Details[0].Balance, 4.00) {
		t.Errorf("Balance = %v, want 4.00", summary.Details[0].Balance)
	}
}

func TestListenersFilteredAndIsolated(t *testing.T) {
	userA := uuid.New()
	userB := uuid.New()
	store := &fakeStore{}
	svc := NewBalanceService(store)

	var gotA, gotB int
	unsubscribeA := svc.AddListener(userA, func(s *models.BalanceSummary) {
		if s == nil {
			t.Error("listener received nil summary")
		}
		gotA++
	})
	svc.AddListener(userA, func(*models.BalanceSummary) {
		panic("faulty subscriber")
	})
	svc.AddListener(userB, func(*models.BalanceSummary) { gotB++ })

	ctx := context.Background()
	svc.RefreshBalances(ctx, userA)
	if gotA != 1 {
		t.Errorf("userA listener calls = %d, want 1 (faulty sibling must not block delivery)", gotA)
	}
	if gotB != 0 {
		t.Errorf("userB listener calls = %d, want 0 for userA's refresh", gotB)
	}

	unsubscribeA()
	svc.RefreshBalances(ctx, userA)
	if gotA != 1 {
		t.Errorf("userA listener calls after unsubscribe = %d, want 1", gotA)
	}
}

func TestInFlightRefreshShortCircuits(t *testing.T) {
	userID := uuid.New()
	store := &fakeStore{
		friends: []models.FriendRecord{acceptedFriend(uuid.New(), "Ann", 10.00)},
	}
	svc := NewBalanceService(store)
	ctx := context.Background()

	cached := svc.RefreshBalances(ctx, userID)

	release := make(chan struct{})
	store.mu.Lock()
	store.blockFriends = release
	store.mu.Unlock()

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		close(started)
		svc.RefreshBalances(ctx, userID)
		close(done)
	}()
	<-started
	// wait until the slow refresh has claimed the in-flight flag
	for i := 0; i < 100; i++ {
		svc.mu.Lock()
		claimed := svc.refreshing
		svc.mu.Unlock()
		if claimed {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if got := svc.RefreshBalances(ctx, userID); got != cached {
		t.Error("expected the stale cached summary while a refresh is in flight")
	}

	close(release)
	<-done
}

func TestStaleRefreshDoesNotClobberNewerResult(t *testing.T) {
	userID := uuid.New()
	store := &fakeStore{
		friends: []models.FriendRecord{acceptedFriend(uuid.New(), "Ann", 10.00)},
	}
	svc := NewBalanceService(store)
	ctx := context.Background()

	release := make(chan struct{})
	store.mu.Lock()
	store.blockFriends = release
	store.mu.Unlock()

	done := make(chan struct{})
	go func() {
		svc.RefreshBalances(ctx, userID)
		close(done)
	}()
	for i := 0; i < 100; i++ {
		svc.mu.Lock()
		claimed := svc.refreshing
		svc.mu.Unlock()
		if claimed {
			break
		}
		time.Sleep(time.Millisecond)
	}

	// a newer refresh generation supersedes the one still in flight
	newer := &models.BalanceSummary{TotalOwed: 99, LastUpdated: time.Now()}
	svc.mu.Lock()
	svc.generation[userID]++
	svc.cache[userID] = newer
	svc.mu.Unlock()

	close(release)
	<-done

	svc.mu.Lock()
	got := svc.cache[userID]
	svc.mu.Unlock()
	if got != newer {
		t.Error("stale refresh overwrote a newer cache entry")
	}
}

func TestScheduleRefreshSingleSlot(t *testing.T) {
	userA := uuid.New()
	userB := uuid.New()
	store := &fakeStore{}
	svc := NewBalanceService(store)
	defer svc.Stop()

	svc.ScheduleRefresh(userA, 30*time.Millisecond)
	svc.ScheduleRefresh(userB, 10*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if store.fetchCount() > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.fetchedUsers) != 1 {
		t.Fatalf("refreshes fired = %d, want 1 (single debounce slot)", len(store.fetchedUsers))
	}
	if store.fetchedUsers[0] != userB {
		t.Errorf("refreshed user = %v, want the most recently scheduled (%v)", store.fetchedUsers[0], userB)
	}
}
