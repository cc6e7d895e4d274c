package bonus

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/mmeshcher/luckyspin/internal/lock"
	"github.com/mmeshcher/luckyspin/internal/metrics"
	"github.com/mmeshcher/luckyspin/internal/model"
	"github.com/mmeshcher/luckyspin/internal/repository"
)

type stubStore struct {
	mu sync.Mutex

	settings    *model.SiteSettings
	settingsErr error

	profile *model.User

	history []model.Transaction
	inserts []model.Transaction

	campaigns map[int64]*model.BonusCampaign
	grants    []model.BonusEligibility
	consumed  []int64

	earningsErr   error
	earningsCalls int
}

func (s *stubStore) GetSiteSettings(ctx context.Context) (*model.SiteSettings, error) {
	return s.settings, s.settingsErr
}

func (s *stubStore) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	if s.profile == nil {
		return nil, repository.ErrUserNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *s.profile
	return &u, nil
}

func (s *stubStore) ListTransactionsByType(ctx context.Context, userID int64, txType model.TransactionType) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]model.Transaction, 0, len(s.history)+len(s.inserts))
	res = append(res, s.history...)
	res = append(res, s.inserts...)
	return res, nil
}

func (s *stubStore) InsertTransactions(ctx context.Context, txs ...model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts = append(s.inserts, txs...)
	return nil
}

func (s *stubStore) UpdateTotalEarnings(ctx context.Context, userID int64, total float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.earningsCalls++
	if s.earningsErr != nil {
		return s.earningsErr
	}
	s.profile.TotalEarnings = total
	return nil
}

func (s *stubStore) GetCampaign(ctx context.Context, id int64) (*model.BonusCampaign, error) {
	c, ok := s.campaigns[id]
	if !ok {
		return nil, repository.ErrCampaignNotFound
	}
	return c, nil
}

func (s *stubStore) FindAvailableEligibility(ctx context.Context, userID int64, bonusType string, amount float64) (*model.BonusEligibility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.grants {
		if g.IsAvailable && g.BonusType == bonusType && g.Amount == amount {
			g := g
			return &g, nil
		}
	}
	return nil, nil
}

func (s *stubStore) ConsumeEligibility(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumed = append(s.consumed, id)
	for i := range s.grants {
		if s.grants[i].ID == id {
			s.grants[i].IsAvailable = false
			s.grants[i].ClaimsUsed = 1
		}
	}
	return nil
}

type stubBalance struct {
	mu     sync.Mutex
	deltas []float64
	err    error
}

func (b *stubBalance) AddToBalance(ctx context.Context, userID int64, delta float64) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return 0, b.err
	}
	b.deltas = append(b.deltas, delta)
	return delta, nil
}

func (b *stubBalance) total() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var sum float64
	for _, d := range b.deltas {
		sum += d
	}
	return sum
}

type stubLedger struct {
	referral    *repository.ClaimOutcome
	referralErr error
	campaign    *repository.ClaimOutcome
	campaignErr error

	lastReferral repository.ReferralClaim
	lastCampaign repository.CampaignClaim
}

func (l *stubLedger) ClaimReferral(ctx context.Context, c repository.ReferralClaim) (*repository.ClaimOutcome, error) {
	l.lastReferral = c
	return l.referral, l.referralErr
}

func (l *stubLedger) ClaimCampaign(ctx context.Context, c repository.CampaignClaim) (*repository.ClaimOutcome, error) {
	l.lastCampaign = c
	return l.campaign, l.campaignErr
}

func bonusTx(desc string, amount float64) model.Transaction {
	return model.Transaction{UserID: 1, Type: model.TransactionBonus, Amount: amount, Description: desc, Status: model.StatusCompleted}
}

func TestClaimReferral_ClaimsOnlyUnclaimed(t *testing.T) {
	store := &stubStore{
		settings: &model.SiteSettings{ReferralBonus: 50},
		profile:  &model.User{ID: 1, FriendsReferred: 3, TotalEarnings: 10},
		history: []model.Transaction{
			bonusTx("Referral Bonus Claim", 50),
			bonusTx("Claimed Bonus: Welcome", 100),
		},
	}
	balance := &stubBalance{}
	r := NewReconciler(store, balance, nil, zap.NewNop())

	res, err := r.Claim(context.Background(), 1, ClaimRequest{BonusType: ReferralBonusType})
	require.NoError(t, err)

	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 100.0, res.Amount)
	assert.Equal(t, "Congratulations! You have successfully claimed 2 referral bonus(es) total of ৳100!", res.Message)

	assert.Equal(t, []float64{100}, balance.deltas)
	require.Len(t, store.inserts, 2)
	for _, tx := range store.inserts {
		assert.Equal(t, 50.0, tx.Amount)
		assert.Equal(t, ReferralClaimDescription, tx.Description)
		assert.Equal(t, model.StatusCompleted, tx.Status)
		assert.Equal(t, model.TransactionBonus, tx.Type)
	}
	assert.Equal(t, 110.0, store.profile.TotalEarnings)
}

func TestClaimReferral_NothingToClaimHasNoSideEffects(t *testing.T) {
	store := &stubStore{
		settings: &model.SiteSettings{ReferralBonus: 50},
		profile:  &model.User{ID: 1, FriendsReferred: 2},
		history: []model.Transaction{
			bonusTx("Referral Bonus: Claimed success referral", 50),
			bonusTx("REFERRAL BONUS CLAIM", 50),
		},
	}
	balance := &stubBalance{}
	r := NewReconciler(store, balance, nil, zap.NewNop())

	_, err := r.Claim(context.Background(), 1, ClaimRequest{BonusType: ReferralBonusType})
	require.ErrorIs(t, err, ErrNothingToClaim)

	msg, ok := RejectionMessage(err)
	assert.True(t, ok)
	assert.Equal(t, "No pending referral bonuses to claim!", msg)

	assert.Empty(t, balance.deltas)
	assert.Empty(t, store.inserts)
	assert.Zero(t, store.earningsCalls)
}

func TestClaimReferral_SilentRejection(t *testing.T) {
	store := &stubStore{
		settings: &model.SiteSettings{ReferralBonus: 50},
		profile:  &model.User{ID: 1},
	}
	r := NewReconciler(store, &stubBalance{}, nil, zap.NewNop())

	res, err := r.Claim(context.Background(), 1, ClaimRequest{BonusType: ReferralBonusType, Silent: true})
	require.NoError(t, err)
	assert.True(t, res.Rejected)
	assert.Equal(t, "nothing_to_claim", res.Reason)
	assert.Empty(t, res.Message)
}

func TestClaimReferral_SilentSuccessHasNoMessage(t *testing.T) {
	store := &stubStore{
		settings: &model.SiteSettings{ReferralBonus: 20},
		profile:  &model.User{ID: 1, FriendsReferred: 1},
	}
	balance := &stubBalance{}
	r := NewReconciler(store, balance, nil, zap.NewNop())

	res, err := r.Claim(context.Background(), 1, ClaimRequest{BonusType: ReferralBonusType, Silent: true})
	require.NoError(t, err)
	assert.False(t, res.Rejected)
	assert.Empty(t, res.Message)
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, []float64{20}, balance.deltas)
	assert.Len(t, store.inserts, 1)
}

func TestClaimReferral_TotalEarningsFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	store := &stubStore{
		settings:    &model.SiteSettings{ReferralBonus: 50},
		profile:     &model.User{ID: 1, FriendsReferred: 1},
		earningsErr: errors.New(`column "total_earnings" does not exist`),
	}
	balance := &stubBalance{}
	r := NewReconciler(store, balance, nil, zap.New(core))

	res, err := r.Claim(context.Background(), 1, ClaimRequest{BonusType: ReferralBonusType})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)
	assert.Len(t, store.inserts, 1)

	entries := logs.FilterMessage("total earnings not updated after referral claim").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestClaimReferral_BalanceFailureAbortsInserts(t *testing.T) {
	store := &stubStore{
		settings: &model.SiteSettings{ReferralBonus: 50},
		profile:  &model.User{ID: 1, FriendsReferred: 1},
	}
	r := NewReconciler(store, &stubBalance{err: errors.New("connection reset")}, nil, zap.NewNop())

	_, err := r.Claim(context.Background(), 1, ClaimRequest{BonusType: ReferralBonusType})
	require.Error(t, err)
	_, rejected := RejectionMessage(err)
	assert.False(t, rejected)
	assert.Empty(t, store.inserts)
}

func TestClaimCampaign_AutoUnlockStopsAtMax(t *testing.T) {
	camp := &model.BonusCampaign{ID: 7, BonusName: "Weekend", BonusType: "weekend", Amount: 200, AutoUnlock: true, MaxClaimsPerUser: 2}
	store := &stubStore{
		campaigns: map[int64]*model.BonusCampaign{7: camp},
		history: []model.Transaction{
			bonusTx("Claimed Bonus: Weekend", 200),
			bonusTx("Weekend Bonus Claimed", 200),
		},
	}
	balance := &stubBalance{}
	r := NewReconciler(store, balance, nil, zap.NewNop())

	_, err := r.Claim(context.Background(), 1, ClaimRequest{BonusType: "weekend", CampaignID: 7})
	require.ErrorIs(t, err, ErrMaxClaimsReached)

	msg, _ := RejectionMessage(err)
	assert.Equal(t, "Maximum claims reached.", msg)
	assert.Empty(t, balance.deltas)
	assert.Empty(t, store.inserts)
}

func TestClaimCampaign_AutoUnlockSucceedsBelowMax(t *testing.T) {
	camp := &model.BonusCampaign{ID: 7, BonusName: "Weekend", BonusType: "weekend", Amount: 200, AutoUnlock: true, MaxClaimsPerUser: 2}
	store := &stubStore{
		campaigns: map[int64]*model.BonusCampaign{7: camp},
		history:   []model.Transaction{bonusTx("Weekend", 200)},
	}
	balance := &stubBalance{}
	r := NewReconciler(store, balance, nil, zap.NewNop())

	res, err := r.Claim(context.Background(), 1, ClaimRequest{BonusType: "weekend", CampaignID: 7})
	require.NoError(t, err)
	assert.Equal(t, "Congratulations! You have successfully claimed ৳200 Weekend!", res.Message)
	assert.Equal(t, "Weekend", res.CampaignName)

	_, err = r.Claim(context.Background(), 1, ClaimRequest{BonusType: "weekend", CampaignID: 7})
	require.ErrorIs(t, err, ErrMaxClaimsReached)

	assert.Equal(t, []float64{200}, balance.deltas)
	require.Len(t, store.inserts, 1)
	assert.Equal(t, "Claimed Bonus: Weekend", store.inserts[0].Description)
}

func TestClaimCampaign_ManualGrantIsConsumedOnce(t *testing.T) {
	camp := &model.BonusCampaign{ID: 3, BonusName: "VIP Gift", BonusType: "vip_gift", Amount: 500}
	store := &stubStore{
		campaigns: map[int64]*model.BonusCampaign{3: camp},
		grants: []model.BonusEligibility{
			{ID: 11, UserID: 1, BonusType: "vip_gift", Amount: 500, IsAvailable: true},
			{ID: 12, UserID: 1, BonusType: "vip_gift", Amount: 100, IsAvailable: true},
		},
	}
	balance := &stubBalance{}
	r := NewReconciler(store, balance, nil, zap.NewNop())

	_, err := r.Claim(context.Background(), 1, ClaimRequest{BonusType: "vip_gift", CampaignID: 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, store.consumed)
	assert.False(t, store.grants[0].IsAvailable)
	assert.Equal(t, 1, store.grants[0].ClaimsUsed)
	assert.True(t, store.grants[1].IsAvailable, "grant with another amount is untouched")

	_, err = r.Claim(context.Background(), 1, ClaimRequest{BonusType: "vip_gift", CampaignID: 3})
	require.ErrorIs(t, err, ErrGrantConsumed)

	msg, _ := RejectionMessage(err)
	assert.Equal(t, "You have already claimed your available grant. Ask an admin for a re-grant!", msg)
	assert.Equal(t, []float64{500}, balance.deltas)
}

func TestClaimCampaign_BonusTypeFallsBackToCampaign(t *testing.T) {
	camp := &model.BonusCampaign{ID: 3, BonusName: "VIP Gift", BonusType: "vip_gift", Amount: 500}
	store := &stubStore{
		campaigns: map[int64]*model.BonusCampaign{3: camp},
		grants:    []model.BonusEligibility{{ID: 11, BonusType: "vip_gift", Amount: 500, IsAvailable: true}},
	}
	r := NewReconciler(store, &stubBalance{}, nil, zap.NewNop())

	_, err := r.Claim(context.Background(), 1, ClaimRequest{CampaignID: 3})
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, store.consumed)
}

func TestClaimCampaign_NotFound(t *testing.T) {
	store := &stubStore{campaigns: map[int64]*model.BonusCampaign{}}
	r := NewReconciler(store, &stubBalance{}, nil, zap.NewNop())

	_, err := r.Claim(context.Background(), 1, ClaimRequest{BonusType: "x", CampaignID: 99})
	require.ErrorIs(t, err, ErrCampaignNotFound)

	_, err = r.Claim(context.Background(), 1, ClaimRequest{BonusType: "x"})
	require.ErrorIs(t, err, ErrCampaignRequired)
}

func TestClaim_ConcurrentClicksAreSerialized(t *testing.T) {
	store := &stubStore{
		settings: &model.SiteSettings{ReferralBonus: 50},
		profile:  &model.User{ID: 1, FriendsReferred: 2},
	}
	balance := &stubBalance{}
	r := NewReconciler(store, balance, lock.NewUserLock(), zap.NewNop())

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejects   int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Claim(context.Background(), 1, ClaimRequest{BonusType: ReferralBonusType})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
			} else if errors.Is(err, ErrNothingToClaim) {
				rejects++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, 7, rejects)
	assert.Equal(t, 100.0, balance.total())
	assert.Len(t, store.inserts, 2)
}

func TestLedger_Referral(t *testing.T) {
	store := &stubStore{settings: &model.SiteSettings{ReferralBonus: 50}}
	ledger := &stubLedger{referral: &repository.ClaimOutcome{Count: 2, Amount: 100}}
	balance := &stubBalance{}
	m := metrics.New()

	r := NewReconciler(store, balance, nil, zap.NewNop())
	r.UseLedger(ledger)
	r.SetMetrics(m)
	assert.Equal(t, StrategyLedger, r.Strategy())

	res, err := r.Claim(context.Background(), 5, ClaimRequest{BonusType: ReferralBonusType})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Count)
	assert.Equal(t, 100.0, res.Amount)

	assert.Equal(t, int64(5), ledger.lastReferral.UserID)
	assert.Equal(t, 50.0, ledger.lastReferral.UnitAmount)
	assert.Equal(t, ReferralClaimDescription, ledger.lastReferral.Description)
	assert.Empty(t, balance.deltas, "ledger credits inside its own transaction")
	assert.Equal(t, 1.0, m.ClaimCount("referral", "ledger", metrics.OutcomeSuccess))

	ledger.referralErr = repository.ErrNothingToClaim
	_, err = r.Claim(context.Background(), 5, ClaimRequest{BonusType: ReferralBonusType})
	require.ErrorIs(t, err, ErrNothingToClaim)
	assert.Equal(t, 1.0, m.ClaimCount("referral", "ledger", metrics.OutcomeRejected))
}

func TestLedger_CampaignErrorMapping(t *testing.T) {
	auto := &model.BonusCampaign{ID: 1, BonusName: "Daily", BonusType: "daily", Amount: 10, AutoUnlock: true}
	manual := &model.BonusCampaign{ID: 2, BonusName: "Gift", BonusType: "gift", Amount: 10}
	store := &stubStore{campaigns: map[int64]*model.BonusCampaign{1: auto, 2: manual}}

	tests := []struct {
		name       string
		campaignID int64
		ledgerErr  error
		want       error
	}{
		{"auto limit", 1, repository.ErrClaimLimitReached, ErrMaxClaimsReached},
		{"manual no grant", 2, repository.ErrNoEligibility, ErrGrantConsumed},
		{"manual race lost", 2, repository.ErrClaimLimitReached, ErrGrantConsumed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &stubLedger{campaignErr: tt.ledgerErr}
			r := NewReconciler(store, &stubBalance{}, nil, zap.NewNop())
			r.UseLedger(ledger)

			_, err := r.Claim(context.Background(), 1, ClaimRequest{CampaignID: tt.campaignID})
			require.ErrorIs(t, err, tt.want)
		})
	}

	ledger := &stubLedger{campaign: &repository.ClaimOutcome{Count: 1, Amount: 10}}
	r := NewReconciler(store, &stubBalance{}, nil, zap.NewNop())
	r.UseLedger(ledger)

	res, err := r.Claim(context.Background(), 1, ClaimRequest{BonusType: "daily", CampaignID: 1})
	require.NoError(t, err)
	assert.Equal(t, "Daily", res.CampaignName)
	assert.Equal(t, "Claimed Bonus: Daily", ledger.lastCampaign.Description)
	assert.Equal(t, "daily", ledger.lastCampaign.BonusType)
}

func TestClaimReferral_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		friends := rapid.IntRange(0, 20).Draw(t, "friends")
		prior := rapid.IntRange(0, 20).Draw(t, "prior")
		noise := rapid.IntRange(0, 5).Draw(t, "noise")
		unit := float64(rapid.IntRange(0, 1000).Draw(t, "unit"))

		variants := []string{"Referral Bonus Claim", "Referral Bonus: Claimed success referral", "referral BONUS claim"}
		var history []model.Transaction
		for i := 0; i < prior; i++ {
			history = append(history, bonusTx(variants[i%len(variants)], unit))
		}
		for i := 0; i < noise; i++ {
			history = append(history, bonusTx("Referral Bonus", unit))
		}

		store := &stubStore{
			settings: &model.SiteSettings{ReferralBonus: unit},
			profile:  &model.User{ID: 1, FriendsReferred: friends},
			history:  history,
		}
		balance := &stubBalance{}
		r := NewReconciler(store, balance, nil, zap.NewNop())

		res, err := r.Claim(context.Background(), 1, ClaimRequest{BonusType: ReferralBonusType})

		want := friends - prior
		if want <= 0 {
			if !errors.Is(err, ErrNothingToClaim) {
				t.Fatalf("expected ErrNothingToClaim, got %v", err)
			}
			if len(balance.deltas) != 0 || len(store.inserts) != 0 {
				t.Fatalf("rejected claim mutated state")
			}
			return
		}

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.Count != want || len(store.inserts) != want {
			t.Fatalf("count = %d, inserts = %d, want %d", res.Count, len(store.inserts), want)
		}
		if balance.total() != unit*float64(want) {
			t.Fatalf("credited %v, want %v", balance.total(), unit*float64(want))
		}
		if !strings.Contains(res.Message, FormatAmount(unit*float64(want))) {
			t.Fatalf("message %q lacks amount", res.Message)
		}
	})
}
