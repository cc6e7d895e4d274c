package repository

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mmeshcher/luckyspin/internal/model"
)

func checkDockerAvailable() bool {
	return exec.Command("docker", "info").Run() == nil
}

// setupTestRepo поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestRepo(t *testing.T) *PostgresRepository {
	t.Helper()
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("luckyspin"),
		postgres.WithUsername("luckyspin"),
		postgres.WithPassword("luckyspin"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	repo, err := NewPostgresRepository(connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func createProfile(t *testing.T, repo *PostgresRepository, name, code, invitedBy string) *model.User {
	t.Helper()
	u, err := repo.CreateProfile(context.Background(), NewProfile{
		Username:     name,
		Mobile:       "017" + code,
		PasswordHash: []byte("hash"),
		ReferralCode: code,
		InvitedBy:    invitedBy,
	})
	require.NoError(t, err)
	return u
}

func insertCampaign(t *testing.T, repo *PostgresRepository, name string, amount float64, autoUnlock bool, maxClaims int) model.BonusCampaign {
	t.Helper()
	var id int64
	err := repo.pool.QueryRow(context.Background(),
		`INSERT INTO available_bonuses (bonus_name, bonus_type, amount, auto_unlock, max_claims_per_user)
		 VALUES ($1, $1, $2, $3, $4) RETURNING id`,
		name, toMinor(amount), autoUnlock, maxClaims,
	).Scan(&id)
	require.NoError(t, err)

	c, err := repo.GetCampaign(context.Background(), id)
	require.NoError(t, err)
	return *c
}

func TestPostgresRepository(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	t.Run("profiles", func(t *testing.T) {
		alice := createProfile(t, repo, "alice", "ALICE234", "")
		assert.Equal(t, model.TierBronze, alice.VIPLevel)
		assert.Zero(t, alice.Balance)

		_, err := repo.CreateProfile(ctx, NewProfile{
			Username: "alice", Mobile: "01799999999", PasswordHash: []byte("x"), ReferralCode: "OTHER234",
		})
		assert.ErrorIs(t, err, ErrUserExists)

		_, err = repo.CreateProfile(ctx, NewProfile{
			Username: "carol", Mobile: "01788888888", PasswordHash: []byte("x"), ReferralCode: "CAROL234", InvitedBy: "NOPE2345",
		})
		assert.ErrorIs(t, err, ErrReferralCodeNotFound)

		byMobile, err := repo.GetProfileByIdentifier(ctx, "017ALICE234")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, byMobile.ID)

		_, err = repo.GetProfile(ctx, 999999)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("balance never goes negative", func(t *testing.T) {
		u := createProfile(t, repo, "bob", "BOBB2345", "")

		balance, err := repo.AddToBalance(ctx, u.ID, 150.5)
		require.NoError(t, err)
		assert.InDelta(t, 150.5, balance, 0.001)

		_, err = repo.AddToBalance(ctx, u.ID, -200)
		assert.ErrorIs(t, err, ErrInsufficientBalance)

		balance, err = repo.AddToBalance(ctx, u.ID, -150.5)
		require.NoError(t, err)
		assert.Zero(t, balance)

		_, err = repo.AddToBalance(ctx, 999999, 10)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("referral claims are counted once", func(t *testing.T) {
		referrer := createProfile(t, repo, "dave", "DAVE2345", "")
		createProfile(t, repo, "erin", "ERIN2345", "DAVE2345")
		createProfile(t, repo, "frank", "FRNK2345", "DAVE2345")

		out, err := repo.ClaimReferral(ctx, ReferralClaim{UserID: referrer.ID, UnitAmount: 50, Description: "Referral Bonus Claim"})
		require.NoError(t, err)
		assert.Equal(t, 2, out.Count)
		assert.InDelta(t, 100, out.Amount, 0.001)

		_, err = repo.ClaimReferral(ctx, ReferralClaim{UserID: referrer.ID, UnitAmount: 50, Description: "Referral Bonus Claim"})
		assert.ErrorIs(t, err, ErrNothingToClaim)

		u, err := repo.GetProfile(ctx, referrer.ID)
		require.NoError(t, err)
		assert.InDelta(t, 100, u.Balance, 0.001)
		assert.InDelta(t, 100, u.TotalEarnings, 0.001)

		txs, err := repo.ListTransactionsByType(ctx, referrer.ID, model.TransactionBonus)
		require.NoError(t, err)
		assert.Len(t, txs, 2)

		n, err := repo.CountClaims(ctx, referrer.ID, ReferralClaimKey)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("concurrent referral claims credit once", func(t *testing.T) {
		referrer := createProfile(t, repo, "gina", "GINA2345", "")
		createProfile(t, repo, "hank", "HANK2345", "GINA2345")

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.ClaimReferral(ctx, ReferralClaim{UserID: referrer.ID, UnitAmount: 20, Description: "Referral Bonus Claim"})
				if err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
					return
				}
				if !errors.Is(err, ErrNothingToClaim) && !errors.Is(err, ErrClaimLimitReached) {
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		u, err := repo.GetProfile(ctx, referrer.ID)
		require.NoError(t, err)
		assert.InDelta(t, 20, u.Balance, 0.001)
	})

	t.Run("auto unlock campaign respects the limit", func(t *testing.T) {
		u := createProfile(t, repo, "ivan", "IVAN2345", "")
		c := insertCampaign(t, repo, "Welcome", 25, true, 1)

		out, err := repo.ClaimCampaign(ctx, CampaignClaim{UserID: u.ID, BonusType: c.BonusType, Campaign: c, Description: "Claimed Bonus: Welcome"})
		require.NoError(t, err)
		assert.Nil(t, out.GrantID)

		_, err = repo.ClaimCampaign(ctx, CampaignClaim{UserID: u.ID, BonusType: c.BonusType, Campaign: c, Description: "Claimed Bonus: Welcome"})
		assert.ErrorIs(t, err, ErrClaimLimitReached)
	})

	t.Run("manual campaign consumes one grant per claim", func(t *testing.T) {
		u := createProfile(t, repo, "judy", "JUDY2345", "")
		c := insertCampaign(t, repo, "Cashback", 40, false, 1)

		_, err := repo.ClaimCampaign(ctx, CampaignClaim{UserID: u.ID, BonusType: c.BonusType, Campaign: c, Description: "Claimed Bonus: Cashback"})
		assert.ErrorIs(t, err, ErrNoEligibility)

		_, err = repo.pool.Exec(ctx,
			`INSERT INTO user_bonus_eligibility (user_id, bonus_type, amount) VALUES ($1, $2, $3)`,
			u.ID, c.BonusType, toMinor(c.Amount),
		)
		require.NoError(t, err)

		grants, err := repo.ListAvailableEligibility(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, grants, 1)

		out, err := repo.ClaimCampaign(ctx, CampaignClaim{UserID: u.ID, BonusType: c.BonusType, Campaign: c, Description: "Claimed Bonus: Cashback"})
		require.NoError(t, err)
		require.NotNil(t, out.GrantID)
		assert.Equal(t, grants[0].ID, *out.GrantID)

		_, err = repo.ClaimCampaign(ctx, CampaignClaim{UserID: u.ID, BonusType: c.BonusType, Campaign: c, Description: "Claimed Bonus: Cashback"})
		assert.ErrorIs(t, err, ErrNoEligibility)

		grants, err = repo.ListAvailableEligibility(ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, grants)
	})

	t.Run("ledger sync picks up legacy claims", func(t *testing.T) {
		u := createProfile(t, repo, "kate", "KATE2345", "")
		err := repo.InsertTransactions(ctx, model.Transaction{
			UserID:      u.ID,
			Type:        model.TransactionBonus,
			Amount:      50,
			Description: "Referral Bonus: Claimed success referral",
			Status:      model.StatusCompleted,
		})
		require.NoError(t, err)

		synced, err := repo.SyncClaimLedger(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, synced, int64(1))

		n, err := repo.CountClaims(ctx, u.ID, ReferralClaimKey)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		synced, err = repo.SyncClaimLedger(ctx)
		require.NoError(t, err)
		assert.Zero(t, synced)
	})

	t.Run("content", func(t *testing.T) {
		_, err := repo.pool.Exec(ctx,
			`UPDATE site_settings SET site_logo_text = 'Lucky Spin', referral_bonus = $1 WHERE id = 1`,
			toMinor(50),
		)
		require.NoError(t, err)

		settings, err := repo.GetSiteSettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Lucky Spin", settings.SiteLogoText)
		assert.InDelta(t, 50, settings.ReferralBonus, 0.001)

		_, err = repo.pool.Exec(ctx,
			`INSERT INTO games (name, is_active) VALUES ('Aviator', TRUE), ('Retired', FALSE)`,
		)
		require.NoError(t, err)

		games, err := repo.ListActiveGames(ctx)
		require.NoError(t, err)
		require.Len(t, games, 1)
		assert.Equal(t, "Aviator", games[0].Name)
	})
}
