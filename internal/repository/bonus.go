package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/luckyspin/internal/model"
)

// ReferralClaimKey задаёт ключ журнала получений для реферальных бонусов.
const ReferralClaimKey = "referral"

// CampaignClaimKey возвращает ключ журнала получений для кампании.
func CampaignClaimKey(campaignID int64) string {
	return "campaign:" + strconv.FormatInt(campaignID, 10)
}

const campaignColumns = `id, bonus_name, bonus_type, amount, auto_unlock, max_claims_per_user, is_active`

func scanCampaign(row pgx.Row) (model.BonusCampaign, error) {
	var (
		c      model.BonusCampaign
		amount int64
	)
	if err := row.Scan(&c.ID, &c.BonusName, &c.BonusType, &amount, &c.AutoUnlock, &c.MaxClaimsPerUser, &c.IsActive); err != nil {
		return model.BonusCampaign{}, err
	}
	c.Amount = fromMinor(amount)
	return c, nil
}

// GetCampaign возвращает активную бонусную кампанию.
func (r *PostgresRepository) GetCampaign(ctx context.Context, id int64) (*model.BonusCampaign, error) {
	c, err := scanCampaign(r.pool.QueryRow(ctx,
		`SELECT `+campaignColumns+` FROM available_bonuses WHERE id = $1 AND is_active`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return &c, nil
}

// ListActiveCampaigns возвращает все активные бонусные кампании.
func (r *PostgresRepository) ListActiveCampaigns(ctx context.Context) ([]model.BonusCampaign, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+campaignColumns+` FROM available_bonuses WHERE is_active ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select campaigns: %w", err)
	}
	defer rows.Close()

	var res []model.BonusCampaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

const eligibilityColumns = `id, user_id, bonus_type, amount, is_available, claims_used, created_at`

func scanEligibility(row pgx.Row) (model.BonusEligibility, error) {
	var (
		e      model.BonusEligibility
		amount int64
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.BonusType, &amount, &e.IsAvailable, &e.ClaimsUsed, &e.CreatedAt); err != nil {
		return model.BonusEligibility{}, err
	}
	e.Amount = fromMinor(amount)
	return e, nil
}

// FindAvailableEligibility возвращает самое старое доступное право на бонус или nil, если его нет.
func (r *PostgresRepository) FindAvailableEligibility(ctx context.Context, userID int64, bonusType string, amount float64) (*model.BonusEligibility, error) {
	e, err := scanEligibility(r.pool.QueryRow(ctx,
		`SELECT `+eligibilityColumns+`
		 FROM user_bonus_eligibility
		 WHERE user_id = $1 AND bonus_type = $2 AND amount = $3 AND is_available
		 ORDER BY created_at ASC, id ASC
		 LIMIT 1`,
		userID, bonusType, toMinor(amount),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find eligibility: %w", err)
	}
	return &e, nil
}

// ListAvailableEligibility возвращает все доступные права игрока.
func (r *PostgresRepository) ListAvailableEligibility(ctx context.Context, userID int64) ([]model.BonusEligibility, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+eligibilityColumns+`
		 FROM user_bonus_eligibility
		 WHERE user_id = $1 AND is_available
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select eligibility: %w", err)
	}
	defer rows.Close()

	var res []model.BonusEligibility
	for rows.Next() {
		e, err := scanEligibility(rows)
		if err != nil {
			return nil, fmt.Errorf("scan eligibility: %w", err)
		}
		res = append(res, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ConsumeEligibility помечает право использованным без проверки текущего состояния.
func (r *PostgresRepository) ConsumeEligibility(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE user_bonus_eligibility SET is_available = FALSE, claims_used = 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("consume eligibility: %w", err)
	}
	return nil
}

// CountClaims возвращает число записей журнала получений по ключу.
func (r *PostgresRepository) CountClaims(ctx context.Context, userID int64, claimKey string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM bonus_claims WHERE user_id = $1 AND claim_key = $2`,
		userID, claimKey,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count claims: %w", err)
	}
	return n, nil
}

// ClaimOutcome описывает результат атомарного получения бонуса.
type ClaimOutcome struct {
	Count   int
	Amount  float64
	GrantID *int64
}

// ReferralClaim описывает запрос на получение всех неполученных реферальных бонусов.
type ReferralClaim struct {
	UserID      int64
	UnitAmount  float64
	Description string
}

// ClaimReferral начисляет все неполученные реферальные бонусы одной транзакцией БД.
// Строка профиля блокируется, единицы получения фиксируются в bonus_claims с уникальным порядковым номером.
func (r *PostgresRepository) ClaimReferral(ctx context.Context, c ReferralClaim) (*ClaimOutcome, error) {
	var out *ClaimOutcome
	err := r.withRetry(ctx, func() error {
		var err error
		out, err = r.claimReferral(ctx, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) claimReferral(ctx context.Context, c ReferralClaim) (*ClaimOutcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var friends int
	err = tx.QueryRow(ctx,
		`SELECT friends_referred FROM profiles WHERE id = $1 FOR UPDATE`,
		c.UserID,
	).Scan(&friends)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lock profile: %w", err)
	}

	var claimed int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM bonus_claims WHERE user_id = $1 AND claim_key = $2`,
		c.UserID, ReferralClaimKey,
	).Scan(&claimed)
	if err != nil {
		return nil, fmt.Errorf("count claims: %w", err)
	}

	unclaimed := friends - claimed
	if unclaimed <= 0 {
		return nil, ErrNothingToClaim
	}

	total := c.UnitAmount * float64(unclaimed)
	_, err = tx.Exec(ctx,
		`UPDATE profiles SET balance = balance + $2, total_earnings = total_earnings + $2 WHERE id = $1`,
		c.UserID, toMinor(total),
	)
	if err != nil {
		return nil, fmt.Errorf("credit balance: %w", err)
	}

	now := time.Now().UTC()
	for i := 1; i <= unclaimed; i++ {
		err := insertTransaction(ctx, tx, model.Transaction{
			UserID:      c.UserID,
			Type:        model.TransactionBonus,
			Amount:      c.UnitAmount,
			Description: c.Description,
			Status:      model.StatusCompleted,
			CreatedAt:   now,
		})
		if err != nil {
			return nil, err
		}
		if err := insertClaim(ctx, tx, c.UserID, ReferralClaimKey, claimed+i, nil, c.UnitAmount); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &ClaimOutcome{Count: unclaimed, Amount: total}, nil
}

// CampaignClaim описывает запрос на получение бонуса кампании.
type CampaignClaim struct {
	UserID      int64
	BonusType   string
	Campaign    model.BonusCampaign
	Description string
}

// ClaimCampaign начисляет бонус кампании одной транзакцией БД.
// Сначала расходуется самое старое доступное право (условным UPDATE), иначе для автоматических
// кампаний проверяется лимит по журналу получений.
func (r *PostgresRepository) ClaimCampaign(ctx context.Context, c CampaignClaim) (*ClaimOutcome, error) {
	var out *ClaimOutcome
	err := r.withRetry(ctx, func() error {
		var err error
		out, err = r.claimCampaign(ctx, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PostgresRepository) claimCampaign(ctx context.Context, c CampaignClaim) (*ClaimOutcome, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var dummy int
	err = tx.QueryRow(ctx, `SELECT 1 FROM profiles WHERE id = $1 FOR UPDATE`, c.UserID).Scan(&dummy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lock profile: %w", err)
	}

	var grantID *int64
	var id int64
	err = tx.QueryRow(ctx,
		`UPDATE user_bonus_eligibility SET is_available = FALSE, claims_used = 1
		 WHERE id = (
		     SELECT id FROM user_bonus_eligibility
		     WHERE user_id = $1 AND bonus_type = $2 AND amount = $3 AND is_available
		     ORDER BY created_at ASC, id ASC
		     LIMIT 1
		     FOR UPDATE SKIP LOCKED
		 ) AND is_available
		 RETURNING id`,
		c.UserID, c.BonusType, toMinor(c.Campaign.Amount),
	).Scan(&id)
	switch {
	case err == nil:
		grantID = &id
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return nil, fmt.Errorf("consume eligibility: %w", err)
	}

	key := CampaignClaimKey(c.Campaign.ID)
	var claimed int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM bonus_claims WHERE user_id = $1 AND claim_key = $2`,
		c.UserID, key,
	).Scan(&claimed)
	if err != nil {
		return nil, fmt.Errorf("count claims: %w", err)
	}

	if grantID == nil {
		if !c.Campaign.AutoUnlock {
			return nil, ErrNoEligibility
		}
		if claimed >= c.Campaign.MaxClaims() {
			return nil, ErrClaimLimitReached
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE profiles SET balance = balance + $2 WHERE id = $1`,
		c.UserID, toMinor(c.Campaign.Amount),
	)
	if err != nil {
		return nil, fmt.Errorf("credit balance: %w", err)
	}

	err = insertTransaction(ctx, tx, model.Transaction{
		UserID:      c.UserID,
		Type:        model.TransactionBonus,
		Amount:      c.Campaign.Amount,
		Description: c.Description,
		Status:      model.StatusCompleted,
	})
	if err != nil {
		return nil, err
	}

	if err := insertClaim(ctx, tx, c.UserID, key, claimed+1, grantID, c.Campaign.Amount); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &ClaimOutcome{Count: 1, Amount: c.Campaign.Amount, GrantID: grantID}, nil
}

func insertClaim(ctx context.Context, tx pgx.Tx, userID int64, key string, seq int, grantID *int64, amount float64) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO bonus_claims (id, user_id, claim_key, seq, grant_id, amount)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), userID, key, seq, grantID, toMinor(amount),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrClaimLimitReached
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

// SyncClaimLedger дописывает в журнал получений единицы, которые видны только по описаниям операций
// (например, записанные в режиме legacy). Уже учтённые порядковые номера пропускаются.
func (r *PostgresRepository) SyncClaimLedger(ctx context.Context) (int64, error) {
	var total int64
	err := r.withRetry(ctx, func() error {
		total = 0
		for _, q := range []string{syncReferralClaimsSQL, syncCampaignClaimsSQL} {
			tag, err := r.pool.Exec(ctx, q)
			if err != nil {
				return fmt.Errorf("sync claim ledger: %w", err)
			}
			total += tag.RowsAffected()
		}
		return nil
	})
	return total, err
}

const syncReferralClaimsSQL = `
INSERT INTO bonus_claims (id, user_id, claim_key, seq, amount, created_at)
SELECT gen_random_uuid(), t.user_id, 'referral',
       ROW_NUMBER() OVER (PARTITION BY t.user_id ORDER BY t.created_at, t.id),
       t.amount, t.created_at
FROM transactions t
WHERE t.type = 'bonus'
  AND (t.description IN ('Referral Bonus Claim', 'Referral Bonus: Claimed success referral')
       OR LOWER(t.description) = 'referral bonus claim')
ON CONFLICT ON CONSTRAINT bonus_claims_unit_unique DO NOTHING`

const syncCampaignClaimsSQL = `
INSERT INTO bonus_claims (id, user_id, claim_key, seq, amount, created_at)
SELECT gen_random_uuid(), t.user_id, 'campaign:' || b.id,
       ROW_NUMBER() OVER (PARTITION BY t.user_id, b.id ORDER BY t.created_at, t.id),
       t.amount, t.created_at
FROM transactions t
JOIN available_bonuses b
  ON t.description IN ('Claimed Bonus: ' || b.bonus_name, b.bonus_name || ' Bonus Claimed', b.bonus_name)
WHERE t.type = 'bonus'
ON CONFLICT ON CONSTRAINT bonus_claims_unit_unique DO NOTHING`
