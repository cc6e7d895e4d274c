// Package bonus реализует получение реферальных бонусов и бонусов кампаний.
//
// Поддерживаются две стратегии. legacy повторяет исходную последовательность
// "прочитать, проверить, записать" и определяет уже полученные бонусы по описаниям операций.
// ledger выполняет каждое получение одной транзакцией БД с журналом bonus_claims,
// поэтому параллельные попытки для одной единицы права дают ровно один успех.
package bonus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/luckyspin/internal/lock"
	"github.com/mmeshcher/luckyspin/internal/metrics"
	"github.com/mmeshcher/luckyspin/internal/model"
	"github.com/mmeshcher/luckyspin/internal/repository"
)

var (
	ErrNothingToClaim   = errors.New("no pending referral bonuses")
	ErrCampaignNotFound = errors.New("bonus campaign not found or inactive")
	ErrMaxClaimsReached = errors.New("maximum claims reached")
	ErrGrantConsumed    = errors.New("eligibility grant already consumed")
	ErrCampaignRequired = errors.New("campaign id is required")
)

var rejections = map[error]struct {
	code    string
	message string
}{
	ErrNothingToClaim:   {"nothing_to_claim", "No pending referral bonuses to claim!"},
	ErrCampaignNotFound: {"campaign_not_found", "Bonus campaign not found or inactive."},
	ErrMaxClaimsReached: {"max_claims_reached", "Maximum claims reached."},
	ErrGrantConsumed:    {"grant_consumed", "You have already claimed your available grant. Ask an admin for a re-grant!"},
}

// RejectionMessage возвращает текст отказа для пользователя. ok=false для ошибок, не являющихся отказом.
func RejectionMessage(err error) (msg string, ok bool) {
	for target, r := range rejections {
		if errors.Is(err, target) {
			return r.message, true
		}
	}
	return "", false
}

func rejectionCode(err error) (string, bool) {
	for target, r := range rejections {
		if errors.Is(err, target) {
			return r.code, true
		}
	}
	return "", false
}

// Strategy определяет способ защиты от повторного получения.
type Strategy string

const (
	StrategyLedger Strategy = "ledger"
	StrategyLegacy Strategy = "legacy"
)

// Store описывает операции хранилища, нужные для получения бонусов.
type Store interface {
	GetSiteSettings(ctx context.Context) (*model.SiteSettings, error)
	GetProfile(ctx context.Context, userID int64) (*model.User, error)
	ListTransactionsByType(ctx context.Context, userID int64, txType model.TransactionType) ([]model.Transaction, error)
	InsertTransactions(ctx context.Context, txs ...model.Transaction) error
	UpdateTotalEarnings(ctx context.Context, userID int64, total float64) error
	GetCampaign(ctx context.Context, id int64) (*model.BonusCampaign, error)
	FindAvailableEligibility(ctx context.Context, userID int64, bonusType string, amount float64) (*model.BonusEligibility, error)
	ConsumeEligibility(ctx context.Context, id int64) error
}

// Ledger описывает атомарные операции получения с журналом.
type Ledger interface {
	ClaimReferral(ctx context.Context, c repository.ReferralClaim) (*repository.ClaimOutcome, error)
	ClaimCampaign(ctx context.Context, c repository.CampaignClaim) (*repository.ClaimOutcome, error)
}

// BalanceProvider изменяет баланс игрока.
type BalanceProvider interface {
	AddToBalance(ctx context.Context, userID int64, delta float64) (float64, error)
}

// ClaimRequest описывает запрос на получение бонуса.
type ClaimRequest struct {
	BonusType  string `json:"bonus_type"`
	CampaignID int64  `json:"campaign_id,omitempty"`
	Silent     bool   `json:"silent,omitempty"`
}

// Result описывает итог получения бонуса.
type Result struct {
	Count        int     `json:"count"`
	Amount       float64 `json:"amount"`
	CampaignName string  `json:"campaign_name,omitempty"`
	Message      string  `json:"message,omitempty"`
	Rejected     bool    `json:"rejected,omitempty"`
	Reason       string  `json:"reason,omitempty"`
}

// Reconciler превращает неполученные права на бонус в начисление на баланс и запись в журнале операций.
type Reconciler struct {
	store    Store
	ledger   Ledger
	balance  BalanceProvider
	locks    *lock.UserLock
	logger   *zap.Logger
	metrics  *metrics.Metrics
	strategy Strategy
}

// NewReconciler создаёт обработчик в режиме legacy. Для режима ledger вызовите UseLedger.
func NewReconciler(store Store, balance BalanceProvider, locks *lock.UserLock, logger *zap.Logger) *Reconciler {
	if locks == nil {
		locks = lock.NewUserLock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		store:    store,
		balance:  balance,
		locks:    locks,
		logger:   logger,
		strategy: StrategyLegacy,
	}
}

// UseLedger переключает обработчик на атомарные операции с журналом получений.
func (r *Reconciler) UseLedger(l Ledger) {
	r.ledger = l
	r.strategy = StrategyLedger
}

// SetMetrics подключает счётчики получений.
func (r *Reconciler) SetMetrics(m *metrics.Metrics) {
	r.metrics = m
}

// Strategy возвращает текущую стратегию.
func (r *Reconciler) Strategy() Strategy {
	return r.strategy
}

// Claim получает бонус для игрока. Получения одного игрока выполняются последовательно.
// Отказы возвращаются ошибками ErrNothingToClaim, ErrCampaignNotFound, ErrMaxClaimsReached, ErrGrantConsumed;
// в тихом режиме вместо ошибки возвращается Result с Rejected=true.
func (r *Reconciler) Claim(ctx context.Context, userID int64, req ClaimRequest) (*Result, error) {
	kind := "campaign"
	if req.BonusType == ReferralBonusType {
		kind = "referral"
	} else if req.CampaignID <= 0 {
		return nil, ErrCampaignRequired
	}

	var res *Result
	err := r.locks.WithLock(ctx, userID, func() error {
		var err error
		if kind == "referral" {
			res, err = r.claimReferral(ctx, userID)
		} else {
			res, err = r.claimCampaign(ctx, userID, req)
		}
		return err
	})

	if err != nil {
		code, rejected := rejectionCode(err)
		if !rejected {
			r.metrics.ObserveClaim(kind, string(r.strategy), metrics.OutcomeError)
			return nil, err
		}
		r.metrics.ObserveClaim(kind, string(r.strategy), metrics.OutcomeRejected)
		if req.Silent {
			return &Result{Rejected: true, Reason: code}, nil
		}
		return nil, err
	}

	r.metrics.ObserveClaim(kind, string(r.strategy), metrics.OutcomeSuccess)
	if req.Silent {
		res.Message = ""
	}
	return res, nil
}

func referralResult(count int, total float64) *Result {
	return &Result{
		Count:   count,
		Amount:  total,
		Message: fmt.Sprintf("Congratulations! You have successfully claimed %d referral bonus(es) total of ৳%s!", count, FormatAmount(total)),
	}
}

func campaignResult(c *model.BonusCampaign) *Result {
	return &Result{
		Count:        1,
		Amount:       c.Amount,
		CampaignName: c.BonusName,
		Message:      fmt.Sprintf("Congratulations! You have successfully claimed ৳%s %s!", FormatAmount(c.Amount), c.BonusName),
	}
}

func (r *Reconciler) claimReferral(ctx context.Context, userID int64) (*Result, error) {
	settings, err := r.store.GetSiteSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("get site settings: %w", err)
	}

	if r.strategy == StrategyLedger {
		out, err := r.ledger.ClaimReferral(ctx, repository.ReferralClaim{
			UserID:      userID,
			UnitAmount:  settings.ReferralBonus,
			Description: ReferralClaimDescription,
		})
		if err != nil {
			if errors.Is(err, repository.ErrNothingToClaim) {
				return nil, ErrNothingToClaim
			}
			return nil, fmt.Errorf("claim referral: %w", err)
		}
		return referralResult(out.Count, out.Amount), nil
	}

	user, err := r.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	history, err := r.store.ListTransactionsByType(ctx, userID, model.TransactionBonus)
	if err != nil {
		return nil, fmt.Errorf("list bonus transactions: %w", err)
	}

	unclaimed := user.FriendsReferred - CountReferralClaims(history)
	if unclaimed <= 0 {
		return nil, ErrNothingToClaim
	}

	total := settings.ReferralBonus * float64(unclaimed)
	if _, err := r.balance.AddToBalance(ctx, userID, total); err != nil {
		return nil, fmt.Errorf("credit balance: %w", err)
	}

	if err := r.store.UpdateTotalEarnings(ctx, userID, user.TotalEarnings+total); err != nil {
		r.logger.Warn("total earnings not updated after referral claim",
			zap.Error(err), zap.Int64("userID", userID), zap.Float64("amount", total))
	}

	now := time.Now().UTC()
	records := make([]model.Transaction, 0, unclaimed)
	for i := 0; i < unclaimed; i++ {
		records = append(records, model.Transaction{
			UserID:      userID,
			Type:        model.TransactionBonus,
			Amount:      settings.ReferralBonus,
			Description: ReferralClaimDescription,
			Status:      model.StatusCompleted,
			CreatedAt:   now,
		})
	}
	if err := r.store.InsertTransactions(ctx, records...); err != nil {
		return nil, fmt.Errorf("record referral claims: %w", err)
	}

	return referralResult(unclaimed, total), nil
}

func (r *Reconciler) claimCampaign(ctx context.Context, userID int64, req ClaimRequest) (*Result, error) {
	camp, err := r.store.GetCampaign(ctx, req.CampaignID)
	if err != nil {
		if errors.Is(err, repository.ErrCampaignNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("get campaign: %w", err)
	}

	bonusType := req.BonusType
	if bonusType == "" {
		bonusType = camp.BonusType
	}

	if r.strategy == StrategyLedger {
		_, err := r.ledger.ClaimCampaign(ctx, repository.CampaignClaim{
			UserID:      userID,
			BonusType:   bonusType,
			Campaign:    *camp,
			Description: CampaignClaimDescription(camp.BonusName),
		})
		if err != nil {
			switch {
			case errors.Is(err, repository.ErrClaimLimitReached) && camp.AutoUnlock:
				return nil, ErrMaxClaimsReached
			case errors.Is(err, repository.ErrClaimLimitReached), errors.Is(err, repository.ErrNoEligibility):
				return nil, ErrGrantConsumed
			}
			return nil, fmt.Errorf("claim campaign: %w", err)
		}
		return campaignResult(camp), nil
	}

	var (
		grant   *model.BonusEligibility
		history []model.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		grant, err = r.store.FindAvailableEligibility(gctx, userID, bonusType, camp.Amount)
		if err != nil {
			return fmt.Errorf("find eligibility: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		history, err = r.store.ListTransactionsByType(gctx, userID, model.TransactionBonus)
		if err != nil {
			return fmt.Errorf("list bonus transactions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	canManual := grant != nil
	canAuto := camp.AutoUnlock && CountCampaignClaims(history, camp.BonusName) < camp.MaxClaims()
	if !canManual && !canAuto {
		if camp.AutoUnlock {
			return nil, ErrMaxClaimsReached
		}
		return nil, ErrGrantConsumed
	}

	if _, err := r.balance.AddToBalance(ctx, userID, camp.Amount); err != nil {
		return nil, fmt.Errorf("credit balance: %w", err)
	}

	err = r.store.InsertTransactions(ctx, model.Transaction{
		UserID:      userID,
		Type:        model.TransactionBonus,
		Amount:      camp.Amount,
		Description: CampaignClaimDescription(camp.BonusName),
		Status:      model.StatusCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("record campaign claim: %w", err)
	}

	if grant != nil {
		if err := r.store.ConsumeEligibility(ctx, grant.ID); err != nil {
			return nil, fmt.Errorf("consume eligibility: %w", err)
		}
	}

	return campaignResult(camp), nil
}
