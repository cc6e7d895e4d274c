package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/luckyspin/internal/bonus"
	"github.com/mmeshcher/luckyspin/internal/content"
	"github.com/mmeshcher/luckyspin/internal/model"
	"github.com/mmeshcher/luckyspin/internal/repository"
)

// AccountView содержит данные страницы аккаунта.
type AccountView struct {
	User        *model.User         `json:"user"`
	Deposits    []model.Transaction `json:"deposits"`
	Withdrawals []model.Transaction `json:"withdrawals"`
}

// Account возвращает данные страницы аккаунта.
func (s *Service) Account(ctx context.Context, userID int64) (*AccountView, error) {
	var v AccountView

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.repo.GetProfile(gctx, userID)
		if err != nil {
			return err
		}
		v.User = u
		return nil
	})
	g.Go(func() error {
		txs, err := s.repo.ListTransactionsByType(gctx, userID, model.TransactionDeposit)
		if err != nil {
			return fmt.Errorf("list deposits: %w", err)
		}
		v.Deposits = txs
		return nil
	})
	g.Go(func() error {
		txs, err := s.repo.ListTransactionsByType(gctx, userID, model.TransactionWithdraw)
		if err != nil {
			return fmt.Errorf("list withdrawals: %w", err)
		}
		v.Withdrawals = txs
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &v, nil
}

// ReferralView содержит данные реферальной страницы.
type ReferralView struct {
	ReferralCode  string               `json:"referral_code"`
	TotalEarnings float64              `json:"total_earnings"`
	Status        bonus.ReferralStatus `json:"status"`
}

// Referral возвращает реферальную статистику игрока.
func (s *Service) Referral(ctx context.Context, userID int64) (*ReferralView, error) {
	u, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	var unit float64
	if settings, err := s.repo.GetSiteSettings(ctx); err == nil {
		unit = settings.ReferralBonus
	} else {
		s.logger.Warn("referral bonus amount unavailable")
	}

	history, err := s.repo.ListTransactionsByType(ctx, userID, model.TransactionBonus)
	if err != nil {
		return nil, fmt.Errorf("list bonus transactions: %w", err)
	}

	status, err := s.referralStatus(ctx, userID, u.FriendsReferred, unit, history)
	if err != nil {
		return nil, err
	}

	return &ReferralView{
		ReferralCode:  u.ReferralCode,
		TotalEarnings: u.TotalEarnings,
		Status:        status,
	}, nil
}

func (s *Service) referralStatus(ctx context.Context, userID int64, friends int, unit float64, history []model.Transaction) (bonus.ReferralStatus, error) {
	if s.claims == nil {
		return bonus.ReferralStatusOf(friends, unit, history), nil
	}
	claimed, err := s.claims.CountClaims(ctx, userID, repository.ReferralClaimKey)
	if err != nil {
		return bonus.ReferralStatus{}, fmt.Errorf("count referral claims: %w", err)
	}
	return bonus.ReferralStatusCounted(friends, unit, claimed), nil
}

func (s *Service) campaignStatuses(ctx context.Context, userID int64, campaigns []model.BonusCampaign, grants []model.BonusEligibility, history []model.Transaction) ([]bonus.CampaignStatus, error) {
	if s.claims == nil {
		return bonus.CampaignStatuses(campaigns, grants, history), nil
	}
	claimed := make(map[int64]int, len(campaigns))
	for _, c := range campaigns {
		n, err := s.claims.CountClaims(ctx, userID, repository.CampaignClaimKey(c.ID))
		if err != nil {
			return nil, fmt.Errorf("count claims of campaign %d: %w", c.ID, err)
		}
		claimed[c.ID] = n
	}
	return bonus.CampaignStatusesCounted(campaigns, grants, claimed), nil
}

// RewardsView содержит данные страницы бонусов.
type RewardsView struct {
	Referral  bonus.ReferralStatus   `json:"referral"`
	Campaigns []bonus.CampaignStatus `json:"campaigns"`
	History   []model.Transaction    `json:"history"`
}

// Rewards возвращает доступные игроку бонусы и историю их получения.
func (s *Service) Rewards(ctx context.Context, userID int64) (*RewardsView, error) {
	var (
		user      *model.User
		settings  *model.SiteSettings
		campaigns []model.BonusCampaign
		grants    []model.BonusEligibility
		history   []model.Transaction
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		user, err = s.repo.GetProfile(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		settings, err = s.repo.GetSiteSettings(gctx)
		return err
	})
	g.Go(func() (err error) {
		campaigns, err = s.repo.ListActiveCampaigns(gctx)
		return err
	})
	g.Go(func() (err error) {
		grants, err = s.repo.ListAvailableEligibility(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		history, err = s.repo.ListTransactionsByType(gctx, userID, model.TransactionBonus)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load rewards: %w", err)
	}

	referral, err := s.referralStatus(ctx, userID, user.FriendsReferred, settings.ReferralBonus, history)
	if err != nil {
		return nil, err
	}
	statuses, err := s.campaignStatuses(ctx, userID, campaigns, grants, history)
	if err != nil {
		return nil, err
	}

	return &RewardsView{
		Referral:  referral,
		Campaigns: statuses,
		History:   history,
	}, nil
}

// DepositsView содержит данные страницы пополнения.
type DepositsView struct {
	Methods []content.PaymentMethod `json:"methods"`
	History []model.Transaction     `json:"history"`
	Balance float64                 `json:"balance"`
}

// Deposits возвращает способы оплаты и историю пополнений.
func (s *Service) Deposits(ctx context.Context, userID int64) (*DepositsView, error) {
	u, err := s.repo.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	settings, err := s.repo.GetSiteSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("get site settings: %w", err)
	}

	history, err := s.repo.ListTransactionsByType(ctx, userID, model.TransactionDeposit)
	if err != nil {
		return nil, fmt.Errorf("list deposits: %w", err)
	}

	return &DepositsView{
		Methods: content.PaymentMethods(settings),
		History: history,
		Balance: u.Balance,
	}, nil
}
