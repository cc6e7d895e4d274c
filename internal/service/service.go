// Package service реализует сессии игроков, изменение баланса и данные страниц личного кабинета.
package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"

	"github.com/mmeshcher/luckyspin/internal/model"
	"github.com/mmeshcher/luckyspin/internal/repository"
	"github.com/mmeshcher/luckyspin/internal/validation"
)

// ErrInvalidCredentials возвращается при неверном логине или пароле.
var ErrInvalidCredentials = errors.New("invalid credentials")

const (
	referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	referralCodeLength   = 8
	referralCodeAttempts = 3
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateProfile(ctx context.Context, p repository.NewProfile) (*model.User, error)
	GetProfile(ctx context.Context, userID int64) (*model.User, error)
	GetProfileByIdentifier(ctx context.Context, identifier string) (*model.User, error)
	AddToBalance(ctx context.Context, userID int64, delta float64) (float64, error)
	GetSiteSettings(ctx context.Context) (*model.SiteSettings, error)
	ListTransactionsByType(ctx context.Context, userID int64, txType model.TransactionType) ([]model.Transaction, error)
	ListActiveCampaigns(ctx context.Context) ([]model.BonusCampaign, error)
	ListAvailableEligibility(ctx context.Context, userID int64) ([]model.BonusEligibility, error)
}

// ClaimCounter считает записи журнала получения бонусов.
type ClaimCounter interface {
	CountClaims(ctx context.Context, userID int64, claimKey string) (int, error)
}

// Service содержит логику сессий и баланса игроков.
type Service struct {
	repo    Repository
	claims  ClaimCounter
	logger  *zap.Logger
	newCode func() (string, error)
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		logger: logger,
		newCode: func() (string, error) {
			return gonanoid.Generate(referralCodeAlphabet, referralCodeLength)
		},
	}
}

// UseClaimLedger переключает подсчёт полученных бонусов на журнал bonus_claims.
// Без журнала число получений определяется по описаниям транзакций.
func (s *Service) UseClaimLedger(c ClaimCounter) {
	s.claims = c
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterRequest содержит данные формы регистрации.
type RegisterRequest struct {
	Username     string `json:"username"`
	Mobile       string `json:"mobile"`
	Password     string `json:"password"`
	Contact      string `json:"contact,omitempty"`
	ReferralCode string `json:"referral_code,omitempty"`
}

// Register регистрирует нового игрока и выдаёт ему реферальный код.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Mobile = strings.TrimSpace(req.Mobile)
	if err := validation.Registration(req.Username, req.Mobile, req.Password); err != nil {
		return nil, err
	}

	p := repository.NewProfile{
		Username:     req.Username,
		Mobile:       req.Mobile,
		Contact:      strings.TrimSpace(req.Contact),
		PasswordHash: hashPassword(req.Username, req.Password),
		InvitedBy:    strings.ToUpper(strings.TrimSpace(req.ReferralCode)),
	}

	for attempt := 1; ; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, fmt.Errorf("generate referral code: %w", err)
		}
		p.ReferralCode = code

		u, err := s.repo.CreateProfile(ctx, p)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, repository.ErrReferralCodeTaken) || attempt == referralCodeAttempts {
			return nil, err
		}
		s.logger.Info("referral code collision, regenerating", zap.Int("attempt", attempt))
	}
}

// Login проверяет логин (имя пользователя или телефон) и пароль.
func (s *Service) Login(ctx context.Context, identifier, password string) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)
	if err := validation.Credentials(identifier, password); err != nil {
		return nil, err
	}

	u, err := s.repo.GetProfileByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if subtle.ConstantTimeCompare(hashPassword(u.Username, password), u.PasswordHash) != 1 {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

func hashPassword(username, password string) []byte {
	sum := sha256.Sum256([]byte(username + ":" + password))
	return sum[:]
}

// GetProfile возвращает профиль игрока.
func (s *Service) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	return s.repo.GetProfile(ctx, userID)
}

// AddToBalance изменяет баланс игрока на delta (может быть отрицательной) и возвращает новый баланс.
func (s *Service) AddToBalance(ctx context.Context, userID int64, delta float64) (float64, error) {
	if delta == 0 {
		u, err := s.repo.GetProfile(ctx, userID)
		if err != nil {
			return 0, err
		}
		return u.Balance, nil
	}
	return s.repo.AddToBalance(ctx, userID, delta)
}
