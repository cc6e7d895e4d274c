package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/luckyspin/internal/lock"
	"github.com/mmeshcher/luckyspin/internal/model"
	"github.com/mmeshcher/luckyspin/internal/repository"
	"github.com/mmeshcher/luckyspin/internal/validation"
)

// WithdrawRequest содержит данные формы вывода.
type WithdrawRequest struct {
	UserID    int64
	Method    string
	Number    string
	Amount    float64
	Balance   float64
	Confirmed bool
	OnPhase   func(Phase)
}

func (r WithdrawRequest) validate() error {
	if trimMethod(r.Method) == "" || strings.TrimSpace(r.Number) == "" {
		return ErrNumberRequired
	}
	if !validation.IsValidAmount(r.Amount) {
		return fmt.Errorf("%w: %w", ErrNumberRequired, ErrAmountTooLow)
	}
	if r.Balance < r.Amount {
		return ErrInsufficientBalance
	}
	if !r.Confirmed {
		return &ConfirmationError{Prompt: ConfirmationPrompt(r.Amount, r.Number, r.Method)}
	}
	return nil
}

// ConfirmationPrompt возвращает текст подтверждения вывода.
func ConfirmationPrompt(amount float64, number, method string) string {
	return fmt.Sprintf("Are you sure you want to withdraw ৳%s to %s (%s)?", strconv.FormatFloat(amount, 'f', -1, 64), number, method)
}

// WithdrawDescription возвращает описание операции вывода.
func WithdrawDescription(number, method string) string {
	return fmt.Sprintf("Withdrawal to %s (%s)", number, method)
}

// Withdraw списывает сумму с баланса и создаёт заявку на вывод в статусе pending.
// Если заявку не удалось записать, списание возвращается на баланс.
func (s *Submitter) Withdraw(ctx context.Context, req WithdrawRequest) (*Receipt, error) {
	req.Method = trimMethod(req.Method)
	req.Number = strings.TrimSpace(req.Number)
	if err := req.validate(); err != nil {
		s.observe("withdraw", err)
		return nil, err
	}

	var res *Receipt
	err := s.locks.WithTryLock(req.UserID, func() error {
		defer notify(req.OnPhase, PhaseIdle)
		notify(req.OnPhase, PhaseProcessing)

		balance, err := s.balance.AddToBalance(ctx, req.UserID, -req.Amount)
		if err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return ErrInsufficientBalance
			}
			return fmt.Errorf("debit balance: %w", err)
		}

		t := model.Transaction{
			UserID:      req.UserID,
			Type:        model.TransactionWithdraw,
			Amount:      req.Amount,
			Description: WithdrawDescription(req.Number, req.Method),
			Status:      model.StatusPending,
			CreatedAt:   s.now().UTC(),
		}
		if err := s.store.InsertTransactions(ctx, t); err != nil {
			if _, cerr := s.balance.AddToBalance(context.WithoutCancel(ctx), req.UserID, req.Amount); cerr != nil {
				s.logger.Error("withdraw compensation failed",
					zap.Error(cerr), zap.Int64("userID", req.UserID), zap.Float64("amount", req.Amount))
			} else {
				s.logger.Warn("withdraw debit compensated", zap.Error(err), zap.Int64("userID", req.UserID))
			}
			return fmt.Errorf("insert withdraw: %w", err)
		}

		res = &Receipt{Transaction: t, Balance: &balance, Message: WithdrawSuccessMessage}
		return nil
	})
	if errors.Is(err, lock.ErrBusy) {
		err = ErrSubmissionInProgress
	}

	s.observe("withdraw", err)
	if err != nil {
		return nil, err
	}
	return res, nil
}
