package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/luckyspin/internal/lock"
	"github.com/mmeshcher/luckyspin/internal/model"
	"github.com/mmeshcher/luckyspin/internal/validation"
)

// DepositRequest содержит данные формы пополнения.
type DepositRequest struct {
	UserID        int64
	Username      string
	Method        string
	Amount        float64
	TransactionID string
	Receipt       io.Reader
	ReceiptName   string
	OnPhase       func(Phase)
}

// Validate проверяет поля формы до обращения к хранилищу.
func (r DepositRequest) Validate() error {
	if trimMethod(r.Method) == "" {
		return ErrMethodRequired
	}
	if !validation.IsValidAmount(r.Amount) {
		return ErrAmountTooLow
	}
	if strings.TrimSpace(r.TransactionID) == "" {
		return ErrTransactionIDRequired
	}
	if r.Receipt == nil {
		return ErrReceiptRequired
	}
	return nil
}

var unsafeObjectChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// ReceiptObjectName возвращает путь объекта чека в хранилище.
// Символы имени игрока вне [A-Za-z0-9_-] заменяются на "_", из расширения они удаляются.
func ReceiptObjectName(unixMillis int64, username, filename string) string {
	safe := unsafeObjectChars.ReplaceAllString(username, "_")
	if safe == "" {
		safe = "user"
	}
	ext := unsafeObjectChars.ReplaceAllString(validation.FileExtension(filename), "")
	return fmt.Sprintf("receipts/%d_%s_receipt.%s", unixMillis, safe, ext)
}

// DepositDescription возвращает описание операции пополнения.
func DepositDescription(method, trxID string) string {
	if strings.TrimSpace(trxID) == "" {
		trxID = "N/A"
	}
	return fmt.Sprintf("Deposit via %s. TrxID: %s", method, trxID)
}

// Deposit загружает чек и создаёт заявку на пополнение в статусе pending.
// Пока заявка пользователя обрабатывается, повторная возвращает ErrSubmissionInProgress.
func (s *Submitter) Deposit(ctx context.Context, req DepositRequest) (*Receipt, error) {
	req.Method = trimMethod(req.Method)
	if err := req.Validate(); err != nil {
		s.observe("deposit", err)
		return nil, err
	}

	var res *Receipt
	err := s.locks.WithTryLock(req.UserID, func() error {
		defer notify(req.OnPhase, PhaseIdle)

		notify(req.OnPhase, PhaseUploading)
		name := ReceiptObjectName(s.now().UnixMilli(), req.Username, req.ReceiptName)
		if err := s.uploader.Upload(ctx, name, req.Receipt); err != nil {
			s.logger.Error("receipt upload failed", zap.Error(err), zap.Int64("userID", req.UserID), zap.String("object", name))
			return fmt.Errorf("%w: %v", ErrUploadFailed, err)
		}

		notify(req.OnPhase, PhaseSubmitting)
		t := model.Transaction{
			UserID:      req.UserID,
			Type:        model.TransactionDeposit,
			Amount:      req.Amount,
			Description: DepositDescription(req.Method, req.TransactionID),
			Status:      model.StatusPending,
			ReceiptURL:  s.uploader.PublicURL(name),
			CreatedAt:   s.now().UTC(),
		}
		if err := s.store.InsertTransactions(ctx, t); err != nil {
			return fmt.Errorf("insert deposit: %w", err)
		}

		res = &Receipt{Transaction: t, Message: DepositSuccessMessage}
		return nil
	})
	if errors.Is(err, lock.ErrBusy) {
		err = ErrSubmissionInProgress
	}

	s.observe("deposit", err)
	if err != nil {
		return nil, err
	}
	return res, nil
}
