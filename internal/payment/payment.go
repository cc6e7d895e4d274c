// Package payment реализует заявки на пополнение и вывод средств.
package payment

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/luckyspin/internal/lock"
	"github.com/mmeshcher/luckyspin/internal/metrics"
	"github.com/mmeshcher/luckyspin/internal/model"
)

var (
	ErrMethodRequired        = errors.New("payment method is required")
	ErrAmountTooLow          = errors.New("amount is below minimum")
	ErrTransactionIDRequired = errors.New("transaction id is required")
	ErrReceiptRequired       = errors.New("receipt is required")
	ErrNumberRequired        = errors.New("destination number is required")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrNotConfirmed          = errors.New("withdrawal not confirmed")
	ErrUploadFailed          = errors.New("receipt upload failed")
	ErrSubmissionInProgress  = errors.New("submission already in progress")
)

// Тексты сообщений для пользователя.
const (
	DepositSuccessMessage  = "আপনার অনুরোধ সফল হয়েছে , দয়া করে আমাদের সময় দিন আপনার ডিপোজিট প্রসেস করতে।"
	WithdrawSuccessMessage = "Withdrawal request submitted! Amount deducted from balance."

	invalidDepositMessage  = "Please enter a valid method, amount (min ৳200), and Transaction ID"
	receiptMessage         = "Please upload a deposit receipt screenshot"
	invalidWithdrawMessage = "Please select method and enter valid number and amount (min ৳200)"
	insufficientMessage    = "Insufficient balance!"
	uploadFailedMessage    = "Failed to upload receipt image. Please try again."
	inProgressMessage      = "Your previous request is still being processed."
)

// Phase обозначает стадию отправки заявки, отображаемую на кнопке формы.
type Phase string

const (
	PhaseIdle       Phase = ""
	PhaseUploading  Phase = "UPLOADING RECEIPT..."
	PhaseSubmitting Phase = "SUBMITTING..."
	PhaseProcessing Phase = "PROCESSING..."
)

// ConfirmationError возвращается, если вывод не подтверждён пользователем.
type ConfirmationError struct {
	Prompt string
}

func (e *ConfirmationError) Error() string {
	return ErrNotConfirmed.Error()
}

func (e *ConfirmationError) Unwrap() error {
	return ErrNotConfirmed
}

// UserMessage возвращает текст отказа для пользователя. ok=false для внутренних ошибок.
func UserMessage(err error) (msg string, ok bool) {
	var ce *ConfirmationError
	switch {
	case errors.As(err, &ce):
		return ce.Prompt, true
	case errors.Is(err, ErrReceiptRequired):
		return receiptMessage, true
	case errors.Is(err, ErrNumberRequired):
		return invalidWithdrawMessage, true
	case errors.Is(err, ErrMethodRequired), errors.Is(err, ErrAmountTooLow), errors.Is(err, ErrTransactionIDRequired):
		return invalidDepositMessage, true
	case errors.Is(err, ErrInsufficientBalance):
		return insufficientMessage, true
	case errors.Is(err, ErrUploadFailed):
		return uploadFailedMessage, true
	case errors.Is(err, ErrSubmissionInProgress):
		return inProgressMessage, true
	}
	return "", false
}

// Store записывает операции в журнал.
type Store interface {
	InsertTransactions(ctx context.Context, txs ...model.Transaction) error
}

// BalanceProvider изменяет баланс игрока.
type BalanceProvider interface {
	AddToBalance(ctx context.Context, userID int64, delta float64) (float64, error)
}

// Uploader сохраняет файлы чеков.
type Uploader interface {
	Upload(ctx context.Context, name string, r io.Reader) error
	PublicURL(name string) string
}

// Submitter принимает заявки на пополнение и вывод.
type Submitter struct {
	store    Store
	balance  BalanceProvider
	uploader Uploader
	locks    *lock.UserLock
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewSubmitter создаёт обработчик заявок.
func NewSubmitter(store Store, balance BalanceProvider, uploader Uploader, locks *lock.UserLock, logger *zap.Logger) *Submitter {
	if locks == nil {
		locks = lock.NewUserLock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{
		store:    store,
		balance:  balance,
		uploader: uploader,
		locks:    locks,
		logger:   logger,
		now:      time.Now,
	}
}

// SetMetrics подключает счётчики заявок.
func (s *Submitter) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

func (s *Submitter) observe(kind string, err error) {
	switch {
	case err == nil:
		s.metrics.ObserveSubmission(kind, metrics.OutcomeSuccess)
	case isRejection(err):
		s.metrics.ObserveSubmission(kind, metrics.OutcomeRejected)
	default:
		s.metrics.ObserveSubmission(kind, metrics.OutcomeError)
	}
}

func isRejection(err error) bool {
	if errors.Is(err, ErrUploadFailed) {
		return false
	}
	_, ok := UserMessage(err)
	return ok
}

// Receipt описывает принятую заявку.
type Receipt struct {
	Transaction model.Transaction `json:"transaction"`
	Balance     *float64          `json:"balance,omitempty"`
	Message     string            `json:"message"`
}

func notify(fn func(Phase), p Phase) {
	if fn != nil {
		fn(p)
	}
}

func trimMethod(m string) string {
	return strings.ToLower(strings.TrimSpace(m))
}
