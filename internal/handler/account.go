package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/luckyspin/internal/bonus"
	"github.com/mmeshcher/luckyspin/internal/middleware"
	"github.com/mmeshcher/luckyspin/internal/payment"
	"github.com/mmeshcher/luckyspin/internal/repository"
)

const maxReceiptSize = 10 << 20

func (h *Handler) view(w http.ResponseWriter, r *http.Request, name string, load func(ctx context.Context, userID int64) (any, error)) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Please login first")
		return
	}

	v, err := load(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			h.authMiddleware.ClearAuthCookie(w)
			middleware.ClearUserCookie(w)
			writeError(w, http.StatusUnauthorized, "Please login first")
			return
		}
		h.internalError(w, "get "+name+" error", err, zap.Int64("userID", userID))
		return
	}

	writeJSON(w, http.StatusOK, v)
}

// Account возвращает данные страницы аккаунта.
func (h *Handler) Account(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "account", func(ctx context.Context, id int64) (any, error) {
		v, err := h.Sessions.Account(ctx, id)
		if err == nil {
			middleware.SetUserCookie(w, middleware.CachedUserOf(v.User))
		}
		return v, err
	})
}

// Referral возвращает реферальную статистику.
func (h *Handler) Referral(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "referral", func(ctx context.Context, id int64) (any, error) {
		return h.Sessions.Referral(ctx, id)
	})
}

// Rewards возвращает доступные бонусы.
func (h *Handler) Rewards(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "rewards", func(ctx context.Context, id int64) (any, error) {
		return h.Sessions.Rewards(ctx, id)
	})
}

// Deposits возвращает способы оплаты и историю пополнений.
func (h *Handler) Deposits(w http.ResponseWriter, r *http.Request) {
	h.view(w, r, "deposits", func(ctx context.Context, id int64) (any, error) {
		return h.Sessions.Deposits(ctx, id)
	})
}

func (h *Handler) writePaymentError(w http.ResponseWriter, kind string, userID int64, err error) {
	msg, ok := payment.UserMessage(err)
	switch {
	case errors.Is(err, payment.ErrUploadFailed):
		writeError(w, http.StatusBadGateway, msg)
	case errors.Is(err, payment.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, msg)
	case errors.Is(err, payment.ErrNotConfirmed), errors.Is(err, payment.ErrSubmissionInProgress):
		writeJSON(w, http.StatusConflict, errorResponse{Error: msg, Reason: reasonOf(err)})
	case ok:
		writeError(w, http.StatusUnprocessableEntity, msg)
	default:
		h.internalError(w, kind+" error", err, zap.Int64("userID", userID))
	}
}

func reasonOf(err error) string {
	if errors.Is(err, payment.ErrNotConfirmed) {
		return "confirmation_required"
	}
	return "in_progress"
}

// Deposit принимает заявку на пополнение с чеком (multipart/form-data).
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Please login first")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptSize)
	if err := r.ParseMultipartForm(maxReceiptSize); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	amount, _ := strconv.ParseFloat(strings.TrimSpace(r.FormValue("amount")), 64)
	req := payment.DepositRequest{
		UserID:        userID,
		Method:        r.FormValue("method"),
		Amount:        amount,
		TransactionID: r.FormValue("transaction_id"),
	}

	if file, header, err := r.FormFile("receipt"); err == nil {
		defer file.Close()
		req.Receipt = file
		req.ReceiptName = header.Filename
	}

	if err := req.Validate(); err != nil {
		h.writePaymentError(w, "deposit", userID, err)
		return
	}

	if cached, ok := middleware.CachedUserFromContext(r.Context()); ok && cached.ID == userID {
		req.Username = cached.Username
	} else if u, err := h.Sessions.GetProfile(r.Context(), userID); err == nil {
		req.Username = u.Username
	} else {
		h.internalError(w, "get profile error", err, zap.Int64("userID", userID))
		return
	}

	res, err := h.Payments.Deposit(r.Context(), req)
	if err != nil {
		h.writePaymentError(w, "deposit", userID, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

type withdrawRequest struct {
	Method    string  `json:"method"`
	Number    string  `json:"number"`
	Amount    float64 `json:"amount"`
	Confirmed bool    `json:"confirmed"`
}

// Withdraw принимает заявку на вывод. Остаток проверяется по кэшированной записи игрока,
// а при её отсутствии по профилю.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Please login first")
		return
	}

	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	cached, ok := middleware.CachedUserFromContext(r.Context())
	if !ok || cached.ID != userID {
		u, err := h.Sessions.GetProfile(r.Context(), userID)
		if err != nil {
			h.internalError(w, "get profile error", err, zap.Int64("userID", userID))
			return
		}
		cached = middleware.CachedUserOf(u)
	}

	res, err := h.Payments.Withdraw(r.Context(), payment.WithdrawRequest{
		UserID:    userID,
		Method:    req.Method,
		Number:    req.Number,
		Amount:    req.Amount,
		Balance:   cached.Balance,
		Confirmed: req.Confirmed,
	})
	if err != nil {
		h.writePaymentError(w, "withdraw", userID, err)
		return
	}

	if res.Balance != nil {
		cached.Balance = *res.Balance
		middleware.SetUserCookie(w, cached)
	}
	writeJSON(w, http.StatusOK, res)
}

type claimResponse struct {
	*bonus.Result
	Account any `json:"account,omitempty"`
	Rewards any `json:"rewards,omitempty"`
}

// ClaimBonus получает реферальный бонус или бонус кампании и возвращает обновлённые данные страниц.
func (h *Handler) ClaimBonus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Please login first to claim your bonus!")
		return
	}

	var req bonus.ClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	res, err := h.Claims.Claim(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, bonus.ErrCampaignRequired) {
			writeError(w, http.StatusBadRequest, "Bonus campaign is required")
			return
		}
		if msg, ok := bonus.RejectionMessage(err); ok {
			writeError(w, http.StatusConflict, msg)
			return
		}
		h.internalError(w, "claim bonus error", err, zap.Int64("userID", userID), zap.Int64("campaignID", req.CampaignID))
		return
	}

	resp := claimResponse{Result: res}
	if account, err := h.Sessions.Account(r.Context(), userID); err == nil {
		resp.Account = account
		middleware.SetUserCookie(w, middleware.CachedUserOf(account.User))
	} else {
		h.logger.Warn("account refresh after claim failed", zap.Error(err), zap.Int64("userID", userID))
	}
	if !req.Silent {
		if rewards, err := h.Sessions.Rewards(r.Context(), userID); err == nil {
			resp.Rewards = rewards
		} else {
			h.logger.Warn("rewards refresh after claim failed", zap.Error(err), zap.Int64("userID", userID))
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
