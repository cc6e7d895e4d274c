// Package handler содержит HTTP-обработчики сервиса luckyspin.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/luckyspin/internal/bonus"
	"github.com/mmeshcher/luckyspin/internal/content"
	"github.com/mmeshcher/luckyspin/internal/live"
	"github.com/mmeshcher/luckyspin/internal/metrics"
	"github.com/mmeshcher/luckyspin/internal/middleware"
	"github.com/mmeshcher/luckyspin/internal/model"
	"github.com/mmeshcher/luckyspin/internal/navigator"
	"github.com/mmeshcher/luckyspin/internal/payment"
	"github.com/mmeshcher/luckyspin/internal/repository"
	"github.com/mmeshcher/luckyspin/internal/service"
	"github.com/mmeshcher/luckyspin/internal/validation"
	"github.com/mmeshcher/luckyspin/internal/vip"
	"github.com/mmeshcher/luckyspin/internal/widget"
)

// Sessions определяет контракт сессий и данных личного кабинета.
type Sessions interface {
	Register(ctx context.Context, req service.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, identifier, password string) (*model.User, error)
	GetProfile(ctx context.Context, userID int64) (*model.User, error)
	Account(ctx context.Context, userID int64) (*service.AccountView, error)
	Referral(ctx context.Context, userID int64) (*service.ReferralView, error)
	Rewards(ctx context.Context, userID int64) (*service.RewardsView, error)
	Deposits(ctx context.Context, userID int64) (*service.DepositsView, error)
}

// Claimer получает бонусы.
type Claimer interface {
	Claim(ctx context.Context, userID int64, req bonus.ClaimRequest) (*bonus.Result, error)
}

// Payments принимает заявки на пополнение и вывод.
type Payments interface {
	Deposit(ctx context.Context, req payment.DepositRequest) (*payment.Receipt, error)
	Withdraw(ctx context.Context, req payment.WithdrawRequest) (*payment.Receipt, error)
}

// Content строит модели представления содержимого сайта.
type Content interface {
	Settings() *model.SiteSettings
	SiteView() content.SiteView
	Catalog(category string) content.CatalogView
	CarouselView(active int) content.CarouselView
	PaymentAddress(method string) content.PaymentField
	FindGame(id int64) (model.Game, bool)
}

// Gate выбирает окно VIP.
type Gate interface {
	Popup(ctx context.Context, user *model.User, required model.Tier) vip.Popup
}

// Deps содержит зависимости обработчиков.
type Deps struct {
	Sessions Sessions
	Claims   Claimer
	Payments Payments
	Content  Content
	VIP      Gate
	Carousel *widget.Carousel
	Hub      *live.Hub
	Metrics  *metrics.Metrics
	Assets   http.FileSystem

	// ClientTTL ограничивает время хранения навигатора и предложения установки клиента; 0 означает сутки.
	ClientTTL time.Duration
}

// Handler реализует HTTP-обработчики сервиса luckyspin.
type Handler struct {
	Deps

	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	navigators     *navigator.Registry
	prompts        *widget.PromptRegistry
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(deps Deps, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.ClientTTL <= 0 {
		deps.ClientTTL = clientTTL
	}
	if deps.Carousel == nil {
		deps.Carousel = widget.NewCarousel(widget.DefaultCarouselInterval)
	}

	h := &Handler{
		Deps:           deps,
		logger:         logger,
		authMiddleware: auth,
		prompts:        widget.NewPromptRegistry(deps.ClientTTL),
	}
	h.navigators = navigator.NewRegistry(deps.ClientTTL, h.registerRefresh)
	return h
}

// StartPruning периодически удаляет состояние клиентов, не обращавшихся дольше ClientTTL.
// Блокируется до отмены ctx.
func (h *Handler) StartPruning(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.pruneClients()
		}
	}
}

func (h *Handler) pruneClients() {
	navs := h.navigators.Prune()
	prompts := h.prompts.Prune()
	if navs > 0 || prompts > 0 {
		h.logger.Debug("stale clients pruned",
			zap.Int("navigators", navs),
			zap.Int("install_prompts", prompts),
		)
	}
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error, fields ...zap.Field) {
	h.logger.Error(msg, append(fields, zap.Error(err))...)
	writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}

type registerRequest struct {
	Username     string `json:"username"`
	Mobile       string `json:"mobile"`
	Password     string `json:"password"`
	Contact      string `json:"contact"`
	ReferralCode string `json:"referral_code"`
}

type sessionResponse struct {
	Message string                `json:"message"`
	User    middleware.CachedUser `json:"user"`
}

func validationMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, validation.ErrUsernameRequired),
		errors.Is(err, validation.ErrMobileRequired),
		errors.Is(err, validation.ErrIdentifierRequired),
		errors.Is(err, validation.ErrPasswordRequired):
		return "Please fill in all required fields", true
	case errors.Is(err, validation.ErrInvalidMobile):
		return "Please enter a valid mobile number", true
	case errors.Is(err, validation.ErrPasswordTooShort):
		return "Password must be at least 6 characters", true
	}
	return "", false
}

func (h *Handler) startSession(w http.ResponseWriter, u *model.User) middleware.CachedUser {
	cached := middleware.CachedUserOf(u)
	h.authMiddleware.SetAuthCookie(w, u.ID)
	middleware.SetUserCookie(w, cached)
	return cached
}

// Register обрабатывает регистрацию нового игрока.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	u, err := h.Sessions.Register(r.Context(), service.RegisterRequest(req))
	if err != nil {
		if msg, ok := validationMessage(err); ok {
			writeError(w, http.StatusUnprocessableEntity, msg)
			return
		}
		switch {
		case errors.Is(err, repository.ErrUserExists):
			writeError(w, http.StatusConflict, "Username or mobile number already registered")
			return
		case errors.Is(err, repository.ErrReferralCodeNotFound):
			writeError(w, http.StatusUnprocessableEntity, "Invalid referral code")
			return
		}
		h.internalError(w, "register user error", err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Message: "Account created successfully! Welcome to Lucky Spin!",
		User:    h.startSession(w, u),
	})
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// Login выполняет аутентификацию игрока по имени или телефону.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	u, err := h.Sessions.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		if msg, ok := validationMessage(err); ok {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		if errors.Is(err, service.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid username/mobile or password")
			return
		}
		h.internalError(w, "login user error", err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Message: "Login successful!",
		User:    h.startSession(w, u),
	})
}

// Logout завершает сессию.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	middleware.ClearUserCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}
