package handler

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/luckyspin/internal/content"
	"github.com/mmeshcher/luckyspin/internal/middleware"
	"github.com/mmeshcher/luckyspin/internal/model"
	"github.com/mmeshcher/luckyspin/internal/navigator"
	"github.com/mmeshcher/luckyspin/internal/vip"
	"github.com/mmeshcher/luckyspin/internal/widget"
)

// clientTTL задаёт время жизни состояния браузерного клиента без обращений.
const clientTTL = 24 * time.Hour

//go:embed templates/index.html static/sw.js
var assets embed.FS

var shellTemplate = template.Must(template.ParseFS(assets, "templates/index.html"))

type shellData struct {
	Site     content.SiteView
	Catalog  content.CatalogView
	Carousel content.CarouselView
	Pages    []navigator.Page
	Active   navigator.Page
}

// Index отдаёт страницу-оболочку с логотипом, ссылками, каталогом и каруселью.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	active, _ := h.Carousel.Index()
	nav := h.navigators.Get(middleware.ClientIDFromContext(r.Context()))

	data := shellData{
		Site:     h.Content.SiteView(),
		Catalog:  h.Content.Catalog(content.CategoryAll),
		Carousel: h.Content.CarouselView(active),
		Pages:    navigator.Pages(),
		Active:   nav.Active(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := shellTemplate.Execute(w, data); err != nil {
		h.logger.Error("render shell error", zap.Error(err))
	}
}

// ServiceWorker отдаёт скрипт офлайн-режима.
func (h *Handler) ServiceWorker(w http.ResponseWriter, r *http.Request) {
	b, err := assets.ReadFile("static/sw.js")
	if err != nil {
		h.internalError(w, "read service worker error", err)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Service-Worker-Allowed", "/")
	_, _ = w.Write(b)
}

// Site возвращает шапку и подвал сайта.
func (h *Handler) Site(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Content.SiteView())
}

// Games возвращает каталог игр выбранной категории.
func (h *Handler) Games(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Content.Catalog(r.URL.Query().Get("category")))
}

// Slides возвращает слайды с текущим активным слайдом.
func (h *Handler) Slides(w http.ResponseWriter, r *http.Request) {
	active, _ := h.Carousel.Index()
	writeJSON(w, http.StatusOK, h.Content.CarouselView(active))
}

type selectSlideRequest struct {
	Index int `json:"index"`
}

// SelectSlide делает активным выбранный слайд и перезапускает интервал смены.
func (h *Handler) SelectSlide(w http.ResponseWriter, r *http.Request) {
	var req selectSlideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}
	if err := h.Carousel.Select(req.Index); err != nil {
		writeError(w, http.StatusBadRequest, "No such slide")
		return
	}
	h.Slides(w, r)
}

// PaymentAddress возвращает реквизиты выбранного способа оплаты.
func (h *Handler) PaymentAddress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Content.PaymentAddress(chi.URLParam(r, "method")))
}

type playResponse struct {
	URL   string     `json:"url,omitempty"`
	Popup *vip.Popup `json:"popup,omitempty"`
}

// Play возвращает прямую ссылку на игру или окно VIP.
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	game, ok := h.Content.FindGame(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Game not found")
		return
	}

	if game.PlayURL != "" {
		writeJSON(w, http.StatusOK, playResponse{URL: game.PlayURL})
		return
	}

	var user *model.User
	if userID, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		user, err = h.Sessions.GetProfile(r.Context(), userID)
		if err != nil {
			h.logger.Warn("profile unavailable for vip popup", zap.Error(err), zap.Int64("userID", userID))
			user = nil
		}
	}

	popup := h.VIP.Popup(r.Context(), user, game.RequiredTier())
	writeJSON(w, http.StatusOK, playResponse{Popup: &popup})
}

func (h *Handler) registerRefresh(n *navigator.Navigator) {
	withUser := func(fn func(ctx context.Context, userID int64) (any, error)) navigator.RefreshFunc {
		return func(ctx context.Context) (any, error) {
			userID, ok := middleware.GetUserIDFromContext(ctx)
			if !ok {
				return nil, nil
			}
			return fn(ctx, userID)
		}
	}

	n.OnRefresh(navigator.AccountPage, withUser(func(ctx context.Context, id int64) (any, error) {
		return h.Sessions.Account(ctx, id)
	}))
	n.OnRefresh(navigator.ReferralPage, withUser(func(ctx context.Context, id int64) (any, error) {
		return h.Sessions.Referral(ctx, id)
	}))
	n.OnRefresh(navigator.RewardsPage, withUser(func(ctx context.Context, id int64) (any, error) {
		return h.Sessions.Rewards(ctx, id)
	}))
	n.OnRefresh(navigator.DepositPage, withUser(func(ctx context.Context, id int64) (any, error) {
		return h.Sessions.Deposits(ctx, id)
	}))
}

type navigateRequest struct {
	Page string `json:"page"`
}

// Navigate переключает раздел текущего браузера.
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, http.StatusText(http.StatusBadRequest))
		return
	}

	page, err := navigator.ParsePage(req.Page)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown page")
		return
	}

	_, authenticated := middleware.GetUserIDFromContext(r.Context())
	nav := h.navigators.Get(middleware.ClientIDFromContext(r.Context()))

	out, err := nav.Navigate(r.Context(), page, authenticated)
	if err != nil {
		h.internalError(w, "navigate refresh error", err, zap.String("page", string(page)))
		return
	}

	writeJSON(w, http.StatusOK, out)
}

type installResponse struct {
	State         widget.InstallState `json:"state"`
	ButtonVisible bool                `json:"button_visible"`
	Outcome       string              `json:"outcome,omitempty"`
}

// InstallEvent применяет событие установки приложения для текущего браузера.
func (h *Handler) InstallEvent(w http.ResponseWriter, r *http.Request) {
	p := h.prompts.Get(middleware.ClientIDFromContext(r.Context()))

	_, err := p.Apply(chi.URLParam(r, "event"))
	switch {
	case errors.Is(err, widget.ErrUnknownEvent):
		writeError(w, http.StatusBadRequest, "Unknown event")
		return
	case errors.Is(err, widget.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "Install prompt is not available")
		return
	}

	writeJSON(w, http.StatusOK, installResponse{
		State:         p.State(),
		ButtonVisible: p.ButtonVisible(),
		Outcome:       p.Outcome(),
	})
}
