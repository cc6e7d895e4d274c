package handler

import (
	"context"
	"net/http"

	"github.com/mmeshcher/luckyspin/internal/live"
	"github.com/mmeshcher/luckyspin/internal/middleware"
	"github.com/mmeshcher/luckyspin/internal/model"
	"github.com/mmeshcher/luckyspin/internal/widget"
)

// Live подключает браузер к потоку событий. Авторизованный игрок дополнительно
// получает отсчёт таймера акции для новых игроков.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	if h.Hub == nil {
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	clientID := middleware.ClientIDFromContext(r.Context())
	userID, authenticated := middleware.GetUserIDFromContext(r.Context())

	var session live.SessionFunc
	if authenticated {
		session = func(ctx context.Context, send live.SendFunc) {
			timer := widget.NewRegistrationTimer(h.Content.Settings())
			timer.Run(ctx, func(ctx context.Context) (*model.User, bool) {
				u, err := h.Sessions.GetProfile(ctx, userID)
				if err != nil {
					return nil, false
				}
				return u, true
			}, func(st widget.TimerState) {
				send(live.TypeTimer, st)
			})
		}
	}

	h.Hub.Serve(w, r, clientID, session)
}
