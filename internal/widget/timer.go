package widget

import (
	"context"
	"fmt"
	"time"

	"github.com/mmeshcher/luckyspin/internal/model"
)

const (
	defaultTimerTitle   = "Special Gift!"
	defaultTimerMessage = "Deposit now to get a bonus!"
)

// TimerState описывает состояние окна таймера.
type TimerState struct {
	Visible   bool   `json:"visible"`
	Expired   bool   `json:"expired"`
	Title     string `json:"title,omitempty"`
	Message   string `json:"message,omitempty"`
	Remaining string `json:"remaining,omitempty"`
}

// FormatRemaining форматирует остаток как HH:MM:SS.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

// Expiry возвращает момент окончания акции.
func Expiry(memberSince time.Time, durationHours float64) time.Time {
	if durationHours <= 0 {
		durationHours = 1
	}
	return memberSince.Add(time.Duration(durationHours * float64(time.Hour)))
}

// SessionFunc сообщает текущего игрока; ready=false, пока сессия не готова.
type SessionFunc func(ctx context.Context) (user *model.User, ready bool)

// RegistrationTimer ведёт обратный отсчёт акции для новых игроков.
type RegistrationTimer struct {
	settings *model.SiteSettings
	poll     time.Duration
	tick     time.Duration
	now      func() time.Time
}

// NewRegistrationTimer создаёт таймер по настройкам сайта.
func NewRegistrationTimer(settings *model.SiteSettings) *RegistrationTimer {
	return &RegistrationTimer{
		settings: settings,
		poll:     2 * time.Second,
		tick:     time.Second,
		now:      time.Now,
	}
}

// Enabled сообщает, включено ли окно таймера.
func (t *RegistrationTimer) Enabled() bool {
	return t.settings != nil && t.settings.TimerPopupEnabled
}

// At возвращает состояние окна на момент now.
func (t *RegistrationTimer) At(memberSince, now time.Time) TimerState {
	remaining := Expiry(memberSince, t.settings.TimerPopupDuration).Sub(now)
	if remaining <= 0 {
		return TimerState{Expired: true}
	}

	st := TimerState{
		Visible:   true,
		Title:     t.settings.TimerPopupTitle,
		Message:   t.settings.TimerPopupMessage,
		Remaining: FormatRemaining(remaining),
	}
	if st.Title == "" {
		st.Title = defaultTimerTitle
	}
	if st.Message == "" {
		st.Message = defaultTimerMessage
	}
	return st
}

// Run ждёт готовности сессии, затем раз в секунду передаёт состояние в emit
// до истечения срока или отмены контекста.
func (t *RegistrationTimer) Run(ctx context.Context, session SessionFunc, emit func(TimerState)) {
	if !t.Enabled() {
		return
	}

	user, ok := t.waitSession(ctx, session)
	if !ok || user == nil || user.MemberSince.IsZero() {
		return
	}

	update := func() bool {
		st := t.At(user.MemberSince, t.now())
		emit(st)
		return !st.Expired
	}
	if !update() {
		return
	}

	ticker := time.NewTicker(t.tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !update() {
				return
			}
		}
	}
}

func (t *RegistrationTimer) waitSession(ctx context.Context, session SessionFunc) (*model.User, bool) {
	for {
		if u, ready := session(ctx); ready {
			return u, true
		}
		timer := time.NewTimer(t.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, false
		case <-timer.C:
		}
	}
}
