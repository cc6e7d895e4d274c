package middleware

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/luckyspin/internal/model"
)

const (
	clientIDKey   contextKey = "clientID"
	cachedUserKey contextKey = "cachedUser"
)

const (
	clientCookieName = "client_id"
	clientCookieTTL  = 365 * 24 * time.Hour

	// UserCookieName задаёт имя cookie с кэшированной записью игрока.
	UserCookieName = "casino_user"
)

// ClientID выдаёт браузеру постоянный идентификатор клиента и кладёт его в контекст.
func ClientID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(clientCookieName); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     clientCookieName,
				Value:    id,
				Path:     "/",
				Expires:  time.Now().Add(clientCookieTTL),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientIDKey, id)))
	})
}

// ClientIDFromContext возвращает идентификатор клиента.
func ClientIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(clientIDKey).(string)
	return id
}

// CachedUser описывает запись игрока, хранимую в браузере между загрузками страницы.
type CachedUser struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Balance     float64    `json:"balance"`
	VIPLevel    model.Tier `json:"vip_level"`
	MemberSince time.Time  `json:"member_since"`
}

// CachedUserOf строит кэшируемую запись из профиля.
func CachedUserOf(u *model.User) CachedUser {
	return CachedUser{
		ID:          u.ID,
		Username:    u.Username,
		Balance:     u.Balance,
		VIPLevel:    u.VIPLevel,
		MemberSince: u.MemberSince,
	}
}

func (c CachedUser) valid() bool {
	return c.ID > 0 && strings.TrimSpace(c.Username) != ""
}

// SetUserCookie сохраняет запись игрока в cookie.
func SetUserCookie(w http.ResponseWriter, u CachedUser) {
	data, err := json.Marshal(u)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     UserCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		Expires:  time.Now().Add(authCookieTTL),
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearUserCookie удаляет кэшированную запись игрока.
func ClearUserCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     UserCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		SameSite: http.SameSiteLaxMode,
	})
}

func decodeCachedUser(value string) (CachedUser, bool) {
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return CachedUser{}, false
	}
	var u CachedUser
	if err := json.Unmarshal(data, &u); err != nil {
		return CachedUser{}, false
	}
	return u, u.valid()
}

// UserCache читает cookie casino_user. Повреждённую запись или запись без id и username удаляет.
func UserCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(UserCookieName)
		if err == nil {
			if u, ok := decodeCachedUser(c.Value); ok {
				r = r.WithContext(context.WithValue(r.Context(), cachedUserKey, u))
			} else {
				ClearUserCookie(w)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// CachedUserFromContext возвращает кэшированную запись игрока.
func CachedUserFromContext(ctx context.Context) (CachedUser, bool) {
	u, ok := ctx.Value(cachedUserKey).(CachedUser)
	return u, ok
}
