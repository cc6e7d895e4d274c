// Package navigator реализует переключение разделов сайта с проверкой авторизации.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Page идентифицирует раздел.
type Page string

// Разделы сайта.
const (
	HomePage      Page = "homePage"
	PromotionPage Page = "promotionPage"
	ReferralPage  Page = "referralPage"
	DepositPage   Page = "depositPage"
	RewardsPage   Page = "rewardsPage"
	AccountPage   Page = "accountPage"
)

// ErrUnknownPage возвращается для несуществующего раздела.
var ErrUnknownPage = errors.New("unknown page")

var pages = map[Page]bool{
	HomePage:      false,
	PromotionPage: false,
	ReferralPage:  true,
	DepositPage:   true,
	RewardsPage:   true,
	AccountPage:   true,
}

// Pages возвращает разделы в порядке пунктов меню.
func Pages() []Page {
	return []Page{HomePage, PromotionPage, ReferralPage, DepositPage, RewardsPage, AccountPage}
}

// ParsePage проверяет идентификатор раздела.
func ParsePage(s string) (Page, error) {
	p := Page(s)
	if _, ok := pages[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPage, s)
	}
	return p, nil
}

// Protected сообщает, требует ли раздел авторизации.
func (p Page) Protected() bool {
	return pages[p]
}

// RefreshFunc загружает данные раздела для авторизованного пользователя.
type RefreshFunc func(ctx context.Context) (any, error)

// Outcome описывает результат перехода.
type Outcome struct {
	Active        Page `json:"active"`
	ShowAuthModal bool `json:"show_auth_modal"`
	Data          any  `json:"data,omitempty"`
}

// Navigator хранит активный раздел одного клиента.
type Navigator struct {
	mu       sync.Mutex
	active   Page
	handlers map[Page]RefreshFunc
}

// New создаёт навигатор с активной главной страницей.
func New() *Navigator {
	return &Navigator{
		active:   HomePage,
		handlers: make(map[Page]RefreshFunc),
	}
}

// OnRefresh регистрирует загрузчик данных раздела.
func (n *Navigator) OnRefresh(page Page, fn RefreshFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[page] = fn
}

// Active возвращает текущий раздел.
func (n *Navigator) Active() Page {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.active
}

// Navigate переключает раздел. Для защищённого раздела без авторизации активный
// раздел не меняется и запрашивается окно входа.
func (n *Navigator) Navigate(ctx context.Context, page Page, authenticated bool) (Outcome, error) {
	protected, ok := pages[page]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownPage, page)
	}

	n.mu.Lock()
	if protected && !authenticated {
		out := Outcome{Active: n.active, ShowAuthModal: true}
		n.mu.Unlock()
		return out, nil
	}
	n.active = page
	refresh := n.handlers[page]
	n.mu.Unlock()

	out := Outcome{Active: page}
	if !authenticated || refresh == nil {
		return out, nil
	}

	data, err := refresh(ctx)
	if err != nil {
		return out, fmt.Errorf("refresh %s: %w", page, err)
	}
	out.Data = data
	return out, nil
}
