// Package vip формирует окно с требованием уровня VIP при запуске игры.
package vip

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/luckyspin/internal/model"
)

// Тексты по умолчанию.
const (
	DefaultVisitorText = "Please login to play games."
	DefaultUpgradeText = "Please upgrade your VIP level to play this game."
	FallbackText       = "অনুগ্রহ করে ডিপোজিট করুন"
	LoginRequiredTitle = "Login Required"
)

// Style описывает оформление окна.
type Style struct {
	Background  string `json:"background"`
	TitleColor  string `json:"title_color"`
	ButtonColor string `json:"button_color"`
	Icon        string `json:"icon"`
}

var styles = map[model.Tier]Style{
	model.TierBronze:   {Background: "#fff3cd", TitleColor: "#b87333", ButtonColor: "#b87333", Icon: "🥉"},
	model.TierSilver:   {Background: "#e6e6e6", TitleColor: "silver", ButtonColor: "#777", Icon: "🥈"},
	model.TierGold:     {Background: "#fffbe6", TitleColor: "gold", ButtonColor: "gold", Icon: "🥇"},
	model.TierPlatinum: {Background: "#e5e4e2", TitleColor: "#e5e4e2", ButtonColor: "#666", Icon: "💎"},
	model.TierDiamond:  {Background: "#b9f2ff", TitleColor: "#00bfff", ButtonColor: "#00bfff", Icon: "💎"},
	model.TierVisitor:  {Background: "#fff", TitleColor: "black", ButtonColor: "#ff4444", Icon: "🔒"},
}

var defaultStyle = Style{Background: "#fff", TitleColor: "black", ButtonColor: "#ff4444", Icon: "🎮"}

// Popup описывает окно VIP.
type Popup struct {
	Tier    model.Tier `json:"tier"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	Style   Style      `json:"style"`
}

// NewPopup оформляет окно для уровня tier.
func NewPopup(tier model.Tier, message string) Popup {
	tier = model.ParseTier(string(tier))
	p := Popup{Tier: tier, Message: message, Style: defaultStyle, Title: string(tier)}

	if s, ok := styles[tier]; ok {
		p.Style = s
		if tier == model.TierVisitor {
			p.Title = LoginRequiredTitle
		} else {
			p.Title = string(tier) + " VIP"
		}
	}
	return p
}

// SettingsReader читает настройки сайта.
type SettingsReader interface {
	GetSiteSettings(ctx context.Context) (*model.SiteSettings, error)
}

// Gate выбирает текст и оформление окна VIP.
type Gate struct {
	settings SettingsReader
	logger   *zap.Logger
}

// NewGate создаёт Gate.
func NewGate(settings SettingsReader, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{settings: settings, logger: logger}
}

// Popup возвращает окно для игры с уровнем required. Для гостя показывается окно входа;
// для игрока текст выбирается по его собственному уровню. Уровень не блокирует запуск игры.
func (g *Gate) Popup(ctx context.Context, user *model.User, required model.Tier) Popup {
	s, err := g.settings.GetSiteSettings(ctx)

	if user == nil {
		msg := DefaultVisitorText
		if err != nil {
			g.logger.Warn("site settings unavailable for visitor popup", zap.Error(err))
		} else if strings.TrimSpace(s.VisitorText) != "" {
			msg = s.VisitorText
		}
		return NewPopup(model.TierVisitor, msg)
	}

	if err != nil {
		g.logger.Warn("site settings unavailable for vip popup", zap.Error(err))
		return NewPopup(required, FallbackText)
	}

	return NewPopup(user.VIPLevel, TierText(s, user.VIPLevel))
}

// TierText возвращает текст окна для уровня игрока.
func TierText(s *model.SiteSettings, tier model.Tier) string {
	msg := s.VIPPopupText
	if msg == "" {
		msg = DefaultUpgradeText
	}

	var byTier string
	switch model.ParseTier(string(tier)) {
	case model.TierBronze:
		byTier = s.VIPBronzeText
	case model.TierSilver:
		byTier = s.VIPSilverText
	case model.TierGold:
		byTier = s.VIPGoldText
	case model.TierPlatinum:
		byTier = s.VIPPlatinumText
	case model.TierDiamond:
		byTier = s.VIPDiamondText
	}
	if byTier != "" {
		return byTier
	}
	return msg
}
