// Package model содержит доменные сущности сервиса luckyspin.
package model

import "time"

// User представляет профиль игрока вместе с его балансом и реферальной статистикой.
type User struct {
	ID              int64     `json:"id"`
	Username        string    `json:"username"`
	Mobile          string    `json:"mobile"`
	Contact         string    `json:"contact,omitempty"`
	PasswordHash    []byte    `json:"-"`
	Balance         float64   `json:"balance"`
	VIPLevel        Tier      `json:"vip_level"`
	MemberSince     time.Time `json:"member_since"`
	ReferralCode    string    `json:"referral_code"`
	ReferredBy      *int64    `json:"referred_by,omitempty"`
	FriendsReferred int       `json:"friends_referred"`
	TotalEarnings   float64   `json:"total_earnings"`
}

// Game описывает карточку игры в каталоге.
type Game struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	ImageURL         string    `json:"image_url"`
	Category         string    `json:"category"`
	PlayURL          string    `json:"play_url,omitempty"`
	VIPLevelRequired Tier      `json:"vip_level_required"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
}

// RequiredTier возвращает требуемый уровень VIP, по умолчанию Bronze.
func (g Game) RequiredTier() Tier {
	if g.VIPLevelRequired == "" {
		return TierBronze
	}
	return g.VIPLevelRequired
}

// CarouselItem описывает слайд карусели на главной странице.
type CarouselItem struct {
	ID        int64     `json:"id"`
	ImageURL  string    `json:"image_url"`
	LinkURL   string    `json:"link_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SiteSettings содержит единственную запись конфигурации сайта.
type SiteSettings struct {
	SiteLogoURL  string `json:"site_logo_url"`
	SiteLogoText string `json:"site_logo_text"`

	TelegramLink string `json:"telegram_link"`
	FacebookLink string `json:"facebook_link"`
	WhatsappLink string `json:"whatsapp_link"`
	LivechatLink string `json:"livechat_link"`
	SupportEmail string `json:"support_email"`

	BkashNumber  string `json:"bkash_number"`
	NagadNumber  string `json:"nagad_number"`
	RocketNumber string `json:"rocket_number"`
	USDTAddress  string `json:"usdt_address"`

	VisitorText     string `json:"visitor_text"`
	VIPPopupText    string `json:"vip_popup_text"`
	VIPBronzeText   string `json:"vip_bronze_text"`
	VIPSilverText   string `json:"vip_silver_text"`
	VIPGoldText     string `json:"vip_gold_text"`
	VIPPlatinumText string `json:"vip_platinum_text"`
	VIPDiamondText  string `json:"vip_diamond_text"`

	TimerPopupEnabled  bool    `json:"timer_popup_enabled"`
	TimerPopupDuration float64 `json:"timer_popup_duration"`
	TimerPopupTitle    string  `json:"timer_popup_title"`
	TimerPopupMessage  string  `json:"timer_popup_message"`

	ReferralBonus float64 `json:"referral_bonus"`
}

// TransactionType описывает вид операции по счёту.
type TransactionType string

const (
	TransactionDeposit  TransactionType = "deposit"
	TransactionWithdraw TransactionType = "withdraw"
	TransactionBonus    TransactionType = "bonus"
)

// TransactionStatus описывает статус обработки операции.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
)

// Transaction описывает запись журнала операций пользователя.
type Transaction struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Type        TransactionType   `json:"type"`
	Amount      float64           `json:"amount"`
	Description string            `json:"description"`
	Status      TransactionStatus `json:"status"`
	ReceiptURL  string            `json:"receipt_url,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// BonusCampaign описывает бонусную кампанию из таблицы available_bonuses.
type BonusCampaign struct {
	ID               int64   `json:"id"`
	BonusName        string  `json:"bonus_name"`
	BonusType        string  `json:"bonus_type"`
	Amount           float64 `json:"amount"`
	AutoUnlock       bool    `json:"auto_unlock"`
	MaxClaimsPerUser int     `json:"max_claims_per_user"`
	IsActive         bool    `json:"is_active"`
}

// MaxClaims возвращает лимит получений на пользователя, по умолчанию один.
func (c BonusCampaign) MaxClaims() int {
	if c.MaxClaimsPerUser <= 0 {
		return 1
	}
	return c.MaxClaimsPerUser
}

// BonusEligibility описывает разовое ручное право на получение бонуса.
type BonusEligibility struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	BonusType   string    `json:"bonus_type"`
	Amount      float64   `json:"amount"`
	IsAvailable bool      `json:"is_available"`
	ClaimsUsed  int       `json:"claims_used"`
	CreatedAt   time.Time `json:"created_at"`
}
