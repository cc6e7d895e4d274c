package content

import (
	"regexp"
	"sort"
	"strings"

	"github.com/mmeshcher/luckyspin/internal/model"
)

// DefaultTitle используется как заголовок сайта, если в настройках не задан текст логотипа.
const DefaultTitle = "Lucky Spin"

// CategoryAll отключает фильтр каталога по категории.
const CategoryAll = "all"

const (
	NoGamesMessage     = "No games found in this category"
	NotAvailable       = "Not available"
	PaymentPlaceholder = "Select a payment method above"
)

// Logo описывает логотип: изображение с подписью либо текст.
type Logo struct {
	ImageURL string `json:"image_url,omitempty"`
	Alt      string `json:"alt,omitempty"`
	Text     string `json:"text,omitempty"`
}

// SocialLink описывает ссылку на соцсеть или чат.
type SocialLink struct {
	ID      string `json:"id"`
	URL     string `json:"url,omitempty"`
	Visible bool   `json:"visible"`
	Target  string `json:"target,omitempty"`
}

// SupportContact описывает контакт поддержки в подвале.
type SupportContact struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// SiteView содержит шапку и подвал сайта.
type SiteView struct {
	Logo    Logo            `json:"logo"`
	Title   string          `json:"title"`
	Links   []SocialLink    `json:"links"`
	Support *SupportContact `json:"support,omitempty"`
}

var nonDigits = regexp.MustCompile(`\D`)

// BuildSiteView строит шапку и подвал из настроек. nil даёт вид по умолчанию.
func BuildSiteView(s *model.SiteSettings) SiteView {
	if s == nil {
		s = &model.SiteSettings{}
	}

	v := SiteView{Title: DefaultTitle}

	text := strings.TrimSpace(s.SiteLogoText)
	if text != "" {
		v.Title = text
	}

	switch {
	case s.SiteLogoURL != "":
		v.Logo = Logo{ImageURL: s.SiteLogoURL, Alt: text}
		if v.Logo.Alt == "" {
			v.Logo.Alt = "Logo"
		}
	default:
		v.Logo = Logo{Text: v.Title}
	}

	for _, l := range []struct{ id, url string }{
		{"linkTelegram", s.TelegramLink},
		{"linkFacebook", s.FacebookLink},
		{"linkWhatsapp", s.WhatsappLink},
		{"linkCustomChat", s.LivechatLink},
	} {
		link := SocialLink{ID: l.id}
		if u := strings.TrimSpace(l.url); u != "" {
			link.URL = u
			link.Visible = true
			link.Target = "_blank"
		}
		v.Links = append(v.Links, link)
	}

	if s.SupportEmail != "" {
		v.Support = &SupportContact{
			Label: "WhatsApp: " + s.SupportEmail,
			URL:   "https://wa.me/" + nonDigits.ReplaceAllString(s.SupportEmail, ""),
		}
	}

	return v
}

// GameCard описывает карточку игры. Без прямой ссылки кнопка игры открывает окно VIP.
type GameCard struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	ImageURL     string     `json:"image_url"`
	Category     string     `json:"category"`
	PlayURL      string     `json:"play_url,omitempty"`
	RequiredTier model.Tier `json:"required_tier"`
	Gated        bool       `json:"gated"`
}

// CatalogView содержит отфильтрованный каталог игр.
type CatalogView struct {
	Category string     `json:"category"`
	Games    []GameCard `json:"games"`
	Message  string     `json:"message,omitempty"`
}

// BuildCatalog фильтрует игры по категории; "all" или пустая строка возвращают все игры.
func BuildCatalog(games []model.Game, category string) CatalogView {
	if category == "" {
		category = CategoryAll
	}

	v := CatalogView{Category: category, Games: []GameCard{}}
	for _, g := range games {
		if category != CategoryAll && g.Category != category {
			continue
		}
		v.Games = append(v.Games, GameCard{
			ID:           g.ID,
			Name:         g.Name,
			ImageURL:     g.ImageURL,
			Category:     g.Category,
			PlayURL:      g.PlayURL,
			RequiredTier: g.RequiredTier(),
			Gated:        g.PlayURL == "",
		})
	}

	if len(v.Games) == 0 {
		v.Message = NoGamesMessage
	}
	return v
}

// Categories возвращает отсортированный список категорий игр.
func Categories(games []model.Game) []string {
	seen := make(map[string]struct{})
	var res []string
	for _, g := range games {
		if g.Category == "" {
			continue
		}
		if _, ok := seen[g.Category]; ok {
			continue
		}
		seen[g.Category] = struct{}{}
		res = append(res, g.Category)
	}
	sort.Strings(res)
	return res
}

type Slide struct {
	Index    int    `json:"index"`
	ImageURL string `json:"image_url"`
	LinkURL  string `json:"link_url,omitempty"`
	Active   bool   `json:"active"`
}

type Dot struct {
	Index  int  `json:"index"`
	Active bool `json:"active"`
}

// CarouselView содержит слайды и точки карусели.
type CarouselView struct {
	Slides []Slide `json:"slides"`
	Dots   []Dot   `json:"dots"`
	Active int     `json:"active"`
}

// BuildCarousel строит карусель с активным слайдом active. Индекс вне диапазона сбрасывается на первый слайд.
func BuildCarousel(items []model.CarouselItem, active int) CarouselView {
	if active < 0 || active >= len(items) {
		active = 0
	}

	v := CarouselView{
		Slides: make([]Slide, 0, len(items)),
		Dots:   make([]Dot, 0, len(items)),
		Active: active,
	}
	for i, it := range items {
		v.Slides = append(v.Slides, Slide{Index: i, ImageURL: it.ImageURL, LinkURL: it.LinkURL, Active: i == active})
		v.Dots = append(v.Dots, Dot{Index: i, Active: i == active})
	}
	return v
}

// PaymentMethod описывает способ пополнения и реквизиты для перевода.
type PaymentMethod struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// PaymentField описывает значение поля реквизитов для выбранного способа.
type PaymentField struct {
	Value       string `json:"value"`
	Placeholder string `json:"placeholder,omitempty"`
}

func paymentAddresses(s *model.SiteSettings) map[string]string {
	if s == nil {
		s = &model.SiteSettings{}
	}
	or := func(v string) string {
		if v == "" {
			return NotAvailable
		}
		return v
	}
	return map[string]string{
		"bkash":  or(s.BkashNumber),
		"nagad":  or(s.NagadNumber),
		"rocket": or(s.RocketNumber),
		"usdt":   or(s.USDTAddress),
		"crypto": or(s.USDTAddress),
	}
}

// PaymentAddress возвращает реквизиты для способа оплаты. Пустой способ даёт подсказку вместо значения.
func PaymentAddress(s *model.SiteSettings, method string) PaymentField {
	if method == "" {
		return PaymentField{Placeholder: PaymentPlaceholder}
	}
	if v, ok := paymentAddresses(s)[strings.ToLower(method)]; ok {
		return PaymentField{Value: v}
	}
	return PaymentField{Value: NotAvailable}
}

// PaymentMethods возвращает способы пополнения в порядке отображения.
func PaymentMethods(s *model.SiteSettings) []PaymentMethod {
	addr := paymentAddresses(s)
	return []PaymentMethod{
		{ID: "bkash", Name: "bKash", Address: addr["bkash"]},
		{ID: "nagad", Name: "Nagad", Address: addr["nagad"]},
		{ID: "rocket", Name: "Rocket", Address: addr["rocket"]},
		{ID: "usdt", Name: "USDT", Address: addr["usdt"]},
	}
}

// IsPaymentMethod сообщает, что способ оплаты известен.
func IsPaymentMethod(method string) bool {
	_, ok := paymentAddresses(nil)[strings.ToLower(method)]
	return ok
}

// SiteView строит шапку и подвал из загруженных настроек.
func (r *Renderer) SiteView() SiteView {
	return BuildSiteView(r.state.Settings())
}

// Catalog строит каталог для категории.
func (r *Renderer) Catalog(category string) CatalogView {
	return BuildCatalog(r.state.Games(), category)
}

// CarouselView строит карусель с активным слайдом active.
func (r *Renderer) CarouselView(active int) CarouselView {
	return BuildCarousel(r.state.Carousel(), active)
}

// PaymentAddress возвращает реквизиты для способа оплаты по загруженным настройкам.
func (r *Renderer) PaymentAddress(method string) PaymentField {
	return PaymentAddress(r.state.Settings(), method)
}

// FindGame возвращает загруженную игру по идентификатору.
func (r *Renderer) FindGame(id int64) (model.Game, bool) {
	for _, g := range r.state.Games() {
		if g.ID == id {
			return g, true
		}
	}
	return model.Game{}, false
}

// Settings возвращает загруженные настройки сайта или nil.
func (r *Renderer) Settings() *model.SiteSettings {
	return r.state.Settings()
}
