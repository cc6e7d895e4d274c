package content

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/luckyspin/internal/model"
)

type stubSource struct {
	settings    *model.SiteSettings
	settingsErr error
	games       []model.Game
	gamesErr    error
	items       []model.CarouselItem
	itemsErr    error

	calls atomic.Int32
}

func (s *stubSource) GetSiteSettings(ctx context.Context) (*model.SiteSettings, error) {
	s.calls.Add(1)
	return s.settings, s.settingsErr
}

func (s *stubSource) ListActiveGames(ctx context.Context) ([]model.Game, error) {
	return s.games, s.gamesErr
}

func (s *stubSource) ListCarouselItems(ctx context.Context) ([]model.CarouselItem, error) {
	return s.items, s.itemsErr
}

func TestLoad_FailureDoesNotAbortOtherSections(t *testing.T) {
	src := &stubSource{
		settingsErr: errors.New("timeout"),
		games:       []model.Game{{ID: 1, Name: "Crash", Category: "slots"}},
		items:       []model.CarouselItem{{ID: 1, ImageURL: "a.png"}, {ID: 2, ImageURL: "b.png"}},
	}
	r := NewRenderer(src, nil, zap.NewNop())

	var slides int
	r.State().OnCarouselChange(func(n int) { slides = n })

	err := r.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load settings")

	assert.Nil(t, r.State().Settings())
	assert.Len(t, r.State().Games(), 1)
	assert.Len(t, r.State().Carousel(), 2)
	assert.Equal(t, 2, slides)
	assert.False(t, r.State().LoadedAt().IsZero())
}

func TestLoad_EmptyCarouselKeepsPreviousSlides(t *testing.T) {
	src := &stubSource{
		settings: &model.SiteSettings{},
		items:    []model.CarouselItem{{ID: 1, ImageURL: "a.png"}},
	}
	r := NewRenderer(src, nil, zap.NewNop())
	require.NoError(t, r.Load(context.Background()))

	src.items = nil
	require.NoError(t, r.Load(context.Background()))
	assert.Len(t, r.State().Carousel(), 1)
}

func TestStartRefresh_ReloadsUntilCancelled(t *testing.T) {
	src := &stubSource{settings: &model.SiteSettings{}}
	r := NewRenderer(src, nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		r.StartRefresh(ctx, 10*time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StartRefresh did not stop after cancellation")
	}
	assert.GreaterOrEqual(t, src.calls.Load(), int32(2))
}

func TestBuildSiteView(t *testing.T) {
	v := BuildSiteView(&model.SiteSettings{
		SiteLogoURL:  "https://cdn/logo.png",
		SiteLogoText: "Lucky Spin BD",
		TelegramLink: "https://t.me/lucky",
		WhatsappLink: "   ",
		SupportEmail: "+880 1712-345678",
	})

	assert.Equal(t, "Lucky Spin BD", v.Title)
	assert.Equal(t, Logo{ImageURL: "https://cdn/logo.png", Alt: "Lucky Spin BD"}, v.Logo)

	require.Len(t, v.Links, 4)
	assert.Equal(t, SocialLink{ID: "linkTelegram", URL: "https://t.me/lucky", Visible: true, Target: "_blank"}, v.Links[0])
	assert.False(t, v.Links[1].Visible)
	assert.Equal(t, "linkWhatsapp", v.Links[2].ID)
	assert.False(t, v.Links[2].Visible)
	assert.Equal(t, "linkCustomChat", v.Links[3].ID)

	require.NotNil(t, v.Support)
	assert.Equal(t, "WhatsApp: +880 1712-345678", v.Support.Label)
	assert.Equal(t, "https://wa.me/8801712345678", v.Support.URL)
}

func TestBuildSiteView_Defaults(t *testing.T) {
	v := BuildSiteView(nil)
	assert.Equal(t, DefaultTitle, v.Title)
	assert.Equal(t, DefaultTitle, v.Logo.Text)
	assert.Nil(t, v.Support)

	v = BuildSiteView(&model.SiteSettings{SiteLogoURL: "logo.png"})
	assert.Equal(t, "Logo", v.Logo.Alt)
}

func TestBuildCatalog(t *testing.T) {
	games := []model.Game{
		{ID: 1, Name: "Aviator", Category: "crash", PlayURL: "https://play/aviator"},
		{ID: 2, Name: "Sweet Bonanza", Category: "slots"},
		{ID: 3, Name: "Gates", Category: "slots", VIPLevelRequired: model.TierGold},
	}

	all := BuildCatalog(games, CategoryAll)
	assert.Len(t, all.Games, 3)
	assert.Empty(t, all.Message)

	slots := BuildCatalog(games, "slots")
	require.Len(t, slots.Games, 2)
	assert.True(t, slots.Games[0].Gated)
	assert.Equal(t, model.TierBronze, slots.Games[0].RequiredTier)
	assert.Equal(t, model.TierGold, slots.Games[1].RequiredTier)

	none := BuildCatalog(games, "table")
	assert.Empty(t, none.Games)
	assert.Equal(t, NoGamesMessage, none.Message)

	assert.Equal(t, []string{"crash", "slots"}, Categories(games))
}

func TestBuildCarousel(t *testing.T) {
	items := []model.CarouselItem{{ImageURL: "a"}, {ImageURL: "b", LinkURL: "https://promo"}}

	v := BuildCarousel(items, 1)
	assert.Equal(t, 1, v.Active)
	assert.False(t, v.Slides[0].Active)
	assert.True(t, v.Slides[1].Active)
	assert.True(t, v.Dots[1].Active)

	v = BuildCarousel(items, 5)
	assert.Equal(t, 0, v.Active)
	assert.True(t, v.Slides[0].Active)

	v = BuildCarousel(nil, 0)
	assert.Empty(t, v.Slides)
}

func TestPaymentAddress(t *testing.T) {
	s := &model.SiteSettings{BkashNumber: "01700000000", USDTAddress: "TXabc"}

	assert.Equal(t, PaymentField{Value: "01700000000"}, PaymentAddress(s, "bkash"))
	assert.Equal(t, PaymentField{Value: NotAvailable}, PaymentAddress(s, "nagad"))
	assert.Equal(t, PaymentField{Value: "TXabc"}, PaymentAddress(s, "crypto"))
	assert.Equal(t, PaymentField{Value: NotAvailable}, PaymentAddress(s, "paypal"))
	assert.Equal(t, PaymentField{Placeholder: PaymentPlaceholder}, PaymentAddress(s, ""))
	assert.Equal(t, PaymentField{Value: NotAvailable}, PaymentAddress(nil, "rocket"))

	assert.True(t, IsPaymentMethod("USDT"))
	assert.False(t, IsPaymentMethod("paypal"))
}
