package navigator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNavigate_ProtectedWithoutAuth(t *testing.T) {
	n := New()
	called := false
	n.OnRefresh(DepositPage, func(ctx context.Context) (any, error) {
		called = true
		return nil, nil
	})

	out, err := n.Navigate(context.Background(), DepositPage, false)
	require.NoError(t, err)
	assert.True(t, out.ShowAuthModal)
	assert.Equal(t, HomePage, out.Active)
	assert.Equal(t, HomePage, n.Active())
	assert.False(t, called)
}

func TestNavigate_PublicPageWithoutAuth(t *testing.T) {
	n := New()
	out, err := n.Navigate(context.Background(), PromotionPage, false)
	require.NoError(t, err)
	assert.False(t, out.ShowAuthModal)
	assert.Equal(t, PromotionPage, out.Active)

	out, err = n.Navigate(context.Background(), AccountPage, false)
	require.NoError(t, err)
	assert.True(t, out.ShowAuthModal)
	assert.Equal(t, PromotionPage, out.Active)
}

func TestNavigate_RefreshesAuthenticated(t *testing.T) {
	n := New()
	n.OnRefresh(AccountPage, func(ctx context.Context) (any, error) {
		return map[string]float64{"balance": 500}, nil
	})

	out, err := n.Navigate(context.Background(), AccountPage, true)
	require.NoError(t, err)
	assert.Equal(t, AccountPage, out.Active)
	assert.Equal(t, map[string]float64{"balance": 500}, out.Data)
}

func TestNavigate_RefreshError(t *testing.T) {
	n := New()
	boom := errors.New("boom")
	n.OnRefresh(RewardsPage, func(ctx context.Context) (any, error) {
		return nil, boom
	})

	out, err := n.Navigate(context.Background(), RewardsPage, true)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, RewardsPage, out.Active)
	assert.Equal(t, RewardsPage, n.Active())
}

func TestNavigate_UnknownPage(t *testing.T) {
	n := New()
	_, err := n.Navigate(context.Background(), Page("casinoPage"), true)
	assert.ErrorIs(t, err, ErrUnknownPage)

	_, err = ParsePage("nope")
	assert.ErrorIs(t, err, ErrUnknownPage)
}

func TestPages_Protected(t *testing.T) {
	want := map[Page]bool{
		HomePage:      false,
		PromotionPage: false,
		ReferralPage:  true,
		DepositPage:   true,
		RewardsPage:   true,
		AccountPage:   true,
	}
	for _, p := range Pages() {
		assert.Equal(t, want[p], p.Protected(), p)
	}
}

func TestRegistry_PerClient(t *testing.T) {
	setups := 0
	r := NewRegistry(time.Minute, func(*Navigator) { setups++ })
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	a := r.Get("a")
	_, err := a.Navigate(context.Background(), PromotionPage, false)
	require.NoError(t, err)

	assert.Same(t, a, r.Get("a"))
	assert.Equal(t, HomePage, r.Get("b").Active())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 2, setups)

	now = now.Add(2 * time.Minute)
	r.Get("b")
	assert.Equal(t, 1, r.Prune())
	assert.Equal(t, 1, r.Len())
}
