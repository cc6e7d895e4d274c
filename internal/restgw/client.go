// Package restgw предоставляет клиент REST-шлюза данных (PostgREST-совместимый API)
// для чтения содержимого сайта.
package restgw

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmeshcher/luckyspin/internal/model"
)

// ErrNotFound возвращается, если запрошенная запись отсутствует.
var ErrNotFound = errors.New("record not found")

// RateLimitError возвращается при ответе 429 с длительностью ожидания из заголовка Retry-After.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// maxRetryWait ограничивает ожидание по Retry-After, после которого запрос повторяется один раз.
const maxRetryWait = 10 * time.Second

// Client инкапсулирует HTTP-взаимодействие с REST-шлюзом.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт HTTP-клиент для обращения к шлюзу по указанному адресу.
func NewClient(baseURL, apiKey string) *Client {
	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: base,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetSiteSettings читает единственную запись site_settings.
func (c *Client) GetSiteSettings(ctx context.Context) (*model.SiteSettings, error) {
	var rows []model.SiteSettings
	q := url.Values{"select": {"*"}, "limit": {"1"}}
	if err := c.getWithRetry(ctx, "site_settings", q, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	s := rows[0]
	if s.TimerPopupDuration == 0 {
		s.TimerPopupDuration = 1
	}
	return &s, nil
}

// ListActiveGames читает активные игры, новые первыми.
func (c *Client) ListActiveGames(ctx context.Context) ([]model.Game, error) {
	var games []model.Game
	q := url.Values{"select": {"*"}, "is_active": {"eq.true"}, "order": {"created_at.desc"}}
	if err := c.getWithRetry(ctx, "games", q, &games); err != nil {
		return nil, err
	}
	for i := range games {
		if games[i].VIPLevelRequired != "" {
			games[i].VIPLevelRequired = model.ParseTier(string(games[i].VIPLevelRequired))
		}
	}
	return games, nil
}

// ListCarouselItems читает слайды карусели, новые первыми.
func (c *Client) ListCarouselItems(ctx context.Context) ([]model.CarouselItem, error) {
	var items []model.CarouselItem
	q := url.Values{"select": {"*"}, "order": {"created_at.desc"}}
	if err := c.getWithRetry(ctx, "carousel_items", q, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) getWithRetry(ctx context.Context, table string, q url.Values, dst any) error {
	err := c.get(ctx, table, q, dst)

	var rl *RateLimitError
	if !errors.As(err, &rl) || rl.RetryAfter > maxRetryWait {
		return err
	}

	if rl.RetryAfter > 0 {
		timer := time.NewTimer(rl.RetryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return c.get(ctx, table, q, dst)
}

func (c *Client) get(ctx context.Context, table string, q url.Values, dst any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("rest gateway client not configured")
	}

	u := fmt.Sprintf("%s/rest/v1/%s?%s", c.baseURL, table, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{RetryAfter: retryAfter}
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d for %s", resp.StatusCode, table)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
