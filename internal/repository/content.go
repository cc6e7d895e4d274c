package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/luckyspin/internal/model"
)

// GetSiteSettings возвращает единственную запись настроек сайта.
func (r *PostgresRepository) GetSiteSettings(ctx context.Context) (*model.SiteSettings, error) {
	var (
		s             model.SiteSettings
		referralBonus int64
	)
	err := r.pool.QueryRow(ctx,
		`SELECT site_logo_url, site_logo_text, telegram_link, facebook_link, whatsapp_link,
		        livechat_link, support_email, bkash_number, nagad_number, rocket_number,
		        usdt_address, visitor_text, vip_popup_text, vip_bronze_text, vip_silver_text,
		        vip_gold_text, vip_platinum_text, vip_diamond_text, timer_popup_enabled,
		        timer_popup_duration, timer_popup_title, timer_popup_message, referral_bonus
		 FROM site_settings WHERE id = 1`,
	).Scan(&s.SiteLogoURL, &s.SiteLogoText, &s.TelegramLink, &s.FacebookLink, &s.WhatsappLink,
		&s.LivechatLink, &s.SupportEmail, &s.BkashNumber, &s.NagadNumber, &s.RocketNumber,
		&s.USDTAddress, &s.VisitorText, &s.VIPPopupText, &s.VIPBronzeText, &s.VIPSilverText,
		&s.VIPGoldText, &s.VIPPlatinumText, &s.VIPDiamondText, &s.TimerPopupEnabled,
		&s.TimerPopupDuration, &s.TimerPopupTitle, &s.TimerPopupMessage, &referralBonus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSettingsNotFound
		}
		return nil, fmt.Errorf("get site settings: %w", err)
	}
	s.ReferralBonus = fromMinor(referralBonus)
	return &s, nil
}

const gameColumns = `id, name, image_url, category, play_url, vip_level_required, is_active, created_at`

func scanGame(row pgx.Row) (model.Game, error) {
	var (
		g   model.Game
		vip string
	)
	if err := row.Scan(&g.ID, &g.Name, &g.ImageURL, &g.Category, &g.PlayURL, &vip, &g.IsActive, &g.CreatedAt); err != nil {
		return model.Game{}, err
	}
	if vip != "" {
		g.VIPLevelRequired = model.ParseTier(vip)
	}
	return g, nil
}

// ListActiveGames возвращает активные игры, новые первыми.
func (r *PostgresRepository) ListActiveGames(ctx context.Context) ([]model.Game, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+gameColumns+` FROM games WHERE is_active ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select games: %w", err)
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return games, nil
}

// GetGame возвращает активную игру по идентификатору.
func (r *PostgresRepository) GetGame(ctx context.Context, id int64) (*model.Game, error) {
	g, err := scanGame(r.pool.QueryRow(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = $1 AND is_active`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("get game: %w", err)
	}
	return &g, nil
}

// ListCarouselItems возвращает слайды карусели, новые первыми.
func (r *PostgresRepository) ListCarouselItems(ctx context.Context) ([]model.CarouselItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, image_url, link_url, created_at FROM carousel_items ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("select carousel items: %w", err)
	}
	defer rows.Close()

	var items []model.CarouselItem
	for rows.Next() {
		var it model.CarouselItem
		if err := rows.Scan(&it.ID, &it.ImageURL, &it.LinkURL, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan carousel item: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}
