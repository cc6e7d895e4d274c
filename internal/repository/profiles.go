package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mmeshcher/luckyspin/internal/model"
)

// ErrReferralCodeTaken возвращается при коллизии сгенерированного реферального кода.
var ErrReferralCodeTaken = errors.New("referral code already taken")

const profileColumns = `id, username, mobile, contact, password_hash, balance, vip_level,
	member_since, referral_code, referred_by, friends_referred, total_earnings`

// NewProfile содержит данные для регистрации игрока.
type NewProfile struct {
	Username     string
	Mobile       string
	Contact      string
	PasswordHash []byte
	ReferralCode string
	// InvitedBy содержит реферальный код пригласившего игрока, может быть пустым.
	InvitedBy string
}

func scanProfile(row pgx.Row) (*model.User, error) {
	var (
		u             model.User
		vip           string
		balance       int64
		totalEarnings int64
	)
	err := row.Scan(&u.ID, &u.Username, &u.Mobile, &u.Contact, &u.PasswordHash, &balance, &vip,
		&u.MemberSince, &u.ReferralCode, &u.ReferredBy, &u.FriendsReferred, &totalEarnings)
	if err != nil {
		return nil, err
	}
	u.Balance = fromMinor(balance)
	u.TotalEarnings = fromMinor(totalEarnings)
	u.VIPLevel = model.ParseTier(vip)
	return &u, nil
}

// CreateProfile создаёт игрока и, если указан код приглашения, увеличивает счётчик приглашённых у пригласившего.
func (r *PostgresRepository) CreateProfile(ctx context.Context, p NewProfile) (*model.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var referrerID *int64
	if p.InvitedBy != "" {
		var id int64
		err := tx.QueryRow(ctx,
			`SELECT id FROM profiles WHERE referral_code = $1 FOR UPDATE`,
			p.InvitedBy,
		).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrReferralCodeNotFound
			}
			return nil, fmt.Errorf("select referrer: %w", err)
		}
		referrerID = &id
	}

	u, err := scanProfile(tx.QueryRow(ctx,
		`INSERT INTO profiles (username, mobile, contact, password_hash, referral_code, referred_by)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+profileColumns,
		p.Username, p.Mobile, p.Contact, p.PasswordHash, p.ReferralCode, referrerID,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && isUniqueViolation(err) {
			if pgErr.ConstraintName == "profiles_referral_code_key" {
				return nil, ErrReferralCodeTaken
			}
			return nil, fmt.Errorf("%w: %s", ErrUserExists, p.Username)
		}
		return nil, fmt.Errorf("insert profile: %w", err)
	}

	if referrerID != nil {
		_, err = tx.Exec(ctx,
			`UPDATE profiles SET friends_referred = friends_referred + 1 WHERE id = $1`,
			*referrerID,
		)
		if err != nil {
			return nil, fmt.Errorf("update referrer: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return u, nil
}

// GetProfile возвращает игрока по идентификатору.
func (r *PostgresRepository) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	u, err := scanProfile(r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`,
		userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return u, nil
}

// GetProfileByIdentifier возвращает игрока по логину или номеру телефона.
func (r *PostgresRepository) GetProfileByIdentifier(ctx context.Context, identifier string) (*model.User, error) {
	u, err := scanProfile(r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE username = $1 OR mobile = $1 LIMIT 1`,
		identifier,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return u, nil
}

// AddToBalance изменяет баланс игрока на delta и возвращает новый баланс.
// Отрицательная delta, уводящая баланс ниже нуля, отклоняется целиком.
func (r *PostgresRepository) AddToBalance(ctx context.Context, userID int64, delta float64) (float64, error) {
	var balance int64
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE profiles SET balance = balance + $2
			 WHERE id = $1 AND balance + $2 >= 0
			 RETURNING balance`,
			userID, toMinor(delta),
		).Scan(&balance)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetProfile(ctx, userID); getErr != nil {
				return 0, getErr
			}
			return 0, ErrInsufficientBalance
		}
		return 0, fmt.Errorf("update balance: %w", err)
	}
	return fromMinor(balance), nil
}

// UpdateTotalEarnings записывает накопленный доход игрока.
func (r *PostgresRepository) UpdateTotalEarnings(ctx context.Context, userID int64, total float64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE profiles SET total_earnings = $2 WHERE id = $1`,
		userID, toMinor(total),
	)
	if err != nil {
		return fmt.Errorf("update total earnings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
