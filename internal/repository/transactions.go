package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/luckyspin/internal/model"
)

func insertTransaction(ctx context.Context, tx pgx.Tx, t model.Transaction) error {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO transactions (user_id, type, amount, description, status, receipt_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.UserID, string(t.Type), toMinor(t.Amount), t.Description, string(t.Status), t.ReceiptURL, createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// InsertTransactions добавляет записи в журнал операций одной транзакцией БД.
func (r *PostgresRepository) InsertTransactions(ctx context.Context, txs ...model.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, t := range txs {
		if err := insertTransaction(ctx, tx, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListTransactionsByType возвращает операции игрока указанного вида, новые первыми.
func (r *PostgresRepository) ListTransactionsByType(ctx context.Context, userID int64, txType model.TransactionType) ([]model.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, type, amount, description, status, receipt_url, created_at
		 FROM transactions
		 WHERE user_id = $1 AND type = $2
		 ORDER BY created_at DESC`,
		userID, string(txType),
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var res []model.Transaction
	for rows.Next() {
		var (
			t      model.Transaction
			typ    string
			status string
			amount int64
		)
		if err := rows.Scan(&t.ID, &t.UserID, &typ, &amount, &t.Description, &status, &t.ReceiptURL, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = model.TransactionType(typ)
		t.Status = model.TransactionStatus(status)
		t.Amount = fromMinor(amount)
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
