package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmehra2102/storefront-checkout/internal/platform/postgres"
	"github.com/dmehra2102/storefront-checkout/internal/transaction/domain"
	"github.com/dmehra2102/storefront-checkout/pkg/outbox"
)

const transactionColumns = `id, transaction_number, amount_cents, quantity, status, payment_method, payment_details, product_id, created_at, updated_at`

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) InsertWithOutbox(ctx context.Context, t domain.Transaction, msg outbox.Message) (domain.Transaction, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Transaction{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `INSERT INTO transactions
			(transaction_number, amount_cents, quantity, status, payment_method, payment_details, product_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING `+transactionColumns,
		t.Number, t.AmountCents, t.Quantity, t.Status, t.PaymentMethod, nullableJSON(t.PaymentDetails), t.ProductID, t.CreatedAt, t.UpdatedAt)
	created, err := scanTransaction(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case uniqueViolation:
				return domain.Transaction{}, domain.ErrDuplicateReference
			case foreignKeyViolation:
				return domain.Transaction{}, domain.ErrUnknownProduct
			}
		}
		return domain.Transaction{}, err
	}

	if err := postgres.InsertOutbox(ctx, tx, msg); err != nil {
		return domain.Transaction{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Transaction{}, err
	}
	return created, nil
}

func (r *Repository) FindByNumber(ctx context.Context, number string) (domain.Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE transaction_number=$1`, number))
}

func (r *Repository) FindByID(ctx context.Context, id int64) (domain.Transaction, error) {
	return scanTransaction(r.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id=$1`, id))
}

// SettleWithOutbox is a compare-and-set on status; of two concurrent callers
// only one sees the row still PENDING.
func (r *Repository) SettleWithOutbox(ctx context.Context, number string, to domain.Status, details json.RawMessage, msg outbox.Message) (domain.Transaction, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Transaction{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `UPDATE transactions
		SET status = $2, payment_details = COALESCE($3, payment_details), updated_at = now()
		WHERE transaction_number = $1 AND status = 'PENDING'
		RETURNING `+transactionColumns,
		number, to, nullableJSON(details))
	settled, err := scanTransaction(row)
	if errors.Is(err, domain.ErrNotFound) {
		var current domain.Status
		probe := tx.QueryRow(ctx, `SELECT status FROM transactions WHERE transaction_number=$1`, number)
		if err := probe.Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.Transaction{}, domain.ErrNotFound
			}
			return domain.Transaction{}, err
		}
		return domain.Transaction{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current, to)
	}
	if err != nil {
		return domain.Transaction{}, err
	}

	if err := postgres.InsertOutbox(ctx, tx, msg); err != nil {
		return domain.Transaction{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Transaction{}, err
	}
	return settled, nil
}

func (r *Repository) List(ctx context.Context, f domain.Filter) ([]domain.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.ProductID != 0 {
		args = append(args, f.ProductID)
		where = append(where, fmt.Sprintf("product_id = $%d", len(args)))
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.EffectiveLimit())
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var (
		t       domain.Transaction
		status  string
		details []byte
	)
	err := row.Scan(&t.ID, &t.Number, &t.AmountCents, &t.Quantity, &status, &t.PaymentMethod, &details, &t.ProductID, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Transaction{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Status = domain.Status(status)
	if len(details) > 0 {
		t.PaymentDetails = json.RawMessage(details)
	}
	return t, nil
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
