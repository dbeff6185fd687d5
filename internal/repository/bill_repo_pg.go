package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const billColumns = `id, customer_id, service_name, service_reference_id, description, amount_cents, status,
	payment_timestamp, created_at, updated_at`

type PGBillRepository struct {
	db *pgxpool.Pool
}

func NewBillRepository(db *pgxpool.Pool) BillRepository {
	return &PGBillRepository{db: db}
}

func scanBill(row pgx.Row) (*domain.Bill, error) {
	var b domain.Bill
	if err := row.Scan(&b.ID, &b.CustomerID, &b.ServiceName, &b.ServiceReferenceID, &b.Description, &b.AmountCents, &b.Status,
		&b.PaymentTimestamp, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PGBillRepository) Create(ctx context.Context, b *domain.Bill) error {
	return conn(ctx, r.db).QueryRow(ctx, `INSERT INTO bills (id, customer_id, service_name, service_reference_id, description, amount_cents, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at, updated_at`,
		b.ID, b.CustomerID, b.ServiceName, b.ServiceReferenceID, b.Description, b.AmountCents, b.Status).
		Scan(&b.CreatedAt, &b.UpdatedAt)
}

func (r *PGBillRepository) GetByID(ctx context.Context, id string) (*domain.Bill, error) {
	b, err := scanBill(conn(ctx, r.db).QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFoundf("bill %s", id)
	}
	return b, err
}

func (r *PGBillRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Bill, error) {
	rows, err := conn(ctx, r.db).Query(ctx, `SELECT `+billColumns+` FROM bills WHERE customer_id=$1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := make([]domain.Bill, 0)
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, *b)
	}
	return bills, rows.Err()
}

func (r *PGBillRepository) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	res, err := conn(ctx, r.db).Exec(ctx, `UPDATE bills SET status=$2, payment_timestamp=$3, updated_at=now()
		WHERE id=$1 AND status=$4`, id, domain.BillStatusPaid, paidAt, domain.BillStatusUnpaid)
	if err != nil {
		return fmt.Errorf("mark bill paid: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("%w: bill %s is not unpaid", domain.ErrConflict, id)
	}
	return nil
}

var _ BillRepository = (*PGBillRepository)(nil)
