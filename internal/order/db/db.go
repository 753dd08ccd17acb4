package db

import (
	"context"
	"database/sql"

	"gate-ticketing/internal/models"

	"github.com/uptrace/bun"
)

// DB is the bun-backed store shared by the checkout, settlement,
// attendance, and admin paths.
type DB struct {
	Bun *bun.DB
}

// ---------------- ORDERS ----------------

// CreateOrder → insert a new pending order
func (d *DB) CreateOrder(ctx context.Context, order models.Order) error {
	_, err := d.Bun.NewInsert().Model(&order).Exec(ctx)
	return err
}

// GetOrderByID → fetch one order by its ID. sql.ErrNoRows passes through
// so callers can distinguish "absent" from a storage failure.
func (d *DB) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkPaid applies the paid transition as one conditional update. It
// returns true only when this call actually moved the order into paid,
// which makes a redelivered settlement callback a no-op.
func (d *DB) MarkPaid(ctx context.Context, upd models.SettlementUpdate) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", models.OrderPaid).
		Set("payment_type = ?", upd.PaymentType).
		Set("transaction_id = ?", upd.TransactionID).
		Set("gross_amount = ?", upd.GrossAmount).
		Set("raw_callback = ?", upd.RawCallback).
		Set("paid_at = ?", upd.PaidAt).
		Where("id = ?", upd.OrderID).
		Where("status <> ?", models.OrderPaid).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// UpdateSettlement records a non-paid transition (pending/failed/expired)
// along with the gateway bookkeeping fields. Total is never touched.
func (d *DB) UpdateSettlement(ctx context.Context, upd models.SettlementUpdate) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", upd.Status).
		Set("payment_type = ?", upd.PaymentType).
		Set("transaction_id = ?", upd.TransactionID).
		Set("gross_amount = ?", upd.GrossAmount).
		Set("raw_callback = ?", upd.RawCallback).
		Set("paid_at = NULL").
		Where("id = ?", upd.OrderID).
		Exec(ctx)
	return err
}

// CountOrdersByDiscountCode → how many orders already reference a code
func (d *DB) CountOrdersByDiscountCode(ctx context.Context, code string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("discount_code = ?", code).
		Count(ctx)
}

// ListOrders → newest first, paged, with the total row count
func (d *DB) ListOrders(ctx context.Context, offset, limit int) ([]models.Order, int, error) {
	var orders []models.Order
	total, err := d.Bun.NewSelect().
		Model(&orders).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (d *DB) CountPendingOrders(ctx context.Context) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("status = ?", models.OrderPending).
		Count(ctx)
}

// SumPaidRevenue totals paid orders, preferring the gateway-reported gross
// amount and falling back to the stored total.
func (d *DB) SumPaidRevenue(ctx context.Context) (int64, error) {
	var revenue sql.NullInt64
	err := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		ColumnExpr("SUM(COALESCE(gross_amount, total))").
		Where("status = ?", models.OrderPaid).
		Scan(ctx, &revenue)
	if err != nil {
		return 0, err
	}
	return revenue.Int64, nil
}

// ---------------- DISCOUNT CODES ----------------

func (d *DB) GetDiscountByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	var discount models.DiscountCode
	err := d.Bun.NewSelect().
		Model(&discount).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &discount, nil
}

func (d *DB) GetDiscountByID(ctx context.Context, id string) (*models.DiscountCode, error) {
	var discount models.DiscountCode
	err := d.Bun.NewSelect().
		Model(&discount).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &discount, nil
}

// IncrementDiscountUsage bumps the stored counter by exactly one. The
// arithmetic happens in the database so concurrent settlements for
// different orders cannot lose an increment.
func (d *DB) IncrementDiscountUsage(ctx context.Context, code string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.DiscountCode)(nil)).
		Set("usage_count = usage_count + 1").
		Where("code = ?", code).
		Exec(ctx)
	return err
}

func (d *DB) CreateDiscount(ctx context.Context, discount *models.DiscountCode) error {
	_, err := d.Bun.NewInsert().Model(discount).Exec(ctx)
	return err
}

// UpdateDiscount writes back the editable fields. usage_count is owned by
// the settlement path and is excluded here.
func (d *DB) UpdateDiscount(ctx context.Context, discount *models.DiscountCode) error {
	_, err := d.Bun.NewUpdate().
		Model(discount).
		Column("active", "percent_off", "description", "max_uses", "expires_at").
		Where("id = ?", discount.ID).
		Exec(ctx)
	return err
}

func (d *DB) DeleteDiscount(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.DiscountCode)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) ListDiscounts(ctx context.Context, offset, limit int) ([]models.DiscountCode, int, error) {
	var discounts []models.DiscountCode
	total, err := d.Bun.NewSelect().
		Model(&discounts).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return discounts, total, nil
}

func (d *DB) CountActiveDiscounts(ctx context.Context) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.DiscountCode)(nil)).
		Where("active = ?", true).
		Count(ctx)
}

// ---------------- ATTENDANCE ----------------

func (d *DB) GetAttendanceByOrderID(ctx context.Context, orderID string) (*models.Attendance, error) {
	var record models.Attendance
	err := d.Bun.NewSelect().
		Model(&record).
		Where("order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (d *DB) CreateAttendance(ctx context.Context, record models.Attendance) error {
	_, err := d.Bun.NewInsert().Model(&record).Exec(ctx)
	return err
}

func (d *DB) ListAttendance(ctx context.Context, offset, limit int) ([]models.Attendance, int, error) {
	var records []models.Attendance
	total, err := d.Bun.NewSelect().
		Model(&records).
		Order("checked_in_at DESC").
		Offset(offset).
		Limit(limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
