package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/domain"
	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/repository"
)

const orderLineColumns = `
	order_id, tracking_number, order_date, order_status, return_status, cancel_reason,
	sku, product_name, quantity, return_quantity,
	original_price, deal_price, seller_rebate, shop_voucher, shop_combo_discount, trade_in_bonus,
	fixed_fee, service_fee, payment_fee, return_shipping_fee, order_total_amount,
	payout_date, province, buyer_id`

type reportRepository struct {
	db *DB
}

func NewReportRepository(db *DB) repository.ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) ListReports(ctx context.Context) ([]domain.Report, error) {
	query := `
		SELECT id, name, channel, line_count, created_at, updated_at
		FROM reports
		ORDER BY created_at DESC, id DESC
	`

	reports := make([]domain.Report, 0)
	if err := sqlx.SelectContext(ctx, r.db, &reports, query); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

func (r *reportRepository) GetReport(ctx context.Context, id int64) (*domain.Report, error) {
	query := `
		SELECT id, name, channel, line_count, created_at, updated_at
		FROM reports
		WHERE id = $1
	`

	var report domain.Report
	if err := sqlx.GetContext(ctx, r.db, &report, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("report %d: %w", id, repository.ErrReportNotFound)
		}
		return nil, fmt.Errorf("failed to get report %d: %w", id, err)
	}
	return &report, nil
}

// ListOrderLines returns the lines of a report in their original export
// order.
func (r *reportRepository) ListOrderLines(ctx context.Context, reportID int64) ([]domain.OrderLine, error) {
	if _, err := r.GetReport(ctx, reportID); err != nil {
		return nil, err
	}

	query := `SELECT ` + orderLineColumns + `
		FROM order_lines
		WHERE report_id = $1
		ORDER BY line_no
	`

	lines := make([]domain.OrderLine, 0)
	if err := sqlx.SelectContext(ctx, r.db, &lines, query, reportID); err != nil {
		return nil, fmt.Errorf("failed to list order lines of report %d: %w", reportID, err)
	}
	return lines, nil
}

// CreateReport stores a report and its lines in one transaction and returns
// the new report id.
func (r *reportRepository) CreateReport(ctx context.Context, report *domain.Report, lines []domain.OrderLine) (int64, error) {
	var id int64
	err := r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		// 1. Report header
		query := `
			INSERT INTO reports (name, channel, line_count, created_at, updated_at)
			VALUES ($1, $2, $3, NOW(), NOW())
			RETURNING id
		`
		if err := tx.QueryRowContext(ctx, query, report.Name, report.Channel, len(lines)).Scan(&id); err != nil {
			return fmt.Errorf("failed to insert report: %w", err)
		}

		// 2. Lines, numbered to keep export order
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO order_lines (report_id, line_no, `+orderLineColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, l := range lines {
			_, err := stmt.ExecContext(ctx,
				id, i+1,
				l.OrderID, l.TrackingNumber, l.OrderDate, l.OrderStatus, l.ReturnStatus, l.CancelReason,
				l.SKU, l.ProductName, l.Quantity, l.ReturnQuantity,
				l.OriginalPrice, l.DealPrice, l.SellerRebate, l.ShopVoucher, l.ShopComboDiscount, l.TradeInBonus,
				l.FixedFee, l.ServiceFee, l.PaymentFee, l.ReturnShippingFee, l.OrderTotalAmount,
				l.PayoutDate, l.Province, l.BuyerID,
			)
			if err != nil {
				return fmt.Errorf("failed to insert order line %d: %w", i+1, err)
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	report.ID = id
	report.LineCount = len(lines)
	return id, nil
}

// SaveSnapshot upserts the snapshot of a report for one configuration.
func (r *reportRepository) SaveSnapshot(ctx context.Context, snapshot *domain.MetricSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.ComputedAt.IsZero() {
		snapshot.ComputedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO metric_snapshots (id, report_id, config_hash, payload, computed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (report_id, config_hash)
		DO UPDATE SET
			payload = EXCLUDED.payload,
			computed_at = EXCLUDED.computed_at
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		snapshot.ID,
		snapshot.ReportID,
		snapshot.ConfigHash,
		snapshot.Payload,
		snapshot.ComputedAt,
	).Scan(&snapshot.ID)
	if err != nil {
		return fmt.Errorf("failed to save snapshot of report %d: %w", snapshot.ReportID, err)
	}
	return nil
}

func (r *reportRepository) GetSnapshot(ctx context.Context, reportID int64, configHash string) (*domain.MetricSnapshot, error) {
	query := `
		SELECT id, report_id, config_hash, payload, computed_at
		FROM metric_snapshots
		WHERE report_id = $1 AND config_hash = $2
	`

	var snapshot domain.MetricSnapshot
	if err := sqlx.GetContext(ctx, r.db, &snapshot, query, reportID, configHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot of report %d: %w", reportID, err)
	}
	return &snapshot, nil
}
