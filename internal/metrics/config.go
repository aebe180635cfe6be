package metrics

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Thresholds are the control ratio boundaries between risk tiers.
type Thresholds struct {
	Monitor decimal.Decimal `json:"monitor"`
	Warning decimal.Decimal `json:"warning"`
}

// Config holds every business constant the engine uses. Reference numbers
// differ per channel, so none of them are hard-coded in the computations.
type Config struct {
	// COGSRate estimates cost of goods as a fraction of gross revenue.
	COGSRate decimal.Decimal `json:"cogs_rate"`

	// TaxDivisor normalizes net figures for the after-tax view (VAT 8%).
	TaxDivisor decimal.Decimal `json:"tax_divisor"`

	ControlRatio Thresholds `json:"control_ratio"`

	// LossThreshold is the loss, as a fraction of gross revenue, above which
	// a loss-making order is DANGER rather than WARNING.
	LossThreshold decimal.Decimal `json:"loss_threshold"`

	// DominanceShare is the minimum cost share of gross revenue a driver
	// needs before it is named as the root cause.
	DominanceShare decimal.Decimal `json:"dominance_share"`

	// CountPartialReturns keeps orders with some (not all) units returned
	// and no accepted return request, scaling their figures by the
	// retention ratio. When false any returned unit excludes the order.
	CountPartialReturns bool `json:"count_partial_returns"`

	CancelledStatuses      []string `json:"cancelled_statuses"`
	ReturnAcceptedStatuses []string `json:"return_accepted_statuses"`
	KnownOrderStatuses     []string `json:"known_order_statuses"`
	KnownReturnStatuses    []string `json:"known_return_statuses"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		COGSRate:   decimal.RequireFromString("0.40"),
		TaxDivisor: decimal.RequireFromString("1.08"),
		ControlRatio: Thresholds{
			Monitor: decimal.RequireFromString("0.30"),
			Warning: decimal.RequireFromString("0.50"),
		},
		LossThreshold:  decimal.RequireFromString("0.10"),
		DominanceShare: decimal.RequireFromString("0.05"),
		CancelledStatuses: []string{
			"Đã hủy",
			"Hủy",
			"Cancelled",
			"Canceled",
		},
		ReturnAcceptedStatuses: []string{
			"Đã Chấp Thuận Yêu Cầu",
			"Approved",
		},
		KnownOrderStatuses: []string{
			"Hoàn thành",
			"Đã giao",
			"Đang giao",
			"Đang vận chuyển",
			"Chờ xác nhận",
			"Chờ lấy hàng",
			"Chờ giao hàng",
			"Người mua xác nhận đã nhận được hàng",
			"Completed",
			"Shipped",
			"To ship",
			"Unpaid",
		},
		KnownReturnStatuses: []string{
			"Yêu cầu bị từ chối",
			"Đang xem xét",
			"Đã hoàn tiền",
			"Đã hủy yêu cầu",
			"Rejected",
			"Requested",
			"Refunded",
		},
	}
}

// Validate rejects configurations that would make the computations
// meaningless (negative rates, inverted thresholds, division by zero).
func (c Config) Validate() error {
	one := decimal.NewFromInt(1)

	if c.COGSRate.IsNegative() || c.COGSRate.GreaterThanOrEqual(one) {
		return fmt.Errorf("cogs rate must be in [0, 1), got %s", c.COGSRate)
	}
	if !c.TaxDivisor.IsPositive() {
		return fmt.Errorf("tax divisor must be positive, got %s", c.TaxDivisor)
	}
	if c.ControlRatio.Monitor.IsNegative() {
		return fmt.Errorf("monitor threshold must not be negative, got %s", c.ControlRatio.Monitor)
	}
	if c.ControlRatio.Warning.LessThan(c.ControlRatio.Monitor) {
		return fmt.Errorf("warning threshold %s is below monitor threshold %s",
			c.ControlRatio.Warning, c.ControlRatio.Monitor)
	}
	if c.LossThreshold.IsNegative() {
		return fmt.Errorf("loss threshold must not be negative, got %s", c.LossThreshold)
	}
	if c.DominanceShare.IsNegative() {
		return fmt.Errorf("dominance share must not be negative, got %s", c.DominanceShare)
	}
	if len(c.CancelledStatuses) == 0 {
		return errors.New("at least one cancelled status is required")
	}
	if len(c.ReturnAcceptedStatuses) == 0 {
		return errors.New("at least one accepted return status is required")
	}

	return nil
}

// Fingerprint identifies the configuration in cache keys and snapshots, so a
// change of any constant never serves a result computed under the old one.
func (c Config) Fingerprint() string {
	payload, err := json.Marshal(c)
	if err != nil {
		return "invalid"
	}
	sum := sha1.Sum(payload)
	return hex.EncodeToString(sum[:8])
}
