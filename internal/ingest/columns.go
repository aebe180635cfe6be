package ingest

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// field identifies an OrderLine attribute a column can be mapped to.
type field int

const (
	fieldOrderID field = iota
	fieldTrackingNumber
	fieldOrderDate
	fieldOrderStatus
	fieldReturnStatus
	fieldCancelReason
	fieldSKU
	fieldProductName
	fieldQuantity
	fieldReturnQuantity
	fieldOriginalPrice
	fieldDealPrice
	fieldSellerRebate
	fieldShopVoucher
	fieldShopComboDiscount
	fieldTradeInBonus
	fieldFixedFee
	fieldServiceFee
	fieldPaymentFee
	fieldReturnShippingFee
	fieldOrderTotalAmount
	fieldPayoutDate
	fieldProvince
	fieldBuyerID
	fieldCount
)

// columnAliases lists the header names each field is known under, Shopee
// seller center exports first (Vietnamese, then English), then the snake
// case names used by our own CSV exports.
var columnAliases = map[field][]string{
	fieldOrderID:           {"Mã đơn hàng", "Order ID", "order_id"},
	fieldTrackingNumber:    {"Mã vận đơn", "Tracking Number*", "Tracking Number", "tracking_number"},
	fieldOrderDate:         {"Ngày đặt hàng", "Order Creation Date", "order_date"},
	fieldOrderStatus:       {"Trạng Thái Đơn Hàng", "Order Status", "order_status"},
	fieldReturnStatus:      {"Trạng thái Trả hàng/Hoàn tiền", "Return / Refund Status", "return_status"},
	fieldCancelReason:      {"Lý do hủy", "Cancel reason", "Cancel Reason", "cancel_reason"},
	fieldSKU:               {"SKU phân loại hàng", "Mã SKU", "SKU Reference No.", "Variation SKU", "sku"},
	fieldProductName:       {"Tên sản phẩm", "Product Name", "product_name"},
	fieldQuantity:          {"Số lượng", "Quantity", "quantity"},
	fieldReturnQuantity:    {"Số lượng sản phẩm được hoàn trả", "Returned quantity", "Returned Quantity", "return_quantity"},
	fieldOriginalPrice:     {"Giá gốc", "Original Price", "original_price"},
	fieldDealPrice:         {"Giá ưu đãi", "Deal Price", "deal_price"},
	fieldSellerRebate:      {"Người bán trợ giá", "Seller Rebate", "seller_rebate"},
	fieldShopVoucher:       {"Mã giảm giá của Shop", "Seller Voucher", "Shop Voucher", "shop_voucher"},
	fieldShopComboDiscount: {"Giảm giá từ combo của Shop", "Seller Bundle Discount", "Shop Combo Discount", "shop_combo_discount"},
	fieldTradeInBonus:      {"Trợ giá thu cũ đổi mới của Người bán", "Trade-in Bonus by Seller", "trade_in_bonus"},
	fieldFixedFee:          {"Phí cố định", "Commission Fee", "Fixed Fee", "fixed_fee"},
	fieldServiceFee:        {"Phí Dịch Vụ", "Service Fee", "service_fee"},
	fieldPaymentFee:        {"Phí thanh toán", "Transaction Fee", "Payment Fee", "payment_fee"},
	fieldReturnShippingFee: {"Phí vận chuyển trả hàng (đơn Trả hàng/hoàn tiền)", "Phí vận chuyển trả hàng", "Reverse Shipping Fee", "Return Shipping Fee", "return_shipping_fee"},
	fieldOrderTotalAmount:  {"Tổng giá trị đơn hàng (VND)", "Tổng giá trị đơn hàng", "Order Total Amount", "Grand Total", "order_total_amount"},
	fieldPayoutDate:        {"Thời gian hoàn thành đơn hàng", "Ngày thanh toán", "Order Complete Time", "Payout Date", "payout_date"},
	fieldProvince:          {"Tỉnh/Thành phố", "Province", "province"},
	fieldBuyerID:           {"Người Mua", "Username (Buyer)", "buyer_id"},
}

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "", "*", "", "(", "", ")", "", "\ufeff", "")

// normalizeColumnName makes header matching insensitive to case, spacing,
// punctuation and the Unicode composition of Vietnamese diacritics.
func normalizeColumnName(name string) string {
	name = norm.NFC.String(strings.TrimSpace(strings.ToLower(name)))
	return columnNameSanitizer.Replace(name)
}

// columnIndex maps every field to its position in header, -1 when absent.
// When several columns match a field the first alias wins, so the exact
// seller center header is preferred over a looser fallback.
type columnIndex [fieldCount]int

func newColumnIndex(header []string) columnIndex {
	positions := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeColumnName(h)
		if _, dup := positions[key]; !dup {
			positions[key] = i
		}
	}

	var idx columnIndex
	for f := field(0); f < fieldCount; f++ {
		idx[f] = -1
		for _, alias := range columnAliases[f] {
			if i, ok := positions[normalizeColumnName(alias)]; ok {
				idx[f] = i
				break
			}
		}
	}
	return idx
}

func (c columnIndex) has(f field) bool {
	return c[f] >= 0
}
