package domain

import "github.com/shopspring/decimal"

// OrderLine is one product line of a Shopee order export. Order level columns
// (status, fees, voucher, total amount...) are repeated on every line of the
// same order by the export format.
type OrderLine struct {
	OrderID        string `json:"order_id" db:"order_id"`
	TrackingNumber string `json:"tracking_number" db:"tracking_number"`
	OrderDate      string `json:"order_date" db:"order_date"`
	OrderStatus    string `json:"order_status" db:"order_status"`
	ReturnStatus   string `json:"return_status" db:"return_status"`
	CancelReason   string `json:"cancel_reason" db:"cancel_reason"`

	SKU            string `json:"sku" db:"sku"`
	ProductName    string `json:"product_name" db:"product_name"`
	Quantity       int    `json:"quantity" db:"quantity"`
	ReturnQuantity int    `json:"return_quantity" db:"return_quantity"`

	OriginalPrice     decimal.Decimal `json:"original_price" db:"original_price"`
	DealPrice         decimal.Decimal `json:"deal_price" db:"deal_price"`
	SellerRebate      decimal.Decimal `json:"seller_rebate" db:"seller_rebate"`
	ShopVoucher       decimal.Decimal `json:"shop_voucher" db:"shop_voucher"`
	ShopComboDiscount decimal.Decimal `json:"shop_combo_discount" db:"shop_combo_discount"`
	TradeInBonus      decimal.Decimal `json:"trade_in_bonus" db:"trade_in_bonus"`

	FixedFee          decimal.Decimal `json:"fixed_fee" db:"fixed_fee"`
	ServiceFee        decimal.Decimal `json:"service_fee" db:"service_fee"`
	PaymentFee        decimal.Decimal `json:"payment_fee" db:"payment_fee"`
	ReturnShippingFee decimal.Decimal `json:"return_shipping_fee" db:"return_shipping_fee"`
	OrderTotalAmount  decimal.Decimal `json:"order_total_amount" db:"order_total_amount"`

	PayoutDate string `json:"payout_date" db:"payout_date"`
	Province   string `json:"province" db:"province"`
	BuyerID    string `json:"buyer_id" db:"buyer_id"`
}
