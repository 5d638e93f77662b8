package model

import "github.com/shopspring/decimal"

type PaymentMethod string

const (
	PaymentMethodCOD      PaymentMethod = "COD"
	PaymentMethodExternal PaymentMethod = "EXTERNAL"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCOD || m == PaymentMethodExternal
}

type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "PENDING"
	OrderStatusPaid     OrderStatus = "PAID"
	OrderStatusFailed   OrderStatus = "FAILED"
	OrderStatusCanceled OrderStatus = "CANCELED"
)

// 注文に載せる明細のスナップショット
type OrderLine struct {
	CartLineID string          `json:"cart_line_id"`
	ProductID  string          `json:"product_id"`
	Name       string          `json:"name"`
	Size       string          `json:"size"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// POST order の入力
type OrderRequest struct {
	SelectedLines  []OrderLine     `json:"selected_lines"`
	ShippingInfo   ShippingInfo    `json:"shipping_info"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	Total          decimal.Decimal `json:"total"`
	IdempotencyKey string          `json:"-"`
}

// 作成された注文
type OrderDescriptor struct {
	ID            string          `json:"id"`
	Status        OrderStatus     `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Total         decimal.Decimal `json:"total"`
	Lines         []OrderLine     `json:"lines"`
}

// OrderLineIDs は注文に含まれたカート明細IDを返す。
func (o OrderDescriptor) OrderLineIDs() []string {
	ids := make([]string, 0, len(o.Lines))
	for _, l := range o.Lines {
		if l.CartLineID != "" {
			ids = append(ids, l.CartLineID)
		}
	}
	return ids
}

// NewOrderLines は明細から注文行と小計合計を作る。
func NewOrderLines(lines []CartLine) ([]OrderLine, decimal.Decimal) {
	out := make([]OrderLine, 0, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		out = append(out, OrderLine{
			CartLineID: l.ID,
			ProductID:  l.ProductID,
			Name:       l.Product.Name,
			Size:       l.Size,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
		})
		total = total.Add(l.Subtotal())
	}
	return out, total
}
